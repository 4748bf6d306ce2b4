package embedding

import (
	"context"
	"errors"
	"regexp"
	"sync/atomic"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMapProvider(t *testing.T) {
	src := map[string][]float32{"a": {1, 2}, "b": {3, 4}}
	p := NewMapProvider(src)
	src["a"][0] = 99

	got, err := p.FullEmbeddings(context.Background(), []string{"a", "missing"})
	require.NoError(t, err)
	assert.Equal(t, map[string][]float32{"a": {1, 2}}, got)

	p.Set("c", []float32{5})
	p.Delete("b")
	assert.Equal(t, 2, p.Len())
	assert.Equal(t, []string{"a", "c"}, p.IDs())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = p.FullEmbeddings(ctx, []string{"a"})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestProviderFunc(t *testing.T) {
	boom := errors.New("boom")
	var p Provider = ProviderFunc(func(context.Context, []string) (map[string][]float32, error) {
		return nil, boom
	})
	_, err := p.FullEmbeddings(context.Background(), []string{"x"})
	assert.ErrorIs(t, err, boom)
}

func TestCachingProvider(t *testing.T) {
	var calls atomic.Int32
	var requested [][]string
	inner := ProviderFunc(func(_ context.Context, ids []string) (map[string][]float32, error) {
		calls.Add(1)
		requested = append(requested, ids)
		out := map[string][]float32{}
		for _, id := range ids {
			if id != "unknown" {
				out[id] = []float32{float32(len(id))}
			}
		}
		return out, nil
	})

	p, err := NewCachingProvider(inner, 8)
	require.NoError(t, err)
	ctx := context.Background()

	got, err := p.FullEmbeddings(ctx, []string{"a", "bb", "unknown"})
	require.NoError(t, err)
	assert.Len(t, got, 2)
	assert.Equal(t, 2, p.Len())

	got, err = p.FullEmbeddings(ctx, []string{"a", "bb"})
	require.NoError(t, err)
	assert.Equal(t, []float32{2}, got["bb"])
	assert.Equal(t, int32(1), calls.Load())

	_, err = p.FullEmbeddings(ctx, []string{"a", "ccc", "unknown"})
	require.NoError(t, err)
	assert.Equal(t, []string{"ccc", "unknown"}, requested[1])

	p.Purge()
	assert.Equal(t, 0, p.Len())

	_, err = NewCachingProvider(inner, 0)
	assert.Error(t, err)
}

func TestCachingProviderError(t *testing.T) {
	boom := errors.New("down")
	p, err := NewCachingProvider(ProviderFunc(func(context.Context, []string) (map[string][]float32, error) {
		return nil, boom
	}), 4)
	require.NoError(t, err)
	_, err = p.FullEmbeddings(context.Background(), []string{"a"})
	assert.ErrorIs(t, err, boom)
}

func TestVectorEncoding(t *testing.T) {
	v := []float32{0.5, -1.25, 3}
	b := EncodeVector(v)
	assert.Len(t, b, 12)
	got, err := DecodeVector(b)
	require.NoError(t, err)
	assert.Equal(t, v, got)

	_, err = DecodeVector([]byte{1, 2, 3})
	assert.Error(t, err)
}

func TestRedisProvider(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	p := NewRedisProvider(client, "")
	ctx := context.Background()

	require.NoError(t, p.Store(ctx, map[string][]float32{
		"a": {1, 0, 0},
		"b": {0, 1, 0},
	}, 0))
	assert.True(t, mr.Exists("mrl:emb:a"))

	got, err := p.FullEmbeddings(ctx, []string{"a", "missing", "b"})
	require.NoError(t, err)
	assert.Equal(t, map[string][]float32{"a": {1, 0, 0}, "b": {0, 1, 0}}, got)

	empty, err := p.FullEmbeddings(ctx, nil)
	require.NoError(t, err)
	assert.Empty(t, empty)

	require.NoError(t, mr.Set("mrl:emb:bad", "xyz"))
	_, err = p.FullEmbeddings(ctx, []string{"bad"})
	assert.Error(t, err)
}

func TestRedisProviderTTL(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	p := NewRedisProvider(client, "test:")
	ctx := context.Background()
	require.NoError(t, p.Store(ctx, map[string][]float32{"a": {1}}, time.Minute))

	mr.FastForward(2 * time.Minute)
	got, err := p.FullEmbeddings(ctx, []string{"a"})
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestRedisProviderUnavailable(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	defer client.Close()
	mr.Close()

	_, err := NewRedisProvider(client, "").FullEmbeddings(context.Background(), []string{"a"})
	assert.Error(t, err)
}

func TestPostgresProvider(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	p := NewPostgresProvider(sqlx.NewDb(db, "sqlmock"))

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT "id" AS id, "embedding" AS embedding FROM "embeddings" WHERE "id" = ANY($1)`)).
		WithArgs(sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"id", "embedding"}).
			AddRow("a", "{1,0.5,-2}").
			AddRow("b", nil))

	got, err := p.FullEmbeddings(context.Background(), []string{"a", "b", "c"})
	require.NoError(t, err)
	assert.Equal(t, []float32{1, 0.5, -2}, got["a"])
	v, ok := got["b"]
	assert.True(t, ok)
	assert.Nil(t, v)
	_, ok = got["c"]
	assert.False(t, ok)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresProviderCustomColumns(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	p := NewPostgresProvider(sqlx.NewDb(db, "sqlmock"), func(o *PostgresOptions) {
		o.Table = "docs"
		o.IDColumn = "doc_id"
		o.VectorColumn = "vec768"
	})

	boom := errors.New("connection refused")
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT "doc_id" AS id, "vec768" AS embedding FROM "docs" WHERE "doc_id" = ANY($1)`)).
		WillReturnError(boom)

	_, err = p.FullEmbeddings(context.Background(), []string{"a"})
	assert.ErrorIs(t, err, boom)
	assert.NoError(t, mock.ExpectationsWereMet())

	empty, err := p.FullEmbeddings(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, empty)
}
