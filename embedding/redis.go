package embedding

import (
	"context"
	"encoding/binary"
	"fmt"
	"math"
	"time"

	"github.com/go-redis/redis/v8"
)

// DefaultRedisPrefix is prepended to ids to form Redis keys.
const DefaultRedisPrefix = "mrl:emb:"

// RedisProvider reads embeddings stored as little-endian float32 strings
// under prefix+id.
type RedisProvider struct {
	client redis.UniversalClient
	prefix string
}

// NewRedisProvider creates a provider using client. An empty prefix
// selects DefaultRedisPrefix.
func NewRedisProvider(client redis.UniversalClient, prefix string) *RedisProvider {
	if prefix == "" {
		prefix = DefaultRedisPrefix
	}
	return &RedisProvider{client: client, prefix: prefix}
}

func (p *RedisProvider) key(id string) string { return p.prefix + id }

// FullEmbeddings implements Provider with a single MGET.
func (p *RedisProvider) FullEmbeddings(ctx context.Context, ids []string) (map[string][]float32, error) {
	if len(ids) == 0 {
		return map[string][]float32{}, nil
	}
	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = p.key(id)
	}

	vals, err := p.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("redis mget: %w", err)
	}

	out := make(map[string][]float32, len(ids))
	for i, raw := range vals {
		s, ok := raw.(string)
		if !ok {
			continue
		}
		v, err := DecodeVector([]byte(s))
		if err != nil {
			return nil, fmt.Errorf("embedding %q: %w", ids[i], err)
		}
		out[ids[i]] = v
	}
	return out, nil
}

// Store writes embeddings in one pipeline. A zero ttl keeps them forever.
func (p *RedisProvider) Store(ctx context.Context, vectors map[string][]float32, ttl time.Duration) error {
	pipe := p.client.Pipeline()
	for id, v := range vectors {
		pipe.Set(ctx, p.key(id), EncodeVector(v), ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis store: %w", err)
	}
	return nil
}

// EncodeVector serializes v as little-endian float32 values.
func EncodeVector(v []float32) []byte {
	buf := make([]byte, 4*len(v))
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}

// DecodeVector is the inverse of EncodeVector.
func DecodeVector(b []byte) ([]float32, error) {
	if len(b)%4 != 0 {
		return nil, fmt.Errorf("invalid vector encoding: %d bytes", len(b))
	}
	v := make([]float32, len(b)/4)
	for i := range v {
		v[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*4:]))
	}
	return v, nil
}
