package embedding

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

// PostgresOptions names the table and columns embeddings are read from.
type PostgresOptions struct {
	Table        string
	IDColumn     string
	VectorColumn string
}

// DefaultPostgresOptions reads from embeddings(id text, embedding real[]).
var DefaultPostgresOptions = PostgresOptions{
	Table:        "embeddings",
	IDColumn:     "id",
	VectorColumn: "embedding",
}

// PostgresProvider reads embeddings stored as real[] columns.
type PostgresProvider struct {
	db    *sqlx.DB
	query string
}

type embeddingRow struct {
	ID     string          `db:"id"`
	Vector pq.Float32Array `db:"embedding"`
}

// NewPostgresProvider creates a provider on db.
func NewPostgresProvider(db *sqlx.DB, optFns ...func(o *PostgresOptions)) *PostgresProvider {
	opts := DefaultPostgresOptions
	for _, fn := range optFns {
		fn(&opts)
	}
	return &PostgresProvider{
		db: db,
		query: fmt.Sprintf("SELECT %s AS id, %s AS embedding FROM %s WHERE %s = ANY($1)",
			pq.QuoteIdentifier(opts.IDColumn),
			pq.QuoteIdentifier(opts.VectorColumn),
			pq.QuoteIdentifier(opts.Table),
			pq.QuoteIdentifier(opts.IDColumn),
		),
	}
}

// OpenPostgres connects to dsn with the lib/pq driver.
func OpenPostgres(ctx context.Context, dsn string) (*sqlx.DB, error) {
	db, err := sqlx.ConnectContext(ctx, "postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	return db, nil
}

// FullEmbeddings implements Provider with a single query.
func (p *PostgresProvider) FullEmbeddings(ctx context.Context, ids []string) (map[string][]float32, error) {
	if len(ids) == 0 {
		return map[string][]float32{}, nil
	}
	var rows []embeddingRow
	if err := p.db.SelectContext(ctx, &rows, p.query, pq.Array(ids)); err != nil {
		return nil, fmt.Errorf("select embeddings: %w", err)
	}

	out := make(map[string][]float32, len(rows))
	for _, r := range rows {
		out[r.ID] = []float32(r.Vector)
	}
	return out, nil
}
