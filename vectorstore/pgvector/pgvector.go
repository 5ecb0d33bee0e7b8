// Package pgvector backs the vector index contract with a Postgres table per
// collection, using the pgvector extension and cosine distance.
package pgvector

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"openrag/vectorstore"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	pgvec "github.com/pgvector/pgvector-go"
	pgxvec "github.com/pgvector/pgvector-go/pgx"
)

type Index struct {
	pool *pgxpool.Pool
}

// NewIndex opens its own pool so pgvector types can be registered on every
// connection.
func NewIndex(ctx context.Context, connStr string) (*Index, error) {
	cfg, err := pgxpool.ParseConfig(connStr)
	if err != nil {
		return nil, err
	}
	cfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		return pgxvec.RegisterTypes(ctx, conn)
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, err
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return &Index{pool: pool}, nil
}

var collectionNameRe = regexp.MustCompile(`[^a-z0-9_]+`)

// tableName maps a collection name onto a safe identifier. Collection names
// come from configuration and API paths, not raw SQL.
func tableName(collection string) string {
	return "vectors_" + collectionNameRe.ReplaceAllString(strings.ToLower(collection), "_")
}

func (p *Index) EnsureCollection(ctx context.Context, name string, dimension int) error {
	table := tableName(name)
	query := fmt.Sprintf(`
	CREATE EXTENSION IF NOT EXISTS vector;

	CREATE TABLE IF NOT EXISTS %s (
		id UUID PRIMARY KEY,
		embedding vector(%d) NOT NULL,
		payload JSONB NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_%s_embedding ON %s
	USING ivfflat (embedding vector_cosine_ops) WITH (lists = 100);
	`, table, dimension, table, table)

	if _, err := p.pool.Exec(ctx, query); err != nil {
		return &vectorstore.IndexError{Op: "ensure collection", Err: err}
	}
	return nil
}

func (p *Index) Upsert(ctx context.Context, collection string, point vectorstore.Point) error {
	payload, err := json.Marshal(point.Payload)
	if err != nil {
		return &vectorstore.IndexError{Op: "upsert", Err: err}
	}
	query := fmt.Sprintf(`
	INSERT INTO %s (id, embedding, payload) VALUES ($1, $2, $3)
	ON CONFLICT (id) DO UPDATE SET embedding = EXCLUDED.embedding, payload = EXCLUDED.payload
	`, tableName(collection))

	if _, err := p.pool.Exec(ctx, query, point.ID, pgvec.NewVector(point.Vector), payload); err != nil {
		return &vectorstore.IndexError{Op: "upsert", Err: err}
	}
	return nil
}

func (p *Index) Search(ctx context.Context, collection string, vector []float32, limit int, threshold float64, filter map[string]string) ([]vectorstore.SearchHit, error) {
	args := []any{pgvec.NewVector(vector), threshold}
	conditions := "1 - (embedding <=> $1) >= $2"
	for key, value := range filter {
		args = append(args, jsonPath(key), value)
		conditions += fmt.Sprintf(" AND payload #>> $%d = $%d", len(args)-1, len(args))
	}
	args = append(args, limit)

	query := fmt.Sprintf(`
	SELECT id, payload, 1 - (embedding <=> $1) AS score
	FROM %s
	WHERE %s
	ORDER BY embedding <=> $1
	LIMIT $%d
	`, tableName(collection), conditions, len(args))

	rows, err := p.pool.Query(ctx, query, args...)
	if err != nil {
		// A collection nothing was ingested into yet has no table.
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "42P01" {
			return nil, nil
		}
		return nil, &vectorstore.IndexError{Op: "search", Err: err}
	}
	defer rows.Close()

	var hits []vectorstore.SearchHit
	for rows.Next() {
		var (
			id      uuid.UUID
			payload []byte
			score   float64
		)
		if err := rows.Scan(&id, &payload, &score); err != nil {
			return nil, &vectorstore.IndexError{Op: "search", Err: err}
		}
		hit := vectorstore.SearchHit{ID: id.String(), Score: score}
		if err := json.Unmarshal(payload, &hit.Payload); err != nil {
			return nil, &vectorstore.IndexError{Op: "search", Err: err}
		}
		hits = append(hits, hit)
	}
	if err := rows.Err(); err != nil {
		// pgx may defer the query error to here.
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "42P01" {
			return nil, nil
		}
		return nil, &vectorstore.IndexError{Op: "search", Err: err}
	}
	return hits, nil
}

func (p *Index) Delete(ctx context.Context, collection string, id uuid.UUID) error {
	query := fmt.Sprintf("DELETE FROM %s WHERE id = $1", tableName(collection))
	if _, err := p.pool.Exec(ctx, query, id); err != nil {
		return &vectorstore.IndexError{Op: "delete", Err: err}
	}
	return nil
}

func (p *Index) Ping(ctx context.Context) error {
	if err := p.pool.Ping(ctx); err != nil {
		return &vectorstore.IndexError{Op: "ping", Err: err}
	}
	return nil
}

func (p *Index) Close() {
	p.pool.Close()
}

// jsonPath turns a dotted filter key into a Postgres jsonb path array, so
// "metadata.source_file" addresses the nested payload field.
func jsonPath(key string) []string {
	return strings.Split(key, ".")
}
