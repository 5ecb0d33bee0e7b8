// Package vectorstore defines the vector index contract shared by the
// ingestion and query pipelines. Backends are thin clients; the index
// engine's internals are out of scope.
package vectorstore

import (
	"context"
	"fmt"

	"github.com/google/uuid"
)

// IndexError wraps any upsert/search/delete failure of the vector index.
type IndexError struct {
	Op  string
	Err error
}

func (e *IndexError) Error() string { return fmt.Sprintf("vector index %s: %v", e.Op, e.Err) }
func (e *IndexError) Unwrap() error { return e.Err }

// Payload travels with every point. It carries enough to rebuild a source
// citation without a metadata-store round trip.
type Payload struct {
	DocumentID string            `json:"document_id"`
	ChunkIndex int               `json:"chunk_index"`
	Content    string            `json:"content"`
	Metadata   map[string]string `json:"metadata,omitempty"`
}

// Point is one vector plus its payload. Upserting the same id twice replaces
// the point.
type Point struct {
	ID      uuid.UUID
	Vector  []float32
	Payload Payload
}

// SearchHit is one nearest-neighbor result.
type SearchHit struct {
	ID      string
	Score   float64
	Payload Payload
}

// Index manages named, dimensionally-consistent vector collections.
type Index interface {
	// EnsureCollection creates the collection with the given dimensionality
	// if it does not exist yet.
	EnsureCollection(ctx context.Context, name string, dimension int) error
	Upsert(ctx context.Context, collection string, point Point) error
	// Search returns up to limit nearest points by cosine similarity with
	// score >= threshold, optionally restricted by a flat equality filter
	// over payload fields. Zero hits is a valid outcome.
	Search(ctx context.Context, collection string, vector []float32, limit int, threshold float64, filter map[string]string) ([]SearchHit, error)
	Delete(ctx context.Context, collection string, id uuid.UUID) error
	Ping(ctx context.Context) error
}
