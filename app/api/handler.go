package api

import (
	"context"

	"openrag/types"

	"github.com/google/uuid"
)

// Service is the slice of the orchestration core the gateway needs.
type Service interface {
	Ingest(ctx context.Context, data []byte, filename, mediaType, collectionName string) (*types.IngestResponse, error)
	Answer(ctx context.Context, params types.QueryParams) (*types.QueryResponse, error)
	GetDocument(ctx context.Context, id uuid.UUID) (*types.Document, error)
	ListDocuments(ctx context.Context, filter types.DocumentFilter) ([]types.Document, error)
	DeleteDocument(ctx context.Context, id uuid.UUID) error
	Reprocess(ctx context.Context, id uuid.UUID) (*types.IngestResponse, error)
	ListCollections(ctx context.Context) ([]types.Collection, error)
	Health(ctx context.Context) (bool, map[string]string)
}
