// Package service holds the ingestion and query orchestration pipelines.
// Everything else in the process is an adapter these pipelines call into.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"openrag/config"
	"openrag/loader"
	"openrag/model"
	"openrag/store"
	"openrag/types"
	"openrag/vectorstore"

	"github.com/google/uuid"
)

// RAG wires the long-lived service handles into the two pipelines. Clients
// are constructed once at process start and injected here.
type RAG struct {
	logger    *slog.Logger
	db        store.DBStorer
	blobs     store.BlobStorer
	embedder  model.Embedder
	index     vectorstore.Index
	generator model.Generator

	pipeline config.PipelineConfig
	llm      config.LLMConfig
	vector   config.VectorConfig
	chunker  *loader.Chunker

	workers *ingestPool
}

func New(
	logger *slog.Logger,
	db store.DBStorer,
	blobs store.BlobStorer,
	embedder model.Embedder,
	index vectorstore.Index,
	generator model.Generator,
	pipeline config.PipelineConfig,
	llm config.LLMConfig,
	vector config.VectorConfig,
) *RAG {
	if logger == nil {
		logger = slog.Default()
	}
	s := &RAG{
		logger:    logger,
		db:        db,
		blobs:     blobs,
		embedder:  embedder,
		index:     index,
		generator: generator,
		pipeline:  pipeline,
		llm:       llm,
		vector:    vector,
		chunker:   loader.NewChunker(pipeline.ChunkSize, pipeline.ChunkOverlap),
	}
	s.workers = newIngestPool(s, pipeline.IngestWorkers)
	return s
}

// Stop drains the ingestion workers. In-flight documents finish; queued ones
// are processed before shutdown completes or the context expires.
func (s *RAG) Stop(ctx context.Context) {
	s.workers.stop(ctx)
	s.logger.Info("service stopped")
}

func (s *RAG) GetDocument(ctx context.Context, id uuid.UUID) (*types.Document, error) {
	return s.db.GetDocument(ctx, id)
}

func (s *RAG) ListDocuments(ctx context.Context, filter types.DocumentFilter) ([]types.Document, error) {
	return s.db.ListDocuments(ctx, filter)
}

func (s *RAG) ListCollections(ctx context.Context) ([]types.Collection, error) {
	return s.db.ListCollections(ctx)
}

// DeleteDocument cascades: blob object, each chunk's vector point, then the
// relational rows (chunks go with the document row).
func (s *RAG) DeleteDocument(ctx context.Context, id uuid.UUID) error {
	doc, err := s.db.GetDocument(ctx, id)
	if err != nil {
		return err
	}
	col, err := s.db.GetCollection(ctx, doc.CollectionID)
	if err != nil {
		return err
	}

	if err := s.blobs.Delete(ctx, doc.ObjectKey); err != nil {
		// The blob is unreachable once the rows are gone anyway.
		s.logger.Warn("blob delete failed during document delete", "document_id", id, "error", err)
	}

	chunks, err := s.db.GetDocumentChunks(ctx, id)
	if err != nil {
		return err
	}
	for _, chunk := range chunks {
		if err := s.index.Delete(ctx, col.Name, chunk.VectorID); err != nil {
			return err
		}
	}

	if err := s.db.DeleteDocument(ctx, id); err != nil {
		return err
	}
	s.logger.Info("document deleted", "document_id", id, "chunks", len(chunks))
	return nil
}

// Reprocess re-runs the asynchronous pipeline for a document. Existing
// chunks and their vectors are removed first, so a processed document is
// replaced rather than duplicated.
func (s *RAG) Reprocess(ctx context.Context, id uuid.UUID) (*types.IngestResponse, error) {
	doc, err := s.db.GetDocument(ctx, id)
	if err != nil {
		return nil, err
	}
	// One writer per document: an in-flight run would interleave chunk
	// writes with the new one.
	if doc.Status == types.StatusProcessing {
		return nil, ErrDocumentProcessing
	}
	col, err := s.db.GetCollection(ctx, doc.CollectionID)
	if err != nil {
		return nil, err
	}

	chunks, err := s.db.GetDocumentChunks(ctx, id)
	if err != nil {
		return nil, err
	}
	for _, chunk := range chunks {
		if err := s.index.Delete(ctx, col.Name, chunk.VectorID); err != nil {
			return nil, err
		}
	}
	if err := s.db.DeleteDocumentChunks(ctx, id); err != nil {
		return nil, err
	}

	jobID, err := s.db.CreateJob(ctx, "document_reprocessing", id)
	if err != nil {
		return nil, err
	}

	s.workers.submit(ingestJob{
		jobID:      jobID,
		documentID: doc.ID,
		objectKey:  doc.ObjectKey,
		filename:   doc.Filename,
		collection: col.Name,
	})

	return &types.IngestResponse{
		DocumentID: doc.ID.String(),
		JobID:      jobID.String(),
		Status:     string(types.StatusProcessing),
	}, nil
}

// Health probes each external dependency. A failing probe marks the whole
// service degraded but the probe map still reports the healthy ones.
func (s *RAG) Health(ctx context.Context) (bool, map[string]string) {
	deps := make(map[string]string, 3)
	healthy := true

	probe := func(name string, err error) {
		if err != nil {
			deps[name] = fmt.Sprintf("unhealthy: %v", err)
			healthy = false
			return
		}
		deps[name] = "healthy"
	}
	probe("database", s.db.Ping(ctx))
	probe("vector_store", s.index.Ping(ctx))
	probe("blob_store", s.blobs.Ping(ctx))
	return healthy, deps
}

// IsNotFound reports whether err denotes a missing record.
func IsNotFound(err error) bool {
	return errors.Is(err, store.ErrNotFound)
}

// ErrDocumentProcessing is returned when an operation would run a second
// pipeline over a document whose first run has not finished.
var ErrDocumentProcessing = errors.New("document is currently processing")
