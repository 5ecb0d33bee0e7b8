package service

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"openrag/loader"
	"openrag/types"
	"openrag/vectorstore"

	"github.com/google/uuid"
)

// embedBatchSize caps how many chunk texts go to the embedding service in
// one batch call.
const embedBatchSize = 32

// ingestJob is the descriptor handed to the worker pool. The synchronous
// part of ingestion has already persisted the blob and the document row.
type ingestJob struct {
	jobID      uuid.UUID
	documentID uuid.UUID
	objectKey  string
	filename   string
	collection string
}

// Ingest runs the synchronous half of the ingestion pipeline: persist the
// blob, record the document, then hand off to the background workers. Any
// failure here aborts with no partial state visible to the caller.
func (s *RAG) Ingest(ctx context.Context, data []byte, filename, mediaType, collectionName string) (*types.IngestResponse, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("empty file")
	}
	if collectionName == "" {
		collectionName = s.pipeline.DefaultCollection
	}

	docID := uuid.New()
	objectKey := fmt.Sprintf("%s/%s", docID, filename)

	// Blob write comes first; if it fails no record exists.
	if err := s.blobs.Put(ctx, objectKey, data, mediaType); err != nil {
		return nil, err
	}

	col, err := s.db.GetOrCreateCollection(ctx, collectionName, s.vector.Dimension)
	if err != nil {
		return nil, err
	}

	doc := types.Document{
		ID:           docID,
		Filename:     filename,
		FileType:     mediaType,
		FileSize:     int64(len(data)),
		ObjectKey:    objectKey,
		CollectionID: col.ID,
		Status:       types.StatusUploaded,
		UploadDate:   time.Now().UTC(),
	}
	if err := s.db.CreateDocument(ctx, doc); err != nil {
		return nil, err
	}

	jobID, err := s.db.CreateJob(ctx, "document_processing", docID)
	if err != nil {
		return nil, err
	}

	s.workers.submit(ingestJob{
		jobID:      jobID,
		documentID: docID,
		objectKey:  objectKey,
		filename:   filename,
		collection: col.Name,
	})
	s.logger.Info("document ingestion started", "document_id", docID, "filename", filename, "collection", col.Name)

	return &types.IngestResponse{
		DocumentID: docID.String(),
		JobID:      jobID.String(),
		Status:     string(types.StatusProcessing),
	}, nil
}

// process runs the asynchronous half: download, extract, chunk, embed, index
// and record, then finalize the document status. Errors never propagate to a
// caller; they end as status "failed".
func (s *RAG) process(ctx context.Context, job ingestJob) {
	logger := s.logger.With("document_id", job.documentID, "job_id", job.jobID)

	if err := s.db.UpdateJobStatus(ctx, job.jobID, types.JobRunning); err != nil {
		logger.Warn("job status update failed", "error", err)
	}

	err := s.processDocument(ctx, job, logger)
	if err != nil {
		logger.Error("document processing failed", "error", err)
		s.finalize(ctx, job, types.StatusFailed, types.JobFailed, logger)
		return
	}
	s.finalize(ctx, job, types.StatusProcessed, types.JobCompleted, logger)
	logger.Info("document processing completed")
}

func (s *RAG) processDocument(ctx context.Context, job ingestJob, logger *slog.Logger) error {
	if err := s.db.UpdateDocumentStatus(ctx, job.documentID, types.StatusProcessing); err != nil {
		return err
	}

	data, err := s.blobs.Get(ctx, job.objectKey)
	if err != nil {
		return err
	}

	text, err := loader.ExtractText(data, job.filename)
	if err != nil {
		return err
	}

	chunks := s.chunker.Split(text, job.filename)
	if len(chunks) == 0 {
		return loader.ErrEmptyDocument
	}
	logger.Info("document chunked", "chunks", len(chunks))

	if err := s.index.EnsureCollection(ctx, job.collection, s.vector.Dimension); err != nil {
		return err
	}

	vectors, err := s.embedChunks(ctx, chunks)
	if err != nil {
		return err
	}

	for i, chunk := range chunks {
		vectorID := uuid.New()
		payload := vectorstore.Payload{
			DocumentID: job.documentID.String(),
			ChunkIndex: chunk.Index,
			Content:    chunk.Content,
			Metadata:   chunkMetadata(chunk),
		}
		point := vectorstore.Point{ID: vectorID, Vector: vectors[i], Payload: payload}
		if err := s.index.Upsert(ctx, job.collection, point); err != nil {
			return err
		}

		row := types.Chunk{
			ID:         uuid.New(),
			DocumentID: job.documentID,
			Index:      chunk.Index,
			Content:    chunk.Content,
			VectorID:   vectorID,
			Metadata:   chunkMetadata(chunk),
		}
		if err := s.db.CreateChunk(ctx, row); err != nil {
			return err
		}
	}
	return nil
}

// embedChunks embeds all chunk texts, batched, preserving chunk order.
func (s *RAG) embedChunks(ctx context.Context, chunks []loader.TextChunk) ([][]float32, error) {
	vectors := make([][]float32, 0, len(chunks))
	for start := 0; start < len(chunks); start += embedBatchSize {
		end := start + embedBatchSize
		if end > len(chunks) {
			end = len(chunks)
		}
		if end-start == 1 {
			vec, err := s.embedder.Embed(ctx, chunks[start].Content)
			if err != nil {
				return nil, err
			}
			vectors = append(vectors, vec)
			continue
		}
		texts := make([]string, 0, end-start)
		for _, c := range chunks[start:end] {
			texts = append(texts, c.Content)
		}
		batch, err := s.embedder.EmbedBatch(ctx, texts)
		if err != nil {
			return nil, err
		}
		vectors = append(vectors, batch...)
	}
	return vectors, nil
}

func (s *RAG) finalize(ctx context.Context, job ingestJob, docStatus types.DocumentStatus, jobStatus types.JobStatus, logger *slog.Logger) {
	if err := s.db.UpdateDocumentStatus(ctx, job.documentID, docStatus); err != nil {
		logger.Warn("document status update failed", "status", docStatus, "error", err)
	}
	if err := s.db.UpdateJobStatus(ctx, job.jobID, jobStatus); err != nil {
		logger.Warn("job status update failed", "status", jobStatus, "error", err)
	}
}

func chunkMetadata(chunk loader.TextChunk) map[string]string {
	return map[string]string{
		"source_file": chunk.SourceFile,
		"start_char":  strconv.Itoa(chunk.StartChar),
		"end_char":    strconv.Itoa(chunk.EndChar),
	}
}

// ingestPool is a bounded worker pool consuming ingest jobs. The submitting
// request returns once the job is queued; workers run the async pipeline.
type ingestPool struct {
	svc  *RAG
	jobs chan ingestJob
	wg   sync.WaitGroup

	mu     sync.Mutex
	closed bool
}

func newIngestPool(svc *RAG, workers int) *ingestPool {
	if workers <= 0 {
		workers = 4
	}
	p := &ingestPool{
		svc:  svc,
		jobs: make(chan ingestJob, 64),
	}
	for i := 0; i < workers; i++ {
		p.wg.Add(1)
		go p.run()
	}
	return p
}

func (p *ingestPool) run() {
	defer p.wg.Done()
	for job := range p.jobs {
		p.svc.process(context.Background(), job)
	}
}

func (p *ingestPool) submit(job ingestJob) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return
	}
	p.jobs <- job
}

func (p *ingestPool) stop(ctx context.Context) {
	p.mu.Lock()
	if !p.closed {
		p.closed = true
		close(p.jobs)
	}
	p.mu.Unlock()

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
	}
}
