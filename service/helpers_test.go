package service

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"openrag/config"
	"openrag/store"
	"openrag/types"
	"openrag/vectorstore"

	"github.com/google/uuid"
)

// fakeDB is an in-memory DBStorer recording every status transition so tests
// can assert the lifecycle order.
type fakeDB struct {
	mu          sync.Mutex
	docs        map[uuid.UUID]types.Document
	chunks      map[uuid.UUID][]types.Chunk
	collections map[uuid.UUID]types.Collection
	jobs        map[uuid.UUID]types.ProcessingJob
	queries     []types.QueryRecord
	transitions map[uuid.UUID][]types.DocumentStatus
	pingErr     error
}

var _ store.DBStorer = (*fakeDB)(nil)

func newFakeDB() *fakeDB {
	return &fakeDB{
		docs:        make(map[uuid.UUID]types.Document),
		chunks:      make(map[uuid.UUID][]types.Chunk),
		collections: make(map[uuid.UUID]types.Collection),
		jobs:        make(map[uuid.UUID]types.ProcessingJob),
		transitions: make(map[uuid.UUID][]types.DocumentStatus),
	}
}

func (f *fakeDB) CreateDocument(_ context.Context, doc types.Document) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.docs[doc.ID] = doc
	return nil
}

func (f *fakeDB) GetDocument(_ context.Context, id uuid.UUID) (*types.Document, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	doc, ok := f.docs[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &doc, nil
}

func (f *fakeDB) ListDocuments(_ context.Context, filter types.DocumentFilter) ([]types.Document, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []types.Document
	for _, doc := range f.docs {
		if filter.Status != "" && doc.Status != filter.Status {
			continue
		}
		out = append(out, doc)
	}
	return out, nil
}

func (f *fakeDB) UpdateDocumentStatus(_ context.Context, id uuid.UUID, status types.DocumentStatus) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	doc, ok := f.docs[id]
	if !ok {
		return store.ErrNotFound
	}
	doc.Status = status
	if status == types.StatusProcessed {
		now := time.Now().UTC()
		doc.ProcessedDate = &now
	}
	f.docs[id] = doc
	f.transitions[id] = append(f.transitions[id], status)
	return nil
}

func (f *fakeDB) DeleteDocument(_ context.Context, id uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.docs[id]; !ok {
		return store.ErrNotFound
	}
	delete(f.docs, id)
	delete(f.chunks, id)
	return nil
}

func (f *fakeDB) CreateChunk(_ context.Context, chunk types.Chunk) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.chunks[chunk.DocumentID] = append(f.chunks[chunk.DocumentID], chunk)
	return nil
}

func (f *fakeDB) GetDocumentChunks(_ context.Context, documentID uuid.UUID) ([]types.Chunk, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]types.Chunk, len(f.chunks[documentID]))
	copy(out, f.chunks[documentID])
	return out, nil
}

func (f *fakeDB) DeleteDocumentChunks(_ context.Context, documentID uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.chunks, documentID)
	return nil
}

func (f *fakeDB) GetOrCreateCollection(_ context.Context, name string, dimension int) (*types.Collection, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, col := range f.collections {
		if col.Name == name {
			return &col, nil
		}
	}
	col := types.Collection{ID: uuid.New(), Name: name, Dimension: dimension, CreatedAt: time.Now().UTC()}
	f.collections[col.ID] = col
	return &col, nil
}

func (f *fakeDB) GetCollection(_ context.Context, id uuid.UUID) (*types.Collection, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	col, ok := f.collections[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &col, nil
}

func (f *fakeDB) ListCollections(_ context.Context) ([]types.Collection, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []types.Collection
	for _, col := range f.collections {
		out = append(out, col)
	}
	return out, nil
}

func (f *fakeDB) SaveQuery(_ context.Context, record types.QueryRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.queries = append(f.queries, record)
	return nil
}

func (f *fakeDB) CreateJob(_ context.Context, jobType string, documentID uuid.UUID) (uuid.UUID, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	job := types.ProcessingJob{
		ID:         uuid.New(),
		JobType:    jobType,
		DocumentID: documentID,
		Status:     types.JobPending,
		CreatedAt:  time.Now().UTC(),
	}
	f.jobs[job.ID] = job
	return job.ID, nil
}

func (f *fakeDB) UpdateJobStatus(_ context.Context, jobID uuid.UUID, status types.JobStatus) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	job, ok := f.jobs[jobID]
	if !ok {
		return store.ErrNotFound
	}
	job.Status = status
	f.jobs[jobID] = job
	return nil
}

func (f *fakeDB) Ping(context.Context) error { return f.pingErr }

func (f *fakeDB) statusOf(id uuid.UUID) types.DocumentStatus {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.docs[id].Status
}

func (f *fakeDB) transitionsOf(id uuid.UUID) []types.DocumentStatus {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]types.DocumentStatus, len(f.transitions[id]))
	copy(out, f.transitions[id])
	return out
}

func (f *fakeDB) jobStatus(id uuid.UUID) types.JobStatus {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.jobs[id].Status
}

func (f *fakeDB) savedQueries() []types.QueryRecord {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]types.QueryRecord, len(f.queries))
	copy(out, f.queries)
	return out
}

// fakeBlobs keeps objects in a map.
type fakeBlobs struct {
	mu      sync.Mutex
	objects map[string][]byte
	pingErr error
}

var _ store.BlobStorer = (*fakeBlobs)(nil)

func newFakeBlobs() *fakeBlobs {
	return &fakeBlobs{objects: make(map[string][]byte)}
}

func (f *fakeBlobs) Put(_ context.Context, key string, data []byte, _ string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.objects[key] = append([]byte(nil), data...)
	return nil
}

func (f *fakeBlobs) Get(_ context.Context, key string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	data, ok := f.objects[key]
	if !ok {
		return nil, fmt.Errorf("no such object: %s", key)
	}
	return append([]byte(nil), data...), nil
}

func (f *fakeBlobs) Delete(_ context.Context, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.objects, key)
	return nil
}

func (f *fakeBlobs) Ping(context.Context) error { return f.pingErr }

func (f *fakeBlobs) has(key string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.objects[key]
	return ok
}

// fakeEmbedder returns deterministic vectors derived from the text length.
type fakeEmbedder struct {
	dim  int
	fail error
}

func (f *fakeEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	if f.fail != nil {
		return nil, f.fail
	}
	vec := make([]float32, f.dim)
	for i := range vec {
		vec[i] = float32(len(text)%7) + float32(i)
	}
	return vec, nil
}

func (f *fakeEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, 0, len(texts))
	for _, t := range texts {
		vec, err := f.Embed(ctx, t)
		if err != nil {
			return nil, err
		}
		out = append(out, vec)
	}
	return out, nil
}

// fakeIndex stores upserted points per collection and returns preset search
// hits. The last search's arguments are kept for assertions.
type fakeIndex struct {
	mu        sync.Mutex
	dims      map[string]int
	points    map[string]map[uuid.UUID]vectorstore.Point
	hits      []vectorstore.SearchHit
	searchErr error
	pingErr   error

	lastCollection string
	lastLimit      int
	lastThreshold  float64
	lastFilter     map[string]string
}

var _ vectorstore.Index = (*fakeIndex)(nil)

func newFakeIndex() *fakeIndex {
	return &fakeIndex{
		dims:   make(map[string]int),
		points: make(map[string]map[uuid.UUID]vectorstore.Point),
	}
}

func (f *fakeIndex) EnsureCollection(_ context.Context, name string, dimension int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.dims[name]; !ok {
		f.dims[name] = dimension
		f.points[name] = make(map[uuid.UUID]vectorstore.Point)
	}
	return nil
}

func (f *fakeIndex) Upsert(_ context.Context, collection string, point vectorstore.Point) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.points[collection] == nil {
		f.points[collection] = make(map[uuid.UUID]vectorstore.Point)
	}
	f.points[collection][point.ID] = point
	return nil
}

func (f *fakeIndex) Search(_ context.Context, collection string, _ []float32, limit int, threshold float64, filter map[string]string) ([]vectorstore.SearchHit, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lastCollection = collection
	f.lastLimit = limit
	f.lastThreshold = threshold
	f.lastFilter = filter
	if f.searchErr != nil {
		return nil, f.searchErr
	}
	return f.hits, nil
}

func (f *fakeIndex) Delete(_ context.Context, collection string, id uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.points[collection], id)
	return nil
}

func (f *fakeIndex) Ping(context.Context) error { return f.pingErr }

func (f *fakeIndex) point(collection string, id uuid.UUID) (vectorstore.Point, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.points[collection][id]
	return p, ok
}

func (f *fakeIndex) count(collection string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.points[collection])
}

// fakeGenerator records the prompts it was called with.
type fakeGenerator struct {
	mu     sync.Mutex
	text   string
	err    error
	called bool
	system string
	user   string
}

func (f *fakeGenerator) Name() string { return "fake" }

func (f *fakeGenerator) Generate(_ context.Context, systemPrompt, userPrompt string, _ float64, _ int) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.called = true
	f.system = systemPrompt
	f.user = userPrompt
	if f.err != nil {
		return "", f.err
	}
	return f.text, nil
}

func (f *fakeGenerator) wasCalled() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.called
}

func (f *fakeGenerator) userPrompt() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.user
}

type testEnv struct {
	db    *fakeDB
	blobs *fakeBlobs
	emb   *fakeEmbedder
	idx   *fakeIndex
	gen   *fakeGenerator
	svc   *RAG
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	env := &testEnv{
		db:    newFakeDB(),
		blobs: newFakeBlobs(),
		emb:   &fakeEmbedder{dim: 8},
		idx:   newFakeIndex(),
		gen:   &fakeGenerator{text: "a generated answer"},
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	env.svc = New(logger, env.db, env.blobs, env.emb, env.idx, env.gen,
		config.PipelineConfig{
			ChunkSize:         512,
			ChunkOverlap:      50,
			ScoreThreshold:    0.25,
			MaxResults:        5,
			IngestWorkers:     2,
			DefaultCollection: "documents_embeddings",
		},
		config.LLMConfig{Temperature: 0.3, MaxTokens: 512, TimeoutSecs: 5, ContextTokenCap: 6000},
		config.VectorConfig{Dimension: 8},
	)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		env.svc.Stop(ctx)
	})
	return env
}
