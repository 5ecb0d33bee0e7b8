package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"openrag/service"
	"openrag/store"
	"openrag/types"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubService lets each test plug in just the behavior it needs.
type stubService struct {
	ingest          func(ctx context.Context, data []byte, filename, mediaType, collection string) (*types.IngestResponse, error)
	answer          func(ctx context.Context, params types.QueryParams) (*types.QueryResponse, error)
	getDocument     func(ctx context.Context, id uuid.UUID) (*types.Document, error)
	listDocuments   func(ctx context.Context, filter types.DocumentFilter) ([]types.Document, error)
	deleteDocument  func(ctx context.Context, id uuid.UUID) error
	reprocess       func(ctx context.Context, id uuid.UUID) (*types.IngestResponse, error)
	listCollections func(ctx context.Context) ([]types.Collection, error)
	health          func(ctx context.Context) (bool, map[string]string)
}

func (s *stubService) Ingest(ctx context.Context, data []byte, filename, mediaType, collection string) (*types.IngestResponse, error) {
	return s.ingest(ctx, data, filename, mediaType, collection)
}

func (s *stubService) Answer(ctx context.Context, params types.QueryParams) (*types.QueryResponse, error) {
	return s.answer(ctx, params)
}

func (s *stubService) GetDocument(ctx context.Context, id uuid.UUID) (*types.Document, error) {
	return s.getDocument(ctx, id)
}

func (s *stubService) ListDocuments(ctx context.Context, filter types.DocumentFilter) ([]types.Document, error) {
	return s.listDocuments(ctx, filter)
}

func (s *stubService) DeleteDocument(ctx context.Context, id uuid.UUID) error {
	return s.deleteDocument(ctx, id)
}

func (s *stubService) Reprocess(ctx context.Context, id uuid.UUID) (*types.IngestResponse, error) {
	return s.reprocess(ctx, id)
}

func (s *stubService) ListCollections(ctx context.Context) ([]types.Collection, error) {
	return s.listCollections(ctx)
}

func (s *stubService) Health(ctx context.Context) (bool, map[string]string) {
	return s.health(ctx)
}

func newTestApp(svc Service) *fiber.App {
	app := fiber.New(fiber.Config{ErrorHandler: ErrorHandler})
	documentHandler := NewDocumentHandler(svc)
	queryHandler := NewQueryHandler(svc)
	collectionHandler := NewCollectionHandler(svc)
	checkHandler := NewCheckHandler(svc)

	app.Get("/health", checkHandler.HandleHealthy)
	app.Post("/process-query", queryHandler.HandleQuery)
	app.Post("/documents/ingest", documentHandler.HandleIngest)
	app.Get("/documents", documentHandler.HandleListDocuments)
	app.Get("/documents/:id", documentHandler.HandleGetDocument)
	app.Delete("/documents/:id", documentHandler.HandleDeleteDocument)
	app.Post("/documents/:id/reprocess", documentHandler.HandleReprocess)
	app.Get("/collections", collectionHandler.HandleListCollections)
	return app
}

func decodeBody(t *testing.T, resp *http.Response, out any) {
	t.Helper()
	defer resp.Body.Close()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
}

func TestHandleQuery(t *testing.T) {
	answer := "the answer"
	svc := &stubService{
		answer: func(_ context.Context, params types.QueryParams) (*types.QueryResponse, error) {
			assert.Equal(t, "what is this?", params.Query)
			assert.Equal(t, 3, params.MaxResults)
			return &types.QueryResponse{Answer: &answer, Sources: []types.Source{}, ExecutionTimeMs: 12}, nil
		},
	}
	app := newTestApp(svc)

	req := httptest.NewRequest(http.MethodPost, "/process-query",
		strings.NewReader(`{"query":"what is this?","max_results":3}`))
	req.Header.Set("Content-Type", "application/json")

	resp, err := app.Test(req)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body types.QueryResponse
	decodeBody(t, resp, &body)
	require.NotNil(t, body.Answer)
	assert.Equal(t, "the answer", *body.Answer)
	assert.Equal(t, int64(12), body.ExecutionTimeMs)
}

func TestHandleQueryMissingQuery(t *testing.T) {
	app := newTestApp(&stubService{})

	req := httptest.NewRequest(http.MethodPost, "/process-query", strings.NewReader(`{}`))
	req.Header.Set("Content-Type", "application/json")

	resp, err := app.Test(req)
	require.NoError(t, err)
	require.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)

	var body ValidationError
	decodeBody(t, resp, &body)
	assert.Contains(t, body.Errors, "Query")
}

func TestHandleQueryMalformedBody(t *testing.T) {
	app := newTestApp(&stubService{})

	req := httptest.NewRequest(http.MethodPost, "/process-query", strings.NewReader(`{not json`))
	req.Header.Set("Content-Type", "application/json")

	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestHandleIngest(t *testing.T) {
	var gotFilename, gotCollection string
	svc := &stubService{
		ingest: func(_ context.Context, data []byte, filename, _, collection string) (*types.IngestResponse, error) {
			gotFilename = filename
			gotCollection = collection
			assert.Equal(t, "file content", string(data))
			return &types.IngestResponse{
				DocumentID: uuid.NewString(),
				JobID:      uuid.NewString(),
				Status:     "processing",
			}, nil
		},
	}
	app := newTestApp(svc)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", "notes.txt")
	require.NoError(t, err)
	_, err = io.WriteString(fw, "file content")
	require.NoError(t, err)
	require.NoError(t, mw.WriteField("collection_id", "papers"))
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/documents/ingest", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := app.Test(req)
	require.NoError(t, err)
	require.Equal(t, http.StatusAccepted, resp.StatusCode)

	var body types.IngestResponse
	decodeBody(t, resp, &body)
	assert.Equal(t, "processing", body.Status)
	assert.Equal(t, "notes.txt", gotFilename)
	assert.Equal(t, "papers", gotCollection)
}

func TestHandleIngestNoFile(t *testing.T) {
	app := newTestApp(&stubService{})

	req := httptest.NewRequest(http.MethodPost, "/documents/ingest", nil)
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestHandleGetDocumentInvalidID(t *testing.T) {
	app := newTestApp(&stubService{})

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/documents/not-a-uuid", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestHandleGetDocumentNotFound(t *testing.T) {
	svc := &stubService{
		getDocument: func(context.Context, uuid.UUID) (*types.Document, error) {
			return nil, store.ErrNotFound
		},
	}
	app := newTestApp(svc)

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/documents/"+uuid.NewString(), nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestHandleListDocumentsEmpty(t *testing.T) {
	svc := &stubService{
		listDocuments: func(_ context.Context, filter types.DocumentFilter) ([]types.Document, error) {
			assert.Equal(t, types.StatusProcessed, filter.Status)
			assert.Equal(t, 10, filter.Limit)
			return nil, nil
		},
	}
	app := newTestApp(svc)

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/documents?status=processed&limit=10", nil))
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body struct {
		Documents []types.Document `json:"documents"`
		Count     int              `json:"count"`
	}
	decodeBody(t, resp, &body)
	assert.NotNil(t, body.Documents)
	assert.Zero(t, body.Count)
}

func TestHandleDeleteDocument(t *testing.T) {
	svc := &stubService{
		deleteDocument: func(context.Context, uuid.UUID) error { return nil },
	}
	app := newTestApp(svc)

	resp, err := app.Test(httptest.NewRequest(http.MethodDelete, "/documents/"+uuid.NewString(), nil))
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body map[string]string
	decodeBody(t, resp, &body)
	assert.Equal(t, "deleted", body["status"])
}

func TestHandleReprocess(t *testing.T) {
	svc := &stubService{
		reprocess: func(_ context.Context, id uuid.UUID) (*types.IngestResponse, error) {
			return &types.IngestResponse{
				DocumentID: id.String(),
				JobID:      uuid.NewString(),
				Status:     "processing",
			}, nil
		},
	}
	app := newTestApp(svc)

	resp, err := app.Test(httptest.NewRequest(http.MethodPost, "/documents/"+uuid.NewString()+"/reprocess", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusAccepted, resp.StatusCode)
}

func TestHandleReprocessConflict(t *testing.T) {
	svc := &stubService{
		reprocess: func(context.Context, uuid.UUID) (*types.IngestResponse, error) {
			return nil, service.ErrDocumentProcessing
		},
	}
	app := newTestApp(svc)

	resp, err := app.Test(httptest.NewRequest(http.MethodPost, "/documents/"+uuid.NewString()+"/reprocess", nil))
	require.NoError(t, err)
	require.Equal(t, http.StatusConflict, resp.StatusCode)

	var body Error
	decodeBody(t, resp, &body)
	assert.Equal(t, http.StatusConflict, body.Code)
}

func TestHandleListCollections(t *testing.T) {
	svc := &stubService{
		listCollections: func(context.Context) ([]types.Collection, error) {
			return []types.Collection{{ID: uuid.New(), Name: "documents_embeddings", Dimension: 384}}, nil
		},
	}
	app := newTestApp(svc)

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/collections", nil))
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body struct {
		Collections []types.Collection `json:"collections"`
	}
	decodeBody(t, resp, &body)
	require.Len(t, body.Collections, 1)
	assert.Equal(t, "documents_embeddings", body.Collections[0].Name)
}

func TestHandleHealthyDegraded(t *testing.T) {
	svc := &stubService{
		health: func(context.Context) (bool, map[string]string) {
			return false, map[string]string{"database": "healthy", "vector_store": "unhealthy: connection refused"}
		},
	}
	app := newTestApp(svc)

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/health", nil))
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body struct {
		Status       string            `json:"status"`
		Dependencies map[string]string `json:"dependencies"`
	}
	decodeBody(t, resp, &body)
	assert.Equal(t, "degraded", body.Status)
	assert.Contains(t, body.Dependencies["vector_store"], "unhealthy")
}
