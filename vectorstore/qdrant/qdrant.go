// Package qdrant is a minimal REST client to Qdrant, enough for the
// collection/upsert/search/delete surface the pipelines need.
package qdrant

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"openrag/vectorstore"

	"github.com/google/uuid"
)

type Config struct {
	URL     string
	APIKey  string
	Timeout time.Duration
}

type Index struct {
	url    string
	apiKey string
	client *http.Client
}

func NewIndex(cfg Config) *Index {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	return &Index{
		url:    cfg.URL,
		apiKey: cfg.APIKey,
		client: &http.Client{Timeout: timeout},
	}
}

func (q *Index) EnsureCollection(ctx context.Context, name string, dimension int) error {
	status, err := q.do(ctx, http.MethodGet, fmt.Sprintf("/collections/%s", name), nil, nil)
	if err == nil && status == http.StatusOK {
		return nil
	}
	if err != nil && status != http.StatusNotFound {
		return &vectorstore.IndexError{Op: "ensure collection", Err: err}
	}

	body := map[string]any{
		"vectors": map[string]any{
			"size":     dimension,
			"distance": "Cosine",
		},
	}
	if _, err := q.do(ctx, http.MethodPut, fmt.Sprintf("/collections/%s", name), body, nil); err != nil {
		return &vectorstore.IndexError{Op: "create collection", Err: err}
	}
	return nil
}

func (q *Index) Upsert(ctx context.Context, collection string, point vectorstore.Point) error {
	body := map[string]any{
		"points": []map[string]any{
			{
				"id":      point.ID.String(),
				"vector":  point.Vector,
				"payload": point.Payload,
			},
		},
	}
	path := fmt.Sprintf("/collections/%s/points?wait=true", collection)
	if _, err := q.do(ctx, http.MethodPut, path, body, nil); err != nil {
		return &vectorstore.IndexError{Op: "upsert", Err: err}
	}
	return nil
}

func (q *Index) Search(ctx context.Context, collection string, vector []float32, limit int, threshold float64, filter map[string]string) ([]vectorstore.SearchHit, error) {
	req := map[string]any{
		"vector":       vector,
		"limit":        limit,
		"with_payload": true,
	}
	if threshold > 0 {
		req["score_threshold"] = threshold
	}
	if len(filter) > 0 {
		must := make([]map[string]any, 0, len(filter))
		for key, value := range filter {
			must = append(must, map[string]any{
				"key":   key,
				"match": map[string]any{"value": value},
			})
		}
		req["filter"] = map[string]any{"must": must}
	}

	var resp struct {
		Result []struct {
			ID      string              `json:"id"`
			Score   float64             `json:"score"`
			Payload vectorstore.Payload `json:"payload"`
		} `json:"result"`
	}
	path := fmt.Sprintf("/collections/%s/points/search", collection)
	if status, err := q.do(ctx, http.MethodPost, path, req, &resp); err != nil {
		// A collection nothing was ingested into yet has no points.
		if status == http.StatusNotFound {
			return nil, nil
		}
		return nil, &vectorstore.IndexError{Op: "search", Err: err}
	}

	hits := make([]vectorstore.SearchHit, 0, len(resp.Result))
	for _, r := range resp.Result {
		hits = append(hits, vectorstore.SearchHit{ID: r.ID, Score: r.Score, Payload: r.Payload})
	}
	return hits, nil
}

func (q *Index) Delete(ctx context.Context, collection string, id uuid.UUID) error {
	body := map[string]any{"points": []string{id.String()}}
	path := fmt.Sprintf("/collections/%s/points/delete?wait=true", collection)
	if _, err := q.do(ctx, http.MethodPost, path, body, nil); err != nil {
		return &vectorstore.IndexError{Op: "delete", Err: err}
	}
	return nil
}

func (q *Index) Ping(ctx context.Context) error {
	if _, err := q.do(ctx, http.MethodGet, "/collections", nil, nil); err != nil {
		return &vectorstore.IndexError{Op: "ping", Err: err}
	}
	return nil
}

// do performs one JSON round trip. A non-2xx status is returned both as the
// status code and as an error carrying the response body.
func (q *Index) do(ctx context.Context, method, path string, body any, out any) (int, error) {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return 0, err
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, q.url+path, reader)
	if err != nil {
		return 0, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if q.apiKey != "" {
		req.Header.Set("api-key", q.apiKey)
	}

	resp, err := q.client.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(resp.Body)
		return resp.StatusCode, fmt.Errorf("qdrant %s %s: status %d: %s", method, path, resp.StatusCode, string(msg))
	}
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return resp.StatusCode, fmt.Errorf("qdrant %s %s: decode: %w", method, path, err)
		}
	}
	return resp.StatusCode, nil
}
