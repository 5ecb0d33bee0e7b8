package service

import (
	"context"
	"time"

	"openrag/model"
	"openrag/types"

	"github.com/google/uuid"
)

// Answer runs the synchronous query pipeline: embed the question, search the
// vector collection, hydrate citations, optionally synthesize an answer, and
// persist the query record. Embedding and search failures abort the request;
// generation failures degrade to a null answer with sources intact.
func (s *RAG) Answer(ctx context.Context, params types.QueryParams) (*types.QueryResponse, error) {
	start := time.Now()

	collection := params.Collection
	if collection == "" {
		collection = s.pipeline.DefaultCollection
	}
	maxResults := params.MaxResults
	if maxResults <= 0 {
		maxResults = s.pipeline.MaxResults
	}
	useGeneration := true
	if params.UseGeneration != nil {
		useGeneration = *params.UseGeneration
	}

	vector, err := s.embedder.Embed(ctx, params.Query)
	if err != nil {
		return nil, err
	}

	hits, err := s.index.Search(ctx, collection, vector, maxResults, s.pipeline.ScoreThreshold, params.MetadataFilter)
	if err != nil {
		return nil, err
	}

	// Hydrate citations. Hits are already ordered by descending score; a
	// point whose document is gone from the metadata store is skipped.
	sources := make([]types.Source, 0, len(hits))
	contexts := make([]string, 0, len(hits))
	for _, hit := range hits {
		docID, err := uuid.Parse(hit.Payload.DocumentID)
		if err != nil {
			s.logger.Warn("point payload carries no usable document id", "point_id", hit.ID)
			continue
		}
		doc, err := s.db.GetDocument(ctx, docID)
		if err != nil {
			if IsNotFound(err) {
				s.logger.Warn("document missing for search hit", "document_id", docID, "point_id", hit.ID)
				continue
			}
			return nil, err
		}
		sources = append(sources, types.Source{
			DocumentID:     docID,
			Filename:       doc.Filename,
			ChunkIndex:     hit.Payload.ChunkIndex,
			RelevanceScore: hit.Score,
		})
		contexts = append(contexts, hit.Payload.Content)
	}

	var answer *string
	if useGeneration {
		if len(contexts) == 0 {
			canned := model.NoContextAnswer
			answer = &canned
		} else {
			answer = s.generate(ctx, contexts, params.Query)
		}
	}

	elapsed := time.Since(start).Milliseconds()
	record := types.QueryRecord{
		ID:              uuid.New(),
		QueryText:       params.Query,
		ResponseText:    answer,
		Sources:         sources,
		ExecutionTimeMs: elapsed,
	}
	if err := s.db.SaveQuery(ctx, record); err != nil {
		return nil, err
	}

	s.logger.Info("query answered", "sources", len(sources), "generated", answer != nil, "elapsed_ms", elapsed)
	return &types.QueryResponse{
		Answer:          answer,
		Sources:         sources,
		ExecutionTimeMs: elapsed,
	}, nil
}

// generate calls the configured provider. Retrieval output stays useful on
// its own, so a provider failure logs and returns nil instead of failing the
// request.
func (s *RAG) generate(ctx context.Context, contexts []string, question string) *string {
	trimmed := model.TrimContexts(contexts, s.llm.ContextTokenCap)
	userPrompt := model.BuildUserPrompt(trimmed, question)
	s.logger.Debug("calling generation provider",
		"provider", s.generator.Name(), "contexts", len(trimmed),
		"stats", model.FormatPromptStats(model.DefaultSystemPrompt, userPrompt))

	genCtx, cancel := context.WithTimeout(ctx, s.llm.Timeout())
	defer cancel()

	text, err := s.generator.Generate(genCtx, model.DefaultSystemPrompt, userPrompt, s.llm.Temperature, s.llm.MaxTokens)
	if err != nil {
		s.logger.Warn("generation degraded to retrieval-only result", "error", err)
		return nil
	}
	return &text
}
