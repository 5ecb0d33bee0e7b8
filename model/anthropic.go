package model

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const anthropicAPIURL = "https://api.anthropic.com/v1/messages"

// AnthropicGenerator talks to the Anthropic messages API.
type AnthropicGenerator struct {
	apiKey string
	model  string
	apiURL string
	client *http.Client
}

func NewAnthropicGenerator(apiKey, model string, timeout time.Duration) *AnthropicGenerator {
	return &AnthropicGenerator{
		apiKey: apiKey,
		model:  model,
		apiURL: anthropicAPIURL,
		client: &http.Client{Timeout: timeout},
	}
}

func (g *AnthropicGenerator) Name() string { return "anthropic" }

type anthropicRequest struct {
	Model       string        `json:"model"`
	System      string        `json:"system"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens"`
}

type anthropicResponse struct {
	Content []struct {
		Text string `json:"text"`
	} `json:"content"`
}

func (g *AnthropicGenerator) Generate(ctx context.Context, systemPrompt, userPrompt string, temperature float64, maxTokens int) (string, error) {
	reqBody, err := json.Marshal(anthropicRequest{
		Model:       g.model,
		System:      systemPrompt,
		Messages:    []chatMessage{{Role: "user", Content: userPrompt}},
		Temperature: temperature,
		MaxTokens:   maxTokens,
	})
	if err != nil {
		return "", &GenerationError{Provider: g.Name(), Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.apiURL, bytes.NewReader(reqBody))
	if err != nil {
		return "", &GenerationError{Provider: g.Name(), Err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", g.apiKey)
	req.Header.Set("anthropic-version", "2023-06-01")

	resp, err := g.client.Do(req)
	if err != nil {
		return "", &GenerationError{Provider: g.Name(), Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(resp.Body)
		return "", &GenerationError{Provider: g.Name(), Err: fmt.Errorf("status %d: %s", resp.StatusCode, string(msg))}
	}

	var msgResp anthropicResponse
	if err := json.NewDecoder(resp.Body).Decode(&msgResp); err != nil {
		return "", &GenerationError{Provider: g.Name(), Err: fmt.Errorf("decode response: %w", err)}
	}
	if len(msgResp.Content) == 0 {
		return "", &GenerationError{Provider: g.Name(), Err: fmt.Errorf("response contains no content")}
	}
	return strings.TrimSpace(msgResp.Content[0].Text), nil
}
