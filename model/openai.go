package model

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"rapidly/types"
)

const DefaultEmbeddingModel = "text-embedding-ada-002"

// OpenAIEmbedder creates query embeddings through an OpenAI-compatible
// /embeddings endpoint.
type OpenAIEmbedder struct {
	apiURL  string
	apiKey  string
	model   string
	timeout time.Duration
	client  *http.Client
}

type embeddingRequest struct {
	Model string `json:"model"`
	Input string `json:"input"`
}

type embeddingResponse struct {
	Data []struct {
		Embedding []float32 `json:"embedding"`
	} `json:"data"`
}

func NewOpenAIEmbedder(apiURL, apiKey, model string, timeout time.Duration) *OpenAIEmbedder {
	if model == "" {
		model = DefaultEmbeddingModel
	}
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	return &OpenAIEmbedder{
		apiURL:  apiURL,
		apiKey:  apiKey,
		model:   model,
		timeout: timeout,
		client:  http.DefaultClient,
	}
}

// Embed normalizes text and requests a single embedding vector. Every call
// re-embeds, repeated queries are not cached.
func (e *OpenAIEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	body, err := json.Marshal(embeddingRequest{
		Model: e.model,
		Input: NormalizeInput(text),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, e.apiURL, bytes.NewBuffer(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if e.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+e.apiKey)
	}

	resp, err := e.client.Do(httpReq)
	if err != nil {
		return nil, types.WrapExternal(types.ErrRetrievalUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return nil, types.WrapExternal(types.ErrRetrievalUnavailable,
			fmt.Errorf("embedding API status %d, body: %s", resp.StatusCode, string(respBody)))
	}

	var embResp embeddingResponse
	if err := json.NewDecoder(resp.Body).Decode(&embResp); err != nil {
		return nil, types.WrapExternal(types.ErrRetrievalUnavailable, fmt.Errorf("failed to decode response: %w", err))
	}
	if len(embResp.Data) == 0 {
		return nil, types.WrapExternal(types.ErrRetrievalUnavailable, fmt.Errorf("embedding API returned no data"))
	}
	return embResp.Data[0].Embedding, nil
}
