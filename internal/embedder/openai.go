package embedder

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"
)

// OpenAIProvider embeds text through the OpenAI embeddings endpoint, the
// same request shape as the teacher's internal/ai/openai.go.
type OpenAIProvider struct {
	apiKey string
	model  string
	dim    int
	http   *http.Client
}

// OpenAIConfig configures the OpenAI backend. There is no Dim field: every
// provider embeds at the fixed package Dim, requested via the API's
// "dimensions" truncation parameter.
type OpenAIConfig struct {
	APIKey string
	Model  string
}

// NewOpenAIProvider creates a provider backed by the OpenAI embeddings API.
// OpenAI's native output is 1536 or 3072 dimensions depending on model; the
// store requires every vector to be Dim (768) wide, so the provider always
// requests truncation to Dim via the API's "dimensions" parameter rather
// than exposing a configurable size.
func NewOpenAIProvider(cfg OpenAIConfig) *OpenAIProvider {
	if cfg.Model == "" {
		cfg.Model = "text-embedding-3-small"
	}
	return &OpenAIProvider{
		apiKey: cfg.APIKey,
		model:  cfg.Model,
		dim:    Dim,
		http:   &http.Client{Timeout: 20 * time.Second},
	}
}

// EmbedOne embeds text via OpenAI. OpenAI's embeddings API has no task-type
// parameter; the distinction between document and query embedding is
// carried entirely by the grounding header applied upstream.
func (p *OpenAIProvider) EmbedOne(ctx context.Context, text string, _ TaskType) ([]float32, error) {
	if p.apiKey == "" {
		return nil, errors.New("openai api key unset")
	}

	payload := struct {
		Input      string `json:"input"`
		Model      string `json:"model"`
		Dimensions int    `json:"dimensions"`
	}{Input: text, Model: p.model, Dimensions: Dim}
	b, _ := json.Marshal(payload)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		"https://api.openai.com/v1/embeddings", bytes.NewReader(b))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+p.apiKey)

	resp, err := p.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, errors.New("openai embedding non-200")
	}

	var out struct {
		Data []struct {
			Embedding []float32 `json:"embedding"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, err
	}
	if len(out.Data) == 0 {
		return nil, errors.New("no embedding returned")
	}
	return out.Data[0].Embedding, nil
}

func (p *OpenAIProvider) Model() string { return p.model }
func (p *OpenAIProvider) Dim() int      { return p.dim }
