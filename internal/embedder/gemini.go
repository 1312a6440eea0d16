package embedder

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"google.golang.org/genai"
)

// GeminiProvider embeds text through the Vertex AI / Gemini API, the same
// backend the teacher's internal/ai/vertexai.go uses for its single-text
// Embed call, generalized here to accept a task type per request.
type GeminiProvider struct {
	client *genai.Client
	model  string
	dim    int
}

// GeminiConfig configures the Vertex AI / Gemini backend.
type GeminiConfig struct {
	APIKey    string
	ProjectID string
	Location  string
	Model     string
	Dim       int
}

// NewGeminiProvider creates a provider backed by the Gemini embeddings API.
func NewGeminiProvider(ctx context.Context, cfg GeminiConfig) (*GeminiProvider, error) {
	if cfg.Model == "" {
		cfg.Model = "text-embedding-005"
	}
	if cfg.Dim == 0 {
		cfg.Dim = Dim
	}
	if cfg.Location == "" && strings.TrimSpace(cfg.APIKey) == "" {
		cfg.Location = "us-central1"
	}

	cc := genai.ClientConfig{Backend: genai.BackendVertexAI}
	if strings.TrimSpace(cfg.APIKey) != "" {
		cc.APIKey = cfg.APIKey
	}
	if strings.TrimSpace(cfg.ProjectID) != "" {
		cc.Project = cfg.ProjectID
	}
	if strings.TrimSpace(cfg.Location) != "" {
		cc.Location = cfg.Location
	}

	client, err := genai.NewClient(ctx, &cc)
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}

	return &GeminiProvider{client: client, model: cfg.Model, dim: cfg.Dim}, nil
}

func (p *GeminiProvider) EmbedOne(ctx context.Context, text string, task TaskType) ([]float32, error) {
	cfg := genai.EmbedContentConfig{TaskType: string(task)}
	res, err := p.client.Models.EmbedContent(ctx, p.model, genai.Text(text), &cfg)
	if err != nil {
		return nil, fmt.Errorf("gemini embedding failed: %w", err)
	}
	if res == nil || len(res.Embeddings) == 0 {
		return nil, errors.New("gemini returned no embedding")
	}
	return res.Embeddings[0].Values, nil
}

func (p *GeminiProvider) Model() string { return p.model }
func (p *GeminiProvider) Dim() int      { return p.dim }
