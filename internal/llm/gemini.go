package llm

import (
	"context"
	"fmt"

	"google.golang.org/genai"
)

// GeminiStreamer generates text via genai's streaming generation call,
// grounded on the teacher's internal/ai/vertexai.go Summarize method, which
// uses the non-streaming GenerateContent; this generalizes it to
// GenerateContentStream for the pipeline's token-by-token contract.
type GeminiStreamer struct {
	client *genai.Client
	model  string
}

// GeminiStreamerConfig configures the Gemini generation backend.
type GeminiStreamerConfig struct {
	APIKey    string
	ProjectID string
	Location  string
	Model     string
}

// NewGeminiStreamer creates a streaming generation client.
func NewGeminiStreamer(ctx context.Context, cfg GeminiStreamerConfig) (*GeminiStreamer, error) {
	if cfg.Model == "" {
		cfg.Model = "gemini-2.0-flash"
	}
	cc := genai.ClientConfig{Backend: genai.BackendVertexAI}
	if cfg.APIKey != "" {
		cc.APIKey = cfg.APIKey
	}
	if cfg.ProjectID != "" {
		cc.Project = cfg.ProjectID
	}
	if cfg.Location != "" {
		cc.Location = cfg.Location
	}
	client, err := genai.NewClient(ctx, &cc)
	if err != nil {
		return nil, fmt.Errorf("create gemini streaming client: %w", err)
	}
	return &GeminiStreamer{client: client, model: cfg.Model}, nil
}

func (g *GeminiStreamer) Stream(ctx context.Context, systemPrompt, userPrompt string) (<-chan Token, error) {
	out := make(chan Token)

	sys := genai.Text(systemPrompt)
	cfg := genai.GenerateContentConfig{SystemInstruction: sys[0]}

	it := g.client.Models.GenerateContentStream(ctx, g.model, genai.Text(userPrompt), &cfg)

	go func() {
		defer close(out)
		for resp, err := range it {
			if err != nil {
				select {
				case out <- Token{Done: true}:
				case <-ctx.Done():
				}
				return
			}
			if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
				continue
			}
			for _, part := range resp.Candidates[0].Content.Parts {
				select {
				case out <- Token{Text: string(part.Text)}:
				case <-ctx.Done():
					return
				}
			}
		}
		select {
		case out <- Token{Done: true}:
		case <-ctx.Done():
		}
	}()

	return out, nil
}
