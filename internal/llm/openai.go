package llm

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// OpenAIStreamer generates text via OpenAI's chat completions endpoint with
// stream=true, decoding the text/event-stream response chunk by chunk. The
// teacher has no generation client to ground this on (its OpenAI client is
// embeddings-only); this follows the same hand-rolled net/http style as
// internal/embedder/openai.go.
type OpenAIStreamer struct {
	apiKey string
	model  string
	http   *http.Client
}

// OpenAIStreamerConfig configures the OpenAI generation backend.
type OpenAIStreamerConfig struct {
	APIKey string
	Model  string
}

// NewOpenAIStreamer creates a streaming chat completion client.
func NewOpenAIStreamer(cfg OpenAIStreamerConfig) *OpenAIStreamer {
	if cfg.Model == "" {
		cfg.Model = "gpt-4o-mini"
	}
	return &OpenAIStreamer{apiKey: cfg.APIKey, model: cfg.Model, http: &http.Client{Timeout: 2 * time.Minute}}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
	Stream   bool          `json:"stream"`
}

type chatStreamChunk struct {
	Choices []struct {
		Delta struct {
			Content string `json:"content"`
		} `json:"delta"`
		FinishReason *string `json:"finish_reason"`
	} `json:"choices"`
}

func (o *OpenAIStreamer) Stream(ctx context.Context, systemPrompt, userPrompt string) (<-chan Token, error) {
	payload := chatRequest{
		Model: o.model,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: userPrompt},
		},
		Stream: true,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		"https://api.openai.com/v1/chat/completions", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+o.apiKey)

	resp, err := o.http.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, fmt.Errorf("openai chat completion non-200: %d", resp.StatusCode)
	}

	out := make(chan Token)
	go func() {
		defer resp.Body.Close()
		defer close(out)

		scanner := bufio.NewScanner(resp.Body)
		scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
		for scanner.Scan() {
			line := strings.TrimSpace(scanner.Text())
			if line == "" || !strings.HasPrefix(line, "data:") {
				continue
			}
			data := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
			if data == "[DONE]" {
				select {
				case out <- Token{Done: true}:
				case <-ctx.Done():
				}
				return
			}

			var chunk chatStreamChunk
			if err := json.Unmarshal([]byte(data), &chunk); err != nil {
				continue
			}
			for _, c := range chunk.Choices {
				if c.Delta.Content != "" {
					select {
					case out <- Token{Text: c.Delta.Content}:
					case <-ctx.Done():
						return
					}
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
