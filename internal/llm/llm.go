// Package llm abstracts incremental text generation behind one Streamer
// interface so the pipeline can forward tokens from either the Gemini or
// OpenAI backend identically.
package llm

import "context"

// Token is one incremental piece of generated text.
type Token struct {
	Text string
	Done bool
}

// Streamer generates a response to systemPrompt+userPrompt, delivering
// incremental tokens on the returned channel. The channel is closed when
// generation finishes or ctx is cancelled; a generation error is returned
// from Stream itself, before any tokens are produced, or folded into the
// final Token with Done=true if it occurs mid-stream.
type Streamer interface {
	Stream(ctx context.Context, systemPrompt, userPrompt string) (<-chan Token, error)
}
