package embedder

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
)

// LocalModelTag is the model identifier a LocalProvider always reports.
// The vector store writer does not check it: Write compares a batch's model
// with the stored one only to choose between upsert and full-reindex.
const LocalModelTag = "local-hash-v1"

// LocalDim is the output dimension of the local fallback, deliberately
// lower than the production Dim so a mismatch is caught immediately rather
// than silently corrupting the vector index.
const LocalDim = 64

// LocalProvider is a deterministic, dependency-free embedder for
// development: it hashes the text into a fixed-size float vector. It is
// never suitable for production retrieval quality. Embedder.EmbedBatch
// rejects its LocalDim-wide vectors, so ingestion and queries that embed
// through EmbedBatch fail with it; only direct EmbedOne calls succeed.
type LocalProvider struct{}

// NewLocalProvider returns the local fallback provider.
func NewLocalProvider() *LocalProvider { return &LocalProvider{} }

func (p *LocalProvider) EmbedOne(_ context.Context, text string, _ TaskType) ([]float32, error) {
	vec := make([]float32, LocalDim)
	block := []byte(text)
	for i := 0; i < LocalDim; i++ {
		h := sha256.Sum256(append(block, byte(i)))
		v := binary.BigEndian.Uint32(h[:4])
		vec[i] = float32(v%2000)/1000.0 - 1.0 // in [-1, 1), deterministic
	}
	return vec, nil
}

func (p *LocalProvider) Model() string { return LocalModelTag }
func (p *LocalProvider) Dim() int      { return LocalDim }
