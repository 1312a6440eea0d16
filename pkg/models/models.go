// Package models holds the data types shared across the ingestion and
// retrieval packages: chunks, repository index records, and the scored
// results the retriever hands to the context assembler.
package models

import "time"

// ChunkStrategy is the closed set of ways a file was split into chunks.
type ChunkStrategy string

const (
	StrategyAST           ChunkStrategy = "ast"
	StrategySlidingWindow ChunkStrategy = "sliding-window"
)

// WriteStrategy is the closed set of outcomes of a vector store write.
type WriteStrategy string

const (
	WriteSkipped     WriteStrategy = "skipped"
	WriteUpsert      WriteStrategy = "upsert"
	WriteFullReindex WriteStrategy = "full-reindex"
)

// IndexStatus is the lifecycle state of a repository's index record.
type IndexStatus string

const (
	StatusPending  IndexStatus = "pending"
	StatusIndexing IndexStatus = "indexing"
	StatusReady    IndexStatus = "ready"
	StatusFailed   IndexStatus = "failed"
)

// JobState is the closed set of ingestion job states.
type JobState string

const (
	JobWaiting   JobState = "waiting"
	JobActive    JobState = "active"
	JobCompleted JobState = "completed"
	JobFailed    JobState = "failed"
)

// Chunk is the unit of retrieval: a contiguous span of a file plus the
// metadata needed to cite it.
type Chunk struct {
	ID         string    `json:"id"`
	RepoID     string    `json:"repo_id"`
	FilePath   string    `json:"file_path"`
	Language   string    `json:"language"`
	SymbolName string    `json:"symbol_name,omitempty"`
	Content    string    `json:"content"`
	StartLine  int       `json:"start_line"`
	EndLine    int       `json:"end_line"`
	ChunkIndex int       `json:"chunk_index"`
	CommitHash string    `json:"commit_hash"`
	EmbeddedAt time.Time `json:"embedded_at,omitempty"`
}

// EmbeddedChunk pairs a chunk with its vector. Transient: never persisted
// standalone, only via the vector store writer.
type EmbeddedChunk struct {
	Chunk  Chunk
	Vector []float32
	Model  string
}

// RetrievedChunk is a chunk enriched with the retriever's three scores.
type RetrievedChunk struct {
	Chunk          Chunk   `json:"chunk"`
	VectorScore    float64 `json:"vector_score"`
	ProximityBoost float64 `json:"proximity_boost"`
	Score          float64 `json:"score"`
}

// RepoIndex is the one-per-repository index record.
type RepoIndex struct {
	RepoID         string      `json:"repo_id"`
	Status         IndexStatus `json:"status"`
	CommitHash     string      `json:"commit_hash"`
	DefaultBranch  string      `json:"default_branch"`
	EmbeddingModel string      `json:"embedding_model"`
	ChunkCount     int         `json:"chunk_count"`
	UpdatedAt      time.Time   `json:"updated_at"`
}

// Citation is a short key pointing back to a chunk's location, used by the
// context assembler to build an injective citation map.
type Citation struct {
	Key        string `json:"key"`
	FilePath   string `json:"file_path"`
	StartLine  int    `json:"start_line"`
	EndLine    int    `json:"end_line"`
	SymbolName string `json:"symbol_name,omitempty"`
}

// Job is the status record the job runner exposes through the indexing API.
type Job struct {
	ID       string         `json:"id"`
	RepoID   string         `json:"repo_id"`
	State    JobState       `json:"state"`
	Progress int            `json:"progress"`
	Result   *RepoIndex     `json:"result,omitempty"`
	Error    string         `json:"error,omitempty"`
	Stages   map[string]int `json:"stages,omitempty"`
}
