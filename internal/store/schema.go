package store

import "fmt"

// schemaSQL returns the DDL for the repo_index and code_chunks tables,
// generalizing the teacher's single `chunks` table migration. dim is the
// embedding vector width of the active provider, fixed when the table is
// first created. A change of embedding model is handled at the write layer,
// which switches to a full-reindex; nothing here checks it.
func schemaSQL(dim int) string {
	const q = `
CREATE EXTENSION IF NOT EXISTS vector;
CREATE EXTENSION IF NOT EXISTS pg_trgm;

CREATE TABLE IF NOT EXISTS repo_index (
  repo_id         TEXT PRIMARY KEY,
  status          TEXT NOT NULL DEFAULT 'pending',
  commit_hash     TEXT NOT NULL DEFAULT '',
  default_branch  TEXT NOT NULL DEFAULT '',
  embedding_model TEXT NOT NULL DEFAULT '',
  chunk_count     INT NOT NULL DEFAULT 0,
  updated_at      TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS code_chunks (
  id            TEXT PRIMARY KEY,
  repo_id       TEXT NOT NULL REFERENCES repo_index(repo_id) ON DELETE CASCADE,
  file_path     TEXT NOT NULL,
  language      TEXT,
  symbol_name   TEXT NOT NULL DEFAULT '',
  content       TEXT NOT NULL,
  start_line    INT NOT NULL,
  end_line      INT NOT NULL,
  chunk_index   INT NOT NULL,
  commit_hash   TEXT NOT NULL,
  embedding     vector(%d),
  embedded_at   TIMESTAMPTZ,
  created_at    TIMESTAMPTZ NOT NULL DEFAULT now(),
  ts_fielded    tsvector GENERATED ALWAYS AS (
    setweight(to_tsvector('english', regexp_replace(coalesce(file_path,''), '[^A-Za-z0-9]+', ' ', 'g')), 'A') ||
    setweight(to_tsvector('english', coalesce(symbol_name,'')), 'B') ||
    setweight(to_tsvector('english', coalesce(content,'')), 'C')
  ) STORED
);

CREATE UNIQUE INDEX IF NOT EXISTS code_chunks_repo_path_index_uidx
  ON code_chunks (repo_id, file_path, chunk_index);

CREATE INDEX IF NOT EXISTS code_chunks_repo_idx ON code_chunks (repo_id);
CREATE INDEX IF NOT EXISTS code_chunks_ts_fielded_gin ON code_chunks USING GIN (ts_fielded);
CREATE INDEX IF NOT EXISTS code_chunks_embedding_idx
  ON code_chunks USING ivfflat (embedding vector_cosine_ops) WITH (lists = 100);

CREATE TABLE IF NOT EXISTS jobs (
  id         TEXT PRIMARY KEY,
  repo_id    TEXT NOT NULL,
  state      TEXT NOT NULL DEFAULT 'waiting',
  progress   INT NOT NULL DEFAULT 0,
  error      TEXT NOT NULL DEFAULT '',
  stages     JSONB NOT NULL DEFAULT '{}'::jsonb,
  created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
  updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS jobs_repo_idx ON jobs (repo_id);
`
	return fmt.Sprintf(q, dim)
}
