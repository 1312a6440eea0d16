// Package chunker splits an accepted file into chunks: symbol-aware when a
// tree-sitter grammar is registered for its language, sliding-window
// otherwise.
package chunker

import (
	"crypto/sha256"
	"encoding/hex"
	"strconv"
	"strings"

	"github.com/seanblong/reposearch/pkg/models"
)

// MaxChunkChars is the hard cap on a single chunk's content length; chunks
// exceeding it are split at the nearest line boundary.
const MaxChunkChars = 8000

// WindowLines and WindowOverlap are the sliding-window defaults. They are
// not documented anywhere upstream; these numbers satisfy the observed
// fixture behavior (a 100-line file yields multiple overlapping chunks) and
// should be treated as defaults, not a guaranteed contract.
const (
	WindowLines   = 40
	WindowOverlap = 8
)

// Result is the outcome of chunking one file.
type Result struct {
	Chunks   []models.Chunk
	Strategy models.ChunkStrategy
}

// Chunker turns a file's content into chunks for one repository.
type Chunker struct {
	extractor SymbolExtractor
}

// New returns a Chunker using the default tree-sitter symbol extractor.
func New() *Chunker {
	return &Chunker{extractor: NewSymbolExtractor()}
}

// NewWithExtractor allows tests to substitute a fake SymbolExtractor.
func NewWithExtractor(e SymbolExtractor) *Chunker {
	return &Chunker{extractor: e}
}

// Chunk splits content from repoId/path into chunks: symbol-aware when the
// language has a registered extractor and extraction yields at least one
// symbol, sliding-window otherwise.
func (c *Chunker) Chunk(repoID, path, content string) (Result, error) {
	if len(content) == 0 {
		return Result{Strategy: models.StrategySlidingWindow}, nil
	}

	lang := guessLanguage(path)

	if c.extractor != nil && c.extractor.Supports(lang) {
		symbols, err := c.extractor.Extract(lang, content)
		if err != nil {
			return Result{}, err
		}
		if len(symbols) > 0 {
			return Result{Chunks: symbolChunks(repoID, path, lang, symbols), Strategy: models.StrategyAST}, nil
		}
	}

	return Result{Chunks: slidingWindowChunks(repoID, path, lang, content), Strategy: models.StrategySlidingWindow}, nil
}

func symbolChunks(repoID, path, lang string, symbols []Symbol) []models.Chunk {
	var chunks []models.Chunk
	idx := 0
	for _, sym := range symbols {
		pieces := splitOversize(sym.Content, sym.StartLine)
		for i, p := range pieces {
			symbolName := ""
			if i == 0 {
				symbolName = sym.Name
			}
			chunks = append(chunks, models.Chunk{
				ID:         chunkID(repoID, path, idx),
				RepoID:     repoID,
				FilePath:   path,
				Language:   lang,
				SymbolName: symbolName,
				Content:    p.content,
				StartLine:  p.startLine,
				EndLine:    p.endLine,
				ChunkIndex: idx,
			})
			idx++
		}
	}
	return chunks
}

// chunkID derives a chunk's natural key deterministically from its
// position, so a full reindex of unchanged content reproduces the same
// ids and an upsert's ON CONFLICT target stays stable across runs.
func chunkID(repoID, path string, idx int) string {
	h := sha256.Sum256([]byte(repoID + "\x00" + path + "\x00" + strconv.Itoa(idx)))
	return hex.EncodeToString(h[:16])
}

func slidingWindowChunks(repoID, path, lang, content string) []models.Chunk {
	lines := splitLines(content)
	n := len(lines)
	if n == 0 {
		return nil
	}

	var chunks []models.Chunk
	idx := 0
	step := WindowLines - WindowOverlap
	if step <= 0 {
		step = 1
	}

	for start := 0; start < n; start += step {
		end := start + WindowLines
		if end > n {
			end = n
		}
		// Ensure the final window is at least WindowOverlap lines, even if
		// it re-covers the previous window.
		if end-start < WindowOverlap && start > 0 {
			start = n - WindowOverlap
			if start < 0 {
				start = 0
			}
			end = n
		}

		body := strings.Join(lines[start:end], "\n")
		for _, p := range splitOversize(body, start+1) {
			chunks = append(chunks, models.Chunk{
				ID:         chunkID(repoID, path, idx),
				RepoID:     repoID,
				FilePath:   path,
				Language:   lang,
				Content:    p.content,
				StartLine:  p.startLine,
				EndLine:    p.endLine,
				ChunkIndex: idx,
			})
			idx++
		}

		if end >= n {
			break
		}
	}
	return chunks
}

type piece struct {
	content   string
	startLine int
	endLine   int
}

// splitOversize enforces MaxChunkChars by cutting at line boundaries. The
// caller passes the absolute 1-based starting line of body so the returned
// pieces carry correct line ranges.
func splitOversize(body string, startLine int) []piece {
	if len(body) <= MaxChunkChars {
		return []piece{{content: body, startLine: startLine, endLine: startLine + lineCount(body) - 1}}
	}

	lines := splitLines(body)
	var pieces []piece
	var buf []string
	bufLen := 0
	pieceStart := startLine

	flush := func(lineAt int) {
		if len(buf) == 0 {
			return
		}
		pieces = append(pieces, piece{
			content:   strings.Join(buf, "\n"),
			startLine: pieceStart,
			endLine:   lineAt,
		})
		buf = buf[:0]
		bufLen = 0
	}

	for i, l := range lines {
		lineNo := startLine + i
		if bufLen > 0 && bufLen+len(l)+1 > MaxChunkChars {
			flush(lineNo - 1)
			pieceStart = lineNo
		}
		buf = append(buf, l)
		bufLen += len(l) + 1
	}
	flush(startLine + len(lines) - 1)
	return pieces
}

func splitLines(s string) []string {
	if s == "" {
		return nil
	}
	return strings.Split(s, "\n")
}

func lineCount(s string) int {
	if s == "" {
		return 0
	}
	return strings.Count(s, "\n") + 1
}

// linesOf returns the content of lines [start, end] (1-based, inclusive)
// from content.
func linesOf(content string, start, end int) string {
	lines := splitLines(content)
	if start < 1 {
		start = 1
	}
	if end > len(lines) {
		end = len(lines)
	}
	if start > end {
		return ""
	}
	return strings.Join(lines[start-1:end], "\n")
}
