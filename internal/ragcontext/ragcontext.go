// Package ragcontext assembles the system/user prompt pair and citation map
// handed to the LLM.
package ragcontext

import (
	"fmt"
	"strings"
	"text/template"

	"github.com/seanblong/reposearch/internal/tokenest"
	"github.com/seanblong/reposearch/pkg/models"
)

// DefaultCharBudget is the configured default character budget, ≈6000
// tokens.
const DefaultCharBudget = 24000

var systemPromptTmpl = template.Must(template.New("system").Parse(
	`You are a code assistant answering questions about the repository {{.RepoID}}.
Answer strictly from the numbered code excerpts provided below. Never invent
file paths, line numbers, or symbol names that are not present in an
excerpt. Every factual claim in your answer must reference the citation key
(e.g. [3]) of the excerpt it came from. If the excerpts do not contain
enough information to answer, say so plainly instead of guessing.
`))

const chunkHeaderFmt = "[%d] %s Lines %d-%d"

// Assembled is the assemble() contract's output.
type Assembled struct {
	SystemPrompt  string
	UserPrompt    string
	CitationMap   map[string]models.Citation
	TokenEstimate int
}

// Assemble builds the prompt pair for query against the retrieved chunks,
// enumerating citations injectively and trimming to charBudget characters
// from the tail. charBudget <= 0 uses the default.
func Assemble(repoID, query string, chunks []models.RetrievedChunk, charBudget int) Assembled {
	if charBudget <= 0 {
		charBudget = DefaultCharBudget
	}

	var sys strings.Builder
	_ = systemPromptTmpl.Execute(&sys, struct{ RepoID string }{repoID})

	var user strings.Builder
	user.WriteString(query)
	user.WriteString("\n\n")

	citations := make(map[string]models.Citation)
	budget := charBudget - user.Len() - sys.Len()

	for i, rc := range chunks {
		key := fmt.Sprintf("%d", i+1)
		header := fmt.Sprintf(chunkHeaderFmt, i+1, rc.Chunk.FilePath, rc.Chunk.StartLine, rc.Chunk.EndLine)
		if rc.Chunk.SymbolName != "" {
			header += " · " + rc.Chunk.SymbolName
		}
		block := header + "\n" + rc.Chunk.Content + "\n\n"

		if len(block) > budget {
			// drop this and every remaining chunk; citation map stays
			// injective because we never add a key for a dropped chunk.
			break
		}
		budget -= len(block)

		user.WriteString(block)
		citations[key] = models.Citation{
			Key:        "[" + key + "]",
			FilePath:   rc.Chunk.FilePath,
			StartLine:  rc.Chunk.StartLine,
			EndLine:    rc.Chunk.EndLine,
			SymbolName: rc.Chunk.SymbolName,
		}
	}

	full := sys.String() + user.String()
	return Assembled{
		SystemPrompt:  sys.String(),
		UserPrompt:    user.String(),
		CitationMap:   citations,
		TokenEstimate: tokenest.Estimate(full),
	}
}
