package ragcontext

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/seanblong/reposearch/pkg/models"
)

func chunk(path string, start, end int, content string) models.RetrievedChunk {
	return models.RetrievedChunk{Chunk: models.Chunk{FilePath: path, StartLine: start, EndLine: end, Content: content}}
}

func TestAssembleBuildsInjectiveCitationMap(t *testing.T) {
	chunks := []models.RetrievedChunk{
		chunk("a.go", 1, 10, "package a"),
		chunk("b.go", 1, 5, "package b"),
	}
	a := Assemble("repo1", "how does this work?", chunks, DefaultCharBudget)

	require.Len(t, a.CitationMap, 2)
	require.Equal(t, "[1]", a.CitationMap["1"].Key)
	require.Equal(t, "a.go", a.CitationMap["1"].FilePath)
	require.Contains(t, a.UserPrompt, "[1] a.go Lines 1-10")
	require.Contains(t, a.UserPrompt, "[2] b.go Lines 1-5")
}

func TestAssembleTrimsByCharBudgetWithoutDanglingCitations(t *testing.T) {
	big := strings.Repeat("x", 1000)
	chunks := []models.RetrievedChunk{
		chunk("a.go", 1, 10, big),
		chunk("b.go", 1, 10, big),
		chunk("c.go", 1, 10, big),
	}
	a := Assemble("repo1", "q", chunks, 1200)

	require.Less(t, len(a.CitationMap), 3)
	for key := range a.CitationMap {
		require.Contains(t, a.UserPrompt, "["+key+"]")
	}
	// no citation key appears in the prompt without a map entry
	for i := 1; i <= 3; i++ {
		k := [1]int{i}[0]
		label := "[" + string(rune('0'+k)) + "]"
		if _, ok := a.CitationMap[string(rune('0'+k))]; !ok {
			require.NotContains(t, a.UserPrompt, label+" "+chunks[k-1].Chunk.FilePath)
		}
	}
}

func TestAssembleSystemPromptForbidsInvention(t *testing.T) {
	a := Assemble("repo1", "q", nil, DefaultCharBudget)
	require.Contains(t, a.SystemPrompt, "Never invent")
	require.Contains(t, a.SystemPrompt, "repo1")
}
