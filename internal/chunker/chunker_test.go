package chunker

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestChunkGoFileSymbolAware(t *testing.T) {
	content := `package auth

// handleLogin authenticates a user.
func handleLogin() {
	doStuff()
}

func handleLogout() {
	clear()
}
`
	c := New()
	res, err := c.Chunk("owner/repo", "src/auth/login.go", content)
	require.NoError(t, err)
	require.Equal(t, "ast", string(res.Strategy))
	require.Len(t, res.Chunks, 2)
	require.Equal(t, "handleLogin", res.Chunks[0].SymbolName)
	require.Equal(t, "handleLogout", res.Chunks[1].SymbolName)
	require.Contains(t, res.Chunks[0].Content, "handleLogin")
	require.True(t, res.Chunks[0].StartLine <= res.Chunks[0].EndLine)
}

func TestChunkSlidingWindowFallback(t *testing.T) {
	lines := make([]string, 100)
	for i := range lines {
		lines[i] = "line content here"
	}
	content := strings.Join(lines, "\n")

	c := New()
	res, err := c.Chunk("owner/repo", "README.md", content)
	require.NoError(t, err)
	require.Equal(t, "sliding-window", string(res.Strategy))
	require.GreaterOrEqual(t, len(res.Chunks), 2)
	for _, ch := range res.Chunks {
		require.GreaterOrEqual(t, ch.StartLine, 1)
		require.LessOrEqual(t, ch.EndLine, 100)
		require.Empty(t, ch.SymbolName)
	}
}

func TestChunkEmptyFileYieldsNoChunks(t *testing.T) {
	c := New()
	res, err := c.Chunk("owner/repo", "empty.go", "")
	require.NoError(t, err)
	require.Empty(t, res.Chunks)
}

func TestChunkIndexMonotone(t *testing.T) {
	lines := make([]string, 200)
	for i := range lines {
		lines[i] = "x = 1"
	}
	content := strings.Join(lines, "\n")

	c := New()
	res, err := c.Chunk("owner/repo", "script.sh", content)
	require.NoError(t, err)
	for i, ch := range res.Chunks {
		require.Equal(t, i, ch.ChunkIndex)
	}
}

func TestSplitOversizeRespectsCharBudget(t *testing.T) {
	big := strings.Repeat("x", 20000)
	var lines []string
	for i := 0; i < 100; i++ {
		lines = append(lines, big[:200])
	}
	content := strings.Join(lines, "\n")

	pieces := splitOversize(content, 1)
	require.Greater(t, len(pieces), 1)
	for _, p := range pieces {
		require.LessOrEqual(t, len(p.content), MaxChunkChars)
	}
}

type fakeExtractor struct {
	supported map[string]bool
	symbols   []Symbol
}

func (f fakeExtractor) Supports(language string) bool { return f.supported[language] }
func (f fakeExtractor) Extract(language, content string) ([]Symbol, error) {
	return f.symbols, nil
}

func TestChunkFallsBackWhenExtractorYieldsNoSymbols(t *testing.T) {
	c := NewWithExtractor(fakeExtractor{supported: map[string]bool{"go": true}})
	content := strings.Repeat("a\n", 50)
	res, err := c.Chunk("owner/repo", "main.go", content)
	require.NoError(t, err)
	require.Equal(t, "sliding-window", string(res.Strategy))
}
