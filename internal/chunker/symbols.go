package chunker

import (
	"context"
	"fmt"

	sitter "github.com/smacker/go-tree-sitter"
)

// Symbol is a syntactic unit extracted from an AST: a top-level function,
// method, or class/struct definition.
type Symbol struct {
	Name      string
	StartLine int // 1-based, inclusive
	EndLine   int // 1-based, inclusive
	Content   string
}

// SymbolExtractor is the capability a language plugs in to the chunker:
// it can tell whether it supports a language tag, and extract the
// top-level symbols from source text for that language.
type SymbolExtractor interface {
	Supports(language string) bool
	Extract(language, content string) ([]Symbol, error)
}

// treeSitterExtractor implements SymbolExtractor for every language
// registered in languages.go.
type treeSitterExtractor struct{}

// NewSymbolExtractor returns the default tree-sitter-backed extractor.
func NewSymbolExtractor() SymbolExtractor { return treeSitterExtractor{} }

func (treeSitterExtractor) Supports(language string) bool {
	_, ok := registry[language]
	return ok
}

func (treeSitterExtractor) Extract(language, content string) ([]Symbol, error) {
	spec, ok := registry[language]
	if !ok {
		return nil, nil
	}
	return extractWithSpec(spec, content)
}

// extractWithSpec runs tree-sitter parsing for a specific language spec and
// walks the tree for top-level definitions, including a contiguous leading
// doc comment in the symbol's span.
func extractWithSpec(spec langSpec, content string) ([]Symbol, error) {
	parser := sitter.NewParser()
	defer parser.Close()
	parser.SetLanguage(spec.language)

	src := []byte(content)
	tree, err := parser.ParseCtx(context.Background(), nil, src)
	if err != nil {
		return nil, err
	}
	if tree == nil {
		return nil, fmt.Errorf("tree-sitter: parse returned nil tree")
	}
	defer tree.Close()

	root := tree.RootNode()
	var symbols []Symbol

	var walk func(n *sitter.Node, topLevel bool)
	walk = func(n *sitter.Node, topLevel bool) {
		if n == nil {
			return
		}
		if topLevel && spec.defTypes[n.Type()] {
			name := symbolName(n, spec.nameField, src)
			start, end := withLeadingComment(n, src)
			symbols = append(symbols, Symbol{
				Name:      name,
				StartLine: start,
				EndLine:   end,
				Content:   linesOf(content, start, end),
			})
			return
		}
		for i := 0; i < int(n.ChildCount()); i++ {
			walk(n.Child(i), topLevel)
		}
	}
	walk(root, true)
	return symbols, nil
}

func symbolName(n *sitter.Node, field string, src []byte) string {
	nameNode := n.ChildByFieldName(field)
	if nameNode == nil {
		return ""
	}
	return nameNode.Content(src)
}

// withLeadingComment extends a definition node's span backward over a
// contiguous preceding comment node, so the doc comment travels with the
// symbol it documents.
func withLeadingComment(n *sitter.Node, src []byte) (startLine, endLine int) {
	start := n
	if prev := n.PrevSibling(); prev != nil && prev.Type() == "comment" {
		// Only fold in the comment if it's immediately adjacent (no blank
		// line gap), i.e. its end row is one less than the def's start row.
		if int(prev.EndPoint().Row)+1 >= int(n.StartPoint().Row) {
			start = prev
		}
	}
	return int(start.StartPoint().Row) + 1, int(n.EndPoint().Row) + 1
}
