package chunker

import (
	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/golang"
	"github.com/smacker/go-tree-sitter/javascript"
	"github.com/smacker/go-tree-sitter/python"
	"github.com/smacker/go-tree-sitter/typescript/tsx"
	"github.com/smacker/go-tree-sitter/typescript/typescript"
)

// langSpec describes how to recognize top-level symbol definitions for one
// tree-sitter grammar: which node types are definitions, and which child
// field holds the definition's name.
type langSpec struct {
	language   *sitter.Language
	defTypes   map[string]bool
	nameField  string
}

// registry maps the chunker's own language tag (matching guessLanguage) to
// its tree-sitter grammar and symbol shape.
var registry = map[string]langSpec{
	"go": {
		language: golang.GetLanguage(),
		defTypes: set("function_declaration", "method_declaration"),
		nameField: "name",
	},
	"python": {
		language: python.GetLanguage(),
		defTypes: set("function_definition", "class_definition"),
		nameField: "name",
	},
	"typescript": {
		language: typescript.GetLanguage(),
		defTypes: set("function_declaration", "class_declaration", "method_definition"),
		nameField: "name",
	},
	"tsx": {
		language: tsx.GetLanguage(),
		defTypes: set("function_declaration", "class_declaration", "method_definition"),
		nameField: "name",
	},
	"javascript": {
		language: javascript.GetLanguage(),
		defTypes: set("function_declaration", "class_declaration", "method_definition"),
		nameField: "name",
	},
	"jsx": {
		language: javascript.GetLanguage(),
		defTypes: set("function_declaration", "class_declaration", "method_definition"),
		nameField: "name",
	},
}

func set(items ...string) map[string]bool {
	m := make(map[string]bool, len(items))
	for _, i := range items {
		m[i] = true
	}
	return m
}

// guessLanguage maps a file extension to the chunker's language tag, the
// same table the teacher's indexer uses for display, extended with a few
// more extensions that have registered symbol extractors or well-known
// prose/config shapes.
func guessLanguage(path string) string {
	ext := extOf(path)
	switch ext {
	case "sh", "bash", "zsh":
		return "shell"
	case "py":
		return "python"
	case "go":
		return "go"
	case "md", "mdx":
		return "markdown"
	case "tf", "hcl":
		return "terraform"
	case "js", "mjs":
		return "javascript"
	case "jsx":
		return "jsx"
	case "ts":
		return "typescript"
	case "tsx":
		return "tsx"
	case "java":
		return "java"
	case "rb":
		return "ruby"
	case "rs":
		return "rust"
	case "c", "h":
		return "c"
	case "cpp", "hpp", "cc":
		return "cpp"
	case "yaml", "yml":
		return "yaml"
	case "json":
		return "json"
	default:
		return ext
	}
}

func extOf(path string) string {
	i := -1
	for j := len(path) - 1; j >= 0; j-- {
		if path[j] == '.' {
			i = j
			break
		}
		if path[j] == '/' {
			break
		}
	}
	if i < 0 {
		return ""
	}
	return path[i+1:]
}
