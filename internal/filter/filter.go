// Package filter rejects files by path, extension, and size before any
// expensive chunking or embedding work happens. It is pure and
// side-effect-free: same input always produces the same classification.
package filter

import (
	"strings"
	"unicode/utf8"
)

// Reason is the closed set of rejection reasons.
type Reason string

const (
	ReasonIgnoredPath     Reason = "ignored-path"
	ReasonExtensionNotOK  Reason = "extension-not-allowed"
	ReasonTooLarge        Reason = "too-large"
	ReasonBinary          Reason = "binary"
	ReasonEmpty           Reason = "empty"
)

// MaxFileSize is the size cap (inclusive) for an accepted file.
const MaxFileSize = 500 * 1024 // 500 KiB

// ignoredSegments are path components that disqualify a file regardless of
// extension, e.g. vendored or generated trees.
var ignoredSegments = map[string]bool{
	"node_modules":    true,
	".git":            true,
	"dist":            true,
	"build":           true,
	".next":           true,
	"__pycache__":     true,
	"vendor":          true,
	"coverage":        true,
	"target":          true,
	"bin":             true,
	"obj":             true,
	".venv":           true,
	"venv":            true,
	".pytest_cache":   true,
	".gradle":         true,
	".m2":             true,
	".idea":           true,
	".cache":          true,
	".terraform":      true,
}

// allowedExtensions is the whitelist of text/code file extensions, keyed
// without the leading dot.
var allowedExtensions = map[string]bool{
	"go": true, "py": true, "js": true, "jsx": true, "ts": true, "tsx": true,
	"java": true, "rb": true, "rs": true, "c": true, "h": true, "cpp": true,
	"hpp": true, "cs": true, "php": true, "kt": true, "swift": true,
	"sh": true, "bash": true, "zsh": true,
	"md": true, "mdx": true, "rst": true, "txt": true,
	"yaml": true, "yml": true, "json": true, "toml": true, "ini": true, "cfg": true,
	"tf": true, "hcl": true,
	"sql": true, "proto": true, "graphql": true,
	"html": true, "css": true, "scss": true, "vue": true, "svelte": true,
}

// File is an input record before classification.
type File struct {
	Path      string
	Content   string
	SizeBytes int
}

// Rejection pairs a rejected path with the reason it was dropped.
type Rejection struct {
	Path   string
	Reason Reason
}

// Result is the output of Apply: every input classified exactly once.
type Result struct {
	Accepted []File
	Rejected []Rejection
}

// Apply classifies every input file, splitting it into Accepted or
// Rejected. |Accepted| + |Rejected| == |input| always holds.
func Apply(files []File) Result {
	var res Result
	for _, f := range files {
		if reason, ok := classify(f); ok {
			res.Rejected = append(res.Rejected, Rejection{Path: f.Path, Reason: reason})
			continue
		}
		res.Accepted = append(res.Accepted, f)
	}
	return res
}

// classify returns the rejection reason for f, if any.
func classify(f File) (Reason, bool) {
	if hasIgnoredSegment(f.Path) {
		return ReasonIgnoredPath, true
	}
	if !hasAllowedExtension(f.Path) {
		return ReasonExtensionNotOK, true
	}
	if f.SizeBytes > MaxFileSize {
		return ReasonTooLarge, true
	}
	if len(f.Content) == 0 {
		return ReasonEmpty, true
	}
	if looksBinary(f.Content) {
		return ReasonBinary, true
	}
	if !utf8.ValidString(f.Content) {
		return ReasonBinary, true
	}
	return "", false
}

func hasIgnoredSegment(path string) bool {
	for _, seg := range strings.Split(strings.ReplaceAll(path, "\\", "/"), "/") {
		if ignoredSegments[seg] {
			return true
		}
	}
	return false
}

func hasAllowedExtension(path string) bool {
	i := strings.LastIndexByte(path, '.')
	if i < 0 || i == len(path)-1 {
		return false
	}
	ext := strings.ToLower(path[i+1:])
	return allowedExtensions[ext]
}

// looksBinary sniffs for a NUL byte within the first 8KiB, the same
// heuristic git itself uses to tell text from binary blobs.
func looksBinary(content string) bool {
	n := len(content)
	if n > 8192 {
		n = 8192
	}
	return strings.IndexByte(content[:n], 0) >= 0
}
