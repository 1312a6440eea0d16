package filter

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestApplyAcceptedPlusRejectedEqualsInput(t *testing.T) {
	files := []File{
		{Path: "main.go", Content: "package main", SizeBytes: 12},
		{Path: "vendor/lib/pkg.go", Content: "package lib", SizeBytes: 11},
		{Path: "image.png", Content: "binarydata", SizeBytes: 10},
		{Path: "huge.go", Content: strings.Repeat("x", MaxFileSize+1), SizeBytes: MaxFileSize + 1},
		{Path: "empty.go", Content: "", SizeBytes: 0},
	}

	res := Apply(files)
	require.Equal(t, len(files), len(res.Accepted)+len(res.Rejected))
}

func TestApplyRejectsIgnoredPathSegment(t *testing.T) {
	res := Apply([]File{{Path: "node_modules/lib/index.js", Content: "console.log(1)", SizeBytes: 15}})
	require.Empty(t, res.Accepted)
	require.Len(t, res.Rejected, 1)
	require.Equal(t, ReasonIgnoredPath, res.Rejected[0].Reason)
}

func TestApplyRejectsDisallowedExtension(t *testing.T) {
	res := Apply([]File{{Path: "archive.zip", Content: "PK\x03\x04", SizeBytes: 4}})
	require.Empty(t, res.Accepted)
	require.Len(t, res.Rejected, 1)
	require.Equal(t, ReasonExtensionNotOK, res.Rejected[0].Reason)
}

func TestApplyRejectsFileWithNoExtensionAtAll(t *testing.T) {
	res := Apply([]File{{Path: "Makefile", Content: "build:\n\tgo build ./...", SizeBytes: 20}})
	require.Len(t, res.Rejected, 1)
	require.Equal(t, ReasonExtensionNotOK, res.Rejected[0].Reason)
}

func TestApplyAcceptsFileExactlyAtSizeBoundary(t *testing.T) {
	content := strings.Repeat("a", MaxFileSize)
	res := Apply([]File{{Path: "boundary.go", Content: content, SizeBytes: MaxFileSize}})
	require.Len(t, res.Accepted, 1)
	require.Empty(t, res.Rejected)
}

func TestApplyRejectsFileOneByteOverSizeBoundary(t *testing.T) {
	content := strings.Repeat("a", MaxFileSize+1)
	res := Apply([]File{{Path: "overboundary.go", Content: content, SizeBytes: MaxFileSize + 1}})
	require.Empty(t, res.Accepted)
	require.Len(t, res.Rejected, 1)
	require.Equal(t, ReasonTooLarge, res.Rejected[0].Reason)
}

func TestApplyRejectsEmptyFile(t *testing.T) {
	res := Apply([]File{{Path: "nothing.go", Content: "", SizeBytes: 0}})
	require.Len(t, res.Rejected, 1)
	require.Equal(t, ReasonEmpty, res.Rejected[0].Reason)
}

func TestApplyRejectsContentWithNULByte(t *testing.T) {
	res := Apply([]File{{Path: "weird.go", Content: "package x\x00garbage", SizeBytes: 18}})
	require.Len(t, res.Rejected, 1)
	require.Equal(t, ReasonBinary, res.Rejected[0].Reason)
}

func TestApplyRejectsInvalidUTF8(t *testing.T) {
	res := Apply([]File{{Path: "invalid.go", Content: string([]byte{0xff, 0xfe, 0x41}), SizeBytes: 3}})
	require.Len(t, res.Rejected, 1)
	require.Equal(t, ReasonBinary, res.Rejected[0].Reason)
}

func TestApplyAcceptsOrdinaryGoFile(t *testing.T) {
	res := Apply([]File{{Path: "src/server/main.go", Content: "package main\n\nfunc main() {}\n", SizeBytes: 30}})
	require.Len(t, res.Accepted, 1)
	require.Empty(t, res.Rejected)
	require.Equal(t, "src/server/main.go", res.Accepted[0].Path)
}
