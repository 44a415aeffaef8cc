package ai

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPlainExcerptStripsMarkdown(t *testing.T) {
	md := "# Title\n\nSome **bold** text with a [link](https://example.com).\n\n- item one\n- item two"
	out := PlainExcerpt(md, 0)
	require.NotContains(t, out, "#")
	require.NotContains(t, out, "**")
	require.NotContains(t, out, "](")
	require.Contains(t, out, "Title")
	require.Contains(t, out, "bold")
	require.Contains(t, out, "item one")
}

func TestPlainExcerptSkipsCodeBlocks(t *testing.T) {
	md := "intro\n\n```go\nfunc main() {}\n```\n\noutro"
	out := PlainExcerpt(md, 0)
	require.Contains(t, out, "intro")
	require.Contains(t, out, "outro")
	require.NotContains(t, out, "func main")
}

func TestPlainExcerptTruncates(t *testing.T) {
	md := strings.Repeat("word ", 100)
	out := PlainExcerpt(md, 20)
	require.True(t, strings.HasSuffix(out, "..."))
	require.LessOrEqual(t, len([]rune(out)), 23)
}

func TestPlainExcerptEmpty(t *testing.T) {
	require.Equal(t, "", PlainExcerpt("", 100))
}
