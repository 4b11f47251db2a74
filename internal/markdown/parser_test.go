package markdown

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPlainTextStripsMarkup(t *testing.T) {
	src := []byte(`---
title: Biology notes
---

# Cells

The **cell** is the basic unit of _life_. See [the notes](https://example.com).

` + "```go\nfmt.Println(\"skip me\")\n```" + `

- Mitochondria produce energy
`)

	doc, err := NewParser().PlainText(src)
	require.NoError(t, err)

	assert.Equal(t, "Biology notes", doc.Meta["title"])
	assert.Contains(t, doc.Text, "Cells.")
	assert.Contains(t, doc.Text, "The cell is the basic unit of life. See the notes.")
	assert.Contains(t, doc.Text, "Mitochondria produce energy")
	assert.NotContains(t, doc.Text, "skip me")
	assert.NotContains(t, doc.Text, "title:")
	assert.NotContains(t, doc.Text, "**")
}

func TestPlainTextLeavesProseUnchanged(t *testing.T) {
	src := []byte("Paris is the capital of France. It sits on the Seine.")

	doc, err := NewParser().PlainText(src)
	require.NoError(t, err)

	assert.Equal(t, "Paris is the capital of France. It sits on the Seine.", doc.Text)
	assert.Empty(t, doc.Meta)
}

func TestExtractFrontmatter(t *testing.T) {
	meta := NewParser().ExtractFrontmatter([]byte("---\ndeck: french\n---\nbody"))
	assert.Equal(t, "french", meta["deck"])

	assert.Empty(t, NewParser().ExtractFrontmatter([]byte("no front matter")))
}
