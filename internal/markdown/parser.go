package markdown

import (
	"bytes"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/parser"
	"github.com/yuin/goldmark/text"
	"go.abhg.dev/goldmark/frontmatter"
)

// Document is markdown source reduced to readable text.
type Document struct {
	Text string
	Meta map[string]any
}

type Parser struct {
	md goldmark.Markdown
}

func NewParser() *Parser {
	// No typographer: it replaces quotes with HTML entities.
	md := goldmark.New(
		goldmark.WithExtensions(
			extension.GFM,
			&frontmatter.Extender{},
		),
	)

	return &Parser{
		md: md,
	}
}

// PlainText parses source as markdown and returns its prose with markup,
// code blocks, raw HTML and front matter removed. Each heading becomes its
// own sentence so it does not run into the paragraph below it.
func (p *Parser) PlainText(source []byte) (*Document, error) {
	context := parser.NewContext()
	doc := p.md.Parser().Parse(text.NewReader(source), parser.WithContext(context))

	var buf bytes.Buffer
	err := ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		switch node := n.(type) {
		case *ast.FencedCodeBlock, *ast.CodeBlock, *ast.HTMLBlock, *ast.RawHTML:
			return ast.WalkSkipChildren, nil
		case *ast.Text:
			if entering {
				buf.Write(node.Segment.Value(source))
				if node.SoftLineBreak() || node.HardLineBreak() {
					buf.WriteByte(' ')
				}
			}
		case *ast.String:
			if entering {
				buf.Write(node.Value)
			}
		case *ast.AutoLink:
			if entering {
				buf.Write(node.Label(source))
			}
		case *ast.Heading:
			if !entering {
				endSentence(&buf)
			}
		case *ast.Paragraph, *ast.TextBlock, *ast.ListItem:
			if !entering {
				buf.WriteByte('\n')
			}
		}
		return ast.WalkContinue, nil
	})
	if err != nil {
		return nil, err
	}

	return &Document{
		Text: strings.TrimSpace(buf.String()),
		Meta: decodeMeta(context),
	}, nil
}

func (p *Parser) ExtractFrontmatter(source []byte) map[string]any {
	context := parser.NewContext()
	p.md.Parser().Parse(text.NewReader(source), parser.WithContext(context))
	return decodeMeta(context)
}

func decodeMeta(context parser.Context) map[string]any {
	data := frontmatter.Get(context)
	if data == nil {
		return make(map[string]any)
	}

	var meta map[string]any
	err := data.Decode(&meta)
	if err != nil || meta == nil {
		return make(map[string]any)
	}
	return meta
}

func endSentence(buf *bytes.Buffer) {
	trimmed := bytes.TrimRight(buf.Bytes(), " \n")
	buf.Truncate(len(trimmed))
	if len(trimmed) > 0 && !bytes.ContainsAny(trimmed[len(trimmed)-1:], ".?!:") {
		buf.WriteByte('.')
	}
	buf.WriteByte('\n')
}
