package parser

import (
	"io"
	"strings"

	"github.com/dgallion1/docrevise/internal/doctree"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
)

// MarkdownParser handles Markdown using goldmark. Code and raw HTML blocks
// are skipped; list items become paragraphs of their own.
type MarkdownParser struct{}

func (p *MarkdownParser) Parse(r io.Reader, filename string) (*doctree.DocTree, error) {
	src, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	doc := goldmark.New().Parser().Parse(text.NewReader(src))

	s := newSections()
	for n := doc.FirstChild(); n != nil; n = n.NextSibling() {
		addMarkdownBlock(s, n, src)
	}
	return s.tree(baseTitle(filename)), nil
}

func addMarkdownBlock(s *sections, n ast.Node, src []byte) {
	switch node := n.(type) {
	case *ast.Heading:
		s.heading(node.Level, inlineText(node, src))
	case *ast.FencedCodeBlock, *ast.CodeBlock, *ast.HTMLBlock, *ast.ThematicBreak:
	case *ast.List, *ast.ListItem, *ast.Blockquote:
		for c := n.FirstChild(); c != nil; c = c.NextSibling() {
			addMarkdownBlock(s, c, src)
		}
	default:
		s.text(inlineText(n, src))
	}
}

// inlineText renders a block's inline content as plain text. Soft breaks
// become spaces.
func inlineText(n ast.Node, src []byte) string {
	var buf strings.Builder
	var walk func(ast.Node)
	walk = func(n ast.Node) {
		for c := n.FirstChild(); c != nil; c = c.NextSibling() {
			switch t := c.(type) {
			case *ast.Text:
				buf.Write(t.Segment.Value(src))
				switch {
				case t.HardLineBreak():
					buf.WriteByte('\n')
				case t.SoftLineBreak():
					buf.WriteByte(' ')
				}
			case *ast.String:
				buf.Write(t.Value)
			default:
				walk(c)
			}
		}
	}
	walk(n)
	return strings.TrimSpace(buf.String())
}
