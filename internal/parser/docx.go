package parser

import (
	"fmt"
	"io"
	"strings"

	"github.com/dgallion1/docrevise/internal/docmodel"
	"github.com/dgallion1/docrevise/internal/doctree"
)

// DOCXParser reads a .docx for review only: body paragraphs nest under
// their headings and each table becomes a section "Tabela N".
type DOCXParser struct{}

func (p *DOCXParser) Parse(r io.Reader, filename string) (*doctree.DocTree, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	doc, err := docmodel.Parse(data)
	if err != nil {
		return nil, fmt.Errorf("parse docx: %w", err)
	}

	s := newSections()
	for _, para := range doc.Paragraphs() {
		text := strings.TrimSpace(para.Text())
		if level := docxHeadingLevel(para.StyleID()); level > 0 {
			s.heading(level, text)
		} else {
			s.text(text)
		}
	}
	tree := s.tree(baseTitle(filename))

	for i, t := range doc.Tables() {
		var cells []string
		for row := range t.Rows() {
			for col := range t.Cols(row) {
				for _, cp := range t.Cell(row, col) {
					if text := strings.TrimSpace(cp.Text()); text != "" {
						cells = append(cells, text)
					}
				}
			}
		}
		if len(cells) == 0 {
			continue
		}
		tree.Children = append(tree.Children, &doctree.DocNode{
			Title:     fmt.Sprintf("Tabela %d", i+1),
			Generated: true,
			Text:      strings.Join(cells, "\n\n"),
		})
	}
	return tree, nil
}

// docxHeadingLevel maps "Heading2", "heading 2" and "Título2" styles to 2.
func docxHeadingLevel(style string) int {
	s := strings.ToLower(strings.ReplaceAll(style, " ", ""))
	for _, prefix := range []string{"heading", "título", "titulo"} {
		if rest, ok := strings.CutPrefix(s, prefix); ok && len(rest) == 1 && rest[0] >= '1' && rest[0] <= '6' {
			return int(rest[0] - '0')
		}
	}
	return 0
}
