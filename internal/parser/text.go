package parser

import (
	"bufio"
	"io"
	"strings"

	"github.com/dgallion1/docrevise/internal/doctree"
)

// TextParser handles plain text. Blank lines separate paragraphs; wrapped
// lines inside a paragraph are joined with a space.
type TextParser struct{}

func (p *TextParser) Parse(r io.Reader, filename string) (*doctree.DocTree, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	tree := &doctree.DocTree{Title: baseTitle(filename)}
	var lines []string
	flush := func() {
		if len(lines) > 0 {
			tree.Children = append(tree.Children, &doctree.DocNode{Text: strings.Join(lines, " ")})
			lines = lines[:0]
		}
	}
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			flush()
			continue
		}
		lines = append(lines, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	flush()
	return tree, nil
}
