// Package parser reads plain-text inputs (txt, md, html, pdf, csv, docx)
// into a section tree whose paragraphs can be reviewed without being
// written back.
package parser

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/dgallion1/docrevise/internal/doctree"
)

// Parser converts raw document bytes into a DocTree.
type Parser interface {
	Parse(r io.Reader, filename string) (*doctree.DocTree, error)
}

// SupportedExtensions lists the file extensions check can read.
var SupportedExtensions = map[string]bool{
	".txt":      true,
	".md":       true,
	".markdown": true,
	".csv":      true,
	".html":     true,
	".htm":      true,
	".pdf":      true,
	".docx":     true,
}

// ForFile returns the parser for a filename's extension.
func ForFile(filename string) (Parser, error) {
	switch ext := strings.ToLower(filepath.Ext(filename)); ext {
	case ".txt":
		return &TextParser{}, nil
	case ".md", ".markdown":
		return &MarkdownParser{}, nil
	case ".csv":
		return &CSVParser{}, nil
	case ".html", ".htm":
		return &HTMLParser{}, nil
	case ".pdf":
		return &PDFParser{FallbackPdftotext: true}, nil
	case ".docx":
		return &DOCXParser{}, nil
	default:
		return nil, fmt.Errorf("unsupported file extension: %q", ext)
	}
}

// IsSupportedExtension checks if a file extension is supported.
func IsSupportedExtension(filename string) bool {
	return SupportedExtensions[strings.ToLower(filepath.Ext(filename))]
}

// ParseFile opens path and parses it with the parser for its extension.
func ParseFile(path string) (*doctree.DocTree, error) {
	p, err := ForFile(path)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()
	tree, err := p.Parse(f, filepath.Base(path))
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return tree, nil
}

func baseTitle(filename string) string {
	return strings.TrimSuffix(filename, filepath.Ext(filename))
}

// sections builds a heading tree. Text goes to the innermost open section,
// or to a leading untitled section before the first heading.
type sections struct {
	root  *doctree.DocNode
	stack []openSection
}

type openSection struct {
	node  *doctree.DocNode
	level int
}

func newSections() *sections {
	root := &doctree.DocNode{}
	return &sections{root: root, stack: []openSection{{node: root}}}
}

func (s *sections) heading(level int, title string) {
	if title == "" {
		return
	}
	// Pop until the top is a strict ancestor.
	for len(s.stack) > 1 && s.stack[len(s.stack)-1].level >= level {
		s.stack = s.stack[:len(s.stack)-1]
	}
	n := &doctree.DocNode{Title: title}
	parent := s.stack[len(s.stack)-1].node
	parent.Children = append(parent.Children, n)
	s.stack = append(s.stack, openSection{node: n, level: level})
}

func (s *sections) text(t string) {
	t = strings.TrimSpace(t)
	if t == "" {
		return
	}
	top := s.stack[len(s.stack)-1].node
	if top.Text != "" {
		top.Text += "\n\n"
	}
	top.Text += t
}

func (s *sections) tree(title string) *doctree.DocTree {
	tree := &doctree.DocTree{Title: title, Children: s.root.Children}
	if s.root.Text != "" {
		tree.Children = append([]*doctree.DocNode{{Text: s.root.Text}}, tree.Children...)
	}
	return tree
}

// collapseSpace joins whitespace runs into single spaces.
func collapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
