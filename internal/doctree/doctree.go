// Package doctree holds the section tree that plain-text inputs are parsed
// into before review.
package doctree

import (
	"fmt"
	"strings"
)

// DocTree is the root of a parsed document.
type DocTree struct {
	Title    string     // Document title (from metadata or filename)
	Children []*DocNode // Top-level sections
}

// DocNode is a recursive section in the document tree.
type DocNode struct {
	Title string // Section heading (empty for leaf text)
	// Generated marks a title made up by the parser ("Página 2"), which is
	// used for locations but never reviewed.
	Generated bool
	Text      string     // Paragraphs separated by blank lines
	Page      int        // Source page (0 if N/A)
	Children  []*DocNode // Subsections
}

// Paragraph is one reviewable paragraph in reading order.
type Paragraph struct {
	Text     string
	Location string
	Page     int
}

// Paragraphs flattens the tree. Headings read from the source are
// paragraphs of their own; node text splits on blank lines. Locations carry
// the heading path, e.g. "Capítulo 1 > Seção 2, parágrafo 7".
func (t *DocTree) Paragraphs() []Paragraph {
	var out []Paragraph
	add := func(text string, crumbs []string, page int) {
		n := len(out) + 1
		loc := fmt.Sprintf("Parágrafo %d", n)
		if len(crumbs) > 0 {
			loc = fmt.Sprintf("%s, parágrafo %d", strings.Join(crumbs, " > "), n)
		}
		out = append(out, Paragraph{Text: text, Location: loc, Page: page})
	}

	var walk func(n *DocNode, crumbs []string, page int)
	walk = func(n *DocNode, crumbs []string, page int) {
		if n.Page > 0 {
			page = n.Page
		}
		if n.Title != "" {
			if !n.Generated {
				add(n.Title, crumbs, page)
			}
			crumbs = append(crumbs[:len(crumbs):len(crumbs)], n.Title)
		}
		for _, p := range strings.Split(n.Text, "\n\n") {
			if p = strings.TrimSpace(p); p != "" {
				add(p, crumbs, page)
			}
		}
		for _, c := range n.Children {
			walk(c, crumbs, page)
		}
	}
	for _, c := range t.Children {
		walk(c, nil, 0)
	}
	return out
}

// Texts returns the paragraph texts in order.
func Texts(ps []Paragraph) []string {
	out := make([]string, len(ps))
	for i, p := range ps {
		out[i] = p.Text
	}
	return out
}
