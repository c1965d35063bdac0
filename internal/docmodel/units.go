package docmodel

import (
	"fmt"
	"strings"

	"github.com/dgallion1/docrevise/internal/patch"
)

// UnitKind says where a text unit lives.
type UnitKind string

const (
	KindParagraph UnitKind = "paragraph"
	KindTable     UnitKind = "table"
)

// TextUnit is one paragraph's worth of revisable text.
type TextUnit struct {
	// Ordinal numbers non-blank units from 1 in scan order; blank units get 0.
	Ordinal int
	Kind    UnitKind
	// Index is the body paragraph index for paragraph units.
	Index int
	// Table, Row, Col and Para locate table-cell units.
	Table, Row, Col, Para int

	Location string
	Original string
	Runs     []patch.Run

	Protected bool
	Reason    string
}

// Text is the unit's current text.
func (u *TextUnit) Text() string {
	return patch.Text(u.Runs)
}

// Blank reports whether the unit holds only whitespace.
func (u *TextUnit) Blank() bool {
	return strings.TrimSpace(u.Original) == ""
}

// Changed reports whether the unit's text differs from its original.
func (u *TextUnit) Changed() bool {
	return u.Text() != u.Original
}

// Units scans body paragraphs, then table cells, into text units. Blank
// body paragraphs are included with Ordinal 0; blank cell paragraphs are
// skipped.
func (d *Document) Units() []*TextUnit {
	var out []*TextUnit
	n := 0
	for i, p := range d.Paragraphs() {
		u := &TextUnit{
			Kind:     KindParagraph,
			Index:    i,
			Original: p.Text(),
			Runs:     p.PatchRuns(),
		}
		if !u.Blank() {
			n++
			u.Ordinal = n
			u.Location = fmt.Sprintf("Parágrafo %d", n)
		}
		out = append(out, u)
	}
	for ti, t := range d.Tables() {
		for r := 0; r < t.Rows(); r++ {
			for c := 0; c < t.Cols(r); c++ {
				for pi, p := range t.Cell(r, c) {
					text := p.Text()
					if strings.TrimSpace(text) == "" {
						continue
					}
					n++
					out = append(out, &TextUnit{
						Ordinal:  n,
						Kind:     KindTable,
						Table:    ti,
						Row:      r,
						Col:      c,
						Para:     pi,
						Location: fmt.Sprintf("Tabela %d, Célula (%d,%d)", ti+1, r+1, c+1),
						Original: text,
						Runs:     p.PatchRuns(),
					})
				}
			}
		}
	}
	return out
}

// PlainUnits builds paragraph units over in-memory runs, one per text.
func PlainUnits(texts []string) []*TextUnit {
	out := make([]*TextUnit, len(texts))
	n := 0
	for i, t := range texts {
		u := &TextUnit{
			Kind:     KindParagraph,
			Index:    i,
			Original: t,
			Runs:     patch.TextRuns(t),
		}
		if !u.Blank() {
			n++
			u.Ordinal = n
			u.Location = fmt.Sprintf("Parágrafo %d", n)
		}
		out[i] = u
	}
	return out
}
