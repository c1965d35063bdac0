// Package changes turns pairs of original/revised strings into typed change
// records suitable for reports.
package changes

import (
	"fmt"
	"sort"
	"strings"

	"github.com/dgallion1/docrevise/internal/textdiff"
)

// Kind is the change category. Values are the labels used in persisted reports.
type Kind string

const (
	Punctuation  Kind = "pontuação"
	Substitution Kind = "substituição"
	Deletion     Kind = "remoção"
	Insertion    Kind = "adição"
	FullRewrite  Kind = "mudança geral"
)

// Kinds lists every kind in display order.
var Kinds = []Kind{Punctuation, Substitution, Deletion, Insertion, FullRewrite}

// Record is one classified change. Error is always a verbatim substring of
// the original at Position (a rune offset), except for FullRewrite records
// whose Error is the whole original.
type Record struct {
	Kind         Kind   `json:"type"`
	Error        string `json:"error"`
	Correction   string `json:"correction"`
	Position     int    `json:"position"`
	Description  string `json:"description"`
	Paragraph    int    `json:"paragraph_number"`
	Location     string `json:"location,omitempty"`
	Page         int    `json:"page"`
	OriginalFull string `json:"original_full"`
	RevisedFull  string `json:"revised_full"`
}

// Options tunes Classify.
type Options struct {
	Granularity textdiff.Granularity
	// Normalize, when set, defines token equality for the diff.
	Normalize func(string) string
}

// Classify returns the changes that turn original into revised, ordered by
// their position in original.
func Classify(original, revised string, opts Options) []Record {
	if original == revised {
		return nil
	}
	base := Record{OriginalFull: original, RevisedFull: revised}

	switch revised {
	case original + ".":
		return []Record{trailing(base, ".", "Adicionado ponto final")}
	case original + ",":
		return []Record{trailing(base, ",", "Adicionada vírgula")}
	}

	script := textdiff.DiffFunc(original, revised, opts.Granularity, opts.Normalize)
	var out []Record
	for _, op := range script.Opcodes {
		if op.Op == textdiff.Equal {
			continue
		}
		r := base
		r.Error, r.Correction = script.Spans(op)
		r.Position = script.Offset(op.I1)
		switch op.Op {
		case textdiff.Replace:
			r.Kind = Substitution
			r.Description = fmt.Sprintf("%q → %q", r.Error, r.Correction)
		case textdiff.Delete:
			r.Kind = Deletion
			r.Description = fmt.Sprintf("Removido: %q", r.Error)
		case textdiff.Insert:
			r.Kind = Insertion
			r.Description = fmt.Sprintf("Adicionado: %q", r.Correction)
		}
		out = append(out, r)
	}

	if len(out) == 0 {
		r := base
		r.Kind = FullRewrite
		r.Error = original
		r.Correction = revised
		r.Description = "Texto completamente alterado"
		out = append(out, r)
	}
	return out
}

func trailing(base Record, mark, desc string) Record {
	base.Kind = Punctuation
	base.Correction = mark
	base.Position = len([]rune(base.OriginalFull))
	base.Description = desc
	return base
}

// Annotate stamps location details onto records.
func Annotate(rs []Record, paragraph int, location string) []Record {
	for i := range rs {
		rs[i].Paragraph = paragraph
		rs[i].Location = location
		rs[i].Page = PageEstimate(paragraph)
	}
	return rs
}

// PageEstimate guesses the page of a paragraph at roughly three paragraphs
// per page.
func PageEstimate(paragraph int) int {
	if paragraph < 0 {
		paragraph = 0
	}
	return paragraph/3 + 1
}

// Apply splices a single record into text at its recorded offset.
func Apply(text string, r Record) (string, error) {
	if r.Kind == FullRewrite {
		if text != r.Error {
			return text, fmt.Errorf("full rewrite does not match current text")
		}
		return r.Correction, nil
	}
	runes := []rune(text)
	errRunes := []rune(r.Error)
	end := r.Position + len(errRunes)
	if r.Position < 0 || end > len(runes) {
		return text, fmt.Errorf("record at %d out of range (len %d)", r.Position, len(runes))
	}
	if string(runes[r.Position:end]) != r.Error {
		return text, fmt.Errorf("text at %d is not %q", r.Position, r.Error)
	}
	var b strings.Builder
	b.WriteString(string(runes[:r.Position]))
	b.WriteString(r.Correction)
	b.WriteString(string(runes[end:]))
	return b.String(), nil
}

// ApplyAll applies records right to left so earlier offsets stay valid.
func ApplyAll(text string, rs []Record) (string, error) {
	sorted := make([]Record, len(rs))
	copy(sorted, rs)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Position > sorted[j].Position })
	var err error
	for _, r := range sorted {
		if text, err = Apply(text, r); err != nil {
			return text, err
		}
	}
	return text, nil
}

// CountByKind tallies records per kind.
func CountByKind(rs []Record) map[Kind]int {
	out := make(map[Kind]int)
	for _, r := range rs {
		out[r.Kind]++
	}
	return out
}
