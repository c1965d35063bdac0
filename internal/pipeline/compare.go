package pipeline

import (
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/dgallion1/docrevise/internal/changes"
	"github.com/dgallion1/docrevise/internal/docmodel"
	"github.com/dgallion1/docrevise/internal/textdiff"
)

// Comparison lists every difference between two versions of a document.
type Comparison struct {
	Changes []changes.Record `json:"todas_mudancas"`
	// Marked is a copy of the revised document with each difference marked
	// and a summary at the top.
	Marked *docmodel.Document `json:"-"`
}

// Compare diffs body paragraphs by position, then table cells by position.
// Tables or cells present in only one version are skipped.
func Compare(original, revised *docmodel.Document, opts changes.Options, log *slog.Logger) (*Comparison, error) {
	data, err := revised.Bytes()
	if err != nil {
		return nil, fmt.Errorf("copy revised document: %w", err)
	}
	marked, err := docmodel.Parse(data)
	if err != nil {
		return nil, fmt.Errorf("copy revised document: %w", err)
	}

	cmp := &Comparison{Marked: marked}
	op, rp, mp := original.Paragraphs(), revised.Paragraphs(), marked.Paragraphs()
	n := 0
	for i := range max(len(op), len(rp)) {
		o, r := paragraphText(op, i), paragraphText(rp, i)
		if strings.TrimSpace(o) == "" && strings.TrimSpace(r) == "" {
			continue
		}
		n++
		if o == r {
			continue
		}
		loc := fmt.Sprintf("Parágrafo %d", n)
		log.Debug("paragraph changed", "location", loc)
		cmp.Changes = append(cmp.Changes, changes.Annotate(changes.Classify(o, r, opts), n, loc)...)
		if i < len(mp) {
			mp[i].Rewrite(docmodel.MarkSegments(o, r, textdiff.Chars))
		}
	}

	ot, rt, mt := original.Tables(), revised.Tables(), marked.Tables()
	for ti := range min(len(ot), len(rt)) {
		for r := range min(ot[ti].Rows(), rt[ti].Rows()) {
			for c := range min(ot[ti].Cols(r), rt[ti].Cols(r)) {
				oc, rc, mc := ot[ti].Cell(r, c), rt[ti].Cell(r, c), mt[ti].Cell(r, c)
				for pi := range max(len(oc), len(rc)) {
					o, rv := paragraphText(oc, pi), paragraphText(rc, pi)
					if o == rv || (strings.TrimSpace(o) == "" && strings.TrimSpace(rv) == "") {
						continue
					}
					loc := fmt.Sprintf("Tabela %d, Célula (%d,%d)", ti+1, r+1, c+1)
					recs := changes.Annotate(changes.Classify(o, rv, opts), n, loc)
					for k := range recs {
						recs[k].Paragraph = 0
					}
					cmp.Changes = append(cmp.Changes, recs...)
					if pi < len(mc) {
						mc[pi].Rewrite(docmodel.MarkSegments(o, rv, textdiff.Chars))
					}
				}
			}
		}
	}

	addSummary(marked, cmp.Changes)
	log.Info("comparison finished", "changes", len(cmp.Changes))
	return cmp, nil
}

func paragraphText(ps []*docmodel.Paragraph, i int) string {
	if i < len(ps) {
		return ps[i].Text()
	}
	return ""
}

// addSummary inserts the change summary before the document's content.
func addSummary(d *docmodel.Document, recs []changes.Record) {
	at := 0
	next := func() *docmodel.Paragraph {
		p := d.InsertParagraph(at)
		at++
		return p
	}

	next().AddRun("RELATÓRIO DETALHADO DE TODAS AS MUDANÇAS", docmodel.Style{Bold: true, Size: 36})
	next().AddRun(fmt.Sprintf("TOTAL DE MUDANÇAS DETECTADAS: %d", len(recs)), docmodel.Style{Bold: true})

	counts := changes.CountByKind(recs)
	kinds := make([]changes.Kind, 0, len(counts))
	for k := range counts {
		kinds = append(kinds, k)
	}
	sort.Slice(kinds, func(i, j int) bool {
		if counts[kinds[i]] != counts[kinds[j]] {
			return counts[kinds[i]] > counts[kinds[j]]
		}
		return kinds[i] < kinds[j]
	})
	for _, k := range kinds {
		next().AddRun(fmt.Sprintf("• %s: %d", strings.ToUpper(string(k)), counts[k]), docmodel.Style{})
	}

	legend := next()
	legend.AddRun("LEGENDA: ", docmodel.Style{Bold: true})
	legend.AddRun("texto removido", docmodel.RemovedStyle)
	legend.AddRun(" | ", docmodel.Style{})
	legend.AddRun("texto adicionado", docmodel.AddedStyle)

	next().AddRun(strings.Repeat("=", 70), docmodel.Style{})
	next().AddRun("LISTA DE TODAS AS MUDANÇAS", docmodel.Style{Bold: true, Size: 28})
	for i, r := range recs {
		p := next()
		p.AddRun(fmt.Sprintf("%d. %s: ", i+1, r.Location), docmodel.Style{Bold: true})
		p.AddRun(fmt.Sprintf("[%s] ", strings.ToUpper(string(r.Kind))), docmodel.Style{Color: "00008B"})
		p.AddRun(r.Description, docmodel.Style{})
		if ctx := []rune(r.OriginalFull); len(ctx) > 50 {
			p.AddRun(fmt.Sprintf(" Contexto: %q", string(ctx[:50])+"..."), docmodel.Style{Size: 20, Color: "808080"})
		}
	}
	next().AddRun(strings.Repeat("=", 70), docmodel.Style{})
	next().AddRun("DOCUMENTO REVISADO COM TODAS AS MARCAÇÕES:", docmodel.Style{Bold: true})
}
