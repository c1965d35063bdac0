package report

import (
	"fmt"
	"sort"
	"strings"

	"github.com/dgallion1/docrevise/internal/changes"
	"github.com/dgallion1/docrevise/internal/docmodel"
	"github.com/dgallion1/docrevise/internal/textdiff"
)

var (
	titleStyle   = docmodel.Style{Bold: true, Size: 40}
	headingStyle = docmodel.Style{Bold: true, Size: 32}
	labelStyle   = docmodel.Style{Bold: true}
	plain        = docmodel.Style{}
)

// Visual renders entries as a document: a header with counts and a legend,
// then one section per page with a word-level marked diff per entry.
// Entries are expected in page order, as Load returns them.
func Visual(entries []Entry, source string) *docmodel.Document {
	d := docmodel.New()

	d.AddParagraph().Center().AddRun("Relatório de Correções do Livro", titleStyle)
	if source != "" {
		p := d.AddParagraph()
		p.AddRun("Arquivo de origem: ", labelStyle)
		p.AddRun(source, plain)
	}
	d.AddParagraph().AddRun(fmt.Sprintf("Total de correções: %d", len(entries)), labelStyle)
	for _, line := range kindCounts(entries) {
		d.AddParagraph().AddRun(line, plain)
	}

	legend := d.AddParagraph()
	legend.AddRun("Legenda: ", labelStyle)
	legend.AddRun("texto removido", docmodel.RemovedStyle)
	legend.AddRun(" | ", plain)
	legend.AddRun("texto adicionado", docmodel.AddedStyle)

	if len(entries) == 0 {
		d.AddParagraph().AddRun("Nenhuma correção encontrada.", plain)
		return d
	}

	page, item := -1, 0
	for _, e := range entries {
		if e.Page != page {
			if page != -1 {
				pageSeparator(d)
			}
			page, item = e.Page, 0
			d.AddParagraph().AddRun(fmt.Sprintf("Correções na Página %d", e.Page), headingStyle)
		} else {
			d.AddParagraph().AddRun(strings.Repeat("---", 10), plain)
		}
		item++
		writeEntry(d, item, e)
	}
	return d
}

func writeEntry(d *docmodel.Document, i int, e Entry) {
	para := "N/A"
	if e.Paragraph > 0 {
		para = fmt.Sprint(e.Paragraph)
	}
	head := d.AddParagraph()
	head.AddRun(fmt.Sprintf("Item de Correção %d (Parágrafo: %s)", i, para), labelStyle)
	if e.Location != "" && e.Paragraph == 0 {
		head.AddRun(" "+e.Location, plain)
	}

	p := d.AddParagraph()
	p.AddRun("Resultado Visual: ", labelStyle)
	for _, seg := range docmodel.MarkSegments(e.Original, e.Revised, textdiff.Words) {
		if seg.Text == "" {
			continue
		}
		st := plain
		if seg.Style != nil {
			st = *seg.Style
		}
		p.AddRun(seg.Text, st)
	}
}

func pageSeparator(d *docmodel.Document) {
	d.AddParagraph()
	d.AddParagraph().Center().AddRun(strings.Repeat("—", 70), docmodel.Style{Size: 16})
	d.AddParagraph()
}

// kindCounts lists per-kind counts in the change kinds' display order;
// kinds outside that list follow alphabetically.
func kindCounts(entries []Entry) []string {
	counts := make(map[string]int)
	for _, e := range entries {
		if e.Kind != "" {
			counts[e.Kind]++
		}
	}
	rank := func(k string) int {
		for i, known := range changes.Kinds {
			if string(known) == k {
				return i
			}
		}
		return len(changes.Kinds)
	}
	kinds := make([]string, 0, len(counts))
	for k := range counts {
		kinds = append(kinds, k)
	}
	sort.Slice(kinds, func(i, j int) bool {
		if ri, rj := rank(kinds[i]), rank(kinds[j]); ri != rj {
			return ri < rj
		}
		return kinds[i] < kinds[j]
	})
	lines := make([]string, len(kinds))
	for i, k := range kinds {
		lines[i] = fmt.Sprintf("• %s: %d", k, counts[k])
	}
	return lines
}

// WriteVisual loads a JSON report from in and saves its visual rendering
// to out.
func WriteVisual(in, out string) (int, error) {
	entries, err := LoadFile(in)
	if err != nil {
		return 0, err
	}
	if err := Visual(entries, in).Save(out); err != nil {
		return 0, fmt.Errorf("save visual report: %w", err)
	}
	return len(entries), nil
}
