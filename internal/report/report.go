// Package report writes revision and comparison results as JSON and as a
// visual .docx report.
package report

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/dgallion1/docrevise/internal/changes"
	"github.com/dgallion1/docrevise/internal/docmodel"
	"github.com/dgallion1/docrevise/internal/pipeline"
)

// ErrUnknownFormat is returned by Load for JSON that is neither a grouped
// nor a flat change report.
var ErrUnknownFormat = errors.New("unrecognized report format")

// Meta describes the run a report belongs to.
type Meta struct {
	RunID  string
	Source string
	Output string
	Mode   string
	Model  string
}

// Summary holds the headline counts of a revision.
type Summary struct {
	Total         int `json:"total_correcoes"`
	Paragraphs    int `json:"em_paragrafos"`
	Tables        int `json:"em_tabelas"`
	AutoDetected  int `json:"auto_detectadas"`
	Protected     int `json:"textos_protegidos"`
	Reverted      int `json:"revertidas"`
	Rejected      int `json:"rejeitadas"`
	FailedBatches int `json:"blocos_com_falha"`
}

// ProtectedPreview is a protected unit with the start of its text.
type ProtectedPreview struct {
	Index    int    `json:"index"`
	Location string `json:"location"`
	Reason   string `json:"reason"`
	Preview  string `json:"preview"`
}

// Revision is the full report of one revision run.
type Revision struct {
	RunID       string                `json:"run_id,omitempty"`
	Source      string                `json:"source"`
	Output      string                `json:"output,omitempty"`
	Mode        string                `json:"mode,omitempty"`
	Model       string                `json:"model,omitempty"`
	GeneratedAt time.Time             `json:"generated_at"`
	Summary     Summary               `json:"resumo"`
	ByErrorType map[string]int        `json:"por_tipo_erro"`
	Corrections []pipeline.Correction `json:"todas_correcoes"`
	Rejections  []pipeline.Rejection  `json:"rejeicoes"`
	Protected   []ProtectedPreview    `json:"textos_protegidos"`
	Changes     []changes.Record      `json:"todas_mudancas"`
}

// NewRevision builds the report for res. Reverted corrections are listed
// but not counted in the totals.
func NewRevision(meta Meta, res *pipeline.Result) *Revision {
	r := &Revision{
		RunID:       meta.RunID,
		Source:      meta.Source,
		Output:      meta.Output,
		Mode:        meta.Mode,
		Model:       meta.Model,
		GeneratedAt: time.Now().UTC(),
		ByErrorType: make(map[string]int),
		Corrections: nonNil(res.Corrections),
		Rejections:  nonNil(res.Rejections),
		Protected:   []ProtectedPreview{},
		Changes:     nonNil(res.Changes),
	}
	for _, c := range res.Corrections {
		if c.Reverted != "" {
			r.Summary.Reverted++
			continue
		}
		r.Summary.Total++
		switch c.Kind {
		case docmodel.KindParagraph:
			r.Summary.Paragraphs++
		case docmodel.KindTable:
			r.Summary.Tables++
		}
		if c.ErrorType == pipeline.AutoDetected {
			r.Summary.AutoDetected++
		}
		t := c.ErrorType
		if t == "" {
			t = "outros"
		}
		r.ByErrorType[t]++
	}
	for _, p := range res.Protected {
		r.Protected = append(r.Protected, ProtectedPreview{
			Index:    p.TextIndex,
			Location: p.Location,
			Reason:   p.Reason,
			Preview:  preview(p.Text, 50),
		})
	}
	r.Summary.Protected = len(res.Protected)
	r.Summary.Rejected = len(res.Rejections)
	r.Summary.FailedBatches = res.FailedBatches
	return r
}

// Comparison is the report of a document comparison.
type Comparison struct {
	Total   int              `json:"total_mudancas"`
	Changes []changes.Record `json:"todas_mudancas"`
}

func NewComparison(recs []changes.Record) *Comparison {
	return &Comparison{Total: len(recs), Changes: nonNil(recs)}
}

// GroupedEntry is one change in the page-grouped report.
type GroupedEntry struct {
	Paragraph  int    `json:"paragrafo"`
	Error      string `json:"erro"`
	Correction string `json:"correcao"`
	Type       string `json:"tipo,omitempty"`
	Location   string `json:"localizacao,omitempty"`
}

// PageGroup holds the changes estimated to fall on one page.
type PageGroup struct {
	Corrections []GroupedEntry `json:"correções"`
}

// Grouped is the page-grouped change report. Keys are "pagina_N".
type Grouped struct {
	Pages map[string]PageGroup `json:"correções_por_página"`
}

// GroupByPage groups records by their page estimate.
func GroupByPage(recs []changes.Record) *Grouped {
	g := &Grouped{Pages: make(map[string]PageGroup)}
	for _, r := range recs {
		key := fmt.Sprintf("pagina_%d", r.Page)
		pg := g.Pages[key]
		pg.Corrections = append(pg.Corrections, GroupedEntry{
			Paragraph:  r.Paragraph,
			Error:      r.OriginalFull,
			Correction: r.RevisedFull,
			Type:       string(r.Kind),
			Location:   r.Location,
		})
		g.Pages[key] = pg
	}
	return g
}

// Reporter builds the revision report kept with a finished server job.
func Reporter(model string) pipeline.Reporter {
	return func(job pipeline.JobSnapshot, res *pipeline.Result) ([]byte, error) {
		var buf bytes.Buffer
		rev := NewRevision(Meta{RunID: job.ID, Source: job.Filename, Mode: job.Mode, Model: model}, res)
		if err := EncodeJSON(&buf, rev); err != nil {
			return nil, fmt.Errorf("encode report: %w", err)
		}
		return buf.Bytes(), nil
	}
}

// WriteJSON writes v as indented JSON to path.
func WriteJSON(path string, v any) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	if err := EncodeJSON(f, v); err != nil {
		f.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	return f.Close()
}

// EncodeJSON writes v as indented JSON without HTML escaping.
func EncodeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// Entry is one change as shown in the visual report.
type Entry struct {
	Page      int
	Paragraph int
	Location  string
	Kind      string
	Original  string
	Revised   string
}

// Load reads a grouped report, a comparison report or a revision report
// and returns its entries ordered by page.
func Load(r io.Reader) ([]Entry, error) {
	var raw map[string]json.RawMessage
	if err := json.NewDecoder(r).Decode(&raw); err != nil {
		return nil, fmt.Errorf("decode report: %w", err)
	}

	var out []Entry
	switch {
	case raw["correções_por_página"] != nil:
		var pages map[string]PageGroup
		if err := json.Unmarshal(raw["correções_por_página"], &pages); err != nil {
			return nil, fmt.Errorf("decode grouped report: %w", err)
		}
		for key, pg := range pages {
			page := pageNumber(key)
			for _, c := range pg.Corrections {
				out = append(out, Entry{
					Page:      page,
					Paragraph: c.Paragraph,
					Location:  c.Location,
					Kind:      c.Type,
					Original:  c.Error,
					Revised:   c.Correction,
				})
			}
		}
		// Map order is random; keep items in paragraph order within a page.
		sort.SliceStable(out, func(i, j int) bool { return out[i].Paragraph < out[j].Paragraph })
	case raw["todas_mudancas"] != nil:
		var recs []changes.Record
		if err := json.Unmarshal(raw["todas_mudancas"], &recs); err != nil {
			return nil, fmt.Errorf("decode change list: %w", err)
		}
		for _, rec := range recs {
			out = append(out, Entry{
				Page:      rec.Page,
				Paragraph: rec.Paragraph,
				Location:  rec.Location,
				Kind:      string(rec.Kind),
				Original:  rec.OriginalFull,
				Revised:   rec.RevisedFull,
			})
		}
	default:
		return nil, ErrUnknownFormat
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Page < out[j].Page })
	return out, nil
}

// LoadFile is Load over a file.
func LoadFile(path string) ([]Entry, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()
	return Load(f)
}

func pageNumber(key string) int {
	n, err := strconv.Atoi(key[strings.LastIndex(key, "_")+1:])
	if err != nil {
		return 0
	}
	return n
}

func preview(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
