// Package docmodel wraps go-docx with the narrow view the revision pipeline
// needs: body paragraphs, table cells, runs and their basic styling.
package docmodel

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/fumiama/go-docx"
)

// Document is an opened or newly created .docx document.
type Document struct {
	doc *docx.Docx
	// data backs the zip reader go-docx keeps for parsed documents.
	data []byte
}

// Open reads and parses a .docx file.
func Open(path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	d, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return d, nil
}

// Parse parses .docx bytes.
func Parse(data []byte) (*Document, error) {
	doc, err := docx.Parse(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("parse docx: %w", err)
	}
	return &Document{doc: doc, data: data}, nil
}

// New creates an empty document using the default template.
func New() *Document {
	return &Document{doc: docx.New().WithDefaultTheme()}
}

// WriteTo serializes the document.
func (d *Document) WriteTo(w io.Writer) (int64, error) {
	return d.doc.WriteTo(w)
}

// Bytes serializes the document into memory.
func (d *Document) Bytes() ([]byte, error) {
	var buf bytes.Buffer
	if _, err := d.doc.WriteTo(&buf); err != nil {
		return nil, fmt.Errorf("write docx: %w", err)
	}
	return buf.Bytes(), nil
}

// Save writes the document to path via a temporary file in the same directory.
func (d *Document) Save(path string) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".docrevise-*.docx")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	if _, err := d.doc.WriteTo(tmp); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("write %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("rename to %s: %w", path, err)
	}
	return nil
}

// Paragraphs returns the top-level body paragraphs in document order.
func (d *Document) Paragraphs() []*Paragraph {
	var out []*Paragraph
	for _, item := range d.doc.Document.Body.Items {
		if p, ok := item.(*docx.Paragraph); ok {
			out = append(out, &Paragraph{p: p})
		}
	}
	return out
}

// Tables returns the top-level body tables in document order.
func (d *Document) Tables() []*Table {
	var out []*Table
	for _, item := range d.doc.Document.Body.Items {
		if t, ok := item.(*docx.Table); ok {
			out = append(out, &Table{t: t})
		}
	}
	return out
}

// AddParagraph appends a paragraph before the trailing section properties.
func (d *Document) AddParagraph() *Paragraph {
	return d.InsertParagraph(-1)
}

// InsertParagraph inserts an empty paragraph at body item index i. A
// negative i appends.
func (d *Document) InsertParagraph(i int) *Paragraph {
	p := d.doc.AddParagraph()
	body := &d.doc.Document.Body
	items := body.Items[:len(body.Items)-1]

	end := len(items)
	if end > 0 {
		if _, ok := items[end-1].(*docx.SectPr); ok {
			end--
		}
	}
	if i < 0 || i > end {
		i = end
	}
	items = append(items, nil)
	copy(items[i+1:], items[i:])
	items[i] = p
	body.Items = items
	return &Paragraph{p: p}
}

// AddTable appends a rows x cols table with one empty paragraph per cell.
func (d *Document) AddTable(rows, cols int) *Table {
	t := d.doc.AddTable(rows, cols, 0, nil)
	for _, row := range t.TableRows {
		for _, cell := range row.TableCells {
			cell.AddParagraph()
		}
	}
	body := &d.doc.Document.Body
	n := len(body.Items)
	if n >= 2 {
		if sect, ok := body.Items[n-2].(*docx.SectPr); ok {
			body.Items[n-2], body.Items[n-1] = t, sect
		}
	}
	return &Table{t: t}
}

// Table is a top-level table.
type Table struct {
	t *docx.Table
}

// Rows returns the number of rows.
func (t *Table) Rows() int { return len(t.t.TableRows) }

// Cell returns the paragraphs of the cell at row r, column c.
func (t *Table) Cell(r, c int) []*Paragraph {
	if r < 0 || r >= len(t.t.TableRows) {
		return nil
	}
	cells := t.t.TableRows[r].TableCells
	if c < 0 || c >= len(cells) {
		return nil
	}
	out := make([]*Paragraph, len(cells[c].Paragraphs))
	for i, p := range cells[c].Paragraphs {
		out[i] = &Paragraph{p: p}
	}
	return out
}

// Cols returns the number of cells in row r.
func (t *Table) Cols(r int) int {
	if r < 0 || r >= len(t.t.TableRows) {
		return 0
	}
	return len(t.t.TableRows[r].TableCells)
}
