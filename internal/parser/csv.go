package parser

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/dgallion1/docrevise/internal/doctree"
)

// CSVParser handles CSV. Each row is a section "Linha N" whose text cells
// are its paragraphs; empty and numeric cells are skipped.
type CSVParser struct{}

func (p *CSVParser) Parse(r io.Reader, filename string) (*doctree.DocTree, error) {
	reader := csv.NewReader(r)
	reader.LazyQuotes = true
	reader.TrimLeadingSpace = true
	reader.FieldsPerRecord = -1

	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parse csv: %w", err)
	}

	tree := &doctree.DocTree{Title: baseTitle(filename)}
	for i, row := range records {
		var cells []string
		for _, cell := range row {
			cell = strings.TrimSpace(cell)
			if cell == "" || isNumber(cell) {
				continue
			}
			cells = append(cells, cell)
		}
		if len(cells) == 0 {
			continue
		}
		tree.Children = append(tree.Children, &doctree.DocNode{
			Title:     fmt.Sprintf("Linha %d", i+1),
			Generated: true,
			Text:      strings.Join(cells, "\n\n"),
		})
	}
	return tree, nil
}

func isNumber(s string) bool {
	_, err := strconv.ParseFloat(strings.ReplaceAll(s, ",", "."), 64)
	return err == nil
}
