// Package patch splices text corrections into a sequence of formatted runs
// without touching the formatting of runs outside the corrected span.
package patch

import "strings"

// Run is a span of text that shares one set of formatting attributes.
// Implementations keep their formatting when SetText is called.
type Run interface {
	Text() string
	SetText(string)
}

// TextRun is an in-memory Run with no formatting.
type TextRun struct {
	Value string
}

func (r *TextRun) Text() string      { return r.Value }
func (r *TextRun) SetText(s string) { r.Value = s }

// TextRuns wraps plain strings as runs.
func TextRuns(texts ...string) []Run {
	out := make([]Run, len(texts))
	for i, t := range texts {
		out[i] = &TextRun{Value: t}
	}
	return out
}

// Text concatenates the text of runs in order.
func Text(runs []Run) string {
	var b strings.Builder
	for _, r := range runs {
		b.WriteString(r.Text())
	}
	return b.String()
}

// Apply replaces the first occurrence of target in the concatenated run text
// with replacement. The first run overlapping the target absorbs the whole
// replacement; later overlapping runs keep only the text past the target.
// Runs outside the target are not touched. Apply reports false and changes
// nothing when target is empty or absent.
func Apply(runs []Run, target, replacement string) bool {
	if target == "" {
		return false
	}
	texts := make([]string, len(runs))
	for i, r := range runs {
		texts[i] = r.Text()
	}
	start := strings.Index(strings.Join(texts, ""), target)
	if start < 0 {
		return false
	}
	end := start + len(target)

	offset := 0
	placed := false
	for i, text := range texts {
		rs, re := offset, offset+len(text)
		offset = re
		if re <= start || rs >= end {
			continue
		}
		var prefix, suffix string
		if start > rs {
			prefix = text[:start-rs]
		}
		if end < re {
			suffix = text[end-rs:]
		}
		if !placed {
			runs[i].SetText(prefix + replacement + suffix)
			placed = true
			continue
		}
		runs[i].SetText(prefix + suffix)
	}
	return true
}

// Snapshot captures the current text of every run.
func Snapshot(runs []Run) []string {
	out := make([]string, len(runs))
	for i, r := range runs {
		out[i] = r.Text()
	}
	return out
}

// Restore sets run texts back to a snapshot taken with Snapshot.
func Restore(runs []Run, texts []string) {
	for i, r := range runs {
		if i < len(texts) && r.Text() != texts[i] {
			r.SetText(texts[i])
		}
	}
}
