package pipeline

import (
	"regexp"
	"slices"
	"strings"
	"unicode/utf8"

	"github.com/dgallion1/docrevise/internal/review"
)

// Reasons a proposal is not applied.
const (
	RejectNotFound      = "not_found"
	RejectProtected     = "protected"
	RejectDemonstrative = "demonstrative"
	RejectURL           = "url"
	RejectQuoted        = "quoted"
	RejectLengthDelta   = "length_delta"
	RejectPatchFailed   = "patch_failed"
)

// Reasons a unit's corrections are reverted.
const (
	RevertMarkup = "markup_changed"
	RevertURL    = "url_changed"
	RevertLength = "length_ratio"
)

var demonstratives = map[string]bool{
	"este": true, "esse": true, "esta": true,
	"essa": true, "isto": true, "isso": true,
}

var (
	urlRe    = regexp.MustCompile(`https?://\S+`)
	markupRe = regexp.MustCompile(`\[[^\]]+\]`)
)

const quoteChars = "\"“”"

// checkProposal returns the reason p must not be applied to text, or "".
func checkProposal(text string, p review.Proposal, protected bool, maxDelta int) string {
	if protected {
		return RejectProtected
	}
	pos := strings.Index(text, p.Error)
	if pos < 0 {
		return RejectNotFound
	}
	if demonstratives[strings.ToLower(strings.TrimSpace(p.Correction))] {
		return RejectDemonstrative
	}
	if strings.Contains(p.Error, "http") || insideURL(text, pos, pos+len(p.Error)) {
		return RejectURL
	}
	if quotesBefore(text[:pos])%2 == 1 {
		return RejectQuoted
	}
	delta := utf8.RuneCountInString(p.Correction) - utf8.RuneCountInString(p.Error)
	if maxDelta > 0 && (delta > maxDelta || -delta > maxDelta) {
		return RejectLengthDelta
	}
	return ""
}

func insideURL(text string, start, end int) bool {
	for _, loc := range urlRe.FindAllStringIndex(text, -1) {
		if start < loc[1] && end > loc[0] {
			return true
		}
	}
	return false
}

func quotesBefore(s string) int {
	n := 0
	for _, r := range s {
		if strings.ContainsRune(quoteChars, r) {
			n++
		}
	}
	return n
}

// sanityCheck compares a corrected unit with its original and returns the
// reason the corrections should be undone, or "".
func sanityCheck(original, revised string) string {
	if !sameSet(markupRe.FindAllString(original, -1), markupRe.FindAllString(revised, -1)) {
		return RevertMarkup
	}
	if !sameSet(urlRe.FindAllString(original, -1), urlRe.FindAllString(revised, -1)) {
		return RevertURL
	}
	n := utf8.RuneCountInString(original)
	if n >= 20 {
		ratio := float64(utf8.RuneCountInString(revised)) / float64(n)
		if ratio < 0.7 || ratio > 1.3 {
			return RevertLength
		}
	}
	return ""
}

func sameSet(a, b []string) bool {
	slices.Sort(a)
	slices.Sort(b)
	return slices.Equal(slices.Compact(a), slices.Compact(b))
}
