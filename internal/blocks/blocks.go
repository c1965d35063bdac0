// Package blocks packs text units into bounded batches for review and
// renders a batch as the reviewer's input text.
package blocks

import (
	"fmt"
	"regexp"
	"strings"
)

// Limits bounds a batch. Zero values disable the corresponding limit.
type Limits struct {
	MaxChars int
	MaxUnits int
}

// DefaultLimits returns the limits used when none are configured.
func DefaultLimits() Limits {
	return Limits{MaxChars: 10000, MaxUnits: 100}
}

// Batch is one group of items submitted together.
type Batch[T any] struct {
	Index int
	Items []T
	Chars int
}

// Build packs items greedily left to right. An item that would push the
// current batch past either limit closes it and starts the next one. Items
// are never split; an item larger than MaxChars forms a batch of its own.
func Build[T any](items []T, size func(T) int, lim Limits) []Batch[T] {
	var out []Batch[T]
	var cur Batch[T]
	for _, it := range items {
		n := size(it)
		overflow := (lim.MaxChars > 0 && cur.Chars+n > lim.MaxChars) ||
			(lim.MaxUnits > 0 && len(cur.Items) >= lim.MaxUnits)
		if overflow && len(cur.Items) > 0 {
			out = append(out, cur)
			cur = Batch[T]{Index: len(out)}
		}
		cur.Items = append(cur.Items, it)
		cur.Chars += n
	}
	if len(cur.Items) > 0 {
		out = append(out, cur)
	}
	return out
}

// Item is the rendering view of a text unit.
type Item struct {
	Index    int
	Kind     string
	Location string
	Text     string
}

// Render formats a batch as the reviewer expects it: a header followed by
// one delimited section per item.
func Render(items []Item) string {
	var b strings.Builder
	fmt.Fprintf(&b, "BLOCO COM %d TEXTOS\n\n", len(items))
	b.WriteString("Corrija TODOS os erros de português encontrados.\n\n")
	for _, it := range items {
		fmt.Fprintf(&b, "[TEXTO %d]\n", it.Index)
		fmt.Fprintf(&b, "[TIPO: %s]\n", strings.ToUpper(it.Kind))
		if it.Kind == "table" {
			fmt.Fprintf(&b, "[LOCALIZAÇÃO: %s]\n", it.Location)
		}
		fmt.Fprintf(&b, "[CONTEÚDO: %s]\n", ContentType(it.Text))
		b.WriteString(it.Text)
		b.WriteString("\n")
		fmt.Fprintf(&b, "[FIM_TEXTO_%d]\n\n", it.Index)
	}
	return b.String()
}

var (
	linkRe = regexp.MustCompile(`https?://`)
	yearRe = regexp.MustCompile(`\b\d{4}\b`)
)

var listPrefixes = []string{"•", "-", "1.", "2.", "a.", "I.", "II."}

// ContentType labels text with a hint for the reviewer.
func ContentType(text string) string {
	trimmed := strings.TrimSpace(text)
	switch {
	case len(text) < 80 && !strings.HasSuffix(text, ".") && !strings.HasSuffix(text, "!") &&
		!strings.HasSuffix(text, "?") && !strings.HasSuffix(text, ":"):
		return "TÍTULO/CABEÇALHO"
	case hasAnyPrefix(trimmed, listPrefixes):
		return "ITEM DE LISTA"
	case len(text) < 60 && !strings.HasSuffix(text, ".") && !strings.ContainsAny(text, ",;"):
		return "POSSÍVEL VERSO"
	case linkRe.MatchString(text):
		return "CONTÉM LINK"
	case strings.Count(text, `"`) >= 2 || strings.Count(text, "“")+strings.Count(text, "”") >= 2:
		return "CITAÇÃO"
	case yearRe.MatchString(text) && containsAny(text, "Editora", "ed.", "p.", "In:"):
		return "REFERÊNCIA"
	}
	return "TEXTO NORMAL"
}

func hasAnyPrefix(s string, prefixes []string) bool {
	for _, p := range prefixes {
		if strings.HasPrefix(s, p) {
			return true
		}
	}
	return false
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

// EstimateTokens gives a rough token count from the word count.
func EstimateTokens(text string) int {
	if text == "" {
		return 0
	}
	tokens := int(float64(len(strings.Fields(text))) * 1.33)
	if tokens < 1 {
		tokens = 1
	}
	return tokens
}
