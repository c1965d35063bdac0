// Package protect decides which text units must never be modified.
//
// Rules are an ordered list of predicates; the first match wins. ClassifyAll
// adds the context-dependent behaviour that single-unit classification
// cannot see: a trailing reference marker protects the text above it, and
// citation or poem lead-ins protect the lines that follow them.
package protect

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"
)

// Rule IDs.
const (
	QuizOption     = "quiz-option"
	CurriculumCode = "curriculum-code"
	URL            = "url"
	Bibliography   = "bibliography"
	AnswerKey      = "answer-key"
	Indented       = "indented"
	Reference      = "reference"
)

// Context reasons.
const (
	Citation = "citation"
	Poem     = "poem"
)

// Rule is a named predicate over a single unit's text.
type Rule struct {
	ID    string
	Match func(text string) bool
}

// Verdict is the outcome for one unit.
type Verdict struct {
	Protected bool   `json:"protected"`
	Reason    string `json:"reason,omitempty"`
}

var (
	quizRe       = regexp.MustCompile(`^\(?[a-eA-E]\s?[).]\s`)
	curriculumRe = regexp.MustCompile(`\b(EF|EM)\d{2}[A-Z]{2}\d{2}\b`)
	urlRe        = regexp.MustCompile(`https?://\S+`)
	surnameRe    = regexp.MustCompile(`^[\p{Lu}]+,\s+\p{Lu}\p{Ll}+`)
	publisherRe  = regexp.MustCompile(`\b(Editora|Ed\.|Publisher|Press)`)
	numberedRe   = regexp.MustCompile(`^\d+[.)]`)
	referenceRe  = regexp.MustCompile(`(?i)(fonte|dispon[ií]vel em|extra[ií]do de|adaptado de|refer[êe]ncia|source|retrieved from)\s*:`)
	signatureRe  = regexp.MustCompile(`^[—–]\s*\p{Lu}`)
)

// DefaultRules returns the built-in rules in evaluation order.
func DefaultRules() []Rule {
	return []Rule{
		{QuizOption, func(s string) bool {
			return quizRe.MatchString(strings.TrimLeft(s, " \t"))
		}},
		{CurriculumCode, curriculumRe.MatchString},
		{URL, urlRe.MatchString},
		{Bibliography, func(s string) bool {
			return surnameRe.MatchString(s) && publisherRe.MatchString(s)
		}},
		{AnswerKey, func(s string) bool {
			up := strings.ToUpper(strings.TrimSpace(s))
			return strings.HasPrefix(up, "GABARITO") || strings.HasPrefix(up, "ANSWER KEY")
		}},
		{Indented, func(s string) bool {
			return strings.HasPrefix(s, "    ") || strings.HasPrefix(s, "\t")
		}},
		{Reference, IsReferenceMarker},
	}
}

// RuleIDs lists the IDs of DefaultRules in order.
func RuleIDs() []string {
	rules := DefaultRules()
	out := make([]string, len(rules))
	for i, r := range rules {
		out[i] = r.ID
	}
	return out
}

// IsReferenceMarker reports whether s carries a source line or signature.
func IsReferenceMarker(s string) bool {
	t := strings.TrimSpace(s)
	if referenceRe.MatchString(t) {
		return true
	}
	return signatureRe.MatchString(t) && utf8.RuneCountInString(t) <= 80
}

// Options controls the context-dependent behaviour of ClassifyAll.
type Options struct {
	// MaxBacktrack bounds how many units above a reference marker are protected.
	MaxBacktrack int
	// ContextTracking protects units following a citation or poem lead-in.
	ContextTracking bool
	// VerseHeuristic protects short unterminated lines that follow a short line.
	VerseHeuristic bool
}

// DefaultOptions returns the options used when none are configured.
func DefaultOptions() Options {
	return Options{MaxBacktrack: 15, ContextTracking: true, VerseHeuristic: true}
}

// Classifier evaluates an ordered set of enabled rules.
type Classifier struct {
	rules []Rule
	opts  Options
}

// New builds a classifier from rule IDs in the order given. A nil list
// enables every default rule.
func New(ids []string, opts Options) (*Classifier, error) {
	all := DefaultRules()
	if ids == nil {
		return &Classifier{rules: all, opts: opts}, nil
	}
	byID := make(map[string]Rule, len(all))
	for _, r := range all {
		byID[r.ID] = r
	}
	c := &Classifier{opts: opts}
	for _, id := range ids {
		r, ok := byID[id]
		if !ok {
			return nil, fmt.Errorf("unknown protection rule %q", id)
		}
		c.rules = append(c.rules, r)
	}
	return c, nil
}

// Rules returns the enabled rules in order.
func (c *Classifier) Rules() []Rule {
	return c.rules
}

// Classify evaluates the rules against one unit's text.
func (c *Classifier) Classify(text string) Verdict {
	for _, r := range c.rules {
		if r.Match(text) {
			return Verdict{Protected: true, Reason: r.ID}
		}
	}
	return Verdict{}
}

func (c *Classifier) enabled(id string) bool {
	for _, r := range c.rules {
		if r.ID == id {
			return true
		}
	}
	return false
}

var leadIns = []string{
	"leia o texto:", "observe o poema:", "leia o poema:",
	"texto:", "poema:", "leia a seguir:", "leia:",
	"o poema a seguir", "o texto abaixo", "a poesia",
}

// ClassifyAll classifies an ordered sequence of units (blank units
// included, as they delimit passages).
func (c *Classifier) ClassifyAll(texts []string) []Verdict {
	out := make([]Verdict, len(texts))
	var context string
	start := 0

	for i, raw := range texts {
		text := strings.TrimSpace(raw)

		if context != "" && (text == "" || numberedRe.MatchString(text)) {
			context = ""
		}
		if c.opts.ContextTracking && text != "" {
			lower := strings.ToLower(text)
			for _, m := range leadIns {
				if strings.Contains(lower, m) {
					context = Citation
					if strings.Contains(lower, "poema") || strings.Contains(lower, "poesia") {
						context = Poem
					}
					start = i + 1
					break
				}
			}
		}
		if text == "" {
			continue
		}

		if v := c.Classify(raw); v.Protected {
			out[i] = v
			// A source line often carries a URL, so the url rule may have
			// claimed it first.
			if IsReferenceMarker(raw) {
				c.backtrack(texts, out, i)
			}
			continue
		}
		switch {
		case context == Poem && i >= start:
			out[i] = Verdict{Protected: true, Reason: Poem}
		case context == Citation && i >= start:
			out[i] = Verdict{Protected: true, Reason: Citation}
		case c.opts.VerseHeuristic && isVerse(text, texts, i):
			out[i] = Verdict{Protected: true, Reason: Poem}
		}
	}
	return out
}

// backtrack protects the units above a reference marker at i, stopping at a
// blank unit, a numbered item, another reference marker, or MaxBacktrack.
func (c *Classifier) backtrack(texts []string, out []Verdict, i int) {
	if !c.enabled(Reference) {
		return
	}
	for j := i - 1; j >= 0; j-- {
		if c.opts.MaxBacktrack > 0 && i-j > c.opts.MaxBacktrack {
			return
		}
		t := strings.TrimSpace(texts[j])
		if t == "" || numberedRe.MatchString(t) || IsReferenceMarker(t) {
			return
		}
		if !out[j].Protected {
			out[j] = Verdict{Protected: true, Reason: Reference}
		}
	}
}

func isVerse(text string, texts []string, i int) bool {
	if i == 0 || len(text) >= 60 || strings.HasSuffix(text, ".") || strings.ContainsAny(text, ",;") {
		return false
	}
	return len(strings.TrimSpace(texts[i-1])) < 60
}
