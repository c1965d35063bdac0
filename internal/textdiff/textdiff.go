// Package textdiff computes opcode edit scripts between two token sequences.
//
// Alignment is delegated to diffmatchpatch: every distinct token is interned
// to a private rune, the rune strings are diffed, and the resulting
// equal/delete/insert runs are folded back into opcodes over the token
// indexes. DiffTimeout is disabled so the result is deterministic.
package textdiff

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/sergi/go-diff/diffmatchpatch"
)

// Op is one alignment operation.
type Op int

const (
	Equal Op = iota
	Replace
	Delete
	Insert
)

func (o Op) String() string {
	switch o {
	case Equal:
		return "equal"
	case Replace:
		return "replace"
	case Delete:
		return "delete"
	case Insert:
		return "insert"
	}
	return "unknown"
}

// Opcode maps a[I1:I2] onto b[J1:J2].
type Opcode struct {
	Op     Op
	I1, I2 int
	J1, J2 int
}

// Granularity selects how strings are split into tokens.
type Granularity int

const (
	Words Granularity = iota
	Chars
)

// wordRe splits text into maximal word runs and maximal non-word runs.
var wordRe = regexp.MustCompile(`[\p{L}\p{M}\p{N}_]+|[^\p{L}\p{M}\p{N}_]+`)

// Tokenize splits s at the given granularity. Joining the tokens gives s back.
func Tokenize(s string, g Granularity) []string {
	if s == "" {
		return nil
	}
	if g == Chars {
		out := make([]string, 0, utf8.RuneCountInString(s))
		for _, r := range s {
			out = append(out, string(r))
		}
		return out
	}
	return wordRe.FindAllString(s, -1)
}

// Compare aligns a and b token by token.
func Compare(a, b []string) []Opcode {
	return CompareFunc(a, b, nil)
}

// CompareFunc aligns a and b, treating two tokens as equal when key maps
// them to the same string. A nil key compares tokens verbatim.
func CompareFunc(a, b []string, key func(string) string) []Opcode {
	in := interner{ids: make(map[string]rune)}
	ra := in.encode(a, key)
	rb := in.encode(b, key)

	dmp := diffmatchpatch.New()
	dmp.DiffTimeout = 0
	diffs := dmp.DiffMainRunes(ra, rb, false)

	var ops []Opcode
	i, j := 0, 0
	del, ins := 0, 0
	flush := func() {
		switch {
		case del > 0 && ins > 0:
			ops = append(ops, Opcode{Replace, i, i + del, j, j + ins})
		case del > 0:
			ops = append(ops, Opcode{Delete, i, i + del, j, j})
		case ins > 0:
			ops = append(ops, Opcode{Insert, i, i, j, j + ins})
		}
		i += del
		j += ins
		del, ins = 0, 0
	}
	for _, d := range diffs {
		n := utf8.RuneCountInString(d.Text)
		if n == 0 {
			continue
		}
		switch d.Type {
		case diffmatchpatch.DiffEqual:
			flush()
			ops = append(ops, Opcode{Equal, i, i + n, j, j + n})
			i += n
			j += n
		case diffmatchpatch.DiffDelete:
			del += n
		case diffmatchpatch.DiffInsert:
			ins += n
		}
	}
	flush()
	return ops
}

type interner struct {
	ids map[string]rune
}

// encode maps each token to a rune unique to its key, skipping the
// surrogate range so the rune string survives string conversion.
func (in *interner) encode(tokens []string, key func(string) string) []rune {
	out := make([]rune, len(tokens))
	for n, tok := range tokens {
		k := tok
		if key != nil {
			k = key(tok)
		}
		r, ok := in.ids[k]
		if !ok {
			r = rune(len(in.ids) + 1)
			if r >= 0xD800 {
				r += 0x800
			}
			in.ids[k] = r
		}
		out[n] = r
	}
	return out
}

// Script is an edit script between two strings together with their tokens.
type Script struct {
	A, B    []string
	Opcodes []Opcode

	offsets []int
}

// Diff tokenizes a and b and aligns them.
func Diff(a, b string, g Granularity) Script {
	return DiffFunc(a, b, g, nil)
}

// DiffFunc is Diff with a custom token key.
func DiffFunc(a, b string, g Granularity, key func(string) string) Script {
	ta := Tokenize(a, g)
	tb := Tokenize(b, g)
	s := Script{A: ta, B: tb, Opcodes: CompareFunc(ta, tb, key)}
	s.offsets = make([]int, len(ta)+1)
	for i, tok := range ta {
		s.offsets[i+1] = s.offsets[i] + utf8.RuneCountInString(tok)
	}
	return s
}

// Spans returns the original-side and revised-side text of op.
func (s Script) Spans(op Opcode) (string, string) {
	return strings.Join(s.A[op.I1:op.I2], ""), strings.Join(s.B[op.J1:op.J2], "")
}

// Offset is the rune offset in the original of token index i.
func (s Script) Offset(i int) int {
	if i < 0 || i >= len(s.offsets) {
		return -1
	}
	return s.offsets[i]
}

// Changed reports whether the script has any non-equal opcode.
func (s Script) Changed() bool {
	for _, op := range s.Opcodes {
		if op.Op != Equal {
			return true
		}
	}
	return false
}
