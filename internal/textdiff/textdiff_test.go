package textdiff

import (
	"strings"
	"testing"
)

func rebuild(s Script) (string, string) {
	var a, b strings.Builder
	for _, op := range s.Opcodes {
		x, y := s.Spans(op)
		a.WriteString(x)
		b.WriteString(y)
	}
	return a.String(), b.String()
}

func TestDiff_ReconstructsBothSides(t *testing.T) {
	pairs := [][2]string{
		{"Isso esta errado", "Isso está errado"},
		{"", "novo texto"},
		{"texto antigo", ""},
		{"igual", "igual"},
		{"a b c d e", "a x c e f"},
		{"O menino correu, pulou e caiu", "O menino correu pulou, e caiu."},
		{"ação coração", "acao coracao"},
	}
	for _, g := range []Granularity{Words, Chars} {
		for _, p := range pairs {
			s := Diff(p[0], p[1], g)
			a, b := rebuild(s)
			if a != p[0] || b != p[1] {
				t.Errorf("granularity %d: rebuild(%q, %q) = (%q, %q)", g, p[0], p[1], a, b)
			}
		}
	}
}

func TestCompare_NoGapsOrOverlaps(t *testing.T) {
	a := Tokenize("um dois tres quatro cinco", Words)
	b := Tokenize("um tres quatro seis cinco sete", Words)
	ops := Compare(a, b)
	i, j := 0, 0
	for _, op := range ops {
		if op.I1 != i || op.J1 != j {
			t.Fatalf("gap before %+v (at %d,%d)", op, i, j)
		}
		i, j = op.I2, op.J2
	}
	if i != len(a) || j != len(b) {
		t.Fatalf("opcodes end at (%d,%d), want (%d,%d)", i, j, len(a), len(b))
	}
}

func TestCompare_EdgeCases(t *testing.T) {
	tests := []struct {
		name string
		a, b []string
		want []Opcode
	}{
		{"both empty", nil, nil, nil},
		{"empty original", nil, []string{"x", "y"}, []Opcode{{Insert, 0, 0, 0, 2}}},
		{"empty revised", []string{"x", "y"}, nil, []Opcode{{Delete, 0, 2, 0, 0}}},
		{"identical", []string{"x", "y"}, []string{"x", "y"}, []Opcode{{Equal, 0, 2, 0, 2}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Compare(tt.a, tt.b)
			if len(got) != len(tt.want) {
				t.Fatalf("got %+v, want %+v", got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("op %d = %+v, want %+v", i, got[i], tt.want[i])
				}
			}
		})
	}
}

func TestDiff_WordSubstitution(t *testing.T) {
	s := Diff("Isso esta errado", "Isso está errado", Words)
	var replaces []Opcode
	for _, op := range s.Opcodes {
		if op.Op != Equal {
			replaces = append(replaces, op)
		}
	}
	if len(replaces) != 1 || replaces[0].Op != Replace {
		t.Fatalf("expected one replace, got %+v", s.Opcodes)
	}
	x, y := s.Spans(replaces[0])
	if x != "esta" || y != "está" {
		t.Errorf("spans = %q, %q", x, y)
	}
	if off := s.Offset(replaces[0].I1); off != 5 {
		t.Errorf("offset = %d, want 5", off)
	}
}

func TestDiff_Deterministic(t *testing.T) {
	a, b := "a primeira frase tem erros de grafia", "a primera frase tem herros de grafia"
	first := Diff(a, b, Chars).Opcodes
	for n := 0; n < 5; n++ {
		again := Diff(a, b, Chars).Opcodes
		if len(again) != len(first) {
			t.Fatal("opcode count changed between runs")
		}
		for i := range again {
			if again[i] != first[i] {
				t.Fatalf("run %d differs at op %d", n, i)
			}
		}
	}
}

func TestCompareFunc_KeyNormalizes(t *testing.T) {
	a := []string{"Casa", " ", "Azul"}
	b := []string{"casa", " ", "azul"}
	ops := CompareFunc(a, b, strings.ToLower)
	if len(ops) != 1 || ops[0].Op != Equal {
		t.Errorf("expected a single equal span, got %+v", ops)
	}
}

func TestTokenize_Words(t *testing.T) {
	got := Tokenize("Olá, mundo!", Words)
	want := []string{"Olá", ", ", "mundo", "!"}
	if strings.Join(got, "|") != strings.Join(want, "|") {
		t.Errorf("Tokenize = %q, want %q", got, want)
	}
}
