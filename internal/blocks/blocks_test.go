package blocks

import (
	"strings"
	"testing"
)

func strLen(s string) int { return len(s) }

func TestBuild_SplitsAtCharLimit(t *testing.T) {
	items := make([]string, 25)
	for i := range items {
		items[i] = strings.Repeat("x", 500)
	}
	batches := Build(items, strLen, Limits{MaxChars: 10000, MaxUnits: 100})
	if len(batches) != 2 {
		t.Fatalf("expected 2 batches, got %d", len(batches))
	}
	total := 0
	for _, b := range batches {
		if b.Chars > 10000 {
			t.Errorf("batch %d has %d chars", b.Index, b.Chars)
		}
		for _, it := range b.Items {
			if len(it) != 500 {
				t.Errorf("item split: len %d", len(it))
			}
		}
		total += len(b.Items)
	}
	if total != 25 {
		t.Errorf("items across batches = %d", total)
	}
	if len(batches[0].Items) != 20 || batches[1].Index != 1 {
		t.Errorf("first batch holds %d items, second index %d", len(batches[0].Items), batches[1].Index)
	}
}

func TestBuild_UnitLimit(t *testing.T) {
	items := make([]string, 7)
	for i := range items {
		items[i] = "ab"
	}
	batches := Build(items, strLen, Limits{MaxChars: 1000, MaxUnits: 3})
	got := []int{}
	for _, b := range batches {
		got = append(got, len(b.Items))
	}
	if len(got) != 3 || got[0] != 3 || got[1] != 3 || got[2] != 1 {
		t.Errorf("batch sizes = %v", got)
	}
}

func TestBuild_OversizedItemAlone(t *testing.T) {
	items := []string{"abc", strings.Repeat("y", 50), "de"}
	batches := Build(items, strLen, Limits{MaxChars: 10})
	if len(batches) != 3 {
		t.Fatalf("expected 3 batches, got %d", len(batches))
	}
	if len(batches[1].Items) != 1 || batches[1].Chars != 50 {
		t.Errorf("oversized batch = %+v", batches[1])
	}
}

func TestBuild_Empty(t *testing.T) {
	if got := Build(nil, strLen, DefaultLimits()); len(got) != 0 {
		t.Errorf("expected no batches, got %d", len(got))
	}
}

func TestRender_Format(t *testing.T) {
	out := Render([]Item{
		{Index: 3, Kind: "paragraph", Text: "Isso esta errado e precisa de revisão cuidadosa antes da entrega do trabalho final."},
		{Index: 4, Kind: "table", Location: "Tabela 1, Célula (1,2)", Text: "Valor"},
	})
	for _, want := range []string{
		"BLOCO COM 2 TEXTOS",
		"[TEXTO 3]\n[TIPO: PARAGRAPH]\n[CONTEÚDO: TEXTO NORMAL]\n",
		"[FIM_TEXTO_3]",
		"[TIPO: TABLE]\n[LOCALIZAÇÃO: Tabela 1, Célula (1,2)]\n",
		"[CONTEÚDO: TÍTULO/CABEÇALHO]\nValor\n[FIM_TEXTO_4]",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("rendered block missing %q\n%s", want, out)
		}
	}
	if strings.Contains(out, "[LOCALIZAÇÃO: ]") {
		t.Error("paragraph item should not carry a location line")
	}
}

func TestContentType(t *testing.T) {
	long := " e continua por bastante tempo para passar do limite de oitenta caracteres do título."
	tests := []struct {
		text string
		want string
	}{
		{"Capítulo 1", "TÍTULO/CABEÇALHO"},
		{"• primeiro item da lista" + long, "ITEM DE LISTA"},
		{"Veja o site https://example.com" + long, "CONTÉM LINK"},
		{`Ele disse "olá" para todos` + long, "CITAÇÃO"},
		{"SILVA, J. Gramática. São Paulo: Editora X, 2010" + long, "REFERÊNCIA"},
		{"Um parágrafo comum" + long, "TEXTO NORMAL"},
	}
	for _, tt := range tests {
		if got := ContentType(tt.text); got != tt.want {
			t.Errorf("ContentType(%q) = %q, want %q", tt.text, got, tt.want)
		}
	}
}

func TestEstimateTokens(t *testing.T) {
	if EstimateTokens("") != 0 {
		t.Error("empty text should be 0 tokens")
	}
	if got := EstimateTokens("um dois tres"); got != 3 {
		t.Errorf("EstimateTokens = %d", got)
	}
}
