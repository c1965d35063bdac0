package pipeline

import (
	"testing"

	"github.com/dgallion1/docrevise/internal/review"
)

func TestCheckProposal(t *testing.T) {
	tests := []struct {
		name      string
		text      string
		errText   string
		corr      string
		protected bool
		want      string
	}{
		{"accepted", "Isso esta errado", "esta", "está", false, ""},
		{"protected unit", "Isso esta errado", "esta", "está", true, RejectProtected},
		{"missing", "Isso está certo", "esta", "está", false, RejectNotFound},
		{"demonstrative", "Esse livro é bom", "Esse", "Este", false, RejectDemonstrative},
		{"inside url", "Acesse https://site.com/pagna hoje", "pagna", "pagina", false, RejectURL},
		{"mentions http", "O protocolo http é antigo", "http", "HTTP", false, RejectURL},
		{"inside quotes", "Ele disse \"vamo embora\" ontem", "vamo", "vamos", false, RejectQuoted},
		{"inside curly quotes", "Ele disse “vamo embora” ontem", "vamo", "vamos", false, RejectQuoted},
		{"after closed quotes", "Ele disse \"oi\" e saiu rapidamnte", "rapidamnte", "rapidamente", false, ""},
		{"too long", "Um erro aqui", "erro", "erro que virou uma frase inteira", false, RejectLengthDelta},
		{"too short", "Uma expressão muito longa e redundante aqui", "muito longa e redundante aqui", "aqui", false, RejectLengthDelta},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := review.Proposal{Error: tt.errText, Correction: tt.corr}
			if got := checkProposal(tt.text, p, tt.protected, 20); got != tt.want {
				t.Fatalf("checkProposal = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestSanityCheck(t *testing.T) {
	tests := []struct {
		name     string
		original string
		revised  string
		want     string
	}{
		{"unchanged", "Um texto qualquer com mais de vinte letras.", "Um texto qualquer com mais de vinte letras.", ""},
		{"small fix", "Isso esta errado", "Isso está errado", ""},
		{"markup dropped", "Veja a [figura 2] abaixo.", "Veja a figura abaixo.", RevertMarkup},
		{"url changed", "Acesse https://a.com/x agora", "Acesse https://a.com/y agora", RevertURL},
		{"too short", "Uma frase razoavelmente longa para testar.", "Uma frase.", RevertLength},
		{"short unit skips ratio", "Oi", "Olá, tudo bem?", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := sanityCheck(tt.original, tt.revised); got != tt.want {
				t.Fatalf("sanityCheck = %q, want %q", got, tt.want)
			}
		})
	}
}
