package protect

import "testing"

func mustNew(t *testing.T, ids []string, opts Options) *Classifier {
	t.Helper()
	c, err := New(ids, opts)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return c
}

func TestClassify_Rules(t *testing.T) {
	c := mustNew(t, nil, Options{})
	tests := []struct {
		text   string
		reason string
	}{
		{"a) Paris", QuizOption},
		{"B. Londres", QuizOption},
		{"(c) Roma", QuizOption},
		{"EF05LP03 something", CurriculumCode},
		{"Habilidade EM13LP01 trabalhada", CurriculumCode},
		{"Código AB12CD34 de outro sistema", ""},
		{"Visit https://example.com now", URL},
		{"SILVA, Maria. Gramática. São Paulo: Editora Ática, 2010.", Bibliography},
		{"GABARITO: 1-a, 2-c", AnswerKey},
		{"Gabarito comentado", AnswerKey},
		{"    Texto recuado de citação", Indented},
		{"\tTexto com tabulação", Indented},
		{"Fonte: Revista Ciência Hoje, 2019.", Reference},
		{"Disponível em: biblioteca digital", Reference},
		{"Retrieved from: archive", Reference},
		{"— Carlos Drummond de Andrade", Reference},
		{"O menino foi para a escola de manhã.", ""},
	}
	for _, tt := range tests {
		v := c.Classify(tt.text)
		if v.Protected != (tt.reason != "") || v.Reason != tt.reason {
			t.Errorf("Classify(%q) = %+v, want reason %q", tt.text, v, tt.reason)
		}
	}
}

func TestClassify_FirstMatchWins(t *testing.T) {
	c := mustNew(t, nil, Options{})
	v := c.Classify("a) veja https://example.com")
	if v.Reason != QuizOption {
		t.Errorf("reason = %q, want %q", v.Reason, QuizOption)
	}
}

func TestNew_SubsetAndOrder(t *testing.T) {
	c := mustNew(t, []string{URL}, Options{})
	if v := c.Classify("a) Paris"); v.Protected {
		t.Errorf("quiz rule should be disabled, got %+v", v)
	}
	if v := c.Classify("https://example.com"); v.Reason != URL {
		t.Errorf("url rule should be enabled, got %+v", v)
	}
	if _, err := New([]string{"nope"}, Options{}); err == nil {
		t.Error("expected error for unknown rule id")
	}
}

func TestClassifyAll_ReferenceBacktrack(t *testing.T) {
	c := mustNew(t, nil, Options{MaxBacktrack: 15})
	texts := []string{
		"1. Leia a crônica abaixo e responda.",
		"A cidade acordou cedo naquele dia.",
		"Os ônibus passavam cheios de gente.",
		"Fonte: Jornal do Bairro, 2020.",
		"",
		"Depois disso o professor explicou a atividade.",
	}
	got := c.ClassifyAll(texts)
	want := []bool{false, true, true, true, false, false}
	for i := range want {
		if got[i].Protected != want[i] {
			t.Errorf("unit %d (%q) protected = %v, want %v", i, texts[i], got[i].Protected, want[i])
		}
	}
	if got[1].Reason != Reference {
		t.Errorf("reason = %q", got[1].Reason)
	}
}

func TestClassifyAll_BacktrackBounded(t *testing.T) {
	c := mustNew(t, nil, Options{MaxBacktrack: 1})
	texts := []string{
		"Primeira frase longa o bastante para não parecer verso.",
		"Segunda frase longa o bastante para não parecer verso.",
		"Fonte: arquivo pessoal.",
	}
	got := c.ClassifyAll(texts)
	if got[0].Protected || !got[1].Protected || !got[2].Protected {
		t.Errorf("unexpected verdicts %+v", got)
	}
}

func TestClassifyAll_StopsAtAnotherReference(t *testing.T) {
	c := mustNew(t, nil, Options{MaxBacktrack: 15})
	texts := []string{
		"Texto anterior que não deve ser protegido por engano.",
		"",
		"— Autor Desconhecido https://exemplo.com",
		"Trecho intermediário com outra citação no fim.",
		"Fonte: segunda referência.",
	}
	got := c.ClassifyAll(texts)
	if got[2].Reason != URL {
		t.Fatalf("signature with link should match the url rule first: %+v", got[2])
	}
	if got[0].Protected {
		t.Errorf("scan crossed a blank unit or an earlier reference marker: %+v", got)
	}
	if !got[3].Protected || got[3].Reason != Reference {
		t.Errorf("unit above second marker should be protected: %+v", got)
	}
}

func TestClassifyAll_CitationContext(t *testing.T) {
	c := mustNew(t, nil, Options{ContextTracking: true})
	texts := []string{
		"Leia o texto:",
		"Era uma vez um reino muito distante, onde todos viviam felizes.",
		"O rei, porém, estava sempre preocupado com o futuro.",
		"",
		"Agora responda às questões propostas pelo professor.",
	}
	got := c.ClassifyAll(texts)
	if got[0].Protected {
		t.Errorf("lead-in itself should not be protected")
	}
	if got[1].Reason != Citation || got[2].Reason != Citation {
		t.Errorf("citation body not protected: %+v", got)
	}
	if got[4].Protected {
		t.Errorf("context should end at blank unit: %+v", got[4])
	}
}

func TestClassifyAll_PoemContextEndsAtNumberedItem(t *testing.T) {
	c := mustNew(t, nil, Options{ContextTracking: true})
	texts := []string{
		"Observe o poema:",
		"Minha terra tem palmeiras, onde canta o sabiá.",
		"2. Qual é o tema principal do poema apresentado acima?",
	}
	got := c.ClassifyAll(texts)
	if got[1].Reason != Poem {
		t.Errorf("verse = %+v", got[1])
	}
	if got[2].Protected {
		t.Errorf("numbered question should end poem context: %+v", got[2])
	}
}

func TestClassifyAll_VerseHeuristic(t *testing.T) {
	texts := []string{
		"Minha terra tem palmeiras",
		"Onde canta o sabiá",
	}
	with := mustNew(t, nil, Options{VerseHeuristic: true}).ClassifyAll(texts)
	if with[0].Protected || !with[1].Protected || with[1].Reason != Poem {
		t.Errorf("with heuristic: %+v", with)
	}
	without := mustNew(t, nil, Options{}).ClassifyAll(texts)
	if without[1].Protected {
		t.Errorf("without heuristic: %+v", without)
	}
}

func TestClassifyAll_ReferenceLineWithURL(t *testing.T) {
	c := mustNew(t, nil, Options{MaxBacktrack: 15})
	texts := []string{
		"",
		"A floresta amazônica abriga milhares de espécies.",
		"Muitas delas ainda não foram descritas pela ciência.",
		"Disponível em: https://exemplo.com/artigo. Acesso em: 10 mar. 2023.",
	}
	got := c.ClassifyAll(texts)
	if got[3].Reason != URL {
		t.Errorf("source line reason = %q, want %q", got[3].Reason, URL)
	}
	for i := 1; i <= 2; i++ {
		if !got[i].Protected || got[i].Reason != Reference {
			t.Errorf("unit %d = %+v, want protected as %q", i, got[i], Reference)
		}
	}
}

func TestClassifyAll_URLLineWithoutReferenceRule(t *testing.T) {
	c := mustNew(t, []string{URL}, Options{MaxBacktrack: 15})
	got := c.ClassifyAll([]string{
		"Um parágrafo comum.",
		"Disponível em: https://exemplo.com/artigo.",
	})
	if got[0].Protected {
		t.Errorf("backtrack ran with the reference rule disabled: %+v", got[0])
	}
}
