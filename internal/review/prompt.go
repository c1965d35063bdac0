package review

import (
	"fmt"
	"sort"
	"strings"
)

// SystemPrompt is sent as the system message on every call.
const SystemPrompt = "Você é um revisor de textos educacionais. Siga as instruções fornecidas com precisão."

const promptPreamble = "Você é um revisor de textos educacionais."

// Module is one named block of reviewer instructions.
type Module struct {
	Name     string
	Priority int
	// Base modules are included in every prompt and never sent alone.
	Base    bool
	Content string
}

// Module names.
const (
	ModFormat      = "formato"
	ModProtections = "protecoes"
	ModSerious     = "erros_graves"
	ModGrammar     = "erros_gramaticais"
	ModPunctuation = "pontuacao"
	ModRepetitions = "repeticoes"
	ModRedundancy  = "redundancias"
	ModFluency     = "fluidez"
	ModMannerisms  = "maneirismos_ia"
	ModDidactic    = "linguagem_didatica"
	ModTreatment   = "tratamento_uniforme"
	ModNumbers     = "numeros_uniformes"
)

var modules = []Module{
	{Name: ModFormat, Base: true, Content: `**FORMATO DE RESPOSTA**
Retorne APENAS um JSON válido:
{
  "corrections": [
    {
      "paragraph": 1,
      "error": "texto com erro",
      "correction": "texto corrigido",
      "type": "tipo do erro"
    }
  ]
}

Use em "paragraph" o número indicado em [TEXTO n].
Se não houver correções: {"corrections": []}`},
	{Name: ModProtections, Base: true, Content: `**CONTEÚDO PROTEGIDO - NUNCA ALTERE**

1. **ALTERNATIVAS DE QUESTÕES**: linhas que comecem com a), b), (a), a., A) etc., mesmo com erros propositais.
2. **CITAÇÕES E REFERÊNCIAS**: textos entre aspas com autoria, textos com fonte indicada (Fonte:, Referência:, Extraído de:, Adaptado de:), parágrafos que terminem com indicação de fonte, textos indentados.
3. **POEMAS E TEXTOS LITERÁRIOS**: versos, letras de músicas, trechos de obras literárias.
4. **OUTROS**: códigos BNCC (EF01LP01, EM13LGG101), URLs, referências bibliográficas, gabaritos, fórmulas.

Na dúvida, NÃO ALTERE. É melhor preservar um texto com erro do que alterar uma citação original.`},
	{Name: ModSerious, Priority: 1, Content: `**CORRIJA APENAS ERROS GRAVÍSSIMOS**
1. Erros de digitação óbvios (computadr → computador)
2. Ortografia grotescamente errada (ezemplo → exemplo)
3. Concordância completamente errada (os menino → os meninos)
4. Acentuação faltando em palavras básicas (voce → você)
5. Pontuação duplicada (.., ,, → . ,)
6. Falta de espaço óbvia (amesa → a mesa)

**NA DÚVIDA, NÃO CORRIJA!**`},
	{Name: ModGrammar, Priority: 2, Content: `**CORRIJA TODOS OS ERROS GRAMATICAIS**
1. Ortografia incorreta
2. Concordância verbal e nominal
3. Regência verbal e nominal
4. Acentuação incorreta ou faltando
5. Crase incorreta ou faltando
6. Uso incorreto de pronomes
7. Conjugação verbal errada`},
	{Name: ModPunctuation, Priority: 3, Content: `**CORRIJA PONTUAÇÃO**
1. Falta de ponto final em parágrafos
2. Vírgulas obrigatórias faltando
3. Pontuação antes de conjunções
4. Dois-pontos e ponto-e-vírgula incorretos
5. Aspas e parênteses desbalanceados
6. Espaços incorretos com pontuação`},
	{Name: ModRepetitions, Priority: 4, Content: `**REMOVA REPETIÇÕES DESNECESSÁRIAS**
1. Palavra repetida em sequência (o o → o)
2. Mesma palavra 3+ vezes em 2 linhas
3. Início de frases consecutivas iguais
4. Repetição de conectivos próximos`},
	{Name: ModRedundancy, Priority: 5, Content: `**ELIMINE REDUNDÂNCIAS**
1. Subir para cima → subir
2. Entrar para dentro → entrar
3. Sair para fora → sair
4. Elo de ligação → elo
5. Planos para o futuro → planos`},
	{Name: ModFluency, Priority: 6, Content: `**MELHORE A FLUIDEZ (MÍNIMO NECESSÁRIO)**
1. Adicione conectivos essenciais faltando
2. Complete frases truncadas
3. Resolva ambiguidades graves
4. Corrija ordem de palavras confusa`},
	{Name: ModMannerisms, Priority: 7, Content: `**REMOVA MANEIRISMOS DE IA**
1. Metáforas desnecessárias (é como um quebra-cabeça)
2. Analogias forçadas (são como temperos)
3. Juízo de valor (fascinante, incrível, o mais legal)
4. Perguntas retóricas (Sabe quando...? Já pensou...?)
5. Saudações diretas (Olá, estudantes!)
6. Verbos informais (vamos mergulhar, vamos explorar)
7. Adjetivação excessiva (super interessante, muito mais divertido)`},
	{Name: ModDidactic, Priority: 8, Content: `**ADEQUE PARA LINGUAGEM DIDÁTICA**
1. Substitua informalidades (tipo → como, né → não é)
2. Remova diminutivos desnecessários (tudinho → tudo)
3. Elimine gírias e expressões coloquiais
4. Mantenha vocabulário apropriado para idade
5. Use termos técnicos com explicação quando necessário`},
	{Name: ModTreatment, Priority: 9, Content: `**PADRONIZE O TRATAMENTO**
1. Use sempre SINGULAR (você, não vocês)
2. Evite "a gente" → use "nós" ou reformule
3. Mantenha impessoalidade quando apropriado
4. Evite se dirigir diretamente ao leitor em excesso`},
	{Name: ModNumbers, Priority: 10, Content: `**FORMATAÇÃO NUMÉRICA (PADRÃO INTERNACIONAL)**
1. Números com quatro ou mais dígitos separam grupos de três dígitos com espaço fino não separável (U+202F); nunca use ponto ou vírgula como separador de milhares (12345 → 12 345).
2. Entre número e unidade de medida use espaço não separável (U+00A0): 10cm → 10 cm, R$50 → R$ 50, 78km → 78 km.
3. Número, separadores e unidade formam um bloco indivisível que permanece na mesma linha.`},
}

var modes = map[string][]string{
	"fast":        {ModFormat, ModProtections, ModGrammar, ModPunctuation},
	"conservador": {ModFormat, ModProtections, ModSerious},
	"balanceado":  {ModFormat, ModProtections, ModSerious, ModGrammar, ModPunctuation},
	"editorial": {
		ModFormat, ModProtections, ModGrammar, ModPunctuation,
		ModRepetitions, ModRedundancy, ModFluency, ModMannerisms,
		ModDidactic, ModTreatment, ModNumbers,
	},
}

// Modes lists the preset names.
func Modes() []string {
	out := make([]string, 0, len(modes))
	for m := range modes {
		out = append(out, m)
	}
	sort.Strings(out)
	return out
}

// ModuleNames lists every module name in priority order.
func ModuleNames() []string {
	out := make([]string, len(modules))
	for i, m := range modules {
		out[i] = m.Name
	}
	return out
}

// PromptSet is the ordered list of modules used for one run.
type PromptSet struct {
	Modules []Module
}

// NewPromptSet resolves explicit module names, or the mode preset when names
// is empty. Base modules are always included.
func NewPromptSet(mode string, names []string) (*PromptSet, error) {
	if len(names) == 0 {
		preset, ok := modes[mode]
		if !ok {
			return nil, fmt.Errorf("unknown review mode %q", mode)
		}
		names = preset
	}
	byName := make(map[string]Module, len(modules))
	for _, m := range modules {
		byName[m.Name] = m
	}
	seen := make(map[string]bool)
	ps := &PromptSet{}
	add := func(name string) error {
		if seen[name] {
			return nil
		}
		m, ok := byName[name]
		if !ok {
			return fmt.Errorf("unknown prompt module %q", name)
		}
		seen[name] = true
		ps.Modules = append(ps.Modules, m)
		return nil
	}
	for _, m := range modules {
		if m.Base {
			add(m.Name)
		}
	}
	for _, name := range names {
		if err := add(name); err != nil {
			return nil, err
		}
	}
	sort.SliceStable(ps.Modules, func(i, j int) bool { return ps.Modules[i].Priority < ps.Modules[j].Priority })
	return ps, nil
}

// Names returns the module names in prompt order.
func (ps *PromptSet) Names() []string {
	out := make([]string, len(ps.Modules))
	for i, m := range ps.Modules {
		out[i] = m.Name
	}
	return out
}

// Split returns one prompt set per non-base module, each carrying the base
// modules too.
func (ps *PromptSet) Split() []*PromptSet {
	var base, rest []Module
	for _, m := range ps.Modules {
		if m.Base {
			base = append(base, m)
		} else {
			rest = append(rest, m)
		}
	}
	out := make([]*PromptSet, 0, len(rest))
	for _, m := range rest {
		mods := append(append([]Module{}, base...), m)
		out = append(out, &PromptSet{Modules: mods})
	}
	return out
}

// Build assembles the prompt for one batch of rendered text.
func (ps *PromptSet) Build(text string) string {
	var sb strings.Builder
	sb.WriteString(promptPreamble)
	sb.WriteString("\n\n")
	for _, m := range ps.Modules {
		sb.WriteString(m.Content)
		sb.WriteString("\n\n")
	}
	sb.WriteString("**TEXTO PARA REVISAR:**\n")
	sb.WriteString(text)
	return sb.String()
}
