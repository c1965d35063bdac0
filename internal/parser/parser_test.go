package parser

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/dgallion1/docrevise/internal/docmodel"
	"github.com/dgallion1/docrevise/internal/doctree"
)

func TestForFile(t *testing.T) {
	tests := map[string]string{
		"a.txt":  "*parser.TextParser",
		"a.MD":   "*parser.MarkdownParser",
		"a.htm":  "*parser.HTMLParser",
		"a.csv":  "*parser.CSVParser",
		"a.pdf":  "*parser.PDFParser",
		"a.docx": "*parser.DOCXParser",
	}
	for name, want := range tests {
		p, err := ForFile(name)
		if err != nil {
			t.Fatalf("%s: %v", name, err)
		}
		if got := fmt.Sprintf("%T", p); got != want {
			t.Errorf("%s: got %s, want %s", name, got, want)
		}
	}
	if _, err := ForFile("a.odt"); err == nil {
		t.Error("expected error for .odt")
	}
	if IsSupportedExtension("x.odt") || !IsSupportedExtension("x.PDF") {
		t.Error("IsSupportedExtension mismatch")
	}
}

func TestParseFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nota.txt")
	if err := os.WriteFile(path, []byte("Um texto.\n\nOutro."), 0o644); err != nil {
		t.Fatal(err)
	}
	tree, err := ParseFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if tree.Title != "nota" || len(tree.Paragraphs()) != 2 {
		t.Fatalf("tree = %+v", tree)
	}
	if _, err := ParseFile(filepath.Join(t.TempDir(), "falta.txt")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestHTMLParser_SanitizesAndNests(t *testing.T) {
	input := `<html><head><title>Guia</title><style>p{color:red}</style></head>
<body>
<script>alert("x")</script>
<h1>Introdução</h1>
<p>Primeiro   parágrafo
com quebra.</p>
<p onclick="evil()">Segundo <b>parágrafo</b>.</p>
<h2>Detalhes</h2>
<ul><li>Item um</li><li>Item dois</li></ul>
<pre>codigo()</pre>
</body></html>`
	p := &HTMLParser{}
	tree, err := p.Parse(strings.NewReader(input), "guia.html")
	if err != nil {
		t.Fatal(err)
	}
	if tree.Title != "Guia" {
		t.Errorf("title = %q", tree.Title)
	}
	var texts []string
	for _, para := range tree.Paragraphs() {
		texts = append(texts, para.Text)
	}
	want := []string{"Introdução", "Primeiro parágrafo com quebra.", "Segundo parágrafo.", "Detalhes", "Item um", "Item dois"}
	if strings.Join(texts, "|") != strings.Join(want, "|") {
		t.Errorf("paragraphs = %q, want %q", texts, want)
	}
}

func TestCSVParser_Rows(t *testing.T) {
	input := "termo,definição,peso\nsubstantivo,palavra que nomeia,1\n,,\nverbo,\"indica ação, estado\",2,5\n"
	p := &CSVParser{}
	tree, err := p.Parse(strings.NewReader(input), "glossario.csv")
	if err != nil {
		t.Fatal(err)
	}
	if len(tree.Children) != 3 {
		t.Fatalf("expected 3 rows, got %d", len(tree.Children))
	}
	last := tree.Children[2]
	if last.Title != "Linha 4" || !last.Generated || last.Text != "verbo\n\nindica ação, estado" {
		t.Errorf("last row = %+v", last)
	}
	paras := tree.Paragraphs()
	if paras[0].Text != "termo" || paras[0].Location != "Linha 1, parágrafo 1" {
		t.Errorf("first paragraph = %+v", paras[0])
	}
}

func TestPagesTree(t *testing.T) {
	tree := pagesTree("apostila", []string{
		"Linha um do texto\ncontinua aqui.\n\nNovo parágrafo.",
		"   \n",
		"Terceira página.",
	})
	if len(tree.Children) != 2 {
		t.Fatalf("expected 2 pages with text, got %d", len(tree.Children))
	}
	first := tree.Children[0]
	if first.Title != "Página 1" || first.Page != 1 || first.Text != "Linha um do texto continua aqui.\n\nNovo parágrafo." {
		t.Errorf("page 1 = %+v", first)
	}
	if tree.Children[1].Page != 3 {
		t.Errorf("third page numbered %d", tree.Children[1].Page)
	}
	paras := tree.Paragraphs()
	if len(paras) != 3 || paras[2].Page != 3 {
		t.Errorf("paragraphs = %+v", paras)
	}
}

func TestDOCXParser_HeadingsAndTables(t *testing.T) {
	d := docmodel.New()
	d.AddParagraph().AddRun("Abertura.", docmodel.Style{})
	d.AddParagraph().SetStyleID("Heading1").AddRun("Capítulo 1", docmodel.Style{Bold: true})
	d.AddParagraph().AddRun("Texto do capítulo.", docmodel.Style{})
	d.AddParagraph().SetStyleID("Heading 2").AddRun("Seção", docmodel.Style{})
	d.AddParagraph().AddRun("Texto da seção.", docmodel.Style{})
	tbl := d.AddTable(1, 2)
	tbl.Cell(0, 0)[0].AddRun("Célula A", docmodel.Style{})
	tbl.Cell(0, 1)[0].AddRun("Célula B", docmodel.Style{})
	data, err := d.Bytes()
	if err != nil {
		t.Fatal(err)
	}

	p := &DOCXParser{}
	tree, err := p.Parse(bytes.NewReader(data), "livro.docx")
	if err != nil {
		t.Fatal(err)
	}
	got := tree.Paragraphs()
	want := []doctree.Paragraph{
		{Text: "Abertura.", Location: "Parágrafo 1"},
		{Text: "Capítulo 1", Location: "Parágrafo 2"},
		{Text: "Texto do capítulo.", Location: "Capítulo 1, parágrafo 3"},
		{Text: "Seção", Location: "Capítulo 1, parágrafo 4"},
		{Text: "Texto da seção.", Location: "Capítulo 1 > Seção, parágrafo 5"},
		{Text: "Célula A", Location: "Tabela 1, parágrafo 6"},
		{Text: "Célula B", Location: "Tabela 1, parágrafo 7"},
	}
	if len(got) != len(want) {
		t.Fatalf("paragraphs = %+v", got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("paragraph %d = %+v, want %+v", i, got[i], want[i])
		}
	}
}

func TestDocxHeadingLevel(t *testing.T) {
	tests := map[string]int{
		"Heading1":  1,
		"heading 3": 3,
		"Título2":   2,
		"Normal":    0,
		"Heading10": 0,
		"":          0,
	}
	for style, want := range tests {
		if got := docxHeadingLevel(style); got != want {
			t.Errorf("docxHeadingLevel(%q) = %d, want %d", style, got, want)
		}
	}
}
