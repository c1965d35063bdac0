package pipeline

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"

	"github.com/dgallion1/docrevise/internal/changes"
	"github.com/dgallion1/docrevise/internal/docmodel"
	"github.com/dgallion1/docrevise/internal/protect"
	"github.com/dgallion1/docrevise/internal/review"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// scriptedReviewer answers each batch with a fixed list of proposals.
type scriptedReviewer struct {
	mu        sync.Mutex
	byBatch   map[int][]review.Proposal
	failBatch int
	requests  []review.Request
}

func (s *scriptedReviewer) Review(_ context.Context, req review.Request) ([]review.Proposal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.requests = append(s.requests, req)
	if req.Batch == s.failBatch {
		return nil, errors.New("upstream unavailable")
	}
	out := append([]review.Proposal(nil), s.byBatch[req.Batch]...)
	for i := range out {
		out[i].Batch = req.Batch
	}
	return out, nil
}

func newTestReviser(t *testing.T, r Reviewer, opts Options) *Reviser {
	t.Helper()
	ps, err := review.NewPromptSet("fast", nil)
	if err != nil {
		t.Fatal(err)
	}
	pc, err := protect.New(nil, protect.Options{MaxBacktrack: 15, ContextTracking: true})
	if err != nil {
		t.Fatal(err)
	}
	opts.CallInterval = 0
	return NewReviser(r, ps, pc, opts, discardLogger())
}

func reparse(t *testing.T, d *docmodel.Document) *docmodel.Document {
	t.Helper()
	data, err := d.Bytes()
	if err != nil {
		t.Fatal(err)
	}
	out, err := docmodel.Parse(data)
	if err != nil {
		t.Fatal(err)
	}
	return out
}

func TestRevise_EndToEndPreservesBold(t *testing.T) {
	d := docmodel.New()
	p := d.AddParagraph()
	p.AddRun("Isso ", docmodel.Style{Bold: true})
	p.AddRun("esta errado", docmodel.Style{})
	d = reparse(t, d)

	rev := &scriptedReviewer{byBatch: map[int][]review.Proposal{1: {
		{Paragraph: 1, Error: "esta", Correction: "está", Type: "acentuação"},
	}}}
	rv := newTestReviser(t, rev, DefaultOptions())

	res, err := rv.Revise(context.Background(), d.Units())
	if err != nil {
		t.Fatalf("Revise: %v", err)
	}
	if len(res.Applied()) != 1 {
		t.Fatalf("expected 1 correction, got %+v (rejected %+v)", res.Corrections, res.Rejections)
	}
	if len(res.Changes) != 1 {
		t.Fatalf("expected 1 change record, got %+v", res.Changes)
	}
	c := res.Changes[0]
	if c.Kind != changes.Substitution || c.Error != "esta" || c.Correction != "está" || c.Position != 5 {
		t.Fatalf("unexpected change record %+v", c)
	}

	out := reparse(t, d)
	para := out.Paragraphs()[0]
	if para.Text() != "Isso está errado" {
		t.Fatalf("text = %q", para.Text())
	}
	runs := para.Runs()
	if !runs[0].Style().Bold || runs[0].Text() != "Isso " {
		t.Fatalf("first run lost bold: %q %+v", runs[0].Text(), runs[0].Style())
	}
	if runs[1].Style().Bold {
		t.Fatal("second run should stay plain")
	}
}

func TestRevise_RejectionsAndProtection(t *testing.T) {
	units := docmodel.PlainUnits([]string{
		"Ele disse \"vamos embora\" e saiu da sala logo depois.",
		"a) alternativa com erro de ortografia",
		"O protocolo http é antigo e ainda usado por muitos sites.",
		"Esse exemplo mostra o uso correto das palavras na frase.",
		"Um texto curto com palavra erada no meio.",
	})
	rev := &scriptedReviewer{byBatch: map[int][]review.Proposal{1: {
		{Paragraph: 1, Error: "vamos", Correction: "vamo", Type: "x"},
		{Paragraph: 2, Error: "erro", Correction: "error", Type: "x"},
		{Paragraph: 3, Error: "http", Correction: "HTTP", Type: "x"},
		{Paragraph: 4, Error: "Esse", Correction: "Este", Type: "x"},
		{Paragraph: 5, Error: "erada", Correction: "errada e também muito mal escrita demais", Type: "x"},
		{Paragraph: 5, Error: "inexistente", Correction: "x", Type: "x"},
	}}}
	rv := newTestReviser(t, rev, DefaultOptions())

	res, err := rv.Revise(context.Background(), units)
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Applied()) != 0 {
		t.Fatalf("expected no corrections, got %+v", res.Corrections)
	}
	if len(res.Protected) != 1 || res.Protected[0].Reason != protect.QuizOption {
		t.Fatalf("expected the quiz option to be protected, got %+v", res.Protected)
	}

	reasons := map[string]bool{}
	for _, r := range res.Rejections {
		reasons[r.Reason] = true
	}
	for _, want := range []string{RejectQuoted, RejectURL, RejectDemonstrative, RejectLengthDelta, RejectNotFound} {
		if !reasons[want] {
			t.Errorf("missing rejection %q in %+v", want, res.Rejections)
		}
	}
	for _, u := range units {
		if u.Changed() {
			t.Errorf("unit %q should be unchanged, got %q", u.Original, u.Text())
		}
	}
}

func TestRevise_OrderedApplyAcrossBatches(t *testing.T) {
	texts := make([]string, 6)
	for i := range texts {
		texts[i] = strings.Repeat("palavra ", 5) + "fim de frase numero um."
	}
	units := docmodel.PlainUnits(texts)
	fix := func(n int, errText, corr string) review.Proposal {
		return review.Proposal{Paragraph: n, Error: errText, Correction: corr, Type: "x"}
	}
	rev := &scriptedReviewer{byBatch: map[int][]review.Proposal{
		1: {fix(2, "numero", "número"), fix(1, "numero", "número")},
		2: {fix(9, "numero", "número")},
		3: {fix(6, "numero", "número"), fix(6, "fim", "final")},
	}}
	opts := DefaultOptions()
	opts.Limits.MaxUnits = 2
	rv := newTestReviser(t, rev, opts)

	res, err := rv.Revise(context.Background(), units)
	if err != nil {
		t.Fatal(err)
	}
	if res.Batches != 3 {
		t.Fatalf("expected 3 batches, got %d", res.Batches)
	}

	want := []struct {
		unit  int
		error string
	}{{1, "numero"}, {2, "numero"}, {3, "numero"}, {6, "numero"}, {6, "fim"}}
	got := res.Applied()
	if len(got) != len(want) {
		t.Fatalf("applied %+v, want %v", got, want)
	}
	for i, w := range want {
		if got[i].TextIndex != w.unit || got[i].Error != w.error {
			t.Fatalf("correction %d = unit %d %q, want unit %d %q", i, got[i].TextIndex, got[i].Error, w.unit, w.error)
		}
	}
	if units[5].Text() != strings.Repeat("palavra ", 5)+"final de frase número um." {
		t.Fatalf("unit 6 = %q", units[5].Text())
	}
	if units[3].Changed() {
		t.Fatal("unit 4 should be untouched")
	}
}

func TestRevise_FailedBatchYieldsNoCorrections(t *testing.T) {
	units := docmodel.PlainUnits([]string{
		"Primeira frase com erro de acentuaçao no final.",
		"Segunda frase com erro de acentuaçao no final.",
	})
	rev := &scriptedReviewer{
		failBatch: 2,
		byBatch: map[int][]review.Proposal{
			1: {{Paragraph: 1, Error: "acentuaçao", Correction: "acentuação", Type: "x"}},
			2: {{Paragraph: 2, Error: "acentuaçao", Correction: "acentuação", Type: "x"}},
		},
	}
	opts := DefaultOptions()
	opts.Limits.MaxUnits = 1
	rv := newTestReviser(t, rev, opts)

	res, err := rv.Revise(context.Background(), units)
	if err != nil {
		t.Fatal(err)
	}
	if res.FailedBatches != 1 {
		t.Fatalf("expected 1 failed batch, got %d", res.FailedBatches)
	}
	if len(res.Applied()) != 1 || res.Applied()[0].TextIndex != 1 {
		t.Fatalf("expected only unit 1 corrected, got %+v", res.Applied())
	}
	if units[1].Changed() {
		t.Fatal("unit in failed batch should be untouched")
	}
}

func TestRevise_SanityCheckReverts(t *testing.T) {
	units := docmodel.PlainUnits([]string{"Consulte o [anexo 1] antes de responder a questão."})
	rev := &scriptedReviewer{byBatch: map[int][]review.Proposal{1: {
		{Paragraph: 1, Error: "[anexo 1]", Correction: "anexo", Type: "x"},
	}}}
	rv := newTestReviser(t, rev, DefaultOptions())

	res, err := rv.Revise(context.Background(), units)
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Corrections) != 1 || res.Corrections[0].Reverted != RevertMarkup {
		t.Fatalf("expected one reverted correction, got %+v", res.Corrections)
	}
	if units[0].Changed() {
		t.Fatalf("unit should be restored, got %q", units[0].Text())
	}
	if len(res.Changes) != 0 {
		t.Fatalf("expected no changes after revert, got %+v", res.Changes)
	}
}

func TestRevise_IntegrityCheckFindsUnrecordedChange(t *testing.T) {
	units := docmodel.PlainUnits([]string{"Texto sem ponto final"})
	// Simulate an edit made outside the correction flow.
	units[0].Runs[0].SetText("Texto sem ponto final.")

	rv := newTestReviser(t, &scriptedReviewer{}, DefaultOptions())
	res, err := rv.Revise(context.Background(), units)
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Corrections) != 1 || res.Corrections[0].ErrorType != AutoDetected {
		t.Fatalf("expected one auto-detected correction, got %+v", res.Corrections)
	}
	if res.Corrections[0].Correction != "." {
		t.Fatalf("unexpected auto-detected correction %+v", res.Corrections[0])
	}
}

func TestRevise_PerModuleSendsOneRequestPerModule(t *testing.T) {
	units := docmodel.PlainUnits([]string{"Uma frase qualquer para revisar com calma."})
	rev := &scriptedReviewer{}
	opts := DefaultOptions()
	opts.PerModule = true
	rv := newTestReviser(t, rev, opts)

	if _, err := rv.Revise(context.Background(), units); err != nil {
		t.Fatal(err)
	}
	if len(rev.requests) != 2 {
		t.Fatalf("expected 2 requests for the fast mode, got %d", len(rev.requests))
	}
	seen := map[string]bool{}
	for _, r := range rev.requests {
		seen[r.Module] = true
	}
	if !seen[review.ModGrammar] || !seen[review.ModPunctuation] {
		t.Fatalf("unexpected modules %v", seen)
	}
}

func TestRevise_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	rv := newTestReviser(t, &scriptedReviewer{}, DefaultOptions())
	if _, err := rv.Revise(ctx, docmodel.PlainUnits([]string{"Alguma frase."})); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestRevise_LogsPromptSize(t *testing.T) {
	ps, err := review.NewPromptSet("fast", nil)
	if err != nil {
		t.Fatal(err)
	}
	pc, err := protect.New(nil, protect.Options{})
	if err != nil {
		t.Fatal(err)
	}
	var buf bytes.Buffer
	log := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	opts := DefaultOptions()
	opts.CallInterval = 0
	rv := NewReviser(&scriptedReviewer{}, ps, pc, opts, log)

	if _, err := rv.Revise(context.Background(), docmodel.PlainUnits([]string{"Um texto qualquer para revisar."})); err != nil {
		t.Fatal(err)
	}
	out := buf.String()
	if !strings.Contains(out, `msg="batch prepared"`) || !strings.Contains(out, "prompt_tokens=") {
		t.Errorf("batch log missing prompt size:\n%s", out)
	}
	if strings.Contains(out, "prompt_tokens=0 ") {
		t.Errorf("prompt size not estimated:\n%s", out)
	}
}
