package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/dgallion1/docrevise/internal/docmodel"
	"github.com/dgallion1/docrevise/internal/pipeline"
	"github.com/dgallion1/docrevise/internal/protect"
	"github.com/dgallion1/docrevise/internal/report"
	"github.com/dgallion1/docrevise/internal/review"
	"github.com/dgallion1/docrevise/internal/store"
)

const testKey = "test-key"

type fixedReviewer struct {
	props []review.Proposal
}

func (f fixedReviewer) Review(ctx context.Context, req review.Request) ([]review.Proposal, error) {
	return f.props, nil
}

type fakeLLM struct {
	stats *review.Stats
}

func (f fakeLLM) Model() string        { return "fake-model" }
func (f fakeLLM) Stats() *review.Stats { return f.stats }

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func docBytes(t *testing.T, paras ...string) []byte {
	t.Helper()
	d := docmodel.New()
	for _, p := range paras {
		d.AddParagraph().AddRun(p, docmodel.Style{})
	}
	data, err := d.Bytes()
	if err != nil {
		t.Fatal(err)
	}
	return data
}

type upload struct {
	field, filename string
	data            []byte
}

func multipartBody(t *testing.T, fields map[string]string, files ...upload) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range fields {
		if err := mw.WriteField(k, v); err != nil {
			t.Fatal(err)
		}
	}
	for _, f := range files {
		fw, err := mw.CreateFormFile(f.field, f.filename)
		if err != nil {
			t.Fatal(err)
		}
		fw.Write(f.data)
	}
	if err := mw.Close(); err != nil {
		t.Fatal(err)
	}
	return &buf, mw.FormDataContentType()
}

type testEnv struct {
	srv  *httptest.Server
	orch *pipeline.Orchestrator
	hist *store.Store
}

func newTestEnv(t *testing.T, start bool, queueSize int, llm LLM) *testEnv {
	t.Helper()
	hist, err := store.Open(":memory:")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { hist.Close() })

	ps, err := review.NewPromptSet("fast", nil)
	if err != nil {
		t.Fatal(err)
	}
	pc, err := protect.New(nil, protect.Options{MaxBacktrack: 15, ContextTracking: true})
	if err != nil {
		t.Fatal(err)
	}
	opts := pipeline.DefaultOptions()
	opts.CallInterval = 0
	rv := pipeline.NewReviser(fixedReviewer{props: []review.Proposal{
		{Paragraph: 1, Error: "esta", Correction: "está", Type: "acentuação"},
	}}, ps, pc, opts, discardLogger())

	orch := pipeline.NewOrchestrator(
		pipeline.OrchestratorConfig{Workers: 1, QueueSize: queueSize, JobTTL: time.Hour, Model: "fake-model"},
		func(string) (*pipeline.Reviser, error) { return rv, nil },
		report.Reporter("fake-model"), hist, discardLogger())
	if start {
		orch.Start(context.Background())
		t.Cleanup(orch.Stop)
	}

	srv := httptest.NewServer(NewServer(orch, llm, discardLogger(), Options{APIKey: testKey, MaxUploadBytes: 1 << 20}))
	t.Cleanup(srv.Close)
	return &testEnv{srv: srv, orch: orch, hist: hist}
}

func (e *testEnv) do(t *testing.T, method, path string, body io.Reader, contentType string) *http.Response {
	t.Helper()
	req, err := http.NewRequest(method, e.srv.URL+path, body)
	if err != nil {
		t.Fatal(err)
	}
	req.Header.Set("Authorization", "Bearer "+testKey)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decode(t *testing.T, resp *http.Response, v any) {
	t.Helper()
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		t.Fatal(err)
	}
}

func TestHealth_NoAuth(t *testing.T) {
	env := newTestEnv(t, false, 1, nil)
	resp, err := http.Get(env.srv.URL + "/health")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
}

func TestAuth_Rejects(t *testing.T) {
	env := newTestEnv(t, false, 1, nil)
	for name, header := range map[string]string{
		"missing": "",
		"wrong":   "Bearer nope",
		"scheme":  "Basic " + testKey,
	} {
		t.Run(name, func(t *testing.T) {
			req, _ := http.NewRequest(http.MethodGet, env.srv.URL+"/api/history", nil)
			if header != "" {
				req.Header.Set("Authorization", header)
			}
			resp, err := http.DefaultClient.Do(req)
			if err != nil {
				t.Fatal(err)
			}
			defer resp.Body.Close()
			if resp.StatusCode != http.StatusUnauthorized {
				t.Fatalf("status = %d", resp.StatusCode)
			}
		})
	}
}

func TestRevision_EndToEnd(t *testing.T) {
	env := newTestEnv(t, true, 4, nil)

	body, ct := multipartBody(t, map[string]string{"mode": "fast"},
		upload{"file", "aula.docx", docBytes(t, "Isso esta errado")})
	resp := env.do(t, http.MethodPost, "/api/revisions", body, ct)
	if resp.StatusCode != http.StatusAccepted {
		t.Fatalf("submit status = %d", resp.StatusCode)
	}
	var sub struct {
		JobID   string `json:"job_id"`
		PollURL string `json:"poll_url"`
	}
	decode(t, resp, &sub)

	var snap pipeline.JobSnapshot
	deadline := time.Now().Add(5 * time.Second)
	for {
		decode(t, env.do(t, http.MethodGet, sub.PollURL, nil, ""), &snap)
		if snap.Status.Done() {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("job did not finish: %+v", snap)
		}
		time.Sleep(10 * time.Millisecond)
	}
	if snap.Status != pipeline.StatusCompleted || snap.Mode != "fast" {
		t.Fatalf("snapshot = %+v", snap)
	}

	resp = env.do(t, http.MethodGet, "/api/revisions/"+sub.JobID+"/document", nil, "")
	if resp.StatusCode != http.StatusOK || resp.Header.Get("Content-Type") != docxContentType {
		t.Fatalf("document status = %d, type %q", resp.StatusCode, resp.Header.Get("Content-Type"))
	}
	data, _ := io.ReadAll(resp.Body)
	d, err := docmodel.Parse(data)
	if err != nil {
		t.Fatal(err)
	}
	if got := d.Paragraphs()[0].Text(); got != "Isso está errado" {
		t.Fatalf("revised text = %q", got)
	}

	var rev report.Revision
	decode(t, env.do(t, http.MethodGet, "/api/revisions/"+sub.JobID+"/report", nil, ""), &rev)
	if rev.RunID != sub.JobID || rev.Summary.Total != 1 || rev.Source != "aula.docx" {
		t.Fatalf("report = %+v", rev)
	}

	var hist struct {
		Runs []store.Run `json:"runs"`
	}
	decode(t, env.do(t, http.MethodGet, "/api/history?limit=5", nil, ""), &hist)
	if len(hist.Runs) != 1 || hist.Runs[0].ID != sub.JobID {
		t.Fatalf("history = %+v", hist.Runs)
	}

	var one struct {
		Run         store.Run          `json:"run"`
		Corrections []store.Correction `json:"corrections"`
	}
	decode(t, env.do(t, http.MethodGet, "/api/history/"+sub.JobID, nil, ""), &one)
	if len(one.Corrections) != 1 || one.Corrections[0].Correction != "está" {
		t.Fatalf("history run = %+v", one)
	}
}

func TestRevision_BadRequests(t *testing.T) {
	env := newTestEnv(t, false, 1, nil)
	tests := []struct {
		name   string
		fields map[string]string
		files  []upload
		want   int
	}{
		{"no file", nil, nil, http.StatusBadRequest},
		{"wrong extension", nil, []upload{{"file", "notas.txt", []byte("x")}}, http.StatusBadRequest},
		{"unknown mode", map[string]string{"mode": "turbo"}, []upload{{"file", "a.docx", []byte("x")}}, http.StatusBadRequest},
		{"too large", nil, []upload{{"file", "a.docx", bytes.Repeat([]byte("x"), 1<<20+1)}}, http.StatusRequestEntityTooLarge},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			body, ct := multipartBody(t, tt.fields, tt.files...)
			resp := env.do(t, http.MethodPost, "/api/revisions", body, ct)
			if resp.StatusCode != tt.want {
				t.Fatalf("status = %d, want %d", resp.StatusCode, tt.want)
			}
		})
	}
}

func TestRevision_QueueStates(t *testing.T) {
	env := newTestEnv(t, false, 1, nil)

	body, ct := multipartBody(t, nil, upload{"file", "a.docx", docBytes(t, "Texto.")})
	resp := env.do(t, http.MethodPost, "/api/revisions", body, ct)
	if resp.StatusCode != http.StatusAccepted {
		t.Fatalf("first submit = %d", resp.StatusCode)
	}
	var sub struct {
		JobID string `json:"job_id"`
	}
	decode(t, resp, &sub)

	if resp := env.do(t, http.MethodGet, "/api/revisions/"+sub.JobID+"/document", nil, ""); resp.StatusCode != http.StatusConflict {
		t.Fatalf("queued document = %d, want 409", resp.StatusCode)
	}

	body, ct = multipartBody(t, nil, upload{"file", "b.docx", docBytes(t, "Texto.")})
	if resp := env.do(t, http.MethodPost, "/api/revisions", body, ct); resp.StatusCode != http.StatusServiceUnavailable {
		t.Fatalf("full queue = %d, want 503", resp.StatusCode)
	}

	if resp := env.do(t, http.MethodGet, "/api/revisions/missing/status", nil, ""); resp.StatusCode != http.StatusNotFound {
		t.Fatalf("unknown job = %d", resp.StatusCode)
	}
}

func TestCompare(t *testing.T) {
	env := newTestEnv(t, false, 1, nil)
	files := []upload{
		{"original", "a.docx", docBytes(t, "Isso esta errado", "Igual.")},
		{"revised", "b.docx", docBytes(t, "Isso está errado", "Igual.")},
	}

	body, ct := multipartBody(t, nil, files...)
	var cmp report.Comparison
	decode(t, env.do(t, http.MethodPost, "/api/compare", body, ct), &cmp)
	if cmp.Total != 1 || cmp.Changes[0].Location != "Parágrafo 1" {
		t.Fatalf("comparison = %+v", cmp)
	}

	body, ct = multipartBody(t, nil, files...)
	var grouped report.Grouped
	decode(t, env.do(t, http.MethodPost, "/api/compare?format=grouped", body, ct), &grouped)
	if len(grouped.Pages["pagina_1"].Corrections) != 1 {
		t.Fatalf("grouped = %+v", grouped)
	}

	body, ct = multipartBody(t, nil, files...)
	resp := env.do(t, http.MethodPost, "/api/compare?format=docx", body, ct)
	if resp.StatusCode != http.StatusOK || resp.Header.Get("Content-Type") != docxContentType {
		t.Fatalf("docx status = %d", resp.StatusCode)
	}

	body, ct = multipartBody(t, nil, files...)
	if resp := env.do(t, http.MethodPost, "/api/compare?format=pdf", body, ct); resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("bad format = %d", resp.StatusCode)
	}

	body, ct = multipartBody(t, nil, files[0], upload{"revised", "b.docx", []byte("not a zip")})
	if resp := env.do(t, http.MethodPost, "/api/compare", body, ct); resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("corrupt document = %d", resp.StatusCode)
	}
}

func TestHistory_BadLimit(t *testing.T) {
	env := newTestEnv(t, false, 1, nil)
	if resp := env.do(t, http.MethodGet, "/api/history?limit=-1", nil, ""); resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	if resp := env.do(t, http.MethodGet, "/api/history/none", nil, ""); resp.StatusCode != http.StatusNotFound {
		t.Fatalf("missing run = %d", resp.StatusCode)
	}
}

func TestLLMStats(t *testing.T) {
	env := newTestEnv(t, false, 1, nil)
	if resp := env.do(t, http.MethodGet, "/api/stats/llm", nil, ""); resp.StatusCode != http.StatusServiceUnavailable {
		t.Fatalf("nil llm = %d", resp.StatusCode)
	}

	stats := review.NewStats(time.Hour)
	stats.Record(100, nil)
	stats.Record(300, nil)
	env = newTestEnv(t, false, 1, fakeLLM{stats: stats})
	var out struct {
		Model string               `json:"model"`
		Stats review.StatsSnapshot `json:"stats"`
	}
	decode(t, env.do(t, http.MethodGet, "/api/stats/llm", nil, ""), &out)
	if out.Model != "fake-model" || out.Stats.Count != 2 || out.Stats.AvgMs != 200 {
		t.Fatalf("stats = %+v", out)
	}
}

func TestSanitizeFilename(t *testing.T) {
	tests := map[string]string{
		"aula.docx":             "aula.docx",
		"../../etc/passwd.docx": "passwd.docx",
		`C:\docs\livro.docx`:    "livro.docx",
		"a..b.docx":             "a_b.docx",
		"":                      "unnamed",
	}
	for in, want := range tests {
		if got := sanitizeFilename(in); got != want {
			t.Errorf("sanitizeFilename(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestRevisions_AfterShutdown(t *testing.T) {
	env := newTestEnv(t, true, 4, nil)
	env.orch.Stop()

	body, ct := multipartBody(t, nil, upload{"file", "a.docx", docBytes(t, "Texto.")})
	if resp := env.do(t, http.MethodPost, "/api/revisions", body, ct); resp.StatusCode != http.StatusServiceUnavailable {
		t.Fatalf("submit after stop = %d, want 503", resp.StatusCode)
	}
}
