// Package pipeline runs the revision of a document: protection, batching,
// concurrent review, ordered application of corrections and the checks that
// follow.
package pipeline

import (
	"context"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/dgallion1/docrevise/internal/blocks"
	"github.com/dgallion1/docrevise/internal/changes"
	"github.com/dgallion1/docrevise/internal/docmodel"
	"github.com/dgallion1/docrevise/internal/patch"
	"github.com/dgallion1/docrevise/internal/protect"
	"github.com/dgallion1/docrevise/internal/review"
	"github.com/dgallion1/docrevise/internal/textdiff"
)

// AutoDetected is the error type of changes found by the integrity check.
const AutoDetected = "auto-detectado"

// Reviewer returns correction proposals for one rendered batch.
type Reviewer interface {
	Review(ctx context.Context, req review.Request) ([]review.Proposal, error)
}

// Options tunes a Reviser.
type Options struct {
	Limits blocks.Limits
	// Workers is the number of concurrent review calls.
	Workers int
	// CallInterval is the minimum pause between two calls of one worker.
	CallInterval time.Duration
	// PerModule sends each batch once per correction module.
	PerModule bool
	// MaxLengthDelta bounds how much longer or shorter a correction may be
	// than its error, in runes.
	MaxLengthDelta int
	// SanityCheck reverts units whose corrections broke markup, URLs or
	// overall length.
	SanityCheck bool
}

func DefaultOptions() Options {
	return Options{
		Limits:         blocks.DefaultLimits(),
		Workers:        3,
		CallInterval:   50 * time.Millisecond,
		MaxLengthDelta: 20,
		SanityCheck:    true,
	}
}

// Correction is a proposal that was applied, or found by the integrity
// check.
type Correction struct {
	Batch      int               `json:"block"`
	Module     string            `json:"module,omitempty"`
	TextIndex  int               `json:"text_index"`
	Location   string            `json:"location"`
	Kind       docmodel.UnitKind `json:"type"`
	Error      string            `json:"error"`
	Correction string            `json:"correction"`
	ErrorType  string            `json:"error_type"`
	Original   string            `json:"original_text"`
	Corrected  string            `json:"corrected_text"`
	// Reverted holds the sanity check failure that undid this correction.
	Reverted string `json:"reverted,omitempty"`
}

// Rejection is a proposal that was not applied.
type Rejection struct {
	Batch      int    `json:"block"`
	TextIndex  int    `json:"text_index"`
	Location   string `json:"location,omitempty"`
	Error      string `json:"error"`
	Correction string `json:"correction"`
	Reason     string `json:"reason"`
}

// ProtectedText is a unit that was never sent for review.
type ProtectedText struct {
	TextIndex int    `json:"text_index"`
	Location  string `json:"location"`
	Reason    string `json:"reason"`
	Text      string `json:"text"`
}

// Result summarizes one revision.
type Result struct {
	Units         int              `json:"units"`
	Batches       int              `json:"batches"`
	FailedBatches int              `json:"failed_batches"`
	Corrections   []Correction     `json:"corrections"`
	Rejections    []Rejection      `json:"rejections"`
	Protected     []ProtectedText  `json:"protected"`
	Changes       []changes.Record `json:"changes"`
}

// Applied returns the corrections that remain in the document.
func (r *Result) Applied() []Correction {
	var out []Correction
	for _, c := range r.Corrections {
		if c.Reverted == "" {
			out = append(out, c)
		}
	}
	return out
}

// Reviser revises text units through a Reviewer.
type Reviser struct {
	reviewer Reviewer
	prompts  *review.PromptSet
	protect  *protect.Classifier
	opts     Options
	log      *slog.Logger
}

func NewReviser(r Reviewer, prompts *review.PromptSet, pc *protect.Classifier, opts Options, log *slog.Logger) *Reviser {
	if opts.Workers < 1 {
		opts.Workers = 1
	}
	return &Reviser{reviewer: r, prompts: prompts, protect: pc, opts: opts, log: log}
}

type task struct {
	seq    int
	batch  int
	module string
	prompt string
	units  []*docmodel.TextUnit
}

type taskResult struct {
	task      *task
	proposals []review.Proposal
	err       error
}

// Revise reviews units and patches their runs in place. Failed batches
// contribute no corrections; only cancellation of ctx fails the run.
func (rv *Reviser) Revise(ctx context.Context, units []*docmodel.TextUnit) (*Result, error) {
	res := &Result{}
	rv.markProtected(units, res)

	var pending []*docmodel.TextUnit
	for _, u := range units {
		if u.Blank() {
			continue
		}
		res.Units++
		if !u.Protected {
			pending = append(pending, u)
		}
	}

	batches := blocks.Build(pending, func(u *docmodel.TextUnit) int {
		return utf8.RuneCountInString(u.Text())
	}, rv.opts.Limits)
	res.Batches = len(batches)
	rv.log.Info("revision started", "units", res.Units, "protected", len(res.Protected), "batches", len(batches))

	tasks := rv.tasks(batches)
	results := rv.run(ctx, tasks)
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	failed := make(map[int]bool)
	for _, r := range results {
		if r.err != nil {
			failed[r.task.batch] = true
		}
	}
	res.FailedBatches = len(failed)

	snaps := rv.apply(units, results, res)
	rv.verify(units, snaps, res)
	for _, u := range units {
		if u.Changed() {
			res.Changes = append(res.Changes,
				changes.Annotate(changes.Classify(u.Original, u.Text(), changes.Options{}), u.Ordinal, u.Location)...)
		}
	}
	rv.log.Info("revision finished",
		"corrections", len(res.Applied()),
		"rejected", len(res.Rejections),
		"failed_batches", res.FailedBatches)
	return res, nil
}

func (rv *Reviser) markProtected(units []*docmodel.TextUnit, res *Result) {
	var body []*docmodel.TextUnit
	var texts []string
	for _, u := range units {
		if u.Kind == docmodel.KindParagraph {
			body = append(body, u)
			texts = append(texts, u.Text())
		}
	}
	verdicts := rv.protect.ClassifyAll(texts)
	for i, u := range body {
		u.Protected, u.Reason = verdicts[i].Protected, verdicts[i].Reason
	}
	for _, u := range units {
		if u.Kind == docmodel.KindTable {
			v := rv.protect.Classify(u.Text())
			u.Protected, u.Reason = v.Protected, v.Reason
		}
		if u.Protected && !u.Blank() {
			res.Protected = append(res.Protected, ProtectedText{
				TextIndex: u.Ordinal,
				Location:  u.Location,
				Reason:    u.Reason,
				Text:      u.Text(),
			})
		}
	}
}

func (rv *Reviser) tasks(batches []blocks.Batch[*docmodel.TextUnit]) []*task {
	sets := []*review.PromptSet{rv.prompts}
	if rv.opts.PerModule {
		sets = rv.prompts.Split()
	}
	var out []*task
	for _, b := range batches {
		items := make([]blocks.Item, len(b.Items))
		for i, u := range b.Items {
			items[i] = blocks.Item{Index: u.Ordinal, Kind: string(u.Kind), Location: u.Location, Text: u.Text()}
		}
		text := blocks.Render(items)
		for _, ps := range sets {
			t := &task{seq: len(out), batch: b.Index + 1, prompt: ps.Build(text), units: b.Items}
			if rv.opts.PerModule {
				names := ps.Names()
				t.module = names[len(names)-1]
			}
			rv.log.Debug("batch prepared", "batch", t.batch, "module", t.module,
				"units", len(b.Items), "chars", b.Chars, "prompt_tokens", blocks.EstimateTokens(t.prompt))
			out = append(out, t)
		}
	}
	return out
}

// run executes tasks on a fixed pool of workers and returns the results in
// task order.
func (rv *Reviser) run(ctx context.Context, tasks []*task) []taskResult {
	queue := make(chan *task)
	var (
		mu      sync.Mutex
		results []taskResult
		wg      sync.WaitGroup
	)
	for range min(rv.opts.Workers, max(len(tasks), 1)) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			first := true
			for t := range queue {
				if !first && rv.opts.CallInterval > 0 {
					select {
					case <-time.After(rv.opts.CallInterval):
					case <-ctx.Done():
					}
				}
				first = false
				if ctx.Err() != nil {
					continue
				}
				props, err := rv.reviewer.Review(ctx, review.Request{Batch: t.batch, Module: t.module, Prompt: t.prompt})
				if err != nil {
					rv.log.Error("batch review failed", "batch", t.batch, "module", t.module, "error", err)
				}
				mu.Lock()
				results = append(results, taskResult{task: t, proposals: props, err: err})
				mu.Unlock()
			}
		}()
	}
	for _, t := range tasks {
		select {
		case queue <- t:
		case <-ctx.Done():
		}
		if ctx.Err() != nil {
			break
		}
	}
	close(queue)
	wg.Wait()

	sort.Slice(results, func(i, j int) bool { return results[i].task.seq < results[j].task.seq })
	return results
}

type resolved struct {
	unit  *docmodel.TextUnit
	pos   int
	batch int
	mod   string
	p     review.Proposal
}

// apply resolves every proposal to a unit and patches units in document
// order. Proposals for the same unit keep batch then response order. It
// returns the run texts of every patched unit as they were before patching.
func (rv *Reviser) apply(units []*docmodel.TextUnit, results []taskResult, res *Result) map[*docmodel.TextUnit][]string {
	position := make(map[*docmodel.TextUnit]int, len(units))
	for i, u := range units {
		position[u] = i
	}

	var queue []resolved
	for _, r := range results {
		for _, p := range r.proposals {
			u := findUnit(r.task.units, p)
			if u == nil {
				rv.reject(res, r.task.batch, nil, p, RejectNotFound)
				continue
			}
			queue = append(queue, resolved{unit: u, pos: position[u], batch: r.task.batch, mod: r.task.module, p: p})
		}
	}
	sort.SliceStable(queue, func(i, j int) bool { return queue[i].pos < queue[j].pos })

	snaps := make(map[*docmodel.TextUnit][]string)
	for _, q := range queue {
		u := q.unit
		if reason := checkProposal(u.Text(), q.p, u.Protected, rv.opts.MaxLengthDelta); reason != "" {
			rv.reject(res, q.batch, u, q.p, reason)
			continue
		}
		if _, ok := snaps[u]; !ok {
			snaps[u] = patch.Snapshot(u.Runs)
		}
		if !patch.Apply(u.Runs, q.p.Error, q.p.Correction) {
			rv.reject(res, q.batch, u, q.p, RejectPatchFailed)
			continue
		}
		res.Corrections = append(res.Corrections, Correction{
			Batch:      q.batch,
			Module:     q.mod,
			TextIndex:  u.Ordinal,
			Location:   u.Location,
			Kind:       u.Kind,
			Error:      q.p.Error,
			Correction: q.p.Correction,
			ErrorType:  q.p.Type,
			Original:   u.Original,
			Corrected:  u.Text(),
		})
		rv.log.Debug("correction applied", "location", u.Location, "error", q.p.Error, "correction", q.p.Correction)
	}
	return snaps
}

// findUnit picks the unit a proposal refers to: the numbered unit when it
// contains the error text, else the first unit in the batch that does.
func findUnit(units []*docmodel.TextUnit, p review.Proposal) *docmodel.TextUnit {
	for _, u := range units {
		if u.Ordinal == p.Paragraph && contains(u, p.Error) {
			return u
		}
	}
	for _, u := range units {
		if contains(u, p.Error) {
			return u
		}
	}
	return nil
}

func contains(u *docmodel.TextUnit, s string) bool {
	return s != "" && strings.Contains(u.Text(), s)
}

func (rv *Reviser) reject(res *Result, batch int, u *docmodel.TextUnit, p review.Proposal, reason string) {
	r := Rejection{Batch: batch, TextIndex: p.Paragraph, Error: p.Error, Correction: p.Correction, Reason: reason}
	if u != nil {
		r.TextIndex, r.Location = u.Ordinal, u.Location
	}
	res.Rejections = append(res.Rejections, r)
	rv.log.Info("correction rejected", "batch", batch, "text", r.TextIndex, "error", p.Error, "reason", reason)
}

// verify reverts units that fail the sanity check and records changes no
// correction accounts for.
func (rv *Reviser) verify(units []*docmodel.TextUnit, snaps map[*docmodel.TextUnit][]string, res *Result) {
	byUnit := make(map[int][]int)
	for i, c := range res.Corrections {
		byUnit[c.TextIndex] = append(byUnit[c.TextIndex], i)
	}

	for _, u := range units {
		idx := byUnit[u.Ordinal]
		if len(idx) == 0 {
			continue
		}
		reason := ""
		if rv.opts.SanityCheck {
			reason = sanityCheck(u.Original, u.Text())
		}
		if reason != "" {
			rv.log.Warn("corrections reverted", "location", u.Location, "reason", reason)
			patch.Restore(u.Runs, snaps[u])
		}
		for _, i := range idx {
			res.Corrections[i].Corrected = u.Text()
			res.Corrections[i].Reverted = reason
		}
	}

	for _, u := range units {
		if !u.Changed() {
			continue
		}
		accounted := false
		for _, i := range byUnit[u.Ordinal] {
			if res.Corrections[i].Reverted == "" {
				accounted = true
				break
			}
		}
		if accounted {
			continue
		}
		rv.log.Warn("unrecorded change detected", "location", u.Location)
		for _, r := range changes.Classify(u.Original, u.Text(), changes.Options{Granularity: textdiff.Words}) {
			res.Corrections = append(res.Corrections, Correction{
				TextIndex:  u.Ordinal,
				Location:   u.Location,
				Kind:       u.Kind,
				Error:      r.Error,
				Correction: r.Correction,
				ErrorType:  AutoDetected,
				Original:   u.Original,
				Corrected:  u.Text(),
			})
		}
	}
}
