package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/dgallion1/docrevise/internal/docmodel"
	"github.com/dgallion1/docrevise/internal/store"
)

// ReviserFactory builds the Reviser for a review mode. An empty mode means
// the configured default.
type ReviserFactory func(mode string) (*Reviser, error)

// Reporter renders the report kept with a finished job.
type Reporter func(job JobSnapshot, res *Result) ([]byte, error)

// Worker revises one uploaded document per job.
type Worker struct {
	newReviser ReviserFactory
	report     Reporter
	history    *store.Store
	model      string
	log        *slog.Logger
}

func NewWorker(newReviser ReviserFactory, report Reporter, history *store.Store, model string, log *slog.Logger) *Worker {
	return &Worker{newReviser: newReviser, report: report, history: history, model: model, log: log}
}

// Process runs a job to a final status.
func (w *Worker) Process(ctx context.Context, job *Job) {
	log := w.log.With("job_id", job.ID, "filename", job.Filename)
	started := time.Now()

	// Phase 1: parse
	job.SetStatus(StatusParsing, "parsing")
	doc, err := docmodel.Parse(job.Input())
	if err != nil {
		log.Error("parse failed", "error", err)
		job.AddError(fmt.Sprintf("parse: %s", err))
		job.SetStatus(StatusFailed, "parsing")
		return
	}
	units := doc.Units()

	rv, err := w.newReviser(job.Mode)
	if err != nil {
		log.Error("reviser setup failed", "error", err)
		job.AddError(err.Error())
		job.SetStatus(StatusFailed, "parsing")
		return
	}

	// Phase 2: review and apply
	job.SetStatus(StatusReviewing, "reviewing")
	res, err := rv.Revise(ctx, units)
	if err != nil {
		log.Error("revision failed", "error", err)
		job.AddError(fmt.Sprintf("revise: %s", err))
		job.SetStatus(StatusFailed, "reviewing")
		return
	}
	job.SetResult(res)
	if res.FailedBatches > 0 {
		job.AddError(fmt.Sprintf("%d of %d batches failed", res.FailedBatches, res.Batches))
	}

	// Phase 3: save
	job.SetStatus(StatusSaving, "saving")
	out, err := doc.Bytes()
	if err != nil {
		log.Error("save failed", "error", err)
		job.AddError(fmt.Sprintf("save: %s", err))
		job.SetStatus(StatusFailed, "saving")
		return
	}
	rep, err := w.report(job.Snapshot(), res)
	if err != nil {
		log.Warn("report failed", "error", err)
		job.AddError(fmt.Sprintf("report: %s", err))
	}
	job.SetOutputs(out, rep)

	if w.history != nil {
		run, corrs := HistoryRun(job.Filename, "", job.Mode, w.model, job.ContentHash, started, res)
		run.ID = job.ID
		if err := w.history.RecordRun(ctx, run, corrs); err != nil {
			log.Warn("history write failed", "error", err)
		}
	}

	if res.FailedBatches > 0 {
		job.SetStatus(StatusPartial, "done")
	} else {
		job.SetStatus(StatusCompleted, "done")
	}
	log.Info("job finished", "corrections", len(res.Applied()), "elapsed", time.Since(started).Round(time.Millisecond))
}

// HistoryRun converts a revision result into history rows.
func HistoryRun(source, output, mode, model, hash string, started time.Time, res *Result) (*store.Run, []store.Correction) {
	run := &store.Run{
		Source:        source,
		Output:        output,
		Mode:          mode,
		Model:         model,
		ContentHash:   hash,
		Units:         res.Units,
		Batches:       res.Batches,
		FailedBatches: res.FailedBatches,
		Corrections:   len(res.Applied()),
		Rejected:      len(res.Rejections),
		Protected:     len(res.Protected),
		StartedAt:     started,
		FinishedAt:    time.Now(),
	}
	corrs := make([]store.Correction, len(res.Corrections))
	for i, c := range res.Corrections {
		corrs[i] = store.Correction{
			TextIndex:  c.TextIndex,
			Location:   c.Location,
			Error:      c.Error,
			Correction: c.Correction,
			ErrorType:  c.ErrorType,
			Reverted:   c.Reverted,
		}
	}
	return run, corrs
}
