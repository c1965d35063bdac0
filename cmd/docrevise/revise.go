package main

import (
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/dgallion1/docrevise/internal/config"
	"github.com/dgallion1/docrevise/internal/docmodel"
	"github.com/dgallion1/docrevise/internal/pipeline"
	"github.com/dgallion1/docrevise/internal/report"
)

var (
	reviseOutput string
	reviseMode   string
	reviseReport string
)

var reviseCmd = &cobra.Command{
	Use:   "revise <in.docx>",
	Short: "Revise a Word document",
	Long: `Revise a .docx and write the result to a new file. Every run keeps its
formatting; only the text of corrected runs changes.

Outputs (defaults derive from the output path):
  <name>_revisado.docx             revised document
  <name>_revisado_detalhado.json   revision report
  <name>_revisado_agrupado.json    changes grouped by estimated page

Examples:
  docrevise revise livro.docx
  docrevise revise livro.docx --mode editorial -o final.docx`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		log := cliLogger(cfg)
		if err := cfg.Validate(); err != nil {
			log.Error("invalid configuration", "error", err)
			return err
		}

		in := args[0]
		out := reviseOutput
		if out == "" {
			out = siblingPath(in, "_revisado.docx")
		}
		reportPath := reviseReport
		if reportPath == "" {
			reportPath = siblingPath(out, "_detalhado.json")
		}
		mode := reviseMode
		if mode == "" {
			mode = cfg.Review.Mode
		}

		data, err := os.ReadFile(in)
		if err != nil {
			return fmt.Errorf("read %s: %w", in, err)
		}
		doc, err := docmodel.Parse(data)
		if err != nil {
			return fmt.Errorf("parse %s: %w", in, err)
		}

		client, err := newClient(cfg, log)
		if err != nil {
			return err
		}
		defer client.Close()

		hist := openHistory(cfg, log)
		if hist != nil {
			defer hist.Close()
		}

		runID := uuid.NewString()
		hash := pipeline.ContentHashHex(data)
		log = log.With("run_id", runID, "source", in, "mode", mode)
		if hist != nil {
			if prev, err := hist.LatestByHash(cmd.Context(), hash); err == nil && prev != nil {
				log.Info("document revised before", "previous_run", prev.ID, "at", prev.FinishedAt)
			}
		}

		rv, err := reviserFactory(client, func() *config.Config { return cfg }, log)(mode)
		if err != nil {
			return err
		}
		started := time.Now()
		res, err := rv.Revise(cmd.Context(), doc.Units())
		if err != nil {
			return fmt.Errorf("revise %s: %w", in, err)
		}

		if err := doc.Save(out); err != nil {
			return fmt.Errorf("save %s: %w", out, err)
		}
		meta := report.Meta{RunID: runID, Source: in, Output: out, Mode: mode, Model: client.Model()}
		if err := report.WriteJSON(reportPath, report.NewRevision(meta, res)); err != nil {
			return err
		}
		groupedPath := siblingPath(out, "_agrupado.json")
		if err := report.WriteJSON(groupedPath, report.GroupByPage(res.Changes)); err != nil {
			return err
		}

		if hist != nil {
			run, corrs := pipeline.HistoryRun(in, out, mode, client.Model(), hash, started, res)
			run.ID = runID
			if err := hist.RecordRun(cmd.Context(), run, corrs); err != nil {
				log.Warn("history write failed", "error", err)
			}
		}

		log.Info("revision finished",
			"corrections", len(res.Applied()),
			"rejected", len(res.Rejections),
			"protected", len(res.Protected),
			"failed_batches", res.FailedBatches,
			"elapsed", time.Since(started).Round(time.Millisecond))
		w := cmd.OutOrStdout()
		fmt.Fprintf(w, "%s\n%s\n%s\n", out, reportPath, groupedPath)
		if res.FailedBatches > 0 {
			fmt.Fprintf(w, "warning: %d of %d batches failed; their text was left unchanged\n", res.FailedBatches, res.Batches)
		}
		return nil
	},
}

func init() {
	reviseCmd.Flags().StringVarP(&reviseOutput, "output", "o", "", "revised document path")
	reviseCmd.Flags().StringVar(&reviseMode, "mode", "", "review mode: fast, conservador, balanceado or editorial")
	reviseCmd.Flags().StringVar(&reviseReport, "report", "", "revision report path")

	rootCmd.AddCommand(reviseCmd)
}
