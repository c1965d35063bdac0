package main

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/dgallion1/docrevise/internal/config"
	"github.com/dgallion1/docrevise/internal/pipeline"
	"github.com/dgallion1/docrevise/internal/review"
	"github.com/dgallion1/docrevise/internal/store"
)

var (
	cfgFile  string
	logLevel string
)

var rootCmd = &cobra.Command{
	Use:   "docrevise",
	Short: "Grammar and spelling revision for Word documents",
	Long: `docrevise sends the paragraphs and table cells of a .docx to a language
model in batches, applies the proposed corrections without disturbing run
formatting, and writes the revised document with a JSON report.

Quoted material such as quiz options, bibliography entries, URLs and
curriculum codes is detected and never sent for review.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(
		&cfgFile, "config", "", "config file (default: ./docrevise.yaml or ~/.docrevise/docrevise.yaml)",
	)
	rootCmd.PersistentFlags().StringVar(
		&logLevel, "log-level", "", "override log.level (debug, info, warn, error)",
	)
}

// loadConfig reads the configuration and applies --log-level.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, err
	}
	if logLevel != "" {
		cfg.Log.Level = logLevel
	}
	return cfg, nil
}

// cliLogger writes text logs to stderr so stdout stays clean for results.
func cliLogger(cfg *config.Config) *slog.Logger {
	return cfg.Log.Logger(os.Stderr, false)
}

// newClient builds the review client for the configured provider.
func newClient(cfg *config.Config, log *slog.Logger) (*review.Client, error) {
	p, err := cfg.Review.NewProvider()
	if err != nil {
		return nil, err
	}
	return review.NewClient(p, cfg.Review.RetryPolicy(), log,
		review.WithStats(review.NewStats(cfg.Review.StatsWindow)),
		review.WithMinConfidence(cfg.Review.MinConfidence),
	), nil
}

// reviserFactory builds a Reviser per run from the current configuration.
func reviserFactory(r pipeline.Reviewer, current func() *config.Config, log *slog.Logger) pipeline.ReviserFactory {
	return func(mode string) (*pipeline.Reviser, error) {
		cfg := current()
		ps, err := cfg.Review.Prompts(mode)
		if err != nil {
			return nil, err
		}
		pc, err := cfg.Protect.Classifier()
		if err != nil {
			return nil, err
		}
		return pipeline.NewReviser(r, ps, pc, cfg.PipelineOptions(), log), nil
	}
}

// openHistory opens the history store. An empty path disables history.
func openHistory(cfg *config.Config, log *slog.Logger) *store.Store {
	if cfg.History.Path == "" {
		return nil
	}
	hist, err := store.Open(cfg.History.Path)
	if err != nil {
		log.Warn("history disabled", "path", cfg.History.Path, "error", err)
		return nil
	}
	return hist
}

// siblingPath replaces path's extension with suffix.
func siblingPath(path, suffix string) string {
	return strings.TrimSuffix(path, filepath.Ext(path)) + suffix
}

