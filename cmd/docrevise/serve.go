package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/dgallion1/docrevise/internal/api"
	"github.com/dgallion1/docrevise/internal/changes"
	"github.com/dgallion1/docrevise/internal/config"
	"github.com/dgallion1/docrevise/internal/pipeline"
	"github.com/dgallion1/docrevise/internal/report"
	"github.com/dgallion1/docrevise/internal/textdiff"
)

var servePort string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the revision HTTP API",
	Long: `Start the HTTP API. Uploaded documents are queued and revised by a pool of
background workers; clients poll for status and download the results.

Changes to the config file are picked up without a restart for review mode,
protection rules, batching and apply settings. Provider, model and server
settings need a restart.

Examples:
  docrevise serve
  docrevise serve --port 9000`,
	RunE: func(cmd *cobra.Command, args []string) error {
		m, err := config.NewManager(cfgFile)
		if err != nil {
			return err
		}
		cfg := m.Get()
		if logLevel != "" {
			cfg.Log.Level = logLevel
		}
		log := cfg.Log.Logger(os.Stdout, true)
		if err := cfg.ValidateServer(); err != nil {
			log.Error("invalid configuration", "error", err)
			return err
		}
		port := cfg.Server.Port
		if servePort != "" {
			port = servePort
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

		m.Watch(log)

		ctx, cancel := context.WithCancel(cmd.Context())
		defer cancel()

		orch := pipeline.NewOrchestrator(
			pipeline.OrchestratorConfig{
				Workers:   cfg.Server.Workers,
				QueueSize: cfg.Server.QueueSize,
				JobTTL:    cfg.Server.JobTTL,
				Model:     client.Model(),
			},
			reviserFactory(client, m.Get, log),
			report.Reporter(client.Model()),
			hist, log)
		orch.Start(ctx)

		srv := api.NewServer(orch, client, log, api.Options{
			APIKey:         config.ResolveEnvVars(cfg.Server.APIKey),
			MaxUploadBytes: cfg.Server.MaxUploadBytes,
			Compare:        changes.Options{Granularity: textdiff.Words},
		})

		httpServer := &http.Server{
			Addr:         ":" + port,
			Handler:      srv,
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 120 * time.Second,
			IdleTimeout:  60 * time.Second,
		}

		// Shutdown returns once in-flight handlers finish; only then may the
		// queue close.
		shutdownDone := make(chan struct{})
		go func() {
			defer close(shutdownDone)
			<-ctx.Done()
			log.Info("shutting down...")

			shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer shutdownCancel()
			if err := httpServer.Shutdown(shutdownCtx); err != nil {
				log.Warn("http shutdown", "error", err)
			}
		}()

		log.Info("starting docrevise", "port", port, "model", client.Model(), "workers", cfg.Server.Workers)
		err = httpServer.ListenAndServe()
		cancel()
		<-shutdownDone
		orch.Stop()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server error", "error", err)
			return err
		}
		return nil
	},
}

func init() {
	serveCmd.Flags().StringVar(&servePort, "port", "", "port to listen on (default: server.port)")

	rootCmd.AddCommand(serveCmd)
}
