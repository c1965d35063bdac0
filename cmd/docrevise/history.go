package main

import (
	"errors"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/dgallion1/docrevise/internal/store"
)

var historyLimit int

var historyCmd = &cobra.Command{
	Use:   "history [run-id]",
	Short: "List past revision runs, or the corrections of one run",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		if cfg.History.Path == "" {
			return errors.New("history.path is not set")
		}
		hist, err := store.Open(cfg.History.Path)
		if err != nil {
			return err
		}
		defer hist.Close()

		tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		defer tw.Flush()

		if len(args) == 1 {
			run, err := hist.Run(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if run == nil {
				return fmt.Errorf("run %s not found", args[0])
			}
			corrs, err := hist.Corrections(cmd.Context(), run.ID)
			if err != nil {
				return err
			}
			fmt.Fprintf(tw, "%s\t%s -> %s\t%s\n\n", run.ID, run.Source, run.Output, run.Model)
			fmt.Fprintln(tw, "LOCATION\tTYPE\tERROR\tCORRECTION\tREVERTED")
			for _, c := range corrs {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", c.Location, c.ErrorType, c.Error, c.Correction, c.Reverted)
			}
			return nil
		}

		runs, err := hist.Runs(cmd.Context(), historyLimit)
		if err != nil {
			return err
		}
		fmt.Fprintln(tw, "ID\tSTARTED\tSOURCE\tMODE\tCORRECTIONS\tREJECTED\tFAILED BATCHES")
		for _, r := range runs {
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d\t%d\t%d\n",
				r.ID, r.StartedAt.Local().Format(time.DateTime), r.Source, r.Mode,
				r.Corrections, r.Rejected, r.FailedBatches)
		}
		return nil
	},
}

func init() {
	historyCmd.Flags().IntVar(&historyLimit, "limit", 20, "number of runs to list")

	rootCmd.AddCommand(historyCmd)
}
