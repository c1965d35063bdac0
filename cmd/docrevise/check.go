package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/dgallion1/docrevise/internal/config"
	"github.com/dgallion1/docrevise/internal/docmodel"
	"github.com/dgallion1/docrevise/internal/doctree"
	"github.com/dgallion1/docrevise/internal/parser"
)

var checkMode string

var checkCmd = &cobra.Command{
	Use:   "check <file>",
	Short: "List suggested corrections without writing anything",
	Long: `Review a txt, md, html, pdf, csv or docx file and print the corrections
the model proposes. The input is never modified; for PDF, HTML and CSV
the text is extracted first, so locations refer to the extracted text.`,
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

		tree, err := parser.ParseFile(args[0])
		if err != nil {
			return err
		}
		paras := tree.Paragraphs()
		units := docmodel.PlainUnits(doctree.Texts(paras))
		for i, u := range units {
			if !u.Blank() {
				u.Location = paras[i].Location
			}
		}

		client, err := newClient(cfg, log)
		if err != nil {
			return err
		}
		defer client.Close()

		rv, err := reviserFactory(client, func() *config.Config { return cfg }, log.With("source", args[0]))(checkMode)
		if err != nil {
			return err
		}
		res, err := rv.Revise(cmd.Context(), units)
		if err != nil {
			return fmt.Errorf("check %s: %w", args[0], err)
		}

		w := cmd.OutOrStdout()
		applied := res.Applied()
		if len(applied) == 0 {
			fmt.Fprintln(w, "no corrections suggested")
			return nil
		}
		tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "LOCATION\tTYPE\tERROR\tCORRECTION")
		for _, c := range applied {
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", c.Location, c.ErrorType, c.Error, c.Correction)
		}
		if err := tw.Flush(); err != nil {
			return err
		}
		fmt.Fprintf(w, "\n%d suggestions, %d rejected, %d protected\n", len(applied), len(res.Rejections), len(res.Protected))
		return nil
	},
}

func init() {
	checkCmd.Flags().StringVar(&checkMode, "mode", "", "review mode: fast, conservador, balanceado or editorial")

	rootCmd.AddCommand(checkCmd)
}
