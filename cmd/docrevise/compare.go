package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dgallion1/docrevise/internal/changes"
	"github.com/dgallion1/docrevise/internal/docmodel"
	"github.com/dgallion1/docrevise/internal/pipeline"
	"github.com/dgallion1/docrevise/internal/report"
	"github.com/dgallion1/docrevise/internal/textdiff"
)

var compareOutput string

var compareCmd = &cobra.Command{
	Use:   "compare <original.docx> <revised.docx>",
	Short: "Mark every difference between two versions of a document",
	Long: `Compare two versions of a document paragraph by paragraph and table cell by
table cell. Writes a copy of the revised document with removed text struck
through in red and added text underlined in green, preceded by a summary,
plus a JSON list of every change.`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		log := cliLogger(cfg)

		original, err := docmodel.Open(args[0])
		if err != nil {
			return err
		}
		revised, err := docmodel.Open(args[1])
		if err != nil {
			return err
		}

		cmp, err := pipeline.Compare(original, revised, changes.Options{Granularity: textdiff.Words}, log)
		if err != nil {
			return err
		}

		out := compareOutput
		if out == "" {
			out = siblingPath(args[1], "_comparacao.docx")
		}
		if err := cmp.Marked.Save(out); err != nil {
			return fmt.Errorf("save %s: %w", out, err)
		}
		jsonPath := siblingPath(out, "_relatorio_completo.json")
		if err := report.WriteJSON(jsonPath, report.NewComparison(cmp.Changes)); err != nil {
			return err
		}

		fmt.Fprintf(cmd.OutOrStdout(), "%d changes\n%s\n%s\n", len(cmp.Changes), out, jsonPath)
		return nil
	},
}

func init() {
	compareCmd.Flags().StringVarP(&compareOutput, "output", "o", "", "marked document path")

	rootCmd.AddCommand(compareCmd)
}
