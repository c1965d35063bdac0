package main

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/dgallion1/docrevise/internal/report"
)

var reportOutput string

var reportCmd = &cobra.Command{
	Use:   "report <changes.json>",
	Short: "Render a change report as a Word document",
	Long: `Render a grouped (correções_por_página) or flat (todas_mudancas) change
report as a .docx with one word-level marked item per change, grouped by page.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		in := args[0]
		out := reportOutput
		if out == "" {
			base := strings.TrimSuffix(filepath.Base(in), filepath.Ext(in))
			out = filepath.Join(filepath.Dir(in), "relatorio_"+base+".docx")
		}
		n, err := report.WriteVisual(in, out)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%d corrections\n%s\n", n, out)
		return nil
	},
}

func init() {
	reportCmd.Flags().StringVarP(&reportOutput, "output", "o", "", "report document path")

	rootCmd.AddCommand(reportCmd)
}
