package main

import (
	"encoding/json"
	"fmt"
	"mime"
	"os"
	"path/filepath"

	"condolex-backend/service"

	"github.com/spf13/cobra"
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze <file>",
	Short: "Check a bylaws document for clauses that may conflict with the Civil Code",
	Long: `Analyze extracts every clause from a bylaws or internal rules document, checks
each one against the Civil Code and writes the report as analise_<name>.json.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := args[0]
		data, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		name := filepath.Base(path)
		mimeType := mime.TypeByExtension(filepath.Ext(name))
		if !service.IsSupportedFile(name, mimeType) {
			return fmt.Errorf("%w: %s", service.ErrUnsupportedFileType, name)
		}

		a, err := newApp(cmd)
		if err != nil {
			return err
		}
		defer a.Close()

		text, err := a.Extractor.Extract(cmd.Context(), name, mimeType, data)
		if err != nil {
			return fmt.Errorf("failed to extract text: %w", err)
		}

		errOut := cmd.ErrOrStderr()
		report, err := a.Analyzer.Analyze(cmd.Context(), name, text, func(p service.AnalysisProgress) {
			if p.Node == service.NodeAnalyzeClause {
				fmt.Fprintf(errOut, "\rAnalisando cláusula %d/%d", p.ClauseIndex+1, p.TotalClauses)
			}
		})
		fmt.Fprintln(errOut)
		if err != nil {
			return err
		}

		outDir, _ := cmd.Flags().GetString("output-dir")
		outPath := filepath.Join(outDir, service.ReportFilename(name))
		encoded, err := json.MarshalIndent(report, "", "  ")
		if err != nil {
			return err
		}
		if err := os.WriteFile(outPath, encoded, 0644); err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "Cláusulas analisadas: %d\n", report.TotalClausesAnalyzed)
		fmt.Fprintf(out, "Potencialmente ilegais: %d\n", report.PotentiallyIllegalCount)
		if rate, ok := report.ConformityRate(); ok {
			fmt.Fprintf(out, "Taxa de conformidade: %.1f%%\n", rate)
		}
		for _, c := range report.IllegalClauses() {
			fmt.Fprintf(out, "  - %s: %s\n", c.ClauseNumber, c.Explanation)
		}
		fmt.Fprintf(out, "Relatório salvo em %s\n", outPath)
		return nil
	},
}

func init() {
	analyzeCmd.Flags().String("output-dir", ".", "directory for the report file")
	rootCmd.AddCommand(analyzeCmd)
}
