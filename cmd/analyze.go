package cmd

import (
	"github.com/deploymenttheory/wfkit/internal/analysis"
	"github.com/deploymenttheory/wfkit/internal/export"
	"github.com/deploymenttheory/wfkit/internal/workflow"
	"github.com/spf13/cobra"
)

var (
	analyzeFormat string
	analyzeOutput string
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze [files...]",
	Short: "Print trigger, complexity and integration metadata",
	Long: `Analyze derives catalog metadata for each workflow document: trigger
type, complexity band, integrations and categories.

Output is JSON by default; yaml and plist are also available.`,
	RunE: runAnalyze,
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	format, err := export.ParseFormat(analyzeFormat)
	if err != nil {
		return err
	}
	files, err := workflowFiles(args)
	if err != nil {
		return err
	}

	docs, _ := workflow.LoadFiles(cmd.Context(), files)
	results := make([]analysis.Metadata, 0, len(docs))
	for _, doc := range docs {
		results = append(results, analysis.Analyze(doc))
	}

	if analyzeOutput != "" {
		if err := export.WriteFile(analyzeOutput, results, format); err != nil {
			return err
		}
		printf(cmd.OutOrStdout(), "Wrote metadata for %d workflows to %s\n", len(results), analyzeOutput)
		return nil
	}
	return export.Encode(cmd.OutOrStdout(), results, format)
}

func init() {
	analyzeCmd.Flags().StringVarP(&analyzeFormat, "format", "f", "json", "Output format: json, yaml or plist")
	analyzeCmd.Flags().StringVarP(&analyzeOutput, "output", "o", "", "Write to a file instead of stdout")
	rootCmd.AddCommand(analyzeCmd)
}
