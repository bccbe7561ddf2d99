package cmd

import (
	"fmt"

	errors "github.com/deploymenttheory/wfkit/internal/errors"
	"github.com/deploymenttheory/wfkit/internal/logger"
	"github.com/deploymenttheory/wfkit/internal/workflow"
	"github.com/spf13/cobra"
)

var validateLint bool

var validateCmd = &cobra.Command{
	Use:   "validate [files...]",
	Short: "Validate workflow documents",
	Long: `Validate checks each workflow document for structural problems such as
dangling connections, duplicate node ids and unordered timestamps.

With no arguments every document in the workflows directory is checked.
The command exits non-zero when any document has an error.`,
	RunE: runValidate,
}

func runValidate(cmd *cobra.Command, args []string) error {
	files, err := workflowFiles(args)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	opts := lintOptions()
	failed := 0
	for _, file := range files {
		doc, report := workflow.ValidateFile(file)
		if doc != nil && validateLint {
			report.Issues = append(report.Issues, workflow.Lint(doc, opts)...)
		}

		status := "ok"
		if !report.Valid() {
			status = "FAIL"
			failed++
			logger.WithFields(map[string]interface{}{
				"file":   file,
				"errors": len(report.Errors()),
			}).Warn("Workflow has errors")
		}
		printf(out, "%-4s %s\n", status, file)
		for _, issue := range report.Issues {
			printf(out, "     %s\n", issue)
		}
	}

	logger.LogInfo("Validation finished", map[string]interface{}{
		"files":  len(files),
		"failed": failed,
	})
	printf(out, "\n%d checked, %d with errors\n", len(files), failed)

	if failed > 0 {
		return fmt.Errorf("%w: %d of %d documents", errors.ErrValidationFailed, failed, len(files))
	}
	return nil
}

func init() {
	validateCmd.Flags().BoolVar(&validateLint, "lint", false, "Also report advisory lint warnings")
	rootCmd.AddCommand(validateCmd)
}
