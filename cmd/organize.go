package cmd

import (
	"sort"

	"github.com/deploymenttheory/wfkit/internal/config"
	"github.com/deploymenttheory/wfkit/internal/organizer"
	"github.com/spf13/cobra"
)

var (
	organizeOutput string
	organizeMethod string
)

var organizeCmd = &cobra.Command{
	Use:   "organize",
	Short: "Copy workflows into browsable groups",
	Long: `Organize copies the workflows directory into groups by category,
complexity, trigger type or integration. The "all" method builds every
grouping and writes README indexes plus an organization report.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		method, err := organizer.ParseMethod(organizeMethod)
		if err != nil {
			return err
		}

		output := organizeOutput
		if output == "" {
			output = config.Instance.Organizer.OutputDir
		}

		o := organizer.New(config.Instance.WorkflowsDir, output)
		if err := o.Run(cmd.Context(), method); err != nil {
			return err
		}

		stats := o.Stats()
		keys := make([]string, 0, len(stats))
		for k := range stats {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		out := cmd.OutOrStdout()
		printf(out, "Organized into %s\n", output)
		for _, k := range keys {
			printf(out, "  %-40s %d\n", k, stats[k])
		}
		return nil
	},
}

func init() {
	organizeCmd.Flags().StringVarP(&organizeOutput, "output", "o", "", "Output directory (default from config)")
	organizeCmd.Flags().StringVarP(&organizeMethod, "method", "m", string(organizer.MethodAll), "all, category, complexity, trigger or integration")
	rootCmd.AddCommand(organizeCmd)
}
