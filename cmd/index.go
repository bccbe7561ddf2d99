package cmd

import (
	"sort"

	"github.com/deploymenttheory/wfkit/internal/config"
	"github.com/deploymenttheory/wfkit/internal/storage"
	"github.com/spf13/cobra"
)

var indexCmd = &cobra.Command{
	Use:   "index",
	Short: "Rebuild the workflow index",
	Long: `Index reads every document in the workflows directory and upserts its
metadata into the configured store. Unchanged documents are skipped and
records for deleted files are removed.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openStore()
		if err != nil {
			return err
		}
		defer store.Close()

		summary, err := storage.NewIndexer(store).Reindex(cmd.Context(), config.Instance.WorkflowsDir)
		if err != nil {
			return err
		}

		printf(cmd.OutOrStdout(), "Indexed %d, unchanged %d, removed %d, invalid %d\n",
			summary.Indexed, summary.Unchanged, summary.Removed, summary.Invalid)
		return nil
	},
}

var indexStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show index statistics",
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openStore()
		if err != nil {
			return err
		}
		defer store.Close()

		stats, err := store.Stats(cmd.Context())
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		if sqlite, ok := store.(*storage.SqliteStore); ok {
			printf(out, "Index:             %s\n", sqlite.Path())
		}
		printf(out, "Total workflows:   %d\n", stats.Total)
		printf(out, "Active workflows:  %d\n", stats.Active)
		printf(out, "Invalid workflows: %d\n", stats.Invalid)
		printCounts(cmd, "By trigger", stats.ByTrigger)
		printCounts(cmd, "By complexity", stats.ByComplexity)
		return nil
	},
}

func printCounts(cmd *cobra.Command, title string, counts map[string]int) {
	keys := make([]string, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := cmd.OutOrStdout()
	printf(out, "%s:\n", title)
	for _, k := range keys {
		printf(out, "  %-12s %d\n", k, counts[k])
	}
}

func init() {
	indexCmd.AddCommand(indexStatsCmd)
	rootCmd.AddCommand(indexCmd)
}
