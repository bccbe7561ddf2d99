package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/deploymenttheory/wfkit/internal/config"
	"github.com/deploymenttheory/wfkit/internal/logger"
	"github.com/spf13/cobra"
)

var cfgFile string

// rootCmd represents the base CLI command
var rootCmd = &cobra.Command{
	Use:   "wfkit",
	Short: "Validate, catalog and back up automation workflow exports",
	Long: `wfkit works on a directory of exported automation workflows
(n8n-style JSON documents with nodes and connections).

It validates documents against the structural rules of the format,
lints them for common mistakes, builds a searchable index, organizes
the files into browsable groups, audits the URLs they call and keeps
compressed backups of the index and the files.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		reinit := false

		// If config file was explicitly specified via flag, reload it
		if cmd.Flags().Changed("config") && cfgFile != "" {
			if err := config.Initialize(cfgFile); err != nil {
				return fmt.Errorf("error loading config file %s: %w", cfgFile, err)
			}
			reinit = true
		}

		// CLI flags override config settings
		if cmd.Flags().Changed("debug") {
			config.Instance.Debug, _ = cmd.Flags().GetBool("debug")
			reinit = true
		}
		if cmd.Flags().Changed("log-format") {
			config.Instance.LogFormat, _ = cmd.Flags().GetString("log-format")
			reinit = true
		}
		if cmd.Flags().Changed("quiet") {
			config.Instance.LogQuiet, _ = cmd.Flags().GetBool("quiet")
			reinit = true
		}
		if cmd.Flags().Changed("workflows-dir") {
			config.Instance.WorkflowsDir, _ = cmd.Flags().GetString("workflows-dir")
		}

		if reinit {
			return InitLogging()
		}
		return nil
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		return cmd.Help()
	},
}

// Execute runs the root command and returns the first error.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		logger.LogError("Command execution failed", err, nil)
		fmt.Fprintln(rootCmd.ErrOrStderr(), "Error:", err)
		return err
	}
	return nil
}

// InitLogging (re)initializes the logger from config.Instance.
func InitLogging() error {
	logFile := config.Instance.LogFile
	if logFile == "auto" {
		logFile = config.DefaultLogFile()
	}

	return logger.InitLogger(logger.LoggerConfig{
		Debug:     config.Instance.Debug,
		LogFormat: config.Instance.LogFormat,
		LogFile:   logFile,
		Quiet:     config.Instance.LogQuiet,
	})
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is search in standard locations)")
	rootCmd.PersistentFlags().Bool("debug", config.Instance.Debug, "Enable debug logging")
	rootCmd.PersistentFlags().String("log-format", config.Instance.LogFormat, "Log format: json or human")
	rootCmd.PersistentFlags().Bool("quiet", config.Instance.LogQuiet, "Write logs to the log file only")
	rootCmd.PersistentFlags().String("workflows-dir", config.Instance.WorkflowsDir, "Directory holding workflow documents")
}
