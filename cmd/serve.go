package cmd

import (
	"context"
	"time"

	"github.com/deploymenttheory/wfkit/internal/config"
	"github.com/deploymenttheory/wfkit/internal/logger"
	"github.com/deploymenttheory/wfkit/internal/server"
	"github.com/spf13/cobra"
)

var (
	serveAddr    string
	serveTracing string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the workflow catalog over HTTP",
	Long: `Serve exposes the index through a JSON API (/workflows, /stats,
/workflows/{file}/validate) with Prometheus metrics on /metrics.
Requests are traced with OpenTelemetry when --tracing is stdout or otlp.
Run "wfkit index" first to populate the store.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		addr := config.Instance.Server.Addr
		if cmd.Flags().Changed("addr") {
			addr = serveAddr
		}
		exporter := config.Instance.Server.Tracing
		if cmd.Flags().Changed("tracing") {
			exporter = serveTracing
		}

		shutdown, err := server.SetupTracing(cmd.Context(), server.TracingOptions{
			Exporter: exporter,
			Endpoint: config.Instance.Server.OTLPEndpoint,
			Version:  Version,
			Writer:   cmd.OutOrStdout(),
		})
		if err != nil {
			return err
		}
		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := shutdown(ctx); err != nil {
				logger.LogWarn("Failed to flush traces", map[string]interface{}{"error": err.Error()})
			}
		}()

		store, err := openStore()
		if err != nil {
			return err
		}
		defer store.Close()

		srv := server.New(server.Options{
			Store:        store,
			WorkflowsDir: config.Instance.WorkflowsDir,
			Lint:         lintOptions(),
			Version:      Version,
			Debug:        config.Instance.Debug,
		})
		return srv.Run(cmd.Context(), addr)
	},
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", config.Instance.Server.Addr, "Listen address")
	serveCmd.Flags().StringVar(&serveTracing, "tracing", "none", "Span exporter: none, stdout or otlp")
	rootCmd.AddCommand(serveCmd)
}
