package cmd

import (
	"github.com/deploymenttheory/wfkit/internal/config"
	"github.com/deploymenttheory/wfkit/internal/export"
	"github.com/deploymenttheory/wfkit/internal/logger"
	"github.com/deploymenttheory/wfkit/internal/urlaudit"
	"github.com/deploymenttheory/wfkit/internal/workflow"
	"github.com/spf13/cobra"
)

var (
	auditCheck  bool
	auditFormat string
)

var auditCmd = &cobra.Command{
	Use:   "audit",
	Short: "Audit what workflows reach out to",
}

var auditURLsCmd = &cobra.Command{
	Use:   "urls [files...]",
	Short: "List literal URLs called by workflow nodes",
	Long: `Urls lists every literal http(s) URL found in URL-like node parameters.
With --check each distinct URL is looked up on VirusTotal using
virustotal.api_key (or WFKIT_VIRUSTOTAL_API_KEY); without a key only the
URL listing runs.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		files, err := workflowFiles(args)
		if err != nil {
			return err
		}

		var format export.Format
		if auditFormat != "" {
			if format, err = export.ParseFormat(auditFormat); err != nil {
				return err
			}
		}

		var checker urlaudit.Checker
		if auditCheck && config.Instance.VirusTotal.APIKey == "" {
			logger.LogWarn("No VirusTotal API key configured, listing URLs only", nil)
		} else if auditCheck {
			vtCfg := config.Instance.VirusTotal
			clientCfg := urlaudit.DefaultClientConfig()
			clientCfg.APIKey = vtCfg.APIKey
			clientCfg.RateLimitPerMin = vtCfg.RateLimitPerMin
			clientCfg.RetryCount = vtCfg.RetryCount
			if vtCfg.CacheTTLSeconds > 0 {
				clientCfg.ResultCacheTTL = vtCfg.CacheTTLSeconds
			}
			client, err := urlaudit.NewClient(clientCfg)
			if err != nil {
				return err
			}
			checker = client
		}

		docs, _ := workflow.LoadFiles(cmd.Context(), files)
		report, err := urlaudit.Audit(cmd.Context(), docs, checker)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		if format != "" {
			return export.Encode(out, report, format)
		}

		for _, f := range report.Findings {
			status := ""
			switch {
			case f.Error != "":
				status = "error: " + f.Error
			case f.Verdict == nil:
			case !f.Verdict.Known:
				status = "unknown"
			case f.Verdict.Flagged():
				status = "FLAGGED"
			default:
				status = "clean"
			}
			printf(out, "%s  %s.%s  %s  %s\n", f.Workflow, f.Node, f.Parameter, f.URL, status)
		}
		printf(out, "\n%d URLs found", len(report.Findings))
		if checker != nil {
			printf(out, ", %d checked, %d flagged", report.Checked, report.Flagged)
		}
		printf(out, "\n")
		return nil
	},
}

func init() {
	auditURLsCmd.Flags().BoolVar(&auditCheck, "check", false, "Look up each URL on VirusTotal")
	auditURLsCmd.Flags().StringVarP(&auditFormat, "format", "f", "", "Emit the report as json, yaml or plist")
	auditCmd.AddCommand(auditURLsCmd)
	rootCmd.AddCommand(auditCmd)
}
