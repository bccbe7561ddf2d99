package cmd

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/deploymenttheory/wfkit/internal/backup"
	"github.com/deploymenttheory/wfkit/internal/config"
	errors "github.com/deploymenttheory/wfkit/internal/errors"
	"github.com/spf13/cobra"
)

var (
	backupType     string
	backupKeepDays int
	backupFile     string
	backupDest     string
)

var backupCmd = &cobra.Command{
	Use:   "backup",
	Short: "Create, list, clean up and restore backups",
}

func newBackupManager() (*backup.Manager, error) {
	cfg := config.Instance.Backup
	return backup.NewManager(backup.Options{
		DBPath:       sqlitePath(),
		WorkflowsDir: config.Instance.WorkflowsDir,
		BackupDir:    cfg.Dir,
		Compression:  cfg.Compression,
		Digest:       cfg.Digest,
		ConfigFiles:  cfg.ConfigFiles,
	})
}

var backupCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create a backup",
	Long: `Create writes a backup of the index database, the workflow files, the
configuration files, or all three with a manifest (the default).`,
	RunE: func(cmd *cobra.Command, args []string) error {
		m, err := newBackupManager()
		if err != nil {
			return err
		}

		ctx := cmd.Context()
		out := cmd.OutOrStdout()
		var path string

		switch backupType {
		case "full":
			manifest, err := m.FullBackup(ctx)
			if err != nil {
				return err
			}
			printf(out, "Backup %s written to %s\n", manifest.ID, manifest.Path)
			for name, p := range manifest.Components {
				printf(out, "  %-10s %s\n", name, p)
			}
			for name, msg := range manifest.Errors {
				printf(out, "  %-10s FAILED: %s\n", name, msg)
			}
			if len(manifest.Errors) > 0 {
				return fmt.Errorf("%w: %d component(s) failed", errors.ErrBackupFailed, len(manifest.Errors))
			}
			return nil
		case backup.TypeDatabase:
			path, err = m.BackupDatabase(ctx)
		case backup.TypeWorkflows:
			path, err = m.BackupWorkflows(ctx)
		case "config", backup.TypeConfiguration:
			path, err = m.BackupConfig(ctx)
		default:
			return fmt.Errorf("%w: unknown backup type %q", errors.ErrInvalidArgument, backupType)
		}
		if err != nil {
			return err
		}

		printf(out, "Backup written to %s\n", path)
		return nil
	},
}

var backupListCmd = &cobra.Command{
	Use:   "list",
	Short: "List backups, newest first",
	RunE: func(cmd *cobra.Command, args []string) error {
		m, err := newBackupManager()
		if err != nil {
			return err
		}
		backups, err := m.List()
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		if len(backups) == 0 {
			printf(out, "No backups in %s\n", m.BackupDir)
			return nil
		}
		for _, b := range backups {
			printf(out, "%-19s %-13s %-5s %8.2f MB  %s\n", b.Created.Format("2006-01-02 15:04:05"), b.Type, b.Compression, b.SizeMB, b.Name)
		}
		total, err := m.TotalSizeMB()
		if err != nil {
			return err
		}
		printf(out, "%d backup(s), %.2f MB in %s\n", len(backups), total, m.BackupDir)
		return nil
	},
}

var backupCleanupCmd = &cobra.Command{
	Use:   "cleanup",
	Short: "Remove backups older than --keep-days",
	RunE: func(cmd *cobra.Command, args []string) error {
		m, err := newBackupManager()
		if err != nil {
			return err
		}

		keep := config.Instance.Backup.KeepDays
		if cmd.Flags().Changed("keep-days") {
			keep = backupKeepDays
		}
		removed, err := m.Cleanup(keep)
		if err != nil {
			return err
		}

		printf(cmd.OutOrStdout(), "Removed %d backup(s) older than %d days\n", removed, keep)
		return nil
	},
}

var backupRestoreCmd = &cobra.Command{
	Use:   "restore",
	Short: "Restore the index database or unpack a workflows archive",
	Long: `Restore replaces the index database with a database backup. Given a
workflows archive it unpacks it into --dest instead, leaving the live
workflows directory untouched.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		m, err := newBackupManager()
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		name := filepath.Base(backupFile)
		switch backup.TypeOf(name) {
		case backup.TypeWorkflows:
			dest := backupDest
			if dest == "" {
				dest = filepath.Join(m.BackupDir, "restored_"+strings.SplitN(name, ".", 2)[0])
			}
			if err := m.RestoreWorkflows(cmd.Context(), backupFile, dest); err != nil {
				return err
			}
			printf(out, "Unpacked %s into %s\n", backupFile, dest)
			return nil
		case backup.TypeDatabase, backup.TypeUnknown:
			if m.DBPath == "" {
				return fmt.Errorf("%w: restore requires the sqlite storage driver", errors.ErrInvalidArgument)
			}
			if err := m.RestoreDatabase(cmd.Context(), backupFile); err != nil {
				return err
			}
			printf(out, "Restored %s from %s\n", m.DBPath, backupFile)
			return nil
		default:
			return fmt.Errorf("%w: %s cannot be restored", errors.ErrInvalidArgument, name)
		}
	},
}

var backupVerifyCmd = &cobra.Command{
	Use:   "verify <manifest>",
	Short: "Check component digests recorded in a backup manifest",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		m, err := newBackupManager()
		if err != nil {
			return err
		}
		bad, err := m.VerifyManifest(args[0])
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		if len(bad) > 0 {
			for _, name := range bad {
				printf(out, "MISMATCH %s\n", name)
			}
			return fmt.Errorf("%w: %d component(s) missing or changed", errors.ErrBackupFailed, len(bad))
		}
		printf(out, "All components match %s\n", args[0])
		return nil
	},
}

func init() {
	backupCreateCmd.Flags().StringVarP(&backupType, "type", "t", "full", "full, database, workflows or config")
	backupCleanupCmd.Flags().IntVar(&backupKeepDays, "keep-days", 30, "Keep backups newer than this many days (default from config)")
	backupRestoreCmd.Flags().StringVar(&backupFile, "file", "", "Database backup to restore")
	backupRestoreCmd.Flags().StringVar(&backupDest, "dest", "", "Directory to unpack a workflows archive into")
	_ = backupRestoreCmd.MarkFlagRequired("file")

	backupCmd.AddCommand(backupCreateCmd, backupListCmd, backupCleanupCmd, backupRestoreCmd, backupVerifyCmd)
	rootCmd.AddCommand(backupCmd)
}
