// Package backup creates, lists, prunes and restores backups of the catalog
// index, the workflow files and the tool's configuration.
package backup

import (
	"bytes"
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/deploymenttheory/wfkit/internal/compression"
	"github.com/deploymenttheory/wfkit/internal/digest"
	errors "github.com/deploymenttheory/wfkit/internal/errors"
	"github.com/deploymenttheory/wfkit/internal/fsutil"
	"github.com/deploymenttheory/wfkit/internal/logger"
	"github.com/deploymenttheory/wfkit/internal/storage"
	"github.com/deploymenttheory/wfkit/internal/workflow"
	"github.com/google/uuid"
)

// TimestampLayout names backup files.
const TimestampLayout = "20060102_150405"

// Backup types, derived from file names.
const (
	TypeDatabase      = "database"
	TypeWorkflows     = "workflows"
	TypeConfiguration = "configuration"
	TypeManifest      = "manifest"
	TypeUnknown       = "unknown"
)

var sqliteHeader = []byte("SQLite format 3\x00")

// Options configures a Manager. An empty DBPath means the index is not a
// SQLite file and full backups leave the database out.
type Options struct {
	DBPath       string
	WorkflowsDir string
	BackupDir    string
	Compression  string
	Digest       string
	ConfigFiles  []string
}

// Manager performs backups into BackupDir.
type Manager struct {
	DBPath       string
	WorkflowsDir string
	BackupDir    string
	Compression  compression.Format
	ConfigFiles  []string

	hasher *digest.Hasher
	now    func() time.Time
}

// NewManager validates opts and creates the backup directory.
func NewManager(opts Options) (*Manager, error) {
	format, err := compression.ParseFormat(opts.Compression)
	if err != nil {
		return nil, err
	}
	hasher, err := digest.NewHasher(digest.Algorithm(opts.Digest))
	if err != nil {
		return nil, err
	}
	if opts.BackupDir == "" {
		return nil, fmt.Errorf("%w: backup directory is required", errors.ErrInvalidArgument)
	}
	if err := fsutil.CreateDirIfNotExists(opts.BackupDir); err != nil {
		return nil, fmt.Errorf("%w: %s", errors.ErrDirCreateError, opts.BackupDir)
	}

	return &Manager{
		DBPath:       opts.DBPath,
		WorkflowsDir: opts.WorkflowsDir,
		BackupDir:    opts.BackupDir,
		Compression:  format,
		ConfigFiles:  opts.ConfigFiles,
		hasher:       hasher,
		now:          time.Now,
	}, nil
}

func (m *Manager) timestamp() string {
	return m.now().Format(TimestampLayout)
}

// BackupDatabase writes a compressed, consistent copy of the SQLite index
// and returns its path.
func (m *Manager) BackupDatabase(ctx context.Context) (string, error) {
	if m.DBPath == "" {
		return "", fmt.Errorf("%w: no SQLite index database configured", errors.ErrInvalidArgument)
	}
	if !fsutil.FileExists(m.DBPath) {
		return "", fmt.Errorf("%w: database %s", errors.ErrFileNotFound, m.DBPath)
	}

	raw := filepath.Join(m.BackupDir, fmt.Sprintf("workflows_db_%s.db", m.timestamp()))
	if err := fsutil.DeleteFile(raw); err != nil {
		return "", fmt.Errorf("%w: %s", errors.ErrFileDeleteError, raw)
	}
	if err := storage.VacuumInto(ctx, m.DBPath, raw); err != nil {
		return "", err
	}
	if m.Compression == compression.FormatNone {
		logger.LogInfo("Database backup created", map[string]interface{}{"path": raw})
		return raw, nil
	}

	compressed := raw + m.Compression.Extension()
	if err := compression.CompressFile(raw, compressed, m.Compression); err != nil {
		return "", fmt.Errorf("%w: %s", errors.ErrBackupFailed, err.Error())
	}
	if err := fsutil.DeleteFile(raw); err != nil {
		return "", fmt.Errorf("%w: %s", errors.ErrFileDeleteError, raw)
	}

	logger.LogInfo("Database backup created", map[string]interface{}{"path": compressed})
	return compressed, nil
}

// BackupWorkflows archives the workflows directory and returns the archive path.
func (m *Manager) BackupWorkflows(ctx context.Context) (string, error) {
	if !fsutil.DirExists(m.WorkflowsDir) {
		return "", fmt.Errorf("%w: %s", errors.ErrDirNotFound, m.WorkflowsDir)
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	dst := filepath.Join(m.BackupDir,
		fmt.Sprintf("workflows_files_%s.tar%s", m.timestamp(), m.Compression.Extension()))
	if err := compression.ArchiveDir(m.WorkflowsDir, dst, m.Compression); err != nil {
		return "", fmt.Errorf("%w: %s", errors.ErrBackupFailed, err.Error())
	}

	logger.LogInfo("Workflows backup created", map[string]interface{}{"path": dst})
	return dst, nil
}

// ConfigFile is one captured configuration file.
type ConfigFile struct {
	Content  string    `json:"content"`
	Size     int64     `json:"size"`
	Modified time.Time `json:"modified"`
}

// ConfigSnapshot is the content of a config_<ts>.json backup.
type ConfigSnapshot struct {
	Timestamp string                `json:"timestamp"`
	Files     map[string]ConfigFile `json:"files"`
}

// BackupConfig captures the configured files that exist into a JSON snapshot.
func (m *Manager) BackupConfig(ctx context.Context) (string, error) {
	ts := m.timestamp()
	snapshot := ConfigSnapshot{Timestamp: ts, Files: map[string]ConfigFile{}}

	for _, name := range m.ConfigFiles {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		info, err := fsutil.GetFileInfo(name)
		if err != nil || info.IsDir {
			continue
		}
		data, err := fsutil.ReadFile(name)
		if err != nil {
			logger.LogWarn("Could not back up config file", map[string]interface{}{
				"file":  name,
				"error": err.Error(),
			})
			continue
		}
		snapshot.Files[name] = ConfigFile{
			Content:  string(data),
			Size:     info.Size,
			Modified: info.ModTime,
		}
	}

	dst := filepath.Join(m.BackupDir, fmt.Sprintf("config_%s.json", ts))
	if err := writeJSON(dst, snapshot); err != nil {
		return "", err
	}

	logger.LogInfo("Configuration backup created", map[string]interface{}{
		"path":  dst,
		"files": len(snapshot.Files),
	})
	return dst, nil
}

func writeJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("%w: %s", errors.ErrBackupFailed, err.Error())
	}
	if err := fsutil.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("%w: %s", errors.ErrFileWriteError, err.Error())
	}
	return nil
}

// Stats describes the data being backed up.
type Stats struct {
	TotalWorkflows  *int    `json:"total_workflows,omitempty"`
	ActiveWorkflows *int    `json:"active_workflows,omitempty"`
	DatabaseError   string  `json:"database_error,omitempty"`
	WorkflowFiles   int     `json:"workflow_files"`
	TotalSizeMB     float64 `json:"total_size_mb"`
}

// CurrentStats reads index counters and workflow file sizes.
func (m *Manager) CurrentStats(ctx context.Context) Stats {
	var stats Stats

	if fsutil.FileExists(m.DBPath) {
		if indexStats, err := readIndexStats(ctx, m.DBPath); err != nil {
			logger.LogWarn("Could not read database stats", map[string]interface{}{"error": err.Error()})
			stats.DatabaseError = err.Error()
		} else {
			stats.TotalWorkflows = &indexStats.Total
			stats.ActiveWorkflows = &indexStats.Active
		}
	}

	if files, err := fsutil.ListFiles(m.WorkflowsDir, workflow.FilePattern); err == nil {
		var total int64
		for _, f := range files {
			if info, err := fsutil.GetFileInfo(f); err == nil {
				total += info.Size
			}
		}
		stats.WorkflowFiles = len(files)
		stats.TotalSizeMB = toMB(total)
	}
	return stats
}

func readIndexStats(ctx context.Context, dbPath string) (storage.Stats, error) {
	store, err := storage.NewSqliteStore(dbPath)
	if err != nil {
		return storage.Stats{}, err
	}
	defer store.Close()
	return store.Stats(ctx)
}

func toMB(size int64) float64 {
	return math.Round(float64(size)/(1024*1024)*100) / 100
}

// Manifest describes a full backup.
type Manifest struct {
	ID              string            `json:"id"`
	Timestamp       string            `json:"timestamp"`
	BackupType      string            `json:"backup_type"`
	Components      map[string]string `json:"components"`
	Errors          map[string]string `json:"errors,omitempty"`
	DigestAlgorithm string            `json:"digest_algorithm"`
	Digests         map[string]string `json:"digests"`
	Stats           Stats             `json:"stats"`
	Path            string            `json:"-"`
}

// FullBackup backs up every configured component and writes a manifest. A
// component that fails is recorded in the manifest's Errors and does not stop
// the others.
func (m *Manager) FullBackup(ctx context.Context) (*Manifest, error) {
	logger.LogInfo("Starting full backup", map[string]interface{}{"dir": m.BackupDir})

	manifest := &Manifest{
		ID:              uuid.NewString(),
		BackupType:      "full",
		Components:      map[string]string{},
		Errors:          map[string]string{},
		DigestAlgorithm: string(m.hasher.Algorithm()),
		Digests:         map[string]string{},
	}

	steps := []struct {
		name string
		run  func(context.Context) (string, error)
	}{
		{TypeDatabase, m.BackupDatabase},
		{TypeWorkflows, m.BackupWorkflows},
		{"config", m.BackupConfig},
	}
	for _, step := range steps {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if step.name == TypeDatabase && m.DBPath == "" {
			logger.LogInfo("Skipping database backup, index is not file backed", nil)
			continue
		}
		path, err := step.run(ctx)
		if err != nil {
			logger.LogError("Backup component failed", err, map[string]interface{}{"component": step.name})
			manifest.Errors[step.name] = err.Error()
			continue
		}
		manifest.Components[step.name] = path

		sum, err := m.hasher.HashFile(path)
		if err != nil {
			return nil, err
		}
		manifest.Digests[step.name] = sum
	}

	manifest.Stats = m.CurrentStats(ctx)
	manifest.Timestamp = m.timestamp()
	manifest.Path = filepath.Join(m.BackupDir, fmt.Sprintf("backup_manifest_%s.json", manifest.Timestamp))
	if err := writeJSON(manifest.Path, manifest); err != nil {
		return nil, err
	}

	logger.LogInfo("Full backup completed", map[string]interface{}{
		"manifest": manifest.Path,
		"id":       manifest.ID,
		"failed":   len(manifest.Errors),
	})
	return manifest, nil
}

// VerifyManifest checks every component digest recorded in the manifest at
// path and returns the names of components that are missing or changed.
func (m *Manager) VerifyManifest(path string) ([]string, error) {
	data, err := fsutil.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", errors.ErrFileNotFound, path)
		}
		return nil, fmt.Errorf("%w: %s", errors.ErrFileReadError, err.Error())
	}

	var manifest Manifest
	if err := json.Unmarshal(data, &manifest); err != nil {
		return nil, fmt.Errorf("%w: %s", errors.ErrInvalidJSON, err.Error())
	}
	hasher, err := digest.NewHasher(digest.Algorithm(manifest.DigestAlgorithm))
	if err != nil {
		return nil, err
	}

	var bad []string
	for name, component := range manifest.Components {
		ok, err := hasher.VerifyFile(component, manifest.Digests[name])
		if err != nil || !ok {
			bad = append(bad, name)
		}
	}
	sort.Strings(bad)
	return bad, nil
}

// Info describes one file in the backup directory.
type Info struct {
	Name        string             `json:"name"`
	Path        string             `json:"path"`
	SizeMB      float64            `json:"size_mb"`
	Created     time.Time          `json:"created"`
	Type        string             `json:"type"`
	Compression compression.Format `json:"compression"`
}

// TypeOf classifies a backup by its file name.
func TypeOf(name string) string {
	switch {
	case strings.Contains(name, "db_"):
		return TypeDatabase
	case strings.Contains(name, "files_"):
		return TypeWorkflows
	case strings.Contains(name, "config_"):
		return TypeConfiguration
	case strings.Contains(name, "manifest_"):
		return TypeManifest
	default:
		return TypeUnknown
	}
}

// List returns the backups in BackupDir, newest first.
func (m *Manager) List() ([]Info, error) {
	files, err := fsutil.ListFiles(m.BackupDir, "*")
	if err != nil {
		return nil, fmt.Errorf("%w: %s", errors.ErrFileReadError, err.Error())
	}

	backups := []Info{}
	for _, f := range files {
		info, err := fsutil.GetFileInfo(f)
		if err != nil {
			continue
		}
		format, err := compression.DetectFile(f)
		if err != nil {
			continue
		}
		backups = append(backups, Info{
			Name:        info.Name,
			Path:        f,
			SizeMB:      toMB(info.Size),
			Created:     info.ModTime,
			Type:        TypeOf(info.Name),
			Compression: format,
		})
	}

	sort.SliceStable(backups, func(i, j int) bool {
		if backups[i].Created.Equal(backups[j].Created) {
			return backups[i].Name > backups[j].Name
		}
		return backups[i].Created.After(backups[j].Created)
	})
	return backups, nil
}

// TotalSizeMB returns the size of everything in BackupDir.
func (m *Manager) TotalSizeMB() (float64, error) {
	size, err := fsutil.DirSize(m.BackupDir)
	if err != nil {
		return 0, fmt.Errorf("%w: %s", errors.ErrFileReadError, err.Error())
	}
	return toMB(size), nil
}

// Cleanup removes backups last modified more than keepDays ago and returns
// how many were removed.
func (m *Manager) Cleanup(keepDays int) (int, error) {
	if keepDays < 0 {
		return 0, fmt.Errorf("%w: keep days must not be negative", errors.ErrInvalidArgument)
	}

	backups, err := m.List()
	if err != nil {
		return 0, err
	}

	cutoff := m.now().AddDate(0, 0, -keepDays)
	removed := 0
	for _, b := range backups {
		if !b.Created.Before(cutoff) {
			continue
		}
		if err := fsutil.DeleteFile(b.Path); err != nil {
			logger.LogWarn("Could not remove backup", map[string]interface{}{
				"file":  b.Name,
				"error": err.Error(),
			})
			continue
		}
		logger.LogDebug("Removed old backup", map[string]interface{}{"file": b.Name})
		removed++
	}

	logger.LogInfo("Backup cleanup completed", map[string]interface{}{
		"removed":   removed,
		"keep_days": keepDays,
	})
	return removed, nil
}

// RestoreDatabase replaces the index with the database in backupPath, which
// may be compressed with any supported format. The current database is first
// copied to "<db>.backup".
func (m *Manager) RestoreDatabase(ctx context.Context, backupPath string) error {
	if m.DBPath == "" {
		return fmt.Errorf("%w: no SQLite index database configured", errors.ErrInvalidArgument)
	}
	if !fsutil.FileExists(backupPath) {
		return fmt.Errorf("%w: %s", errors.ErrFileNotFound, backupPath)
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	tmp := m.DBPath + ".restore"
	defer os.Remove(tmp)

	format, err := compression.DecompressFile(backupPath, tmp)
	if err != nil {
		return fmt.Errorf("%w: %s", errors.ErrRestoreFailed, err.Error())
	}
	if err := checkSQLite(tmp); err != nil {
		return err
	}

	if fsutil.FileExists(m.DBPath) {
		current := m.DBPath + ".backup"
		if err := fsutil.CopyFile(m.DBPath, current); err != nil {
			return fmt.Errorf("%w: %s", errors.ErrRestoreFailed, err.Error())
		}
		logger.LogInfo("Current database backed up", map[string]interface{}{"path": current})
	}

	for _, suffix := range []string{"-wal", "-shm"} {
		if err := fsutil.DeleteFile(m.DBPath + suffix); err != nil {
			return fmt.Errorf("%w: %s", errors.ErrRestoreFailed, err.Error())
		}
	}
	if err := os.Rename(tmp, m.DBPath); err != nil {
		return fmt.Errorf("%w: %s", errors.ErrRestoreFailed, err.Error())
	}

	logger.LogInfo("Database restored", map[string]interface{}{
		"from":        backupPath,
		"compression": string(format),
	})
	return nil
}

// RestoreWorkflows unpacks a workflows archive into dst, which must be empty
// or absent. The live workflows directory is never written.
func (m *Manager) RestoreWorkflows(ctx context.Context, backupPath, dst string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if dst == "" {
		return fmt.Errorf("%w: restore destination is required", errors.ErrInvalidArgument)
	}
	if entries, err := os.ReadDir(dst); err == nil && len(entries) > 0 {
		return fmt.Errorf("%w: restore destination %s is not empty", errors.ErrInvalidArgument, dst)
	}

	if err := compression.ExtractArchive(backupPath, dst); err != nil {
		if stderrors.Is(err, errors.ErrFileNotFound) {
			return err
		}
		return fmt.Errorf("%w: %s", errors.ErrRestoreFailed, err.Error())
	}

	logger.LogInfo("Workflows restored", map[string]interface{}{
		"from": backupPath,
		"to":   dst,
	})
	return nil
}

func checkSQLite(path string) error {
	data, err := fsutil.ReadFile(path)
	if err != nil {
		return fmt.Errorf("%w: %s", errors.ErrRestoreFailed, err.Error())
	}
	if !bytes.HasPrefix(data, sqliteHeader) {
		return fmt.Errorf("%w: %s is not an SQLite database", errors.ErrInvalidArchive, path)
	}
	return nil
}
