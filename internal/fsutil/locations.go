package fsutil

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"github.com/deploymenttheory/wfkit/internal/osutil"
)

// Directories used in a development checkout, relative to the working directory.
const (
	devConfigDir = "config"
	devLogDir    = "logs"
)

// GetHomeDir returns the current user's home directory.
func GetHomeDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to determine home directory: %w", err)
	}
	return home, nil
}

// GetConfigDir returns the per-user directory searched for <appName>.yaml:
// %APPDATA%\<app> on Windows, ~/Library/Application Support/<app> on macOS
// and $XDG_CONFIG_HOME/<app> (default ~/.config/<app>) elsewhere. In a
// development environment it is ./config.
func GetConfigDir(appName string) (string, error) {
	if osutil.IsDevEnvironment() {
		return devConfigDir, nil
	}

	home, err := GetHomeDir()
	if err != nil {
		return "", err
	}

	switch runtime.GOOS {
	case "windows":
		return filepath.Join(envOr("APPDATA", filepath.Join(home, "AppData", "Roaming")), appName), nil
	case "darwin":
		return filepath.Join(home, "Library", "Application Support", appName), nil
	default:
		return filepath.Join(envOr("XDG_CONFIG_HOME", filepath.Join(home, ".config")), appName), nil
	}
}

// GetSystemConfigDir returns the machine-wide config directory, searched after
// the per-user one.
func GetSystemConfigDir(appName string) (string, error) {
	if osutil.IsDevEnvironment() {
		return devConfigDir, nil
	}

	switch runtime.GOOS {
	case "windows":
		return filepath.Join(envOr("ProgramData", filepath.Join("C:", "ProgramData")), appName), nil
	case "darwin":
		return filepath.Join("/Library", "Application Support", appName), nil
	default:
		return filepath.Join("/etc", appName), nil
	}
}

// GetLogDir returns where log_file: auto writes. On Linux this follows
// $XDG_STATE_HOME (default ~/.local/state).
func GetLogDir(appName string) (string, error) {
	if osutil.IsDevEnvironment() {
		return devLogDir, nil
	}

	home, err := GetHomeDir()
	if err != nil {
		return "", err
	}

	switch runtime.GOOS {
	case "windows":
		return filepath.Join(envOr("LOCALAPPDATA", filepath.Join(home, "AppData", "Local")), appName, "Logs"), nil
	case "darwin":
		return filepath.Join(home, "Library", "Logs", appName), nil
	default:
		return filepath.Join(envOr("XDG_STATE_HOME", filepath.Join(home, ".local", "state")), appName, "logs"), nil
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
