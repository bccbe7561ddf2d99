package fsutil

import (
	"path/filepath"
	"runtime"
	"testing"
)

func TestLocationsInDevEnvironment(t *testing.T) {
	t.Setenv("WFKIT_DEV", "true")

	for name, get := range map[string]func(string) (string, error){
		"config": GetConfigDir,
		"system": GetSystemConfigDir,
	} {
		dir, err := get("wfkit")
		if err != nil || dir != devConfigDir {
			t.Errorf("%s dir = %q, %v; want %q", name, dir, err, devConfigDir)
		}
	}
	if dir, err := GetLogDir("wfkit"); err != nil || dir != devLogDir {
		t.Errorf("log dir = %q, %v; want %q", dir, err, devLogDir)
	}
}

func TestLocationsFollowXDG(t *testing.T) {
	if runtime.GOOS == "windows" || runtime.GOOS == "darwin" {
		t.Skip("XDG directories apply to Linux and other Unix systems")
	}
	t.Setenv("WFKIT_ENV", "")
	t.Setenv("WFKIT_DEV", "")
	t.Setenv("DEV", "")
	base := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(base, "cfg"))
	t.Setenv("XDG_STATE_HOME", filepath.Join(base, "state"))

	if dir, _ := GetConfigDir("wfkit"); dir != filepath.Join(base, "cfg", "wfkit") {
		t.Errorf("config dir = %q", dir)
	}
	if dir, _ := GetLogDir("wfkit"); dir != filepath.Join(base, "state", "wfkit", "logs") {
		t.Errorf("log dir = %q", dir)
	}
	if dir, _ := GetSystemConfigDir("wfkit"); dir != filepath.Join("/etc", "wfkit") {
		t.Errorf("system config dir = %q", dir)
	}
}
