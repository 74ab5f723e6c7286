package platform

import (
	"path/filepath"
	"runtime"
	"testing"
)

// TestPathsForLinuxWithXDG verifies behavior for the covered scenario.
func TestPathsForLinuxWithXDG(t *testing.T) {
	p, err := PathsFor("linux", map[string]string{
		"XDG_CONFIG_HOME": "/xdg/config",
		"XDG_DATA_HOME":   "/xdg/data",
	}, "/fallback/config", "/fallback/data", "arkiv")
	if err != nil {
		t.Fatalf("PathsFor() error = %v", err)
	}
	wantConfig := filepath.Join("/xdg/config", "arkiv", "config.toml")
	wantDB := filepath.Join("/xdg/data", "arkiv", "arkiv.db")
	wantBackups := filepath.Join("/xdg/data", "arkiv", "backups")
	if p.ConfigPath != wantConfig {
		t.Fatalf("unexpected config path %q", p.ConfigPath)
	}
	if p.DBPath != wantDB {
		t.Fatalf("unexpected db path %q", p.DBPath)
	}
	if p.BackupDir != wantBackups {
		t.Fatalf("unexpected backup dir %q", p.BackupDir)
	}
}

// TestPathsForWindowsUsesAppData verifies behavior for the covered scenario.
func TestPathsForWindowsUsesAppData(t *testing.T) {
	p, err := PathsFor("windows", map[string]string{
		"APPDATA":      `C:\Users\me\AppData\Roaming`,
		"LOCALAPPDATA": `C:\Users\me\AppData\Local`,
	}, `C:\fallback\config`, `C:\fallback\data`, "arkiv")
	if err != nil {
		t.Fatalf("PathsFor() error = %v", err)
	}

	wantConfig := filepath.Join(`C:\Users\me\AppData\Roaming`, "arkiv", "config.toml")
	wantDB := filepath.Join(`C:\Users\me\AppData\Local`, "arkiv", "arkiv.db")
	if p.ConfigPath != wantConfig {
		t.Fatalf("unexpected config path %q", p.ConfigPath)
	}
	if p.DBPath != wantDB {
		t.Fatalf("unexpected db path %q", p.DBPath)
	}
}

// TestPathsForRejectsEmptyInputs verifies empty base dirs and app names fail.
func TestPathsForRejectsEmptyInputs(t *testing.T) {
	if _, err := PathsFor("darwin", nil, "", "/tmp/data", "arkiv"); err == nil {
		t.Fatal("expected error for empty dirs")
	}
	if _, err := PathsFor("darwin", nil, "/tmp/config", "/tmp/data", "  "); err == nil {
		t.Fatal("expected error for empty app name")
	}
}

// TestPathsForDarwinFallback verifies behavior for the covered scenario.
func TestPathsForDarwinFallback(t *testing.T) {
	p, err := PathsFor("darwin", map[string]string{
		"XDG_CONFIG_HOME": "/ignored",
		"XDG_DATA_HOME":   "/ignored",
	}, "/Users/me/Library/Application Support", "/Users/me/Library/Application Support", "arkiv")
	if err != nil {
		t.Fatalf("PathsFor() error = %v", err)
	}
	wantConfig := filepath.Join("/Users/me/Library/Application Support", "arkiv", "config.toml")
	wantDB := filepath.Join("/Users/me/Library/Application Support", "arkiv", "arkiv.db")
	if p.ConfigPath != wantConfig {
		t.Fatalf("unexpected config path %q", p.ConfigPath)
	}
	if p.DBPath != wantDB {
		t.Fatalf("unexpected db path %q", p.DBPath)
	}
}

// TestPathsForUnknownFallback verifies unknown platforms use the given base dirs.
func TestPathsForUnknownFallback(t *testing.T) {
	p, err := PathsFor("freebsd", map[string]string{}, "/cfg", "/data", "arkiv")
	if err != nil {
		t.Fatalf("PathsFor() error = %v", err)
	}
	wantConfig := filepath.Join("/cfg", "arkiv", "config.toml")
	wantData := filepath.Join("/data", "arkiv")
	if p.ConfigPath != wantConfig {
		t.Fatalf("unexpected config path %q", p.ConfigPath)
	}
	if p.DataDir != wantData {
		t.Fatalf("unexpected data dir %q", p.DataDir)
	}
}

// TestPathsForLinuxFallbackWithoutXDG verifies behavior for the covered scenario.
func TestPathsForLinuxFallbackWithoutXDG(t *testing.T) {
	p, err := PathsFor("linux", map[string]string{}, "/home/me/.config", "/home/me/.local/share", "arkiv")
	if err != nil {
		t.Fatalf("PathsFor() error = %v", err)
	}
	wantConfig := filepath.Join("/home/me/.config", "arkiv", "config.toml")
	wantDB := filepath.Join("/home/me/.local/share", "arkiv", "arkiv.db")
	if p.ConfigPath != wantConfig {
		t.Fatalf("unexpected config path %q", p.ConfigPath)
	}
	if p.DBPath != wantDB {
		t.Fatalf("unexpected db path %q", p.DBPath)
	}
}

// TestDefaultPathsSmoke verifies behavior for the covered scenario.
func TestDefaultPathsSmoke(t *testing.T) {
	p, err := DefaultPathsWithOptions(Options{})
	if err != nil {
		t.Fatalf("DefaultPathsWithOptions() error = %v", err)
	}
	if filepath.Base(p.DBPath) != "arkiv.db" {
		t.Fatalf("expected default app name, got %q", p.DBPath)
	}
	if p.ConfigPath == "" || p.DBPath == "" || p.DataDir == "" || p.BackupDir == "" {
		t.Fatalf("expected non-empty paths, got %#v", p)
	}
}

// TestDefaultPathsWithOptionsDevMode verifies behavior for the covered scenario.
func TestDefaultPathsWithOptionsDevMode(t *testing.T) {
	p, err := DefaultPathsWithOptions(Options{AppName: "arkiv", DevMode: true})
	if err != nil {
		t.Fatalf("DefaultPathsWithOptions() error = %v", err)
	}
	if filepath.Base(filepath.Dir(p.ConfigPath)) != "arkiv-dev" {
		t.Fatalf("expected dev config dir suffix, got %q", p.ConfigPath)
	}
	if filepath.Base(p.DBPath) != "arkiv-dev.db" {
		t.Fatalf("expected dev db name, got %q", p.DBPath)
	}
	if filepath.Dir(p.BackupDir) != p.DataDir {
		t.Fatalf("expected backups under data dir, got %q", p.BackupDir)
	}
}

// TestUserBaseDirsPerOS verifies the linux data root and the shared fallback.
func TestUserBaseDirsPerOS(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("home dir comes from USERPROFILE on windows")
	}
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("XDG_CONFIG_HOME", "")

	configDir, dataDir, err := userBaseDirs("linux")
	if err != nil {
		t.Fatalf("userBaseDirs(linux) error = %v", err)
	}
	if want := filepath.Join(home, ".local", "share"); dataDir != want {
		t.Fatalf("expected linux data dir %q, got %q", want, dataDir)
	}
	if configDir == "" {
		t.Fatal("expected config dir")
	}

	configDir, dataDir, err = userBaseDirs("freebsd")
	if err != nil {
		t.Fatalf("userBaseDirs(freebsd) error = %v", err)
	}
	if dataDir != configDir {
		t.Fatalf("expected shared base dir, got config %q data %q", configDir, dataDir)
	}
}
