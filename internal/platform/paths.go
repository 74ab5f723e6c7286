// Package platform resolves where arkiv keeps its config file, run ledger,
// and local backup artifacts on each operating system.
package platform

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
)

// defaultAppName names the per-user directories when Options.AppName is empty.
const defaultAppName = "arkiv"

// Paths are the per-user locations one arkiv install reads and writes.
type Paths struct {
	// ConfigPath is the TOML config file.
	ConfigPath string
	// DataDir holds the run ledger and, by default, the backups directory.
	DataDir string
	// DBPath is the sqlite run ledger.
	DBPath string
	// BackupDir is the default target of the local artifact store.
	BackupDir string
}

// Options selects which install's paths are resolved.
type Options struct {
	// AppName names the config and data directories. Empty means "arkiv".
	AppName string
	// DevMode resolves a separate "<app>-dev" install so development runs
	// never touch real backups or run history.
	DevMode bool
}

// DefaultPathsWithOptions resolves paths for the current user and OS.
func DefaultPathsWithOptions(opts Options) (Paths, error) {
	appName := strings.TrimSpace(opts.AppName)
	if appName == "" {
		appName = defaultAppName
	}
	if opts.DevMode {
		appName += "-dev"
	}

	configDir, dataDir, err := userBaseDirs(runtime.GOOS)
	if err != nil {
		return Paths{}, err
	}
	env := make(map[string]string, 4)
	for _, key := range []string{"XDG_CONFIG_HOME", "XDG_DATA_HOME", "APPDATA", "LOCALAPPDATA"} {
		env[key] = os.Getenv(key)
	}
	return PathsFor(runtime.GOOS, env, configDir, dataDir, appName)
}

// userBaseDirs returns the OS default config and data roots before any
// environment override. Linux data lives under ~/.local/share; Windows data
// under LOCALAPPDATA when set; elsewhere config and data share one root.
func userBaseDirs(goos string) (configDir, dataDir string, err error) {
	configDir, err = os.UserConfigDir()
	if err != nil {
		return "", "", fmt.Errorf("user config dir: %w", err)
	}
	dataDir = configDir
	switch goos {
	case "linux":
		home, err := os.UserHomeDir()
		if err != nil {
			return "", "", fmt.Errorf("user home dir: %w", err)
		}
		dataDir = filepath.Join(home, ".local", "share")
	case "windows":
		if v := strings.TrimSpace(os.Getenv("LOCALAPPDATA")); v != "" {
			dataDir = v
		}
	}
	return configDir, dataDir, nil
}

// PathsFor resolves paths for one OS from explicit base dirs and env values.
// XDG_* overrides apply on linux, APPDATA/LOCALAPPDATA on windows; other
// systems use the base dirs as given.
func PathsFor(goos string, env map[string]string, userConfigDir, userDataDir, appName string) (Paths, error) {
	if userConfigDir == "" || userDataDir == "" {
		return Paths{}, errors.New("empty base dirs")
	}
	appName = strings.TrimSpace(appName)
	if appName == "" {
		return Paths{}, errors.New("empty app name")
	}

	configBase, dataBase := userConfigDir, userDataDir
	var configKey, dataKey string
	switch goos {
	case "linux":
		configKey, dataKey = "XDG_CONFIG_HOME", "XDG_DATA_HOME"
	case "windows":
		configKey, dataKey = "APPDATA", "LOCALAPPDATA"
	}
	if v := env[configKey]; configKey != "" && v != "" {
		configBase = v
	}
	if v := env[dataKey]; dataKey != "" && v != "" {
		dataBase = v
	}

	dataDir := filepath.Join(dataBase, appName)
	return Paths{
		ConfigPath: filepath.Join(configBase, appName, "config.toml"),
		DataDir:    dataDir,
		DBPath:     filepath.Join(dataDir, appName+".db"),
		BackupDir:  filepath.Join(dataDir, "backups"),
	}, nil
}
