package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/hylla/arkiv/internal/domain"
)

func TestDefaultConfig(t *testing.T) {
	cfg := Default("/tmp/arkiv.db", "/tmp/backups")
	if cfg.Database.Path != "/tmp/arkiv.db" {
		t.Fatalf("unexpected db path %q", cfg.Database.Path)
	}
	if cfg.Storage.Local.Dir != "/tmp/backups" || !cfg.Storage.Local.Enabled {
		t.Fatalf("unexpected local storage %#v", cfg.Storage.Local)
	}
	if cfg.Storage.Drive.Enabled {
		t.Fatal("expected drive storage disabled by default")
	}
	if cfg.Retention.Days != 30 {
		t.Fatalf("expected 30 retention days, got %d", cfg.Retention.Days)
	}
	if cfg.Backup.SeriesPrefix != DefaultSeriesPrefix || cfg.Backup.ListConcurrency != 1 || !cfg.Backup.SprintDetails {
		t.Fatalf("unexpected backup defaults %#v", cfg.Backup)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate() default error = %v", err)
	}
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	defaults := Default("/tmp/arkiv.db", "/tmp/backups")
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.toml"), defaults)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Database.Path != defaults.Database.Path {
		t.Fatalf("expected default db path, got %q", cfg.Database.Path)
	}
}

func TestLoadEmptyFileUsesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, nil, 0o644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	cfg, err := Load(path, Default("/tmp/arkiv.db", "/tmp/backups"))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Retention.Days != 30 {
		t.Fatalf("expected default retention, got %d", cfg.Retention.Days)
	}
}

func TestLoadFileOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	content := `
[clickup]
team_id = "9001"
timeout = "5s"

[backup]
formats = ["json", "md", "yaml"]
include = ["Eng/**"]
list_concurrency = 4

[report]
locale = "de-DE"
timezone = "Europe/Berlin"

[retention]
days = 0

[storage.drive]
enabled = true
folder_id = "folder-1"

[serve]
schedule = ""
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	cfg, err := Load(path, Default("/tmp/arkiv.db", "/tmp/backups"))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.ClickUp.TeamID != "9001" || cfg.ClickUpTimeout() != 5*time.Second {
		t.Fatalf("unexpected clickup config %#v", cfg.ClickUp)
	}
	formats, err := cfg.BackupFormats()
	if err != nil {
		t.Fatalf("BackupFormats() error = %v", err)
	}
	want := []domain.Format{domain.FormatJSON, domain.FormatMarkdown, domain.FormatYAML}
	if len(formats) != len(want) {
		t.Fatalf("unexpected formats %#v", formats)
	}
	for i := range want {
		if formats[i] != want[i] {
			t.Fatalf("formats[%d] = %q, want %q", i, formats[i], want[i])
		}
	}
	if cfg.Backup.ListConcurrency != 4 || len(cfg.Backup.Include) != 1 {
		t.Fatalf("unexpected backup config %#v", cfg.Backup)
	}
	if cfg.Retention.Days != 0 {
		t.Fatalf("expected retention disabled, got %d", cfg.Retention.Days)
	}
	if !cfg.Storage.Drive.Enabled || cfg.Storage.Drive.FolderID != "folder-1" {
		t.Fatalf("unexpected drive config %#v", cfg.Storage.Drive)
	}
	if cfg.Storage.Local.Dir != "/tmp/backups" {
		t.Fatalf("expected untouched local dir, got %q", cfg.Storage.Local.Dir)
	}
	if cfg.ScheduleInterval() != 0 {
		t.Fatalf("expected disabled schedule, got %s", cfg.ScheduleInterval())
	}
	if cfg.Location().String() != "Europe/Berlin" {
		t.Fatalf("unexpected location %s", cfg.Location())
	}
}

func TestLoadRejectsInvalidValuesTogether(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	content := `
[backup]
series_prefix = ""
formats = ["json", "pdf"]
exclude = ["[oops"]

[retention]
days = -1
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	_, err := Load(path, Default("/tmp/arkiv.db", "/tmp/backups"))
	if err == nil {
		t.Fatal("expected validation error")
	}
	for _, field := range []string{"backup.series_prefix", "backup.formats", "backup.exclude", "retention.days"} {
		if !strings.Contains(err.Error(), field) {
			t.Fatalf("expected %q in error %q", field, err)
		}
	}
}

func TestValidateRequiresAStore(t *testing.T) {
	cfg := Default("/tmp/arkiv.db", "/tmp/backups")
	cfg.Storage.Local.Enabled = false
	err := cfg.Validate()
	if err == nil || !strings.Contains(err.Error(), "storage") {
		t.Fatalf("expected storage error, got %v", err)
	}

	cfg.Storage.Drive.Enabled = true
	cfg.Storage.Drive.Formats = nil
	err = cfg.Validate()
	if err == nil || !strings.Contains(err.Error(), "storage.drive.formats") {
		t.Fatalf("expected drive formats error, got %v", err)
	}
}

func TestLoadRejectsMalformedTOML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte("[backup\nformats = "), 0o644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	if _, err := Load(path, Default("/tmp/arkiv.db", "/tmp/backups")); err == nil {
		t.Fatal("expected decode error")
	}
}

func TestLoadCredentialsFromEnv(t *testing.T) {
	env := map[string]string{
		"CLICKUP_API_TOKEN":      " pk_123 ",
		"CLICKUP_TEAM_ID":        "42",
		"GOOGLE_DRIVE_FOLDER_ID": "folder-env",
		"BACKUP_RETENTION_DAYS":  "7",
	}
	creds, err := LoadCredentials("", func(key string) string { return env[key] })
	if err != nil {
		t.Fatalf("LoadCredentials() error = %v", err)
	}
	if creds.ClickUpToken != "pk_123" || creds.ClickUpTeamID != "42" {
		t.Fatalf("unexpected credentials %#v", creds)
	}

	cfg := creds.Apply(Default("/tmp/arkiv.db", "/tmp/backups"))
	if cfg.ClickUp.TeamID != "42" || cfg.Storage.Drive.FolderID != "folder-env" || cfg.Retention.Days != 7 {
		t.Fatalf("unexpected applied config %#v", cfg)
	}

	env["BACKUP_RETENTION_DAYS"] = "soon"
	if _, err := LoadCredentials("", func(key string) string { return env[key] }); err == nil {
		t.Fatal("expected invalid retention override to fail")
	}
}

func TestLoadCredentialsReadsEnvFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	if err := os.WriteFile(path, []byte("ARKIV_TEST_CLICKUP_TOKEN=from-file\n"), 0o644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	t.Cleanup(func() {
		_ = os.Unsetenv("ARKIV_TEST_CLICKUP_TOKEN")
	})

	getenv := func(key string) string {
		if key == "CLICKUP_API_TOKEN" {
			return os.Getenv("ARKIV_TEST_CLICKUP_TOKEN")
		}
		return ""
	}
	creds, err := LoadCredentials(path, getenv)
	if err != nil {
		t.Fatalf("LoadCredentials() error = %v", err)
	}
	if creds.ClickUpToken != "from-file" {
		t.Fatalf("expected token from env file, got %q", creds.ClickUpToken)
	}

	if _, err := LoadCredentials(filepath.Join(t.TempDir(), "missing.env"), getenv); err != nil {
		t.Fatalf("expected missing env file to be ignored, got %v", err)
	}
}

func TestEnsureConfigDir(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.toml")
	if err := EnsureConfigDir(path); err != nil {
		t.Fatalf("EnsureConfigDir() error = %v", err)
	}
	if _, err := os.Stat(filepath.Dir(path)); err != nil {
		t.Fatalf("expected config dir, got %v", err)
	}
}
