package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	charmLog "github.com/charmbracelet/log"
	"github.com/hay-kot/criterio"
	"github.com/hylla/arkiv/internal/domain"
	"github.com/joho/godotenv"
	toml "github.com/pelletier/go-toml/v2"
)

// DefaultSeriesPrefix is the artifact name prefix used when none is configured.
const DefaultSeriesPrefix = "clickup-backup"

// Config holds every file-backed setting.
type Config struct {
	ClickUp   ClickUpConfig   `toml:"clickup"`
	Backup    BackupConfig    `toml:"backup"`
	Report    ReportConfig    `toml:"report"`
	Retention RetentionConfig `toml:"retention"`
	Storage   StorageConfig   `toml:"storage"`
	Database  DatabaseConfig  `toml:"database"`
	Logging   LoggingConfig   `toml:"logging"`
	Serve     ServeConfig     `toml:"serve"`
}

// ClickUpConfig configures the workspace API client.
type ClickUpConfig struct {
	BaseURL string `toml:"base_url"`
	TeamID  string `toml:"team_id"`
	Timeout string `toml:"timeout"`
}

// BackupConfig configures what one run captures and renders.
type BackupConfig struct {
	SeriesPrefix    string   `toml:"series_prefix"`
	Formats         []string `toml:"formats"`
	Include         []string `toml:"include"`
	Exclude         []string `toml:"exclude"`
	SprintDetails   bool     `toml:"sprint_details"`
	ListConcurrency int      `toml:"list_concurrency"`
}

// ReportConfig configures date rendering in narrative reports.
type ReportConfig struct {
	Locale   string `toml:"locale"`
	Timezone string `toml:"timezone"`
}

// RetentionConfig configures artifact eviction. Zero days disables it.
type RetentionConfig struct {
	Days int `toml:"days"`
}

// StorageConfig groups the artifact backends.
type StorageConfig struct {
	Local LocalStorageConfig `toml:"local"`
	Drive DriveStorageConfig `toml:"drive"`
}

// LocalStorageConfig configures the local directory store.
type LocalStorageConfig struct {
	Enabled bool   `toml:"enabled"`
	Dir     string `toml:"dir"`
}

// DriveStorageConfig configures the Google Drive store.
type DriveStorageConfig struct {
	Enabled  bool     `toml:"enabled"`
	FolderID string   `toml:"folder_id"`
	Formats  []string `toml:"formats"`
}

// DatabaseConfig locates the run ledger.
type DatabaseConfig struct {
	Path string `toml:"path"`
}

// LoggingConfig configures runtime log sinks.
type LoggingConfig struct {
	Level   string               `toml:"level"`
	DevFile DevFileLoggingConfig `toml:"dev_file"`
}

// DevFileLoggingConfig configures the dev-mode log file sink.
type DevFileLoggingConfig struct {
	Enabled bool   `toml:"enabled"`
	Dir     string `toml:"dir"`
}

// ServeConfig configures the HTTP+MCP server and its schedule.
type ServeConfig struct {
	Bind        string `toml:"bind"`
	APIEndpoint string `toml:"api_endpoint"`
	MCPEndpoint string `toml:"mcp_endpoint"`
	Schedule    string `toml:"schedule"`
}

// Default returns the built-in configuration.
func Default(dbPath, backupDir string) Config {
	return Config{
		ClickUp: ClickUpConfig{
			BaseURL: "https://api.clickup.com/api/v2",
			Timeout: "30s",
		},
		Backup: BackupConfig{
			SeriesPrefix:    DefaultSeriesPrefix,
			Formats:         []string{"json", "markdown", "docx"},
			Include:         []string{},
			Exclude:         []string{},
			SprintDetails:   true,
			ListConcurrency: 1,
		},
		Retention: RetentionConfig{
			Days: 30,
		},
		Storage: StorageConfig{
			Local: LocalStorageConfig{
				Enabled: true,
				Dir:     backupDir,
			},
			Drive: DriveStorageConfig{
				Formats: []string{"json", "gdoc"},
			},
		},
		Database: DatabaseConfig{
			Path: dbPath,
		},
		Logging: LoggingConfig{
			Level: "info",
			DevFile: DevFileLoggingConfig{
				Enabled: true,
				Dir:     ".arkiv/log",
			},
		},
		Serve: ServeConfig{
			Bind:        "127.0.0.1:8080",
			APIEndpoint: "/api/v1",
			MCPEndpoint: "/mcp",
			Schedule:    "24h",
		},
	}
}

// Load reads path over defaults. A missing or empty file yields defaults.
func Load(path string, defaults Config) (Config, error) {
	cfg := defaults
	if strings.TrimSpace(path) == "" {
		return cfg, nil
	}

	content, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return Config{}, fmt.Errorf("read config: %w", err)
	}
	if len(content) == 0 {
		return cfg, nil
	}

	if err := toml.Unmarshal(content, &cfg); err != nil {
		return Config{}, fmt.Errorf("decode toml: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

// Validate reports every invalid field together.
func (c Config) Validate() error {
	return criterio.ValidateStruct(
		criterio.Run("clickup.base_url", c.ClickUp.BaseURL, required),
		criterio.Run("clickup.timeout", c.ClickUp.Timeout, positiveDuration),
		criterio.Run("backup.series_prefix", c.Backup.SeriesPrefix, seriesPrefix),
		criterio.Run("report.timezone", c.Report.Timezone, timezone),
		criterio.Run("database.path", c.Database.Path, required),
		criterio.Run("logging.level", c.Logging.Level, logLevel),
		criterio.Run("serve.schedule", c.Serve.Schedule, optionalDuration),
		c.validateBackup(),
		c.validateStorage(),
	)
}

// validateBackup checks list and numeric settings.
func (c Config) validateBackup() error {
	var errs criterio.FieldErrorsBuilder
	if err := formatList(c.Backup.Formats); err != nil {
		errs = errs.Append("backup.formats", err)
	}
	if err := globList(c.Backup.Include); err != nil {
		errs = errs.Append("backup.include", err)
	}
	if err := globList(c.Backup.Exclude); err != nil {
		errs = errs.Append("backup.exclude", err)
	}
	if c.Backup.ListConcurrency < 1 {
		errs = errs.Append("backup.list_concurrency", fmt.Errorf("must be >= 1, got %d", c.Backup.ListConcurrency))
	}
	if c.Retention.Days < 0 {
		errs = errs.Append("retention.days", fmt.Errorf("must be >= 0, got %d", c.Retention.Days))
	}
	return errs.ToError()
}

// validateStorage checks that at least one backend is configured.
func (c Config) validateStorage() error {
	var errs criterio.FieldErrorsBuilder
	if !c.Storage.Local.Enabled && !c.Storage.Drive.Enabled {
		errs = errs.Append("storage", errors.New("at least one of storage.local or storage.drive must be enabled"))
	}
	if c.Storage.Drive.Enabled {
		if err := formatList(c.Storage.Drive.Formats); err != nil {
			errs = errs.Append("storage.drive.formats", err)
		}
	}
	if c.Storage.Local.Enabled && strings.TrimSpace(c.Storage.Local.Dir) == "" {
		errs = errs.Append("storage.local.dir", errors.New("is required when storage.local is enabled"))
	}
	return errs.ToError()
}

// ClickUpTimeout returns the parsed API timeout.
func (c Config) ClickUpTimeout() time.Duration {
	d, err := time.ParseDuration(strings.TrimSpace(c.ClickUp.Timeout))
	if err != nil || d <= 0 {
		return 30 * time.Second
	}
	return d
}

// ScheduleInterval returns the serve-mode run interval. Zero disables scheduling.
func (c Config) ScheduleInterval() time.Duration {
	raw := strings.TrimSpace(c.Serve.Schedule)
	if raw == "" {
		return 0
	}
	d, err := time.ParseDuration(raw)
	if err != nil || d < 0 {
		return 0
	}
	return d
}

// BackupFormats returns the parsed local formats.
func (c Config) BackupFormats() ([]domain.Format, error) {
	return parseFormats(c.Backup.Formats)
}

// DriveFormats returns the parsed Drive formats.
func (c Config) DriveFormats() ([]domain.Format, error) {
	return parseFormats(c.Storage.Drive.Formats)
}

// Location returns the configured report timezone, or the local zone.
func (c Config) Location() *time.Location {
	name := strings.TrimSpace(c.Report.Timezone)
	if name == "" {
		return time.Local
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return time.Local
	}
	return loc
}

// EnsureConfigDir creates the directory holding path.
func EnsureConfigDir(path string) error {
	dir := filepath.Dir(path)
	if dir == "." || dir == "" {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}

// Credentials are secrets provisioned through the environment, never the config file.
type Credentials struct {
	ClickUpToken       string
	ClickUpTeamID      string
	DriveClientID      string
	DriveClientSecret  string
	DriveRefreshToken  string
	DriveFolderID      string
	RetentionDays      int
	RetentionDaysIsSet bool
}

// LoadCredentials reads an optional dotenv file into the process environment
// and collects credentials through getenv. Existing variables win.
func LoadCredentials(envFile string, getenv func(string) string) (Credentials, error) {
	if envFile = strings.TrimSpace(envFile); envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
			return Credentials{}, fmt.Errorf("load env file %q: %w", envFile, err)
		}
	}
	if getenv == nil {
		getenv = os.Getenv
	}
	creds := Credentials{
		ClickUpToken:      strings.TrimSpace(getenv("CLICKUP_API_TOKEN")),
		ClickUpTeamID:     strings.TrimSpace(getenv("CLICKUP_TEAM_ID")),
		DriveClientID:     strings.TrimSpace(getenv("GOOGLE_DRIVE_CLIENT_ID")),
		DriveClientSecret: strings.TrimSpace(getenv("GOOGLE_DRIVE_CLIENT_SECRET")),
		DriveRefreshToken: strings.TrimSpace(getenv("GOOGLE_DRIVE_REFRESH_TOKEN")),
		DriveFolderID:     strings.TrimSpace(getenv("GOOGLE_DRIVE_FOLDER_ID")),
	}
	if raw := strings.TrimSpace(getenv("BACKUP_RETENTION_DAYS")); raw != "" {
		days, err := strconv.Atoi(raw)
		if err != nil || days < 0 {
			return Credentials{}, criterio.NewFieldErrors("BACKUP_RETENTION_DAYS", fmt.Errorf("must be a non-negative integer, got %q", raw))
		}
		creds.RetentionDays = days
		creds.RetentionDaysIsSet = true
	}
	return creds, nil
}

// Apply overlays environment-provided values onto cfg.
func (c Credentials) Apply(cfg Config) Config {
	if c.ClickUpTeamID != "" {
		cfg.ClickUp.TeamID = c.ClickUpTeamID
	}
	if c.DriveFolderID != "" {
		cfg.Storage.Drive.FolderID = c.DriveFolderID
	}
	if c.RetentionDaysIsSet {
		cfg.Retention.Days = c.RetentionDays
	}
	return cfg
}

func parseFormats(raw []string) ([]domain.Format, error) {
	out := make([]domain.Format, 0, len(raw))
	for _, name := range raw {
		format, err := domain.ParseFormat(name)
		if err != nil {
			return nil, err
		}
		out = append(out, format)
	}
	return out, nil
}

func required(v string) error {
	if strings.TrimSpace(v) == "" {
		return errors.New("is required")
	}
	return nil
}

func seriesPrefix(v string) error {
	v = strings.TrimSpace(v)
	if v == "" {
		return errors.New("is required")
	}
	if strings.ContainsAny(v, `/\`) {
		return fmt.Errorf("must not contain path separators: %q", v)
	}
	return nil
}

func positiveDuration(v string) error {
	d, err := time.ParseDuration(strings.TrimSpace(v))
	if err != nil {
		return fmt.Errorf("invalid duration %q", v)
	}
	if d <= 0 {
		return fmt.Errorf("must be positive, got %s", d)
	}
	return nil
}

func optionalDuration(v string) error {
	if strings.TrimSpace(v) == "" {
		return nil
	}
	d, err := time.ParseDuration(strings.TrimSpace(v))
	if err != nil {
		return fmt.Errorf("invalid duration %q", v)
	}
	if d < 0 {
		return fmt.Errorf("must not be negative, got %s", d)
	}
	return nil
}

func formatList(v []string) error {
	if len(v) == 0 {
		return errors.New("must name at least one format")
	}
	_, err := parseFormats(v)
	return err
}

func globList(v []string) error {
	for i, pattern := range v {
		if !doublestar.ValidatePattern(pattern) {
			return fmt.Errorf("[%d] invalid glob %q", i, pattern)
		}
	}
	return nil
}

func timezone(v string) error {
	if strings.TrimSpace(v) == "" {
		return nil
	}
	if _, err := time.LoadLocation(strings.TrimSpace(v)); err != nil {
		return fmt.Errorf("unknown timezone %q", v)
	}
	return nil
}

func logLevel(v string) error {
	if _, err := charmLog.ParseLevel(v); err != nil {
		return fmt.Errorf("invalid level %q", v)
	}
	return nil
}
