package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/charmbracelet/fang"
	"github.com/google/uuid"
	"github.com/hylla/arkiv/internal/adapters/clickup"
	serveradapter "github.com/hylla/arkiv/internal/adapters/server"
	"github.com/hylla/arkiv/internal/adapters/storage/gdrive"
	"github.com/hylla/arkiv/internal/adapters/storage/localfs"
	"github.com/hylla/arkiv/internal/adapters/storage/sqlite"
	"github.com/hylla/arkiv/internal/app"
	"github.com/hylla/arkiv/internal/config"
	"github.com/hylla/arkiv/internal/domain"
	"github.com/hylla/arkiv/internal/logging"
	"github.com/hylla/arkiv/internal/platform"
	"github.com/hylla/arkiv/internal/render"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
)

// version is overridden at build time.
var version = "dev"

// serveCommandRunner starts the HTTP+MCP serve flow.
var serveCommandRunner = func(ctx context.Context, cfg serveradapter.Config, deps serveradapter.Dependencies) error {
	return serveradapter.Run(ctx, cfg, deps)
}

// driveStoreFactory connects the Google Drive store.
var driveStoreFactory = func(ctx context.Context, cfg gdrive.Config) (app.ArtifactStore, error) {
	store, err := gdrive.New(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return store, nil
}

// errClickUpCredentials reports a command that needs the ClickUp API without a token.
var errClickUpCredentials = errors.New("CLICKUP_API_TOKEN is not set")

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	root := newRootCommand(os.Stdout, os.Stderr)
	err := fang.Execute(ctx, root, fang.WithVersion(version))
	stop()
	if err != nil {
		os.Exit(1)
	}
}

// run executes one command line against explicit writers.
func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	root := newRootCommand(stdout, stderr)
	root.SetArgs(args)
	root.SilenceErrors = true
	root.SilenceUsage = true
	return root.ExecuteContext(ctx)
}

// globalOptions holds the persistent flags shared by every command.
type globalOptions struct {
	configPath string
	dbPath     string
	appName    string
	envFile    string
	devMode    bool
	stdout     io.Writer
	stderr     io.Writer
}

// newRootCommand builds the command tree.
func newRootCommand(stdout, stderr io.Writer) *cobra.Command {
	if stdout == nil {
		stdout = io.Discard
	}
	if stderr == nil {
		stderr = io.Discard
	}
	opts := &globalOptions{stdout: stdout, stderr: stderr}

	defaultDevMode := version == "dev"
	if envDev, ok := parseBoolEnv("ARKIV_DEV_MODE"); ok {
		defaultDevMode = envDev
	}
	defaultApp := "arkiv"
	if envApp := strings.TrimSpace(os.Getenv("ARKIV_APP_NAME")); envApp != "" {
		defaultApp = envApp
	}

	root := &cobra.Command{
		Use:     "arkiv",
		Short:   "Back up ClickUp workspaces to local disk and Google Drive",
		Version: version,
	}
	root.SetOut(stdout)
	root.SetErr(stderr)

	flags := root.PersistentFlags()
	flags.StringVar(&opts.configPath, "config", "", "path to config TOML")
	flags.StringVar(&opts.dbPath, "db", "", "path to sqlite run ledger")
	flags.StringVar(&opts.appName, "app", defaultApp, "application name for config/data path resolution")
	flags.BoolVar(&opts.devMode, "dev", defaultDevMode, "use dev mode paths (<app>-dev)")
	flags.StringVar(&opts.envFile, "env-file", ".env", "dotenv file with credentials (ignored when missing)")

	root.AddCommand(
		newRunCommand(opts),
		newPruneCommand(opts),
		newHistoryCommand(opts),
		newPreviewCommand(opts),
		newPathsCommand(opts),
		newServeCommand(opts),
	)
	return root
}

// resolvePaths returns the platform paths for the selected app name and mode.
func (o *globalOptions) resolvePaths() (platform.Paths, error) {
	return platform.DefaultPathsWithOptions(platform.Options{
		AppName: o.appName,
		DevMode: o.devMode,
	})
}

// runtimeEnv is the resolved configuration and logger for one command.
type runtimeEnv struct {
	opts       *globalOptions
	paths      platform.Paths
	configPath string
	cfg        config.Config
	creds      config.Credentials
	logger     *logging.Logger
	closers    []func()
}

// bootstrap resolves paths, config, credentials, and the runtime logger.
func (o *globalOptions) bootstrap(command string) (*runtimeEnv, error) {
	paths, err := o.resolvePaths()
	if err != nil {
		return nil, err
	}

	configPath := strings.TrimSpace(o.configPath)
	if configPath == "" {
		if envPath := strings.TrimSpace(os.Getenv("ARKIV_CONFIG")); envPath != "" {
			configPath = envPath
		} else {
			configPath = paths.ConfigPath
		}
	}
	dbPath := strings.TrimSpace(o.dbPath)
	dbOverridden := dbPath != ""
	if !dbOverridden {
		if envPath := strings.TrimSpace(os.Getenv("ARKIV_DB_PATH")); envPath != "" {
			dbPath = envPath
			dbOverridden = true
		} else {
			dbPath = paths.DBPath
		}
	}

	cfg, err := config.Load(configPath, config.Default(dbPath, paths.BackupDir))
	if err != nil {
		return nil, fmt.Errorf("load config %q: %w", configPath, err)
	}
	if dbOverridden {
		cfg.Database.Path = dbPath
	}
	creds, err := config.LoadCredentials(o.envFile, os.Getenv)
	if err != nil {
		return nil, fmt.Errorf("load credentials: %w", err)
	}
	cfg = creds.Apply(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	logger, err := logging.New(o.stderr, o.appName, o.devMode, cfg.Logging, time.Now)
	if err != nil {
		return nil, fmt.Errorf("configure runtime logger: %w", err)
	}
	env := &runtimeEnv{
		opts:       o,
		paths:      paths,
		configPath: configPath,
		cfg:        cfg,
		creds:      creds,
		logger:     logger,
	}
	logger.Info("startup configuration resolved", "app", o.appName, "dev_mode", o.devMode, "command", command)
	logger.Debug("runtime paths resolved", "config_path", configPath, "data_dir", paths.DataDir, "db_path", cfg.Database.Path)
	logger.Info("configuration loaded", "config_path", configPath, "db_path", cfg.Database.Path, "log_level", cfg.Logging.Level, "retention_days", cfg.Retention.Days)
	if devPath := logger.DevLogPath(); devPath != "" {
		logger.Info("dev file logging enabled", "path", devPath)
	}
	return env, nil
}

// close releases resources in reverse acquisition order.
func (e *runtimeEnv) close() {
	for i := len(e.closers) - 1; i >= 0; i-- {
		e.closers[i]()
	}
	if err := e.logger.Close(); err != nil {
		_, _ = fmt.Fprintf(e.opts.stderr, "warning: close runtime log sink: %v\n", err)
	}
}

// openLedger opens the sqlite run ledger.
func (e *runtimeEnv) openLedger() (*sqlite.Repository, error) {
	path := e.cfg.Database.Path
	e.logger.Info("opening sqlite repository", "db_path", path)
	repo, err := sqlite.Open(path)
	if err != nil {
		e.logger.Error("sqlite open failed", "db_path", path, "err", err)
		return nil, fmt.Errorf("open sqlite repository: %w", err)
	}
	e.closers = append(e.closers, func() {
		if closeErr := repo.Close(); closeErr != nil {
			e.logger.Warn("sqlite close failed", "db_path", path, "err", closeErr)
		}
	})
	e.logger.Info("sqlite repository ready", "db_path", path, "migrations", "ensured")
	return repo, nil
}

// backendOptions selects which collaborators a command needs.
type backendOptions struct {
	requireClickUp bool
	localOnly      bool
	formats        []string
}

// backend is the wired backup pipeline.
type backend struct {
	runner *app.Runner
	local  *localfs.Store
}

// renderOptions returns the report presentation settings.
func (e *runtimeEnv) renderOptions() render.Options {
	locale := render.NormalizeLocale(e.cfg.Report.Locale)
	if locale == "" {
		locale = render.LocaleFromEnv(os.Getenv)
	}
	return render.Options{Locale: locale, Location: e.cfg.Location()}
}

// newBackend wires the workspace client, stores, renderers, and runner.
func (e *runtimeEnv) newBackend(ctx context.Context, repo app.RunRecorder, bo backendOptions) (backend, error) {
	client, err := e.workspaceClient(bo.requireClickUp)
	if err != nil {
		return backend{}, err
	}

	localFormats, err := e.cfg.BackupFormats()
	if err != nil {
		return backend{}, err
	}
	driveFormats, err := e.cfg.DriveFormats()
	if err != nil {
		return backend{}, err
	}
	if len(bo.formats) > 0 {
		override, err := parseFormatFlags(bo.formats)
		if err != nil {
			return backend{}, err
		}
		localFormats, driveFormats = override, override
	}

	renderOpts := e.renderOptions()
	var (
		out     backend
		targets []app.Target
	)
	if e.cfg.Storage.Local.Enabled {
		store, err := localfs.New(afero.NewOsFs(), e.cfg.Storage.Local.Dir)
		if err != nil {
			return backend{}, err
		}
		renderers, err := render.NewSet(withJSON(localFormats), renderOpts)
		if err != nil {
			return backend{}, err
		}
		out.local = store
		targets = append(targets, app.Target{Store: store, Renderers: renderers})
		e.logger.Debug("local store ready", "dir", store.Dir(), "formats", len(renderers))
	}
	if e.cfg.Storage.Drive.Enabled && !bo.localOnly {
		store, err := driveStoreFactory(ctx, gdrive.Config{
			ClientID:     e.creds.DriveClientID,
			ClientSecret: e.creds.DriveClientSecret,
			RefreshToken: e.creds.DriveRefreshToken,
			FolderID:     e.cfg.Storage.Drive.FolderID,
		})
		if err != nil {
			return backend{}, fmt.Errorf("connect google drive: %w", err)
		}
		renderers, err := render.NewSet(withJSON(driveFormats), renderOpts)
		if err != nil {
			return backend{}, err
		}
		targets = append(targets, app.Target{Store: store, Renderers: renderers})
		e.logger.Debug("drive store ready", "folder_id", e.cfg.Storage.Drive.FolderID, "formats", len(renderers))
	}

	runner, err := app.NewRunner(app.RunnerDeps{
		Client:   client,
		Targets:  targets,
		Recorder: repo,
		IDGen:    uuid.NewString,
		Clock:    time.Now,
		Logger:   e.logger,
	}, app.RunnerConfig{
		SeriesPrefix:  e.cfg.Backup.SeriesPrefix,
		RetentionDays: e.cfg.Retention.Days,
		Include:       e.cfg.Backup.Include,
		Exclude:       e.cfg.Backup.Exclude,
		Fetch: app.FetcherConfig{
			SprintDetails: e.cfg.Backup.SprintDetails,
			Concurrency:   e.cfg.Backup.ListConcurrency,
		},
	})
	if err != nil {
		return backend{}, fmt.Errorf("configure backup runner: %w", err)
	}
	out.runner = runner
	e.logger.Debug("backup runner initialized", "stores", strings.Join(runner.StoreNames(), ","), "series_prefix", e.cfg.Backup.SeriesPrefix)
	return out, nil
}

// workspaceClient builds the ClickUp client, or an offline stand-in for
// commands that only touch stored artifacts.
func (e *runtimeEnv) workspaceClient(required bool) (app.WorkspaceClient, error) {
	if e.creds.ClickUpToken == "" {
		if required {
			return nil, errClickUpCredentials
		}
		return offlineClient{}, nil
	}
	client, err := clickup.New(clickup.Config{
		BaseURL: e.cfg.ClickUp.BaseURL,
		Token:   e.creds.ClickUpToken,
		TeamID:  e.cfg.ClickUp.TeamID,
		Timeout: e.cfg.ClickUpTimeout(),
	})
	if err != nil {
		return nil, fmt.Errorf("configure clickup client: %w", err)
	}
	return client, nil
}

// withLedger bootstraps one command, opens the ledger, and logs the command flow.
func (o *globalOptions) withLedger(ctx context.Context, command string, fn func(context.Context, *runtimeEnv, *sqlite.Repository) error) error {
	env, err := o.bootstrap(command)
	if err != nil {
		return err
	}
	defer env.close()

	repo, err := env.openLedger()
	if err != nil {
		return err
	}
	env.logger.Info("command flow start", "command", command)
	if err := fn(ctx, env, repo); err != nil {
		env.logger.Error("command flow failed", "command", command, "err", err)
		return fmt.Errorf("run %s command: %w", command, err)
	}
	env.logger.Info("command flow complete", "command", command)
	return nil
}

// withJSON prepends the structured JSON format when absent.
func withJSON(formats []domain.Format) []domain.Format {
	for _, format := range formats {
		if format == domain.FormatJSON {
			return formats
		}
	}
	return append([]domain.Format{domain.FormatJSON}, formats...)
}

// parseFormatFlags parses repeatable --format values.
func parseFormatFlags(raw []string) ([]domain.Format, error) {
	out := make([]domain.Format, 0, len(raw))
	for _, name := range raw {
		format, err := domain.ParseFormat(name)
		if err != nil {
			return nil, fmt.Errorf("--format: %w", err)
		}
		out = append(out, format)
	}
	return out, nil
}

// parseBoolEnv parses one boolean environment variable.
func parseBoolEnv(name string) (bool, bool) {
	raw := strings.TrimSpace(os.Getenv(name))
	if raw == "" {
		return false, false
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return false, false
	}
	return v, true
}

// offlineClient fails every remote call. It backs commands that never reach ClickUp.
type offlineClient struct{}

func (offlineClient) ListWorkspaces(context.Context) ([]domain.Workspace, error) {
	return nil, errClickUpCredentials
}

func (offlineClient) ListFolders(context.Context, string) ([]domain.Folder, error) {
	return nil, errClickUpCredentials
}

func (offlineClient) ListLists(context.Context, string) ([]domain.List, error) {
	return nil, errClickUpCredentials
}

func (offlineClient) ListSprints(context.Context, string) ([]domain.Sprint, error) {
	return nil, errClickUpCredentials
}

func (offlineClient) GetSprintDetail(context.Context, string) (*domain.SprintDetail, error) {
	return nil, errClickUpCredentials
}

func (offlineClient) ListTasks(context.Context, string) ([]domain.Task, error) {
	return nil, errClickUpCredentials
}

func (offlineClient) ListSprintTasks(context.Context, string) ([]domain.Task, error) {
	return nil, errClickUpCredentials
}
