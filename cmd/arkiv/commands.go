package main

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	serveradapter "github.com/hylla/arkiv/internal/adapters/server"
	servercommon "github.com/hylla/arkiv/internal/adapters/server/common"
	"github.com/hylla/arkiv/internal/adapters/storage/sqlite"
	"github.com/hylla/arkiv/internal/app"
	"github.com/spf13/cobra"
)

// newRunCommand builds `arkiv run`.
func newRunCommand(opts *globalOptions) *cobra.Command {
	var workspaces, formats []string
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run one backup now",
		Long: `Fetch every matching workspace, render each configured format, store the
artifacts, then apply retention. Branch fetch failures degrade the snapshot;
enumeration, render, and store failures abort the run.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return opts.withLedger(cmd.Context(), "run", func(ctx context.Context, env *runtimeEnv, repo *sqlite.Repository) error {
				be, err := env.newBackend(ctx, repo, backendOptions{requireClickUp: true, formats: formats})
				if err != nil {
					return err
				}
				report, err := be.runner.Run(ctx, app.RunOptions{Trigger: "cli", Workspaces: workspaces})
				if report.RunID != "" {
					writeRunSummary(opts.stdout, report)
				}
				return err
			})
		},
	}
	cmd.Flags().StringSliceVarP(&workspaces, "workspace", "w", nil, "workspace name glob; replaces backup.include (repeatable)")
	cmd.Flags().StringSliceVar(&formats, "format", nil, "output format for every store: json, yaml, markdown, docx, gdoc (repeatable)")
	return cmd
}

// newPruneCommand builds `arkiv prune`.
func newPruneCommand(opts *globalOptions) *cobra.Command {
	var dryRun bool
	cmd := &cobra.Command{
		Use:   "prune",
		Short: "Apply retention without running a backup",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return opts.withLedger(cmd.Context(), "prune", func(ctx context.Context, env *runtimeEnv, repo *sqlite.Repository) error {
				be, err := env.newBackend(ctx, repo, backendOptions{})
				if err != nil {
					return err
				}
				sweeps, err := be.runner.Prune(ctx, dryRun)
				writePruneSummary(opts.stdout, sweeps, env.cfg.Retention.Days)
				return err
			})
		},
	}
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "report evictions without deleting")
	return cmd
}

// newHistoryCommand builds `arkiv history`.
func newHistoryCommand(opts *globalOptions) *cobra.Command {
	var (
		limit int
		runID string
	)
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recent runs from the run ledger",
		Long: `Show recent runs from the run ledger. With --run, show one run and the
artifacts it wrote; the short id printed in the run table is accepted.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if limit <= 0 || limit > servercommon.MaxRunLimit {
				return fmt.Errorf("--limit must be between 1 and %d", servercommon.MaxRunLimit)
			}
			return opts.withLedger(cmd.Context(), "history", func(ctx context.Context, _ *runtimeEnv, repo *sqlite.Repository) error {
				if id := strings.TrimSpace(runID); id != "" {
					run, err := findRun(ctx, repo, id)
					if err != nil {
						return err
					}
					artifacts, err := repo.ListRunArtifacts(ctx, run.ID)
					if err != nil {
						return err
					}
					writeRunDetail(opts.stdout, run, artifacts)
					return nil
				}
				runs, err := repo.ListRuns(ctx, limit)
				if err != nil {
					return err
				}
				writeHistory(opts.stdout, runs)
				return nil
			})
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", servercommon.DefaultRunLimit, "maximum runs to show")
	cmd.Flags().StringVar(&runID, "run", "", "show one run and its artifacts (full or short id)")
	return cmd
}

// findRun resolves a full run id, or a unique prefix among recent runs.
func findRun(ctx context.Context, repo *sqlite.Repository, id string) (app.RunRecord, error) {
	run, err := repo.GetRun(ctx, id)
	if err == nil || !errors.Is(err, app.ErrNotFound) {
		return run, err
	}
	recent, err := repo.ListRuns(ctx, servercommon.MaxRunLimit)
	if err != nil {
		return app.RunRecord{}, err
	}
	var matches []app.RunRecord
	for _, candidate := range recent {
		if strings.HasPrefix(candidate.ID, id) {
			matches = append(matches, candidate)
		}
	}
	switch len(matches) {
	case 0:
		return app.RunRecord{}, fmt.Errorf("run %q: %w", id, app.ErrNotFound)
	case 1:
		return matches[0], nil
	default:
		return app.RunRecord{}, fmt.Errorf("run id prefix %q matches %d runs", id, len(matches))
	}
}

// newPreviewCommand builds `arkiv preview`.
func newPreviewCommand(opts *globalOptions) *cobra.Command {
	var po previewOptions
	cmd := &cobra.Command{
		Use:   "preview",
		Short: "Render the newest stored report in the terminal",
		Long: `Render a stored report as styled terminal markdown. Without --file the newest
local markdown or structured artifact is used; structured snapshots are
re-rendered as a report.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return opts.withLedger(cmd.Context(), "preview", func(ctx context.Context, env *runtimeEnv, repo *sqlite.Repository) error {
				var be backend
				if strings.TrimSpace(po.file) == "" {
					var err error
					be, err = env.newBackend(ctx, repo, backendOptions{localOnly: true})
					if err != nil {
						return err
					}
				}
				return runPreview(ctx, env, be, po)
			})
		},
	}
	cmd.Flags().StringVarP(&po.workspace, "workspace", "w", "", "workspace name to preview")
	cmd.Flags().StringVarP(&po.file, "file", "f", "", "artifact file to preview (.md, .json, .yaml)")
	cmd.Flags().BoolVar(&po.raw, "raw", false, "print plain markdown without terminal styling")
	cmd.Flags().IntVar(&po.width, "width", 0, "wrap width (defaults to the terminal width)")
	return cmd
}

// newPathsCommand builds `arkiv paths`.
func newPathsCommand(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "paths",
		Short: "Print resolved config, data, ledger, and backup paths",
		Args:  cobra.NoArgs,
		RunE: func(*cobra.Command, []string) error {
			paths, err := opts.resolvePaths()
			if err != nil {
				return err
			}
			out := opts.stdout
			_, _ = fmt.Fprintf(out, "app: %s\n", opts.appName)
			_, _ = fmt.Fprintf(out, "dev_mode: %t\n", opts.devMode)
			_, _ = fmt.Fprintf(out, "config: %s\n", paths.ConfigPath)
			_, _ = fmt.Fprintf(out, "data_dir: %s\n", paths.DataDir)
			_, _ = fmt.Fprintf(out, "db: %s\n", paths.DBPath)
			_, _ = fmt.Fprintf(out, "backups: %s\n", paths.BackupDir)
			return nil
		},
	}
}

// newServeCommand builds `arkiv serve`.
func newServeCommand(opts *globalOptions) *cobra.Command {
	var (
		httpBind    string
		apiEndpoint string
		mcpEndpoint string
		schedule    string
	)
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the HTTP API and MCP endpoint and run scheduled backups",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return opts.withLedger(cmd.Context(), "serve", func(ctx context.Context, env *runtimeEnv, repo *sqlite.Repository) error {
				serveCfg := env.cfg.Serve
				if cmd.Flags().Changed("http") {
					serveCfg.Bind = httpBind
				}
				if cmd.Flags().Changed("api-endpoint") {
					serveCfg.APIEndpoint = apiEndpoint
				}
				if cmd.Flags().Changed("mcp-endpoint") {
					serveCfg.MCPEndpoint = mcpEndpoint
				}
				interval := env.cfg.ScheduleInterval()
				if cmd.Flags().Changed("schedule") {
					parsed, err := parseSchedule(schedule)
					if err != nil {
						return err
					}
					interval = parsed
				}

				be, err := env.newBackend(ctx, repo, backendOptions{requireClickUp: true})
				if err != nil {
					return err
				}
				env.logger.Info("serve configuration resolved", "http", serveCfg.Bind, "api_endpoint", serveCfg.APIEndpoint, "mcp_endpoint", serveCfg.MCPEndpoint, "schedule", interval.String())
				return serveCommandRunner(ctx, serveradapter.Config{
					HTTPBind:      serveCfg.Bind,
					APIEndpoint:   serveCfg.APIEndpoint,
					MCPEndpoint:   serveCfg.MCPEndpoint,
					ServerName:    opts.appName,
					ServerVersion: version,
					Schedule:      interval,
				}, serveradapter.Dependencies{
					Backups: servercommon.NewAppServiceAdapter(be.runner),
					Logger:  env.logger,
				})
			})
		},
	}
	cmd.Flags().StringVar(&httpBind, "http", "127.0.0.1:8080", "HTTP listen address (overrides serve.bind)")
	cmd.Flags().StringVar(&apiEndpoint, "api-endpoint", "/api/v1", "HTTP API base endpoint")
	cmd.Flags().StringVar(&mcpEndpoint, "mcp-endpoint", "/mcp", "MCP streamable HTTP endpoint")
	cmd.Flags().StringVar(&schedule, "schedule", "24h", `interval between scheduled runs; "0" disables`)
	return cmd
}

// parseSchedule parses a --schedule value. "0" and "off" disable scheduling.
func parseSchedule(raw string) (time.Duration, error) {
	raw = strings.TrimSpace(raw)
	switch strings.ToLower(raw) {
	case "", "0", "off":
		return 0, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("--schedule: %w", err)
	}
	if d < 0 {
		return 0, errors.New("--schedule must not be negative")
	}
	return d, nil
}
