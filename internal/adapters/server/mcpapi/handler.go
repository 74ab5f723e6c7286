// Package mcpapi provides a stateless MCP streamable-HTTP adapter.
package mcpapi

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/hylla/arkiv/internal/adapters/server/common"
	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"
)

// Config captures MCP transport configuration.
type Config struct {
	ServerName    string
	ServerVersion string
	EndpointPath  string
}

// Handler wraps one stateless MCP streamable HTTP handler.
type Handler struct {
	httpHandler http.Handler
}

// NewHandler builds one stateless MCP adapter exposing the backup tools.
func NewHandler(cfg Config, backups common.BackupService) (*Handler, error) {
	if backups == nil {
		return nil, fmt.Errorf("backup service is required")
	}
	cfg = normalizeConfig(cfg)

	mcpSrv := mcpserver.NewMCPServer(
		cfg.ServerName,
		cfg.ServerVersion,
		mcpserver.WithToolCapabilities(false),
	)
	registerArtifactTools(mcpSrv, backups)
	registerRunTools(mcpSrv, backups)

	streamable := mcpserver.NewStreamableHTTPServer(
		mcpSrv,
		mcpserver.WithEndpointPath(cfg.EndpointPath),
		mcpserver.WithStateLess(true),
	)
	return &Handler{httpHandler: streamable}, nil
}

// ServeHTTP handles one MCP streamable HTTP request.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.httpHandler == nil {
		http.Error(w, "mcp handler unavailable", http.StatusServiceUnavailable)
		return
	}
	h.httpHandler.ServeHTTP(w, r)
}

// normalizeConfig applies deterministic defaults to MCP adapter config.
func normalizeConfig(cfg Config) Config {
	cfg.ServerName = strings.TrimSpace(cfg.ServerName)
	if cfg.ServerName == "" {
		cfg.ServerName = "arkiv"
	}
	cfg.ServerVersion = strings.TrimSpace(cfg.ServerVersion)
	if cfg.ServerVersion == "" {
		cfg.ServerVersion = "dev"
	}
	cfg.EndpointPath = strings.TrimSpace(cfg.EndpointPath)
	if cfg.EndpointPath == "" {
		cfg.EndpointPath = "/mcp"
	}
	cfg.EndpointPath = "/" + strings.Trim(cfg.EndpointPath, "/")
	return cfg
}

// registerArtifactTools registers the read-only `arkiv.list_artifacts` and `arkiv.list_runs` tools.
func registerArtifactTools(srv *mcpserver.MCPServer, backups common.BackupService) {
	srv.AddTool(
		mcp.NewTool(
			"arkiv.list_artifacts",
			mcp.WithDescription("List stored backup artifacts, newest first."),
			mcp.WithString("store", mcp.Description("Restrict to one store (local or gdrive)")),
			mcp.WithString("workspace", mcp.Description("Restrict to one workspace name")),
		),
		func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			artifacts, err := backups.ListArtifacts(ctx, common.ListArtifactsRequest{
				Store:     req.GetString("store", ""),
				Workspace: req.GetString("workspace", ""),
			})
			if err != nil {
				return toolResultFromError(err), nil
			}
			result, err := mcp.NewToolResultJSON(map[string]any{
				"artifacts": artifacts,
			})
			if err != nil {
				return nil, fmt.Errorf("encode list_artifacts result: %w", err)
			}
			return result, nil
		},
	)

	srv.AddTool(
		mcp.NewTool(
			"arkiv.list_runs",
			mcp.WithDescription("List recent backup runs from the run ledger, newest first."),
			mcp.WithNumber("limit", mcp.Description("Maximum rows to return")),
		),
		func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			runs, err := backups.ListRuns(ctx, common.ListRunsRequest{
				Limit: req.GetInt("limit", 0),
			})
			if err != nil {
				return toolResultFromError(err), nil
			}
			result, err := mcp.NewToolResultJSON(map[string]any{
				"runs": runs,
			})
			if err != nil {
				return nil, fmt.Errorf("encode list_runs result: %w", err)
			}
			return result, nil
		},
	)
}

// registerRunTools registers the mutating `arkiv.run_backup` and `arkiv.prune` tools.
func registerRunTools(srv *mcpserver.MCPServer, backups common.BackupService) {
	srv.AddTool(
		mcp.NewTool(
			"arkiv.run_backup",
			mcp.WithDescription("Run one backup now and return its summary. Blocks until the run finishes."),
			mcp.WithArray("workspaces", mcp.Description("Optional workspace name globs"), mcp.WithStringItems()),
		),
		func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			run, err := backups.RunBackup(ctx, common.RunBackupRequest{
				Workspaces: req.GetStringSlice("workspaces", nil),
				Trigger:    "mcp",
			})
			if err != nil {
				return toolResultFromError(err), nil
			}
			result, err := mcp.NewToolResultJSON(run)
			if err != nil {
				return nil, fmt.Errorf("encode run_backup result: %w", err)
			}
			return result, nil
		},
	)

	srv.AddTool(
		mcp.NewTool(
			"arkiv.prune",
			mcp.WithDescription("Apply retention to every store without running a backup."),
			mcp.WithBoolean("dry_run", mcp.Description("Report evictions without deleting")),
		),
		func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			stores, err := backups.Prune(ctx, common.PruneRequest{
				DryRun: req.GetBool("dry_run", false),
			})
			if err != nil {
				return toolResultFromError(err), nil
			}
			result, err := mcp.NewToolResultJSON(map[string]any{
				"stores": stores,
			})
			if err != nil {
				return nil, fmt.Errorf("encode prune result: %w", err)
			}
			return result, nil
		},
	)
}

// toolResultFromError maps service errors into MCP-visible tool errors.
func toolResultFromError(err error) *mcp.CallToolResult {
	switch {
	case err == nil:
		return mcp.NewToolResultError("unknown error")
	case errors.Is(err, common.ErrRunInProgress):
		return mcp.NewToolResultError("run_in_progress: " + err.Error())
	case errors.Is(err, common.ErrInvalidRequest):
		return mcp.NewToolResultError("invalid_request: " + err.Error())
	case errors.Is(err, common.ErrNotFound), errors.Is(err, common.ErrUnknownStore):
		return mcp.NewToolResultError("not_found: " + err.Error())
	case errors.Is(err, common.ErrBackupUnavailable):
		return mcp.NewToolResultError("not_implemented: " + err.Error())
	default:
		return mcp.NewToolResultError("internal_error: " + err.Error())
	}
}
