package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/hylla/arkiv/internal/adapters/storage/localfs"
	"github.com/hylla/arkiv/internal/app"
	"github.com/hylla/arkiv/internal/domain"
	"github.com/hylla/arkiv/internal/render"
	"github.com/spf13/afero"
	"golang.org/x/term"
)

// defaultPreviewWidth is the wrap width when stdout is not a terminal.
const defaultPreviewWidth = 100

// previewOptions holds `arkiv preview` flags.
type previewOptions struct {
	workspace string
	file      string
	raw       bool
	width     int
}

// runPreview resolves one report and writes it styled or raw.
func runPreview(ctx context.Context, env *runtimeEnv, be backend, po previewOptions) error {
	markdown, source, err := previewMarkdown(ctx, env, be, po)
	if err != nil {
		return err
	}
	env.logger.Info("preview source resolved", "source", source)
	out := env.opts.stdout
	if po.raw {
		_, err := out.Write(markdown)
		return err
	}
	env.logger.SetConsoleEnabled(false)
	defer env.logger.SetConsoleEnabled(true)
	width := po.width
	if width <= 0 {
		width = terminalWidth(out)
	}
	styled, err := renderTerminalMarkdown(string(markdown), width)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(out, styled)
	return err
}

// previewMarkdown loads the requested file, or the newest local artifact.
func previewMarkdown(ctx context.Context, env *runtimeEnv, be backend, po previewOptions) ([]byte, string, error) {
	if file := strings.TrimSpace(po.file); file != "" {
		format, ok := domain.FormatForExt(filepath.Ext(file))
		if !ok {
			return nil, "", fmt.Errorf("preview: unsupported file type %q", filepath.Ext(file))
		}
		data, err := afero.ReadFile(afero.NewOsFs(), file)
		if err != nil {
			return nil, "", fmt.Errorf("read %s: %w", file, err)
		}
		md, err := markdownFrom(format, data, env.renderOptions())
		return md, file, err
	}

	if be.local == nil || be.runner == nil {
		return nil, "", fmt.Errorf("preview needs storage.local enabled or --file")
	}
	refs, err := be.runner.ListArtifacts(ctx, localfs.StoreName, po.workspace)
	if err != nil {
		return nil, "", err
	}
	for _, ref := range refs {
		if ref.Format != domain.FormatMarkdown && !ref.Format.Structured() {
			continue
		}
		data, err := readArtifact(ctx, be.local, ref.Name)
		if err != nil {
			return nil, "", err
		}
		md, err := markdownFrom(ref.Format, data, env.renderOptions())
		return md, ref.Name, err
	}
	if po.workspace != "" {
		return nil, "", fmt.Errorf("%w: no previewable artifact for workspace %q", app.ErrNotFound, po.workspace)
	}
	return nil, "", fmt.Errorf("%w: no previewable artifact in %s", app.ErrNotFound, be.local.Dir())
}

// readArtifact reads one local artifact fully.
func readArtifact(ctx context.Context, store *localfs.Store, name string) ([]byte, error) {
	rc, err := store.Open(ctx, name)
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return io.ReadAll(rc)
}

// markdownFrom returns markdown as-is and re-renders structured snapshots.
func markdownFrom(format domain.Format, data []byte, opts render.Options) ([]byte, error) {
	switch {
	case format == domain.FormatMarkdown:
		return data, nil
	case format.Structured():
		snap, err := render.Parse(format, data)
		if err != nil {
			return nil, err
		}
		return render.NewMarkdownRenderer(opts).Render(snap)
	default:
		return nil, fmt.Errorf("preview: %s artifacts cannot be previewed", format)
	}
}

// renderTerminalMarkdown styles markdown for a dark terminal.
func renderTerminalMarkdown(markdown string, width int) (string, error) {
	if width < 24 {
		width = 24
	}
	renderer, err := glamour.NewTermRenderer(
		glamour.WithStandardStyle("dark"),
		glamour.WithWordWrap(width),
	)
	if err != nil {
		return "", fmt.Errorf("configure markdown renderer: %w", err)
	}
	rendered, err := renderer.Render(markdown)
	if err != nil {
		return "", fmt.Errorf("render markdown: %w", err)
	}
	return strings.TrimRight(rendered, "\n"), nil
}

// terminalWidth returns the width of w when it is a terminal.
func terminalWidth(w io.Writer) int {
	f, ok := w.(*os.File)
	if !ok || !term.IsTerminal(int(f.Fd())) {
		return defaultPreviewWidth
	}
	width, _, err := term.GetSize(int(f.Fd()))
	if err != nil || width <= 0 {
		return defaultPreviewWidth
	}
	return width
}
