// Package render converts assembled snapshots into artifact bytes.
package render

import (
	"fmt"
	"time"

	"github.com/hylla/arkiv/internal/app"
	"github.com/hylla/arkiv/internal/domain"
)

// Options holds report presentation settings shared by narrative renderers.
type Options struct {
	// Locale is a BCP 47 tag or POSIX locale name; empty selects en-US.
	Locale string
	// Location converts timestamps before formatting; nil selects UTC.
	Location *time.Location
}

// New constructs the renderer for one format.
func New(format domain.Format, opts Options) (app.Renderer, error) {
	dates := newDateFormatter(opts.Locale, opts.Location)
	switch format {
	case domain.FormatJSON:
		return JSONRenderer{}, nil
	case domain.FormatYAML:
		return YAMLRenderer{}, nil
	case domain.FormatMarkdown:
		return MarkdownRenderer{dates: dates}, nil
	case domain.FormatDocx:
		return DocxRenderer{dates: dates}, nil
	case domain.FormatGDoc:
		return NewGDocRenderer(dates), nil
	default:
		return nil, fmt.Errorf("%w: %q", domain.ErrUnknownFormat, format)
	}
}

// NewSet constructs renderers for every format, in order, skipping duplicates.
func NewSet(formats []domain.Format, opts Options) ([]app.Renderer, error) {
	out := make([]app.Renderer, 0, len(formats))
	seen := make(map[domain.Format]struct{}, len(formats))
	for _, format := range formats {
		if _, ok := seen[format]; ok {
			continue
		}
		seen[format] = struct{}{}
		renderer, err := New(format, opts)
		if err != nil {
			return nil, err
		}
		out = append(out, renderer)
	}
	return out, nil
}
