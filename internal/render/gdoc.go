package render

import (
	"bytes"
	"fmt"
	"html"

	"github.com/hylla/arkiv/internal/domain"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
)

// GDocRenderer writes the narrative report as an HTML page that a remote
// document service imports as a native document.
type GDocRenderer struct {
	dates    dateFormatter
	markdown goldmark.Markdown
}

// NewGDocRenderer constructs the remote document renderer.
func NewGDocRenderer(dates dateFormatter) GDocRenderer {
	return GDocRenderer{
		dates:    dates,
		markdown: goldmark.New(goldmark.WithExtensions(extension.Strikethrough)),
	}
}

// Format returns domain.FormatGDoc.
func (GDocRenderer) Format() domain.Format { return domain.FormatGDoc }

// Render converts the markdown narrative to a standalone HTML document.
func (r GDocRenderer) Render(snap domain.Snapshot) ([]byte, error) {
	source := markdownBytes(buildOutline(snap, r.dates))
	var body bytes.Buffer
	if err := r.markdown.Convert(source, &body); err != nil {
		return nil, fmt.Errorf("convert report html: %w", err)
	}
	var out bytes.Buffer
	title := html.EscapeString(reportTitle + " - " + snap.Workspace.Name)
	fmt.Fprintf(&out, "<!DOCTYPE html>\n<html>\n<head>\n<meta charset=\"utf-8\">\n<title>%s</title>\n</head>\n<body>\n", title)
	out.Write(body.Bytes())
	out.WriteString("</body>\n</html>\n")
	return out.Bytes(), nil
}
