package render

import (
	"bytes"
	"strings"

	"github.com/hylla/arkiv/internal/domain"
)

// MarkdownRenderer writes the narrative report as Markdown.
type MarkdownRenderer struct {
	dates dateFormatter
}

// NewMarkdownRenderer constructs a markdown renderer for one locale and zone.
func NewMarkdownRenderer(opts Options) MarkdownRenderer {
	return MarkdownRenderer{dates: newDateFormatter(opts.Locale, opts.Location)}
}

// Format returns domain.FormatMarkdown.
func (MarkdownRenderer) Format() domain.Format { return domain.FormatMarkdown }

// Render emits the report outline as Markdown.
func (r MarkdownRenderer) Render(snap domain.Snapshot) ([]byte, error) {
	return markdownBytes(buildOutline(snap, r.dates)), nil
}

func markdownBytes(blocks []block) []byte {
	var buf bytes.Buffer
	prev := kindNone
	for _, b := range blocks {
		if markdownGap(prev, b.kind) {
			buf.WriteByte('\n')
		}
		switch b.kind {
		case kindTitle:
			buf.WriteString("# " + escapeMarkdown(b.text) + "\n")
		case kindHeading1:
			buf.WriteString("## " + withIcon(b) + "\n")
		case kindHeading2:
			buf.WriteString("### " + escapeMarkdown(b.text) + "\n")
		case kindHeading3:
			buf.WriteString("#### " + escapeMarkdown(b.text) + "\n")
		case kindLine:
			buf.WriteString("**" + escapeMarkdown(b.label) + ":** " + escapeMarkdown(b.text) + "  \n")
		case kindField:
			buf.WriteString("- **" + escapeMarkdown(b.label) + ":** " + escapeMarkdown(b.text) + "\n")
		case kindItem:
			buf.WriteString("- **" + escapeMarkdown(b.text) + "**\n")
		case kindDetail:
			buf.WriteString("  - " + escapeMarkdown(b.label) + ": " + escapeMarkdown(b.text) + "\n")
		case kindRule:
			buf.WriteString("---\n")
		case kindNote:
			buf.WriteString("*" + escapeMarkdown(b.text) + "*\n")
		}
		prev = b.kind
	}
	return buf.Bytes()
}

// markdownGap reports whether a blank line separates prev from next.
func markdownGap(prev, next blockKind) bool {
	if prev == kindNone {
		return false
	}
	switch next {
	case kindTitle, kindHeading1, kindHeading2, kindHeading3, kindRule, kindNote:
		return true
	}
	switch prev {
	case kindTitle, kindHeading1, kindHeading2, kindHeading3, kindRule:
		return true
	}
	return listLike(prev) != listLike(next)
}

func listLike(kind blockKind) bool {
	return kind == kindField || kind == kindItem || kind == kindDetail
}

func withIcon(b block) string {
	return strings.TrimSpace(b.icon + " " + escapeMarkdown(b.text))
}

// markdownEscaper backslash-escapes the punctuation that Markdown and its
// HTML conversion would otherwise read as markup.
var markdownEscaper = strings.NewReplacer(
	`\`, `\\`,
	"`", "\\`",
	"*", `\*`,
	"_", `\_`,
	"[", `\[`,
	"]", `\]`,
	"<", `\<`,
	">", `\>`,
	"#", `\#`,
	"~", `\~`,
	"|", `\|`,
	"&", `\&`,
)

// escapeMarkdown makes snapshot text render literally.
func escapeMarkdown(s string) string {
	return markdownEscaper.Replace(s)
}
