package domain

import (
	"fmt"
	"strings"
	"time"
)

// Format identifies one rendered artifact encoding.
type Format string

// Supported artifact formats.
const (
	FormatJSON     Format = "json"
	FormatYAML     Format = "yaml"
	FormatMarkdown Format = "markdown"
	FormatDocx     Format = "docx"
	FormatGDoc     Format = "gdoc"
)

var formatExtensions = map[Format]string{
	FormatJSON:     "json",
	FormatYAML:     "yaml",
	FormatMarkdown: "md",
	FormatDocx:     "docx",
	FormatGDoc:     "gdoc",
}

var formatMediaTypes = map[Format]string{
	FormatJSON:     "application/json",
	FormatYAML:     "application/yaml",
	FormatMarkdown: "text/markdown",
	FormatDocx:     "application/vnd.openxmlformats-officedocument.wordprocessingml.document",
	FormatGDoc:     "text/html",
}

// Formats lists every supported format in a stable order.
func Formats() []Format {
	return []Format{FormatJSON, FormatYAML, FormatMarkdown, FormatDocx, FormatGDoc}
}

// ParseFormat normalizes one format name. "md" is accepted for markdown.
func ParseFormat(raw string) (Format, error) {
	value := Format(strings.ToLower(strings.TrimSpace(raw)))
	if value == "md" {
		value = FormatMarkdown
	}
	if _, ok := formatExtensions[value]; !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownFormat, raw)
	}
	return value, nil
}

// FormatForExt resolves a file extension back to its format.
func FormatForExt(ext string) (Format, bool) {
	ext = strings.TrimPrefix(strings.ToLower(ext), ".")
	for format, candidate := range formatExtensions {
		if candidate == ext {
			return format, true
		}
	}
	return "", false
}

// Ext returns the file extension without a leading dot.
func (f Format) Ext() string {
	return formatExtensions[f]
}

// MediaType returns the upload content type.
func (f Format) MediaType() string {
	return formatMediaTypes[f]
}

// Structured reports whether the format is a lossless snapshot encoding.
func (f Format) Structured() bool {
	return f == FormatJSON || f == FormatYAML
}

// ArtifactRef describes one persisted artifact.
type ArtifactRef struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Format    Format    `json:"format"`
	Store     string    `json:"store"`
	CreatedAt time.Time `json:"created_at"`
	Size      int64     `json:"size"`
	Location  string    `json:"location,omitempty"`
}

// artifactStampLayout renders an ISO-8601 UTC timestamp with millisecond precision.
const artifactStampLayout = "2006-01-02T15:04:05.000Z07:00"

// stampLen is the length of a sanitized artifact timestamp.
const stampLen = len("2006-01-02T15-04-05-000Z")

// SanitizeName replaces every character outside [A-Za-z0-9] with '_'.
func SanitizeName(name string) string {
	var b strings.Builder
	b.Grow(len(name))
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	return b.String()
}

// ArtifactStamp formats a capture time for use in artifact names.
func ArtifactStamp(capturedAt time.Time) string {
	stamp := capturedAt.UTC().Format(artifactStampLayout)
	return strings.NewReplacer(":", "-", ".", "-").Replace(stamp)
}

// ArtifactName builds {prefix}-{sanitizedWorkspace}-{stamp}.{ext}.
func ArtifactName(prefix, workspaceName string, capturedAt time.Time, format Format) string {
	return fmt.Sprintf("%s.%s", SeriesPrefix(prefix, workspaceName)+ArtifactStamp(capturedAt), format.Ext())
}

// SeriesPrefix returns the name prefix shared by every artifact of one workspace.
func SeriesPrefix(prefix, workspaceName string) string {
	return prefix + "-" + SanitizeName(workspaceName) + "-"
}

// ArtifactNameParts is the decoded form of an artifact name.
type ArtifactNameParts struct {
	Prefix     string
	Workspace  string
	CapturedAt time.Time
	Ext        string
}

// SeriesKey groups artifacts of one workspace and one format.
func (p ArtifactNameParts) SeriesKey() string {
	return p.Prefix + "-" + p.Workspace + "." + p.Ext
}

// ParseArtifactName decodes a name produced by ArtifactName.
func ParseArtifactName(prefix, name string) (ArtifactNameParts, error) {
	head := prefix + "-"
	if prefix == "" || !strings.HasPrefix(name, head) {
		return ArtifactNameParts{}, fmt.Errorf("%w: %q lacks prefix %q", ErrInvalidArtifactName, name, prefix)
	}
	dot := strings.LastIndexByte(name, '.')
	if dot < len(head) {
		return ArtifactNameParts{}, fmt.Errorf("%w: %q has no extension", ErrInvalidArtifactName, name)
	}
	ext := name[dot+1:]
	body := name[len(head):dot]
	if len(body) < stampLen+1 || body[len(body)-stampLen-1] != '-' {
		return ArtifactNameParts{}, fmt.Errorf("%w: %q has no timestamp", ErrInvalidArtifactName, name)
	}
	workspace := body[:len(body)-stampLen-1]
	capturedAt, err := parseArtifactStamp(body[len(body)-stampLen:])
	if err != nil {
		return ArtifactNameParts{}, fmt.Errorf("%w: %q: %v", ErrInvalidArtifactName, name, err)
	}
	return ArtifactNameParts{
		Prefix:     prefix,
		Workspace:  workspace,
		CapturedAt: capturedAt,
		Ext:        ext,
	}, nil
}

// parseArtifactStamp reverses ArtifactStamp.
func parseArtifactStamp(stamp string) (time.Time, error) {
	if len(stamp) != stampLen {
		return time.Time{}, fmt.Errorf("timestamp length %d", len(stamp))
	}
	iso := stamp[:13] + ":" + stamp[14:16] + ":" + stamp[17:19] + "." + stamp[20:]
	return time.Parse(time.RFC3339, iso)
}
