package render

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/hylla/arkiv/internal/domain"
	"gopkg.in/yaml.v3"
)

// JSONRenderer writes the lossless JSON encoding of a snapshot.
type JSONRenderer struct{}

// Format returns domain.FormatJSON.
func (JSONRenderer) Format() domain.Format { return domain.FormatJSON }

// Render encodes snap with two-space indentation and a trailing newline.
func (JSONRenderer) Render(snap domain.Snapshot) ([]byte, error) {
	encoded, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode snapshot json: %w", err)
	}
	return append(encoded, '\n'), nil
}

// ParseJSON decodes a JSON artifact back into a snapshot.
func ParseJSON(data []byte) (domain.Snapshot, error) {
	var snap domain.Snapshot
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&snap); err != nil {
		return domain.Snapshot{}, fmt.Errorf("decode snapshot json: %w", err)
	}
	if err := snap.Validate(); err != nil {
		return domain.Snapshot{}, err
	}
	return snap, nil
}

// YAMLRenderer writes the JSON-shaped YAML encoding of a snapshot.
type YAMLRenderer struct{}

// Format returns domain.FormatYAML.
func (YAMLRenderer) Format() domain.Format { return domain.FormatYAML }

// Render encodes snap through its JSON shape so field names match the JSON artifact.
func (YAMLRenderer) Render(snap domain.Snapshot) ([]byte, error) {
	encoded, err := json.Marshal(snap)
	if err != nil {
		return nil, fmt.Errorf("encode snapshot json: %w", err)
	}
	var tree any
	if err := json.Unmarshal(encoded, &tree); err != nil {
		return nil, fmt.Errorf("decode snapshot tree: %w", err)
	}
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(tree); err != nil {
		return nil, fmt.Errorf("encode snapshot yaml: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("encode snapshot yaml: %w", err)
	}
	return buf.Bytes(), nil
}

// ParseYAML decodes a YAML artifact back into a snapshot.
func ParseYAML(data []byte) (domain.Snapshot, error) {
	var tree any
	if err := yaml.Unmarshal(data, &tree); err != nil {
		return domain.Snapshot{}, fmt.Errorf("decode snapshot yaml: %w", err)
	}
	encoded, err := json.Marshal(tree)
	if err != nil {
		return domain.Snapshot{}, fmt.Errorf("reshape snapshot yaml: %w", err)
	}
	return ParseJSON(encoded)
}

// Parse decodes a structured artifact of the given format.
func Parse(format domain.Format, data []byte) (domain.Snapshot, error) {
	switch format {
	case domain.FormatJSON:
		return ParseJSON(data)
	case domain.FormatYAML:
		return ParseYAML(data)
	default:
		return domain.Snapshot{}, fmt.Errorf("%w: %q is not a structured format", domain.ErrUnknownFormat, format)
	}
}
