// Package fileformat reads and writes snippet files in JSON, YAML and TOML.
//
// A file holds either a bare list of snippet records (JSON, YAML) or a
// document with a "snippets" list (all three formats). Parsing is all or
// nothing: a malformed file yields an error and no snippets.
package fileformat

import (
	"bytes"
	"encoding/json"
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"

	"github.com/MrSnakeDoc/snip/internal/domain"
)

type Format string

const (
	JSON Format = "json"
	YAML Format = "yaml"
	TOML Format = "toml"
)

// ManagedFile is where adapters put snippets that do not belong to any
// existing file.
const ManagedFile = "snippets.json"

type document struct {
	Snippets []domain.Record `json:"snippets" yaml:"snippets" toml:"snippets"`
}

// FormatFor returns the format implied by name's extension.
func FormatFor(name string) (Format, bool) {
	switch strings.ToLower(path.Ext(name)) {
	case ".json":
		return JSON, true
	case ".yaml", ".yml":
		return YAML, true
	case ".toml":
		return TOML, true
	default:
		return "", false
	}
}

// Supported reports whether name looks like a snippet file. Hidden and
// editor temp files are ignored.
func Supported(name string) bool {
	base := path.Base(name)
	if strings.HasPrefix(base, ".") || strings.HasSuffix(base, "~") {
		return false
	}
	_, ok := FormatFor(base)
	return ok
}

// Parse decodes data in format f. Timestamps that cannot be parsed are
// replaced by now and reported as repairs.
func Parse(f Format, data []byte, now time.Time) ([]domain.Snippet, []domain.Repair, error) {
	records, err := decodeRecords(f, data)
	if err != nil {
		return nil, nil, err
	}
	snippets, repairs := domain.FromRecords(records, now)
	return snippets, repairs, nil
}

// ParseFile is Parse with the format taken from name.
func ParseFile(name string, data []byte, now time.Time) ([]domain.Snippet, []domain.Repair, error) {
	f, ok := FormatFor(name)
	if !ok {
		return nil, nil, fmt.Errorf("unsupported snippet file %q", name)
	}
	snippets, repairs, err := Parse(f, data, now)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to parse %s: %w", name, err)
	}
	return snippets, repairs, nil
}

func decodeRecords(f Format, data []byte) ([]domain.Record, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil, nil
	}

	switch f {
	case JSON:
		if trimmed[0] == '[' {
			var records []domain.Record
			if err := json.Unmarshal(trimmed, &records); err != nil {
				return nil, err
			}
			return records, nil
		}
		var doc document
		if err := json.Unmarshal(trimmed, &doc); err != nil {
			return nil, err
		}
		return doc.Snippets, nil

	case YAML:
		var root yaml.Node
		if err := yaml.Unmarshal(trimmed, &root); err != nil {
			return nil, err
		}
		if len(root.Content) == 0 {
			return nil, nil
		}
		body := root.Content[0]
		switch body.Kind {
		case yaml.SequenceNode:
			var records []domain.Record
			if err := body.Decode(&records); err != nil {
				return nil, err
			}
			return records, nil
		case yaml.MappingNode:
			var doc document
			if err := body.Decode(&doc); err != nil {
				return nil, err
			}
			return doc.Snippets, nil
		default:
			return nil, fmt.Errorf("yaml document must be a list or a mapping, got %s", body.Tag)
		}

	case TOML:
		var doc document
		if err := toml.Unmarshal(trimmed, &doc); err != nil {
			return nil, err
		}
		return doc.Snippets, nil
	}

	return nil, fmt.Errorf("unknown format %q", f)
}

// Encode serializes snippets in format f. JSON is written as a bare list,
// YAML and TOML as a document with a "snippets" list.
func Encode(f Format, snippets []domain.Snippet) ([]byte, error) {
	records := make([]domain.Record, 0, len(snippets))
	for _, s := range snippets {
		records = append(records, domain.ToRecord(s))
	}

	switch f {
	case JSON:
		data, err := json.MarshalIndent(records, "", "  ")
		if err != nil {
			return nil, fmt.Errorf("failed to encode json: %w", err)
		}
		return append(data, '\n'), nil
	case YAML:
		var buf bytes.Buffer
		enc := yaml.NewEncoder(&buf)
		enc.SetIndent(2)
		if err := enc.Encode(document{Snippets: records}); err != nil {
			return nil, fmt.Errorf("failed to encode yaml: %w", err)
		}
		if err := enc.Close(); err != nil {
			return nil, fmt.Errorf("failed to encode yaml: %w", err)
		}
		return buf.Bytes(), nil
	case TOML:
		data, err := toml.Marshal(document{Snippets: records})
		if err != nil {
			return nil, fmt.Errorf("failed to encode toml: %w", err)
		}
		return data, nil
	}
	return nil, fmt.Errorf("unknown format %q", f)
}

// EncodeFile is Encode with the format taken from name.
func EncodeFile(name string, snippets []domain.Snippet) ([]byte, error) {
	f, ok := FormatFor(name)
	if !ok {
		return nil, fmt.Errorf("unsupported snippet file %q", name)
	}
	return Encode(f, snippets)
}
