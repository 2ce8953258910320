package domain

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// TimestampLayout is ISO-8601 with millisecond precision, the same shape a
// browser's Date.toISOString produces.
const TimestampLayout = "2006-01-02T15:04:05.000Z07:00"

// FormatTimestamp renders t in TimestampLayout, UTC.
func FormatTimestamp(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(TimestampLayout)
}

// ParseTimestamp accepts ISO-8601 strings (with or without fractional
// seconds) and unix epoch milliseconds.
func ParseTimestamp(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, fmt.Errorf("empty timestamp")
	}
	for _, layout := range []string{TimestampLayout, time.RFC3339Nano, time.RFC3339, "2006-01-02T15:04:05", "2006-01-02"} {
		if t, err := time.Parse(layout, raw); err == nil {
			return t.UTC(), nil
		}
	}
	if ms, err := strconv.ParseInt(raw, 10, 64); err == nil {
		return time.UnixMilli(ms).UTC(), nil
	}
	return time.Time{}, fmt.Errorf("unrecognized timestamp %q", raw)
}

// Record is the storage shape of a Snippet. Every file format and the local
// cache read and write this struct, so timestamps travel as strings and are
// converted in exactly one place.
type Record struct {
	ID           string           `json:"id" yaml:"id" toml:"id"`
	Trigger      string           `json:"trigger" yaml:"trigger" toml:"trigger"`
	Content      string           `json:"content" yaml:"content" toml:"content"`
	Scope        string           `json:"scope,omitempty" yaml:"scope,omitempty" toml:"scope,omitempty"`
	Variables    []VariableRecord `json:"variables,omitempty" yaml:"variables,omitempty" toml:"variables,omitempty"`
	CreatedAt    string           `json:"createdAt,omitempty" yaml:"createdAt,omitempty" toml:"createdAt,omitempty"`
	UpdatedAt    string           `json:"updatedAt,omitempty" yaml:"updatedAt,omitempty" toml:"updatedAt,omitempty"`
	SourceFolder string           `json:"sourceFolder,omitempty" yaml:"sourceFolder,omitempty" toml:"sourceFolder,omitempty"`
	Priority     int              `json:"priority,omitempty" yaml:"priority,omitempty" toml:"priority,omitempty"`
	UsageCount   int64            `json:"usageCount,omitempty" yaml:"usageCount,omitempty" toml:"usageCount,omitempty"`
	LastUsed     string           `json:"lastUsed,omitempty" yaml:"lastUsed,omitempty" toml:"lastUsed,omitempty"`
}

// VariableRecord is the storage shape of a Variable.
type VariableRecord struct {
	Name        string   `json:"name" yaml:"name" toml:"name"`
	Placeholder string   `json:"placeholder,omitempty" yaml:"placeholder,omitempty" toml:"placeholder,omitempty"`
	Default     *string  `json:"defaultValue,omitempty" yaml:"defaultValue,omitempty" toml:"defaultValue,omitempty"`
	Type        string   `json:"type,omitempty" yaml:"type,omitempty" toml:"type,omitempty"`
	Choices     []string `json:"choices,omitempty" yaml:"choices,omitempty" toml:"choices,omitempty"`
}

// Repair describes a field that could not be decoded and was replaced.
type Repair struct {
	SnippetID string
	Field     string
	Raw       string
	Err       error
}

// ToRecord converts a snippet to its storage shape.
func ToRecord(s Snippet) Record {
	r := Record{
		ID:           s.ID,
		Trigger:      s.Trigger,
		Content:      s.Content,
		Scope:        string(s.Scope),
		CreatedAt:    FormatTimestamp(s.CreatedAt),
		UpdatedAt:    FormatTimestamp(s.UpdatedAt),
		SourceFolder: s.SourceFolder,
		Priority:     s.Priority,
		UsageCount:   s.UsageCount,
	}
	if s.LastUsed != nil {
		r.LastUsed = FormatTimestamp(*s.LastUsed)
	}
	for _, v := range s.Variables {
		r.Variables = append(r.Variables, VariableRecord{
			Name:        v.Name,
			Placeholder: v.Placeholder,
			Default:     v.Default,
			Type:        v.Type,
			Choices:     v.Choices,
		})
	}
	return r
}

// FromRecord converts a storage record back into a Snippet. Timestamps that
// fail to parse become now and are reported as repairs; an absent timestamp
// stays zero so that decoding the same record twice gives the same snippet.
// The conversion itself never fails.
func FromRecord(r Record, now time.Time) (Snippet, []Repair) {
	var repairs []Repair
	stamp := func(field, raw string) time.Time {
		if strings.TrimSpace(raw) == "" {
			return time.Time{}
		}
		t, err := ParseTimestamp(raw)
		if err != nil {
			repairs = append(repairs, Repair{SnippetID: r.ID, Field: field, Raw: raw, Err: err})
			return now
		}
		return t
	}

	s := Snippet{
		ID:           r.ID,
		Trigger:      r.Trigger,
		Content:      r.Content,
		Scope:        Scope(strings.ToLower(strings.TrimSpace(r.Scope))),
		SourceFolder: r.SourceFolder,
		Priority:     r.Priority,
		UsageCount:   r.UsageCount,
		CreatedAt:    stamp("createdAt", r.CreatedAt),
		UpdatedAt:    stamp("updatedAt", r.UpdatedAt),
	}
	if r.LastUsed != "" {
		if t, err := ParseTimestamp(r.LastUsed); err == nil {
			s.LastUsed = &t
		} else {
			repairs = append(repairs, Repair{SnippetID: r.ID, Field: "lastUsed", Raw: r.LastUsed, Err: err})
		}
	}
	for _, v := range r.Variables {
		s.Variables = append(s.Variables, Variable{
			Name:        v.Name,
			Placeholder: v.Placeholder,
			Default:     v.Default,
			Type:        v.Type,
			Choices:     v.Choices,
		})
	}
	return s, repairs
}

// EncodeSnippets serializes a snippet list as a JSON array of records.
func EncodeSnippets(snippets []Snippet) ([]byte, error) {
	records := make([]Record, 0, len(snippets))
	for _, s := range snippets {
		records = append(records, ToRecord(s))
	}
	data, err := json.Marshal(records)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal snippets: %w", err)
	}
	return data, nil
}

// DecodeSnippets parses a JSON array of records. Malformed JSON is an error
// for the whole document; bad timestamps are only repairs.
func DecodeSnippets(data []byte, now time.Time) ([]Snippet, []Repair, error) {
	var records []Record
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, nil, fmt.Errorf("failed to unmarshal snippets: %w", err)
	}
	snippets, repairs := FromRecords(records, now)
	return snippets, repairs, nil
}

// FromRecords converts decoded records, skipping entries without a trigger.
func FromRecords(records []Record, now time.Time) ([]Snippet, []Repair) {
	snippets := make([]Snippet, 0, len(records))
	var repairs []Repair
	for _, r := range records {
		if strings.TrimSpace(r.Trigger) == "" {
			continue
		}
		s, rep := FromRecord(r, now)
		snippets = append(snippets, s)
		repairs = append(repairs, rep...)
	}
	return snippets, repairs
}
