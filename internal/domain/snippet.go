package domain

import "time"

// Snippet is the atomic unit of expansion.
//
// A Snippet is owned by exactly one source. Its ID is only unique inside
// that source; the merged view is keyed by Trigger instead.
type Snippet struct {
	// ─────────────────────────────
	// Identity
	// ─────────────────────────────

	// ID is unique within the owning source.
	ID string

	// Trigger is what the user types to activate the snippet.
	// Example: ;sig
	Trigger string

	// ─────────────────────────────
	// Expansion
	// ─────────────────────────────

	// Content is the expansion text. It may embed {name} placeholders and
	// literal triggers of other snippets.
	Content string

	// Variables describes the placeholders Content expects, in prompt order.
	Variables []Variable

	// ─────────────────────────────
	// Provenance
	// ─────────────────────────────

	// Scope is stamped from the source configuration during sync. Whatever
	// the stored payload says is overwritten.
	Scope Scope

	// SourceFolder is the folder or prefix the snippet was read from.
	SourceFolder string

	// Priority is an optional author hint. It plays no part in merging.
	Priority int

	// ─────────────────────────────
	// Metadata & telemetry
	// ─────────────────────────────

	CreatedAt time.Time
	UpdatedAt time.Time

	// UsageCount and LastUsed are carried through untouched when present.
	UsageCount int64
	LastUsed   *time.Time
}

// Variable is one user-defined placeholder of a snippet.
type Variable struct {
	Name        string
	Placeholder string
	Default     *string
	Type        string
	Choices     []string
}

// DefaultValue returns the declared default, if any.
func (v Variable) DefaultValue() (string, bool) {
	if v.Default == nil {
		return "", false
	}
	return *v.Default, true
}

// Clone returns a deep copy so callers can hand snippets across goroutines
// without sharing slices.
func (s Snippet) Clone() Snippet {
	out := s
	if s.Variables != nil {
		out.Variables = make([]Variable, len(s.Variables))
		for i, v := range s.Variables {
			out.Variables[i] = v.clone()
		}
	}
	if s.LastUsed != nil {
		t := *s.LastUsed
		out.LastUsed = &t
	}
	return out
}

func (v Variable) clone() Variable {
	out := v
	if v.Default != nil {
		d := *v.Default
		out.Default = &d
	}
	if v.Choices != nil {
		out.Choices = append([]string(nil), v.Choices...)
	}
	return out
}

// MergedSnippet is a snippet that won its trigger during a merge, together
// with the source that supplied it.
type MergedSnippet struct {
	Snippet
	SourceName string
}

// Snippets strips merge provenance, e.g. before the merged set is cached.
func Snippets(merged []MergedSnippet) []Snippet {
	out := make([]Snippet, len(merged))
	for i, m := range merged {
		out[i] = m.Snippet
	}
	return out
}

// AsMerged wraps snippets read back from the cache. The winning source name
// is not persisted, so SourceName stays empty.
func AsMerged(snippets []Snippet) []MergedSnippet {
	out := make([]MergedSnippet, len(snippets))
	for i, s := range snippets {
		out[i] = MergedSnippet{Snippet: s}
	}
	return out
}
