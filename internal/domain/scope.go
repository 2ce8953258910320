package domain

import (
	"fmt"
	"strings"
)

// Scope is the tier a source belongs to. It decides which copy of a trigger
// wins when several sources define it.
type Scope string

const (
	ScopePersonal   Scope = "personal"
	ScopeTeam       Scope = "team"
	ScopeDepartment Scope = "department"
	ScopeOrg        Scope = "org"
)

// KnownScopes lists every scope the service accepts.
var KnownScopes = []Scope{ScopePersonal, ScopeTeam, ScopeDepartment, ScopeOrg}

// ParseScope normalizes a user supplied scope name.
func ParseScope(value string) (Scope, error) {
	s := Scope(strings.ToLower(strings.TrimSpace(value)))
	if !s.Valid() {
		return "", fmt.Errorf("unknown scope %q", value)
	}
	return s, nil
}

// Valid reports whether s is one of KnownScopes.
func (s Scope) Valid() bool {
	for _, known := range KnownScopes {
		if s == known {
			return true
		}
	}
	return false
}

func (s Scope) String() string { return string(s) }

// ScopePriority ranks scopes from highest to lowest. The first entry wins
// every collision it takes part in.
//
// Two orderings exist in the wild, so the table is configuration rather
// than a hard-coded rule: see PersonalFirst and OrgFirst.
type ScopePriority struct {
	ordered []Scope
	rank    map[Scope]int
}

var (
	// PersonalFirst lets a user's own snippets shadow shared ones.
	PersonalFirst = MustScopePriority(ScopePersonal, ScopeTeam, ScopeDepartment, ScopeOrg)

	// OrgFirst lets organization snippets override everything below them.
	OrgFirst = MustScopePriority(ScopeOrg, ScopeTeam, ScopeDepartment, ScopePersonal)
)

// NewScopePriority builds a table from scopes ordered highest first.
// Scopes missing from the list rank below every listed scope.
func NewScopePriority(highestFirst ...Scope) (ScopePriority, error) {
	if len(highestFirst) == 0 {
		return ScopePriority{}, fmt.Errorf("scope priority must list at least one scope")
	}
	rank := make(map[Scope]int, len(highestFirst))
	ordered := make([]Scope, 0, len(highestFirst))
	for i, s := range highestFirst {
		if !s.Valid() {
			return ScopePriority{}, fmt.Errorf("unknown scope %q in priority list", s)
		}
		if _, dup := rank[s]; dup {
			return ScopePriority{}, fmt.Errorf("scope %q listed twice in priority list", s)
		}
		rank[s] = len(highestFirst) - i
		ordered = append(ordered, s)
	}
	return ScopePriority{ordered: ordered, rank: rank}, nil
}

// MustScopePriority is NewScopePriority for package-level tables.
func MustScopePriority(highestFirst ...Scope) ScopePriority {
	p, err := NewScopePriority(highestFirst...)
	if err != nil {
		panic(err)
	}
	return p
}

// ParseScopePriority reads a comma separated list such as
// "personal,team,department,org".
func ParseScopePriority(value string) (ScopePriority, error) {
	parts := strings.Split(value, ",")
	scopes := make([]Scope, 0, len(parts))
	for _, part := range parts {
		if strings.TrimSpace(part) == "" {
			continue
		}
		s, err := ParseScope(part)
		if err != nil {
			return ScopePriority{}, err
		}
		scopes = append(scopes, s)
	}
	return NewScopePriority(scopes...)
}

// Rank returns the relative weight of s. Only the comparison between two
// ranks is meaningful.
func (p ScopePriority) Rank(s Scope) int {
	return p.rank[s]
}

// Outranks reports whether candidate strictly beats incumbent.
func (p ScopePriority) Outranks(candidate, incumbent Scope) bool {
	return p.Rank(candidate) > p.Rank(incumbent)
}

// IsZero reports whether p lists no scope at all, as the zero value does.
func (p ScopePriority) IsZero() bool { return len(p.ordered) == 0 }

// Ordered returns the table highest first.
func (p ScopePriority) Ordered() []Scope {
	out := make([]Scope, len(p.ordered))
	copy(out, p.ordered)
	return out
}

func (p ScopePriority) String() string {
	names := make([]string, len(p.ordered))
	for i, s := range p.ordered {
		names[i] = string(s)
	}
	return strings.Join(names, " > ")
}
