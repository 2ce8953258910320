package domain

import (
	"regexp"
	"strings"
)

// placeholderPattern matches {name}. Names start with a letter or
// underscore so JSON-ish braces in content are left alone.
var placeholderPattern = regexp.MustCompile(`\{([A-Za-z_][A-Za-z0-9_.\-]*)\}`)

// Built-in placeholders are computed at expansion time and never stored.
const (
	BuiltinDate     = "date"
	BuiltinTime     = "time"
	BuiltinDateTime = "datetime"
	BuiltinISODate  = "isodate"
	BuiltinYear     = "year"
	BuiltinURL      = "url"
	BuiltinHostname = "hostname"
)

var builtins = map[string]struct{}{
	BuiltinDate:     {},
	BuiltinTime:     {},
	BuiltinDateTime: {},
	BuiltinISODate:  {},
	BuiltinYear:     {},
	BuiltinURL:      {},
	BuiltinHostname: {},
}

// IsBuiltin reports whether name is a dynamic placeholder.
func IsBuiltin(name string) bool {
	_, ok := builtins[strings.ToLower(name)]
	return ok
}

// Placeholder is one {name} occurrence inside content.
type Placeholder struct {
	Name  string
	Start int
	End   int
}

// FindPlaceholders returns every placeholder occurrence in content, built-ins
// included, in order.
func FindPlaceholders(content string) []Placeholder {
	matches := placeholderPattern.FindAllStringSubmatchIndex(content, -1)
	out := make([]Placeholder, 0, len(matches))
	for _, m := range matches {
		out = append(out, Placeholder{Name: content[m[2]:m[3]], Start: m[0], End: m[1]})
	}
	return out
}

// ExtractVariables lists the distinct user variables referenced by content in
// first-seen order. Built-ins are skipped so they never trigger a prompt.
func ExtractVariables(content string) []string {
	seen := make(map[string]struct{})
	var names []string
	for _, p := range FindPlaceholders(content) {
		if IsBuiltin(p.Name) {
			continue
		}
		if _, dup := seen[p.Name]; dup {
			continue
		}
		seen[p.Name] = struct{}{}
		names = append(names, p.Name)
	}
	return names
}

// ReplacePlaceholders rewrites every placeholder through fn. When fn returns
// false the placeholder is kept verbatim.
func ReplacePlaceholders(content string, fn func(name string) (string, bool)) string {
	return placeholderPattern.ReplaceAllStringFunc(content, func(match string) string {
		name := match[1 : len(match)-1]
		if v, ok := fn(name); ok {
			return v
		}
		return match
	})
}
