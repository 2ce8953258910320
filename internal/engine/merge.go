package engine

import (
	"github.com/MrSnakeDoc/snip/internal/domain"
)

// Merge combines source results into a trigger-unique set in one pass.
//
// Every snippet is first stamped with its source's scope. Results are
// visited in the order given (registry insertion order), and a later
// candidate only replaces the incumbent when its scope strictly outranks it,
// so ties go to the first source seen. The output keeps the position where
// each trigger first appeared. Failed results contribute nothing.
func Merge(results []SourceResult, priority domain.ScopePriority) []domain.MergedSnippet {
	pos := make(map[string]int)
	var out []domain.MergedSnippet

	for _, r := range results {
		if r.Err != nil {
			continue
		}
		for _, s := range r.Snippets {
			if s.Trigger == "" {
				continue
			}
			s.Scope = r.Source.Scope
			candidate := domain.MergedSnippet{Snippet: s, SourceName: r.Source.Name}

			i, seen := pos[s.Trigger]
			if !seen {
				pos[s.Trigger] = len(out)
				out = append(out, candidate)
				continue
			}
			if priority.Outranks(s.Scope, out[i].Scope) {
				out[i] = candidate
			}
		}
	}
	if out == nil {
		out = []domain.MergedSnippet{}
	}
	return out
}
