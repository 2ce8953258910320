package index

import (
	"sort"
	"time"

	"github.com/MrSnakeDoc/snip/internal/domain"
)

// Snapshot is an immutable trigger -> snippet mapping. Once built it is never
// written again, so any number of goroutines may read it without locking.
type Snapshot struct {
	byTrigger map[string]domain.MergedSnippet
	ordered   []domain.MergedSnippet
	lengths   []int // distinct trigger lengths, longest first
	builtAt   time.Time
}

// Build indexes the merged set in one pass. Empty triggers are skipped and
// a duplicate trigger keeps its first occurrence.
func Build(snippets []domain.MergedSnippet) *Snapshot {
	snap := &Snapshot{
		byTrigger: make(map[string]domain.MergedSnippet, len(snippets)),
		ordered:   make([]domain.MergedSnippet, 0, len(snippets)),
		builtAt:   time.Now(),
	}

	seenLen := make(map[int]struct{})
	for _, s := range snippets {
		if s.Trigger == "" {
			continue
		}
		if _, dup := snap.byTrigger[s.Trigger]; dup {
			continue
		}
		snap.byTrigger[s.Trigger] = s
		snap.ordered = append(snap.ordered, s)
		if _, ok := seenLen[len(s.Trigger)]; !ok {
			seenLen[len(s.Trigger)] = struct{}{}
			snap.lengths = append(snap.lengths, len(s.Trigger))
		}
	}
	sort.Sort(sort.Reverse(sort.IntSlice(snap.lengths)))

	return snap
}

// Lookup returns the snippet registered under trigger.
func (s *Snapshot) Lookup(trigger string) (domain.MergedSnippet, bool) {
	m, ok := s.byTrigger[trigger]
	return m, ok
}

// MatchAt returns the longest trigger that starts at byte offset pos of
// content. Longest wins so ";sig" never shadows ";signature".
func (s *Snapshot) MatchAt(content string, pos int) (domain.MergedSnippet, bool) {
	if pos < 0 || pos >= len(content) {
		return domain.MergedSnippet{}, false
	}
	rest := len(content) - pos
	for _, l := range s.lengths {
		if l > rest {
			continue
		}
		if m, ok := s.byTrigger[content[pos:pos+l]]; ok {
			return m, true
		}
	}
	return domain.MergedSnippet{}, false
}

// All returns the indexed snippets in merge order.
func (s *Snapshot) All() []domain.MergedSnippet {
	out := make([]domain.MergedSnippet, len(s.ordered))
	copy(out, s.ordered)
	return out
}

// Triggers returns every trigger in merge order.
func (s *Snapshot) Triggers() []string {
	out := make([]string, len(s.ordered))
	for i, m := range s.ordered {
		out[i] = m.Trigger
	}
	return out
}

func (s *Snapshot) Len() int { return len(s.ordered) }

func (s *Snapshot) BuiltAt() time.Time { return s.builtAt }
