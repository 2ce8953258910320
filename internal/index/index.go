package index

import (
	"sync/atomic"
	"time"

	"github.com/MrSnakeDoc/snip/internal/domain"
)

// Index publishes the current Snapshot. Rebuild swaps in a complete new
// snapshot; readers keep whichever snapshot they loaded until they are done
// with it.
type Index struct {
	current atomic.Pointer[Snapshot]
}

// New creates an index holding an empty snapshot.
func New() *Index {
	idx := &Index{}
	idx.current.Store(Build(nil))
	return idx
}

// Rebuild indexes snippets and publishes the result.
func (idx *Index) Rebuild(snippets []domain.MergedSnippet) *Snapshot {
	snap := Build(snippets)
	idx.current.Store(snap)
	return snap
}

// Current returns the published snapshot.
func (idx *Index) Current() *Snapshot {
	return idx.current.Load()
}

// Lookup resolves trigger against the current snapshot.
func (idx *Index) Lookup(trigger string) (domain.MergedSnippet, bool) {
	return idx.Current().Lookup(trigger)
}

// Count returns the number of triggers in the current snapshot.
func (idx *Index) Count() int {
	return idx.Current().Len()
}

// LastRebuild returns when the current snapshot was built.
func (idx *Index) LastRebuild() time.Time {
	return idx.Current().BuiltAt()
}
