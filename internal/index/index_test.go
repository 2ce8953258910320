package index

import (
	"fmt"
	"sync"
	"testing"

	"github.com/MrSnakeDoc/snip/internal/domain"
)

func merged(trigger, content string) domain.MergedSnippet {
	return domain.MergedSnippet{Snippet: domain.Snippet{ID: trigger, Trigger: trigger, Content: content}}
}

func TestNewIndexIsEmpty(t *testing.T) {
	idx := New()
	if idx.Current() == nil {
		t.Fatal("New() published a nil snapshot")
	}
	if idx.Count() != 0 {
		t.Errorf("New() should start empty, got %d", idx.Count())
	}
	if _, ok := idx.Lookup(";hi"); ok {
		t.Error("Lookup() on empty index should miss")
	}
}

func TestRebuildReplaces(t *testing.T) {
	idx := New()
	idx.Rebuild([]domain.MergedSnippet{merged(";a", "A")})
	idx.Rebuild([]domain.MergedSnippet{merged(";b", "B"), merged(";c", "C")})

	if idx.Count() != 2 {
		t.Errorf("Rebuild() should replace, got %d triggers want 2", idx.Count())
	}
	if _, ok := idx.Lookup(";a"); ok {
		t.Error("trigger from previous rebuild still visible")
	}
	if m, ok := idx.Lookup(";c"); !ok || m.Content != "C" {
		t.Errorf("Lookup(;c) = %+v, %v", m, ok)
	}
}

func TestRebuildKeepsOldSnapshotIntact(t *testing.T) {
	idx := New()
	old := idx.Rebuild([]domain.MergedSnippet{merged(";a", "A")})
	idx.Rebuild([]domain.MergedSnippet{merged(";b", "B")})

	if _, ok := old.Lookup(";a"); !ok {
		t.Error("old snapshot lost ;a after rebuild")
	}
	if _, ok := old.Lookup(";b"); ok {
		t.Error("old snapshot sees ;b from a later rebuild")
	}
}

func TestBuildSkipsEmptyAndDuplicateTriggers(t *testing.T) {
	snap := Build([]domain.MergedSnippet{
		merged(";x", "first"),
		merged("", "nothing"),
		merged(";x", "second"),
	})

	if snap.Len() != 1 {
		t.Fatalf("Len() = %d, want 1", snap.Len())
	}
	if m, _ := snap.Lookup(";x"); m.Content != "first" {
		t.Errorf("duplicate trigger kept %q, want first", m.Content)
	}
}

func TestMatchAtPrefersLongest(t *testing.T) {
	snap := Build([]domain.MergedSnippet{
		merged(";sig", "short"),
		merged(";signature", "long"),
		merged(";s", "tiny"),
	})

	tests := []struct {
		name    string
		content string
		pos     int
		want    string
		wantOK  bool
	}{
		{name: "longest wins", content: "see ;signature here", pos: 4, want: ";signature", wantOK: true},
		{name: "shorter when longer does not fit", content: "x;sig", pos: 1, want: ";sig", wantOK: true},
		{name: "single char", content: ";s", pos: 0, want: ";s", wantOK: true},
		{name: "no trigger at pos", content: "hello", pos: 2, wantOK: false},
		{name: "pos out of range", content: ";s", pos: 5, wantOK: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, ok := snap.MatchAt(tt.content, tt.pos)
			if ok != tt.wantOK {
				t.Fatalf("MatchAt() ok = %v, want %v", ok, tt.wantOK)
			}
			if ok && m.Trigger != tt.want {
				t.Errorf("MatchAt() = %q, want %q", m.Trigger, tt.want)
			}
		})
	}
}

func TestTriggersKeepMergeOrder(t *testing.T) {
	snap := Build([]domain.MergedSnippet{merged(";z", ""), merged(";a", ""), merged(";m", "")})
	got := snap.Triggers()
	want := []string{";z", ";a", ";m"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("Triggers() = %v, want %v", got, want)
		}
	}
}

func TestAllReturnsCopy(t *testing.T) {
	snap := Build([]domain.MergedSnippet{merged(";a", "A")})
	all := snap.All()
	all[0].Content = "mutated"

	if m, _ := snap.Lookup(";a"); m.Content != "A" {
		t.Error("All() exposed the internal slice")
	}
	if snap.All()[0].Content != "A" {
		t.Error("All() exposed the internal slice")
	}
}

func TestConcurrentRebuildAndRead(t *testing.T) {
	idx := New()
	var wg sync.WaitGroup

	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				idx.Rebuild([]domain.MergedSnippet{
					merged(fmt.Sprintf(";a%d", n), "x"),
					merged(fmt.Sprintf(";b%d", n), "y"),
				})
			}
		}(i)
	}

	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				// Every published snapshot is complete: two triggers or the
				// initial empty one.
				if n := idx.Current().Len(); n != 0 && n != 2 {
					t.Errorf("observed partial snapshot with %d triggers", n)
				}
			}
		}()
	}

	wg.Wait()
}
