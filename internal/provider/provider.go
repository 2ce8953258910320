// Package provider defines what the sync engine needs from a snippet source
// and binds configured sources to concrete adapters.
package provider

import (
	"context"
	"errors"
	"time"

	"github.com/MrSnakeDoc/snip/internal/domain"
)

var (
	ErrUnknownProvider  = errors.New("unknown provider")
	ErrNotAuthenticated = errors.New("provider not authenticated")
	ErrUnavailable      = errors.New("provider unavailable")
)

// Adapter is the capability every storage provider offers.
type Adapter interface {
	// Download returns the snippets under folderID, or the whole source when
	// folderID is empty.
	Download(ctx context.Context, folderID string) ([]domain.Snippet, error)

	// Upload replaces the source's snippet set with snippets.
	Upload(ctx context.Context, snippets []domain.Snippet) error

	// Delete removes the snippets with the given ids. Unknown ids are ignored.
	Delete(ctx context.Context, ids []string) error

	IsAuthenticated(ctx context.Context) (bool, error)
}

// FileRef names one snippet file inside a file-backed source.
type FileRef struct {
	ID        string // adapter specific locator (path, object key)
	Name      string // base name, carries the format extension
	Folder    string
	Size      int64
	UpdatedAt time.Time
}

// FileDiscovery is implemented by adapters whose source is a set of files in
// mixed formats. The engine then downloads file by file so one malformed
// file only costs its own snippets.
type FileDiscovery interface {
	ListFiles(ctx context.Context, folderID string) ([]FileRef, error)
	DownloadFile(ctx context.Context, ref FileRef) ([]domain.Snippet, error)
}

// Binding is an adapter with its optional capabilities resolved once.
type Binding struct {
	Adapter Adapter
	Files   FileDiscovery // nil when the adapter has no file discovery
}

// Bind resolves the optional capabilities of a.
func Bind(a Adapter) Binding {
	b := Binding{Adapter: a}
	if fd, ok := a.(FileDiscovery); ok {
		b.Files = fd
	}
	return b
}

// SupportsFiles reports whether the binding can be fetched file by file.
func (b Binding) SupportsFiles() bool { return b.Files != nil }
