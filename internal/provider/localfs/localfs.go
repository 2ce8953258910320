// Package localfs serves snippets from a directory of JSON, YAML and TOML
// files.
package localfs

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/MrSnakeDoc/snip/internal/domain"
	"github.com/MrSnakeDoc/snip/internal/logger"
	"github.com/MrSnakeDoc/snip/internal/provider"
	"github.com/MrSnakeDoc/snip/internal/provider/fileformat"
)

type Adapter struct {
	dir string
	log logger.Logger
	now func() time.Time
}

// New creates an adapter rooted at handle.Dir.
func New(handle domain.LocalFSHandle, log logger.Logger) *Adapter {
	return &Adapter{
		dir: filepath.Clean(handle.Dir),
		log: log.With(logger.String("dir", handle.Dir)),
		now: time.Now,
	}
}

// Constructor plugs the adapter into a provider.Factory.
func Constructor(log logger.Logger) provider.Constructor {
	return func(source domain.ScopedSource) (provider.Adapter, error) {
		h, ok := source.Handle.(domain.LocalFSHandle)
		if !ok {
			return nil, fmt.Errorf("%w: expected localfs handle, got %T", domain.ErrInvalidHandle, source.Handle)
		}
		return New(h, log), nil
	}
}

// Dir returns the watched root.
func (a *Adapter) Dir() string { return a.dir }

func (a *Adapter) Download(ctx context.Context, folderID string) ([]domain.Snippet, error) {
	return provider.DownloadAll(ctx, a, folderID, a.log)
}

func (a *Adapter) Upload(ctx context.Context, snippets []domain.Snippet) error {
	if err := os.MkdirAll(a.dir, 0o755); err != nil {
		return fmt.Errorf("failed to create %s: %w", a.dir, err)
	}
	return provider.ReplaceAll(ctx, a, snippets)
}

func (a *Adapter) Delete(ctx context.Context, ids []string) error {
	return provider.DeleteFromFiles(ctx, a, ids)
}

// IsAuthenticated reports whether the root directory is readable.
func (a *Adapter) IsAuthenticated(context.Context) (bool, error) {
	info, err := os.Stat(a.dir)
	if err != nil {
		return false, err
	}
	if !info.IsDir() {
		return false, fmt.Errorf("%s is not a directory", a.dir)
	}
	return true, nil
}

// ListFiles walks the folder recursively and returns every snippet file,
// sorted by path.
func (a *Adapter) ListFiles(ctx context.Context, folderID string) ([]provider.FileRef, error) {
	root, err := a.resolve(folderID)
	if err != nil {
		return nil, err
	}

	var refs []provider.FileRef
	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if d.IsDir() {
			if path != root && strings.HasPrefix(d.Name(), ".") {
				return filepath.SkipDir
			}
			return nil
		}
		if !fileformat.Supported(d.Name()) {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(a.dir, path)
		if err != nil {
			return err
		}
		refs = append(refs, provider.FileRef{
			ID:        filepath.ToSlash(rel),
			Name:      d.Name(),
			Folder:    filepath.ToSlash(filepath.Dir(rel)),
			Size:      info.Size(),
			UpdatedAt: info.ModTime(),
		})
		return nil
	})
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", root, err)
	}
	return refs, nil
}

func (a *Adapter) DownloadFile(_ context.Context, ref provider.FileRef) ([]domain.Snippet, error) {
	path, err := a.resolve(ref.ID)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", ref.ID, err)
	}

	snippets, repairs, err := fileformat.ParseFile(ref.Name, data, a.now())
	if err != nil {
		return nil, err
	}
	for _, r := range repairs {
		a.log.Warn("repaired snippet timestamp",
			logger.String("file", ref.ID),
			logger.String("snippet", r.SnippetID),
			logger.String("field", r.Field),
			logger.String("raw", r.Raw))
	}
	for i := range snippets {
		if snippets[i].SourceFolder == "" && ref.Folder != "." {
			snippets[i].SourceFolder = ref.Folder
		}
	}
	return snippets, nil
}

// ManagedRef is the snippets.json file at the root.
func (a *Adapter) ManagedRef() provider.FileRef {
	return provider.FileRef{ID: fileformat.ManagedFile, Name: fileformat.ManagedFile, Folder: "."}
}

// WriteFile replaces ref atomically through a temp file in the same
// directory.
func (a *Adapter) WriteFile(_ context.Context, ref provider.FileRef, data []byte) error {
	path, err := a.resolve(ref.ID)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer func() { _ = os.Remove(tmpName) }()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmpName, path)
}

// resolve maps a slash separated id below the root to a path, refusing
// anything that escapes it.
func (a *Adapter) resolve(id string) (string, error) {
	if id == "" {
		return a.dir, nil
	}
	path := filepath.Join(a.dir, filepath.FromSlash(id))
	rel, err := filepath.Rel(a.dir, path)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("path %q escapes %s", id, a.dir)
	}
	return path, nil
}

var (
	_ provider.Adapter    = (*Adapter)(nil)
	_ provider.FileWriter = (*Adapter)(nil)
)
