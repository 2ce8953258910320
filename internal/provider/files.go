package provider

import (
	"bytes"
	"context"
	"fmt"

	"github.com/MrSnakeDoc/snip/internal/domain"
	"github.com/MrSnakeDoc/snip/internal/logger"
	"github.com/MrSnakeDoc/snip/internal/provider/fileformat"
)

// FileWriter is a FileDiscovery that can also rewrite one of its files.
// File-backed adapters implement Upload and Delete on top of it.
type FileWriter interface {
	FileDiscovery
	WriteFile(ctx context.Context, ref FileRef, data []byte) error
	// ManagedRef locates the file new snippets are written to.
	ManagedRef() FileRef
}

// FileResult is the outcome of downloading one file.
type FileResult struct {
	Ref      FileRef
	Snippets []domain.Snippet
	Err      error
}

// DownloadFiles fetches every file under folderID one by one. A file that
// fails contributes no snippets; its error is kept in the result. Only a
// listing failure is returned as an error.
func DownloadFiles(ctx context.Context, fd FileDiscovery, folderID string) ([]FileResult, error) {
	refs, err := fd.ListFiles(ctx, folderID)
	if err != nil {
		return nil, fmt.Errorf("failed to list files: %w", err)
	}

	results := make([]FileResult, 0, len(refs))
	for _, ref := range refs {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		snippets, err := fd.DownloadFile(ctx, ref)
		if err != nil {
			results = append(results, FileResult{Ref: ref, Err: err})
			continue
		}
		results = append(results, FileResult{Ref: ref, Snippets: snippets})
	}
	return results, nil
}

// DownloadAll flattens DownloadFiles, logging and skipping failed files.
func DownloadAll(ctx context.Context, fd FileDiscovery, folderID string, log logger.Logger) ([]domain.Snippet, error) {
	results, err := DownloadFiles(ctx, fd, folderID)
	if err != nil {
		return nil, err
	}

	var out []domain.Snippet
	for _, r := range results {
		if r.Err != nil {
			log.Warn("skipping unreadable snippet file",
				logger.String("file", r.Ref.ID),
				logger.Error(r.Err))
			continue
		}
		out = append(out, r.Snippets...)
	}
	return out, nil
}

// ReplaceAll rewrites the files of fw so that together they hold exactly
// snippets. A snippet stays in the file that already holds its id; new ones
// go to the managed file. Unreadable files are left untouched.
func ReplaceAll(ctx context.Context, fw FileWriter, snippets []domain.Snippet) error {
	results, err := DownloadFiles(ctx, fw, "")
	if err != nil {
		return err
	}

	byID := make(map[string]domain.Snippet, len(snippets))
	for _, s := range snippets {
		if s.ID != "" {
			byID[s.ID] = s
		}
	}
	placed := make(map[string]struct{}, len(snippets))

	managed := fw.ManagedRef()
	var managedKeep []domain.Snippet
	managedExists := false

	for _, r := range results {
		if r.Err != nil {
			continue
		}
		var keep []domain.Snippet
		for _, existing := range r.Snippets {
			incoming, ok := byID[existing.ID]
			if !ok {
				continue
			}
			if _, dup := placed[existing.ID]; dup {
				continue
			}
			placed[existing.ID] = struct{}{}
			keep = append(keep, incoming)
		}

		if r.Ref.ID == managed.ID {
			managedExists = true
			managedKeep = keep
			continue
		}
		if err := rewriteIfChanged(ctx, fw, r.Ref, r.Snippets, keep); err != nil {
			return err
		}
	}

	for _, s := range snippets {
		if s.ID != "" {
			if _, done := placed[s.ID]; done {
				continue
			}
			placed[s.ID] = struct{}{}
		}
		managedKeep = append(managedKeep, s)
	}

	if !managedExists && len(managedKeep) == 0 {
		return nil
	}
	return writeSnippets(ctx, fw, managed, managedKeep)
}

// DeleteFromFiles removes ids from whichever files hold them.
func DeleteFromFiles(ctx context.Context, fw FileWriter, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	drop := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		drop[id] = struct{}{}
	}

	results, err := DownloadFiles(ctx, fw, "")
	if err != nil {
		return err
	}
	for _, r := range results {
		if r.Err != nil {
			continue
		}
		keep := make([]domain.Snippet, 0, len(r.Snippets))
		for _, s := range r.Snippets {
			if _, gone := drop[s.ID]; !gone {
				keep = append(keep, s)
			}
		}
		if len(keep) == len(r.Snippets) {
			continue
		}
		if err := writeSnippets(ctx, fw, r.Ref, keep); err != nil {
			return err
		}
	}
	return nil
}

func rewriteIfChanged(ctx context.Context, fw FileWriter, ref FileRef, before, after []domain.Snippet) error {
	old, err := fileformat.EncodeFile(ref.Name, before)
	if err != nil {
		return err
	}
	next, err := fileformat.EncodeFile(ref.Name, after)
	if err != nil {
		return err
	}
	if bytes.Equal(old, next) {
		return nil
	}
	return fw.WriteFile(ctx, ref, next)
}

func writeSnippets(ctx context.Context, fw FileWriter, ref FileRef, snippets []domain.Snippet) error {
	data, err := fileformat.EncodeFile(ref.Name, snippets)
	if err != nil {
		return err
	}
	if err := fw.WriteFile(ctx, ref, data); err != nil {
		return fmt.Errorf("failed to write %s: %w", ref.ID, err)
	}
	return nil
}
