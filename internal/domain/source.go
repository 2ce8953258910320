package domain

import (
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/mitchellh/mapstructure"
)

// ProviderKind identifies the storage backend of a source.
type ProviderKind string

const (
	ProviderLocalFS  ProviderKind = "localfs"
	ProviderS3       ProviderKind = "s3"
	ProviderPostgres ProviderKind = "postgres"
	ProviderMemory   ProviderKind = "memory"
)

var ErrInvalidHandle = errors.New("invalid provider handle")

// ProviderHandle carries the provider specific part of a source. Each
// provider has its own variant; the registry validates it on the way in so
// adapters never have to second-guess their input.
type ProviderHandle interface {
	Kind() ProviderKind
	Validate() error
}

// LocalFSHandle points at a directory of snippet files.
type LocalFSHandle struct {
	Dir string `mapstructure:"dir" json:"dir"`
}

func (LocalFSHandle) Kind() ProviderKind { return ProviderLocalFS }

func (h LocalFSHandle) Validate() error {
	if strings.TrimSpace(h.Dir) == "" {
		return fmt.Errorf("%w: localfs dir is required", ErrInvalidHandle)
	}
	if !filepath.IsAbs(h.Dir) {
		return fmt.Errorf("%w: localfs dir must be absolute, got %q", ErrInvalidHandle, h.Dir)
	}
	return nil
}

// S3Handle points at a bucket and key prefix.
type S3Handle struct {
	Bucket string `mapstructure:"bucket" json:"bucket"`
	Prefix string `mapstructure:"prefix" json:"prefix,omitempty"`
}

func (S3Handle) Kind() ProviderKind { return ProviderS3 }

func (h S3Handle) Validate() error {
	if strings.TrimSpace(h.Bucket) == "" {
		return fmt.Errorf("%w: s3 bucket is required", ErrInvalidHandle)
	}
	return nil
}

// PostgresHandle selects the rows of one shared collection.
type PostgresHandle struct {
	Collection string `mapstructure:"collection" json:"collection"`
}

func (PostgresHandle) Kind() ProviderKind { return ProviderPostgres }

func (h PostgresHandle) Validate() error {
	if strings.TrimSpace(h.Collection) == "" {
		return fmt.Errorf("%w: postgres collection is required", ErrInvalidHandle)
	}
	return nil
}

// MemoryHandle names an in-process bucket.
type MemoryHandle struct {
	Bucket string `mapstructure:"bucket" json:"bucket,omitempty"`
}

func (MemoryHandle) Kind() ProviderKind { return ProviderMemory }

func (MemoryHandle) Validate() error { return nil }

// DecodeHandle builds the variant for kind out of a loosely typed map, e.g.
// one read from JSON or from CLI flags.
func DecodeHandle(kind ProviderKind, raw map[string]any) (ProviderHandle, error) {
	var target ProviderHandle
	switch kind {
	case ProviderLocalFS:
		target = &LocalFSHandle{}
	case ProviderS3:
		target = &S3Handle{}
	case ProviderPostgres:
		target = &PostgresHandle{}
	case ProviderMemory:
		target = &MemoryHandle{}
	default:
		return nil, fmt.Errorf("%w: unknown provider %q", ErrInvalidHandle, kind)
	}

	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:      target,
		TagName:     "mapstructure",
		ErrorUnused: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create handle decoder: %w", err)
	}
	if err := decoder.Decode(raw); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidHandle, err)
	}

	// Return the value, not the pointer, so handles compare by content.
	switch h := target.(type) {
	case *LocalFSHandle:
		return *h, nil
	case *S3Handle:
		return *h, nil
	case *PostgresHandle:
		return *h, nil
	case *MemoryHandle:
		return *h, nil
	}
	return nil, fmt.Errorf("%w: unknown provider %q", ErrInvalidHandle, kind)
}

// SourceKey identifies a source inside the registry.
type SourceKey struct {
	Scope Scope
	Name  string
}

func (k SourceKey) String() string {
	return string(k.Scope) + "/" + k.Name
}

// ScopedSource is one configured place snippets are read from and written to.
type ScopedSource struct {
	Scope       Scope
	Provider    ProviderKind
	Name        string
	DisplayName string
	LastSync    *time.Time
	Handle      ProviderHandle
}

// Key returns the registry key of s.
func (s ScopedSource) Key() SourceKey {
	return SourceKey{Scope: s.Scope, Name: s.Name}
}

// Label returns DisplayName, falling back to Name.
func (s ScopedSource) Label() string {
	if s.DisplayName != "" {
		return s.DisplayName
	}
	return s.Name
}

// Validate checks the invariants the registry enforces on insert.
func (s ScopedSource) Validate() error {
	if !s.Scope.Valid() {
		return fmt.Errorf("unknown scope %q", s.Scope)
	}
	if strings.TrimSpace(s.Name) == "" {
		return fmt.Errorf("source name is required")
	}
	if s.Handle == nil {
		return fmt.Errorf("%w: source %s has no handle", ErrInvalidHandle, s.Key())
	}
	if s.Handle.Kind() != s.Provider {
		return fmt.Errorf("%w: handle kind %q does not match provider %q", ErrInvalidHandle, s.Handle.Kind(), s.Provider)
	}
	return s.Handle.Validate()
}

// Clone returns a copy that shares nothing mutable with s.
func (s ScopedSource) Clone() ScopedSource {
	out := s
	if s.LastSync != nil {
		t := *s.LastSync
		out.LastSync = &t
	}
	return out
}

type sourceJSON struct {
	Scope       Scope          `json:"scope"`
	Provider    ProviderKind   `json:"provider"`
	Name        string         `json:"name"`
	DisplayName string         `json:"displayName,omitempty"`
	LastSync    string         `json:"lastSync,omitempty"`
	Handle      map[string]any `json:"handle"`
}

func (s ScopedSource) MarshalJSON() ([]byte, error) {
	out := sourceJSON{
		Scope:       s.Scope,
		Provider:    s.Provider,
		Name:        s.Name,
		DisplayName: s.DisplayName,
	}
	if s.LastSync != nil {
		out.LastSync = FormatTimestamp(*s.LastSync)
	}
	if s.Handle != nil {
		raw := make(map[string]any)
		if err := mapstructure.Decode(s.Handle, &raw); err != nil {
			return nil, fmt.Errorf("failed to encode handle: %w", err)
		}
		out.Handle = raw
	}
	return json.Marshal(out)
}

func (s *ScopedSource) UnmarshalJSON(data []byte) error {
	var in sourceJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	handle, err := DecodeHandle(in.Provider, in.Handle)
	if err != nil {
		return err
	}
	*s = ScopedSource{
		Scope:       in.Scope,
		Provider:    in.Provider,
		Name:        in.Name,
		DisplayName: in.DisplayName,
		Handle:      handle,
	}
	if in.LastSync != "" {
		if t, err := ParseTimestamp(in.LastSync); err == nil {
			s.LastSync = &t
		}
	}
	return nil
}
