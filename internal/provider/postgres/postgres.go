// Package postgres serves the snippets of a shared collection stored in a
// Postgres table, one JSONB row per snippet.
package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/MrSnakeDoc/snip/internal/domain"
	"github.com/MrSnakeDoc/snip/internal/logger"
	"github.com/MrSnakeDoc/snip/internal/provider"
	"github.com/MrSnakeDoc/snip/internal/utils"
)

const schema = `
CREATE TABLE IF NOT EXISTS snip_snippets (
  collection TEXT NOT NULL,
  id TEXT NOT NULL,
  position INTEGER NOT NULL DEFAULT 0,
  payload JSONB NOT NULL,
  updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
  PRIMARY KEY (collection, id)
);
CREATE INDEX IF NOT EXISTS idx_snip_snippets_collection ON snip_snippets (collection, position);
`

// Open connects to dsn through the pgx stdlib driver.
func Open(ctx context.Context, dsn string) (*sql.DB, error) {
	db, err := sql.Open("pgx", strings.TrimSpace(dsn))
	if err != nil {
		return nil, fmt.Errorf("failed to open db: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping db: %w", err)
	}
	return db, nil
}

// Schema creates the snippet table once per database handle. Only a
// successful run is remembered; a failed one is retried by the next caller.
type Schema struct {
	db   *sql.DB
	mu   sync.Mutex
	done bool
}

func NewSchema(db *sql.DB) *Schema {
	return &Schema{db: db}
}

func (s *Schema) ensure(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.done {
		return nil
	}
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return err
	}
	s.done = true
	return nil
}

type Adapter struct {
	db         *sql.DB
	schema     *Schema
	collection string
	log        logger.Logger
	now        func() time.Time
}

func New(db *sql.DB, schema *Schema, handle domain.PostgresHandle, log logger.Logger) *Adapter {
	return &Adapter{
		db:         db,
		schema:     schema,
		collection: strings.TrimSpace(handle.Collection),
		log:        log.With(logger.String("collection", handle.Collection)),
		now:        time.Now,
	}
}

// Constructor plugs the adapter into a provider.Factory. A nil db means no
// DSN was configured.
func Constructor(db *sql.DB, log logger.Logger) provider.Constructor {
	var schema *Schema
	if db != nil {
		schema = NewSchema(db)
	}
	return func(source domain.ScopedSource) (provider.Adapter, error) {
		if db == nil {
			return nil, fmt.Errorf("%w: postgres DSN not configured", provider.ErrUnavailable)
		}
		h, ok := source.Handle.(domain.PostgresHandle)
		if !ok {
			return nil, fmt.Errorf("%w: expected postgres handle, got %T", domain.ErrInvalidHandle, source.Handle)
		}
		return New(db, schema, h, log), nil
	}
}

// Download returns the collection in stored order. folderID filters on the
// snippets' sourceFolder. A row whose payload cannot be decoded is skipped.
func (a *Adapter) Download(ctx context.Context, folderID string) ([]domain.Snippet, error) {
	if err := a.schema.ensure(ctx); err != nil {
		return nil, fmt.Errorf("ensure schema: %w", err)
	}

	rows, err := a.db.QueryContext(ctx, `
SELECT id, payload FROM snip_snippets
WHERE collection = $1
ORDER BY position, id`, a.collection)
	if err != nil {
		return nil, fmt.Errorf("failed to query snippets: %w", err)
	}
	defer utils.Close(rows)

	now := a.now()
	var records []domain.Record
	for rows.Next() {
		var id string
		var payload []byte
		if err := rows.Scan(&id, &payload); err != nil {
			return nil, fmt.Errorf("failed to scan snippet: %w", err)
		}
		var r domain.Record
		if err := json.Unmarshal(payload, &r); err != nil {
			a.log.Warn("skipping undecodable snippet row", logger.String("id", id), logger.Error(err))
			continue
		}
		if r.ID == "" {
			r.ID = id
		}
		if folderID != "" && r.SourceFolder != folderID {
			continue
		}
		records = append(records, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read snippets: %w", err)
	}

	snippets, repairs := domain.FromRecords(records, now)
	for _, r := range repairs {
		a.log.Warn("repaired snippet timestamp",
			logger.String("snippet", r.SnippetID),
			logger.String("field", r.Field))
	}
	return snippets, nil
}

// Upload replaces the collection in one transaction.
func (a *Adapter) Upload(ctx context.Context, snippets []domain.Snippet) error {
	if err := a.schema.ensure(ctx); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}

	tx, err := a.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	ids := make([]string, 0, len(snippets))
	for _, s := range snippets {
		ids = append(ids, s.ID)
	}
	if _, err := tx.ExecContext(ctx, `
DELETE FROM snip_snippets
WHERE collection = $1 AND NOT (id = ANY($2))`, a.collection, ids); err != nil {
		return fmt.Errorf("failed to prune collection: %w", err)
	}

	for i, s := range snippets {
		if s.ID == "" {
			return fmt.Errorf("snippet %q has no id", s.Trigger)
		}
		payload, err := json.Marshal(domain.ToRecord(s))
		if err != nil {
			return fmt.Errorf("failed to encode snippet %s: %w", s.ID, err)
		}
		if _, err := tx.ExecContext(ctx, `
INSERT INTO snip_snippets (collection, id, position, payload, updated_at)
VALUES ($1, $2, $3, $4, now())
ON CONFLICT (collection, id)
DO UPDATE SET position=EXCLUDED.position,
  payload=EXCLUDED.payload,
  updated_at=now()`, a.collection, s.ID, i, payload); err != nil {
			return fmt.Errorf("failed to upsert snippet %s: %w", s.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit: %w", err)
	}
	return nil
}

func (a *Adapter) Delete(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	if err := a.schema.ensure(ctx); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	if _, err := a.db.ExecContext(ctx, `
DELETE FROM snip_snippets
WHERE collection = $1 AND id = ANY($2)`, a.collection, ids); err != nil {
		return fmt.Errorf("failed to delete snippets: %w", err)
	}
	return nil
}

func (a *Adapter) IsAuthenticated(ctx context.Context) (bool, error) {
	if err := a.db.PingContext(ctx); err != nil {
		return false, err
	}
	return true, nil
}

var _ provider.Adapter = (*Adapter)(nil)
