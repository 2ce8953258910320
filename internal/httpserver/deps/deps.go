package deps

import (
	"context"
	"time"

	"github.com/MrSnakeDoc/snip/internal/engine"
	"github.com/MrSnakeDoc/snip/internal/events"
	"github.com/MrSnakeDoc/snip/internal/index"
	"github.com/MrSnakeDoc/snip/internal/logger"
	"github.com/MrSnakeDoc/snip/internal/registry"
	"github.com/MrSnakeDoc/snip/internal/resolver"
	"github.com/MrSnakeDoc/snip/internal/scheduler"
)

// Store is the part of the local cache the HTTP layer touches directly.
type Store interface {
	Ping(ctx context.Context) error
	IncrementUsage(ctx context.Context, trigger string) error
	GetUsageStats(ctx context.Context) (map[string]int64, error)
}

type Deps struct {
	Logger       logger.Logger
	StartTime    time.Time
	Version      string
	Commit       string
	BuildDate    string
	GoVersion    string
	TimeNow      func() time.Time    // for testing, defaults to time.Now
	AllowedCIDRS []string            // IPs allowed to call mutating and infra endpoints
	TrustProxy   bool                // true if running behind a trusted reverse proxy (e.g., cloudflared)
	StoreKind    string              // "redis" | "memory", reported by /infra
	Store        Store               // Local cache (snippets, sources, usage)
	Engine       *engine.Engine      // Sync and merge engine
	Registry     *registry.Registry  // Configured sources
	Index        *index.Index        // Trigger index over the merged set
	Resolver     *resolver.Resolver  // Dependency and variable expansion
	Sync         *scheduler.SyncLoop // Owns the cycle lock; every mutation runs through it
	Events       *events.Hub         // Sync notifications for the websocket stream
}

// Now returns TimeNow(), falling back to time.Now.
func (d Deps) Now() time.Time {
	if d.TimeNow != nil {
		return d.TimeNow()
	}
	return time.Now()
}
