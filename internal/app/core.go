package app

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"

	"github.com/MrSnakeDoc/snip/internal/config"
	"github.com/MrSnakeDoc/snip/internal/domain"
	"github.com/MrSnakeDoc/snip/internal/engine"
	"github.com/MrSnakeDoc/snip/internal/events"
	"github.com/MrSnakeDoc/snip/internal/index"
	"github.com/MrSnakeDoc/snip/internal/logger"
	"github.com/MrSnakeDoc/snip/internal/provider"
	"github.com/MrSnakeDoc/snip/internal/provider/localfs"
	memprovider "github.com/MrSnakeDoc/snip/internal/provider/memory"
	"github.com/MrSnakeDoc/snip/internal/provider/postgres"
	"github.com/MrSnakeDoc/snip/internal/provider/s3"
	"github.com/MrSnakeDoc/snip/internal/redis"
	"github.com/MrSnakeDoc/snip/internal/registry"
	"github.com/MrSnakeDoc/snip/internal/resolver"
	"github.com/MrSnakeDoc/snip/internal/sources"
	memstore "github.com/MrSnakeDoc/snip/internal/store/memory"
	redisstore "github.com/MrSnakeDoc/snip/internal/store/redis"
	"github.com/MrSnakeDoc/snip/internal/utils"
)

// Store is everything the local cache backs: the merged set, the source
// registry and the usage counters.
type Store interface {
	GetSnippets(ctx context.Context) ([]domain.Snippet, error)
	SetSnippets(ctx context.Context, snippets []domain.Snippet) error
	LoadSources(ctx context.Context) ([]domain.ScopedSource, error)
	SaveSources(ctx context.Context, sources []domain.ScopedSource) error
	IncrementUsage(ctx context.Context, trigger string) error
	GetUsageStats(ctx context.Context) (map[string]int64, error)
	PruneUsage(ctx context.Context, keep []string) (int, error)
	Ping(ctx context.Context) error
}

// Core is the wired sync stack without any serving loop. The server and
// the one-shot CLI commands share it.
type Core struct {
	Config   *config.Config
	Logger   logger.Logger
	Store    Store
	Registry *registry.Registry
	Pool     *provider.Pool
	Index    *index.Index
	Events   *events.Hub
	Engine   *engine.Engine
	Resolver *resolver.Resolver

	closers utils.Closers
}

// NewCore connects the store, loads the registry, seeds it from the sources
// file and binds the providers. Only an unreachable store is fatal.
func NewCore(ctx context.Context, cfg *config.Config, log logger.Logger) (*Core, error) {
	c := &Core{Config: cfg, Logger: log}

	store, err := c.openStore(ctx)
	if err != nil {
		return nil, err
	}
	c.Store = store

	c.Registry = registry.New(store, log.Named("registry"))
	if err := c.Registry.Load(ctx); err != nil {
		log.Warn("failed to load persisted sources, starting empty", logger.Error(err))
	}
	c.seedSources(ctx)

	factory := c.buildFactory(ctx)
	pool, err := provider.NewPool(factory, cfg.AdapterCacheSize, log.Named("pool"))
	if err != nil {
		_ = c.Close()
		return nil, fmt.Errorf("failed to create adapter pool: %w", err)
	}
	c.Pool = pool
	c.Registry.OnInvalidate(pool.Invalidate)

	c.Index = index.New()
	c.Events = events.NewHub(32)
	c.Engine = engine.New(
		engine.Config{Priority: cfg.ScopePriority, FetchTimeout: cfg.FetchTimeout},
		c.Registry,
		pool,
		store,
		c.Index,
		c.Events,
		log.Named("engine"),
	)
	c.Resolver = resolver.New(
		resolver.WithMaxDepth(cfg.MaxExpansionDepth),
		resolver.WithMaxExpansions(cfg.MaxExpansions),
	)

	log.Info("core initialized",
		logger.String("store", cfg.Store),
		logger.Int("sources", len(c.Registry.List())),
		logger.Strings("providers", kindNames(factory.Kinds())),
		logger.String("priority", cfg.ScopePriority.String()))
	return c, nil
}

func (c *Core) openStore(ctx context.Context) (Store, error) {
	if c.Config.Store == config.StoreMemory {
		c.Logger.Warn("using in-memory store, nothing survives a restart")
		return memstore.New(), nil
	}

	cfg := c.Config
	c.Logger.Infof("Connecting to Redis at %s", cfg.RedisAddr)
	client, err := redis.New(ctx, redis.ConnectOptions{
		Addr:           cfg.RedisAddr,
		User:           cfg.RedisUser,
		Password:       cfg.RedisPassword,
		RedisDB:        cfg.RedisDB,
		DialTimeout:    cfg.RedisDT,
		ReadTimeout:    cfg.RedisRT,
		WriteTimeout:   cfg.RedisWT,
		PoolSize:       cfg.RedisPoolSize,
		ConnectTimeout: cfg.RedisConnectTimeout,
		RetryInterval:  cfg.RedisRetryInterval,
		MaxWait:        cfg.RedisMaxWait,
		PingTimeout:    cfg.RedisPingTimeout,
		WarnThreshold:  cfg.RedisWarnThreshold,
	}, c.Logger)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	c.closers.Add("redis", client)
	c.Logger.Info("Redis initialized successfully")
	return redisstore.NewStore(client, c.Logger.Named("store")), nil
}

// seedSources adds every valid entry of the sources file. Entries already
// registered are rebound to the file's handle.
func (c *Core) seedSources(ctx context.Context) {
	path := c.Config.SourcesFile
	if path == "" {
		return
	}
	file, err := sources.NewLoader(path).Load()
	if err != nil {
		c.Logger.Warn("failed to read sources file", logger.String("file", path), logger.Error(err))
		return
	}
	mapped, err := sources.Map(file)
	if err != nil {
		c.Logger.Warn("skipped invalid sources", logger.String("file", path), logger.Error(err))
	}
	for _, src := range mapped {
		if err := c.Registry.Add(ctx, src); err != nil {
			c.Logger.Warn("failed to register seeded source",
				logger.String("source", src.Key().String()),
				logger.Error(err))
		}
	}
	c.Logger.Info("sources seeded", logger.String("file", path), logger.Int("count", len(mapped)))
}

// buildFactory registers every provider kind. Kinds whose backend is not
// configured still register, so their sources fail with ErrUnavailable.
func (c *Core) buildFactory(ctx context.Context) *provider.Factory {
	cfg := c.Config
	log := c.Logger.Named("provider")

	f := provider.NewFactory()
	f.Register(domain.ProviderLocalFS, localfs.Constructor(log))
	f.Register(domain.ProviderMemory, memprovider.Constructor(memprovider.NewBackend()))

	s3Config := s3.Config{
		Endpoint:  cfg.S3Endpoint,
		Region:    cfg.S3Region,
		AccessKey: cfg.S3AccessKey,
		SecretKey: cfg.S3SecretKey,
		UseSSL:    cfg.S3UseSSL,
	}
	s3Client, err := openS3(s3Config)
	if err != nil {
		log.Warn("s3 provider unavailable", logger.Error(err))
	}
	f.Register(domain.ProviderS3, s3.Constructor(s3Client, cfg.S3Region, log))

	db, err := openPostgres(ctx, cfg.PGDSN)
	if err != nil {
		log.Warn("postgres provider unavailable", logger.Error(err))
	}
	if db != nil {
		c.closers.Add("postgres", db)
	}
	f.Register(domain.ProviderPostgres, postgres.Constructor(db, log))

	return f
}

// Close releases the store connection and provider backends.
func (c *Core) Close() error {
	return c.closers.Close()
}

// openS3 returns a nil client when no endpoint is configured.
func openS3(cfg s3.Config) (*minio.Client, error) {
	if strings.TrimSpace(cfg.Endpoint) == "" {
		return nil, nil
	}
	return s3.NewClient(cfg)
}

// openPostgres returns a nil handle when no DSN is configured.
func openPostgres(ctx context.Context, dsn string) (*sql.DB, error) {
	if strings.TrimSpace(dsn) == "" {
		return nil, nil
	}
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	return postgres.Open(ctx, dsn)
}

func kindNames(kinds []domain.ProviderKind) []string {
	out := make([]string, len(kinds))
	for i, k := range kinds {
		out[i] = string(k)
	}
	return out
}
