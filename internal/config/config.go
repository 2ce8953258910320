package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/MrSnakeDoc/snip/internal/domain"
)

// Store backends for the merged snippet cache and the source registry.
const (
	StoreRedis  = "redis"
	StoreMemory = "memory"
)

type Config struct {
	ListenPort      string        // ex: ":8080"
	ShutdownTimeout time.Duration // ex: 5s
	RequestTimeout  time.Duration // per-request timeout of non-streaming routes (ex: 30s)

	LogLevel  string // "debug" | "info" | "warn" | "error"
	PrettyLog bool   // true => zap dev (color), false => zap prod (JSON)

	Store string // "redis" | "memory"

	// Sync
	SyncInterval       time.Duration        // interval between full sync cycles (default: 5m)
	FetchTimeout       time.Duration        // per-source download timeout (default: 15s)
	ScopePriority      domain.ScopePriority // highest first, from SNIP_SCOPE_PRIORITY
	MaxExpansionDepth  int                  // resolver recursion bound (default: 10)
	MaxExpansions      int                  // references replaced per expansion (default: 1000)
	AdapterCacheSize   int                  // bound adapters kept by the provider pool
	SourcesFile        string               // optional YAML file seeding the registry at startup
	WatchLocal         bool                 // watch localfs sources and resync on change
	WatchDebounce      time.Duration        // quiet period before a watch event triggers a sync
	LoadAttempts       int                  // cache warm-up attempts at startup
	LoadDelay          time.Duration        // initial delay between warm-up attempts
	UsagePruneInterval time.Duration        // interval to prune usage counters of removed triggers

	// Redis
	RedisAddr             string        // ex: "localhost:6379"
	RedisUser             string        // optional
	RedisPassword         string        // optional
	RedisPasswordRequired bool          // true => require password, false => allow empty password
	RedisDB               int           // Redis DB number
	RedisDT               time.Duration // Redis dial timeout (ex: 5s)
	RedisRT               time.Duration // Redis read timeout (ex: 3s)
	RedisWT               time.Duration // Redis write timeout (ex: 3s)
	RedisMaxWait          time.Duration // max wait between retries (ex: 10s)
	RedisPingTimeout      time.Duration // timeout for each ping attempt (ex: 5s)
	RedisPoolSize         int           // Redis connection pool size
	RedisConnectTimeout   time.Duration // Total time to retry connecting (ex: 30s)
	RedisRetryInterval    time.Duration // Initial wait between retries (ex: 2s, grows exponentially)
	RedisWarnThreshold    int           // warn after this many attempts

	// S3 provider (empty endpoint => s3 sources unavailable)
	S3Endpoint  string
	S3Region    string
	S3AccessKey string
	S3SecretKey string
	S3UseSSL    bool

	// Postgres provider (empty DSN => postgres sources unavailable)
	PGDSN string

	AllowedCIDRS []string // optional, restrict mutating routes to specific IPs/CIDRs
	TrustProxy   bool     // true => trust X-Forwarded-For headers (e.g. cloudflared)
}

func Load() *Config {
	// A missing .env is the normal case in containers.
	_ = godotenv.Load()

	cfg := &Config{
		// Server settings
		ListenPort:      getenv("SNIP_LISTEN_PORT", ":8080"),
		ShutdownTimeout: mustDuration("SNIP_SHUTDOWN_TIMEOUT", 5*time.Second),
		RequestTimeout:  mustDuration("SNIP_REQUEST_TIMEOUT", 30*time.Second),

		// Logging
		LogLevel:  getenv("SNIP_LOG_LEVEL", "info"),
		PrettyLog: mustBool("SNIP_PRETTY_LOG", true),

		Store: strings.ToLower(getenv("SNIP_STORE", StoreRedis)),

		// Sync
		SyncInterval:       mustDuration("SNIP_SYNC_INTERVAL", 5*time.Minute),
		FetchTimeout:       mustDuration("SNIP_FETCH_TIMEOUT", 15*time.Second),
		ScopePriority:      mustScopePriority("SNIP_SCOPE_PRIORITY", domain.PersonalFirst),
		MaxExpansionDepth:  getenvInt("SNIP_MAX_EXPANSION_DEPTH", 10),
		MaxExpansions:      getenvInt("SNIP_MAX_EXPANSIONS", 1000),
		AdapterCacheSize:   getenvInt("SNIP_ADAPTER_CACHE_SIZE", 64),
		SourcesFile:        getenv("SNIP_SOURCES_FILE", ""), // Optional, empty = registry only
		WatchLocal:         mustBool("SNIP_WATCH_LOCAL", true),
		WatchDebounce:      mustDuration("SNIP_WATCH_DEBOUNCE", 500*time.Millisecond),
		LoadAttempts:       getenvInt("SNIP_LOAD_ATTEMPTS", 3),
		LoadDelay:          mustDuration("SNIP_LOAD_DELAY", time.Second),
		UsagePruneInterval: mustDuration("SNIP_USAGE_PRUNE_INTERVAL", 24*time.Hour),

		// S3
		S3Endpoint:  getenv("SNIP_S3_ENDPOINT", ""),
		S3Region:    getenv("SNIP_S3_REGION", ""),
		S3AccessKey: getenv("SNIP_S3_ACCESS_KEY", ""),
		S3SecretKey: getenv("SNIP_S3_SECRET_KEY", ""),
		S3UseSSL:    mustBool("SNIP_S3_USE_SSL", true),

		// Postgres
		PGDSN: getenv("SNIP_PG_DSN", ""),

		// Access restrictions
		AllowedCIDRS: parseAllowedIPs(getenv("SNIP_ALLOWED_CIDRS", "")),
		TrustProxy:   mustBool("SNIP_TRUST_PROXY", true),
	}

	switch cfg.Store {
	case StoreRedis:
		loadRedis(cfg)
	case StoreMemory:
	default:
		panic(fmt.Sprintf("❌ FATAL: SNIP_STORE must be %q or %q, got %q", StoreRedis, StoreMemory, cfg.Store))
	}

	if cfg.MaxExpansionDepth < 1 {
		panic(fmt.Sprintf("❌ FATAL: SNIP_MAX_EXPANSION_DEPTH must be >= 1, got %d", cfg.MaxExpansionDepth))
	}
	if cfg.MaxExpansions < 1 {
		panic(fmt.Sprintf("❌ FATAL: SNIP_MAX_EXPANSIONS must be >= 1, got %d", cfg.MaxExpansions))
	}
	if cfg.LoadAttempts < 1 {
		cfg.LoadAttempts = 1
	}

	// Log config only in debug mode with redacted sensitive fields
	if cfg.LogLevel == "debug" {
		cfgCopy := *cfg
		cfgCopy.RedisPassword = redact(cfg.RedisPassword)
		cfgCopy.S3SecretKey = redact(cfg.S3SecretKey)
		cfgCopy.PGDSN = redact(cfg.PGDSN)
		log.Printf("[DEBUG] cfg: %+v\n", cfgCopy)
	}

	return cfg
}

func loadRedis(cfg *Config) {
	cfg.RedisAddr = requireEnv("SNIP_REDIS_ADDR")
	cfg.RedisUser = getenv("SNIP_REDIS_USERNAME", "default")
	cfg.RedisPasswordRequired = mustBool("SNIP_REDIS_PASSWORD_REQUIRED", true)
	cfg.RedisPassword = getenv("SNIP_REDIS_PASSWORD", "")
	cfg.RedisDB = getenvInt("SNIP_REDIS_DB", 0)
	cfg.RedisDT = mustDuration("SNIP_REDIS_DIAL_TIMEOUT", 5*time.Second)
	cfg.RedisRT = mustDuration("SNIP_REDIS_READ_TIMEOUT", 3*time.Second)
	cfg.RedisWT = mustDuration("SNIP_REDIS_WRITE_TIMEOUT", 3*time.Second)
	cfg.RedisMaxWait = mustDuration("SNIP_REDIS_MAX_WAIT", 10*time.Second)
	cfg.RedisPingTimeout = mustDuration("SNIP_REDIS_PING_TIMEOUT", 5*time.Second)
	cfg.RedisPoolSize = getenvInt("SNIP_REDIS_POOL_SIZE", 10)
	cfg.RedisConnectTimeout = mustDuration("SNIP_REDIS_CONNECT_TIMEOUT", 30*time.Second)
	cfg.RedisRetryInterval = mustDuration("SNIP_REDIS_RETRY_INTERVAL", 2*time.Second)
	cfg.RedisWarnThreshold = getenvInt("SNIP_REDIS_WARN_THRESHOLD", 3)

	// Validate Redis password configuration
	if cfg.RedisPasswordRequired && cfg.RedisPassword == "" {
		panic("❌ FATAL: SNIP_REDIS_PASSWORD is required when SNIP_REDIS_PASSWORD_REQUIRED=true")
	}
}

func redact(v string) string {
	if v == "" {
		return ""
	}
	return "***REDACTED***"
}

// helpers
func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func requireEnv(key string) string {
	v := os.Getenv(key)
	if v == "" {
		panic(fmt.Sprintf("❌ FATAL: Required environment variable %s is not set", key))
	}
	return v
}

func getenvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return def
}

func mustBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		b, err := strconv.ParseBool(v)
		if err == nil {
			return b
		}
	}
	return def
}

func mustDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

// mustScopePriority accepts a preset name or a comma list, highest first.
// Unlike the other helpers an invalid value panics instead of falling back.
func mustScopePriority(key string, def domain.ScopePriority) domain.ScopePriority {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "personal-first":
		return domain.PersonalFirst
	case "org-first":
		return domain.OrgFirst
	}
	p, err := domain.ParseScopePriority(v)
	if err != nil {
		panic(fmt.Sprintf("❌ FATAL: Invalid scope priority for %s: %v", key, err))
	}
	return p
}

func parseAllowedIPs(allowed string) []string {
	if allowed == "" {
		return nil
	}
	ips := make([]string, 0, 4)
	for _, ip := range splitAndTrim(allowed) {
		if ip != "" {
			ips = append(ips, ip)
		}
	}
	return ips
}

func splitAndTrim(s string) []string {
	if s == "" {
		return nil
	}
	raw := strings.Split(s, ",")
	parts := make([]string, 0, len(raw))
	for _, part := range raw {
		trimmed := strings.TrimSpace(part)
		// Remove surrounding quotes if present
		trimmed = strings.Trim(trimmed, `"'`)
		if trimmed != "" {
			parts = append(parts, trimmed)
		}
	}
	return parts
}
