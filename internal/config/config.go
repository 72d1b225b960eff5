package config

import (
	"time"
)

// Config represents the complete application configuration
// following the Fulmen Forge Workhorse Standard three-layer pattern:
// Layer 1: Crucible defaults (config/speclens/v0/speclens-defaults.yaml)
// Layer 2: User overrides (~/.config/speclens/speclens/config.yaml)
// Layer 3: Environment variables and runtime overrides
type Config struct {
	Server      ServerConfig      `mapstructure:"server"`
	Store       StoreConfig       `mapstructure:"store"`
	Cache       CacheConfig       `mapstructure:"cache"`
	Check       CheckConfig       `mapstructure:"check"`
	Probe       ProbeConfig       `mapstructure:"probe"`
	Scan        ScanConfig        `mapstructure:"scan"`
	Mirror      MirrorConfig      `mapstructure:"mirror"`
	Maintainers MaintainersConfig `mapstructure:"maintainers"`
	Enrich      EnrichConfig      `mapstructure:"enrich"`
	Audit       AuditConfig       `mapstructure:"audit"`
	Logging     LoggingConfig     `mapstructure:"logging"`
	Metrics     MetricsConfig     `mapstructure:"metrics"`
	Health      HealthConfig      `mapstructure:"health"`
	Debug       DebugConfig       `mapstructure:"debug"`

	// OverridesFile points to a YAML file of ignore/pin rules applied
	// to checked URLs.
	OverridesFile string `mapstructure:"overrides_file"`

	RateLimits      map[string]int `mapstructure:"rate_limits"`
	RateLimitMargin float64        `mapstructure:"rate_limit_margin"`
}

// ServerConfig contains HTTP server configuration
type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	IdleTimeout     time.Duration `mapstructure:"idle_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// StoreConfig contains database configuration for libsql/Turso
type StoreConfig struct {
	Driver    string `mapstructure:"driver"`
	Path      string `mapstructure:"path"`
	URL       string `mapstructure:"url"`
	AuthToken string `mapstructure:"auth_token"`
}

// CacheConfig contains URL status cache TTL configuration.
type CacheConfig struct {
	ValidTTL  time.Duration `mapstructure:"valid_ttl"`
	BrokenTTL time.Duration `mapstructure:"broken_ttl"`
	ErrorTTL  time.Duration `mapstructure:"error_ttl"`
}

// CheckConfig contains URL checker configuration.
type CheckConfig struct {
	// Workers sizes the network probing pool.
	Workers int `mapstructure:"workers"`

	// BatchSize and BatchSizeMin bound how many URLs one probe batch
	// carries.
	BatchSize    int `mapstructure:"batch_size"`
	BatchSizeMin int `mapstructure:"batch_size_min"`

	// SortThreshold is the URL count above which batches are host-
	// interleaved before probing.
	SortThreshold int `mapstructure:"sort_threshold"`

	// Timeout applies to the no-redirect pass, TimeoutRedirect to the
	// redirect-following recheck passes.
	Timeout         time.Duration `mapstructure:"timeout"`
	TimeoutRedirect time.Duration `mapstructure:"timeout_redirect"`

	// Skip leaves every URL unchecked while scanning and reporting
	// still run.
	Skip bool `mapstructure:"skip"`

	// UseCache consults the store-backed status cache before probing.
	UseCache bool `mapstructure:"use_cache"`
}

// ProbeConfig selects how URLs are probed.
type ProbeConfig struct {
	// Engine is "native" or "curl".
	Engine string `mapstructure:"engine"`

	// CurlPath locates the curl binary for the curl engine.
	CurlPath string `mapstructure:"curl_path"`
}

// ScanConfig contains spec tree scanning configuration.
type ScanConfig struct {
	// DistTag is the distribution tag expected in release fields.
	DistTag string `mapstructure:"disttag"`

	// Workers sizes the spec scanning pool; 0 derives it from the CPU
	// count.
	Workers int `mapstructure:"workers"`

	// RPMSpec and Spectool override the rpm tooling binaries.
	RPMSpec  string `mapstructure:"rpmspec"`
	Spectool string `mapstructure:"spectool"`
}

// MirrorConfig describes where published SRPMs live.
type MirrorConfig struct {
	// BaseURL is a directory URL template with {version}, {media} and
	// {section} placeholders.
	BaseURL string `mapstructure:"base_url"`

	Version string   `mapstructure:"version"`
	Section string   `mapstructure:"section"`
	Medias  []string `mapstructure:"medias"`

	// FTPTimeout bounds FTP dials when the mirror is served over ftp.
	FTPTimeout time.Duration `mapstructure:"ftp_timeout"`
}

// MaintainersConfig contains maintainer roster fetch configuration.
type MaintainersConfig struct {
	URL string        `mapstructure:"url"`
	TTL time.Duration `mapstructure:"ttl"`
}

// EnrichConfig toggles report enrichment passes.
type EnrichConfig struct {
	// RDAP enables registry lookups for BAD_HOST URLs.
	RDAP bool `mapstructure:"rdap"`
}

// AuditConfig configures scheduled audits in serve mode.
type AuditConfig struct {
	// Schedule is a cron expression; empty disables scheduled audits.
	Schedule string `mapstructure:"schedule"`

	// Root is the checkout tree audited on schedule.
	Root string `mapstructure:"root"`

	// Pattern filters package directories under root.
	Pattern string `mapstructure:"pattern"`

	// OutDir receives the HTML reports scheduled audits write.
	OutDir string `mapstructure:"out_dir"`
}

// LoggingConfig contains logging configuration
// Supports progressive logging profiles per Fulmen Forge Workhorse Standard:
// - SIMPLE: Console output only, minimal configuration (CLI tools)
// - STRUCTURED: Structured sinks, correlation IDs (API services)
// - ENTERPRISE: Multiple sinks, middleware, throttling, policy enforcement (production)
type LoggingConfig struct {
	// Level controls the minimum log level
	// Valid values: trace, debug, info, warn, error
	Level string `mapstructure:"level"`

	// Profile selects the logging complexity level
	// Valid values: SIMPLE, STRUCTURED, ENTERPRISE
	// See: gofulmen/docs/crucible-go/standards/observability/logging.md
	Profile string `mapstructure:"profile"`
}

// MetricsConfig contains Prometheus metrics configuration
type MetricsConfig struct {
	// Enabled controls whether metrics are exposed
	Enabled bool `mapstructure:"enabled"`

	// Port is the dedicated metrics endpoint port (Prometheus format)
	// Metrics are also available at the main HTTP port in JSON format
	Port int `mapstructure:"port"`
}

// HealthConfig contains health check configuration
type HealthConfig struct {
	// Enabled controls whether health endpoints are exposed
	Enabled bool `mapstructure:"enabled"`
}

// DebugConfig contains debug and profiling configuration
type DebugConfig struct {
	// Enabled controls whether debug mode is active
	Enabled bool `mapstructure:"enabled"`

	// PprofEnabled controls whether pprof endpoints are exposed
	// WARNING: Only enable in development/staging environments
	PprofEnabled bool `mapstructure:"pprof_enabled"`
}
