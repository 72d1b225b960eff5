package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	gfconfig "github.com/fulmenhq/gofulmen/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func findRepoRootForTest(t *testing.T) string {
	cwd, err := os.Getwd()
	require.NoError(t, err)

	dir := cwd
	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}

	t.Fatalf("could not locate repo root containing go.mod from %s", cwd)
	return ""
}

func TestLoad(t *testing.T) {
	ctx := context.Background()

	// Regression test: in CI containers the repo checkout may be outside $HOME.
	// When $HOME is not an ancestor of the repo, pathfinder's default home boundary
	// can prevent repo root discovery unless a CI boundary hint is applied.
	t.Run("CIBoundaryHint", func(t *testing.T) {
		repoRoot := findRepoRootForTest(t)
		t.Setenv("HOME", t.TempDir())
		t.Setenv("CI", "true")
		t.Setenv("FULMEN_WORKSPACE_ROOT", repoRoot)

		cfg, err := Load(ctx)
		require.NoError(t, err)
		require.NotNil(t, cfg)
	})

	// Test basic config loading with defaults
	t.Run("LoadDefaults", func(t *testing.T) {
		t.Setenv("XDG_DATA_HOME", t.TempDir())

		cfg, err := Load(ctx)
		require.NoError(t, err)
		require.NotNil(t, cfg)

		// Verify server defaults
		assert.Equal(t, "127.0.0.1", cfg.Server.Host)
		assert.Equal(t, 8270, cfg.Server.Port)
		assert.Equal(t, 15*time.Second, cfg.Server.ReadTimeout)
		assert.Equal(t, 30*time.Second, cfg.Server.WriteTimeout)
		assert.Equal(t, 120*time.Second, cfg.Server.IdleTimeout)
		assert.Equal(t, 10*time.Second, cfg.Server.ShutdownTimeout)

		// Verify store defaults
		assert.Equal(t, "libsql", cfg.Store.Driver)
		expectedStorePath := filepath.Join(gfconfig.GetAppDataDir("speclens"), "speclens.db")
		assert.Equal(t, expectedStorePath, cfg.Store.Path)
		assert.Equal(t, "", cfg.Store.URL)
		assert.Equal(t, "", cfg.Store.AuthToken)

		// Verify cache defaults
		assert.Equal(t, 24*time.Hour, cfg.Cache.ValidTTL)
		assert.Equal(t, time.Hour, cfg.Cache.BrokenTTL)
		assert.Equal(t, 10*time.Minute, cfg.Cache.ErrorTTL)

		// Verify check defaults
		assert.Equal(t, 5, cfg.Check.Workers)
		assert.Equal(t, 20, cfg.Check.BatchSize)
		assert.Equal(t, 3, cfg.Check.BatchSizeMin)
		assert.Equal(t, 100, cfg.Check.SortThreshold)
		assert.Equal(t, 7*time.Second, cfg.Check.Timeout)
		assert.Equal(t, 25*time.Second, cfg.Check.TimeoutRedirect)
		assert.False(t, cfg.Check.Skip)
		assert.True(t, cfg.Check.UseCache)

		// Verify probe defaults
		assert.Equal(t, "native", cfg.Probe.Engine)
		assert.Equal(t, "curl", cfg.Probe.CurlPath)

		// Verify scan defaults
		assert.Equal(t, "mga", cfg.Scan.DistTag)
		assert.Equal(t, 0, cfg.Scan.Workers)
		assert.Equal(t, "rpmspec", cfg.Scan.RPMSpec)

		// Verify mirror defaults
		assert.Contains(t, cfg.Mirror.BaseURL, "{version}")
		assert.Contains(t, cfg.Mirror.BaseURL, "{media}")
		assert.Equal(t, "cauldron", cfg.Mirror.Version)
		assert.Equal(t, "release", cfg.Mirror.Section)
		assert.Equal(t, []string{"tainted", "nonfree", "core"}, cfg.Mirror.Medias)

		// Verify maintainers defaults
		assert.Equal(t, "https://pkgsubmit.mageia.org/data/maintdb.txt", cfg.Maintainers.URL)
		assert.Equal(t, 12*time.Hour, cfg.Maintainers.TTL)

		// Verify enrichment defaults
		assert.False(t, cfg.Enrich.RDAP)

		// Verify audit defaults
		assert.Equal(t, "", cfg.Audit.Schedule)
		assert.Equal(t, "*", cfg.Audit.Pattern)

		// Verify rate limit defaults
		assert.Equal(t, 0.9, cfg.RateLimitMargin)

		// Verify logging defaults
		assert.Equal(t, "info", cfg.Logging.Level)
		assert.Equal(t, "SIMPLE", cfg.Logging.Profile)

		// Verify metrics defaults
		assert.True(t, cfg.Metrics.Enabled)
		assert.Equal(t, 9090, cfg.Metrics.Port)

		// Verify health defaults
		assert.True(t, cfg.Health.Enabled)

		// Verify debug defaults
		assert.False(t, cfg.Debug.Enabled)
		assert.False(t, cfg.Debug.PprofEnabled)
	})

	// Test runtime overrides
	t.Run("RuntimeOverrides", func(t *testing.T) {
		overrides := map[string]any{
			"server": map[string]any{
				"port": 9000,
				"host": "0.0.0.0",
			},
			"logging": map[string]any{
				"level": "debug",
			},
		}

		cfg, err := Load(ctx, overrides)
		require.NoError(t, err)
		require.NotNil(t, cfg)

		// Verify overrides were applied
		assert.Equal(t, "0.0.0.0", cfg.Server.Host)
		assert.Equal(t, 9000, cfg.Server.Port)
		assert.Equal(t, "debug", cfg.Logging.Level)

		// Verify non-overridden values remain default
		assert.Equal(t, "SIMPLE", cfg.Logging.Profile)
		assert.Equal(t, 9090, cfg.Metrics.Port)
	})

	// Test environment variable overrides
	t.Run("EnvOverrides", func(t *testing.T) {
		// Set environment variables
		require.NoError(t, os.Setenv("SPECLENS_PORT", "3000"))
		require.NoError(t, os.Setenv("SPECLENS_LOG_LEVEL", "warn"))
		require.NoError(t, os.Setenv("SPECLENS_METRICS_ENABLED", "false"))
		require.NoError(t, os.Setenv("SPECLENS_CHECK_WORKERS", "9"))
		require.NoError(t, os.Setenv("SPECLENS_MIRROR_MEDIAS", "core"))
		require.NoError(t, os.Setenv("SPECLENS_RATE_LIMIT_MARGIN", "0.8"))
		defer func() {
			_ = os.Unsetenv("SPECLENS_PORT")
			_ = os.Unsetenv("SPECLENS_LOG_LEVEL")
			_ = os.Unsetenv("SPECLENS_METRICS_ENABLED")
			_ = os.Unsetenv("SPECLENS_CHECK_WORKERS")
			_ = os.Unsetenv("SPECLENS_MIRROR_MEDIAS")
			_ = os.Unsetenv("SPECLENS_RATE_LIMIT_MARGIN")
		}()

		cfg, err := Load(ctx)
		require.NoError(t, err)
		require.NotNil(t, cfg)

		// Verify env overrides were applied
		assert.Equal(t, 3000, cfg.Server.Port)
		assert.Equal(t, "warn", cfg.Logging.Level)
		assert.False(t, cfg.Metrics.Enabled)
		assert.Equal(t, 9, cfg.Check.Workers)
		assert.Equal(t, []string{"core"}, cfg.Mirror.Medias)
		assert.Equal(t, 0.8, cfg.RateLimitMargin)
	})

	// Test config precedence: runtime > env > defaults
	t.Run("ConfigPrecedence", func(t *testing.T) {
		// Set environment variable
		require.NoError(t, os.Setenv("SPECLENS_PORT", "4000"))
		defer func() {
			_ = os.Unsetenv("SPECLENS_PORT")
		}()

		// Runtime override should win
		overrides := map[string]any{
			"server": map[string]any{
				"port": 5000,
			},
		}

		cfg, err := Load(ctx, overrides)
		require.NoError(t, err)
		require.NotNil(t, cfg)

		// Runtime override should take precedence over env var
		assert.Equal(t, 5000, cfg.Server.Port)
	})
}

func TestGetConfig(t *testing.T) {
	ctx := context.Background()

	// Load config first
	cfg, err := Load(ctx)
	require.NoError(t, err)
	require.NotNil(t, cfg)

	// Test GetConfig returns the same instance
	t.Run("GetConfigReturnsLoadedConfig", func(t *testing.T) {
		retrieved := GetConfig()
		assert.NotNil(t, retrieved)
		assert.Equal(t, cfg.Server.Port, retrieved.Server.Port)
		assert.Equal(t, cfg.Logging.Level, retrieved.Logging.Level)
	})
}

func TestEnvSpecs(t *testing.T) {
	// Need to set app identity for env specs
	ctx := context.Background()
	_, err := Load(ctx)
	require.NoError(t, err)

	specs := getEnvSpecs()
	assert.NotEmpty(t, specs)

	// Verify critical env var mappings exist
	envVarNames := make(map[string]bool)
	for _, spec := range specs {
		envVarNames[spec.Name] = true
	}

	// Check required Workhorse Standard env vars
	assert.True(t, envVarNames["SPECLENS_LOG_LEVEL"], "LOG_LEVEL env var must be mapped")
	assert.True(t, envVarNames["SPECLENS_PORT"], "PORT env var must be mapped")
	assert.True(t, envVarNames["SPECLENS_HOST"], "HOST env var must be mapped")
	assert.True(t, envVarNames["SPECLENS_METRICS_PORT"], "METRICS_PORT env var must be mapped")
	assert.True(t, envVarNames["SPECLENS_DB_PATH"], "DB_PATH env var must be mapped")

	// Check domain env vars
	assert.True(t, envVarNames["SPECLENS_CHECK_TIMEOUT"], "CHECK_TIMEOUT env var must be mapped")
	assert.True(t, envVarNames["SPECLENS_PROBE_ENGINE"], "PROBE_ENGINE env var must be mapped")
	assert.True(t, envVarNames["SPECLENS_MIRROR_BASE_URL"], "MIRROR_BASE_URL env var must be mapped")
	assert.True(t, envVarNames["SPECLENS_MAINTAINERS_URL"], "MAINTAINERS_URL env var must be mapped")
	assert.True(t, envVarNames["SPECLENS_AUDIT_SCHEDULE"], "AUDIT_SCHEDULE env var must be mapped")
}

func TestDurationParsing(t *testing.T) {
	ctx := context.Background()

	// Test duration parsing from string env var
	t.Run("DurationFromEnv", func(t *testing.T) {
		require.NoError(t, os.Setenv("SPECLENS_READ_TIMEOUT", "45s"))
		require.NoError(t, os.Setenv("SPECLENS_CHECK_TIMEOUT_REDIRECT", "40s"))
		require.NoError(t, os.Setenv("SPECLENS_SHUTDOWN_TIMEOUT", "5m"))
		defer func() {
			_ = os.Unsetenv("SPECLENS_READ_TIMEOUT")
			_ = os.Unsetenv("SPECLENS_CHECK_TIMEOUT_REDIRECT")
			_ = os.Unsetenv("SPECLENS_SHUTDOWN_TIMEOUT")
		}()

		cfg, err := Load(ctx)
		require.NoError(t, err)
		require.NotNil(t, cfg)

		assert.Equal(t, 45*time.Second, cfg.Server.ReadTimeout)
		assert.Equal(t, 40*time.Second, cfg.Check.TimeoutRedirect)
		assert.Equal(t, 5*time.Minute, cfg.Server.ShutdownTimeout)
	})
}

func TestConfigReload(t *testing.T) {
	ctx := context.Background()

	// Load initial config
	cfg1, err := Load(ctx)
	require.NoError(t, err)
	require.NotNil(t, cfg1)
	initialPort := cfg1.Server.Port

	// Reload with different runtime overrides
	overrides := map[string]any{
		"server": map[string]any{
			"port": initialPort + 1000,
		},
	}

	cfg2, err := Load(ctx, overrides)
	require.NoError(t, err)
	require.NotNil(t, cfg2)

	// Verify reload updated the config
	assert.Equal(t, initialPort+1000, cfg2.Server.Port)

	// Verify GetConfig returns the updated config
	current := GetConfig()
	assert.Equal(t, cfg2.Server.Port, current.Server.Port)
}
