package cmd

import (
	"fmt"
	"runtime"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/fulmenhq/gofulmen/crucible"
	"github.com/speclens/speclens/internal/config"
	"github.com/speclens/speclens/internal/observability"
)

var envInfoCmd = &cobra.Command{
	Use:   "envinfo",
	Short: "Display environment information",
	Long:  "Display comprehensive environment, configuration, and version information.",
	Run: func(cmd *cobra.Command, args []string) {
		version := crucible.GetVersion()

		observability.CLILogger.Info("=== Speclens Environment Information ===")
		observability.CLILogger.Info("")

		// Application Info
		identity := GetAppIdentity()
		observability.CLILogger.Info("Application:")
		observability.CLILogger.Info("  Name:       " + identity.BinaryName)
		observability.CLILogger.Info("  Version:    " + versionInfo.Version)
		observability.CLILogger.Info("  Commit:     " + versionInfo.Commit)
		observability.CLILogger.Info("  Built:      " + versionInfo.BuildDate)
		observability.CLILogger.Info("")

		// SSOT Info
		observability.CLILogger.Info("SSOT:")
		observability.CLILogger.Info("  Gofulmen:   "+version.Gofulmen, zap.String("gofulmen_version", version.Gofulmen))
		observability.CLILogger.Info("  Crucible:   "+version.Crucible, zap.String("crucible_version", version.Crucible))
		observability.CLILogger.Info("")

		// Runtime Info
		observability.CLILogger.Info("Runtime:")
		observability.CLILogger.Info("  Go Version: "+runtime.Version(), zap.String("go_version", runtime.Version()))
		observability.CLILogger.Info("  GOOS:       "+runtime.GOOS, zap.String("goos", runtime.GOOS))
		observability.CLILogger.Info("  GOARCH:     "+runtime.GOARCH, zap.String("goarch", runtime.GOARCH))
		observability.CLILogger.Info(fmt.Sprintf("  NumCPU:     %d", runtime.NumCPU()), zap.Int("num_cpu", runtime.NumCPU()))
		observability.CLILogger.Info("")

		cfg, err := config.Load(cmd.Context())
		if err != nil {
			observability.CLILogger.Warn("Config load failed", zap.Error(err))
			return
		}

		// Configuration
		observability.CLILogger.Info("Configuration:")
		observability.CLILogger.Info("  Server Host:    "+cfg.Server.Host, zap.String("host", cfg.Server.Host))
		observability.CLILogger.Info(fmt.Sprintf("  Server Port:    %d", cfg.Server.Port), zap.Int("port", cfg.Server.Port))
		observability.CLILogger.Info("  Log Level:      "+cfg.Logging.Level, zap.String("log_level", cfg.Logging.Level))
		observability.CLILogger.Info("  Log Profile:    "+cfg.Logging.Profile, zap.String("log_profile", cfg.Logging.Profile))
		observability.CLILogger.Info("  DB Driver:      "+cfg.Store.Driver, zap.String("db_driver", cfg.Store.Driver))
		if strings.TrimSpace(cfg.Store.URL) != "" {
			observability.CLILogger.Info("  DB URL:         "+cfg.Store.URL, zap.String("db_url", cfg.Store.URL))
		} else {
			observability.CLILogger.Info("  DB Path:        "+cfg.Store.Path, zap.String("db_path", cfg.Store.Path))
		}
		observability.CLILogger.Info(fmt.Sprintf("  Metrics Port:   %d", cfg.Metrics.Port), zap.Int("metrics_port", cfg.Metrics.Port))
		observability.CLILogger.Info("  Config File:    "+config.DefaultConfigPath(), zap.String("config_file", config.DefaultConfigPath()))
		observability.CLILogger.Info("")

		// URL Checking Configuration
		observability.CLILogger.Info("Check:")
		observability.CLILogger.Info(fmt.Sprintf("  Workers:        %d", cfg.Check.Workers), zap.Int("check_workers", cfg.Check.Workers))
		observability.CLILogger.Info(fmt.Sprintf("  Batch Size:     %d (min %d)", cfg.Check.BatchSize, cfg.Check.BatchSizeMin))
		observability.CLILogger.Info("  Timeout:        " + cfg.Check.Timeout.String())
		observability.CLILogger.Info("  Redirect Pass:  " + cfg.Check.TimeoutRedirect.String())
		observability.CLILogger.Info(fmt.Sprintf("  Use Cache:      %t", cfg.Check.UseCache), zap.Bool("use_cache", cfg.Check.UseCache))
		observability.CLILogger.Info("  Probe Engine:   "+cfg.Probe.Engine, zap.String("probe_engine", cfg.Probe.Engine))
		if cfg.Probe.Engine == "curl" {
			observability.CLILogger.Info("  Curl Path:      " + cfg.Probe.CurlPath)
		}
		if strings.TrimSpace(cfg.OverridesFile) != "" {
			observability.CLILogger.Info("  Overrides File: " + cfg.OverridesFile)
		}
		observability.CLILogger.Info("")

		// Spec Scanning Configuration
		observability.CLILogger.Info("Scan:")
		observability.CLILogger.Info("  Dist Tag:       "+cfg.Scan.DistTag, zap.String("disttag", cfg.Scan.DistTag))
		observability.CLILogger.Info(fmt.Sprintf("  Workers:        %d", cfg.Scan.Workers))
		observability.CLILogger.Info("  RPMSpec:        " + cfg.Scan.RPMSpec)
		observability.CLILogger.Info("  Spectool:       " + cfg.Scan.Spectool)
		observability.CLILogger.Info("")

		// Mirror Configuration
		observability.CLILogger.Info("Mirror:")
		observability.CLILogger.Info("  Base URL:       "+cfg.Mirror.BaseURL, zap.String("mirror_base_url", cfg.Mirror.BaseURL))
		observability.CLILogger.Info("  Version:        " + cfg.Mirror.Version)
		observability.CLILogger.Info("  Section:        " + cfg.Mirror.Section)
		observability.CLILogger.Info(fmt.Sprintf("  Medias:         %v", cfg.Mirror.Medias))
		observability.CLILogger.Info("  FTP Timeout:    " + cfg.Mirror.FTPTimeout.String())
		observability.CLILogger.Info("")

		// Maintainers and Enrichment
		observability.CLILogger.Info("Maintainers:")
		observability.CLILogger.Info("  Roster URL:     " + cfg.Maintainers.URL)
		observability.CLILogger.Info("  Roster TTL:     " + cfg.Maintainers.TTL.String())
		observability.CLILogger.Info(fmt.Sprintf("  RDAP Enrich:    %t", cfg.Enrich.RDAP), zap.Bool("rdap", cfg.Enrich.RDAP))
		observability.CLILogger.Info("")

		observability.CLILogger.Info("=== End Environment Information ===")
	},
}

func init() {
	rootCmd.AddCommand(envInfoCmd)
}
