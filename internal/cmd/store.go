package cmd

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/speclens/speclens/internal/config"
	"github.com/speclens/speclens/internal/core/store"
	"github.com/speclens/speclens/internal/observability"
)

func openStore(ctx context.Context) (*store.Store, error) {
	cfg, err := config.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	db, err := store.Open(ctx, cfg.Store)
	if err != nil {
		return nil, err
	}

	if err := db.Migrate(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}

	return db, nil
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return "unknown"
	}
	return t.UTC().Format(time.RFC3339)
}

// getDBPath returns the resolved database path from config
func getDBPath() string {
	cfg := config.GetConfig()
	if cfg == nil {
		return config.DefaultStorePath()
	}
	if cfg.Store.URL != "" {
		return cfg.Store.URL
	}
	dbPath := cfg.Store.Path
	if dbPath == "" {
		dbPath = config.DefaultStorePath()
	}
	if absPath, err := filepath.Abs(dbPath); err == nil {
		return absPath
	}
	return dbPath
}

var storeCmd = &cobra.Command{
	Use:   "store",
	Short: "Manage the local database",
}

var storeInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Create the database and apply migrations",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openStore(cmd.Context())
		if err != nil {
			return err
		}
		defer db.Close() // nolint:errcheck // best-effort cleanup; errors logged internally

		observability.CLILogger.Info("Store initialized",
			zap.String("driver", db.Driver()),
			zap.String("database", getDBPath()),
		)

		fmt.Printf("Database ready: %s\n", getDBPath())
		return nil
	},
}

var storePathCmd = &cobra.Command{
	Use:   "path",
	Short: "Print the resolved database path",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println(getDBPath())
	},
}

var storeStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show row counts for the stored data",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openStore(cmd.Context())
		if err != nil {
			return err
		}
		defer db.Close() // nolint:errcheck // best-effort cleanup; errors logged internally

		ctx := cmd.Context()

		total, live, err := db.CountCached(ctx)
		if err != nil {
			return err
		}
		rosterCount, err := db.CountRoster(ctx)
		if err != nil {
			return err
		}
		rosterAge := "never fetched"
		if roster, fetchedAt, err := db.GetRoster(ctx); err == nil && len(roster) > 0 {
			rosterAge = formatTime(fetchedAt)
		}
		checkRuns, auditRuns, err := db.CountRuns(ctx)
		if err != nil {
			return err
		}
		rateLimits, err := db.CountRateLimits(ctx, store.RateLimitQuery{All: true})
		if err != nil {
			return err
		}

		fmt.Printf("Database:        %s (%s)\n", getDBPath(), db.Driver())
		fmt.Printf("Cached statuses: %d (%d live)\n", total, live)
		fmt.Printf("Roster packages: %d (fetched %s)\n", rosterCount, rosterAge)
		fmt.Printf("Check runs:      %d\n", checkRuns)
		fmt.Printf("Audit runs:      %d\n", auditRuns)
		fmt.Printf("Rate limits:     %d\n", rateLimits)
		return nil
	},
}

var storePruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Drop expired entries from the status cache",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openStore(cmd.Context())
		if err != nil {
			return err
		}
		defer db.Close() // nolint:errcheck // best-effort cleanup; errors logged internally

		pruned, err := db.PruneExpired(cmd.Context())
		if err != nil {
			return err
		}

		observability.CLILogger.Info("Cache pruned", zap.Int64("pruned", pruned))
		fmt.Printf("Pruned %d expired cache entries\n", pruned)
		return nil
	},
}

func init() {
	storeCmd.AddCommand(storeInitCmd)
	storeCmd.AddCommand(storePathCmd)
	storeCmd.AddCommand(storeStatsCmd)
	storeCmd.AddCommand(storePruneCmd)
	rootCmd.AddCommand(storeCmd)
}
