package cmd

import (
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/speclens/speclens/internal/config"
	"github.com/speclens/speclens/internal/core/check"
	"github.com/speclens/speclens/internal/core/probe"
	"github.com/speclens/speclens/internal/core/store"
	"github.com/speclens/speclens/internal/observability"
	"github.com/speclens/speclens/internal/output"
)

var urlsCmd = &cobra.Command{
	Use:   "urls [URL...]",
	Short: "Check a list of URLs",
	Long: `Check URLs given as arguments or read from a file or stdin.

Each URL settles on a status; the table output lists only the broken
ones, JSON carries every status. Runs are recorded in the store.`,
	RunE: runURLs,
}

func init() {
	rootCmd.AddCommand(urlsCmd)

	urlsCmd.Flags().String("urls-file", "", `Read URLs from a file ("-" for stdin)`)
	urlsCmd.Flags().Bool("no-cache", false, "Skip cache lookup and write-back")
	urlsCmd.Flags().Bool("skip-check", false, "Resolve nothing, leave every URL unchecked")
	urlsCmd.Flags().Int("workers", 0, "Probe worker pool size (0 uses config)")
	urlsCmd.Flags().Int("batch-size", 0, "Target URL batch size (0 uses config)")
	urlsCmd.Flags().String("engine", "", "Probe engine: native or curl (default from config)")
	urlsCmd.Flags().String("output", "table", "Output format: table, json, markdown")
	urlsCmd.Flags().String("out", "", "Write output to a file (default stdout)")
	urlsCmd.Flags().String("out-dir", "", "Write output to a directory")
}

func runURLs(cmd *cobra.Command, args []string) error {
	urlsFile, err := cmd.Flags().GetString("urls-file")
	if err != nil {
		return err
	}
	noCache, err := cmd.Flags().GetBool("no-cache")
	if err != nil {
		return err
	}
	skipCheck, err := cmd.Flags().GetBool("skip-check")
	if err != nil {
		return err
	}
	workers, err := cmd.Flags().GetInt("workers")
	if err != nil {
		return err
	}
	batchSize, err := cmd.Flags().GetInt("batch-size")
	if err != nil {
		return err
	}
	engine, err := cmd.Flags().GetString("engine")
	if err != nil {
		return err
	}
	formatValue, err := cmd.Flags().GetString("output")
	if err != nil {
		return err
	}
	format, err := output.ParseFormat(formatValue)
	if err != nil {
		return err
	}
	if format == output.FormatHTML {
		return fmt.Errorf("unsupported output format: %s", format)
	}

	urls, err := resolveURLs(args, urlsFile)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	startedAt := time.Now()
	db, err := openStore(ctx)
	if err != nil {
		return err
	}
	defer db.Close() // nolint:errcheck // best-effort cleanup; errors logged internally

	cfg := config.GetConfig()
	if cfg == nil {
		return errors.New("config not loaded")
	}

	checker, err := buildChecker(cfg, db, engine, !noCache)
	if err != nil {
		return err
	}
	if skipCheck {
		checker.SkipCheck = true
	}
	if workers > 0 {
		checker.Policy.Workers = workers
	}
	if batchSize > 0 {
		checker.Policy.TargetSize = batchSize
	}

	run, checkErr := checker.CheckURLs(ctx, urls)
	if run != nil {
		if err := db.SaveCheckRun(ctx, run); err != nil {
			observability.CLILogger.Warn("saving check run failed",
				zap.String("run", run.ID), zap.Error(err))
		}
	}
	if checkErr != nil {
		return checkErr
	}

	outPath, outDir, err := resolveOutputTargets(cmd)
	if err != nil {
		return err
	}
	if outDir != "" {
		outDir, err = ensureOutDir(outDir)
		if err != nil {
			return err
		}
		outPath = filepath.Join(outDir, fmt.Sprintf("urls.%s", outputExtension(format)))
	}
	sink, err := openSink(outPath)
	if err != nil {
		return err
	}
	defer func() { _ = sink.close() }()

	rendered, err := output.FormatCheckRun(format, run)
	if err != nil {
		return err
	}
	if rendered != "" {
		if _, err := fmt.Fprintln(sink.writer, rendered); err != nil {
			return err
		}
	}

	if format != output.FormatJSON {
		logThroughput(run.Total, startedAt)
	}
	return nil
}

func logThroughput(count int, startedAt time.Time) {
	if count <= 0 {
		return
	}
	elapsed := time.Since(startedAt)
	if elapsed <= 0 {
		return
	}
	rate := float64(count) / elapsed.Seconds()
	observability.CLILogger.Info(
		"Check throughput",
		zap.Int("urls", count),
		zap.Duration("elapsed", elapsed),
		zap.Float64("rate_per_sec", rate),
	)
}

// buildChecker assembles the checking pipeline from config. An empty
// engine means the configured probe engine; useCache false forces the
// status cache off regardless of config.
func buildChecker(cfg *config.Config, db *store.Store, engine string, useCache bool) (*check.Checker, error) {
	if engine == "" {
		engine = cfg.Probe.Engine
	}
	prober, err := probe.New(engine, cfg.Probe.CurlPath, observability.CLILogger)
	if err != nil {
		return nil, err
	}

	overrides, err := check.LoadOverrides(cfg.OverridesFile)
	if err != nil {
		return nil, err
	}

	return &check.Checker{
		Prober: prober,
		Policy: check.BatchPolicy{
			TargetSize:    cfg.Check.BatchSize,
			MinSize:       cfg.Check.BatchSizeMin,
			Workers:       cfg.Check.Workers,
			SortThreshold: cfg.Check.SortThreshold,
		},
		Timeout:         cfg.Check.Timeout,
		TimeoutRedirect: cfg.Check.TimeoutRedirect,
		SkipCheck:       cfg.Check.Skip,
		Cache:           db,
		UseCache:        useCache && cfg.Check.UseCache,
		CachePolicy: check.CachePolicy{
			ValidTTL:  cfg.Cache.ValidTTL,
			BrokenTTL: cfg.Cache.BrokenTTL,
			ErrorTTL:  cfg.Cache.ErrorTTL,
		},
		Overrides: overrides,
		Logger:    observability.CLILogger,
	}, nil
}
