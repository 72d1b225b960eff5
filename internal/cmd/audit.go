package cmd

import (
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/speclens/speclens/internal/audit"
	"github.com/speclens/speclens/internal/config"
	"github.com/speclens/speclens/internal/observability"
	"github.com/speclens/speclens/internal/output"
	"github.com/speclens/speclens/internal/versioncheck"
)

var auditCmd = &cobra.Command{
	Use:   "audit <tree-root>",
	Short: "Audit a spec checkout tree",
	Long: `Run the full audit over a checkout tree: scan every package's spec
file, compare what it builds against the SRPMs the mirror publishes,
check every URL, and render the maintainer-addressed reports.`,
	Args: cobra.ExactArgs(1),
	RunE: runAudit,
}

func init() {
	rootCmd.AddCommand(auditCmd)

	auditCmd.Flags().String("pattern", "*", "Glob filtering package directories")
	auditCmd.Flags().String("release", "", "Dist release for spec stub queries (default "+versioncheck.DefaultRelease+")")
	auditCmd.Flags().Bool("no-cache", false, "Skip the URL status cache")
	auditCmd.Flags().String("output", "table", "Report format: table, json, markdown, html")
	auditCmd.Flags().String("out-dir", "", "Write urls.<ext> and versions.<ext> to a directory")
}

func runAudit(cmd *cobra.Command, args []string) error {
	root := args[0]
	pattern, err := cmd.Flags().GetString("pattern")
	if err != nil {
		return err
	}
	release, err := cmd.Flags().GetString("release")
	if err != nil {
		return err
	}
	noCache, err := cmd.Flags().GetBool("no-cache")
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
	outDir, err := cmd.Flags().GetString("out-dir")
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	db, err := openStore(ctx)
	if err != nil {
		return err
	}
	defer db.Close() // nolint:errcheck // best-effort cleanup; errors logged internally

	cfg := config.GetConfig()
	if cfg == nil {
		return errors.New("config not loaded")
	}

	runner := &audit.Runner{
		Config:   cfg,
		Store:    db,
		Logger:   observability.CLILogger,
		Release:  release,
		UseCache: !noCache,
	}
	outcome, err := runner.Run(ctx, root, pattern)
	if err != nil {
		return err
	}

	if dir := strings.TrimSpace(outDir); dir != "" {
		dir, err = ensureOutDir(dir)
		if err != nil {
			return err
		}
		if err := writeAuditReports(format, outcome, dir); err != nil {
			return err
		}
		observability.CLILogger.Info("reports written",
			zap.String("run", outcome.Run.ID),
			zap.String("dir", dir))
		return nil
	}
	return printAuditReports(format, outcome)
}

// writeAuditReports renders both reports into the output directory as
// urls.<ext> and versions.<ext>.
func writeAuditReports(format output.Format, outcome *audit.Outcome, outDir string) error {
	formatter := output.NewFormatter(format)
	ext := outputExtension(format)

	urlsRendered, err := formatter.FormatURLReport(outcome.URLs)
	if err != nil {
		return err
	}
	versionsRendered, err := formatter.FormatVersionReport(outcome.Versions)
	if err != nil {
		return err
	}

	urlsPath := filepath.Join(outDir, "urls."+ext)
	if err := writeReportFile(urlsPath, urlsRendered); err != nil {
		return err
	}
	versionsPath := filepath.Join(outDir, "versions."+ext)
	return writeReportFile(versionsPath, versionsRendered)
}

func writeReportFile(path, content string) error {
	sink, err := openSink(path)
	if err != nil {
		return err
	}
	if _, err := fmt.Fprintln(sink.writer, content); err != nil {
		_ = sink.close()
		return err
	}
	return sink.close()
}

// printAuditReports writes both reports to stdout. JSON prints one
// combined document so the output stays parseable.
func printAuditReports(format output.Format, outcome *audit.Outcome) error {
	if format == output.FormatJSON {
		payload, err := json.MarshalIndent(map[string]any{
			"run":      outcome.Run,
			"urls":     outcome.URLs,
			"versions": outcome.Versions,
		}, "", "  ")
		if err != nil {
			return err
		}
		fmt.Println(string(payload))
		return nil
	}

	formatter := output.NewFormatter(format)
	urlsRendered, err := formatter.FormatURLReport(outcome.URLs)
	if err != nil {
		return err
	}
	versionsRendered, err := formatter.FormatVersionReport(outcome.Versions)
	if err != nil {
		return err
	}

	if urlsRendered != "" {
		fmt.Println(urlsRendered)
	}
	if versionsRendered != "" {
		fmt.Println()
		fmt.Println(versionsRendered)
	}
	return nil
}
