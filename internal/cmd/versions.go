package cmd

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/speclens/speclens/internal/audit"
	"github.com/speclens/speclens/internal/config"
	"github.com/speclens/speclens/internal/observability"
	"github.com/speclens/speclens/internal/output"
	"github.com/speclens/speclens/internal/versioncheck"
)

var versionsCmd = &cobra.Command{
	Use:   "versions <tree-root>",
	Short: "Compare spec versions against the mirror",
	Long: `Compare what every spec file in the checkout tree would build with
the SRPMs the distribution mirror actually publishes. Mismatches mean
a commit without a submit, or a stale build still on the mirror.`,
	Args: cobra.ExactArgs(1),
	RunE: runVersions,
}

func init() {
	rootCmd.AddCommand(versionsCmd)

	versionsCmd.Flags().String("pattern", "*", "Glob filtering package directories")
	versionsCmd.Flags().String("release", "", "Dist release for spec stub queries (default "+versioncheck.DefaultRelease+")")
	versionsCmd.Flags().String("output", "table", "Report format: table, json, markdown, html")
	versionsCmd.Flags().String("out", "", "Write the report to a file (default stdout)")
	versionsCmd.Flags().String("out-dir", "", "Write versions.<ext> to a directory")
}

func runVersions(cmd *cobra.Command, args []string) error {
	root := args[0]
	pattern, err := cmd.Flags().GetString("pattern")
	if err != nil {
		return err
	}
	release, err := cmd.Flags().GetString("release")
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
		Config:  cfg,
		Store:   db,
		Logger:  observability.CLILogger,
		Release: release,
	}
	versions, err := runner.RunVersions(ctx, root, pattern)
	if err != nil {
		return err
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
		outPath = filepath.Join(outDir, fmt.Sprintf("versions.%s", outputExtension(format)))
	}
	sink, err := openSink(outPath)
	if err != nil {
		return err
	}
	defer func() { _ = sink.close() }()

	rendered, err := output.NewFormatter(format).FormatVersionReport(versions)
	if err != nil {
		return err
	}
	if strings.TrimSpace(rendered) != "" {
		if _, err := fmt.Fprintln(sink.writer, rendered); err != nil {
			return err
		}
	}
	return nil
}
