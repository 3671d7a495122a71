package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"conceptid/internal/audit"
	"conceptid/internal/config"
	"conceptid/internal/logging"
	"conceptid/internal/ocl"
	"conceptid/internal/remediate"
)

func newRunCommand(ctx *commandContext) *cobra.Command {
	var dryRun bool
	var outputDir string
	var ledgerPath string

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Scan concepts and replace invalid external identifiers",
		Long: "Scan every concept in the configured source (or collection), classify its external_id,\n" +
			"and replace invalid values with new UUIDs. One audit row is written per concept.",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			if err := applyRunOverrides(cfg, outputDir, ledgerPath); err != nil {
				return err
			}
			if err := cfg.EnsureDirectories(); err != nil {
				return fmt.Errorf("ensure directories: %w", err)
			}

			logger, closer, err := ctx.logger(cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer closer.Close()

			return executeRun(cmd.Context(), cfg, dryRun, logger, cmd.OutOrStdout())
		},
	}

	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Classify and audit without writing to the API")
	cmd.Flags().StringVar(&outputDir, "output-dir", "", "Directory for the audit CSV (overrides output.dir)")
	cmd.Flags().StringVar(&ledgerPath, "ledger", "", "SQLite ledger path (overrides output.ledger_path)")
	return cmd
}

func applyRunOverrides(cfg *config.Config, outputDir, ledgerPath string) error {
	if dir := strings.TrimSpace(outputDir); dir != "" {
		expanded, err := config.ExpandPath(dir)
		if err != nil {
			return fmt.Errorf("resolve output dir: %w", err)
		}
		cfg.Output.Dir = expanded
	}
	if path := strings.TrimSpace(ledgerPath); path != "" {
		expanded, err := config.ExpandPath(path)
		if err != nil {
			return fmt.Errorf("resolve ledger path: %w", err)
		}
		cfg.Output.LedgerPath = expanded
	}
	return nil
}

func executeRun(ctx context.Context, cfg *config.Config, dryRun bool, logger *slog.Logger, out io.Writer) (err error) {
	runID := uuid.NewString()
	ctx = logging.WithRunID(ctx, runID)
	base := logger
	logger = logging.NewComponentLogger(base, "cli")

	client, err := ocl.New(cfg.API.URL, cfg.API.Token,
		time.Duration(cfg.API.TimeoutSeconds)*time.Second,
		ocl.WithLogger(base),
	)
	if err != nil {
		return fmt.Errorf("create api client: %w", err)
	}

	csvOut, err := audit.OpenCSV(cfg.Output.Dir, cfg.Output.Prefix, dryRun)
	if err != nil {
		return err
	}
	sinks := []audit.Sink{csvOut}

	var ledger *audit.Ledger
	if cfg.Output.LedgerPath != "" {
		ledger, err = audit.OpenLedger(ctx, cfg.Output.LedgerPath)
		if err != nil {
			_ = csvOut.Close()
			return err
		}
		defer ledger.Close()
		if err := ledger.StartRun(ctx, audit.Run{
			ID:        runID,
			StartedAt: time.Now(),
			DryRun:    dryRun,
			Target:    cfg.Target(),
			AuditFile: csvOut.Path(),
		}); err != nil {
			_ = csvOut.Close()
			return err
		}
		sinks = append(sinks, ledger.RunSink(runID))
	}
	sink := audit.Multi(sinks...)
	defer func() {
		if cerr := sink.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("close audit output: %w", cerr)
		}
	}()

	logger.InfoContext(ctx, "remediation started",
		logging.String("target", cfg.Target()),
		logging.String("audit_file", csvOut.Path()),
		logging.Bool("dry_run", dryRun),
	)

	printer := newProgressPrinter(out)
	runner, err := remediate.NewRunner(client, sink,
		remediate.WithDryRun(dryRun),
		remediate.WithLogger(base),
		remediate.WithProgress(printer.Update),
	)
	if err != nil {
		return err
	}

	summary, runErr := runner.Run(ctx, cfg.ListingURL())
	printer.Finish()

	if ledger != nil {
		// The run context may already be cancelled; the ledger still records the outcome.
		finishCtx := context.WithoutCancel(ctx)
		if ferr := ledger.FinishRun(finishCtx, runID, summary.Total, summary.Processed, summary.Tally, runErr); ferr != nil {
			logger.WarnContext(ctx, "ledger finish failed", logging.Error(ferr))
		}
	}

	writeSummary(out, summary)
	fmt.Fprintf(out, "Audit file: %s\n", csvOut.Path())
	if ledger != nil {
		fmt.Fprintf(out, "Ledger run: %s\n", runID)
	}

	if runErr != nil {
		if !errors.Is(runErr, context.Canceled) {
			logger.ErrorContext(ctx, "remediation aborted",
				logging.Error(runErr),
				logging.Int("processed", summary.Processed),
				logging.Int("total", summary.Total),
			)
		}
		return fmt.Errorf("remediation aborted after %d of %d concepts: %w", summary.Processed, summary.Total, runErr)
	}
	logger.InfoContext(ctx, "remediation finished",
		logging.Int("processed", summary.Processed),
		logging.Int("remediated", summary.Tally.Remediated()),
		logging.Int("skipped", summary.Tally.Skipped),
	)
	return nil
}

const dryRunNotice = "DRY RUN MODE: No changes will be made to the OCL source."

// writeSummary prints the final counters, preceded by the dry-run notice
// when no writes were made.
func writeSummary(out io.Writer, summary remediate.Summary) {
	if summary.DryRun {
		fmt.Fprintln(out, dryRunNotice)
	}
	fmt.Fprintln(out, renderSummary(summary))
}

func renderSummary(summary remediate.Summary) string {
	remediatedLabel := "Updated"
	if summary.DryRun {
		remediatedLabel = "Would update"
	}
	rows := [][]string{
		{"Empty external IDs", strconv.Itoa(summary.Tally.Empty)},
		{"MSF- prefixed external IDs", strconv.Itoa(summary.Tally.LegacyPrefixed)},
		{"Malformed length external IDs", strconv.Itoa(summary.Tally.MalformedLength)},
		{"Skipped (valid)", strconv.Itoa(summary.Tally.Skipped)},
		{remediatedLabel, strconv.Itoa(summary.Tally.Remediated())},
		{"Processed", fmt.Sprintf("%d/%d", summary.Processed, summary.Total)},
	}
	return renderTable([]string{"Category", "Count"}, rows, []columnAlignment{alignLeft, alignRight})
}
