package main

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"conceptid/internal/audit"
)

func newLedgerCommand(ctx *commandContext) *cobra.Command {
	ledgerCmd := &cobra.Command{
		Use:   "ledger",
		Short: "Inspect the run ledger",
	}
	ledgerCmd.AddCommand(newLedgerRunsCommand(ctx))
	return ledgerCmd
}

func newLedgerRunsCommand(ctx *commandContext) *cobra.Command {
	var limit int
	var ledgerPath string

	cmd := &cobra.Command{
		Use:   "runs",
		Short: "List recorded remediation runs",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			if err := applyRunOverrides(cfg, "", ledgerPath); err != nil {
				return err
			}
			if cfg.Output.LedgerPath == "" {
				return errors.New("no ledger configured; set output.ledger_path or pass --ledger")
			}

			ledger, err := audit.OpenLedger(cmd.Context(), cfg.Output.LedgerPath)
			if err != nil {
				return err
			}
			defer ledger.Close()

			runs, err := ledger.Runs(cmd.Context(), limit)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(runs) == 0 {
				fmt.Fprintln(out, "No runs recorded")
				return nil
			}
			fmt.Fprintln(out, renderRuns(runs))
			return nil
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 20, "Maximum number of runs to show")
	cmd.Flags().StringVar(&ledgerPath, "ledger", "", "SQLite ledger path (overrides output.ledger_path)")
	return cmd
}

func renderRuns(runs []audit.Run) string {
	headers := []string{"Run", "Started", "Mode", "Target", "Processed", "Remediated", "Skipped", "Result"}
	rows := make([][]string, 0, len(runs))
	for _, run := range runs {
		mode := "live"
		if run.DryRun {
			mode = "dry-run"
		}
		rows = append(rows, []string{
			run.ID,
			run.StartedAt.Local().Format(time.DateTime),
			mode,
			run.Target,
			fmt.Sprintf("%d/%d", run.Processed, run.Total),
			strconv.Itoa(run.Tally.Remediated()),
			strconv.Itoa(run.Tally.Skipped),
			runResult(run),
		})
	}
	aligns := []columnAlignment{alignLeft, alignLeft, alignLeft, alignLeft, alignRight, alignRight, alignRight, alignLeft}
	return renderTable(headers, rows, aligns)
}

func runResult(run audit.Run) string {
	switch {
	case run.Error != "":
		return "failed: " + run.Error
	case !run.Finished():
		return "incomplete"
	default:
		return "ok"
	}
}
