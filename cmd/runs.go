package cmd

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/homecharge/homecharge/app"
	"github.com/homecharge/homecharge/core/runlog"
	"github.com/homecharge/homecharge/infra/logger"
)

var (
	runsSince   string
	runsOutcome string
	runsLimit   int
)

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "List recorded charge runs",
	RunE:  runRuns,
}

func init() {
	runsCmd.Flags().StringVar(&runsSince, "since", "", "only runs started on or after this day (YYYY-MM-DD)")
	runsCmd.Flags().StringVar(&runsOutcome, "outcome", "", "only runs with this outcome (started, failed, ...)")
	runsCmd.Flags().IntVar(&runsLimit, "limit", 20, "show at most this many runs, newest last")
	rootCmd.AddCommand(runsCmd)
}

func runRuns(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	svc, err := app.New(cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := svc.Close(); err != nil {
			logger.New("main").Errorf("service close: %v", err)
		}
	}()

	store := svc.RunLog()
	if store == nil {
		return errors.New("run log unavailable, check the runlog section of the config")
	}

	q := runlog.Query{Outcome: runsOutcome}
	if runsSince != "" {
		day, err := time.ParseInLocation("2006-01-02", runsSince, cfg.Charge.Location())
		if err != nil {
			return fmt.Errorf("since %q: want YYYY-MM-DD", runsSince)
		}
		q.Start = day
	}

	recs, err := store.Query(context.Background(), q)
	if err != nil {
		return fmt.Errorf("query run log: %w", err)
	}
	if runsLimit > 0 && len(recs) > runsLimit {
		recs = recs[len(recs)-runsLimit:]
	}
	if len(recs) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "no recorded runs")
		return nil
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "%-17s %-15s %8s %9s  %s\n", "STARTED", "OUTCOME", "ATTEMPTS", "DURATION", "REASON")
	for _, r := range recs {
		var dur string
		if !r.FinishedAt.IsZero() {
			dur = r.FinishedAt.Sub(r.StartedAt).Round(time.Second).String()
		}
		fmt.Fprintf(out, "%-17s %-15s %8d %9s  %s\n",
			r.StartedAt.In(cfg.Charge.Location()).Format("2006-01-02 15:04"),
			r.Outcome, r.Attempts, dur, r.Reason)
	}
	return nil
}
