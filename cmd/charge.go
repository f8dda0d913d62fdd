package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/homecharge/homecharge/app"
	"github.com/homecharge/homecharge/infra/logger"
)

var chargeNow bool

var chargeCmd = &cobra.Command{
	Use:   "charge",
	Short: "Run one charge-start attempt against the charging window",
	RunE:  runCharge,
}

func init() {
	chargeCmd.Flags().BoolVar(&chargeNow, "now", false, "skip the window gate and start immediately")
	rootCmd.AddCommand(chargeCmd)
}

func runCharge(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

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

	res, err := svc.RunCharge(ctx, chargeNow)
	if err != nil {
		return fmt.Errorf("charge run (%s): %w", res.Outcome, err)
	}
	if !res.Outcome.Success() {
		return fmt.Errorf("charge run ended %s: %s", res.Outcome, res.Reason)
	}
	if res.Reason != "" {
		fmt.Fprintf(cmd.OutOrStdout(), "%s: %s\n", res.Outcome, res.Reason)
	} else {
		fmt.Fprintln(cmd.OutOrStdout(), res.Outcome)
	}
	return nil
}
