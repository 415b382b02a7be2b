package main

import (
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/remedian/remedian/providers/aws"
	"github.com/remedian/remedian/types"
)

var sweepDryRun bool

// sweepCmd represents the sweep command
var sweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Evaluate every bucket in the account once",
	Long: `Run one sweep over the account without waiting for AWS Config.

Every S3 bucket is checked for public exposure, exposed buckets are
remediated and notified about, and a summary is printed. Useful as a
first run before wiring up the event-driven path, or from cron.`,
	Example: `  remedian sweep                 # Remediate exposed buckets now
  remedian sweep --dry-run       # Report what would change, touch nothing`,
	RunE: runSweep,
}

func init() {
	rootCmd.AddCommand(sweepCmd)

	sweepCmd.Flags().BoolVar(&sweepDryRun, "dry-run", false, "Evaluate without remediating or notifying")
}

func runSweep(cmd *cobra.Command, args []string) error {
	ctx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	rt, err := buildRuntime(ctx, runtimeOptions{DryRun: sweepDryRun})
	if err != nil {
		return err
	}
	defer rt.close(ctx)

	accountID, err := aws.ResolveAccountID(ctx, rt.clients.STS)
	if err != nil {
		return err
	}

	fmt.Printf("🔍 Sweeping account %s in %s...\n\n", accountID, rt.cfg.Region)

	sweeper := aws.NewSweeper(rt.clients.S3, rt.cfg.Region, accountID)
	events, err := sweeper.Sweep(ctx)
	if err != nil {
		return fmt.Errorf("sweep failed: %w", err)
	}

	outcomes := map[types.Outcome]int{}
	for _, event := range events {
		result, err := rt.handler.Handle(ctx, event)
		if err != nil {
			fmt.Printf("   ❌ %s: %v\n", event.ResourceID, err)
		}
		outcomes[result.Outcome]++
		if result.Outcome == types.OutcomeRemediated || result.Outcome == types.OutcomeDryRun {
			fmt.Printf("   🔒 %s\n", result.Action)
		}
	}

	fmt.Printf("\n✅ Sweep complete: %d buckets checked", len(events))
	for _, outcome := range []types.Outcome{
		types.OutcomeRemediated, types.OutcomeDryRun, types.OutcomeExcluded, types.OutcomeFailed,
	} {
		if n := outcomes[outcome]; n > 0 {
			fmt.Printf(", %d %s", n, outcome)
		}
	}
	fmt.Println()

	if outcomes[types.OutcomeFailed] > 0 {
		return fmt.Errorf("%d buckets failed to remediate", outcomes[types.OutcomeFailed])
	}
	return nil
}
