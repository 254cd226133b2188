// aptscan scrapes unit availability across the tracked Chicago buildings,
// persists the results, and publishes them to the operator spreadsheet.
package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/aptscan/aptscan/internal/buildinfo"
	"github.com/aptscan/aptscan/internal/sched"
)

var (
	flagDryRun   bool
	flagSkipSync bool
	flagSchedule bool
)

// rootCmd runs a full scrape cycle; it is also the default when no
// subcommand is given.
var rootCmd = &cobra.Command{
	Use:   "aptscan",
	Short: "Daily apartment-availability scraper",
	Long: `aptscan pulls the building registry from the operator spreadsheet,
scrapes every building with a recognized platform tag, normalizes and
stores the unit data, and pushes status and availability back to the
spreadsheet.

Without flags it runs one cycle and exits. With --schedule it stays
resident and fires the cycle on the configured cron schedule.`,
	Version:       fmt.Sprintf("%s (%s, built %s)", buildinfo.Version, buildinfo.GitCommit, buildinfo.BuildTime),
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          runScrapeAll,
}

// scrapeAllCmd is the explicit spelling of the default action.
var scrapeAllCmd = &cobra.Command{
	Use:   "scrape-all",
	Short: "Run one full scrape cycle (the default action)",
	RunE:  runScrapeAll,
}

func init() {
	for _, cmd := range []*cobra.Command{rootCmd, scrapeAllCmd} {
		cmd.Flags().BoolVar(&flagDryRun, "dry-run", false, "scrape and normalize but write nothing")
		cmd.Flags().BoolVar(&flagSkipSync, "skip-sync", false, "skip the registry pull, use stored buildings")
		cmd.Flags().BoolVar(&flagSchedule, "schedule", false, "stay resident and run on the cron schedule")
	}

	rootCmd.AddCommand(scrapeAllCmd)
	rootCmd.AddCommand(scrapeCmd)
	rootCmd.AddCommand(validateCmd)
	rootCmd.AddCommand(sheetsSyncCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

// runScrapeAll is the scrape-all entry point: one cycle, or daemon mode
// with --schedule. Per-building failures never produce a non-zero exit;
// only orchestrator-level failures do.
func runScrapeAll(cmd *cobra.Command, _ []string) error {
	ctx := cmdContext(cmd)

	a, err := newApp(ctx, appOptions{needSheet: !flagDryRun && !flagSkipSync, dryRun: flagDryRun})
	if err != nil {
		return err
	}
	defer a.close()

	o := a.orchestrator(flagSkipSync, flagDryRun)

	if !flagSchedule {
		_, err := o.RunCycle(ctx)
		return err
	}

	if err := routeLogToFile(a.cfg); err != nil {
		return err
	}

	s, err := sched.New(sched.Config{
		Runner:       o,
		LastRun:      a.store,
		Schedule:     a.cfg.CronSchedule,
		MisfireGrace: a.cfg.MisfireGrace,
	})
	if err != nil {
		return err
	}
	if err := s.Start(ctx); err != nil {
		return err
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit
	fmt.Fprintf(os.Stderr, "received signal %s, shutting down\n", sig)
	s.Stop()
	return nil
}
