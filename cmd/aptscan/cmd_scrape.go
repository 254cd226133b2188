package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/aptscan/aptscan/internal/model"
	"github.com/aptscan/aptscan/internal/runner"
)

var (
	flagBuilding  string
	flagPlatform  string
	flagSheetOnly bool
)

// scrapeCmd runs one building through the same pipeline as the batch.
var scrapeCmd = &cobra.Command{
	Use:   "scrape",
	Short: "Scrape a single building by name",
	Long: `Scrape one building and commit the result, exactly as the nightly
batch would. The name match is case-insensitive and accepts a unique
substring; an ambiguous name lists the candidates.`,
	RunE: runScrapeOne,
}

// validateCmd scrapes one building and pushes its units for review.
var validateCmd = &cobra.Command{
	Use:   "validate-building",
	Short: "Scrape one building and push its units to the validation tab",
	RunE:  runValidate,
}

// sheetsSyncCmd refreshes the buildings table from the registry tab.
var sheetsSyncCmd = &cobra.Command{
	Use:   "sheets-sync",
	Short: "Pull the building registry from the spreadsheet",
	RunE:  runSheetsSync,
}

func init() {
	scrapeCmd.Flags().StringVar(&flagBuilding, "building", "", "building name (unique substring)")
	scrapeCmd.Flags().StringVar(&flagPlatform, "platform", "", "override the stored platform tag for this run only")
	scrapeCmd.MarkFlagRequired("building") //nolint:errcheck

	validateCmd.Flags().StringVar(&flagBuilding, "building", "", "building name (unique substring)")
	validateCmd.Flags().BoolVar(&flagSheetOnly, "sheet-only", false, "skip the scrape, publish stored units")
	validateCmd.MarkFlagRequired("building") //nolint:errcheck
}

func runScrapeOne(cmd *cobra.Command, _ []string) error {
	ctx := cmdContext(cmd)
	a, err := newApp(ctx, appOptions{})
	if err != nil {
		return err
	}
	defer a.close()

	_, err = scrapeNamed(ctx, a, flagBuilding, flagPlatform)
	return err
}

func runValidate(cmd *cobra.Command, _ []string) error {
	ctx := cmdContext(cmd)
	a, err := newApp(ctx, appOptions{needSheet: true})
	if err != nil {
		return err
	}
	defer a.close()

	var b model.Building
	if flagSheetOnly {
		b, err = a.store.FindBuildingByName(ctx, flagBuilding)
		if err != nil {
			return err
		}
	} else {
		b, err = scrapeNamed(ctx, a, flagBuilding, "")
		if err != nil {
			return err
		}
	}

	units, err := a.store.ListUnits(ctx, b.ID)
	if err != nil {
		return err
	}
	if err := a.sheets.PublishBuildingUnits(ctx, b, units); err != nil {
		return err
	}
	fmt.Printf("pushed %d units for %q to the validation tab\n", len(units), b.Name)
	return nil
}

func runSheetsSync(cmd *cobra.Command, _ []string) error {
	ctx := cmdContext(cmd)
	a, err := newApp(ctx, appOptions{needSheet: true})
	if err != nil {
		return err
	}
	defer a.close()

	return a.sheets.SyncRegistry(ctx)
}

// scrapeNamed resolves the building by name and runs one scrape. A failed
// scrape is reported on stdout but is not a process-level error.
func scrapeNamed(ctx context.Context, a *app, name, platformOverride string) (model.Building, error) {
	b, err := a.store.FindBuildingByName(ctx, name)
	if err != nil {
		return model.Building{}, err
	}

	res := a.runner.Run(ctx, b.ID, platformOverride)
	switch res.Outcome {
	case runner.OutcomeSuccess:
		fmt.Printf("%s (%s): %d units\n", res.Name, res.Platform, res.UnitCount)
	case runner.OutcomeSkipped:
		fmt.Printf("%s: skipped (platform %q)\n", res.Name, res.Platform)
	default:
		fmt.Printf("%s (%s): failed: %s\n", res.Name, res.Platform, res.Error)
	}
	return b, nil
}

func cmdContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
