// Package sheets implements the spreadsheet collaborators: the registry
// pull that defines which buildings exist, and the status, availability and
// validation pushes humans review.
package sheets

import (
	"context"
	"fmt"
	"log"
	"strings"

	"google.golang.org/api/option"
	sheetsapi "google.golang.org/api/sheets/v4"

	"github.com/aptscan/aptscan/internal/model"
	"github.com/aptscan/aptscan/internal/store"
)

// Default tab names within the operator spreadsheet.
const (
	DefaultRegistryTab     = "Buildings"
	DefaultStatusTab       = "Scrape Status"
	DefaultAvailabilityTab = "Availability"
	DefaultValidationTab   = "Validation"
)

// Registry tab layout, columns A..G starting at row 2 (row 1 is the header):
// name, url, neighborhood, management_company, platform, credential_a,
// credential_b.
const registryRange = "!A2:G"

// Client talks to one spreadsheet. It satisfies batch.RegistrySyncer,
// batch.StatusPublisher and batch.AvailabilityPublisher.
type Client struct {
	svc           *sheetsapi.Service
	store         *store.Store
	spreadsheetID string

	registryTab     string
	statusTab       string
	availabilityTab string
	validationTab   string
}

// Config wires a Client.
type Config struct {
	Store           *store.Store
	SpreadsheetID   string
	CredentialsFile string
	// RegistryTab overrides the registry tab name; the push tabs keep
	// their defaults.
	RegistryTab string
}

// NewClient builds the Sheets API service from a service-account
// credentials file.
func NewClient(ctx context.Context, cfg Config) (*Client, error) {
	if cfg.SpreadsheetID == "" {
		return nil, fmt.Errorf("sheets: spreadsheet key required")
	}
	svc, err := sheetsapi.NewService(ctx, option.WithCredentialsFile(cfg.CredentialsFile))
	if err != nil {
		return nil, fmt.Errorf("sheets: init service: %w", err)
	}
	c := &Client{
		svc:             svc,
		store:           cfg.Store,
		spreadsheetID:   cfg.SpreadsheetID,
		registryTab:     cfg.RegistryTab,
		statusTab:       DefaultStatusTab,
		availabilityTab: DefaultAvailabilityTab,
		validationTab:   DefaultValidationTab,
	}
	if c.registryTab == "" {
		c.registryTab = DefaultRegistryTab
	}
	return c, nil
}

// SyncRegistry pulls the registry tab and reconciles the buildings table:
// upsert by url, then delete rows absent from the sheet (units cascade).
// Scrape state on existing rows survives the upsert.
func (c *Client) SyncRegistry(ctx context.Context) error {
	resp, err := c.svc.Spreadsheets.Values.
		Get(c.spreadsheetID, c.registryTab+registryRange).
		Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("sheets: read registry tab %q: %w", c.registryTab, err)
	}

	urls := make([]string, 0, len(resp.Values))
	var upserted, malformed int
	for i, row := range resp.Values {
		b, ok := buildingFromRow(row)
		if !ok {
			malformed++
			log.Printf("[sheets] registry row %d: missing name or url, skipping", i+2)
			continue
		}
		if err := c.store.UpsertBuildingByURL(ctx, b); err != nil {
			return fmt.Errorf("sheets: upsert building %q: %w", b.URL, err)
		}
		urls = append(urls, b.URL)
		upserted++
	}

	deleted, err := c.store.DeleteBuildingsNotIn(ctx, urls)
	if err != nil {
		return fmt.Errorf("sheets: delete absent buildings: %w", err)
	}
	log.Printf("[sheets] registry sync: %d upserted, %d deleted, %d malformed rows",
		upserted, deleted, malformed)
	return nil
}

// PublishStatus rewrites the status tab with the per-building results of
// one cycle. One bulk write.
func (c *Client) PublishStatus(ctx context.Context, results []model.BuildingResult) error {
	values := [][]any{
		{"Building", "Platform", "Status", "Units", "Scraped At", "Error"},
	}
	for _, r := range results {
		scrapedAt := ""
		if !r.ScrapedAt.IsZero() {
			scrapedAt = r.ScrapedAt.Format("2006-01-02 15:04:05")
		}
		values = append(values, []any{
			r.Name, r.Platform, r.Status, r.UnitCount, scrapedAt, r.Error,
		})
	}
	return c.rewriteTab(ctx, c.statusTab, values)
}

// PublishAvailability rewrites the availability tab with every current unit.
func (c *Client) PublishAvailability(ctx context.Context) error {
	units, err := c.store.ListAllUnits(ctx)
	if err != nil {
		return fmt.Errorf("sheets: %w", err)
	}
	return c.rewriteTab(ctx, c.availabilityTab, availabilityRows(units))
}

// PublishBuildingUnits rewrites the validation tab with one building's
// units, for eyeball review after a one-off scrape.
func (c *Client) PublishBuildingUnits(ctx context.Context, building model.Building, units []model.Unit) error {
	decorated := make([]store.UnitWithBuilding, len(units))
	for i, u := range units {
		decorated[i] = store.UnitWithBuilding{
			Unit:         u,
			BuildingName: building.Name,
			Neighborhood: building.Neighborhood,
		}
	}
	return c.rewriteTab(ctx, c.validationTab, availabilityRows(decorated))
}

// rewriteTab clears the tab and writes values starting at A1.
func (c *Client) rewriteTab(ctx context.Context, tab string, values [][]any) error {
	_, err := c.svc.Spreadsheets.Values.
		Clear(c.spreadsheetID, tab, &sheetsapi.ClearValuesRequest{}).
		Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("sheets: clear tab %q: %w", tab, err)
	}
	_, err = c.svc.Spreadsheets.Values.
		Update(c.spreadsheetID, tab+"!A1", &sheetsapi.ValueRange{Values: values}).
		ValueInputOption("RAW").
		Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("sheets: write tab %q: %w", tab, err)
	}
	return nil
}

func availabilityRows(units []store.UnitWithBuilding) [][]any {
	values := [][]any{
		{"Building", "Neighborhood", "Unit", "Bed Type", "Rent", "Available",
			"Floor Plan", "Baths", "Sqft", "Non-Canonical"},
	}
	for _, u := range units {
		sqft := any("")
		if u.Sqft > 0 {
			sqft = u.Sqft
		}
		values = append(values, []any{
			u.BuildingName, u.Neighborhood, u.UnitNumber, u.BedType,
			formatRent(u.RentCents), u.AvailabilityDate,
			u.FloorPlanName, u.Baths, sqft, u.NonCanonical,
		})
	}
	return values
}

// formatRent renders integer cents as a dollar string for the sheet.
func formatRent(cents int64) string {
	return fmt.Sprintf("$%d.%02d", cents/100, cents%100)
}

// buildingFromRow maps one registry row to a Building. Rows 2..n carry
// name, url, neighborhood, management_company, platform, credential_a,
// credential_b; trailing empty cells are elided by the API.
func buildingFromRow(row []any) (model.Building, bool) {
	b := model.Building{
		Name:              cell(row, 0),
		URL:               cell(row, 1),
		Neighborhood:      cell(row, 2),
		ManagementCompany: cell(row, 3),
		Platform:          strings.ToLower(cell(row, 4)),
		CredentialA:       cell(row, 5),
		CredentialB:       cell(row, 6),
	}
	if b.Name == "" || b.URL == "" {
		return model.Building{}, false
	}
	return b, true
}

func cell(row []any, i int) string {
	if i >= len(row) {
		return ""
	}
	s, _ := row[i].(string)
	return strings.TrimSpace(s)
}
