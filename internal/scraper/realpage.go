package scraper

import (
	"context"
	"fmt"

	"github.com/aptscan/aptscan/internal/model"
)

// realpageAdapter pulls the RealPage OneSite availability feed. CredentialA
// is the PMC id, CredentialB the site id.
type realpageAdapter struct {
	fetch *fetcher
}

type realpageUnit struct {
	UnitNumber    string  `json:"unitNumber"`
	Bedrooms      int     `json:"bedrooms"`
	Bathrooms     float64 `json:"bathrooms"`
	MarketRent    float64 `json:"marketRent"`
	DateAvailable string  `json:"dateAvailable"`
	SquareFeet    int     `json:"squareFeet"`
	FloorplanName string  `json:"floorplanName"`
}

func (a *realpageAdapter) Scrape(ctx context.Context, target Target) ([]model.RawRecord, error) {
	if target.CredentialA == "" || target.CredentialB == "" {
		return nil, fmt.Errorf("realpage: building %q missing pmc or site id", target.Name)
	}

	apiURL := fmt.Sprintf(
		"https://onesite.realpage.com/api/availability?pmc=%s&site=%s",
		target.CredentialA, target.CredentialB)

	var resp struct {
		Units []realpageUnit `json:"units"`
	}
	if err := a.fetch.getJSON(ctx, apiURL, nil, &resp); err != nil {
		return nil, err
	}

	records := make([]model.RawRecord, 0, len(resp.Units))
	for _, u := range resp.Units {
		records = append(records, model.RawRecord{
			"unit_number":       u.UnitNumber,
			"bed_type":          bedTypeFromCount(u.Bedrooms),
			"rent":              u.MarketRent,
			"availability_date": u.DateAvailable,
			"floor_plan_name":   u.FloorplanName,
			"baths":             u.Bathrooms,
			"sqft":              u.SquareFeet,
		})
	}
	return records, nil
}
