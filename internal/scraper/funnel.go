package scraper

import (
	"context"
	"fmt"

	"github.com/aptscan/aptscan/internal/model"
)

// funnelAdapter pulls the Funnel Leasing listings API. CredentialA is the
// community id.
type funnelAdapter struct {
	fetch *fetcher
}

type funnelListing struct {
	Unit struct {
		UnitNumber string `json:"unit_number"`
	} `json:"unit"`
	Layout struct {
		Bedrooms  int     `json:"bedroom_count"`
		Bathrooms float64 `json:"bathroom_count"`
		Name      string  `json:"name"`
	} `json:"layout"`
	Price       float64 `json:"price"`
	AvailableOn string  `json:"available_on"`
	SquareFeet  int     `json:"sqft"`
}

func (a *funnelAdapter) Scrape(ctx context.Context, target Target) ([]model.RawRecord, error) {
	if target.CredentialA == "" {
		return nil, fmt.Errorf("funnel: building %q missing community id", target.Name)
	}

	apiURL := fmt.Sprintf(
		"https://nestiolistings.com/api/v2/listings/rentals/?community=%s", target.CredentialA)

	var resp struct {
		Listings []funnelListing `json:"listings"`
	}
	if err := a.fetch.getJSON(ctx, apiURL, nil, &resp); err != nil {
		return nil, err
	}

	records := make([]model.RawRecord, 0, len(resp.Listings))
	for _, l := range resp.Listings {
		records = append(records, model.RawRecord{
			"unit_number":       l.Unit.UnitNumber,
			"bed_type":          bedTypeFromCount(l.Layout.Bedrooms),
			"rent":              l.Price,
			"availability_date": l.AvailableOn,
			"floor_plan_name":   l.Layout.Name,
			"baths":             l.Layout.Bathrooms,
			"sqft":              l.SquareFeet,
		})
	}
	return records, nil
}
