package scraper

import (
	"context"
	"fmt"
	"strings"

	"github.com/aptscan/aptscan/internal/model"
)

// entrataAdapter reads the Entrata ProspectPortal availability feed exposed
// by the building's leasing site.
type entrataAdapter struct {
	fetch *fetcher
}

type entrataUnit struct {
	UnitNumber    string `json:"UnitNumber"`
	FloorplanName string `json:"FloorplanName"`
	Bedrooms      string `json:"Bedrooms"`
	Bathrooms     string `json:"Bathrooms"`
	Rent          string `json:"MinRent"`
	AvailableOn   string `json:"AvailableOn"`
	SquareFeet    string `json:"SquareFeet"`
}

func (a *entrataAdapter) Scrape(ctx context.Context, target Target) ([]model.RawRecord, error) {
	feedURL := strings.TrimRight(target.URL, "/") + "/widget/availability.json"

	var resp struct {
		Units []entrataUnit `json:"units"`
	}
	if err := a.fetch.getJSON(ctx, feedURL, nil, &resp); err != nil {
		return nil, err
	}

	records := make([]model.RawRecord, 0, len(resp.Units))
	for _, u := range resp.Units {
		bed := strings.TrimSpace(u.Bedrooms)
		if bed == "" || bed == "0" {
			bed = "studio"
		} else {
			bed = fmt.Sprintf("%s bedroom", bed)
		}
		records = append(records, model.RawRecord{
			"unit_number":       u.UnitNumber,
			"bed_type":          bed,
			"rent":              u.Rent,
			"availability_date": u.AvailableOn,
			"floor_plan_name":   u.FloorplanName,
			"baths":             u.Bathrooms,
			"sqft":              u.SquareFeet,
		})
	}
	return records, nil
}
