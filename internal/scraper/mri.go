package scraper

import (
	"context"
	"fmt"

	"github.com/aptscan/aptscan/internal/model"
)

// mriAdapter pulls MRI's resident-web availability API. CredentialA is the
// property id.
type mriAdapter struct {
	fetch *fetcher
}

type mriUnit struct {
	UnitID        string  `json:"unitId"`
	Beds          int     `json:"beds"`
	Baths         float64 `json:"baths"`
	Rent          float64 `json:"rentAmount"`
	DateAvailable string  `json:"dateAvailable"`
	Sqft          int     `json:"sqft"`
	FloorPlan     string  `json:"floorPlan"`
}

func (a *mriAdapter) Scrape(ctx context.Context, target Target) ([]model.RawRecord, error) {
	if target.CredentialA == "" {
		return nil, fmt.Errorf("mri: building %q missing property id", target.Name)
	}

	apiURL := fmt.Sprintf(
		"https://mriresidentweb.com/api/properties/%s/availability", target.CredentialA)

	var resp struct {
		Units []mriUnit `json:"units"`
	}
	if err := a.fetch.getJSON(ctx, apiURL, nil, &resp); err != nil {
		return nil, err
	}

	records := make([]model.RawRecord, 0, len(resp.Units))
	for _, u := range resp.Units {
		records = append(records, model.RawRecord{
			"unit_number":       u.UnitID,
			"bed_type":          bedTypeFromCount(u.Beds),
			"rent":              u.Rent,
			"availability_date": u.DateAvailable,
			"floor_plan_name":   u.FloorPlan,
			"baths":             u.Baths,
			"sqft":              u.Sqft,
		})
	}
	return records, nil
}
