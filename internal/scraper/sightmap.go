package scraper

import (
	"context"
	"fmt"
	"regexp"

	"github.com/aptscan/aptscan/internal/model"
)

// sightmapAdapter handles buildings whose availability is served by a
// SightMap embed. The building page references the embed id; the embed API
// returns the full unit feed as JSON.
type sightmapAdapter struct {
	fetch *fetcher
}

var sightmapEmbedRe = regexp.MustCompile(`sightmap\.com/embed/(\d+)`)

type sightmapResponse struct {
	Data struct {
		Units []struct {
			UnitNumber  string `json:"unit_number"`
			Price       int    `json:"price"` // dollars per month
			AvailableOn string `json:"available_on"`
			Area        int    `json:"area"`
			FloorPlan   struct {
				Name          string  `json:"name"`
				BedroomCount  int     `json:"bedroom_count"`
				BathroomCount float64 `json:"bathroom_count"`
			} `json:"floor_plan"`
		} `json:"units"`
	} `json:"data"`
}

func (a *sightmapAdapter) Scrape(ctx context.Context, target Target) ([]model.RawRecord, error) {
	page, err := a.fetch.get(ctx, target.URL, nil)
	if err != nil {
		return nil, err
	}

	m := sightmapEmbedRe.FindSubmatch(page)
	if m == nil {
		return nil, fmt.Errorf("sightmap: no embed id on %s", target.URL)
	}
	embedID := string(m[1])

	var resp sightmapResponse
	apiURL := fmt.Sprintf("https://sightmap.com/api/v1/embeds/%s/units", embedID)
	if err := a.fetch.getJSON(ctx, apiURL, nil, &resp); err != nil {
		return nil, err
	}

	records := make([]model.RawRecord, 0, len(resp.Data.Units))
	for _, u := range resp.Data.Units {
		records = append(records, model.RawRecord{
			"unit_number":       u.UnitNumber,
			"bed_type":          bedTypeFromCount(u.FloorPlan.BedroomCount),
			"rent":              u.Price,
			"availability_date": u.AvailableOn,
			"floor_plan_name":   u.FloorPlan.Name,
			"baths":             u.FloorPlan.BathroomCount,
			"sqft":              u.Area,
		})
	}
	return records, nil
}

// bedTypeFromCount renders a numeric bedroom count the way the alias table
// expects it.
func bedTypeFromCount(n int) string {
	if n <= 0 {
		return "studio"
	}
	return fmt.Sprintf("%dbr", n)
}
