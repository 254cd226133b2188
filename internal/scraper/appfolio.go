package scraper

import (
	"context"
	"strings"

	"github.com/aptscan/aptscan/internal/model"
)

// appfolioAdapter reads an AppFolio listings JSON feed. AppFolio sites serve
// the listing data the public site renders from at a stable path under the
// building URL.
type appfolioAdapter struct {
	fetch *fetcher
}

type appfolioListing struct {
	Address       string  `json:"address_address2"` // unit designator
	Bedrooms      string  `json:"bedrooms"`
	Bathrooms     string  `json:"bathrooms"`
	MarketRent    float64 `json:"market_rent"`
	AvailableDate string  `json:"available_date"`
	SquareFeet    float64 `json:"square_feet"`
}

func (a *appfolioAdapter) Scrape(ctx context.Context, target Target) ([]model.RawRecord, error) {
	feedURL := strings.TrimRight(target.URL, "/") + "/listings.json"

	var listings []appfolioListing
	if err := a.fetch.getJSON(ctx, feedURL, nil, &listings); err != nil {
		return nil, err
	}

	records := make([]model.RawRecord, 0, len(listings))
	for _, l := range listings {
		records = append(records, model.RawRecord{
			"unit_number":       strings.TrimSpace(l.Address),
			"bed_type":          appfolioBedType(l.Bedrooms),
			"rent":              l.MarketRent,
			"availability_date": l.AvailableDate,
			"baths":             l.Bathrooms,
			"sqft":              l.SquareFeet,
		})
	}
	return records, nil
}

// appfolioBedType renders AppFolio's "2 bd" style values for the alias table.
func appfolioBedType(bedrooms string) string {
	v := strings.TrimSpace(strings.TrimSuffix(strings.ToLower(bedrooms), "bd"))
	v = strings.TrimSpace(v)
	if v == "" || v == "0" || v == "studio" {
		return "studio"
	}
	return v + "br"
}
