package scraper

import (
	"context"
	"fmt"
	"net/url"

	"github.com/aptscan/aptscan/internal/model"
)

// rentcafeAdapter pulls the RentCafe availability API. CredentialA is the
// company API token, CredentialB the property code.
type rentcafeAdapter struct {
	fetch *fetcher
}

type rentcafeUnit struct {
	ApartmentName string `json:"ApartmentName"`
	Beds          string `json:"Beds"`
	Baths         string `json:"Baths"`
	MinimumRent   string `json:"MinimumRent"`
	AvailableDate string `json:"AvailableDate"`
	SQFT          string `json:"SQFT"`
	FloorplanName string `json:"FloorplanName"`
	FloorplanURL  string `json:"FloorplanImageURL"`
}

func (a *rentcafeAdapter) Scrape(ctx context.Context, target Target) ([]model.RawRecord, error) {
	if target.CredentialA == "" || target.CredentialB == "" {
		return nil, fmt.Errorf("rentcafe: building %q missing api token or property code", target.Name)
	}

	q := url.Values{
		"requestType":  []string{"apartmentavailability"},
		"apiToken":     []string{target.CredentialA},
		"propertyCode": []string{target.CredentialB},
	}
	apiURL := "https://api.rentcafe.com/rentcafeapi.aspx?" + q.Encode()

	var units []rentcafeUnit
	if err := a.fetch.getJSON(ctx, apiURL, nil, &units); err != nil {
		return nil, err
	}

	records := make([]model.RawRecord, 0, len(units))
	for _, u := range units {
		records = append(records, model.RawRecord{
			"unit_number":       u.ApartmentName,
			"bed_type":          rentcafeBedType(u.Beds),
			"rent":              u.MinimumRent,
			"availability_date": u.AvailableDate,
			"floor_plan_name":   u.FloorplanName,
			"floor_plan_url":    u.FloorplanURL,
			"baths":             u.Baths,
			"sqft":              u.SQFT,
		})
	}
	return records, nil
}

// rentcafeBedType maps RentCafe's numeric Beds field ("0", "1", ...) to an
// alias-table spelling.
func rentcafeBedType(beds string) string {
	switch beds {
	case "", "0":
		return "studio"
	default:
		return beds + "br"
	}
}
