package scraper

import (
	"bytes"
	"context"
	"fmt"

	"golang.org/x/net/html"

	"github.com/aptscan/aptscan/internal/model"
)

// ppmAdapter scrapes PPM listing pages. The availability table is rendered
// server-side; each row carries the unit fields as data-* attributes.
type ppmAdapter struct {
	fetch *fetcher
}

func (a *ppmAdapter) Scrape(ctx context.Context, target Target) ([]model.RawRecord, error) {
	page, err := a.fetch.get(ctx, target.URL, nil)
	if err != nil {
		return nil, err
	}

	doc, err := html.Parse(bytes.NewReader(page))
	if err != nil {
		return nil, fmt.Errorf("ppm: parse %s: %w", target.URL, err)
	}

	var records []model.RawRecord
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && n.Data == "tr" {
			if rec, ok := ppmRowRecord(n); ok {
				records = append(records, rec)
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)

	if records == nil {
		// A page with no availability rows is a legitimate zero-unit scrape;
		// the state machine upstream handles the consecutive-zero counting.
		return []model.RawRecord{}, nil
	}
	return records, nil
}

// ppmRowRecord extracts a raw record from a row node. Rows without a
// data-unit attribute (headers, spacers) are skipped.
func ppmRowRecord(n *html.Node) (model.RawRecord, bool) {
	attrs := map[string]string{}
	for _, a := range n.Attr {
		attrs[a.Key] = a.Val
	}
	unit, ok := attrs["data-unit"]
	if !ok || unit == "" {
		return nil, false
	}
	rec := model.RawRecord{
		"unit_number":       unit,
		"bed_type":          attrs["data-bed"],
		"rent":              attrs["data-rent"],
		"availability_date": attrs["data-available"],
	}
	if v := attrs["data-sqft"]; v != "" {
		rec["sqft"] = v
	}
	if v := attrs["data-bath"]; v != "" {
		rec["baths"] = v
	}
	if v := attrs["data-floorplan"]; v != "" {
		rec["floor_plan_name"] = v
	}
	return rec, true
}
