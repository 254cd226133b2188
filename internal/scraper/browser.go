package scraper

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"

	"github.com/aptscan/aptscan/internal/model"
)

// defaultDOMStableWait is how long the DOM must stay unchanged before the
// availability grid is considered hydrated.
const defaultDOMStableWait = time.Second

// browserAdapter drives a headless browser for platforms that render their
// availability grids client-side. Each invocation owns its own browser
// session, so parallel invocations of other adapters are unaffected; the
// concurrency gate keeps same-platform invocations down to one.
type browserAdapter struct {
	// controlURL points at an already-running browser; empty launches one.
	controlURL string
	// extract is a JS function body evaluated on the loaded page. It must
	// return a JSON string encoding an array of raw record objects.
	extract string
}

func (a *browserAdapter) Scrape(ctx context.Context, target Target) ([]model.RawRecord, error) {
	controlURL := a.controlURL
	if controlURL == "" {
		l := launcher.New().Headless(true)
		launched, err := l.Launch()
		if err != nil {
			return nil, fmt.Errorf("browser: launch: %w", err)
		}
		defer l.Cleanup()
		controlURL = launched
	}

	browser := rod.New().ControlURL(controlURL).Context(ctx)
	if err := browser.Connect(); err != nil {
		return nil, fmt.Errorf("browser: connect: %w", err)
	}
	defer browser.Close()

	page, err := browser.Page(proto.TargetCreateTarget{URL: target.URL})
	if err != nil {
		return nil, fmt.Errorf("browser: open %s: %w", target.URL, err)
	}
	defer page.Close()

	if err := page.WaitLoad(); err != nil {
		return nil, fmt.Errorf("browser: wait load %s: %w", target.URL, err)
	}
	// Availability grids hydrate after load; wait for the DOM to settle.
	if err := page.WaitDOMStable(defaultDOMStableWait, 0); err != nil {
		return nil, fmt.Errorf("browser: wait dom %s: %w", target.URL, err)
	}

	res, err := page.Eval(a.extract)
	if err != nil {
		return nil, fmt.Errorf("browser: extract %s: %w", target.URL, err)
	}

	var records []model.RawRecord
	if err := json.Unmarshal([]byte(res.Value.Str()), &records); err != nil {
		return nil, fmt.Errorf("browser: decode extraction from %s: %w", target.URL, err)
	}
	return records, nil
}

// bozzutoExtractJS pulls unit cards from Bozzuto availability pages.
const bozzutoExtractJS = `() => {
	const cards = document.querySelectorAll('[data-testid="unit-card"], .unit-card');
	const out = [];
	for (const card of cards) {
		const text = sel => { const el = card.querySelector(sel); return el ? el.textContent.trim() : ''; };
		out.push({
			unit_number:       text('.unit-card__number, [data-testid="unit-number"]'),
			bed_type:          text('.unit-card__beds, [data-testid="unit-beds"]'),
			rent:              text('.unit-card__price, [data-testid="unit-price"]'),
			availability_date: text('.unit-card__available, [data-testid="unit-available"]'),
			baths:             text('.unit-card__baths, [data-testid="unit-baths"]'),
			sqft:              text('.unit-card__sqft, [data-testid="unit-sqft"]'),
		});
	}
	return JSON.stringify(out);
}`

// groupfoxExtractJS pulls rows from Group Fox's floorplan availability grid.
const groupfoxExtractJS = `() => {
	const rows = document.querySelectorAll('.availability-row, .fp-row');
	const out = [];
	for (const row of rows) {
		const text = sel => { const el = row.querySelector(sel); return el ? el.textContent.trim() : ''; };
		out.push({
			unit_number:       text('.unit, .fp-unit'),
			bed_type:          text('.beds, .fp-beds'),
			rent:              text('.rent, .fp-rent'),
			availability_date: text('.available, .fp-available'),
			sqft:              text('.sqft, .fp-sqft'),
		});
	}
	return JSON.stringify(out);
}`
