// Package scraper owns the platform adapters and the tag→adapter registry.
// Adapters are single-shot black boxes: given a building they return raw
// unit records or fail. They must be safe to call from distinct workers in
// parallel with other adapters; serialization against other invocations of
// the same adapter is the concurrency gate's job, not theirs.
package scraper

import (
	"context"

	"github.com/aptscan/aptscan/internal/model"
)

// Target identifies one building for an adapter invocation. Credentials are
// opaque strings whose interpretation belongs to the adapter.
type Target struct {
	BuildingID  int64
	Name        string
	URL         string
	CredentialA string
	CredentialB string
}

// Adapter produces the ordered raw record sequence for one building.
type Adapter interface {
	Scrape(ctx context.Context, target Target) ([]model.RawRecord, error)
}

// AdapterFunc adapts a function to the Adapter interface.
type AdapterFunc func(ctx context.Context, target Target) ([]model.RawRecord, error)

func (f AdapterFunc) Scrape(ctx context.Context, target Target) ([]model.RawRecord, error) {
	return f(ctx, target)
}
