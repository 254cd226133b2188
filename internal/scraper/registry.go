package scraper

import (
	"net/http"
	"time"
)

// Platform tags recognized by the registry. Exact strings — they are stored
// on building rows and compared verbatim.
const (
	PlatformRentcafe = "rentcafe"
	PlatformPPM      = "ppm"
	PlatformFunnel   = "funnel"
	PlatformRealpage = "realpage"
	PlatformBozzuto  = "bozzuto"
	PlatformGroupfox = "groupfox"
	PlatformAppfolio = "appfolio"
	PlatformSightmap = "sightmap"
	PlatformEntrata  = "entrata"
	PlatformMRI      = "mri"
	PlatformLLM      = "llm"
)

// skipPlatforms names tags whose buildings are excluded from batch runs.
var skipPlatforms = map[string]struct{}{
	"needs_classification": {},
	"dead":                 {},
}

// browserPlatforms render their availability grids client-side and need a
// headless browser (or an LLM pass over the rendered page).
var browserPlatforms = map[string]struct{}{
	PlatformBozzuto:  {},
	PlatformGroupfox: {},
	PlatformLLM:      {},
}

// Skippable reports whether buildings with this tag are excluded from
// scraping: empty tag or a member of the skip set.
func Skippable(tag string) bool {
	if tag == "" {
		return true
	}
	_, skip := skipPlatforms[tag]
	return skip
}

// IsBrowser reports whether the tag's adapter is browser-backed. Browser
// platforms get 1 gate permit and the long courtesy pacing.
func IsBrowser(tag string) bool {
	_, ok := browserPlatforms[tag]
	return ok
}

// DefaultPermits returns the concurrency-gate permit count for a tag:
// browser adapters 1, HTTP adapters 2.
func DefaultPermits(tag string) int {
	if IsBrowser(tag) {
		return 1
	}
	return 2
}

// DefaultPacing returns the post-scrape courtesy delay for a tag. This is
// politeness toward the target site, not a concurrency mechanism.
func DefaultPacing(tag string) time.Duration {
	if IsBrowser(tag) {
		return time.Second
	}
	return 200 * time.Millisecond
}

// Config carries the shared resources adapters are built from.
type Config struct {
	// HTTPClient is shared by all HTTP adapters. Nil uses a 30 s client.
	HTTPClient *http.Client
	// UserAgent is sent on every HTTP fetch.
	UserAgent string
	// GenAIAPIKey enables the llm adapter. Empty leaves the tag registered
	// with an adapter that fails with a configuration error.
	GenAIAPIKey string
	// BrowserControlURL points an already-launched headless browser;
	// empty lets the rod launcher manage one per invocation.
	BrowserControlURL string
}

// Registry is the single source of truth for what runs for which platform.
// Built once at process start; read-only afterwards. No other module may
// hold the tag→adapter map.
type Registry struct {
	adapters map[string]Adapter
}

// NewRegistry builds the static tag→adapter map.
func NewRegistry(cfg Config) *Registry {
	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	f := &fetcher{client: client, userAgent: cfg.UserAgent}

	return &Registry{adapters: map[string]Adapter{
		PlatformRentcafe: &rentcafeAdapter{fetch: f},
		PlatformPPM:      &ppmAdapter{fetch: f},
		PlatformFunnel:   &funnelAdapter{fetch: f},
		PlatformRealpage: &realpageAdapter{fetch: f},
		PlatformAppfolio: &appfolioAdapter{fetch: f},
		PlatformSightmap: &sightmapAdapter{fetch: f},
		PlatformEntrata:  &entrataAdapter{fetch: f},
		PlatformMRI:      &mriAdapter{fetch: f},
		PlatformBozzuto:  &browserAdapter{controlURL: cfg.BrowserControlURL, extract: bozzutoExtractJS},
		PlatformGroupfox: &browserAdapter{controlURL: cfg.BrowserControlURL, extract: groupfoxExtractJS},
		PlatformLLM:      &llmAdapter{fetch: f, apiKey: cfg.GenAIAPIKey},
	}}
}

// Adapter resolves the adapter for a tag. The second return is false for
// unknown tags; the runner treats that as a scrape failure, never a panic.
func (r *Registry) Adapter(tag string) (Adapter, bool) {
	a, ok := r.adapters[tag]
	return a, ok
}

// Tags returns every registered platform tag.
func (r *Registry) Tags() []string {
	out := make([]string, 0, len(r.adapters))
	for tag := range r.adapters {
		out = append(out, tag)
	}
	return out
}
