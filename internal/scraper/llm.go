package scraper

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"google.golang.org/genai"

	"github.com/aptscan/aptscan/internal/model"
)

// llmAdapter is the catch-all for buildings with no structured feed: fetch
// the availability page and have Gemini extract the unit records. Tagged
// buildings go through the same normalization gateway as every other
// platform, so hallucinated values still get rejected record-by-record.
type llmAdapter struct {
	fetch  *fetcher
	apiKey string

	once    sync.Once
	client  *genai.Client
	initErr error
}

const llmModel = "gemini-2.0-flash"

const llmPrompt = `Extract every available apartment unit from the page text below.
Respond with ONLY a JSON array. Each element must have exactly these keys:
"unit_number" (string), "bed_type" (string, e.g. "studio", "1br"),
"rent" (string, e.g. "$2,100"), "availability_date" (string),
and optionally "baths", "sqft", "floor_plan_name".
If no units are listed, respond with [].

PAGE TEXT:
`

func (a *llmAdapter) Scrape(ctx context.Context, target Target) ([]model.RawRecord, error) {
	if a.apiKey == "" {
		return nil, fmt.Errorf("llm: APTSCAN_GENAI_API_KEY not configured")
	}
	a.once.Do(func() {
		a.client, a.initErr = genai.NewClient(ctx, &genai.ClientConfig{APIKey: a.apiKey})
	})
	if a.initErr != nil {
		return nil, fmt.Errorf("llm: create client: %w", a.initErr)
	}

	page, err := a.fetch.get(ctx, target.URL, nil)
	if err != nil {
		return nil, err
	}

	text := stripTags(string(page))
	if len(text) > 60000 {
		text = text[:60000]
	}

	result, err := a.client.Models.GenerateContent(ctx, llmModel,
		genai.Text(llmPrompt+text), nil)
	if err != nil {
		return nil, fmt.Errorf("llm: generate for %s: %w", target.URL, err)
	}

	payload := strings.TrimSpace(result.Text())
	payload = strings.TrimPrefix(payload, "```json")
	payload = strings.TrimPrefix(payload, "```")
	payload = strings.TrimSuffix(payload, "```")

	var records []model.RawRecord
	if err := json.Unmarshal([]byte(strings.TrimSpace(payload)), &records); err != nil {
		return nil, fmt.Errorf("llm: decode extraction for %s: %w", target.URL, err)
	}
	return records, nil
}

// stripTags crudely flattens HTML to text for the prompt. Fidelity doesn't
// matter much; the model tolerates noise and the normalizer rejects garbage.
func stripTags(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	inTag := false
	for _, r := range s {
		switch {
		case r == '<':
			inTag = true
		case r == '>':
			inTag = false
			b.WriteByte(' ')
		case !inTag:
			b.WriteRune(r)
		}
	}
	return b.String()
}
