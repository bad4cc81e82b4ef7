package ai

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"unicode/utf8"

	"vivareal_scraper/models"
)

// Schema names the response shape a query expects back.
type Schema string

const (
	SchemaImageList Schema = "image_list"
	SchemaLocation  Schema = "location"
)

// Limits on what a fallback query may carry. Keeping prompts bounded
// keeps cost and latency bounded.
const (
	maxImageCandidates = 30
	maxHTMLExcerpt     = 15000
)

// Query is one bounded request to the AI adapter.
type Query struct {
	Field  string
	Prompt string
	Schema Schema
}

// Result is the parsed, schema-checked adapter response. Exactly one of
// the payload fields is set, matching the query schema.
type Result struct {
	URLs     []string
	Location *models.Location
}

// Adapter answers fallback queries. Implementations return either a
// valid Result or an *models.AdapterError; no other error types cross
// this boundary.
type Adapter interface {
	Extract(ctx context.Context, q Query) (*Result, error)
}

// BuildImageQuery asks which of the raw candidate URLs are actual
// listing photos. The candidate list is capped before prompting.
func BuildImageQuery(candidates []string) Query {
	if len(candidates) > maxImageCandidates {
		candidates = candidates[:maxImageCandidates]
	}
	var b strings.Builder
	b.WriteString("You are filtering image URLs scraped from a Brazilian real-estate listing page.\n")
	b.WriteString("Return ONLY a JSON array of the URLs that are photos of the property itself.\n")
	b.WriteString("Exclude logos, banners, icons, agent portraits and map tiles.\n\nCandidates:\n")
	for _, u := range candidates {
		fmt.Fprintf(&b, "- %s\n", u)
	}
	return Query{Field: "images", Prompt: b.String(), Schema: SchemaImageList}
}

// BuildLocationQuery asks for the listing address from a page excerpt.
// The excerpt cut lands on a rune boundary so the prompt stays valid
// UTF-8.
func BuildLocationQuery(html string) Query {
	if len(html) > maxHTMLExcerpt {
		cut := maxHTMLExcerpt
		for cut > 0 && !utf8.RuneStart(html[cut]) {
			cut--
		}
		html = html[:cut]
	}
	var b strings.Builder
	b.WriteString("Extract the address of the property from this Brazilian real-estate listing page.\n")
	b.WriteString(`Return ONLY a JSON object with the keys "city", "neighborhood", "street", "number", "zipcode".`)
	b.WriteString("\nUse an empty string for anything the page does not state. Do not guess.\n\nPage:\n")
	b.WriteString(html)
	return Query{Field: "location", Prompt: b.String(), Schema: SchemaLocation}
}

type locationPayload struct {
	City         string `json:"city"`
	Neighborhood string `json:"neighborhood"`
	Street       string `json:"street"`
	Number       string `json:"number"`
	Zipcode      string `json:"zipcode"`
}

// ParseResponse checks a raw model response against the query schema.
// Markdown code fences around the JSON are tolerated; anything else
// off-schema is a malformed-response adapter error.
func ParseResponse(q Query, raw string) (*Result, error) {
	raw = stripFences(raw)
	if raw == "" {
		return nil, malformed(q.Field, fmt.Errorf("empty response"))
	}

	switch q.Schema {
	case SchemaImageList:
		var urls []string
		if err := json.Unmarshal([]byte(raw), &urls); err != nil {
			return nil, malformed(q.Field, err)
		}
		return &Result{URLs: urls}, nil

	case SchemaLocation:
		var payload locationPayload
		if err := json.Unmarshal([]byte(raw), &payload); err != nil {
			return nil, malformed(q.Field, err)
		}
		return &Result{Location: &models.Location{
			City:         strings.TrimSpace(payload.City),
			Neighborhood: strings.TrimSpace(payload.Neighborhood),
			Street:       strings.TrimSpace(payload.Street),
			Number:       strings.TrimSpace(payload.Number),
			Zipcode:      strings.TrimSpace(payload.Zipcode),
			Provenance:   models.ProvenanceAIFallback,
		}}, nil
	}
	return nil, malformed(q.Field, fmt.Errorf("unknown schema %q", q.Schema))
}

// stripFences removes a surrounding markdown code fence, with or
// without a language tag.
func stripFences(raw string) string {
	raw = strings.TrimSpace(raw)
	if !strings.HasPrefix(raw, "```") {
		return raw
	}
	raw = strings.TrimPrefix(raw, "```json")
	raw = strings.TrimPrefix(raw, "```")
	raw = strings.TrimSuffix(strings.TrimSpace(raw), "```")
	return strings.TrimSpace(raw)
}

func malformed(field string, err error) error {
	return &models.AdapterError{Kind: models.AdapterErrMalformed, Field: field, Err: err}
}
