package ai

import (
	"fmt"
	"strings"
	"testing"
	"unicode/utf8"

	"vivareal_scraper/models"
)

func TestParseResponse_ImageList(t *testing.T) {
	q := Query{Field: "images", Schema: SchemaImageList}
	raw := `["https://resizedimgs.vivareal.com/a.jpg", "https://resizedimgs.vivareal.com/b.jpg"]`

	res, err := ParseResponse(q, raw)
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	if len(res.URLs) != 2 {
		t.Fatalf("expected 2 urls, got %d", len(res.URLs))
	}
}

func TestParseResponse_FencedJSON(t *testing.T) {
	q := Query{Field: "images", Schema: SchemaImageList}
	raw := "```json\n[\"https://resizedimgs.vivareal.com/a.jpg\"]\n```"

	res, err := ParseResponse(q, raw)
	if err != nil {
		t.Fatalf("fenced response should parse: %v", err)
	}
	if len(res.URLs) != 1 {
		t.Fatalf("expected 1 url, got %d", len(res.URLs))
	}
}

func TestParseResponse_Location(t *testing.T) {
	q := Query{Field: "location", Schema: SchemaLocation}
	raw := `{"city": "Campinas", "neighborhood": "Cambuí", "street": "Rua Coelho Neto", "number": "45", "zipcode": "13024-130"}`

	res, err := ParseResponse(q, raw)
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	loc := res.Location
	if loc == nil {
		t.Fatalf("expected a location")
	}
	if loc.City != "Campinas" || loc.Neighborhood != "Cambuí" {
		t.Fatalf("unexpected location %+v", loc)
	}
	if loc.Provenance != models.ProvenanceAIFallback {
		t.Fatalf("expected ai-fallback provenance, got %q", loc.Provenance)
	}
}

func TestParseResponse_Malformed(t *testing.T) {
	cases := []struct {
		name string
		q    Query
		raw  string
	}{
		{"prose instead of json", Query{Field: "images", Schema: SchemaImageList}, "Here are the images you asked for."},
		{"object for image list", Query{Field: "images", Schema: SchemaImageList}, `{"images": []}`},
		{"array for location", Query{Field: "location", Schema: SchemaLocation}, `["Campinas"]`},
		{"empty", Query{Field: "images", Schema: SchemaImageList}, ""},
		{"unknown schema", Query{Field: "x", Schema: Schema("bogus")}, `{}`},
	}

	for _, tc := range cases {
		_, err := ParseResponse(tc.q, tc.raw)
		if err == nil {
			t.Fatalf("%s: expected an error", tc.name)
		}
		ae, ok := models.AsAdapterError(err)
		if !ok {
			t.Fatalf("%s: expected AdapterError, got %T", tc.name, err)
		}
		if ae.Kind != models.AdapterErrMalformed {
			t.Fatalf("%s: expected malformed kind, got %q", tc.name, ae.Kind)
		}
	}
}

func TestBuildImageQuery_Caps(t *testing.T) {
	var candidates []string
	for i := 0; i < 100; i++ {
		candidates = append(candidates, fmt.Sprintf("https://resizedimgs.vivareal.com/%d.jpg", i))
	}

	q := BuildImageQuery(candidates)
	if q.Schema != SchemaImageList || q.Field != "images" {
		t.Fatalf("unexpected query shape: %+v", q)
	}
	if strings.Contains(q.Prompt, "/30.jpg") {
		t.Fatalf("prompt should be capped at %d candidates", maxImageCandidates)
	}
	if !strings.Contains(q.Prompt, "/29.jpg") {
		t.Fatalf("expected the last allowed candidate in the prompt")
	}
}

func TestBuildLocationQuery_Caps(t *testing.T) {
	html := strings.Repeat("x", maxHTMLExcerpt+5000)
	q := BuildLocationQuery(html)
	if len(q.Prompt) > maxHTMLExcerpt+1000 {
		t.Fatalf("prompt not capped: %d bytes", len(q.Prompt))
	}
	if q.Schema != SchemaLocation {
		t.Fatalf("unexpected schema %q", q.Schema)
	}
}

func TestBuildLocationQuery_CutOnRuneBoundary(t *testing.T) {
	// One ASCII byte shifts every two-byte rune off the cut offset, so
	// a byte-index slice would split a rune in half.
	html := "x" + strings.Repeat("é", maxHTMLExcerpt)
	q := BuildLocationQuery(html)
	if !utf8.ValidString(q.Prompt) {
		t.Fatalf("excerpt cut produced invalid UTF-8")
	}
}
