package extract

import (
	"testing"

	"vivareal_scraper/config"
	"vivareal_scraper/models"
)

func TestLocation_FullListing(t *testing.T) {
	doc := fixtureDoc(t, "listing_full.html")
	loc := Location(doc, fullPageURL, config.DefaultProfile())

	if loc.Street != "Rua das Flores" {
		t.Fatalf("expected street Rua das Flores, got %q", loc.Street)
	}
	if loc.Number != "123" {
		t.Fatalf("expected number 123, got %q", loc.Number)
	}
	if loc.Neighborhood != "Jardim Paulista" {
		t.Fatalf("expected neighborhood Jardim Paulista, got %q", loc.Neighborhood)
	}
	if loc.City != "São Paulo" {
		t.Fatalf("expected city São Paulo, got %q", loc.City)
	}
	if loc.Zipcode != "01415-001" {
		t.Fatalf("expected zipcode 01415-001, got %q", loc.Zipcode)
	}
	if loc.MapLink != "https://www.google.com/maps?q=-23.561,-46.656" {
		t.Fatalf("unexpected map link %q", loc.MapLink)
	}
	if loc.Provenance != models.ProvenanceDeterministic {
		t.Fatalf("expected deterministic provenance, got %q", loc.Provenance)
	}
}

func TestLocation_SparseListing(t *testing.T) {
	doc := fixtureDoc(t, "listing_sparse.html")
	loc := Location(doc, sparsePageURL, config.DefaultProfile())

	if loc.City != "" {
		t.Fatalf("expected no city, got %q", loc.City)
	}
	// The sitemap link is the only map-ish anchor on the page and must
	// not be taken for a map link.
	if loc.MapLink != "" {
		t.Fatalf("expected no map link, got %q", loc.MapLink)
	}
	if !NeedsLocationFallback(loc, 3) {
		t.Fatalf("expected fallback to be needed")
	}
}

func TestAcceptMapLink(t *testing.T) {
	p := config.DefaultProfile()

	cases := []struct {
		raw    string
		want   string
		accept bool
	}{
		{"https://www.google.com/maps?q=-23.5,-46.6", "https://www.google.com/maps?q=-23.5,-46.6", true},
		{"//www.google.com/maps/place/x", "https://www.google.com/maps/place/x", true},
		{"https://maps.google.com.br/?q=x", "https://maps.google.com.br/?q=x", true},
		{"https://tiles.example.com/embed?lat=-23.5&lng=-46.6", "https://tiles.example.com/embed?lat=-23.5&lng=-46.6", true},
		{"/mapa-do-site", "", false},
		{"https://www.vivareal.com.br/mapa-do-site", "", false},
		{"https://www.vivareal.com.br/sitemap.xml", "", false},
		{"/imovel/relativo", "", false},
		{"https://example.com/sobre", "", false},
		{"", "", false},
	}

	for _, tc := range cases {
		got, accepted := AcceptMapLink(tc.raw, p)
		if accepted != tc.accept {
			t.Fatalf("AcceptMapLink(%q): accepted=%v, want %v", tc.raw, accepted, tc.accept)
		}
		if got != tc.want {
			t.Fatalf("AcceptMapLink(%q): got %q, want %q", tc.raw, got, tc.want)
		}
	}
}

func TestLocation_ZipcodeNeedsLabelOrHyphen(t *testing.T) {
	p := config.DefaultProfile()

	// An unlabeled 8-digit run is a listing code, not a CEP.
	doc, err := Parse(`<html><head><title>Casa à venda | Viva Real</title></head>
		<body><p>Referência do imóvel: 45381330</p></body></html>`)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if loc := Location(doc, sparsePageURL, p); loc.Zipcode != "" {
		t.Fatalf("bare digit run taken as zipcode: %q", loc.Zipcode)
	}

	// Labeled form without a hyphen is accepted.
	doc, err = Parse(`<html><head><title>Casa à venda | Viva Real</title></head>
		<body><p>Referência do imóvel: 45381330</p><p>CEP: 04538133</p></body></html>`)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if loc := Location(doc, sparsePageURL, p); loc.Zipcode != "04538-133" {
		t.Fatalf("expected labeled zipcode 04538-133, got %q", loc.Zipcode)
	}

	// Hyphenated form is accepted without a label.
	doc, err = Parse(`<html><head><title>Casa à venda | Viva Real</title></head>
		<body><p>Endereço próximo ao código postal 04538-133</p></body></html>`)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if loc := Location(doc, sparsePageURL, p); loc.Zipcode != "04538-133" {
		t.Fatalf("expected hyphenated zipcode 04538-133, got %q", loc.Zipcode)
	}
}

func TestCityValid(t *testing.T) {
	if CityValid("SP", 3) {
		t.Fatalf("two-letter city should be invalid")
	}
	if !CityValid("Itu", 3) {
		t.Fatalf("three-letter city should be valid")
	}
	if !CityValid("São Paulo", 3) {
		t.Fatalf("accented city should be valid")
	}
	if CityValid("  ", 3) {
		t.Fatalf("whitespace city should be invalid")
	}
}

func TestSynthesizeMapLink(t *testing.T) {
	full := &models.Location{
		Street:       "Rua das Flores",
		Number:       "123",
		Neighborhood: "Jardim Paulista",
		City:         "São Paulo",
	}
	link := SynthesizeMapLink(full)
	if link == "" {
		t.Fatalf("expected a synthesized link")
	}
	if want := "https://www.google.com/maps/search/?api=1&query="; len(link) <= len(want) || link[:len(want)] != want {
		t.Fatalf("unexpected link prefix: %q", link)
	}

	partial := &models.Location{Street: "Rua das Flores", City: "São Paulo"}
	if got := SynthesizeMapLink(partial); got != "" {
		t.Fatalf("partial address must not synthesize, got %q", got)
	}
}
