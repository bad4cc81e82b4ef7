package identity

import (
	"testing"

	"vivareal_scraper/models"
)

func intPtr(v int) *int { return &v }

func TestNormalizeAddress(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Rua das Flores, 123", "r das flores 123"},
		{"Avenida Paulista", "av paulista"},
		{"AVENIDA Brasil", "av brasil"},
		{"Praça da Sé", "pc da se"},
		{"Travessa São João", "tv sao joao"},
		{"Jardim Paulista", "jd paulista"},
		{"  Rua   Augusta  ", "r augusta"},
		{"Rua Conceição, Bloco B, 4º Andar", "r conceicao bl b 4 and"},
		// "rural" must not become "rual"; abbreviation is whole-word only.
		{"Estrada Rural Velha", "est rural velha"},
		{"", ""},
	}
	for _, tt := range tests {
		if got := NormalizeAddress(tt.in); got != tt.want {
			t.Fatalf("NormalizeAddress(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func baseListing() *models.Listing {
	return &models.Listing{
		PropertyType: "Apartamento",
		Bedrooms:     intPtr(3),
		SizeM2:       intPtr(120),
		Location: models.Location{
			Street:       "Rua das Flores",
			Number:       "123",
			Neighborhood: "Jardim Paulista",
			City:         "São Paulo",
			Zipcode:      "01415-001",
		},
	}
}

func TestFingerprint_StableAcrossVariants(t *testing.T) {
	a := baseListing()
	fp := Fingerprint(a)
	if len(fp) != 32 {
		t.Fatalf("expected 32 hex chars, got %d: %q", len(fp), fp)
	}

	// Accent and abbreviation variants of the same property.
	b := baseListing()
	b.Location.Street = "R. das Flores"
	b.Location.Neighborhood = "Jd. Paulista"
	b.Location.City = "Sao Paulo"
	b.PropertyType = "APARTAMENTO"
	if got := Fingerprint(b); got != fp {
		t.Fatalf("variant spelling changed the fingerprint: %q vs %q", got, fp)
	}

	// Listing-site churn must not matter.
	c := baseListing()
	c.URL = "https://www.vivareal.com.br/imovel/outro-anuncio-id-555/"
	c.ListingCode = "555"
	c.Price = func() *float64 { v := 900000.0; return &v }()
	if got := Fingerprint(c); got != fp {
		t.Fatalf("non-identity fields changed the fingerprint: %q vs %q", got, fp)
	}
}

func TestFingerprint_DiffersOnAttributes(t *testing.T) {
	fp := Fingerprint(baseListing())

	other := baseListing()
	other.Bedrooms = intPtr(2)
	if Fingerprint(other) == fp {
		t.Fatalf("bedroom count change should alter the fingerprint")
	}

	other = baseListing()
	other.Location.Number = "125"
	if Fingerprint(other) == fp {
		t.Fatalf("street number change should alter the fingerprint")
	}

	other = baseListing()
	other.SizeM2 = nil
	if Fingerprint(other) == fp {
		t.Fatalf("missing area should alter the fingerprint")
	}
}
