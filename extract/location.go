package extract

import (
	"net/url"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
	"vivareal_scraper/config"
	"vivareal_scraper/models"
	"vivareal_scraper/validate"
)

var (
	// Full "na Rua X, 123 - Bairro em Cidade" shape from listing titles.
	titleAddressRegex = regexp.MustCompile(`(?i)(?:na|no)\s+((?:Rua|Avenida|Av\.?|Alameda|Travessa|Estrada|Rodovia|Praça)\s+[^,]+),\s*(\d+[A-Za-z]?)\s*[-,]\s*([^,\-|]+?)\s+em\s+([A-ZÀ-Úa-zà-ú][^,\-|]+)`)
	titleCityRegex    = regexp.MustCompile(`(?i)\bem\s+([A-ZÀ-Ú][\wÀ-ú' ]+?)(?:\s*[-|,.]|$)`)
	// A bare digit run is only taken as a CEP when labeled as one;
	// anywhere else the hyphenated form is required, so listing codes
	// and phone fragments never pass for a zipcode.
	cepLabeledRegex = regexp.MustCompile(`(?i)\bCEP\W{0,3}(\d{5})-?(\d{3})\b`)
	cepRegex        = regexp.MustCompile(`\b(\d{5})-(\d{3})\b`)
)

// Location runs the deterministic location extraction: title patterns
// first, then location-ish elements, then the map link selectors.
func Location(doc *goquery.Document, pageURL string, p *config.SiteProfile) *models.Location {
	loc := &models.Location{Provenance: models.ProvenanceDeterministic}
	title := strings.TrimSpace(doc.Find("title").First().Text())

	if m := titleAddressRegex.FindStringSubmatch(title); m != nil {
		loc.Street = strings.TrimSpace(m[1])
		loc.Number = strings.TrimSpace(m[2])
		loc.Neighborhood = strings.TrimSpace(m[3])
		loc.City = strings.TrimSpace(m[4])
	}

	if loc.City == "" {
		if m := titleCityRegex.FindStringSubmatch(title); m != nil {
			loc.City = strings.TrimSpace(m[1])
		}
	}

	if loc.City == "" {
		doc.Find("address, [class*='location'], [class*='address'], [data-testid*='location']").EachWithBreak(func(i int, s *goquery.Selection) bool {
			text := strings.TrimSpace(s.Text())
			if text == "" || utf8.RuneCountInString(text) > 120 {
				return true
			}
			loc.City = cityFromText(text)
			return loc.City == ""
		})
	}

	body := doc.Find("body").Text()
	if m := cepLabeledRegex.FindStringSubmatch(body); m != nil {
		loc.Zipcode = validate.NormalizeZipcode(m[1] + m[2])
	} else if m := cepRegex.FindStringSubmatch(body); m != nil {
		loc.Zipcode = validate.NormalizeZipcode(m[1] + m[2])
	}

	loc.MapLink = mapLink(doc, pageURL, p)
	return loc
}

// cityFromText pulls a plausible city name out of a short location
// blob, dropping a trailing state abbreviation ("São Paulo - SP").
func cityFromText(text string) string {
	if idx := strings.LastIndex(text, ","); idx >= 0 {
		text = text[idx+1:]
	}
	if idx := strings.Index(text, " - "); idx >= 0 {
		text = text[:idx]
	}
	return strings.TrimSpace(text)
}

// mapLink returns the first accepted map link found via the profile's
// selectors, or empty when none qualifies.
func mapLink(doc *goquery.Document, pageURL string, p *config.SiteProfile) string {
	found := ""
	for _, selector := range p.MapSelectors {
		doc.Find(selector).EachWithBreak(func(i int, s *goquery.Selection) bool {
			raw, ok := s.Attr("href")
			if !ok {
				raw, ok = s.Attr("src")
			}
			if !ok {
				return true
			}
			if link, accepted := AcceptMapLink(raw, p); accepted {
				found = link
				return false
			}
			return true
		})
		if found != "" {
			return found
		}
	}
	return ""
}

// AcceptMapLink decides whether a candidate href is a real map link.
// Only absolute Google Maps URLs or URLs carrying both lat and lng
// parameters pass; site navigation such as sitemap pages never does.
func AcceptMapLink(raw string, p *config.SiteProfile) (string, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", false
	}
	if strings.HasPrefix(raw, "//") {
		raw = "https:" + raw
	}
	lower := strings.ToLower(raw)
	for _, tok := range p.SitemapTokens {
		if strings.Contains(lower, tok) {
			return "", false
		}
	}
	if !strings.HasPrefix(lower, "http://") && !strings.HasPrefix(lower, "https://") {
		return "", false
	}
	if strings.Contains(lower, "google.com/maps") || strings.Contains(lower, "maps.google.") {
		return raw, true
	}
	if strings.Contains(lower, "lat=") && strings.Contains(lower, "lng=") {
		return raw, true
	}
	return "", false
}

// CityValid reports whether a city value meets the minimum length, in
// runes so accented names count correctly.
func CityValid(city string, minLen int) bool {
	return utf8.RuneCountInString(strings.TrimSpace(city)) >= minLen
}

// NeedsLocationFallback reports whether the deterministic result is too
// weak to keep and the AI pass should run: the city is missing or
// implausibly short, or no acceptable map link was found.
func NeedsLocationFallback(loc *models.Location, minCityLen int) bool {
	return loc == nil || !CityValid(loc.City, minCityLen) || loc.MapLink == ""
}

// SynthesizeMapLink builds a Google Maps search link from a complete
// street address. All four components must be present; a partial
// address synthesizes nothing.
func SynthesizeMapLink(loc *models.Location) string {
	if loc == nil || loc.Street == "" || loc.Number == "" || loc.Neighborhood == "" || loc.City == "" {
		return ""
	}
	query := strings.Join([]string{loc.Street, loc.Number, loc.Neighborhood, loc.City}, ", ")
	return "https://www.google.com/maps/search/?api=1&query=" + url.QueryEscape(query)
}
