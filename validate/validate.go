package validate

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"vivareal_scraper/models"
)

var whitespaceRegex = regexp.MustCompile(`\s+`)

// Bounds for the numeric sanity checks. Values outside these keep their
// slot but get flagged as out of range.
const (
	maxPrice  = 1_000_000_000
	maxAreaM2 = 100_000
	maxRooms  = 50
)

// NormalizeText collapses runs of whitespace and trims the ends.
func NormalizeText(s string) string {
	return strings.TrimSpace(whitespaceRegex.ReplaceAllString(s, " "))
}

// NormalizeZipcode formats a Brazilian CEP as XXXXX-XXX. Anything that
// does not reduce to eight digits normalizes to empty.
func NormalizeZipcode(s string) string {
	var digits strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			digits.WriteRune(r)
		}
	}
	d := digits.String()
	if len(d) != 8 {
		return ""
	}
	return d[:5] + "-" + d[5:]
}

// PageURL checks that a target URL is absolute http(s) and returns it
// normalized.
func PageURL(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("parse url %q: %w", raw, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", fmt.Errorf("url %q is not absolute http(s)", raw)
	}
	if u.Host == "" {
		return "", fmt.Errorf("url %q has no host", raw)
	}
	return u.String(), nil
}

// Listing appends missing and out-of-range issues for the core fields.
// It never clears a field; flagged values stay on the listing.
func Listing(l *models.Listing) {
	if l.Price == nil {
		addIssue(l, "price", models.IssueMissing, "no price found")
	} else if *l.Price <= 0 || *l.Price > maxPrice {
		addIssue(l, "price", models.IssueOutOfRange, fmt.Sprintf("price %.2f outside plausible range", *l.Price))
	}

	if l.PropertyType == "" {
		addIssue(l, "property_type", models.IssueMissing, "no property type found")
	}
	if l.Modality == "" {
		addIssue(l, "modality", models.IssueMissing, "no sale/rental modality found")
	}

	if l.SizeM2 == nil {
		addIssue(l, "size_m2", models.IssueMissing, "no area found")
	} else if *l.SizeM2 <= 0 || *l.SizeM2 > maxAreaM2 {
		addIssue(l, "size_m2", models.IssueOutOfRange, fmt.Sprintf("area %dm² outside plausible range", *l.SizeM2))
	}

	checkCount(l, "bedrooms", l.Bedrooms)
	checkCount(l, "suites", l.Suites)
	checkCount(l, "bathrooms", l.Bathrooms)
	checkCount(l, "garage", l.Garage)

	if l.Location.City == "" {
		addIssue(l, "city", models.IssueMissing, "no city found")
	}
	if len(l.Images) == 0 {
		addIssue(l, "images", models.IssueMissing, "no images found")
	}
	if l.Description == "" {
		addIssue(l, "description", models.IssueMissing, "no description found")
	}
}

// Complete returns an IncompleteListingError when the listing has none
// of the fields that make it identifiable as a real offer. A single
// present field among price, type and area keeps the listing alive.
func Complete(l *models.Listing) error {
	var missing []string
	if l.Price == nil {
		missing = append(missing, "price")
	}
	if l.PropertyType == "" {
		missing = append(missing, "property_type")
	}
	if l.SizeM2 == nil {
		missing = append(missing, "size_m2")
	}
	if len(missing) == 3 {
		return &models.IncompleteListingError{Missing: missing}
	}
	return nil
}

func checkCount(l *models.Listing, field string, v *int) {
	if v == nil {
		addIssue(l, field, models.IssueMissing, fmt.Sprintf("no %s count found", field))
		return
	}
	if *v < 0 || *v > maxRooms {
		addIssue(l, field, models.IssueOutOfRange, fmt.Sprintf("%s count %d outside plausible range", field, *v))
	}
}

func addIssue(l *models.Listing, field string, kind models.IssueKind, note string) {
	l.Issues = append(l.Issues, models.ValidationIssue{Field: field, Kind: kind, Note: note})
}
