package models

import (
	"time"

	"github.com/google/uuid"
)

// Page is the rendered listing page handed to the pipeline.
// It is owned by the caller and read-only to the pipeline.
type Page struct {
	URL  string
	HTML string
}

// Provenance records whether a value came out of the deterministic
// extractors or out of the AI fallback.
type Provenance string

const (
	ProvenanceDeterministic Provenance = "deterministic"
	ProvenanceAIFallback    Provenance = "ai-fallback"
)

// FieldValue is a single extracted attribute plus where it came from.
type FieldValue struct {
	Value      string     `json:"value"`
	Provenance Provenance `json:"provenance"`
	Note       string     `json:"note,omitempty"`
}

// Image is one listing photo URL with provenance.
type Image struct {
	URL        string     `json:"url"`
	Provenance Provenance `json:"provenance"`
}

// Location groups the address fields of a listing. MapLink stays empty
// until a link is either accepted from the page or synthesized from the
// address components.
type Location struct {
	City         string     `json:"city"`
	Neighborhood string     `json:"neighborhood"`
	Street       string     `json:"street"`
	Number       string     `json:"number"`
	Zipcode      string     `json:"zipcode"`
	MapLink      string     `json:"map_link"`
	Provenance   Provenance `json:"provenance"`
}

// Listing is the final structured record for one page. It is assembled
// once per pipeline run and immutable after validation.
type Listing struct {
	ID        uuid.UUID `json:"id"`
	URL       string    `json:"url"`
	ScrapedAt time.Time `json:"scraped_at"`

	PropertyType string   `json:"property_type"`
	Modality     string   `json:"modality"`
	Price        *float64 `json:"price"`
	SizeM2       *int     `json:"size_m2"`
	Bedrooms     *int     `json:"bedrooms"`
	Suites       *int     `json:"suites"`
	Bathrooms    *int     `json:"bathrooms"`
	Garage       *int     `json:"garage"`

	Location    Location `json:"location"`
	Description string   `json:"description"`
	Images      []Image  `json:"images"`

	AdvertiserCode string `json:"advertiser_code,omitempty"`
	ListingCode    string `json:"listing_code,omitempty"`

	Issues []ValidationIssue `json:"issues"`
}

// ImageURLs returns the image URLs in order, without provenance.
func (l *Listing) ImageURLs() []string {
	urls := make([]string, 0, len(l.Images))
	for _, img := range l.Images {
		urls = append(urls, img.URL)
	}
	return urls
}

// HasIssue reports whether the listing carries an issue of the given
// kind for the given field.
func (l *Listing) HasIssue(field string, kind IssueKind) bool {
	for _, issue := range l.Issues {
		if issue.Field == field && issue.Kind == kind {
			return true
		}
	}
	return false
}

// IssueKind classifies a validation issue.
type IssueKind string

const (
	IssueMissing       IssueKind = "missing"
	IssueOutOfRange    IssueKind = "out-of-range"
	IssueLowConfidence IssueKind = "low-confidence"
)

// ValidationIssue flags a field without dropping it. Issues ride on the
// listing so the caller can decide how much to trust each field.
type ValidationIssue struct {
	Field string    `json:"field"`
	Kind  IssueKind `json:"kind"`
	Note  string    `json:"note"`
}
