package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/google/uuid"

	"vivareal_scraper/ai"
	"vivareal_scraper/config"
	"vivareal_scraper/extract"
	"vivareal_scraper/models"
	"vivareal_scraper/validate"
)

// Loader produces rendered markup for a listing URL. The browser loader
// implements it for live pages, the file loader for saved ones.
type Loader interface {
	Load(ctx context.Context, url string) (*models.Page, error)
}

// Orchestrator runs the extraction stages over one page at a time.
// Stages are strictly ordered; AI fallback failures degrade the result
// instead of aborting the run.
type Orchestrator struct {
	cfg     *config.Config
	profile *config.SiteProfile
	loader  Loader
	adapter ai.Adapter
}

func New(cfg *config.Config, loader Loader, adapter ai.Adapter) *Orchestrator {
	return &Orchestrator{
		cfg:     cfg,
		profile: cfg.Profile(),
		loader:  loader,
		adapter: adapter,
	}
}

// Run loads the page and extracts it. Loader failures are terminal and
// come back as *models.PageLoadError.
func (o *Orchestrator) Run(ctx context.Context, url string) (*models.Listing, error) {
	url, err := validate.PageURL(url)
	if err != nil {
		return nil, &models.PageLoadError{URL: url, Err: err}
	}

	page, err := o.loader.Load(ctx, url)
	if err != nil {
		var ple *models.PageLoadError
		if errors.As(err, &ple) {
			return nil, err
		}
		return nil, &models.PageLoadError{URL: url, Err: err}
	}
	return o.Extract(ctx, page)
}

// Extract runs the stages over already rendered markup: fields, images,
// location, then validation. The only terminal outcomes are unusable
// markup and a listing with none of the essential fields.
func (o *Orchestrator) Extract(ctx context.Context, page *models.Page) (*models.Listing, error) {
	if page == nil || len(page.HTML) == 0 {
		return nil, &models.PageLoadError{URL: pageURL(page), Err: fmt.Errorf("empty page")}
	}

	doc, err := extract.Parse(page.HTML)
	if err != nil {
		return nil, &models.PageLoadError{URL: page.URL, Err: fmt.Errorf("parse html: %w", err)}
	}

	listing := &models.Listing{
		ID:        uuid.New(),
		URL:       page.URL,
		ScrapedAt: time.Now().UTC(),
	}

	fields := extract.Fields(doc, page.URL, o.profile)
	listing.PropertyType = fields.PropertyType
	listing.Modality = fields.Modality
	listing.Price = fields.Price
	listing.SizeM2 = fields.SizeM2
	listing.Bedrooms = fields.Bedrooms
	listing.Suites = fields.Suites
	listing.Bathrooms = fields.Bathrooms
	listing.Garage = fields.Garage
	listing.Description = fields.Description
	listing.AdvertiserCode = fields.AdvertiserCode
	listing.ListingCode = fields.ListingCode

	listing.Images = o.extractImages(ctx, doc, page, listing)
	listing.Location = o.extractLocation(ctx, doc, page, listing)

	validate.Listing(listing)
	if err := validate.Complete(listing); err != nil {
		return nil, err
	}
	return listing, nil
}

// extractImages collects the deterministic gallery and tops it up from
// the AI fallback when the filtered set is too small. Deterministic
// images always come first and the combined set stays capped.
func (o *Orchestrator) extractImages(ctx context.Context, doc *goquery.Document, page *models.Page, listing *models.Listing) []models.Image {
	max := o.cfg.Extraction.MaxImages
	result := extract.Images(doc, page.URL, o.profile, max)

	images := make([]models.Image, 0, max)
	seen := make(map[string]struct{}, max)
	for _, u := range result.Images {
		images = append(images, models.Image{URL: u, Provenance: models.ProvenanceDeterministic})
		seen[u] = struct{}{}
	}

	if len(images) >= o.cfg.Extraction.MinImages || o.adapter == nil {
		return images
	}

	res, err := o.queryAdapter(ctx, ai.BuildImageQuery(result.Candidates))
	if err != nil {
		o.degrade(listing, "images", err)
		return images
	}

	for _, u := range extract.FilterCandidates(res.URLs, o.profile, max) {
		if len(images) >= max {
			break
		}
		if _, dup := seen[u]; dup {
			continue
		}
		seen[u] = struct{}{}
		images = append(images, models.Image{URL: u, Provenance: models.ProvenanceAIFallback})
	}
	return images
}

// extractLocation runs the deterministic pass, falls back to the AI
// when the city is missing or implausibly short or no acceptable map
// link was found, and synthesizes a map link last, only from a
// complete street address.
func (o *Orchestrator) extractLocation(ctx context.Context, doc *goquery.Document, page *models.Page, listing *models.Listing) models.Location {
	loc := extract.Location(doc, page.URL, o.profile)

	if extract.NeedsLocationFallback(loc, o.cfg.Extraction.MinCityLen) && o.adapter != nil {
		res, err := o.queryAdapter(ctx, ai.BuildLocationQuery(page.HTML))
		if err != nil {
			o.degrade(listing, "city", err)
		} else if res.Location != nil {
			loc = mergeLocation(loc, res.Location, o.cfg.Extraction.MinCityLen)
		}
	}

	if !extract.CityValid(loc.City, o.cfg.Extraction.MinCityLen) {
		loc.City = ""
	}

	loc.Zipcode = validate.NormalizeZipcode(loc.Zipcode)
	if loc.MapLink == "" {
		loc.MapLink = extract.SynthesizeMapLink(loc)
	}
	return *loc
}

// queryAdapter applies the per-stage timeout to one fallback call.
func (o *Orchestrator) queryAdapter(ctx context.Context, q ai.Query) (*ai.Result, error) {
	ctx, cancel := context.WithTimeout(ctx, o.cfg.Extraction.StageTimeout)
	defer cancel()
	return o.adapter.Extract(ctx, q)
}

// degrade records a failed AI fallback as a low-confidence issue. AI
// failures never abort a run.
func (o *Orchestrator) degrade(listing *models.Listing, field string, err error) {
	note := "ai fallback failed"
	if ae, ok := models.AsAdapterError(err); ok {
		note = fmt.Sprintf("ai fallback failed (%s)", ae.Kind)
	}
	log.Printf("Degrading %s for %s: %v", field, listing.URL, err)
	listing.Issues = append(listing.Issues, models.ValidationIssue{
		Field: field,
		Kind:  models.IssueLowConfidence,
		Note:  note,
	})
}

// mergeLocation fills empty deterministic fields from the AI result.
// Deterministic values win; the AI never overwrites one.
func mergeLocation(det, fallback *models.Location, minCityLen int) *models.Location {
	merged := *det
	usedFallback := false

	if !extract.CityValid(merged.City, minCityLen) && extract.CityValid(fallback.City, minCityLen) {
		merged.City = fallback.City
		usedFallback = true
	}
	if merged.Neighborhood == "" && fallback.Neighborhood != "" {
		merged.Neighborhood = fallback.Neighborhood
		usedFallback = true
	}
	if merged.Street == "" && fallback.Street != "" {
		merged.Street = fallback.Street
		usedFallback = true
	}
	if merged.Number == "" && fallback.Number != "" {
		merged.Number = fallback.Number
		usedFallback = true
	}
	if merged.Zipcode == "" && fallback.Zipcode != "" {
		merged.Zipcode = fallback.Zipcode
		usedFallback = true
	}
	if usedFallback {
		merged.Provenance = models.ProvenanceAIFallback
	}
	return &merged
}

// AIFallbacks counts how many stages leaned on the AI, successful or
// not, for run bookkeeping.
func AIFallbacks(l *models.Listing) int {
	n := 0
	for _, img := range l.Images {
		if img.Provenance == models.ProvenanceAIFallback {
			n++
			break
		}
	}
	if l.Location.Provenance == models.ProvenanceAIFallback {
		n++
	}
	for _, issue := range l.Issues {
		if issue.Kind == models.IssueLowConfidence {
			n++
		}
	}
	return n
}

func pageURL(p *models.Page) string {
	if p == nil {
		return ""
	}
	return p.URL
}
