package extract

import (
	"encoding/json"
	"net/url"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"vivareal_scraper/config"
)

var scriptURLRegex = regexp.MustCompile(`https?://[^\s"'\\]+\.(?:jpg|jpeg|png|webp)`)

// ImageResult carries both the filtered gallery and the raw candidate
// pool. Candidates are what the AI fallback sees when the filtered set
// is too small.
type ImageResult struct {
	Images     []string
	Candidates []string
}

// Images collects photo URL candidates from gallery markup, JSON-LD
// blocks and inline scripts, then filters and dedupes them. Order
// follows document order and the result is capped at max entries.
func Images(doc *goquery.Document, pageURL string, p *config.SiteProfile, max int) *ImageResult {
	base, _ := url.Parse(pageURL)

	var candidates []string
	add := func(raw string) {
		raw = strings.TrimSpace(raw)
		if raw == "" {
			return
		}
		if resolved := resolveURL(base, raw); resolved != "" {
			candidates = append(candidates, resolved)
		}
	}

	for _, selector := range p.ImageSelectors {
		doc.Find(selector).Each(func(i int, s *goquery.Selection) {
			for _, attr := range []string{"src", "data-src", "data-lazy-src"} {
				if v, ok := s.Attr(attr); ok {
					add(v)
				}
			}
		})
	}

	doc.Find("script[type='application/ld+json']").Each(func(i int, s *goquery.Selection) {
		var payload any
		if err := json.Unmarshal([]byte(s.Text()), &payload); err != nil {
			return
		}
		for _, u := range jsonLDImages(payload) {
			add(u)
		}
	})

	doc.Find("script").Each(func(i int, s *goquery.Selection) {
		for _, m := range scriptURLRegex.FindAllString(s.Text(), -1) {
			add(m)
		}
	})

	filtered := make([]string, 0, len(candidates))
	seen := make(map[string]struct{}, len(candidates))
	for _, u := range candidates {
		if _, dup := seen[u]; dup {
			continue
		}
		seen[u] = struct{}{}
		if !isListingPhoto(u, p) {
			continue
		}
		filtered = append(filtered, u)
		if len(filtered) >= max {
			break
		}
	}

	return &ImageResult{Images: filtered, Candidates: dedupe(candidates)}
}

// FilterCandidates applies the same photo filter, dedupe and cap to an
// externally supplied URL list, such as an AI fallback response.
func FilterCandidates(urls []string, p *config.SiteProfile, max int) []string {
	out := make([]string, 0, len(urls))
	seen := make(map[string]struct{}, len(urls))
	for _, u := range urls {
		u = strings.TrimSpace(u)
		if _, dup := seen[u]; dup {
			continue
		}
		seen[u] = struct{}{}
		if !isListingPhoto(u, p) {
			continue
		}
		out = append(out, u)
		if len(out) >= max {
			break
		}
	}
	return out
}

// isListingPhoto keeps URLs that look like gallery photos: an http(s)
// URL on a known image host or carrying a known path marker, with none
// of the branding/agent keywords.
func isListingPhoto(u string, p *config.SiteProfile) bool {
	if !strings.HasPrefix(u, "http://") && !strings.HasPrefix(u, "https://") {
		return false
	}
	lower := strings.ToLower(u)
	for _, kw := range p.ExcludeKeywords {
		if strings.Contains(lower, kw) {
			return false
		}
	}
	for _, host := range p.ImageHosts {
		if strings.Contains(lower, host) {
			return true
		}
	}
	for _, marker := range p.ImageMarkers {
		if strings.Contains(lower, marker) {
			return true
		}
	}
	return false
}

// jsonLDImages walks an arbitrary JSON-LD payload and pulls every
// string reachable under an "image" key, at any nesting depth.
func jsonLDImages(payload any) []string {
	var out []string
	switch v := payload.(type) {
	case map[string]any:
		for key, value := range v {
			if key == "image" {
				out = append(out, imageStrings(value)...)
				continue
			}
			out = append(out, jsonLDImages(value)...)
		}
	case []any:
		for _, item := range v {
			out = append(out, jsonLDImages(item)...)
		}
	}
	return out
}

func imageStrings(value any) []string {
	switch v := value.(type) {
	case string:
		return []string{v}
	case []any:
		var out []string
		for _, item := range v {
			out = append(out, imageStrings(item)...)
		}
		return out
	case map[string]any:
		if u, ok := v["url"].(string); ok {
			return []string{u}
		}
	}
	return nil
}

func resolveURL(base *url.URL, raw string) string {
	if strings.HasPrefix(raw, "//") {
		return "https:" + raw
	}
	if strings.HasPrefix(raw, "http://") || strings.HasPrefix(raw, "https://") {
		return raw
	}
	if base == nil {
		return ""
	}
	ref, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	return base.ResolveReference(ref).String()
}

func dedupe(urls []string) []string {
	out := make([]string, 0, len(urls))
	seen := make(map[string]struct{}, len(urls))
	for _, u := range urls {
		if _, dup := seen[u]; dup {
			continue
		}
		seen[u] = struct{}{}
		out = append(out, u)
	}
	return out
}
