package extract

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"vivareal_scraper/config"
)

var (
	priceRegex     = regexp.MustCompile(`R\$\s*(\d{1,3}(?:\.\d{3})*(?:,\d{2})?)`)
	areaRegex      = regexp.MustCompile(`(?i)(\d+)\s*m[²2]`)
	bedroomsRegex  = regexp.MustCompile(`(?i)(\d+)\s*quarto`)
	suitesRegex    = regexp.MustCompile(`(?i)(\d+)\s*su[ií]te`)
	bathroomsRegex = regexp.MustCompile(`(?i)(\d+)\s*banheiro`)
	garageRegexes  = []*regexp.Regexp{
		regexp.MustCompile(`(?i)(\d+)\s*vaga`),
		regexp.MustCompile(`(?i)(\d+)\s*garagem`),
		regexp.MustCompile(`(?i)garagem[:\s]*(\d+)`),
	}
	advertiserCodeRegex = regexp.MustCompile(`(?i)Código\s+do\s+anunciante[:\s]*([A-Z0-9]+)`)
	listingCodeRegex    = regexp.MustCompile(`(?i)Código\s+(?:no\s+)?Viva\s+Real[:\s]*(\d+)`)
	urlIDRegex          = regexp.MustCompile(`-id-(\d+)`)
)

// FieldSet is the deterministic scalar/text extraction result for one
// page. Numeric fields are nil when nothing parsed; they are never
// defaulted to zero.
type FieldSet struct {
	PropertyType   string
	Modality       string
	Price          *float64
	SizeM2         *int
	Bedrooms       *int
	Suites         *int
	Bathrooms      *int
	Garage         *int
	Description    string
	AdvertiserCode string
	ListingCode    string
}

// Parse builds a goquery document from raw markup.
func Parse(html string) (*goquery.Document, error) {
	return goquery.NewDocumentFromReader(strings.NewReader(html))
}

// Fields runs the deterministic field extractors over the document.
// Pure function of the markup and page URL; no network, no side effects.
func Fields(doc *goquery.Document, pageURL string, p *config.SiteProfile) *FieldSet {
	title := doc.Find("title").First().Text()
	body := doc.Find("body").Text()

	f := &FieldSet{
		PropertyType: propertyType(doc, title, p),
		Modality:     modality(title, pageURL, p),
		Price:        price(title, body),
		Description:  description(doc, p),
	}

	f.SizeM2 = matchCount(areaRegex, title, body)
	f.Bedrooms = matchCount(bedroomsRegex, title, body)
	f.Suites = matchCount(suitesRegex, title, body)
	f.Bathrooms = matchCount(bathroomsRegex, title, body)
	f.Garage = garage(doc, title, body)

	f.AdvertiserCode = firstGroup(advertiserCodeRegex, body)
	f.ListingCode = firstGroup(listingCodeRegex, body)
	if f.ListingCode == "" {
		f.ListingCode = firstGroup(urlIDRegex, pageURL)
	}

	return f
}

// propertyType looks for a known type token in the title, then in the
// breadcrumb trail.
func propertyType(doc *goquery.Document, title string, p *config.SiteProfile) string {
	lowerTitle := strings.ToLower(title)
	for _, t := range p.PropertyTypes {
		if strings.Contains(lowerTitle, strings.ToLower(t)) {
			return t
		}
	}

	found := ""
	doc.Find("nav[aria-label='Breadcrumb'] a, nav[name='Breadcrumb'] a").EachWithBreak(func(i int, s *goquery.Selection) bool {
		text := strings.ToLower(strings.TrimSpace(s.Text()))
		for _, t := range p.PropertyTypes {
			if strings.Contains(text, strings.ToLower(t)) {
				found = t
				return false
			}
		}
		return true
	})
	return found
}

func modality(title, pageURL string, p *config.SiteProfile) string {
	lowerTitle := strings.ToLower(title)
	for _, tok := range p.SaleTokens {
		if strings.Contains(lowerTitle, tok) {
			return "Venda"
		}
	}
	for _, tok := range p.RentalTokens {
		if strings.Contains(lowerTitle, tok) {
			return "Aluguel"
		}
	}

	lowerURL := strings.ToLower(pageURL)
	if strings.Contains(lowerURL, "/venda/") {
		return "Venda"
	}
	if strings.Contains(lowerURL, "/aluguel/") {
		return "Aluguel"
	}
	return ""
}

// price parses the Brazilian-formatted price (R$ 1.250.000,50) from the
// title, falling back to the page text. A value that does not parse as a
// non-negative number stays nil.
func price(title, body string) *float64 {
	for _, text := range []string{title, body} {
		m := priceRegex.FindStringSubmatch(text)
		if m == nil {
			continue
		}
		raw := strings.ReplaceAll(m[1], ".", "")
		raw = strings.ReplaceAll(raw, ",", ".")
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil || v < 0 {
			continue
		}
		return &v
	}
	return nil
}

// matchCount scans the title first, then the body, for a numeric match.
func matchCount(re *regexp.Regexp, title, body string) *int {
	for _, text := range []string{title, body} {
		m := re.FindStringSubmatch(text)
		if m == nil {
			continue
		}
		v, err := strconv.Atoi(m[1])
		if err != nil || v < 0 {
			continue
		}
		return &v
	}
	return nil
}

// garage also checks feature list elements, which often carry the
// parking count when the title does not.
func garage(doc *goquery.Document, title, body string) *int {
	for _, re := range garageRegexes {
		if v := matchCount(re, title, ""); v != nil {
			return v
		}
	}

	var found *int
	doc.Find("li, [class*='feature'], [class*='characteristic'], [data-testid*='feature']").EachWithBreak(func(i int, s *goquery.Selection) bool {
		text := strings.ToLower(strings.TrimSpace(s.Text()))
		for _, re := range garageRegexes {
			if v := matchCount(re, text, ""); v != nil {
				found = v
				return false
			}
		}
		return true
	})
	if found != nil {
		return found
	}

	for _, re := range garageRegexes {
		if v := matchCount(re, "", body); v != nil {
			return v
		}
	}
	return nil
}

func description(doc *goquery.Document, p *config.SiteProfile) string {
	for _, selector := range p.DescriptionSelectors {
		text := ""
		doc.Find(selector).EachWithBreak(func(i int, s *goquery.Selection) bool {
			candidate := strings.TrimSpace(s.Text())
			if len(candidate) > 50 {
				text = candidate
				return false
			}
			return true
		})
		if text == "" {
			continue
		}

		var lines []string
		for _, line := range strings.Split(text, "\n") {
			line = strings.TrimSpace(line)
			if line == "" {
				continue
			}
			lower := strings.ToLower(line)
			if strings.Contains(lower, "descrição") || strings.Contains(lower, "características") {
				continue
			}
			lines = append(lines, line)
		}
		if len(lines) > 0 {
			return strings.Join(lines, "\n")
		}
	}
	return ""
}

func firstGroup(re *regexp.Regexp, text string) string {
	m := re.FindStringSubmatch(text)
	if m == nil {
		return ""
	}
	return strings.TrimSpace(m[1])
}
