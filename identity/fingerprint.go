package identity

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"vivareal_scraper/models"
)

var (
	streetReplacements = map[string]string{
		"rua":      "r",
		"avenida":  "av",
		"alameda":  "al",
		"travessa": "tv",
		"estrada":  "est",
		"rodovia":  "rod",
		"praca":    "pc",
		"largo":    "lgo",
		"vila":     "vl",
		"jardim":   "jd",
		"conjunto": "cj",
		"quadra":   "qd",
		"lote":     "lt",
		"bloco":    "bl",
		"andar":    "and",
	}
	multiSpaceRegex = regexp.MustCompile(`\s+`)
	nonAlnumRegex   = regexp.MustCompile(`[^a-z0-9\s]`)

	deaccent = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
)

// Fingerprint derives a stable identity for a listing from its address
// and core attributes, so re-extractions of the same property collapse
// into one record regardless of listing ID churn.
func Fingerprint(listing *models.Listing) string {
	address := strings.Join([]string{
		listing.Location.Street,
		listing.Location.Number,
		listing.Location.Neighborhood,
		listing.Location.City,
	}, " ")

	input := fmt.Sprintf("%s|%s|%d|%d|%s",
		NormalizeAddress(address),
		listing.Location.Zipcode,
		intOrZero(listing.Bedrooms),
		intOrZero(listing.SizeM2),
		strings.ToLower(listing.PropertyType),
	)
	hash := sha256.Sum256([]byte(input))
	return hex.EncodeToString(hash[:16])
}

// NormalizeAddress lowercases, strips accents and punctuation, and
// collapses common Brazilian street-type words to their abbreviations.
func NormalizeAddress(addr string) string {
	addr = strings.ToLower(strings.TrimSpace(addr))
	if stripped, _, err := transform.String(deaccent, addr); err == nil {
		addr = stripped
	}
	addr = nonAlnumRegex.ReplaceAllString(addr, " ")

	words := strings.Fields(addr)
	for i, w := range words {
		if abbrev, ok := streetReplacements[w]; ok {
			words[i] = abbrev
		}
	}
	addr = strings.Join(words, " ")
	return strings.TrimSpace(multiSpaceRegex.ReplaceAllString(addr, " "))
}

func intOrZero(v *int) int {
	if v == nil {
		return 0
	}
	return *v
}
