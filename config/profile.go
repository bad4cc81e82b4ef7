package config

import (
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// SiteProfile holds the structural selectors, URL patterns, and filter
// keywords for one listing site. Keeping these in yaml means a new site
// (or a markup change) is a config edit, not a code change.
type SiteProfile struct {
	ID   string `yaml:"id"`
	Name string `yaml:"name"`

	PropertyTypes []string `yaml:"property_types"`

	ImageSelectors  []string `yaml:"image_selectors"`
	ImageHosts      []string `yaml:"image_hosts"`
	ImageMarkers    []string `yaml:"image_markers"`
	ExcludeKeywords []string `yaml:"exclude_keywords"`

	DescriptionSelectors []string `yaml:"description_selectors"`
	MapSelectors         []string `yaml:"map_selectors"`
	SitemapTokens        []string `yaml:"sitemap_tokens"`

	SaleTokens   []string `yaml:"sale_tokens"`
	RentalTokens []string `yaml:"rental_tokens"`
}

// LoadProfiles reads every *.yaml under dir. A missing dir is not an
// error; the built-in default profile covers that case.
func LoadProfiles(dir string) (map[string]*SiteProfile, error) {
	profiles := make(map[string]*SiteProfile)

	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return profiles, nil
		}
		return nil, err
	}

	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".yaml" {
			continue
		}

		data, err := os.ReadFile(filepath.Join(dir, entry.Name()))
		if err != nil {
			return nil, err
		}

		var p SiteProfile
		if err := yaml.Unmarshal(data, &p); err != nil {
			return nil, err
		}
		profiles[p.ID] = &p
	}

	return profiles, nil
}

// DefaultProfile is the Viva Real profile compiled in, so the pipeline
// works without any yaml on disk.
func DefaultProfile() *SiteProfile {
	return &SiteProfile{
		ID:   "vivareal",
		Name: "Viva Real",
		PropertyTypes: []string{
			"Apartamento", "Casa", "Cobertura", "Terreno",
			"Sobrado", "Kitnet", "Studio", "Loft", "Sala",
		},
		ImageSelectors: []string{
			"img[src*='resizedimgs.vivareal.com']",
			"img[data-src*='resizedimgs.vivareal.com']",
			"img[src*='vivareal.com.br/img']",
			"[class*='gallery'] img",
			"[class*='photo'] img",
			"[class*='carousel'] img",
		},
		ImageHosts:   []string{"resizedimgs.vivareal.com", "vivareal.com.br/img"},
		ImageMarkers: []string{"vr-listing"},
		ExcludeKeywords: []string{
			"logo", "banner", "icon", "avatar", "profile",
			"corretor", "agent", "thumbnail", "placeholder",
		},
		DescriptionSelectors: []string{
			"[class*='description']",
			"[class*='Description']",
			"[data-testid*='description']",
		},
		MapSelectors: []string{
			"a[href*='maps']",
			"a[href*='google']",
			"a[href*='mapa']",
			"a[href*='location']",
			"[class*='map'] a",
			"[class*='Map'] a",
			"[class*='location'] a",
			"[data-testid*='map'] a",
		},
		SitemapTokens: []string{"mapa-do-site", "sitemap"},
		SaleTokens:    []string{"venda", "por r$"},
		RentalTokens:  []string{"aluguel", "alugar"},
	}
}
