package storage

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"vivareal_scraper/models"
)

// JSONWriter persists each extracted listing as a standalone file, one
// per run, under the output directory.
type JSONWriter struct {
	Dir string
}

func (w *JSONWriter) Write(l *models.Listing) (string, error) {
	if err := os.MkdirAll(w.Dir, 0755); err != nil {
		return "", fmt.Errorf("create output dir: %w", err)
	}

	name := fmt.Sprintf("listing_%s_%s.json",
		l.ScrapedAt.Format("20060102_150405"), l.ID.String()[:8])
	path := filepath.Join(w.Dir, name)

	data, err := json.MarshalIndent(l, "", "  ")
	if err != nil {
		return "", err
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("write %s: %w", path, err)
	}
	return path, nil
}
