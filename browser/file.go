package browser

import (
	"context"
	"fmt"
	"os"

	"vivareal_scraper/models"
)

// FileLoader serves a saved page instead of rendering one. Used for
// extracting from captured HTML without a browser.
type FileLoader struct {
	Path string
}

func (f *FileLoader) Load(ctx context.Context, url string) (*models.Page, error) {
	data, err := os.ReadFile(f.Path)
	if err != nil {
		return nil, &models.PageLoadError{URL: url, Err: fmt.Errorf("read %s: %w", f.Path, err)}
	}
	if len(data) == 0 {
		return nil, &models.PageLoadError{URL: url, Err: fmt.Errorf("file %s is empty", f.Path)}
	}
	return &models.Page{URL: url, HTML: string(data)}, nil
}
