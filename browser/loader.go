package browser

import (
	"context"
	"fmt"
	"log"
	"math/rand"
	"os"
	"path/filepath"
	"sync"

	"github.com/playwright-community/playwright-go"

	"vivareal_scraper/config"
	"vivareal_scraper/models"
)

// Loader renders listing pages in a real Chromium so lazy galleries and
// script-built markup are present in the returned HTML.
type Loader struct {
	cfg         *config.Config
	pw          *playwright.Playwright
	context     playwright.BrowserContext
	mu          sync.Mutex
	initialized bool
}

func NewLoader(cfg *config.Config) *Loader {
	return &Loader{cfg: cfg}
}

// Load navigates to the URL and returns the settled page markup.
func (l *Loader) Load(ctx context.Context, url string) (*models.Page, error) {
	if err := l.ensureBrowser(); err != nil {
		return nil, &models.PageLoadError{URL: url, Err: err}
	}

	page, err := l.context.NewPage()
	if err != nil {
		return nil, &models.PageLoadError{URL: url, Err: fmt.Errorf("create page: %w", err)}
	}
	defer page.Close()

	if _, err := page.Goto(url, playwright.PageGotoOptions{
		Timeout:   playwright.Float(l.cfg.Browser.NavTimeoutMS),
		WaitUntil: playwright.WaitUntilStateDomcontentloaded,
	}); err != nil {
		return nil, &models.PageLoadError{URL: url, Err: fmt.Errorf("navigate: %w", err)}
	}

	l.handleConsent(page)
	l.waitForContent(page)
	l.scrollGallery(page)
	l.expandPhotos(page)

	if err := ctx.Err(); err != nil {
		return nil, &models.PageLoadError{URL: url, Err: err}
	}

	html, err := page.Content()
	if err != nil {
		return nil, &models.PageLoadError{URL: url, Err: fmt.Errorf("read content: %w", err)}
	}
	if len(html) == 0 {
		return nil, &models.PageLoadError{URL: url, Err: fmt.Errorf("empty page content")}
	}

	return &models.Page{URL: url, HTML: html}, nil
}

func (l *Loader) ensureBrowser() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.initialized {
		return nil
	}

	var err error
	l.pw, err = playwright.Run()
	if err != nil {
		return fmt.Errorf("failed to start playwright: %w", err)
	}

	userDataDir := l.cfg.Browser.UserDataDir
	if userDataDir == "" {
		cwd, _ := os.Getwd()
		userDataDir = filepath.Join(cwd, "browser_data")
	}
	l.context, err = l.pw.Chromium.LaunchPersistentContext(userDataDir, playwright.BrowserTypeLaunchPersistentContextOptions{
		Headless: playwright.Bool(l.cfg.Browser.Headless),
		Args: []string{
			"--disable-blink-features=AutomationControlled",
			"--disable-dev-shm-usage",
			"--no-sandbox",
		},
	})
	if err != nil {
		return fmt.Errorf("failed to launch browser: %w", err)
	}

	l.initialized = true
	return nil
}

func (l *Loader) Close() {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.context != nil {
		l.context.Close()
	}
	if l.pw != nil {
		l.pw.Stop()
	}
	l.initialized = false
}

// waitForContent polls for either a price tag or the gallery before
// reading the markup, so lazy content has a chance to land.
func (l *Loader) waitForContent(page playwright.Page) {
	selectors := []string{
		"[class*='price']",
		"[data-testid*='price']",
		"[class*='carousel'] img",
	}
	for i := 0; i < 20; i++ {
		for _, sel := range selectors {
			if visible, _ := page.Locator(sel).First().IsVisible(); visible {
				return
			}
		}
		page.WaitForTimeout(500)
	}
	log.Println("Timeout waiting for listing content")
}

// scrollGallery scrolls the page in steps so lazy images load.
func (l *Loader) scrollGallery(page playwright.Page) {
	for i := 0; i < 4; i++ {
		page.Evaluate(fmt.Sprintf(`window.scrollBy(0, %d)`, 600+rand.Intn(300)))
		page.WaitForTimeout(float64(400 + rand.Intn(300)))
	}
	page.Evaluate(`window.scrollTo(0, 0)`)
}

// expandPhotos clicks the gallery expander when present, which puts the
// full photo set into the DOM.
func (l *Loader) expandPhotos(page playwright.Page) {
	selectors := []string{
		"button:has-text('Ver mais fotos')",
		"button:has-text('Ver todas as fotos')",
		"[data-testid='gallery-expand']",
	}
	for _, sel := range selectors {
		btn := page.Locator(sel).First()
		if visible, _ := btn.IsVisible(); visible {
			btn.Click()
			page.WaitForTimeout(1500)
			return
		}
	}
}

func (l *Loader) handleConsent(page playwright.Page) {
	selectors := []string{
		"#adopt-accept-all-button",
		"button:has-text('Aceitar')",
		"button:has-text('Aceitar todos')",
		"button[class*='cookie'][class*='accept']",
	}
	for _, sel := range selectors {
		btn := page.Locator(sel).First()
		if visible, _ := btn.IsVisible(); visible {
			btn.Click()
			page.WaitForTimeout(1000)
			return
		}
	}
}
