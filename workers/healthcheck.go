package workers

import (
	"context"
	"log"
	"net/http"
	"net/url"
	"strings"
	"time"

	"vivareal_scraper/storage"
)

// HealthcheckWorker polls stored listings to see whether the portal
// still serves them, and flags delisted ones inactive.
type HealthcheckWorker struct {
	store      *storage.SQLiteStore
	pgStore    *storage.PostgresStore
	httpClient *http.Client
	triggerCh  chan struct{}
}

func NewHealthcheckWorker(store *storage.SQLiteStore, proxyURL string) *HealthcheckWorker {
	transport := http.DefaultTransport.(*http.Transport).Clone()

	if proxyURL != "" {
		if proxyParsed, err := url.Parse(proxyURL); err == nil {
			transport.Proxy = http.ProxyURL(proxyParsed)
			log.Printf("Healthcheck worker using proxy: %s", proxyParsed.Host)
		}
	}

	client := &http.Client{
		Timeout:   30 * time.Second,
		Transport: transport,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}

	return &HealthcheckWorker{
		store:      store,
		httpClient: client,
		triggerCh:  make(chan struct{}, 1),
	}
}

// SetMirror registers the Postgres mirror so delistings propagate to it.
func (w *HealthcheckWorker) SetMirror(pg *storage.PostgresStore) {
	w.pgStore = pg
}

// Trigger causes the worker to run a batch immediately.
func (w *HealthcheckWorker) Trigger() {
	select {
	case w.triggerCh <- struct{}{}:
	default:
	}
}

// CheckResult is the outcome of checking one listing URL.
type CheckResult struct {
	IsLive     bool
	StatusCode int
	Error      error
}

// Check does a lightweight HEAD request against the listing URL.
// Redirects are not followed; a redirect to search or an error page
// means the listing is gone.
func (w *HealthcheckWorker) Check(ctx context.Context, listingURL string) CheckResult {
	req, err := http.NewRequestWithContext(ctx, "HEAD", listingURL, nil)
	if err != nil {
		return CheckResult{Error: err}
	}
	req.Header.Set("User-Agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36")

	resp, err := w.httpClient.Do(req)
	if err != nil {
		return CheckResult{Error: err}
	}
	resp.Body.Close()

	result := CheckResult{StatusCode: resp.StatusCode}
	switch resp.StatusCode {
	case 200:
		result.IsLive = true
	case 404, 410:
		result.IsLive = false
	case 301, 302:
		result.IsLive = !isDelistRedirect(resp.Header.Get("Location"))
	default:
		result.IsLive = true
	}
	return result
}

// isDelistRedirect reports whether a redirect target looks like the
// portal bouncing a dead listing back to search.
func isDelistRedirect(location string) bool {
	patterns := []string{
		"/busca",
		"/venda/",
		"/aluguel/",
		"notfound",
		"nao-encontrado",
		"erro",
	}
	lower := strings.ToLower(location)
	for _, p := range patterns {
		if strings.Contains(lower, p) {
			return true
		}
	}
	return false
}

// Run starts the worker loop over listings not seen since staleAfter.
func (w *HealthcheckWorker) Run(ctx context.Context, staleAfter time.Duration, batchSize int, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Println("Healthcheck worker stopping")
			return
		case <-ticker.C:
			w.processBatch(ctx, staleAfter, batchSize)
		case <-w.triggerCh:
			log.Println("Healthcheck worker triggered manually")
			w.processBatch(ctx, staleAfter, batchSize)
		}
	}
}

func (w *HealthcheckWorker) processBatch(ctx context.Context, staleAfter time.Duration, batchSize int) {
	stale, err := w.store.StaleActiveListings(time.Now().Add(-staleAfter), batchSize)
	if err != nil {
		log.Printf("Healthcheck: query error: %v", err)
		return
	}
	if len(stale) == 0 {
		return
	}

	log.Printf("Healthcheck: checking %d stale listings", len(stale))

	var checked, delisted int
	for fingerprint, listingURL := range stale {
		if listingURL == "" {
			continue
		}

		result := w.Check(ctx, listingURL)
		checked++

		if result.Error != nil {
			log.Printf("Healthcheck: error checking %s: %v", listingURL, result.Error)
			w.store.TouchListing(fingerprint, time.Now())
			continue
		}

		if !result.IsLive {
			log.Printf("Healthcheck: listing delisted (status %d): %s", result.StatusCode, listingURL)
			if err := w.store.MarkListingInactive(fingerprint); err != nil {
				log.Printf("Healthcheck: failed to mark delisted: %v", err)
			} else {
				delisted++
			}
			if w.pgStore != nil {
				if err := w.pgStore.MarkListingInactive(ctx, fingerprint); err != nil {
					log.Printf("Healthcheck: failed to mirror delisting: %v", err)
				}
			}
		} else {
			w.store.TouchListing(fingerprint, time.Now())
		}

		// Rate limit between requests
		time.Sleep(500 * time.Millisecond)
	}

	if checked > 0 {
		log.Printf("Healthcheck: checked %d, delisted %d", checked, delisted)
	}
}
