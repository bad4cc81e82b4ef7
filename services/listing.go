package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"vivareal_scraper/identity"
	"vivareal_scraper/models"
	"vivareal_scraper/pipeline"
	"vivareal_scraper/storage"
)

// ListingService runs the pipeline for a URL and fans the result out to
// every configured sink: local SQLite, the JSON output file, Postgres
// and the media queue. Idempotent per property via the address
// fingerprint.
type ListingService struct {
	orchestrator *pipeline.Orchestrator
	store        *storage.SQLiteStore
	pgStore      *storage.PostgresStore
	jsonWriter   *storage.JSONWriter
}

func NewListingService(orchestrator *pipeline.Orchestrator, store *storage.SQLiteStore, pgStore *storage.PostgresStore, jsonWriter *storage.JSONWriter) *ListingService {
	return &ListingService{
		orchestrator: orchestrator,
		store:        store,
		pgStore:      pgStore,
		jsonWriter:   jsonWriter,
	}
}

// ExtractAndStore runs one full extraction for the URL and persists the
// result. Run bookkeeping goes to SQLite whether the run succeeds or
// not.
func (s *ListingService) ExtractAndStore(ctx context.Context, url string) error {
	run := s.startRun(url)

	listing, err := s.orchestrator.Run(ctx, url)
	if err != nil {
		s.finishRun(run, nil, err)
		return err
	}

	if err := s.Persist(ctx, listing); err != nil {
		s.finishRun(run, listing, err)
		return err
	}

	s.finishRun(run, listing, nil)
	return nil
}

// Persist writes an already extracted listing to all sinks.
func (s *ListingService) Persist(ctx context.Context, listing *models.Listing) error {
	fingerprint := identity.Fingerprint(listing)

	if s.store != nil {
		if prior, err := s.store.GetListing(fingerprint); err == nil && prior != nil &&
			prior.Price != nil && listing.Price != nil && *prior.Price != *listing.Price {
			log.Printf("Price change for %s: %.2f -> %.2f", listing.URL, *prior.Price, *listing.Price)
		}
		if err := s.store.UpsertListing(fingerprint, listing); err != nil {
			return fmt.Errorf("store listing: %w", err)
		}
		if err := s.store.EnqueueMedia(listing.ID, listing.ImageURLs()); err != nil {
			log.Printf("Warning: failed to enqueue media: %v", err)
		}
	}

	if s.jsonWriter != nil {
		path, err := s.jsonWriter.Write(listing)
		if err != nil {
			return fmt.Errorf("write output: %w", err)
		}
		log.Printf("Wrote %s", path)
	}

	if s.pgStore != nil {
		if err := s.pgStore.UpsertListing(ctx, fingerprint, listing); err != nil {
			log.Printf("Warning: failed to mirror listing to Postgres: %v", err)
		}
	}

	return nil
}

func (s *ListingService) startRun(url string) *models.ExtractRun {
	run := &models.ExtractRun{
		URL:       url,
		StartedAt: time.Now(),
		Status:    models.RunStatusRunning,
	}
	if s.store == nil {
		return run
	}

	id, err := s.store.CreateRun(run)
	if err != nil {
		log.Printf("Warning: failed to create run record: %v", err)
		return run
	}
	run.ID = id
	s.store.Log(&run.ID, models.LogLevelInfo, fmt.Sprintf("Starting extraction for %s", url))
	return run
}

func (s *ListingService) finishRun(run *models.ExtractRun, listing *models.Listing, runErr error) {
	finished := time.Now()
	run.FinishedAt = &finished

	switch {
	case runErr != nil:
		run.Status = models.RunStatusFailed
		run.Error = runErr.Error()
		run.ErrorKind = errorKind(runErr)
	case len(listing.Issues) > 0:
		run.Status = models.RunStatusDegraded
	default:
		run.Status = models.RunStatusCompleted
	}

	if listing != nil {
		run.IssuesCount = len(listing.Issues)
		run.AIFallbacks = pipeline.AIFallbacks(listing)
	}

	if s.store == nil || run.ID == 0 {
		return
	}
	if err := s.store.UpdateRun(run); err != nil {
		log.Printf("Warning: failed to update run record: %v", err)
	}

	level := models.LogLevelInfo
	msg := fmt.Sprintf("Run finished: %s (%d issues, %d ai fallbacks)", run.Status, run.IssuesCount, run.AIFallbacks)
	if run.Status == models.RunStatusDegraded {
		level = models.LogLevelWarn
	}
	if runErr != nil {
		level = models.LogLevelError
		msg = fmt.Sprintf("Run failed: %v", runErr)
	}
	s.store.Log(&run.ID, level, msg)
}

func errorKind(err error) string {
	var ple *models.PageLoadError
	if errors.As(err, &ple) {
		return "page_load"
	}
	var ile *models.IncompleteListingError
	if errors.As(err, &ile) {
		return "incomplete_listing"
	}
	return "other"
}
