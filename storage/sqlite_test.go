package storage

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"

	"vivareal_scraper/models"
)

func testStore(t *testing.T) *SQLiteStore {
	t.Helper()
	store, err := NewSQLiteStore(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("NewSQLiteStore: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func testListing() *models.Listing {
	price := 500000.0
	size := 80
	return &models.Listing{
		ID:           uuid.New(),
		URL:          "https://www.vivareal.com.br/imovel/apartamento-2-quartos-consolacao-sao-paulo-id-1234/",
		ScrapedAt:    time.Now(),
		PropertyType: "Apartamento",
		Modality:     "Venda",
		Price:        &price,
		SizeM2:       &size,
		Location: models.Location{
			City:         "São Paulo",
			Neighborhood: "Consolação",
			Street:       "Rua Augusta",
			Number:       "50",
			Zipcode:      "01305-000",
		},
	}
}

func TestSQLiteStore_ListingRoundTrip(t *testing.T) {
	store := testStore(t)

	listing := testListing()
	if err := store.UpsertListing("fp-1", listing); err != nil {
		t.Fatalf("UpsertListing: %v", err)
	}

	got, err := store.GetListing("fp-1")
	if err != nil {
		t.Fatalf("GetListing: %v", err)
	}
	if got == nil {
		t.Fatal("expected stored listing, got nil")
	}
	if got.URL != listing.URL {
		t.Errorf("URL = %q, want %q", got.URL, listing.URL)
	}
	if got.Price == nil || *got.Price != *listing.Price {
		t.Errorf("Price = %v, want %v", got.Price, *listing.Price)
	}
	if got.Location.City != "São Paulo" {
		t.Errorf("City = %q", got.Location.City)
	}

	missing, err := store.GetListing("no-such-fingerprint")
	if err != nil {
		t.Fatalf("GetListing missing: %v", err)
	}
	if missing != nil {
		t.Errorf("expected nil for unknown fingerprint, got %+v", missing)
	}
}

func TestSQLiteStore_UpsertRefreshesPrice(t *testing.T) {
	store := testStore(t)

	listing := testListing()
	if err := store.UpsertListing("fp-1", listing); err != nil {
		t.Fatalf("first upsert: %v", err)
	}

	newPrice := 520000.0
	listing.Price = &newPrice
	if err := store.UpsertListing("fp-1", listing); err != nil {
		t.Fatalf("second upsert: %v", err)
	}

	got, err := store.GetListing("fp-1")
	if err != nil {
		t.Fatalf("GetListing: %v", err)
	}
	if got.Price == nil || *got.Price != newPrice {
		t.Errorf("Price = %v, want %v", got.Price, newPrice)
	}

	count, err := store.ActiveListingCount()
	if err != nil {
		t.Fatalf("ActiveListingCount: %v", err)
	}
	if count != 1 {
		t.Errorf("active count = %d, want 1", count)
	}
}

func TestSQLiteStore_MarkInactiveAndStale(t *testing.T) {
	store := testStore(t)

	if err := store.UpsertListing("fp-1", testListing()); err != nil {
		t.Fatalf("UpsertListing: %v", err)
	}

	stale, err := store.StaleActiveListings(time.Now().Add(time.Hour), 10)
	if err != nil {
		t.Fatalf("StaleActiveListings: %v", err)
	}
	if len(stale) != 1 {
		t.Fatalf("stale count = %d, want 1", len(stale))
	}

	if err := store.MarkListingInactive("fp-1"); err != nil {
		t.Fatalf("MarkListingInactive: %v", err)
	}

	stale, err = store.StaleActiveListings(time.Now().Add(time.Hour), 10)
	if err != nil {
		t.Fatalf("StaleActiveListings after delist: %v", err)
	}
	if len(stale) != 0 {
		t.Errorf("stale count after delist = %d, want 0", len(stale))
	}

	count, err := store.ActiveListingCount()
	if err != nil {
		t.Fatalf("ActiveListingCount: %v", err)
	}
	if count != 0 {
		t.Errorf("active count = %d, want 0", count)
	}
}

func TestSQLiteStore_RunsAndLogs(t *testing.T) {
	store := testStore(t)

	run := &models.ExtractRun{
		URL:       "https://www.vivareal.com.br/imovel/id-1234/",
		StartedAt: time.Now(),
		Status:    models.RunStatusRunning,
	}
	id, err := store.CreateRun(run)
	if err != nil {
		t.Fatalf("CreateRun: %v", err)
	}
	run.ID = id

	if err := store.Log(&id, models.LogLevelInfo, "extraction started"); err != nil {
		t.Fatalf("Log info: %v", err)
	}
	if err := store.Log(&id, models.LogLevelWarn, "image fallback failed"); err != nil {
		t.Fatalf("Log warn: %v", err)
	}

	finished := time.Now()
	run.FinishedAt = &finished
	run.Status = models.RunStatusDegraded
	run.IssuesCount = 2
	run.AIFallbacks = 1
	if err := store.UpdateRun(run); err != nil {
		t.Fatalf("UpdateRun: %v", err)
	}

	logs, err := store.RunLogs(id)
	if err != nil {
		t.Fatalf("RunLogs: %v", err)
	}
	if len(logs) != 2 {
		t.Fatalf("log count = %d, want 2", len(logs))
	}
	if logs[0].Message != "extraction started" {
		t.Errorf("first log = %q, want oldest first", logs[0].Message)
	}
	if logs[1].Level != models.LogLevelWarn {
		t.Errorf("second log level = %q, want %q", logs[1].Level, models.LogLevelWarn)
	}
	if logs[1].RunID == nil || *logs[1].RunID != id {
		t.Errorf("log run_id = %v, want %d", logs[1].RunID, id)
	}
}

func TestSQLiteStore_MediaQueue(t *testing.T) {
	store := testStore(t)

	listingID := uuid.New()
	urls := []string{
		"https://resizedimgs.vivareal.com/foto1.jpg",
		"https://resizedimgs.vivareal.com/foto2.jpg",
	}
	if err := store.EnqueueMedia(listingID, urls); err != nil {
		t.Fatalf("EnqueueMedia: %v", err)
	}
	// Re-enqueueing the same URLs must not duplicate them.
	if err := store.EnqueueMedia(listingID, urls); err != nil {
		t.Fatalf("EnqueueMedia again: %v", err)
	}

	pending, err := store.PendingMedia(10, 3)
	if err != nil {
		t.Fatalf("PendingMedia: %v", err)
	}
	if len(pending) != 2 {
		t.Fatalf("pending count = %d, want 2", len(pending))
	}
	if pending[0].ListingID != listingID {
		t.Errorf("ListingID = %s, want %s", pending[0].ListingID, listingID)
	}

	if err := store.MarkMediaUploaded(pending[0].ID, "media/ab/abcd.jpg", "abcd", 1024); err != nil {
		t.Fatalf("MarkMediaUploaded: %v", err)
	}
	if err := store.MarkMediaFailed(pending[1].ID, true); err != nil {
		t.Fatalf("MarkMediaFailed: %v", err)
	}

	pending, err = store.PendingMedia(10, 3)
	if err != nil {
		t.Fatalf("PendingMedia after updates: %v", err)
	}
	if len(pending) != 0 {
		t.Errorf("pending count after updates = %d, want 0", len(pending))
	}
}

func TestSQLiteStore_MediaRetryBudget(t *testing.T) {
	store := testStore(t)

	listingID := uuid.New()
	if err := store.EnqueueMedia(listingID, []string{"https://resizedimgs.vivareal.com/foto1.jpg"}); err != nil {
		t.Fatalf("EnqueueMedia: %v", err)
	}

	pending, err := store.PendingMedia(10, 3)
	if err != nil {
		t.Fatalf("PendingMedia: %v", err)
	}
	if len(pending) != 1 {
		t.Fatalf("pending count = %d, want 1", len(pending))
	}

	// A non-final failure keeps the item pending with one more attempt.
	if err := store.MarkMediaFailed(pending[0].ID, false); err != nil {
		t.Fatalf("MarkMediaFailed: %v", err)
	}
	pending, err = store.PendingMedia(10, 3)
	if err != nil {
		t.Fatalf("PendingMedia after retry: %v", err)
	}
	if len(pending) != 1 {
		t.Fatalf("pending count after retry = %d, want 1", len(pending))
	}
	if pending[0].Attempts != 1 {
		t.Errorf("attempts = %d, want 1", pending[0].Attempts)
	}

	// Once attempts reach the budget the item drops out of the queue.
	pending, err = store.PendingMedia(10, 1)
	if err != nil {
		t.Fatalf("PendingMedia with budget 1: %v", err)
	}
	if len(pending) != 0 {
		t.Errorf("pending count with exhausted budget = %d, want 0", len(pending))
	}
}
