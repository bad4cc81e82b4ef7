package storage

import (
	"database/sql"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"vivareal_scraper/models"
)

type SQLiteStore struct {
	db *sql.DB
}

func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, err
	}

	store := &SQLiteStore{db: db}
	if err := store.migrate(); err != nil {
		return nil, err
	}

	return store, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS listings (
		fingerprint TEXT PRIMARY KEY,
		listing_id TEXT NOT NULL,
		url TEXT NOT NULL,
		city TEXT,
		neighborhood TEXT,
		zipcode TEXT,
		property_type TEXT,
		modality TEXT,
		price REAL,
		size_m2 INTEGER,
		data JSON,
		first_seen_at DATETIME,
		last_seen_at DATETIME,
		times_seen INTEGER DEFAULT 1,
		is_active BOOLEAN DEFAULT TRUE
	);

	CREATE TABLE IF NOT EXISTS extract_runs (
		id INTEGER PRIMARY KEY,
		url TEXT,
		started_at DATETIME,
		finished_at DATETIME,
		status TEXT,
		issues_count INTEGER DEFAULT 0,
		ai_fallbacks INTEGER DEFAULT 0,
		error_kind TEXT,
		error TEXT
	);

	CREATE TABLE IF NOT EXISTS extract_logs (
		id INTEGER PRIMARY KEY,
		run_id INTEGER,
		timestamp DATETIME,
		level TEXT,
		message TEXT
	);

	CREATE TABLE IF NOT EXISTS media (
		id INTEGER PRIMARY KEY,
		listing_id TEXT NOT NULL,
		original_url TEXT NOT NULL,
		s3_key TEXT,
		content_hash TEXT,
		size_bytes INTEGER DEFAULT 0,
		status TEXT DEFAULT 'pending',
		attempts INTEGER DEFAULT 0,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		uploaded_at DATETIME,
		UNIQUE(listing_id, original_url)
	);

	CREATE INDEX IF NOT EXISTS idx_listings_city ON listings(city);
	CREATE INDEX IF NOT EXISTS idx_listings_active ON listings(is_active, last_seen_at);
	CREATE INDEX IF NOT EXISTS idx_runs_status ON extract_runs(status, started_at);
	CREATE INDEX IF NOT EXISTS idx_logs_run ON extract_logs(run_id, timestamp);
	CREATE INDEX IF NOT EXISTS idx_media_pending ON media(status, attempts) WHERE status = 'pending';
	`
	_, err := s.db.Exec(schema)
	return err
}

// UpsertListing stores the full listing JSON keyed by its address
// fingerprint. A re-extraction of the same property refreshes the row
// instead of inserting a duplicate.
func (s *SQLiteStore) UpsertListing(fingerprint string, l *models.Listing) error {
	data, err := json.Marshal(l)
	if err != nil {
		return err
	}

	now := time.Now()
	_, err = s.db.Exec(`
		INSERT INTO listings (fingerprint, listing_id, url, city, neighborhood, zipcode,
			property_type, modality, price, size_m2, data, first_seen_at, last_seen_at, times_seen, is_active)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, 1, TRUE)
		ON CONFLICT(fingerprint) DO UPDATE SET
			listing_id = excluded.listing_id,
			url = excluded.url,
			price = excluded.price,
			data = excluded.data,
			last_seen_at = excluded.last_seen_at,
			times_seen = times_seen + 1,
			is_active = TRUE`,
		fingerprint, l.ID.String(), l.URL, l.Location.City, l.Location.Neighborhood, l.Location.Zipcode,
		l.PropertyType, l.Modality, l.Price, l.SizeM2, data, now, now)
	return err
}

// GetListing loads a stored listing by fingerprint, or nil when absent.
func (s *SQLiteStore) GetListing(fingerprint string) (*models.Listing, error) {
	var data []byte
	err := s.db.QueryRow(`SELECT data FROM listings WHERE fingerprint = ?`, fingerprint).Scan(&data)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var l models.Listing
	if err := json.Unmarshal(data, &l); err != nil {
		return nil, err
	}
	return &l, nil
}

// StaleActiveListings returns active listings not seen since the cutoff,
// for the delisting check.
func (s *SQLiteStore) StaleActiveListings(cutoff time.Time, limit int) (map[string]string, error) {
	rows, err := s.db.Query(`
		SELECT fingerprint, url FROM listings
		WHERE is_active = TRUE AND last_seen_at < ?
		ORDER BY last_seen_at ASC LIMIT ?`, cutoff, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[string]string)
	for rows.Next() {
		var fingerprint, url string
		if err := rows.Scan(&fingerprint, &url); err != nil {
			return nil, err
		}
		out[fingerprint] = url
	}
	return out, rows.Err()
}

func (s *SQLiteStore) MarkListingInactive(fingerprint string) error {
	_, err := s.db.Exec(`UPDATE listings SET is_active = FALSE WHERE fingerprint = ?`, fingerprint)
	return err
}

func (s *SQLiteStore) TouchListing(fingerprint string, t time.Time) error {
	_, err := s.db.Exec(`UPDATE listings SET last_seen_at = ? WHERE fingerprint = ?`, t, fingerprint)
	return err
}

func (s *SQLiteStore) CreateRun(run *models.ExtractRun) (int64, error) {
	result, err := s.db.Exec(`
		INSERT INTO extract_runs (url, started_at, status)
		VALUES (?, ?, ?)`,
		run.URL, run.StartedAt, run.Status)
	if err != nil {
		return 0, err
	}
	return result.LastInsertId()
}

func (s *SQLiteStore) UpdateRun(run *models.ExtractRun) error {
	_, err := s.db.Exec(`
		UPDATE extract_runs SET finished_at = ?, status = ?, issues_count = ?,
			ai_fallbacks = ?, error_kind = ?, error = ?
		WHERE id = ?`,
		run.FinishedAt, run.Status, run.IssuesCount,
		run.AIFallbacks, run.ErrorKind, run.Error, run.ID)
	return err
}

func (s *SQLiteStore) Log(runID *int64, level models.LogLevel, message string) error {
	entry := models.ExtractLog{
		RunID:     runID,
		Timestamp: time.Now(),
		Level:     level,
		Message:   message,
	}
	_, err := s.db.Exec(`
		INSERT INTO extract_logs (run_id, timestamp, level, message)
		VALUES (?, ?, ?, ?)`,
		entry.RunID, entry.Timestamp, entry.Level, entry.Message)
	return err
}

// RunLogs returns the persisted log lines of one run, oldest first.
func (s *SQLiteStore) RunLogs(runID int64) ([]models.ExtractLog, error) {
	rows, err := s.db.Query(`
		SELECT id, run_id, timestamp, level, message FROM extract_logs
		WHERE run_id = ? ORDER BY timestamp ASC, id ASC`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var logs []models.ExtractLog
	for rows.Next() {
		var l models.ExtractLog
		if err := rows.Scan(&l.ID, &l.RunID, &l.Timestamp, &l.Level, &l.Message); err != nil {
			return nil, err
		}
		logs = append(logs, l)
	}
	return logs, rows.Err()
}

// EnqueueMedia queues every image of a listing for mirroring. Already
// queued URLs are skipped.
func (s *SQLiteStore) EnqueueMedia(listingID uuid.UUID, urls []string) error {
	for _, u := range urls {
		if _, err := s.db.Exec(`
			INSERT OR IGNORE INTO media (listing_id, original_url, status)
			VALUES (?, ?, 'pending')`,
			listingID.String(), u); err != nil {
			return err
		}
	}
	return nil
}

// PendingMedia returns the oldest pending queue entries, skipping ones
// that already failed too many times.
func (s *SQLiteStore) PendingMedia(limit, maxAttempts int) ([]models.Media, error) {
	rows, err := s.db.Query(`
		SELECT id, listing_id, original_url, COALESCE(s3_key, ''), COALESCE(content_hash, ''),
			size_bytes, status, attempts, created_at, uploaded_at
		FROM media
		WHERE status = 'pending' AND attempts < ?
		ORDER BY created_at ASC LIMIT ?`, maxAttempts, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []models.Media
	for rows.Next() {
		var m models.Media
		var listingID string
		if err := rows.Scan(&m.ID, &listingID, &m.OriginalURL, &m.S3Key, &m.ContentHash,
			&m.SizeBytes, &m.Status, &m.Attempts, &m.CreatedAt, &m.UploadedAt); err != nil {
			return nil, err
		}
		if id, err := uuid.Parse(listingID); err == nil {
			m.ListingID = id
		}
		items = append(items, m)
	}
	return items, rows.Err()
}

func (s *SQLiteStore) MarkMediaUploaded(id int64, s3Key, contentHash string, sizeBytes int64) error {
	_, err := s.db.Exec(`
		UPDATE media SET status = 'uploaded', s3_key = ?, content_hash = ?, size_bytes = ?, uploaded_at = ?
		WHERE id = ?`,
		s3Key, contentHash, sizeBytes, time.Now(), id)
	return err
}

func (s *SQLiteStore) MarkMediaFailed(id int64, final bool) error {
	status := models.MediaStatusPending
	if final {
		status = models.MediaStatusFailed
	}
	_, err := s.db.Exec(`
		UPDATE media SET attempts = attempts + 1, status = ? WHERE id = ?`,
		status, id)
	return err
}

// ActiveListingCount is used by the daemon status log line.
func (s *SQLiteStore) ActiveListingCount() (int, error) {
	var count int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM listings WHERE is_active = TRUE`).Scan(&count)
	return count, err
}
