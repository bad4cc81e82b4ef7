package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"vivareal_scraper/models"
)

// PostgresStore mirrors extracted listings into a shared Postgres when
// DATABASE_URL is set. The local SQLite store stays authoritative for
// the daemon itself.
type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(ctx context.Context, connString string) (*PostgresStore, error) {
	config, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	config.MaxConns = 10
	config.MinConns = 2
	config.MaxConnLifetime = 30 * time.Minute
	config.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping: %w", err)
	}

	return &PostgresStore{pool: pool}, nil
}

func (s *PostgresStore) Close() {
	s.pool.Close()
}

func (s *PostgresStore) Migrate(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS listings (
		fingerprint TEXT PRIMARY KEY,
		listing_id UUID NOT NULL,
		url TEXT NOT NULL,
		city TEXT,
		neighborhood TEXT,
		zipcode TEXT,
		property_type TEXT,
		modality TEXT,
		price DOUBLE PRECISION,
		size_m2 INTEGER,
		data JSONB,
		first_seen_at TIMESTAMPTZ DEFAULT NOW(),
		last_seen_at TIMESTAMPTZ DEFAULT NOW(),
		is_active BOOLEAN DEFAULT TRUE
	);
	CREATE INDEX IF NOT EXISTS idx_pg_listings_city ON listings(city);
	`
	_, err := s.pool.Exec(ctx, schema)
	return err
}

func (s *PostgresStore) UpsertListing(ctx context.Context, fingerprint string, l *models.Listing) error {
	data, err := json.Marshal(l)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO listings (
			fingerprint, listing_id, url, city, neighborhood, zipcode,
			property_type, modality, price, size_m2, data
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (fingerprint) DO UPDATE SET
			listing_id = EXCLUDED.listing_id,
			url = EXCLUDED.url,
			city = COALESCE(NULLIF(EXCLUDED.city, ''), listings.city),
			neighborhood = COALESCE(NULLIF(EXCLUDED.neighborhood, ''), listings.neighborhood),
			zipcode = COALESCE(NULLIF(EXCLUDED.zipcode, ''), listings.zipcode),
			price = COALESCE(EXCLUDED.price, listings.price),
			size_m2 = COALESCE(EXCLUDED.size_m2, listings.size_m2),
			data = EXCLUDED.data,
			last_seen_at = NOW(),
			is_active = TRUE`

	_, err = s.pool.Exec(ctx, query,
		fingerprint, l.ID, l.URL, l.Location.City, l.Location.Neighborhood, l.Location.Zipcode,
		l.PropertyType, l.Modality, l.Price, l.SizeM2, data)
	return err
}

func (s *PostgresStore) MarkListingInactive(ctx context.Context, fingerprint string) error {
	_, err := s.pool.Exec(ctx,
		`UPDATE listings SET is_active = FALSE WHERE fingerprint = $1`, fingerprint)
	return err
}
