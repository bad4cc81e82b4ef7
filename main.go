package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"vivareal_scraper/ai"
	"vivareal_scraper/browser"
	"vivareal_scraper/config"
	"vivareal_scraper/httputil"
	"vivareal_scraper/logging"
	"vivareal_scraper/pipeline"
	"vivareal_scraper/scheduler"
	"vivareal_scraper/services"
	"vivareal_scraper/storage"
	"vivareal_scraper/workers"
)

var (
	listingURL = flag.String("url", "", "Listing URL to extract")
	htmlFile   = flag.String("html", "", "Extract from a saved HTML file instead of the browser")
	daemonMode = flag.Bool("daemon", false, "Run as a daemon re-extracting WATCH_URLS on a schedule")
	headless   = flag.Bool("headless", true, "Run the browser headless")
)

func main() {
	flag.Parse()
	log.SetFlags(log.LstdFlags | log.Lshortfile)

	logFile, err := logging.Setup("scraper.log", 0)
	if err != nil {
		log.Printf("Warning: could not set up file logging: %v", err)
	} else {
		defer logFile.Close()
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	cfg.Browser.Headless = *headless

	if *listingURL == "" && !*daemonMode {
		fmt.Fprintln(os.Stderr, "Usage: vivareal_scraper -url <listing url> [-html file.html] | -daemon")
		os.Exit(1)
	}

	ctx := context.Background()

	adapter := newAdapter(cfg)

	var loader pipeline.Loader
	var browserLoader *browser.Loader
	if *htmlFile != "" {
		loader = &browser.FileLoader{Path: *htmlFile}
	} else {
		browserLoader = browser.NewLoader(cfg)
		loader = browserLoader
		defer browserLoader.Close()
	}

	orchestrator := pipeline.New(cfg, loader, adapter)

	store, err := storage.NewSQLiteStore(cfg.DBPath)
	if err != nil {
		log.Fatalf("Failed to open SQLite: %v", err)
	}
	defer store.Close()
	log.Printf("SQLite database: %s", cfg.DBPath)

	var pgStore *storage.PostgresStore
	if cfg.DBURL != "" {
		pgStore, err = storage.NewPostgresStore(ctx, cfg.DBURL)
		if err != nil {
			log.Fatalf("Failed to connect to Postgres: %v", err)
		}
		defer pgStore.Close()
		if err := pgStore.Migrate(ctx); err != nil {
			log.Fatalf("Failed to migrate Postgres: %v", err)
		}
		log.Printf("Connected to Postgres: %s", maskConnectionString(cfg.DBURL))
	}

	listingService := services.NewListingService(
		orchestrator, store, pgStore, &storage.JSONWriter{Dir: cfg.OutputDir})

	if !*daemonMode {
		runOnce(ctx, cfg, orchestrator, listingService, *listingURL)
		return
	}

	runDaemon(ctx, cfg, store, pgStore, listingService)
}

// runOnce extracts a single URL, persists it and prints the record.
func runOnce(ctx context.Context, cfg *config.Config, orchestrator *pipeline.Orchestrator, svc *services.ListingService, url string) {
	listing, err := orchestrator.Run(ctx, url)
	if err != nil {
		log.Fatalf("Extraction failed: %v", err)
	}

	if err := svc.Persist(ctx, listing); err != nil {
		log.Fatalf("Failed to persist listing: %v", err)
	}

	out, _ := json.MarshalIndent(listing, "", "  ")
	fmt.Println(string(out))

	if len(listing.Issues) > 0 {
		log.Printf("Extraction finished with %d issues", len(listing.Issues))
	}
}

// runDaemon sweeps WATCH_URLS on the configured schedule and runs the
// media and healthcheck workers alongside.
func runDaemon(ctx context.Context, cfg *config.Config, store *storage.SQLiteStore, pgStore *storage.PostgresStore, svc *services.ListingService) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	clients := httputil.NewClients(cfg.ProxyURL)

	sched := scheduler.New(cfg, svc)

	healthcheckWorker := workers.NewHealthcheckWorker(store, cfg.ProxyURL)
	if pgStore != nil {
		healthcheckWorker.SetMirror(pgStore)
	}
	go healthcheckWorker.Run(ctx, 24*time.Hour, 20, 30*time.Minute)
	sched.SetHealthcheck(healthcheckWorker)
	log.Println("Healthcheck worker started")

	var uploader workers.Uploader = &workers.NoOpUploader{}
	if cfg.S3.Enabled() {
		s3Uploader, err := storage.NewS3Uploader(ctx, cfg.S3)
		if err != nil {
			log.Fatalf("Failed to set up S3: %v", err)
		}
		uploader = s3Uploader
		log.Printf("S3 mirroring enabled: %s", cfg.S3.Bucket)
	}
	mediaWorker := workers.NewMediaWorker(store, uploader, clients.Scraping)
	go mediaWorker.Run(ctx, 20, 2*time.Minute)
	log.Println("Media worker started")

	if err := sched.Start(ctx); err != nil {
		log.Fatalf("Failed to start scheduler: %v", err)
	}
	sched.TriggerNow(ctx)

	if count, err := store.ActiveListingCount(); err == nil {
		log.Printf("Tracking %d active listings", count)
	}
	log.Println("Daemon running. Press Ctrl+C to stop.")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	log.Println("Shutting down...")
	sched.Stop()
}

// newAdapter returns the configured AI adapter, or nil when no key is
// set. A typed nil must not leak into the interface.
func newAdapter(cfg *config.Config) ai.Adapter {
	if a := ai.NewOpenAIAdapter(cfg); a != nil {
		return a
	}
	log.Println("No OPENAI_API_KEY set, AI fallback disabled")
	return nil
}

// maskConnectionString masks the password in a connection string for
// logging.
func maskConnectionString(connStr string) string {
	start := 0
	for i := 0; i < len(connStr)-3; i++ {
		if connStr[i:i+3] == "://" {
			start = i + 3
			break
		}
	}
	if start == 0 {
		return connStr
	}

	colonIdx := -1
	atIdx := -1
	for i := start; i < len(connStr); i++ {
		if connStr[i] == ':' && colonIdx == -1 {
			colonIdx = i
		}
		if connStr[i] == '@' {
			atIdx = i
			break
		}
	}

	if colonIdx > 0 && atIdx > colonIdx {
		return connStr[:colonIdx+1] + "****" + connStr[atIdx:]
	}
	return connStr
}
