package workers

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"log"
	"net/http"
	"path"
	"strings"
	"time"

	"vivareal_scraper/models"
	"vivareal_scraper/storage"
)

const maxMediaAttempts = 3

// MediaWorker drains the media queue: download each photo, hash it and
// mirror it to object storage.
type MediaWorker struct {
	store      *storage.SQLiteStore
	httpClient *http.Client
	uploader   Uploader
}

// Uploader is the slice of the S3 client the worker needs.
type Uploader interface {
	Upload(ctx context.Context, key string, data io.Reader, contentType string) error
	PublicURL(key string) string
}

func NewMediaWorker(store *storage.SQLiteStore, uploader Uploader, httpClient *http.Client) *MediaWorker {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 60 * time.Second}
	}
	return &MediaWorker{
		store:      store,
		httpClient: httpClient,
		uploader:   uploader,
	}
}

// MediaProcessResult is the outcome of mirroring one photo.
type MediaProcessResult struct {
	S3Key       string
	ContentHash string
	Size        int64
	Error       error
}

// Process downloads one photo, hashes it and uploads it under a
// content-addressed key.
func (w *MediaWorker) Process(ctx context.Context, media *models.Media) MediaProcessResult {
	var result MediaProcessResult

	req, err := http.NewRequestWithContext(ctx, "GET", media.OriginalURL, nil)
	if err != nil {
		result.Error = fmt.Errorf("create request: %w", err)
		return result
	}
	req.Header.Set("User-Agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36")
	req.Header.Set("Accept", "image/*,*/*")

	resp, err := w.httpClient.Do(req)
	if err != nil {
		result.Error = fmt.Errorf("download: %w", err)
		return result
	}
	defer resp.Body.Close()

	if resp.StatusCode != 200 {
		result.Error = fmt.Errorf("download status: %d", resp.StatusCode)
		return result
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, 50*1024*1024))
	if err != nil {
		result.Error = fmt.Errorf("read body: %w", err)
		return result
	}
	result.Size = int64(len(data))

	hash := sha256.Sum256(data)
	result.ContentHash = hex.EncodeToString(hash[:])

	ext := guessExtension(media.OriginalURL, resp.Header.Get("Content-Type"))
	result.S3Key = fmt.Sprintf("media/%s/%s%s", result.ContentHash[:2], result.ContentHash, ext)

	if w.uploader != nil {
		contentType := resp.Header.Get("Content-Type")
		if contentType == "" {
			contentType = "image/jpeg"
		}
		if err := w.uploader.Upload(ctx, result.S3Key, bytes.NewReader(data), contentType); err != nil {
			result.Error = fmt.Errorf("upload: %w", err)
			return result
		}
	}

	return result
}

// Run starts the worker loop, waking on the interval to drain a batch.
func (w *MediaWorker) Run(ctx context.Context, batchSize int, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Println("Media worker stopping")
			return
		case <-ticker.C:
			w.processBatch(ctx, batchSize)
		}
	}
}

func (w *MediaWorker) processBatch(ctx context.Context, batchSize int) {
	media, err := w.store.PendingMedia(batchSize, maxMediaAttempts)
	if err != nil {
		log.Printf("Media worker: query error: %v", err)
		return
	}
	if len(media) == 0 {
		return
	}

	log.Printf("Media worker: processing %d items", len(media))

	var processed, failed int
	for i := range media {
		m := &media[i]

		result := w.Process(ctx, m)
		if result.Error != nil {
			log.Printf("Media worker: failed %s: %v", m.OriginalURL, result.Error)
			failed++
			w.store.MarkMediaFailed(m.ID, m.Attempts+1 >= maxMediaAttempts)
			continue
		}

		if err := w.store.MarkMediaUploaded(m.ID, result.S3Key, result.ContentHash, result.Size); err != nil {
			log.Printf("Media worker: failed to update %d: %v", m.ID, err)
			failed++
			continue
		}

		processed++
		dest := result.S3Key
		if w.uploader != nil {
			if u := w.uploader.PublicURL(result.S3Key); u != "" {
				dest = u
			}
		}
		log.Printf("Media worker: uploaded %s -> %s (%d bytes)", m.OriginalURL, dest, result.Size)

		// Rate limit between downloads
		time.Sleep(200 * time.Millisecond)
	}

	if processed > 0 || failed > 0 {
		log.Printf("Media worker: processed %d, failed %d", processed, failed)
	}
}

func guessExtension(url, contentType string) string {
	ext := strings.ToLower(path.Ext(url))
	if idx := strings.IndexAny(ext, "?#"); idx >= 0 {
		ext = ext[:idx]
	}
	if isImageExt(ext) {
		return ext
	}

	switch contentType {
	case "image/jpeg", "image/jpg":
		return ".jpg"
	case "image/png":
		return ".png"
	case "image/gif":
		return ".gif"
	case "image/webp":
		return ".webp"
	default:
		return ".jpg"
	}
}

func isImageExt(ext string) bool {
	switch ext {
	case ".jpg", ".jpeg", ".png", ".gif", ".webp", ".bmp", ".tiff":
		return true
	}
	return false
}

// NoOpUploader drains the data without storing it, for runs without S3
// credentials.
type NoOpUploader struct{}

func (u *NoOpUploader) Upload(ctx context.Context, key string, data io.Reader, contentType string) error {
	io.Copy(io.Discard, data)
	return nil
}

func (u *NoOpUploader) PublicURL(key string) string {
	return ""
}
