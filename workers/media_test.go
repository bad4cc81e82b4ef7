package workers

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"vivareal_scraper/models"
)

// recordingUploader captures uploads so tests can assert what reached
// object storage.
type recordingUploader struct {
	keys         []string
	contentTypes []string
	bodies       [][]byte
}

func (u *recordingUploader) Upload(ctx context.Context, key string, data io.Reader, contentType string) error {
	body, err := io.ReadAll(data)
	if err != nil {
		return err
	}
	u.keys = append(u.keys, key)
	u.contentTypes = append(u.contentTypes, contentType)
	u.bodies = append(u.bodies, body)
	return nil
}

func (u *recordingUploader) PublicURL(key string) string {
	return "https://cdn.example.com/" + key
}

func TestMediaWorker_Process(t *testing.T) {
	imageBytes := []byte("fake-png-bytes")
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/png")
		w.Write(imageBytes)
	}))
	defer server.Close()

	uploader := &recordingUploader{}
	worker := NewMediaWorker(nil, uploader, server.Client())

	media := &models.Media{OriginalURL: server.URL + "/foto1"}
	result := worker.Process(context.Background(), media)
	if result.Error != nil {
		t.Fatalf("Process: %v", result.Error)
	}

	hash := sha256.Sum256(imageBytes)
	wantHash := hex.EncodeToString(hash[:])
	if result.ContentHash != wantHash {
		t.Errorf("ContentHash = %q, want %q", result.ContentHash, wantHash)
	}
	wantKey := fmt.Sprintf("media/%s/%s.png", wantHash[:2], wantHash)
	if result.S3Key != wantKey {
		t.Errorf("S3Key = %q, want %q", result.S3Key, wantKey)
	}
	if result.Size != int64(len(imageBytes)) {
		t.Errorf("Size = %d, want %d", result.Size, len(imageBytes))
	}

	if len(uploader.keys) != 1 || uploader.keys[0] != wantKey {
		t.Errorf("uploaded keys = %v, want [%s]", uploader.keys, wantKey)
	}
	if uploader.contentTypes[0] != "image/png" {
		t.Errorf("content type = %q, want image/png", uploader.contentTypes[0])
	}
	if string(uploader.bodies[0]) != string(imageBytes) {
		t.Errorf("uploaded body does not match downloaded bytes")
	}
	if got := uploader.PublicURL(result.S3Key); got != "https://cdn.example.com/"+wantKey {
		t.Errorf("PublicURL = %q", got)
	}
}

func TestMediaWorker_ProcessDownloadError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	worker := NewMediaWorker(nil, &recordingUploader{}, server.Client())

	media := &models.Media{OriginalURL: server.URL + "/gone.jpg"}
	result := worker.Process(context.Background(), media)
	if result.Error == nil {
		t.Fatal("expected error for 404 download")
	}
}

func TestGuessExtension(t *testing.T) {
	tests := []struct {
		url         string
		contentType string
		want        string
	}{
		{"https://resizedimgs.vivareal.com/foto1.jpg", "", ".jpg"},
		{"https://resizedimgs.vivareal.com/foto1.webp", "image/jpeg", ".webp"},
		{"https://resizedimgs.vivareal.com/foto1", "image/png", ".png"},
		{"https://resizedimgs.vivareal.com/foto1", "image/webp", ".webp"},
		{"https://resizedimgs.vivareal.com/foto1.bin", "", ".jpg"},
		{"https://resizedimgs.vivareal.com/foto1", "", ".jpg"},
	}
	for _, tt := range tests {
		if got := guessExtension(tt.url, tt.contentType); got != tt.want {
			t.Errorf("guessExtension(%q, %q) = %q, want %q", tt.url, tt.contentType, got, tt.want)
		}
	}
}

func TestNoOpUploader(t *testing.T) {
	u := &NoOpUploader{}
	if err := u.Upload(context.Background(), "media/ab/abcd.jpg", strings.NewReader("bytes"), "image/jpeg"); err != nil {
		t.Fatalf("Upload: %v", err)
	}
	if got := u.PublicURL("media/ab/abcd.jpg"); got != "" {
		t.Errorf("PublicURL = %q, want empty", got)
	}
}
