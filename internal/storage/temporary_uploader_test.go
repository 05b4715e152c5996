package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"path"
	"strings"
	"sync"
	"testing"
	"time"

	apperrors "github.com/anime-shed/vision-analysis-go/internal/errors"
	"github.com/anime-shed/vision-analysis-go/internal/logger"
)

var pngBytes = []byte{0x89, 0x50, 0x4E, 0x47, 0x0D, 0x0A, 0x1A, 0x0A, 0x00, 0x00, 0x00, 0x0D}

type recordingTracker struct {
	mu    sync.Mutex
	names []string
}

func (r *recordingTracker) Track(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.names = append(r.names, name)
}

func init() {
	logger.SetOutput(io.Discard)
}

func blobNameFromURL(t *testing.T, blobURL string) string {
	t.Helper()
	return path.Base(blobURL)
}

func TestExtensionForContentType(t *testing.T) {
	tests := map[string]string{
		"image/jpeg":               ".jpg",
		"image/png":                ".png",
		"image/gif":                ".gif",
		"image/bmp":                ".bmp",
		"IMAGE/PNG":                ".png",
		"image/jpeg; charset=x":    ".jpg",
		"image/webp":               ".bin",
		"application/octet-stream": ".bin",
		"":                         ".bin",
	}

	for contentType, want := range tests {
		if got := ExtensionForContentType(contentType); got != want {
			t.Errorf("ExtensionForContentType(%q) = %q, want %q", contentType, got, want)
		}
	}
}

func TestUpload_StagesBlobWithExpiry(t *testing.T) {
	store := newMemoryStore()
	tracker := &recordingTracker{}
	u := NewTemporaryUploader(store, nil, nil, tracker).(*temporaryUploader)
	fixed := time.Date(2025, 3, 28, 10, 0, 0, 0, time.UTC)
	u.now = func() time.Time { return fixed }

	blobURL, err := u.Upload(context.Background(), bytes.NewReader(pngBytes), "image/png", ".png")
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	if !strings.HasPrefix(blobURL, "https://account.blob.core.windows.net/temp/") {
		t.Errorf("Unexpected blob URL %s", blobURL)
	}
	if !strings.HasSuffix(blobURL, ".png") {
		t.Errorf("Expected .png blob, got %s", blobURL)
	}

	b := store.blob(blobNameFromURL(t, blobURL))
	if b == nil {
		t.Fatal("Expected blob to be stored")
	}
	if !bytes.Equal(b.data, pngBytes) {
		t.Error("Stored bytes differ from the upload")
	}
	if b.contentType != "image/png" {
		t.Errorf("Expected content type to survive header update, got %q", b.contentType)
	}
	if b.cacheControl != "max-age=300" {
		t.Errorf("Expected Cache-Control max-age=300, got %q", b.cacheControl)
	}
	if got := b.metadata[ExpiryMetadataKey]; got != "2025-03-28T10:05:00Z" {
		t.Errorf("Expected expiry 5 minutes ahead, got %q", got)
	}
	if store.ensured != 1 {
		t.Errorf("Expected container to be ensured once, got %d", store.ensured)
	}
	if len(tracker.names) != 1 || tracker.names[0] != blobNameFromURL(t, blobURL) {
		t.Errorf("Expected tracker to receive the blob name, got %v", tracker.names)
	}
}

func TestUpload_ExtensionFromContentTypeWhenMissing(t *testing.T) {
	store := newMemoryStore()
	u := NewTemporaryUploader(store, nil, nil, nil)

	tests := []struct {
		contentType string
		extension   string
		wantSuffix  string
	}{
		{"image/png", "", ".png"},
		{"image/jpeg", "", ".jpg"},
		{"application/pdf", "", ".bin"},
		{"image/png", "jpeg", ".jpeg"},
	}

	for _, tt := range tests {
		blobURL, err := u.Upload(context.Background(), bytes.NewReader(pngBytes), tt.contentType, tt.extension)
		if err != nil {
			t.Fatalf("Upload(%q, %q) failed: %v", tt.contentType, tt.extension, err)
		}
		if !strings.HasSuffix(blobURL, tt.wantSuffix) {
			t.Errorf("Upload(%q, %q): expected suffix %s, got %s", tt.contentType, tt.extension, tt.wantSuffix, blobURL)
		}
	}
}

func TestUpload_ValidatesInput(t *testing.T) {
	u := NewTemporaryUploader(newMemoryStore(), nil, nil, nil)

	if _, err := u.Upload(context.Background(), nil, "image/png", ".png"); !apperrors.IsType(err, apperrors.ErrorTypeValidation) {
		t.Errorf("Expected validation error for nil body, got %v", err)
	}
	if _, err := u.Upload(context.Background(), bytes.NewReader(pngBytes), " ", ".png"); !apperrors.IsType(err, apperrors.ErrorTypeValidation) {
		t.Errorf("Expected validation error for empty content type, got %v", err)
	}
}

func TestUpload_StorageFailuresPropagate(t *testing.T) {
	for _, op := range []string{"ensure", "put", "metadata"} {
		t.Run(op, func(t *testing.T) {
			store := newMemoryStore()
			store.failOn = op
			tracker := &recordingTracker{}
			u := NewTemporaryUploader(store, nil, nil, tracker)

			_, err := u.Upload(context.Background(), bytes.NewReader(pngBytes), "image/png", ".png")
			if err == nil {
				t.Fatal("Expected an error")
			}
			if !errors.Is(err, errStoreDown) {
				t.Errorf("Expected the storage error in the chain, got %v", err)
			}
			if !apperrors.IsType(err, apperrors.ErrorTypeUpstream) {
				t.Errorf("Expected upstream error, got %v", err)
			}
			if len(tracker.names) != 0 {
				t.Errorf("Failed uploads must not be tracked, got %v", tracker.names)
			}
		})
	}
}

func TestUpload_HalfWrittenBlobIsNotCleanedUp(t *testing.T) {
	store := newMemoryStore()
	store.failOn = "metadata"
	u := NewTemporaryUploader(store, nil, nil, nil)

	if _, err := u.Upload(context.Background(), bytes.NewReader(pngBytes), "image/png", ".png"); err == nil {
		t.Fatal("Expected an error")
	}
	if len(store.blobs) != 1 {
		t.Errorf("Expected the written blob to remain, got %d blobs", len(store.blobs))
	}
	if len(store.deletedNames()) != 0 {
		t.Error("Expected no delete calls")
	}
}

func TestUpload_ConcurrentUploadsGetDistinctNames(t *testing.T) {
	store := newMemoryStore()
	u := NewTemporaryUploader(store, nil, nil, nil)

	const uploads = 50
	urls := make([]string, uploads)
	errs := make([]error, uploads)

	var wg sync.WaitGroup
	for i := 0; i < uploads; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			payload := []byte(fmt.Sprintf("payload-%d", i))
			urls[i], errs[i] = u.Upload(context.Background(), bytes.NewReader(payload), "image/png", "")
		}(i)
	}
	wg.Wait()

	seen := make(map[string]bool, uploads)
	for i := 0; i < uploads; i++ {
		if errs[i] != nil {
			t.Fatalf("Upload %d failed: %v", i, errs[i])
		}
		if seen[urls[i]] {
			t.Fatalf("Duplicate blob URL %s", urls[i])
		}
		seen[urls[i]] = true

		b := store.blob(blobNameFromURL(t, urls[i]))
		if b == nil || string(b.data) != fmt.Sprintf("payload-%d", i) {
			t.Errorf("Upload %d: stored payload mismatch", i)
		}
	}
}

func TestUploadFromURL_ContentTypeFallback(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/photo":
			w.Header().Set("Content-Type", "image/jpeg")
		case "/photo.gif":
			w.Header().Set("Content-Type", "image/jpeg")
		case "/blob":
			w.Header().Set("Content-Type", "application/x-custom")
		}
		w.Write(pngBytes)
	}))
	defer server.Close()

	tests := []struct {
		path            string
		wantSuffix      string
		wantContentType string
	}{
		{"/photo", ".jpg", "image/jpeg"},
		{"/photo.gif", ".gif", "image/jpeg"},
		{"/blob", ".bin", "application/x-custom"},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			store := newMemoryStore()
			u := NewTemporaryUploader(store, NewHTTPSourceFetcher(5*time.Second), nil, nil)

			blobURL, err := u.UploadFromURL(context.Background(), server.URL+tt.path+"?v=1")
			if err != nil {
				t.Fatalf("Expected no error, got %v", err)
			}
			if !strings.HasSuffix(blobURL, tt.wantSuffix) {
				t.Errorf("Expected suffix %s, got %s", tt.wantSuffix, blobURL)
			}
			b := store.blob(blobNameFromURL(t, blobURL))
			if b == nil {
				t.Fatal("Expected blob to be stored")
			}
			if b.contentType != tt.wantContentType {
				t.Errorf("Expected content type %s, got %s", tt.wantContentType, b.contentType)
			}
		})
	}
}

func TestUploadFromURL_NonSuccessStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	store := newMemoryStore()
	u := NewTemporaryUploader(store, NewHTTPSourceFetcher(5*time.Second), nil, nil)

	_, err := u.UploadFromURL(context.Background(), server.URL+"/missing.png")
	if err == nil {
		t.Fatal("Expected an error for 404")
	}
	if !strings.Contains(err.Error(), "status code 404") {
		t.Errorf("Expected status code in error, got %v", err)
	}
	if store.ensured != 0 {
		t.Error("Storage must not be touched when the download fails")
	}
}

func TestUploadFromURL_RejectsInvalidSource(t *testing.T) {
	u := NewTemporaryUploader(newMemoryStore(), NewHTTPSourceFetcher(time.Second), nil, nil)

	for _, src := range []string{"", "not a url", "ftp://example.com/a.png"} {
		if _, err := u.UploadFromURL(context.Background(), src); !apperrors.IsType(err, apperrors.ErrorTypeValidation) {
			t.Errorf("UploadFromURL(%q): expected validation error, got %v", src, err)
		}
	}
}
