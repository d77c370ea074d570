package documents

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"autoquote/internal/config"
)

func TestLocalStorePut(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "quotes")
	s := NewLocalStore(dir)

	ref, err := s.Put(context.Background(), "../quote-abc.pdf", []byte("%PDF-1.3"), "application/pdf")
	if err != nil {
		t.Fatal(err)
	}
	if ref != filepath.Join(dir, "quote-abc.pdf") {
		t.Fatalf("ref=%s", ref)
	}
	b, err := os.ReadFile(ref)
	if err != nil || string(b) != "%PDF-1.3" {
		t.Fatalf("content=%q err=%v", b, err)
	}
	if _, err := os.Stat(ref + ".tmp"); !os.IsNotExist(err) {
		t.Fatal("temp file left behind")
	}
}

func TestS3StorePut(t *testing.T) {
	t.Setenv("AWS_ACCESS_KEY_ID", "test")
	t.Setenv("AWS_SECRET_ACCESS_KEY", "test")
	t.Setenv("AWS_EC2_METADATA_DISABLED", "true")
	t.Setenv("AWS_CONFIG_FILE", filepath.Join(t.TempDir(), "none"))
	t.Setenv("AWS_SHARED_CREDENTIALS_FILE", filepath.Join(t.TempDir(), "none"))

	var mu sync.Mutex
	var method, path, contentType string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		defer mu.Unlock()
		method, path, contentType = r.Method, r.URL.Path, r.Header.Get("Content-Type")
		_, _ = io.Copy(io.Discard, r.Body)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	store, err := NewS3Store(context.Background(), config.Config{S3Bucket: "quotes-bucket", S3Region: "ap-south-1", S3Endpoint: srv.URL})
	if err != nil {
		t.Fatal(err)
	}
	ref, err := store.Put(context.Background(), "quote-abc.pdf", []byte("%PDF-1.3"), "application/pdf")
	if err != nil {
		t.Fatal(err)
	}

	mu.Lock()
	defer mu.Unlock()
	if method != http.MethodPut || path != "/quotes-bucket/quotes/quote-abc.pdf" || contentType != "application/pdf" {
		t.Fatalf("method=%s path=%s ct=%s", method, path, contentType)
	}
	if ref != srv.URL+"/quotes-bucket/quotes/quote-abc.pdf" {
		t.Fatalf("ref=%s", ref)
	}
}

func TestNewRejectsUnknownBackend(t *testing.T) {
	if _, err := New(context.Background(), config.Config{DocumentStore: "ftp"}); err == nil || !strings.Contains(err.Error(), "ftp") {
		t.Fatalf("err=%v", err)
	}
	s, err := New(context.Background(), config.Config{OutputDir: t.TempDir()})
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := s.(*LocalStore); !ok {
		t.Fatalf("got %T", s)
	}
	if _, err := New(context.Background(), config.Config{DocumentStore: "s3"}); err == nil {
		t.Fatal("s3 without a bucket must fail")
	}
}
