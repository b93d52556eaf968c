package store

import (
	"bytes"
	"context"
	"errors"
	"os"
	"testing"
)

func TestFilesystemBlobStorePutGetRoundTrip(t *testing.T) {
	dir := t.TempDir()
	key := bytes.Repeat([]byte("k"), 32) // AES-256

	s, err := NewFilesystemBlobStore(dir, key)
	if err != nil {
		t.Fatalf("NewFilesystemBlobStore: unexpected error: %v", err)
	}
	ctx := context.Background()

	data := []byte("raw article HTML")
	ref, err := s.Put(ctx, "raw", "article-1", data, "text/html")
	if err != nil {
		t.Fatalf("Put: unexpected error: %v", err)
	}
	if ref == "" {
		t.Fatal("Put: want non-empty ref")
	}

	got, contentType, err := s.Get(ctx, "raw", "article-1")
	if err != nil {
		t.Fatalf("Get: unexpected error: %v", err)
	}
	if !bytes.Equal(got, data) {
		t.Fatalf("Get: data = %q, want %q", got, data)
	}
	if contentType != "text/html" {
		t.Fatalf("Get: contentType = %q, want %q", contentType, "text/html")
	}
}

func TestFilesystemBlobStoreEncryptsAtRest(t *testing.T) {
	dir := t.TempDir()
	key := bytes.Repeat([]byte("k"), 32)

	s, err := NewFilesystemBlobStore(dir, key)
	if err != nil {
		t.Fatalf("NewFilesystemBlobStore: unexpected error: %v", err)
	}
	ctx := context.Background()

	data := []byte("sensitive normalized content")
	if _, err := s.Put(ctx, "normalized", "article-1", data, "text/plain"); err != nil {
		t.Fatalf("Put: unexpected error: %v", err)
	}

	sealed, err := os.ReadFile(s.path("normalized", "article-1"))
	if err != nil {
		t.Fatalf("reading sealed blob: %v", err)
	}
	if bytes.Contains(sealed, data) {
		t.Fatal("sealed blob contains plaintext, want ciphertext only")
	}
}

func TestFilesystemBlobStoreGetNotFound(t *testing.T) {
	dir := t.TempDir()
	key := bytes.Repeat([]byte("k"), 32)

	s, err := NewFilesystemBlobStore(dir, key)
	if err != nil {
		t.Fatalf("NewFilesystemBlobStore: unexpected error: %v", err)
	}

	_, _, err = s.Get(context.Background(), "raw", "missing")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("Get missing key: want ErrNotFound, got %v", err)
	}
}

func TestFilesystemBlobStoreRejectsBadKeySize(t *testing.T) {
	dir := t.TempDir()
	if _, err := NewFilesystemBlobStore(dir, []byte("too-short")); err == nil {
		t.Fatal("want error for invalid AES key size, got nil")
	}
}
