package gateway

import (
	"context"
	"os"
	"path/filepath"
	"testing"
)

func TestLocalStoreRoundTrip(t *testing.T) {
	s := LocalStore{Dir: t.TempDir()}
	ctx := context.Background()

	if err := s.Upload(ctx, "t1/abc/notes.txt", []byte("hello"), "text/plain"); err != nil {
		t.Fatalf("Upload: %v", err)
	}
	b, err := os.ReadFile(filepath.Join(s.Dir, "t1", "abc", "notes.txt"))
	if err != nil || string(b) != "hello" {
		t.Fatalf("stored payload wrong: %q, %v", b, err)
	}

	if err := s.Remove(ctx, "t1/abc/notes.txt"); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	// Removing again is fine: the desired state already holds.
	if err := s.Remove(ctx, "t1/abc/notes.txt"); err != nil {
		t.Fatalf("Remove of missing object: %v", err)
	}
}

func TestLocalStoreRejectsEscapingKeys(t *testing.T) {
	s := LocalStore{Dir: t.TempDir()}
	for _, key := range []string{"../outside", "..", "/etc/passwd", "a/../../b"} {
		if err := s.Upload(context.Background(), key, []byte("x"), ""); err == nil {
			t.Fatalf("key %q must be rejected", key)
		}
	}
}

func TestLocalStorePublicURL(t *testing.T) {
	s := LocalStore{Dir: "/var/data", BaseURL: "https://files.example.com/"}
	if got := s.PublicURL("t1/x.png"); got != "https://files.example.com/t1/x.png" {
		t.Fatalf("unexpected URL %q", got)
	}
	bare := LocalStore{Dir: "/var/data"}
	if got := bare.PublicURL("t1/x.png"); got != "file:///var/data/t1/x.png" {
		t.Fatalf("unexpected URL %q", got)
	}
}
