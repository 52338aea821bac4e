package archive

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestWriteReadRoundtrip(t *testing.T) {
	t.Parallel()

	a := NewFS(t.TempDir(), t.TempDir())
	if err := a.Write("2026-08-30", "daily body"); err != nil {
		t.Fatalf("write: %v", err)
	}

	body, err := a.Read("2026-08-30")
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if body != "daily body" {
		t.Fatalf("unexpected body: %q", body)
	}
}

func TestListSorted(t *testing.T) {
	t.Parallel()

	a := NewFS(t.TempDir(), t.TempDir())
	for _, label := range []string{"2026-08-30", "alert-2026-08-29-101500", "2026-08-29"} {
		if err := a.Write(label, "x"); err != nil {
			t.Fatalf("write %s: %v", label, err)
		}
	}

	labels, err := a.List()
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if strings.Join(labels, ",") != "2026-08-29,2026-08-30,alert-2026-08-29-101500" {
		t.Fatalf("unexpected labels: %v", labels)
	}
}

func TestListEmptyWithoutDirectory(t *testing.T) {
	t.Parallel()

	a := NewFS(filepath.Join(t.TempDir(), "never-created"), t.TempDir())
	labels, err := a.List()
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(labels) != 0 {
		t.Fatalf("expected no labels, got %v", labels)
	}
}

func TestLatestPicksNewestWrite(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	a := NewFS(dir, t.TempDir())
	if err := a.Write("2026-08-29", "older"); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := a.Write("2026-08-30", "newer"); err != nil {
		t.Fatalf("write: %v", err)
	}

	// Force a distinct modification time; two writes can land in the same tick.
	past := time.Now().Add(-time.Hour)
	if err := os.Chtimes(filepath.Join(dir, "2026-08-29.md"), past, past); err != nil {
		t.Fatalf("chtimes: %v", err)
	}

	label, body, err := a.Latest()
	if err != nil {
		t.Fatalf("latest: %v", err)
	}
	if label != "2026-08-30" || body != "newer" {
		t.Fatalf("unexpected latest: %s %q", label, body)
	}
}

func TestFallbackDropIsSeparate(t *testing.T) {
	t.Parallel()

	fallback := t.TempDir()
	a := NewFS(t.TempDir(), fallback)
	if err := a.WriteFallback("2026-08-30", "undelivered"); err != nil {
		t.Fatalf("write fallback: %v", err)
	}

	raw, err := os.ReadFile(filepath.Join(fallback, "2026-08-30.md"))
	if err != nil {
		t.Fatalf("read fallback file: %v", err)
	}
	if string(raw) != "undelivered" {
		t.Fatalf("unexpected fallback body: %q", raw)
	}

	if _, err := a.Read("2026-08-30"); err == nil {
		t.Fatalf("fallback write must not reach the main archive")
	}
}

func TestRejectsHostileLabels(t *testing.T) {
	t.Parallel()

	a := NewFS(t.TempDir(), t.TempDir())
	for _, label := range []string{"", "../escape", "a/b", `a\b`} {
		if err := a.Write(label, "x"); err == nil {
			t.Fatalf("expected error for label %q", label)
		}
		if _, err := a.Read(label); err == nil {
			t.Fatalf("expected read error for label %q", label)
		}
	}
}
