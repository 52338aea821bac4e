package state

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"MarineIntel/internal/domain"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func openTestStore(t *testing.T, seenCap, seenTail int) *Store {
	t.Helper()
	store, err := Open(filepath.Join(t.TempDir(), "state.db"), seenCap, seenTail, testLogger())
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestSaveLoadRoundtrip(t *testing.T) {
	t.Parallel()

	store := openTestStore(t, 100, 50)
	ctx := context.Background()

	published := time.Date(2026, time.August, 30, 9, 0, 0, 0, time.UTC)
	st := domain.State{
		Seen: []string{"id-1", "id-2", "id-3"},
		Buffer: []domain.IntelItem{
			{
				ID:          "id-2",
				Title:       "FuelEU pooling guidance",
				Link:        "https://news.example.com/2",
				PublishedAt: published,
				Summary:     "short",
				Source:      "example",
				Category:    "market",
			},
			{
				ID:       "id-3",
				Title:    "MEPC circular",
				Link:     "https://www.imo.org/c/3",
				Source:   "IMO Publications",
				Category: "regulatory",
				Alert:    true,
			},
		},
		LastReportDate: "2026-08-30",
		LastPollAt:     time.Date(2026, time.August, 30, 12, 30, 0, 0, time.UTC),
	}

	if err := store.Save(ctx, &st); err != nil {
		t.Fatalf("save: %v", err)
	}

	loaded := store.Load(ctx)
	if len(loaded.Seen) != 3 || loaded.Seen[0] != "id-1" || loaded.Seen[2] != "id-3" {
		t.Fatalf("seen not preserved in order: %v", loaded.Seen)
	}
	if len(loaded.Buffer) != 2 {
		t.Fatalf("expected 2 buffered items, got %d", len(loaded.Buffer))
	}
	if !loaded.Buffer[0].PublishedAt.Equal(published) {
		t.Fatalf("publish time not preserved: %v", loaded.Buffer[0].PublishedAt)
	}
	if !loaded.Buffer[1].PublishedAt.IsZero() {
		t.Fatalf("zero publish time not preserved: %v", loaded.Buffer[1].PublishedAt)
	}
	if !loaded.Buffer[1].Alert {
		t.Fatalf("alert flag not preserved")
	}
	if loaded.LastReportDate != "2026-08-30" {
		t.Fatalf("unexpected last report date: %q", loaded.LastReportDate)
	}
	if !loaded.LastPollAt.Equal(st.LastPollAt) {
		t.Fatalf("unexpected last poll time: %v", loaded.LastPollAt)
	}
}

func TestSaveEnforcesSeenCap(t *testing.T) {
	t.Parallel()

	store := openTestStore(t, 10, 5)
	ctx := context.Background()

	var st domain.State
	for i := 0; i < 25; i++ {
		st.Seen = append(st.Seen, fmt.Sprintf("id-%03d", i))
	}

	if err := store.Save(ctx, &st); err != nil {
		t.Fatalf("save: %v", err)
	}

	if len(st.Seen) != 5 {
		t.Fatalf("in-memory seen not trimmed: %d", len(st.Seen))
	}

	loaded := store.Load(ctx)
	if len(loaded.Seen) != 5 {
		t.Fatalf("expected tail of 5 after cap, got %d", len(loaded.Seen))
	}
	if loaded.Seen[0] != "id-020" || loaded.Seen[4] != "id-024" {
		t.Fatalf("expected most recent tail, got %v", loaded.Seen)
	}
}

func TestLoadFreshWhenNothingPersisted(t *testing.T) {
	t.Parallel()

	store := openTestStore(t, 100, 50)

	st := store.Load(context.Background())
	if len(st.Seen) != 0 || len(st.Buffer) != 0 || st.LastReportDate != "" || !st.LastPollAt.IsZero() {
		t.Fatalf("expected empty state, got %+v", st)
	}
}

func TestOpenRecoversFromCorruptFile(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "state.db")
	if err := os.WriteFile(path, []byte("this is not a database"), 0o644); err != nil {
		t.Fatalf("seed corrupt file: %v", err)
	}

	store, err := Open(path, 100, 50, testLogger())
	if err != nil {
		t.Fatalf("open over corrupt file: %v", err)
	}
	defer store.Close()

	ctx := context.Background()
	st := store.Load(ctx)
	if len(st.Seen) != 0 || len(st.Buffer) != 0 {
		t.Fatalf("expected fresh state after corruption, got %+v", st)
	}

	// The recreated database must be writable again.
	st.Seen = []string{"id-1"}
	if err := store.Save(ctx, &st); err != nil {
		t.Fatalf("save after recovery: %v", err)
	}
}
