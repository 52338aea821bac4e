package fetcher

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"MarineIntel/internal/config"
	"MarineIntel/internal/domain"
)

const regulatoryPage = `<html><body>
<nav><a href="/contact">Contact us</a></nav>
<main>
  <a href="/en/publications/mepc-82-circular">MEPC 82 circular on CII correction factors</a>
  <a href="/en/publications/mepc-82-circular">MEPC 82 circular on CII correction factors</a>
  <a href="/x">IMO</a>
  <a href="https://example.org/careers">Join our growing team today</a>
</main>
</body></html>`

func testRegulatoryConfig(pageURL string) config.RegulatoryConfig {
	return config.RegulatoryConfig{
		SourceName:  "IMO Publications",
		PageURL:     pageURL,
		BaseURL:     "https://www.imo.org",
		MinLinkText: 10,
	}
}

func TestRegulatoryMonitorFiltersAndNormalizes(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, regulatoryPage)
	}))
	defer server.Close()

	m := NewRegulatoryMonitor(server.Client(), testRegulatoryConfig(server.URL), 5*time.Second, testLogger())

	// "Contact us" is long enough but matches no vocabulary term; the bare
	// "IMO" link is too short; the careers link matches nothing; the circular
	// appears twice and must be deduplicated by link.
	items := m.Fetch(context.Background(), map[string]struct{}{})
	if len(items) != 1 {
		t.Fatalf("expected exactly 1 alert item, got %d", len(items))
	}

	item := items[0]
	if item.Link != "https://www.imo.org/en/publications/mepc-82-circular" {
		t.Fatalf("relative link not normalized: %q", item.Link)
	}
	if !item.Alert {
		t.Fatalf("regulatory item must be alert-flagged")
	}
	if item.Category != "regulatory" {
		t.Fatalf("unexpected category: %q", item.Category)
	}
	if item.Source != "IMO Publications" {
		t.Fatalf("unexpected source: %q", item.Source)
	}
	if item.ID != domain.LinkID(item.Link) {
		t.Fatalf("identifier must derive from link alone")
	}
}

func TestRegulatoryMonitorRespectsSeen(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, regulatoryPage)
	}))
	defer server.Close()

	m := NewRegulatoryMonitor(server.Client(), testRegulatoryConfig(server.URL), 5*time.Second, testLogger())

	seen := map[string]struct{}{
		domain.LinkID("https://www.imo.org/en/publications/mepc-82-circular"): {},
	}
	if items := m.Fetch(context.Background(), seen); len(items) != 0 {
		t.Fatalf("expected 0 items for already-seen circular, got %d", len(items))
	}
}

func TestRegulatoryMonitorUnreachablePage(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "maintenance", http.StatusServiceUnavailable)
	}))
	defer server.Close()

	m := NewRegulatoryMonitor(server.Client(), testRegulatoryConfig(server.URL), 5*time.Second, testLogger())

	if items := m.Fetch(context.Background(), map[string]struct{}{}); len(items) != 0 {
		t.Fatalf("expected empty result on 503, got %d items", len(items))
	}
}
