package fetcher

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"MarineIntel/internal/config"
	"MarineIntel/internal/domain"
	"MarineIntel/internal/feed"
	"MarineIntel/internal/ports"
)

const (
	userAgent    = "MarineIntel/1.0"
	maxBodyBytes = 5 * 1024 * 1024
)

// FeedFetcher performs one timed, cancellable fetch per source and filters
// the extracted records down to reportable items. A failing source logs and
// returns empty; it never aborts the poll cycle.
type FeedFetcher struct {
	client       *http.Client
	timeout      time.Duration
	lookback     time.Duration
	summaryLimit int
	logger       *slog.Logger
	now          func() time.Time
}

var _ ports.SourceFetcher = (*FeedFetcher)(nil)

// NewFeedFetcher wires an HTTP client; a nil client gets a default one.
func NewFeedFetcher(client *http.Client, cfg config.FetchConfig, logger *slog.Logger) *FeedFetcher {
	if client == nil {
		client = &http.Client{}
	}
	return &FeedFetcher{
		client:       client,
		timeout:      cfg.Timeout,
		lookback:     cfg.Lookback(),
		summaryLimit: cfg.SummaryLimit,
		logger:       logger,
		now:          time.Now,
	}
}

// Fetch retrieves one source and returns its new items in document order.
// Filters, in order: missing title or link, older than the lookback horizon
// (unknown age passes), identifier already seen, then summary truncation.
func (f *FeedFetcher) Fetch(ctx context.Context, src domain.Source, seen map[string]struct{}) []domain.IntelItem {
	body, ok := f.get(ctx, src.Name, src.URL)
	if !ok {
		return nil
	}

	records := feed.Items(body)
	cutoff := f.now().Add(-f.lookback)

	items := make([]domain.IntelItem, 0, len(records))
	for _, rec := range records {
		if rec.Title == "" || rec.Link == "" {
			continue
		}

		published := feed.ParseTime(rec.Published)
		if !published.IsZero() && published.Before(cutoff) {
			continue
		}

		id := domain.ItemID(src.Name, rec.Link)
		if _, dup := seen[id]; dup {
			continue
		}

		items = append(items, domain.IntelItem{
			ID:          id,
			Title:       rec.Title,
			Link:        strings.TrimSpace(rec.Link),
			PublishedAt: published,
			Summary:     truncate(rec.Description, f.summaryLimit),
			Source:      src.Name,
			Category:    src.Category,
		})
	}

	return items
}

func (f *FeedFetcher) get(ctx context.Context, name, rawURL string) (string, bool) {
	ctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		f.logger.Warn("build request failed", "source", name, "error", err)
		return "", false
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := f.client.Do(req)
	if err != nil {
		f.logger.Warn("fetch failed", "source", name, "error", err)
		return "", false
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		f.logger.Warn("unexpected status", "source", name, "status", resp.Status)
		return "", false
	}

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		f.logger.Warn("read body failed", "source", name, "error", err)
		return "", false
	}

	return string(raw), true
}

func truncate(s string, limit int) string {
	s = strings.TrimSpace(s)
	if limit <= 0 {
		return s
	}
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit]) + "..."
}
