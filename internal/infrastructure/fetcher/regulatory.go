package fetcher

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"

	"MarineIntel/internal/config"
	"MarineIntel/internal/domain"
	"MarineIntel/internal/ports"
)

const regulatoryCategory = "regulatory"

// relevanceExpr is a precision filter over link text plus href: regulatory
// body abbreviations, compliance-scheme acronyms, and emissions terms.
// False negatives are expected and acceptable.
var relevanceExpr = regexp.MustCompile(`(?i)\b(imo|mepc|msc|marpol|solas|unfccc|cii|eexi|eedi|seemp|cbam|ets|fueleu|ghg|emissions?|decarboni[sz]ation|decarboni[sz]e|carbon|methane|ammonia|biofuels?|net[ -]zero|circular)\b`)

// RegulatoryMonitor watches a single unstructured publication page. Every
// item it returns is an alert: the one item class that can short-circuit the
// daily report schedule.
type RegulatoryMonitor struct {
	client      *http.Client
	sourceName  string
	pageURL     string
	baseURL     string
	minLinkText int
	timeout     time.Duration
	logger      *slog.Logger
}

var _ ports.AlertFetcher = (*RegulatoryMonitor)(nil)

// NewRegulatoryMonitor wires an HTTP client; a nil client gets a default one.
func NewRegulatoryMonitor(client *http.Client, cfg config.RegulatoryConfig, timeout time.Duration, logger *slog.Logger) *RegulatoryMonitor {
	if client == nil {
		client = &http.Client{}
	}
	return &RegulatoryMonitor{
		client:      client,
		sourceName:  cfg.SourceName,
		pageURL:     cfg.PageURL,
		baseURL:     cfg.BaseURL,
		minLinkText: cfg.MinLinkText,
		timeout:     timeout,
		logger:      logger,
	}
}

// Fetch harvests hyperlink/text pairs from the publication page, keeps the
// relevant ones, and returns them as alert items deduplicated by link.
func (m *RegulatoryMonitor) Fetch(ctx context.Context, seen map[string]struct{}) []domain.IntelItem {
	ctx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, m.pageURL, nil)
	if err != nil {
		m.logger.Warn("build request failed", "source", m.sourceName, "error", err)
		return nil
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := m.client.Do(req)
	if err != nil {
		m.logger.Warn("fetch failed", "source", m.sourceName, "error", err)
		return nil
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		m.logger.Warn("unexpected status", "source", m.sourceName, "status", resp.Status)
		return nil
	}

	doc, err := goquery.NewDocumentFromReader(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		m.logger.Warn("parse page failed", "source", m.sourceName, "error", err)
		return nil
	}

	var items []domain.IntelItem
	byLink := map[string]struct{}{}

	doc.Find("a[href]").Each(func(_ int, sel *goquery.Selection) {
		text := strings.Join(strings.Fields(sel.Text()), " ")
		href, _ := sel.Attr("href")
		href = strings.TrimSpace(href)

		if href == "" || utf8.RuneCountInString(text) < m.minLinkText {
			return
		}
		// Relevance is judged before normalization so the site's own host
		// name does not light up body-abbreviation terms.
		if !relevanceExpr.MatchString(text + " " + href) {
			return
		}

		link := m.absoluteLink(href)
		if _, dup := byLink[link]; dup {
			return
		}
		byLink[link] = struct{}{}

		id := domain.LinkID(link)
		if _, dup := seen[id]; dup {
			return
		}

		items = append(items, domain.IntelItem{
			ID:       id,
			Title:    text,
			Link:     link,
			Summary:  "",
			Source:   m.sourceName,
			Category: regulatoryCategory,
			Alert:    true,
		})
	})

	return items
}

func (m *RegulatoryMonitor) absoluteLink(href string) string {
	if strings.HasPrefix(href, "http://") || strings.HasPrefix(href, "https://") {
		return href
	}
	return strings.TrimSuffix(m.baseURL, "/") + "/" + strings.TrimPrefix(href, "/")
}
