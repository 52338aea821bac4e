// Package feed extracts item records from syndication markup using surface
// pattern matching. Real feeds routinely ship unescaped ampersands and
// missing namespaces, so a strict XML parser would reject content we want;
// missed items are acceptable here, parse failures are not.
package feed

import (
	"html"
	"regexp"
	"strings"
	"sync"
	"time"
)

// Record is one raw item pulled out of feed markup. Fields that could not be
// resolved are empty; the caller decides what is usable.
type Record struct {
	Title       string
	Link        string
	Published   string
	Description string
}

var (
	itemExpr     = regexp.MustCompile(`(?is)<(?:item|entry)[\s>].*?</(?:item|entry)>`)
	linkHrefExpr = regexp.MustCompile(`(?is)<link[^>]*href="([^"]+)"`)
	tagExpr      = regexp.MustCompile(`<[^>]*>`)
)

var exprCache sync.Map // pattern -> *regexp.Regexp

func expr(pattern string) *regexp.Regexp {
	if cached, ok := exprCache.Load(pattern); ok {
		return cached.(*regexp.Regexp)
	}
	compiled := regexp.MustCompile(pattern)
	exprCache.Store(pattern, compiled)
	return compiled
}

// Field returns the plain-text content of the first <name> tag in block.
// A CDATA-wrapped body wins over a raw body; the raw case has nested markup
// stripped and entities unescaped. Missing tags resolve to "".
func Field(block, name string) string {
	q := regexp.QuoteMeta(name)

	if m := expr(`(?is)<` + q + `(?:\s[^>]*)?>\s*<!\[CDATA\[(.*?)\]\]>`).FindStringSubmatch(block); m != nil {
		return plainText(m[1])
	}

	if m := expr(`(?is)<` + q + `(?:\s[^>]*)?>(.*?)</` + q + `>`).FindStringSubmatch(block); m != nil {
		return plainText(m[1])
	}

	return ""
}

// Items splits a document into <item>/<entry> blocks and resolves each field
// through a small priority list of equivalent tag names. It never errors.
func Items(doc string) []Record {
	blocks := itemExpr.FindAllString(doc, -1)
	records := make([]Record, 0, len(blocks))
	for _, block := range blocks {
		records = append(records, parseRecord(block))
	}
	return records
}

func parseRecord(block string) Record {
	link := Field(block, "link")
	if link == "" {
		// Atom carries the link as an attribute, not a body.
		if m := linkHrefExpr.FindStringSubmatch(block); m != nil {
			link = strings.TrimSpace(html.UnescapeString(m[1]))
		}
	}
	if link == "" {
		link = firstField(block, "guid", "id")
	}

	return Record{
		Title:       Field(block, "title"),
		Link:        link,
		Published:   firstField(block, "pubDate", "published", "updated", "dc:date"),
		Description: firstField(block, "description", "summary", "content"),
	}
}

func plainText(body string) string {
	return strings.TrimSpace(html.UnescapeString(tagExpr.ReplaceAllString(body, "")))
}

func firstField(block string, names ...string) string {
	for _, name := range names {
		if value := Field(block, name); value != "" {
			return value
		}
	}
	return ""
}

var timeLayouts = []string{
	time.RFC1123Z,
	time.RFC1123,
	time.RFC3339,
	"Mon, 2 Jan 2006 15:04:05 -0700",
	"Mon, 2 Jan 2006 15:04:05 MST",
	"2006-01-02T15:04:05Z0700",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// ParseTime best-effort parses a feed timestamp. The zero time means
// "unknown age" and is never treated as stale by callers.
func ParseTime(value string) time.Time {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}
	}
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return t
		}
	}
	return time.Time{}
}
