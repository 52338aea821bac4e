package feed

import (
	"testing"
	"time"
)

func TestFieldPrefersCDATA(t *testing.T) {
	t.Parallel()

	block := `<item><description><![CDATA[<p>Ammonia bunkering pilot &amp; trial</p>]]></description></item>`

	got := Field(block, "description")
	if got != "Ammonia bunkering pilot & trial" {
		t.Fatalf("unexpected description: %q", got)
	}
}

func TestFieldStripsNestedMarkup(t *testing.T) {
	t.Parallel()

	block := `<item><description>New <b>CII</b> correction factors &amp; guidance</description></item>`

	got := Field(block, "description")
	if got != "New CII correction factors & guidance" {
		t.Fatalf("unexpected description: %q", got)
	}
}

func TestFieldMissingTag(t *testing.T) {
	t.Parallel()

	if got := Field(`<item><title>x</title></item>`, "description"); got != "" {
		t.Fatalf("expected empty field, got %q", got)
	}
}

func TestItemsToleratesLooseMarkup(t *testing.T) {
	t.Parallel()

	// Unescaped ampersand in the second title: a strict parser would reject
	// the whole document.
	doc := `<?xml version="1.0"?>
<rss><channel>
<item>
  <title>Port &amp; terminal emissions rules</title>
  <link>https://news.example.com/a/1</link>
  <pubDate>Mon, 02 Jan 2006 15:04:05 -0700</pubDate>
  <description><![CDATA[Scrubber wash-water limits.]]></description>
</item>
<item>
  <title>R&D on green methanol</title>
  <guid>https://news.example.com/a/2</guid>
  <description>Raw <i>summary</i> body</description>
</item>
<entry>
  <title>Atom circular notice</title>
  <link href="https://news.example.com/a/3"/>
  <updated>2026-01-02T10:00:00Z</updated>
  <summary>Atom summary.</summary>
</entry>
</channel></rss>`

	records := Items(doc)
	if len(records) != 3 {
		t.Fatalf("expected 3 records, got %d", len(records))
	}

	if records[0].Title != "Port & terminal emissions rules" {
		t.Fatalf("unexpected title: %q", records[0].Title)
	}
	if records[0].Link != "https://news.example.com/a/1" {
		t.Fatalf("unexpected link: %q", records[0].Link)
	}
	if records[0].Description != "Scrubber wash-water limits." {
		t.Fatalf("unexpected description: %q", records[0].Description)
	}

	if records[1].Title != "R&D on green methanol" {
		t.Fatalf("unexpected title: %q", records[1].Title)
	}
	if records[1].Link != "https://news.example.com/a/2" {
		t.Fatalf("guid fallback failed: %q", records[1].Link)
	}
	if records[1].Description != "Raw summary body" {
		t.Fatalf("unexpected description: %q", records[1].Description)
	}

	if records[2].Link != "https://news.example.com/a/3" {
		t.Fatalf("atom href fallback failed: %q", records[2].Link)
	}
	if records[2].Published != "2026-01-02T10:00:00Z" {
		t.Fatalf("unexpected published: %q", records[2].Published)
	}
	if records[2].Description != "Atom summary." {
		t.Fatalf("unexpected description: %q", records[2].Description)
	}
}

func TestItemsMissingFieldsResolveEmpty(t *testing.T) {
	t.Parallel()

	records := Items(`<rss><item><title>Only a title</title></item></rss>`)
	if len(records) != 1 {
		t.Fatalf("expected 1 record, got %d", len(records))
	}
	if records[0].Link != "" || records[0].Published != "" || records[0].Description != "" {
		t.Fatalf("expected empty fields, got %+v", records[0])
	}
}

func TestParseTime(t *testing.T) {
	t.Parallel()

	got := ParseTime("Mon, 02 Jan 2006 15:04:05 -0700")
	want := time.Date(2006, time.January, 2, 15, 4, 5, 0, time.FixedZone("", -7*3600))
	if !got.Equal(want) {
		t.Fatalf("unexpected time: %v", got)
	}

	if !ParseTime("2026-01-02T10:00:00Z").Equal(time.Date(2026, time.January, 2, 10, 0, 0, 0, time.UTC)) {
		t.Fatalf("RFC3339 parse failed")
	}

	if !ParseTime("not a date").IsZero() {
		t.Fatalf("expected zero time for garbage input")
	}
	if !ParseTime("").IsZero() {
		t.Fatalf("expected zero time for empty input")
	}
}
