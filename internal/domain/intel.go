package domain

import (
	"crypto/md5"
	"encoding/hex"
	"strings"
	"time"
)

// Source is a static descriptor of one configured feed endpoint. The source
// list is read fresh every poll cycle, so edits take effect without restart.
type Source struct {
	Name     string `yaml:"name"`
	URL      string `yaml:"url"`
	Category string `yaml:"category"`
}

// IntelItem is one ingested unit of intelligence. Immutable once created.
type IntelItem struct {
	ID          string
	Title       string
	Link        string
	PublishedAt time.Time
	Summary     string
	Source      string
	Category    string
	Alert       bool
}

// ItemID derives the stable identifier for a feed item from the source name
// and canonical link, so re-fetching the same entry is a no-op.
func ItemID(source, link string) string {
	sum := md5.Sum([]byte(source + "|" + strings.TrimSpace(link)))
	return hex.EncodeToString(sum[:])
}

// LinkID derives an identifier from the link alone. Used by the regulatory
// monitor, where the same circular may surface on several page sections.
func LinkID(link string) string {
	sum := md5.Sum([]byte(strings.TrimSpace(link)))
	return hex.EncodeToString(sum[:])
}

// State is the process-durable record: identifiers already processed, the
// buffer of items awaiting the next report, and the schedule guards. Single
// owner; persisted after every poll and every report publish.
type State struct {
	Seen           []string
	Buffer         []IntelItem
	LastReportDate string
	LastPollAt     time.Time
}

// SeenSet materializes the seen identifiers for constant-time lookups.
func (s State) SeenSet() map[string]struct{} {
	set := make(map[string]struct{}, len(s.Seen))
	for _, id := range s.Seen {
		set[id] = struct{}{}
	}
	return set
}

// Remember records a new item: its identifier joins the seen set and the item
// itself joins the buffer, which keeps the buffer a subset of seen.
func (s *State) Remember(item IntelItem) {
	s.Seen = append(s.Seen, item.ID)
	s.Buffer = append(s.Buffer, item)
}

// TrimSeen enforces bounded growth: once the seen set exceeds max entries,
// only the most recent tail survives.
func (s *State) TrimSeen(max, tail int) {
	if max <= 0 || len(s.Seen) <= max {
		return
	}
	if tail > max || tail <= 0 {
		tail = max
	}
	s.Seen = append([]string(nil), s.Seen[len(s.Seen)-tail:]...)
}

// Report is a generated write-once archival artifact keyed by its label:
// a calendar date for scheduled reports, a date+timestamp tag for alerts.
type Report struct {
	Label     string
	Body      string
	CreatedAt time.Time
}
