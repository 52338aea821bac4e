package ports

import (
	"context"
	"time"

	"MarineIntel/internal/domain"
)

// SourceFetcher pulls fresh items from one configured feed source. A failing
// source yields an empty slice, never an error: the poll cycle must survive
// partial outages.
type SourceFetcher interface {
	Fetch(ctx context.Context, source domain.Source, seen map[string]struct{}) []domain.IntelItem
}

// AlertFetcher watches a single publication page for high-priority items.
type AlertFetcher interface {
	Fetch(ctx context.Context, seen map[string]struct{}) []domain.IntelItem
}

// StateStore is the only component that touches durable state. Load degrades
// to a fresh State when nothing usable is persisted; Save trims the seen set
// in place before writing so memory and disk stay in step.
type StateStore interface {
	Load(ctx context.Context) domain.State
	Save(ctx context.Context, state *domain.State) error
}

// Generator produces report text from a serialized item prompt.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// Archive is write-once report storage plus a local fallback drop location.
type Archive interface {
	Write(label, body string) error
	WriteFallback(label, body string) error
	Read(label string) (string, error)
	Latest() (label, body string, err error)
	List() ([]string, error)
}

// IndexNotifier pushes a published report to the downstream index service.
// Fire-and-forget from the pipeline's perspective.
type IndexNotifier interface {
	Notify(ctx context.Context, label, content string) error
}

// Scheduler drives the recurring poll job and the once-daily report job.
type Scheduler interface {
	Start(ctx context.Context, poll func(time.Time), report func(time.Time)) error
	Stop(ctx context.Context) error
}
