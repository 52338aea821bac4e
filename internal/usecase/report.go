package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"MarineIntel/internal/domain"
	"MarineIntel/internal/ports"
)

const oobMarker = "=== OUT-OF-BAND ALERT REPORT ==="

// Pipeline turns buffered items into a published report. Generation always
// yields some text (degrading to a deterministic rendering when the service
// fails); archival failure is the only true pipeline failure.
type Pipeline struct {
	generator ports.Generator
	archive   ports.Archive
	notifier  ports.IndexNotifier
	logger    *slog.Logger
}

// PipelineDeps wires the report collaborators.
type PipelineDeps struct {
	Generator ports.Generator
	Archive   ports.Archive
	Notifier  ports.IndexNotifier
	Logger    *slog.Logger
}

// NewPipeline constructs the report pipeline.
func NewPipeline(deps PipelineDeps) *Pipeline {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{
		generator: deps.Generator,
		archive:   deps.Archive,
		notifier:  deps.Notifier,
		logger:    logger,
	}
}

// Generate produces report text for the item set. An empty set is reported
// explicitly, never silently omitted. Never fails: service errors degrade to
// the fallback rendering.
func (p *Pipeline) Generate(ctx context.Context, items []domain.IntelItem, label string) string {
	if p.generator != nil {
		text, err := p.generator.Generate(ctx, renderPrompt(items, label))
		if err == nil {
			return text
		}
		p.logger.Warn("generation service failed, using fallback rendering",
			"label", label, "items", len(items), "error", err)
	}
	return fallbackReport(items, label)
}

// Publish archives the report under its label, then notifies the downstream
// index. Notification failure drops a local fallback copy and still counts
// as success; only an archive write error propagates.
func (p *Pipeline) Publish(ctx context.Context, report domain.Report) error {
	if err := p.archive.Write(report.Label, report.Body); err != nil {
		return fmt.Errorf("archive report %s: %w", report.Label, err)
	}

	if p.notifier == nil {
		return nil
	}
	if err := p.notifier.Notify(ctx, report.Label, report.Body); err != nil {
		p.logger.Warn("index notification failed, keeping local fallback copy",
			"label", report.Label, "error", err)
		if fbErr := p.archive.WriteFallback(report.Label, report.Body); fbErr != nil {
			p.logger.Error("fallback drop failed", "label", report.Label, "error", fbErr)
		}
	}
	return nil
}

func renderPrompt(items []domain.IntelItem, label string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Reporting period: %s\n", label)
	fmt.Fprintf(&b, "Collected items: %d\n\n", len(items))

	if len(items) == 0 {
		b.WriteString("No new items were collected in this period. The report must state that explicitly.\n")
		return b.String()
	}

	for i, item := range items {
		fmt.Fprintf(&b, "%d. [%s / %s] %s\n", i+1, item.Source, item.Category, item.Title)
		fmt.Fprintf(&b, "   link: %s\n", item.Link)
		if !item.PublishedAt.IsZero() {
			fmt.Fprintf(&b, "   published: %s\n", item.PublishedAt.Format(time.RFC3339))
		}
		if item.Summary != "" {
			fmt.Fprintf(&b, "   summary: %s\n", item.Summary)
		}
		if item.Alert {
			b.WriteString("   priority: ALERT\n")
		}
	}
	return b.String()
}

// fallbackReport is the deterministic rendering used when the generation
// service is unreachable. It lists every item's source, title, and link and
// carries a visible failure notice.
func fallbackReport(items []domain.IntelItem, label string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Maritime intelligence report %s\n\n", label)
	b.WriteString("NOTICE: report generation service unavailable; raw item listing follows.\n\n")

	if len(items) == 0 {
		b.WriteString("No new items in this reporting period.\n")
		return b.String()
	}

	for _, item := range items {
		fmt.Fprintf(&b, "- [%s] %s\n  %s\n", item.Source, item.Title, item.Link)
	}
	return b.String()
}
