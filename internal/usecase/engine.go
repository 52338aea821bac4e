package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"MarineIntel/internal/domain"
	"MarineIntel/internal/ports"
)

const (
	dateLayout        = "2006-01-02"
	alertLabelLayout  = "2006-01-02-150405"
	escalationTimeout = 2 * time.Minute
)

// Engine owns the State and serializes every read-modify-persist transition:
// the poll cycle and the report cycle are scheduled independently but must
// not interleave state mutation.
type Engine struct {
	store    ports.StateStore
	sources  func() ([]domain.Source, error)
	feeds    ports.SourceFetcher
	monitor  ports.AlertFetcher
	pipeline *Pipeline
	limiter  *rate.Limiter
	loc      *time.Location
	logger   *slog.Logger
	now      func() time.Time

	mu    sync.Mutex
	state domain.State

	escalations sync.WaitGroup
}

// EngineDeps wires the orchestration collaborators.
type EngineDeps struct {
	Store       ports.StateStore
	Sources     func() ([]domain.Source, error)
	Feeds       ports.SourceFetcher
	Monitor     ports.AlertFetcher
	Pipeline    *Pipeline
	SourceDelay time.Duration
	Location    *time.Location
	Logger      *slog.Logger
	Now         func() time.Time
}

// NewEngine constructs the orchestration engine.
func NewEngine(deps EngineDeps) *Engine {
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if deps.Location == nil {
		deps.Location = time.UTC
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	delay := deps.SourceDelay
	if delay <= 0 {
		delay = time.Second
	}

	return &Engine{
		store:    deps.Store,
		sources:  deps.Sources,
		feeds:    deps.Feeds,
		monitor:  deps.Monitor,
		pipeline: deps.Pipeline,
		limiter:  rate.NewLimiter(rate.Every(delay), 1),
		loc:      deps.Location,
		logger:   deps.Logger,
		now:      deps.Now,
	}
}

// Restore loads the persisted State. Called once before scheduling starts.
func (e *Engine) Restore(ctx context.Context) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.state = e.store.Load(ctx)
	e.logger.Info("state restored",
		"seen", len(e.state.Seen),
		"buffered", len(e.state.Buffer),
		"last_report", e.state.LastReportDate)
}

// Poll runs one ingestion cycle: re-read the source list, fetch each source
// sequentially behind the politeness limiter, run the regulatory monitor,
// merge new items into state, escalate alerts out of band, and persist.
// State is always persisted at cycle end, even when nothing new arrived.
func (e *Engine) Poll(ctx context.Context) {
	sources, err := e.sources()
	if err != nil {
		e.logger.Error("source list unavailable, skipping cycle", "error", err)
		return
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	seen := e.state.SeenSet()
	var fresh []domain.IntelItem

	for _, src := range sources {
		if err := e.limiter.Wait(ctx); err != nil {
			return
		}
		items := e.feeds.Fetch(ctx, src, seen)
		for _, item := range items {
			seen[item.ID] = struct{}{}
		}
		fresh = append(fresh, items...)
	}

	if e.monitor != nil {
		fresh = append(fresh, e.monitor.Fetch(ctx, seen)...)
	}

	var alerts []domain.IntelItem
	for _, item := range fresh {
		e.state.Remember(item)
		if item.Alert {
			alerts = append(alerts, item)
		}
	}

	e.state.LastPollAt = e.now()
	if err := e.store.Save(ctx, &e.state); err != nil {
		e.logger.Error("persist state failed", "error", err)
	}

	e.logger.Info("poll cycle complete",
		"sources", len(sources),
		"new_items", len(fresh),
		"alerts", len(alerts),
		"buffered", len(e.state.Buffer))

	if len(alerts) > 0 {
		// Detached: alert latency must not delay the next poll.
		e.escalations.Add(1)
		go e.escalate(alerts)
	}
}

// DailyReport publishes the scheduled report for t's calendar date. The
// last-report-date guard makes repeated triggers for the same date a no-op.
func (e *Engine) DailyReport(ctx context.Context, t time.Time) error {
	return e.report(ctx, t, false)
}

// ForceReport publishes a report immediately, bypassing and resetting the
// once-per-day guard.
func (e *Engine) ForceReport(ctx context.Context, t time.Time) error {
	return e.report(ctx, t, true)
}

func (e *Engine) report(ctx context.Context, t time.Time, force bool) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	date := t.In(e.loc).Format(dateLayout)
	if !force && e.state.LastReportDate == date {
		e.logger.Info("report already generated for date, skipping", "date", date)
		return nil
	}

	body := e.pipeline.Generate(ctx, e.state.Buffer, date)
	report := domain.Report{Label: date, Body: body, CreatedAt: t}
	if err := e.pipeline.Publish(ctx, report); err != nil {
		// Guard stays put: a failed date may be retried by the next trigger.
		return fmt.Errorf("publish daily report: %w", err)
	}

	e.state.LastReportDate = date
	e.state.Buffer = nil
	if err := e.store.Save(ctx, &e.state); err != nil {
		e.logger.Error("persist state failed", "error", err)
	}

	e.logger.Info("daily report published", "date", date)
	return nil
}

// escalate publishes an out-of-band alert report. Its label carries a
// timestamp, so it never collides with the daily guard, and it consumes only
// the alert items of one cycle: the daily buffer is untouched.
func (e *Engine) escalate(items []domain.IntelItem) {
	defer e.escalations.Done()

	ctx, cancel := context.WithTimeout(context.Background(), escalationTimeout)
	defer cancel()

	label := "alert-" + e.now().In(e.loc).Format(alertLabelLayout)
	body := oobMarker + "\n\n" + e.pipeline.Generate(ctx, items, label)

	report := domain.Report{Label: label, Body: body, CreatedAt: e.now()}
	if err := e.pipeline.Publish(ctx, report); err != nil {
		e.logger.Error("alert report failed", "label", label, "error", err)
		return
	}
	e.logger.Info("alert report published", "label", label, "items", len(items))
}

// Drain waits for in-flight escalation reports, used on shutdown.
func (e *Engine) Drain() {
	e.escalations.Wait()
}

// Status is the snapshot served by the control surface.
type Status struct {
	LastReportDate string    `json:"lastReportDate"`
	LastPollAt     time.Time `json:"lastPollAt"`
	BufferSize     int       `json:"bufferSize"`
	SeenCount      int       `json:"seenCount"`
}

// Status reports the current schedule and buffer state.
func (e *Engine) Status() Status {
	e.mu.Lock()
	defer e.mu.Unlock()
	return Status{
		LastReportDate: e.state.LastReportDate,
		LastPollAt:     e.state.LastPollAt,
		BufferSize:     len(e.state.Buffer),
		SeenCount:      len(e.state.Seen),
	}
}
