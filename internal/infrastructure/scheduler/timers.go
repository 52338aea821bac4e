package scheduler

import (
	"context"
	"log/slog"
	"time"

	"MarineIntel/internal/config"
	"MarineIntel/internal/ports"
)

// Timers drives the two independent schedules: the recurring poll and the
// once-daily report at a fixed local wall-clock time.
type Timers struct {
	pollInterval time.Duration
	reportHour   int
	reportMinute int
	loc          *time.Location
	logger       *slog.Logger
	now          func() time.Time
	stop         chan struct{}
}

var _ ports.Scheduler = (*Timers)(nil)

// New builds the timer pair from scheduler configuration.
func New(cfg config.SchedulerConfig, logger *slog.Logger) *Timers {
	return &Timers{
		pollInterval: cfg.PollInterval,
		reportHour:   cfg.ReportHour,
		reportMinute: cfg.ReportMinute,
		loc:          cfg.Location(),
		logger:       logger,
		now:          time.Now,
	}
}

// Start launches both timer loops. The poll job fires immediately, then at
// the fixed interval; the report job fires at the next wall-clock occurrence
// of the configured time and every 24h-equivalent after, recomputed from the
// clock each round so long uptimes do not drift.
func (t *Timers) Start(ctx context.Context, poll func(time.Time), report func(time.Time)) error {
	if t.stop != nil {
		return nil
	}
	t.stop = make(chan struct{})

	if poll != nil {
		go t.pollLoop(ctx, poll)
	}
	if report != nil {
		go t.reportLoop(ctx, report)
	}
	return nil
}

// Stop halts both timer goroutines.
func (t *Timers) Stop(ctx context.Context) error {
	if t.stop == nil {
		return nil
	}
	close(t.stop)
	t.stop = nil
	return nil
}

func (t *Timers) pollLoop(ctx context.Context, job func(time.Time)) {
	ticker := time.NewTicker(t.pollInterval)
	defer ticker.Stop()

	t.run("poll", job, t.now())
	for {
		select {
		case tick := <-ticker.C:
			t.run("poll", job, tick)
		case <-ctx.Done():
			return
		case <-t.stop:
			return
		}
	}
}

func (t *Timers) reportLoop(ctx context.Context, job func(time.Time)) {
	for {
		next := NextReportTime(t.now().In(t.loc), t.reportHour, t.reportMinute)
		timer := time.NewTimer(next.Sub(t.now()))

		select {
		case <-timer.C:
			t.run("report", job, next)
		case <-ctx.Done():
			timer.Stop()
			return
		case <-t.stop:
			timer.Stop()
			return
		}
	}
}

// run shields the timer loops from a misbehaving cycle: a failure inside one
// job must never stop the schedule.
func (t *Timers) run(name string, job func(time.Time), at time.Time) {
	defer func() {
		if r := recover(); r != nil {
			t.logger.Error("scheduled job panicked", "job", name, "panic", r)
		}
	}()
	job(at)
}

// NextReportTime returns the next occurrence of hour:minute after now, in
// now's location. A slot already passed today lands on tomorrow.
func NextReportTime(now time.Time, hour, minute int) time.Time {
	next := time.Date(now.Year(), now.Month(), now.Day(), hour, minute, 0, 0, now.Location())
	if !next.After(now) {
		next = next.AddDate(0, 0, 1)
	}
	return next
}
