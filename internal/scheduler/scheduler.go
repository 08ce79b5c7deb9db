// Package scheduler opens and closes chat sessions as schedule windows begin and end.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"

	"bustogether/internal/clock"
	"bustogether/internal/metrics"
	"bustogether/internal/observability"
	"bustogether/internal/schedule"
	"bustogether/internal/session"
	"bustogether/pkg/interfaces"
	"bustogether/pkg/types"
)

// Closure reasons sent to participants in chatClosed
const (
	ReasonWindowEnded = "the chat window has ended, thanks for riding along"
	ReasonOperator    = "the chat was closed by an administrator"
)

// Config controls the polling loop
type Config struct {
	Interval time.Duration
	Location *time.Location
}

// TickReport summarizes one pass over the schedules
type TickReport struct {
	Opened  int
	Closed  int
	Failed  int
	Skipped bool
}

// Scheduler drives session lifecycle from wall-clock time.
// ARCHITECTURAL DISCOVERY: Ticks never overlap; a tick that is due while the previous
// one still runs is dropped rather than queued so delays cannot compound
type Scheduler struct {
	directory interfaces.Directory
	store     *session.Store
	transport interfaces.Broadcaster
	clock     clock.Clock
	config    Config

	busy    atomic.Bool
	mu      sync.Mutex
	cron    *cron.Cron
	running bool

	logger *slog.Logger
}

// New creates a scheduler. Start must be called to begin polling.
func New(directory interfaces.Directory, store *session.Store, transport interfaces.Broadcaster, clk clock.Clock, config Config) *Scheduler {
	if config.Location == nil {
		config.Location = time.Local
	}
	if config.Interval <= 0 {
		config.Interval = time.Minute
	}
	return &Scheduler{
		directory: directory,
		store:     store,
		transport: transport,
		clock:     clk,
		config:    config,
		logger:    observability.WithComponent("scheduler"),
	}
}

// Start runs one tick immediately and then one every interval until Stop.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return ErrAlreadyRunning
	}

	s.Tick(ctx)

	logger := cronLogger{s.logger}
	c := cron.New(
		cron.WithLocation(s.config.Location),
		cron.WithLogger(logger),
		cron.WithChain(cron.Recover(logger), cron.SkipIfStillRunning(logger)),
	)
	spec := fmt.Sprintf("@every %s", s.config.Interval)
	if _, err := c.AddFunc(spec, func() { s.Tick(ctx) }); err != nil {
		return fmt.Errorf("failed to schedule tick %q: %w", spec, err)
	}
	c.Start()

	s.cron = c
	s.running = true
	s.logger.Info("scheduler started", "interval", s.config.Interval.String(), "timezone", s.config.Location.String())
	return nil
}

// Stop halts polling and waits for an in-flight tick to finish.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	c := s.cron
	s.cron = nil
	s.running = false
	s.mu.Unlock()

	if c == nil {
		return
	}
	<-c.Stop().Done()
	s.logger.Info("scheduler stopped")
}

// Tick closes sessions whose window has ended and opens sessions whose window has begun.
// FUNCTIONAL DISCOVERY: Closing first lets back-to-back windows on one route hand over
// within the same tick instead of leaving a one-interval gap
func (s *Scheduler) Tick(ctx context.Context) TickReport {
	if !s.busy.CompareAndSwap(false, true) {
		metrics.SchedulerTicks.WithLabelValues("skipped").Inc()
		s.logger.Warn("previous tick still running, skipping")
		return TickReport{Skipped: true}
	}
	defer s.busy.Store(false)

	var report TickReport

	for _, summary := range s.store.List() {
		if s.store.ShouldClose(summary.RouteID) && s.closeSession(summary.RouteID, ReasonWindowEnded) {
			report.Closed++
		}
	}

	schedules, err := s.directory.GetAllSchedules(ctx)
	if err != nil {
		metrics.SchedulerTicks.WithLabelValues("error").Inc()
		s.logger.Error("failed to load schedules", "error", err)
		report.Failed++
		return report
	}

	now := s.clock.Now()
	for _, sched := range schedules {
		opened, err := s.evaluate(ctx, sched, now)
		if err != nil {
			report.Failed++
			s.logger.Error("schedule evaluation failed",
				"schedule_id", sched.ID,
				"route_id", sched.RouteID,
				"error", err)
			continue
		}
		if opened {
			report.Opened++
		}
	}

	result := "ok"
	if report.Failed > 0 {
		result = "error"
	}
	metrics.SchedulerTicks.WithLabelValues(result).Inc()
	s.logger.Debug("tick complete", "opened", report.Opened, "closed", report.Closed, "failed", report.Failed)
	return report
}

// evaluate opens the schedule's session if its window is open. A panic while
// handling one schedule is converted into an error so the others still run.
func (s *Scheduler) evaluate(ctx context.Context, sched *types.Schedule, now time.Time) (opened bool, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()

	if !sched.Active {
		return false, nil
	}

	active, err := schedule.ShouldBeOpen(sched, now, s.config.Location)
	if err != nil {
		return false, err
	}
	if !active || s.store.Exists(sched.RouteID) {
		return false, nil
	}

	route, err := s.directory.GetRoute(ctx, sched.RouteID)
	if err != nil {
		return false, fmt.Errorf("route lookup: %w", err)
	}

	_, err = s.store.Open(route, sched)
	if errors.Is(err, session.ErrSessionExists) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// ForceClose ends a route's session out of band. Returns false if none was open.
func (s *Scheduler) ForceClose(routeID string) bool {
	return s.closeSession(routeID, ReasonOperator)
}

// closeSession discards the session, then notifies the room and evicts every
// connection. Removal from the store is the gate: only the caller that removed
// the session broadcasts, and a join racing the close finds no session.
func (s *Scheduler) closeSession(routeID, reason string) bool {
	if !s.store.Close(routeID) {
		return false
	}

	s.transport.Broadcast(routeID, &types.Event{
		Type: types.EventChatClosed,
		Data: types.ReasonPayload{Reason: reason},
	}, "")
	evicted := s.transport.EvictRoom(routeID)

	s.logger.Info("chat closed", "route_id", routeID, "reason", reason, "evicted", evicted)
	return true
}

// cronLogger adapts slog to cron.Logger
type cronLogger struct {
	l *slog.Logger
}

func (c cronLogger) Info(msg string, keysAndValues ...interface{}) {
	c.l.Debug(msg, keysAndValues...)
}

func (c cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	c.l.Error(msg, append(keysAndValues, "error", err)...)
}
