package cron

import (
	"context"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	rcron "github.com/robfig/cron/v3"
)

// Logger receives activation and failure messages.
type Logger interface {
	Info(msg string, args ...any)
	Error(msg string, args ...any)
}

// Scheduler runs one-shot jobs after a delay, at a time, or at the next
// tick of a cron expression.
type Scheduler struct {
	mu           sync.Mutex
	location     *time.Location
	errorHandler func(error)
	now          func() time.Time

	logger   Logger
	parser   Parser
	logLevel LogLevel

	nextHandleID int64
	handles      map[int64]*timerHandle
}

// NewScheduler creates a new scheduler instance with the provided options.
func NewScheduler(opts ...Option) *Scheduler {
	s := &Scheduler{
		location: time.Local,
		parser:   DefaultParser,
		logLevel: LogLevelError,
		now:      time.Now,
		errorHandler: func(err error) {
			log.Printf("error: %v\n", err)
		},
		handles: make(map[int64]*timerHandle),
	}

	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

func (s *Scheduler) SetLogger(logger Logger) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.logger = logger
}

// ScheduleAfter schedules one execution after delay.
func (s *Scheduler) ScheduleAfter(delay time.Duration, handler any) (Handle, error) {
	if delay < 0 {
		delay = 0
	}
	return s.ScheduleAt(s.now().Add(delay), handler)
}

// ScheduleNext schedules one execution at the next activation of the cron
// expression.
func (s *Scheduler) ScheduleNext(expression string, handler any) (Handle, error) {
	expression = strings.TrimSpace(expression)
	if expression == "" {
		return nil, fmt.Errorf("cron expression cannot be empty")
	}
	schedule, err := s.parse(expression)
	if err != nil {
		return nil, fmt.Errorf("failed to parse cron expression %q: %w", expression, err)
	}
	next := schedule.Next(s.now().In(s.location))
	if next.IsZero() {
		return nil, fmt.Errorf("cron expression %q has no future activation", expression)
	}
	s.info("next activation of %q at %s", expression, next.Format(time.RFC3339))
	return s.ScheduleAt(next, handler)
}

// Next returns the next activation of expression after now.
func (s *Scheduler) Next(expression string) (time.Time, error) {
	schedule, err := s.parse(strings.TrimSpace(expression))
	if err != nil {
		return time.Time{}, err
	}
	return schedule.Next(s.now().In(s.location)), nil
}

// ScheduleAt schedules one execution at a specific time.
func (s *Scheduler) ScheduleAt(at time.Time, handler any) (Handle, error) {
	run, err := buildRunnable(handler)
	if err != nil {
		return nil, err
	}

	h := s.newHandle()
	s.storeHandle(h)

	go func() {
		wait := at.Sub(s.now())
		if wait < 0 {
			wait = 0
		}

		timer := time.NewTimer(wait)
		defer timer.Stop()

		select {
		case <-timer.C:
		case <-h.Done():
			return
		}

		if isTerminalStatus(h.Status()) {
			return
		}
		h.setStatus(ScheduleStatusRunning, nil)
		if err := run(); err != nil {
			h.setTerminal(ScheduleStatusFailed, err)
			s.errorHandler(err)
			s.removeStoredHandle(h.id)
			return
		}
		h.setTerminal(ScheduleStatusCompleted, nil)
		s.removeStoredHandle(h.id)
	}()

	return h, nil
}

// Stop marks every pending handle as stopped.
func (s *Scheduler) Stop(_ context.Context) error {
	var handles []*timerHandle
	s.mu.Lock()
	for _, handle := range s.handles {
		handles = append(handles, handle)
	}
	s.handles = make(map[int64]*timerHandle)
	s.mu.Unlock()

	for _, handle := range handles {
		if handle == nil || isTerminalStatus(handle.Status()) {
			continue
		}
		handle.setTerminal(ScheduleStatusStopped, nil)
	}
	return nil
}

// Pending returns how many handles have not reached a terminal status.
func (s *Scheduler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.handles)
}

func (s *Scheduler) removeHandle(id int64) {
	s.removeStoredHandle(id)
}

func (s *Scheduler) removeStoredHandle(id int64) *timerHandle {
	if s == nil || id == 0 {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	handle := s.handles[id]
	delete(s.handles, id)
	return handle
}

func (s *Scheduler) storeHandle(handle *timerHandle) {
	if s == nil || handle == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.handles == nil {
		s.handles = make(map[int64]*timerHandle)
	}
	s.handles[handle.id] = handle
}

func (s *Scheduler) newHandle() *timerHandle {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextHandleID++
	return &timerHandle{
		scheduler: s,
		id:        s.nextHandleID,
		status:    ScheduleStatusScheduled,
		done:      make(chan struct{}),
	}
}

func isTerminalStatus(status ScheduleStatus) bool {
	switch status {
	case ScheduleStatusCompleted, ScheduleStatusCanceled, ScheduleStatusFailed, ScheduleStatusStopped:
		return true
	default:
		return false
	}
}

func buildRunnable(handler any) (func() error, error) {
	switch r := handler.(type) {
	case func():
		return func() error {
			r()
			return nil
		}, nil
	case func() error:
		return r, nil
	case nil:
		return func() error { return nil }, nil
	default:
		return nil, fmt.Errorf("unsupported handler type: %T", handler)
	}
}

func (s *Scheduler) parse(expression string) (rcron.Schedule, error) {
	switch s.parser {
	case StandardParser:
		return rcron.NewParser(
			rcron.Minute | rcron.Hour | rcron.Dom | rcron.Month | rcron.Dow | rcron.Descriptor,
		).Parse(expression)
	case SecondsParser:
		return rcron.NewParser(
			rcron.Second | rcron.Minute | rcron.Hour | rcron.Dom | rcron.Month | rcron.Dow | rcron.Descriptor,
		).Parse(expression)
	default:
		return rcron.ParseStandard(expression)
	}
}

func (s *Scheduler) info(msg string, args ...any) {
	s.mu.Lock()
	logger, level := s.logger, s.logLevel
	s.mu.Unlock()
	if logger != nil && level >= LogLevelInfo {
		logger.Info(msg, args...)
	}
}
