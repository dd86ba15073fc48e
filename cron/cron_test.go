package cron

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

func TestScheduleAfterCompletesAndReportsStatus(t *testing.T) {
	scheduler := NewScheduler()
	var count atomic.Int32

	handle, err := scheduler.ScheduleAfter(50*time.Millisecond, func() {
		count.Add(1)
	})
	if err != nil {
		t.Fatalf("schedule after: %v", err)
	}

	select {
	case <-handle.Done():
	case <-time.After(time.Second):
		t.Fatal("expected handle completion")
	}

	if got := count.Load(); got != 1 {
		t.Fatalf("expected one execution, got %d", got)
	}
	if status := handle.Status(); status != ScheduleStatusCompleted {
		t.Fatalf("expected completed status, got %s", status)
	}
	if pending := scheduler.Pending(); pending != 0 {
		t.Fatalf("expected no pending handles, got %d", pending)
	}
}

func TestScheduleAfterNegativeDelayRunsImmediately(t *testing.T) {
	scheduler := NewScheduler()

	handle, err := scheduler.ScheduleAfter(-time.Second, nil)
	if err != nil {
		t.Fatalf("schedule after: %v", err)
	}

	select {
	case <-handle.Done():
	case <-time.After(time.Second):
		t.Fatal("expected immediate completion")
	}
}

func TestScheduleAtCancelPreventsExecution(t *testing.T) {
	scheduler := NewScheduler()
	var count atomic.Int32

	handle, err := scheduler.ScheduleAt(time.Now().Add(250*time.Millisecond), func() {
		count.Add(1)
	})
	if err != nil {
		t.Fatalf("schedule at: %v", err)
	}

	handle.Cancel()

	select {
	case <-handle.Done():
	case <-time.After(time.Second):
		t.Fatal("expected canceled handle to close done channel")
	}

	time.Sleep(300 * time.Millisecond)
	if got := count.Load(); got != 0 {
		t.Fatalf("expected zero executions after cancel, got %d", got)
	}
	if status := handle.Status(); status != ScheduleStatusCanceled {
		t.Fatalf("expected canceled status, got %s", status)
	}
}

func TestScheduleAtFailureReportsError(t *testing.T) {
	var reported atomic.Value
	scheduler := NewScheduler(WithErrorHandler(func(err error) {
		reported.Store(err)
	}))

	handle, err := scheduler.ScheduleAt(time.Now(), func() error {
		return errors.New("boom")
	})
	if err != nil {
		t.Fatalf("schedule at: %v", err)
	}

	<-handle.Done()
	if status := handle.Status(); status != ScheduleStatusFailed {
		t.Fatalf("expected failed status, got %s", status)
	}
	if handle.Err() == nil || reported.Load() == nil {
		t.Fatal("expected error to be recorded and reported")
	}
}

func TestSchedulerStopMarksHandleStopped(t *testing.T) {
	scheduler := NewScheduler()
	handle, err := scheduler.ScheduleAfter(time.Hour, func() {})
	if err != nil {
		t.Fatalf("schedule after: %v", err)
	}

	if err := scheduler.Stop(context.Background()); err != nil {
		t.Fatalf("scheduler stop: %v", err)
	}

	select {
	case <-handle.Done():
	case <-time.After(time.Second):
		t.Fatal("expected handle done on stop")
	}

	if status := handle.Status(); status != ScheduleStatusStopped {
		t.Fatalf("expected stopped status, got %s", status)
	}
}

func TestNextUsesCronExpression(t *testing.T) {
	base := time.Date(2024, 5, 10, 10, 7, 30, 0, time.UTC)
	scheduler := NewScheduler(
		WithLocation(time.UTC),
		WithClock(func() time.Time { return base }),
	)

	next, err := scheduler.Next("*/15 * * * *")
	if err != nil {
		t.Fatalf("next: %v", err)
	}
	want := time.Date(2024, 5, 10, 10, 15, 0, 0, time.UTC)
	if !next.Equal(want) {
		t.Fatalf("expected %s, got %s", want, next)
	}

	next, err = scheduler.Next("@every 90s")
	if err != nil {
		t.Fatalf("next every: %v", err)
	}
	if !next.Equal(base.Add(90 * time.Second)) {
		t.Fatalf("unexpected @every activation %s", next)
	}
}

func TestSecondsParser(t *testing.T) {
	base := time.Date(2024, 5, 10, 10, 7, 30, 0, time.UTC)
	scheduler := NewScheduler(
		WithLocation(time.UTC),
		WithParser(SecondsParser),
		WithClock(func() time.Time { return base }),
	)

	next, err := scheduler.Next("45 * * * * *")
	if err != nil {
		t.Fatalf("next: %v", err)
	}
	if want := base.Add(15 * time.Second); !next.Equal(want) {
		t.Fatalf("expected %s, got %s", want, next)
	}
}

func TestScheduleNextValidation(t *testing.T) {
	scheduler := NewScheduler()

	if _, err := scheduler.ScheduleNext("", func() {}); err == nil {
		t.Fatal("expected empty expression error")
	}
	if _, err := scheduler.ScheduleNext("not a cron", func() {}); err == nil {
		t.Fatal("expected parse error")
	}
	if _, err := scheduler.ScheduleNext("@every 1s", struct{}{}); err == nil {
		t.Fatal("expected unsupported handler error")
	}
}

func TestScheduleNextRuns(t *testing.T) {
	scheduler := NewScheduler()
	var count atomic.Int32

	handle, err := scheduler.ScheduleNext("@every 1s", func() {
		count.Add(1)
	})
	if err != nil {
		t.Fatalf("schedule next: %v", err)
	}

	select {
	case <-handle.Done():
	case <-time.After(3 * time.Second):
		t.Fatal("expected next activation to run")
	}
	if got := count.Load(); got != 1 {
		t.Fatalf("expected one execution, got %d", got)
	}
}

func TestCancelAfterCompletionKeepsStatus(t *testing.T) {
	scheduler := NewScheduler()

	handle, err := scheduler.ScheduleAfter(0, nil)
	if err != nil {
		t.Fatalf("schedule after: %v", err)
	}
	<-handle.Done()

	handle.Cancel()
	if status := handle.Status(); status != ScheduleStatusCompleted {
		t.Fatalf("expected completed status after late cancel, got %s", status)
	}
}

func TestScheduleAtWaitsOnConfiguredClock(t *testing.T) {
	base := time.Now().Add(-time.Hour)
	scheduler := NewScheduler(WithClock(func() time.Time { return base }))

	started := time.Now()
	handle, err := scheduler.ScheduleAt(base.Add(60*time.Millisecond), nil)
	if err != nil {
		t.Fatalf("schedule at: %v", err)
	}

	select {
	case <-handle.Done():
	case <-time.After(time.Second):
		t.Fatal("expected handle completion")
	}
	if elapsed := time.Since(started); elapsed < 50*time.Millisecond {
		t.Fatalf("expected wait relative to scheduler clock, fired after %s", elapsed)
	}
}
