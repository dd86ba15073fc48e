package cron

import "sync"

// ScheduleStatus reports the state of a scheduled timer.
type ScheduleStatus string

const (
	ScheduleStatusScheduled ScheduleStatus = "scheduled"
	ScheduleStatusRunning   ScheduleStatus = "running"
	ScheduleStatusCompleted ScheduleStatus = "completed"
	ScheduleStatusCanceled  ScheduleStatus = "canceled"
	ScheduleStatusFailed    ScheduleStatus = "failed"
	ScheduleStatusStopped   ScheduleStatus = "stopped"
)

// Handle controls one scheduled execution. Done closes once the handle
// reaches a terminal status.
type Handle interface {
	Cancel()
	Status() ScheduleStatus
	Err() error
	Done() <-chan struct{}
	ID() int64
}

type timerHandle struct {
	scheduler *Scheduler
	id        int64
	done      chan struct{}

	mu        sync.RWMutex
	status    ScheduleStatus
	err       error
	cancel    sync.Once
	closeDone sync.Once
}

func (h *timerHandle) Cancel() {
	if h == nil {
		return
	}
	h.cancel.Do(func() {
		if h.scheduler != nil {
			h.scheduler.removeHandle(h.id)
		}
		h.setTerminal(ScheduleStatusCanceled, nil)
	})
}

func (h *timerHandle) Status() ScheduleStatus {
	if h == nil {
		return ScheduleStatusStopped
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.status
}

func (h *timerHandle) Err() error {
	if h == nil {
		return nil
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.err
}

func (h *timerHandle) Done() <-chan struct{} {
	if h == nil {
		ch := make(chan struct{})
		close(ch)
		return ch
	}
	return h.done
}

func (h *timerHandle) ID() int64 {
	if h == nil {
		return 0
	}
	return h.id
}

func (h *timerHandle) setStatus(status ScheduleStatus, err error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.status = status
	h.err = err
}

// setTerminal keeps the first terminal status, later calls are no-ops.
func (h *timerHandle) setTerminal(status ScheduleStatus, err error) {
	h.mu.Lock()
	if isTerminalStatus(h.status) {
		h.mu.Unlock()
		return
	}
	h.status = status
	h.err = err
	h.mu.Unlock()

	h.closeDone.Do(func() {
		if h.done != nil {
			close(h.done)
		}
	})
}
