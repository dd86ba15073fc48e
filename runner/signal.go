package runner

import (
	"context"
	"sync"
)

// signal resolves once. Resolving never blocks, so controllers may fire
// callbacks from any goroutine, including the one waiting on Done.
type signal struct {
	once sync.Once
	done chan struct{}
}

func newSignal() *signal {
	return &signal{done: make(chan struct{})}
}

// resolve reports whether this call was the one that resolved the signal.
func (s *signal) resolve() bool {
	resolved := false
	s.once.Do(func() {
		close(s.done)
		resolved = true
	})
	return resolved
}

func (s *signal) Done() <-chan struct{} {
	return s.done
}

func (s *signal) wait(ctx context.Context) error {
	select {
	case <-s.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
