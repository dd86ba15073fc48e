package runner

import (
	"time"

	"github.com/goliatone/go-sequencer"
	"github.com/goliatone/go-sequencer/completion"
	"github.com/goliatone/go-sequencer/controller"
	"github.com/goliatone/go-sequencer/cron"
	"github.com/goliatone/go-sequencer/startmode"
)

type Option func(*Sequencer)

func WithLogger(l sequencer.Logger) Option {
	return func(s *Sequencer) {
		s.logger = l
	}
}

// WithLoopDelay sets the pause between the end of a round and the next.
func WithLoopDelay(d time.Duration) Option {
	return func(s *Sequencer) {
		if d < 0 {
			d = 0
		}
		s.loopDelay = d
	}
}

// WithLoopSchedule restarts rounds at the next activation of a cron
// expression instead of after the loop delay.
func WithLoopSchedule(expression string) Option {
	return func(s *Sequencer) {
		s.loopSchedule = expression
	}
}

func WithScheduler(sch *cron.Scheduler) Option {
	return func(s *Sequencer) {
		s.scheduler = sch
	}
}

func WithBuilder(b *startmode.Builder) Option {
	return func(s *Sequencer) {
		s.builder = b
	}
}

func WithRegistry(r *completion.Registry) Option {
	return func(s *Sequencer) {
		s.registry = r
	}
}

// WithUICommands sets the commands passed to every controller Initialize.
func WithUICommands(ui controller.UICommands) Option {
	return func(s *Sequencer) {
		s.ui = ui
	}
}

// WithDispatchHandler is called once the config of a step is published
// and before its controller is created.
func WithDispatchHandler(h func(Dispatch)) Option {
	return func(s *Sequencer) {
		s.onDispatch = h
	}
}

// WithRoundHandler is called when a round begins, after the cursor and the
// completion registry were reset.
func WithRoundHandler(h func(Round)) Option {
	return func(s *Sequencer) {
		s.onRound = h
	}
}
