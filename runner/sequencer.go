package runner

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/goliatone/go-errors"
	"github.com/goliatone/go-sequencer"
	"github.com/goliatone/go-sequencer/completion"
	"github.com/goliatone/go-sequencer/controller"
	"github.com/goliatone/go-sequencer/cron"
	"github.com/goliatone/go-sequencer/startmode"
	"github.com/google/uuid"
)

// Dispatch describes a step handed to a controller.
type Dispatch struct {
	Round   int
	RoundID string
	Cursor  int
	StepKey sequencer.StepKey
	Config  sequencer.ExecutionConfig
}

// Round describes a round that just began.
type Round struct {
	Number int
	ID     string
	Steps  int
}

// Sequencer dispatches a fixed list of descriptors to controllers one at a
// time, in order, and loops over the list forever.
type Sequencer struct {
	sequence []sequencer.Descriptor
	factory  controller.Factory

	builder      *startmode.Builder
	registry     *completion.Registry
	scheduler    *cron.Scheduler
	logger       sequencer.Logger
	loopDelay    time.Duration
	loopSchedule string
	ui           controller.UICommands
	onDispatch   func(Dispatch)
	onRound      func(Round)

	mu      sync.Mutex
	state   State
	cursor  int
	round   int
	roundID string
	current *sequencer.ExecutionConfig
}

// New builds a sequencer for sequence. Every step gets a fresh controller
// from factory.
func New(sequence []sequencer.Descriptor, factory controller.Factory, opts ...Option) (*Sequencer, error) {
	if len(sequence) == 0 {
		return nil, sequencer.ErrEmptySequence.Clone()
	}
	if factory == nil {
		return nil, errors.New("controller factory cannot be nil", errors.CategoryBadInput).
			WithTextCode("NIL_CONTROLLER_FACTORY")
	}

	s := &Sequencer{
		sequence: append([]sequencer.Descriptor(nil), sequence...),
		factory:  factory,
		state:    StateIdle,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}

	s.logger = sequencer.NormalizeLogger(s.logger)
	if s.builder == nil {
		s.builder = startmode.NewBuilder(s.logger)
	}
	if s.registry == nil {
		s.registry = completion.NewRegistry()
	}
	if s.scheduler == nil {
		s.scheduler = cron.NewScheduler(
			cron.WithLogger(s.logger),
			cron.WithLogLevel(cron.LogLevelInfo),
			cron.WithErrorHandler(func(err error) {
				s.logger.Error("restart timer failed: %v", err)
			}),
		)
	}

	s.loopSchedule = strings.TrimSpace(s.loopSchedule)
	if s.loopSchedule != "" {
		if _, err := s.scheduler.Next(s.loopSchedule); err != nil {
			return nil, errors.Wrap(err, errors.CategoryBadInput, "invalid loop schedule").
				WithTextCode("INVALID_LOOP_SCHEDULE").
				WithMetadata(map[string]any{"expression": s.loopSchedule})
		}
	}
	return s, nil
}

// Run dispatches the sequence round after round until ctx is done or a
// fatal error occurs. A configuration error parks the sequencer on the
// failing step until ctx is done.
func (s *Sequencer) Run(ctx context.Context) error {
	for {
		if err := s.runRound(ctx, true); err != nil {
			return err
		}
		if err := s.awaitNextRound(ctx); err != nil {
			return err
		}
	}
}

// RunOnce dispatches every step of a single round and returns without
// scheduling a restart. A configuration error is logged and ends the round
// early without an error.
func (s *Sequencer) RunOnce(ctx context.Context) error {
	return s.runRound(ctx, false)
}

func (s *Sequencer) runRound(ctx context.Context, parkOnConfigError bool) error {
	s.beginRound()

	for {
		cursor, d, ok := s.next()
		if !ok {
			return nil
		}

		err := s.dispatch(ctx, cursor, d)
		if err == nil {
			continue
		}
		if sequencer.IsConfigurationError(err) {
			logger := sequencer.WithLoggerFields(s.logger, s.stepFields(cursor, d))
			logger.Error("execution configuration rejected: %v", err)
			logger.Error("verify that the start mode configured applies to the bot type")
			if !parkOnConfigError {
				return nil
			}
			return s.park(ctx)
		}
		return err
	}
}

func (s *Sequencer) beginRound() {
	s.mu.Lock()
	s.round++
	s.roundID = uuid.NewString()
	s.cursor = 0
	s.current = nil
	s.registry.Reset()
	info := Round{Number: s.round, ID: s.roundID, Steps: len(s.sequence)}
	s.mu.Unlock()

	sequencer.WithLoggerFields(s.logger, map[string]any{"round_id": info.ID}).
		Info("round %d started with %d executions", info.Number, info.Steps)
	if s.onRound != nil {
		s.onRound(info)
	}
}

func (s *Sequencer) next() (int, sequencer.Descriptor, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cursor >= len(s.sequence) {
		return s.cursor, sequencer.Descriptor{}, false
	}
	return s.cursor, s.sequence[s.cursor], true
}

func (s *Sequencer) dispatch(ctx context.Context, cursor int, d sequencer.Descriptor) error {
	s.setState(StateDispatching)
	logger := sequencer.WithLoggerFields(s.logger, s.stepFields(cursor, d))

	cfg, err := s.builder.BuildExecution(d)
	if err != nil {
		return err
	}
	round, roundID := s.publish(cfg)

	logger.Info("dispatching execution %d of %d", cursor+1, len(s.sequence))
	if s.onDispatch != nil {
		s.onDispatch(Dispatch{
			Round:   round,
			RoundID: roundID,
			Cursor:  cursor,
			StepKey: d.StepKey(),
			Config:  cfg,
		})
	}

	ctrl, err := s.factory(cfg)
	if err != nil {
		return controllerFailure("create controller", err, d)
	}

	initialized := newSignal()
	err = ctrl.Initialize(ctx, s.ui, func() {
		if !initialized.resolve() {
			logger.Warn("controller signalled initialization more than once")
		}
	})
	if err != nil {
		return controllerFailure("initialize controller", err, d)
	}
	if err := initialized.wait(ctx); err != nil {
		return err
	}

	s.setState(StateRunning)
	logger.Debug("controller initialized, starting execution")

	finished := newSignal()
	key := d.StepKey()
	err = ctrl.Start(ctx, func(res controller.Result) {
		s.finish(round, key, res, finished, logger)
	})
	if err != nil {
		return controllerFailure("start controller", err, d)
	}
	if err := finished.wait(ctx); err != nil {
		return err
	}

	s.advance()
	return nil
}

// finish classifies a completion signal. Signals from a previous round are
// ignored so they cannot mark a step of the current round as done.
func (s *Sequencer) finish(round int, key sequencer.StepKey, res controller.Result, finished *signal, logger sequencer.Logger) {
	s.mu.Lock()
	if round != s.round {
		current := s.round
		s.mu.Unlock()
		logger.Info("ignoring completion signal from round %d during round %d", round, current)
		return
	}
	outcome := s.registry.Record(key)
	count := s.registry.Count(key)
	s.mu.Unlock()

	switch outcome {
	case completion.First:
		if res.Err != nil {
			logger.Warn("execution finished with error exit_code=%d: %v", res.ExitCode, res.Err)
		} else {
			logger.Info("execution finished")
		}
		finished.resolve()
	default:
		logger.Info("step already processed, completion signal %d ignored", count)
	}
}

func (s *Sequencer) advance() {
	s.mu.Lock()
	s.state = StateAdvancing
	s.cursor++
	s.mu.Unlock()
}

func (s *Sequencer) awaitNextRound(ctx context.Context) error {
	s.setState(StateRoundComplete)

	handle, err := s.scheduleRestart()
	if err != nil {
		return errors.Wrap(err, errors.CategoryHandler, "schedule next round").
			WithTextCode("ROUND_RESTART_FAILED")
	}

	select {
	case <-handle.Done():
	case <-ctx.Done():
		handle.Cancel()
		return ctx.Err()
	}

	if status := handle.Status(); status != cron.ScheduleStatusCompleted {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return errors.New(fmt.Sprintf("round restart timer ended as %s", status), errors.CategoryHandler).
			WithTextCode("ROUND_RESTART_FAILED")
	}

	s.setState(StateIdle)
	s.logger.Info("new round for sequence execution started")
	return nil
}

func (s *Sequencer) scheduleRestart() (cron.Handle, error) {
	if s.loopSchedule != "" {
		return s.scheduler.ScheduleNext(s.loopSchedule, nil)
	}
	s.logger.Debug("next round in %s", s.loopDelay)
	return s.scheduler.ScheduleAfter(s.loopDelay, nil)
}

// park holds a round whose step could not be configured. The step is never
// dispatched and the sequence does not advance.
func (s *Sequencer) park(ctx context.Context) error {
	<-ctx.Done()
	return ctx.Err()
}

func (s *Sequencer) publish(cfg sequencer.ExecutionConfig) (int, string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := cfg
	s.current = &c
	return s.round, s.roundID
}

func (s *Sequencer) setState(state State) {
	s.mu.Lock()
	s.state = state
	s.mu.Unlock()
}

func (s *Sequencer) stepFields(cursor int, d sequencer.Descriptor) map[string]any {
	s.mu.Lock()
	roundID := s.roundID
	s.mu.Unlock()

	fields := d.Fields()
	fields["cursor"] = cursor
	fields["round_id"] = roundID
	return fields
}

// State returns the current state.
func (s *Sequencer) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Cursor returns the index of the step being dispatched.
func (s *Sequencer) Cursor() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cursor
}

// Round returns the number of the current round, starting at 1.
func (s *Sequencer) Round() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.round
}

// Current returns the config published for the step in flight.
func (s *Sequencer) Current() (sequencer.ExecutionConfig, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current == nil {
		return sequencer.ExecutionConfig{}, false
	}
	return *s.current, true
}

// Registry exposes the completion registry of the current round.
func (s *Sequencer) Registry() *completion.Registry {
	return s.registry
}

func controllerFailure(message string, err error, d sequencer.Descriptor) error {
	if sequencer.ErrorCode(err) == sequencer.ErrCodeControllerFailed {
		return err
	}
	return errors.Wrap(err, errors.CategoryExternal, message).
		WithTextCode(sequencer.ErrCodeControllerFailed).
		WithMetadata(map[string]any{"step_key": d.StepKey().String()})
}
