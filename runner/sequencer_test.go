package runner

import (
	"bytes"
	"context"
	"errors"
	"io"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/goliatone/go-sequencer"
	"github.com/goliatone/go-sequencer/controller"
	"github.com/goliatone/go-sequencer/cron"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func indicator(bot string) sequencer.Descriptor {
	return sequencer.Descriptor{
		DevTeam:      "AAMasters",
		Bot:          bot,
		Mode:         sequencer.StartModeNoTime,
		Type:         sequencer.BotTypeIndicator,
		Process:      "Multi-Period-Market",
		TimePeriod:   "01-hs",
		ExchangeName: "Poloniex",
	}
}

func quiet() Option {
	return WithLogger(sequencer.NewFmtLogger(io.Discard))
}

func staticFactory(ctrl controller.Controller) controller.Factory {
	return func(sequencer.ExecutionConfig) (controller.Controller, error) {
		return ctrl, nil
	}
}

type dispatchLog struct {
	mu    sync.Mutex
	items []Dispatch
}

func (l *dispatchLog) add(d Dispatch) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.items = append(l.items, d)
	return len(l.items)
}

func (l *dispatchLog) keys() []sequencer.StepKey {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]sequencer.StepKey, 0, len(l.items))
	for _, d := range l.items {
		out = append(out, d.StepKey)
	}
	return out
}

func TestNewValidation(t *testing.T) {
	factory := staticFactory(controller.FuncController{})

	_, err := New(nil, factory)
	require.Error(t, err)
	assert.Equal(t, sequencer.ErrCodeEmptySequence, sequencer.ErrorCode(err))

	_, err = New([]sequencer.Descriptor{indicator("AAOlivia")}, nil)
	require.Error(t, err)
	assert.Equal(t, "NIL_CONTROLLER_FACTORY", sequencer.ErrorCode(err))

	_, err = New([]sequencer.Descriptor{indicator("AAOlivia")}, factory, WithLoopSchedule("not a cron"))
	require.Error(t, err)
	assert.Equal(t, "INVALID_LOOP_SCHEDULE", sequencer.ErrorCode(err))

	s, err := New([]sequencer.Descriptor{indicator("AAOlivia")}, factory, quiet())
	require.NoError(t, err)
	assert.Equal(t, StateIdle, s.State())
	assert.Equal(t, 0, s.Round())
	_, ok := s.Current()
	assert.False(t, ok)
}

func TestRunDispatchesInOrderAndLoops(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	const loopDelay = 30 * time.Millisecond

	var (
		s          *Sequencer
		log        dispatchLog
		mu         sync.Mutex
		stamps     []time.Time
		regAtRound atomic.Int32
	)
	regAtRound.Store(-1)

	s, err := New(
		[]sequencer.Descriptor{indicator("AAOlivia"), indicator("AABruce")},
		staticFactory(controller.FuncController{}),
		quiet(),
		WithLoopDelay(loopDelay),
		WithDispatchHandler(func(d Dispatch) {
			mu.Lock()
			stamps = append(stamps, time.Now())
			mu.Unlock()

			n := log.add(d)
			if n == 3 {
				regAtRound.Store(int32(s.Registry().Len()))
				assert.Equal(t, 2, d.Round)
				assert.Equal(t, 0, d.Cursor)
				cancel()
			}
		}),
	)
	require.NoError(t, err)

	err = s.Run(ctx)
	assert.ErrorIs(t, err, context.Canceled)

	keys := log.keys()
	require.GreaterOrEqual(t, len(keys), 3)
	k0 := sequencer.NewStepKey("AAMasters", "AAOlivia", "Multi-Period-Market")
	k1 := sequencer.NewStepKey("AAMasters", "AABruce", "Multi-Period-Market")
	assert.Equal(t, []sequencer.StepKey{k0, k1, k0}, keys[:3])
	assert.Equal(t, int32(0), regAtRound.Load())

	mu.Lock()
	defer mu.Unlock()
	require.GreaterOrEqual(t, len(stamps), 3)
	assert.GreaterOrEqual(t, stamps[2].Sub(stamps[1]), loopDelay,
		"next round dispatched before the loop delay elapsed")
}

func TestDispatchPublishesConfig(t *testing.T) {
	var published sequencer.ExecutionConfig
	var s *Sequencer

	s, err := New(
		[]sequencer.Descriptor{indicator("AAOlivia")},
		staticFactory(controller.FuncController{
			StartFunc: func(_ context.Context, onFinish func(controller.Result)) error {
				cfg, ok := s.Current()
				require.True(t, ok)
				published = cfg
				assert.Equal(t, StateRunning, s.State())
				onFinish(controller.Result{})
				return nil
			},
		}),
		quiet(),
	)
	require.NoError(t, err)
	require.NoError(t, s.RunOnce(context.Background()))

	assert.Equal(t, sequencer.StepKey("AAMasters.AAOlivia.Multi-Period-Market"), published.StepKey())
	assert.Equal(t, "AAOlivia-Indicator-Bot", published.CloneToExecute.Repo)
	require.NotNil(t, published.TimePeriod)
	assert.Equal(t, int64(3600000), *published.TimePeriod)
	assert.Equal(t, sequencer.StartModeNoTime, published.StartMode.Active())
}

func TestSynchronousDuplicateSignalsAdvanceOnce(t *testing.T) {
	buf := &bytes.Buffer{}
	var log dispatchLog

	s, err := New(
		[]sequencer.Descriptor{indicator("AAOlivia")},
		staticFactory(controller.FuncController{
			StartFunc: func(_ context.Context, onFinish func(controller.Result)) error {
				onFinish(controller.Result{})
				onFinish(controller.Result{})
				onFinish(controller.Result{})
				return nil
			},
		}),
		WithLogger(sequencer.NewFmtLogger(buf)),
		WithDispatchHandler(func(d Dispatch) { log.add(d) }),
	)
	require.NoError(t, err)
	require.NoError(t, s.RunOnce(context.Background()))

	key := sequencer.NewStepKey("AAMasters", "AAOlivia", "Multi-Period-Market")
	assert.Equal(t, 3, s.Registry().Count(key))
	assert.Equal(t, 1, s.Cursor())
	assert.Len(t, log.keys(), 1)
	assert.Contains(t, buf.String(), "step already processed")
}

func TestLateDuplicateDoesNotAdvanceNextStep(t *testing.T) {
	var (
		s     *Sequencer
		stale func(controller.Result)
		calls int
	)

	factory := func(cfg sequencer.ExecutionConfig) (controller.Controller, error) {
		return controller.FuncController{
			StartFunc: func(_ context.Context, onFinish func(controller.Result)) error {
				calls++
				if calls == 1 {
					stale = onFinish
					onFinish(controller.Result{})
					return nil
				}
				stale(controller.Result{})
				assert.Equal(t, 1, s.Cursor())
				assert.Equal(t, StateRunning, s.State())
				onFinish(controller.Result{})
				return nil
			},
		}, nil
	}

	s, err := New(
		[]sequencer.Descriptor{indicator("AAOlivia"), indicator("AABruce")},
		factory,
		quiet(),
	)
	require.NoError(t, err)
	require.NoError(t, s.RunOnce(context.Background()))

	assert.Equal(t, 2, calls)
	assert.Equal(t, 2, s.Cursor())
	assert.Equal(t, 2, s.Registry().Count(sequencer.NewStepKey("AAMasters", "AAOlivia", "Multi-Period-Market")))
	assert.Equal(t, 1, s.Registry().Count(sequencer.NewStepKey("AAMasters", "AABruce", "Multi-Period-Market")))
}

func TestStartWaitsForInitialization(t *testing.T) {
	var initialized atomic.Bool

	s, err := New(
		[]sequencer.Descriptor{indicator("AAOlivia")},
		staticFactory(controller.FuncController{
			InitializeFunc: func(_ context.Context, _ controller.UICommands, onInitialized func()) error {
				go func() {
					time.Sleep(20 * time.Millisecond)
					initialized.Store(true)
					onInitialized()
					onInitialized()
				}()
				return nil
			},
			StartFunc: func(_ context.Context, onFinish func(controller.Result)) error {
				assert.True(t, initialized.Load(), "start called before initialization")
				go onFinish(controller.Result{ExitCode: 1, Err: errors.New("exit status 1")})
				return nil
			},
		}),
		quiet(),
	)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, s.RunOnce(ctx))
	assert.Equal(t, 1, s.Cursor())
}

func TestConfigurationErrorParksSequencer(t *testing.T) {
	buf := &bytes.Buffer{}
	var created atomic.Int32

	d := indicator("AAJason")
	d.Type = sequencer.BotTypeTrading
	d.Mode = sequencer.StartModeAllMonths

	s, err := New(
		[]sequencer.Descriptor{d},
		func(sequencer.ExecutionConfig) (controller.Controller, error) {
			created.Add(1)
			return controller.FuncController{}, nil
		},
		WithLogger(sequencer.NewFmtLogger(buf)),
	)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	err = s.Run(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, int32(0), created.Load())
	assert.Equal(t, 0, s.Cursor())
	assert.Equal(t, StateDispatching, s.State())
	_, ok := s.Current()
	assert.False(t, ok)
	assert.Contains(t, buf.String(), "execution configuration rejected")
}

func TestRunOnceReturnsOnConfigurationError(t *testing.T) {
	buf := &bytes.Buffer{}
	var created atomic.Int32

	d := indicator("AAJason")
	d.Type = sequencer.BotType("Bogus")

	s, err := New(
		[]sequencer.Descriptor{d},
		func(sequencer.ExecutionConfig) (controller.Controller, error) {
			created.Add(1)
			return controller.FuncController{}, nil
		},
		WithLogger(sequencer.NewFmtLogger(buf)),
	)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	started := time.Now()
	require.NoError(t, s.RunOnce(ctx))
	assert.Less(t, time.Since(started), time.Second)
	assert.NoError(t, ctx.Err())
	assert.Equal(t, int32(0), created.Load())
	assert.Equal(t, 0, s.Cursor())
	assert.Contains(t, buf.String(), "execution configuration rejected")
}

func TestControllerErrorsAreFatal(t *testing.T) {
	boom := errors.New("boom")

	cases := map[string]controller.Factory{
		"factory": func(sequencer.ExecutionConfig) (controller.Controller, error) {
			return nil, boom
		},
		"initialize": staticFactory(controller.FuncController{
			InitializeFunc: func(context.Context, controller.UICommands, func()) error {
				return boom
			},
		}),
		"start": staticFactory(controller.FuncController{
			StartFunc: func(context.Context, func(controller.Result)) error {
				return boom
			},
		}),
	}

	for name, factory := range cases {
		t.Run(name, func(t *testing.T) {
			s, err := New([]sequencer.Descriptor{indicator("AAOlivia")}, factory, quiet())
			require.NoError(t, err)

			err = s.Run(context.Background())
			require.Error(t, err)
			assert.Equal(t, sequencer.ErrCodeControllerFailed, sequencer.ErrorCode(err))
			assert.ErrorIs(t, err, boom)
		})
	}
}

func TestStaleSignalFromPreviousRoundIsIgnored(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var (
		s        *Sequencer
		previous func(controller.Result)
		calls    int
	)

	s, err := New(
		[]sequencer.Descriptor{indicator("AAOlivia")},
		staticFactory(controller.FuncController{
			StartFunc: func(_ context.Context, onFinish func(controller.Result)) error {
				calls++
				if calls == 1 {
					previous = onFinish
					onFinish(controller.Result{})
					return nil
				}
				previous(controller.Result{})
				assert.Equal(t, 2, s.Round())
				assert.Equal(t, 0, s.Registry().Len())
				assert.Equal(t, 0, s.Cursor())
				cancel()
				return nil
			},
		}),
		quiet(),
	)
	require.NoError(t, err)

	err = s.Run(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 2, calls)
}

func TestRunOnceRunsSingleRound(t *testing.T) {
	var rounds []Round

	s, err := New(
		[]sequencer.Descriptor{indicator("AAOlivia"), indicator("AABruce")},
		staticFactory(controller.FuncController{}),
		quiet(),
		WithRoundHandler(func(r Round) { rounds = append(rounds, r) }),
	)
	require.NoError(t, err)
	require.NoError(t, s.RunOnce(context.Background()))

	require.Len(t, rounds, 1)
	assert.Equal(t, 1, rounds[0].Number)
	assert.Equal(t, 2, rounds[0].Steps)
	assert.NotEmpty(t, rounds[0].ID)
	assert.Equal(t, 1, s.Round())
	assert.Equal(t, 2, s.Cursor())
}

func TestLoopScheduleRestartsRounds(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// every activation of */15 is 20ms away on this clock
	base := time.Date(2024, 5, 10, 10, 14, 59, 980_000_000, time.UTC)
	scheduler := cron.NewScheduler(
		cron.WithLocation(time.UTC),
		cron.WithClock(func() time.Time { return base }),
	)

	var rounds atomic.Int32
	s, err := New(
		[]sequencer.Descriptor{indicator("AAOlivia")},
		staticFactory(controller.FuncController{}),
		quiet(),
		WithScheduler(scheduler),
		WithLoopSchedule("*/15 * * * *"),
		WithRoundHandler(func(r Round) {
			if rounds.Add(1) == 3 {
				cancel()
			}
		}),
	)
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("expected scheduled rounds to restart")
	}
	assert.GreaterOrEqual(t, rounds.Load(), int32(3))
}

func TestSignalResolvesOnce(t *testing.T) {
	sig := newSignal()
	assert.True(t, sig.resolve())
	assert.False(t, sig.resolve())

	select {
	case <-sig.Done():
	default:
		t.Fatal("expected resolved signal to be done")
	}
	assert.NoError(t, sig.wait(context.Background()))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, newSignal().wait(ctx), context.Canceled)
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "idle", StateIdle.String())
	assert.Equal(t, "round_complete", StateRoundComplete.String())
	assert.Equal(t, "unknown", State(42).String())
}
