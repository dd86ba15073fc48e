package main

import (
	"context"
	stderrors "errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/alecthomas/kong"
	"github.com/goliatone/go-errors"
	"github.com/goliatone/go-logger/glog"
	"github.com/goliatone/go-sequencer"
	"github.com/goliatone/go-sequencer/config"
	"github.com/goliatone/go-sequencer/controller"
	"github.com/goliatone/go-sequencer/runner"
)

func main() {
	var cfg config.Config
	kong.Parse(&cfg,
		kong.Name("sequencer"),
		kong.Description("Runs bot executions one after another through an external controller."),
	)

	logger := newLogger(cfg)
	defer sequencer.MakePanicHandler(sequencer.NewPanicLogger(logger), func(any) {
		os.Exit(1)
	})("main")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		if stderrors.Is(err, context.Canceled) {
			logger.Info("sequencer stopped")
			return
		}
		logger.Error("sequencer failed: %v", err)
		stop()
		os.Exit(1)
	}
}

func newLogger(cfg config.Config) sequencer.Logger {
	if cfg.LogFormat == "json" {
		return sequencer.NewGlogLogger(glog.NewLogger(
			glog.WithWriter(os.Stdout),
			glog.WithLoggerTypeJSON(),
			glog.WithLevel(cfg.LogLevel),
		))
	}
	return sequencer.NewGlogLogger(glog.NewLogger(
		glog.WithWriter(os.Stdout),
		glog.WithLevel(cfg.LogLevel),
	))
}

func run(ctx context.Context, cfg config.Config, logger sequencer.Logger) error {
	if len(cfg.RootCommand) == 0 {
		return errors.New("ROOT_COMMAND is required to start the controller", errors.CategoryBadInput).
			WithTextCode("MISSING_ROOT_COMMAND")
	}

	factory := controller.NewProcessFactory(cfg.RootCommand,
		controller.WithLogger(logger),
		controller.WithFullLog(cfg.FullLog),
	)

	opts := []runner.Option{
		runner.WithLogger(logger),
		runner.WithLoopDelay(cfg.LoopDelay()),
		runner.WithLoopSchedule(cfg.ExecutionLoopSchedule),
	}

	if !cfg.RunSequence {
		d := cfg.Descriptor()
		logger.Info("running single execution %s", d.StepKey())
		s, err := runner.New([]sequencer.Descriptor{d}, factory, opts...)
		if err != nil {
			return err
		}
		return s.RunOnce(ctx)
	}

	seq, err := config.LoadSequence(cfg.SequenceFile)
	if err != nil {
		return err
	}
	if problems := config.ValidateSequence(seq, logger); len(problems) > 0 {
		logger.Warn("sequence %s has %d problems", cfg.SequenceFile, len(problems))
	}

	logger.Info("running sequence of %d executions from %s", len(seq), cfg.SequenceFile)
	s, err := runner.New(seq, factory, opts...)
	if err != nil {
		return err
	}
	return s.Run(ctx)
}
