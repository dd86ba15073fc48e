package controller

import (
	"context"

	"github.com/goliatone/go-sequencer"
)

// UICommands are the interactive overrides a UI may pass on Initialize.
// Headless runs pass the zero value.
type UICommands struct {
	BeginDatetime string
	EndDatetime   string
	TimePeriod    string
	StartMode     sequencer.StartMode
	EventHandler  any
}

// Result is what a controller reports when a run finishes.
type Result struct {
	ExitCode int
	Err      error
}

// Controller is the external component doing the trading or indicator
// work. Initialize must call onInitialized exactly once before Start is
// called. Start calls onFinish one or more times; callers tolerate
// duplicates. Callbacks may run on any goroutine, including synchronously
// from within Initialize or Start.
type Controller interface {
	Initialize(ctx context.Context, ui UICommands, onInitialized func()) error
	Start(ctx context.Context, onFinish func(Result)) error
}

// Factory creates the controller for one step from its execution config.
type Factory func(cfg sequencer.ExecutionConfig) (Controller, error)

// FuncController adapts plain functions to Controller. A nil InitializeFunc
// signals initialization immediately, a nil StartFunc finishes immediately.
type FuncController struct {
	InitializeFunc func(ctx context.Context, ui UICommands, onInitialized func()) error
	StartFunc      func(ctx context.Context, onFinish func(Result)) error
}

func (c FuncController) Initialize(ctx context.Context, ui UICommands, onInitialized func()) error {
	if c.InitializeFunc == nil {
		onInitialized()
		return nil
	}
	return c.InitializeFunc(ctx, ui, onInitialized)
}

func (c FuncController) Start(ctx context.Context, onFinish func(Result)) error {
	if c.StartFunc == nil {
		onFinish(Result{})
		return nil
	}
	return c.StartFunc(ctx, onFinish)
}
