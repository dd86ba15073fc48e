package controller

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strconv"
	"sync"

	"github.com/goliatone/go-errors"
	"github.com/goliatone/go-sequencer"
)

// ErrControllerFailed marks failures starting or talking to the controller
// process. They are fatal for the sequencer.
var ErrControllerFailed = errors.New("controller failed", errors.CategoryExternal).
	WithTextCode(sequencer.ErrCodeControllerFailed)

// ProcessOption configures a ProcessController.
type ProcessOption func(*ProcessController)

// WithDir sets the working directory of the controller process.
func WithDir(dir string) ProcessOption {
	return func(p *ProcessController) {
		p.dir = dir
	}
}

// WithBaseEnv sets the environment the step variables are layered on.
// Defaults to the current process environment.
func WithBaseEnv(env []string) ProcessOption {
	return func(p *ProcessController) {
		p.baseEnv = env
	}
}

// WithLogger sets the logger receiving the controller output.
func WithLogger(logger sequencer.Logger) ProcessOption {
	return func(p *ProcessController) {
		p.logger = logger
	}
}

// WithFullLog forwards every stdout line at info level instead of debug.
func WithFullLog(full bool) ProcessOption {
	return func(p *ProcessController) {
		p.fullLog = full
	}
}

// ProcessController runs the controller as a child process. The step
// config reaches the child as EXECUTION_CONFIG JSON plus one variable per
// descriptor field. The process exit is the completion signal.
type ProcessController struct {
	command []string
	dir     string
	baseEnv []string
	logger  sequencer.Logger
	fullLog bool

	cfg  sequencer.ExecutionConfig
	path string
	env  []string

	mu      sync.Mutex
	started bool
}

// NewProcessFactory returns a Factory creating one ProcessController per step.
func NewProcessFactory(command []string, opts ...ProcessOption) Factory {
	return func(cfg sequencer.ExecutionConfig) (Controller, error) {
		return NewProcessController(cfg, command, opts...)
	}
}

// NewProcessController prepares a controller for cfg running command.
func NewProcessController(cfg sequencer.ExecutionConfig, command []string, opts ...ProcessOption) (*ProcessController, error) {
	if len(command) == 0 || command[0] == "" {
		return nil, controllerError("controller command is empty", nil, cfg)
	}
	p := &ProcessController{
		command: append([]string(nil), command...),
		cfg:     cfg,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(p)
		}
	}
	if p.baseEnv == nil {
		p.baseEnv = os.Environ()
	}
	p.logger = sequencer.WithLoggerFields(sequencer.NormalizeLogger(p.logger), map[string]any{
		"step_key": cfg.StepKey().String(),
	})
	return p, nil
}

// Initialize resolves the executable and renders the child environment.
func (p *ProcessController) Initialize(_ context.Context, ui UICommands, onInitialized func()) error {
	path, err := exec.LookPath(p.command[0])
	if err != nil {
		return controllerError("controller executable not found", err, p.cfg)
	}

	env, err := Environ(p.cfg)
	if err != nil {
		return controllerError("render controller environment", err, p.cfg)
	}
	env = append(env, uiEnviron(ui)...)

	p.mu.Lock()
	p.path = path
	p.env = append(append([]string(nil), p.baseEnv...), env...)
	p.mu.Unlock()

	p.logger.Debug("controller initialized with %s", path)
	onInitialized()
	return nil
}

// Start launches the process. onFinish fires once when it exits.
func (p *ProcessController) Start(ctx context.Context, onFinish func(Result)) error {
	p.mu.Lock()
	if p.path == "" {
		p.mu.Unlock()
		return controllerError("controller started before initialize", nil, p.cfg)
	}
	if p.started {
		p.mu.Unlock()
		return controllerError("controller already started", nil, p.cfg)
	}
	p.started = true
	cmd := exec.CommandContext(ctx, p.path, p.command[1:]...)
	cmd.Env = p.env
	cmd.Dir = p.dir
	p.mu.Unlock()

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return controllerError("attach controller stdout", err, p.cfg)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return controllerError("attach controller stderr", err, p.cfg)
	}

	if err := cmd.Start(); err != nil {
		return controllerError("start controller process", err, p.cfg)
	}
	p.logger.Info("controller process started pid=%d", cmd.Process.Pid)

	var wg sync.WaitGroup
	wg.Add(2)
	go p.forward(&wg, stdout, p.stdoutLevel())
	go p.forward(&wg, stderr, p.logger.Warn)

	go func() {
		// pipes must be drained before Wait closes them
		wg.Wait()
		waitErr := cmd.Wait()
		res := Result{ExitCode: cmd.ProcessState.ExitCode()}
		if waitErr != nil {
			res.Err = controllerError("controller process exited with error", waitErr, p.cfg)
		}
		p.logger.Info("controller process exited code=%d", res.ExitCode)
		onFinish(res)
	}()
	return nil
}

func (p *ProcessController) stdoutLevel() func(string, ...any) {
	if p.fullLog {
		return p.logger.Info
	}
	return p.logger.Debug
}

func (p *ProcessController) forward(wg *sync.WaitGroup, r io.Reader, logf func(string, ...any)) {
	defer wg.Done()
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		logf("%s", scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		p.logger.Warn("controller output stream: %v", err)
	}
}

// Environ renders cfg as the environment variables the controller reads.
func Environ(cfg sequencer.ExecutionConfig) ([]string, error) {
	payload, err := json.Marshal(cfg)
	if err != nil {
		return nil, err
	}

	d := cfg.Descriptor
	env := []string{
		"STOP_GRACEFULLY=true",
		"DEV_TEAM=" + d.DevTeam,
		"BOT=" + d.Bot,
		"TYPE=" + string(d.Type),
		"PROCESS=" + d.Process,
		"START_MODE=" + string(d.Mode),
		"RESUME_EXECUTION=" + strconv.FormatBool(d.ResumeExecution),
		"BEGIN_DATE_TIME=" + d.BeginDatetime,
		"END_DATE_TIME=" + d.EndDatetime,
		"TIME_PERIOD=" + d.TimePeriod,
		"EXCHANGE_NAME=" + d.ExchangeName,
		"INTERVAL=" + d.Interval,
		"DATA_SET=" + d.DataSet,
		"CURRENT_BOT_REPO=" + cfg.CloneToExecute.Repo,
		"EXECUTION_CONFIG=" + string(payload),
	}
	env = append(env,
		"MIN_YEAR="+intOrEmpty(d.StartYear),
		"MAX_YEAR="+intOrEmpty(d.EndYear),
		"MONTH="+intOrEmpty(d.Month),
	)
	return env, nil
}

// intOrEmpty renders unset numeric fields as empty values so they still
// override whatever the parent environment holds.
func intOrEmpty(v int) string {
	if v == 0 {
		return ""
	}
	return strconv.Itoa(v)
}

func uiEnviron(ui UICommands) []string {
	var env []string
	if ui.BeginDatetime != "" {
		env = append(env, "UI_BEGIN_DATE_TIME="+ui.BeginDatetime)
	}
	if ui.EndDatetime != "" {
		env = append(env, "UI_END_DATE_TIME="+ui.EndDatetime)
	}
	if ui.TimePeriod != "" {
		env = append(env, "UI_TIME_PERIOD="+ui.TimePeriod)
	}
	if ui.StartMode != "" {
		env = append(env, "UI_START_MODE="+string(ui.StartMode))
	}
	return env
}

func controllerError(message string, source error, cfg sequencer.ExecutionConfig) *errors.Error {
	return sequencer.NewError(ErrControllerFailed, message, source, map[string]any{
		"step_key": cfg.StepKey().String(),
		"repo":     cfg.CloneToExecute.Repo,
	})
}

func (p *ProcessController) String() string {
	return fmt.Sprintf("process controller %v", p.command)
}
