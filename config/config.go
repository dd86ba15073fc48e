package config

import (
	"strings"
	"time"

	"github.com/goliatone/go-sequencer"
)

// Config is the process configuration. Every field can be set from the
// environment, flags override it.
type Config struct {
	DevTeam         string `name:"dev-team" env:"DEV_TEAM" help:"Dev team owning the bot."`
	Bot             string `name:"bot" env:"BOT" help:"Bot name."`
	Type            string `name:"type" env:"TYPE" help:"Bot type: Trading, Indicator or Sensor."`
	Process         string `name:"process" env:"PROCESS" help:"Bot process to run."`
	StartMode       string `name:"start-mode" env:"START_MODE" help:"Start mode of the execution."`
	ResumeExecution bool   `name:"resume-execution" env:"RESUME_EXECUTION" help:"Resume a previous execution."`
	MinYear         int    `name:"min-year" env:"MIN_YEAR" help:"First year for allMonths."`
	MaxYear         int    `name:"max-year" env:"MAX_YEAR" help:"Last year for allMonths."`
	Month           int    `name:"month" env:"MONTH" help:"Month for oneMonth."`
	BeginDatetime   string `name:"begin-date-time" env:"BEGIN_DATE_TIME" help:"Window start."`
	EndDatetime     string `name:"end-date-time" env:"END_DATE_TIME" help:"Window end."`
	TimePeriod      string `name:"time-period" env:"TIME_PERIOD" help:"Time period label, e.g. 01-hs."`
	ExchangeName    string `name:"exchange-name" env:"EXCHANGE_NAME" help:"Exchange name."`
	Interval        string `name:"interval" env:"INTERVAL" help:"Interval for fixedInterval."`
	DataSet         string `name:"data-set" env:"DATA_SET" help:"Data set name."`

	RunSequence           bool   `name:"run-sequence" env:"RUN_SEQUENCE" help:"Loop over the sequence file instead of running the environment execution once."`
	SequenceFile          string `name:"sequence-file" env:"SEQUENCE_FILE" default:"sequence.yaml" help:"Sequence file (.yaml, .yml, .json or .hcl)."`
	ExecutionLoopDelay    int64  `name:"execution-loop-delay" env:"EXECUTION_LOOP_DELAY" default:"0" help:"Delay in milliseconds between rounds."`
	ExecutionLoopSchedule string `name:"execution-loop-schedule" env:"EXECUTION_LOOP_SCHEDULE" help:"Cron expression for round restarts, overrides the delay."`

	RootCommand []string `name:"root-command" env:"ROOT_COMMAND" sep:" " help:"Controller executable and arguments."`
	LogLevel    string   `name:"log-level" env:"LOG_LEVEL" default:"info" enum:"trace,debug,info,warn,error" help:"Log level."`
	LogFormat   string   `name:"log-format" env:"LOG_FORMAT" default:"console" enum:"console,json" help:"Log output format."`
	FullLog     bool     `name:"full-log" env:"FULL_LOG" help:"Log controller output at info level."`
}

// Descriptor returns the single execution described by the environment.
func (c Config) Descriptor() sequencer.Descriptor {
	return sequencer.Descriptor{
		DevTeam:         strings.TrimSpace(c.DevTeam),
		Bot:             strings.TrimSpace(c.Bot),
		Mode:            sequencer.StartMode(strings.TrimSpace(c.StartMode)),
		ResumeExecution: c.ResumeExecution,
		Type:            sequencer.ParseBotType(c.Type),
		Process:         strings.TrimSpace(c.Process),
		StartYear:       c.MinYear,
		EndYear:         c.MaxYear,
		Month:           c.Month,
		BeginDatetime:   c.BeginDatetime,
		EndDatetime:     c.EndDatetime,
		TimePeriod:      strings.TrimSpace(c.TimePeriod),
		ExchangeName:    c.ExchangeName,
		Interval:        c.Interval,
		DataSet:         c.DataSet,
	}
}

// LoopDelay returns the pause between rounds.
func (c Config) LoopDelay() time.Duration {
	if c.ExecutionLoopDelay <= 0 {
		return 0
	}
	return time.Duration(c.ExecutionLoopDelay) * time.Millisecond
}
