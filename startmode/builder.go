package startmode

import (
	"fmt"
	"strings"

	"github.com/goliatone/go-sequencer"
	"github.com/goliatone/go-sequencer/timeperiod"
)

// Build produces the start mode variants for botType with exactly one of
// them, the one named by d.Mode, marked to run.
func Build(botType sequencer.BotType, d sequencer.Descriptor) (sequencer.StartModeConfig, error) {
	if !botType.Valid() {
		return nil, sequencer.NewError(
			sequencer.ErrInvalidBotType,
			fmt.Sprintf("bot type %q is invalid", botType),
			nil,
			map[string]any{"type": string(botType), "step_key": d.StepKey().String()},
		)
	}
	if !botType.Supports(d.Mode) {
		return nil, sequencer.NewError(
			sequencer.ErrInvalidStartMode,
			fmt.Sprintf("start mode %q does not apply to %s bots", d.Mode, botType),
			nil,
			map[string]any{
				"type":      string(botType),
				"mode":      string(d.Mode),
				"supported": modeNames(botType.Modes()),
			},
		)
	}
	if err := requireModeFields(d); err != nil {
		return nil, err
	}

	switch botType {
	case sequencer.BotTypeTrading:
		return buildTrading(d), nil
	default:
		return buildIndicator(botType, d), nil
	}
}

func buildTrading(d sequencer.Descriptor) sequencer.TradingStartMode {
	cfg := sequencer.TradingStartMode{
		Live: sequencer.LiveMode{
			ResumeExecution: d.ResumeExecution,
		},
		Backtest: sequencer.WindowMode{
			ResumeExecution: d.ResumeExecution,
			BeginDatetime:   d.BeginDatetime,
			EndDatetime:     d.EndDatetime,
		},
		Competition: sequencer.WindowMode{
			ResumeExecution: d.ResumeExecution,
			BeginDatetime:   d.BeginDatetime,
			EndDatetime:     d.EndDatetime,
		},
	}

	switch d.Mode {
	case sequencer.StartModeLive:
		cfg.Live.Run = true
	case sequencer.StartModeBacktest:
		cfg.Backtest.Run = true
	case sequencer.StartModeCompetition:
		cfg.Competition.Run = true
	}
	return cfg
}

func buildIndicator(botType sequencer.BotType, d sequencer.Descriptor) sequencer.IndicatorStartMode {
	cfg := sequencer.IndicatorStartMode{
		Type: botType,
		AllMonths: sequencer.AllMonthsMode{
			MinYear: d.StartYear,
			MaxYear: d.EndYear,
		},
		OneMonth: sequencer.OneMonthMode{
			Year:  d.StartYear,
			Month: d.Month,
		},
		NoTime: sequencer.NoTimeMode{
			BeginDatetime:   d.BeginDatetime,
			ResumeExecution: d.ResumeExecution,
		},
		FixedInterval: sequencer.FixedIntervalMode{
			Interval: d.Interval,
		},
	}

	switch d.Mode {
	case sequencer.StartModeAllMonths:
		cfg.AllMonths.Run = true
	case sequencer.StartModeOneMonth:
		cfg.OneMonth.Run = true
	case sequencer.StartModeNoTime:
		cfg.NoTime.Run = true
	case sequencer.StartModeFixedInterval:
		cfg.FixedInterval.Run = true
	}
	return cfg
}

func requireModeFields(d sequencer.Descriptor) error {
	var missing []string
	switch d.Mode {
	case sequencer.StartModeAllMonths:
		if d.StartYear == 0 {
			missing = append(missing, "startYear")
		}
		if d.EndYear == 0 {
			missing = append(missing, "endYear")
		}
	case sequencer.StartModeOneMonth:
		if d.StartYear == 0 {
			missing = append(missing, "startYear")
		}
		if d.Month == 0 {
			missing = append(missing, "month")
		}
	case sequencer.StartModeFixedInterval:
		if strings.TrimSpace(d.Interval) == "" {
			missing = append(missing, "interval")
		}
	}
	if len(missing) == 0 {
		return nil
	}
	return sequencer.NewError(
		sequencer.ErrMissingModeField,
		fmt.Sprintf("start mode %s requires %s", d.Mode, strings.Join(missing, ", ")),
		nil,
		map[string]any{
			"mode":     string(d.Mode),
			"missing":  missing,
			"step_key": d.StepKey().String(),
		},
	)
}

func modeNames(modes []sequencer.StartMode) []string {
	out := make([]string, 0, len(modes))
	for _, m := range modes {
		out = append(out, string(m))
	}
	return out
}

// Builder assembles the full execution config handed to a controller.
type Builder struct {
	resolver *timeperiod.Resolver
}

// Option configures a Builder.
type Option func(*Builder)

// WithResolver sets the resolver used for time period labels.
func WithResolver(r *timeperiod.Resolver) Option {
	return func(b *Builder) {
		if r != nil {
			b.resolver = r
		}
	}
}

// NewBuilder constructs a Builder, by default resolving time periods with a
// resolver logging to logger.
func NewBuilder(logger sequencer.Logger, opts ...Option) *Builder {
	b := &Builder{
		resolver: timeperiod.NewResolver(logger),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(b)
		}
	}
	return b
}

// BuildExecution builds the ExecutionConfig for d. Configuration errors
// from Build are returned unchanged.
func (b *Builder) BuildExecution(d sequencer.Descriptor) (sequencer.ExecutionConfig, error) {
	startMode, err := Build(d.Type, d)
	if err != nil {
		return sequencer.ExecutionConfig{}, err
	}

	return sequencer.ExecutionConfig{
		CloneToExecute: sequencer.CloneToExecute{
			Enabled: true,
			DevTeam: d.DevTeam,
			Bot:     d.Bot,
			Process: d.Process,
			Repo:    d.Repo(),
		},
		StartMode:             startMode,
		TimePeriod:            b.resolver.Milliseconds(d.TimePeriod),
		TimePeriodFileStorage: d.TimePeriod,
		DataSet:               d.DataSet,
		ExchangeName:          d.ExchangeName,
		Market:                sequencer.DefaultMarket,
		CloneExecutor:         sequencer.DefaultCloneExecutor,
		Descriptor:            d,
	}, nil
}
