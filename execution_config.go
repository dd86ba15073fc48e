package sequencer

import "time"

// StartModeConfig is the tagged set of mode variants for one execution.
// Exactly one variant runs. The interface is sealed, the only
// implementations are TradingStartMode and IndicatorStartMode.
type StartModeConfig interface {
	BotType() BotType
	Active() StartMode
	IsActive(mode StartMode) bool
	startModeConfig()
}

// LiveMode is the trading live variant.
type LiveMode struct {
	Run             bool `json:"run,string"`
	ResumeExecution bool `json:"resumeExecution,string"`
}

// WindowMode is used by the backtest and competition variants.
type WindowMode struct {
	Run             bool   `json:"run,string"`
	ResumeExecution bool   `json:"resumeExecution,string"`
	BeginDatetime   string `json:"beginDatetime,omitempty"`
	EndDatetime     string `json:"endDatetime,omitempty"`
}

// TradingStartMode holds the variants of a Trading bot.
type TradingStartMode struct {
	Live        LiveMode   `json:"live"`
	Backtest    WindowMode `json:"backtest"`
	Competition WindowMode `json:"competition"`
}

func (TradingStartMode) BotType() BotType { return BotTypeTrading }

func (m TradingStartMode) Active() StartMode {
	switch {
	case m.Live.Run:
		return StartModeLive
	case m.Backtest.Run:
		return StartModeBacktest
	case m.Competition.Run:
		return StartModeCompetition
	default:
		return ""
	}
}

func (m TradingStartMode) IsActive(mode StartMode) bool {
	return mode != "" && m.Active() == mode
}

func (TradingStartMode) startModeConfig() {}

// AllMonthsMode processes every month between MinYear and MaxYear.
type AllMonthsMode struct {
	Run     bool `json:"run,string"`
	MinYear int  `json:"minYear,omitempty"`
	MaxYear int  `json:"maxYear,omitempty"`
}

// OneMonthMode processes a single month.
type OneMonthMode struct {
	Run   bool `json:"run,string"`
	Year  int  `json:"year,omitempty"`
	Month int  `json:"month,omitempty"`
}

// NoTimeMode processes from BeginDatetime onwards.
type NoTimeMode struct {
	Run             bool   `json:"run,string"`
	BeginDatetime   string `json:"beginDatetime,omitempty"`
	ResumeExecution bool   `json:"resumeExecution,string"`
}

// FixedIntervalMode processes on a fixed interval.
type FixedIntervalMode struct {
	Run      bool   `json:"run,string"`
	Interval string `json:"interval,omitempty"`
}

// IndicatorStartMode holds the variants shared by Indicator and Sensor bots.
type IndicatorStartMode struct {
	Type          BotType           `json:"-"`
	AllMonths     AllMonthsMode     `json:"allMonths"`
	OneMonth      OneMonthMode      `json:"oneMonth"`
	NoTime        NoTimeMode        `json:"noTime"`
	FixedInterval FixedIntervalMode `json:"fixedInterval"`
}

func (m IndicatorStartMode) BotType() BotType {
	if m.Type == "" {
		return BotTypeIndicator
	}
	return m.Type
}

func (m IndicatorStartMode) Active() StartMode {
	switch {
	case m.AllMonths.Run:
		return StartModeAllMonths
	case m.OneMonth.Run:
		return StartModeOneMonth
	case m.NoTime.Run:
		return StartModeNoTime
	case m.FixedInterval.Run:
		return StartModeFixedInterval
	default:
		return ""
	}
}

func (m IndicatorStartMode) IsActive(mode StartMode) bool {
	return mode != "" && m.Active() == mode
}

func (IndicatorStartMode) startModeConfig() {}

// CloneToExecute tells the controller which bot clone to run.
type CloneToExecute struct {
	Enabled bool   `json:"enabled,string"`
	DevTeam string `json:"devTeam"`
	Bot     string `json:"bot"`
	Process string `json:"process"`
	Repo    string `json:"repo"`
}

// CloneExecutor identifies this executor to the controller.
type CloneExecutor struct {
	CodeName string `json:"codeName"`
	Version  string `json:"version"`
}

// Market is the asset pair the controller trades by default.
type Market struct {
	AssetA string `json:"assetA"`
	AssetB string `json:"assetB"`
}

var (
	DefaultCloneExecutor = CloneExecutor{CodeName: "AACloud", Version: "1.1"}
	DefaultMarket        = Market{AssetA: "USDT", AssetB: "BTC"}
)

// ExecutionConfig is everything a controller needs for one step. It is
// built fresh per step and never mutated while the step runs.
type ExecutionConfig struct {
	CloneToExecute        CloneToExecute  `json:"cloneToExecute"`
	StartMode             StartModeConfig `json:"startMode"`
	TimePeriod            *int64          `json:"timePeriod,omitempty"`
	TimePeriodFileStorage string          `json:"timePeriodFileStorage,omitempty"`
	DataSet               string          `json:"dataSet,omitempty"`
	ExchangeName          string          `json:"exchangeName,omitempty"`
	Market                Market          `json:"market"`
	CloneExecutor         CloneExecutor   `json:"cloneExecutor"`

	Descriptor Descriptor `json:"-"`
}

// StepKey returns the key of the descriptor the config was built from.
func (c ExecutionConfig) StepKey() StepKey {
	return c.Descriptor.StepKey()
}

// Period returns the resolved time period, false when none was resolved.
func (c ExecutionConfig) Period() (time.Duration, bool) {
	if c.TimePeriod == nil {
		return 0, false
	}
	return time.Duration(*c.TimePeriod) * time.Millisecond, true
}
