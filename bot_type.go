package sequencer

import "strings"

// BotType is the category of bot the controller runs.
type BotType string

const (
	BotTypeTrading   BotType = "Trading"
	BotTypeIndicator BotType = "Indicator"
	BotTypeSensor    BotType = "Sensor"
)

// Valid reports whether t is one of the known bot categories.
func (t BotType) Valid() bool {
	switch t {
	case BotTypeTrading, BotTypeIndicator, BotTypeSensor:
		return true
	default:
		return false
	}
}

// Modes returns the start modes available for the bot type, nil if the
// type is unknown.
func (t BotType) Modes() []StartMode {
	switch t {
	case BotTypeTrading:
		return []StartMode{StartModeLive, StartModeBacktest, StartModeCompetition}
	case BotTypeIndicator, BotTypeSensor:
		return []StartMode{StartModeAllMonths, StartModeOneMonth, StartModeNoTime, StartModeFixedInterval}
	default:
		return nil
	}
}

// Supports reports whether mode is one of the type's variants.
func (t BotType) Supports(mode StartMode) bool {
	for _, m := range t.Modes() {
		if m == mode {
			return true
		}
	}
	return false
}

// ParseBotType trims surrounding space from s. Matching is case sensitive,
// so "trading" stays unknown and the builder rejects it.
func ParseBotType(s string) BotType {
	return BotType(strings.TrimSpace(s))
}

// StartMode selects the operational mode of an execution.
type StartMode string

const (
	StartModeLive        StartMode = "live"
	StartModeBacktest    StartMode = "backtest"
	StartModeCompetition StartMode = "competition"

	StartModeAllMonths     StartMode = "allMonths"
	StartModeOneMonth      StartMode = "oneMonth"
	StartModeNoTime        StartMode = "noTime"
	StartModeFixedInterval StartMode = "fixedInterval"
)
