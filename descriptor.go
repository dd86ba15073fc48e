package sequencer

import (
	"fmt"
	"strings"

	"github.com/goliatone/go-errors"
)

// StepKeySeparator joins the identity fields of a StepKey.
const StepKeySeparator = "."

// StepKey identifies one logical execution slot across completion signals.
type StepKey string

// NewStepKey builds the key from the identity fields of a descriptor.
func NewStepKey(devTeam, bot, process string) StepKey {
	return StepKey(devTeam + StepKeySeparator + bot + StepKeySeparator + process)
}

func (k StepKey) String() string {
	return string(k)
}

// Descriptor holds the parameters of one planned execution. Values are
// created once at load time and never mutated afterwards.
type Descriptor struct {
	DevTeam         string    `json:"devTeam" yaml:"devTeam"`
	Bot             string    `json:"bot" yaml:"bot"`
	Mode            StartMode `json:"mode" yaml:"mode"`
	ResumeExecution bool      `json:"resumeExecution" yaml:"resumeExecution"`
	Type            BotType   `json:"type" yaml:"type"`
	Process         string    `json:"process" yaml:"process"`
	StartYear       int       `json:"startYear,omitempty" yaml:"startYear,omitempty"`
	EndYear         int       `json:"endYear,omitempty" yaml:"endYear,omitempty"`
	Month           int       `json:"month,omitempty" yaml:"month,omitempty"`
	BeginDatetime   string    `json:"beginDatetime,omitempty" yaml:"beginDatetime,omitempty"`
	EndDatetime     string    `json:"endDatetime,omitempty" yaml:"endDatetime,omitempty"`
	TimePeriod      string    `json:"timePeriod,omitempty" yaml:"timePeriod,omitempty"`
	ExchangeName    string    `json:"exchangeName,omitempty" yaml:"exchangeName,omitempty"`
	Interval        string    `json:"interval,omitempty" yaml:"interval,omitempty"`
	DataSet         string    `json:"dataSet,omitempty" yaml:"dataSet,omitempty"`
}

// StepKey returns the dedup identity of the descriptor. Descriptors sharing
// devTeam, bot and process are the same step even if other fields differ.
func (d Descriptor) StepKey() StepKey {
	return NewStepKey(d.DevTeam, d.Bot, d.Process)
}

// Repo returns the bot repository name the controller clones, "<bot>-<type>-Bot".
func (d Descriptor) Repo() string {
	return d.Bot + "-" + string(d.Type) + "-Bot"
}

// Validate reports structural problems. It does not check that the mode
// applies to the bot type, that is the builder's job.
func (d Descriptor) Validate() error {
	var missing []string
	if strings.TrimSpace(d.DevTeam) == "" {
		missing = append(missing, "devTeam")
	}
	if strings.TrimSpace(d.Bot) == "" {
		missing = append(missing, "bot")
	}
	if strings.TrimSpace(d.Process) == "" {
		missing = append(missing, "process")
	}
	if strings.TrimSpace(string(d.Mode)) == "" {
		missing = append(missing, "mode")
	}
	if strings.TrimSpace(string(d.Type)) == "" {
		missing = append(missing, "type")
	}

	if len(missing) > 0 {
		return ErrInvalidDescriptor.Clone().
			WithMetadata(map[string]any{
				"step_key": d.StepKey().String(),
				"missing":  strings.Join(missing, ","),
			})
	}

	if d.Month < 0 || d.Month > 12 {
		return errors.New(fmt.Sprintf("month %d out of range", d.Month), errors.CategoryValidation).
			WithTextCode(ErrCodeInvalidDescriptor).
			WithMetadata(map[string]any{"step_key": d.StepKey().String()})
	}
	return nil
}

// Fields returns log correlation fields for the descriptor.
func (d Descriptor) Fields() map[string]any {
	return map[string]any{
		"step_key": d.StepKey().String(),
		"type":     string(d.Type),
		"mode":     string(d.Mode),
	}
}
