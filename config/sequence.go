package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/goliatone/go-sequencer"
	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	"gopkg.in/yaml.v3"
)

// sequenceDocument is the keyed form of a YAML or JSON sequence file. A bare
// list of executions is accepted as well.
type sequenceDocument struct {
	Executions []sequencer.Descriptor `yaml:"executions"`
}

type hclSequenceFile struct {
	Executions []*hclExecution `hcl:"execution,block"`
	Remain     hcl.Body        `hcl:",remain"`
}

type hclExecution struct {
	DevTeam         string `hcl:"dev_team"`
	Bot             string `hcl:"bot"`
	Mode            string `hcl:"mode"`
	Type            string `hcl:"type"`
	Process         string `hcl:"process"`
	ResumeExecution bool   `hcl:"resume_execution,optional"`
	StartYear       int    `hcl:"start_year,optional"`
	EndYear         int    `hcl:"end_year,optional"`
	Month           int    `hcl:"month,optional"`
	BeginDatetime   string `hcl:"begin_datetime,optional"`
	EndDatetime     string `hcl:"end_datetime,optional"`
	TimePeriod      string `hcl:"time_period,optional"`
	ExchangeName    string `hcl:"exchange_name,optional"`
	Interval        string `hcl:"interval,optional"`
	DataSet         string `hcl:"data_set,optional"`
}

func (e hclExecution) descriptor() sequencer.Descriptor {
	return sequencer.Descriptor{
		DevTeam:         e.DevTeam,
		Bot:             e.Bot,
		Mode:            sequencer.StartMode(e.Mode),
		ResumeExecution: e.ResumeExecution,
		Type:            sequencer.ParseBotType(e.Type),
		Process:         e.Process,
		StartYear:       e.StartYear,
		EndYear:         e.EndYear,
		Month:           e.Month,
		BeginDatetime:   e.BeginDatetime,
		EndDatetime:     e.EndDatetime,
		TimePeriod:      e.TimePeriod,
		ExchangeName:    e.ExchangeName,
		Interval:        e.Interval,
		DataSet:         e.DataSet,
	}
}

// LoadSequence reads the ordered execution list from path. The format is
// picked by extension: .hcl is decoded as HCL, anything else as YAML,
// which covers JSON too.
func LoadSequence(path string) ([]sequencer.Descriptor, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, loadError("read sequence file", path, err)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".hcl":
		return ParseHCLSequence(data, path)
	default:
		return ParseSequence(data, path)
	}
}

// ParseSequence decodes a YAML or JSON sequence, either a bare list or a
// document with an executions key.
func ParseSequence(data []byte, filename string) ([]sequencer.Descriptor, error) {
	var list []sequencer.Descriptor
	if err := yaml.Unmarshal(data, &list); err == nil {
		return nonEmpty(normalize(list), filename)
	}

	var doc sequenceDocument
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, loadError("decode sequence", filename, err)
	}
	return nonEmpty(normalize(doc.Executions), filename)
}

// normalize applies the same type parsing as the environment and HCL
// loaders.
func normalize(seq []sequencer.Descriptor) []sequencer.Descriptor {
	for i := range seq {
		seq[i].Type = sequencer.ParseBotType(string(seq[i].Type))
	}
	return seq
}

// ParseHCLSequence decodes execution blocks from HCL source.
func ParseHCLSequence(data []byte, filename string) ([]sequencer.Descriptor, error) {
	file, diags := hclparse.NewParser().ParseHCL(data, filename)
	if diags.HasErrors() {
		return nil, loadError("parse sequence", filename, diags)
	}

	var parsed hclSequenceFile
	if diags := gohcl.DecodeBody(file.Body, nil, &parsed); diags.HasErrors() {
		return nil, loadError("decode sequence", filename, diags)
	}

	out := make([]sequencer.Descriptor, 0, len(parsed.Executions))
	for _, e := range parsed.Executions {
		out = append(out, e.descriptor())
	}
	return nonEmpty(out, filename)
}

// ValidateSequence logs a warning for every descriptor that would fail at
// dispatch time and for repeated step keys, which stall a round since
// only the first completion of a key counts. It returns the problems found.
func ValidateSequence(seq []sequencer.Descriptor, logger sequencer.Logger) []error {
	logger = sequencer.NormalizeLogger(logger)

	var problems []error
	seen := make(map[sequencer.StepKey]int, len(seq))
	for i, d := range seq {
		log := sequencer.WithLoggerFields(logger, map[string]any{
			"cursor":   i,
			"step_key": d.StepKey().String(),
		})

		if err := d.Validate(); err != nil {
			log.Warn("execution %d is invalid: %v", i, err)
			problems = append(problems, err)
		} else if !d.Type.Supports(d.Mode) {
			err := sequencer.NewError(sequencer.ErrInvalidStartMode, "", nil, map[string]any{
				"type": string(d.Type),
				"mode": string(d.Mode),
			})
			log.Warn("execution %d uses start mode %s which does not apply to %s", i, d.Mode, d.Type)
			problems = append(problems, err)
		}

		key := d.StepKey()
		if first, ok := seen[key]; ok {
			err := sequencer.NewError(sequencer.ErrInvalidDescriptor,
				fmt.Sprintf("step key %s repeats execution %d", key, first), nil,
				map[string]any{"step_key": key.String()})
			log.Warn("execution %d repeats step key of execution %d, the round will not advance past it", i, first)
			problems = append(problems, err)
			continue
		}
		seen[key] = i
	}
	return problems
}

func nonEmpty(seq []sequencer.Descriptor, filename string) ([]sequencer.Descriptor, error) {
	if len(seq) == 0 {
		return nil, sequencer.NewError(sequencer.ErrEmptySequence, "", nil, map[string]any{"file": filename})
	}
	return seq, nil
}

func loadError(message, filename string, source error) error {
	return sequencer.NewError(sequencer.ErrSequenceLoadFailed, message, source, map[string]any{"file": filename})
}
