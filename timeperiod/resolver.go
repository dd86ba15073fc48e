package timeperiod

import (
	"sort"
	"strings"
	"time"

	"github.com/goliatone/go-sequencer"
)

var periods = map[string]time.Duration{
	"24-hs":  24 * time.Hour,
	"12-hs":  12 * time.Hour,
	"08-hs":  8 * time.Hour,
	"06-hs":  6 * time.Hour,
	"04-hs":  4 * time.Hour,
	"03-hs":  3 * time.Hour,
	"02-hs":  2 * time.Hour,
	"01-hs":  time.Hour,
	"45-min": 45 * time.Minute,
	"40-min": 40 * time.Minute,
	"30-min": 30 * time.Minute,
	"20-min": 20 * time.Minute,
	"15-min": 15 * time.Minute,
	"10-min": 10 * time.Minute,
	"05-min": 5 * time.Minute,
	"04-min": 4 * time.Minute,
	"03-min": 3 * time.Minute,
	"02-min": 2 * time.Minute,
	"01-min": time.Minute,
}

// Resolver translates period labels such as "15-min" or "24-hs" into durations.
type Resolver struct {
	logger sequencer.Logger
}

// NewResolver returns a resolver that reports unknown labels to logger.
func NewResolver(logger sequencer.Logger) *Resolver {
	return &Resolver{logger: sequencer.NormalizeLogger(logger)}
}

// Resolve returns the duration for label. An empty label yields no value.
// An unknown label is logged as a warning and also yields no value, it
// never fails the caller.
func (r *Resolver) Resolve(label string) (time.Duration, bool) {
	label = strings.TrimSpace(label)
	if label == "" {
		return 0, false
	}
	d, ok := periods[label]
	if !ok {
		r.log().Warn("time period %q is not a known label, continuing without one", label)
		return 0, false
	}
	return d, true
}

// Milliseconds is Resolve expressed in milliseconds, nil when unresolved.
func (r *Resolver) Milliseconds(label string) *int64 {
	d, ok := r.Resolve(label)
	if !ok {
		return nil
	}
	ms := d.Milliseconds()
	return &ms
}

func (r *Resolver) log() sequencer.Logger {
	if r == nil {
		return sequencer.NewFmtLogger(nil)
	}
	return sequencer.NormalizeLogger(r.logger)
}

// Labels lists the canonical labels, shortest period first.
func Labels() []string {
	out := make([]string, 0, len(periods))
	for label := range periods {
		out = append(out, label)
	}
	sort.Slice(out, func(i, j int) bool {
		return periods[out[i]] < periods[out[j]]
	})
	return out
}

// Known reports whether label is a canonical period label.
func Known(label string) bool {
	_, ok := periods[strings.TrimSpace(label)]
	return ok
}
