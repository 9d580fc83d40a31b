package ratequeue

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/jonboulle/clockwork"
	"gopkg.in/yaml.v3"
)

const (
	DefaultConcurrencyCeiling = 10
	DefaultIntervalLength     = time.Second
)

// Options configure a Scheduler.
//
// All zero values are replaced with sensible defaults in FillDefaults.
// Options are read once by New and never change afterwards.
type Options struct {
	// ConcurrencyCeiling is the maximum number of operations in flight.
	ConcurrencyCeiling int `yaml:"concurrency_ceiling"`

	// IntervalAdmissionCeiling is the maximum number of admissions within
	// one interval. Zero leaves the concurrency ceiling as the only limit.
	IntervalAdmissionCeiling int `yaml:"interval_admission_ceiling"`

	// IntervalLength is the length of one admission window.
	IntervalLength time.Duration `yaml:"interval_length"`

	Clock   clockwork.Clock `yaml:"-"`
	Metrics MetricsPolicy   `yaml:"-"`

	// OnOperationError is called once for every item whose operation
	// failed or panicked. Cancelled items are not reported.
	OnOperationError func(id string, err error) `yaml:"-"`

	// LogContext is the context scheduler-level events take their logger
	// from. Item-level events use the context passed to Schedule.
	LogContext context.Context `yaml:"-"`
}

func (o *Options) FillDefaults() {
	if o.ConcurrencyCeiling <= 0 {
		o.ConcurrencyCeiling = DefaultConcurrencyCeiling
	}
	if o.IntervalAdmissionCeiling < 0 {
		o.IntervalAdmissionCeiling = 0
	}
	if o.IntervalLength <= 0 {
		o.IntervalLength = DefaultIntervalLength
	}
	if o.Clock == nil {
		o.Clock = clockwork.NewRealClock()
	}
	if o.Metrics == nil {
		o.Metrics = NoopMetrics{}
	}
	if o.LogContext == nil {
		o.LogContext = context.Background()
	}
}

// LoadOptions reads options from a YAML file and fills in defaults for
// everything the file leaves out.
//
//	concurrency_ceiling: 4
//	interval_admission_ceiling: 20
//	interval_length: 1s
func LoadOptions(path string) (Options, error) {
	var o Options
	data, err := os.ReadFile(path)
	if err != nil {
		return o, fmt.Errorf("ratequeue: read options: %w", err)
	}
	if err := yaml.Unmarshal(data, &o); err != nil {
		return o, fmt.Errorf("ratequeue: decode options %s: %w", path, err)
	}
	o.FillDefaults()
	return o, nil
}
