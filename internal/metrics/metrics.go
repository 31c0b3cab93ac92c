// Package metrics records per-operation measurements (model latency, token
// counts, retries, repair outcomes) and emits each batch as one structured
// zerolog event, so the numbers travel with the rest of the log stream and
// can be grepped or shipped like any other line.
package metrics

import (
	"sort"
	"sync"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Metric units.
const (
	UnitMilliseconds = "Milliseconds"
	UnitCount        = "Count"
	UnitBytes        = "Bytes"
	UnitNone         = "None"
)

// Namespace is the namespace used by every recorder in this module.
const Namespace = "MiniPaint"

var (
	sinkMu sync.RWMutex
	sink   *zerolog.Logger
)

// SetLogger routes flushed metrics to l instead of the global logger.
// Passing nil restores the global logger.
func SetLogger(l *zerolog.Logger) {
	sinkMu.Lock()
	defer sinkMu.Unlock()
	sink = l
}

func logger() *zerolog.Logger {
	sinkMu.RLock()
	defer sinkMu.RUnlock()
	if sink != nil {
		return sink
	}
	return &log.Logger
}

// Recorder accumulates dimensions, metrics, and properties for a single flush.
// It is NOT safe for concurrent use from multiple goroutines; create one per operation.
type Recorder struct {
	namespace  string
	dimensions map[string]string
	units      map[string]string
	values     map[string]float64
	properties map[string]any
}

// New creates a Recorder for the given namespace.
func New(namespace string) *Recorder {
	return &Recorder{
		namespace:  namespace,
		dimensions: make(map[string]string),
		units:      make(map[string]string),
		values:     make(map[string]float64),
		properties: make(map[string]any),
	}
}

// Dimension adds a key the metrics should be grouped by (operation, backend).
func (r *Recorder) Dimension(key, value string) *Recorder {
	r.dimensions[key] = value
	return r
}

// Metric records a named value. Recording the same name twice keeps the last value.
func (r *Recorder) Metric(name string, value float64, unit string) *Recorder {
	r.units[name] = unit
	r.values[name] = value
	return r
}

// Count is a convenience for recording a count metric (value = 1).
func (r *Recorder) Count(name string) *Recorder {
	return r.Metric(name, 1, UnitCount)
}

// Property attaches a non-metric field to the event.
func (r *Recorder) Property(key string, value any) *Recorder {
	r.properties[key] = value
	return r
}

// Flush writes the accumulated metrics as a single info-level event.
// Nothing is written when no metric was recorded. The Recorder should not be
// reused afterwards.
func (r *Recorder) Flush() {
	if len(r.values) == 0 {
		return
	}

	names := make([]string, 0, len(r.values))
	for name := range r.values {
		names = append(names, name)
	}
	sort.Strings(names)

	metricsDict := zerolog.Dict()
	unitsDict := zerolog.Dict()
	for _, name := range names {
		metricsDict.Float64(name, r.values[name])
		unitsDict.Str(name, r.units[name])
	}

	ev := logger().Info().
		Str("namespace", r.namespace).
		Dict("metrics", metricsDict).
		Dict("units", unitsDict)
	for k, v := range r.dimensions {
		ev = ev.Str(k, v)
	}
	for k, v := range r.properties {
		ev = ev.Interface(k, v)
	}
	ev.Msg("metrics")
}
