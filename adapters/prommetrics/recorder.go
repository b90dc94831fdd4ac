// Package prommetrics exposes the engine's counters and histograms through
// a Prometheus registry. Metric families are created lazily from the names
// the recorder receives; tag keys become label names, and a family keeps
// one stable label schema so missing tags render as empty labels.
package prommetrics

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/Mithrandiirr/hookwise/core"
)

// defaultLabelKeys is the tag universe engine operations emit. Hosts that
// record custom tags swap the schema with WithLabelKeys.
var defaultLabelKeys = []string{"operation", "status", "provider", "integration_id", "endpoint_id", "event_id"}

// defaultBuckets suit destination round-trips measured in milliseconds:
// healthy responses land low, timeout-bound attempts in the top buckets.
var defaultBuckets = []float64{5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000, 10000}

type Recorder struct {
	registerer prometheus.Registerer
	labelKeys  []string
	buckets    []float64

	mu         sync.Mutex
	counters   map[string]*prometheus.CounterVec
	histograms map[string]*prometheus.HistogramVec
}

type Option func(*Recorder)

func WithRegisterer(registerer prometheus.Registerer) Option {
	return func(r *Recorder) {
		if registerer != nil {
			r.registerer = registerer
		}
	}
}

func WithLabelKeys(keys ...string) Option {
	return func(r *Recorder) {
		cleaned := make([]string, 0, len(keys))
		for _, key := range keys {
			if key = strings.TrimSpace(key); key != "" {
				cleaned = append(cleaned, key)
			}
		}
		if len(cleaned) > 0 {
			r.labelKeys = cleaned
		}
	}
}

func WithBuckets(buckets ...float64) Option {
	return func(r *Recorder) {
		if len(buckets) > 0 {
			r.buckets = append([]float64(nil), buckets...)
		}
	}
}

func New(opts ...Option) *Recorder {
	recorder := &Recorder{
		registerer: prometheus.DefaultRegisterer,
		labelKeys:  append([]string(nil), defaultLabelKeys...),
		buckets:    append([]float64(nil), defaultBuckets...),
		counters:   map[string]*prometheus.CounterVec{},
		histograms: map[string]*prometheus.HistogramVec{},
	}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt(recorder)
	}
	return recorder
}

func (r *Recorder) IncCounter(_ context.Context, name string, value int64, tags map[string]string) {
	if r == nil || value < 0 {
		return
	}
	vec := r.counter(name)
	if vec == nil {
		return
	}
	vec.With(r.labelValues(tags)).Add(float64(value))
}

func (r *Recorder) ObserveHistogram(_ context.Context, name string, value float64, tags map[string]string) {
	if r == nil {
		return
	}
	vec := r.histogram(name)
	if vec == nil {
		return
	}
	vec.With(r.labelValues(tags)).Observe(value)
}

func (r *Recorder) counter(name string) *prometheus.CounterVec {
	metricName := sanitizeMetricName(name)
	if metricName == "" {
		return nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if vec, ok := r.counters[metricName]; ok {
		return vec
	}

	vec := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: metricName,
		Help: "Event counter recorded by the webhook engine.",
	}, r.labelKeys)
	if err := r.registerer.Register(vec); err != nil {
		var already prometheus.AlreadyRegisteredError
		if !errors.As(err, &already) {
			return nil
		}
		existing, ok := already.ExistingCollector.(*prometheus.CounterVec)
		if !ok {
			return nil
		}
		vec = existing
	}
	r.counters[metricName] = vec
	return vec
}

func (r *Recorder) histogram(name string) *prometheus.HistogramVec {
	metricName := sanitizeMetricName(name)
	if metricName == "" {
		return nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if vec, ok := r.histograms[metricName]; ok {
		return vec
	}

	vec := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    metricName,
		Help:    "Duration histogram recorded by the webhook engine.",
		Buckets: append([]float64(nil), r.buckets...),
	}, r.labelKeys)
	if err := r.registerer.Register(vec); err != nil {
		var already prometheus.AlreadyRegisteredError
		if !errors.As(err, &already) {
			return nil
		}
		existing, ok := already.ExistingCollector.(*prometheus.HistogramVec)
		if !ok {
			return nil
		}
		vec = existing
	}
	r.histograms[metricName] = vec
	return vec
}

func (r *Recorder) labelValues(tags map[string]string) prometheus.Labels {
	labels := make(prometheus.Labels, len(r.labelKeys))
	for _, key := range r.labelKeys {
		labels[key] = strings.TrimSpace(tags[key])
	}
	return labels
}

// sanitizeMetricName maps engine metric names like
// hookwise.delivery_attempt.duration_ms onto the Prometheus charset.
func sanitizeMetricName(name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return ""
	}
	var b strings.Builder
	b.Grow(len(name) + 1)
	for i, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r == '_', r == ':':
			b.WriteRune(r)
		case r >= '0' && r <= '9':
			if i == 0 {
				b.WriteByte('_')
			}
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	return b.String()
}

var _ core.MetricsRecorder = (*Recorder)(nil)
