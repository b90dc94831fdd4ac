package core

import "context"

// Metric series share the hookwise prefix so recorders can scope scrapes to
// this module. Every observed operation emits one counter and one latency
// histogram under the same tag set.
const metricNamespace = "hookwise."

// metricDetailTags are the context fields promoted from log fields to metric
// tags when an operation carries them.
var metricDetailTags = []string{"provider", "integration_id", "endpoint_id", "event_id"}

func counterMetric(operation string) string {
	return metricNamespace + operation + ".total"
}

func histogramMetric(operation string) string {
	return metricNamespace + operation + ".duration_ms"
}

// NopMetricsRecorder drops every sample. The service falls back to it when
// no recorder is configured.
type NopMetricsRecorder struct{}

func (NopMetricsRecorder) IncCounter(context.Context, string, int64, map[string]string) {}

func (NopMetricsRecorder) ObserveHistogram(context.Context, string, float64, map[string]string) {}

func cloneTags(tags map[string]string) map[string]string {
	if len(tags) == 0 {
		return map[string]string{}
	}
	copied := make(map[string]string, len(tags))
	for key, value := range tags {
		copied[key] = value
	}
	return copied
}

var _ MetricsRecorder = NopMetricsRecorder{}
