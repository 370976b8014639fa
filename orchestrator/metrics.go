package orchestrator

import (
	"go.opentelemetry.io/otel/metric"
)

type metrics struct {
	attempts  metric.Int64Counter
	fallbacks metric.Int64Counter
	results   metric.Int64Counter
	dropped   metric.Int64Counter
	duration  metric.Float64Histogram
}

// newMetrics registers every instrument on meter.
func newMetrics(meter metric.Meter) metrics {
	attempts, _ := meter.Int64Counter("generation_attempts_total",
		metric.WithDescription("Total number of generation attempts by provider, phase and outcome"))
	fallbacks, _ := meter.Int64Counter("generation_fallbacks_total",
		metric.WithDescription("Total number of switches to the fallback provider"))
	results, _ := meter.Int64Counter("generation_results_total",
		metric.WithDescription("Total number of results returned by status"))
	dropped, _ := meter.Int64Counter("safety_items_dropped_total",
		metric.WithDescription("Total number of generated items removed after generation"))
	duration, _ := meter.Float64Histogram("generation_duration_seconds",
		metric.WithDescription("Duration of a full generation request in seconds"))

	return metrics{
		attempts:  attempts,
		fallbacks: fallbacks,
		results:   results,
		dropped:   dropped,
		duration:  duration,
	}
}
