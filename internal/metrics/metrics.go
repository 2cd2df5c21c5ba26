// Package metrics emits Postly's application metrics through the global
// telemetry system. Every recorder is a no-op until observability.InitMetrics
// has run.
package metrics

import (
	"time"

	"github.com/postly/postly/internal/observability"
)

func count(name string, tags map[string]string) {
	if sys := observability.TelemetrySystem; sys != nil {
		_ = sys.Counter(name, 1, tags)
	}
}

func observe(name string, d time.Duration, tags map[string]string) {
	if sys := observability.TelemetrySystem; sys != nil {
		_ = sys.Histogram(name, d, tags)
	}
}

func gauge(name string, value float64, tags map[string]string) {
	if sys := observability.TelemetrySystem; sys != nil {
		_ = sys.Gauge(name, value, tags)
	}
}

func outcome(success bool, ok, failed string) string {
	if success {
		return ok
	}
	return failed
}
