package metrics

import (
	"sync/atomic"
	"time"

	"github.com/dialoq/dialoq/internal/observability"
)

// Relay metrics following Prometheus conventions.
const (
	MessagesTotal           = "relay_messages_total"
	BansTotal               = "relay_bans_total"
	EnqueuedTotal           = "relay_enqueued_total"
	CompletionFailuresTotal = "relay_completion_failures_total"
	ActiveDrains            = "relay_active_drains"
	ActiveConnections       = "relay_active_connections"

	// Server lifecycle metrics
	ServerStartTime = "relay_server_start_time_seconds"
	ServerUptime    = "relay_server_uptime_seconds"
)

var activeDrains int64

// RecordAdmission records an admission decision. reason labels denials
// (banned, rate_limited, ...) and is empty for admitted messages.
func RecordAdmission(allowed bool, reason string) {
	if observability.TelemetrySystem == nil {
		return
	}

	labels := map[string]string{"outcome": "admitted"}
	if !allowed {
		labels["outcome"] = "denied"
		if reason != "" {
			labels["reason"] = reason
		}
	}
	_ = observability.TelemetrySystem.Counter(MessagesTotal, 1, labels)
}

// RecordBan records a temporary ban being issued.
func RecordBan() {
	if observability.TelemetrySystem != nil {
		_ = observability.TelemetrySystem.Counter(BansTotal, 1, nil)
	}
}

// RecordEnqueue records a task entering a user's queue.
func RecordEnqueue(userID string) {
	// The user id is deliberately not a label: unbounded cardinality.
	_ = userID

	if observability.TelemetrySystem != nil {
		_ = observability.TelemetrySystem.Counter(EnqueuedTotal, 1, nil)
	}
}

// RecordCompletionFailure records a failed completion call by kind
// (error, empty, panic).
func RecordCompletionFailure(kind string) {
	if observability.TelemetrySystem != nil {
		_ = observability.TelemetrySystem.Counter(
			CompletionFailuresTotal,
			1,
			map[string]string{"kind": kind},
		)
	}
}

// DrainStarted bumps the active-drain gauge.
func DrainStarted() {
	n := atomic.AddInt64(&activeDrains, 1)
	setActiveDrains(n)
}

// DrainFinished decrements the active-drain gauge.
func DrainFinished() {
	n := atomic.AddInt64(&activeDrains, -1)
	setActiveDrains(n)
}

func setActiveDrains(n int64) {
	if observability.TelemetrySystem != nil {
		_ = observability.TelemetrySystem.Gauge(ActiveDrains, float64(n), nil)
	}
}

// SetActiveConnections sets the number of live transport sessions.
func SetActiveConnections(count int64) {
	if observability.TelemetrySystem != nil {
		_ = observability.TelemetrySystem.Gauge(ActiveConnections, float64(count), nil)
	}
}

// SetServerStartTime records the server start time (Unix timestamp).
func SetServerStartTime(timestamp int64) {
	if observability.TelemetrySystem != nil {
		_ = observability.TelemetrySystem.Gauge(ServerStartTime, float64(timestamp), nil)
	}
}

// SetServerUptime records server uptime in seconds.
func SetServerUptime(seconds int64) {
	if observability.TelemetrySystem != nil {
		_ = observability.TelemetrySystem.Gauge(ServerUptime, float64(seconds), nil)
	}
}

// RecordHealthCheck records a health check execution.
func RecordHealthCheck(checkName string, healthy bool, duration time.Duration) {
	status := "healthy"
	if !healthy {
		status = "unhealthy"
	}

	if observability.TelemetrySystem != nil {
		_ = observability.TelemetrySystem.Counter(
			"relay_health_check_total",
			1,
			map[string]string{"check": checkName, "status": status},
		)

		_ = observability.TelemetrySystem.Histogram(
			"relay_health_check_duration_ms",
			duration,
			map[string]string{"check": checkName},
		)
	}
}
