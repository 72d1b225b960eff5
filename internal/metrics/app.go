package metrics

import (
	"time"

	"github.com/speclens/speclens/internal/observability"
)

// Application-level metrics following Prometheus conventions
var (
	// Check pipeline metrics
	URLsCheckedTotal    = "app_check_urls_total"
	CheckRunsTotal      = "app_check_runs_total"
	CheckBatchesTotal   = "app_check_batches_total"
	CheckCacheHitsTotal = "app_check_cache_hits_total"
	ProbeDuration       = "app_probe_duration_ms"

	// Audit pipeline metrics
	SpecScansTotal     = "app_spec_scans_total"
	MirrorFetchesTotal = "app_mirror_fetches_total"
	AuditRunsTotal     = "app_audit_runs_total"

	// Health check metrics
	HealthCheckTotal    = "app_health_check_total"
	HealthCheckDuration = "app_health_check_duration_ms"

	// Server lifecycle metrics
	ActiveConnections = "app_active_connections"
	ServerStartTime   = "app_server_start_time_seconds"
	ServerUptime      = "app_server_uptime_seconds"
)

// RecordURLsChecked records count URLs that settled at the given status
func RecordURLsChecked(status string, count int) {
	if count <= 0 {
		return
	}

	if observability.TelemetrySystem != nil {
		_ = observability.TelemetrySystem.Counter(
			URLsCheckedTotal,
			float64(count),
			map[string]string{
				"status": status,
			},
		)
	}
}

// RecordCheckRun records a completed URL check run
func RecordCheckRun(success bool) {
	status := "success"
	if !success {
		status = "failure"
	}

	if observability.TelemetrySystem != nil {
		_ = observability.TelemetrySystem.Counter(
			CheckRunsTotal,
			1,
			map[string]string{
				"status": status,
			},
		)
	}
}

// RecordCheckBatches records probe batch outcomes for a run
func RecordCheckBatches(completed int, failed int) {
	if observability.TelemetrySystem == nil {
		return
	}

	if completed > 0 {
		_ = observability.TelemetrySystem.Counter(
			CheckBatchesTotal,
			float64(completed),
			map[string]string{"status": "ok"},
		)
	}
	if failed > 0 {
		_ = observability.TelemetrySystem.Counter(
			CheckBatchesTotal,
			float64(failed),
			map[string]string{"status": "failed"},
		)
	}
}

// RecordCacheHits records URLs settled from the status cache
func RecordCacheHits(count int) {
	if count <= 0 {
		return
	}

	if observability.TelemetrySystem != nil {
		_ = observability.TelemetrySystem.Counter(
			CheckCacheHitsTotal,
			float64(count),
			nil,
		)
	}
}

// RecordProbeDuration records how long a probe pass took
func RecordProbeDuration(duration time.Duration, followRedirects bool) {
	pass := "initial"
	if followRedirects {
		pass = "redirect"
	}

	if observability.TelemetrySystem != nil {
		_ = observability.TelemetrySystem.Histogram(
			ProbeDuration,
			duration,
			map[string]string{
				"pass": pass,
			},
		)
	}
}

// RecordSpecScan records a spec tree scan with its duration
func RecordSpecScan(success bool, duration time.Duration) {
	status := "success"
	if !success {
		status = "failure"
	}

	if observability.TelemetrySystem != nil {
		_ = observability.TelemetrySystem.Counter(
			SpecScansTotal,
			1,
			map[string]string{
				"status": status,
			},
		)

		_ = observability.TelemetrySystem.Histogram(
			"app_spec_scan_duration_ms",
			duration,
			nil,
		)
	}
}

// RecordMirrorFetch records a mirror directory listing by scheme
func RecordMirrorFetch(scheme string, success bool) {
	status := "success"
	if !success {
		status = "failure"
	}

	if observability.TelemetrySystem != nil {
		_ = observability.TelemetrySystem.Counter(
			MirrorFetchesTotal,
			1,
			map[string]string{
				"scheme": scheme,
				"status": status,
			},
		)
	}
}

// RecordAuditRun records a completed spec tree audit
func RecordAuditRun(success bool) {
	status := "success"
	if !success {
		status = "failure"
	}

	if observability.TelemetrySystem != nil {
		_ = observability.TelemetrySystem.Counter(
			AuditRunsTotal,
			1,
			map[string]string{
				"status": status,
			},
		)
	}
}

// SetActiveConnections sets the current number of active connections
func SetActiveConnections(count int64) {
	if observability.TelemetrySystem != nil {
		_ = observability.TelemetrySystem.Gauge(
			ActiveConnections,
			float64(count),
			nil,
		)
	}
}

// RecordHealthCheck records a health check execution
func RecordHealthCheck(checkName string, healthy bool, duration time.Duration) {
	status := "healthy"
	if !healthy {
		status = "unhealthy"
	}

	if observability.TelemetrySystem != nil {
		_ = observability.TelemetrySystem.Counter(
			HealthCheckTotal,
			1,
			map[string]string{
				"check":  checkName,
				"status": status,
			},
		)

		_ = observability.TelemetrySystem.Histogram(
			HealthCheckDuration,
			duration,
			map[string]string{
				"check": checkName,
			},
		)
	}
}

// SetServerStartTime records the server start time (Unix timestamp)
func SetServerStartTime(timestamp int64) {
	if observability.TelemetrySystem != nil {
		_ = observability.TelemetrySystem.Gauge(
			ServerStartTime,
			float64(timestamp),
			nil,
		)
	}
}

// SetServerUptime records the server uptime in seconds
func SetServerUptime(seconds int64) {
	if observability.TelemetrySystem != nil {
		_ = observability.TelemetrySystem.Gauge(
			ServerUptime,
			float64(seconds),
			nil,
		)
	}
}
