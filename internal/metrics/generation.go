package metrics

import "time"

// Generation metric names
const (
	GenerationsTotal         = "postly_generations_total"
	QuotaRejectionsTotal     = "postly_quota_rejections_total"
	ModelCallsTotal          = "postly_model_calls_total"
	ModelCallDuration        = "postly_model_call_duration_ms"
	RateLimitRejectionsTotal = "postly_rate_limit_rejections_total"
)

// RecordGeneration records the outcome of one generation operation
// (analyze, analyze_variants, improve). status is "success" or an error kind.
func RecordGeneration(operation, status string) {
	count(GenerationsTotal, map[string]string{
		"operation": operation,
		"status":    status,
	})
}

// RecordQuotaRejection records a request rejected by the daily quota.
func RecordQuotaRejection(class string) {
	count(QuotaRejectionsTotal, map[string]string{"class": class})
}

// RecordModelCall records one model completion call for a pipeline stage.
func RecordModelCall(stage string, success bool, duration time.Duration) {
	count(ModelCallsTotal, map[string]string{
		"stage":  stage,
		"status": outcome(success, "success", "failure"),
	})
	observe(ModelCallDuration, duration, map[string]string{"stage": stage})
}

// RecordRateLimitRejection records a request refused by the burst limiter.
func RecordRateLimitRejection(route string) {
	count(RateLimitRejectionsTotal, map[string]string{"route": route})
}
