package monitoring

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func Test_RecordWebhookEvent_IncrementsCounter(t *testing.T) {
	// Collectors live in the default registry and cannot be reset, so
	// assertions are lower bounds.
	RecordWebhookEvent("github", "accepted")

	v := testutil.ToFloat64(WebhookEventsTotal.WithLabelValues("github", "accepted"))
	if v < 1.0 {
		t.Fatalf("expected webhook events counter >= 1; got %f", v)
	}
}

func Test_RecordLLMRejected_CountsOpenBreaker(t *testing.T) {
	RecordLLMRejected("openai")

	v := testutil.ToFloat64(LLMRequestsTotal.WithLabelValues("openai", "open"))
	if v < 1.0 {
		t.Fatalf("expected open-breaker counter >= 1; got %f", v)
	}
}

func Test_RecordCacheOperation_CountsErrors(t *testing.T) {
	RecordCacheOperation("get", "error", 2*time.Millisecond)

	v := testutil.ToFloat64(ErrorsTotal.WithLabelValues("cache", "get"))
	if v < 1.0 {
		t.Fatalf("expected cache error counter >= 1; got %f", v)
	}
}
