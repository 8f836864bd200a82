package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics_Record(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.IncStarted()
	m.IncStarted()
	m.IncCompleted()
	m.IncFailed("KYC_VERIFICATION_FAILED")
	m.ObserveStep("kyc-verification", "success", 10*time.Millisecond)
	m.ObserveNotification("email", "failure", false)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.Started))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Completed))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Failed.WithLabelValues("KYC_VERIFICATION_FAILED")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Notifications.WithLabelValues("email", "failure", "false")))

	n, err := testutil.GatherAndCount(reg, "onboarding_step_duration_seconds")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestMetrics_NilSafe(t *testing.T) {
	var m *Metrics
	m.IncStarted()
	m.IncFailed("x")
	m.ObserveStep("a", "b", time.Second)
	m.ObserveNotification("sms", "k", true)
}
