package metrics

import (
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCollector_Counters(t *testing.T) {
	c := NewCollector()

	c.EventPosted("submit")
	c.EventPosted("submit")
	c.EventPosted("finish")

	assert.Equal(t, 2.0, testutil.ToFloat64(c.eventsPosted.WithLabelValues("submit")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.eventsPosted.WithLabelValues("finish")))

	c.BatchCommitted(3)
	c.BatchCommitted(1)
	c.BatchFailed()

	assert.Equal(t, 2.0, testutil.ToFloat64(c.batchesCommitted))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.batchesFailed))
}

func TestCollector_Gauges(t *testing.T) {
	c := NewCollector()

	c.ActiveJobs(5)
	c.RunningJobs(2)
	assert.Equal(t, 5.0, testutil.ToFloat64(c.activeJobs))
	assert.Equal(t, 2.0, testutil.ToFloat64(c.runningJobs))

	c.ActiveJobs(0)
	assert.Equal(t, 0.0, testutil.ToFloat64(c.activeJobs))
}

func TestCollector_PrivateRegistries(t *testing.T) {
	// Two collectors must coexist without MustRegister panicking.
	a := NewCollector()
	b := NewCollector()

	a.EventPosted("submit")
	assert.Equal(t, 1.0, testutil.ToFloat64(a.eventsPosted.WithLabelValues("submit")))
	assert.Equal(t, 0.0, testutil.ToFloat64(b.eventsPosted.WithLabelValues("submit")))
}

func TestCollector_Handler(t *testing.T) {
	c := NewCollector()
	c.EventPosted("submit")
	c.BatchCommitted(2)

	rec := httptest.NewRecorder()
	c.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	require.Equal(t, 200, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, `jobmanager_events_posted_total{name="submit"} 1`)
	assert.Contains(t, body, "jobmanager_batches_committed_total 1")
	assert.Contains(t, body, "jobmanager_batch_appends_bucket")
}
