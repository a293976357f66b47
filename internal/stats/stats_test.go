package stats

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"

	"github.com/Bestehorn/LLMManager-sub002/pkg/protocol"
)

func TestRecordAttempt(t *testing.T) {
	c := NewCollector("test")

	c.RecordAttempt(protocol.OutcomeSuccess, protocol.AccessDirect, 20*time.Millisecond)
	c.RecordAttempt(protocol.OutcomeProfileRequired, protocol.AccessDirect, 10*time.Millisecond)
	c.RecordAttempt(protocol.OutcomeSuccess, protocol.AccessDirect, 30*time.Millisecond)

	assert.Equal(t, 2.0, testutil.ToFloat64(c.attempts.WithLabelValues("success", "direct")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.attempts.WithLabelValues("profile_required", "direct")))
}

func TestRecordRequest(t *testing.T) {
	c := NewCollector("test")

	c.RecordRequest(true, 100, 10*time.Millisecond)
	c.RecordRequest(false, 0, 30*time.Millisecond)

	snap := c.Collect()
	assert.Equal(t, int64(2), snap.RequestCount)
	assert.Equal(t, int64(100), snap.TokenCount)
	assert.Equal(t, int64(1), snap.ErrorCount)
	assert.InDelta(t, 20.0, snap.AvgLatencyMs, 0.001)
	assert.Equal(t, 1.0, testutil.ToFloat64(c.requests.WithLabelValues("exhausted")))
}

func TestCatalogCounters(t *testing.T) {
	c := NewCollector("test")

	c.RecordAcquisition(protocol.SourceAPI)
	c.RecordCacheWrite("fallback")
	c.RecordTrackerSkip()
	c.RecordTrackerReduction()
	c.RecordTrackerReduction()

	assert.Equal(t, 1.0, testutil.ToFloat64(c.acquisitions.WithLabelValues("API")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.cacheWrites.WithLabelValues("fallback")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.trackerSkips))
	assert.Equal(t, 2.0, testutil.ToFloat64(c.trackerReduces))

	families, err := c.Registry().Gather()
	assert.NoError(t, err)
	assert.NotEmpty(t, families)
}

func TestNilCollectorIsSafe(t *testing.T) {
	var c *Collector
	c.RecordAttempt(protocol.OutcomeFatal, protocol.AccessDirect, time.Second)
	c.RecordRequest(true, 1, time.Second)
	c.RecordAcquisition(protocol.SourceCache)
	c.RecordCacheWrite("primary")
	c.RecordTrackerSkip()
	c.RecordTrackerReduction()
	assert.Nil(t, c.Registry())
	assert.Equal(t, Snapshot{}, c.Collect())
}
