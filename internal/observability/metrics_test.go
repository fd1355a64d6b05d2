package observability

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestMetricsSnapshot(t *testing.T) {
	m := NewMetrics()
	m.RecordRequest("/flows/:id/lock", "POST", 200, time.Millisecond)
	m.RecordRequest("/flows/:id/lock", "POST", 200, time.Millisecond)
	m.RecordError("/flows/:id/lock", "POST", "DUPLICATE_LOCK")
	m.RecordUpstream("lock", 201, 30*time.Millisecond)
	m.RecordUpstream("lock", 0, 10*time.Millisecond)

	snap := m.Snapshot()
	assert.Equal(t, int64(2), snap.Requests["/flows/:id/lock|POST|200"])
	assert.Equal(t, int64(1), snap.Errors["/flows/:id/lock|POST|DUPLICATE_LOCK"])
	assert.Equal(t, int64(1), snap.Upstream["lock|201"])
	assert.Equal(t, int64(1), snap.Upstream["lock|0"])
	assert.Equal(t, int64(40), snap.UpstreamMillisec["lock"])
}

func TestMetricsNilSafe(t *testing.T) {
	var m *Metrics
	m.RecordRequest("/", "GET", 200, 0)
	m.RecordUpstream("x", 200, 0)
	assert.Empty(t, m.Snapshot().Requests)
}
