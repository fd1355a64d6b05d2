package observability

import (
	"strconv"
	"sync"
	"time"
)

// Metrics provides basic in-memory counters.
type Metrics struct {
	mu            sync.Mutex
	requestCount  map[string]int64
	errorCount    map[string]int64
	upstreamCount map[string]int64
	upstreamTime  map[string]time.Duration
}

// Snapshot is a point-in-time copy of all counters.
type Snapshot struct {
	Requests         map[string]int64 `json:"requests"`
	Errors           map[string]int64 `json:"errors"`
	Upstream         map[string]int64 `json:"upstream"`
	UpstreamMillisec map[string]int64 `json:"upstream_ms"`
}

// NewMetrics initializes metrics storage.
func NewMetrics() *Metrics {
	return &Metrics{
		requestCount:  make(map[string]int64),
		errorCount:    make(map[string]int64),
		upstreamCount: make(map[string]int64),
		upstreamTime:  make(map[string]time.Duration),
	}
}

// RecordRequest increments counters for requests.
func (m *Metrics) RecordRequest(path, method string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	key := pathKey(path, method, status)
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requestCount[key]++
}

// RecordError increments error counters.
func (m *Metrics) RecordError(path, method, code string) {
	if m == nil {
		return
	}
	key := path + "|" + method + "|" + code
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errorCount[key]++
}

// RecordUpstream counts a call to the underwriting service. Status 0 means a transport failure.
func (m *Metrics) RecordUpstream(endpoint string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	key := endpoint + "|" + strconv.Itoa(status)
	m.mu.Lock()
	defer m.mu.Unlock()
	m.upstreamCount[key]++
	m.upstreamTime[endpoint] += duration
}

// Snapshot copies the counters.
func (m *Metrics) Snapshot() Snapshot {
	if m == nil {
		return Snapshot{}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	out := Snapshot{
		Requests:         copyCounts(m.requestCount),
		Errors:           copyCounts(m.errorCount),
		Upstream:         copyCounts(m.upstreamCount),
		UpstreamMillisec: make(map[string]int64, len(m.upstreamTime)),
	}
	for k, v := range m.upstreamTime {
		out.UpstreamMillisec[k] = v.Milliseconds()
	}
	return out
}

func copyCounts(src map[string]int64) map[string]int64 {
	dst := make(map[string]int64, len(src))
	for k, v := range src {
		dst[k] = v
	}
	return dst
}

func pathKey(path, method string, status int) string {
	return path + "|" + method + "|" + strconv.Itoa(status)
}
