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
	scanCount     map[string]int64
	scanHits      map[string]int64
	notifications map[string]int64
	lastScan      map[string]time.Time
}

// MetricsSnapshot is a point-in-time copy of the counters.
type MetricsSnapshot struct {
	Requests      map[string]int64     `json:"requests"`
	Errors        map[string]int64     `json:"errors"`
	Scans         map[string]int64     `json:"scans"`
	ScanHits      map[string]int64     `json:"scan_hits"`
	Notifications map[string]int64     `json:"notifications"`
	LastScan      map[string]time.Time `json:"last_scan"`
}

// NewMetrics initializes metrics storage.
func NewMetrics() *Metrics {
	return &Metrics{
		requestCount:  make(map[string]int64),
		errorCount:    make(map[string]int64),
		scanCount:     make(map[string]int64),
		scanHits:      make(map[string]int64),
		notifications: make(map[string]int64),
		lastScan:      make(map[string]time.Time),
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

// RecordScan counts one breach or warning scan and how many tickets it returned.
func (m *Metrics) RecordScan(kind string, hits int) {
	if m == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.scanCount[kind]++
	m.scanHits[kind] += int64(hits)
	m.lastScan[kind] = time.Now()
}

// RecordNotification counts alerts delivered to a feed session.
func (m *Metrics) RecordNotification(kind string) {
	if m == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.notifications[kind]++
}

// Snapshot copies the current counters.
func (m *Metrics) Snapshot() MetricsSnapshot {
	if m == nil {
		return MetricsSnapshot{}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return MetricsSnapshot{
		Requests:      copyCounts(m.requestCount),
		Errors:        copyCounts(m.errorCount),
		Scans:         copyCounts(m.scanCount),
		ScanHits:      copyCounts(m.scanHits),
		Notifications: copyCounts(m.notifications),
		LastScan:      copyTimes(m.lastScan),
	}
}

func pathKey(path, method string, status int) string {
	return path + "|" + method + "|" + strconv.Itoa(status)
}

func copyCounts(src map[string]int64) map[string]int64 {
	dst := make(map[string]int64, len(src))
	for k, v := range src {
		dst[k] = v
	}
	return dst
}

func copyTimes(src map[string]time.Time) map[string]time.Time {
	dst := make(map[string]time.Time, len(src))
	for k, v := range src {
		dst[k] = v
	}
	return dst
}
