package goWA

import (
	"sync/atomic"
	"time"
)

// MetricID identifies one in-process counter or histogram.
type MetricID uint16

const (
	// MetricSessionCreated counts sessions registered by CreateSession.
	MetricSessionCreated MetricID = iota
	// MetricSessionDuplicate counts CreateSession calls rejected as duplicate.
	MetricSessionDuplicate
	// MetricSessionCreateFailed counts sessions whose client could not be built or started.
	MetricSessionCreateFailed
	// MetricSessionRemoved counts sessions removed by RemoveSession.
	MetricSessionRemoved
	// MetricSessionRemoveFailed counts RemoveSession calls whose client logout failed.
	MetricSessionRemoveFailed
	// MetricChallengeIssued counts pairing challenges received from clients.
	MetricChallengeIssued
	// MetricSessionAuthenticated counts sessions entering the authenticated state.
	MetricSessionAuthenticated
	// MetricSessionReady counts sessions entering the ready state.
	MetricSessionReady
	// MetricSessionLoggedOut counts sessions closed by a remote logout.
	MetricSessionLoggedOut
	// MetricSendSuccess counts recipients that received a message.
	MetricSendSuccess
	// MetricSendFailure counts recipients whose send failed.
	MetricSendFailure
	// MetricSendTimeout counts sends abandoned at the configured deadline.
	MetricSendTimeout
	// MetricValidationRejected counts requests rejected before reaching a client.
	MetricValidationRejected
	// MetricBroadcast counts SendBroadcast calls that reached dispatch.
	MetricBroadcast
	// MetricChallengeRendered counts challenge images served.
	MetricChallengeRendered
	// MetricSendLatency is the per-recipient send latency histogram.
	MetricSendLatency
	metricIDCount
)

const (
	histBucketCount = 8
	cacheLineSize   = 64
)

type metricHistogram struct {
	buckets [histBucketCount]uint64
}

type paddedCounter struct {
	value uint64
	_     [cacheLineSize - 8]byte
}

// Metrics is a fixed set of lock-free counters. A nil or disabled Metrics
// accepts every call and records nothing.
type Metrics struct {
	enabled       bool
	enableLatency bool
	counters      [metricIDCount]paddedCounter
	histograms    [metricIDCount]metricHistogram
}

// MetricsSnapshot is a point-in-time copy of every counter and, when
// latency histograms are enabled, the raw bucket counts.
type MetricsSnapshot struct {
	Counters   map[MetricID]uint64
	Histograms map[MetricID][]uint64
}

// NewMetrics builds a Metrics from cfg.
func NewMetrics(cfg MetricsConfig) *Metrics {
	return &Metrics{
		enabled:       cfg.Enabled,
		enableLatency: cfg.Enabled && cfg.EnableLatencyHistograms,
	}
}

// Enabled reports whether counters are recorded.
func (m *Metrics) Enabled() bool {
	return m != nil && m.enabled
}

// LatencyEnabled reports whether the send latency histogram is recorded.
func (m *Metrics) LatencyEnabled() bool {
	return m != nil && m.enableLatency
}

// Inc adds one to the counter id.
func (m *Metrics) Inc(id MetricID) {
	if m == nil || !m.enabled || id >= metricIDCount {
		return
	}
	atomic.AddUint64(&m.counters[id].value, 1)
}

// Observe records d in the histogram id. Only MetricSendLatency carries a
// histogram; other ids are ignored.
func (m *Metrics) Observe(id MetricID, d time.Duration) {
	if m == nil || !m.enabled || !m.enableLatency || id >= metricIDCount {
		return
	}
	if id != MetricSendLatency {
		return
	}

	b := bucketIndex(d)
	atomic.AddUint64(&m.histograms[id].buckets[b], 1)
}

// Value returns the current value of counter id.
func (m *Metrics) Value(id MetricID) uint64 {
	if m == nil || id >= metricIDCount {
		return 0
	}
	return atomic.LoadUint64(&m.counters[id].value)
}

// Snapshot copies every counter. Individual loads are atomic; the snapshot
// as a whole is not.
func (m *Metrics) Snapshot() MetricsSnapshot {
	if m == nil || !m.enabled {
		return MetricsSnapshot{
			Counters:   map[MetricID]uint64{},
			Histograms: map[MetricID][]uint64{},
		}
	}

	s := MetricsSnapshot{
		Counters:   make(map[MetricID]uint64, int(metricIDCount)),
		Histograms: make(map[MetricID][]uint64, 1),
	}

	for id := MetricID(0); id < metricIDCount; id++ {
		s.Counters[id] = atomic.LoadUint64(&m.counters[id].value)
	}

	if m.enableLatency {
		buckets := make([]uint64, histBucketCount)
		for i := 0; i < histBucketCount; i++ {
			buckets[i] = atomic.LoadUint64(&m.histograms[MetricSendLatency].buckets[i])
		}
		s.Histograms[MetricSendLatency] = buckets
	}

	return s
}

// Upper bounds: 50ms 100ms 250ms 500ms 1s 2.5s 5s +Inf.
func bucketIndex(d time.Duration) int {
	ms := d.Milliseconds()

	switch {
	case ms <= 50:
		return 0
	case ms <= 100:
		return 1
	case ms <= 250:
		return 2
	case ms <= 500:
		return 3
	case ms <= 1000:
		return 4
	case ms <= 2500:
		return 5
	case ms <= 5000:
		return 6
	default:
		return 7
	}
}
