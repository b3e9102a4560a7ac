package usbip

import (
	"sync/atomic"
	"time"
)

// LatencyBuckets defines the submit-to-completion latency histogram buckets
// in nanoseconds. Buckets cover from 1us to 10s with logarithmic spacing.
var LatencyBuckets = []uint64{
	1_000,          // 1us
	10_000,         // 10us
	100_000,        // 100us
	1_000_000,      // 1ms
	10_000_000,     // 10ms
	100_000_000,    // 100ms
	1_000_000_000,  // 1s
	10_000_000_000, // 10s
}

const numLatencyBuckets = 8

// Metrics tracks performance and operational statistics for a usbip Session.
type Metrics struct {
	// URB lifecycle counters
	SubmitOps     atomic.Uint64 // URBs handed to the sender
	CompleteOps   atomic.Uint64 // URBs completed back to the host, cancellations included
	CancelOps     atomic.Uint64 // URBs that completed via the cancel path
	UnlinkOps     atomic.Uint64 // UNLINK frames sent

	// Byte counters
	BytesOut atomic.Uint64 // Bytes written to the wire (SUBMIT payloads)
	BytesIn  atomic.Uint64 // Sum of completed URBs' actual lengths (IN and OUT)

	// Error counters
	ProtocolErrors atomic.Uint64 // Malformed or unexpected frames
	IOErrors       atomic.Uint64 // Socket read/write failures

	// Queue statistics
	QueueDepthTotal atomic.Uint64 // Cumulative outstanding-table depth samples
	QueueDepthCount atomic.Uint64 // Number of queue depth measurements
	MaxQueueDepth   atomic.Uint32 // Maximum observed outstanding-table depth

	// Performance tracking
	TotalLatencyNs atomic.Uint64 // Cumulative submit-to-completion latency
	OpCount        atomic.Uint64 // Total completions (for average latency calculation)

	// Latency histogram buckets (cumulative counts).
	// LatencyHistogramBuckets[i] contains the count of completions with latency <= LatencyBuckets[i].
	LatencyHistogramBuckets [numLatencyBuckets]atomic.Uint64

	// Session lifecycle
	StartTime atomic.Int64 // Session start timestamp (UnixNano)
	StopTime  atomic.Int64 // Session stop timestamp (UnixNano)
}

// NewMetrics creates a new metrics instance.
func NewMetrics() *Metrics {
	m := &Metrics{}
	m.StartTime.Store(time.Now().UnixNano())
	return m
}

// RecordSubmit records a URB handed off to the sender.
func (m *Metrics) RecordSubmit(bytes uint64) {
	m.SubmitOps.Add(1)
	m.BytesOut.Add(bytes)
}

// RecordComplete records a URB completed back to the host, whether by a
// server reply, a local failure or the cancel path.
func (m *Metrics) RecordComplete(bytes uint64, latencyNs uint64, canceled bool) {
	m.CompleteOps.Add(1)
	m.BytesIn.Add(bytes)
	if canceled {
		m.CancelOps.Add(1)
	}
	m.recordLatency(latencyNs)
}

// RecordUnlink records an UNLINK frame sent for an in-flight URB.
func (m *Metrics) RecordUnlink() {
	m.UnlinkOps.Add(1)
}

// RecordProtocolError records a malformed or unexpected inbound frame.
func (m *Metrics) RecordProtocolError() {
	m.ProtocolErrors.Add(1)
}

// RecordIOError records a socket read/write failure.
func (m *Metrics) RecordIOError() {
	m.IOErrors.Add(1)
}

// RecordQueueDepth records the current outstanding-request table depth.
func (m *Metrics) RecordQueueDepth(depth uint32) {
	m.QueueDepthTotal.Add(uint64(depth))
	m.QueueDepthCount.Add(1)

	for {
		current := m.MaxQueueDepth.Load()
		if depth <= current {
			break
		}
		if m.MaxQueueDepth.CompareAndSwap(current, depth) {
			break
		}
	}
}

// recordLatency records completion latency and updates the histogram.
func (m *Metrics) recordLatency(latencyNs uint64) {
	m.TotalLatencyNs.Add(latencyNs)
	m.OpCount.Add(1)

	for i, bucket := range LatencyBuckets {
		if latencyNs <= bucket {
			m.LatencyHistogramBuckets[i].Add(1)
		}
	}
}

// Stop marks the session as stopped.
func (m *Metrics) Stop() {
	m.StopTime.Store(time.Now().UnixNano())
}

// MetricsSnapshot is a point-in-time snapshot of Metrics.
type MetricsSnapshot struct {
	SubmitOps   uint64
	CompleteOps uint64
	CancelOps   uint64
	UnlinkOps   uint64

	BytesOut uint64
	BytesIn  uint64

	ProtocolErrors uint64
	IOErrors       uint64

	AvgQueueDepth float64
	MaxQueueDepth uint32

	AvgLatencyNs uint64
	UptimeNs     uint64

	LatencyP50Ns  uint64
	LatencyP99Ns  uint64
	LatencyP999Ns uint64

	LatencyHistogram [numLatencyBuckets]uint64

	SubmitRate float64 // submits per second
	ErrorRate  float64 // percentage of completions that errored or were canceled
}

// Snapshot creates a point-in-time snapshot of the metrics.
func (m *Metrics) Snapshot() MetricsSnapshot {
	snap := MetricsSnapshot{
		SubmitOps:      m.SubmitOps.Load(),
		CompleteOps:    m.CompleteOps.Load(),
		CancelOps:      m.CancelOps.Load(),
		UnlinkOps:      m.UnlinkOps.Load(),
		BytesOut:       m.BytesOut.Load(),
		BytesIn:        m.BytesIn.Load(),
		ProtocolErrors: m.ProtocolErrors.Load(),
		IOErrors:       m.IOErrors.Load(),
		MaxQueueDepth:  m.MaxQueueDepth.Load(),
	}

	queueDepthTotal := m.QueueDepthTotal.Load()
	queueDepthCount := m.QueueDepthCount.Load()
	if queueDepthCount > 0 {
		snap.AvgQueueDepth = float64(queueDepthTotal) / float64(queueDepthCount)
	}

	totalLatencyNs := m.TotalLatencyNs.Load()
	opCount := m.OpCount.Load()
	if opCount > 0 {
		snap.AvgLatencyNs = totalLatencyNs / opCount
	}

	startTime := m.StartTime.Load()
	stopTime := m.StopTime.Load()
	if stopTime > 0 {
		snap.UptimeNs = uint64(stopTime - startTime)
	} else {
		snap.UptimeNs = uint64(time.Now().UnixNano() - startTime)
	}

	if snap.UptimeNs > 0 {
		uptimeSeconds := float64(snap.UptimeNs) / 1e9
		snap.SubmitRate = float64(snap.SubmitOps) / uptimeSeconds
	}

	if snap.CompleteOps > 0 {
		snap.ErrorRate = float64(snap.CancelOps+snap.ProtocolErrors+snap.IOErrors) / float64(snap.CompleteOps) * 100.0
	}

	for i := 0; i < numLatencyBuckets; i++ {
		snap.LatencyHistogram[i] = m.LatencyHistogramBuckets[i].Load()
	}

	if opCount > 0 {
		snap.LatencyP50Ns = m.calculatePercentile(0.50)
		snap.LatencyP99Ns = m.calculatePercentile(0.99)
		snap.LatencyP999Ns = m.calculatePercentile(0.999)
	}

	return snap
}

// calculatePercentile estimates the latency at the given percentile (0.0-1.0)
// using linear interpolation between histogram buckets.
func (m *Metrics) calculatePercentile(percentile float64) uint64 {
	totalOps := m.OpCount.Load()
	if totalOps == 0 {
		return 0
	}

	targetCount := uint64(float64(totalOps) * percentile)

	prevBucket := uint64(0)
	for i, bucket := range LatencyBuckets {
		bucketCount := m.LatencyHistogramBuckets[i].Load()
		if bucketCount >= targetCount {
			prevCount := uint64(0)
			if i > 0 {
				prevCount = m.LatencyHistogramBuckets[i-1].Load()
			}
			if bucketCount == prevCount {
				return bucket
			}
			fraction := float64(targetCount-prevCount) / float64(bucketCount-prevCount)
			return prevBucket + uint64(fraction*float64(bucket-prevBucket))
		}
		prevBucket = bucket
	}

	return LatencyBuckets[numLatencyBuckets-1]
}

// Reset resets all metrics counters. Useful for testing.
func (m *Metrics) Reset() {
	m.SubmitOps.Store(0)
	m.CompleteOps.Store(0)
	m.CancelOps.Store(0)
	m.UnlinkOps.Store(0)
	m.BytesOut.Store(0)
	m.BytesIn.Store(0)
	m.ProtocolErrors.Store(0)
	m.IOErrors.Store(0)
	m.QueueDepthTotal.Store(0)
	m.QueueDepthCount.Store(0)
	m.MaxQueueDepth.Store(0)
	m.TotalLatencyNs.Store(0)
	m.OpCount.Store(0)
	for i := 0; i < numLatencyBuckets; i++ {
		m.LatencyHistogramBuckets[i].Store(0)
	}
	m.StartTime.Store(time.Now().UnixNano())
	m.StopTime.Store(0)
}

// Observer allows pluggable metrics collection independent of the built-in
// Metrics type.
type Observer interface {
	ObserveSubmit(bytes uint64)
	ObserveComplete(bytes uint64, latencyNs uint64, canceled bool)
	ObserveUnlink()
	ObserveProtocolError()
	ObserveIOError()
	ObserveQueueDepth(depth uint32)
}

// NoOpObserver is a no-op implementation of Observer.
type NoOpObserver struct{}

func (NoOpObserver) ObserveSubmit(uint64)                    {}
func (NoOpObserver) ObserveComplete(uint64, uint64, bool)    {}
func (NoOpObserver) ObserveUnlink()                          {}
func (NoOpObserver) ObserveProtocolError()                   {}
func (NoOpObserver) ObserveIOError()                         {}
func (NoOpObserver) ObserveQueueDepth(uint32)                {}

// MetricsObserver implements Observer using the built-in Metrics type.
type MetricsObserver struct {
	metrics *Metrics
}

// NewMetricsObserver creates an observer that records to the given metrics.
func NewMetricsObserver(m *Metrics) *MetricsObserver {
	return &MetricsObserver{metrics: m}
}

func (o *MetricsObserver) ObserveSubmit(bytes uint64) {
	o.metrics.RecordSubmit(bytes)
}

func (o *MetricsObserver) ObserveComplete(bytes uint64, latencyNs uint64, canceled bool) {
	o.metrics.RecordComplete(bytes, latencyNs, canceled)
}

func (o *MetricsObserver) ObserveUnlink() {
	o.metrics.RecordUnlink()
}

func (o *MetricsObserver) ObserveProtocolError() {
	o.metrics.RecordProtocolError()
}

func (o *MetricsObserver) ObserveIOError() {
	o.metrics.RecordIOError()
}

func (o *MetricsObserver) ObserveQueueDepth(depth uint32) {
	o.metrics.RecordQueueDepth(depth)
}

// Compile-time interface checks
var _ Observer = (*MetricsObserver)(nil)
var _ Observer = (*NoOpObserver)(nil)
