package usbip

import (
	"testing"
	"time"
)

func TestMetrics(t *testing.T) {
	m := NewMetrics()

	snap := m.Snapshot()
	if snap.SubmitOps != 0 {
		t.Errorf("Expected 0 initial submits, got %d", snap.SubmitOps)
	}

	m.RecordSubmit(64)
	m.RecordComplete(1024, 1_000_000, false) // 1KB in, 1ms latency, not canceled
	m.RecordSubmit(64)
	m.RecordComplete(0, 500_000, true) // canceled

	snap = m.Snapshot()

	if snap.SubmitOps != 2 {
		t.Errorf("Expected 2 submits, got %d", snap.SubmitOps)
	}
	if snap.CompleteOps != 2 {
		t.Errorf("Expected 2 completions, got %d", snap.CompleteOps)
	}
	if snap.CancelOps != 1 {
		t.Errorf("Expected 1 cancel, got %d", snap.CancelOps)
	}
	if snap.BytesOut != 128 {
		t.Errorf("Expected 128 bytes out, got %d", snap.BytesOut)
	}
	if snap.BytesIn != 1024 {
		t.Errorf("Expected 1024 bytes in, got %d", snap.BytesIn)
	}

	expectedErrorRate := float64(1) / float64(2) * 100.0
	if snap.ErrorRate < expectedErrorRate-0.1 || snap.ErrorRate > expectedErrorRate+0.1 {
		t.Errorf("Expected error rate ~%.1f%%, got %.1f%%", expectedErrorRate, snap.ErrorRate)
	}
}

func TestMetricsQueueDepth(t *testing.T) {
	m := NewMetrics()

	m.RecordQueueDepth(10)
	m.RecordQueueDepth(20)
	m.RecordQueueDepth(15)

	snap := m.Snapshot()

	if snap.MaxQueueDepth != 20 {
		t.Errorf("Expected max queue depth 20, got %d", snap.MaxQueueDepth)
	}

	expectedAvg := float64(10+20+15) / 3.0
	if snap.AvgQueueDepth < expectedAvg-0.1 || snap.AvgQueueDepth > expectedAvg+0.1 {
		t.Errorf("Expected avg queue depth %.1f, got %.1f", expectedAvg, snap.AvgQueueDepth)
	}
}

func TestMetricsLatency(t *testing.T) {
	m := NewMetrics()

	m.RecordComplete(1024, 1_000_000, false) // 1ms
	m.RecordComplete(1024, 2_000_000, false) // 2ms

	snap := m.Snapshot()

	expectedAvgNs := uint64(1_500_000)
	if snap.AvgLatencyNs != expectedAvgNs {
		t.Errorf("Expected avg latency %d ns, got %d ns", expectedAvgNs, snap.AvgLatencyNs)
	}
}

func TestMetricsUptime(t *testing.T) {
	m := NewMetrics()

	time.Sleep(10 * time.Millisecond)

	snap := m.Snapshot()
	if snap.UptimeNs < 10*1_000_000 {
		t.Errorf("Expected uptime >= 10ms, got %d ns", snap.UptimeNs)
	}

	m.Stop()
	time.Sleep(5 * time.Millisecond)

	snap2 := m.Snapshot()
	if snap2.UptimeNs > snap.UptimeNs+2*1_000_000 {
		t.Errorf("Uptime increased too much after stop: %d -> %d", snap.UptimeNs, snap2.UptimeNs)
	}
}

func TestMetricsReset(t *testing.T) {
	m := NewMetrics()

	m.RecordSubmit(1024)
	m.RecordComplete(2048, 1_000_000, false)
	m.RecordQueueDepth(10)

	snap := m.Snapshot()
	if snap.SubmitOps == 0 {
		t.Error("Expected some operations before reset")
	}

	m.Reset()

	snap = m.Snapshot()
	if snap.SubmitOps != 0 {
		t.Errorf("Expected 0 submits after reset, got %d", snap.SubmitOps)
	}
	if snap.BytesIn != 0 {
		t.Errorf("Expected 0 bytes in after reset, got %d", snap.BytesIn)
	}
	if snap.MaxQueueDepth != 0 {
		t.Errorf("Expected 0 max queue depth after reset, got %d", snap.MaxQueueDepth)
	}
}

func TestObserver(t *testing.T) {
	observer := &NoOpObserver{}
	observer.ObserveSubmit(1024)
	observer.ObserveComplete(1024, 1_000_000, false)
	observer.ObserveUnlink()
	observer.ObserveProtocolError()
	observer.ObserveIOError()
	observer.ObserveQueueDepth(10)

	m := NewMetrics()
	metricsObserver := NewMetricsObserver(m)

	metricsObserver.ObserveSubmit(1024)
	metricsObserver.ObserveComplete(2048, 1_000_000, false)

	snap := m.Snapshot()
	if snap.SubmitOps != 1 {
		t.Errorf("Expected 1 submit from observer, got %d", snap.SubmitOps)
	}
	if snap.CompleteOps != 1 {
		t.Errorf("Expected 1 completion from observer, got %d", snap.CompleteOps)
	}
	if snap.BytesOut != 1024 {
		t.Errorf("Expected 1024 bytes out from observer, got %d", snap.BytesOut)
	}
	if snap.BytesIn != 2048 {
		t.Errorf("Expected 2048 bytes in from observer, got %d", snap.BytesIn)
	}
}

func TestMetricsRates(t *testing.T) {
	m := NewMetrics()

	startTime := time.Now()
	m.StartTime.Store(startTime.UnixNano())

	m.RecordSubmit(1024)
	m.RecordSubmit(1024)

	stopTime := startTime.Add(1 * time.Second)
	m.StopTime.Store(stopTime.UnixNano())

	snap := m.Snapshot()

	if snap.SubmitRate < 1.9 || snap.SubmitRate > 2.1 {
		t.Errorf("Expected SubmitRate ~2.0, got %.2f", snap.SubmitRate)
	}
}

func TestMetricsHistogram(t *testing.T) {
	m := NewMetrics()

	for i := 0; i < 50; i++ {
		m.RecordComplete(1024, 500_000, false) // 500us
	}
	for i := 0; i < 49; i++ {
		m.RecordComplete(1024, 5_000_000, false) // 5ms
	}
	m.RecordComplete(1024, 50_000_000, false) // 50ms, the single slowest completion

	snap := m.Snapshot()

	if snap.CompleteOps != 100 {
		t.Errorf("Expected 100 completions, got %d", snap.CompleteOps)
	}

	if snap.LatencyP50Ns < 100_000 || snap.LatencyP50Ns > 1_000_000 {
		t.Errorf("Expected P50 in 100us-1ms range, got %d ns", snap.LatencyP50Ns)
	}

	if snap.LatencyP99Ns < 5_000_000 || snap.LatencyP99Ns > 100_000_000 {
		t.Errorf("Expected P99 in 5ms-100ms range, got %d ns", snap.LatencyP99Ns)
	}

	totalInBuckets := uint64(0)
	for i := 0; i < len(snap.LatencyHistogram); i++ {
		totalInBuckets += snap.LatencyHistogram[i]
	}
	if totalInBuckets == 0 {
		t.Error("Expected histogram buckets to be populated")
	}
}
