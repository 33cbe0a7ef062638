package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProcessorMetricsGetStats(t *testing.T) {
	m := &ProcessorMetrics{}
	m.IncrementReceived()
	m.IncrementReceived()
	m.IncrementDefault()
	m.IncrementForwarded(28)
	m.IncrementBlocked()
	m.AddProcessingTime(2 * time.Microsecond)

	stats := m.GetStats()
	assert.Equal(t, uint64(2), stats["received_packets"])
	assert.Equal(t, uint64(1), stats["blocked_packets"])
	assert.Equal(t, uint64(1), stats["default_packets"])
	assert.Equal(t, uint64(1), stats["forwarded_packets"])
	assert.Equal(t, uint64(28), stats["forwarded_bytes"])
	assert.Equal(t, uint64(2000), stats["processing_time"])
}

func TestSinkMetrics(t *testing.T) {
	m := &SinkMetrics{}
	m.IncrementPacketsWritten(40)
	m.IncrementWriteErrors()

	stats := m.GetStats()
	assert.Equal(t, uint64(1), stats["packets_written"])
	assert.Equal(t, uint64(40), stats["bytes_written"])
	assert.Equal(t, uint64(1), stats["write_errors"])
}

func TestPromMetrics(t *testing.T) {
	m := NewPromMetrics()
	m.ObserveResult("forwarded")
	m.ObserveResult("forwarded")
	m.ObserveDecision("BLOCK")
	m.AddBytes("in", 84)
	m.ObserveProcessing(time.Microsecond)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.Packets.WithLabelValues("forwarded")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Decisions.WithLabelValues("BLOCK")))
	assert.Equal(t, 84.0, testutil.ToFloat64(m.Bytes.WithLabelValues("in")))

	count, err := testutil.GatherAndCount(m.Registry)
	require.NoError(t, err)
	assert.Equal(t, 4, count)
}

func TestPromMetricsNilSafe(t *testing.T) {
	var m *PromMetrics
	assert.NotPanics(t, func() {
		m.ObserveResult("forwarded")
		m.ObserveDecision("ALLOW")
		m.AddBytes("out", 1)
		m.ObserveProcessing(time.Millisecond)
	})
}
