package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	// 数据包处理结果计数。Labels: result.
	MetricPacketsCounter = "ipfwd_packets_total"
	// 过滤决策计数。Labels: action.
	MetricDecisionsCounter = "ipfwd_decisions_total"
	// 收发字节数。Labels: direction.
	MetricBytesCounter = "ipfwd_bytes_total"
	// 单包处理耗时
	MetricProcessingObserver = "ipfwd_processing_seconds"
)

// PromMetrics 导出到Prometheus的数据面指标，方法对nil接收者安全
type PromMetrics struct {
	Registry   *prometheus.Registry
	Packets    *prometheus.CounterVec
	Decisions  *prometheus.CounterVec
	Bytes      *prometheus.CounterVec
	Processing prometheus.Histogram
}

// NewPromMetrics 创建指标并注册到独立的registry
func NewPromMetrics() *PromMetrics {
	m := &PromMetrics{
		Registry: prometheus.NewRegistry(),
		Packets: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: MetricPacketsCounter,
				Help: "Total number of packets by processing result",
			},
			[]string{"result"}),
		Decisions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: MetricDecisionsCounter,
				Help: "Total number of filter decisions by action label",
			},
			[]string{"action"}),
		Bytes: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: MetricBytesCounter,
				Help: "Total bytes received and forwarded",
			},
			[]string{"direction"}),
		Processing: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    MetricProcessingObserver,
				Help:    "Distribution of per-packet processing latencies",
				Buckets: []float64{.00001, .00005, .0001, .0005, .001, .005, .01, .05},
			}),
	}
	m.Registry.MustRegister(m.Packets, m.Decisions, m.Bytes, m.Processing)
	return m
}

func (m *PromMetrics) ObserveResult(result string) {
	if m == nil {
		return
	}
	m.Packets.WithLabelValues(result).Inc()
}

func (m *PromMetrics) ObserveDecision(label string) {
	if m == nil {
		return
	}
	m.Decisions.WithLabelValues(label).Inc()
}

func (m *PromMetrics) AddBytes(direction string, n int) {
	if m == nil {
		return
	}
	m.Bytes.WithLabelValues(direction).Add(float64(n))
}

func (m *PromMetrics) ObserveProcessing(d time.Duration) {
	if m == nil {
		return
	}
	m.Processing.Observe(d.Seconds())
}
