package metrics

import (
	"sync/atomic"
	"time"
)

type ProcessorMetrics struct {
	ReceivedPackets  uint64
	DiscardedPackets uint64 // 过短或格式错误
	BlockedPackets   uint64
	AllowedPackets   uint64 // 显式放行规则匹配计数
	DefaultPackets   uint64 // 默认放行计数
	ExpiredPackets   uint64
	ForwardedPackets uint64
	PartialSends     uint64
	SendErrors       uint64
	ForwardedBytes   uint64
	ProcessingTime   uint64 // 纳秒
}

func (m *ProcessorMetrics) IncrementReceived() {
	atomic.AddUint64(&m.ReceivedPackets, 1)
}

func (m *ProcessorMetrics) IncrementDiscarded() {
	atomic.AddUint64(&m.DiscardedPackets, 1)
}

func (m *ProcessorMetrics) IncrementBlocked() {
	atomic.AddUint64(&m.BlockedPackets, 1)
}

func (m *ProcessorMetrics) IncrementAllowed() {
	atomic.AddUint64(&m.AllowedPackets, 1)
}

func (m *ProcessorMetrics) IncrementDefault() {
	atomic.AddUint64(&m.DefaultPackets, 1)
}

func (m *ProcessorMetrics) IncrementExpired() {
	atomic.AddUint64(&m.ExpiredPackets, 1)
}

func (m *ProcessorMetrics) IncrementForwarded(bytes int) {
	atomic.AddUint64(&m.ForwardedPackets, 1)
	atomic.AddUint64(&m.ForwardedBytes, uint64(bytes))
}

func (m *ProcessorMetrics) IncrementPartialSend() {
	atomic.AddUint64(&m.PartialSends, 1)
}

func (m *ProcessorMetrics) IncrementSendError() {
	atomic.AddUint64(&m.SendErrors, 1)
}

func (m *ProcessorMetrics) AddProcessingTime(duration time.Duration) {
	atomic.AddUint64(&m.ProcessingTime, uint64(duration.Nanoseconds()))
}

// GetStats 返回指标快照
func (m *ProcessorMetrics) GetStats() map[string]interface{} {
	return map[string]interface{}{
		"received_packets":  atomic.LoadUint64(&m.ReceivedPackets),
		"discarded_packets": atomic.LoadUint64(&m.DiscardedPackets),
		"blocked_packets":   atomic.LoadUint64(&m.BlockedPackets),
		"allowed_packets":   atomic.LoadUint64(&m.AllowedPackets),
		"default_packets":   atomic.LoadUint64(&m.DefaultPackets),
		"expired_packets":   atomic.LoadUint64(&m.ExpiredPackets),
		"forwarded_packets": atomic.LoadUint64(&m.ForwardedPackets),
		"forwarded_bytes":   atomic.LoadUint64(&m.ForwardedBytes),
		"partial_sends":     atomic.LoadUint64(&m.PartialSends),
		"send_errors":       atomic.LoadUint64(&m.SendErrors),
		"processing_time":   atomic.LoadUint64(&m.ProcessingTime),
		"avg_process_time": float64(atomic.LoadUint64(&m.ProcessingTime)) /
			float64(atomic.LoadUint64(&m.ReceivedPackets)+1),
	}
}

type SourceMetrics struct {
	PacketsCaptured uint64
	PacketsSkipped  uint64 // 本机发出或非IPv4
	BytesCaptured   uint64
	Interruptions   uint64
	ErrorCount      uint64
}

func (m *SourceMetrics) IncrementPacketsCaptured() {
	atomic.AddUint64(&m.PacketsCaptured, 1)
}

func (m *SourceMetrics) IncrementPacketsSkipped() {
	atomic.AddUint64(&m.PacketsSkipped, 1)
}

func (m *SourceMetrics) AddBytesCaptured(bytes uint64) {
	atomic.AddUint64(&m.BytesCaptured, bytes)
}

func (m *SourceMetrics) IncrementInterruptions() {
	atomic.AddUint64(&m.Interruptions, 1)
}

func (m *SourceMetrics) IncrementErrorCount() {
	atomic.AddUint64(&m.ErrorCount, 1)
}

func (m *SourceMetrics) GetStats() map[string]interface{} {
	return map[string]interface{}{
		"packets_captured": atomic.LoadUint64(&m.PacketsCaptured),
		"packets_skipped":  atomic.LoadUint64(&m.PacketsSkipped),
		"bytes_captured":   atomic.LoadUint64(&m.BytesCaptured),
		"interruptions":    atomic.LoadUint64(&m.Interruptions),
		"error_count":      atomic.LoadUint64(&m.ErrorCount),
	}
}

type SinkMetrics struct {
	PacketsWritten uint64
	WriteErrors    uint64
	BytesWritten   uint64
}

func (m *SinkMetrics) IncrementPacketsWritten(bytes int) {
	atomic.AddUint64(&m.PacketsWritten, 1)
	atomic.AddUint64(&m.BytesWritten, uint64(bytes))
}

func (m *SinkMetrics) IncrementWriteErrors() {
	atomic.AddUint64(&m.WriteErrors, 1)
}

func (m *SinkMetrics) GetStats() map[string]interface{} {
	return map[string]interface{}{
		"packets_written": atomic.LoadUint64(&m.PacketsWritten),
		"write_errors":    atomic.LoadUint64(&m.WriteErrors),
		"bytes_written":   atomic.LoadUint64(&m.BytesWritten),
	}
}
