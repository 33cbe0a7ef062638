package processor

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/haolipeng/ipv4_packet_forwarder/pkg/metrics"
	"github.com/haolipeng/ipv4_packet_forwarder/pkg/pipeline"
	"github.com/haolipeng/ipv4_packet_forwarder/pkg/ruleEngine"
	"github.com/haolipeng/ipv4_packet_forwarder/pkg/types"
	"github.com/sirupsen/logrus"
)

// PacketProcessor 实现 接收 -> 解析 -> 过滤 -> TTL递减 -> 校验和重算 -> 重新发送 的处理循环
// 同一时刻只处理一个数据包，收发句柄只被该循环使用
type PacketProcessor struct {
	source  pipeline.Source
	sink    pipeline.Sink
	engine  *ruleEngine.Engine
	metrics *metrics.ProcessorMetrics
	prom    *metrics.PromMetrics
	logger  logrus.FieldLogger
	seq     uint64
}

// Option 配置 PacketProcessor
type Option func(*PacketProcessor)

// WithLogger 设置日志输出
func WithLogger(logger logrus.FieldLogger) Option {
	return func(p *PacketProcessor) {
		p.logger = logger
	}
}

// WithPromMetrics 设置Prometheus指标
func WithPromMetrics(m *metrics.PromMetrics) Option {
	return func(p *PacketProcessor) {
		p.prom = m
	}
}

// NewPacketProcessor 创建数据包处理器
func NewPacketProcessor(source pipeline.Source, sink pipeline.Sink, engine *ruleEngine.Engine, opts ...Option) *PacketProcessor {
	p := &PacketProcessor{
		source:  source,
		sink:    sink,
		engine:  engine,
		metrics: &metrics.ProcessorMetrics{},
		logger:  logrus.StandardLogger(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func (p *PacketProcessor) Name() string {
	return "PacketProcessor"
}

// Metrics 返回处理器指标
func (p *PacketProcessor) Metrics() *metrics.ProcessorMetrics {
	return p.metrics
}

func (p *PacketProcessor) GetStats() map[string]interface{} {
	return p.metrics.GetStats()
}

// Run 运行处理循环，直到ctx被取消、数据源耗尽或接收出现不可恢复的错误
func (p *PacketProcessor) Run(ctx context.Context) error {
	buf := make([]byte, types.BufferSize)

	p.logger.Info("Packet processor started, monitoring and processing packets...")
	for {
		n, err := p.ReceiveNext(ctx, buf)
		if err != nil {
			if ctx.Err() != nil {
				p.logger.Info("Stopping packet processor: context cancellation")
				return nil
			}
			if errors.Is(err, io.EOF) {
				p.logger.Info("Stopping packet processor: source exhausted")
				return nil
			}
			return types.NewProcessError(types.StageReceiving, err)
		}

		p.ProcessPacket(buf[:n])
	}
}

// ReceiveNext 阻塞接收下一个数据包，被打断的等待会透明地重试
func (p *PacketProcessor) ReceiveNext(ctx context.Context, buf []byte) (int, error) {
	for {
		if err := ctx.Err(); err != nil {
			return 0, err
		}
		n, err := p.source.ReadPacket(ctx, buf)
		if err == nil {
			return n, nil
		}
		if errors.Is(err, types.ErrInterrupted) {
			continue
		}
		return 0, err
	}
}

// ProcessPacket 处理一个完整的数据包，包级别的失败只记录在返回结果中
func (p *PacketProcessor) ProcessPacket(raw []byte) types.Outcome {
	start := time.Now()
	p.seq++
	p.metrics.IncrementReceived()
	p.prom.AddBytes("in", len(raw))

	pkt := &types.Packet{ID: p.seq, Timestamp: start, RawData: raw}
	out := p.process(pkt)
	out.Packet = pkt

	elapsed := time.Since(start)
	p.metrics.AddProcessingTime(elapsed)
	p.prom.ObserveProcessing(elapsed)
	p.prom.ObserveResult(out.Result.String())
	return out
}

func (p *PacketProcessor) process(pkt *types.Packet) types.Outcome {
	raw := pkt.RawData
	header, err := p.ParseHeader(raw)
	if err != nil {
		p.metrics.IncrementDiscarded()
		if errors.Is(err, types.ErrPacketTooShort) {
			p.logger.Debugf("Received packet too short for IP header (%d bytes)", len(raw))
		} else {
			p.logger.WithField("len", len(raw)).Debugf("Discarding malformed packet: %v", err)
		}
		return types.Outcome{Stage: types.StageParsing, Result: types.ResultDiscarded, Err: err}
	}
	pkt.Header = header

	// 链路层最小帧填充不属于IP数据报，按总长度截断
	raw = TrimToTotalLength(header, raw)
	pkt.RawData = raw

	log := p.logger.WithFields(logrus.Fields{
		"packet": pkt.ID,
		"src":    header.SrcIP.String(),
		"dst":    header.DstIP.String(),
		"proto":  int(header.Protocol),
		"len":    len(raw),
	})
	log.Debug("Received packet")

	verdict := p.EvaluateFilter(header)
	log = log.WithField("action", verdict.Label)
	p.prom.ObserveDecision(verdict.Label)
	if verdict.IsDrop() {
		p.metrics.IncrementBlocked()
		log.Infof("ACTION: %s. Packet from %s to %s dropped by filter", verdict.Label, header.SrcIP, header.DstIP)
		return types.Outcome{Stage: types.StageFiltering, Result: types.ResultBlocked, Verdict: verdict, Header: header}
	}
	if verdict.Rule != nil {
		p.metrics.IncrementAllowed()
	} else {
		p.metrics.IncrementDefault()
	}
	log.Infof("ACTION: %s. Packet from %s to %s will be forwarded", verdict.Label, header.SrcIP, header.DstIP)

	// 不向源主机发送ICMP超时报文
	if err := p.DecrementHopLimit(header); err != nil {
		p.metrics.IncrementExpired()
		log.Warnf("TTL expired for packet %s -> %s, dropping", header.SrcIP, header.DstIP)
		return types.Outcome{Stage: types.StageForwarding, Result: types.ResultExpired, Verdict: verdict, Header: header, Err: err}
	}
	p.RecomputeChecksum(header, raw)

	sent, err := p.Transmit(raw, header)
	out := types.Outcome{Stage: types.StageDone, Verdict: verdict, Header: header, Sent: sent, Err: err}
	switch {
	case err == nil:
		out.Result = types.ResultForwarded
		p.metrics.IncrementForwarded(sent)
		p.prom.AddBytes("out", sent)
		log.Infof("FORWARDED: Packet from %s to %s", header.SrcIP, header.DstIP)
	case errors.Is(err, types.ErrPartialSend):
		out.Result = types.ResultPartialSend
		p.metrics.IncrementPartialSend()
		p.prom.AddBytes("out", sent)
		log.Warnf("Sent %d bytes, but packet length was %d", sent, len(raw))
	default:
		out.Result = types.ResultSendFailed
		p.metrics.IncrementSendError()
		log.Errorf("Error sending packet: %v", err)
	}
	return out
}

// ParseHeader 校验并解析头部，过短的数据包返回 types.ErrPacketTooShort
func (p *PacketProcessor) ParseHeader(raw []byte) (*types.IPv4Header, error) {
	return ParseHeader(raw)
}

// EvaluateFilter 根据源/目的地址评估过滤规则
func (p *PacketProcessor) EvaluateFilter(header *types.IPv4Header) ruleEngine.Verdict {
	return p.engine.Evaluate(header.SrcIP, header.DstIP)
}

// DecrementHopLimit TTL不大于1时返回 types.ErrHopLimitExpired 且不修改头部
func (p *PacketProcessor) DecrementHopLimit(header *types.IPv4Header) error {
	return DecrementHopLimit(header)
}

// RecomputeChecksum 写回TTL并重新计算头部校验和
func (p *PacketProcessor) RecomputeChecksum(header *types.IPv4Header, raw []byte) {
	RecomputeChecksum(header, raw)
}

// Transmit 将完整数据包发往其目的地址，少发字节时返回 types.ErrPartialSend
func (p *PacketProcessor) Transmit(raw []byte, header *types.IPv4Header) (int, error) {
	n, err := p.sink.WritePacket(raw, header.DstIP)
	if err != nil {
		return n, err
	}
	if n != len(raw) {
		return n, fmt.Errorf("%w: sent %d of %d bytes", types.ErrPartialSend, n, len(raw))
	}
	return n, nil
}

// TrimToTotalLength 返回不超过头部总长度的数据，总长度不小于头部长度时才截断
func TrimToTotalLength(header *types.IPv4Header, raw []byte) []byte {
	total := int(header.Length)
	if total >= header.HeaderLen() && total < len(raw) {
		return raw[:total]
	}
	return raw
}

func DecrementHopLimit(header *types.IPv4Header) error {
	if header.TTL <= 1 {
		return types.ErrHopLimitExpired
	}
	header.TTL--
	return nil
}

// RecomputeChecksum 只覆盖头部声明的长度，不包含载荷
func RecomputeChecksum(header *types.IPv4Header, raw []byte) {
	hl := header.HeaderLen()
	header.Checksum = 0
	header.WriteTo(raw)
	header.Checksum = Checksum(raw[:hl])
	header.WriteTo(raw)
}
