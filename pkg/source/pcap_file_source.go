package source

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcapgo"
	"github.com/haolipeng/ipv4_packet_forwarder/pkg/metrics"
	"github.com/haolipeng/ipv4_packet_forwarder/pkg/types"
	"github.com/sirupsen/logrus"
)

// PcapFileSource 从pcap文件回放IPv4数据包
// 支持 LINKTYPE_RAW、LINKTYPE_IPV4 与以太网链路类型，以太网帧中非IPv4的帧被跳过
type PcapFileSource struct {
	file     *os.File
	reader   *pcapgo.Reader
	linkType layers.LinkType
	filename string
	stats    *metrics.SourceMetrics
	mu       sync.Mutex
	closed   bool
}

func NewPcapFileSource(filename string) (*PcapFileSource, error) {
	f, err := os.Open(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to open pcap file %s: %w", filename, err)
	}

	r, err := pcapgo.NewReader(f)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to read pcap header of %s: %w", filename, err)
	}

	switch r.LinkType() {
	case layers.LinkTypeRaw, layers.LinkTypeIPv4, layers.LinkTypeEthernet:
	default:
		f.Close()
		return nil, fmt.Errorf("unsupported link type %v in %s", r.LinkType(), filename)
	}

	logrus.Infof("Started reading packets from file: %s (link type %v)", filename, r.LinkType())
	return &PcapFileSource{
		file:     f,
		reader:   r,
		linkType: r.LinkType(),
		filename: filename,
		stats:    &metrics.SourceMetrics{},
	}, nil
}

// ReadPacket 读取下一个IPv4数据包，文件读完时返回 io.EOF
func (s *PcapFileSource) ReadPacket(ctx context.Context, buf []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return 0, types.ErrSourceClosed
	}

	for {
		if err := ctx.Err(); err != nil {
			return 0, err
		}

		data, _, err := s.reader.ReadPacketData()
		if err != nil {
			if errors.Is(err, io.EOF) {
				logrus.Info("Reached end of pcap file")
				return 0, io.EOF
			}
			s.stats.IncrementErrorCount()
			return 0, fmt.Errorf("error reading packet from %s: %w", s.filename, err)
		}

		payload := data
		if s.linkType == layers.LinkTypeEthernet {
			var eth layers.Ethernet
			if err := eth.DecodeFromBytes(data, gopacket.NilDecodeFeedback); err != nil || eth.EthernetType != layers.EthernetTypeIPv4 {
				s.stats.IncrementPacketsSkipped()
				continue
			}
			payload = trimPadding(eth.Payload)
		}

		n := copy(buf, payload)
		s.stats.IncrementPacketsCaptured()
		s.stats.AddBytesCaptured(uint64(n))
		return n, nil
	}
}

func (s *PcapFileSource) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	return s.file.Close()
}

func (s *PcapFileSource) GetStats() map[string]interface{} {
	return s.stats.GetStats()
}

// trimPadding 以太网最小帧长会引入填充字节，按IP总长度截断
func trimPadding(payload []byte) []byte {
	if len(payload) < types.MinHeaderLen {
		return payload
	}
	total := int(binary.BigEndian.Uint16(payload[2:4]))
	if total >= types.MinHeaderLen && total < len(payload) {
		return payload[:total]
	}
	return payload
}
