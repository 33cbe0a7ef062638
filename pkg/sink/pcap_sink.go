package sink

import (
	"fmt"
	"net/netip"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcapgo"
	"github.com/haolipeng/ipv4_packet_forwarder/pkg/metrics"
	"github.com/haolipeng/ipv4_packet_forwarder/pkg/types"
	"github.com/sirupsen/logrus"
)

// DefaultMaxFileSize 单个pcap文件的默认大小上限
const DefaultMaxFileSize = 50 * 1024 * 1024

// PcapSink 将转发的数据包以 LINKTYPE_RAW 写入按大小切割的pcap文件
type PcapSink struct {
	baseFilename string // 基础文件名（如 "forwarded"）
	maxFileSize  int64
	currentSize  int64
	fileIndex    int
	pcapWriter   *pcapgo.Writer
	curFileName  string
	file         *os.File
	files        []string
	stats        *metrics.SinkMetrics
	mu           sync.Mutex
	closed       bool
}

func NewPcapSink(baseFilename string, maxFileSize int64) (*PcapSink, error) {
	if baseFilename == "" {
		return nil, fmt.Errorf("pcap sink requires a base filename")
	}
	if maxFileSize <= 0 {
		maxFileSize = DefaultMaxFileSize
	}

	s := &PcapSink{
		baseFilename: baseFilename,
		maxFileSize:  maxFileSize,
		fileIndex:    1,
		stats:        &metrics.SinkMetrics{},
	}

	if err := s.createNewPcapFile(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *PcapSink) createNewPcapFile() error {
	// 生成文件名：forwarded_20240318_153000_1.pcap
	timestamp := time.Now().Format("20060102_150405")
	filename := fmt.Sprintf("%s_%s_%d.pcap", s.baseFilename, timestamp, s.fileIndex)

	if dir := filepath.Dir(filename); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create pcap directory: %w", err)
		}
	}

	f, err := os.Create(filename)
	if err != nil {
		return fmt.Errorf("failed to create pcap file: %w", err)
	}

	if s.file != nil {
		if err := s.file.Close(); err != nil {
			logrus.Errorf("Failed to close previous pcap file: %v", err)
		}
	}

	w := pcapgo.NewWriter(f)
	if err := w.WriteFileHeader(types.BufferSize, layers.LinkTypeRaw); err != nil {
		f.Close()
		return fmt.Errorf("failed to write pcap header: %w", err)
	}

	s.curFileName = filename
	s.files = append(s.files, filename)
	s.file = f
	s.pcapWriter = w
	s.currentSize = 0
	s.fileIndex++

	logrus.Infof("Created new pcap file: %s", filename)
	return nil
}

// WritePacket 记录一个数据包，目的地址只用于日志
func (s *PcapSink) WritePacket(data []byte, dst netip.Addr) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return 0, fmt.Errorf("pcap sink closed")
	}

	if s.currentSize >= s.maxFileSize {
		if err := s.createNewPcapFile(); err != nil {
			s.stats.IncrementWriteErrors()
			return 0, err
		}
	}

	ci := gopacket.CaptureInfo{
		Timestamp:     time.Now(),
		CaptureLength: len(data),
		Length:        len(data),
	}
	if err := s.pcapWriter.WritePacket(ci, data); err != nil {
		s.stats.IncrementWriteErrors()
		return 0, fmt.Errorf("failed to write packet to pcap: %w", err)
	}

	s.currentSize += int64(len(data))
	s.stats.IncrementPacketsWritten(len(data))
	logrus.Debugf("Recorded %d bytes to %s for %s", len(data), s.curFileName, dst)
	return len(data), nil
}

// Files 返回已创建的pcap文件列表
func (s *PcapSink) Files() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.files...)
}

func (s *PcapSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	if s.file != nil {
		return s.file.Close()
	}
	return nil
}

func (s *PcapSink) GetStats() map[string]interface{} {
	return s.stats.GetStats()
}
