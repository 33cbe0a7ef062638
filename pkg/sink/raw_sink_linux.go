//go:build linux

package sink

import (
	"fmt"
	"net/netip"
	"sync"

	"github.com/haolipeng/ipv4_packet_forwarder/pkg/metrics"
	"github.com/sirupsen/logrus"
	"golang.org/x/sys/unix"
)

// RawSink 通过 IP_HDRINCL 原始套接字发送完整的IPv4数据包
// 链路层封装（MAC地址解析等）由内核完成
type RawSink struct {
	fd     int
	stats  *metrics.SinkMetrics
	mu     sync.Mutex
	closed bool
}

func NewRawSink() (*RawSink, error) {
	fd, err := unix.Socket(unix.AF_INET, unix.SOCK_RAW|unix.SOCK_CLOEXEC, unix.IPPROTO_RAW)
	if err != nil {
		return nil, fmt.Errorf("failed to create raw socket: %w", err)
	}

	// 由调用方提供完整的IP头部
	if err := unix.SetsockoptInt(fd, unix.IPPROTO_IP, unix.IP_HDRINCL, 1); err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("failed to set IP_HDRINCL option: %w", err)
	}

	logrus.Info("Raw transmit socket opened")
	return &RawSink{
		fd:    fd,
		stats: &metrics.SinkMetrics{},
	}, nil
}

// WritePacket 以数据包自身的目的地址发送
func (s *RawSink) WritePacket(data []byte, dst netip.Addr) (int, error) {
	if !dst.Is4() {
		return 0, fmt.Errorf("destination %s is not an IPv4 address", dst)
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return 0, fmt.Errorf("raw sink closed")
	}
	fd := s.fd
	s.mu.Unlock()

	addr := &unix.SockaddrInet4{Addr: dst.As4()}
	for {
		n, err := unix.SendmsgN(fd, data, nil, addr, 0)
		if err == unix.EINTR {
			continue
		}
		if err != nil {
			s.stats.IncrementWriteErrors()
			return n, fmt.Errorf("sendto %s: %w", dst, err)
		}
		s.stats.IncrementPacketsWritten(n)
		return n, nil
	}
}

func (s *RawSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	return unix.Close(s.fd)
}

func (s *RawSink) GetStats() map[string]interface{} {
	return s.stats.GetStats()
}
