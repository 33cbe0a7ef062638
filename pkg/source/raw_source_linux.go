//go:build linux

package source

import (
	"context"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/haolipeng/ipv4_packet_forwarder/pkg/metrics"
	"github.com/haolipeng/ipv4_packet_forwarder/pkg/types"
	"github.com/sirupsen/logrus"
	"golang.org/x/sys/unix"
)

// RawSource 通过 AF_PACKET/SOCK_DGRAM 套接字接收网络层IPv4数据包
// 链路层头部由内核剥离，本机发出的数据包被忽略
type RawSource struct {
	fd          int
	device      string
	readTimeout time.Duration
	stats       *metrics.SourceMetrics
	mu          sync.Mutex
	closed      bool
}

// NewRawSource 创建原始抓包句柄，device为空时接收所有网口的数据包
// readTimeout 决定阻塞接收检查取消信号的间隔
func NewRawSource(device string, readTimeout time.Duration) (*RawSource, error) {
	fd, err := unix.Socket(unix.AF_PACKET, unix.SOCK_DGRAM|unix.SOCK_CLOEXEC, int(htons(unix.ETH_P_IP)))
	if err != nil {
		return nil, fmt.Errorf("failed to create AF_PACKET socket: %w", err)
	}

	if device != "" {
		iface, err := net.InterfaceByName(device)
		if err != nil {
			unix.Close(fd)
			return nil, fmt.Errorf("failed to get interface %s: %w", device, err)
		}
		ll := unix.SockaddrLinklayer{
			Protocol: htons(unix.ETH_P_IP),
			Ifindex:  iface.Index,
		}
		if err := unix.Bind(fd, &ll); err != nil {
			unix.Close(fd)
			return nil, fmt.Errorf("failed to bind to interface %s: %w", device, err)
		}
	}

	if readTimeout > 0 {
		tv := unix.NsecToTimeval(readTimeout.Nanoseconds())
		if err := unix.SetsockoptTimeval(fd, unix.SOL_SOCKET, unix.SO_RCVTIMEO, &tv); err != nil {
			unix.Close(fd)
			return nil, fmt.Errorf("failed to set receive timeout: %w", err)
		}
	}

	logrus.Infof("Raw capture socket opened (device=%q)", device)
	return &RawSource{
		fd:          fd,
		device:      device,
		readTimeout: readTimeout,
		stats:       &metrics.SourceMetrics{},
	}, nil
}

// ReadPacket 阻塞接收一个IPv4数据包
// EINTR 与接收超时均返回 types.ErrInterrupted
func (s *RawSource) ReadPacket(ctx context.Context, buf []byte) (int, error) {
	for {
		if err := ctx.Err(); err != nil {
			return 0, err
		}
		s.mu.Lock()
		if s.closed {
			s.mu.Unlock()
			return 0, types.ErrSourceClosed
		}
		fd := s.fd
		s.mu.Unlock()

		n, from, err := unix.Recvfrom(fd, buf, 0)
		if err != nil {
			switch err {
			case unix.EINTR, unix.EAGAIN:
				s.stats.IncrementInterruptions()
				return 0, types.ErrInterrupted
			}
			s.stats.IncrementErrorCount()
			return 0, fmt.Errorf("error receiving packet: %w", err)
		}

		if ll, ok := from.(*unix.SockaddrLinklayer); ok && ll.Pkttype == unix.PACKET_OUTGOING {
			s.stats.IncrementPacketsSkipped()
			continue
		}

		s.stats.IncrementPacketsCaptured()
		s.stats.AddBytesCaptured(uint64(n))
		return n, nil
	}
}

func (s *RawSource) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	return unix.Close(s.fd)
}

func (s *RawSource) GetStats() map[string]interface{} {
	return s.stats.GetStats()
}

func htons(v uint16) uint16 {
	return v<<8 | v>>8
}
