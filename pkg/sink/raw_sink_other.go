//go:build !linux

package sink

import (
	"errors"
	"net/netip"
)

var errRawUnsupported = errors.New("raw packet transmit is only supported on linux")

type RawSink struct{}

func NewRawSink() (*RawSink, error) {
	return nil, errRawUnsupported
}

func (s *RawSink) WritePacket(data []byte, dst netip.Addr) (int, error) {
	return 0, errRawUnsupported
}

func (s *RawSink) Close() error {
	return nil
}
