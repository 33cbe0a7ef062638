//go:build !linux

package source

import (
	"context"
	"errors"
	"time"
)

var errRawUnsupported = errors.New("raw packet capture is only supported on linux")

type RawSource struct{}

func NewRawSource(device string, readTimeout time.Duration) (*RawSource, error) {
	return nil, errRawUnsupported
}

func (s *RawSource) ReadPacket(ctx context.Context, buf []byte) (int, error) {
	return 0, errRawUnsupported
}

func (s *RawSource) Close() error {
	return nil
}
