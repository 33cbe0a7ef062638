package types

import (
	"errors"
	"fmt"
)

var (
	ErrPacketTooShort      = errors.New("packet shorter than minimum IPv4 header")
	ErrNotIPv4             = errors.New("not an IPv4 packet")
	ErrInvalidHeaderLength = errors.New("invalid IPv4 header length")
	ErrTruncatedHeader     = errors.New("IPv4 header exceeds captured bytes")
	ErrMalformedHeader     = errors.New("malformed IPv4 header")
	ErrHopLimitExpired     = errors.New("hop limit expired")
	ErrPartialSend         = errors.New("partial send")

	// ErrInterrupted 表示阻塞接收被信号或轮询超时打断，调用方应重试
	ErrInterrupted = errors.New("receive interrupted")
	// ErrSourceClosed 表示数据源已被关闭
	ErrSourceClosed = errors.New("source closed")
)

// ProcessError 记录致命错误发生时所处的循环状态
type ProcessError struct {
	Stage Stage
	Err   error
}

func (e *ProcessError) Error() string {
	return fmt.Sprintf("packet loop error at stage %s: %v", e.Stage, e.Err)
}

func (e *ProcessError) Unwrap() error {
	return e.Err
}

func NewProcessError(stage Stage, err error) error {
	return &ProcessError{Stage: stage, Err: err}
}
