package pipeline

import (
	"context"
	"net/netip"
)

// Source 定义抓包句柄接口
type Source interface {
	// ReadPacket 阻塞直到一个完整的IP数据包被拷贝进buf，返回其长度
	// 等待被打断时返回 types.ErrInterrupted，数据源耗尽时返回 io.EOF
	ReadPacket(ctx context.Context, buf []byte) (int, error)
	// Close 关闭数据源
	Close() error
}

// Sink 定义发送句柄接口
type Sink interface {
	// WritePacket 按目的地址发送一个完整的IP数据包，返回实际发送的字节数
	WritePacket(data []byte, dst netip.Addr) (int, error)
	// Close 关闭输出
	Close() error
}

// Processor 定义数据包处理循环
type Processor interface {
	// Run 运行处理循环，直到ctx被取消、数据源耗尽或发生致命错误
	Run(ctx context.Context) error
	// Name 返回处理器的名称
	Name() string
}

// StatsProvider 由可报告统计信息的组件实现
type StatsProvider interface {
	GetStats() map[string]interface{}
}

// Pipeline 定义处理流水线接口
type Pipeline interface {
	// SetSource 设置数据源
	SetSource(source Source)
	// SetSink 设置数据输出
	SetSink(sink Sink)
	// SetProcessor 设置处理器
	SetProcessor(processor Processor)
	// Start 启动流水线
	Start(ctx context.Context) error
	// Stop 停止流水线并释放收发句柄
	Stop() error
	// Done 处理循环退出时关闭，返回循环的退出错误
	Done() <-chan error
	// GetStats 获取各组件统计信息
	GetStats() map[string]interface{}
	// Status 返回流水线状态
	Status() string
}
