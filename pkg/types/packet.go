package types

import (
	"net/netip"
	"time"

	"github.com/google/gopacket/layers"
)

// BufferSize 接收缓冲区大小，足以容纳任何受MTU限制的IP数据包
const BufferSize = 65536

// MinHeaderLen IPv4最小头部长度
const MinHeaderLen = 20

// IPv4Header 是原始数据包头部的结构化视图
// 字段从缓冲区拷贝而来，修改后需通过 WriteTo 显式写回
type IPv4Header struct {
	Version  uint8
	IHL      uint8 // 头部长度，单位为32位字
	TOS      uint8
	Length   uint16
	Id       uint16
	TTL      uint8
	Protocol layers.IPProtocol
	Checksum uint16
	SrcIP    netip.Addr
	DstIP    netip.Addr
}

// HeaderLen 返回头部字节长度
func (h *IPv4Header) HeaderLen() int {
	return int(h.IHL) * 4
}

// WriteTo 将可变字段（TTL与校验和）写回原始缓冲区
func (h *IPv4Header) WriteTo(raw []byte) {
	raw[8] = h.TTL
	raw[10] = byte(h.Checksum >> 8)
	raw[11] = byte(h.Checksum)
}

// Packet 表示一次循环迭代中处理的数据包
type Packet struct {
	ID        uint64      // 接收序号，从1开始
	Timestamp time.Time   // 开始处理的时间
	RawData   []byte      // 去除链路层填充后的IP数据报
	Header    *IPv4Header // 解析失败时为nil
}

// Stage 表示处理循环的状态
type Stage int

const (
	StageReceiving  Stage = iota + 1 //接收
	StageParsing                     //解析
	StageFiltering                   //过滤
	StageForwarding                  //转发
	StageDone                        //单包处理完成
)

func (s Stage) String() string {
	switch s {
	case StageReceiving:
		return "receiving"
	case StageParsing:
		return "parsing"
	case StageFiltering:
		return "filtering"
	case StageForwarding:
		return "forwarding"
	case StageDone:
		return "done"
	default:
		return "unknown"
	}
}
