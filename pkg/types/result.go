package types

import "github.com/haolipeng/ipv4_packet_forwarder/pkg/ruleEngine"

// Result 表示单个数据包的最终处理结果
type Result uint8

const (
	ResultDiscarded   Result = iota + 1 // 过短或格式错误，静默丢弃
	ResultBlocked                       // 被规则阻挡
	ResultExpired                       // TTL耗尽
	ResultForwarded                     // 转发成功
	ResultPartialSend                   // 只发送了部分字节
	ResultSendFailed                    // 发送失败
)

func (r Result) String() string {
	switch r {
	case ResultDiscarded:
		return "discarded"
	case ResultBlocked:
		return "blocked"
	case ResultExpired:
		return "expired"
	case ResultForwarded:
		return "forwarded"
	case ResultPartialSend:
		return "partial_send"
	case ResultSendFailed:
		return "send_failed"
	default:
		return "unknown"
	}
}

// Outcome 描述一个数据包在处理循环中的结局
type Outcome struct {
	Stage   Stage              // 结束时所处的状态
	Result  Result             // 处理结果
	Verdict ruleEngine.Verdict // 过滤决策，解析失败时为零值
	Header  *IPv4Header        // 解析得到的头部，解析失败时为nil
	Sent    int                // 实际发送的字节数
	Err     error              // 包级别错误，不会终止循环
	Packet  *Packet            // 本次处理的数据包，RawData为实际发送的字节
}
