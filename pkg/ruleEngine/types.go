package ruleEngine

import (
	"fmt"
	"net/netip"
)

// Action 规则匹配后的动作
type Action uint8

const (
	ActionForward Action = iota + 1 // 转发数据包
	ActionDrop                      // 丢弃数据包
)

func (a Action) String() string {
	switch a {
	case ActionForward:
		return "FORWARD"
	case ActionDrop:
		return "DROP"
	default:
		return "UNKNOWN"
	}
}

// 决策日志标签
const (
	LabelBlock   = "BLOCK"
	LabelAllow   = "ALLOW"
	LabelDefault = "DEFAULT"
)

// Matcher 是规则的谓词，作用于源地址和目的地址
type Matcher interface {
	Match(src, dst netip.Addr) bool
	String() string
}

// AddrPair 精确匹配一对源/目的地址，不做前缀匹配
type AddrPair struct {
	Src netip.Addr
	Dst netip.Addr
}

// NewAddrPair 由点分十进制字符串构造地址对
func NewAddrPair(src, dst string) (AddrPair, error) {
	s, err := netip.ParseAddr(src)
	if err != nil {
		return AddrPair{}, fmt.Errorf("invalid source address %q: %w", src, err)
	}
	d, err := netip.ParseAddr(dst)
	if err != nil {
		return AddrPair{}, fmt.Errorf("invalid destination address %q: %w", dst, err)
	}
	return AddrPair{Src: s, Dst: d}, nil
}

// MustAddrPair 同 NewAddrPair，解析失败时panic，用于固定规则表
func MustAddrPair(src, dst string) AddrPair {
	p, err := NewAddrPair(src, dst)
	if err != nil {
		panic(err)
	}
	return p
}

func (p AddrPair) Match(src, dst netip.Addr) bool {
	return src == p.Src && dst == p.Dst
}

func (p AddrPair) String() string {
	return fmt.Sprintf("src == %s && dst == %s", p.Src, p.Dst)
}

// Rule 表示一条过滤规则
type Rule struct {
	RuleID      string  // 规则ID
	RuleName    string  // 规则名称
	Description string  // 规则描述
	State       string  // 规则状态 enable/disable
	Match       Matcher // 匹配谓词
	Action      Action  // 匹配后的动作
	Label       string  // 决策日志标签
}

// Enabled 规则是否启用
func (r *Rule) Enabled() bool {
	return r.State == "" || r.State == "enable"
}

// Verdict 表示过滤决策
type Verdict struct {
	Action Action
	Label  string
	Rule   *Rule // 默认放行时为nil
}

// IsDrop 决策是否为丢弃
func (v Verdict) IsDrop() bool {
	return v.Action == ActionDrop
}
