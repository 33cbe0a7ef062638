package ruleEngine

import (
	"fmt"
	"net/netip"
)

// Engine 按顺序评估规则，首条匹配生效，无匹配时默认放行
type Engine struct {
	rules []Rule
}

// NewEngine 创建规则引擎，规则按给定顺序评估
func NewEngine(rules []Rule) (*Engine, error) {
	seen := make(map[string]struct{}, len(rules))
	for i := range rules {
		r := &rules[i]
		if r.Match == nil {
			return nil, fmt.Errorf("rule %q has no matcher", r.RuleID)
		}
		if r.Action != ActionForward && r.Action != ActionDrop {
			return nil, fmt.Errorf("rule %q has invalid action %d", r.RuleID, r.Action)
		}
		if r.RuleID != "" {
			if _, ok := seen[r.RuleID]; ok {
				return nil, fmt.Errorf("duplicate rule id %q", r.RuleID)
			}
			seen[r.RuleID] = struct{}{}
		}
	}

	cp := make([]Rule, len(rules))
	copy(cp, rules)
	return &Engine{rules: cp}, nil
}

// Evaluate 返回第一条匹配规则的决策
func (e *Engine) Evaluate(src, dst netip.Addr) Verdict {
	for i := range e.rules {
		r := &e.rules[i]
		if !r.Enabled() {
			continue
		}
		if r.Match.Match(src, dst) {
			return Verdict{Action: r.Action, Label: r.EffectiveLabel(), Rule: r}
		}
	}
	return Verdict{Action: ActionForward, Label: LabelDefault}
}

// Rules 返回规则表的副本
func (e *Engine) Rules() []Rule {
	cp := make([]Rule, len(e.rules))
	copy(cp, e.rules)
	return cp
}

// EffectiveLabel 返回规则的决策日志标签，未设置时按动作推导
func (r *Rule) EffectiveLabel() string {
	if r.Label != "" {
		return r.Label
	}
	if r.Action == ActionDrop {
		return LabelBlock
	}
	return LabelAllow
}
