package ruleEngine

// DefaultRules 是固定的过滤策略，自上而下评估
var DefaultRules = []Rule{
	{
		RuleID:      "block_192.168.2.3_to_192.168.2.1",
		RuleName:    "block host 3 to gateway",
		Description: "阻挡所有从 192.168.2.3 到 192.168.2.1 的数据包",
		State:       "enable",
		Match:       MustAddrPair("192.168.2.3", "192.168.2.1"),
		Action:      ActionDrop,
		Label:       LabelBlock,
	},
	{
		RuleID:      "allow_192.168.2.4_to_192.168.2.1",
		RuleName:    "allow host 4 to gateway",
		Description: "允许所有从 192.168.2.4 到 192.168.2.1 的数据包",
		State:       "enable",
		Match:       MustAddrPair("192.168.2.4", "192.168.2.1"),
		Action:      ActionForward,
		Label:       LabelAllow,
	},
}

// NewDefaultEngine 使用固定策略创建规则引擎
func NewDefaultEngine() *Engine {
	e, err := NewEngine(DefaultRules)
	if err != nil {
		panic(err)
	}
	return e
}
