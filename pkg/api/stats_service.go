package api

import (
	"net/http"

	"github.com/haolipeng/ipv4_packet_forwarder/pkg/ruleEngine"
	"github.com/labstack/echo/v4"
)

// 响应结构体
type Response struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

// StatsSource 提供流水线状态与统计
type StatsSource interface {
	Status() string
	GetStats() map[string]interface{}
}

// RuleView 规则的只读视图
type RuleView struct {
	RuleID      string `json:"rule_id"`
	RuleName    string `json:"rule_name"`
	Description string `json:"description"`
	State       string `json:"state"`
	Match       string `json:"match"`
	Action      string `json:"action"`
	Label       string `json:"label"`
	Priority    int    `json:"priority"`
}

// StatsService 状态查询服务
type StatsService struct {
	stats StatsSource
	rules []RuleView
}

// NewStatsService 创建状态查询服务，规则表为固定策略，创建时生成快照
func NewStatsService(stats StatsSource, engine *ruleEngine.Engine) *StatsService {
	rules := engine.Rules()
	views := make([]RuleView, 0, len(rules))
	for i := range rules {
		r := &rules[i]
		views = append(views, RuleView{
			RuleID:      r.RuleID,
			RuleName:    r.RuleName,
			Description: r.Description,
			State:       r.State,
			Match:       r.Match.String(),
			Action:      r.Action.String(),
			Label:       r.EffectiveLabel(),
			Priority:    i + 1,
		})
	}
	return &StatsService{stats: stats, rules: views}
}

// GetStatus 获取流水线状态
func (ss *StatsService) GetStatus(c echo.Context) error {
	return c.JSON(http.StatusOK, Response{
		Code:    http.StatusOK,
		Message: "ok",
		Data:    map[string]string{"status": ss.stats.Status()},
	})
}

// GetStats 获取统计信息
func (ss *StatsService) GetStats(c echo.Context) error {
	return c.JSON(http.StatusOK, Response{
		Code:    http.StatusOK,
		Message: "ok",
		Data:    ss.stats.GetStats(),
	})
}

// GetRules 获取规则表，按评估顺序排列
func (ss *StatsService) GetRules(c echo.Context) error {
	return c.JSON(http.StatusOK, Response{
		Code:    http.StatusOK,
		Message: "ok",
		Data:    ss.rules,
	})
}

// GetRule 获取指定规则
func (ss *StatsService) GetRule(c echo.Context) error {
	ruleID := c.Param("rule_id")
	for _, r := range ss.rules {
		if r.RuleID == ruleID {
			return c.JSON(http.StatusOK, Response{
				Code:    http.StatusOK,
				Message: "ok",
				Data:    r,
			})
		}
	}
	return HandleError(c, NewRuleNotFoundError(ruleID))
}
