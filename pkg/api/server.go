package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/haolipeng/ipv4_packet_forwarder/pkg/config"
	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Server HTTP 服务器
type Server struct {
	echo *echo.Echo
	addr string
}

// NewServer 创建一个新的 HTTP 服务器
func NewServer(cfg *config.Config) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	addr := fmt.Sprintf("%s:%s", cfg.API.Host, cfg.API.Port)

	return &Server{
		echo: e,
		addr: addr,
	}
}

// Start 启动 HTTP 服务器，阻塞直到服务器关闭
func (s *Server) Start() error {
	if err := s.echo.Start(s.addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Stop 停止 HTTP 服务器
func (s *Server) Stop(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}

// GetEcho 获取Echo实例
func (s *Server) GetEcho() *echo.Echo {
	return s.echo
}

// RegisterStatsService 注册状态与规则查询服务
func (s *Server) RegisterStatsService(ss *StatsService) {
	s.echo.GET("/status", ss.GetStatus)       // 流水线状态
	s.echo.GET("/stats", ss.GetStats)         // 各组件统计信息
	s.echo.GET("/rules", ss.GetRules)         // 固定规则表
	s.echo.GET("/rules/:rule_id", ss.GetRule) // 指定规则
}

// RegisterMetrics 注册Prometheus指标接口
func (s *Server) RegisterMetrics(gatherer prometheus.Gatherer) {
	s.echo.GET("/metrics", echo.WrapHandler(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))
}
