package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/haolipeng/ipv4_packet_forwarder/pkg/api"
	"github.com/haolipeng/ipv4_packet_forwarder/pkg/config"
	"github.com/haolipeng/ipv4_packet_forwarder/pkg/metrics"
	"github.com/haolipeng/ipv4_packet_forwarder/pkg/pipeline"
	"github.com/haolipeng/ipv4_packet_forwarder/pkg/processor"
	"github.com/haolipeng/ipv4_packet_forwarder/pkg/ruleEngine"
	"github.com/haolipeng/ipv4_packet_forwarder/pkg/sink"
	"github.com/haolipeng/ipv4_packet_forwarder/pkg/source"
)

func newRootCmd() *cobra.Command {
	var configFile string

	cmd := &cobra.Command{
		Use:          "ipv4-forwarder",
		Short:        "User-space IPv4 forwarder with a fixed address-pair filter",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadConfig(configFile)
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}
			if err := InitLogger(cfg); err != nil {
				return fmt.Errorf("failed to initialize logger: %w", err)
			}
			return run(cfg)
		},
	}
	cmd.Flags().StringVarP(&configFile, "config", "c", "", "path to YAML config file")
	return cmd
}

func newSource(cfg *config.Config) (pipeline.Source, error) {
	if cfg.Source.Type == config.SourceTypeFile {
		return source.NewPcapFileSource(cfg.Source.Filename)
	}
	return source.NewRawSource(cfg.Source.Interface, cfg.Source.ReadTimeout)
}

func newSink(cfg *config.Config) (pipeline.Sink, error) {
	if cfg.Sink.Type == config.SinkTypeFile {
		return sink.NewPcapSink(cfg.Sink.Filename, cfg.Sink.MaxFileSize)
	}
	return sink.NewRawSink()
}

func run(cfg *config.Config) error {
	logrus.Info("Starting IPv4 packet forwarder...")

	// 创建context用于控制生命周期
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 创建数据源
	src, err := newSource(cfg)
	if err != nil {
		return fmt.Errorf("failed to create %s source: %w", cfg.Source.Type, err)
	}

	// 设置输出
	out, err := newSink(cfg)
	if err != nil {
		src.Close()
		return fmt.Errorf("failed to create %s sink: %w", cfg.Sink.Type, err)
	}

	prom := metrics.NewPromMetrics()
	engine := ruleEngine.NewDefaultEngine()
	proc := processor.NewPacketProcessor(src, out, engine, processor.WithPromMetrics(prom))

	p := pipeline.NewPipeline()
	p.SetSource(src)
	p.SetSink(out)
	p.SetProcessor(proc)

	// 启动pipeline
	if err := p.Start(ctx); err != nil {
		src.Close()
		out.Close()
		return fmt.Errorf("failed to start pipeline: %w", err)
	}
	logrus.Info("Pipeline started successfully")

	// 启动状态接口
	var server *api.Server
	if cfg.API.Enable {
		server = api.NewServer(cfg)
		server.RegisterStatsService(api.NewStatsService(p, engine))
		server.RegisterMetrics(prom.Registry)
		go func() {
			if err := server.Start(); err != nil {
				logrus.Errorf("API server failed: %v", err)
			}
		}()
		logrus.Infof("API server listening on %s:%s", cfg.API.Host, cfg.API.Port)
	}

	// 等待中断信号或处理循环结束
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	var runErr error
	select {
	case sig := <-sigChan:
		logrus.Infof("Received signal %v, shutting down...", sig)
	case runErr = <-p.Done():
		if runErr != nil {
			logrus.Errorf("Pipeline failed: %v", runErr)
		} else {
			logrus.Info("Source exhausted, shutting down...")
		}
	}

	// 优雅退出
	cancel()
	if err := p.Stop(); err != nil {
		logrus.Errorf("Error stopping pipeline: %v", err)
	}
	if server != nil {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := server.Stop(shutdownCtx); err != nil {
			logrus.Errorf("Error stopping API server: %v", err)
		}
		shutdownCancel()
	}

	logrus.WithFields(logrus.Fields(proc.GetStats())).Info("Shutdown complete")
	return runErr
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
