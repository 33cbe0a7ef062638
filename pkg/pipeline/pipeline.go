package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// StopTimeout 等待处理循环退出的最长时间
var StopTimeout = 5 * time.Second

type pipeline struct {
	source    Source
	sink      Sink
	processor Processor
	running   bool
	mu        sync.Mutex
	status    string
	startTime time.Time
	cancel    context.CancelFunc
	done      chan error
	loopDone  chan struct{}
	closeOnce sync.Once
}

func NewPipeline() Pipeline {
	return &pipeline{
		status: "initialized",
	}
}

func (p *pipeline) SetSource(source Source) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.source = source
}

func (p *pipeline) SetSink(sink Sink) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.sink = sink
}

func (p *pipeline) SetProcessor(processor Processor) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.processor = processor
}

func (p *pipeline) Start(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.running {
		return fmt.Errorf("pipeline already running")
	}
	if p.source == nil {
		return fmt.Errorf("pipeline has no source")
	}
	if p.sink == nil {
		return fmt.Errorf("pipeline has no sink")
	}
	if p.processor == nil {
		return fmt.Errorf("pipeline has no processor")
	}

	loopCtx, cancel := context.WithCancel(ctx)
	p.cancel = cancel
	p.running = true
	p.startTime = time.Now()
	p.done = make(chan error, 1)
	p.loopDone = make(chan struct{})
	p.closeOnce = sync.Once{}

	logrus.Infof("Starting pipeline with processor %s", p.processor.Name())

	// 单个goroutine运行处理循环，数据包严格顺序处理
	go func(proc Processor, done chan error, loopDone chan struct{}) {
		defer close(loopDone)
		err := proc.Run(loopCtx)
		if err != nil {
			logrus.Errorf("Processor %s stopped with error: %v", proc.Name(), err)
		} else {
			logrus.Infof("Processor %s stopped", proc.Name())
		}
		p.mu.Lock()
		if err != nil {
			p.status = "failed"
		} else if p.status == "running" {
			p.status = "finished"
		}
		p.mu.Unlock()
		done <- err
		close(done)
	}(p.processor, p.done, p.loopDone)

	p.status = "running"
	logrus.Info("Pipeline is now running")
	return nil
}

func (p *pipeline) Stop() error {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return nil
	}
	p.running = false
	p.status = "stopping"
	cancel, loopDone := p.cancel, p.loopDone
	p.mu.Unlock()

	logrus.Info("Pipeline stopping...")
	cancel()

	// 等待处理循环退出后再关闭句柄，避免关闭正在使用的socket
	var timedOut bool
	select {
	case <-loopDone:
		logrus.Info("Packet loop completed gracefully")
	case <-time.After(StopTimeout):
		timedOut = true
		logrus.Warn("Timeout waiting for packet loop to complete")
	}

	err := p.closeHandles()

	p.mu.Lock()
	p.status = "stopped"
	p.mu.Unlock()

	logrus.Info("Pipeline stopped and cleaned up")
	if timedOut {
		return errors.Join(fmt.Errorf("timeout waiting for packet loop"), err)
	}
	return err
}

func (p *pipeline) closeHandles() error {
	var err error
	p.closeOnce.Do(func() {
		if cerr := p.source.Close(); cerr != nil {
			logrus.Errorf("Error closing source: %v", cerr)
			err = errors.Join(err, cerr)
		}
		if cerr := p.sink.Close(); cerr != nil {
			logrus.Errorf("Error closing sink: %v", cerr)
			err = errors.Join(err, cerr)
		}
	})
	return err
}

func (p *pipeline) Done() <-chan error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.done
}

// GetStats 汇总各组件的统计信息
func (p *pipeline) GetStats() map[string]interface{} {
	p.mu.Lock()
	defer p.mu.Unlock()

	stats := map[string]interface{}{
		"status": p.status,
	}
	if !p.startTime.IsZero() {
		stats["uptime"] = time.Since(p.startTime).String()
	}
	if sp, ok := p.source.(StatsProvider); ok {
		stats["source"] = sp.GetStats()
	}
	if sp, ok := p.processor.(StatsProvider); ok {
		stats["processor"] = sp.GetStats()
	}
	if sp, ok := p.sink.(StatsProvider); ok {
		stats["sink"] = sp.GetStats()
	}
	return stats
}

func (p *pipeline) Status() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.status
}
