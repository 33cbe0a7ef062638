package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	SourceTypeRaw  = "raw"
	SourceTypeFile = "file"
	SinkTypeRaw    = "raw"
	SinkTypeFile   = "file"
)

// Config 只描述收发句柄、日志与状态接口，过滤规则是固定策略，不在配置中
type Config struct {
	Source struct {
		Type        string        `yaml:"type"`
		Interface   string        `yaml:"interface"`
		Filename    string        `yaml:"filename"`
		ReadTimeout time.Duration `yaml:"read_timeout"`
	} `yaml:"source"`

	Sink struct {
		Type        string `yaml:"type"`
		Filename    string `yaml:"filename"`
		MaxFileSize int64  `yaml:"max_file_size"`
	} `yaml:"sink"`

	Log struct {
		Level      string `yaml:"level"`
		Dir        string `yaml:"dir"`
		Filename   string `yaml:"filename"`
		MaxAge     int    `yaml:"max_age"`
		RotateTime int    `yaml:"rotate_time"`
	} `yaml:"log"`

	API struct {
		Enable bool   `yaml:"enable"`
		Host   string `yaml:"host"`
		Port   string `yaml:"port"`
	} `yaml:"api"`
}

// DefaultConfig 返回默认配置：原始套接字收发，仅输出到控制台
func DefaultConfig() *Config {
	cfg := &Config{}
	cfg.Source.Type = SourceTypeRaw
	cfg.Source.ReadTimeout = 500 * time.Millisecond
	cfg.Sink.Type = SinkTypeRaw
	cfg.Sink.Filename = "forwarded"
	cfg.Log.Level = "INFO"
	cfg.Log.Filename = "ipv4_forwarder.log"
	cfg.Log.MaxAge = 24
	cfg.Log.RotateTime = 1
	cfg.API.Host = "127.0.0.1"
	cfg.API.Port = "9090"
	return cfg
}

func (c *Config) Validate() error {
	switch c.Source.Type {
	case SourceTypeRaw:
		// 阻塞接收依赖超时轮询检查停止信号
		if c.Source.ReadTimeout <= 0 {
			return fmt.Errorf("source read timeout must be positive for raw source")
		}
	case SourceTypeFile:
		if c.Source.Filename == "" {
			return fmt.Errorf("source filename is required for file source")
		}
	default:
		return fmt.Errorf("unknown source type %q", c.Source.Type)
	}

	switch c.Sink.Type {
	case SinkTypeRaw:
	case SinkTypeFile:
		if c.Sink.Filename == "" {
			return fmt.Errorf("sink filename is required for file sink")
		}
		if c.Sink.MaxFileSize < 0 {
			return fmt.Errorf("sink max file size must not be negative")
		}
	default:
		return fmt.Errorf("unknown sink type %q", c.Sink.Type)
	}

	if c.Log.Dir != "" && c.Log.Filename == "" {
		return fmt.Errorf("log filename is required when log dir is set")
	}
	if c.Log.MaxAge < 0 || c.Log.RotateTime < 0 {
		return fmt.Errorf("log max age and rotate time must not be negative")
	}

	if c.API.Enable && c.API.Port == "" {
		return fmt.Errorf("api port is required when api is enabled")
	}
	return nil
}

// LoadConfig 在默认配置之上加载YAML配置文件，filename为空时只使用默认配置
func LoadConfig(filename string) (*Config, error) {
	cfg := DefaultConfig()
	if filename == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}
