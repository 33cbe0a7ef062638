package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/haolipeng/ipv4_packet_forwarder/pkg/config"
)

func TestParseLevel(t *testing.T) {
	tests := map[string]logrus.Level{
		"DEBUG":   logrus.DebugLevel,
		"debug":   logrus.DebugLevel,
		"INFO":    logrus.InfoLevel,
		"WARN":    logrus.WarnLevel,
		"ERROR":   logrus.ErrorLevel,
		"":        logrus.WarnLevel,
		"verbose": logrus.WarnLevel,
	}
	for in, want := range tests {
		assert.Equal(t, want, parseLevel(in), in)
	}
}

func TestInitLoggerCreatesLogDir(t *testing.T) {
	oldHooks := logrus.StandardLogger().ReplaceHooks(make(logrus.LevelHooks))
	oldLevel := logrus.GetLevel()
	t.Cleanup(func() {
		logrus.StandardLogger().ReplaceHooks(oldHooks)
		logrus.SetLevel(oldLevel)
	})

	cfg := config.DefaultConfig()
	cfg.Log.Level = "DEBUG"
	cfg.Log.Dir = filepath.Join(t.TempDir(), "logs")

	require.NoError(t, InitLogger(cfg))
	assert.Equal(t, logrus.DebugLevel, logrus.GetLevel())

	info, err := os.Stat(cfg.Log.Dir)
	require.NoError(t, err)
	assert.True(t, info.IsDir())
	assert.NotEmpty(t, logrus.StandardLogger().Hooks[logrus.InfoLevel])
}

func TestRootCmdRejectsBadConfig(t *testing.T) {
	cmd := newRootCmd()
	cmd.SetArgs([]string{"--config", filepath.Join(t.TempDir(), "missing.yaml")})
	cmd.SetOut(os.Stderr)
	err := cmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to load config")
}
