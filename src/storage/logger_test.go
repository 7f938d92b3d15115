package storage

import (
	"FlightDelayStats/src/config"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestLogger(t *testing.T, level LogLevel) (*Logger, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "app.log")
	logger, err := NewLogger(path, level)
	require.NoError(t, err)
	t.Cleanup(func() { _ = logger.Close() })
	return logger, path
}

func TestLoggerWritesEntries(t *testing.T) {
	logger, path := newTestLogger(t, DEBUG)

	logger.Info("聚合完成", zap.Int("airports", 3))
	logger.Warning("存在NaN")

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 2)

	assert.Regexp(t, `^\[\d{4}-\d{2}-\d{2} \d{2}:\d{2}:\d{2}\] INFO: 聚合完成`, lines[0])
	assert.Contains(t, lines[0], `"airports"`)
	assert.Contains(t, lines[1], "WARNING: 存在NaN")
}

func TestLoggerLevelFilter(t *testing.T) {
	logger, path := newTestLogger(t, WARNING)

	logger.Debug("hidden")
	logger.Info("hidden")
	logger.Error("shown")
	logger.Fatal("also shown")

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.NotContains(t, string(data), "hidden")
	assert.Contains(t, string(data), "ERROR: shown")
	assert.Contains(t, string(data), "FATAL: also shown")

	logger.SetLevel(DEBUG)
	logger.Debug("now visible")
	data, err = os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "DEBUG: now visible")
}

func TestLoggerSubscribe(t *testing.T) {
	logger, _ := newTestLogger(t, INFO)
	ch := logger.Subscribe()

	logger.Info("hello")

	select {
	case msg := <-ch:
		assert.Contains(t, msg, "INFO: hello")
	case <-time.After(time.Second):
		t.Fatal("订阅者未收到日志")
	}
}

func TestLoggerReopen(t *testing.T) {
	logger, path := newTestLogger(t, INFO)
	logger.Info("first")

	next := filepath.Join(filepath.Dir(path), "next.log")
	require.NoError(t, logger.Reopen(next))
	logger.Info("second")

	data, err := os.ReadFile(next)
	require.NoError(t, err)
	assert.Contains(t, string(data), "second")
	assert.NotContains(t, string(data), "first")
}

func TestLoggerCheckRotate(t *testing.T) {
	logger, path := newTestLogger(t, INFO)
	cfg := config.Default()
	cfg.LogMaxSize = "1 * 10"

	logger.Info("a message longer than ten bytes")
	require.NoError(t, logger.CheckRotate(cfg))

	matches, err := filepath.Glob(filepath.Join(filepath.Dir(path), "app.*.log"))
	require.NoError(t, err)
	assert.Len(t, matches, 1)

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Zero(t, info.Size())
}

func TestLoggerRotateRenameFailureKeepsWriting(t *testing.T) {
	logger, path := newTestLogger(t, INFO)
	cfg := config.Default()
	cfg.LogMaxSize = "10"

	// 占住接下来几秒的轮转文件名，使重命名失败
	dir := filepath.Dir(path)
	now := time.Now()
	for i := 0; i < 3; i++ {
		stamp := now.Add(time.Duration(i) * time.Second).Format("20060102150405")
		require.NoError(t, os.Mkdir(filepath.Join(dir, "app."+stamp+".log"), 0755))
	}

	logger.Info("before rotation attempt")
	require.Error(t, logger.CheckRotate(cfg))

	logger.Info("after failed rotation")
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "before rotation attempt")
	assert.Contains(t, string(data), "after failed rotation")
}

func TestLoggerClosed(t *testing.T) {
	logger, _ := newTestLogger(t, INFO)
	require.NoError(t, logger.Close())
	assert.ErrorIs(t, logger.CheckRotate(config.Default()), os.ErrClosed)
	assert.NotPanics(t, func() { logger.Info("after close") })
}

func TestParseLevel(t *testing.T) {
	cases := map[string]LogLevel{
		"debug":   DEBUG,
		"INFO":    INFO,
		"warn":    WARNING,
		"Warning": WARNING,
		"error":   ERROR,
		"fatal":   FATAL,
		"":        INFO,
		"verbose": INFO,
	}
	for in, want := range cases {
		assert.Equal(t, want, ParseLevel(in), in)
	}
}

func TestEval(t *testing.T) {
	assert.Equal(t, int64(10*1024*1024), eval("10 * 1024 * 1024"))
	assert.Equal(t, int64(512), eval("512"))
	assert.Equal(t, int64(0), eval("ten"))
}
