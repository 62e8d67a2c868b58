package log

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestBuildContent(t *testing.T) {
	require.Equal(t, "", buildContent())
	require.Equal(t, "hello", buildContent("hello"))
	require.Equal(t, "a=1 b=x", buildContent("a=%d b=%s", 1, "x"))
	require.Equal(t, "42", buildContent(42))
}

func TestSetPath(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "logs")

	SetPath(dir)
	defer func() { logPath = "" }()

	_, err := os.Stat(dir)
	require.NoError(t, err)

	// 非 DEBUG 级别落盘
	Info("hello %s", "file")

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.NotEmpty(t, entries)
}

func TestSetLevel(t *testing.T) {
	SetLevel(LevelError)
	defer SetLevel(LevelDebug)

	// 低于阈值的日志被丢弃, 不 panic 即可
	Debug("dropped")
	Info("dropped")
	Error("kept")

	SetLevel(0) // 非法值被忽略
	Error("still kept")
}
