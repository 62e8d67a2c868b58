package log

import (
	"fmt"
	"os"
	"runtime"
	"sync"
	"sync/atomic"
	"time"
)

const (
	LevelDebug int32 = iota + 1
	LevelInfo
	LevelWarn
	LevelError
	LevelFatal
)

var (
	logPath  = "" // 日志路径, 为空时只输出到控制台
	minLevel = LevelDebug

	// level值 映射 名称
	lvmap = map[int32]string{
		LevelDebug: "DEBUG",
		LevelInfo:  "INFO",
		LevelWarn:  "WARN",
		LevelError: "ERROR",
		LevelFatal: "FATAL",
	}

	lvfnmap = map[int32]string{}   // 当前level值 对应的文件名
	lvfmap  = map[int32]*os.File{} // 当前level值 对应的文件句柄
	fmtx    = sync.Mutex{}
)

// SetLevel 设置最小输出级别, 低于该级别的日志将被丢弃
func SetLevel(lv int32) {
	if lv < LevelDebug || lv > LevelFatal {
		return
	}

	atomic.StoreInt32(&minLevel, lv)
}

// SetPath 设置日志文件目录
//   - 目录不存在时自动创建
//   - DEBUG 级别不落盘
func SetPath(path string) {
	n := len(path)
	if n == 0 {
		return
	}

	if path[n-1:n] == "/" {
		path = path[:n-1]
	}
	logPath = path

	_, err := os.Stat(logPath)
	if err != nil {
		if os.IsNotExist(err) {
			err = os.MkdirAll(logPath, 0755)
			if err != nil {
				panic(err)
			}
		}
	}
}

func Debug(args ...any) {
	base(LevelDebug, args...)
}

func Info(args ...any) {
	base(LevelInfo, args...)
}

func Warn(args ...any) {
	base(LevelWarn, args...)
}

func Error(args ...any) {
	base(LevelError, args...)
}

// Fatal 致命错误, 当调用此方法后, 进程将退出.
func Fatal(args ...any) {
	base(LevelFatal, args...)
	os.Exit(1)
}

func getFile(lv int32, tn time.Time) *os.File {
	fname := fmt.Sprintf("%s/%s.%s", logPath, tn.Format("2006-01-02"), lvmap[lv])
	if fname != lvfnmap[lv] {
		if lvfmap[lv] != nil {
			lvfmap[lv].Sync()
			lvfmap[lv].Close()
			lvfmap[lv] = nil
		}
	}

	if lvfmap[lv] == nil {
		lvfnmap[lv] = fname

		f, err := os.OpenFile(fname, os.O_WRONLY|os.O_APPEND|os.O_CREATE, 0755)
		if err != nil {
			fmt.Println(err)
			return nil
		}
		lvfmap[lv] = f
	}

	return lvfmap[lv]
}

func buildContent(args ...any) string {
	if len(args) == 0 {
		return ""
	}

	if len(args) == 1 {
		return fmt.Sprintf("%v", args[0])
	}

	if v, ok := args[0].(string); ok {
		return fmt.Sprintf(v, args[1:]...)
	}

	return fmt.Sprint(args...)
}

func base(lv int32, args ...any) {
	if lv < atomic.LoadInt32(&minLevel) {
		return
	}

	_, file, line, _ := runtime.Caller(2)
	content := buildContent(args...)
	tn := time.Now()

	fmtx.Lock()
	defer fmtx.Unlock()

	if len(logPath) > 0 && lv != LevelDebug {
		f := getFile(lv, tn)
		if f != nil {
			fmt.Fprintf(f, "[%s %s %s:%d] %v\n", lvmap[lv], tn.Format("2006-01-02 15:04:05.000000"), file, line, content)
		}
	}

	fmt.Printf("[%s %s %s:%d] %v\n", lvmap[lv], tn.Format("2006-01-02 15:04:05.000000"), file, line, content)
}
