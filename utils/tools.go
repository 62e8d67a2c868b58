package utils

import (
	"bytes"
	"encoding/json"
	"runtime"
	"strconv"
)

func Conditional[T any](expr bool, a, b T) T {
	if expr {
		return a
	}

	return b
}

func ToJson(v any) string {
	jstr, _ := json.Marshal(v)
	return string(jstr)
}

var goroutinePrefix = []byte("goroutine ")

// GoroutineID 当前协程ID
//
// 通过 runtime.Stack 的头部解析得到, 只在调度判断中使用, 不能用于业务逻辑
func GoroutineID() int64 {
	buf := make([]byte, 64)
	buf = buf[:runtime.Stack(buf, false)]
	buf = bytes.TrimPrefix(buf, goroutinePrefix)

	idx := bytes.IndexByte(buf, ' ')
	if idx < 0 {
		return -1
	}

	id, err := strconv.ParseInt(string(buf[:idx]), 10, 64)
	if err != nil {
		return -1
	}

	return id
}

// CloneBytes 拷贝字节切片
func CloneBytes(src []byte) []byte {
	dst := make([]byte, len(src))
	copy(dst, src)
	return dst
}
