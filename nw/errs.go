package nw

import (
	"errors"
	"os"
	"syscall"
)

var (
	ErrConfigNil       = errors.New("config is nil")
	ErrServiceNil      = errors.New("service is nil")
	ErrEventNil        = errors.New("event is nil")
	ErrEndpointInvalid = errors.New("endpoint is invalid")
	ErrNotMulticast    = errors.New("address is not multicast")
	ErrAlreadyStarted  = errors.New("already started")
	ErrNotStarted      = errors.New("not started")
	ErrNotConnected    = errors.New("not connected")
	ErrQueueOverflow   = errors.New("write queue high-water mark reached")
	ErrTlsConfigNil    = errors.New("tls config is nil")
	ErrMsgPattern      = errors.New("message pattern is invalid")
	ErrWsOpcode        = errors.New("ws opcode is invalid")
)

// OnError 回调的 category 取值
const (
	CategoryService   = "service"
	CategoryTcp       = "tcp"
	CategoryUdp       = "udp"
	CategoryTls       = "tls"
	CategoryWebsocket = "websocket"
	CategoryMessage   = "message"
)

// errnoOf 提取底层错误码
//   - 无法提取时返回 0
func errnoOf(err error) int {
	if err == nil {
		return 0
	}

	var errno syscall.Errno
	if errors.As(err, &errno) {
		return int(errno)
	}

	var sysErr *os.SyscallError
	if errors.As(err, &sysErr) {
		if errors.As(sysErr.Err, &errno) {
			return int(errno)
		}
	}

	return 0
}
