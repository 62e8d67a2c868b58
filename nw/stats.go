package nw

import "sync/atomic"

// Stats 连接统计
//   - 计数器均为原子操作, 可以在任意协程读取
type Stats struct {
	bytesSent int64
	bytesRecv int64
	msgsSent  int64
	msgsRecv  int64
}

// AddSent 累计一次发送
func (this_ *Stats) AddSent(n int) {
	atomic.AddInt64(&this_.bytesSent, int64(n))
	atomic.AddInt64(&this_.msgsSent, 1)
}

// AddRecv 累计一次接收
func (this_ *Stats) AddRecv(n int) {
	atomic.AddInt64(&this_.bytesRecv, int64(n))
	atomic.AddInt64(&this_.msgsRecv, 1)
}

func (this_ *Stats) BytesSent() int64 {
	return atomic.LoadInt64(&this_.bytesSent)
}

func (this_ *Stats) BytesRecv() int64 {
	return atomic.LoadInt64(&this_.bytesRecv)
}

// MsgsSent 发送的消息数
//   - 数据报或 websocket 帧; 字节流协议按写操作计
func (this_ *Stats) MsgsSent() int64 {
	return atomic.LoadInt64(&this_.msgsSent)
}

func (this_ *Stats) MsgsRecv() int64 {
	return atomic.LoadInt64(&this_.msgsRecv)
}

func (this_ *Stats) Reset() {
	atomic.StoreInt64(&this_.bytesSent, 0)
	atomic.StoreInt64(&this_.bytesRecv, 0)
	atomic.StoreInt64(&this_.msgsSent, 0)
	atomic.StoreInt64(&this_.msgsRecv, 0)
}
