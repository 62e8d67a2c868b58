package nw

import (
	"net"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/panjf2000/gnet/v2"
)

// gnetISess gnet 会话的内部接口
type gnetISess interface {
	ISess

	base() *gnetSess
}

// gnetSess gnet 会话基类
//
// 写路径: Send 入队, 无在飞写操作时发起 AsyncWrite;
// 完成回调确认出队、触发 OnSent 并串联下一次写。
type gnetSess struct {
	id         string
	c          gnet.Conn
	owner      *baseServer
	self       ISess // 具体会话
	strand     *strand
	wq         *WriteQueue
	stats      Stats
	connected  int32
	closing    int32
	awaitClose int32 // 写完后等待对端关闭 (websocket 关闭帧)
	closed     int32 // OnDisconnected 只触发一次
	closeTimer *time.Timer
	userData   any
}

func (this_ *gnetSess) init(c gnet.Conn, owner *baseServer, self ISess) {
	this_.id = uuid.NewString()
	this_.c = c
	this_.owner = owner
	this_.self = self
	this_.strand = newStrand(owner.svc)
	this_.wq = NewWriteQueue(owner.highWater)
	this_.connected = 1
}

func (this_ *gnetSess) base() *gnetSess {
	return this_
}

func (this_ *gnetSess) ID() string {
	return this_.id
}

func (this_ *gnetSess) LocalAddr() net.Addr {
	return this_.c.LocalAddr()
}

func (this_ *gnetSess) RemoteAddr() net.Addr {
	return this_.c.RemoteAddr()
}

func (this_ *gnetSess) IsConnected() bool {
	return atomic.LoadInt32(&this_.connected) == 1
}

func (this_ *gnetSess) Stats() *Stats {
	return &this_.stats
}

func (this_ *gnetSess) GetUserData() any {
	return this_.userData
}

func (this_ *gnetSess) SetUserData(userData any) {
	this_.userData = userData
}

// Disconnect 发起优雅关闭
//   - 排空写队列后关闭连接
func (this_ *gnetSess) Disconnect() bool {
	if !atomic.CompareAndSwapInt32(&this_.closing, 0, 1) {
		return false
	}

	if atomic.LoadInt32(&this_.connected) != 1 {
		return false
	}

	if this_.wq.Pending() == 0 {
		this_.c.Close()
	}

	return true
}

// queueWrite 入队并在必要时发起写操作
//   - framed: 实际写到套接字的数据; accounted: 计入统计的载荷字节数
func (this_ *gnetSess) queueWrite(framed []byte, accounted int) int {
	if atomic.LoadInt32(&this_.connected) != 1 || atomic.LoadInt32(&this_.closing) == 1 {
		return 0
	}

	ok, kick := this_.wq.PushTag(accounted, framed)
	if !ok {
		this_.owner.postError(0, ErrQueueOverflow.Error())
		return 0
	}

	if kick {
		data, tag := this_.wq.Front()
		this_.asyncWrite(data, tag)
	}

	return accounted
}

func (this_ *gnetSess) asyncWrite(data []byte, accounted int) {
	err := this_.c.AsyncWrite(data, func(c gnet.Conn, err error) error {
		if err != nil {
			this_.owner.postError(errnoOf(err), err.Error())
			c.Close()
			return nil
		}

		this_.stats.AddSent(accounted)
		this_.owner.totals.AddSent(accounted)

		next, tag := this_.wq.Shift()
		sent := accounted
		pending := this_.wq.Pending()

		this_.strand.Post(func() {
			this_.owner.event.OnSent(this_.self, sent, pending)
		})

		if next != nil {
			this_.asyncWrite(next, tag)
		} else if atomic.LoadInt32(&this_.closing) == 1 && atomic.LoadInt32(&this_.awaitClose) == 0 {
			c.Close()
		}

		return nil
	})

	if err != nil {
		this_.owner.postError(errnoOf(err), err.Error())
	}
}

// deliver 接收数据入账并投递 OnData
func (this_ *gnetSess) deliver(data []byte) {
	this_.stats.AddRecv(len(data))
	this_.owner.totals.AddRecv(len(data))

	this_.strand.Post(func() {
		if err := this_.owner.event.OnData(this_.self, data); err != nil {
			this_.self.Disconnect()
		}
	})
}
