package nw

import (
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gox/netio/utils"
)

const DISCONNECT_DRAIN_TIMEOUT = 5 * time.Second // 优雅关闭时排空写队列的时限

// streamOwner 流会话的宿主
//   - TLS 服务端与 TCP/TLS 客户端实现, 负责把事件换成各自的回调
type streamOwner interface {
	handleData(sess *streamSess, data []byte)
	handleSent(sess *streamSess, sent, pending int)
	handleClosed(sess *streamSess, err error)
	handleError(code int, msg string)
}

// closeWriter 支持半关闭的连接
//   - *net.TCPConn 发送 FIN; *tls.Conn 发送 close_notify
type closeWriter interface {
	CloseWrite() error
}

// streamSess 阻塞式流会话
//
// 每条连接两个协程: 读泵投递 OnData, 写泵排空写队列。
// 回调经 strand 序列化, 同一会话的回调互不重叠。
type streamSess struct {
	id        string
	proto     Protocol
	conn      net.Conn
	svc       *Service
	owner     streamOwner
	strand    *strand
	wq        *WriteQueue
	stats     *Stats // 会话统计; 客户端传入自身的计数器跨重连累计
	totals    *Stats // 所属服务端的累计统计, 可为 nil
	connected int32
	graceful  int32
	wakeCh    chan struct{}
	wg        sync.WaitGroup
	userData  any
}

func newStreamSess(svc *Service, conn net.Conn, proto Protocol, owner streamOwner, stats, totals *Stats, highWater int) *streamSess {
	if stats == nil {
		stats = &Stats{}
	}

	return &streamSess{
		id:        uuid.NewString(),
		proto:     proto,
		conn:      conn,
		svc:       svc,
		owner:     owner,
		strand:    newStrand(svc),
		wq:        NewWriteQueue(highWater),
		stats:     stats,
		totals:    totals,
		connected: 1,
		wakeCh:    make(chan struct{}, 1),
	}
}

// start 启动读写泵
//   - 宿主先投递 OnConnected 再调用, 保证回调次序
func (this_ *streamSess) start() {
	this_.wg.Add(2)
	go this_.readPump()
	go this_.writePump()
}

func (this_ *streamSess) ID() string {
	return this_.id
}

func (this_ *streamSess) Protocol() Protocol {
	return this_.proto
}

func (this_ *streamSess) LocalAddr() net.Addr {
	return this_.conn.LocalAddr()
}

func (this_ *streamSess) RemoteAddr() net.Addr {
	return this_.conn.RemoteAddr()
}

func (this_ *streamSess) IsConnected() bool {
	return atomic.LoadInt32(&this_.connected) == 1
}

func (this_ *streamSess) Stats() *Stats {
	return this_.stats
}

func (this_ *streamSess) GetUserData() any {
	return this_.userData
}

func (this_ *streamSess) SetUserData(userData any) {
	this_.userData = userData
}

// Send 发送数据
//   - 入队并唤醒写泵, 不阻塞
func (this_ *streamSess) Send(data []byte) int {
	if atomic.LoadInt32(&this_.connected) != 1 || len(data) == 0 {
		return 0
	}

	ok, kick := this_.wq.Push(utils.CloneBytes(data))
	if !ok {
		this_.owner.handleError(0, ErrQueueOverflow.Error())
		return 0
	}

	if kick {
		this_.wake()
	}

	return len(data)
}

// Disconnect 发起优雅关闭
//   - 写泵带时限排空剩余数据, 半关闭后释放连接
func (this_ *streamSess) Disconnect() bool {
	if !atomic.CompareAndSwapInt32(&this_.connected, 1, 0) {
		return false
	}

	atomic.StoreInt32(&this_.graceful, 1)
	close(this_.wakeCh)
	return true
}

// terminate 硬关闭 (错误路径)
func (this_ *streamSess) terminate() {
	if atomic.CompareAndSwapInt32(&this_.connected, 1, 0) {
		close(this_.wakeCh)
	}

	this_.conn.Close()
}

// join 等待读写泵退出
func (this_ *streamSess) join() {
	this_.wg.Wait()
}

func (this_ *streamSess) wake() {
	defer func() {
		// Disconnect 并发关闭管道时放弃唤醒, 写泵此时已在排空
		recover()
	}()

	select {
	case this_.wakeCh <- struct{}{}:
	default:
	}
}

func (this_ *streamSess) readPump() {
	defer this_.wg.Done()

	rbuf := acquireRecvBuf()
	defer releaseRecvBuf(rbuf)

	buf := rbuf.data

	var closeErr error

	for {
		n, err := this_.conn.Read(buf)
		if n > 0 {
			this_.stats.AddRecv(n)
			if this_.totals != nil {
				this_.totals.AddRecv(n)
			}

			data := utils.CloneBytes(buf[:n])
			this_.strand.Post(func() {
				this_.owner.handleData(this_, data)
			})
		}

		if err != nil {
			closeErr = err
			break
		}
	}

	this_.terminate()

	err := closeErr
	this_.strand.Post(func() {
		this_.owner.handleClosed(this_, err)
	})
}

func (this_ *streamSess) writePump() {
	defer this_.wg.Done()

	for range this_.wakeCh {
		if !this_.drain() {
			this_.terminate()
			return
		}
	}

	// 唤醒管道已关闭: 优雅关闭, 带时限发完剩余数据
	if atomic.LoadInt32(&this_.graceful) == 1 {
		this_.conn.SetWriteDeadline(time.Now().Add(DISCONNECT_DRAIN_TIMEOUT))
		this_.drain()

		if cw, ok := this_.conn.(closeWriter); ok {
			cw.CloseWrite()
		}
	}

	this_.conn.Close()
}

// drain 排空写队列
//   - 返回 false 表示写失败
func (this_ *streamSess) drain() bool {
	data, _ := this_.wq.Front()

	for data != nil {
		n, err := this_.conn.Write(data)
		if err != nil {
			this_.owner.handleError(errnoOf(err), err.Error())
			return false
		}

		this_.stats.AddSent(n)
		if this_.totals != nil {
			this_.totals.AddSent(n)
		}

		sent := n
		next, _ := this_.wq.Shift()
		pending := this_.wq.Pending()

		this_.strand.Post(func() {
			this_.owner.handleSent(this_, sent, pending)
		})

		data = next
	}

	return true
}
