package nw

import (
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// gorillaOwner 阻塞式 websocket 会话的宿主
type gorillaOwner interface {
	handleMessage(sess *gorillaSess, msg WsMessage)
	handleSent(sess *gorillaSess, sent, pending int)
	handleClosed(sess *gorillaSess, err error)
	handleError(code int, msg string)
}

// gorillaSess 阻塞式 websocket 会话
//
// WSS 服务端与 websocket 客户端共用。ping/pong 由底层库应答,
// 对端关闭帧走断开路径并携带状态码与原因。
type gorillaSess struct {
	id          string
	proto       Protocol
	conn        *websocket.Conn
	svc         *Service
	owner       gorillaOwner
	strand      *strand
	wq          *WriteQueue
	stats       *Stats
	totals      *Stats
	connected   int32
	graceful    int32
	closeSent   int32
	sendCode    int    // 本端关闭帧状态码
	sendReason  string // 本端关闭帧原因
	closeCode   int    // 对端关闭帧状态码
	closeReason string
	closeTimer  *time.Timer
	wakeCh      chan struct{}
	wg          sync.WaitGroup
	userData    any
	realIP      string
}

func newGorillaSess(svc *Service, conn *websocket.Conn, proto Protocol, owner gorillaOwner, stats, totals *Stats, highWater int) *gorillaSess {
	if stats == nil {
		stats = &Stats{}
	}

	return &gorillaSess{
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
		sendCode:  int(websocket.CloseNormalClosure),
		wakeCh:    make(chan struct{}, 1),
	}
}

func (this_ *gorillaSess) start() {
	this_.wg.Add(2)
	go this_.readPump()
	go this_.writePump()
}

func (this_ *gorillaSess) ID() string {
	return this_.id
}

func (this_ *gorillaSess) Protocol() Protocol {
	return this_.proto
}

func (this_ *gorillaSess) LocalAddr() net.Addr {
	return this_.conn.LocalAddr()
}

func (this_ *gorillaSess) RemoteAddr() net.Addr {
	return this_.conn.RemoteAddr()
}

func (this_ *gorillaSess) IsConnected() bool {
	return atomic.LoadInt32(&this_.connected) == 1
}

func (this_ *gorillaSess) Stats() *Stats {
	return this_.stats
}

func (this_ *gorillaSess) GetUserData() any {
	return this_.userData
}

func (this_ *gorillaSess) SetUserData(userData any) {
	this_.userData = userData
}

// RealRemoteIP 获取真实IP
func (this_ *gorillaSess) RealRemoteIP() string {
	if len(this_.realIP) > 0 {
		return this_.realIP
	}

	host, _, err := net.SplitHostPort(this_.conn.RemoteAddr().String())
	if err != nil {
		return "unknown"
	}

	return host
}

// CloseCode 对端关闭帧携带的状态码, 未收到时为 0
func (this_ *gorillaSess) CloseCode() int {
	return this_.closeCode
}

func (this_ *gorillaSess) CloseReason() string {
	return this_.closeReason
}

// Send 发送二进制帧
func (this_ *gorillaSess) Send(data []byte) int {
	return this_.SendMessage(WsOpcode_Binary, data)
}

// SendText 发送文本帧
func (this_ *gorillaSess) SendText(text string) int {
	return this_.SendMessage(WsOpcode_Text, []byte(text))
}

// SendMessage 发送指定类型的单帧消息
func (this_ *gorillaSess) SendMessage(op WsOpcode, payload []byte) int {
	if atomic.LoadInt32(&this_.connected) != 1 {
		return 0
	}

	switch op {
	case WsOpcode_Text, WsOpcode_Binary, WsOpcode_Ping, WsOpcode_Pong:
	default:
		return 0
	}

	ok, kick := this_.wq.PushTag(int(op), append([]byte(nil), payload...))
	if !ok {
		this_.owner.handleError(0, ErrQueueOverflow.Error())
		return 0
	}

	if kick {
		this_.wake()
	}

	return len(payload)
}

// Disconnect 发送 1000 关闭帧并等待对端关闭
func (this_ *gorillaSess) Disconnect() bool {
	return this_.DisconnectWith(int(websocket.CloseNormalClosure), "")
}

// DisconnectWith 发送关闭帧并等待对端关闭或超时
func (this_ *gorillaSess) DisconnectWith(code int, reason string) bool {
	if !atomic.CompareAndSwapInt32(&this_.connected, 1, 0) {
		return false
	}

	this_.sendCode = code
	this_.sendReason = reason
	atomic.StoreInt32(&this_.graceful, 1)
	close(this_.wakeCh)
	return true
}

// join 等待读写泵退出
func (this_ *gorillaSess) join() {
	this_.wg.Wait()
}

func (this_ *gorillaSess) terminate() {
	if atomic.CompareAndSwapInt32(&this_.connected, 1, 0) {
		close(this_.wakeCh)
	}

	if this_.closeTimer != nil {
		this_.closeTimer.Stop()
	}

	this_.conn.Close()
}

func (this_ *gorillaSess) wake() {
	defer func() {
		recover()
	}()

	select {
	case this_.wakeCh <- struct{}{}:
	default:
	}
}

func (this_ *gorillaSess) readPump() {
	defer this_.wg.Done()

	var closeErr error

	for {
		t, data, err := this_.conn.ReadMessage()
		if err != nil {
			var ce *websocket.CloseError
			if websocket.IsCloseError(err,
				websocket.CloseNormalClosure,
				websocket.CloseGoingAway,
				websocket.CloseNoStatusReceived,
				websocket.CloseAbnormalClosure) {
				ce = err.(*websocket.CloseError)
				this_.closeCode = ce.Code
				this_.closeReason = ce.Text
			} else {
				closeErr = err
			}
			break
		}

		this_.stats.AddRecv(len(data))
		if this_.totals != nil {
			this_.totals.AddRecv(len(data))
		}

		msg := WsMessage{Opcode: WsOpcode(t), Payload: data}
		this_.strand.Post(func() {
			this_.owner.handleMessage(this_, msg)
		})
	}

	this_.terminate()

	err := closeErr
	this_.strand.Post(func() {
		this_.owner.handleClosed(this_, err)
	})
}

func (this_ *gorillaSess) writePump() {
	defer this_.wg.Done()

	for range this_.wakeCh {
		if !this_.drain() {
			this_.terminate()
			return
		}
	}

	if atomic.LoadInt32(&this_.graceful) != 1 {
		this_.conn.Close()
		return
	}

	// 优雅关闭: 带时限发完剩余帧, 再发关闭帧等待对端关闭
	this_.conn.SetWriteDeadline(time.Now().Add(DISCONNECT_DRAIN_TIMEOUT))
	this_.drain()

	if atomic.CompareAndSwapInt32(&this_.closeSent, 0, 1) {
		this_.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(this_.sendCode, this_.sendReason),
			time.Now().Add(time.Second))
	}

	// 对端不关闭时超时强制关闭, 连接由读泵或定时器释放
	this_.closeTimer = time.AfterFunc(WS_CLOSE_TIMEOUT, func() {
		this_.conn.Close()
	})
}

func (this_ *gorillaSess) drain() bool {
	data, tag := this_.wq.Front()

	for data != nil {
		err := this_.conn.WriteMessage(tag, data)
		if err != nil {
			this_.owner.handleError(0, err.Error())
			return false
		}

		this_.stats.AddSent(len(data))
		if this_.totals != nil {
			this_.totals.AddSent(len(data))
		}

		sent := len(data)
		next, nextTag := this_.wq.Shift()
		pending := this_.wq.Pending()

		this_.strand.Post(func() {
			this_.owner.handleSent(this_, sent, pending)
		})

		data, tag = next, nextTag
	}

	return true
}
