package nw

import (
	"bytes"
	"errors"
	"io"
	"net"
	"sync/atomic"
	"time"

	"github.com/gobwas/ws"
	"github.com/gobwas/ws/wsutil"
	"github.com/gox/netio/log"
	"github.com/gox/netio/utils"
	"github.com/panjf2000/gnet/v2"
)

const (
	WS_CLOSE_TIMEOUT   = 5 * time.Second // 关闭帧发出后等待对端关闭的时限
	WS_MAX_PAYLOAD_LEN = RECV_BUF_SIZE   // 单帧载荷上限
)

// WsServerConfig websocket 服务配置
type WsServerConfig struct {
	IP        string `yaml:"ip"         json:"ip,omitempty"`
	Port      uint16 `yaml:"port"       json:"port,omitempty"`
	MaxConn   int    `yaml:"max_conn"   json:"max_conn,omitempty"`
	HighWater int    `yaml:"high_water" json:"high_water,omitempty"`
}

func (this_ *WsServerConfig) String() string {
	return utils.ToJson(this_)
}

// WsServer websocket 服务器
//
// 升级和帧处理都在反应器内完成: 控制帧 (ping/pong/close) 由框架处理,
// 数据帧重组后按消息投递。
type WsServer struct {
	baseServer
}

func NewWsServer(svc *Service, c *WsServerConfig, event IServerEvent) (*WsServer, error) {
	if svc == nil {
		return nil, ErrServiceNil
	}

	if c == nil {
		return nil, ErrConfigNil
	}

	if event == nil {
		event = &ServerEvent{}
	}

	ip := c.IP
	if len(ip) == 0 {
		ip = "0.0.0.0"
	}

	ep, err := NewEndpoint(ip, c.Port)
	if err != nil {
		return nil, err
	}

	this_ := &WsServer{}
	this_.baseServer = *newBaseServer(svc, this_, event, ep, CategoryWebsocket, c.MaxConn, c.HighWater)
	return this_, nil
}

func (this_ *WsServer) Protocol() Protocol {
	return Protocol_Websocket
}

func (this_ *WsServer) newSess(c gnet.Conn) gnetISess {
	sess := &WsSess{}
	sess.init(c, &this_.baseServer, sess)
	return sess
}

// OnTraffic 处理客户端数据
func (this_ *WsServer) OnTraffic(c gnet.Conn) gnet.Action {
	ctx := c.Context()
	if ctx == nil {
		return gnet.Close
	}

	sess := ctx.(*WsSess)

	// 升级websocket 协议
	if !sess.upgraded {
		return this_.upgrade(sess)
	}

	return this_.readFrames(sess)
}

// upgrade http 转换 websocket
func (this_ *WsServer) upgrade(sess *WsSess) gnet.Action {
	u := ws.Upgrader{
		OnHeader: func(key, value []byte) error {
			switch string(key) {
			case "X-Forwarded-For":
				sess.xForwardedFor = string(value)

			case "X-Real-IP":
				sess.xRealIP = string(value)
			}
			return nil
		},
	}

	_, err := u.Upgrade(sess.c)
	if err != nil {
		log.Error("[%v] upgrade failed: %v", sess.RemoteAddr(), err)
		this_.postError(0, err.Error())
		return gnet.Close
	}

	sess.upgraded = true
	return gnet.None
}

// readFrames 消费入站缓冲区中所有完整的帧
//   - 半帧留在缓冲区等待下次 OnTraffic
func (this_ *WsServer) readFrames(sess *WsSess) gnet.Action {
	c := sess.c

	for {
		n := c.InboundBuffered()
		if n < 2 {
			return gnet.None
		}

		data, err := c.Peek(n)
		if err != nil {
			return gnet.None
		}

		r := bytes.NewReader(data)
		hdr, err := ws.ReadHeader(r)
		if err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
				return gnet.None
			}

			this_.postError(0, err.Error())
			return gnet.Close
		}

		if hdr.Length > WS_MAX_PAYLOAD_LEN {
			this_.postError(0, "ws frame over max payload length")
			return gnet.Close
		}

		headLen := n - r.Len()
		frameLen := headLen + int(hdr.Length)
		if n < frameLen {
			return gnet.None
		}

		payload := utils.CloneBytes(data[headLen:frameLen])
		if hdr.Masked {
			ws.Cipher(payload, hdr.Mask, 0)
		}

		c.Discard(frameLen)

		if action := this_.handleFrame(sess, hdr, payload); action != gnet.None {
			return action
		}
	}
}

func (this_ *WsServer) handleFrame(sess *WsSess, hdr ws.Header, payload []byte) gnet.Action {
	switch hdr.OpCode {
	case ws.OpPing:
		sess.sendFrame(ws.OpPong, payload)
		return gnet.None

	case ws.OpPong:
		return gnet.None

	case ws.OpClose:
		code, reason := ws.ParseCloseFrameData(payload)
		sess.closeCode = int(code)
		sess.closeReason = reason

		if atomic.CompareAndSwapInt32(&sess.closeSent, 0, 1) {
			sess.sendFrame(ws.OpClose, ws.NewCloseFrameBody(code, ""))
		}
		return gnet.Close

	case ws.OpText, ws.OpBinary:
		if !hdr.Fin {
			sess.fragOp = hdr.OpCode
			sess.fragBuf = append(sess.fragBuf[:0], payload...)
			return gnet.None
		}

		this_.deliver(sess, hdr.OpCode, payload)
		return gnet.None

	case ws.OpContinuation:
		sess.fragBuf = append(sess.fragBuf, payload...)
		if !hdr.Fin {
			return gnet.None
		}

		msg := utils.CloneBytes(sess.fragBuf)
		op := sess.fragOp
		sess.fragBuf = sess.fragBuf[:0]
		this_.deliver(sess, op, msg)
		return gnet.None
	}

	this_.postError(0, ErrWsOpcode.Error())
	return gnet.Close
}

// deliver 投递一条完整消息
//   - 事件实现了 IWsMessageEvent 时走帧级投递, 否则载荷走 OnData
func (this_ *WsServer) deliver(sess *WsSess, op ws.OpCode, payload []byte) {
	sess.stats.AddRecv(len(payload))
	this_.totals.AddRecv(len(payload))

	msg := WsMessage{Opcode: WsOpcode(op), Payload: payload}

	sess.strand.Post(func() {
		if mev, ok := this_.event.(IWsMessageEvent); ok {
			if err := mev.OnMessage(sess, msg); err != nil {
				sess.Disconnect()
			}
			return
		}

		if err := this_.event.OnData(sess, msg.Payload); err != nil {
			sess.Disconnect()
		}
	})
}

// WsSess websocket 会话
type WsSess struct {
	gnetSess

	upgraded      bool
	fragOp        ws.OpCode // 分片消息的首帧类型
	fragBuf       []byte
	xRealIP       string
	xForwardedFor string
	closeSent     int32
	closeCode     int
	closeReason   string
}

func (this_ *WsSess) Protocol() Protocol {
	return Protocol_Websocket
}

// RealRemoteIP 获取真实IP
//   - 升级请求携带 X-Forwarded-For / X-Real-IP 时优先使用
func (this_ *WsSess) RealRemoteIP() string {
	if len(this_.xForwardedFor) > 0 {
		return this_.xForwardedFor
	}

	if len(this_.xRealIP) > 0 {
		return this_.xRealIP
	}

	host, _, err := net.SplitHostPort(this_.RemoteAddr().String())
	if err != nil {
		return "unknown"
	}

	return host
}

// CloseCode 对端关闭帧携带的状态码, 未收到时为 0
func (this_ *WsSess) CloseCode() int {
	return this_.closeCode
}

func (this_ *WsSess) CloseReason() string {
	return this_.closeReason
}

// Send 发送二进制帧
func (this_ *WsSess) Send(data []byte) int {
	return this_.SendMessage(WsOpcode_Binary, data)
}

// SendText 发送文本帧
func (this_ *WsSess) SendText(text string) int {
	return this_.SendMessage(WsOpcode_Text, []byte(text))
}

// SendMessage 发送指定类型的单帧消息
func (this_ *WsSess) SendMessage(op WsOpcode, payload []byte) int {
	switch op {
	case WsOpcode_Text, WsOpcode_Binary, WsOpcode_Ping, WsOpcode_Pong:
	default:
		return 0
	}

	frame := encodeServerFrame(ws.OpCode(op), payload)
	return this_.queueWrite(frame, len(payload))
}

// Disconnect 发送 1000 关闭帧并等待对端关闭
func (this_ *WsSess) Disconnect() bool {
	return this_.DisconnectWith(int(ws.StatusNormalClosure), "")
}

// DisconnectWith 发送关闭帧并等待对端关闭或超时
func (this_ *WsSess) DisconnectWith(code int, reason string) bool {
	if atomic.LoadInt32(&this_.connected) != 1 {
		return false
	}

	if !atomic.CompareAndSwapInt32(&this_.closeSent, 0, 1) {
		return false
	}

	body := ws.NewCloseFrameBody(ws.StatusCode(code), reason)
	frame := encodeServerFrame(ws.OpClose, body)

	atomic.StoreInt32(&this_.awaitClose, 1)

	ok, kick := this_.wq.PushTag(0, frame)
	atomic.StoreInt32(&this_.closing, 1)

	if !ok {
		this_.c.Close()
		return true
	}

	if kick {
		data, tag := this_.wq.Front()
		this_.asyncWrite(data, tag)
	}

	// 对端不关闭时超时强制关闭
	this_.closeTimer = time.AfterFunc(WS_CLOSE_TIMEOUT, func() {
		this_.c.Close()
	})

	return true
}

// sendFrame 控制帧直接入队, 不计入载荷统计
func (this_ *WsSess) sendFrame(op ws.OpCode, payload []byte) {
	frame := encodeServerFrame(op, payload)

	ok, kick := this_.wq.PushTag(0, frame)
	if !ok {
		return
	}

	if kick {
		data, tag := this_.wq.Front()
		this_.asyncWrite(data, tag)
	}
}

func encodeServerFrame(op ws.OpCode, payload []byte) []byte {
	buf := bytes.Buffer{}
	wsutil.WriteMessage(&buf, ws.StateServerSide, op, payload)
	return buf.Bytes()
}
