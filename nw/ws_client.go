package nw

import (
	"crypto/tls"
	"net/url"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/gox/netio/log"
	"github.com/gox/netio/utils"
)

// WsClientConfig websocket 客户端配置
type WsClientConfig struct {
	IP        string     `yaml:"ip"         json:"ip,omitempty"`
	Port      uint16     `yaml:"port"       json:"port,omitempty"`
	Path      string     `yaml:"path"       json:"path,omitempty"` // 升级请求路径, 默认 /ws
	Tls       *TlsConfig `yaml:"tls"        json:"tls,omitempty"`  // 非空时走 wss
	Timeout   int64      `yaml:"timeout(s)" json:"timeout(s),omitempty"`
	HighWater int        `yaml:"high_water" json:"high_water,omitempty"`
}

func (this_ *WsClientConfig) String() string {
	return utils.ToJson(this_)
}

// WsClient websocket 客户端
//
// 事件实现了 IWsClientMessageEvent 时走帧级投递, 否则载荷走 OnData。
type WsClient struct {
	id        string
	svc       *Service
	event     IClientEvent
	ep        Endpoint
	path      string
	tlsCfg    *tls.Config
	timeout   time.Duration
	highWater int
	stats     Stats
	mtx       sync.Mutex
	sess      *gorillaSess
}

func NewWsClient(svc *Service, c *WsClientConfig, event IClientEvent) (*WsClient, error) {
	if svc == nil {
		return nil, ErrServiceNil
	}

	if c == nil {
		return nil, ErrConfigNil
	}

	if event == nil {
		event = &ClientEvent{}
	}

	ep, err := NewEndpoint(c.IP, c.Port)
	if err != nil {
		return nil, err
	}

	var tlsCfg *tls.Config

	if c.Tls != nil {
		tlsCfg, err = c.Tls.ClientConfig(ep)
		if err != nil {
			return nil, err
		}
	}

	path := c.Path
	if len(path) == 0 {
		path = "/ws"
	}

	return &WsClient{
		id:        uuid.NewString(),
		svc:       svc,
		event:     event,
		ep:        ep,
		path:      path,
		tlsCfg:    tlsCfg,
		timeout:   time.Duration(c.Timeout) * time.Second,
		highWater: c.HighWater,
	}, nil
}

func (this_ *WsClient) ID() string {
	return this_.id
}

func (this_ *WsClient) Protocol() Protocol {
	if this_.tlsCfg != nil {
		return Protocol_WebsocketTLS
	}

	return Protocol_Websocket
}

func (this_ *WsClient) Endpoint() Endpoint {
	return this_.ep
}

func (this_ *WsClient) IsConnected() bool {
	this_.mtx.Lock()
	defer this_.mtx.Unlock()
	return this_.sess != nil && this_.sess.IsConnected()
}

func (this_ *WsClient) Stats() *Stats {
	return &this_.stats
}

// Connect 连接并完成升级握手
func (this_ *WsClient) Connect() bool {
	this_.mtx.Lock()
	defer this_.mtx.Unlock()

	if this_.sess != nil && this_.sess.IsConnected() {
		return false
	}

	scheme := "ws"
	if this_.tlsCfg != nil {
		scheme = "wss"
	}

	u := url.URL{Scheme: scheme, Host: this_.ep.String(), Path: this_.path}

	dialer := websocket.Dialer{
		HandshakeTimeout: this_.timeout,
		TLSClientConfig:  this_.tlsCfg,
	}

	conn, _, err := dialer.Dial(u.String(), nil)
	if err != nil {
		this_.svc.Post(func() { this_.event.OnError(errnoOf(err), CategoryWebsocket, err.Error()) })
		return false
	}

	sess := newGorillaSess(this_.svc, conn, this_.Protocol(), this_, &this_.stats, nil, this_.highWater)
	this_.sess = sess

	sess.strand.Post(func() { this_.event.OnConnected(this_) })
	sess.start()
	return true
}

// Disconnect 发送关闭帧并断开
func (this_ *WsClient) Disconnect() bool {
	return this_.DisconnectWith(int(websocket.CloseNormalClosure), "")
}

// DisconnectWith 以指定状态码断开
func (this_ *WsClient) DisconnectWith(code int, reason string) bool {
	this_.mtx.Lock()
	sess := this_.sess
	this_.mtx.Unlock()

	if sess == nil {
		return false
	}

	if !sess.DisconnectWith(code, reason) {
		return false
	}

	sess.join()
	return true
}

// Reconnect 重连, 客户端ID保持不变
func (this_ *WsClient) Reconnect() bool {
	this_.Disconnect()
	return this_.Connect()
}

// Send 发送二进制帧
func (this_ *WsClient) Send(data []byte) int {
	return this_.SendMessage(WsOpcode_Binary, data)
}

// SendText 发送文本帧
func (this_ *WsClient) SendText(text string) int {
	return this_.SendMessage(WsOpcode_Text, []byte(text))
}

// SendMessage 发送指定类型的单帧消息
func (this_ *WsClient) SendMessage(op WsOpcode, payload []byte) int {
	this_.mtx.Lock()
	sess := this_.sess
	this_.mtx.Unlock()

	if sess == nil {
		return 0
	}

	return sess.SendMessage(op, payload)
}

// gorillaOwner 实现

func (this_ *WsClient) handleMessage(sess *gorillaSess, msg WsMessage) {
	if mev, ok := this_.event.(IWsClientMessageEvent); ok {
		if err := mev.OnMessage(this_, msg); err != nil {
			sess.Disconnect()
		}
		return
	}

	if err := this_.event.OnData(this_, msg.Payload); err != nil {
		sess.Disconnect()
	}
}

func (this_ *WsClient) handleSent(sess *gorillaSess, sent, pending int) {
	this_.event.OnSent(this_, sent, pending)
}

func (this_ *WsClient) handleClosed(sess *gorillaSess, err error) {
	if err != nil && !IsClosedErr(err) {
		if IsConnReset(err) {
			log.Debug("WsClient[%v] PASSIVE close", this_.ep)
		} else {
			log.Error("WsClient[%v] ACTIVE close. Error: %v", this_.ep, err)
		}

		this_.event.OnError(errnoOf(err), CategoryWebsocket, err.Error())
	}

	this_.event.OnDisconnected(this_)
}

func (this_ *WsClient) handleError(code int, msg string) {
	this_.svc.Post(func() { this_.event.OnError(code, CategoryWebsocket, msg) })
}
