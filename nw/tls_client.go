package nw

import (
	"crypto/tls"
	"net"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gox/netio/log"
	"github.com/gox/netio/utils"
)

// TlsClientConfig TLS 客户端配置
type TlsClientConfig struct {
	IP        string     `yaml:"ip"         json:"ip,omitempty"`
	Port      uint16     `yaml:"port"       json:"port,omitempty"`
	Tls       *TlsConfig `yaml:"tls"        json:"tls,omitempty"`
	Timeout   int64      `yaml:"timeout(s)" json:"timeout(s),omitempty"`
	HighWater int        `yaml:"high_water" json:"high_water,omitempty"`
}

func (this_ *TlsClientConfig) String() string {
	return utils.ToJson(this_)
}

// TlsClient TLS 客户端
//
// TCP 连接后进行客户端握手, 握手成功才触发 OnConnected。
// 默认按连接端点校验服务端主机名。
type TlsClient struct {
	id        string
	svc       *Service
	event     IClientEvent
	ep        Endpoint
	tlsCfg    *tls.Config
	timeout   time.Duration
	highWater int
	stats     Stats
	mtx       sync.Mutex
	sess      *streamSess
}

func NewTlsClient(svc *Service, c *TlsClientConfig, event IClientEvent) (*TlsClient, error) {
	if svc == nil {
		return nil, ErrServiceNil
	}

	if c == nil {
		return nil, ErrConfigNil
	}

	if c.Tls == nil {
		return nil, ErrTlsConfigNil
	}

	if event == nil {
		event = &ClientEvent{}
	}

	ep, err := NewEndpoint(c.IP, c.Port)
	if err != nil {
		return nil, err
	}

	tlsCfg, err := c.Tls.ClientConfig(ep)
	if err != nil {
		return nil, err
	}

	return &TlsClient{
		id:        uuid.NewString(),
		svc:       svc,
		event:     event,
		ep:        ep,
		tlsCfg:    tlsCfg,
		timeout:   time.Duration(c.Timeout) * time.Second,
		highWater: c.HighWater,
	}, nil
}

func (this_ *TlsClient) ID() string {
	return this_.id
}

func (this_ *TlsClient) Protocol() Protocol {
	return Protocol_TLS
}

func (this_ *TlsClient) Endpoint() Endpoint {
	return this_.ep
}

func (this_ *TlsClient) IsConnected() bool {
	this_.mtx.Lock()
	defer this_.mtx.Unlock()
	return this_.sess != nil && this_.sess.IsConnected()
}

func (this_ *TlsClient) Stats() *Stats {
	return &this_.stats
}

// Connect 连接并完成握手
//   - 握手失败触发 OnError, 不触发 OnConnected/OnDisconnected
func (this_ *TlsClient) Connect() bool {
	this_.mtx.Lock()
	defer this_.mtx.Unlock()

	if this_.sess != nil && this_.sess.IsConnected() {
		return false
	}

	conn, err := this_.dial()
	if err != nil {
		this_.svc.Post(func() { this_.event.OnError(errnoOf(err), CategoryTls, err.Error()) })
		return false
	}

	tconn := tls.Client(conn, this_.tlsCfg)
	tconn.SetDeadline(time.Now().Add(TLS_HANDSHAKE_TIMEOUT))

	err = tconn.Handshake()
	if err != nil {
		tconn.Close()
		this_.svc.Post(func() { this_.event.OnError(errnoOf(err), CategoryTls, err.Error()) })
		return false
	}

	tconn.SetDeadline(time.Time{})

	sess := newStreamSess(this_.svc, tconn, Protocol_TLS, this_, &this_.stats, nil, this_.highWater)
	this_.sess = sess

	sess.strand.Post(func() { this_.event.OnConnected(this_) })
	sess.start()
	return true
}

// Disconnect 断开连接
//   - 排空写队列后发送 close_notify 再关闭套接字
func (this_ *TlsClient) Disconnect() bool {
	this_.mtx.Lock()
	sess := this_.sess
	this_.mtx.Unlock()

	if sess == nil {
		return false
	}

	if !sess.Disconnect() {
		return false
	}

	sess.join()
	return true
}

// Reconnect 重连, 客户端ID保持不变
func (this_ *TlsClient) Reconnect() bool {
	this_.Disconnect()
	return this_.Connect()
}

// Send 发送数据
func (this_ *TlsClient) Send(data []byte) int {
	this_.mtx.Lock()
	sess := this_.sess
	this_.mtx.Unlock()

	if sess == nil {
		return 0
	}

	return sess.Send(data)
}

func (this_ *TlsClient) dial() (net.Conn, error) {
	if this_.timeout > 0 {
		return net.DialTimeout("tcp", this_.ep.String(), this_.timeout)
	}

	return net.Dial("tcp", this_.ep.String())
}

// streamOwner 实现

func (this_ *TlsClient) handleData(sess *streamSess, data []byte) {
	if err := this_.event.OnData(this_, data); err != nil {
		sess.Disconnect()
	}
}

func (this_ *TlsClient) handleSent(sess *streamSess, sent, pending int) {
	this_.event.OnSent(this_, sent, pending)
}

func (this_ *TlsClient) handleClosed(sess *streamSess, err error) {
	if err != nil && !IsClosedErr(err) {
		if IsConnReset(err) {
			log.Debug("TlsClient[%v] PASSIVE close", this_.ep)
		} else {
			log.Error("TlsClient[%v] ACTIVE close. Error: %v", this_.ep, err)
		}

		this_.event.OnError(errnoOf(err), CategoryTls, err.Error())
	}

	this_.event.OnDisconnected(this_)
}

func (this_ *TlsClient) handleError(code int, msg string) {
	this_.svc.Post(func() { this_.event.OnError(code, CategoryTls, msg) })
}
