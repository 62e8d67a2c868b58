package nw

import (
	"net"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gox/netio/log"
	"github.com/gox/netio/utils"
)

// TcpClientConfig TCP 客户端配置
type TcpClientConfig struct {
	IP        string `yaml:"ip"         json:"ip,omitempty"`         // 服务端地址
	Port      uint16 `yaml:"port"       json:"port,omitempty"`       // 服务端端口
	Timeout   int64  `yaml:"timeout(s)" json:"timeout(s),omitempty"` // 连接超时(秒)
	HighWater int    `yaml:"high_water" json:"high_water,omitempty"`
}

func (this_ *TcpClientConfig) String() string {
	return utils.ToJson(this_)
}

// TcpClient TCP 客户端
//
// Connect 之后回调与服务端会话一致; Reconnect 复用客户端ID。
type TcpClient struct {
	id        string
	svc       *Service
	event     IClientEvent
	ep        Endpoint
	timeout   time.Duration
	highWater int
	stats     Stats // 跨连接累计
	mtx       sync.Mutex
	sess      *streamSess
}

func NewTcpClient(svc *Service, c *TcpClientConfig, event IClientEvent) (*TcpClient, error) {
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

	return &TcpClient{
		id:        uuid.NewString(),
		svc:       svc,
		event:     event,
		ep:        ep,
		timeout:   time.Duration(c.Timeout) * time.Second,
		highWater: c.HighWater,
	}, nil
}

func (this_ *TcpClient) ID() string {
	return this_.id
}

func (this_ *TcpClient) Protocol() Protocol {
	return Protocol_TCP
}

func (this_ *TcpClient) Endpoint() Endpoint {
	return this_.ep
}

func (this_ *TcpClient) IsConnected() bool {
	this_.mtx.Lock()
	defer this_.mtx.Unlock()
	return this_.sess != nil && this_.sess.IsConnected()
}

func (this_ *TcpClient) Stats() *Stats {
	return &this_.stats
}

func (this_ *TcpClient) LocalAddr() net.Addr {
	this_.mtx.Lock()
	defer this_.mtx.Unlock()

	if this_.sess == nil {
		return nil
	}

	return this_.sess.LocalAddr()
}

// Connect 连接服务端
//   - 已连接时返回 false; 连接失败触发 OnError
func (this_ *TcpClient) Connect() bool {
	this_.mtx.Lock()
	defer this_.mtx.Unlock()

	if this_.sess != nil && this_.sess.IsConnected() {
		return false
	}

	conn, err := this_.dial()
	if err != nil {
		this_.svc.Post(func() { this_.event.OnError(errnoOf(err), this_.category(), err.Error()) })
		return false
	}

	sess := newStreamSess(this_.svc, conn, this_.Protocol(), this_, &this_.stats, nil, this_.highWater)
	this_.sess = sess

	sess.strand.Post(func() { this_.event.OnConnected(this_) })
	sess.start()
	return true
}

// Disconnect 断开连接
func (this_ *TcpClient) Disconnect() bool {
	this_.mtx.Lock()
	sess := this_.sess
	this_.mtx.Unlock()

	if sess == nil {
		return false
	}

	if !sess.Disconnect() {
		return false
	}

	// 等待读写泵退出, 保证重连前旧连接已释放
	sess.join()
	return true
}

// Reconnect 重连
//   - 等价于 Disconnect 后重新 Connect, 客户端ID保持不变
func (this_ *TcpClient) Reconnect() bool {
	this_.Disconnect()
	return this_.Connect()
}

// Send 发送数据
func (this_ *TcpClient) Send(data []byte) int {
	this_.mtx.Lock()
	sess := this_.sess
	this_.mtx.Unlock()

	if sess == nil {
		return 0
	}

	return sess.Send(data)
}

func (this_ *TcpClient) dial() (net.Conn, error) {
	if this_.timeout > 0 {
		return net.DialTimeout("tcp", this_.ep.String(), this_.timeout)
	}

	return net.Dial("tcp", this_.ep.String())
}

func (this_ *TcpClient) category() string {
	return CategoryTcp
}

// streamOwner 实现

func (this_ *TcpClient) handleData(sess *streamSess, data []byte) {
	if err := this_.event.OnData(this_, data); err != nil {
		sess.Disconnect()
	}
}

func (this_ *TcpClient) handleSent(sess *streamSess, sent, pending int) {
	this_.event.OnSent(this_, sent, pending)
}

func (this_ *TcpClient) handleClosed(sess *streamSess, err error) {
	if err != nil && !IsClosedErr(err) {
		if IsConnReset(err) {
			log.Debug("TcpClient[%v] PASSIVE close", this_.ep)
		} else {
			log.Error("TcpClient[%v] ACTIVE close. Error: %v", this_.ep, err)
		}

		this_.event.OnError(errnoOf(err), this_.category(), err.Error())
	}

	this_.event.OnDisconnected(this_)
}

func (this_ *TcpClient) handleError(code int, msg string) {
	this_.svc.Post(func() { this_.event.OnError(code, this_.category(), msg) })
}
