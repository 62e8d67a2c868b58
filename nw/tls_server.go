package nw

import (
	"context"
	"crypto/tls"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gox/netio/log"
	"github.com/gox/netio/utils"
)

const TLS_HANDSHAKE_TIMEOUT = 10 * time.Second

// TlsServerConfig TLS 服务配置
type TlsServerConfig struct {
	IP        string     `yaml:"ip"         json:"ip,omitempty"`
	Port      uint16     `yaml:"port"       json:"port,omitempty"`
	Tls       *TlsConfig `yaml:"tls"        json:"tls,omitempty"`
	MaxConn   int        `yaml:"max_conn"   json:"max_conn,omitempty"`
	HighWater int        `yaml:"high_water" json:"high_water,omitempty"`
}

func (this_ *TlsServerConfig) String() string {
	return utils.ToJson(this_)
}

// TlsServer TLS 服务器
//
// 接受 TCP 连接后先完成服务端握手; 握手成功才触发 OnConnected,
// 失败只触发 OnError 并关闭套接字。
type TlsServer struct {
	id        string
	svc       *Service
	event     IServerEvent
	ep        Endpoint
	tlsCfg    *tls.Config
	maxConn   int
	highWater int
	state     int32
	listener  net.Listener
	sessmap   *utils.SafeMap[string, ISess]
	totals    Stats
	wg        sync.WaitGroup
}

func NewTlsServer(svc *Service, c *TlsServerConfig, event IServerEvent) (*TlsServer, error) {
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

	tlsCfg, err := c.Tls.ServerConfig()
	if err != nil {
		return nil, err
	}

	maxConn := c.MaxConn
	if maxConn <= 0 {
		maxConn = DEFAULT_MAX_CONN
	}

	return &TlsServer{
		id:        uuid.NewString(),
		svc:       svc,
		event:     event,
		ep:        ep,
		tlsCfg:    tlsCfg,
		maxConn:   maxConn,
		highWater: c.HighWater,
		sessmap:   utils.NewSafeMap[string, ISess](),
	}, nil
}

func (this_ *TlsServer) ID() string {
	return this_.id
}

func (this_ *TlsServer) Protocol() Protocol {
	return Protocol_TLS
}

func (this_ *TlsServer) Endpoint() Endpoint {
	return this_.ep
}

func (this_ *TlsServer) IsStarted() bool {
	return atomic.LoadInt32(&this_.state) == 1
}

func (this_ *TlsServer) SessionCount() int {
	return this_.sessmap.Count()
}

func (this_ *TlsServer) FindSession(id string) (ISess, bool) {
	return this_.sessmap.Get(id)
}

func (this_ *TlsServer) Stats() *Stats {
	return &this_.totals
}

// Start 启动服务
func (this_ *TlsServer) Start() error {
	if !atomic.CompareAndSwapInt32(&this_.state, 0, 1) {
		return ErrAlreadyStarted
	}

	lc := net.ListenConfig{Control: reuseAddrControl}

	ln, err := lc.Listen(context.Background(), "tcp", this_.ep.String())
	if err != nil {
		atomic.StoreInt32(&this_.state, 0)
		return err
	}

	this_.listener = ln
	this_.totals.Reset()

	this_.wg.Add(1)
	go this_.acceptLoop()

	this_.svc.Post(func() { this_.event.OnStarted(this_) })
	return nil
}

// Stop 停止服务
//
// 关闭监听, 断开所有会话; 返回前保证每条会话的 OnDisconnected 已执行。
func (this_ *TlsServer) Stop() bool {
	if !atomic.CompareAndSwapInt32(&this_.state, 1, 0) {
		return false
	}

	this_.listener.Close()
	this_.DisconnectAll()
	this_.wg.Wait()

	// 等待断开回调落地
	deadline := time.Now().Add(DISCONNECT_DRAIN_TIMEOUT)
	for this_.sessmap.Count() > 0 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}

	this_.svc.flush()
	this_.svc.Post(func() { this_.event.OnStopped(this_) })
	this_.svc.flush()
	this_.sessmap.Clear()
	return true
}

// Restart 重启服务
func (this_ *TlsServer) Restart() error {
	this_.Stop()
	return this_.Start()
}

// Broadcast 向所有存活会话发送数据
func (this_ *TlsServer) Broadcast(data []byte) int {
	count := 0

	for _, sess := range this_.sessmap.Values() {
		if sess.Send(data) > 0 {
			count++
		}
	}

	return count
}

// DisconnectAll 断开所有会话
func (this_ *TlsServer) DisconnectAll() {
	for _, sess := range this_.sessmap.Values() {
		sess.Disconnect()
	}
}

// ListenAddr 实际监听地址 (端口 0 时由系统分配)
func (this_ *TlsServer) ListenAddr() net.Addr {
	if this_.listener == nil {
		return nil
	}

	return this_.listener.Addr()
}

func (this_ *TlsServer) acceptLoop() {
	defer this_.wg.Done()

	for {
		conn, err := this_.listener.Accept()
		if err != nil {
			if IsClosedErr(err) {
				break
			}

			// 监听错误上报后继续 accept
			this_.postError(errnoOf(err), err.Error())
			continue
		}

		if this_.maxConn > 0 && this_.sessmap.Count() >= this_.maxConn {
			log.Error("TlsSess[%v] ACTIVE close. Error: Connection limit reached", conn.RemoteAddr())
			conn.Close()
			continue
		}

		this_.wg.Add(1)
		go this_.handshake(conn)
	}
}

// handshake 服务端握手
//   - 失败时只上报 OnError, 不产生会话
func (this_ *TlsServer) handshake(conn net.Conn) {
	defer this_.wg.Done()

	tconn := tls.Server(conn, this_.tlsCfg)
	tconn.SetDeadline(time.Now().Add(TLS_HANDSHAKE_TIMEOUT))

	err := tconn.Handshake()
	if err != nil {
		log.Error("TlsSess[%v] handshake failed: %v", conn.RemoteAddr(), err)
		this_.postError(errnoOf(err), err.Error())
		tconn.Close()
		return
	}

	tconn.SetDeadline(time.Time{})

	sess := newStreamSess(this_.svc, tconn, Protocol_TLS, this_, nil, &this_.totals, this_.highWater)
	this_.sessmap.Set(sess.ID(), sess)

	sess.strand.Post(func() {
		if err := this_.event.OnConnected(sess); err != nil {
			log.Error("[%v] connect refused: %v", sess.RemoteAddr(), err)
			sess.Disconnect()
		}
	})

	sess.start()
}

func (this_ *TlsServer) postError(code int, msg string) {
	this_.svc.Post(func() { this_.event.OnError(code, CategoryTls, msg) })
}

// streamOwner 实现

func (this_ *TlsServer) handleData(sess *streamSess, data []byte) {
	if err := this_.event.OnData(sess, data); err != nil {
		sess.Disconnect()
	}
}

func (this_ *TlsServer) handleSent(sess *streamSess, sent, pending int) {
	this_.event.OnSent(sess, sent, pending)
}

func (this_ *TlsServer) handleClosed(sess *streamSess, err error) {
	if err != nil && !IsClosedErr(err) {
		if IsConnReset(err) {
			log.Debug("TlsSess[%v] PASSIVE close", sess.RemoteAddr())
		} else {
			log.Error("TlsSess[%v] ACTIVE close. Error: %v", sess.RemoteAddr(), err)
		}

		this_.event.OnError(errnoOf(err), CategoryTls, err.Error())
	}

	this_.event.OnDisconnected(sess)
	// OnDisconnected 返回后才摘除
	this_.sessmap.Remove(sess.ID())
}

func (this_ *TlsServer) handleError(code int, msg string) {
	this_.postError(code, msg)
}
