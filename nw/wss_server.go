package nw

import (
	"context"
	"crypto/tls"
	"net"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/gox/netio/log"
	"github.com/gox/netio/utils"
)

var wssUpgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// WssServerConfig TLS websocket 服务配置
type WssServerConfig struct {
	IP        string     `yaml:"ip"         json:"ip,omitempty"`
	Port      uint16     `yaml:"port"       json:"port,omitempty"`
	Path      string     `yaml:"path"       json:"path,omitempty"` // 升级请求路径, 默认 /ws
	Tls       *TlsConfig `yaml:"tls"        json:"tls,omitempty"`
	MaxConn   int        `yaml:"max_conn"   json:"max_conn,omitempty"`
	HighWater int        `yaml:"high_water" json:"high_water,omitempty"`
}

func (this_ *WssServerConfig) String() string {
	return utils.ToJson(this_)
}

// WssServer TLS websocket 服务器
//
// TLS 监听上跑 http, 升级请求转换为 websocket 会话。
type WssServer struct {
	id        string
	svc       *Service
	event     IServerEvent
	ep        Endpoint
	path      string
	tlsCfg    *tls.Config
	maxConn   int
	highWater int
	state     int32
	listener  net.Listener
	httpSrv   *http.Server
	sessmap   *utils.SafeMap[string, ISess]
	totals    Stats
	wg        sync.WaitGroup
}

func NewWssServer(svc *Service, c *WssServerConfig, event IServerEvent) (*WssServer, error) {
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

	path := c.Path
	if len(path) == 0 {
		path = "/ws"
	}

	maxConn := c.MaxConn
	if maxConn <= 0 {
		maxConn = DEFAULT_MAX_CONN
	}

	return &WssServer{
		id:        uuid.NewString(),
		svc:       svc,
		event:     event,
		ep:        ep,
		path:      path,
		tlsCfg:    tlsCfg,
		maxConn:   maxConn,
		highWater: c.HighWater,
		sessmap:   utils.NewSafeMap[string, ISess](),
	}, nil
}

func (this_ *WssServer) ID() string {
	return this_.id
}

func (this_ *WssServer) Protocol() Protocol {
	return Protocol_WebsocketTLS
}

func (this_ *WssServer) Endpoint() Endpoint {
	return this_.ep
}

func (this_ *WssServer) IsStarted() bool {
	return atomic.LoadInt32(&this_.state) == 1
}

func (this_ *WssServer) SessionCount() int {
	return this_.sessmap.Count()
}

func (this_ *WssServer) FindSession(id string) (ISess, bool) {
	return this_.sessmap.Get(id)
}

func (this_ *WssServer) Stats() *Stats {
	return &this_.totals
}

// ListenAddr 实际监听地址 (端口 0 时由系统分配)
func (this_ *WssServer) ListenAddr() net.Addr {
	if this_.listener == nil {
		return nil
	}

	return this_.listener.Addr()
}

// Start 启动服务
func (this_ *WssServer) Start() error {
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

	mux := http.NewServeMux()
	mux.HandleFunc(this_.path, this_.upgrade)

	this_.httpSrv = &http.Server{Handler: mux}

	this_.wg.Add(1)
	go func() {
		defer this_.wg.Done()

		err := this_.httpSrv.Serve(tls.NewListener(ln, this_.tlsCfg))
		if err != nil && err != http.ErrServerClosed {
			log.Error("wss serve failed: %v", err)
		}
	}()

	this_.svc.Post(func() { this_.event.OnStarted(this_) })
	return nil
}

// Stop 停止服务
func (this_ *WssServer) Stop() bool {
	if !atomic.CompareAndSwapInt32(&this_.state, 1, 0) {
		return false
	}

	// 升级后的连接已被劫持, http.Server 关不掉它们
	this_.DisconnectAll()
	this_.httpSrv.Close()
	this_.wg.Wait()

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
func (this_ *WssServer) Restart() error {
	this_.Stop()
	return this_.Start()
}

// Broadcast 向所有存活会话发送数据
func (this_ *WssServer) Broadcast(data []byte) int {
	count := 0

	for _, sess := range this_.sessmap.Values() {
		if sess.Send(data) > 0 {
			count++
		}
	}

	return count
}

// DisconnectAll 断开所有会话
func (this_ *WssServer) DisconnectAll() {
	for _, sess := range this_.sessmap.Values() {
		sess.Disconnect()
	}
}

// upgrade http 转换 websocket
func (this_ *WssServer) upgrade(w http.ResponseWriter, r *http.Request) {
	if this_.maxConn > 0 && this_.sessmap.Count() >= this_.maxConn {
		w.WriteHeader(http.StatusServiceUnavailable)
		return
	}

	conn, err := wssUpgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Error("upgrade failed: %v", err)
		this_.postError(0, err.Error())
		return
	}

	sess := newGorillaSess(this_.svc, conn, Protocol_WebsocketTLS, this_, nil, &this_.totals, this_.highWater)
	sess.realIP = GetHttpRequestRealIP(r)

	this_.sessmap.Set(sess.ID(), sess)

	sess.strand.Post(func() {
		if err := this_.event.OnConnected(sess); err != nil {
			log.Error("[%v] connect refused: %v", sess.RemoteAddr(), err)
			sess.Disconnect()
		}
	})

	sess.start()
}

func (this_ *WssServer) postError(code int, msg string) {
	this_.svc.Post(func() { this_.event.OnError(code, CategoryWebsocket, msg) })
}

// gorillaOwner 实现

func (this_ *WssServer) handleMessage(sess *gorillaSess, msg WsMessage) {
	if mev, ok := this_.event.(IWsMessageEvent); ok {
		if err := mev.OnMessage(sess, msg); err != nil {
			sess.Disconnect()
		}
		return
	}

	if err := this_.event.OnData(sess, msg.Payload); err != nil {
		sess.Disconnect()
	}
}

func (this_ *WssServer) handleSent(sess *gorillaSess, sent, pending int) {
	this_.event.OnSent(sess, sent, pending)
}

func (this_ *WssServer) handleClosed(sess *gorillaSess, err error) {
	if err != nil && !IsClosedErr(err) {
		if IsConnReset(err) {
			log.Debug("WsSess[%v] PASSIVE close", sess.RemoteAddr())
		} else {
			log.Error("WsSess[%v] ACTIVE close. Error: %v", sess.RemoteAddr(), err)
		}

		this_.event.OnError(errnoOf(err), CategoryWebsocket, err.Error())
	}

	this_.event.OnDisconnected(sess)
	this_.sessmap.Remove(sess.ID())
}

func (this_ *WssServer) handleError(code int, msg string) {
	this_.postError(code, msg)
}
