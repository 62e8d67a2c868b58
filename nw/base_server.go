package nw

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/gox/netio/log"
	"github.com/gox/netio/utils"
	"github.com/panjf2000/gnet/v2"
	"github.com/panjf2000/gnet/v2/pkg/logging"
)

// gnetServer 基于 gnet 反应器的服务端
type gnetServer interface {
	IServer
	gnet.EventHandler

	// newSess 创建具体会话
	newSess(c gnet.Conn) gnetISess
}

// baseServer gnet 服务端基类
//
// 承担监听生命周期、会话注册表和广播; 协议相关的读写由具体服务实现。
type baseServer struct {
	gnet.BuiltinEventEngine
	eng gnet.Engine

	id        string
	svc       *Service                      // 所属服务
	gsrv      gnetServer                    // 实际的服务
	event     IServerEvent                  // 事件
	ep        Endpoint                      // 监听端点
	category  string                        // 错误类别
	maxConn   int                           // 最大连接数
	highWater int                           // 会话写队列高水位
	state     int32                         // 运行状态
	sessmap   *utils.SafeMap[string, ISess] // 会话注册表
	totals    Stats                         // 自启动以来的累计统计
	bootCh    chan struct{}                 // 启动汇合
	runCh     chan error                    // 引擎退出通知
}

func newBaseServer(svc *Service, gsrv gnetServer, event IServerEvent, ep Endpoint, category string, maxConn, highWater int) *baseServer {
	if maxConn <= 0 {
		maxConn = DEFAULT_MAX_CONN
	}

	return &baseServer{
		id:        uuid.NewString(),
		svc:       svc,
		gsrv:      gsrv,
		event:     event,
		ep:        ep,
		category:  category,
		maxConn:   maxConn,
		highWater: highWater,
		sessmap:   utils.NewSafeMap[string, ISess](),
	}
}

func (this_ *baseServer) ID() string {
	return this_.id
}

func (this_ *baseServer) Endpoint() Endpoint {
	return this_.ep
}

func (this_ *baseServer) IsStarted() bool {
	return atomic.LoadInt32(&this_.state) == 1
}

func (this_ *baseServer) SessionCount() int {
	return this_.sessmap.Count()
}

func (this_ *baseServer) FindSession(id string) (ISess, bool) {
	return this_.sessmap.Get(id)
}

func (this_ *baseServer) Stats() *Stats {
	return &this_.totals
}

// Start 启动服务
//
// 阻塞直到引擎进入事件循环; 监听失败时返回错误。
func (this_ *baseServer) Start() error {
	if !atomic.CompareAndSwapInt32(&this_.state, 0, 1) {
		return ErrAlreadyStarted
	}

	this_.bootCh = make(chan struct{})
	this_.runCh = make(chan error, 1)
	this_.totals.Reset()

	go func() {
		this_.runCh <- gnet.Run(this_.gsrv, this_.host(), this_.options()...)
	}()

	select {
	case <-this_.bootCh:
		this_.svc.Post(func() { this_.event.OnStarted(this_.gsrv) })
		return nil

	case err := <-this_.runCh:
		atomic.StoreInt32(&this_.state, 0)
		if err == nil {
			err = ErrNotStarted
		}
		return err
	}
}

// Stop 停止服务
//
// 关闭所有连接并等待引擎退出; 返回前保证断开回调均已执行。
func (this_ *baseServer) Stop() bool {
	if !atomic.CompareAndSwapInt32(&this_.state, 1, 0) {
		return false
	}

	err := this_.eng.Stop(context.Background())
	if err != nil {
		log.Error("engine stop failed: %v", err)
	}

	<-this_.runCh

	// 引擎退出时所有连接的 OnClose 已触发, 排空后断开回调已执行
	this_.svc.flush()
	this_.svc.Post(func() { this_.event.OnStopped(this_.gsrv) })
	this_.svc.flush()
	this_.sessmap.Clear()
	return true
}

// Restart 重启服务
func (this_ *baseServer) Restart() error {
	this_.Stop()
	return this_.Start()
}

// Broadcast 向所有存活会话发送数据
func (this_ *baseServer) Broadcast(data []byte) int {
	count := 0

	for _, sess := range this_.sessmap.Values() {
		if sess.Send(data) > 0 {
			count++
		}
	}

	return count
}

// DisconnectAll 断开所有会话
func (this_ *baseServer) DisconnectAll() {
	for _, sess := range this_.sessmap.Values() {
		sess.Disconnect()
	}
}

// OnBoot 引擎启动事件
func (this_ *baseServer) OnBoot(eng gnet.Engine) gnet.Action {
	this_.eng = eng
	close(this_.bootCh)
	return gnet.None
}

// OnOpen 客户端连接事件
func (this_ *baseServer) OnOpen(c gnet.Conn) ([]byte, gnet.Action) {
	if this_.maxConn > 0 && this_.sessmap.Count() >= this_.maxConn {
		return nil, gnet.Close
	}

	sess := this_.gsrv.newSess(c)
	c.SetContext(sess)
	this_.sessmap.Set(sess.ID(), sess)

	b := sess.base()
	b.strand.Post(func() {
		if err := this_.event.OnConnected(sess); err != nil {
			log.Error("[%v] connect refused: %v", sess.RemoteAddr(), err)
			sess.Disconnect()
		}
	})

	return nil, gnet.None
}

// OnClose 客户端连接断开事件
func (this_ *baseServer) OnClose(c gnet.Conn, err error) gnet.Action {
	ctx := c.Context()
	if ctx == nil {
		return gnet.None
	}

	sess := ctx.(gnetISess)
	b := sess.base()
	atomic.StoreInt32(&b.connected, 0)

	if b.closeTimer != nil {
		b.closeTimer.Stop()
	}

	b.strand.Post(func() {
		if !atomic.CompareAndSwapInt32(&b.closed, 0, 1) {
			return
		}

		if err != nil && !IsClosedErr(err) {
			if IsConnReset(err) {
				log.Debug("[%v] PASSIVE close", sess.RemoteAddr())
			} else {
				log.Error("[%v] ACTIVE close. Error: %v", sess.RemoteAddr(), err)
			}

			this_.event.OnError(errnoOf(err), this_.category, err.Error())
		}

		this_.event.OnDisconnected(sess)
		// OnDisconnected 返回后才摘除
		this_.sessmap.Remove(sess.ID())
	})

	return gnet.None
}

func (this_ *baseServer) host() string {
	return fmt.Sprintf("tcp://%v", this_.ep.String())
}

func (this_ *baseServer) options() []gnet.Option {
	return []gnet.Option{
		gnet.WithMulticore(true),
		gnet.WithReuseAddr(true),
		gnet.WithTCPNoDelay(gnet.TCPNoDelay),
		gnet.WithSocketSendBuffer(SEND_BUF_SIZE),
		gnet.WithSocketRecvBuffer(RECV_BUF_SIZE),
		gnet.WithReadBufferCap(RECV_CHUNK_SIZE),
		gnet.WithLogLevel(logging.ErrorLevel),
	}
}

// postError 投递错误事件
func (this_ *baseServer) postError(code int, msg string) {
	this_.svc.Post(func() { this_.event.OnError(code, this_.category, msg) })
}
