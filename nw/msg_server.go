package nw

import (
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/gox/netio/utils"

	"go.nanomsg.org/mangos/v3"
	"go.nanomsg.org/mangos/v3/protocol/pair"
	"go.nanomsg.org/mangos/v3/protocol/pub"
	"go.nanomsg.org/mangos/v3/protocol/rep"

	// 注册传输
	_ "go.nanomsg.org/mangos/v3/transport/inproc"
	_ "go.nanomsg.org/mangos/v3/transport/tcp"
)

// MsgPattern 消息套接字模式
type MsgPattern int32

const (
	MsgPattern_None      MsgPattern = 0
	MsgPattern_Pair      MsgPattern = 1 // 恰好两端, 双向
	MsgPattern_Request   MsgPattern = 2 // 客户端: 请求
	MsgPattern_Reply     MsgPattern = 3 // 服务端: 应答
	MsgPattern_Publish   MsgPattern = 4 // 服务端: 发布
	MsgPattern_Subscribe MsgPattern = 5 // 客户端: 订阅
)

func (this_ MsgPattern) String() string {
	switch this_ {
	case MsgPattern_Pair:
		return "pair"
	case MsgPattern_Request:
		return "request"
	case MsgPattern_Reply:
		return "reply"
	case MsgPattern_Publish:
		return "publish"
	case MsgPattern_Subscribe:
		return "subscribe"
	}

	return "none"
}

// MsgServerConfig 消息服务配置
type MsgServerConfig struct {
	Url     string     `yaml:"url"     json:"url,omitempty"` // "tcp://ip:port" 或 "inproc://name"
	Pattern MsgPattern `yaml:"pattern" json:"pattern,omitempty"`
}

func (this_ *MsgServerConfig) String() string {
	return utils.ToJson(this_)
}

// MsgServer 消息服务器
//
// 底层消息库维护连接, 这里只保留与其他服务端一致的
// Start/Stop/Restart 与 Send/OnData 面貌。
type MsgServer struct {
	id      string
	svc     *Service
	event   IMsgServerEvent
	url     string
	pattern MsgPattern
	sock    mangos.Socket
	state   int32
	stats   Stats
	wg      sync.WaitGroup
}

func NewMsgServer(svc *Service, c *MsgServerConfig, event IMsgServerEvent) (*MsgServer, error) {
	if svc == nil {
		return nil, ErrServiceNil
	}

	if c == nil {
		return nil, ErrConfigNil
	}

	if event == nil {
		event = &MsgServerEvent{}
	}

	switch c.Pattern {
	case MsgPattern_Pair, MsgPattern_Reply, MsgPattern_Publish:
	default:
		return nil, ErrMsgPattern
	}

	if len(c.Url) == 0 {
		return nil, ErrEndpointInvalid
	}

	return &MsgServer{
		id:      uuid.NewString(),
		svc:     svc,
		event:   event,
		url:     c.Url,
		pattern: c.Pattern,
	}, nil
}

func (this_ *MsgServer) ID() string {
	return this_.id
}

func (this_ *MsgServer) Protocol() Protocol {
	return Protocol_Message
}

func (this_ *MsgServer) Pattern() MsgPattern {
	return this_.pattern
}

func (this_ *MsgServer) Url() string {
	return this_.url
}

func (this_ *MsgServer) IsStarted() bool {
	return atomic.LoadInt32(&this_.state) == 1
}

func (this_ *MsgServer) Stats() *Stats {
	return &this_.stats
}

// Start 启动服务
func (this_ *MsgServer) Start() error {
	if !atomic.CompareAndSwapInt32(&this_.state, 0, 1) {
		return ErrAlreadyStarted
	}

	sock, err := newMsgSocket(this_.pattern)
	if err != nil {
		atomic.StoreInt32(&this_.state, 0)
		return err
	}

	err = sock.Listen(this_.url)
	if err != nil {
		sock.Close()
		atomic.StoreInt32(&this_.state, 0)
		return err
	}

	this_.sock = sock
	this_.stats.Reset()

	// 发布模式只发不收
	if this_.pattern != MsgPattern_Publish {
		this_.wg.Add(1)
		go this_.recvLoop()
	}

	this_.svc.Post(func() { this_.event.OnStarted(this_) })
	return nil
}

// Stop 停止服务
func (this_ *MsgServer) Stop() bool {
	if !atomic.CompareAndSwapInt32(&this_.state, 1, 0) {
		return false
	}

	this_.sock.Close()
	this_.wg.Wait()

	this_.svc.flush()
	this_.svc.Post(func() { this_.event.OnStopped(this_) })
	this_.svc.flush()
	return true
}

// Restart 重启服务
func (this_ *MsgServer) Restart() error {
	this_.Stop()
	return this_.Start()
}

// Send 发送一条消息
//   - Pair: 发往对端; Reply: 应答最近一条请求; Publish: 广播给订阅者
func (this_ *MsgServer) Send(data []byte) int {
	if atomic.LoadInt32(&this_.state) != 1 {
		return 0
	}

	err := this_.sock.Send(data)
	if err != nil {
		this_.postError(err)
		return 0
	}

	this_.stats.AddSent(len(data))
	return len(data)
}

func (this_ *MsgServer) recvLoop() {
	defer this_.wg.Done()

	for {
		data, err := this_.sock.Recv()
		if err != nil {
			if err == mangos.ErrClosed {
				break
			}

			this_.postError(err)
			continue
		}

		this_.stats.AddRecv(len(data))

		msg := data
		this_.svc.Post(func() {
			if err := this_.event.OnData(this_, msg); err != nil {
				this_.postError(err)
			}
		})
	}
}

func (this_ *MsgServer) postError(err error) {
	this_.svc.Post(func() { this_.event.OnError(0, CategoryMessage, err.Error()) })
}

func newMsgSocket(pattern MsgPattern) (mangos.Socket, error) {
	switch pattern {
	case MsgPattern_Pair:
		return pair.NewSocket()
	case MsgPattern_Reply:
		return rep.NewSocket()
	case MsgPattern_Publish:
		return pub.NewSocket()
	}

	return nil, ErrMsgPattern
}
