package nw

import (
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/gox/netio/utils"

	"go.nanomsg.org/mangos/v3"
	"go.nanomsg.org/mangos/v3/protocol/pair"
	"go.nanomsg.org/mangos/v3/protocol/req"
	"go.nanomsg.org/mangos/v3/protocol/sub"
)

// MsgClientConfig 消息客户端配置
type MsgClientConfig struct {
	Url     string     `yaml:"url"     json:"url,omitempty"`
	Pattern MsgPattern `yaml:"pattern" json:"pattern,omitempty"`
	Topics  []string   `yaml:"topics"  json:"topics,omitempty"` // 订阅主题, 为空时订阅全部
}

func (this_ *MsgClientConfig) String() string {
	return utils.ToJson(this_)
}

// MsgClient 消息客户端
//
// Pair/Subscribe 持续接收; Request 在每次 Send 之后接收一条应答。
type MsgClient struct {
	id      string
	svc     *Service
	event   IMsgClientEvent
	url     string
	pattern MsgPattern
	topics  []string
	sock    mangos.Socket
	state   int32
	stats   Stats
	reqMtx  sync.Mutex // Request 模式: 请求/应答步进
	wg      sync.WaitGroup
}

func NewMsgClient(svc *Service, c *MsgClientConfig, event IMsgClientEvent) (*MsgClient, error) {
	if svc == nil {
		return nil, ErrServiceNil
	}

	if c == nil {
		return nil, ErrConfigNil
	}

	if event == nil {
		event = &MsgClientEvent{}
	}

	switch c.Pattern {
	case MsgPattern_Pair, MsgPattern_Request, MsgPattern_Subscribe:
	default:
		return nil, ErrMsgPattern
	}

	if len(c.Url) == 0 {
		return nil, ErrEndpointInvalid
	}

	return &MsgClient{
		id:      uuid.NewString(),
		svc:     svc,
		event:   event,
		url:     c.Url,
		pattern: c.Pattern,
		topics:  c.Topics,
	}, nil
}

func (this_ *MsgClient) ID() string {
	return this_.id
}

func (this_ *MsgClient) Protocol() Protocol {
	return Protocol_Message
}

func (this_ *MsgClient) Pattern() MsgPattern {
	return this_.pattern
}

func (this_ *MsgClient) IsConnected() bool {
	return atomic.LoadInt32(&this_.state) == 1
}

func (this_ *MsgClient) Stats() *Stats {
	return &this_.stats
}

// Connect 连接服务端
func (this_ *MsgClient) Connect() bool {
	if !atomic.CompareAndSwapInt32(&this_.state, 0, 1) {
		return false
	}

	sock, err := this_.newSocket()
	if err != nil {
		atomic.StoreInt32(&this_.state, 0)
		this_.postError(err)
		return false
	}

	err = sock.Dial(this_.url)
	if err != nil {
		sock.Close()
		atomic.StoreInt32(&this_.state, 0)
		this_.postError(err)
		return false
	}

	this_.sock = sock

	// Request 模式的应答在 Send 之后单独接收
	if this_.pattern != MsgPattern_Request {
		this_.wg.Add(1)
		go this_.recvLoop()
	}

	this_.svc.Post(func() { this_.event.OnConnected(this_) })
	return true
}

// Disconnect 断开连接
func (this_ *MsgClient) Disconnect() bool {
	if !atomic.CompareAndSwapInt32(&this_.state, 1, 0) {
		return false
	}

	this_.sock.Close()
	this_.wg.Wait()

	this_.svc.Post(func() { this_.event.OnDisconnected(this_) })
	return true
}

// Reconnect 重连, 客户端ID保持不变
func (this_ *MsgClient) Reconnect() bool {
	this_.Disconnect()
	return this_.Connect()
}

// Send 发送一条消息
//   - Request 模式随后接收一条应答并投递 OnData
func (this_ *MsgClient) Send(data []byte) int {
	if atomic.LoadInt32(&this_.state) != 1 {
		return 0
	}

	if this_.pattern == MsgPattern_Request {
		return this_.request(data)
	}

	err := this_.sock.Send(data)
	if err != nil {
		this_.postError(err)
		return 0
	}

	this_.stats.AddSent(len(data))
	return len(data)
}

func (this_ *MsgClient) request(data []byte) int {
	this_.reqMtx.Lock()

	err := this_.sock.Send(data)
	if err != nil {
		this_.reqMtx.Unlock()
		this_.postError(err)
		return 0
	}

	this_.stats.AddSent(len(data))

	this_.wg.Add(1)
	go func() {
		defer this_.wg.Done()
		defer this_.reqMtx.Unlock()

		reply, err := this_.sock.Recv()
		if err != nil {
			if err != mangos.ErrClosed {
				this_.postError(err)
			}
			return
		}

		this_.deliver(reply)
	}()

	return len(data)
}

func (this_ *MsgClient) recvLoop() {
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

		this_.deliver(data)
	}
}

func (this_ *MsgClient) deliver(data []byte) {
	this_.stats.AddRecv(len(data))

	this_.svc.Post(func() {
		if err := this_.event.OnData(this_, data); err != nil {
			this_.postError(err)
		}
	})
}

func (this_ *MsgClient) newSocket() (mangos.Socket, error) {
	switch this_.pattern {
	case MsgPattern_Pair:
		return pair.NewSocket()

	case MsgPattern_Request:
		return req.NewSocket()

	case MsgPattern_Subscribe:
		sock, err := sub.NewSocket()
		if err != nil {
			return nil, err
		}

		if len(this_.topics) == 0 {
			err = sock.SetOption(mangos.OptionSubscribe, []byte(""))
			if err != nil {
				sock.Close()
				return nil, err
			}
			return sock, nil
		}

		for _, topic := range this_.topics {
			err = sock.SetOption(mangos.OptionSubscribe, []byte(topic))
			if err != nil {
				sock.Close()
				return nil, err
			}
		}
		return sock, nil
	}

	return nil, ErrMsgPattern
}

func (this_ *MsgClient) postError(err error) {
	this_.svc.Post(func() { this_.event.OnError(0, CategoryMessage, err.Error()) })
}
