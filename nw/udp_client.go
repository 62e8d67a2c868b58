package nw

import (
	"context"
	"net"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/gox/netio/utils"
	"golang.org/x/net/ipv4"
	"golang.org/x/net/ipv6"
)

// UdpClientConfig UDP 客户端配置
type UdpClientConfig struct {
	IP        string `yaml:"ip"        json:"ip,omitempty"`        // 服务端/组播端点地址
	Port      uint16 `yaml:"port"      json:"port,omitempty"`      // 服务端/组播端口
	Multicast bool   `yaml:"multicast" json:"multicast,omitempty"` // 组播模式: 绑定本地端口接收组播
	Reuse     bool   `yaml:"reuse"     json:"reuse,omitempty"`     // 绑定时复用地址, 允许同一主机多个客户端
	Interface string `yaml:"interface" json:"interface,omitempty"` // 组播网卡名, 为空时由系统选择
}

func (this_ *UdpClientConfig) String() string {
	return utils.ToJson(this_)
}

// UdpClient UDP 客户端
//
// 普通模式 connect 到服务端; 组播模式绑定本地端口,
// JoinMulticastGroup 之后开始接收发往该组的数据报。
type UdpClient struct {
	id        string
	svc       *Service
	event     IUdpClientEvent
	ep        Endpoint
	multicast bool
	reuse     bool
	ifiName   string
	ifi       *net.Interface
	conn      *net.UDPConn
	p4        *ipv4.PacketConn
	p6        *ipv6.PacketConn
	groups    *utils.SafeMap[string, bool] // 已加入的组
	connected int32
	stats     Stats
	wg        sync.WaitGroup
	mtx       sync.Mutex // 连接与断开互斥
}

func NewUdpClient(svc *Service, c *UdpClientConfig, event IUdpClientEvent) (*UdpClient, error) {
	if svc == nil {
		return nil, ErrServiceNil
	}

	if c == nil {
		return nil, ErrConfigNil
	}

	if event == nil {
		event = &UdpClientEvent{}
	}

	ep, err := NewEndpoint(c.IP, c.Port)
	if err != nil {
		return nil, err
	}

	return &UdpClient{
		id:        uuid.NewString(),
		svc:       svc,
		event:     event,
		ep:        ep,
		multicast: c.Multicast,
		reuse:     c.Reuse,
		ifiName:   c.Interface,
		groups:    utils.NewSafeMap[string, bool](),
	}, nil
}

func (this_ *UdpClient) ID() string {
	return this_.id
}

func (this_ *UdpClient) Protocol() Protocol {
	return Protocol_UDP
}

func (this_ *UdpClient) Endpoint() Endpoint {
	return this_.ep
}

func (this_ *UdpClient) IsConnected() bool {
	return atomic.LoadInt32(&this_.connected) == 1
}

func (this_ *UdpClient) Stats() *Stats {
	return &this_.stats
}

// LocalAddr 本地绑定地址
func (this_ *UdpClient) LocalAddr() net.Addr {
	if this_.conn == nil {
		return nil
	}

	return this_.conn.LocalAddr()
}

// Connect 打开套接字并启动接收
//   - 组播模式绑定本地端口; 普通模式 connect 到目标端点
func (this_ *UdpClient) Connect() bool {
	this_.mtx.Lock()
	defer this_.mtx.Unlock()

	if !atomic.CompareAndSwapInt32(&this_.connected, 0, 1) {
		return false
	}

	err := this_.open()
	if err != nil {
		atomic.StoreInt32(&this_.connected, 0)
		this_.postError(errnoOf(err), err.Error())
		return false
	}

	this_.wg.Add(1)
	go this_.recvLoop()

	this_.svc.Post(func() { this_.event.OnConnected(this_) })
	return true
}

// Disconnect 关闭套接字
//   - 已加入的组随套接字关闭一并退出
func (this_ *UdpClient) Disconnect() bool {
	this_.mtx.Lock()
	defer this_.mtx.Unlock()

	if !atomic.CompareAndSwapInt32(&this_.connected, 1, 0) {
		return false
	}

	this_.conn.Close()
	this_.wg.Wait()

	this_.p4 = nil
	this_.p6 = nil
	this_.groups.Clear()

	this_.svc.Post(func() { this_.event.OnDisconnected(this_) })
	return true
}

// Reconnect 重连, 客户端ID保持不变
func (this_ *UdpClient) Reconnect() bool {
	this_.Disconnect()
	return this_.Connect()
}

// Send 向目标端点发送一个数据报
func (this_ *UdpClient) Send(data []byte) int {
	if atomic.LoadInt32(&this_.connected) != 1 {
		return 0
	}

	var (
		n   int
		err error
	)

	if this_.multicast {
		n, err = this_.conn.WriteToUDP(data, this_.ep.UDPAddr())
	} else {
		n, err = this_.conn.Write(data)
	}

	if err != nil {
		this_.postError(errnoOf(err), err.Error())
		return 0
	}

	this_.stats.AddSent(n)
	this_.svc.Post(func() { this_.event.OnSent(this_, n) })
	return n
}

// SendTo 向指定端点发送一个数据报
//   - 仅组播/绑定模式可用
func (this_ *UdpClient) SendTo(ep Endpoint, data []byte) int {
	if atomic.LoadInt32(&this_.connected) != 1 || !this_.multicast {
		return 0
	}

	n, err := this_.conn.WriteToUDP(data, ep.UDPAddr())
	if err != nil {
		this_.postError(errnoOf(err), err.Error())
		return 0
	}

	this_.stats.AddSent(n)
	this_.svc.Post(func() { this_.event.OnSent(this_, n) })
	return n
}

// JoinMulticastGroup 加入组播组
//   - 重复加入同一组为幂等操作
func (this_ *UdpClient) JoinMulticastGroup(addr string) error {
	if atomic.LoadInt32(&this_.connected) != 1 {
		return ErrNotConnected
	}

	ip := net.ParseIP(addr)
	if ip == nil {
		return ErrEndpointInvalid
	}

	if !ip.IsMulticast() {
		return ErrNotMulticast
	}

	if _, joined := this_.groups.Get(addr); joined {
		return nil
	}

	group := &net.UDPAddr{IP: ip}

	var err error

	if this_.p4 != nil && ip.To4() != nil {
		err = this_.p4.JoinGroup(this_.ifi, group)
	} else if this_.p6 != nil {
		err = this_.p6.JoinGroup(this_.ifi, group)
	} else {
		err = ErrNotConnected
	}

	if err != nil {
		return err
	}

	this_.groups.Set(addr, true)
	return nil
}

// LeaveMulticastGroup 退出组播组
func (this_ *UdpClient) LeaveMulticastGroup(addr string) error {
	if atomic.LoadInt32(&this_.connected) != 1 {
		return ErrNotConnected
	}

	ip := net.ParseIP(addr)
	if ip == nil {
		return ErrEndpointInvalid
	}

	if _, joined := this_.groups.Get(addr); !joined {
		return nil
	}

	group := &net.UDPAddr{IP: ip}

	var err error

	if this_.p4 != nil && ip.To4() != nil {
		err = this_.p4.LeaveGroup(this_.ifi, group)
	} else if this_.p6 != nil {
		err = this_.p6.LeaveGroup(this_.ifi, group)
	} else {
		err = ErrNotConnected
	}

	if err != nil {
		return err
	}

	this_.groups.Remove(addr)
	return nil
}

func (this_ *UdpClient) open() error {
	if len(this_.ifiName) > 0 {
		ifi, err := net.InterfaceByName(this_.ifiName)
		if err != nil {
			return err
		}
		this_.ifi = ifi
	}

	if !this_.multicast {
		conn, err := net.DialUDP("udp", nil, this_.ep.UDPAddr())
		if err != nil {
			return err
		}

		this_.conn = conn
		return nil
	}

	// 组播模式: 绑定通配地址的组端口
	network := "udp4"
	wildcard := "0.0.0.0"

	if this_.ep.Proto() == IPProto_V6 {
		network = "udp6"
		wildcard = "::"
	}

	lc := net.ListenConfig{}
	if this_.reuse {
		lc.Control = reuseAddrControl
	}

	pc, err := lc.ListenPacket(context.Background(), network, net.JoinHostPort(wildcard, portString(this_.ep.Port())))
	if err != nil {
		return err
	}

	this_.conn = pc.(*net.UDPConn)

	if network == "udp4" {
		this_.p4 = ipv4.NewPacketConn(this_.conn)
	} else {
		this_.p6 = ipv6.NewPacketConn(this_.conn)
	}

	return nil
}

func (this_ *UdpClient) recvLoop() {
	defer this_.wg.Done()

	rbuf := acquireRecvBuf()
	defer releaseRecvBuf(rbuf)

	buf := rbuf.data

	for {
		n, addr, err := this_.conn.ReadFromUDP(buf)
		if err != nil {
			if IsClosedErr(err) {
				break
			}

			this_.postError(errnoOf(err), err.Error())
			continue
		}

		this_.stats.AddRecv(n)

		from := endpointFromAddr(addr)
		data := utils.CloneBytes(buf[:n])

		this_.svc.Post(func() { this_.event.OnData(this_, from, data) })
	}
}

func (this_ *UdpClient) postError(code int, msg string) {
	this_.svc.Post(func() { this_.event.OnError(code, CategoryUdp, msg) })
}
