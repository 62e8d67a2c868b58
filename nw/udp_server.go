package nw

import (
	"context"
	"net"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/gox/netio/utils"
)

// UdpServerConfig UDP 服务配置
type UdpServerConfig struct {
	IP            string `yaml:"ip"             json:"ip,omitempty"`   // 绑定地址, 默认 0.0.0.0
	Port          uint16 `yaml:"port"           json:"port,omitempty"` // 绑定端口
	MulticastIP   string `yaml:"multicast_ip"   json:"multicast_ip,omitempty"`   // Multicast 的目标组地址
	MulticastPort uint16 `yaml:"multicast_port" json:"multicast_port,omitempty"` // 目标组端口, 0 时取绑定端口
}

func (this_ *UdpServerConfig) String() string {
	return utils.ToJson(this_)
}

// UdpServer UDP 服务器
//
// 无连接: 绑定套接字持续接收, 每个数据报原样触发一次 OnData。
// 组播模式下 Multicast 把数据报发往配置的组地址。
type UdpServer struct {
	id        string
	svc       *Service
	event     IUdpServerEvent
	ep        Endpoint
	groupAddr *net.UDPAddr // 组播目标, 可为 nil
	conn      *net.UDPConn
	state     int32
	stats     Stats
	wg        sync.WaitGroup
}

func NewUdpServer(svc *Service, c *UdpServerConfig, event IUdpServerEvent) (*UdpServer, error) {
	if svc == nil {
		return nil, ErrServiceNil
	}

	if c == nil {
		return nil, ErrConfigNil
	}

	if event == nil {
		event = &UdpServerEvent{}
	}

	ip := c.IP
	if len(ip) == 0 {
		ip = "0.0.0.0"
	}

	ep, err := NewEndpoint(ip, c.Port)
	if err != nil {
		return nil, err
	}

	var groupAddr *net.UDPAddr

	if len(c.MulticastIP) > 0 {
		port := c.MulticastPort
		if port == 0 {
			port = c.Port
		}

		gep, err := NewEndpoint(c.MulticastIP, port)
		if err != nil {
			return nil, err
		}

		if !gep.IsMulticast() {
			return nil, ErrNotMulticast
		}

		groupAddr = gep.UDPAddr()
	}

	return &UdpServer{
		id:        uuid.NewString(),
		svc:       svc,
		event:     event,
		ep:        ep,
		groupAddr: groupAddr,
	}, nil
}

func (this_ *UdpServer) ID() string {
	return this_.id
}

func (this_ *UdpServer) Protocol() Protocol {
	return Protocol_UDP
}

func (this_ *UdpServer) Endpoint() Endpoint {
	return this_.ep
}

func (this_ *UdpServer) IsStarted() bool {
	return atomic.LoadInt32(&this_.state) == 1
}

func (this_ *UdpServer) Stats() *Stats {
	return &this_.stats
}

// LocalAddr 实际绑定地址 (端口 0 时由系统分配)
func (this_ *UdpServer) LocalAddr() net.Addr {
	if this_.conn == nil {
		return nil
	}

	return this_.conn.LocalAddr()
}

// Start 启动服务
func (this_ *UdpServer) Start() error {
	if !atomic.CompareAndSwapInt32(&this_.state, 0, 1) {
		return ErrAlreadyStarted
	}

	lc := net.ListenConfig{Control: reuseAddrControl}

	pc, err := lc.ListenPacket(context.Background(), "udp", this_.ep.String())
	if err != nil {
		atomic.StoreInt32(&this_.state, 0)
		return err
	}

	this_.conn = pc.(*net.UDPConn)
	this_.stats.Reset()

	this_.wg.Add(1)
	go this_.recvLoop()

	this_.svc.Post(func() { this_.event.OnStarted(this_) })
	return nil
}

// Stop 停止服务
func (this_ *UdpServer) Stop() bool {
	if !atomic.CompareAndSwapInt32(&this_.state, 1, 0) {
		return false
	}

	this_.conn.Close()
	this_.wg.Wait()

	this_.svc.flush()
	this_.svc.Post(func() { this_.event.OnStopped(this_) })
	this_.svc.flush()
	return true
}

// Restart 重启服务
func (this_ *UdpServer) Restart() error {
	this_.Stop()
	return this_.Start()
}

// Send 向指定端点发送一个数据报
//   - 返回发送的字节数
func (this_ *UdpServer) Send(ep Endpoint, data []byte) int {
	return this_.sendTo(ep.UDPAddr(), data)
}

// Multicast 向配置的组播组发送一个数据报
func (this_ *UdpServer) Multicast(data []byte) int {
	if this_.groupAddr == nil {
		this_.postError(0, ErrNotMulticast.Error())
		return 0
	}

	return this_.sendTo(this_.groupAddr, data)
}

func (this_ *UdpServer) sendTo(addr *net.UDPAddr, data []byte) int {
	if atomic.LoadInt32(&this_.state) != 1 {
		return 0
	}

	n, err := this_.conn.WriteToUDP(data, addr)
	if err != nil {
		this_.postError(errnoOf(err), err.Error())
		return 0
	}

	this_.stats.AddSent(n)
	this_.svc.Post(func() { this_.event.OnSent(this_, n) })
	return n
}

func (this_ *UdpServer) recvLoop() {
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

func (this_ *UdpServer) postError(code int, msg string) {
	this_.svc.Post(func() { this_.event.OnError(code, CategoryUdp, msg) })
}
