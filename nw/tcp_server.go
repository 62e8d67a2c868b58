package nw

import (
	"github.com/gox/netio/utils"
	"github.com/panjf2000/gnet/v2"
)

// TcpServerConfig TCP 服务配置
type TcpServerConfig struct {
	IP        string `yaml:"ip"         json:"ip,omitempty"`         // 监听地址, 默认 0.0.0.0
	Port      uint16 `yaml:"port"       json:"port,omitempty"`       // 监听端口, 0 时由系统分配
	MaxConn   int    `yaml:"max_conn"   json:"max_conn,omitempty"`   // 最大连接数
	HighWater int    `yaml:"high_water" json:"high_water,omitempty"` // 会话写队列高水位
}

func (this_ *TcpServerConfig) String() string {
	return utils.ToJson(this_)
}

// TcpServer TCP 服务器
//
// 无消息边界, 字节按到达顺序以不超过 RECV_CHUNK_SIZE 的切片投递。
type TcpServer struct {
	baseServer
}

func NewTcpServer(svc *Service, c *TcpServerConfig, event IServerEvent) (*TcpServer, error) {
	if svc == nil {
		return nil, ErrServiceNil
	}

	if c == nil {
		return nil, ErrConfigNil
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

	this_ := &TcpServer{}
	this_.baseServer = *newBaseServer(svc, this_, event, ep, CategoryTcp, c.MaxConn, c.HighWater)
	return this_, nil
}

func (this_ *TcpServer) Protocol() Protocol {
	return Protocol_TCP
}

func (this_ *TcpServer) newSess(c gnet.Conn) gnetISess {
	sess := &TcpSess{}
	sess.init(c, &this_.baseServer, sess)
	return sess
}

// OnTraffic 处理客户端数据
func (this_ *TcpServer) OnTraffic(c gnet.Conn) gnet.Action {
	ctx := c.Context()
	if ctx == nil {
		return gnet.Close
	}

	sess := ctx.(*TcpSess)

	for {
		n := c.InboundBuffered()
		if n == 0 {
			return gnet.None
		}

		take := min(n, RECV_CHUNK_SIZE)
		data, err := c.Peek(take)
		if err != nil {
			return gnet.None
		}

		buf := utils.CloneBytes(data)
		c.Discard(take)

		sess.deliver(buf)
	}
}

// TcpSess TCP 会话
type TcpSess struct {
	gnetSess
}

func (this_ *TcpSess) Protocol() Protocol {
	return Protocol_TCP
}

// Send 发送数据
//   - 返回进入写队列的字节数
func (this_ *TcpSess) Send(data []byte) int {
	if len(data) == 0 {
		return 0
	}

	return this_.queueWrite(utils.CloneBytes(data), len(data))
}
