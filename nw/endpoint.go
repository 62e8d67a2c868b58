package nw

import (
	"net"
	"strconv"
)

// IPProto IP 协议族
type IPProto int32

const (
	IPProto_None IPProto = 0
	IPProto_V4   IPProto = 4
	IPProto_V6   IPProto = 6
)

func (this_ IPProto) String() string {
	switch this_ {
	case IPProto_V4:
		return "ipv4"
	case IPProto_V6:
		return "ipv6"
	}

	return "none"
}

// Endpoint 网络端点
//   - (协议族, 地址, 端口) 三元组, 创建后不可变
type Endpoint struct {
	proto IPProto
	ip    net.IP
	port  uint16
}

// NewEndpoint 创建端点
//   - addr 必须是合法的 IPv4/IPv6 地址字面量
//   - port 为 0 时由操作系统分配
func NewEndpoint(addr string, port uint16) (Endpoint, error) {
	ip := net.ParseIP(addr)
	if ip == nil {
		return Endpoint{}, ErrEndpointInvalid
	}

	proto := IPProto_V6
	if ip.To4() != nil {
		proto = IPProto_V4
	}

	return Endpoint{
		proto: proto,
		ip:    ip,
		port:  port,
	}, nil
}

func (this_ Endpoint) Proto() IPProto {
	return this_.proto
}

func (this_ Endpoint) Addr() string {
	return this_.ip.String()
}

func (this_ Endpoint) Port() uint16 {
	return this_.port
}

func (this_ Endpoint) IsValid() bool {
	return this_.proto != IPProto_None
}

// IsMulticast 是否为组播地址
//   - 224.0.0.0/4 或 ff00::/8
func (this_ Endpoint) IsMulticast() bool {
	return this_.ip.IsMulticast()
}

// String "host:port" 形式
func (this_ Endpoint) String() string {
	return net.JoinHostPort(this_.ip.String(), portString(this_.port))
}

func portString(port uint16) string {
	return strconv.Itoa(int(port))
}

func (this_ Endpoint) TCPAddr() *net.TCPAddr {
	return &net.TCPAddr{IP: this_.ip, Port: int(this_.port)}
}

func (this_ Endpoint) UDPAddr() *net.UDPAddr {
	return &net.UDPAddr{IP: this_.ip, Port: int(this_.port)}
}

// endpointFromAddr net.Addr 转端点
func endpointFromAddr(addr net.Addr) Endpoint {
	switch a := addr.(type) {
	case *net.UDPAddr:
		return endpointFromIPPort(a.IP, a.Port)
	case *net.TCPAddr:
		return endpointFromIPPort(a.IP, a.Port)
	}

	host, portStr, err := net.SplitHostPort(addr.String())
	if err != nil {
		return Endpoint{}
	}

	port, _ := strconv.Atoi(portStr)
	ep, _ := NewEndpoint(host, uint16(port))
	return ep
}

func endpointFromIPPort(ip net.IP, port int) Endpoint {
	proto := IPProto_V6
	if ip.To4() != nil {
		proto = IPProto_V4
	}

	return Endpoint{proto: proto, ip: ip, port: uint16(port)}
}
