package nw

// Protocol 网络协议
type Protocol int32

const (
	Protocol_None         Protocol = 0
	Protocol_TCP          Protocol = 1
	Protocol_UDP          Protocol = 2
	Protocol_TLS          Protocol = 3
	Protocol_Websocket    Protocol = 4
	Protocol_WebsocketTLS Protocol = 5
	Protocol_Message      Protocol = 6
)

func (this_ Protocol) String() string {
	switch this_ {
	case Protocol_TCP:
		return "tcp"
	case Protocol_UDP:
		return "udp"
	case Protocol_TLS:
		return "tls"
	case Protocol_Websocket:
		return "websocket"
	case Protocol_WebsocketTLS:
		return "websocket+tls"
	case Protocol_Message:
		return "message"
	}

	return "none"
}

// 常量定义
const (
	RECV_CHUNK_SIZE = 8192            // 单次读操作的缓冲区长度
	RECV_BUF_SIZE   = 1024 * 1024 * 2 // 读缓冲区 2M
	SEND_BUF_SIZE   = 1024 * 1024 * 2 // 写缓冲区 2M

	DEFAULT_HIGH_WATER = 1024 * 1024 * 8 // 写队列默认高水位
	DEFAULT_MAX_CONN   = 10000
)
