package nw

import "net"

// ISess 服务端会话接口
//   - 每个存活的对端连接对应一个会话
type ISess interface {
	// 会话ID, 每条连接生成一次
	ID() string

	// 连接协议
	Protocol() Protocol

	// 本端地址
	LocalAddr() net.Addr

	// 远端地址
	RemoteAddr() net.Addr

	IsConnected() bool

	// 发送数据
	//  - 返回进入写队列的字节数; 会话已断开或队列超过高水位时返回 0
	Send(data []byte) int

	// 发起优雅关闭
	//  - 排空写队列后关闭连接; 重复调用返回 false
	Disconnect() bool

	// 连接统计
	Stats() *Stats

	// 获取用户自定义数据
	GetUserData() any

	// 设置用户自定义数据
	SetUserData(userData any)
}

// IServer 服务端接口
type IServer interface {
	ID() string

	Protocol() Protocol

	// 监听端点
	Endpoint() Endpoint

	IsStarted() bool

	Start() error

	Stop() bool

	Restart() error

	// 向所有存活会话发送数据, 返回送达队列的会话数
	//  - 对单个会话尽力而为, 入队失败的会话被跳过
	Broadcast(data []byte) int

	// 断开所有会话
	DisconnectAll()

	// 当前会话数
	SessionCount() int

	// 按ID查找会话
	FindSession(id string) (ISess, bool)

	// 自启动以来的累计统计
	Stats() *Stats
}

// IClient 客户端接口
type IClient interface {
	// 客户端ID, 创建时生成, 重连后保持不变
	ID() string

	Protocol() Protocol

	// 目标端点
	Endpoint() Endpoint

	IsConnected() bool

	Connect() bool

	Disconnect() bool

	// 重连: 断开后重新连接同一端点
	Reconnect() bool

	Send(data []byte) int

	Stats() *Stats
}
