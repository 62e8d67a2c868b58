package nw

// IServiceEvent 服务事件
//   - 所有回调均在 worker 协程触发
type IServiceEvent interface {
	OnThreadStart(svc *Service)                          // worker 协程初始化
	OnThreadStop(svc *Service)                           // worker 协程清理
	OnStarted(svc *Service)                              // 服务启动完成
	OnStopped(svc *Service)                              // 服务停止完成
	OnIdle(svc *Service)                                 // 轮询模式下的空转事件
	OnError(svc *Service, code int, category, msg string) // 错误事件
}

// ServiceEvent IServiceEvent 的空实现, 供选择性覆盖
type ServiceEvent struct{}

func (this_ *ServiceEvent) OnThreadStart(*Service)               {}
func (this_ *ServiceEvent) OnThreadStop(*Service)                {}
func (this_ *ServiceEvent) OnStarted(*Service)                   {}
func (this_ *ServiceEvent) OnStopped(*Service)                   {}
func (this_ *ServiceEvent) OnIdle(*Service)                      {}
func (this_ *ServiceEvent) OnError(*Service, int, string, string) {}

// IServerEvent 服务端事件
//   - 同一会话的回调串行触发: OnConnected → (OnData|OnSent)* → OnDisconnected
type IServerEvent interface {
	// 服务启动事件
	OnStarted(server IServer)

	// 服务停止事件
	OnStopped(server IServer)

	// 会话连接事件
	//  - 返回 err 时主动关闭该会话
	OnConnected(sess ISess) error

	// 会话断开事件
	//  - 每条会话恰好触发一次, 返回后才从注册表摘除
	OnDisconnected(sess ISess)

	// 接收数据事件
	//  - 返回 err 时主动关闭该会话
	OnData(sess ISess, data []byte) error

	// 发送完成事件
	//  - sent: 本次写完成的字节数; pending: 队列中剩余字节数
	OnSent(sess ISess, sent, pending int)

	// 错误事件
	OnError(code int, category, msg string)
}

// ServerEvent IServerEvent 的空实现
type ServerEvent struct{}

func (this_ *ServerEvent) OnStarted(IServer)              {}
func (this_ *ServerEvent) OnStopped(IServer)              {}
func (this_ *ServerEvent) OnConnected(ISess) error        { return nil }
func (this_ *ServerEvent) OnDisconnected(ISess)           {}
func (this_ *ServerEvent) OnData(ISess, []byte) error     { return nil }
func (this_ *ServerEvent) OnSent(ISess, int, int)         {}
func (this_ *ServerEvent) OnError(int, string, string)    {}

// IWsMessageEvent websocket 消息事件
//   - 服务端事件可选实现该接口以获得帧级投递; 未实现时文本帧与二进制帧的载荷都走 OnData
type IWsMessageEvent interface {
	OnMessage(sess ISess, msg WsMessage) error
}

// IClientEvent 客户端事件
type IClientEvent interface {
	OnConnected(client IClient)
	OnDisconnected(client IClient)

	// 接收数据事件
	//  - 返回 err 时主动断开
	OnData(client IClient, data []byte) error

	OnSent(client IClient, sent, pending int)
	OnError(code int, category, msg string)
}

// ClientEvent IClientEvent 的空实现
type ClientEvent struct{}

func (this_ *ClientEvent) OnConnected(IClient)            {}
func (this_ *ClientEvent) OnDisconnected(IClient)         {}
func (this_ *ClientEvent) OnData(IClient, []byte) error   { return nil }
func (this_ *ClientEvent) OnSent(IClient, int, int)       {}
func (this_ *ClientEvent) OnError(int, string, string)    {}

// IWsClientMessageEvent websocket 客户端的帧级投递
type IWsClientMessageEvent interface {
	OnMessage(client IClient, msg WsMessage) error
}

// IUdpServerEvent UDP 服务端事件
//   - UDP 无连接, 没有会话生命周期; 每个数据报触发一次 OnData
type IUdpServerEvent interface {
	OnStarted(server *UdpServer)
	OnStopped(server *UdpServer)
	OnData(server *UdpServer, from Endpoint, data []byte)
	OnSent(server *UdpServer, sent int)
	OnError(code int, category, msg string)
}

// UdpServerEvent IUdpServerEvent 的空实现
type UdpServerEvent struct{}

func (this_ *UdpServerEvent) OnStarted(*UdpServer)                 {}
func (this_ *UdpServerEvent) OnStopped(*UdpServer)                 {}
func (this_ *UdpServerEvent) OnData(*UdpServer, Endpoint, []byte)  {}
func (this_ *UdpServerEvent) OnSent(*UdpServer, int)               {}
func (this_ *UdpServerEvent) OnError(int, string, string)          {}

// IUdpClientEvent UDP 客户端事件
type IUdpClientEvent interface {
	OnConnected(client *UdpClient)
	OnDisconnected(client *UdpClient)
	OnData(client *UdpClient, from Endpoint, data []byte)
	OnSent(client *UdpClient, sent int)
	OnError(code int, category, msg string)
}

// UdpClientEvent IUdpClientEvent 的空实现
type UdpClientEvent struct{}

func (this_ *UdpClientEvent) OnConnected(*UdpClient)               {}
func (this_ *UdpClientEvent) OnDisconnected(*UdpClient)            {}
func (this_ *UdpClientEvent) OnData(*UdpClient, Endpoint, []byte)  {}
func (this_ *UdpClientEvent) OnSent(*UdpClient, int)               {}
func (this_ *UdpClientEvent) OnError(int, string, string)          {}

// IMsgServerEvent 消息服务端事件
type IMsgServerEvent interface {
	OnStarted(server *MsgServer)
	OnStopped(server *MsgServer)

	// 消息事件, 一条完整消息触发一次
	//  - 返回 err 时记录错误, 连接由底层消息库维护
	OnData(server *MsgServer, data []byte) error

	OnError(code int, category, msg string)
}

// MsgServerEvent IMsgServerEvent 的空实现
type MsgServerEvent struct{}

func (this_ *MsgServerEvent) OnStarted(*MsgServer)             {}
func (this_ *MsgServerEvent) OnStopped(*MsgServer)             {}
func (this_ *MsgServerEvent) OnData(*MsgServer, []byte) error  { return nil }
func (this_ *MsgServerEvent) OnError(int, string, string)      {}

// IMsgClientEvent 消息客户端事件
type IMsgClientEvent interface {
	OnConnected(client *MsgClient)
	OnDisconnected(client *MsgClient)
	OnData(client *MsgClient, data []byte) error
	OnError(code int, category, msg string)
}

// MsgClientEvent IMsgClientEvent 的空实现
type MsgClientEvent struct{}

func (this_ *MsgClientEvent) OnConnected(*MsgClient)           {}
func (this_ *MsgClientEvent) OnDisconnected(*MsgClient)        {}
func (this_ *MsgClientEvent) OnData(*MsgClient, []byte) error  { return nil }
func (this_ *MsgClientEvent) OnError(int, string, string)      {}
