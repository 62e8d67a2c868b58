package nw_test

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/gox/netio/nw"
)

// udpSrvRecorder UDP 服务端事件记录
type udpSrvRecorder struct {
	nw.UdpServerEvent

	echo bool

	mtx  sync.Mutex
	recv [][]byte
}

func (this_ *udpSrvRecorder) OnData(server *nw.UdpServer, from nw.Endpoint, data []byte) {
	this_.mtx.Lock()
	this_.recv = append(this_.recv, data)
	this_.mtx.Unlock()

	if this_.echo {
		server.Send(from, data)
	}
}

func (this_ *udpSrvRecorder) datagrams() [][]byte {
	this_.mtx.Lock()
	defer this_.mtx.Unlock()
	return append([][]byte(nil), this_.recv...)
}

// udpCliRecorder UDP 客户端事件记录
type udpCliRecorder struct {
	nw.UdpClientEvent

	mtx  sync.Mutex
	recv [][]byte
}

func (this_ *udpCliRecorder) OnData(client *nw.UdpClient, from nw.Endpoint, data []byte) {
	this_.mtx.Lock()
	this_.recv = append(this_.recv, data)
	this_.mtx.Unlock()
}

func (this_ *udpCliRecorder) datagrams() [][]byte {
	this_.mtx.Lock()
	defer this_.mtx.Unlock()
	return append([][]byte(nil), this_.recv...)
}

func (this_ *udpCliRecorder) bytes() int {
	this_.mtx.Lock()
	defer this_.mtx.Unlock()

	total := 0
	for _, d := range this_.recv {
		total += len(d)
	}
	return total
}

func TestUdpEcho(t *testing.T) {
	svc := startService(t)
	port := nextPort()

	srvEv := &udpSrvRecorder{echo: true}
	server, err := nw.NewUdpServer(svc, &nw.UdpServerConfig{IP: "127.0.0.1", Port: port}, srvEv)
	require.NoError(t, err)
	require.NoError(t, server.Start())
	defer server.Stop()

	cliEv := &udpCliRecorder{}
	client, err := nw.NewUdpClient(svc, &nw.UdpClientConfig{IP: "127.0.0.1", Port: port}, cliEv)
	require.NoError(t, err)
	require.True(t, client.Connect())
	defer client.Disconnect()

	require.Equal(t, 4, client.Send([]byte("ping")))

	// 每个数据报一次投递, 边界保持
	require.Eventually(t, func() bool {
		grams := cliEv.datagrams()
		return len(grams) == 1 && string(grams[0]) == "ping"
	}, 5*time.Second, 10*time.Millisecond)

	require.Equal(t, int64(4), server.Stats().BytesRecv())
	require.Equal(t, int64(4), server.Stats().BytesSent())
	require.Equal(t, int64(1), server.Stats().MsgsRecv())
	require.Equal(t, int64(4), client.Stats().BytesSent())
	require.Equal(t, int64(4), client.Stats().BytesRecv())
}

func TestUdpDatagramBoundaries(t *testing.T) {
	svc := startService(t)
	port := nextPort()

	srvEv := &udpSrvRecorder{}
	server, err := nw.NewUdpServer(svc, &nw.UdpServerConfig{IP: "127.0.0.1", Port: port}, srvEv)
	require.NoError(t, err)
	require.NoError(t, server.Start())
	defer server.Stop()

	client, err := nw.NewUdpClient(svc, &nw.UdpClientConfig{IP: "127.0.0.1", Port: port}, nil)
	require.NoError(t, err)
	require.True(t, client.Connect())
	defer client.Disconnect()

	client.Send([]byte("aa"))
	client.Send([]byte("bbb"))
	client.Send([]byte("c"))

	require.Eventually(t, func() bool {
		return len(srvEv.datagrams()) == 3
	}, 5*time.Second, 10*time.Millisecond)

	grams := srvEv.datagrams()
	require.Equal(t, "aa", string(grams[0]))
	require.Equal(t, "bbb", string(grams[1]))
	require.Equal(t, "c", string(grams[2]))
}

func TestUdpMulticastFanOut(t *testing.T) {
	const group = "239.255.0.1"

	svc := startService(t)
	port := nextPort()

	server, err := nw.NewUdpServer(svc, &nw.UdpServerConfig{
		IP:            "0.0.0.0",
		MulticastIP:   group,
		MulticastPort: port,
	}, nil)
	require.NoError(t, err)
	require.NoError(t, server.Start())
	defer server.Stop()

	probe, err := nw.NewUdpClient(svc, &nw.UdpClientConfig{
		IP:        group,
		Port:      port,
		Multicast: true,
		Reuse:     true,
	}, &udpCliRecorder{})
	require.NoError(t, err)
	require.True(t, probe.Connect())
	defer probe.Disconnect()

	if err := probe.JoinMulticastGroup(group); err != nil {
		t.Skipf("multicast unavailable: %v", err)
	}

	// 环境探测: 组播不可达时跳过
	time.Sleep(100 * time.Millisecond)
	server.Multicast([]byte("test"))

	reachable := false
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if probe.Stats().BytesRecv() > 0 {
			reachable = true
			break
		}

		server.Multicast([]byte("test"))
		time.Sleep(100 * time.Millisecond)
	}

	if !reachable {
		t.Skip("multicast delivery unavailable in this environment")
	}

	// 依次加入的客户端只收到加入之后的数据报
	recs := make([]*udpCliRecorder, 2)
	clients := make([]*nw.UdpClient, 2)

	for i := range clients {
		recs[i] = &udpCliRecorder{}

		client, err := nw.NewUdpClient(svc, &nw.UdpClientConfig{
			IP:        group,
			Port:      port,
			Multicast: true,
			Reuse:     true,
		}, recs[i])
		require.NoError(t, err)
		require.True(t, client.Connect())
		require.NoError(t, client.JoinMulticastGroup(group))
		clients[i] = client

		time.Sleep(100 * time.Millisecond)
		server.Multicast([]byte("test"))

		rec := recs[i]
		require.Eventually(t, func() bool {
			return rec.bytes() >= 4
		}, 2*time.Second, 10*time.Millisecond)
	}

	// 重复加入为幂等
	require.NoError(t, clients[0].JoinMulticastGroup(group))

	// 退出组播组后不再接收
	require.NoError(t, clients[0].LeaveMulticastGroup(group))
	time.Sleep(100 * time.Millisecond)

	before := recs[0].bytes()
	server.Multicast([]byte("test"))
	time.Sleep(200 * time.Millisecond)
	require.Equal(t, before, recs[0].bytes())

	// 服务端只发不收
	require.Equal(t, int64(0), server.Stats().BytesRecv())

	for _, client := range clients {
		client.Disconnect()
	}
}
