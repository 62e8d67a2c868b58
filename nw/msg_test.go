package nw_test

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/gox/netio/nw"
)

// msgSrvRecorder 消息服务端事件记录
type msgSrvRecorder struct {
	nw.MsgServerEvent

	reply bool // 应答模式: 回显 "re:"+请求

	mtx  sync.Mutex
	recv [][]byte
}

func (this_ *msgSrvRecorder) OnData(server *nw.MsgServer, data []byte) error {
	this_.mtx.Lock()
	this_.recv = append(this_.recv, data)
	this_.mtx.Unlock()

	if this_.reply {
		server.Send(append([]byte("re:"), data...))
	}
	return nil
}

func (this_ *msgSrvRecorder) messages() [][]byte {
	this_.mtx.Lock()
	defer this_.mtx.Unlock()
	return append([][]byte(nil), this_.recv...)
}

// msgCliRecorder 消息客户端事件记录
type msgCliRecorder struct {
	nw.MsgClientEvent

	mtx  sync.Mutex
	recv [][]byte
}

func (this_ *msgCliRecorder) OnData(client *nw.MsgClient, data []byte) error {
	this_.mtx.Lock()
	this_.recv = append(this_.recv, data)
	this_.mtx.Unlock()
	return nil
}

func (this_ *msgCliRecorder) messages() [][]byte {
	this_.mtx.Lock()
	defer this_.mtx.Unlock()
	return append([][]byte(nil), this_.recv...)
}

func TestMsgPair(t *testing.T) {
	svc := startService(t)
	url := fmt.Sprintf("inproc://pair-%d", nextPort())

	srvEv := &msgSrvRecorder{}
	server, err := nw.NewMsgServer(svc, &nw.MsgServerConfig{Url: url, Pattern: nw.MsgPattern_Pair}, srvEv)
	require.NoError(t, err)
	require.NoError(t, server.Start())
	defer server.Stop()

	cliEv := &msgCliRecorder{}
	client, err := nw.NewMsgClient(svc, &nw.MsgClientConfig{Url: url, Pattern: nw.MsgPattern_Pair}, cliEv)
	require.NoError(t, err)
	require.True(t, client.Connect())
	defer client.Disconnect()

	require.Equal(t, 5, client.Send([]byte("hello")))

	require.Eventually(t, func() bool {
		msgs := srvEv.messages()
		return len(msgs) == 1 && string(msgs[0]) == "hello"
	}, 5*time.Second, 10*time.Millisecond)

	require.Equal(t, 5, server.Send([]byte("world")))

	require.Eventually(t, func() bool {
		msgs := cliEv.messages()
		return len(msgs) == 1 && string(msgs[0]) == "world"
	}, 5*time.Second, 10*time.Millisecond)

	require.Equal(t, int64(5), server.Stats().BytesRecv())
	require.Equal(t, int64(5), server.Stats().BytesSent())
}

func TestMsgRequestReply(t *testing.T) {
	svc := startService(t)
	url := fmt.Sprintf("inproc://reqrep-%d", nextPort())

	server, err := nw.NewMsgServer(svc, &nw.MsgServerConfig{Url: url, Pattern: nw.MsgPattern_Reply}, &msgSrvRecorder{reply: true})
	require.NoError(t, err)
	require.NoError(t, server.Start())
	defer server.Stop()

	cliEv := &msgCliRecorder{}
	client, err := nw.NewMsgClient(svc, &nw.MsgClientConfig{Url: url, Pattern: nw.MsgPattern_Request}, cliEv)
	require.NoError(t, err)
	require.True(t, client.Connect())
	defer client.Disconnect()

	require.Equal(t, 4, client.Send([]byte("ping")))

	require.Eventually(t, func() bool {
		msgs := cliEv.messages()
		return len(msgs) == 1 && string(msgs[0]) == "re:ping"
	}, 5*time.Second, 10*time.Millisecond)
}

func TestMsgPubSub(t *testing.T) {
	svc := startService(t)
	url := fmt.Sprintf("inproc://pubsub-%d", nextPort())

	server, err := nw.NewMsgServer(svc, &nw.MsgServerConfig{Url: url, Pattern: nw.MsgPattern_Publish}, nil)
	require.NoError(t, err)
	require.NoError(t, server.Start())
	defer server.Stop()

	cliEv := &msgCliRecorder{}
	client, err := nw.NewMsgClient(svc, &nw.MsgClientConfig{Url: url, Pattern: nw.MsgPattern_Subscribe}, cliEv)
	require.NoError(t, err)
	require.True(t, client.Connect())
	defer client.Disconnect()

	// 订阅连接建立前发布的消息会丢失, 持续发布直到送达
	require.Eventually(t, func() bool {
		server.Send([]byte("news"))
		return len(cliEv.messages()) > 0
	}, 5*time.Second, 50*time.Millisecond)

	require.Equal(t, "news", string(cliEv.messages()[0]))
}

func TestMsgPubSubTopics(t *testing.T) {
	svc := startService(t)
	url := fmt.Sprintf("inproc://topics-%d", nextPort())

	server, err := nw.NewMsgServer(svc, &nw.MsgServerConfig{Url: url, Pattern: nw.MsgPattern_Publish}, nil)
	require.NoError(t, err)
	require.NoError(t, server.Start())
	defer server.Stop()

	cliEv := &msgCliRecorder{}
	client, err := nw.NewMsgClient(svc, &nw.MsgClientConfig{
		Url:     url,
		Pattern: nw.MsgPattern_Subscribe,
		Topics:  []string{"a/"},
	}, cliEv)
	require.NoError(t, err)
	require.True(t, client.Connect())
	defer client.Disconnect()

	// 只收到匹配主题的消息
	require.Eventually(t, func() bool {
		server.Send([]byte("b/skip"))
		server.Send([]byte("a/take"))
		return len(cliEv.messages()) > 0
	}, 5*time.Second, 50*time.Millisecond)

	for _, msg := range cliEv.messages() {
		require.Equal(t, "a/take", string(msg))
	}
}

func TestMsgPatternValidation(t *testing.T) {
	svc := startService(t)

	_, err := nw.NewMsgServer(svc, &nw.MsgServerConfig{Url: "inproc://x", Pattern: nw.MsgPattern_Request}, nil)
	require.ErrorIs(t, err, nw.ErrMsgPattern)

	_, err = nw.NewMsgClient(svc, &nw.MsgClientConfig{Url: "inproc://x", Pattern: nw.MsgPattern_Publish}, nil)
	require.ErrorIs(t, err, nw.ErrMsgPattern)

	_, err = nw.NewMsgServer(svc, &nw.MsgServerConfig{Pattern: nw.MsgPattern_Pair}, nil)
	require.ErrorIs(t, err, nw.ErrEndpointInvalid)
}
