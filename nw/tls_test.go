package nw_test

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"math/big"
	"net"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/gox/netio/nw"
)

// writeTestCert 生成自签名证书写入临时目录
func writeTestCert(t *testing.T) (certFile, keyFile string) {
	t.Helper()

	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)

	tmpl := x509.Certificate{
		SerialNumber: big.NewInt(1),
		Subject:      pkix.Name{CommonName: "netio-test"},
		NotBefore:    time.Now().Add(-time.Hour),
		NotAfter:     time.Now().Add(time.Hour),
		KeyUsage:     x509.KeyUsageDigitalSignature | x509.KeyUsageCertSign,
		ExtKeyUsage:  []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth, x509.ExtKeyUsageClientAuth},
		IPAddresses:  []net.IP{net.ParseIP("127.0.0.1")},
		DNSNames:     []string{"localhost"},
		IsCA:         true,
		BasicConstraintsValid: true,
	}

	der, err := x509.CreateCertificate(rand.Reader, &tmpl, &tmpl, &key.PublicKey, key)
	require.NoError(t, err)

	keyDer, err := x509.MarshalECPrivateKey(key)
	require.NoError(t, err)

	dir := t.TempDir()
	certFile = filepath.Join(dir, "cert.pem")
	keyFile = filepath.Join(dir, "key.pem")

	require.NoError(t, os.WriteFile(certFile,
		pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: der}), 0600))
	require.NoError(t, os.WriteFile(keyFile,
		pem.EncodeToMemory(&pem.Block{Type: "EC PRIVATE KEY", Bytes: keyDer}), 0600))

	return certFile, keyFile
}

func TestTlsEcho(t *testing.T) {
	svc := startService(t)
	port := nextPort()
	certFile, keyFile := writeTestCert(t)

	srvEv := newSrvRecorder(true)
	server, err := nw.NewTlsServer(svc, &nw.TlsServerConfig{
		IP:   "127.0.0.1",
		Port: port,
		Tls:  &nw.TlsConfig{CertFile: certFile, KeyFile: keyFile},
	}, srvEv)
	require.NoError(t, err)
	require.NoError(t, server.Start())
	defer server.Stop()

	cliEv := &cliRecorder{}
	client, err := nw.NewTlsClient(svc, &nw.TlsClientConfig{
		IP:      "127.0.0.1",
		Port:    port,
		Timeout: 3,
		Tls:     &nw.TlsConfig{CaFile: certFile},
	}, cliEv)
	require.NoError(t, err)
	require.True(t, client.Connect())
	defer client.Disconnect()

	require.Equal(t, 5, client.Send([]byte("hello")))

	require.Eventually(t, func() bool {
		return string(cliEv.received()) == "hello"
	}, 5*time.Second, 10*time.Millisecond)

	require.Eventually(t, func() bool {
		return server.Stats().BytesRecv() == 5 && server.Stats().BytesSent() == 5
	}, 5*time.Second, 10*time.Millisecond)

	c, _ := srvEv.counts()
	require.Equal(t, 1, c)
}

func TestTlsHandshakeFailure(t *testing.T) {
	svc := startService(t)
	port := nextPort()
	certFile, keyFile := writeTestCert(t)

	// 服务端要求客户端证书
	srvEv := newSrvRecorder(false)
	server, err := nw.NewTlsServer(svc, &nw.TlsServerConfig{
		IP:   "127.0.0.1",
		Port: port,
		Tls: &nw.TlsConfig{
			CertFile:     certFile,
			KeyFile:      keyFile,
			CaFile:       certFile,
			VerifyClient: true,
		},
	}, srvEv)
	require.NoError(t, err)
	require.NoError(t, server.Start())
	defer server.Stop()

	// 客户端不出示证书
	client, err := nw.NewTlsClient(svc, &nw.TlsClientConfig{
		IP:      "127.0.0.1",
		Port:    port,
		Timeout: 3,
		Tls:     &nw.TlsConfig{CaFile: certFile},
	}, nil)
	require.NoError(t, err)

	client.Connect()

	// 服务端只上报 OnError, 不产生会话
	require.Eventually(t, func() bool {
		srvEv.mtx.Lock()
		defer srvEv.mtx.Unlock()
		return len(srvEv.errs) > 0
	}, 5*time.Second, 10*time.Millisecond)

	time.Sleep(100 * time.Millisecond)

	c, d := srvEv.counts()
	require.Equal(t, 0, c)
	require.Equal(t, 0, d)
	require.Equal(t, 0, server.SessionCount())

	client.Disconnect()
}

func TestTlsClientVerifiesServer(t *testing.T) {
	svc := startService(t)
	port := nextPort()
	certFile, keyFile := writeTestCert(t)

	server, err := nw.NewTlsServer(svc, &nw.TlsServerConfig{
		IP:   "127.0.0.1",
		Port: port,
		Tls:  &nw.TlsConfig{CertFile: certFile, KeyFile: keyFile},
	}, nil)
	require.NoError(t, err)
	require.NoError(t, server.Start())
	defer server.Stop()

	// 无 CA: 默认校验失败, 不触发 OnConnected
	cliEv := &cliRecorder{}
	client, err := nw.NewTlsClient(svc, &nw.TlsClientConfig{
		IP:      "127.0.0.1",
		Port:    port,
		Timeout: 3,
		Tls:     &nw.TlsConfig{},
	}, cliEv)
	require.NoError(t, err)

	require.False(t, client.Connect())

	c, _ := cliEv.counts()
	require.Equal(t, 0, c)
}

func TestWssRoundTrip(t *testing.T) {
	svc := startService(t)
	port := nextPort()
	certFile, keyFile := writeTestCert(t)

	srvEv := &wsSrvEvent{}
	server, err := nw.NewWssServer(svc, &nw.WssServerConfig{
		IP:   "127.0.0.1",
		Port: port,
		Tls:  &nw.TlsConfig{CertFile: certFile, KeyFile: keyFile},
	}, srvEv)
	require.NoError(t, err)
	require.NoError(t, server.Start())
	defer server.Stop()

	cliEv := &wsCliEvent{}
	client, err := nw.NewWsClient(svc, &nw.WsClientConfig{
		IP:      "127.0.0.1",
		Port:    port,
		Timeout: 3,
		Tls:     &nw.TlsConfig{CaFile: certFile},
	}, cliEv)
	require.NoError(t, err)
	require.True(t, client.Connect())
	defer client.Disconnect()

	require.Equal(t, nw.Protocol_WebsocketTLS, client.Protocol())
	require.Equal(t, 4, client.SendText("ping"))

	require.Eventually(t, func() bool {
		msgs := srvEv.messages()
		return len(msgs) == 1 && msgs[0].Opcode == nw.WsOpcode_Text && msgs[0].Text() == "ping"
	}, 5*time.Second, 10*time.Millisecond)

	require.Eventually(t, func() bool {
		msgs := cliEv.messages()
		return len(msgs) == 1 && msgs[0].Opcode == nw.WsOpcode_Binary && msgs[0].Size() == 2
	}, 5*time.Second, 10*time.Millisecond)
}
