package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/gox/netio/log"
	"github.com/gox/netio/nw"
)

type echoEvent struct {
	nw.ServerEvent
}

func (this_ *echoEvent) OnConnected(sess nw.ISess) error {
	log.Debug("[%s:%v] has connected", sess.ID(), sess.RemoteAddr())
	return nil
}

func (this_ *echoEvent) OnDisconnected(sess nw.ISess) {
	log.Debug("[%s:%v] has disconnected", sess.ID(), sess.RemoteAddr())
}

func (this_ *echoEvent) OnData(sess nw.ISess, data []byte) error {
	sess.Send(data)
	return nil
}

func (this_ *echoEvent) OnError(code int, category, msg string) {
	log.Error("[%s:%d] %s", category, code, msg)
}

func main() {
	svc := nw.NewService(&nw.ServiceConfig{Workers: 2}, nil)
	svc.Start()

	tcpSvr, err := nw.NewTcpServer(svc, &nw.TcpServerConfig{Port: 9090}, &echoEvent{})
	if err != nil {
		log.Fatal(err)
	}

	wsSvr, err := nw.NewWsServer(svc, &nw.WsServerConfig{Port: 9091}, &echoEvent{})
	if err != nil {
		log.Fatal(err)
	}

	if err := tcpSvr.Start(); err != nil {
		log.Fatal(err)
	}

	if err := wsSvr.Start(); err != nil {
		log.Fatal(err)
	}

	log.Info("echo server is running: tcp=%v ws=%v", tcpSvr.Endpoint(), wsSvr.Endpoint())

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	wsSvr.Stop()
	tcpSvr.Stop()
	svc.Stop()

	log.Info("echo server has stopped: sent=%d recv=%d",
		tcpSvr.Stats().BytesSent()+wsSvr.Stats().BytesSent(),
		tcpSvr.Stats().BytesRecv()+wsSvr.Stats().BytesRecv())
}
