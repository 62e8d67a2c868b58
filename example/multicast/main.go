package main

import (
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gox/netio/log"
	"github.com/gox/netio/nw"
)

const (
	groupAddr = "239.255.0.1"
	groupPort = 2223
)

type subEvent struct {
	nw.UdpClientEvent
}

func (this_ *subEvent) OnData(client *nw.UdpClient, from nw.Endpoint, data []byte) {
	log.Info("recv from %v: %s", from, data)
}

func main() {
	svc := nw.NewService(nil, nil)
	svc.Start()

	server, err := nw.NewUdpServer(svc, &nw.UdpServerConfig{
		MulticastIP:   groupAddr,
		MulticastPort: groupPort,
	}, nil)
	if err != nil {
		log.Fatal(err)
	}

	if err := server.Start(); err != nil {
		log.Fatal(err)
	}

	client, err := nw.NewUdpClient(svc, &nw.UdpClientConfig{
		IP:        groupAddr,
		Port:      groupPort,
		Multicast: true,
		Reuse:     true,
	}, &subEvent{})
	if err != nil {
		log.Fatal(err)
	}

	client.Connect()

	if err := client.JoinMulticastGroup(groupAddr); err != nil {
		log.Fatal("join group failed: %v", err)
	}

	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	for {
		select {
		case <-ticker.C:
			server.Multicast([]byte("tick"))

		case <-sigCh:
			client.LeaveMulticastGroup(groupAddr)
			client.Disconnect()
			server.Stop()
			svc.Stop()
			return
		}
	}
}
