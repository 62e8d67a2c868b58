package main

import (
	"flag"
	"time"

	"github.com/gox/netio/log"
	"github.com/gox/netio/nw"
	"github.com/gox/netio/sys"
)

var (
	addr     = flag.String("addr", "127.0.0.1", "server address")
	port     = flag.Uint("port", 9090, "server port")
	clients  = flag.Int("clients", 10, "client count")
	messages = flag.Int("messages", 1000, "messages per client")
	size     = flag.Int("size", 32, "message size")
)

// 简易压测: N 个客户端各发 M 条消息, 结束后打印吞吐与系统负载
func main() {
	flag.Parse()

	svc := nw.NewService(&nw.ServiceConfig{Workers: 4}, nil)
	svc.Start()
	defer svc.Stop()

	payload := make([]byte, *size)
	for i := range payload {
		payload[i] = byte('a' + i%26)
	}

	pool := make([]*nw.TcpClient, 0, *clients)

	for i := 0; i < *clients; i++ {
		client, err := nw.NewTcpClient(svc, &nw.TcpClientConfig{
			IP:   *addr,
			Port: uint16(*port),
		}, nil)
		if err != nil {
			log.Fatal(err)
		}

		if !client.Connect() {
			log.Fatal("connect failed")
		}

		pool = append(pool, client)
	}

	start := time.Now()

	for i := 0; i < *messages; i++ {
		for _, client := range pool {
			client.Send(payload)
		}
	}

	var sent int64

	for _, client := range pool {
		client.Disconnect()
		sent += client.Stats().BytesSent()
	}

	elapsed := time.Since(start)

	snap, err := sys.Collect(100 * time.Millisecond)
	if err == nil {
		log.Info("cpu=%.1f%% mem=%d/%d", snap.CpuPercent, snap.MemUsed, snap.MemTotal)
	}

	log.Info("sent %d bytes in %v (%.2f MB/s)",
		sent, elapsed, float64(sent)/1024/1024/elapsed.Seconds())
}
