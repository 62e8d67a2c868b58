package nw

import "github.com/gox/netio/utils"

// recvBuf 读缓冲
//
// 每条连接的读循环持有一个, 连接关闭后归还池中复用,
// 避免短连接场景下反复分配大块缓冲。
type recvBuf struct {
	data []byte
}

var recvBufPool = utils.NewPool[recvBuf](nil)

func acquireRecvBuf() *recvBuf {
	buf := recvBufPool.Get()
	if buf.data == nil {
		buf.data = make([]byte, RECV_CHUNK_SIZE)
	}

	return buf
}

func releaseRecvBuf(buf *recvBuf) {
	recvBufPool.Put(buf)
}
