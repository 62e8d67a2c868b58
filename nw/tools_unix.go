//go:build unix

package nw

import (
	"errors"
	"syscall"

	"golang.org/x/sys/unix"
)

func IsConnReset(err error) bool {
	return errors.Is(err, syscall.ECONNRESET)
}

// reuseAddrControl 监听套接字默认开启 SO_REUSEADDR
//   - 组播场景下允许同一主机上的多个客户端绑定同一端口
func reuseAddrControl(network, address string, c syscall.RawConn) error {
	var serr error

	err := c.Control(func(fd uintptr) {
		serr = unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_REUSEADDR, 1)
		if serr != nil {
			return
		}

		serr = unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_REUSEPORT, 1)
	})

	if err != nil {
		return err
	}

	return serr
}
