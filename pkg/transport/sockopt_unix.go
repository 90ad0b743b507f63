//go:build unix

package transport

import (
	"net"
	"syscall"

	"golang.org/x/sys/unix"
)

// socketControl returns a Dialer.Control hook that sets SO_RCVBUF,
// SO_SNDBUF and SO_LINGER on the raw socket before connect.
func socketControl(cfg *ClientConfig) func(network, address string, rc syscall.RawConn) error {
	if cfg.ReceiveBufferSize == 0 && cfg.SendBufferSize == 0 && cfg.Linger == nil {
		return nil
	}

	rcvbuf, sndbuf, linger := cfg.ReceiveBufferSize, cfg.SendBufferSize, cfg.Linger
	return func(_, _ string, rc syscall.RawConn) error {
		var opErr error
		err := rc.Control(func(fd uintptr) {
			opErr = setSocketOptions(int(fd), rcvbuf, sndbuf, linger)
		})
		if err != nil {
			return err
		}
		return opErr
	}
}

func setSocketOptions(fd, rcvbuf, sndbuf int, linger *LingerConfig) error {
	if rcvbuf > 0 {
		if err := unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_RCVBUF, rcvbuf); err != nil {
			return err
		}
	}
	if sndbuf > 0 {
		if err := unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_SNDBUF, sndbuf); err != nil {
			return err
		}
	}
	if linger != nil {
		l := &unix.Linger{}
		if linger.Enabled {
			l.Onoff = 1
			l.Linger = int32(linger.Timeout.Seconds())
		}
		if err := unix.SetsockoptLinger(fd, unix.SOL_SOCKET, unix.SO_LINGER, l); err != nil {
			return err
		}
	}
	return nil
}

// applyPlatformOptions is a no-op: everything is set in socketControl.
func applyPlatformOptions(*net.TCPConn, *ClientConfig) error {
	return nil
}
