//go:build !unix

package transport

import (
	"net"
	"syscall"
)

func socketControl(*ClientConfig) func(network, address string, rc syscall.RawConn) error {
	return nil
}

// applyPlatformOptions sets socket options through the portable
// *net.TCPConn API after connect.
func applyPlatformOptions(tc *net.TCPConn, cfg *ClientConfig) error {
	if cfg.ReceiveBufferSize > 0 {
		if err := tc.SetReadBuffer(cfg.ReceiveBufferSize); err != nil {
			return err
		}
	}
	if cfg.SendBufferSize > 0 {
		if err := tc.SetWriteBuffer(cfg.SendBufferSize); err != nil {
			return err
		}
	}
	if cfg.Linger != nil {
		sec := -1
		if cfg.Linger.Enabled {
			sec = int(cfg.Linger.Timeout.Seconds())
		}
		if err := tc.SetLinger(sec); err != nil {
			return err
		}
	}
	return nil
}
