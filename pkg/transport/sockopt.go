package transport

import "net"

// newDialFunc builds the DialFunc for cfg. Socket buffer sizes and linger
// are applied before connect where the platform allows it.
func newDialFunc(cfg *ClientConfig) (DialFunc, error) {
	if cfg.Dial != nil {
		return cfg.Dial, nil
	}

	d := &net.Dialer{
		Control: socketControl(cfg),
	}
	if cfg.LocalAddress != "" {
		local, err := net.ResolveTCPAddr("tcp", cfg.LocalAddress)
		if err != nil {
			return nil, err
		}
		d.LocalAddr = local
	}
	return d.DialContext, nil
}

// applyConnOptions sets options that Go applies after connect. Non-TCP
// connections (custom dialers, pipes) are left alone.
func applyConnOptions(conn net.Conn, cfg *ClientConfig) error {
	tc, ok := conn.(*net.TCPConn)
	if !ok {
		return nil
	}
	if err := tc.SetNoDelay(cfg.NoDelay); err != nil {
		return err
	}
	return applyPlatformOptions(tc, cfg)
}
