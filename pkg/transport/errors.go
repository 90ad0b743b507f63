package transport

import (
	"context"
	"errors"
	"io"
	"net"
	"os"
	"syscall"
)

// Client errors.
var (
	ErrInvalidArgument  = errors.New("invalid argument")
	ErrAlreadyConnected = errors.New("already connected")
	ErrDisposed         = errors.New("client disposed")
	ErrNotConnected     = errors.New("not connected")
	ErrConnectTimeout   = errors.New("connect timeout")
	ErrNegotiateTimeout = errors.New("negotiate timeout")

	// ErrCertificateValidation indicates the peer certificate was rejected.
	ErrCertificateValidation = errors.New("certificate validation failed")

	// ErrReceivePanic wraps a panic recovered in the receive goroutine.
	ErrReceivePanic = errors.New("receive loop panic")

	// ErrDispatcherPanic wraps a panic recovered from OnConnected.
	ErrDispatcherPanic = errors.New("dispatcher panic")
)

// IsExpected reports whether err is a condition that arises naturally from
// teardown or transport closure. Expected errors are absorbed rather than
// surfaced: they end the receive loop silently and make Send a no-op.
func IsExpected(err error) bool {
	if err == nil {
		return false
	}

	switch {
	case errors.Is(err, ErrDisposed),
		errors.Is(err, ErrNotConnected),
		errors.Is(err, net.ErrClosed),
		errors.Is(err, io.EOF),
		errors.Is(err, io.ErrUnexpectedEOF),
		errors.Is(err, io.ErrClosedPipe),
		errors.Is(err, os.ErrDeadlineExceeded),
		errors.Is(err, context.Canceled),
		errors.Is(err, syscall.ECONNRESET),
		errors.Is(err, syscall.ECONNABORTED),
		errors.Is(err, syscall.EPIPE):
		return true
	}

	var opErr *net.OpError
	return errors.As(err, &opErr)
}
