package transport

import (
	"fmt"

	"github.com/tether-io/tether-go/pkg/bufpool"
)

// Accumulator holds bytes read from the stream but not yet consumed as
// complete frames. The live region always starts at offset zero.
//
// An Accumulator is owned by a single goroutine.
type Accumulator struct {
	pool *bufpool.Pool
	buf  *bufpool.Buffer
	n    int
}

// NewAccumulator borrows a base buffer from pool.
func NewAccumulator(pool *bufpool.Pool) *Accumulator {
	return &Accumulator{
		pool: pool,
		buf:  pool.Borrow(),
	}
}

// Append copies src after the valid bytes. When the result would not fit,
// a larger buffer is borrowed, the valid bytes and src are copied into it,
// and the old buffer is returned to the pool.
func (a *Accumulator) Append(src []byte) {
	need := a.n + len(src)
	if need > a.buf.Cap() {
		grown := a.pool.BorrowAtLeast(need)
		copy(grown.Bytes(), a.buf.Bytes()[:a.n])
		a.pool.Return(a.buf)
		a.buf = grown
	}
	copy(a.buf.Bytes()[a.n:], src)
	a.n = need
}

// Shift drops the first consumed bytes and moves the tail to the front.
func (a *Accumulator) Shift(consumed int) {
	if consumed < 0 || consumed > a.n {
		panic(fmt.Sprintf("transport: shift of %d bytes with %d buffered", consumed, a.n))
	}
	b := a.buf.Bytes()
	copy(b, b[consumed:a.n])
	a.n -= consumed
}

// Bytes returns the valid region. It is invalidated by Append and Shift.
func (a *Accumulator) Bytes() []byte {
	return a.buf.Bytes()[:a.n]
}

// Len returns the number of valid bytes.
func (a *Accumulator) Len() int {
	return a.n
}

// Cap returns the capacity of the current backing buffer.
func (a *Accumulator) Cap() int {
	return a.buf.Cap()
}

// Release returns the backing buffer to the pool. The Accumulator must not
// be used afterwards.
func (a *Accumulator) Release() {
	a.pool.Return(a.buf)
	a.buf = nil
	a.n = 0
}
