// Package bufpool provides a recycling allocator for fixed-capacity byte
// buffers.
//
// The transport borrows two buffers per connection (a raw receive buffer and
// a session accumulation buffer) and returns them on teardown. Buffers are
// opaque handles: growing a session buffer means borrowing a larger one,
// copying, and returning the old one, never resizing in place.
//
// # Size Classes
//
//	class 0: BufferSize bytes      (Borrow)
//	class k: BufferSize << k bytes (BorrowAtLeast)
//
// When the base free list is empty it grows by GrowBy buffers carved from a
// single slab allocation; larger classes grow one buffer at a time. Buffers
// above MaxPooledSize are never kept: they are allocated on Borrow and left
// to the garbage collector on Return, so one oversized message does not pin
// memory for the life of the pool.
package bufpool
