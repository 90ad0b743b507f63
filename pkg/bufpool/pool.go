package bufpool

import (
	"sync"
	"sync/atomic"

	"github.com/eapache/queue"
)

// Pool defaults.
const (
	// DefaultBufferSize is the capacity of a base-class buffer (8 KB).
	DefaultBufferSize = 8192

	// DefaultGrowBy is the number of base buffers allocated per slab when
	// the base free list runs dry. Larger classes grow one buffer at a time.
	DefaultGrowBy = 4

	// DefaultMaxPooledSize is the largest buffer kept on a free list (1 MB).
	DefaultMaxPooledSize = 1 << 20

	// maxClass bounds the size-class ladder. Requests beyond it are served
	// by unpooled buffers.
	maxClass = 24
)

// Config configures a Pool.
type Config struct {
	// BufferSize is the capacity of buffers returned by Borrow.
	BufferSize int

	// InitialCount is the number of base-class buffers allocated up front.
	InitialCount int

	// GrowBy is the number of base buffers allocated whenever the base
	// class has no free buffer left.
	GrowBy int

	// MaxPooledSize is the largest buffer capacity that is recycled.
	// Bigger buffers are allocated on demand and dropped on Return.
	MaxPooledSize int
}

// Buffer is a pooled byte region. The pool tracks whether it is borrowed;
// the buffer itself carries only its storage and size class.
type Buffer struct {
	data  []byte
	class int
}

// Bytes returns the full backing region of the buffer.
func (b *Buffer) Bytes() []byte {
	return b.data
}

// Cap returns the capacity of the buffer.
func (b *Buffer) Cap() int {
	return len(b.data)
}

// Stats is a snapshot of pool counters.
type Stats struct {
	Allocated   uint64
	Borrowed    uint64
	Returned    uint64
	Outstanding int64
}

// Pool hands out fixed-capacity buffers and recycles them.
//
// Buffers are grouped in size classes: class k holds buffers of
// BufferSize<<k bytes. Each class up to MaxPooledSize keeps a FIFO free
// list. The pool never bounds the number of outstanding buffers.
type Pool struct {
	size      int
	growBy    int
	maxPooled int

	mu      sync.Mutex
	classes []*queue.Queue

	allocated atomic.Uint64
	borrowed  atomic.Uint64
	returned  atomic.Uint64
}

// New creates a pool and pre-allocates InitialCount base buffers.
func New(cfg Config) *Pool {
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = DefaultBufferSize
	}
	if cfg.GrowBy <= 0 {
		cfg.GrowBy = DefaultGrowBy
	}
	if cfg.MaxPooledSize <= 0 {
		cfg.MaxPooledSize = DefaultMaxPooledSize
	}

	p := &Pool{
		size:      cfg.BufferSize,
		growBy:    cfg.GrowBy,
		maxPooled: max(cfg.MaxPooledSize, cfg.BufferSize),
	}

	if cfg.InitialCount > 0 {
		p.mu.Lock()
		p.allocate(0, cfg.InitialCount)
		p.mu.Unlock()
	}

	return p
}

// BufferSize returns the capacity of base-class buffers.
func (p *Pool) BufferSize() int {
	return p.size
}

// Borrow returns a base-class buffer.
func (p *Pool) Borrow() *Buffer {
	return p.borrowClass(0)
}

// BorrowAtLeast returns a buffer from the smallest class able to hold n
// bytes. Classes above MaxPooledSize are allocated fresh.
func (p *Pool) BorrowAtLeast(n int) *Buffer {
	k := p.classFor(n)
	if k > maxClass {
		return p.borrowUnpooled(n)
	}
	if p.size<<k > p.maxPooled {
		return p.borrowUnpooled(p.size << k)
	}
	return p.borrowClass(k)
}

func (p *Pool) borrowUnpooled(size int) *Buffer {
	p.allocated.Add(1)
	p.borrowed.Add(1)
	return &Buffer{data: make([]byte, size), class: -1}
}

// Return puts a buffer back on its free list. Returning nil is a no-op.
// Returning the same buffer twice is a caller bug and is not detected.
func (p *Pool) Return(b *Buffer) {
	if b == nil {
		return
	}
	p.returned.Add(1)
	if b.class < 0 {
		return
	}

	p.mu.Lock()
	p.queueFor(b.class).Add(b)
	p.mu.Unlock()
}

// Stats returns a snapshot of the pool counters.
func (p *Pool) Stats() Stats {
	borrowed := p.borrowed.Load()
	returned := p.returned.Load()
	return Stats{
		Allocated:   p.allocated.Load(),
		Borrowed:    borrowed,
		Returned:    returned,
		Outstanding: int64(borrowed) - int64(returned),
	}
}

// Free returns the number of buffers sitting on free lists.
func (p *Pool) Free() int {
	p.mu.Lock()
	defer p.mu.Unlock()

	n := 0
	for _, q := range p.classes {
		n += q.Length()
	}
	return n
}

// FreeBytes returns the capacity held by buffers on free lists.
func (p *Pool) FreeBytes() int {
	p.mu.Lock()
	defer p.mu.Unlock()

	n := 0
	for k, q := range p.classes {
		n += q.Length() * (p.size << k)
	}
	return n
}

func (p *Pool) borrowClass(k int) *Buffer {
	p.mu.Lock()
	q := p.queueFor(k)
	if q.Length() == 0 {
		count := 1
		if k == 0 {
			count = p.growBy
		}
		p.allocate(k, count)
	}
	b := q.Remove().(*Buffer)
	p.mu.Unlock()

	p.borrowed.Add(1)
	return b
}

// allocate carves count buffers of class k out of one slab.
// Caller must hold p.mu.
func (p *Pool) allocate(k, count int) {
	size := p.size << k
	slab := make([]byte, size*count)
	q := p.queueFor(k)
	for i := 0; i < count; i++ {
		q.Add(&Buffer{
			data:  slab[i*size : (i+1)*size : (i+1)*size],
			class: k,
		})
	}
	p.allocated.Add(uint64(count))
}

// queueFor returns the free list of class k, creating missing classes.
// Caller must hold p.mu.
func (p *Pool) queueFor(k int) *queue.Queue {
	for len(p.classes) <= k {
		p.classes = append(p.classes, queue.New())
	}
	return p.classes[k]
}

func (p *Pool) classFor(n int) int {
	k := 0
	for k <= maxClass && p.size<<k < n {
		k++
	}
	return k
}
