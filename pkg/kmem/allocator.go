package kmem

import (
	"errors"
	"fmt"
	"sync"
	"syscall"
)

// ErrNoMemory is returned when an allocation cannot be satisfied
var ErrNoMemory = fmt.Errorf("kmem: out of memory: %w", syscall.ENOMEM)

// Allocator hands out zeroed memory blocks
type Allocator interface {
	// Alloc returns a zeroed block of exactly size bytes. A zero size
	// returns a nil block and no error.
	Alloc(size int) ([]byte, error)

	// Free returns a block obtained from Alloc. The block must not be
	// referenced afterward.
	Free(b []byte)
}

// Heap is the unbounded Go heap
var Heap Allocator = heap{}

type heap struct{}

func (heap) Alloc(size int) ([]byte, error) {
	if size < 0 {
		return nil, errors.New("kmem: negative allocation size")
	}
	if size == 0 {
		return nil, nil
	}
	return make([]byte, size), nil
}

func (heap) Free([]byte) {}

// Stats is a snapshot of the pool accounting
type Stats struct {
	InUse  Size // bytes currently allocated
	Blocks int  // live blocks
	Allocs uint64
	Frees  uint64
	Fails  uint64
}

func (s Stats) String() string {
	return fmt.Sprintf("Stats[InUse=%v, Blocks=%d, Allocs=%d, Frees=%d, Fails=%d]",
		s.InUse, s.Blocks, s.Allocs, s.Frees, s.Fails)
}

// Pool is a bounded allocator. Limit 0 means no limit.
// It is safe for concurrent use.
type Pool struct {
	limit Size

	mu    sync.Mutex
	live  map[*byte]int
	stats Stats
}

// NewPool creates a pool which refuses allocation beyond limit bytes in use
func NewPool(limit Size) *Pool {
	return &Pool{
		limit: limit,
		live:  make(map[*byte]int),
	}
}

// Alloc allocates a zeroed block from the pool
func (p *Pool) Alloc(size int) ([]byte, error) {
	if size < 0 {
		return nil, errors.New("kmem: negative allocation size")
	}
	if size == 0 {
		return nil, nil
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.limit > 0 && p.stats.InUse+Size(size) > p.limit {
		p.stats.Fails++
		return nil, ErrNoMemory
	}
	b := make([]byte, size)
	p.live[&b[0]] = size
	p.stats.InUse += Size(size)
	p.stats.Blocks++
	p.stats.Allocs++
	return b, nil
}

// Free returns a block to the pool. It panics if the block was not
// allocated by this pool or was already freed.
func (p *Pool) Free(b []byte) {
	if len(b) == 0 {
		return
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	key := &b[0]
	size, ok := p.live[key]
	if !ok {
		panic("kmem: free of unknown or already freed block")
	}
	delete(p.live, key)
	p.stats.InUse -= Size(size)
	p.stats.Blocks--
	p.stats.Frees++
}

// Stats returns the current accounting of the pool
func (p *Pool) Stats() Stats {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.stats
}

// Limit returns the configured limit
func (p *Pool) Limit() Size {
	return p.limit
}
