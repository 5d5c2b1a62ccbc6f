package client

import "sync"

// bufferPool hands out encode buffers of one size class. Larger requests
// are allocated and not returned to the pool.
type bufferPool struct {
	size int
	pool sync.Pool
}

func newBufferPool(size int) *bufferPool {
	bp := &bufferPool{size: size}
	bp.pool.New = func() any {
		b := make([]byte, size)
		return &b
	}
	return bp
}

// get returns a buffer of at least n bytes.
func (bp *bufferPool) get(n int) *[]byte {
	if n > bp.size {
		b := make([]byte, n)
		return &b
	}
	return bp.pool.Get().(*[]byte)
}

func (bp *bufferPool) put(b *[]byte) {
	if cap(*b) != bp.size {
		return
	}
	*b = (*b)[:bp.size]
	bp.pool.Put(b)
}
