package exr

import (
	"sync"
	"sync/atomic"
)

// bufferPool recycles chunk buffers in a few size classes. Requests larger
// than the largest class are allocated directly and not recycled.
type bufferPool struct {
	pools  []*sync.Pool
	hits   atomic.Int64
	misses atomic.Int64
}

// bufferSizes are the size classes, chosen around common chunk sizes.
var bufferSizes = []int{
	1 << 10,
	4 << 10,
	16 << 10,
	64 << 10,
	256 << 10,
	1 << 20,
	4 << 20,
}

// chunkBuffers is shared by all reads and writes.
var chunkBuffers = newBufferPool()

func newBufferPool() *bufferPool {
	p := &bufferPool{pools: make([]*sync.Pool, len(bufferSizes))}
	for i := range bufferSizes {
		p.pools[i] = &sync.Pool{}
	}
	return p
}

// poolIndex returns the smallest size class holding size bytes, or -1.
func poolIndex(size int) int {
	for i, s := range bufferSizes {
		if size <= s {
			return i
		}
	}
	return -1
}

// get returns a buffer of length size. Its contents are undefined.
func (p *bufferPool) get(size int) []byte {
	idx := poolIndex(size)
	if idx < 0 {
		p.misses.Add(1)
		return make([]byte, size)
	}
	if buf, ok := p.pools[idx].Get().(*[]byte); ok {
		p.hits.Add(1)
		return (*buf)[:size]
	}
	p.misses.Add(1)
	return make([]byte, size, bufferSizes[idx])
}

// put recycles buf. Buffers whose capacity is not a size class are dropped.
func (p *bufferPool) put(buf []byte) {
	idx := poolIndex(cap(buf))
	if idx < 0 || cap(buf) != bufferSizes[idx] {
		return
	}
	buf = buf[:0]
	p.pools[idx].Put(&buf)
}

// stats returns the number of recycled and freshly allocated buffers.
func (p *bufferPool) stats() (hits, misses int64) {
	return p.hits.Load(), p.misses.Load()
}
