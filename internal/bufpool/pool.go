// Package bufpool recycles the byte buffers the chunking codec borrows for
// frame assembly and chunk bodies, so a message send/receive reuses storage
// instead of allocating per chunk.
package bufpool

import "sync"

// Size classes follow the chunk wire format: control messages and summaries
// (HELLO, RESET, SUCCESS bodies) fit the small class, typical record bodies
// the middle one, and the top class holds the largest single-chunk frame —
// a 2-byte header, a 65535-byte body, and the 2-byte terminator.
var sizeClasses = [...]int{256, 4096, 65539}

// Pool hands out sized byte slices backed by one sync.Pool per size class.
type Pool struct {
	classes [len(sizeClasses)]sync.Pool
}

var defaultPool = New()

// Get acquires a buffer from the package-level default pool.
func Get(size int) []byte { return defaultPool.Get(size) }

// Put releases a buffer back to the package-level default pool.
func Put(buf []byte) { defaultPool.Put(buf) }

// New creates a pool with the chunk-format size classes.
func New() *Pool {
	p := &Pool{}
	for i, classSize := range sizeClasses {
		classSize := classSize
		p.classes[i].New = func() any { return make([]byte, classSize) }
	}
	return p
}

// Get returns a slice of length size backed by the smallest class that can
// hold it. Requests beyond the largest class allocate fresh and are never
// pooled.
func (p *Pool) Get(size int) []byte {
	if p == nil || size <= 0 {
		return nil
	}
	for i, classSize := range sizeClasses {
		if size <= classSize {
			return p.classes[i].Get().([]byte)[:size]
		}
	}
	return make([]byte, size)
}

// Put recycles buf when its capacity matches a class exactly; anything else
// is left to the garbage collector. Contents are zeroed so no message bytes
// leak into a later borrow.
func (p *Pool) Put(buf []byte) {
	if p == nil || buf == nil {
		return
	}
	for i, classSize := range sizeClasses {
		if cap(buf) == classSize {
			full := buf[:classSize]
			clear(full)
			p.classes[i].Put(full)
			return
		}
	}
}
