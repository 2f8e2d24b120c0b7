package glue

import "sync/atomic"

// ---------------------------------------------------------------------------
// Buffer transfer
// ---------------------------------------------------------------------------

// Buffer is an owned, length-tagged block of bytes. There is no
// terminator; Data may hold binary content such as bytecode.
//
// Data is nil only when allocation failed, in which case Len still holds
// the size that was asked for.
type Buffer struct {
	Data []byte
	Len  int
}

// Failed reports whether the buffer's allocation failed.
func (b Buffer) Failed() bool { return b.Data == nil }

// Bytes returns the buffer contents, or nil when allocation failed.
func (b Buffer) Bytes() []byte {
	if b.Data == nil {
		return nil
	}
	return b.Data[:b.Len]
}

// String returns the buffer contents as a string.
func (b Buffer) String() string { return string(b.Bytes()) }

// Allocator supplies the memory behind buffers.
type Allocator interface {
	// Alloc returns a block of exactly n bytes, or nil on failure.
	// A zero-size request must return a non-nil empty slice.
	Alloc(n int) []byte
	// Free releases a block previously returned by Alloc.
	Free(block []byte)
}

type heapAllocator struct{}

func (heapAllocator) Alloc(n int) []byte { return make([]byte, n) }
func (heapAllocator) Free([]byte)        {}

var allocator atomic.Value // holds allocatorBox

type allocatorBox struct{ a Allocator }

func init() {
	allocator.Store(allocatorBox{heapAllocator{}})
}

// SetAllocator installs a as the allocator for every buffer created after
// the call and returns the previous one. A nil a restores the Go heap.
func SetAllocator(a Allocator) Allocator {
	if a == nil {
		a = heapAllocator{}
	}
	return allocator.Swap(allocatorBox{a}).(allocatorBox).a
}

func currentAllocator() Allocator {
	return allocator.Load().(allocatorBox).a
}

// ToBuffer copies src into a freshly allocated buffer sized exactly to
// len(src). If allocation fails the buffer has nil Data and Len set to
// len(src).
func ToBuffer(src []byte) Buffer {
	return copyBuffer(src)
}

// StringBuffer is ToBuffer for string content.
func StringBuffer(s string) Buffer {
	return copyBuffer(s)
}

func copyBuffer[S ~[]byte | ~string](src S) Buffer {
	block := currentAllocator().Alloc(len(src))
	if block == nil {
		log.Warningf("buffer allocation of %d bytes failed", len(src))
		return Buffer{Len: len(src)}
	}
	copy(block, src)
	return Buffer{Data: block[:len(src)], Len: len(src)}
}

// Free releases a buffer returned by this package. Freeing a failed
// buffer is a no-op.
func Free(b Buffer) {
	if b.Data == nil {
		return
	}
	currentAllocator().Free(b.Data)
}
