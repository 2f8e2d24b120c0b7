package main

/*
#include "scriptbridge.h"

static void* sb_alloc(size_t n) {
    void* p = NULL;
    if (posix_memalign(&p, 8, n == 0 ? 1 : n) != 0) {
        return NULL;
    }
    return p;
}
*/
import "C"
import (
	"unsafe"

	"github.com/chazu/scriptbridge/glue"
)

// cAllocator places buffers on the C heap, 8-byte aligned, so the host can
// release them with free().
type cAllocator struct{}

func (cAllocator) Alloc(n int) []byte {
	p := C.sb_alloc(C.size_t(n))
	if p == nil {
		return nil
	}
	// cap is at least 1 so SliceData recovers p for empty blocks
	return unsafe.Slice((*byte)(p), max(n, 1))[:n]
}

func (cAllocator) Free(block []byte) {
	C.free(unsafe.Pointer(unsafe.SliceData(block)))
}

// arrays allocates the C arrays handed out by SB_Compile and the flag
// listings. They are released with free().
var arrays glue.Allocator = cAllocator{}

// cBytes views n bytes of C memory at p without copying.
func cBytes(p *C.char, n C.size_t) []byte {
	if p == nil {
		return nil
	}
	return unsafe.Slice((*byte)(unsafe.Pointer(p)), max(int(n), 1))[:int(n)]
}

func bufferToC(b glue.Buffer) C.SBBuffer {
	var out C.SBBuffer
	out.len = C.size_t(b.Len)
	if b.Data != nil {
		out.data = (*C.char)(unsafe.Pointer(unsafe.SliceData(b.Data)))
	}
	return out
}

func bufferFromC(b C.SBBuffer) glue.Buffer {
	return glue.Buffer{Data: cBytes(b.data, b.len), Len: int(b.len)}
}
