package main

/*
#include "scriptbridge.h"
*/
import "C"
import (
	"unsafe"

	"github.com/chazu/scriptbridge/glue"
)

// ============================================================================
// Flag registry
// ============================================================================

//export SB_FindFlag
func SB_FindFlag(name C.SBBuffer) C.SBFlag {
	bools, _ := flagTables()
	h, ok := glue.FindFlag(cBytes(name.data, name.len)).Get()
	if !ok {
		return 0
	}
	return C.SBFlag(bools.id(h))
}

//export SB_FindIntFlag
func SB_FindIntFlag(name C.SBBuffer) C.SBIntFlag {
	_, ints := flagTables()
	h, ok := glue.FindIntFlag(cBytes(name.data, name.len)).Get()
	if !ok {
		return 0
	}
	return C.SBIntFlag(ints.id(h))
}

// handleList copies ids into a C array. The caller frees it with
// SB_FreeFlagList.
func handleList(ids []uintptr) *C.uintptr_t {
	block := arrays.Alloc(len(ids) * int(unsafe.Sizeof(C.uintptr_t(0))))
	if block == nil {
		return nil
	}
	arr := (*C.uintptr_t)(unsafe.Pointer(unsafe.SliceData(block)))
	out := unsafe.Slice(arr, len(ids))
	for i, id := range ids {
		out[i] = C.uintptr_t(id)
	}
	return arr
}

//export SB_ListFlags
func SB_ListFlags() *C.SBFlag {
	bools, _ := flagTables()
	return (*C.SBFlag)(unsafe.Pointer(handleList(bools.ids())))
}

//export SB_ListIntFlags
func SB_ListIntFlags() *C.SBIntFlag {
	_, ints := flagTables()
	return (*C.SBIntFlag)(unsafe.Pointer(handleList(ints.ids())))
}

//export SB_FreeFlagList
func SB_FreeFlagList(list unsafe.Pointer) {
	C.free(list)
}

//export SB_GetFlagName
func SB_GetFlagName(flag C.SBFlag) C.SBBuffer {
	bools, _ := flagTables()
	h, ok := bools.lookup(uintptr(flag))
	if !ok {
		return C.SBBuffer{}
	}
	return bufferToC(glue.GetFlagName(h))
}

//export SB_GetIntFlagName
func SB_GetIntFlagName(flag C.SBIntFlag) C.SBBuffer {
	_, ints := flagTables()
	h, ok := ints.lookup(uintptr(flag))
	if !ok {
		return C.SBBuffer{}
	}
	return bufferToC(glue.GetIntFlagName(h))
}

//export SB_GetFlag
func SB_GetFlag(flag C.SBFlag) C.bool {
	bools, _ := flagTables()
	h, ok := bools.lookup(uintptr(flag))
	return C.bool(ok && glue.GetFlag(h))
}

//export SB_GetIntFlag
func SB_GetIntFlag(flag C.SBIntFlag) C.int64_t {
	_, ints := flagTables()
	h, ok := ints.lookup(uintptr(flag))
	if !ok {
		return 0
	}
	return C.int64_t(glue.GetIntFlag(h))
}

//export SB_SetFlag
func SB_SetFlag(flag C.SBFlag, value C.bool) {
	bools, _ := flagTables()
	if h, ok := bools.lookup(uintptr(flag)); ok {
		glue.SetFlag(h, bool(value))
	}
}

//export SB_SetIntFlag
func SB_SetIntFlag(flag C.SBIntFlag, value C.int64_t) {
	_, ints := flagTables()
	if h, ok := ints.lookup(uintptr(flag)); ok {
		glue.SetIntFlag(h, int(value))
	}
}
