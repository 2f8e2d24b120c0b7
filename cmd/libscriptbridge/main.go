// Package main builds libscriptbridge, the C ABI over the scriptbridge
// compiler and VM. Build with -buildmode=c-shared; scriptbridge.h
// declares the types.
//
// Every buffer and array handed out is allocated with posix_memalign and
// owned by the caller, who releases it with the matching SB_Free*
// function. VM states are not safe for concurrent use: the host must
// serialize calls that share a state, including calls on threads created
// from it.
package main

/*
#include "scriptbridge.h"
*/
import "C"
import (
	"github.com/tliron/commonlog"
	_ "github.com/tliron/commonlog/simple"

	"github.com/chazu/scriptbridge/glue"
)

func main() {}

func init() {
	glue.SetAllocator(cAllocator{})
	commonlog.Configure(0, nil)
}

// ============================================================================
// Library control
// ============================================================================

//export SB_SetVerbosity
func SB_SetVerbosity(verbosity C.int) {
	commonlog.Configure(int(verbosity), nil)
}

//export SB_CompileOptsVersion
func SB_CompileOptsVersion() C.int {
	return C.int(glue.CompileOptsVersion)
}
