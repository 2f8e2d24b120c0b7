// Package glue is the boundary layer between a host program and the
// scriptbridge compiler and VM.
//
// Everything that leaves this package is a value: compile results are
// tagged unions (CompileOutcome), lookups return Optional, and fallible VM
// primitives return a vm.Status next to an Optional result. No panic raised
// by the compiler or the VM propagates past an exported function.
//
// Buffers returned by ToBuffer and the compile entry points are owned by
// the caller and must be released exactly once with Free (or FreeOutcome).
// Memory comes from the installed Allocator, which cmd/libscriptbridge
// replaces with the C heap.
//
// A vm.State is not safe for concurrent use. Callers that share one state
// between goroutines or host threads must serialize access themselves;
// this package takes no locks.
package glue

import "github.com/tliron/commonlog"

var log = commonlog.GetLogger("scriptbridge.glue")
