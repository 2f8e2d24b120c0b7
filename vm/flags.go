package vm

import "github.com/chazu/scriptbridge/flags"

// Runtime flags read by the interpreter.
var (
	// VMCallDepthLimit caps nested script calls before "stack overflow".
	VMCallDepthLimit = flags.NewInt("VMCallDepthLimit", 200)

	// DebugTraceExecution logs every executed instruction at debug level.
	DebugTraceExecution = flags.NewBool("DebugTraceExecution", false)
)
