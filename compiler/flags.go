package compiler

import "github.com/chazu/scriptbridge/flags"

// Runtime flags read by the parser and code generator.
var (
	// CompileFoldConstants enables constant folding at optimization level 1+.
	CompileFoldConstants = flags.NewBool("CompileFoldConstants", true)

	// CompileLocalLimit caps the number of local registers per function.
	CompileLocalLimit = flags.NewInt("CompileLocalLimit", 200)

	// CompileUpvalueLimit caps the number of upvalues per function.
	CompileUpvalueLimit = flags.NewInt("CompileUpvalueLimit", 200)

	// ParseRecursionLimit caps parser nesting depth.
	ParseRecursionLimit = flags.NewInt("ParseRecursionLimit", 1000)
)
