package bytecode

import "fmt"

// Opcode represents a bytecode instruction.
// Opcodes are organized into ranges by category for easy identification.
type Opcode byte

const (
	// ========================================================================
	// Stack manipulation (0x00-0x0F)
	// ========================================================================

	OpNop  Opcode = 0x00 // No operation
	OpPop  Opcode = 0x01 // Pop top of stack
	OpDup  Opcode = 0x02 // Duplicate top of stack
	OpSwap Opcode = 0x03 // Swap top two stack elements

	// ========================================================================
	// Constants (0x10-0x1F)
	// ========================================================================

	OpLoadConst Opcode = 0x10 // Push constant from pool: OpLoadConst <index:u16>
	OpLoadNil   Opcode = 0x11 // Push nil
	OpLoadTrue  Opcode = 0x12 // Push true
	OpLoadFalse Opcode = 0x13 // Push false

	// ========================================================================
	// Local variables (0x20-0x2F)
	// ========================================================================

	OpGetLocal Opcode = 0x20 // Push local: OpGetLocal <slot:u8>
	OpSetLocal Opcode = 0x21 // Pop into existing local cell: OpSetLocal <slot:u8>
	OpNewLocal Opcode = 0x22 // Pop into a fresh local cell: OpNewLocal <slot:u8>

	// ========================================================================
	// Upvalues and closures (0x30-0x3F)
	// ========================================================================

	OpGetUpval Opcode = 0x30 // Push upvalue: OpGetUpval <index:u8>
	OpSetUpval Opcode = 0x31 // Pop into upvalue: OpSetUpval <index:u8>
	OpClosure  Opcode = 0x32 // Instantiate child prototype: OpClosure <child:u16>

	// ========================================================================
	// Globals (0x40-0x4F)
	// ========================================================================

	OpGetGlobal Opcode = 0x40 // Push global: OpGetGlobal <name:u16>
	OpSetGlobal Opcode = 0x41 // Pop into global: OpSetGlobal <name:u16>
	OpGetImport Opcode = 0x42 // Push cached global: OpGetImport <import:u16>

	// ========================================================================
	// Tables (0x50-0x5F)
	// ========================================================================

	OpNewTable    Opcode = 0x50 // Push new table: OpNewTable <narray:u8> <lnhash:u8>
	OpGetIndex    Opcode = 0x51 // t k -> t[k]
	OpSetIndex    Opcode = 0x52 // t k v -> (t[k] = v)
	OpGetField    Opcode = 0x53 // t -> t.name: OpGetField <name:u16>
	OpSetField    Opcode = 0x54 // t v -> (t.name = v): OpSetField <name:u16>
	OpTableAppend Opcode = 0x55 // t v -> t (array part append)
	OpTableSet    Opcode = 0x56 // t k v -> t (constructor keyed item)

	// ========================================================================
	// Arithmetic (0x60-0x6F)
	// ========================================================================

	OpAdd Opcode = 0x60 // Pop two, push sum
	OpSub Opcode = 0x61 // Pop two, push difference (a - b where b is TOS)
	OpMul Opcode = 0x62 // Pop two, push product
	OpDiv Opcode = 0x63 // Pop two, push quotient
	OpMod Opcode = 0x64 // Pop two, push floored remainder
	OpPow Opcode = 0x65 // Pop two, push a^b
	OpUnm Opcode = 0x66 // Negate top of stack

	// ========================================================================
	// Comparison, logic and strings (0x70-0x7F)
	// ========================================================================

	OpEq     Opcode = 0x70 // Pop two, push a == b
	OpNe     Opcode = 0x71 // Pop two, push a ~= b
	OpLt     Opcode = 0x72 // Pop two, push a < b
	OpLe     Opcode = 0x73 // Pop two, push a <= b
	OpGt     Opcode = 0x74 // Pop two, push a > b
	OpGe     Opcode = 0x75 // Pop two, push a >= b
	OpNot    Opcode = 0x76 // Push true if TOS is falsy
	OpLen    Opcode = 0x77 // Length of string, table or buffer
	OpConcat Opcode = 0x78 // Concatenate top two values

	// ========================================================================
	// Control flow (0x80-0x8F)
	// ========================================================================

	OpJump            Opcode = 0x80 // Unconditional jump: OpJump <offset:i16>
	OpJumpIfFalse     Opcode = 0x81 // Pop, jump if falsy: OpJumpIfFalse <offset:i16>
	OpJumpIfFalseKeep Opcode = 0x82 // Jump keeping TOS if falsy, else pop (and)
	OpJumpIfTrueKeep  Opcode = 0x83 // Jump keeping TOS if truthy, else pop (or)
	OpForTest         Opcode = 0x84 // Push numeric loop condition: OpForTest <base:u8>
	OpIterPrep        Opcode = 0x85 // Replace TOS with an iterator
	OpIterNext        Opcode = 0x86 // Push key, value or jump: OpIterNext <slot:u8> <offset:i16>

	// ========================================================================
	// Calls (0x90-0x9F)
	// ========================================================================

	OpCall Opcode = 0x90 // Call function below argc args: OpCall <argc:u8>

	// ========================================================================
	// Instrumentation (0xA0-0xAF)
	// ========================================================================

	OpCoverage Opcode = 0xA0 // Record a coverage hit at this offset

	// ========================================================================
	// Return (0xF0-0xFF)
	// ========================================================================

	OpReturn    Opcode = 0xF0 // Return top of stack
	OpReturnNil Opcode = 0xF1 // Return nil
)

// OpcodeInfo provides metadata about each opcode for debugging and validation.
type OpcodeInfo struct {
	Name       string // Human-readable name
	StackPop   int    // How many values popped from stack (-1 = variable)
	StackPush  int    // How many values pushed to stack
	OperandLen int    // Number of operand bytes following the opcode
}

// opcodeInfoTable maps opcodes to their metadata.
var opcodeInfoTable = map[Opcode]OpcodeInfo{
	// Stack manipulation
	OpNop:  {"NOP", 0, 0, 0},
	OpPop:  {"POP", 1, 0, 0},
	OpDup:  {"DUP", 1, 2, 0},
	OpSwap: {"SWAP", 2, 2, 0},

	// Constants
	OpLoadConst: {"LOADK", 0, 1, 2},
	OpLoadNil:   {"LOADNIL", 0, 1, 0},
	OpLoadTrue:  {"LOADTRUE", 0, 1, 0},
	OpLoadFalse: {"LOADFALSE", 0, 1, 0},

	// Locals
	OpGetLocal: {"GETLOCAL", 0, 1, 1},
	OpSetLocal: {"SETLOCAL", 1, 0, 1},
	OpNewLocal: {"NEWLOCAL", 1, 0, 1},

	// Upvalues
	OpGetUpval: {"GETUPVAL", 0, 1, 1},
	OpSetUpval: {"SETUPVAL", 1, 0, 1},
	OpClosure:  {"CLOSURE", 0, 1, 2},

	// Globals
	OpGetGlobal: {"GETGLOBAL", 0, 1, 2},
	OpSetGlobal: {"SETGLOBAL", 1, 0, 2},
	OpGetImport: {"GETIMPORT", 0, 1, 2},

	// Tables
	OpNewTable:    {"NEWTABLE", 0, 1, 2},
	OpGetIndex:    {"GETINDEX", 2, 1, 0},
	OpSetIndex:    {"SETINDEX", 3, 0, 0},
	OpGetField:    {"GETFIELD", 1, 1, 2},
	OpSetField:    {"SETFIELD", 2, 0, 2},
	OpTableAppend: {"TABLEAPPEND", 2, 1, 0},
	OpTableSet:    {"TABLESET", 3, 1, 0},

	// Arithmetic
	OpAdd: {"ADD", 2, 1, 0},
	OpSub: {"SUB", 2, 1, 0},
	OpMul: {"MUL", 2, 1, 0},
	OpDiv: {"DIV", 2, 1, 0},
	OpMod: {"MOD", 2, 1, 0},
	OpPow: {"POW", 2, 1, 0},
	OpUnm: {"UNM", 1, 1, 0},

	// Comparison and logic
	OpEq:     {"EQ", 2, 1, 0},
	OpNe:     {"NE", 2, 1, 0},
	OpLt:     {"LT", 2, 1, 0},
	OpLe:     {"LE", 2, 1, 0},
	OpGt:     {"GT", 2, 1, 0},
	OpGe:     {"GE", 2, 1, 0},
	OpNot:    {"NOT", 1, 1, 0},
	OpLen:    {"LEN", 1, 1, 0},
	OpConcat: {"CONCAT", 2, 1, 0},

	// Control flow
	OpJump:            {"JUMP", 0, 0, 2},
	OpJumpIfFalse:     {"JUMPIFNOT", 1, 0, 2},
	OpJumpIfFalseKeep: {"JUMPIFNOTKEEP", 1, 1, 2},
	OpJumpIfTrueKeep:  {"JUMPIFKEEP", 1, 1, 2},
	OpForTest:         {"FORTEST", 0, 1, 1},
	OpIterPrep:        {"ITERPREP", 1, 1, 0},
	OpIterNext:        {"ITERNEXT", 0, 2, 3},

	// Calls
	OpCall: {"CALL", -1, 1, 1}, // Pops function + argc args

	// Instrumentation
	OpCoverage: {"COVERAGE", 0, 0, 0},

	// Return
	OpReturn:    {"RETURN", 1, 0, 0},
	OpReturnNil: {"RETURNNIL", 0, 0, 0},
}

// GetOpcodeInfo returns metadata for an opcode.
// Returns a zero OpcodeInfo with name "UNKNOWN" if the opcode is not recognized.
func GetOpcodeInfo(op Opcode) OpcodeInfo {
	if info, ok := opcodeInfoTable[op]; ok {
		return info
	}
	return OpcodeInfo{Name: fmt.Sprintf("UNKNOWN(0x%02X)", byte(op))}
}

// String returns the human-readable name of an opcode.
func (op Opcode) String() string {
	return GetOpcodeInfo(op).Name
}

// OperandLen returns the number of operand bytes for this opcode.
func (op Opcode) OperandLen() int {
	return GetOpcodeInfo(op).OperandLen
}

// InstructionLen returns the total length of an instruction (1 + operand bytes).
func (op Opcode) InstructionLen() int {
	return 1 + op.OperandLen()
}

// IsJump returns true if this opcode carries a relative jump offset.
func (op Opcode) IsJump() bool {
	return (op >= OpJump && op <= OpJumpIfTrueKeep) || op == OpIterNext
}

// IsReturn returns true if this opcode terminates execution of a function.
func (op Opcode) IsReturn() bool {
	return op == OpReturn || op == OpReturnNil
}

// IsValid reports whether op has metadata.
func (op Opcode) IsValid() bool {
	_, ok := opcodeInfoTable[op]
	return ok
}

// AllOpcodes returns a slice of all defined opcodes.
func AllOpcodes() []Opcode {
	opcodes := make([]Opcode, 0, len(opcodeInfoTable))
	for op := range opcodeInfoTable {
		opcodes = append(opcodes, op)
	}
	return opcodes
}

// OpcodeCount returns the number of defined opcodes.
func OpcodeCount() int {
	return len(opcodeInfoTable)
}
