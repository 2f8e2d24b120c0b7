// Package bytecode defines the compiled form of scripts: function chunks,
// their constant pools and instruction set, and the binary module format
// the compiler emits and the VM loads.
//
// # Module Format
//
// A serialized module starts with a single version byte followed by the
// main chunk, whose nested functions are serialized recursively inside it.
// All multi-byte integers are big-endian.
//
// A leading byte of VersionError (0) never starts real bytecode. The
// compiler's unchecked entry point uses it to mark an error payload: the
// remaining bytes are the error message. Callers distinguish the two with
// IsError before handing data to Deserialize.
//
// # Instruction Set
//
// The VM is stack based. Locals live in per-frame slots that hold cells, so
// a closure capturing a local shares the cell with the enclosing frame and
// every declaration creates a fresh cell (OpNewLocal). Jumps carry signed
// 16-bit offsets relative to the end of the instruction.
//
// # Versions
//
//   - Version 1: the base format.
//   - Version 2: adds vector constants.
package bytecode
