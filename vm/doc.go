// Package vm implements the virtual machine that executes compiled
// scriptbridge bytecode.
//
// This package contains:
//   - Global and per-thread State with memory accounting
//   - Interned strings, tables, userdata, buffers and vectors
//   - The protected-execution barrier (RawRunProtected) and status codes
//   - A bytecode loader that verifies and links compiled modules
//   - The interpreter loop and the base library
//
// A State is not safe for concurrent use. Callers that share a Global
// between goroutines must serialize access themselves.
package vm
