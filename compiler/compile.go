package compiler

import (
	"fmt"
	"sort"

	"github.com/chazu/scriptbridge/pkg/bytecode"
)

// Parse parses source into a syntax tree. Syntax errors and strict-global
// violations are returned together as *ParseErrors; the tree is returned
// only when there are none.
func Parse(source string, opts ParseOptions) (*ParseResult, error) {
	p := NewParser(source, opts)
	root := p.ParseChunk()

	errs := p.Errors()
	if !p.aborted {
		errs = append(errs, checkGlobals(root)...)
		sort.SliceStable(errs, func(i, j int) bool {
			return errs[i].Location.Start.Before(errs[j].Location.Start)
		})
	}
	if len(errs) > 0 {
		return nil, newParseErrors(errs)
	}

	result := &ParseResult{Root: root, Lines: p.lexer.line + 1}
	if opts.CaptureComments {
		result.Comments = p.Comments()
	}
	return result, nil
}

// CompileChunk parses and generates code, returning the unserialized chunk.
func CompileChunk(source string, copts CompileOptions, popts ParseOptions) (*bytecode.Chunk, error) {
	result, err := Parse(source, popts)
	if err != nil {
		return nil, err
	}
	return Generate(result.Root, copts)
}

// CompileChecked compiles source to serialized bytecode. It returns either
// the bytecode, a *ParseErrors or a single *CompileError.
func CompileChecked(source string, copts CompileOptions, popts ParseOptions) ([]byte, error) {
	chunk, err := CompileChunk(source, copts, popts)
	if err != nil {
		return nil, err
	}
	data, err := chunk.Serialize()
	if err != nil {
		return nil, &CompileError{Message: err.Error()}
	}
	return data, nil
}

// Compile compiles source and never fails: on error it returns an error
// payload, a zero byte followed by ":<line>: <message>" for the first
// error.
func Compile(source string, copts CompileOptions, popts ParseOptions) []byte {
	data, err := CompileChecked(source, copts, popts)
	if err == nil {
		return data
	}
	return bytecode.EncodeError(errorPayload(err))
}

func errorPayload(err error) string {
	switch e := err.(type) {
	case *ParseErrors:
		first := e.Errors()[0]
		return fmt.Sprintf(":%d: %s", first.Location.Start.Line+1, first.Message)
	case *CompileError:
		return fmt.Sprintf(":%d: %s", e.Location.Start.Line+1, e.Message)
	}
	return ": " + err.Error()
}
