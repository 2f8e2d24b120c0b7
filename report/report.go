// Package report encodes compile diagnostics and coverage as canonical
// CBOR for tools that consume scriptc output.
package report

import (
	"fmt"

	"github.com/fxamacker/cbor/v2"

	"github.com/chazu/scriptbridge/glue"
	"github.com/chazu/scriptbridge/vm"
)

// FormatVersion is written into every report.
const FormatVersion = 1

var cborEncMode cbor.EncMode

func init() {
	em, err := cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		panic(fmt.Sprintf("report: failed to create CBOR enc mode: %v", err))
	}
	cborEncMode = em
}

// Report is the result of compiling a set of files.
type Report struct {
	Version  uint               `cbor:"1,keyasint"`
	Files    []File             `cbor:"2,keyasint"`
	Coverage []FunctionCoverage `cbor:"3,keyasint,omitempty"`
}

// File is the outcome for one source file.
type File struct {
	Path         string       `cbor:"1,keyasint"`
	Kind         uint8        `cbor:"2,keyasint"` // a glue.OutcomeKind
	BytecodeSize int          `cbor:"3,keyasint,omitempty"`
	Diagnostics  []Diagnostic `cbor:"4,keyasint,omitempty"`
}

// Diagnostic is one error. Span holds start line, start column, end line
// and end column, 0-based.
type Diagnostic struct {
	Message string    `cbor:"1,keyasint"`
	Span    [4]uint32 `cbor:"2,keyasint"`
}

// FunctionCoverage is the hit count per line of one function.
type FunctionCoverage struct {
	Source string     `cbor:"1,keyasint"`
	Name   string     `cbor:"2,keyasint,omitempty"`
	Lines  [][2]int64 `cbor:"3,keyasint"` // {line, hits}
}

// New returns an empty report.
func New() *Report {
	return &Report{Version: FormatVersion}
}

// Add records the outcome of compiling path.
func (r *Report) Add(path string, out *glue.CompileOutcome) {
	f := File{Path: path, Kind: uint8(out.Kind())}
	switch out.Kind() {
	case glue.OutcomeSuccess:
		f.BytecodeSize = out.Success().Len
	case glue.OutcomeParseFailure:
		for _, d := range out.ParseFailure() {
			f.Diagnostics = append(f.Diagnostics, diagnostic(d))
		}
	case glue.OutcomeCompileFailure:
		f.Diagnostics = []Diagnostic{diagnostic(out.CompileFailure())}
	}
	r.Files = append(r.Files, f)
}

func diagnostic(d glue.Diagnostic) Diagnostic {
	return Diagnostic{
		Message: d.Message.String(),
		Span:    [4]uint32{d.Span.StartLine, d.Span.StartColumn, d.Span.EndLine, d.Span.EndColumn},
	}
}

// AddCoverage appends the coverage collected by a VM.
func (r *Report) AddCoverage(cov []vm.FunctionCoverage) {
	for _, fc := range cov {
		c := FunctionCoverage{Source: fc.Source, Name: fc.Name}
		for _, lh := range fc.Lines {
			c.Lines = append(c.Lines, [2]int64{int64(lh.Line), int64(lh.Hits)})
		}
		r.Coverage = append(r.Coverage, c)
	}
}

// Failed reports whether any file failed to compile.
func (r *Report) Failed() bool {
	for _, f := range r.Files {
		if f.Kind != uint8(glue.OutcomeSuccess) {
			return true
		}
	}
	return false
}

// Marshal serializes a Report to canonical CBOR.
func Marshal(r *Report) ([]byte, error) {
	return cborEncMode.Marshal(r)
}

// Unmarshal deserializes a Report from CBOR bytes.
func Unmarshal(data []byte) (*Report, error) {
	var r Report
	if err := cbor.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("report: unmarshal: %w", err)
	}
	if r.Version != FormatVersion {
		return nil, fmt.Errorf("report: unsupported version %d", r.Version)
	}
	return &r, nil
}
