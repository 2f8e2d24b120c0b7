package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/chazu/scriptbridge/glue"
	"github.com/chazu/scriptbridge/pkg/bytecode"
	"github.com/chazu/scriptbridge/report"
	"github.com/chazu/scriptbridge/vm"
)

const sourceExt = ".sb"

// collectFiles expands the given paths into a sorted list of script files.
// Supports ./... syntax for recursive loading.
func collectFiles(paths []string) ([]string, error) {
	var files []string
	for _, path := range paths {
		recursive := false
		if strings.HasSuffix(path, "/...") {
			recursive = true
			path = strings.TrimSuffix(path, "/...")
			if path == "." || path == "" {
				path = "."
			}
		}

		info, err := os.Stat(path)
		if err != nil {
			return nil, fmt.Errorf("cannot access %s: %w", path, err)
		}

		if !info.IsDir() {
			files = append(files, path)
			continue
		}

		if recursive {
			err = filepath.Walk(path, func(p string, info os.FileInfo, err error) error {
				if err != nil {
					return err
				}
				if !info.IsDir() && strings.HasSuffix(p, sourceExt) {
					files = append(files, p)
				}
				return nil
			})
			if err != nil {
				return nil, err
			}
			continue
		}

		entries, err := os.ReadDir(path)
		if err != nil {
			return nil, err
		}
		for _, e := range entries {
			if !e.IsDir() && strings.HasSuffix(e.Name(), sourceExt) {
				files = append(files, filepath.Join(path, e.Name()))
			}
		}
	}
	sort.Strings(files)
	return files, nil
}

// driver compiles files and carries out the per-file actions selected on
// the command line.
type driver struct {
	copts     glue.CompileOpts
	popts     glue.ParseOpts
	unchecked bool
	dis       bool
	emit      bool
	state     *vm.State // nil unless -run
	report    *report.Report
	out       io.Writer
	errOut    io.Writer
}

// compileAll processes every file and reports whether any failed.
func (d *driver) compileAll(files []string) bool {
	failed := false
	for _, path := range files {
		if err := d.compileFile(path); err != nil {
			printError(d.errOut, err)
			failed = true
		}
	}
	return failed
}

func (d *driver) compileFile(path string) error {
	source, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("cannot read %s: %w", path, err)
	}

	if d.unchecked {
		return d.compileUnchecked(path, source)
	}

	out := glue.Compile(source, d.copts, d.popts)
	defer glue.FreeOutcome(out)
	d.report.Add(path, out)

	switch out.Kind() {
	case glue.OutcomeParseFailure:
		errs := out.ParseFailure()
		for _, e := range errs {
			printDiagnostic(d.errOut, path, e)
		}
		return fmt.Errorf("%s: %d parse errors", path, len(errs))
	case glue.OutcomeCompileFailure:
		printDiagnostic(d.errOut, path, out.CompileFailure())
		return fmt.Errorf("%s: compile failed", path)
	}

	return d.process(path, out.Success().Bytes())
}

// compileUnchecked goes through the payload entry point, where failures
// arrive as an encoded error message rather than diagnostics.
func (d *driver) compileUnchecked(path string, source []byte) error {
	buf := glue.CompileUnchecked(source, d.copts, d.popts)
	defer glue.Free(buf)
	if buf.Failed() {
		return fmt.Errorf("%s: out of memory", path)
	}

	data := buf.Bytes()
	if msg, ok := bytecode.ErrorMessage(data); ok {
		return fmt.Errorf("%s%s", path, msg)
	}
	return d.process(path, data)
}

// process runs the post-compile actions on successfully compiled bytecode.
func (d *driver) process(path string, data []byte) error {
	if d.emit {
		if err := os.WriteFile(path+"c", data, 0o644); err != nil {
			return err
		}
	}

	if d.dis {
		chunk, err := bytecode.Deserialize(data)
		if err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}
		fmt.Fprintf(d.out, "; %s\n%s", path, chunk.Disassemble())
	}

	if d.state != nil {
		fn, err := d.state.Load("@"+path, data)
		if err != nil {
			return err
		}
		result, err := d.state.PCall(fn)
		if err != nil {
			return err
		}
		if result != nil {
			fmt.Fprintln(d.out, vm.ToString(result))
		}
	}
	return nil
}
