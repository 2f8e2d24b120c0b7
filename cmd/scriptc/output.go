package main

import (
	"fmt"
	"io"
	"os"

	"github.com/fatih/color"
	"github.com/mattn/go-isatty"

	"github.com/chazu/scriptbridge/glue"
)

var (
	red    = color.New(color.FgRed).SprintFunc()
	bold   = color.New(color.Bold).SprintFunc()
	yellow = color.New(color.FgYellow).SprintFunc()
	faint  = color.New(color.Faint).SprintFunc()
)

// setupColor enables color only when stderr, where diagnostics go, is a
// terminal.
func setupColor(disabled bool) {
	fd := os.Stderr.Fd()
	tty := isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
	color.NoColor = disabled || !tty
}

func fatal(err error) {
	fmt.Fprintf(os.Stderr, "%s\n", red(err.Error()))
	os.Exit(1)
}

func printError(w io.Writer, err error) {
	fmt.Fprintf(w, "%s %s\n", red("error:"), err)
}

// printDiagnostic writes a diagnostic as path:line:col with 1-based
// positions.
func printDiagnostic(w io.Writer, path string, d glue.Diagnostic) {
	loc := fmt.Sprintf("%s:%d:%d:", path, d.Span.StartLine+1, d.Span.StartColumn+1)
	fmt.Fprintf(w, "%s %s %s\n", bold(loc), red("error:"), d.Message.String())
}

// printFlags lists every runtime flag with its current value.
func printFlags(w io.Writer) {
	for _, h := range glue.ListFlags() {
		if h.IsNull() {
			break
		}
		fmt.Fprintf(w, "%-24s %s %v\n", h.Name(), faint("bool"), yellow(glue.GetFlag(h)))
	}
	for _, h := range glue.ListIntFlags() {
		if h.IsNull() {
			break
		}
		fmt.Fprintf(w, "%-24s %s %v\n", h.Name(), faint("int "), yellow(glue.GetIntFlag(h)))
	}
}
