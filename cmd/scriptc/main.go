// scriptc compiles scripts through the bridge, reports diagnostics, and
// optionally runs, disassembles, or serves them to an editor.
package main

import (
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/tliron/commonlog"

	"github.com/chazu/scriptbridge/config"
	"github.com/chazu/scriptbridge/glue"
	"github.com/chazu/scriptbridge/report"
	"github.com/chazu/scriptbridge/server"

	_ "github.com/tliron/commonlog/simple"
)

// setFlags collects repeated -set name=value arguments.
type setFlags []string

func (s *setFlags) String() string { return strings.Join(*s, ",") }

func (s *setFlags) Set(v string) error {
	if !strings.Contains(v, "=") {
		return fmt.Errorf("expected name=value, got %q", v)
	}
	*s = append(*s, v)
	return nil
}

func main() {
	verbose := flag.Bool("v", false, "Verbose output")
	configPath := flag.String("config", "", "Path to scriptbridge.toml (default: search upward from the working directory)")
	unchecked := flag.Bool("unchecked", false, "Compile through the unchecked entry point (error payloads instead of diagnostics)")
	dis := flag.Bool("dis", false, "Print a disassembly of each compiled file")
	run := flag.Bool("run", false, "Run each compiled file and print its result")
	emit := flag.Bool("emit", false, "Write bytecode next to each source as <file>c")
	listFlags := flag.Bool("flags", false, "List runtime flags and exit")
	reportPath := flag.String("report", "", "Write a CBOR compile report to this path")
	noColor := flag.Bool("no-color", false, "Disable colored diagnostics")
	lsp := flag.Bool("lsp", false, "Start the language server on stdio")
	var sets setFlags
	flag.Var(&sets, "set", "Set a runtime flag (name=value, repeatable)")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: scriptc [options] [paths...]\n\n")
		fmt.Fprintf(os.Stderr, "Compiles %s files from the given paths and reports diagnostics.\n\n", sourceExt)
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  scriptc ./src/...                  # Check every script under src/\n")
		fmt.Fprintf(os.Stderr, "  scriptc -run main.sb               # Compile and run main.sb\n")
		fmt.Fprintf(os.Stderr, "  scriptc -dis -set CompileFoldConstants=false main.sb\n")
		fmt.Fprintf(os.Stderr, "  scriptc -flags                     # Show runtime flags\n")
		fmt.Fprintf(os.Stderr, "  scriptc -lsp                       # Serve diagnostics to an editor\n")
	}
	flag.Parse()

	if *verbose {
		commonlog.Configure(2, nil)
	} else {
		commonlog.Configure(0, nil)
	}
	setupColor(*noColor)

	cfg, err := loadConfig(*configPath)
	if err != nil {
		fatal(err)
	}
	if err := applySets(cfg, sets); err != nil {
		fatal(err)
	}
	if err := cfg.ApplyFlags(); err != nil {
		fatal(err)
	}
	if *verbose && cfg.Path != "" {
		fmt.Fprintf(os.Stderr, "Using %s\n", cfg.Path)
	}

	if *listFlags {
		printFlags(os.Stdout)
		return
	}

	if *lsp {
		L, err := cfg.NewState()
		if err != nil {
			fatal(err)
		}
		if err := server.NewLSP(L, cfg.CompileOpts(), cfg.ParseOpts()).Run(); err != nil {
			fatal(fmt.Errorf("language server: %w", err))
		}
		return
	}

	paths := flag.Args()
	if len(paths) == 0 {
		flag.Usage()
		os.Exit(2)
	}

	files, err := collectFiles(paths)
	if err != nil {
		fatal(err)
	}
	if *verbose {
		fmt.Fprintf(os.Stderr, "Compiling %d files\n", len(files))
	}

	d := &driver{
		copts:     cfg.CompileOpts(),
		popts:     cfg.ParseOpts(),
		unchecked: *unchecked,
		dis:       *dis,
		emit:      *emit,
		report:    report.New(),
		out:       os.Stdout,
		errOut:    os.Stderr,
	}
	if *run {
		L, err := cfg.NewState()
		if err != nil {
			fatal(err)
		}
		d.state = L
	}

	failed := d.compileAll(files)

	if d.state != nil {
		d.report.AddCoverage(d.state.Global().Coverage())
	}
	if *reportPath != "" {
		data, err := report.Marshal(d.report)
		if err != nil {
			fatal(err)
		}
		if err := os.WriteFile(*reportPath, data, 0o644); err != nil {
			fatal(err)
		}
	}

	if failed {
		os.Exit(1)
	}
}

// loadConfig reads an explicit config file, or searches upward from the
// working directory, falling back to defaults.
func loadConfig(path string) (*config.Config, error) {
	if path != "" {
		return config.LoadFile(path)
	}
	cfg, err := config.FindAndLoad(".")
	if err != nil {
		return nil, err
	}
	if cfg == nil {
		cfg = config.Default()
	}
	return cfg, nil
}

// applySets merges -set arguments into the config. Values that parse as
// booleans target boolean flags; integers target integer flags.
func applySets(cfg *config.Config, sets []string) error {
	for _, s := range sets {
		name, value, _ := strings.Cut(s, "=")
		if b, err := strconv.ParseBool(value); err == nil {
			if glue.FindFlag([]byte(name)).IsPresent() {
				if cfg.Flags == nil {
					cfg.Flags = make(map[string]bool)
				}
				cfg.Flags[name] = b
				continue
			}
		}
		n, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("-set %s: value must be a boolean or an integer", s)
		}
		if cfg.IntFlags == nil {
			cfg.IntFlags = make(map[string]int)
		}
		cfg.IntFlags[name] = n
	}
	return nil
}
