package main

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/xyproto/env/v2"

	"tsllvm/internal/ast"
	"tsllvm/internal/codegen"
	"tsllvm/internal/loader"
	"tsllvm/internal/semantic"
)

const VERSION = "0.2.0"

var debugMode = false

// config holds everything the command line and environment select.
type config struct {
	files    []string
	target   string
	buildDir string
	out      string
	llc      string
	cc       string
	runtime  []string
	printIR  bool
	emitIR   bool
	emitObj  bool
	link     bool
}

func main() {
	start := time.Now()
	exitCode := run(os.Args[1:], os.Stdout)
	if exitCode == 0 && debugMode {
		fmt.Printf("Compile time: %s\n", time.Since(start))
	}
	os.Exit(exitCode)
}

func run(args []string, out io.Writer) int {
	if len(args) > 0 && args[0] == "repl" {
		return runREPL(os.Stdin, out)
	}

	cfg, err := parseArgs(args)
	if err != nil {
		fmt.Fprintf(out, "Error: %s\n", err)
		return 1
	}
	printDebug(out, "tsllvm V"+VERSION)

	if len(cfg.files) == 0 {
		fmt.Fprintln(out, "Usage: tsllvm [flags] <file.ts>...")
		fmt.Fprintln(out, "       tsllvm repl")
		return 1
	}
	for _, f := range cfg.files {
		if !fileExists(f) {
			fmt.Fprintf(out, "Error: File %s does not exist.\n", f)
			return 1
		}
	}

	// --- Loading ---
	printDebug(out, "Loading "+strings.Join(cfg.files, ", "))
	program, loadErrors := loader.Load(cfg.files...)
	if len(loadErrors) > 0 {
		fmt.Fprintln(out, "Load errors:")
		for _, e := range loadErrors {
			fmt.Fprintf(out, "  %s\n", e.Error())
		}
		return 1
	}
	if debugMode {
		for _, f := range program.Files {
			if f.Ambient {
				continue
			}
			printDebug(out, "--- AST "+f.Name+" ---")
			printDebug(out, ast.DebugString(f))
		}
	}

	// --- Semantic analysis ---
	printDebug(out, "Starting semantic analysis...")
	info, ok := check(program, out)
	if !ok {
		return 1
	}
	printDebug(out, "Semantic analysis complete. No errors.")

	// --- Code generation ---
	opts, err := cfg.options(out)
	if err != nil {
		fmt.Fprintf(out, "Error: %s\n", err)
		return 1
	}
	result, err := codegen.Generate(program, info, opts)
	if err != nil {
		fmt.Fprintf(out, "Codegen error: %s\n", err)
		return 1
	}

	if cfg.printIR {
		fmt.Fprint(out, result.IR)
	}
	if result.IRFile != "" || result.ObjFile != "" || result.ExeFile != "" {
		fmt.Fprintln(out, "Build artifacts:")
	}
	if result.IRFile != "" {
		fmt.Fprintf(out, "  IR:       %s\n", result.IRFile)
	}
	if result.ObjFile != "" {
		fmt.Fprintf(out, "  Object:   %s\n", result.ObjFile)
	}
	if result.ExeFile != "" {
		fmt.Fprintf(out, "  Binary:   %s\n", result.ExeFile)
	}

	if len(result.Warnings) > 0 {
		fmt.Fprintln(out)
		for _, w := range result.Warnings {
			fmt.Fprintf(out, "  %s\n", w)
		}
	}

	printDebug(out, "Compilation pipeline finished successfully.")
	return 0
}

// parseArgs reads the flags and input files. Flags left unset fall back to
// TSLLVM_* environment variables.
func parseArgs(args []string) (*config, error) {
	debugMode = env.Bool("TSLLVM_DEBUG")
	cfg := &config{
		target:   env.Str("TSLLVM_TARGET"),
		buildDir: env.Str("TSLLVM_BUILD_DIR", "build"),
		llc:      env.Str("TSLLVM_LLC"),
		cc:       env.Str("TSLLVM_CC"),
	}

	explicitEmit := false
	for _, arg := range args {
		name, val, hasVal := strings.Cut(arg, "=")
		switch {
		case arg == "--debug":
			debugMode = true
		case arg == "--print-ir":
			cfg.printIR = true
		case arg == "--emit-ir":
			cfg.emitIR, explicitEmit = true, true
		case arg == "--emit-obj":
			cfg.emitObj, explicitEmit = true, true
		case arg == "--link":
			cfg.link, explicitEmit = true, true
		case name == "--runtime" && hasVal:
			cfg.runtime = append(cfg.runtime, val)
		case name == "--target" && hasVal:
			cfg.target = val
		case name == "--out" && hasVal:
			cfg.out = val
		case name == "--build-dir" && hasVal:
			cfg.buildDir = val
		case strings.HasPrefix(arg, "-"):
			return nil, fmt.Errorf("unknown flag %q", arg)
		default:
			cfg.files = append(cfg.files, arg)
		}
	}
	// Writing the .ll file is the default unless only --print-ir was given.
	if !explicitEmit && !cfg.printIR {
		cfg.emitIR = true
	}
	return cfg, nil
}

func (cfg *config) options(out io.Writer) (*codegen.Options, error) {
	target, err := codegen.ParseTarget(cfg.target)
	if err != nil {
		return nil, err
	}
	printDebug(out, fmt.Sprintf("Target: %s (%s)", target, target.Triple))

	opts := codegen.DefaultOptions()
	opts.Target = target
	opts.BuildDir = cfg.buildDir
	opts.OutputName = cfg.out
	opts.Verbose = debugMode
	opts.Log = out
	opts.EmitIR = cfg.emitIR
	opts.EmitObj = cfg.emitObj
	opts.Link = cfg.link
	opts.Runtime = cfg.runtime
	opts.LLC = cfg.llc
	opts.CC = cfg.cc
	return opts, nil
}

// check runs the semantic analysis, printing warnings always and errors when
// there are any.
func check(program *ast.Program, out io.Writer) (*semantic.Info, bool) {
	info, diagnostics := semantic.Check(program)

	var semWarnings, semErrors []semantic.Diagnostic
	for _, d := range diagnostics {
		if d.Severity == semantic.Warning {
			semWarnings = append(semWarnings, d)
		} else {
			semErrors = append(semErrors, d)
		}
	}

	if len(semWarnings) > 0 {
		fmt.Fprintln(out, "Warnings:")
		for _, w := range semWarnings {
			fmt.Fprintf(out, "  %s\n", w.Error())
		}
	}
	if len(semErrors) > 0 {
		fmt.Fprintln(out, "Semantic errors:")
		for _, e := range semErrors {
			fmt.Fprintf(out, "  %s\n", e.Error())
		}
		return nil, false
	}
	return info, true
}

func printDebug(out io.Writer, message string) {
	if !debugMode {
		return
	}
	fmt.Fprintln(out, "[DEBUG] "+message)
}

func fileExists(filePath string) bool {
	if _, err := os.Stat(filePath); os.IsNotExist(err) {
		return false
	}
	return true
}
