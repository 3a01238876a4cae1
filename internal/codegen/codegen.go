package codegen

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/llir/llvm/ir"

	"tsllvm/internal/ast"
)

// ---------------------------------------------------------------------------
// Options controls the behaviour of the code-generation pipeline.
// ---------------------------------------------------------------------------

// Options configures the codegen pipeline.
type Options struct {
	// Target platform. If nil, the host platform is auto-detected.
	Target *Target

	// BuildDir is the directory where all build artifacts are written.
	// Defaults to "./build" relative to the working directory.
	BuildDir string

	// OutputName is the base name for the output files (without extension).
	// Defaults to the first source file name or "output".
	OutputName string

	// Verbose enables [codegen] progress lines on Log.
	Verbose bool
	Log     io.Writer

	// EmitIR writes the module as textual IR. EmitObj additionally runs llc,
	// Link additionally links the object with Runtime into an executable.
	// With all three false, Generate only builds the module in memory.
	EmitIR  bool
	EmitObj bool
	Link    bool

	// Runtime lists extra objects or archives handed to the linker.
	Runtime []string

	// LLC and CC override the tool names looked up on PATH.
	LLC string
	CC  string
}

// DefaultOptions returns sensible defaults (host target, build/ directory,
// IR file only).
func DefaultOptions() *Options {
	return &Options{
		BuildDir: "build",
		EmitIR:   true,
	}
}

// ---------------------------------------------------------------------------
// Result is returned by Generate with the module and produced artifacts.
// ---------------------------------------------------------------------------

type Result struct {
	Module   *ir.Module
	IR       string // textual IR of Module
	Warnings []Warning
	IRFile   string // empty unless EmitIR, EmitObj or Link
	ObjFile  string // empty unless EmitObj or Link
	ExeFile  string // empty unless Link
}

// ---------------------------------------------------------------------------
// Generate: the public entry point for the full codegen pipeline
//
// Pipeline: AST + types → LLVM module (lower) → .ll → object (llc) → executable (cc)
// ---------------------------------------------------------------------------

// Generate runs the code-generation pipeline on a checked program.
func Generate(program *ast.Program, oracle Oracle, opts *Options) (*Result, error) {
	if opts == nil {
		opts = DefaultOptions()
	}
	logw := opts.Log
	if logw == nil {
		logw = os.Stdout
	}
	logf := func(format string, args ...any) {
		if opts.Verbose {
			fmt.Fprintf(logw, "[codegen] "+format+"\n", args...)
		}
	}

	// --- Resolve target ---
	target := opts.Target
	if target == nil {
		var err error
		target, err = HostTarget()
		if err != nil {
			return nil, fmt.Errorf("cannot detect host target: %w", err)
		}
	}

	// --- Step 1: Lower AST to LLVM IR ---
	logf("Lowering program for %s...", target)
	mod, warnings, err := Lower(program, oracle, target)
	if err != nil {
		return nil, err
	}
	result := &Result{Module: mod, IR: mod.String(), Warnings: warnings}
	logf("Module has %d function(s), %d type(s), %d global(s)", len(mod.Funcs), len(mod.TypeDefs), len(mod.Globals))

	if !opts.EmitIR && !opts.EmitObj && !opts.Link {
		return result, nil
	}

	// --- Step 2: Write the .ll file ---
	outputName := opts.OutputName
	if outputName == "" {
		outputName = defaultOutputName(program)
	}
	buildDir := opts.BuildDir
	if buildDir == "" {
		buildDir = "build"
	}
	platformDir := filepath.Join(buildDir, fmt.Sprintf("%s_%s", target.OS, target.Arch))
	if err := os.MkdirAll(platformDir, 0755); err != nil {
		return nil, fmt.Errorf("cannot create build directory %s: %w", platformDir, err)
	}

	tc := NewToolchain(target, platformDir, outputName)
	tc.Verbose = opts.Verbose
	tc.Log = logw
	tc.Runtime = opts.Runtime
	if opts.LLC != "" {
		tc.LLC = opts.LLC
	}
	if opts.CC != "" {
		tc.CC = opts.CC
	}

	if err := tc.WriteIR(result.IR); err != nil {
		return nil, fmt.Errorf("cannot write IR file: %w", err)
	}
	result.IRFile = tc.IRFile
	logf("IR written to %s", result.IRFile)

	if !opts.EmitObj && !opts.Link {
		return result, nil
	}

	// --- Step 3: Compile ---
	if missing := tc.Detect(opts.Link); len(missing) > 0 {
		fmt.Fprintf(logw, "[codegen] Warning: missing toolchain components: %s\n", strings.Join(missing, ", "))
		fmt.Fprintf(logw, "[codegen] IR was written to %s; compile and link it manually.\n", result.IRFile)
		return result, nil
	}
	logf("Compiling...")
	if err := tc.Compile(); err != nil {
		return result, fmt.Errorf("compilation failed: %w", err)
	}
	result.ObjFile = tc.ObjFile

	if !opts.Link {
		return result, nil
	}

	// --- Step 4: Link ---
	logf("Linking...")
	if err := tc.Link(); err != nil {
		return result, fmt.Errorf("linking failed: %w", err)
	}
	result.ExeFile = tc.ExeFile
	logf("Executable written to %s", result.ExeFile)

	return result, nil
}

// Lower builds and verifies the LLVM module of a checked program without
// touching the file system.
func Lower(program *ast.Program, oracle Oracle, target *Target) (*ir.Module, []Warning, error) {
	g := newGenerator(oracle, target)
	if err := g.lowerProgram(program); err != nil {
		return nil, g.warnings, err
	}
	return g.module, g.warnings, nil
}

// defaultOutputName derives the artifact base name from the first
// non-ambient source file.
func defaultOutputName(program *ast.Program) string {
	name := "output"
	for _, f := range program.Files {
		if f.Ambient {
			continue
		}
		base := filepath.Base(f.Name)
		name = strings.TrimSuffix(base, filepath.Ext(base))
		break
	}
	// Sanitize: replace dots/spaces with underscores.
	return strings.Map(func(r rune) rune {
		if r == '.' || r == ' ' || r == '/' || r == '\\' {
			return '_'
		}
		return r
	}, name)
}
