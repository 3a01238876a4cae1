package codegen

import (
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

// ---------------------------------------------------------------------------
// Toolchain: llc + system compiler invocation for each target
// ---------------------------------------------------------------------------

// Toolchain represents the external programs used to compile and link the
// generated IR.
type Toolchain struct {
	Target   *Target
	BuildDir string
	IRFile   string // path to the .ll file
	ObjFile  string // path to the object file
	ExeFile  string // path to the final executable
	LLC      string // LLVM static compiler, "llc" by default
	CC       string // C compiler driver used as the linker, "cc" by default
	Runtime  []string
	Verbose  bool
	Log      io.Writer
}

// NewToolchain creates a Toolchain for the given target and build directory.
func NewToolchain(target *Target, buildDir, baseName string) *Toolchain {
	return &Toolchain{
		Target:   target,
		BuildDir: buildDir,
		IRFile:   filepath.Join(buildDir, baseName+".ll"),
		ObjFile:  filepath.Join(buildDir, baseName+target.FileExtObj()),
		ExeFile:  filepath.Join(buildDir, baseName+target.FileExtExe()),
		LLC:      "llc",
		CC:       "cc",
		Log:      os.Stdout,
	}
}

// WriteIR writes the textual module to the .ll file.
func (tc *Toolchain) WriteIR(ir string) error {
	return os.WriteFile(tc.IRFile, []byte(ir), 0644)
}

// Compile runs llc to produce an object file for the target triple.
func (tc *Toolchain) Compile() error {
	cmd := exec.Command(tc.LLC, tc.compileArgs()...)
	return tc.runCmd(cmd, "compile")
}

func (tc *Toolchain) compileArgs() []string {
	return []string{
		"-filetype=obj",
		"-mtriple=" + tc.Target.Triple,
		"-o", tc.ObjFile,
		tc.IRFile,
	}
}

// Link runs the system compiler driver on the object and runtime inputs.
// The driver supplies the C runtime startup that calls main.
func (tc *Toolchain) Link() error {
	cmd := exec.Command(tc.CC, tc.linkArgs()...)
	return tc.runCmd(cmd, "link")
}

func (tc *Toolchain) linkArgs() []string {
	args := []string{"-o", tc.ExeFile, tc.ObjFile}
	args = append(args, tc.Runtime...)
	if host, err := HostTarget(); err == nil && host.Triple != tc.Target.Triple {
		args = append(args, "--target="+tc.Target.Triple)
	}
	if tc.Target.OS == OS_Linux {
		args = append(args, "-lm")
	}
	return args
}

// ---------------------------------------------------------------------------
// Helpers
// ---------------------------------------------------------------------------

func (tc *Toolchain) runCmd(cmd *exec.Cmd, stage string) error {
	if tc.Verbose {
		fmt.Fprintf(tc.Log, "[toolchain] %s: %s\n", stage, strings.Join(cmd.Args, " "))
	}

	var stderr strings.Builder
	cmd.Stderr = &stderr
	cmd.Stdout = tc.Log

	err := cmd.Run()
	if err != nil {
		return fmt.Errorf("%s failed: %v\n%s", stage, err, stderr.String())
	}
	return nil
}

// Detect checks whether the external tools are available and returns the
// missing ones. The linker is only required when link is set.
func (tc *Toolchain) Detect(link bool) []string {
	var missing []string
	if _, err := exec.LookPath(tc.LLC); err != nil {
		missing = append(missing, tc.LLC+" (LLVM static compiler)")
	}
	if link {
		if _, err := exec.LookPath(tc.CC); err != nil {
			missing = append(missing, tc.CC+" (linker driver)")
		}
	}
	return missing
}
