package codegen

import (
	"fmt"
	"runtime"
	"strings"
)

// ---------------------------------------------------------------------------
// OS / Architecture enums
// ---------------------------------------------------------------------------

// OS represents a target operating system.
type OS int

const (
	OS_Linux  OS = iota
	OS_Darwin    // macOS
	OS_Windows
)

func (o OS) String() string {
	switch o {
	case OS_Linux:
		return "linux"
	case OS_Darwin:
		return "darwin"
	case OS_Windows:
		return "windows"
	default:
		return "unknown"
	}
}

// Arch represents a target CPU architecture.
type Arch int

const (
	Arch_x86_64 Arch = iota
	Arch_x86         // 32-bit x86
	Arch_ARM64       // AArch64
)

func (a Arch) String() string {
	switch a {
	case Arch_x86_64:
		return "x86_64"
	case Arch_x86:
		return "x86"
	case Arch_ARM64:
		return "arm64"
	default:
		return "unknown"
	}
}

// ---------------------------------------------------------------------------
// Target: a fully-resolved compilation target
// ---------------------------------------------------------------------------

// Target holds what the generator needs to know about the machine the module
// is compiled for: the LLVM triple and data layout written into the module,
// and the pointer width and double alignment used to size heap objects.
type Target struct {
	OS   OS
	Arch Arch

	// Triple is the LLVM target triple, e.g. "x86_64-pc-linux-gnu".
	Triple string

	// DataLayout is the LLVM data layout string matching Triple.
	DataLayout string

	// PtrSize is the size of a pointer in bytes (4 or 8).
	PtrSize int

	// DoubleAlign is the ABI alignment of a double inside a struct. 32-bit
	// Linux aligns doubles to 4 bytes.
	DoubleAlign int
}

// HostTarget returns a Target matching the current Go runtime (GOOS/GOARCH).
func HostTarget() (*Target, error) {
	return ResolveTarget(runtime.GOOS, runtime.GOARCH)
}

// ResolveTarget builds a Target from OS/Arch name strings (same names Go uses).
func ResolveTarget(osName, archName string) (*Target, error) {
	t := &Target{}

	switch osName {
	case "linux":
		t.OS = OS_Linux
	case "darwin", "macos":
		t.OS = OS_Darwin
	case "windows":
		t.OS = OS_Windows
	default:
		return nil, fmt.Errorf("unsupported OS: %s", osName)
	}

	switch archName {
	case "amd64", "x86_64":
		t.Arch = Arch_x86_64
	case "386", "x86", "i386", "i686":
		t.Arch = Arch_x86
	case "arm64", "aarch64":
		t.Arch = Arch_ARM64
	default:
		return nil, fmt.Errorf("unsupported architecture: %s", archName)
	}

	if err := t.fill(); err != nil {
		return nil, err
	}
	return t, nil
}

// ParseTarget accepts either "os/arch" (linux/amd64) or an LLVM triple
// (aarch64-apple-darwin). An empty string selects the host.
func ParseTarget(spec string) (*Target, error) {
	if spec == "" {
		return HostTarget()
	}
	if osName, archName, ok := strings.Cut(spec, "/"); ok {
		return ResolveTarget(osName, archName)
	}

	parts := strings.Split(spec, "-")
	if len(parts) < 2 {
		return nil, fmt.Errorf("invalid target %q: want os/arch or an LLVM triple", spec)
	}
	var osName string
	for _, p := range parts[1:] {
		switch {
		case p == "linux":
			osName = "linux"
		case p == "windows":
			osName = "windows"
		case strings.HasPrefix(p, "darwin"), strings.HasPrefix(p, "macos"):
			osName = "darwin"
		}
	}
	if osName == "" {
		return nil, fmt.Errorf("invalid target %q: unknown operating system", spec)
	}
	t, err := ResolveTarget(osName, parts[0])
	if err != nil {
		return nil, err
	}
	t.Triple = spec
	return t, nil
}

// fill sets the triple, data layout and ABI sizes for the OS/Arch pair.
func (t *Target) fill() error {
	t.PtrSize = 8
	t.DoubleAlign = 8

	switch {
	case t.OS == OS_Linux && t.Arch == Arch_x86_64:
		t.Triple = "x86_64-pc-linux-gnu"
		t.DataLayout = "e-m:e-p270:32:32-p271:32:32-p272:64:64-i64:64-f80:128-n8:16:32:64-S128"
	case t.OS == OS_Linux && t.Arch == Arch_x86:
		t.Triple = "i386-pc-linux-gnu"
		t.DataLayout = "e-m:e-p:32:32-p270:32:32-p271:32:32-p272:64:64-f64:32:64-f80:32-n8:16:32-S128"
		t.PtrSize = 4
		t.DoubleAlign = 4
	case t.OS == OS_Linux && t.Arch == Arch_ARM64:
		t.Triple = "aarch64-unknown-linux-gnu"
		t.DataLayout = "e-m:e-i8:8:32-i16:16:32-i64:64-i128:128-n32:64-S128"
	case t.OS == OS_Darwin && t.Arch == Arch_x86_64:
		t.Triple = "x86_64-apple-darwin"
		t.DataLayout = "e-m:o-p270:32:32-p271:32:32-p272:64:64-i64:64-f80:128-n8:16:32:64-S128"
	case t.OS == OS_Darwin && t.Arch == Arch_ARM64:
		t.Triple = "arm64-apple-darwin"
		t.DataLayout = "e-m:o-i64:64-i128:128-n32:64-S128"
	case t.OS == OS_Windows && t.Arch == Arch_x86_64:
		t.Triple = "x86_64-pc-windows-msvc"
		t.DataLayout = "e-m:w-p270:32:32-p271:32:32-p272:64:64-i64:64-f80:128-n8:16:32:64-S128"
	case t.OS == OS_Windows && t.Arch == Arch_x86:
		t.Triple = "i686-pc-windows-msvc"
		t.DataLayout = "e-m:x-p:32:32-p270:32:32-p271:32:32-p272:64:64-i64:64-f80:32-n8:16:32-a:0:32-S32"
		t.PtrSize = 4
	case t.OS == OS_Windows && t.Arch == Arch_ARM64:
		t.Triple = "aarch64-pc-windows-msvc"
		t.DataLayout = "e-m:w-p:64:64-i32:32-i64:64-i128:128-n32:64-S128"
	default:
		return fmt.Errorf("unsupported target: %s/%s", t.OS, t.Arch)
	}
	return nil
}

// ---------------------------------------------------------------------------
// Helper queries
// ---------------------------------------------------------------------------

// FileExtObj returns the platform object file extension (.o or .obj).
func (t *Target) FileExtObj() string {
	if t.OS == OS_Windows {
		return ".obj"
	}
	return ".o"
}

// FileExtExe returns the platform executable extension ("" or ".exe").
func (t *Target) FileExtExe() string {
	if t.OS == OS_Windows {
		return ".exe"
	}
	return ""
}

// Is64Bit reports whether the target is a 64-bit architecture.
func (t *Target) Is64Bit() bool {
	return t.PtrSize == 8
}

// String returns "os/arch".
func (t *Target) String() string {
	return t.OS.String() + "/" + t.Arch.String()
}
