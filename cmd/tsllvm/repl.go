package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/llir/llvm/ir"
	"github.com/peterh/liner"
	"github.com/xyproto/env/v2"

	"tsllvm/internal/codegen"
	"tsllvm/internal/loader"
	"tsllvm/internal/semantic"
)

const (
	promptMain  = "ts> "
	historyFile = ".tsllvm_history"
	replName    = "repl.ts"
)

// session is the source accepted so far. Every new line is checked and
// lowered together with it; a line that fails is dropped.
type session struct {
	target *codegen.Target
	source strings.Builder
	module *ir.Module
}

// submit lowers the session source plus line. On success the line becomes
// part of the session.
func (s *session) submit(line string) (*ir.Module, error) {
	src := s.source.String() + line + "\n"
	program, loadErrors := loader.LoadSource(replName, src)
	if len(loadErrors) > 0 {
		return nil, loadErrors[0]
	}
	info, diagnostics := semantic.Check(program)
	for _, d := range diagnostics {
		if d.Severity == semantic.Error {
			return nil, d
		}
	}
	mod, _, err := codegen.Lower(program, info, s.target)
	if err != nil {
		return nil, err
	}
	s.source.WriteString(line + "\n")
	s.module = mod
	return mod, nil
}

func (s *session) reset() {
	s.source.Reset()
	s.module = nil
}

func entryIR(mod *ir.Module) string {
	for _, f := range mod.Funcs {
		if f.Name() == "main" {
			return f.LLString()
		}
	}
	return ""
}

func runREPL(in *os.File, out io.Writer) int {
	target, err := codegen.ParseTarget(env.Str("TSLLVM_TARGET"))
	if err != nil {
		fmt.Fprintf(out, "Error: %s\n", err)
		return 1
	}
	s := &session{target: target}

	// Piped input is compiled as one program.
	if !isTerminal(in.Fd()) {
		src, err := io.ReadAll(in)
		if err != nil {
			fmt.Fprintf(out, "Error: %s\n", err)
			return 1
		}
		mod, err := s.submit(string(src))
		if err != nil {
			fmt.Fprintln(out, err)
			return 1
		}
		fmt.Fprint(out, mod.String())
		return 0
	}

	fmt.Fprintf(out, "tsllvm V%s REPL. :ir prints the module, :reset clears, :quit exits.\n", VERSION)

	histPath := env.Str("TSLLVM_HISTORY")
	if histPath == "" {
		home, _ := os.UserHomeDir()
		histPath = filepath.Join(home, historyFile)
	}

	ln := liner.NewLiner()
	defer ln.Close()
	ln.SetCtrlCAborts(true)

	if f, err := os.Open(histPath); err == nil {
		_, _ = ln.ReadHistory(f)
		_ = f.Close()
	}

	for {
		line, err := ln.Prompt(promptMain)
		if errors.Is(err, io.EOF) {
			fmt.Fprintln(out)
			break
		}
		if err != nil {
			// Ctrl+C drops the current line.
			continue
		}
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			continue
		}
		ln.AppendHistory(line)

		if strings.HasPrefix(trimmed, ":") {
			if done := handleReplCommand(s, trimmed, out); done {
				break
			}
			continue
		}

		mod, err := s.submit(line)
		if err != nil {
			fmt.Fprintln(out, err)
			continue
		}
		fmt.Fprintln(out, entryIR(mod))
	}

	if f, err := os.Create(histPath); err == nil {
		_, _ = ln.WriteHistory(f)
		_ = f.Close()
	}
	return 0
}

// handleReplCommand handles :ir, :reset and :quit.
func handleReplCommand(s *session, cmd string, out io.Writer) (exit bool) {
	switch cmd {
	case ":quit", ":q":
		return true
	case ":reset":
		s.reset()
		fmt.Fprintln(out, "session cleared")
	case ":ir":
		if s.module == nil {
			fmt.Fprintln(out, "nothing compiled yet")
		} else {
			fmt.Fprint(out, s.module.String())
		}
	default:
		fmt.Fprintf(out, "unknown command %s\n", cmd)
	}
	return false
}
