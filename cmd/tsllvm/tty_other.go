//go:build !linux && !darwin

package main

// Without termios the REPL assumes an interactive console.
func isTerminal(fd uintptr) bool {
	return true
}
