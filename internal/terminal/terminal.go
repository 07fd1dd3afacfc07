// Copyright (c) 2025 anjanb
// Licensed under the MIT License. See LICENSE file in the project root for details.

// Package terminal measures the terminal for the query renderer and clears
// echoed prompts.
package terminal

import (
	"fmt"
	"os"

	"golang.org/x/term"
)

// DefaultWidth is assumed when stdout is not a terminal.
const DefaultWidth = 80

// Width returns the width of stdout in columns.
func Width() int {
	if w, _, err := term.GetSize(int(os.Stdout.Fd())); err == nil && w > 0 {
		return w
	}
	return DefaultWidth
}

// IsTerminal reports whether stdout is a terminal.
func IsTerminal() bool {
	return term.IsTerminal(int(os.Stdout.Fd()))
}

// Truncate shortens s to at most n runes, marking the cut with an ellipsis.
func Truncate(s string, n int) string {
	r := []rune(s)
	if n < 1 || len(r) <= n {
		return s
	}
	if n == 1 {
		return "…"
	}
	return string(r[:n-1]) + "…"
}

// LinesFor returns how many terminal lines text of length n occupies at
// the given width.
func LinesFor(n, width int) int {
	if width < 1 {
		width = DefaultWidth
	}
	lines := (n + width - 1) / width
	if lines < 1 {
		lines = 1
	}
	return lines
}

// ClearPreviousLines clears a prompt of textLength characters and the
// line the user's Enter moved to.
func ClearPreviousLines(textLength int) {
	linesToClear := LinesFor(textLength, Width()) + 1
	for i := 0; i < linesToClear; i++ {
		fmt.Print("\r\x1b[2K")
		if i < linesToClear-1 {
			fmt.Print("\x1b[1A")
		}
	}
}
