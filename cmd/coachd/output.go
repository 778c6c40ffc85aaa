package main

import (
	"fmt"
	"os"
)

// ANSI escapes for terminal feedback. Everything here writes to stderr
// so piped coach responses stay machine-readable.
const (
	ansiReset  = "\033[0m"
	ansiRed    = "\033[31m"
	ansiGreen  = "\033[32m"
	ansiYellow = "\033[33m"
	ansiCyan   = "\033[36m"
	ansiBold   = "\033[1m"
)

func colorize(code, text string) string {
	if noColor {
		return text
	}
	return code + text + ansiReset
}

func feedback(code, glyph, format string, args ...any) {
	fmt.Fprintln(os.Stderr, colorize(code, glyph+" "+fmt.Sprintf(format, args...)))
}

func printSuccess(format string, args ...any) {
	feedback(ansiGreen, "✓", format, args...)
}

func printError(format string, args ...any) {
	feedback(ansiRed, "✗", format, args...)
}

func printWarning(format string, args ...any) {
	feedback(ansiYellow, "⚠", format, args...)
}

func printStep(format string, args ...any) {
	feedback(ansiCyan, "→", format, args...)
}

func printStatus(label, format string, args ...any) {
	fmt.Fprintf(os.Stderr, "  %s %s\n",
		colorize(ansiBold, label+":"), fmt.Sprintf(format, args...))
}
