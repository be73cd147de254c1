package cmd

import (
	"fmt"
	"os"

	"github.com/fatih/color"
)

// ── Unified output helpers ────────────────────────────────────────────────────
// All commands use these functions to ensure consistent icon usage and
// indentation throughout skillbase's CLI output. Colors are dropped
// automatically when stdout is not a terminal.
//
// Icon semantics:
//   ✓  success / healthy
//   ✗  error / failure          (written to stderr)
//   ⚠  warning
//   ○  skipped / not applicable
//   -  not found / missing
//   ~  neutral info / state change

var (
	iconOK   = color.New(color.FgGreen).Sprint("✓")
	iconErr  = color.New(color.FgRed).Sprint("✗")
	iconWarn = color.New(color.FgYellow).Sprint("⚠")
	iconSkip = color.New(color.Faint).Sprint("○")
	iconMiss = color.New(color.Faint).Sprint("-")
	iconInfo = color.New(color.FgCyan).Sprint("~")

	bold = color.New(color.Bold).SprintFunc()
)

// printSection prints a top-level section header, e.g. "=== Index ===".
func printSection(title string) {
	fmt.Printf("\n=== %s ===\n", bold(title))
}

// printOK prints a success line.
//
//	name = "" → "  ✓  msg"
//	name set  → "  ✓  [name] msg"
func printOK(name, msg string) {
	printLine(os.Stdout, iconOK, name, msg)
}

// printErr prints an error line to stderr.
func printErr(name, msg string) {
	printLine(os.Stderr, iconErr, name, msg)
}

// printWarn prints a warning line.
func printWarn(name, msg string) {
	printLine(os.Stdout, iconWarn, name, msg)
}

// printSkip prints a skipped / not-applicable line.
func printSkip(name, msg string) {
	printLine(os.Stdout, iconSkip, name, msg)
}

// printMiss prints a not-found / missing line.
func printMiss(name, msg string) {
	printLine(os.Stdout, iconMiss, name, msg)
}

// printInfo prints a neutral informational / state-change line.
func printInfo(name, msg string) {
	printLine(os.Stdout, iconInfo, name, msg)
}

func printLine(f *os.File, icon, name, msg string) {
	if name == "" {
		fmt.Fprintf(f, "  %s  %s\n", icon, msg)
	} else {
		fmt.Fprintf(f, "  %s  [%s] %s\n", icon, name, msg)
	}
}
