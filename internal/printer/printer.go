// Package printer renders human-facing console output for the audit CLI.
// Structured logs go through slog; this package is for the lines a person
// running the command reads.
package printer

import (
	"fmt"
	"io"
	"time"

	"github.com/fatih/color"
)

var (
	// Swapped out in tests.
	stdout io.Writer = color.Output
	stderr io.Writer = color.Error

	green  = color.New(color.FgGreen)
	yellow = color.New(color.FgYellow)
	red    = color.New(color.FgRed, color.Bold)
	cyan   = color.New(color.FgCyan)
)

// Platform prints the completion line for one platform.
func Platform(name string, valid, invalid uint32) {
	line := fmt.Sprintf("For platform %s, %d licenses are valid and %d are invalid", name, valid, invalid)
	if invalid > 0 {
		yellow.Fprintln(stdout, line)
		return
	}
	green.Fprintln(stdout, line)
}

// Unavailable prints a warning for a platform whose snapshot was not loaded.
func Unavailable(name string, cause error) {
	if cause == nil {
		yellow.Fprintf(stdout, "⚠️  Platform %s unavailable, counted as zero\n", name)
		return
	}
	yellow.Fprintf(stdout, "⚠️  Platform %s unavailable (%v), counted as zero\n", name, cause)
}

// Step prints a step message with emphasis.
func Step(format string, a ...any) {
	cyan.Fprintf(stdout, "→ %s\n", fmt.Sprintf(format, a...))
}

// Success prints a success message in green with a checkmark prefix.
func Success(format string, a ...any) {
	green.Fprintf(stdout, "✓ %s\n", fmt.Sprintf(format, a...))
}

// Elapsed prints the final run duration.
func Elapsed(d time.Duration) {
	fmt.Fprintf(stdout, "Elapsed time: %s\n", d.Round(time.Millisecond))
}

// Writer returns the destination used for plain output such as tables.
func Writer() io.Writer {
	return stdout
}

// Error prints a formatted error with an explanation and suggestions to
// stderr, and returns an error carrying only the title so cobra does not
// print it again.
func Error(title, explanation string, suggestions []string) error {
	red.Fprintf(stderr, "%s\n\n", title)
	if explanation != "" {
		fmt.Fprintf(stderr, "%s\n", explanation)
	}

	switch len(suggestions) {
	case 0:
	case 1:
		fmt.Fprintf(stderr, "\n%s\n", suggestions[0])
	default:
		fmt.Fprintf(stderr, "\nEither:\n")
		for i, s := range suggestions {
			fmt.Fprintf(stderr, "  %d. %s\n", i+1, s)
		}
	}
	return fmt.Errorf("%s", title)
}
