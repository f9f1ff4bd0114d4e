package tinkerdeck

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strings"
)

// ErrNoSlides is returned when a document contains no slide containers.
var ErrNoSlides = errors.New("document contains no slides")

// LoadError describes a problem loading a deck document, with context.
type LoadError struct {
	File    string // Source file path
	Line    int    // Line number (1-indexed, 0 if unknown)
	Message string // Error message
	Hint    string // Helpful suggestion
	Err     error  // Underlying cause
}

// Error implements the error interface.
func (e *LoadError) Error() string {
	return e.Format()
}

// Unwrap returns the underlying cause.
func (e *LoadError) Unwrap() error {
	return e.Err
}

// Format returns a nicely formatted error message with context.
func (e *LoadError) Format() string {
	var b strings.Builder

	b.WriteString(fmt.Sprintf("❌ Error in %s\n\n", e.File))

	if e.Line > 0 {
		b.WriteString(fmt.Sprintf("Line %d: %s\n", e.Line, e.Message))
		b.WriteString(e.codeContext())
	} else {
		b.WriteString(e.Message + "\n")
	}

	if e.Err != nil && !strings.Contains(e.Message, e.Err.Error()) {
		b.WriteString(fmt.Sprintf("Cause: %v\n", e.Err))
	}

	if e.Hint != "" {
		b.WriteString(fmt.Sprintf("\n💡 Tip: %s\n", e.Hint))
	}

	return b.String()
}

// codeContext shows two lines around the error line.
func (e *LoadError) codeContext() string {
	if e.File == "" {
		return ""
	}

	file, err := os.Open(e.File)
	if err != nil {
		return ""
	}
	defer file.Close()

	var lines []string
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}

	if e.Line > len(lines) {
		return ""
	}

	var b strings.Builder
	b.WriteString("\n")
	start := max(1, e.Line-2)
	end := min(len(lines), e.Line+2)
	for i := start; i <= end; i++ {
		marker := "  "
		if i == e.Line {
			marker = "> "
		}
		b.WriteString(fmt.Sprintf("%s%2d | %s\n", marker, i, lines[i-1]))
	}
	return b.String()
}

// NewLoadError creates a new LoadError.
func NewLoadError(file, message string) *LoadError {
	return &LoadError{
		File:    file,
		Message: message,
	}
}

// WithLine adds line information to the error.
func (e *LoadError) WithLine(line int) *LoadError {
	e.Line = line
	return e
}

// WithHint adds a helpful hint to the error.
func (e *LoadError) WithHint(hint string) *LoadError {
	e.Hint = hint
	return e
}

// WithCause records the underlying error.
func (e *LoadError) WithCause(err error) *LoadError {
	e.Err = err
	return e
}
