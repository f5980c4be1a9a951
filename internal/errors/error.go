package errors

import (
	"bufio"
	stderrors "errors"
	"fmt"
	"os"
)

// Category represents the type of error.
type Category string

const (
	CategoryTree      Category = "tree"
	CategoryReconcile Category = "reconcile"
	CategoryData      Category = "data"
	CategoryConfig    Category = "config"
	CategoryArchive   Category = "archive"
	CategoryCLI       Category = "cli"
)

// Location represents a position in a source document.
type Location struct {
	File   string
	Line   int
	Column int
}

// String returns the location as a formatted string.
func (l *Location) String() string {
	if l == nil {
		return ""
	}
	if l.Column > 0 {
		return fmt.Sprintf("%s:%d:%d", l.File, l.Line, l.Column)
	}
	return fmt.Sprintf("%s:%d", l.File, l.Line)
}

// PromptError is a coded error with an optional source location and a
// suggestion on how to fix it.
type PromptError struct {
	// Code is a unique error identifier (e.g., "VP101").
	Code string

	// Category is the error type.
	Category Category

	// Message is a short description of the error.
	Message string

	// Detail is a longer explanation of the error.
	Detail string

	// Location is the document position where the error occurred.
	Location *Location

	// Context contains the surrounding document lines.
	Context []string

	// Suggestion is a hint on how to fix the error.
	Suggestion string

	// Wrapped is the underlying error, if any.
	Wrapped error
}

// Error implements the error interface.
func (e *PromptError) Error() string {
	msg := e.Message
	if e.Code != "" {
		msg = e.Code + ": " + msg
	}
	if e.Wrapped != nil {
		msg += ": " + e.Wrapped.Error()
	}
	return msg
}

// Unwrap returns the wrapped error for errors.Is/As support.
func (e *PromptError) Unwrap() error {
	return e.Wrapped
}

// WithLocation adds a document location to the error and reads the lines
// around it when the file exists.
func (e *PromptError) WithLocation(file string, line, column int) *PromptError {
	e.Location = &Location{File: file, Line: line, Column: column}
	e.Context = readContextLines(file, line, 5)
	return e
}

// WithSuggestion adds a fix suggestion to the error.
func (e *PromptError) WithSuggestion(s string) *PromptError {
	e.Suggestion = s
	return e
}

// WithDetail replaces the detailed explanation.
func (e *PromptError) WithDetail(d string) *PromptError {
	e.Detail = d
	return e
}

// Wrap wraps another error.
func (e *PromptError) Wrap(err error) *PromptError {
	e.Wrapped = err
	return e
}

// readContextLines reads lines around the specified line number from a file.
func readContextLines(filename string, targetLine, contextSize int) []string {
	file, err := os.Open(filename)
	if err != nil {
		return nil
	}
	defer file.Close()

	var lines []string
	scanner := bufio.NewScanner(file)
	lineNum := 0
	startLine := targetLine - contextSize/2
	endLine := targetLine + contextSize/2

	for scanner.Scan() {
		lineNum++
		if lineNum >= startLine && lineNum <= endLine {
			lines = append(lines, scanner.Text())
		}
		if lineNum > endLine {
			break
		}
	}
	return lines
}

// contextStart returns the line number of the first context line.
func (e *PromptError) contextStart() int {
	start := e.Location.Line - 2
	if start < 1 {
		start = 1
	}
	return start
}

// New creates a PromptError from a registered error code.
func New(code string) *PromptError {
	template, ok := registry[code]
	if !ok {
		return &PromptError{
			Code:    code,
			Message: "Unknown error",
		}
	}
	return &PromptError{
		Code:       code,
		Category:   template.Category,
		Message:    template.Message,
		Detail:     template.Detail,
		Suggestion: template.Suggestion,
	}
}

// Newf creates a new PromptError with a formatted message (no code).
func Newf(category Category, format string, args ...any) *PromptError {
	return &PromptError{
		Category: category,
		Message:  fmt.Sprintf(format, args...),
	}
}

// FromError wraps a standard error in a PromptError with the given code.
// A PromptError anywhere in err's chain is returned as is.
func FromError(err error, code string) *PromptError {
	if err == nil {
		return nil
	}
	var pe *PromptError
	if stderrors.As(err, &pe) {
		return pe
	}
	return New(code).Wrap(err)
}
