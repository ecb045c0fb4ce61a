// Package diagnostics implements the fatal error taxonomy of the engine:
// IR-lowering errors and internal invariant violations. Timeouts and
// missing callees are not represented here — they are absorbed into
// conservative results by the caller, never surfaced as errors.
package diagnostics

import (
	"fmt"

	"github.com/jawa-analysis/heapsum/internal/token"
)

// ErrorCode identifies the class of a DiagnosticError.
type ErrorCode string

const (
	// CodeUnresolvedSymbol: a name the lowering could not bind.
	CodeUnresolvedSymbol ErrorCode = "L001"
	// CodeUnsupportedSyntax: a structured-AST construct lowering does not handle.
	CodeUnsupportedSyntax ErrorCode = "L002"
	// CodeScopeMisuse: break/continue/label resolution violated scope discipline.
	CodeScopeMisuse ErrorCode = "L003"
	// CodeLambdaUnsupported: lambda/method-reference expressions are rejected.
	CodeLambdaUnsupported ErrorCode = "L004"
	// CodeInvariantViolation: an internal invariant (e.g. empty label stack
	// on break) was violated; indicates a lowering bug, not a bad input.
	CodeInvariantViolation ErrorCode = "L999"
)

// DiagnosticError is a fatal, positioned error. Lowering errors abort only
// the offending method; invariant violations halt the enclosing work unit.
type DiagnosticError struct {
	Position token.Position
	Code     ErrorCode
	Message  string
}

func (e *DiagnosticError) Error() string {
	if e.Position.IsZero() {
		return fmt.Sprintf("%s: %s", e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %s: %s", e.Position, e.Code, e.Message)
}

// New constructs a DiagnosticError.
func New(pos token.Position, code ErrorCode, format string, args ...any) *DiagnosticError {
	return &DiagnosticError{Position: pos, Code: code, Message: fmt.Sprintf(format, args...)}
}

// Invariant constructs a CodeInvariantViolation error, used when the
// lowering or analysis engine detects a state it believes cannot occur.
func Invariant(pos token.Position, format string, args ...any) *DiagnosticError {
	return New(pos, CodeInvariantViolation, format, args...)
}
