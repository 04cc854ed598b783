package cli

import (
	"fmt"

	"github.com/merlin-labs/merlin/core"
)

// ExitError is an error that carries a specific process exit code.
// Cobra's RunE returns this to signal the desired exit code to main.
type ExitError struct {
	Code    int
	Message string
}

func (e *ExitError) Error() string {
	return e.Message
}

// exitError creates a new ExitError with the given code and formatted message.
func exitError(code int, format string, args ...any) *ExitError {
	return &ExitError{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
	}
}

// Exit codes. Zero is success; each failure class gets its own code so
// scripts can branch on the outcome.
const (
	exitSuccess    = 0
	exitValidation = 1
	exitResolution = 2
	exitExecution  = 3
	exitConflict   = 4
	exitRuntime    = 5
	exitTimeout    = 10
)

// exitFor maps a structured error to the matching exit code.
func exitFor(err error) int {
	switch core.CodeOf(err) {
	case core.CodeParse, core.CodeSchema:
		return exitValidation
	case core.CodeResolution:
		return exitResolution
	case core.CodeConflict:
		return exitConflict
	case core.CodeTimeout:
		return exitTimeout
	case core.CodeExecution:
		return exitExecution
	default:
		return exitRuntime
	}
}
