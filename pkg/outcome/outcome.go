package outcome

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"
)

type (
	// Kind tags how a run step ended. Callers switch on the kind returned by Of
	// instead of asserting concrete error types.
	Kind int

	// Error is a run failure tagged with its Kind.
	//
	// User errors are caused by the transformation itself (bad SQL, missing
	// output tables, explicit abort) and map to exit code 1. Everything else is
	// an application error and maps to exit code 2.
	Error struct {
		Kind    Kind
		Message string
		User    bool

		// Detail carries the kind-specific payload, e.g. the value a script
		// assigned to the abort variable.
		Detail string

		cause error
	}

	// MissingTablesError lists every expected output table that does not exist
	// after the run.
	MissingTablesError struct {
		Tables []string
	}

	kinded interface {
		error
		OutcomeKind() Kind
		UserFacing() bool
	}
)

const (
	// OK means the step completed.
	OK Kind = iota

	// Retryable means the warehouse reported a transient failure.
	Retryable

	// Fatal means the step failed and must not be retried.
	Fatal

	// Timeout means the warehouse killed a job that exceeded its time limit.
	Timeout

	// Aborted means the script asked to stop through the abort variable.
	Aborted
)

// TimeoutMessage is the user-facing text of a Timeout error.
const TimeoutMessage = "Query exceeded the maximum execution time"

func (k Kind) String() string {
	switch k {
	case OK:
		return "ok"
	case Retryable:
		return "retryable"
	case Fatal:
		return "fatal"
	case Timeout:
		return "timeout"
	case Aborted:
		return "aborted"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

func (e *Error) Error() string     { return e.Message }
func (e *Error) Unwrap() error     { return e.cause }
func (e *Error) Cause() error      { return e.cause }
func (e *Error) OutcomeKind() Kind { return e.Kind }
func (e *Error) UserFacing() bool  { return e.User }

func (e *MissingTablesError) Error() string {
	label := "Table"
	if len(e.Tables) > 1 {
		label = "Tables"
	}

	return fmt.Sprintf(
		`%s "%s" specified in output were not created by the transformation.`,
		label,
		strings.Join(e.Tables, `", "`),
	)
}

func (e *MissingTablesError) OutcomeKind() Kind { return Fatal }
func (e *MissingTablesError) UserFacing() bool  { return true }

// UserError returns a Fatal user error wrapping cause. The wrapper inherits
// Timeout and Aborted kinds from cause so a wrapped timeout is still a timeout.
func UserError(message string, cause error) *Error {
	wrapped := &Error{Kind: Fatal, Message: message, User: true, cause: cause}

	var inner *Error
	if errors.As(cause, &inner) && (inner.Kind == Timeout || inner.Kind == Aborted) {
		wrapped.Kind = inner.Kind
		wrapped.Detail = inner.Detail
	}

	return wrapped
}

// Setup returns a Fatal application error for failures before the first
// statement runs (missing environment, authorization or credentials).
func Setup(message string) *Error {
	return &Error{Kind: Fatal, Message: message}
}

// WrapSetup returns a Fatal application error wrapping cause.
func WrapSetup(cause error, message string) *Error {
	return &Error{Kind: Fatal, Message: message + ": " + cause.Error(), cause: cause}
}

// NewTimeout returns the user-facing error for a job that ran out of time.
func NewTimeout(cause error) *Error {
	return &Error{Kind: Timeout, Message: TimeoutMessage, User: true, cause: cause}
}

// NewAborted returns the error raised when a script sets the abort variable.
func NewAborted(value string) *Error {
	return &Error{
		Kind:    Aborted,
		Message: fmt.Sprintf(`Transformation aborted with message "%s"`, value),
		User:    true,
		Detail:  value,
	}
}

// Of returns the Kind of err. A nil error is OK and an untagged error is Fatal.
func Of(err error) Kind {
	if err == nil {
		return OK
	}

	var k kinded
	if errors.As(err, &k) {
		return k.OutcomeKind()
	}

	return Fatal
}

// IsUser reports whether err is a user error.
func IsUser(err error) bool {
	var k kinded
	return errors.As(err, &k) && k.UserFacing()
}

// AbortMessage returns the value the script assigned to the abort variable if
// err is an Aborted error.
func AbortMessage(err error) (string, bool) {
	var e *Error
	if errors.As(err, &e) && e.Kind == Aborted {
		return e.Detail, true
	}

	return "", false
}

// ExitCode maps err to the process exit code: 0 on success, 1 for user errors
// and 2 for application errors.
func ExitCode(err error) int {
	switch {
	case err == nil:
		return 0
	case IsUser(err):
		return 1
	default:
		return 2
	}
}
