package outcome_test

import (
	"testing"

	"github.com/pkg/errors"
	. "github.com/pseudomuto/bqtransform/pkg/outcome"
	"github.com/stretchr/testify/require"
)

func TestOf(t *testing.T) {
	tests := []struct {
		name string
		err  error
		kind Kind
	}{
		{name: "nil", err: nil, kind: OK},
		{name: "plain error", err: errors.New("boom"), kind: Fatal},
		{name: "timeout", err: NewTimeout(nil), kind: Timeout},
		{name: "aborted", err: NewAborted("stop"), kind: Aborted},
		{name: "wrapped aborted", err: errors.Wrap(NewAborted("stop"), "run failed"), kind: Aborted},
		{name: "missing tables", err: &MissingTablesError{Tables: []string{"a"}}, kind: Fatal},
		{name: "setup", err: Setup("Missing KBC_RUNID environment variable"), kind: Fatal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.kind, Of(tt.err))
		})
	}
}

func TestUserError_InheritsKind(t *testing.T) {
	err := UserError("Query failed", NewTimeout(errors.New("Job timed out after 1 sec")))
	require.Equal(t, Timeout, Of(err))
	require.True(t, IsUser(err))

	err = UserError("Query failed", errors.New("syntax error"))
	require.Equal(t, Fatal, Of(err))
	require.Equal(t, "Query failed", err.Error())
}

func TestNewAborted(t *testing.T) {
	err := NewAborted("stop now")
	require.Equal(t, `Transformation aborted with message "stop now"`, err.Error())

	msg, ok := AbortMessage(errors.Wrap(err, "context"))
	require.True(t, ok)
	require.Equal(t, "stop now", msg)

	_, ok = AbortMessage(errors.New("other"))
	require.False(t, ok)
}

func TestMissingTablesError(t *testing.T) {
	t.Run("singular", func(t *testing.T) {
		err := &MissingTablesError{Tables: []string{"b"}}
		require.Equal(t, `Table "b" specified in output were not created by the transformation.`, err.Error())
	})

	t.Run("plural", func(t *testing.T) {
		err := &MissingTablesError{Tables: []string{"b", "c"}}
		require.Equal(t, `Tables "b", "c" specified in output were not created by the transformation.`, err.Error())
	})
}

func TestExitCode(t *testing.T) {
	require.Equal(t, 0, ExitCode(nil))
	require.Equal(t, 1, ExitCode(NewAborted("x")))
	require.Equal(t, 1, ExitCode(&MissingTablesError{Tables: []string{"a"}}))
	require.Equal(t, 2, ExitCode(Setup("Missing authorization for workspace")))
	require.Equal(t, 2, ExitCode(errors.New("unexpected")))
}

func TestKind_String(t *testing.T) {
	require.Equal(t, "retryable", Retryable.String())
	require.Equal(t, "kind(42)", Kind(42).String())
}
