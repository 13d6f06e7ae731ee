// Package outcome defines the tagged result kinds of a transformation run.
//
// Every failure that reaches the top of a run is an error whose Kind can be
// read with Of:
//
//   - OK: no error
//   - Retryable: a transient warehouse failure (only seen inside retry loops)
//   - Fatal: a failure that stops the run
//   - Timeout: the warehouse killed a job that exceeded its time limit
//   - Aborted: the script assigned a message to ABORT_TRANSFORMATION
//
// Callers switch on the kind rather than on concrete types:
//
//	switch outcome.Of(err) {
//	case outcome.OK:
//		// done
//	case outcome.Aborted:
//		msg, _ := outcome.AbortMessage(err)
//		slog.Info("Transformation aborted", "message", msg)
//	default:
//		return err
//	}
//
// ExitCode maps an error to the process exit code (1 for user errors, 2 for
// application errors).
package outcome
