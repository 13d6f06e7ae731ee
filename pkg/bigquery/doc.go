// Package bigquery is the warehouse layer of the transformation runner.
//
// It wraps cloud.google.com/go/bigquery with the behavior every statement of a
// run needs: run labels, a per-job timeout, a shared session and bounded
// retries of transient failures.
//
// # Retry Classification
//
// ShouldRetry decides whether a failed call is worth repeating. It understands
// the error shapes the Google client libraries produce (*googleapi.Error,
// *oauth2.RetrieveError and *bigquery.Error) and retries only an explicit
// allow-list:
//
//   - HTTP status 429, 500 or 503
//   - OAuth "invalid_grant" responses
//   - error reasons rateLimitExceeded, userRateLimitExceeded, backendError
//     and jobRateLimitExceeded
//   - messages naming the bigquery.jobs.create permission
//
// Classify maps an error to its outcome.Kind; Connection retries only the
// Retryable kind.
//
// # Connections and Sessions
//
// Client runs one attempt of one job. Connection adds the run semantics on top
// of any Runner:
//
//	client, err := bigquery.NewClient(ctx, bigquery.ClientOptions{
//		ProjectID:       "my-project",
//		Dataset:         "WORKSPACE_123",
//		CredentialsJSON: key,
//	})
//	if err != nil {
//		return err
//	}
//
//	session, err := bigquery.NewSession(ctx, client, bigquery.RunLabels(runID, ""))
//	if err != nil {
//		return err
//	}
//
//	conn := bigquery.NewConnection(bigquery.ConnectionOptions{
//		Runner:  client,
//		Session: session,
//		RunID:   runID,
//	})
//
//	if _, err := conn.Execute(ctx, "DECLARE x STRING DEFAULT 'a'"); err != nil {
//		return err
//	}
//
// Every statement executed through the same Connection joins the same session,
// so variables declared by one statement are visible to the next.
//
// # Table Definitions
//
// A TableSource returns the columns and primary key of a table after a run.
// Client reads them from the tables API; InformationSchema queries the
// dataset's INFORMATION_SCHEMA views through a Connection. Both return
// ErrTableNotFound for tables that do not exist.
package bigquery
