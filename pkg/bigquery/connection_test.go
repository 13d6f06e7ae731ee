package bigquery_test

import (
	"context"
	"net/http"
	"testing"
	"time"

	bq "cloud.google.com/go/bigquery"
	"github.com/cenkalti/backoff/v4"
	"github.com/pkg/errors"
	"github.com/pseudomuto/bqtransform/pkg/bigquery"
	"github.com/pseudomuto/bqtransform/pkg/outcome"
	"github.com/stretchr/testify/require"
)

type mockRunner struct {
	runFunc func(context.Context, string, bigquery.JobConfig) (*bigquery.Result, error)
	queries []string
	configs []bigquery.JobConfig
}

func (m *mockRunner) RunQuery(ctx context.Context, sql string, cfg bigquery.JobConfig) (*bigquery.Result, error) {
	m.queries = append(m.queries, sql)
	m.configs = append(m.configs, cfg)
	if m.runFunc != nil {
		return m.runFunc(ctx, sql, cfg)
	}

	return &bigquery.Result{Rows: bigquery.NewRows()}, nil
}

func failTimes(n int, err error) func(context.Context, string, bigquery.JobConfig) (*bigquery.Result, error) {
	calls := 0
	return func(context.Context, string, bigquery.JobConfig) (*bigquery.Result, error) {
		calls++
		if calls <= n {
			return nil, err
		}

		return &bigquery.Result{Identity: bigquery.JobIdentity{JobID: "job_1"}, Rows: bigquery.NewRows()}, nil
	}
}

func newConnection(runner bigquery.Runner, opts bigquery.ConnectionOptions) *bigquery.Connection {
	opts.Runner = runner
	if opts.RunID == "" {
		opts.RunID = "123"
	}
	opts.BackOff = func() backoff.BackOff { return &backoff.ZeroBackOff{} }

	return bigquery.NewConnection(opts)
}

func TestConnection_Execute(t *testing.T) {
	ctx := context.Background()

	t.Run("attaches labels, timeout and session", func(t *testing.T) {
		runner := &mockRunner{}
		conn := newConnection(runner, bigquery.ConnectionOptions{
			Session:      &bigquery.Session{ID: "sess_1"},
			BranchID:     "456",
			QueryTimeout: 7200 * time.Second,
		})

		_, err := conn.Execute(ctx, "SELECT 1")
		require.NoError(t, err)
		require.Len(t, runner.configs, 1)

		cfg := runner.configs[0]
		require.Equal(t, map[string]string{"run_id": "123", "branch_id": "456"}, cfg.Labels)
		require.Equal(t, 2*time.Hour, cfg.JobTimeout)
		require.Equal(t, "sess_1", cfg.SessionID)
		require.False(t, cfg.CreateSession)
	})

	t.Run("omits branch label and timeout when unset", func(t *testing.T) {
		runner := &mockRunner{}
		conn := newConnection(runner, bigquery.ConnectionOptions{})

		_, err := conn.Execute(ctx, "SELECT 1")
		require.NoError(t, err)
		require.Equal(t, map[string]string{"run_id": "123"}, runner.configs[0].Labels)
		require.Zero(t, runner.configs[0].JobTimeout)
		require.Empty(t, runner.configs[0].SessionID)
	})

	t.Run("binds query parameters", func(t *testing.T) {
		runner := &mockRunner{}
		conn := newConnection(runner, bigquery.ConnectionOptions{})

		_, err := conn.Execute(ctx, "SELECT @table", bigquery.WithParam("table", "out"))
		require.NoError(t, err)
		require.Equal(t, []bq.QueryParameter{{Name: "table", Value: "out"}}, runner.configs[0].Parameters)
	})

	t.Run("retries transient failures", func(t *testing.T) {
		runner := &mockRunner{runFunc: failTimes(2, &bq.Error{Reason: "backendError", Message: "boom"})}
		conn := newConnection(runner, bigquery.ConnectionOptions{})

		result, err := conn.Execute(ctx, "CREATE TABLE t AS SELECT 1 AS id")
		require.NoError(t, err)
		require.Equal(t, "job_1", result.Identity.JobID)
		require.Len(t, runner.queries, 3)
	})

	t.Run("returns the warehouse error when the budget is spent", func(t *testing.T) {
		transient := &bq.Error{Reason: "rateLimitExceeded", Message: "Exceeded rate limits"}
		runner := &mockRunner{runFunc: failTimes(100, transient)}
		conn := newConnection(runner, bigquery.ConnectionOptions{Retries: 3})

		_, err := conn.Execute(ctx, "SELECT 1")
		require.ErrorIs(t, err, transient)
		require.Len(t, runner.queries, 4)
	})

	t.Run("does not retry fatal failures", func(t *testing.T) {
		fatal := &bq.Error{Reason: "invalidQuery", Message: "Syntax error: Unexpected keyword"}
		runner := &mockRunner{runFunc: failTimes(100, fatal)}
		conn := newConnection(runner, bigquery.ConnectionOptions{})

		_, err := conn.Execute(ctx, "SELEC 1")
		require.ErrorIs(t, err, fatal)
		require.Len(t, runner.queries, 1)
	})

	t.Run("translates job timeouts", func(t *testing.T) {
		runner := &mockRunner{runFunc: failTimes(100, errors.New("Job timed out after 1 sec"))}
		conn := newConnection(runner, bigquery.ConnectionOptions{})

		_, err := conn.Execute(ctx, "SELECT 1")
		require.Error(t, err)
		require.Equal(t, outcome.Timeout, outcome.Of(err))
		require.EqualError(t, err, "Query exceeded the maximum execution time")
		require.Len(t, runner.queries, 1)
	})

	t.Run("uses the injected retry policy", func(t *testing.T) {
		runner := &mockRunner{runFunc: failTimes(1, errors.New("anything"))}
		conn := newConnection(runner, bigquery.ConnectionOptions{
			ShouldRetry: func(error) bool { return true },
		})

		_, err := conn.Execute(ctx, "SELECT 1")
		require.NoError(t, err)
		require.Len(t, runner.queries, 2)
	})

	t.Run("never retries timeouts", func(t *testing.T) {
		runner := &mockRunner{runFunc: failTimes(100, errors.New("Job timed out after 60 sec"))}
		conn := newConnection(runner, bigquery.ConnectionOptions{
			ShouldRetry: func(error) bool { return true },
		})

		_, err := conn.Execute(ctx, "SELECT 1")
		require.Equal(t, outcome.Timeout, outcome.Of(err))
		require.Len(t, runner.queries, 1)
	})

	t.Run("stops when the context is cancelled", func(t *testing.T) {
		cctx, cancel := context.WithCancel(ctx)
		cancel()

		runner := &mockRunner{runFunc: failTimes(100, &bq.Error{Reason: "backendError"})}
		conn := newConnection(runner, bigquery.ConnectionOptions{})

		_, err := conn.Execute(cctx, "SELECT 1")
		require.ErrorIs(t, err, context.Canceled)
		require.Len(t, runner.queries, 1)
	})
}

func TestNewSession(t *testing.T) {
	ctx := context.Background()

	t.Run("captures the session id", func(t *testing.T) {
		runner := &mockRunner{
			runFunc: func(_ context.Context, _ string, cfg bigquery.JobConfig) (*bigquery.Result, error) {
				require.True(t, cfg.CreateSession)
				return &bigquery.Result{SessionID: "sess_42", Rows: bigquery.NewRows()}, nil
			},
		}

		session, err := bigquery.NewSession(ctx, runner, bigquery.RunLabels("123", ""))
		require.NoError(t, err)
		require.Equal(t, "sess_42", session.ID)
		require.Equal(t, []string{"SELECT 1"}, runner.queries)
		require.Equal(t, map[string]string{"run_id": "123"}, runner.configs[0].Labels)
	})

	t.Run("fails without a session id", func(t *testing.T) {
		_, err := bigquery.NewSession(ctx, &mockRunner{}, nil)
		require.ErrorContains(t, err, "no session id returned")
	})

	t.Run("wraps runner errors", func(t *testing.T) {
		runner := &mockRunner{runFunc: failTimes(1, &googleapiForbidden{})}
		_, err := bigquery.NewSession(ctx, runner, nil)
		require.ErrorContains(t, err, "failed to create session")
	})
}

type googleapiForbidden struct{}

func (*googleapiForbidden) Error() string   { return "forbidden" }
func (*googleapiForbidden) StatusCode() int { return http.StatusForbidden }
