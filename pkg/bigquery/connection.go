package bigquery

import (
	"context"
	"log/slog"
	"maps"
	"time"

	"cloud.google.com/go/bigquery"
	"github.com/cenkalti/backoff/v4"
	"github.com/pkg/errors"
	"github.com/pseudomuto/bqtransform/pkg/consts"
	"github.com/pseudomuto/bqtransform/pkg/outcome"
)

type (
	// Runner executes a single query job. Client is the production
	// implementation; tests substitute an in-memory fake.
	Runner interface {
		RunQuery(ctx context.Context, sql string, cfg JobConfig) (*Result, error)
	}

	// JobConfig carries the per-job settings a Connection attaches to every
	// query.
	JobConfig struct {
		Labels        map[string]string
		JobTimeout    time.Duration
		SessionID     string
		CreateSession bool
		Parameters    []bigquery.QueryParameter
	}

	// QueryOption customizes a single Execute call.
	QueryOption func(*JobConfig)

	// Session is a warehouse session. Statements run in the same session share
	// script variables and temporary tables.
	Session struct {
		ID string
	}

	// Connection runs statements in one session with run labels, an optional
	// job timeout and bounded retries of transient failures.
	//
	// Example usage:
	//
	//	conn := bigquery.NewConnection(bigquery.ConnectionOptions{
	//		Runner:       client,
	//		Session:      session,
	//		RunID:        env.RunID,
	//		QueryTimeout: 2 * time.Hour,
	//		Logger:       logger,
	//	})
	//
	//	result, err := conn.Execute(ctx, "CREATE TABLE out AS SELECT 1 AS id")
	Connection struct {
		runner      Runner
		session     *Session
		labels      map[string]string
		jobTimeout  time.Duration
		retries     int
		newBackOff  func() backoff.BackOff
		shouldRetry func(error) bool
		logger      *slog.Logger
	}

	// ConnectionOptions configures a Connection.
	ConnectionOptions struct {
		Runner  Runner
		Session *Session

		// RunID is attached to every job as the run_id label.
		RunID string

		// BranchID is attached as the branch_id label when set.
		BranchID string

		// QueryTimeout limits each job. Zero means no limit.
		QueryTimeout time.Duration

		// Retries is the retry budget per statement. Defaults to
		// consts.QueryRetries.
		Retries int

		// BackOff returns the delay policy for one statement. Defaults to a
		// jittered exponential backoff capped at 30 seconds.
		BackOff func() backoff.BackOff

		// ShouldRetry decides which failures are retried. Defaults to
		// ShouldRetry.
		ShouldRetry func(error) bool

		Logger *slog.Logger
	}
)

// WithParam binds a named query parameter, referenced in SQL as @name.
func WithParam(name string, value any) QueryOption {
	return func(cfg *JobConfig) {
		cfg.Parameters = append(cfg.Parameters, bigquery.QueryParameter{Name: name, Value: value})
	}
}

// NewSession opens a warehouse session by running a trivial job that asks for
// one.
func NewSession(ctx context.Context, runner Runner, labels map[string]string) (*Session, error) {
	result, err := runner.RunQuery(ctx, "SELECT 1", JobConfig{Labels: labels, CreateSession: true})
	if err != nil {
		return nil, errors.Wrap(err, "failed to create session")
	}

	if result.SessionID == "" {
		return nil, errors.New("failed to create session: no session id returned")
	}

	return &Session{ID: result.SessionID}, nil
}

// RunLabels returns the labels attached to every job of a run.
func RunLabels(runID, branchID string) map[string]string {
	labels := map[string]string{"run_id": runID}
	if branchID != "" {
		labels["branch_id"] = branchID
	}

	return labels
}

// NewConnection creates a Connection.
func NewConnection(opts ConnectionOptions) *Connection {
	conn := &Connection{
		runner:      opts.Runner,
		session:     opts.Session,
		labels:      RunLabels(opts.RunID, opts.BranchID),
		jobTimeout:  opts.QueryTimeout,
		retries:     opts.Retries,
		newBackOff:  opts.BackOff,
		shouldRetry: opts.ShouldRetry,
		logger:      opts.Logger,
	}

	if conn.retries <= 0 {
		conn.retries = consts.QueryRetries
	}

	if conn.newBackOff == nil {
		conn.newBackOff = defaultBackOff
	}

	if conn.shouldRetry == nil {
		conn.shouldRetry = ShouldRetry
	}

	if conn.logger == nil {
		conn.logger = slog.Default()
	}

	return conn
}

// Execute runs sql and returns its result.
//
// Transient failures are retried until the retry budget is spent; after that,
// or for any failure the retry policy rejects, the warehouse error is returned
// unchanged. A job killed for exceeding its timeout is reported as an
// outcome.Timeout error and never retried.
func (c *Connection) Execute(ctx context.Context, sql string, opts ...QueryOption) (*Result, error) {
	cfg := JobConfig{
		Labels:     maps.Clone(c.labels),
		JobTimeout: c.jobTimeout,
	}

	if c.session != nil {
		cfg.SessionID = c.session.ID
	}

	for _, opt := range opts {
		opt(&cfg)
	}

	var (
		result  *Result
		attempt int
	)

	operation := func() error {
		attempt++

		res, err := c.runner.RunQuery(ctx, sql, cfg)
		if err == nil {
			result = res
			return nil
		}

		switch Classify(err, c.shouldRetry) {
		case outcome.Timeout:
			return backoff.Permanent(outcome.NewTimeout(err))
		case outcome.Retryable:
			return err
		default:
			return backoff.Permanent(err)
		}
	}

	notify := func(err error, wait time.Duration) {
		c.logger.Warn("Retrying query",
			"attempt", attempt,
			"max_retries", c.retries,
			"wait", wait,
			"error", err)
	}

	policy := backoff.WithContext(backoff.WithMaxRetries(c.newBackOff(), uint64(c.retries)), ctx)
	if err := backoff.RetryNotify(operation, policy, notify); err != nil {
		return nil, err
	}

	return result, nil
}

func defaultBackOff() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = time.Second
	b.Multiplier = 1.5
	b.RandomizationFactor = 0.5
	b.MaxInterval = 30 * time.Second
	b.MaxElapsedTime = 0

	return b
}
