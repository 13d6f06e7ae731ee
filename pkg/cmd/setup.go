package cmd

import (
	"context"
	"log/slog"
	"math/rand/v2"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/pkg/errors"
	"github.com/pseudomuto/bqtransform/pkg/bigquery"
	"github.com/pseudomuto/bqtransform/pkg/consts"
	"github.com/pseudomuto/bqtransform/pkg/outcome"
)

type (
	// Warehouse is what the run command needs from a BigQuery client: single
	// query jobs and table metadata.
	Warehouse interface {
		bigquery.Runner
		bigquery.TableSource
		Close() error
	}

	// Dialer opens a Warehouse.
	Dialer func(ctx context.Context, opts bigquery.ClientOptions) (Warehouse, error)

	// uniformBackOff waits a uniformly random duration in [min, max) between
	// attempts.
	uniformBackOff struct {
		min, max time.Duration
	}

	setupOptions struct {
		Dialer  Dialer
		Client  bigquery.ClientOptions
		Labels  map[string]string
		BackOff backoff.BackOff
		Logger  *slog.Logger
	}
)

// DialBigQuery is the Dialer used outside of tests.
func DialBigQuery(ctx context.Context, opts bigquery.ClientOptions) (Warehouse, error) {
	client, err := bigquery.NewClient(ctx, opts)
	if err != nil {
		return nil, err
	}

	return client, nil
}

func newSetupBackOff() backoff.BackOff {
	return &uniformBackOff{min: consts.SetupMinDelay, max: consts.SetupMaxDelay}
}

func (b *uniformBackOff) NextBackOff() time.Duration {
	if b.max <= b.min {
		return b.min
	}

	return b.min + rand.N(b.max-b.min)
}

func (b *uniformBackOff) Reset() {}

// openSession dials the warehouse and opens the run's session. Both steps are
// retried together up to consts.SetupRetries times; errors already tagged
// with an outcome are not retried.
func openSession(ctx context.Context, opts setupOptions) (Warehouse, *bigquery.Session, error) {
	var (
		wh      Warehouse
		session *bigquery.Session
	)

	operation := func() error {
		w, err := opts.Dialer(ctx, opts.Client)
		if err != nil {
			return permanentIfTagged(err)
		}

		s, err := bigquery.NewSession(ctx, w, opts.Labels)
		if err != nil {
			_ = w.Close()
			return permanentIfTagged(err)
		}

		wh, session = w, s
		return nil
	}

	notify := func(err error, next time.Duration) {
		opts.Logger.Warn("Transformation setup failed", "error", err, "retry_in", next)
	}

	policy := backoff.WithContext(backoff.WithMaxRetries(opts.BackOff, consts.SetupRetries), ctx)
	if err := backoff.RetryNotify(operation, policy, notify); err != nil {
		if isTagged(err) {
			return nil, nil, err
		}

		return nil, nil, outcome.WrapSetup(err, "Failed to connect to the workspace")
	}

	return wh, session, nil
}

func permanentIfTagged(err error) error {
	if isTagged(err) {
		return backoff.Permanent(err)
	}

	return err
}

func isTagged(err error) bool {
	var tagged *outcome.Error
	return errors.As(err, &tagged)
}
