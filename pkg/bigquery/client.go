package bigquery

import (
	"context"
	"net/http"

	"cloud.google.com/go/bigquery"
	"github.com/pkg/errors"
	"github.com/pseudomuto/bqtransform/pkg/consts"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
)

type (
	// Client runs jobs against BigQuery and reads table metadata from the
	// workspace dataset.
	//
	// Client performs single attempts only. Wrap it in a Connection to get
	// run labels, job timeouts, session affinity and retries.
	Client struct {
		bq      *bigquery.Client
		dataset string
	}

	// ClientOptions configures a Client.
	ClientOptions struct {
		// ProjectID to bill jobs to. Detected from the credentials when empty.
		ProjectID string

		// Location (region) where jobs run, e.g. "US" or "europe-west1".
		Location string

		// Dataset used as the default dataset for queries and for table
		// lookups.
		Dataset string

		// CredentialsJSON is a service account key.
		CredentialsJSON []byte

		// Endpoint overrides the API endpoint and disables authentication.
		// Used to talk to the BigQuery emulator.
		Endpoint string
	}
)

// NewClient creates a BigQuery client.
//
// Example:
//
//	client, err := bigquery.NewClient(ctx, bigquery.ClientOptions{
//		ProjectID:       "my-project",
//		Location:        "US",
//		Dataset:         "WORKSPACE_123",
//		CredentialsJSON: key,
//	})
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer client.Close()
func NewClient(ctx context.Context, opts ClientOptions) (*Client, error) {
	httpClient, detected, err := newHTTPClient(ctx, opts)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create BigQuery client")
	}

	clientOpts := []option.ClientOption{option.WithHTTPClient(httpClient)}
	if opts.Endpoint != "" {
		clientOpts = append(clientOpts, option.WithEndpoint(opts.Endpoint))
	}

	projectID := opts.ProjectID
	if projectID == "" {
		projectID = detected
	}
	if projectID == "" {
		projectID = bigquery.DetectProjectID
	}

	bq, err := bigquery.NewClient(ctx, projectID, clientOpts...)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create BigQuery client")
	}

	bq.Location = opts.Location

	return &Client{bq: bq, dataset: opts.Dataset}, nil
}

// newHTTPClient returns the HTTP client every API call goes through, bounded by
// consts.RequestTimeout, along with the project named by the credentials.
// Emulator endpoints get an unauthenticated client.
func newHTTPClient(ctx context.Context, opts ClientOptions) (*http.Client, string, error) {
	if opts.Endpoint != "" {
		return &http.Client{
			Timeout:   consts.RequestTimeout,
			Transport: &userAgentTransport{base: http.DefaultTransport},
		}, "", nil
	}

	var (
		creds *google.Credentials
		err   error
	)

	if len(opts.CredentialsJSON) > 0 {
		creds, err = google.CredentialsFromJSON(ctx, opts.CredentialsJSON, bigquery.Scope)
	} else {
		creds, err = google.FindDefaultCredentials(ctx, bigquery.Scope)
	}
	if err != nil {
		return nil, "", errors.Wrap(err, "invalid credentials")
	}

	return &http.Client{
		Timeout: consts.RequestTimeout,
		Transport: &oauth2.Transport{
			Source: creds.TokenSource,
			Base:   &userAgentTransport{base: http.DefaultTransport},
		},
	}, creds.ProjectID, nil
}

type userAgentTransport struct {
	base http.RoundTripper
}

func (t *userAgentTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	req = req.Clone(req.Context())
	req.Header.Set("User-Agent", consts.UserAgent)

	return t.base.RoundTrip(req)
}

// Close releases the underlying connections.
func (c *Client) Close() error {
	return c.bq.Close()
}

// RunQuery runs sql as a single query job, waits for it to finish and returns
// a cursor over its results.
func (c *Client) RunQuery(ctx context.Context, sql string, cfg JobConfig) (*Result, error) {
	q := c.bq.Query(sql)
	q.Labels = cfg.Labels
	q.JobTimeout = cfg.JobTimeout
	q.CreateSession = cfg.CreateSession
	q.Parameters = cfg.Parameters

	if cfg.SessionID != "" {
		q.ConnectionProperties = []*bigquery.ConnectionProperty{
			{Key: "session_id", Value: cfg.SessionID},
		}
	}

	if c.dataset != "" {
		q.DefaultProjectID = c.bq.Project()
		q.DefaultDatasetID = c.dataset
	}

	job, err := q.Run(ctx)
	if err != nil {
		return nil, err
	}

	status, err := job.Wait(ctx)
	if err != nil {
		return nil, err
	}

	if err := status.Err(); err != nil {
		return nil, err
	}

	it, err := job.Read(ctx)
	if err != nil {
		return nil, err
	}

	result := &Result{
		Identity: JobIdentity{
			ProjectID: job.ProjectID(),
			Location:  job.Location(),
			JobID:     job.ID(),
		},
		SessionID: cfg.SessionID,
		Rows:      &rowIterator{it: it},
	}

	if stats := status.Statistics; stats != nil && stats.SessionInfo != nil {
		result.SessionID = stats.SessionInfo.SessionID
	}

	return result, nil
}

// TableDefinition reads the schema and primary key of a table in the default
// dataset. It returns ErrTableNotFound when the table does not exist.
func (c *Client) TableDefinition(ctx context.Context, name string) (*TableDefinition, error) {
	md, err := c.bq.Dataset(c.dataset).Table(name).Metadata(ctx)
	if err != nil {
		var apiErr *googleapi.Error
		if errors.As(err, &apiErr) && apiErr.Code == http.StatusNotFound {
			return nil, ErrTableNotFound
		}

		return nil, errors.Wrapf(err, "failed to read metadata of table %s", name)
	}

	return NewTableDefinition(c.dataset, name, md), nil
}
