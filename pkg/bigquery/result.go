package bigquery

import (
	"cloud.google.com/go/bigquery"
	"google.golang.org/api/iterator"
)

type (
	// JobIdentity identifies a finished query job in the BigQuery console.
	JobIdentity struct {
		ProjectID string
		Location  string
		JobID     string
	}

	// Result is the outcome of a successful query job.
	Result struct {
		Identity JobIdentity

		// SessionID is set when the job created or joined a session.
		SessionID string

		// Rows is a single-pass cursor over the job's result set. It is empty
		// for statements that produce no rows.
		Rows Rows
	}

	// Row is a single result row keyed by column name.
	Row map[string]bigquery.Value

	// Rows iterates over query results. Next returns iterator.Done once the
	// result set is exhausted.
	Rows interface {
		Next() (Row, error)
	}

	rowIterator struct {
		it *bigquery.RowIterator
	}

	staticRows struct {
		rows []Row
		pos  int
	}
)

// NewRows returns a Rows cursor over an in-memory result set.
func NewRows(rows ...Row) Rows {
	return &staticRows{rows: rows}
}

func (r *rowIterator) Next() (Row, error) {
	var values map[string]bigquery.Value
	if err := r.it.Next(&values); err != nil {
		return nil, err
	}

	return Row(values), nil
}

func (r *staticRows) Next() (Row, error) {
	if r.pos >= len(r.rows) {
		return nil, iterator.Done
	}

	row := r.rows[r.pos]
	r.pos++
	return row, nil
}
