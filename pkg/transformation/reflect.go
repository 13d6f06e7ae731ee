package transformation

import (
	"context"

	"github.com/pkg/errors"
	"github.com/pseudomuto/bqtransform/pkg/bigquery"
	"github.com/pseudomuto/bqtransform/pkg/config"
	"github.com/pseudomuto/bqtransform/pkg/outcome"
)

type (
	// Reflector reads the definitions of the expected output tables after a
	// run.
	Reflector struct {
		source bigquery.TableSource
	}

	// Output pairs an expected output table with its definition in the
	// warehouse.
	Output struct {
		Table      config.OutputTable
		Definition *bigquery.TableDefinition
	}
)

// NewReflector creates a Reflector reading from source.
func NewReflector(source bigquery.TableSource) *Reflector {
	return &Reflector{source: source}
}

// Reflect returns the definitions of tables, in order.
//
// When runFailed is set only WriteAlways tables are considered. Every table
// that does not exist is collected and reported together in one
// *outcome.MissingTablesError; any other lookup failure is returned as is.
func (r *Reflector) Reflect(ctx context.Context, tables []config.OutputTable, runFailed bool) ([]Output, error) {
	var (
		outputs []Output
		missing []string
	)

	for _, table := range tables {
		if runFailed && !table.WriteAlways {
			continue
		}

		def, err := r.source.TableDefinition(ctx, table.Source)
		if errors.Is(err, bigquery.ErrTableNotFound) {
			missing = append(missing, table.Source)
			continue
		}
		if err != nil {
			return nil, err
		}

		outputs = append(outputs, Output{Table: table, Definition: def})
	}

	if len(missing) > 0 {
		return nil, &outcome.MissingTablesError{Tables: missing}
	}

	return outputs, nil
}
