package transformation

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/pkg/errors"
	"github.com/pseudomuto/bqtransform/pkg/bigquery"
	"github.com/pseudomuto/bqtransform/pkg/consts"
	"github.com/pseudomuto/bqtransform/pkg/outcome"
	"github.com/pseudomuto/bqtransform/pkg/utils"
	"google.golang.org/api/iterator"
)

// AbortSignal lets a script stop the run by assigning a non-empty string to
// the ABORT_TRANSFORMATION session variable:
//
//	IF (SELECT COUNT(*) FROM input) = 0 THEN
//		SET ABORT_TRANSFORMATION = 'No input rows';
//	END IF;
type AbortSignal struct {
	conn   bigquery.Querier
	logger *slog.Logger
}

// NewAbortSignal creates an AbortSignal bound to a session connection.
func NewAbortSignal(conn bigquery.Querier, logger *slog.Logger) *AbortSignal {
	return &AbortSignal{conn: conn, logger: logger}
}

// Declare creates the abort variable with an empty default. It must run in
// the session before any user statement.
func (a *AbortSignal) Declare(ctx context.Context) error {
	sql := utils.NewSQLBuilder().
		Declare(consts.AbortVariable, "STRING").
		Default(utils.QuoteString("")).
		String()

	if _, err := a.conn.Execute(ctx, sql); err != nil {
		return errors.Wrap(err, "failed to declare abort variable")
	}

	return nil
}

// Poll reads the abort variable and returns an outcome.Aborted error carrying
// its value when it is not empty.
func (a *AbortSignal) Poll(ctx context.Context) error {
	a.logger.Info("Checking user termination")

	result, err := a.conn.Execute(ctx, utils.NewSQLBuilder().Select(consts.AbortVariable).String())
	if err != nil {
		return errors.Wrap(err, "failed to read abort variable")
	}

	if result.Rows == nil {
		return errors.New("failed to read abort variable: no rows returned")
	}

	row, err := result.Rows.Next()
	if errors.Is(err, iterator.Done) {
		return errors.New("failed to read abort variable: no rows returned")
	}
	if err != nil {
		return errors.Wrap(err, "failed to read abort variable")
	}

	if value := abortValue(row); value != "" {
		return outcome.NewAborted(value)
	}

	return nil
}

// ContainsAbortKeyword reports whether sql mentions the abort variable in any
// letter case.
func ContainsAbortKeyword(sql string) bool {
	return strings.Contains(strings.ToUpper(sql), consts.AbortVariable)
}

func abortValue(row bigquery.Row) string {
	v, ok := row[consts.AbortVariable]
	if !ok && len(row) == 1 {
		for _, only := range row {
			v = only
		}
	}

	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	default:
		return fmt.Sprint(val)
	}
}
