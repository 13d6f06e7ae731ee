// Package transformation executes SQL transformations against a BigQuery
// session.
//
// A transformation is a list of blocks, each holding codes, each holding an
// ordered script of SQL statements. The Transformation type walks that tree
// strictly in order, one statement at a time, through a single
// bigquery.Connection so that variables declared early stay visible later.
//
// # Statement Handling
//
// For every statement:
//
//   - comments are removed; a statement with nothing left is skipped
//   - a statement whose first token is SELECT is skipped, since its result
//     would be discarded anyway
//   - any other statement is executed and its results URL logged
//   - a failure stops the run with a user error of the form
//     Query "<sql>" in "<code>" failed with error: "<message>"
//   - a statement mentioning ABORT_TRANSFORMATION is followed by a poll of
//     that variable
//
// # Aborting a Run
//
// Before the first block, Run declares the ABORT_TRANSFORMATION session
// variable. A script that assigns it a non-empty value stops the run with an
// outcome.Aborted error:
//
//	SET ABORT_TRANSFORMATION = 'Input table is empty';
//
// The check is a case-insensitive substring match on the statement text. A
// statement that only mentions the name (in a string literal, say) triggers
// an extra poll but never a false abort, because the poll reads the variable's
// actual value.
//
// # Output Tables
//
// After the run, the Reflector reads the definitions of the expected output
// tables and a manifest is written for each. Tables that were never created
// are reported together:
//
//	Tables "a", "b" specified in output were not created by the transformation.
//
// When the run fails, manifests are still written for tables marked
// write_always.
//
// # Example Usage
//
//	t := transformation.New(transformation.Config{
//		Connection: conn,
//		Tables:     client,
//		Manifests:  manifest.NewManager(dataDir),
//		Logger:     logger,
//	})
//
//	results, err := t.Run(ctx, cfg, env)
//	for _, r := range results {
//		fmt.Printf("%s/%s: %s (%d executed, %d skipped)\n",
//			r.Block, r.Code, r.Status, r.StatementsExecuted, r.StatementsSkipped)
//	}
//	if err != nil {
//		return err
//	}
package transformation
