// Package utils provides the SQL text helpers shared by the warehouse layer and
// the transformation runner.
//
// # Identifier Utilities (identifier.go)
//
// BigQuery quotes identifiers with backticks. QuoteIdentifier and QualifiedName
// produce safe references for datasets, tables and columns:
//
//	utils.QuoteIdentifier("my-table")
//	// Result: `my-table`
//
//	utils.QualifiedName("project", "dataset", "table")
//	// Result: `project`.`dataset`.`table`
//
//	// Already quoted input is left alone
//	utils.QuoteIdentifier("`users`")
//	// Result: `users`
//
// QuoteString renders a Go string as a single-quoted BigQuery literal, escaping
// backslashes, quotes and line breaks:
//
//	utils.QuoteString("it's")
//	// Result: 'it\'s'
//
// # Statement Builder (sqlbuilder.go)
//
// SQLBuilder assembles the handful of statements the runner issues on its own
// behalf, e.g. variable declarations:
//
//	utils.NewSQLBuilder().
//		Declare("ABORT_TRANSFORMATION", "STRING").
//		Default(utils.QuoteString("")).
//		String()
//	// Result: DECLARE ABORT_TRANSFORMATION STRING DEFAULT '';
//
// # Comments and Excerpts (comments.go)
//
// StripComments removes `--`, `#` and `/* */` comments while leaving string
// literals and quoted identifiers intact. Excerpt shortens long statements for
// log output.
package utils
