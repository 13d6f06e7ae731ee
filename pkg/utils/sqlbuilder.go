package utils

import "strings"

// SQLBuilder provides a fluent interface for building the small set of
// BigQuery statements the runner issues on its own behalf: variable
// declarations, probes of session variables and information schema lookups.
//
// Example usage:
//
//	sql := NewSQLBuilder().
//		Declare("KBC_RUNID", "STRING").
//		Default(QuoteString("123")).
//		String()
//	// Output: DECLARE KBC_RUNID STRING DEFAULT '123';
type SQLBuilder struct {
	parts []string
}

// NewSQLBuilder creates a new SQLBuilder instance.
func NewSQLBuilder() *SQLBuilder {
	return &SQLBuilder{
		parts: make([]string, 0, 8),
	}
}

// Declare adds a DECLARE clause for a script variable of the given type.
//
// Example:
//
//	builder.Declare("ABORT_TRANSFORMATION", "STRING") // DECLARE ABORT_TRANSFORMATION STRING
func (b *SQLBuilder) Declare(name, typ string) *SQLBuilder {
	b.parts = append(b.parts, "DECLARE", name, typ)
	return b
}

// Default adds a DEFAULT clause. The expression is written verbatim, so string
// values must be quoted with QuoteString first.
func (b *SQLBuilder) Default(expr string) *SQLBuilder {
	b.parts = append(b.parts, "DEFAULT", expr)
	return b
}

// Select adds a SELECT clause with the given expressions.
//
// Example:
//
//	builder.Select("column_name", "data_type") // SELECT column_name, data_type
func (b *SQLBuilder) Select(exprs ...string) *SQLBuilder {
	b.parts = append(b.parts, "SELECT", strings.Join(exprs, ", "))
	return b
}

// From adds a FROM clause. The source is written verbatim; quote identifiers
// with QualifiedName.
func (b *SQLBuilder) From(source string) *SQLBuilder {
	b.parts = append(b.parts, "FROM", source)
	return b
}

// Where adds a WHERE clause.
func (b *SQLBuilder) Where(condition string) *SQLBuilder {
	b.parts = append(b.parts, "WHERE", condition)
	return b
}

// OrderBy adds an ORDER BY clause.
func (b *SQLBuilder) OrderBy(exprs ...string) *SQLBuilder {
	b.parts = append(b.parts, "ORDER BY", strings.Join(exprs, ", "))
	return b
}

// String returns the final SQL statement terminated with a semicolon.
func (b *SQLBuilder) String() string {
	return b.StringWithoutSemicolon() + ";"
}

// StringWithoutSemicolon returns the SQL statement without a trailing semicolon.
func (b *SQLBuilder) StringWithoutSemicolon() string {
	return strings.Join(b.parts, " ")
}
