package utils

import "strings"

// QuoteIdentifier wraps a BigQuery identifier in backticks, escaping any
// backtick or backslash inside it. Identifiers that are already quoted are
// returned as-is.
//
// Examples:
//   - "events" -> "`events`"
//   - "my-project" -> "`my-project`"
//   - "`events`" -> "`events`"
//   - "we`ird" -> "`we\`ird`"
//   - "" -> ""
func QuoteIdentifier(name string) string {
	if name == "" {
		return ""
	}

	if IsQuoted(name) {
		return name
	}

	escaped := strings.NewReplacer(`\`, `\\`, "`", "\\`").Replace(name)
	return "`" + escaped + "`"
}

// QualifiedName quotes and joins the non-empty parts of a path such as
// project, dataset and table.
//
// Examples:
//   - ("proj", "ds", "t") -> "`proj`.`ds`.`t`"
//   - ("", "ds", "t") -> "`ds`.`t`"
func QualifiedName(parts ...string) string {
	quoted := make([]string, 0, len(parts))
	for _, part := range parts {
		if part == "" {
			continue
		}
		quoted = append(quoted, QuoteIdentifier(part))
	}

	return strings.Join(quoted, ".")
}

// IsQuoted checks if a string is a single identifier wrapped in backticks.
//
// Examples:
//   - "`table`" -> true
//   - "table" -> false
//   - "`ds`.`table`" -> false (path, not a single identifier)
func IsQuoted(s string) bool {
	if len(s) < 2 || s[0] != '`' || s[len(s)-1] != '`' {
		return false
	}

	inner := s[1 : len(s)-1]
	return !strings.Contains(strings.ReplaceAll(inner, "\\`", ""), "`")
}

// QuoteString renders value as a single-quoted BigQuery string literal.
//
// Examples:
//   - "abc" -> "'abc'"
//   - "it's" -> "'it\'s'"
//   - `a\b` -> `'a\\b'`
func QuoteString(value string) string {
	escaped := strings.NewReplacer(`\`, `\\`, `'`, `\'`, "\n", `\n`, "\r", `\r`).Replace(value)
	return "'" + escaped + "'"
}
