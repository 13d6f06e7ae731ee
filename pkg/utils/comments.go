package utils

import (
	"strings"

	"github.com/alecthomas/participle/v2/lexer"
)

// sqlLexer splits BigQuery SQL into just enough token kinds to find comments
// without being fooled by comment markers inside string literals or quoted
// identifiers. The trailing Char rule makes the lexer total: any input
// tokenizes, including unbalanced quotes.
var sqlLexer = lexer.MustSimple([]lexer.SimpleRule{
	{Name: "BlockComment", Pattern: `/\*[\s\S]*?\*/`},
	{Name: "LineComment", Pattern: `(?:--|#)[^\n]*`},
	{Name: "TripleString", Pattern: `(?i:[rb]{0,2})(?:'''[\s\S]*?'''|"""[\s\S]*?""")`},
	{Name: "String", Pattern: `(?i:[rb]{0,2})(?:'(?:\\.|[^'\\\n])*'|"(?:\\.|[^"\\\n])*")`},
	{Name: "QuotedIdent", Pattern: "`(?:\\\\.|[^`\\\\])*`"},
	{Name: "Word", Pattern: `[A-Za-z0-9_]+`},
	{Name: "Whitespace", Pattern: `\s+`},
	{Name: "Char", Pattern: `[\s\S]`},
})

var (
	blockCommentType = sqlLexer.Symbols()["BlockComment"]
	lineCommentType  = sqlLexer.Symbols()["LineComment"]
)

// StripComments removes `--`, `#` and `/* */` comments from a SQL script and
// trims the result. Comment markers inside string literals and quoted
// identifiers are preserved. A block comment is replaced by a single space so
// the tokens around it stay separated.
//
// Examples:
//   - "-- comment\nSELECT 1" -> "SELECT 1"
//   - "SELECT/* x */1" -> "SELECT 1"
//   - "SELECT '--not a comment'" -> "SELECT '--not a comment'"
func StripComments(sql string) string {
	lex, err := sqlLexer.LexString("", sql)
	if err != nil {
		return strings.TrimSpace(sql)
	}

	tokens, err := lexer.ConsumeAll(lex)
	if err != nil {
		return strings.TrimSpace(sql)
	}

	var buf strings.Builder
	buf.Grow(len(sql))

	for _, tok := range tokens {
		switch {
		case tok.EOF():
			continue
		case tok.Type == lineCommentType:
			continue
		case tok.Type == blockCommentType:
			buf.WriteByte(' ')
		default:
			buf.WriteString(tok.Value)
		}
	}

	return strings.TrimSpace(buf.String())
}

// Excerpt shortens a statement for log lines and error messages. Statements
// longer than 1000 characters are cut to their first and last 500 characters
// joined by an ellipsis line.
func Excerpt(sql string) string {
	const (
		limit = 1000
		half  = 500
	)

	runes := []rune(sql)
	if len(runes) <= limit {
		return sql
	}

	return string(runes[:half]) + "\n...\n" + string(runes[len(runes)-half:])
}
