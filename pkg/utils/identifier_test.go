package utils_test

import (
	"testing"

	"github.com/pseudomuto/bqtransform/pkg/utils"
	"github.com/stretchr/testify/require"
)

func TestQuoteIdentifier(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{name: "simple identifier", input: "events", expected: "`events`"},
		{name: "dashes", input: "my-project", expected: "`my-project`"},
		{name: "already quoted", input: "`events`", expected: "`events`"},
		{name: "embedded backtick", input: "we`ird", expected: "`we\\`ird`"},
		{name: "embedded backslash", input: `a\b`, expected: "`a\\\\b`"},
		{name: "empty", input: "", expected: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.expected, utils.QuoteIdentifier(tt.input))
		})
	}
}

func TestQualifiedName(t *testing.T) {
	require.Equal(t, "`proj`.`ds`.`t`", utils.QualifiedName("proj", "ds", "t"))
	require.Equal(t, "`ds`.`t`", utils.QualifiedName("", "ds", "t"))
	require.Equal(t, "`ds`", utils.QualifiedName("ds"))
	require.Empty(t, utils.QualifiedName())
}

func TestIsQuoted(t *testing.T) {
	tests := []struct {
		input    string
		expected bool
	}{
		{input: "`table`", expected: true},
		{input: "table", expected: false},
		{input: "`ds`.`table`", expected: false},
		{input: "", expected: false},
		{input: "`", expected: false},
		{input: "`table", expected: false},
		{input: "`we\\`ird`", expected: true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			require.Equal(t, tt.expected, utils.IsQuoted(tt.input))
		})
	}
}

func TestQuoteString(t *testing.T) {
	require.Equal(t, "'abc'", utils.QuoteString("abc"))
	require.Equal(t, `'it\'s'`, utils.QuoteString("it's"))
	require.Equal(t, `'a\\b'`, utils.QuoteString(`a\b`))
	require.Equal(t, `'line\nbreak'`, utils.QuoteString("line\nbreak"))
	require.Equal(t, "''", utils.QuoteString(""))
}
