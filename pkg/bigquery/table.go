package bigquery

import (
	"strconv"
	"strings"

	"cloud.google.com/go/bigquery"
	"github.com/pkg/errors"
)

// ErrTableNotFound is returned by a TableSource for tables that do not exist.
var ErrTableNotFound = errors.New("table not found")

type (
	// TableDefinition describes a table as it exists in the warehouse after a
	// run.
	TableDefinition struct {
		// Schema is the dataset holding the table.
		Schema     string
		Name       string
		Columns    []ColumnDef
		PrimaryKey []string
	}

	// ColumnDef describes a single column.
	//
	// Type is the top-level GoogleSQL type keyword (INT64, NUMERIC, ARRAY, ...)
	// and Length carries its parameters: "10" for STRING(10), "10,2" for
	// NUMERIC(10, 2) and the element or field list for ARRAY and STRUCT.
	ColumnDef struct {
		Name        string
		Type        string
		Length      string
		Nullable    bool
		Default     string
		Description string
	}
)

// ColumnNames returns the column names in table order.
func (t *TableDefinition) ColumnNames() []string {
	names := make([]string, len(t.Columns))
	for i, col := range t.Columns {
		names[i] = col.Name
	}

	return names
}

// FullType renders the column type the way BigQuery prints it, e.g.
// NUMERIC(10,2) or ARRAY<INT64>.
func (c ColumnDef) FullType() string {
	return renderType(c.Type, c.Length)
}

// BaseType maps the column type to one of the portable base types INTEGER,
// NUMERIC, FLOAT, BOOLEAN, DATE, TIMESTAMP or STRING.
func (c ColumnDef) BaseType() string {
	switch strings.ToUpper(c.Type) {
	case "INT64", "INT", "INTEGER", "SMALLINT", "BIGINT", "TINYINT", "BYTEINT":
		return "INTEGER"
	case "NUMERIC", "DECIMAL", "BIGNUMERIC", "BIGDECIMAL":
		return "NUMERIC"
	case "FLOAT64", "FLOAT":
		return "FLOAT"
	case "BOOL", "BOOLEAN":
		return "BOOLEAN"
	case "DATE":
		return "DATE"
	case "TIMESTAMP", "DATETIME":
		return "TIMESTAMP"
	default:
		return "STRING"
	}
}

// NewTableDefinition builds a definition from table metadata returned by the
// tables API.
func NewTableDefinition(dataset, name string, md *bigquery.TableMetadata) *TableDefinition {
	def := &TableDefinition{
		Schema:  dataset,
		Name:    name,
		Columns: make([]ColumnDef, 0, len(md.Schema)),
	}

	for _, field := range md.Schema {
		def.Columns = append(def.Columns, columnFromField(field))
	}

	if md.TableConstraints != nil && md.TableConstraints.PrimaryKey != nil {
		def.PrimaryKey = append(def.PrimaryKey, md.TableConstraints.PrimaryKey.Columns...)
	}

	return def
}

// ParseDataType splits a type as printed by INFORMATION_SCHEMA.COLUMNS into
// its keyword and parameters.
//
// Examples:
//   - "STRING" -> ("STRING", "")
//   - "NUMERIC(10, 2)" -> ("NUMERIC", "10,2")
//   - "ARRAY<STRUCT<a INT64>>" -> ("ARRAY", "STRUCT<a INT64>")
func ParseDataType(dataType string) (string, string) {
	dataType = strings.TrimSpace(dataType)

	i := strings.IndexAny(dataType, "<(")
	if i < 0 {
		return dataType, ""
	}

	typ := strings.TrimSpace(dataType[:i])
	if dataType[i] == '<' {
		end := strings.LastIndexByte(dataType, '>')
		if end < i {
			return dataType, ""
		}

		return typ, strings.TrimSpace(dataType[i+1 : end])
	}

	end := strings.LastIndexByte(dataType, ')')
	if end < i {
		return dataType, ""
	}

	return typ, strings.ReplaceAll(dataType[i+1:end], " ", "")
}

func columnFromField(field *bigquery.FieldSchema) ColumnDef {
	typ, length := fieldType(field)
	if field.Repeated {
		typ, length = "ARRAY", renderType(typ, length)
	}

	return ColumnDef{
		Name:        field.Name,
		Type:        typ,
		Length:      length,
		Nullable:    !field.Required && !field.Repeated,
		Default:     field.DefaultValueExpression,
		Description: field.Description,
	}
}

func fieldType(field *bigquery.FieldSchema) (string, string) {
	switch field.Type {
	case bigquery.RecordFieldType:
		fields := make([]string, 0, len(field.Schema))
		for _, sub := range field.Schema {
			fields = append(fields, sub.Name+" "+columnFromField(sub).FullType())
		}

		return "STRUCT", strings.Join(fields, ", ")
	case bigquery.StringFieldType, bigquery.BytesFieldType:
		if field.MaxLength > 0 {
			return string(field.Type), strconv.FormatInt(field.MaxLength, 10)
		}
	case bigquery.NumericFieldType, bigquery.BigNumericFieldType:
		if field.Precision > 0 {
			return string(field.Type), strconv.FormatInt(field.Precision, 10) + "," + strconv.FormatInt(field.Scale, 10)
		}
	case bigquery.RangeFieldType:
		if field.RangeElementType != nil {
			return "RANGE", string(field.RangeElementType.Type)
		}
	case bigquery.IntegerFieldType:
		return "INT64", ""
	case bigquery.FloatFieldType:
		return "FLOAT64", ""
	case bigquery.BooleanFieldType:
		return "BOOL", ""
	}

	return string(field.Type), ""
}

func renderType(typ, length string) string {
	switch {
	case length == "":
		return typ
	case typ == "ARRAY", typ == "STRUCT", typ == "RANGE":
		return typ + "<" + length + ">"
	default:
		return typ + "(" + length + ")"
	}
}
