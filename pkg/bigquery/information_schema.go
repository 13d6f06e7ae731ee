package bigquery

import (
	"context"
	"fmt"

	"github.com/pkg/errors"
	"github.com/pseudomuto/bqtransform/pkg/utils"
	"google.golang.org/api/iterator"
)

type (
	// TableSource looks up the definition of a table by name.
	TableSource interface {
		TableDefinition(ctx context.Context, name string) (*TableDefinition, error)
	}

	// Querier runs a statement. Connection implements it.
	Querier interface {
		Execute(ctx context.Context, sql string, opts ...QueryOption) (*Result, error)
	}

	// InformationSchema is a TableSource that reads column definitions from
	// the dataset's INFORMATION_SCHEMA views with ordinary queries. It runs
	// inside the transformation's session, so it also sees tables created
	// there.
	InformationSchema struct {
		conn    Querier
		dataset string
	}
)

// NewInformationSchema creates an InformationSchema source for dataset.
func NewInformationSchema(conn Querier, dataset string) *InformationSchema {
	return &InformationSchema{conn: conn, dataset: dataset}
}

// TableDefinition returns the columns and primary key of a table, or
// ErrTableNotFound when the views list no columns for it.
func (s *InformationSchema) TableDefinition(ctx context.Context, name string) (*TableDefinition, error) {
	columnsSQL := utils.NewSQLBuilder().
		Select("column_name", "data_type", "is_nullable", "column_default").
		From(utils.QualifiedName(s.dataset) + ".INFORMATION_SCHEMA.COLUMNS").
		Where("table_name = @table").
		OrderBy("ordinal_position").
		String()

	result, err := s.conn.Execute(ctx, columnsSQL, WithParam("table", name))
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read columns of table %s", name)
	}

	def := &TableDefinition{Schema: s.dataset, Name: name}

	err = eachRow(result.Rows, func(row Row) {
		typ, length := ParseDataType(stringValue(row["data_type"]))

		col := ColumnDef{
			Name:     stringValue(row["column_name"]),
			Type:     typ,
			Length:   length,
			Nullable: stringValue(row["is_nullable"]) == "YES",
		}

		if dflt := stringValue(row["column_default"]); dflt != "NULL" {
			col.Default = dflt
		}

		def.Columns = append(def.Columns, col)
	})
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read columns of table %s", name)
	}

	if len(def.Columns) == 0 {
		return nil, ErrTableNotFound
	}

	keySQL := utils.NewSQLBuilder().
		Select("column_name").
		From(utils.QualifiedName(s.dataset) + ".INFORMATION_SCHEMA.KEY_COLUMN_USAGE").
		Where("table_name = @table AND ENDS_WITH(constraint_name, '.pk$')").
		OrderBy("ordinal_position").
		String()

	result, err = s.conn.Execute(ctx, keySQL, WithParam("table", name))
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read primary key of table %s", name)
	}

	err = eachRow(result.Rows, func(row Row) {
		def.PrimaryKey = append(def.PrimaryKey, stringValue(row["column_name"]))
	})
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read primary key of table %s", name)
	}

	return def, nil
}

func eachRow(rows Rows, fn func(Row)) error {
	if rows == nil {
		return nil
	}

	for {
		row, err := rows.Next()
		if errors.Is(err, iterator.Done) {
			return nil
		}
		if err != nil {
			return err
		}

		fn(row)
	}
}

func stringValue(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	default:
		return fmt.Sprint(val)
	}
}
