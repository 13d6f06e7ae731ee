package manifest

import (
	"os"
	"path/filepath"
	"slices"

	"github.com/goccy/go-json"
	"github.com/pkg/errors"
	"github.com/pseudomuto/bqtransform/pkg/bigquery"
	"github.com/pseudomuto/bqtransform/pkg/config"
	"github.com/pseudomuto/bqtransform/pkg/consts"
)

// Metadata keys written for tables and columns.
const (
	KeyName             = "KBC.name"
	KeyDataTypeType     = "KBC.datatype.type"
	KeyDataTypeNullable = "KBC.datatype.nullable"
	KeyDataTypeBase     = "KBC.datatype.basetype"
	KeyDataTypeLength   = "KBC.datatype.length"
	KeyDataTypeDefault  = "KBC.datatype.default"
)

type (
	// Manager writes table manifests into the out/tables directory of a data
	// directory.
	Manager struct {
		tablesDir string
	}

	// Metadata is a single key/value pair attached to a table or column.
	Metadata struct {
		Key   string `json:"key"`
		Value any    `json:"value"`
	}

	// OutTableManifestOptions describes one output table.
	OutTableManifestOptions struct {
		Destination string
		PrimaryKey  []string
		Metadata    []Metadata

		// Columns and ColumnMetadata are written in the legacy format.
		Columns        []string
		ColumnMetadata map[string][]Metadata

		// Schema replaces Columns and ColumnMetadata in the typed format.
		Schema []SchemaColumn

		// Legacy selects the column list format.
		Legacy bool
	}

	// SchemaColumn is a column in the typed manifest format.
	SchemaColumn struct {
		Name        string   `json:"name"`
		DataType    DataType `json:"data_type"`
		Nullable    bool     `json:"nullable"`
		PrimaryKey  bool     `json:"primary_key"`
		Description string   `json:"description,omitempty"`
	}

	// DataType carries both the portable base type and the native BigQuery
	// type of a column.
	DataType struct {
		Base     TypeSpec  `json:"base"`
		BigQuery *TypeSpec `json:"bigquery,omitempty"`
	}

	// TypeSpec is a type with its optional length and default.
	TypeSpec struct {
		Type    string `json:"type"`
		Length  string `json:"length,omitempty"`
		Default string `json:"default,omitempty"`
	}

	legacyManifest struct {
		Destination    string                `json:"destination,omitempty"`
		PrimaryKey     []string              `json:"primary_key,omitempty"`
		Columns        []string              `json:"columns"`
		ColumnMetadata map[string][]Metadata `json:"column_metadata"`
		Metadata       []Metadata            `json:"metadata"`
	}

	schemaManifest struct {
		Destination   string            `json:"destination,omitempty"`
		Schema        []SchemaColumn    `json:"schema"`
		TableMetadata map[string]string `json:"table_metadata"`
	}
)

// NewManager returns a Manager for dataDir.
func NewManager(dataDir string) *Manager {
	return &Manager{tablesDir: filepath.Join(dataDir, "out", "tables")}
}

// ManifestPath returns the path of the manifest for a table.
func (m *Manager) ManifestPath(name string) string {
	return filepath.Join(m.tablesDir, name+".manifest")
}

// WriteTableManifest writes the manifest of table name, replacing any
// existing one.
func (m *Manager) WriteTableManifest(name string, opts OutTableManifestOptions) error {
	data, err := Encode(opts)
	if err != nil {
		return errors.Wrapf(err, "failed to encode manifest for table %s", name)
	}

	if err := os.MkdirAll(m.tablesDir, consts.ModeDir); err != nil {
		return errors.Wrapf(err, "failed to create directory: %s", m.tablesDir)
	}

	path := m.ManifestPath(name)
	if err := os.WriteFile(path, data, consts.ModeFile); err != nil {
		return errors.Wrapf(err, "failed to write manifest: %s", path)
	}

	return nil
}

// Encode renders a manifest as indented JSON.
func Encode(opts OutTableManifestOptions) ([]byte, error) {
	var doc any
	if opts.Legacy {
		doc = legacyManifest{
			Destination:    opts.Destination,
			PrimaryKey:     opts.PrimaryKey,
			Columns:        opts.Columns,
			ColumnMetadata: opts.ColumnMetadata,
			Metadata:       opts.Metadata,
		}
	} else {
		tableMetadata := make(map[string]string, len(opts.Metadata))
		for _, md := range opts.Metadata {
			if s, ok := md.Value.(string); ok {
				tableMetadata[md.Key] = s
			}
		}

		doc = schemaManifest{
			Destination:   opts.Destination,
			Schema:        opts.Schema,
			TableMetadata: tableMetadata,
		}
	}

	data, err := json.MarshalIndent(doc, "", "    ")
	if err != nil {
		return nil, err
	}

	return append(data, '\n'), nil
}

// NewTableOptions builds the manifest of an output table from its definition
// in the warehouse. A primary key declared on the output table takes
// precedence over the one read from the warehouse.
func NewTableOptions(def *bigquery.TableDefinition, table config.OutputTable, legacy bool) OutTableManifestOptions {
	primaryKey := table.PrimaryKey
	if len(primaryKey) == 0 {
		primaryKey = def.PrimaryKey
	}

	opts := OutTableManifestOptions{
		Destination: table.Destination,
		PrimaryKey:  primaryKey,
		Metadata:    []Metadata{{Key: KeyName, Value: def.Name}},
		Legacy:      legacy,
	}

	if legacy {
		opts.Columns = def.ColumnNames()
		opts.ColumnMetadata = make(map[string][]Metadata, len(def.Columns))
		for _, col := range def.Columns {
			opts.ColumnMetadata[col.Name] = ColumnMetadata(col)
		}

		return opts
	}

	opts.Schema = make([]SchemaColumn, 0, len(def.Columns))
	for _, col := range def.Columns {
		opts.Schema = append(opts.Schema, SchemaColumn{
			Name: col.Name,
			DataType: DataType{
				Base: TypeSpec{Type: col.BaseType()},
				BigQuery: &TypeSpec{
					Type:    col.Type,
					Length:  col.Length,
					Default: col.Default,
				},
			},
			Nullable:    col.Nullable,
			PrimaryKey:  slices.Contains(primaryKey, col.Name),
			Description: col.Description,
		})
	}

	return opts
}

// ColumnMetadata returns the datatype metadata of a column.
func ColumnMetadata(col bigquery.ColumnDef) []Metadata {
	md := []Metadata{
		{Key: KeyDataTypeType, Value: col.Type},
		{Key: KeyDataTypeNullable, Value: col.Nullable},
		{Key: KeyDataTypeBase, Value: col.BaseType()},
	}

	if col.Length != "" {
		md = append(md, Metadata{Key: KeyDataTypeLength, Value: col.Length})
	}

	if col.Default != "" {
		md = append(md, Metadata{Key: KeyDataTypeDefault, Value: col.Default})
	}

	return md
}
