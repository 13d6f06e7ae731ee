package config

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/goccy/go-json"
	"github.com/pkg/errors"
	"github.com/pseudomuto/bqtransform/pkg/consts"
	"github.com/pseudomuto/bqtransform/pkg/outcome"
)

type (
	// Config is the run configuration found in config.json in the data
	// directory.
	Config struct {
		Parameters    Parameters    `json:"parameters"`
		Authorization Authorization `json:"authorization"`
		Storage       Storage       `json:"storage"`
	}

	// Parameters holds the transformation itself.
	Parameters struct {
		// QueryTimeout limits each query job, in seconds. Zero means no limit.
		QueryTimeout int `json:"query_timeout"`

		// Blocks are executed in order.
		Blocks []Block `json:"blocks"`

		// SchemaReflection selects how output table definitions are read after
		// the run: "api" (default) or "information_schema".
		SchemaReflection string `json:"schema_reflection,omitempty"`
	}

	// Block is a named group of codes.
	Block struct {
		Name  string `json:"name"`
		Codes []Code `json:"codes"`
	}

	// Code is a named, ordered script of SQL statements.
	Code struct {
		Name   string   `json:"name"`
		Script []string `json:"script"`
	}

	// Authorization holds the credentials of the workspace the transformation
	// runs in.
	Authorization struct {
		Workspace *Workspace `json:"workspace"`
	}

	// Workspace identifies a BigQuery dataset and the service account used to
	// reach it.
	Workspace struct {
		Credentials Credentials `json:"credentials"`

		// Schema is the dataset name.
		Schema string `json:"schema"`

		// Region is the location jobs run in.
		Region string `json:"region"`
	}

	// Credentials is a service account key in JSON form. In config.json it is
	// either an object or a JSON-encoded string.
	Credentials []byte

	// Storage describes the expected outputs.
	Storage struct {
		Output Output `json:"output"`
	}

	// Output lists the tables the transformation must create.
	Output struct {
		Tables []OutputTable `json:"tables"`

		// DataTypeSupport is "authoritative", "hints" or "none".
		DataTypeSupport string `json:"data_type_support,omitempty"`
	}

	// OutputTable is a table the transformation is expected to produce.
	OutputTable struct {
		// Source is the table name in the workspace dataset.
		Source string `json:"source"`

		// Destination is the storage table the output is loaded into.
		Destination string `json:"destination,omitempty"`

		// WriteAlways tables get a manifest even when the run fails.
		WriteAlways bool `json:"write_always,omitempty"`

		// PrimaryKey overrides the primary key read from the warehouse.
		PrimaryKey []string `json:"primary_key,omitempty"`
	}
)

const (
	// ReflectionAPI reads table definitions with the tables API.
	ReflectionAPI = "api"

	// ReflectionInformationSchema reads table definitions from
	// INFORMATION_SCHEMA views.
	ReflectionInformationSchema = "information_schema"

	// DataTypeSupportAuthoritative and DataTypeSupportHints make manifests use
	// the typed schema format.
	DataTypeSupportAuthoritative = "authoritative"
	DataTypeSupportHints         = "hints"
	DataTypeSupportNone          = "none"
)

// LoadConfig parses and validates a run configuration from r.
//
// Example:
//
//	cfg, err := config.LoadConfig(strings.NewReader(`{
//		"parameters": {
//			"blocks": [{"name": "b", "codes": [{"name": "c", "script": ["SELECT 1"]}]}]
//		}
//	}`))
//	if err != nil {
//		log.Fatal(err)
//	}
func LoadConfig(r io.Reader) (*Config, error) {
	var cfg Config
	if err := json.NewDecoder(r).Decode(&cfg); err != nil {
		return nil, outcome.UserError(errors.Wrap(err, "failed to unmarshal config").Error(), err)
	}

	if cfg.Parameters.SchemaReflection == "" {
		cfg.Parameters.SchemaReflection = ReflectionAPI
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// LoadConfigFile loads a run configuration from path.
func LoadConfigFile(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open file: %s", path)
	}
	defer func() { _ = f.Close() }()

	return LoadConfig(f)
}

// ConfigPath returns the location of config.json inside dataDir.
func ConfigPath(dataDir string) string {
	return filepath.Join(dataDir, consts.ConfigFileName)
}

// Validate reports the first required node that is missing from the
// configuration.
func (c *Config) Validate() error {
	if c.Parameters.Blocks == nil {
		return missingNode("blocks", "root.parameters")
	}

	for i, block := range c.Parameters.Blocks {
		path := fmt.Sprintf("root.parameters.blocks.%d", i)
		if block.Name == "" {
			return missingNode("name", path)
		}
		if block.Codes == nil {
			return missingNode("codes", path)
		}

		for j, code := range block.Codes {
			codePath := path + ".codes." + strconv.Itoa(j)
			if code.Name == "" {
				return missingNode("name", codePath)
			}
			if code.Script == nil {
				return missingNode("script", codePath)
			}
		}
	}

	if c.Parameters.QueryTimeout < 0 {
		return invalidValue("query_timeout", "root.parameters", strconv.Itoa(c.Parameters.QueryTimeout))
	}

	switch c.Parameters.SchemaReflection {
	case "", ReflectionAPI, ReflectionInformationSchema:
	default:
		return invalidValue("schema_reflection", "root.parameters", c.Parameters.SchemaReflection)
	}

	for i, table := range c.Storage.Output.Tables {
		if table.Source == "" {
			return missingNode("source", fmt.Sprintf("root.storage.output.tables.%d", i))
		}
	}

	return nil
}

// Workspace returns the workspace authorization.
func (c *Config) Workspace() (*Workspace, error) {
	ws := c.Authorization.Workspace
	if ws == nil || ws.Schema == "" {
		return nil, outcome.Setup("Missing authorization for workspace")
	}

	return ws, nil
}

// QueryTimeout returns the per-job time limit, zero when unlimited.
func (c *Config) QueryTimeout() time.Duration {
	return time.Duration(c.Parameters.QueryTimeout) * time.Second
}

// ExpectedOutputTables returns the declared output tables in order.
func (c *Config) ExpectedOutputTables() []OutputTable {
	return c.Storage.Output.Tables
}

// UsingLegacyManifest reports whether manifests use the column list format
// rather than the typed schema format.
func (c *Config) UsingLegacyManifest() bool {
	switch c.Storage.Output.DataTypeSupport {
	case DataTypeSupportAuthoritative, DataTypeSupportHints:
		return false
	default:
		return true
	}
}

// UnmarshalJSON accepts the key either as an object or as a JSON string.
func (c *Credentials) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)

	switch {
	case bytes.Equal(data, []byte("null")):
		*c = nil
		return nil
	case bytes.HasPrefix(data, []byte(`"`)):
		var key string
		if err := json.Unmarshal(data, &key); err != nil {
			return errors.Wrap(err, "failed to decode credentials")
		}

		*c = Credentials(key)
		return nil
	case bytes.HasPrefix(data, []byte("{")):
		var buf bytes.Buffer
		if err := json.Compact(&buf, data); err != nil {
			return errors.Wrap(err, "failed to decode credentials")
		}

		*c = buf.Bytes()
		return nil
	default:
		return errors.Errorf("credentials must be an object or a string, got %s", data)
	}
}

// ProjectID returns the project_id field of the key.
func (c Credentials) ProjectID() (string, error) {
	var key struct {
		ProjectID string `json:"project_id"`
	}

	if err := json.Unmarshal(c, &key); err != nil {
		return "", outcome.WrapSetup(err, "Invalid workspace credentials")
	}

	return key.ProjectID, nil
}

func missingNode(name, path string) error {
	return outcome.UserError(fmt.Sprintf(`The child config "%s" under "%s" must be configured.`, name, path), nil)
}

func invalidValue(name, path, value string) error {
	return outcome.UserError(fmt.Sprintf(`Invalid configuration for path "%s.%s": value "%s" is not allowed.`, path, name, value), nil)
}
