package testutil

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/pseudomuto/bqtransform/pkg/config"
	"github.com/pseudomuto/bqtransform/pkg/consts"
	"github.com/stretchr/testify/require"
)

// DataDirFixture is a temporary data directory laid out the way the platform
// mounts it: config.json at the root and manifests under out/tables.
type DataDirFixture struct {
	Dir string
	t   *testing.T
}

// TestDataDir creates an empty data directory.
func TestDataDir(t *testing.T) *DataDirFixture {
	t.Helper()

	return &DataDirFixture{Dir: t.TempDir(), t: t}
}

// WithConfig writes config.json.
func (d *DataDirFixture) WithConfig(json string) *DataDirFixture {
	d.t.Helper()

	err := os.WriteFile(config.ConfigPath(d.Dir), []byte(json), consts.ModeFile)
	require.NoError(d.t, err, "Failed to write config.json")

	return d
}

// ManifestPath returns the path of the manifest written for table.
func (d *DataDirFixture) ManifestPath(table string) string {
	return filepath.Join(d.Dir, "out", "tables", table+".manifest")
}

// Environment returns a lookup function serving vars, for config.NewLoaderWithLookup.
func Environment(vars map[string]string) config.LookupFunc {
	return func(key string) (string, bool) {
		v, ok := vars[key]
		return v, ok
	}
}
