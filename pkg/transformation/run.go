package transformation

import (
	"context"

	"github.com/pkg/errors"
	"github.com/pseudomuto/bqtransform/pkg/config"
	"github.com/pseudomuto/bqtransform/pkg/manifest"
	"github.com/pseudomuto/bqtransform/pkg/outcome"
)

// Run executes a whole transformation:
//
//  1. declare the abort variable
//  2. declare the environment variables
//  3. process all blocks
//  4. write manifests for the expected output tables
//
// When block processing fails (including an explicit abort) manifests are
// still written for the WriteAlways tables and the processing error is
// returned. A manifest failure at that point is logged, not returned.
func (t *Transformation) Run(ctx context.Context, cfg *config.Config, env *config.Environment) ([]*ExecutionResult, error) {
	if err := t.abort.Declare(ctx); err != nil {
		return nil, err
	}

	if err := t.DeclareEnvVars(ctx, env); err != nil {
		return nil, err
	}

	tables := cfg.ExpectedOutputTables()
	legacy := cfg.UsingLegacyManifest()

	results, runErr := t.ProcessBlocks(ctx, cfg.Parameters.Blocks)
	if runErr != nil {
		if msg, ok := outcome.AbortMessage(runErr); ok {
			t.logger.Warn("Transformation aborted by script", "message", msg)
		}

		if err := t.CreateManifestMetadata(ctx, tables, true, legacy); err != nil {
			t.logger.Error("Failed to write manifests of failed run", "error", err)
		}

		return results, runErr
	}

	if err := t.CreateManifestMetadata(ctx, tables, false, legacy); err != nil {
		return results, err
	}

	return results, nil
}

// CreateManifestMetadata reflects the expected output tables and writes a
// manifest for each. After a failed run only WriteAlways tables are written.
func (t *Transformation) CreateManifestMetadata(ctx context.Context, tables []config.OutputTable, runFailed, legacy bool) error {
	if len(tables) == 0 {
		return nil
	}

	outputs, err := t.reflector.Reflect(ctx, tables, runFailed)
	if err != nil {
		return err
	}

	for _, out := range outputs {
		opts := manifest.NewTableOptions(out.Definition, out.Table, legacy)
		if err := t.manifests.WriteTableManifest(out.Definition.Name, opts); err != nil {
			return errors.Wrapf(err, "failed to write manifest for table %s", out.Definition.Name)
		}

		t.logger.Info("Wrote table manifest", "table", out.Definition.Name, "columns", len(out.Definition.Columns))
	}

	return nil
}
