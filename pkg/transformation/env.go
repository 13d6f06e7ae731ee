package transformation

import (
	"context"
	"strings"

	"github.com/pkg/errors"
	"github.com/pseudomuto/bqtransform/pkg/config"
	"github.com/pseudomuto/bqtransform/pkg/utils"
)

// DeclareEnvVars exposes the run environment to scripts as STRING variables
// (KBC_RUNID, KBC_PROJECTID, ...) declared in a single multi-statement job.
// Variables that are not set are not declared.
func (t *Transformation) DeclareEnvVars(ctx context.Context, env *config.Environment) error {
	sql := EnvVarsScript(env)
	if sql == "" {
		return nil
	}

	if _, err := t.conn.Execute(ctx, sql); err != nil {
		return errors.Wrap(err, "failed to declare environment variables")
	}

	return nil
}

// EnvVarsScript renders the DECLARE statements for env, one per line.
func EnvVarsScript(env *config.Environment) string {
	vars := env.Variables()

	lines := make([]string, 0, len(vars))
	for _, v := range vars {
		lines = append(lines, utils.NewSQLBuilder().
			Declare(v.Name, "STRING").
			Default(utils.QuoteString(v.Value)).
			String())
	}

	return strings.Join(lines, "\n")
}
