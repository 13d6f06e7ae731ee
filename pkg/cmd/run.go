package cmd

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/cenkalti/backoff/v4"
	"github.com/pseudomuto/bqtransform/pkg/bigquery"
	"github.com/pseudomuto/bqtransform/pkg/config"
	"github.com/pseudomuto/bqtransform/pkg/consts"
	"github.com/pseudomuto/bqtransform/pkg/manifest"
	"github.com/pseudomuto/bqtransform/pkg/transformation"
	"github.com/urfave/cli/v3"
	"go.uber.org/fx"
)

var (
	dataDirFlag = &cli.StringFlag{
		Name:    "data-dir",
		Usage:   "directory holding config.json and receiving out/tables",
		Value:   consts.DefaultDataDir,
		Sources: cli.EnvVars(consts.EnvDataDir),
		Config: cli.StringConfig{
			TrimSpace: true,
		},
	}

	envFileFlag = &cli.StringFlag{
		Name:  "env-file",
		Usage: "optional .env file supplying KBC_* variables missing from the environment",
		Config: cli.StringConfig{
			TrimSpace: true,
		},
	}
)

type runParams struct {
	fx.In

	Dialer Dialer
	Loader *config.Loader
	Logger *slog.Logger
	Output Output

	// SetupBackOff replaces the delay policy between setup attempts.
	SetupBackOff func() backoff.BackOff `optional:"true"`
}

// run creates the run command, which executes the transformation.
//
// Command flags:
//   - --data-dir: directory with config.json (KBC_DATADIR, default /data)
//   - --env-file: .env file read for KBC_* variables not set in the process
//   - --endpoint: BigQuery API endpoint, for the emulator
//
// Example usage:
//
//	# Run the transformation mounted at /data
//	bqtransform run
//
//	# Run a local checkout against the emulator
//	bqtransform run --data-dir ./data --env-file .env --endpoint http://localhost:9050
func run(p runParams) *cli.Command {
	return &cli.Command{
		Name:  "run",
		Usage: "Execute the transformation",
		Description: `Execute every statement of every code of every block in config.json, in
order, inside one BigQuery session.

Before the first block the command:
- opens a session in the workspace dataset (retried on failure)
- declares the ABORT_TRANSFORMATION variable
- declares one KBC_* variable per run environment value

Statements starting with SELECT are skipped. The first failing statement stops
the run. A script can stop the run on purpose:

  SET ABORT_TRANSFORMATION = 'No new data';

After the run a manifest is written to out/tables for every output table. When
the run fails only tables marked write_always get one.`,
		Flags: []cli.Flag{
			dataDirFlag,
			envFileFlag,
			&cli.StringFlag{
				Name:    "endpoint",
				Usage:   "BigQuery API endpoint; disables authentication",
				Sources: cli.EnvVars("BIGQUERY_ENDPOINT"),
				Config: cli.StringConfig{
					TrimSpace: true,
				},
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			return runTransformation(ctx, cmd, p)
		},
	}
}

func runTransformation(ctx context.Context, cmd *cli.Command, p runParams) error {
	dataDir := cmd.String("data-dir")

	env, err := p.Loader.Environment(cmd.String("env-file"))
	if err != nil {
		return err
	}

	cfg, err := p.Loader.Config(dataDir)
	if err != nil {
		return err
	}

	ws, err := cfg.Workspace()
	if err != nil {
		return err
	}

	projectID, err := ws.Credentials.ProjectID()
	if err != nil {
		return err
	}

	p.Logger.Info("Starting transformation",
		"run_id", env.RunID,
		"project", projectID,
		"dataset", ws.Schema,
		"blocks", len(cfg.Parameters.Blocks),
	)

	newBackOff := p.SetupBackOff
	if newBackOff == nil {
		newBackOff = newSetupBackOff
	}

	wh, session, err := openSession(ctx, setupOptions{
		Dialer: p.Dialer,
		Client: bigquery.ClientOptions{
			ProjectID:       projectID,
			Location:        ws.Region,
			Dataset:         ws.Schema,
			CredentialsJSON: ws.Credentials,
			Endpoint:        cmd.String("endpoint"),
		},
		Labels:  bigquery.RunLabels(env.RunID, env.BranchID),
		BackOff: newBackOff(),
		Logger:  p.Logger,
	})
	if err != nil {
		return err
	}
	defer wh.Close()

	conn := bigquery.NewConnection(bigquery.ConnectionOptions{
		Runner:       wh,
		Session:      session,
		RunID:        env.RunID,
		BranchID:     env.BranchID,
		QueryTimeout: cfg.QueryTimeout(),
		Logger:       p.Logger,
	})

	var tables bigquery.TableSource = wh
	if cfg.Parameters.SchemaReflection == config.ReflectionInformationSchema {
		tables = bigquery.NewInformationSchema(conn, ws.Schema)
	}

	t := transformation.New(transformation.Config{
		Connection: conn,
		Tables:     tables,
		Manifests:  manifest.NewManager(dataDir),
		Logger:     p.Logger,
	})

	results, err := t.Run(ctx, cfg, env)
	showSummary(p.Output, results)
	return err
}

func showSummary(w io.Writer, results []*transformation.ExecutionResult) {
	if len(results) == 0 {
		return
	}

	var executed, skipped int
	for _, r := range results {
		executed += r.StatementsExecuted
		skipped += r.StatementsSkipped
	}

	fmt.Fprintln(w, "Transformation summary:")
	for _, r := range results {
		status := "✅"
		switch r.Status {
		case transformation.StatusFailed:
			status = "❌"
		case transformation.StatusAborted:
			status = "⛔"
		}

		fmt.Fprintf(w, "  %s %s / %s: %d/%d statements executed, %d skipped (%v)\n",
			status, r.Block, r.Code, r.StatementsExecuted, r.TotalStatements, r.StatementsSkipped, r.ExecutionTime)
	}
	fmt.Fprintf(w, "Total: %d executed, %d skipped\n", executed, skipped)
}
