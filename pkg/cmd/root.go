package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/pkg/errors"
	"github.com/pseudomuto/bqtransform/pkg/consts"
	"github.com/pseudomuto/bqtransform/pkg/outcome"
	"github.com/urfave/cli/v3"
	"go.uber.org/fx"
)

type (
	Params struct {
		fx.In

		Args       []string
		Commands   []*cli.Command `group:"commands"`
		Ctx        context.Context
		Level      *slog.LevelVar
		Lifecycle  fx.Lifecycle
		Logger     *slog.Logger
		Shutdowner fx.Shutdowner
		Version    *Version
	}

	Version struct {
		Version   string
		Commit    string
		Timestamp string
	}
)

// Run creates and executes the bqtransform CLI application with the given
// arguments once the fx application starts.
//
// The application exposes:
//   - run: execute the transformation in config.json (the default command)
//   - validate: check config.json without touching the warehouse
//
// Global Flags:
//   - --log-level: debug, info, warn or error (KBC_LOG_LEVEL, default info)
//
// The process exit code follows outcome.ExitCode: 0 on success, 1 when the
// transformation failed because of its own SQL or configuration, 2 for
// anything else.
//
// Example usage:
//
//	bqtransform                              # same as "bqtransform run"
//	bqtransform run --data-dir ./data
//	bqtransform --log-level debug validate
func Run(p Params) {
	cli.VersionPrinter = func(cmd *cli.Command) {
		fmt.Fprintln(cmd.Writer, "Version:", p.Version.Version)
		fmt.Fprintln(cmd.Writer, "Commit:", p.Version.Commit)
		fmt.Fprintln(cmd.Writer, "Date:", p.Version.Timestamp)
	}

	app := &cli.Command{
		Name:  "bqtransform",
		Usage: "Run SQL transformations in a BigQuery workspace",
		Description: `bqtransform executes the blocks of SQL statements found in config.json
inside a single BigQuery session and writes a manifest for every output table
the transformation produces.`,
		Version:        p.Version.Version,
		DefaultCommand: "run",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "log-level",
				Usage:   "minimum level of log messages (debug, info, warn, error)",
				Value:   "info",
				Sources: cli.EnvVars(consts.EnvLogLevel),
				Config: cli.StringConfig{
					TrimSpace: true,
				},
			},
		},
		Before: func(ctx context.Context, cmd *cli.Command) (context.Context, error) {
			level, err := parseLevel(cmd.String("log-level"))
			if err != nil {
				return ctx, err
			}

			p.Level.Set(level)
			slog.SetDefault(p.Logger)
			return ctx, nil
		},
		Commands: p.Commands,
	}

	p.Lifecycle.Append(fx.StartHook(func() {
		go func() {
			err := app.Run(p.Ctx, p.Args)
			if err != nil {
				p.Logger.Error(err.Error(), "kind", outcome.Of(err).String())
			}

			_ = p.Shutdowner.Shutdown(fx.ExitCode(outcome.ExitCode(err)))
		}()
	}))
}

// NewLogger returns the text logger every component writes to. Its level is
// controlled through level, which the root command sets from --log-level.
func NewLogger(level *slog.LevelVar, w Output) *slog.Logger {
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

func parseLevel(s string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.ToUpper(s))); err != nil {
		return level, outcome.UserError(fmt.Sprintf(`Invalid log level "%s".`, s), errors.WithStack(err))
	}

	return level, nil
}
