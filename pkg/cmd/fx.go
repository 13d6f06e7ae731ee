package cmd

import (
	"io"
	"log/slog"
	"os"

	"go.uber.org/fx"
)

// Output is where logs and command output are written.
type Output interface {
	io.Writer
}

var Module = fx.Module("cli",
	fx.Provide(
		func() Output { return os.Stdout },
		func() *slog.LevelVar { return new(slog.LevelVar) },
		func() Dialer { return DialBigQuery },
		NewLogger,
		fx.Annotate(run, fx.ResultTags(`group:"commands"`)),
		fx.Annotate(validate, fx.ResultTags(`group:"commands"`)),
	),
	fx.Invoke(Run),
)
