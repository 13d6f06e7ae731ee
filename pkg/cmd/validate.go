package cmd

import (
	"context"
	"fmt"

	"github.com/pseudomuto/bqtransform/pkg/config"
	"github.com/urfave/cli/v3"
	"go.uber.org/fx"
)

type validateParams struct {
	fx.In

	Loader *config.Loader
	Output Output
}

// validate creates the validate command, which loads config.json and reports
// configuration errors without connecting to the warehouse.
//
// Example usage:
//
//	bqtransform validate --data-dir ./data
func validate(p validateParams) *cli.Command {
	return &cli.Command{
		Name:  "validate",
		Usage: "Check config.json without running it",
		Flags: []cli.Flag{dataDirFlag},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			cfg, err := p.Loader.Config(cmd.String("data-dir"))
			if err != nil {
				return err
			}

			var codes, statements int
			for _, block := range cfg.Parameters.Blocks {
				codes += len(block.Codes)
				for _, code := range block.Codes {
					statements += len(code.Script)
				}
			}

			fmt.Fprintf(p.Output, "Configuration is valid: %d blocks, %d codes, %d statements, %d output tables\n",
				len(cfg.Parameters.Blocks), codes, statements, len(cfg.ExpectedOutputTables()))
			return nil
		},
	}
}
