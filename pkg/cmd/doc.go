// Package cmd provides the CLI of the bqtransform tool.
//
// Commands are plain *cli.Command values (urfave/cli/v3) built from fx
// parameter structs and registered in the "commands" group, so Module wires
// them together with the logger and the warehouse Dialer.
//
// # Available Commands
//
//   - run: execute the transformation described by config.json (default)
//   - validate: load and validate config.json
//
// # Global Options
//
//   - --log-level: minimum log level (KBC_LOG_LEVEL)
//   - --help, -h: display command help
//   - --version: display version information
//
// # Exit Codes
//
//	0  the transformation succeeded
//	1  user error: failing SQL, abort, timeout, missing output tables,
//	   invalid configuration
//	2  application error: missing environment, credentials, connectivity
//
// # Example Usage
//
//	KBC_RUNID=123 bqtransform run --data-dir /data
//	bqtransform validate --data-dir ./data
package cmd
