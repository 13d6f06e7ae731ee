package config

import "go.uber.org/fx"

// Module provides the Loader commands use to read config.json and the run
// environment. Nothing is read at startup so commands that do not need a run
// configuration (help, version) work without one.
var Module = fx.Module("config", fx.Provide(NewLoader))
