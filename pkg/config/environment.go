package config

import (
	"os"

	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	"github.com/pseudomuto/bqtransform/pkg/consts"
	"github.com/pseudomuto/bqtransform/pkg/outcome"
)

type (
	// Environment identifies the run. It is read once at startup and passed
	// to every component that needs it.
	Environment struct {
		RunID       string
		ProjectID   string
		StackID     string
		ConfigID    string
		ComponentID string
		ConfigRowID string
		BranchID    string
	}

	// Variable is a named environment value exposed to the transformation as
	// a script variable.
	Variable struct {
		Name  string
		Value string
	}

	// LookupFunc reads an environment variable. os.LookupEnv satisfies it.
	LookupFunc func(key string) (string, bool)
)

// LoadEnvironment reads the run identity through lookup. KBC_RUNID is
// required.
func LoadEnvironment(lookup LookupFunc) (*Environment, error) {
	get := func(key string) string {
		v, _ := lookup(key)
		return v
	}

	env := &Environment{
		RunID:       get(consts.EnvRunID),
		ProjectID:   get(consts.EnvProjectID),
		StackID:     get(consts.EnvStackID),
		ConfigID:    get(consts.EnvConfigID),
		ComponentID: get(consts.EnvComponentID),
		ConfigRowID: get(consts.EnvConfigRowID),
		BranchID:    get(consts.EnvBranchID),
	}

	if env.RunID == "" {
		return nil, outcome.Setup("Missing KBC_RUNID environment variable")
	}

	return env, nil
}

// LoadEnvironmentFile is LoadEnvironment with values from a .env file used as
// fallbacks for variables lookup does not define.
//
// Example:
//
//	env, err := config.LoadEnvironmentFile(".env", os.LookupEnv)
func LoadEnvironmentFile(path string, lookup LookupFunc) (*Environment, error) {
	values, err := godotenv.Read(path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read env file: %s", path)
	}

	return LoadEnvironment(func(key string) (string, bool) {
		if v, ok := lookup(key); ok {
			return v, true
		}

		v, ok := values[key]
		return v, ok
	})
}

// Variables returns the environment values exposed to scripts, in a fixed
// order, leaving out those that are not set.
func (e *Environment) Variables() []Variable {
	all := []Variable{
		{Name: consts.EnvRunID, Value: e.RunID},
		{Name: consts.EnvProjectID, Value: e.ProjectID},
		{Name: consts.EnvStackID, Value: e.StackID},
		{Name: consts.EnvConfigID, Value: e.ConfigID},
		{Name: consts.EnvComponentID, Value: e.ComponentID},
		{Name: consts.EnvConfigRowID, Value: e.ConfigRowID},
		{Name: consts.EnvBranchID, Value: e.BranchID},
	}

	vars := make([]Variable, 0, len(all))
	for _, v := range all {
		if v.Value != "" {
			vars = append(vars, v)
		}
	}

	return vars
}

// Loader reads the configuration and environment of a run.
type Loader struct {
	lookup LookupFunc
}

// NewLoader returns a Loader backed by the process environment.
func NewLoader() *Loader {
	return NewLoaderWithLookup(os.LookupEnv)
}

// NewLoaderWithLookup returns a Loader backed by lookup.
func NewLoaderWithLookup(lookup LookupFunc) *Loader {
	return &Loader{lookup: lookup}
}

// Environment loads the run identity, overlaid with envFile when it is set.
func (l *Loader) Environment(envFile string) (*Environment, error) {
	if envFile == "" {
		return LoadEnvironment(l.lookup)
	}

	return LoadEnvironmentFile(envFile, l.lookup)
}

// Config loads config.json from dataDir.
func (l *Loader) Config(dataDir string) (*Config, error) {
	return LoadConfigFile(ConfigPath(dataDir))
}
