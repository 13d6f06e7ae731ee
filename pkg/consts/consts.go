package consts

import (
	"os"
	"time"
)

const (
	// ModeDir is the standard file mode for creating directories
	ModeDir = os.FileMode(0o755)

	// ModeFile is the standard file mode for creating files
	ModeFile = os.FileMode(0o644)

	// AbortVariable is the session variable user scripts assign to stop the run.
	AbortVariable = "ABORT_TRANSFORMATION"

	// DefaultDataDir is where the platform mounts config.json and the out/ tree.
	DefaultDataDir = "/data"

	// ConfigFileName is the name of the run configuration inside the data dir.
	ConfigFileName = "config.json"

	// QueryRetries is the retry budget for a single warehouse statement.
	QueryRetries = 30

	// SetupRetries is the retry budget for creating the client and session.
	SetupRetries = 20

	// SetupMinDelay and SetupMaxDelay bound the uniform random delay between
	// setup attempts.
	SetupMinDelay = time.Second
	SetupMaxDelay = 3 * time.Second

	// RequestTimeout bounds every HTTP request made to the warehouse API.
	RequestTimeout = 120 * time.Second

	// UserAgent is sent with every warehouse request.
	UserAgent = "Keboola/1.0 (GPN:Keboola; connection)"
)

// Environment variable names supplied by the platform. EnvRunID is required.
const (
	EnvRunID       = "KBC_RUNID"
	EnvProjectID   = "KBC_PROJECTID"
	EnvStackID     = "KBC_STACKID"
	EnvConfigID    = "KBC_CONFIGID"
	EnvComponentID = "KBC_COMPONENTID"
	EnvConfigRowID = "KBC_CONFIGROWID"
	EnvBranchID    = "KBC_BRANCHID"
	EnvDataDir     = "KBC_DATADIR"
	EnvLogLevel    = "KBC_LOG_LEVEL"
)
