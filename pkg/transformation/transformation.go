package transformation

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/pseudomuto/bqtransform/pkg/bigquery"
	"github.com/pseudomuto/bqtransform/pkg/config"
	"github.com/pseudomuto/bqtransform/pkg/manifest"
	"github.com/pseudomuto/bqtransform/pkg/outcome"
	"github.com/pseudomuto/bqtransform/pkg/utils"
)

// ResultsURL links a finished job to its results page in the BigQuery console.
const ResultsURL = "https://console.cloud.google.com/bigquery?project=%s&j=bq:%s:%s&page=queryresults"

type (
	// ManifestWriter persists the manifest of an output table.
	ManifestWriter interface {
		WriteTableManifest(name string, opts manifest.OutTableManifestOptions) error
	}

	// Transformation runs the blocks of a transformation against a single
	// warehouse session and writes manifests for its output tables.
	//
	// Statements run strictly in declaration order: blocks, then codes, then
	// statements. The first failing statement stops the run.
	//
	// Example usage:
	//
	//	t := transformation.New(transformation.Config{
	//		Connection: conn,
	//		Tables:     client,
	//		Manifests:  manifest.NewManager("/data"),
	//	})
	//
	//	results, err := t.Run(ctx, cfg, env)
	//	if err != nil {
	//		os.Exit(outcome.ExitCode(err))
	//	}
	Transformation struct {
		conn      bigquery.Querier
		abort     *AbortSignal
		reflector *Reflector
		manifests ManifestWriter
		logger    *slog.Logger
	}

	// Config contains the collaborators of a Transformation.
	Config struct {
		// Connection runs statements in the run's session.
		Connection bigquery.Querier

		// Tables reads output table definitions after the run.
		Tables bigquery.TableSource

		// Manifests receives one manifest per output table.
		Manifests ManifestWriter

		Logger *slog.Logger
	}

	// ExecutionResult summarizes the execution of a single code.
	ExecutionResult struct {
		Block string
		Code  string

		// Status indicates how the code ended
		Status ExecutionStatus

		// Error is the failure that stopped the code, if any
		Error error

		// ExecutionTime records how long the code took
		ExecutionTime time.Duration

		// StatementsExecuted counts statements sent to the warehouse
		StatementsExecuted int

		// StatementsSkipped counts empty and read-only statements
		StatementsSkipped int

		// TotalStatements is the number of statements in the script
		TotalStatements int
	}

	// ExecutionStatus represents the outcome of a code execution.
	ExecutionStatus string
)

const (
	// StatusSuccess indicates every statement of the code ran
	StatusSuccess ExecutionStatus = "success"

	// StatusFailed indicates a statement failed
	StatusFailed ExecutionStatus = "failed"

	// StatusAborted indicates the script assigned the abort variable
	StatusAborted ExecutionStatus = "aborted"
)

// New creates a Transformation.
func New(cfg Config) *Transformation {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Transformation{
		conn:      cfg.Connection,
		abort:     NewAbortSignal(cfg.Connection, logger),
		reflector: NewReflector(cfg.Tables),
		manifests: cfg.Manifests,
		logger:    logger,
	}
}

// ProcessBlocks executes every statement of every code of every block in
// order.
//
// Empty statements (after comment removal) and statements starting with
// SELECT are skipped. A failing statement stops the run with a user error
// naming the statement and its code. After each statement that mentions the
// abort variable, the variable is polled and a non-empty value stops the run
// with an outcome.Aborted error.
//
// The returned results cover every code that started, including the one that
// failed.
func (t *Transformation) ProcessBlocks(ctx context.Context, blocks []config.Block) ([]*ExecutionResult, error) {
	var results []*ExecutionResult

	for _, block := range blocks {
		t.logger.Info("Processing block", "block", block.Name)

		for _, code := range block.Codes {
			t.logger.Info("Processing code", "block", block.Name, "code", code.Name)

			result := t.executeCode(ctx, block.Name, code)
			results = append(results, result)

			if result.Error != nil {
				return results, result.Error
			}
		}
	}

	return results, nil
}

func (t *Transformation) executeCode(ctx context.Context, blockName string, code config.Code) *ExecutionResult {
	startTime := time.Now()

	result := &ExecutionResult{
		Block:           blockName,
		Code:            code.Name,
		Status:          StatusSuccess,
		TotalStatements: len(code.Script),
	}

	for _, stmt := range code.Script {
		executed, err := t.executeStatement(ctx, code.Name, stmt)
		if executed {
			result.StatementsExecuted++
		} else if err == nil {
			result.StatementsSkipped++
		}

		if err != nil {
			result.Error = err
			result.Status = StatusFailed
			if outcome.Of(err) == outcome.Aborted {
				result.Status = StatusAborted
			}
			break
		}
	}

	result.ExecutionTime = time.Since(startTime)
	return result
}

// executeStatement reports whether stmt was sent to the warehouse.
func (t *Transformation) executeStatement(ctx context.Context, codeName, stmt string) (bool, error) {
	sql := utils.StripComments(stmt)
	if sql == "" {
		t.logger.Debug("Skipping empty query")
		return false, nil
	}

	excerpt := utils.Excerpt(stmt)
	if isReadOnly(sql) {
		t.logger.Info("Ignoring select query", "query", excerpt)
		return false, nil
	}

	t.logger.Info("Running query", "code", codeName, "query", excerpt)

	result, err := t.conn.Execute(ctx, sql)
	if err != nil {
		return false, outcome.UserError(
			fmt.Sprintf(`Query "%s" in "%s" failed with error: "%s"`, excerpt, codeName, bigquery.ErrorMessage(err)),
			err,
		)
	}

	id := result.Identity
	t.logger.Info("Query results", "url", fmt.Sprintf(ResultsURL, id.ProjectID, id.Location, id.JobID))

	if ContainsAbortKeyword(sql) {
		if err := t.abort.Poll(ctx); err != nil {
			return true, err
		}
	}

	return true, nil
}

// isReadOnly reports whether the first token of sql is SELECT.
func isReadOnly(sql string) bool {
	const keyword = "SELECT"

	if len(sql) < len(keyword) || !strings.EqualFold(sql[:len(keyword)], keyword) {
		return false
	}

	next, _ := utf8.DecodeRuneInString(sql[len(keyword):])
	return next == utf8.RuneError || !(unicode.IsLetter(next) || unicode.IsDigit(next) || next == '_')
}
