package rbridge

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Bridge is the facade over the R subprocess protocol. One method per
// operation; every method composes a script, runs it, and decodes stdout.
//
// Errors that occur after construction are never returned as Go errors:
// they come back as a JSON object with an "error" key, whether they
// originate in this process (invocation failure, empty or malformed
// output) or inside R (the scripts' own tryCatch trap and the guarded
// state preamble). Callers must check for the "error" key; the facade does
// not distinguish trapped engine errors from successful results
// structurally.
type Bridge struct {
	runner    Runner
	state     *StateStore
	paramsDir string
	timeout   time.Duration
	logger    *zap.Logger
}

// Options configures bridge construction. Zero values select the defaults:
// locate R automatically, state file in the OS temp directory, params
// files beside it, no invocation timeout.
type Options struct {
	// EnginePath overrides engine location. Empty means locate.
	EnginePath string

	// StatePath overrides the session state file location.
	StatePath string

	// ParamsDir is where per-call params JSON files are written.
	ParamsDir string

	// Timeout bounds each R invocation. Zero means wait indefinitely,
	// matching the upstream behavior.
	Timeout time.Duration

	Logger *zap.Logger
}

// New locates and verifies the R environment and returns a ready bridge.
// A missing engine or a missing netmeta package fails construction; none
// of the per-operation failure modes do.
func New(ctx context.Context, opts Options) (*Bridge, error) {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	enginePath := opts.EnginePath
	if enginePath == "" {
		var err error
		enginePath, err = LocateEngine()
		if err != nil {
			return nil, err
		}
	}

	if err := VerifyEngine(ctx, enginePath); err != nil {
		return nil, err
	}

	runner := NewRRunner(enginePath, logger)
	if err := VerifyPackage(ctx, runner, "netmeta"); err != nil {
		return nil, err
	}

	logger.Info("R bridge ready",
		zap.String("engine", enginePath),
		zap.String("state_file", NewStateStore(opts.StatePath).Path()))

	return NewWithRunner(runner, opts), nil
}

// NewWithRunner builds a bridge around an existing runner, skipping engine
// location and verification. Used by tests and by callers that manage the
// engine themselves.
func NewWithRunner(runner Runner, opts Options) *Bridge {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	paramsDir := opts.ParamsDir
	if paramsDir == "" {
		paramsDir = os.TempDir()
	}
	return &Bridge{
		runner:    runner,
		state:     NewStateStore(opts.StatePath),
		paramsDir: paramsDir,
		timeout:   opts.Timeout,
		logger:    logger,
	}
}

// State exposes the session state store (for diagnostics).
func (b *Bridge) State() *StateStore {
	return b.state
}

// errorResult is the shape every non-fatal failure takes on the way back
// to the caller.
func errorResult(msg string) map[string]any {
	return map[string]any{"error": msg}
}

// writeParams serializes caller data to a per-call temp file that the R
// script reads back with fromJSON. Keeping caller values out of the script
// text closes the injection hole that string interpolation would open for
// treatment names containing quote characters.
func (b *Bridge) writeParams(v any) (string, func(), error) {
	data, err := json.Marshal(v)
	if err != nil {
		return "", nil, fmt.Errorf("failed to marshal params: %w", err)
	}
	path := filepath.Join(b.paramsDir, "netmeta_params_"+uuid.NewString()+".json")
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return "", nil, fmt.Errorf("failed to write params file: %w", err)
	}
	return path, func() { _ = os.Remove(path) }, nil
}

// execute runs a script and applies the decode policy: non-zero exit maps
// to the stderr text, empty stdout and malformed JSON are their own error
// shapes, and a well-formed document is returned verbatim.
func (b *Bridge) execute(ctx context.Context, operation, script string) any {
	if b.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, b.timeout)
		defer cancel()
	}

	start := time.Now()
	res, err := b.runner.Run(ctx, script)
	if err != nil {
		b.logger.Warn("R invocation failed to run",
			zap.String("operation", operation), zap.Error(err))
		return errorResult("R error: " + err.Error())
	}

	b.logger.Debug("R operation finished",
		zap.String("operation", operation),
		zap.Int("exit_code", res.ExitCode),
		zap.Duration("duration", time.Since(start)))

	if res.ExitCode != 0 {
		return errorResult("R error: " + res.Stderr)
	}

	out := strings.TrimSpace(res.Stdout)
	if out == "" {
		return errorResult("No output from R")
	}

	var doc any
	if err := json.Unmarshal([]byte(out), &doc); err != nil {
		return map[string]any{
			"error":      "Failed to parse R output: " + err.Error(),
			"raw_output": res.Stdout,
		}
	}
	return doc
}

// runParams is the params document for the runnetmeta script.
type runParams struct {
	Data      []PairwiseContrast `json:"data"`
	SM        string             `json:"sm"`
	Reference string             `json:"reference"`
	Common    bool               `json:"common"`
	Random    bool               `json:"random"`
}

// RunNetmeta fits a network meta-analysis over the pairwise contrasts and
// persists the fitted object for the query operations. The reference may
// be empty, meaning netmeta picks its own.
func (b *Bridge) RunNetmeta(ctx context.Context, data []PairwiseContrast, sm, reference string, common, random bool) any {
	if len(data) == 0 {
		return errorResult("No data provided")
	}
	if !ValidSummaryMeasure(sm) {
		return errorResult(fmt.Sprintf(
			"Invalid summary measure %q: must be one of OR, RR, RD, MD, SMD", sm))
	}

	paramsPath, cleanup, err := b.writeParams(runParams{
		Data:      data,
		SM:        sm,
		Reference: reference,
		Common:    common,
		Random:    random,
	})
	if err != nil {
		return errorResult(err.Error())
	}
	defer cleanup()

	return b.execute(ctx, "runnetmeta", buildRunScript(paramsPath, b.state.Path()))
}

// GetNetworkGraph returns the node/edge structure of the last analysis.
func (b *Bridge) GetNetworkGraph(ctx context.Context) any {
	return b.execute(ctx, "get_network_graph", buildGraphScript(b.state.Path()))
}

// GetLeagueTable returns the full square effect and CI matrices of the
// last analysis, from the random-effects model when random is true and the
// common-effect model otherwise.
func (b *Bridge) GetLeagueTable(ctx context.Context, random bool) any {
	return b.execute(ctx, "get_league_table", buildLeagueScript(b.state.Path(), random))
}

// GetRanking returns P-score treatment rankings for the last analysis,
// ordered best first.
func (b *Bridge) GetRanking(ctx context.Context, random bool) any {
	return b.execute(ctx, "get_ranking", buildRankingScript(b.state.Path(), random))
}

// forestParams is the params document for the get_forest_data script.
type forestParams struct {
	Reference string `json:"reference"`
}

// GetForestData returns each treatment's effect and CI against a reference
// treatment. An empty reference falls back to the session's reference
// group, then to the first treatment.
func (b *Bridge) GetForestData(ctx context.Context, reference string, random bool) any {
	paramsPath, cleanup, err := b.writeParams(forestParams{Reference: reference})
	if err != nil {
		return errorResult(err.Error())
	}
	defer cleanup()

	return b.execute(ctx, "get_forest_data",
		buildForestScript(paramsPath, b.state.Path(), random))
}

// pairwiseParams is the params document for the arm conversion script.
type pairwiseParams struct {
	Data []ArmRecord `json:"data"`
}

// PairwiseToNetmeta converts arm-level records into the pairwise contrast
// format runnetmeta consumes. The result is a flat JSON array of contrasts
// across all studies.
func (b *Bridge) PairwiseToNetmeta(ctx context.Context, data []ArmRecord, outcomeType string) any {
	if len(data) == 0 {
		return errorResult("No data provided")
	}
	if outcomeType != OutcomeBinary && outcomeType != OutcomeContinuous {
		return errorResult(fmt.Sprintf(
			"Invalid outcome_type %q: must be \"binary\" or \"continuous\"", outcomeType))
	}

	paramsPath, cleanup, err := b.writeParams(pairwiseParams{Data: data})
	if err != nil {
		return errorResult(err.Error())
	}
	defer cleanup()

	return b.execute(ctx, "pairwise_to_netmeta",
		buildPairwiseScript(paramsPath, outcomeType == OutcomeBinary))
}
