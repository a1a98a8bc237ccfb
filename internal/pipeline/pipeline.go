// Package pipeline drives one shipcheck run: connect, read the balance, deploy,
// verify the code, invoke the registration, extract the identifier and
// summarize. Stages run strictly in that order and the first failure ends the
// run. Nothing is cleaned up on failure; a deployed contract stays on chain.
package pipeline

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/ethereum/go-ethereum/core/types"
	"github.com/google/uuid"

	"github.com/pendergraft/shipcheck/internal/chains"
	"github.com/pendergraft/shipcheck/internal/chains/evm"
	"github.com/pendergraft/shipcheck/internal/config"
	"github.com/pendergraft/shipcheck/internal/faults"
	"github.com/pendergraft/shipcheck/internal/metadata"
	"github.com/pendergraft/shipcheck/internal/observability/metrics"
	"github.com/pendergraft/shipcheck/internal/receipt"
	"github.com/pendergraft/shipcheck/internal/storage"
	"github.com/pendergraft/shipcheck/internal/summary"
)

// Stage names, in execution order
const (
	StageConnect   = "connect"
	StageBalance   = "balance"
	StageDeploy    = "deploy"
	StageVerify    = "verify"
	StageInvoke    = "invoke"
	StageIdentify  = "identify"
	StageSummarize = "summarize"
)

// Stages lists every stage in execution order
var Stages = []string{StageConnect, StageBalance, StageDeploy, StageVerify, StageInvoke, StageIdentify, StageSummarize}

// journalTimeout bounds the journal write and metrics push after a run
const journalTimeout = 10 * time.Second

// Dialer opens the network handle. evm.Connect is the default.
type Dialer func(ctx context.Context, cfg evm.NetworkConfig, key *ecdsa.PrivateKey, logger *slog.Logger) (*evm.Network, error)

// Options holds the collaborators of a pipeline. Zero values use defaults.
type Options struct {
	Dialer   Dialer
	Registry *chains.Registry
	Journal  storage.RunStore
	Logger   *slog.Logger
}

// StageError is a run failure annotated with the stage it happened in
type StageError struct {
	Stage string
	Err   error
}

func (e *StageError) Error() string {
	return e.Stage + ": " + e.Err.Error()
}

func (e *StageError) Unwrap() error {
	return e.Err
}

// FailedStage returns the stage err happened in, or ""
func FailedStage(err error) string {
	var se *StageError
	if errors.As(err, &se) {
		return se.Stage
	}
	return ""
}

// Pipeline runs the fixed stage sequence for one configuration
type Pipeline struct {
	cfg      *config.Config
	key      *ecdsa.PrivateKey
	policy   receipt.Policy
	entries  []metadata.Entry
	tx       evm.TxOptions
	wait     evm.WaitOptions
	compiler chains.CompilerProfile

	dial     Dialer
	registry *chains.Registry
	journal  storage.RunStore
	logger   *slog.Logger
}

// New prepares a pipeline. Configuration problems are reported here, before
// anything touches the network.
func New(cfg *config.Config, key *ecdsa.PrivateKey, opts Options) (*Pipeline, error) {
	if cfg == nil {
		return nil, errors.New("config is required")
	}
	if key == nil {
		return nil, errors.New("signing key is required")
	}

	policy, err := receipt.ParsePolicy(cfg.Identifier.Strategy, cfg.Identifier.EventSignature, cfg.Identifier.FollowupMethod)
	if err != nil {
		return nil, err
	}
	enc, err := metadata.ParseEncoding(cfg.Invoke.Encoding)
	if err != nil {
		return nil, err
	}
	entries, err := metadata.ParseEntries(cfg.Invoke.Metadata, enc)
	if err != nil {
		return nil, err
	}
	maxFee, err := config.ParseWei(cfg.Pipeline.MaxFeePerGas)
	if err != nil {
		return nil, fmt.Errorf("max_fee_per_gas: %w", err)
	}
	maxTip, err := config.ParseWei(cfg.Pipeline.MaxPriorityFeePerGas)
	if err != nil {
		return nil, fmt.Errorf("max_priority_fee_per_gas: %w", err)
	}

	p := &Pipeline{
		cfg:     cfg,
		key:     key,
		policy:  policy,
		entries: entries,
		tx: evm.TxOptions{
			GasLimit:             cfg.Pipeline.GasLimit,
			GasMultiplier:        cfg.Pipeline.GasMultiplier,
			MaxFeePerGas:         maxFee,
			MaxPriorityFeePerGas: maxTip,
		},
		wait: evm.WaitOptions{
			Timeout:       cfg.Pipeline.FinalizationTimeout,
			PollInterval:  cfg.Pipeline.PollInterval,
			Confirmations: cfg.Pipeline.Confirmations,
		},
		compiler: chains.CompilerProfile{
			Version:       cfg.Compiler.Version,
			EVMVersion:    cfg.Compiler.EVMVersion,
			OptimizerRuns: cfg.Compiler.OptimizerRuns,
			ViaIR:         cfg.Compiler.ViaIR,
		},
		dial:     opts.Dialer,
		registry: opts.Registry,
		journal:  opts.Journal,
		logger:   opts.Logger,
	}
	if p.dial == nil {
		p.dial = evm.Connect
	}
	if p.registry == nil {
		p.registry = evm.DefaultRegistry()
	}
	if p.logger == nil {
		p.logger = slog.Default()
	}

	if dups := metadata.DuplicateKeys(entries); len(dups) > 0 {
		p.logger.Warn("duplicate metadata keys", "keys", dups)
	}
	return p, nil
}

// runState collects what the stages produced so far
type runState struct {
	id         string
	started    time.Time
	network    summary.Network
	account    *summary.Account
	deployment *evm.Deployment
	receipt    *types.Receipt
	identifier receipt.Identifier
}

// Run executes the stages in order and stops at the first failure. The
// returned error, if any, is a *StageError wrapping a *faults.Error.
func (p *Pipeline) Run(ctx context.Context) Result[summary.Record] {
	st := &runState{id: uuid.NewString(), started: time.Now()}
	logger := p.logger.With("run", st.id)
	logger.Info("run started",
		"network", p.cfg.Network.Name,
		"contract", p.cfg.Contract.Name,
		"strategy", p.policy.Name(),
	)

	res := p.execute(ctx, st, logger)
	p.finish(ctx, st, res, logger)
	return res
}

func (p *Pipeline) execute(ctx context.Context, st *runState, logger *slog.Logger) Result[summary.Record] {
	net, err := runStage(ctx, logger, StageConnect, faults.Connectivity, func(ctx context.Context) (*evm.Network, error) {
		return p.connect(ctx, logger)
	}).Unwrap()
	if err != nil {
		return Fail[summary.Record](err)
	}
	defer net.Close()
	st.network = summary.Network{Name: net.Name(), ChainID: net.ChainID(), URL: net.URL()}

	account, err := runStage(ctx, logger, StageBalance, faults.Connectivity, func(ctx context.Context) (*summary.Account, error) {
		return p.balance(ctx, net, logger)
	}).Unwrap()
	if err != nil {
		return Fail[summary.Record](err)
	}
	st.account = account

	dep, err := runStage(ctx, logger, StageDeploy, faults.Deployment, func(ctx context.Context) (*evm.Deployment, error) {
		return p.deploy(ctx, net, logger)
	}).Unwrap()
	if err != nil {
		return Fail[summary.Record](err)
	}
	st.deployment = dep

	code, err := runStage(ctx, logger, StageVerify, faults.Verification, func(ctx context.Context) ([]byte, error) {
		return p.verify(ctx, net, dep, logger)
	}).Unwrap()
	if err != nil {
		return Fail[summary.Record](err)
	}
	dep.Bytecode = code

	rc, err := runStage(ctx, logger, StageInvoke, faults.Transaction, func(ctx context.Context) (*types.Receipt, error) {
		return p.invoke(ctx, net, dep, logger)
	}).Unwrap()
	if err != nil {
		return Fail[summary.Record](err)
	}
	st.receipt = rc

	// a missing identifier only degrades the summary; an abort still fails the run
	id, err := runStage(ctx, logger, StageIdentify, 0, func(ctx context.Context) (receipt.Identifier, error) {
		return p.identify(ctx, net, dep, rc, logger), nil
	}).Unwrap()
	if err != nil {
		return Fail[summary.Record](err)
	}
	st.identifier = id

	return runStage(ctx, logger, StageSummarize, 0, func(context.Context) (summary.Record, error) {
		return summary.Summarize(p.summaryInput(st)), nil
	})
}

// runStage times fn, classifies its failure and reports it to logs and metrics.
// Unclassified errors get kind, or Timeout/Canceled when ctx ended. A stage
// that returns after ctx ended fails even if fn reported no error.
func runStage[T any](ctx context.Context, logger *slog.Logger, stage string, kind faults.Kind, fn func(context.Context) (T, error)) Result[T] {
	start := time.Now()
	logger.Debug("stage started", "stage", stage)

	v, err := fn(ctx)
	elapsed := time.Since(start)
	if err == nil && ctx.Err() != nil {
		// aborted while fn absorbed the failure
		err = ctx.Err()
	}
	if err != nil {
		err = classify(ctx, stage, kind, err)
		metrics.StageObserved(stage, "failed", elapsed)
		logger.Error("stage failed",
			"stage", stage,
			"kind", faults.KindOf(err).String(),
			"duration", elapsed,
			"error", err,
		)
		return Fail[T](&StageError{Stage: stage, Err: err})
	}

	metrics.StageObserved(stage, "ok", elapsed)
	logger.Debug("stage completed", "stage", stage, "duration", elapsed)
	return Ok(v)
}

func classify(ctx context.Context, stage string, kind faults.Kind, err error) error {
	if faults.As(err) != nil {
		return err
	}
	switch {
	case errors.Is(ctx.Err(), context.DeadlineExceeded):
		return faults.New(faults.Timeout, stage, err)
	case ctx.Err() != nil:
		return faults.New(faults.Canceled, stage, err)
	case kind != 0:
		return faults.New(kind, stage, err)
	default:
		return err
	}
}

func (p *Pipeline) summaryInput(st *runState) summary.Input {
	return summary.Input{
		RunID:      st.id,
		Network:    st.network,
		Account:    st.account,
		Deployment: st.deployment,
		Receipt:    st.receipt,
		Identifier: st.identifier,
		AddressVar: p.cfg.Contract.AddressVar,
	}
}

// finish records the outcome. Journal and push failures are logged only.
func (p *Pipeline) finish(ctx context.Context, st *runState, res Result[summary.Record], logger *slog.Logger) {
	status := storage.StatusSucceeded
	if !res.IsOk() {
		status = storage.StatusFailed
	}
	metrics.RunFinished(status)

	elapsed := time.Since(st.started)
	if err := res.Err(); err != nil {
		logger.Error("run failed", "stage", FailedStage(err), "duration", elapsed, "error", err)
	} else {
		logger.Info("run completed", "duration", elapsed, "identifier", st.identifier.String())
	}

	// the run's own context may already be canceled
	bg, cancel := context.WithTimeout(context.WithoutCancel(ctx), journalTimeout)
	defer cancel()

	if p.journal != nil {
		run := journalRun(st, p.cfg, res.Err(), elapsed)
		if err := p.journal.RecordRun(bg, run); err != nil {
			logger.Warn("failed to record run", "error", err)
		} else {
			logger.Debug("run recorded", "id", run.ID)
		}
	}

	if err := metrics.Push(bg, p.cfg.Metrics.PushURL, p.cfg.Metrics.Job, p.cfg.Network.Name); err != nil {
		logger.Warn("failed to push metrics", "error", err)
	}
}
