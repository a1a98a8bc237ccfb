package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/pendergraft/shipcheck/internal/chains/evm"
	"github.com/pendergraft/shipcheck/internal/faults"
	"github.com/pendergraft/shipcheck/internal/observability/metrics"
	"github.com/pendergraft/shipcheck/internal/receipt"
	"github.com/pendergraft/shipcheck/internal/summary"
)

func (p *Pipeline) connect(ctx context.Context, logger *slog.Logger) (*evm.Network, error) {
	n := p.cfg.Network
	net, err := p.dial(ctx, evm.NetworkConfig{
		Name:              n.Name,
		RPCURL:            n.RPCURL,
		ChainID:           n.ChainID,
		RequestsPerSecond: n.RequestsPerSecond,
	}, p.key, logger)
	if err != nil {
		return nil, err
	}
	logger.Info("connected", "network", net.Name(), "url", net.URL(), "chainId", net.ChainID())
	return net, nil
}

// balance reads the deployer balance. Zero is reported, not refused: the node
// decides whether the deployment can be paid for.
func (p *Pipeline) balance(ctx context.Context, net *evm.Network, logger *slog.Logger) (*summary.Account, error) {
	bal, err := net.Balance(ctx, net.From())
	if err != nil {
		return nil, err
	}
	if bal.Sign() == 0 {
		logger.Warn("deployer has no funds", "address", net.From().Hex())
	} else {
		logger.Info("deployer balance", "address", net.From().Hex(), "ether", summary.FormatEther(bal))
	}
	return &summary.Account{Address: net.From(), Balance: bal}, nil
}

func (p *Pipeline) deploy(ctx context.Context, net *evm.Network, logger *slog.Logger) (*evm.Deployment, error) {
	deployer := evm.NewDeployer(net, p.registry, evm.DeployerConfig{
		ArtifactsDir: p.cfg.Contract.ArtifactsDir,
		Builder:      p.cfg.Contract.Builder,
		Tx:           p.tx,
		Wait:         p.wait,
	}, logger)

	artifact, err := deployer.Resolve(p.cfg.Contract.Name)
	if err != nil {
		return nil, err
	}
	logger.Info("artifact resolved", "contract", artifact.Name, "builder", artifact.Builder, "path", artifact.Path)

	if mismatches := p.compiler.Check(artifact.Compiler); len(mismatches) > 0 {
		for _, m := range mismatches {
			logger.Warn("compiler profile mismatch", "contract", artifact.Name, "detail", m)
		}
		if p.cfg.Compiler.Strict {
			return nil, faults.Newf(faults.Deployment, "compiler profile", "%s", strings.Join(mismatches, "; "))
		}
	}

	return deployer.DeployArtifact(ctx, artifact, stringArgs(p.cfg.Contract.Args)...)
}

func (p *Pipeline) verify(ctx context.Context, net *evm.Network, dep *evm.Deployment, logger *slog.Logger) ([]byte, error) {
	code, err := evm.VerifyCode(ctx, net, dep.Address)
	if err != nil {
		return nil, err
	}
	logger.Info("code verified", "address", dep.Address.Hex(), "codeSize", len(code))

	if p.cfg.Verify.MatchArtifact && dep.Artifact != nil {
		p.matchArtifact(code, dep, logger)
	}
	return code, nil
}

// matchArtifact compares on-chain code with the artifact. The outcome is
// informational; only missing code fails verification.
func (p *Pipeline) matchArtifact(code []byte, dep *evm.Deployment, logger *slog.Logger) {
	expected, err := hexutil.Decode(dep.Artifact.DeployedBytecode)
	if err != nil {
		logger.Warn("cannot compare bytecode", "contract", dep.Contract, "error", err)
		return
	}
	result := evm.CompareBytecode(code, expected)
	if result.Match {
		logger.Info("bytecode matches artifact", "contract", dep.Contract, "match", result.MatchType)
		return
	}
	logger.Warn("bytecode differs from artifact", "contract", dep.Contract, "detail", result.Message)
}

func (p *Pipeline) invoke(ctx context.Context, net *evm.Network, dep *evm.Deployment, logger *slog.Logger) (*types.Receipt, error) {
	if dep.Artifact == nil {
		return nil, fmt.Errorf("no ABI for %s", dep.Contract)
	}
	contractABI, err := evm.ParseABI(dep.Artifact.ABI)
	if err != nil {
		return nil, err
	}

	var args []any
	if p.cfg.Invoke.TokenURI != "" {
		args = append(args, p.cfg.Invoke.TokenURI)
	}
	args = append(args, stringArgs(p.cfg.Invoke.Args)...)

	invoker := evm.NewInvoker(net, evm.InvokerConfig{Tx: p.tx, Wait: p.wait}, logger)
	return invoker.Invoke(ctx, dep.Address, contractABI, p.cfg.Invoke.Method, args, p.entries)
}

func (p *Pipeline) identify(ctx context.Context, net *evm.Network, dep *evm.Deployment, rc *types.Receipt, logger *slog.Logger) receipt.Identifier {
	id := receipt.NewAnalyzer(p.policy, net, logger).Extract(ctx, dep.Address, rc)
	metrics.IdentifierExtracted(id.Source, id.Found)
	return id
}

func stringArgs(ss []string) []any {
	args := make([]any, len(ss))
	for i, s := range ss {
		args[i] = s
	}
	return args
}
