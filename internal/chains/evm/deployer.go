package evm

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/pendergraft/shipcheck/internal/chains"
	"github.com/pendergraft/shipcheck/internal/faults"
)

// Deployment is a contract creation accepted by the network. Bytecode stays
// nil until the code has been read back by VerifyCode.
type Deployment struct {
	Contract    string
	Address     common.Address
	TxHash      common.Hash
	BlockNumber uint64
	GasUsed     uint64
	Nonce       uint64
	Bytecode    []byte
	Artifact    *chains.Artifact
}

// DeployerConfig configures artifact lookup and transaction handling
type DeployerConfig struct {
	ArtifactsDir string
	Builder      string // "foundry", "hardhat" or "" to detect
	Tx           TxOptions
	Wait         WaitOptions
}

// Deployer publishes compiled contracts
type Deployer struct {
	net      *Network
	registry *chains.Registry
	cfg      DeployerConfig
	logger   *slog.Logger
}

// NewDeployer creates a deployer. A nil registry uses DefaultRegistry.
func NewDeployer(net *Network, registry *chains.Registry, cfg DeployerConfig, logger *slog.Logger) *Deployer {
	if registry == nil {
		registry = DefaultRegistry()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Deployer{net: net, registry: registry, cfg: cfg, logger: logger}
}

// Resolve finds the artifact of contractName in the configured project
func (d *Deployer) Resolve(contractName string) (*chains.Artifact, error) {
	artifact, err := d.registry.Resolve(d.cfg.ArtifactsDir, d.cfg.Builder, contractName)
	if err != nil {
		return nil, faults.New(faults.Deployment, "resolve artifact "+contractName, err)
	}
	return artifact, nil
}

// Deploy resolves contractName and deploys it. String constructor arguments
// are converted according to the constructor ABI.
func (d *Deployer) Deploy(ctx context.Context, contractName string, constructorArgs ...any) (*Deployment, error) {
	artifact, err := d.Resolve(contractName)
	if err != nil {
		return nil, err
	}
	return d.DeployArtifact(ctx, artifact, constructorArgs...)
}

// DeployArtifact submits the creation transaction for artifact and waits for
// inclusion. The returned address is not yet known to host code.
func (d *Deployer) DeployArtifact(ctx context.Context, artifact *chains.Artifact, constructorArgs ...any) (*Deployment, error) {
	op := "deploy " + artifact.Name

	data, err := creationData(artifact, constructorArgs)
	if err != nil {
		return nil, faults.New(faults.Deployment, op, err)
	}

	tx, err := d.net.transact(ctx, d.cfg.Tx, nil, data, nil)
	if err != nil {
		return nil, classify(faults.Deployment, op, err)
	}
	d.logger.Info("deployment submitted", "contract", artifact.Name, "tx", tx.Hash().Hex(), "nonce", tx.Nonce())

	receipt, err := d.net.WaitMined(ctx, tx.Hash(), d.cfg.Wait)
	if err != nil {
		return nil, err
	}
	if receiptFailed(receipt) {
		return nil, faults.New(faults.Deployment, op, fmt.Errorf("%w in block %s", errReceiptFailed, receipt.BlockNumber))
	}

	addr := receipt.ContractAddress
	if addr == (common.Address{}) {
		addr = crypto.CreateAddress(d.net.From(), tx.Nonce())
	}

	dep := &Deployment{
		Contract: artifact.Name,
		Address:  addr,
		TxHash:   tx.Hash(),
		GasUsed:  receipt.GasUsed,
		Nonce:    tx.Nonce(),
		Artifact: artifact,
	}
	if receipt.BlockNumber != nil {
		dep.BlockNumber = receipt.BlockNumber.Uint64()
	}

	d.logger.Info("contract deployed",
		"contract", artifact.Name,
		"address", addr.Hex(),
		"block", dep.BlockNumber,
		"gasUsed", receipt.GasUsed,
	)
	return dep, nil
}

// creationData is the artifact's creation code followed by the packed constructor arguments
func creationData(artifact *chains.Artifact, args []any) ([]byte, error) {
	if !chains.HasBytecode(artifact.Bytecode) {
		return nil, chains.ErrNoBytecode
	}
	if HasLibraryPlaceholders([]byte(artifact.Bytecode)) {
		return nil, fmt.Errorf("bytecode of %s has unlinked library references", artifact.Name)
	}
	code, err := hexutil.Decode(artifact.Bytecode)
	if err != nil {
		return nil, fmt.Errorf("decoding bytecode: %w", err)
	}

	if len(bytes.TrimSpace(artifact.ABI)) == 0 {
		if len(args) > 0 {
			return nil, fmt.Errorf("artifact %s has no ABI for constructor arguments", artifact.Name)
		}
		return code, nil
	}

	parsed, err := abi.JSON(bytes.NewReader(artifact.ABI))
	if err != nil {
		return nil, fmt.Errorf("parsing ABI: %w", err)
	}
	coerced, err := CoerceArgs(parsed.Constructor.Inputs, args)
	if err != nil {
		return nil, fmt.Errorf("constructor: %w", err)
	}
	packed, err := parsed.Pack("", coerced...)
	if err != nil {
		return nil, fmt.Errorf("packing constructor arguments: %w", err)
	}
	return append(code, packed...), nil
}

// classify keeps an existing fault kind and assigns kind to anything else
func classify(kind faults.Kind, op string, err error) error {
	if faults.As(err) != nil {
		return err
	}
	return faults.New(kind, op, err)
}
