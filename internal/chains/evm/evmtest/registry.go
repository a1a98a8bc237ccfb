package evmtest

import (
	"encoding/json"
	"math/big"
	"os"
	"path/filepath"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
)

// RegistryABI is the ABI of a minimal identity registry
const RegistryABI = `[
  {"type":"constructor","inputs":[],"stateMutability":"nonpayable"},
  {"type":"function","name":"register","stateMutability":"nonpayable",
   "inputs":[{"name":"tokenURI","type":"string"},
             {"name":"metadata","type":"tuple[]","components":[{"name":"key","type":"string"},{"name":"value","type":"bytes"}]}],
   "outputs":[{"name":"agentId","type":"uint256"}]},
  {"type":"function","name":"setOwner","stateMutability":"nonpayable",
   "inputs":[{"name":"owner","type":"address"}],"outputs":[]},
  {"type":"function","name":"totalAgents","stateMutability":"view","inputs":[],
   "outputs":[{"name":"","type":"uint256"}]},
  {"type":"event","name":"Registered","anonymous":false,
   "inputs":[{"name":"agentId","type":"uint256","indexed":true},
             {"name":"tokenURI","type":"string","indexed":false},
             {"name":"owner","type":"address","indexed":true}]},
  {"type":"event","name":"Transfer","anonymous":false,
   "inputs":[{"name":"from","type":"address","indexed":true},
             {"name":"to","type":"address","indexed":true},
             {"name":"tokenId","type":"uint256","indexed":true}]}
]`

// RegistryBytecode is placeholder creation code
const RegistryBytecode = "0x6080604052348015600f57600080fd5b50603f80601d6000396000f3fe"

// RuntimeCode is 24 bytes of non-zero runtime code
var RuntimeCode = []byte{
	0x60, 0x80, 0x60, 0x40, 0x52, 0x60, 0x04, 0x36, 0x10, 0x60, 0x1f, 0x57,
	0x60, 0x00, 0x35, 0x60, 0xe0, 0x1c, 0x80, 0x63, 0x01, 0xff, 0xc9, 0xa7,
}

var (
	// RegisteredTopic is keccak256("Registered(uint256,string,address)")
	RegisteredTopic = crypto.Keccak256Hash([]byte("Registered(uint256,string,address)"))
	// TransferTopic is keccak256("Transfer(address,address,uint256)")
	TransferTopic = crypto.Keccak256Hash([]byte("Transfer(address,address,uint256)"))
)

// RegisteredLog builds a Registered event log for id
func RegisteredLog(contract, owner common.Address, id int64) *types.Log {
	return &types.Log{
		Address: contract,
		Topics: []common.Hash{
			RegisteredTopic,
			common.BigToHash(big.NewInt(id)),
			common.BytesToHash(owner.Bytes()),
		},
	}
}

// TransferLog builds a mint Transfer event log for tokenID
func TransferLog(contract, to common.Address, tokenID int64) *types.Log {
	return &types.Log{
		Address: contract,
		Topics: []common.Hash{
			TransferTopic,
			{},
			common.BytesToHash(to.Bytes()),
			common.BigToHash(big.NewInt(tokenID)),
		},
	}
}

// WriteFoundryProject lays out a Foundry project in dir holding the registry artifact
func WriteFoundryProject(dir, contractName string) error {
	if err := os.WriteFile(filepath.Join(dir, "foundry.toml"), []byte("[profile.default]\nsrc = \"src\"\nout = \"out\"\n"), 0644); err != nil {
		return err
	}
	contractDir := filepath.Join(dir, "out", contractName+".sol")
	if err := os.MkdirAll(contractDir, 0755); err != nil {
		return err
	}
	artifact := map[string]any{
		"abi":              json.RawMessage(RegistryABI),
		"bytecode":         map[string]any{"object": RegistryBytecode},
		"deployedBytecode": map[string]any{"object": "0x6080604052600080fd"},
		"rawMetadata":      `{"compiler":{"version":"0.8.24+commit.e11b9ed9"},"settings":{"compilationTarget":{"src/` + contractName + `.sol":"` + contractName + `"},"evmVersion":"shanghai","viaIR":true,"optimizer":{"enabled":true,"runs":200}}}`,
	}
	data, err := json.Marshal(artifact)
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(contractDir, contractName+".json"), data, 0644)
}
