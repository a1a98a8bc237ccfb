package pipeline

import (
	"time"

	"github.com/pendergraft/shipcheck/internal/config"
	"github.com/pendergraft/shipcheck/internal/faults"
	"github.com/pendergraft/shipcheck/internal/storage"
)

// journalRun flattens a finished run into a journal row. Fields a failed run
// never reached stay empty.
func journalRun(st *runState, cfg *config.Config, runErr error, elapsed time.Duration) *storage.Run {
	r := &storage.Run{
		ID:        st.id,
		Network:   cfg.Network.Name,
		RPCURL:    cfg.Network.RPCURL,
		Contract:  cfg.Contract.Name,
		Status:    storage.StatusSucceeded,
		StartedAt: st.started,
		Duration:  elapsed,
	}

	if st.network.ChainID != nil {
		r.ChainID = st.network.ChainID.String()
	}
	if st.account != nil {
		r.Deployer = st.account.Address.Hex()
	}
	if d := st.deployment; d != nil {
		r.ContractAddress = d.Address.Hex()
		r.DeployTx = d.TxHash.Hex()
	}
	if rc := st.receipt; rc != nil {
		r.InvokeTx = rc.TxHash.Hex()
		if rc.BlockNumber != nil {
			r.InvokeBlock = rc.BlockNumber.Int64()
		}
	}
	r.IdentifierSource = st.identifier.Source
	if st.identifier.Found && st.identifier.Value != nil {
		r.Identifier = st.identifier.Value.String()
	}

	if runErr != nil {
		r.Status = storage.StatusFailed
		r.Error = runErr.Error()
		if kind := faults.KindOf(runErr); kind != 0 {
			r.ErrorKind = kind.String()
		}
	}
	return r
}
