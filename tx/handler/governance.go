package handler

import (
	"github.com/calehh/gp-node/governance"
	"github.com/calehh/gp-node/state"
	"github.com/calehh/gp-node/tx"
	"github.com/calehh/gp-node/types"
	cmtlog "github.com/cometbft/cometbft/libs/log"
)

func registerGovernanceHandlers(hdlrs map[tx.GPTxType]TxHandler, logger cmtlog.Logger, m *Modules) {
	hdlrs[tx.GPTxTypeCastVote] = newTxHandler(logger, "castVote",
		func(t *tx.CastVoteTx) error {
			if !governance.Support(t.Support).Valid() {
				return types.ErrInvalidSupport
			}
			return nil
		},
		func(st *state.State, env types.Env, t *tx.CastVoteTx) error {
			_, err := m.Gov.CastVote(st, env, t.Proposal, governance.Support(t.Support))
			return err
		})
	hdlrs[tx.GPTxTypeExecute] = newTxHandler(logger, "execute", nil,
		func(st *state.State, env types.Env, t *tx.ExecuteTx) error {
			return m.Gov.Execute(st, env, t.Proposal)
		})
}
