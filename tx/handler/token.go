package handler

import (
	"github.com/calehh/gp-node/state"
	"github.com/calehh/gp-node/tx"
	"github.com/calehh/gp-node/types"
	cmtlog "github.com/cometbft/cometbft/libs/log"
)

func registerTokenHandlers(hdlrs map[tx.GPTxType]TxHandler, logger cmtlog.Logger, m *Modules) {
	hdlrs[tx.GPTxTypeTransfer] = newTxHandler(logger, "transfer",
		func(t *tx.TransferTx) error { return requireAmount(t.Amount) },
		func(st *state.State, env types.Env, t *tx.TransferTx) error {
			l, err := m.Ledger(t.Asset)
			if err != nil {
				return err
			}
			return l.Transfer(st, env, t.To, t.Amount)
		})
	hdlrs[tx.GPTxTypeApprove] = newTxHandler(logger, "approve",
		func(t *tx.ApproveTx) error {
			if t.Amount == nil {
				return types.ErrZeroAmount
			}
			return nil
		},
		func(st *state.State, env types.Env, t *tx.ApproveTx) error {
			l, err := m.Ledger(t.Asset)
			if err != nil {
				return err
			}
			return l.Approve(st, env, t.Spender, t.Amount)
		})
	hdlrs[tx.GPTxTypeDelegate] = newTxHandler(logger, "delegate", nil,
		func(st *state.State, env types.Env, t *tx.DelegateTx) error {
			return m.GP.Delegate(st, env, t.Delegatee)
		})
	hdlrs[tx.GPTxTypeMint] = newTxHandler(logger, "mint",
		func(t *tx.MintTx) error { return requireAmount(t.Amount) },
		func(st *state.State, env types.Env, t *tx.MintTx) error {
			l, err := m.Ledger(t.Asset)
			if err != nil {
				return err
			}
			return l.Mint(st, env, t.To, t.Amount)
		})
}
