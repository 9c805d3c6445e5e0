package handler

import (
	"context"
	"fmt"

	"github.com/calehh/gp-node/governance"
	"github.com/calehh/gp-node/service"
	"github.com/calehh/gp-node/state"
	"github.com/calehh/gp-node/token"
	"github.com/calehh/gp-node/tx"
	"github.com/calehh/gp-node/types"
	"github.com/calehh/gp-node/vault"
	abcitypes "github.com/cometbft/cometbft/abci/types"
	cmtlog "github.com/cometbft/cometbft/libs/log"
	"github.com/holiman/uint256"
)

type TxHandler interface {
	Check(ctx context.Context, st *state.State, btx *tx.GPTx) (res *abcitypes.ResponseCheckTx, err error)
	Process(ctx context.Context, st *state.State, env types.Env, btx *tx.GPTx) (res *abcitypes.ExecTxResult, err error)
}

// Modules are the ledger components transactions act on.
type Modules struct {
	GP      *token.Ledger
	Stable  *token.Ledger
	Gov     *governance.Engine
	Vault   *vault.Vault
	Service *service.Service
}

func (m *Modules) Ledger(asset tx.Asset) (*token.Ledger, error) {
	switch string(asset) {
	case m.GP.Name():
		return m.GP, nil
	case m.Stable.Name():
		return m.Stable, nil
	}
	return nil, fmt.Errorf("%w: %q", types.ErrUnknownAsset, asset)
}

// txHandler runs a typed payload on a branch of the block state and keeps
// the branch only if the payload succeeds.
type txHandler[T any] struct {
	logger cmtlog.Logger
	check  func(t *T) error
	exec   func(st *state.State, env types.Env, t *T) error
}

func newTxHandler[T any](logger cmtlog.Logger, name string, check func(t *T) error, exec func(st *state.State, env types.Env, t *T) error) *txHandler[T] {
	return &txHandler[T]{
		logger: logger.With("module", name+"Tx"),
		check:  check,
		exec:   exec,
	}
}

func (h *txHandler[T]) payload(btx *tx.GPTx) (*T, error) {
	t, ok := btx.Tx.(*T)
	if !ok || t == nil {
		return nil, fmt.Errorf("%w: unexpected payload for %s", types.ErrInvalidTx, btx.Type)
	}
	return t, nil
}

func (h *txHandler[T]) Check(ctx context.Context, st *state.State, btx *tx.GPTx) (res *abcitypes.ResponseCheckTx, err error) {
	res = &abcitypes.ResponseCheckTx{Code: 0}
	t, err := h.payload(btx)
	if err == nil && h.check != nil {
		err = h.check(t)
	}
	if err != nil {
		res.Code = types.ABCICode(err)
		res.Codespace = types.Codespace
		res.Log = err.Error()
		err = nil
	}
	return
}

func (h *txHandler[T]) Process(ctx context.Context, st *state.State, env types.Env, btx *tx.GPTx) (res *abcitypes.ExecTxResult, err error) {
	res = &abcitypes.ExecTxResult{}
	t, err1 := h.payload(btx)
	if err1 == nil && h.check != nil {
		err1 = h.check(t)
	}
	branch := st.Branch()
	if err1 == nil {
		err1 = h.exec(branch, env, t)
	}
	if err1 != nil {
		h.logger.Info("tx failed", "type", btx.Type, "from", env.Sender.Hex(), "err", err1)
		res.Code = types.ABCICode(err1)
		res.Codespace = types.Codespace
		res.Log = err1.Error()
		return
	}
	res.Events = branch.TakeEvents()
	err = branch.Write()
	return
}

func Handlers(logger cmtlog.Logger, m *Modules) map[tx.GPTxType]TxHandler {
	hdlrs := make(map[tx.GPTxType]TxHandler)
	registerTokenHandlers(hdlrs, logger, m)
	registerRoleHandlers(hdlrs, logger, m)
	registerGovernanceHandlers(hdlrs, logger, m)
	registerDonationHandlers(hdlrs, logger, m)
	return hdlrs
}

func requireAmount(a *uint256.Int) error {
	if a == nil || a.IsZero() {
		return types.ErrZeroAmount
	}
	return nil
}
