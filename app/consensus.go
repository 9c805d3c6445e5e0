package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/calehh/gp-node/state"
	"github.com/calehh/gp-node/tx"
	"github.com/calehh/gp-node/types"
	abcitypes "github.com/cometbft/cometbft/abci/types"
	"github.com/ethereum/go-ethereum/common"
)

var ErrUnexpectedTxProcess = errors.New("unexpected tx process")

func (app *GPApp) parseTx(st *state.State, txDat []byte, allowNonceGap bool) (btx *tx.GPTx, sender common.Address, err error) {
	btx, err = tx.UnmarshalGPTx(txDat)
	if err != nil {
		return
	}
	if btx.Version != tx.GPTxVersion0 {
		err = fmt.Errorf("%w: version %d", types.ErrInvalidTx, btx.Version)
		return
	}
	sender, err = st.Verify(btx, allowNonceGap)
	return
}

// signed reports whether txDat decodes to a tx with a valid signature. The
// nonce is not checked since earlier txs of the block may advance it.
func (app *GPApp) signed(txDat []byte) error {
	btx, err := tx.UnmarshalGPTx(txDat)
	if err != nil {
		return err
	}
	if _, ok := app.txHdlrs[btx.Type]; !ok {
		return fmt.Errorf("%w: %s", types.ErrUnsupportedTx, btx.Type)
	}
	_, err = btx.Sender([]byte(app.db.Header().ChainId))
	return err
}

func checkTxFail(err error) *abcitypes.ResponseCheckTx {
	return &abcitypes.ResponseCheckTx{
		Code:      types.ABCICode(err),
		Codespace: types.Codespace,
		Log:       err.Error(),
	}
}

func (app *GPApp) CheckTx(ctx context.Context, check *abcitypes.RequestCheckTx) (res *abcitypes.ResponseCheckTx, err error) {
	if app.modules == nil {
		return checkTxFail(ErrNotInitialized), nil
	}
	st := app.db.State()
	btx, _, err := app.parseTx(st, check.Tx, true)
	if err != nil {
		app.logger.Debug("check tx fail", "err", err)
		app.metrics.checkTxReject.Inc()
		return checkTxFail(err), nil
	}
	h, ok := app.txHdlrs[btx.Type]
	if !ok {
		app.metrics.checkTxReject.Inc()
		return checkTxFail(fmt.Errorf("%w: %s", types.ErrUnsupportedTx, btx.Type)), nil
	}
	res, err = h.Check(ctx, st, btx)
	if err != nil {
		app.logger.Error("check tx fail", "type", btx.Type, "err", err)
		res = checkTxFail(err)
		err = nil
	}
	if res.Code != 0 {
		app.metrics.checkTxReject.Inc()
	}
	return
}

func (app *GPApp) PrepareProposal(ctx context.Context, proposal *abcitypes.RequestPrepareProposal) (res *abcitypes.ResponsePrepareProposal, err error) {
	var size int64
	txs := make([][]byte, 0, len(proposal.Txs))
	for _, stx := range proposal.Txs {
		if err := app.signed(stx); err != nil {
			app.logger.Info("drop tx from proposal", "err", err)
			continue
		}
		size += int64(len(stx))
		if proposal.MaxTxBytes > 0 && size > proposal.MaxTxBytes {
			break
		}
		txs = append(txs, stx)
	}
	return &abcitypes.ResponsePrepareProposal{Txs: txs}, nil
}

func (app *GPApp) ProcessProposal(ctx context.Context, proposal *abcitypes.RequestProcessProposal) (res *abcitypes.ResponseProcessProposal, err error) {
	res = &abcitypes.ResponseProcessProposal{Status: abcitypes.ResponseProcessProposal_REJECT}
	for _, stx := range proposal.Txs {
		if err := app.signed(stx); err != nil {
			app.logger.Error("proposal rejected", "height", proposal.Height, "err", err)
			return res, nil
		}
	}
	res.Status = abcitypes.ResponseProcessProposal_ACCEPT
	return res, nil
}

func execTxFail(err error) *abcitypes.ExecTxResult {
	return &abcitypes.ExecTxResult{
		Code:      types.ABCICode(err),
		Codespace: types.Codespace,
		Log:       err.Error(),
	}
}

// deliver executes one tx of the block. Failed txs still consume the nonce
// of a verified sender but leave no other state change.
func (app *GPApp) deliver(ctx context.Context, st *state.State, env types.Env, stx []byte) (*abcitypes.ExecTxResult, string, error) {
	btx, sender, err := app.parseTx(st, stx, false)
	if err != nil {
		return execTxFail(err), tx.GPTxTypeUnknown.String(), nil
	}
	h, ok := app.txHdlrs[btx.Type]
	if !ok {
		return execTxFail(fmt.Errorf("%w: %s", types.ErrUnsupportedTx, btx.Type)), btx.Type.String(), nil
	}
	result, err := h.Process(ctx, st, env.As(sender), btx)
	if err != nil {
		app.logger.Error("unexpected process tx fail", "type", btx.Type, "err", err)
		return nil, "", fmt.Errorf("%w: %w", ErrUnexpectedTxProcess, err)
	}
	if err = st.IncrementNonce(sender); err != nil {
		return nil, "", err
	}
	return result, btx.Type.String(), nil
}

func (app *GPApp) FinalizeBlock(ctx context.Context, req *abcitypes.RequestFinalizeBlock) (*abcitypes.ResponseFinalizeBlock, error) {
	started := time.Now()
	if app.modules == nil {
		return nil, ErrNotInitialized
	}
	app.logger.Info("FinalizeBlock", "height", req.Height, "txs", len(req.Txs))
	app.lastBlk.Set(req)

	st := app.db.NewState()
	st.SetBlock(uint64(req.Height), uint64(req.Time.Unix()))
	env := types.Env{Height: uint64(req.Height), Time: req.Time}

	res := make([]*abcitypes.ExecTxResult, len(req.Txs))
	for i, stx := range req.Txs {
		result, txType, err := app.deliver(ctx, st, env, stx)
		if err != nil {
			return nil, err
		}
		names := make([]string, len(result.Events))
		for j, ev := range result.Events {
			names[j] = ev.Type
		}
		app.metrics.observeTx(txType, result.Code, names)
		res[i] = result
	}
	h, err := st.Update()
	if err != nil {
		app.logger.Error("state update hash fail", "err", err)
		return nil, err
	}
	app.st = st
	app.metrics.observeBlock(uint64(req.Height), started)
	return &abcitypes.ResponseFinalizeBlock{
		TxResults: res,
		AppHash:   h.Bytes(),
	}, nil
}

func (app *GPApp) Commit(ctx context.Context, commit *abcitypes.RequestCommit) (*abcitypes.ResponseCommit, error) {
	if app.st == nil {
		return nil, ErrUnexpectedTxProcess
	}
	_, err := app.db.SetState(app.st)
	if err != nil {
		return nil, err
	}
	app.st = nil
	app.logger.Info("Commit", "height", app.lastBlk.Height, "hash", app.lastBlk.Hash.Hex())
	return &abcitypes.ResponseCommit{}, nil
}
