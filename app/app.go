package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/calehh/gp-node/config"
	"github.com/calehh/gp-node/state"
	"github.com/calehh/gp-node/tx"
	"github.com/calehh/gp-node/tx/handler"
	"github.com/calehh/gp-node/types"
	abcitypes "github.com/cometbft/cometbft/abci/types"
	cmtlog "github.com/cometbft/cometbft/libs/log"
	"github.com/cometbft/cometbft/store"
	"github.com/ethereum/go-ethereum/common"
	"github.com/prometheus/client_golang/prometheus"
)

var ErrNotInitialized = errors.New("chain not initialized")

type finalizeBlock struct {
	Height uint64
	Hash   common.Hash
}

func (b *finalizeBlock) Set(blk *abcitypes.RequestFinalizeBlock) {
	b.Height = uint64(blk.Height)
	b.Hash = common.BytesToHash(blk.Hash)
}

var _ abcitypes.Application = &GPApp{}

type GPApp struct {
	logger cmtlog.Logger

	db       *state.StateDB
	lastBlk  finalizeBlock
	modules  *handler.Modules
	txHdlrs  map[tx.GPTxType]handler.TxHandler
	queriers map[string]Querier
	metrics  appMetrics

	st *state.State
}

func NewGPApp(cfg *config.AppConfig, logger cmtlog.Logger, reg prometheus.Registerer) (app *GPApp, err error) {
	db, err := state.NewStateDB(cfg.Home+"/data", logger)
	if err != nil {
		return nil, err
	}
	return NewGPAppWithDB(db, logger, reg)
}

// NewGPAppWithDB serves an already opened state database. Modules are
// restored from the params stored at genesis when the chain exists.
func NewGPAppWithDB(db *state.StateDB, logger cmtlog.Logger, reg prometheus.Registerer) (app *GPApp, err error) {
	app = &GPApp{
		logger:   logger.With("module", "app"),
		db:       db,
		queriers: make(map[string]Querier),
	}
	app.metrics.init(reg)
	app.registerQuerier()

	p, err := loadParams(db.State())
	if err != nil {
		return nil, err
	}
	if p != nil {
		if err = app.setup(*p); err != nil {
			return nil, err
		}
	}
	return
}

func (app *GPApp) setup(p types.Params) error {
	m, err := NewModules(app.logger, p)
	if err != nil {
		return err
	}
	app.modules = m
	app.txHdlrs = handler.Handlers(app.logger, m)
	return nil
}

func (app *GPApp) Start(bs *store.BlockStore) {
	height := app.db.Header().Height
	if height > 0 {
		blk := bs.LoadBlock(int64(height))
		if blk == nil {
			panic("unexpected BlockStore")
		}
		app.lastBlk.Height = height
		app.lastBlk.Hash = common.BytesToHash(blk.Hash())
	}
}

func (app *GPApp) Stop() {
	err := app.db.Close()
	if err != nil {
		app.logger.Error("close db fail", "err", err)
	}
	app.logger.Info("gp app stopped")
}

func (app *GPApp) InitChain(_ context.Context, chain *abcitypes.RequestInitChain) (res *abcitypes.ResponseInitChain, err error) {
	var gs types.GenesisAppState
	if err = json.Unmarshal(chain.AppStateBytes, &gs); err != nil {
		app.logger.Error("InitChain decode app_state fail", "err", err)
		return nil, fmt.Errorf("decoding app_state: %w", err)
	}
	if err = app.setup(gs.Params); err != nil {
		app.logger.Error("InitChain setup modules fail", "err", err)
		return nil, err
	}
	st := app.db.NewState()
	st.SetChainId(chain.ChainId)
	st.SetBlock(0, uint64(chain.Time.Unix()))
	for _, v := range chain.Validators {
		if err = st.AddValidator(v.PubKey.GetEd25519(), uint64(v.Power)); err != nil {
			app.logger.Error("InitChain add validator fail", "err", err)
			return nil, err
		}
	}
	if err = InitGenesis(st, app.modules, &gs); err != nil {
		app.logger.Error("InitChain genesis fail", "err", err)
		return nil, err
	}
	_, err = st.Update()
	if err != nil {
		app.logger.Error("InitChain update state fail", "err", err)
		return nil, err
	}
	h, err := app.db.SetState(st)
	if err != nil {
		app.logger.Error("InitChain apply state fail", "err", err)
		return nil, err
	}
	app.logger.Info("chain initialized", "chainId", chain.ChainId, "owner", gs.Owner, "balances", len(gs.Balances))
	return &abcitypes.ResponseInitChain{
		AppHash: h.Bytes(),
	}, nil
}

func (app *GPApp) Info(ctx context.Context, info *abcitypes.RequestInfo) (*abcitypes.ResponseInfo, error) {
	header := app.db.Header()
	return &abcitypes.ResponseInfo{
		Version:          Version,
		AppVersion:       AppVersion,
		LastBlockHeight:  int64(header.Height),
		LastBlockAppHash: header.Hash,
	}, nil
}

func (app *GPApp) ExtendVote(_ context.Context, extend *abcitypes.RequestExtendVote) (*abcitypes.ResponseExtendVote, error) {
	return &abcitypes.ResponseExtendVote{}, nil
}

func (app *GPApp) VerifyVoteExtension(_ context.Context, verify *abcitypes.RequestVerifyVoteExtension) (*abcitypes.ResponseVerifyVoteExtension, error) {
	return &abcitypes.ResponseVerifyVoteExtension{Status: abcitypes.ResponseVerifyVoteExtension_ACCEPT}, nil
}

func (app *GPApp) ApplySnapshotChunk(context.Context, *abcitypes.RequestApplySnapshotChunk) (*abcitypes.ResponseApplySnapshotChunk, error) {
	return &abcitypes.ResponseApplySnapshotChunk{}, nil
}

func (app *GPApp) ListSnapshots(context.Context, *abcitypes.RequestListSnapshots) (*abcitypes.ResponseListSnapshots, error) {
	return &abcitypes.ResponseListSnapshots{}, nil
}

func (app *GPApp) LoadSnapshotChunk(context.Context, *abcitypes.RequestLoadSnapshotChunk) (*abcitypes.ResponseLoadSnapshotChunk, error) {
	return &abcitypes.ResponseLoadSnapshotChunk{}, nil
}

func (app *GPApp) OfferSnapshot(context.Context, *abcitypes.RequestOfferSnapshot) (*abcitypes.ResponseOfferSnapshot, error) {
	return &abcitypes.ResponseOfferSnapshot{}, nil
}
