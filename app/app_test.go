package app

import (
	"context"
	"crypto/ecdsa"
	"encoding/json"
	"testing"
	"time"

	"github.com/calehh/gp-node/service"
	"github.com/calehh/gp-node/state"
	"github.com/calehh/gp-node/tx"
	"github.com/calehh/gp-node/types"
	"github.com/calehh/gp-node/vault"
	abcitypes "github.com/cometbft/cometbft/abci/types"
	"github.com/cometbft/cometbft/crypto/ed25519"
	cmtlog "github.com/cometbft/cometbft/libs/log"
	"github.com/ethereum/go-ethereum/common"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/holiman/uint256"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testChainID = "gp-test"
	tierAmount  = 10_000_000
	tierPeriod  = 1_209_600
)

type testKeys struct {
	owner, voter, donor, requester *ecdsa.PrivateKey
	recipient                      common.Address
}

func newTestKeys(t *testing.T) *testKeys {
	t.Helper()
	gen := func() *ecdsa.PrivateKey {
		k, err := ethcrypto.GenerateKey()
		require.NoError(t, err)
		return k
	}
	return &testKeys{
		owner:     gen(),
		voter:     gen(),
		donor:     gen(),
		requester: gen(),
		recipient: common.HexToAddress("0x4ec"),
	}
}

func addr(k *ecdsa.PrivateKey) common.Address {
	return ethcrypto.PubkeyToAddress(k.PublicKey)
}

type testChain struct {
	t      *testing.T
	app    *GPApp
	height int64
	now    time.Time
	nonces map[common.Address]uint64
}

func newTestChain(t *testing.T, keys *testKeys) *testChain {
	t.Helper()
	logger := cmtlog.NewNopLogger()
	db, err := state.NewMemStateDB(logger)
	require.NoError(t, err)
	app, err := NewGPAppWithDB(db, logger, prometheus.NewRegistry())
	require.NoError(t, err)
	t.Cleanup(app.Stop)

	params := types.DefaultParams()
	params.VotingPeriod = 2
	gs := types.GenesisAppState{
		Owner:  addr(keys.owner).Hex(),
		Params: params,
		Balances: []types.GenesisBalance{
			{Address: addr(keys.voter).Hex(), Amount: "1000", Delegate: true},
			{Address: addr(keys.donor).Hex(), Asset: "usd", Amount: "20000000"},
		},
	}
	dat, err := json.Marshal(gs)
	require.NoError(t, err)

	genesisTime := time.Unix(1_700_000_000, 0)
	res, err := app.InitChain(context.Background(), &abcitypes.RequestInitChain{
		Time:          genesisTime,
		ChainId:       testChainID,
		AppStateBytes: dat,
		Validators: []abcitypes.ValidatorUpdate{
			abcitypes.UpdateValidator(ed25519.GenPrivKeyFromSecret([]byte("validator")).PubKey().Bytes(), types.DefaultPower, "ed25519"),
		},
	})
	require.NoError(t, err)
	require.NotEmpty(t, res.AppHash)
	return &testChain{t: t, app: app, now: genesisTime, nonces: make(map[common.Address]uint64)}
}

func (c *testChain) sign(key *ecdsa.PrivateKey, tp tx.GPTxType, payload any) []byte {
	from := addr(key)
	btx := &tx.GPTx{Version: tx.GPTxVersion0, Type: tp, Nonce: c.nonces[from], Tx: payload}
	require.NoError(c.t, btx.Sign(key, []byte(testChainID)))
	c.nonces[from]++
	dat, err := tx.MarshalGPTx(btx)
	require.NoError(c.t, err)
	return dat
}

func (c *testChain) blockAt(now time.Time, txs ...[]byte) (*abcitypes.ResponseFinalizeBlock, []*abcitypes.ExecTxResult) {
	c.height++
	c.now = now
	ctx := context.Background()
	res, err := c.app.FinalizeBlock(ctx, &abcitypes.RequestFinalizeBlock{
		Height: c.height,
		Time:   now,
		Txs:    txs,
		Hash:   ethcrypto.Keccak256([]byte{byte(c.height)}),
	})
	require.NoError(c.t, err)
	_, err = c.app.Commit(ctx, &abcitypes.RequestCommit{})
	require.NoError(c.t, err)
	return res, res.TxResults
}

func (c *testChain) block(txs ...[]byte) []*abcitypes.ExecTxResult {
	_, res := c.blockAt(c.now.Add(12*time.Second), txs...)
	return res
}

func (c *testChain) query(path string, args QueryArgs, out any) *abcitypes.ResponseQuery {
	dat, err := json.Marshal(args)
	require.NoError(c.t, err)
	res, err := c.app.Query(context.Background(), &abcitypes.RequestQuery{Path: path, Data: dat})
	require.NoError(c.t, err)
	if res.Code == 0 && out != nil {
		require.NoError(c.t, json.Unmarshal(res.Value, out))
	}
	return res
}

func requireOK(t *testing.T, results ...*abcitypes.ExecTxResult) {
	t.Helper()
	for i, r := range results {
		require.Zerof(t, r.Code, "tx %d failed: %s", i, r.Log)
	}
}

func TestDonationLifecycle(t *testing.T) {
	keys := newTestKeys(t)
	c := newTestChain(t, keys)

	res := c.block(c.sign(keys.requester, tx.GPTxTypeAddDonationProposal, &tx.AddDonationProposalTx{
		Amount:    uint256.NewInt(tierAmount),
		Period:    tierPeriod,
		Recipient: keys.recipient,
		Reference: "ipfs/url",
	}))
	requireOK(t, res...)
	require.NotEmpty(t, res[0].Events)
	assert.Equal(t, types.EventProposalCreatedType, res[0].Events[0].Type)

	var view service.DonationView
	require.Zero(t, c.query(QueryDonations, QueryArgs{Donation: 0}, &view).Code)
	assert.Equal(t, vault.StatusPending, view.Status)
	assert.Equal(t, addr(keys.requester), view.Requester)

	requireOK(t, c.block(c.sign(keys.voter, tx.GPTxTypeCastVote, &tx.CastVoteTx{Proposal: view.Proposal, Support: 1}))...)

	var voted HasVotedResult
	require.Zero(t, c.query(QueryHasVoted, QueryArgs{Proposal: view.Proposal, Address: addr(keys.voter)}, &voted).Code)
	assert.True(t, voted.Voted)
	assert.Equal(t, uint64(1000), voted.VotingBalance.Uint64())

	c.block()
	requireOK(t, c.block(c.sign(keys.owner, tx.GPTxTypeExecuteAddDonation, &tx.DonationTx{Donation: 0}))...)

	var p ProposalResult
	require.Zero(t, c.query(QueryProposals, QueryArgs{Proposal: view.Proposal}, &p).Code)
	assert.Equal(t, "Executed", p.State.String())

	requireOK(t, c.block(
		c.sign(keys.donor, tx.GPTxTypeApprove, &tx.ApproveTx{Asset: "usd", Spender: types.VaultAddress, Amount: uint256.NewInt(tierAmount)}),
		c.sign(keys.donor, tx.GPTxTypeDonate, &tx.DonateTx{Donation: 0, Amount: uint256.NewInt(tierAmount)}),
	)...)

	var status StatusResult
	require.Zero(t, c.query(QueryStatus, QueryArgs{Donation: 0}, &status).Code)
	assert.Equal(t, vault.StatusOpen, status.Status)

	_, res = c.blockAt(c.now.Add(tierPeriod*time.Second), c.sign(keys.voter, tx.GPTxTypeClaim, &tx.DonationTx{Donation: 0}))
	requireOK(t, res...)

	var bal BalanceResult
	require.Zero(t, c.query(QueryBalances, QueryArgs{Asset: "usd", Address: keys.recipient}, &bal).Code)
	assert.Equal(t, uint64(tierAmount), bal.Balance.Uint64())

	require.Zero(t, c.query(QueryStatus, QueryArgs{Donation: 0}, &status).Code)
	assert.Equal(t, vault.StatusClaimed, status.Status)

	var list []*service.DonationView
	require.Zero(t, c.query(QueryDonationList, QueryArgs{}, &list).Code)
	require.Len(t, list, 1)
	assert.True(t, list[0].Claimed)
}

func TestFailedTxConsumesNonce(t *testing.T) {
	keys := newTestKeys(t)
	c := newTestChain(t, keys)

	res := c.block(c.sign(keys.donor, tx.GPTxTypeDonate, &tx.DonateTx{Donation: 9, Amount: uint256.NewInt(1)}))
	require.Len(t, res, 1)
	assert.Equal(t, types.ABCICode(types.ErrUnknownDonation), res[0].Code)
	assert.Equal(t, types.Codespace, res[0].Codespace)
	assert.Empty(t, res[0].Events)

	var acnt state.Account
	require.Zero(t, c.query(QueryAccounts, QueryArgs{Address: addr(keys.donor)}, &acnt).Code)
	assert.Equal(t, uint64(1), acnt.Nonce)

	// replaying the same nonce is rejected without touching state
	c.nonces[addr(keys.donor)] = 0
	res = c.block(c.sign(keys.donor, tx.GPTxTypeTransfer, &tx.TransferTx{Asset: "usd", To: keys.recipient, Amount: uint256.NewInt(1)}))
	assert.Equal(t, types.ABCICode(types.ErrTxNonceInvalid), res[0].Code)

	var bal BalanceResult
	require.Zero(t, c.query(QueryBalances, QueryArgs{Asset: "usd", Address: keys.recipient}, &bal).Code)
	assert.True(t, bal.Balance.IsZero())
}

func TestCheckTx(t *testing.T) {
	keys := newTestKeys(t)
	c := newTestChain(t, keys)
	ctx := context.Background()

	good := c.sign(keys.donor, tx.GPTxTypeTransfer, &tx.TransferTx{Asset: "usd", To: keys.recipient, Amount: uint256.NewInt(5)})
	res, err := c.app.CheckTx(ctx, &abcitypes.RequestCheckTx{Tx: good})
	require.NoError(t, err)
	assert.Zero(t, res.Code, res.Log)

	zero := c.sign(keys.donor, tx.GPTxTypeTransfer, &tx.TransferTx{Asset: "usd", To: keys.recipient, Amount: uint256.NewInt(0)})
	res, err = c.app.CheckTx(ctx, &abcitypes.RequestCheckTx{Tx: zero})
	require.NoError(t, err)
	assert.Equal(t, types.ABCICode(types.ErrZeroAmount), res.Code)

	btx := &tx.GPTx{Type: tx.GPTxTypeDelegate, Tx: &tx.DelegateTx{Delegatee: keys.recipient}}
	require.NoError(t, btx.Sign(keys.voter, []byte("other-chain")))
	dat, err := tx.MarshalGPTx(btx)
	require.NoError(t, err)
	res, err = c.app.CheckTx(ctx, &abcitypes.RequestCheckTx{Tx: dat})
	require.NoError(t, err)
	assert.Equal(t, types.ABCICode(types.ErrTxSigInvalid), res.Code)

	pres, err := c.app.ProcessProposal(ctx, &abcitypes.RequestProcessProposal{Txs: [][]byte{good, dat}})
	require.NoError(t, err)
	assert.Equal(t, abcitypes.ResponseProcessProposal_REJECT, pres.Status)

	prep, err := c.app.PrepareProposal(ctx, &abcitypes.RequestPrepareProposal{Txs: [][]byte{good, dat}, MaxTxBytes: 1 << 20})
	require.NoError(t, err)
	assert.Equal(t, [][]byte{good}, prep.Txs)
}

func TestDeterministicAppHash(t *testing.T) {
	keys := newTestKeys(t)
	a := newTestChain(t, keys)
	b := newTestChain(t, keys)

	stx := a.sign(keys.voter, tx.GPTxTypeTransfer, &tx.TransferTx{Asset: "gp", To: keys.recipient, Amount: uint256.NewInt(10)})
	ra, _ := a.blockAt(a.now.Add(time.Second), stx)
	rb, _ := b.blockAt(a.now, stx)
	assert.Equal(t, ra.AppHash, rb.AppHash)

	info, err := a.app.Info(context.Background(), &abcitypes.RequestInfo{})
	require.NoError(t, err)
	assert.Equal(t, int64(1), info.LastBlockHeight)
	assert.Equal(t, ra.AppHash, info.LastBlockAppHash)
}

func TestQueries(t *testing.T) {
	keys := newTestKeys(t)
	c := newTestChain(t, keys)

	res, err := c.app.Query(context.Background(), &abcitypes.RequestQuery{Path: "/nothing"})
	require.NoError(t, err)
	assert.Equal(t, uint32(404), res.Code)

	var tiers service.Tiers
	require.Zero(t, c.query(QueryTiers, QueryArgs{}, &tiers).Code)
	require.Len(t, tiers.Amounts, 3)
	assert.Equal(t, uint64(tierPeriod), tiers.Periods[0])

	var bal BalanceResult
	require.Zero(t, c.query(QueryBalances, QueryArgs{Address: addr(keys.voter)}, &bal).Code)
	assert.Equal(t, uint64(1000), bal.Votes.Uint64())
	assert.Equal(t, addr(keys.voter), bal.Delegate)

	var vals []state.Validator
	require.Zero(t, c.query(QueryValidators, QueryArgs{}, &vals).Code)
	require.Len(t, vals, 1)
	assert.Equal(t, uint64(types.DefaultPower), vals[0].Power)

	var params types.Params
	require.Zero(t, c.query(QueryParams, QueryArgs{}, &params).Code)
	assert.Equal(t, uint64(2), params.VotingPeriod)

	q := c.query(QueryDonationByKey, QueryArgs{Reference: "missing"}, nil)
	assert.Equal(t, types.ABCICode(types.ErrUnknownReference), q.Code)
}
