package indexer

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/calehh/gp-node/types"
	abci "github.com/cometbft/cometbft/abci/types"
	cmtlog "github.com/cometbft/cometbft/libs/log"
	ctypes "github.com/cometbft/cometbft/rpc/core/types"
	"github.com/ethereum/go-ethereum/common"
	"github.com/gin-gonic/gin"
	"github.com/holiman/uint256"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	gin.SetMode(gin.TestMode)
	os.Exit(m.Run())
}

type fakeSource struct {
	blocks [][]*abci.ExecTxResult
}

func (f *fakeSource) Status(context.Context) (*ctypes.ResultStatus, error) {
	return &ctypes.ResultStatus{SyncInfo: ctypes.SyncInfo{LatestBlockHeight: int64(len(f.blocks))}}, nil
}

func (f *fakeSource) BlockResults(_ context.Context, height *int64) (*ctypes.ResultBlockResults, error) {
	return &ctypes.ResultBlockResults{Height: *height, TxsResults: f.blocks[*height-1]}, nil
}

func ok(events ...abci.Event) *abci.ExecTxResult {
	return &abci.ExecTxResult{Events: events}
}

var (
	proposalId = common.HexToHash("0xabc")
	requester  = common.HexToAddress("0x1")
	voter      = common.HexToAddress("0x2")
	donor      = common.HexToAddress("0x3")
	recipient  = common.HexToAddress("0x4ec")
)

func testBlocks() [][]*abci.ExecTxResult {
	donation := &types.EventDonation{
		Donation:  0,
		Proposal:  proposalId,
		Requester: requester,
		Amount:    uint256.NewInt(10),
		Period:    100,
		Recipient: recipient,
		Reference: "ipfs/url",
	}
	opened := *donation
	opened.OpenedAt = 1_700_000_000
	return [][]*abci.ExecTxResult{
		{ok(
			types.EncodeEventProposalCreated(&types.EventProposalCreated{Proposal: proposalId, Proposer: types.ServiceAddress, VoteStart: 1, VoteEnd: 3, Description: "ipfs/url"}),
			types.EncodeEventDonation(types.EventDonationRequestedType, donation),
		)},
		{ok(types.EncodeEventVoteCast(&types.EventVoteCast{Proposal: proposalId, Voter: voter, Support: 1, Weight: uint256.NewInt(1000)}))},
		{ok(
			types.EncodeEventProposal(types.EventProposalExecutedType, &types.EventProposal{Proposal: proposalId}),
			types.EncodeEventDonation(types.EventDonationOpenedType, &opened),
		)},
		{
			ok(types.EncodeEventTransfer(types.EventDonatedType, &types.EventTransfer{Donation: 0, Account: donor, Amount: uint256.NewInt(10), Total: uint256.NewInt(10), Minted: uint256.NewInt(0)})),
			{Code: 31, Events: []abci.Event{types.EncodeEventTransfer(types.EventDonatedType, &types.EventTransfer{Donation: 9, Account: donor, Amount: uint256.NewInt(1)})}},
		},
		{ok(types.EncodeEventTransfer(types.EventDonationClaimedType, &types.EventTransfer{Donation: 0, Account: recipient, Amount: uint256.NewInt(10)}))},
	}
}

func newSyncedIndexer(t *testing.T) *ChainIndexer {
	t.Helper()
	db, err := OpenDB(filepath.Join(t.TempDir(), "index.db"))
	require.NoError(t, err)
	c, err := NewChainIndexerWithSource(cmtlog.NewNopLogger(), db, &fakeSource{blocks: testBlocks()}, 0)
	require.NoError(t, err)
	require.NoError(t, c.Sync(context.Background()))
	return c
}

func TestSync(t *testing.T) {
	c := newSyncedIndexer(t)
	assert.Equal(t, int64(6), c.Height)

	p, err := c.getProposalById(proposalId.Hex())
	require.NoError(t, err)
	assert.Equal(t, "Executed", p.Status)
	assert.Equal(t, "1000", p.ForVotes)
	assert.Equal(t, "0", p.AgainstVotes)
	assert.Equal(t, uint64(3), p.SettleHeight)

	d, err := c.getDonationById(0)
	require.NoError(t, err)
	assert.Equal(t, "Claimed", d.Status)
	assert.Equal(t, "10", d.Contributed)
	assert.Equal(t, requester.Hex(), d.Requester)
	assert.Equal(t, uint64(1_700_000_000), d.OpenedAt)
	assert.Equal(t, uint64(5), d.SettleHeight)

	cs, total, err := c.getContributions("", nil, "", 0, 10)
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	require.Len(t, cs, 1)
	assert.Equal(t, ContributionDonate, cs[0].Kind)

	resumed, err := NewChainIndexerWithSource(cmtlog.NewNopLogger(), c.db, &fakeSource{}, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(6), resumed.Height)
}

func TestStartStopsOnCancel(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	db, err := OpenDB(filepath.Join(t.TempDir(), "index.db"))
	require.NoError(t, err)
	c, err := NewChainIndexerWithSource(cmtlog.NewNopLogger(), db, &fakeSource{blocks: testBlocks()}, 5*time.Millisecond)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		c.Start(ctx)
		close(done)
	}()
	require.Eventually(t, func() bool {
		var h Height
		return db.First(&h, 1).Error == nil && h.Height == 5
	}, 5*time.Second, 10*time.Millisecond)
	cancel()
	<-done

	sqlDB, err := db.DB()
	require.NoError(t, err)
	require.NoError(t, sqlDB.Close())
}

func post(t *testing.T, s *Service, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	dat, err := json.Marshal(body)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(dat))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)
	return w
}

func TestService(t *testing.T) {
	s := NewService("", newSyncedIndexer(t))

	w := post(t, s, "/getDonations", GetDonationsReq{Reference: "ipfs/url"})
	require.Equal(t, http.StatusOK, w.Code)
	var donations GetDonationsResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &donations))
	require.Len(t, donations.Donations, 1)
	assert.Equal(t, "Claimed", donations.Donations[0].Status)

	w = post(t, s, "/getProposals", GetProposalsReq{})
	require.Equal(t, http.StatusOK, w.Code)
	var proposals GetProposalsResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &proposals))
	assert.Equal(t, int64(1), proposals.Total)
	require.Len(t, proposals.Proposals[0].Votes, 1)
	assert.Equal(t, voter.Hex(), proposals.Proposals[0].Votes[0].Voter)

	w = post(t, s, "/getProposals", GetProposalsReq{ProposalId: common.HexToHash("0xdead").Hex()})
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = post(t, s, "/getVotes", GetVotesReq{})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = post(t, s, "/getContributions", GetContributionsReq{Account: donor.Hex()})
	require.Equal(t, http.StatusOK, w.Code)
	var cs GetContributionsResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &cs))
	assert.Equal(t, int64(1), cs.Total)
	assert.Equal(t, "10", cs.Contributions[0].Amount)
}
