package service

import (
	"testing"
	"time"

	cmtlog "github.com/cometbft/cometbft/libs/log"
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/calehh/gp-node/governance"
	"github.com/calehh/gp-node/state"
	"github.com/calehh/gp-node/token"
	"github.com/calehh/gp-node/types"
	"github.com/calehh/gp-node/vault"
)

const (
	votingPeriod = 7200
	tierAmount   = 10_000_000
	tierPeriod   = 1_209_600
	reference    = "ipfs/url"
)

var (
	owner     = common.HexToAddress("0x0e")
	recipient = common.HexToAddress("0x4ec")
	voter     = common.HexToAddress("0xa11ce")
	donor     = common.HexToAddress("0xb0b")
	stranger  = common.HexToAddress("0x5a")

	genesisTime = time.Unix(1_700_000_000, 0)
)

type fixture struct {
	st      *state.State
	gov     *governance.Engine
	vault   *vault.Vault
	service *Service
	stable  *token.Ledger
	height  uint64
	now     time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	logger := cmtlog.NewNopLogger()
	db, err := state.NewMemStateDB(logger)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	st := db.NewState()

	gp := token.NewGovernance()
	stable := token.NewStable(false)
	gov := governance.NewEngine(logger, gp, governance.Params{VotingPeriod: votingPeriod, QuorumNumerator: 4})
	v := vault.New(logger, gp, stable, vault.Params{SponsorRateBP: 10000})
	gov.RegisterExecutor(vault.ActionOpenDonation, v)

	gp.Roles.SetOwner(st, owner)
	require.NoError(t, gp.Roles.GrantGenesis(st, types.VaultAddress))
	v.Roles.SetOwner(st, owner)
	require.NoError(t, v.Roles.GrantGenesis(st, types.GovernanceAddress))
	require.NoError(t, v.Roles.GrantGenesis(st, types.ServiceAddress))
	require.NoError(t, v.Roles.GrantGenesis(st, owner))

	require.NoError(t, gp.MintGenesis(st, voter, uint256.NewInt(1_000_000)))
	require.NoError(t, gp.Delegate(st, types.Env{Sender: voter}, voter))
	require.NoError(t, stable.MintGenesis(st, donor, uint256.NewInt(tierAmount)))
	require.NoError(t, stable.Approve(st, types.Env{Sender: donor}, types.VaultAddress, uint256.NewInt(tierAmount)))

	return &fixture{
		st:      st,
		gov:     gov,
		vault:   v,
		service: New(logger, gov, v, DefaultTiers()),
		stable:  stable,
		height:  1,
		now:     genesisTime,
	}
}

func (f *fixture) env(sender common.Address) types.Env {
	return types.Env{Sender: sender, Height: f.height, Time: f.now}
}

// mine advances the chain by n blocks of 12 seconds.
func (f *fixture) mine(n uint64) {
	f.height += n
	f.now = f.now.Add(time.Duration(n) * 12 * time.Second)
}

func (f *fixture) request(t *testing.T, ref string) *Request {
	t.Helper()
	r, err := f.service.AddDonationProposal(f.st, f.env(voter), uint256.NewInt(tierAmount), tierPeriod, recipient, ref)
	require.NoError(t, err)
	return r
}

// approve proposes, votes and executes a donation, leaving it open in the vault.
func (f *fixture) approve(t *testing.T, ref string) uint64 {
	t.Helper()
	r := f.request(t, ref)
	f.mine(1)
	_, err := f.gov.CastVote(f.st, f.env(voter), r.Proposal, governance.SupportFor)
	require.NoError(t, err)
	f.mine(votingPeriod + 1)
	require.NoError(t, f.service.ExecuteAddDonationProposal(f.st, f.env(stranger), r.Id))
	return r.Id
}

func (f *fixture) status(t *testing.T, id uint64) vault.Status {
	t.Helper()
	s, err := f.vault.GetCurrentStatus(f.st, f.env(stranger), id)
	require.NoError(t, err)
	return s
}

func TestScenarioAProposeVoteExecute(t *testing.T) {
	f := newFixture(t)
	r := f.request(t, reference)
	assert.Equal(t, uint64(0), r.Id)

	n, err := f.service.AddLength(f.st)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), n)
	pid, err := f.service.GetAddProposalIds(f.st, r.Id)
	require.NoError(t, err)
	action := vault.EncodeOpenAction(r.Id, uint256.NewInt(tierAmount), tierPeriod, recipient, reference)
	assert.Equal(t, governance.ProposalID(types.ServiceAddress, action, reference), pid)

	_, err = f.vault.GetCurrentStatus(f.st, f.env(stranger), r.Id)
	require.ErrorIs(t, err, types.ErrUnknownDonation)
	view, err := f.service.GetDonation(f.st, f.env(stranger), r.Id)
	require.NoError(t, err)
	assert.Equal(t, vault.StatusPending, view.Status)

	f.mine(1)
	_, err = f.gov.CastVote(f.st, f.env(voter), pid, governance.SupportFor)
	require.NoError(t, err)
	tally, err := f.gov.ProposalVotes(f.st, pid)
	require.NoError(t, err)
	assert.Equal(t, uint64(1_000_000), tally.For.Uint64())

	err = f.service.ExecuteAddDonationProposal(f.st, f.env(stranger), r.Id)
	require.ErrorIs(t, err, types.ErrNotSucceeded)

	f.mine(votingPeriod + 1)
	require.NoError(t, f.service.ExecuteAddDonationProposal(f.st, f.env(stranger), r.Id))
	assert.Equal(t, vault.StatusOpen, f.status(t, r.Id))
	ps, err := f.gov.State(f.st, f.env(stranger), pid)
	require.NoError(t, err)
	assert.Equal(t, governance.StateExecuted, ps)

	_, err = f.gov.CastVote(f.st, f.env(donor), pid, governance.SupportFor)
	require.ErrorIs(t, err, types.ErrVotingClosed)
	require.ErrorIs(t, f.service.ExecuteAddDonationProposal(f.st, f.env(stranger), r.Id), types.ErrAlreadyExecuted)
}

func TestScenarioBFundedOnlyAfterPeriod(t *testing.T) {
	f := newFixture(t)
	id := f.approve(t, reference)

	_, err := f.vault.Donate(f.st, f.env(donor), id, uint256.NewInt(tierAmount))
	require.NoError(t, err)
	assert.Equal(t, vault.StatusOpen, f.status(t, id))
	assert.Equal(t, vault.StatusOpen, f.status(t, id))

	f.now = f.now.Add(tierPeriod * time.Second)
	assert.Equal(t, vault.StatusFunded, f.status(t, id))
	d, err := f.vault.GetDonateProposal(f.st, id)
	require.NoError(t, err)
	assert.Equal(t, vault.StatusOpen, d.Status)
}

func TestScenarioCClaimOnce(t *testing.T) {
	f := newFixture(t)
	id := f.approve(t, reference)
	_, err := f.vault.Donate(f.st, f.env(donor), id, uint256.NewInt(tierAmount))
	require.NoError(t, err)

	_, err = f.vault.Claim(f.st, f.env(stranger), id)
	require.ErrorIs(t, err, types.ErrNotFunded)

	f.now = f.now.Add(tierPeriod * time.Second)
	_, err = f.vault.Claim(f.st, f.env(stranger), id)
	require.NoError(t, err)
	received, err := f.stable.BalanceOf(f.st, recipient)
	require.NoError(t, err)
	assert.Equal(t, uint64(tierAmount), received.Uint64())

	_, err = f.vault.Claim(f.st, f.env(stranger), id)
	require.ErrorIs(t, err, types.ErrAlreadyClaimed)
	received, err = f.stable.BalanceOf(f.st, recipient)
	require.NoError(t, err)
	assert.Equal(t, uint64(tierAmount), received.Uint64())
}

func TestScenarioDInvalidTier(t *testing.T) {
	f := newFixture(t)
	cases := []struct {
		amount uint64
		period uint64
	}{
		{amount: 1, period: tierPeriod},
		{amount: tierAmount, period: 2_419_200},
		{amount: 100_000_000, period: 1_209_600},
	}
	for _, c := range cases {
		_, err := f.service.AddDonationProposal(f.st, f.env(voter), uint256.NewInt(c.amount), c.period, recipient, reference)
		require.ErrorIs(t, err, types.ErrInvalidTier)
		assert.Equal(t, types.KindValidation, types.KindOf(err))
	}
	n, err := f.service.AddLength(f.st)
	require.NoError(t, err)
	assert.Equal(t, uint64(0), n)

	for i, amount := range f.service.GetTargetAmounts() {
		_, err := f.service.AddDonationProposal(f.st, f.env(voter), amount, f.service.GetTargetPeriods()[i], recipient, reference+string(rune('a'+i)))
		require.NoError(t, err)
	}
}

func TestScenarioEAlreadyVoted(t *testing.T) {
	f := newFixture(t)
	r := f.request(t, reference)
	f.mine(1)
	_, err := f.gov.CastVote(f.st, f.env(voter), r.Proposal, governance.SupportFor)
	require.NoError(t, err)
	_, err = f.gov.CastVote(f.st, f.env(voter), r.Proposal, governance.SupportFor)
	require.ErrorIs(t, err, types.ErrAlreadyVoted)
	voted, err := f.gov.HasVoted(f.st, r.Proposal, voter)
	require.NoError(t, err)
	assert.True(t, voted)
}

func TestDuplicateReference(t *testing.T) {
	f := newFixture(t)
	f.request(t, reference)
	_, err := f.service.AddDonationProposal(f.st, f.env(voter), uint256.NewInt(tierAmount), tierPeriod, recipient, reference)
	require.ErrorIs(t, err, types.ErrDuplicateReference)

	f2 := newFixture(t)
	f2.approve(t, reference)
	_, err = f2.service.AddDonationProposal(f2.st, f2.env(voter), uint256.NewInt(tierAmount), tierPeriod, recipient, reference)
	require.ErrorIs(t, err, types.ErrDuplicateReference)
}

func TestAbortPendingProposal(t *testing.T) {
	f := newFixture(t)
	r := f.request(t, reference)
	require.ErrorIs(t, f.service.AbortDonationProposal(f.st, f.env(stranger), r.Id), types.ErrNotRequester)
	require.NoError(t, f.service.AbortDonationProposal(f.st, f.env(voter), r.Id))

	ps, err := f.gov.State(f.st, f.env(stranger), r.Proposal)
	require.NoError(t, err)
	assert.Equal(t, governance.StateCanceled, ps)
	view, err := f.service.GetDonation(f.st, f.env(stranger), r.Id)
	require.NoError(t, err)
	assert.Equal(t, vault.StatusAborted, view.Status)

	f.mine(votingPeriod + 2)
	require.ErrorIs(t, f.service.ExecuteAddDonationProposal(f.st, f.env(stranger), r.Id), types.ErrNotSucceeded)

	// the reference is free again
	again := f.request(t, reference)
	assert.Equal(t, uint64(1), again.Id)
}

func TestAbortOpenDonation(t *testing.T) {
	f := newFixture(t)
	id := f.approve(t, reference)
	_, err := f.vault.Donate(f.st, f.env(donor), id, uint256.NewInt(1000))
	require.NoError(t, err)

	require.NoError(t, f.service.AbortDonationProposal(f.st, f.env(owner), id))
	assert.Equal(t, vault.StatusAborted, f.status(t, id))
	refunded, err := f.vault.Refund(f.st, f.env(donor), id)
	require.NoError(t, err)
	assert.Equal(t, uint64(1000), refunded.Uint64())
}

func TestAbortOpenDonationNeedsVaultRole(t *testing.T) {
	f := newFixture(t)
	id := f.approve(t, reference)
	_, err := f.vault.Donate(f.st, f.env(donor), id, uint256.NewInt(1000))
	require.NoError(t, err)

	requester, err := f.service.GetRequest(f.st, id)
	require.NoError(t, err)
	require.Equal(t, voter, requester.Requester)
	err = f.service.AbortDonationProposal(f.st, f.env(voter), id)
	require.ErrorIs(t, err, types.ErrMissingGovernanceRole)
	require.ErrorIs(t, f.service.AbortDonationProposal(f.st, f.env(stranger), id), types.ErrMissingGovernanceRole)
	assert.Equal(t, vault.StatusOpen, f.status(t, id))
}

func TestDonationViews(t *testing.T) {
	f := newFixture(t)
	opened := f.approve(t, reference)
	pending := f.request(t, "ipfs/pending")

	list, err := f.service.GetDonationList(f.st, f.env(stranger))
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, vault.StatusOpen, list[opened].Status)
	assert.Equal(t, vault.StatusPending, list[pending.Id].Status)

	view, err := f.service.GetDonationByKey(f.st, f.env(stranger), "ipfs/pending")
	require.NoError(t, err)
	assert.Equal(t, pending.Id, view.Id)
	view, err = f.service.GetDonationByKey(f.st, f.env(stranger), reference)
	require.NoError(t, err)
	assert.Equal(t, opened, view.Id)
	_, err = f.service.GetDonationByKey(f.st, f.env(stranger), "ipfs/none")
	require.ErrorIs(t, err, types.ErrUnknownReference)
}
