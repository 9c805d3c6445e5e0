package vault

import (
	"testing"
	"time"

	cmtlog "github.com/cometbft/cometbft/libs/log"
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/calehh/gp-node/state"
	"github.com/calehh/gp-node/token"
	"github.com/calehh/gp-node/types"
)

var (
	owner     = common.HexToAddress("0x0e")
	fund      = common.HexToAddress("0xf0")
	recipient = common.HexToAddress("0x4ec")
	alice     = common.HexToAddress("0xa11ce")
	bob       = common.HexToAddress("0xb0b")

	start = time.Unix(1_700_000_000, 0)
)

const week = 7 * 24 * 3600

type fixture struct {
	st     *state.State
	vault  *Vault
	gp     *token.Ledger
	stable *token.Ledger
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db, err := state.NewMemStateDB(cmtlog.NewNopLogger())
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	st := db.NewState()

	gp := token.NewGovernance()
	stable := token.NewStable(false)
	gp.Roles.SetOwner(st, owner)
	require.NoError(t, gp.Roles.GrantGenesis(st, types.VaultAddress))
	v := New(cmtlog.NewNopLogger(), gp, stable, Params{Fund: fund, SponsorRateBP: 10000, DonateRewardBP: 500})
	v.Roles.SetOwner(st, owner)
	require.NoError(t, v.Roles.GrantGenesis(st, types.GovernanceAddress))

	for _, addr := range []common.Address{alice, bob} {
		require.NoError(t, stable.MintGenesis(st, addr, uint256.NewInt(1_000_000)))
		require.NoError(t, stable.Approve(st, types.Env{Sender: addr}, types.VaultAddress, uint256.NewInt(1_000_000)))
	}
	return &fixture{st: st, vault: v, gp: gp, stable: stable}
}

func env(sender common.Address, elapsed uint64) types.Env {
	return types.Env{Sender: sender, Height: 10, Time: start.Add(time.Duration(elapsed) * time.Second)}
}

func (f *fixture) open(t *testing.T, id uint64, amount uint64, reference string) *Donation {
	t.Helper()
	d, err := f.vault.Open(f.st, env(types.GovernanceAddress, 0), OpenRequest{
		Donation:  id,
		Amount:    uint256.NewInt(amount),
		Period:    week,
		Recipient: recipient,
		Reference: reference,
	})
	require.NoError(t, err)
	return d
}

func (f *fixture) stableBalance(t *testing.T, addr common.Address) uint64 {
	t.Helper()
	b, err := f.stable.BalanceOf(f.st, addr)
	require.NoError(t, err)
	return b.Uint64()
}

func TestDeriveStatus(t *testing.T) {
	target := uint256.NewInt(100)
	cases := []struct {
		name        string
		stored      Status
		contributed uint64
		now         uint64
		want        Status
	}{
		{"neither met", StatusOpen, 10, 50, StatusOpen},
		{"amount only", StatusOpen, 100, 50, StatusOpen},
		{"time only", StatusOpen, 10, 200, StatusOpen},
		{"both met", StatusOpen, 100, 110, StatusFunded},
		{"clock behind", StatusOpen, 100, 5, StatusOpen},
		{"claimed stays", StatusClaimed, 100, 500, StatusClaimed},
		{"aborted stays", StatusAborted, 100, 500, StatusAborted},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			got := DeriveStatus(c.stored, uint256.NewInt(c.contributed), target, 10, 100, c.now)
			assert.Equal(t, c.want, got)
			assert.Equal(t, got, DeriveStatus(c.stored, uint256.NewInt(c.contributed), target, 10, 100, c.now))
		})
	}
}

func TestOpenActionEncoding(t *testing.T) {
	action := EncodeOpenAction(3, uint256.NewInt(10_000_000), 1_209_600, recipient, "ipfs/url")
	require.Len(t, action, openActionLen)
	assert.Equal(t, ActionOpenDonation, action[0])
	assert.Equal(t, []byte{0, 0, 0, 0, 0, 0, 0, 3}, action[1:9])

	a, err := DecodeOpenAction(action)
	require.NoError(t, err)
	assert.Equal(t, uint64(3), a.Donation)
	assert.Equal(t, uint64(10_000_000), a.Amount.Uint64())
	assert.Equal(t, uint64(1_209_600), a.Period)
	assert.Equal(t, recipient, a.Recipient)

	_, err = DecodeOpenAction(action[:20])
	require.ErrorIs(t, err, types.ErrInvalidAction)
}

func TestOpenRequiresRoleAndUniqueReference(t *testing.T) {
	f := newFixture(t)
	req := OpenRequest{Donation: 0, Amount: uint256.NewInt(100), Period: week, Recipient: recipient, Reference: "ipfs/a"}
	_, err := f.vault.Open(f.st, env(alice, 0), req)
	require.ErrorIs(t, err, types.ErrMissingGovernanceRole)

	d := f.open(t, 0, 100, "ipfs/a")
	assert.Equal(t, StatusOpen, d.Status)
	assert.Equal(t, uint64(start.Unix()), d.OpenedAt)

	req.Donation = 1
	_, err = f.vault.Open(f.st, env(types.GovernanceAddress, 0), req)
	require.ErrorIs(t, err, types.ErrDuplicateReference)

	got, err := f.vault.GetDonationByKey(f.st, "ipfs/a")
	require.NoError(t, err)
	assert.Equal(t, uint64(0), got.Id)
	_, err = f.vault.GetDonationByKey(f.st, "ipfs/missing")
	require.ErrorIs(t, err, types.ErrUnknownReference)
	_, err = f.vault.GetDonateProposal(f.st, 7)
	require.ErrorIs(t, err, types.ErrUnknownDonation)

	require.NoError(t, f.vault.AddGovernanceRole(f.st, env(owner, 0), alice))
	f.open(t, 1, 100, "ipfs/b")
	list, err := f.vault.GetDonationList(f.st)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "ipfs/b", list[1].Reference)
}

func TestDonateClaimFlow(t *testing.T) {
	f := newFixture(t)
	f.open(t, 0, 1000, "ipfs/flow")

	_, err := f.vault.Donate(f.st, env(alice, 10), 0, uint256.NewInt(1001))
	require.ErrorIs(t, err, types.ErrTargetExceeded)
	_, err = f.vault.Donate(f.st, env(alice, 10), 9, uint256.NewInt(1))
	require.ErrorIs(t, err, types.ErrUnknownDonation)

	_, err = f.vault.Donate(f.st, env(alice, 10), 0, uint256.NewInt(600))
	require.NoError(t, err)
	d, err := f.vault.Donate(f.st, env(bob, 20), 0, uint256.NewInt(400))
	require.NoError(t, err)
	assert.Equal(t, uint64(1000), d.Contributed.Uint64())

	reward, err := f.gp.BalanceOf(f.st, alice)
	require.NoError(t, err)
	assert.Equal(t, uint64(30), reward.Uint64())

	s, err := f.vault.GetCurrentStatus(f.st, env(alice, 30), 0)
	require.NoError(t, err)
	assert.Equal(t, StatusOpen, s)
	_, err = f.vault.Claim(f.st, env(alice, 30), 0)
	require.ErrorIs(t, err, types.ErrNotFunded)
	_, err = f.vault.Donate(f.st, env(alice, 30), 0, uint256.NewInt(1))
	require.ErrorIs(t, err, types.ErrTargetExceeded)

	s, err = f.vault.GetCurrentStatus(f.st, env(alice, week), 0)
	require.NoError(t, err)
	assert.Equal(t, StatusFunded, s)
	_, err = f.vault.Donate(f.st, env(alice, week), 0, uint256.NewInt(1))
	require.ErrorIs(t, err, types.ErrNotOpen)

	_, err = f.vault.Claim(f.st, env(bob, week), 0)
	require.NoError(t, err)
	assert.Equal(t, uint64(1000), f.stableBalance(t, recipient))
	_, err = f.vault.Claim(f.st, env(bob, week+1), 0)
	require.ErrorIs(t, err, types.ErrAlreadyClaimed)
	assert.Equal(t, uint64(1000), f.stableBalance(t, recipient))
	assert.Equal(t, uint64(0), f.stableBalance(t, types.VaultAddress))
}

func TestDonateTransferFailure(t *testing.T) {
	f := newFixture(t)
	f.open(t, 0, 10_000_000, "ipfs/poor")
	_, err := f.vault.Donate(f.st, env(alice, 0), 0, uint256.NewInt(2_000_000))
	require.ErrorIs(t, err, types.ErrTransferFailed)
	assert.Equal(t, types.KindExternalTransfer, types.KindOf(err))
}

func TestAbortAndRefund(t *testing.T) {
	f := newFixture(t)
	f.open(t, 0, 1000, "ipfs/abort")
	_, err := f.vault.Donate(f.st, env(alice, 1), 0, uint256.NewInt(250))
	require.NoError(t, err)

	_, err = f.vault.Refund(f.st, env(alice, 2), 0)
	require.ErrorIs(t, err, types.ErrNotAborted)
	require.ErrorIs(t, f.vault.Abort(f.st, env(alice, 2), 0), types.ErrMissingGovernanceRole)
	require.NoError(t, f.vault.Abort(f.st, env(types.GovernanceAddress, 2), 0))
	require.ErrorIs(t, f.vault.Abort(f.st, env(types.GovernanceAddress, 3), 0), types.ErrNotOpen)

	_, err = f.vault.Donate(f.st, env(bob, 3), 0, uint256.NewInt(1))
	require.ErrorIs(t, err, types.ErrNotOpen)
	_, err = f.vault.Claim(f.st, env(bob, week*2), 0)
	require.ErrorIs(t, err, types.ErrNotFunded)

	refunded, err := f.vault.Refund(f.st, env(alice, 4), 0)
	require.NoError(t, err)
	assert.Equal(t, uint64(250), refunded.Uint64())
	assert.Equal(t, uint64(1_000_000), f.stableBalance(t, alice))
	_, err = f.vault.Refund(f.st, env(alice, 5), 0)
	require.ErrorIs(t, err, types.ErrNothingToRefund)
	_, err = f.vault.Refund(f.st, env(bob, 5), 0)
	require.ErrorIs(t, err, types.ErrNothingToRefund)

	d, err := f.vault.GetDonateProposal(f.st, 0)
	require.NoError(t, err)
	assert.Equal(t, uint64(250), d.Contributed.Uint64())
	assert.Equal(t, uint64(250), d.Refunded.Uint64())
}

func TestSponsorPool(t *testing.T) {
	f := newFixture(t)
	minted, err := f.vault.SponsorGp(f.st, env(alice, 0), uint256.NewInt(5000))
	require.NoError(t, err)
	assert.Equal(t, uint64(5000), minted.Uint64())

	gp, err := f.gp.BalanceOf(f.st, alice)
	require.NoError(t, err)
	assert.Equal(t, uint64(5000), gp.Uint64())
	sponsored, err := f.vault.Sponsored(f.st, alice)
	require.NoError(t, err)
	assert.Equal(t, uint64(5000), sponsored.Uint64())

	_, err = f.vault.SponsorGp(f.st, env(alice, 0), uint256.NewInt(0))
	require.ErrorIs(t, err, types.ErrZeroAmount)

	require.ErrorIs(t, f.vault.WithdrawSponsorPool(f.st, env(alice, 0), uint256.NewInt(1)), types.ErrMissingGovernanceRole)
	require.ErrorIs(t, f.vault.WithdrawSponsorPool(f.st, env(types.GovernanceAddress, 0), uint256.NewInt(5001)), types.ErrInsufficientPool)
	require.NoError(t, f.vault.WithdrawSponsorPool(f.st, env(types.GovernanceAddress, 0), uint256.NewInt(2000)))
	assert.Equal(t, uint64(2000), f.stableBalance(t, fund))
	pool, err := f.vault.SponsorPool(f.st)
	require.NoError(t, err)
	assert.Equal(t, uint64(3000), pool.Uint64())
	assert.Equal(t, uint64(3000), f.stableBalance(t, types.VaultAddress))
}
