// Package vault escrows funding-asset contributions for donations opened
// by governance and releases them to the recipient once funded.
package vault

import (
	"fmt"

	"github.com/calehh/gp-node/state"
	"github.com/calehh/gp-node/token"
	"github.com/calehh/gp-node/types"
	cmtlog "github.com/cometbft/cometbft/libs/log"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/holiman/uint256"
)

const (
	keyDonation     = "v/d/%d"
	keyReference    = "v/r/%x"
	keyDonationN    = "v/n"
	keyDonationList = "v/l/%d"
	keySponsor      = "v/s/%x"
	keySponsorPool  = "v/pool"
	keyContribution = "v/c/%d/%x"
	keyRefunded     = "v/rf/%d/%x"
)

type Params struct {
	Fund           common.Address `json:"fund"`
	SponsorRateBP  uint64         `json:"sponsorRateBP"`
	DonateRewardBP uint64         `json:"donateRewardBP"`
}

type Donation struct {
	Id          uint64         `json:"id"`
	Amount      *uint256.Int   `json:"amount"`
	Period      uint64         `json:"period"`
	Recipient   common.Address `json:"recipient"`
	Reference   string         `json:"reference"`
	Contributed *uint256.Int   `json:"contributed"`
	Refunded    *uint256.Int   `json:"refunded"`
	OpenedAt    uint64         `json:"openedAt"`
	Status      Status         `json:"status"`
	Claimed     bool           `json:"claimed"`
}

// StatusAt derives the record status at time now.
func (d *Donation) StatusAt(now uint64) Status {
	return DeriveStatus(d.Status, d.Contributed, d.Amount, d.OpenedAt, d.Period, now)
}

type OpenRequest struct {
	Donation  uint64
	Amount    *uint256.Int
	Period    uint64
	Recipient common.Address
	Reference string
}

type Vault struct {
	logger cmtlog.Logger
	gp     *token.Ledger
	stable *token.Ledger
	params Params

	Roles state.RoleSet
}

func New(logger cmtlog.Logger, gp, stable *token.Ledger, params Params) *Vault {
	return &Vault{
		logger: logger.With("module", "vault"),
		gp:     gp,
		stable: stable,
		params: params,
		Roles:  state.NewRoleSet("v"),
	}
}

func (v *Vault) Params() Params {
	return v.params
}

func (v *Vault) self(env types.Env) types.Env {
	return env.As(types.VaultAddress)
}

func referenceKey(reference string) []byte {
	return []byte(fmt.Sprintf(keyReference, crypto.Keccak256([]byte(reference))))
}

func (v *Vault) load(st *state.State, id uint64) (*Donation, error) {
	d := new(Donation)
	ok, err := st.GetObject([]byte(fmt.Sprintf(keyDonation, id)), d)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w: %d", types.ErrUnknownDonation, id)
	}
	return d, nil
}

func (v *Vault) store(st *state.State, d *Donation) error {
	return st.SetObject([]byte(fmt.Sprintf(keyDonation, d.Id)), d)
}

// HasReference reports whether a record was ever opened under reference.
func (v *Vault) HasReference(st *state.State, reference string) (bool, error) {
	val, err := st.Get(referenceKey(reference))
	return val != nil, err
}

// Open creates the record for a governance-approved donation. The sender
// must hold the vault's governance role.
func (v *Vault) Open(st *state.State, env types.Env, req OpenRequest) (*Donation, error) {
	if err := v.Roles.Require(st, env.Sender); err != nil {
		return nil, err
	}
	switch {
	case req.Amount == nil || req.Amount.IsZero():
		return nil, types.ErrZeroAmount
	case req.Recipient == (common.Address{}):
		return nil, types.ErrZeroAddress
	case req.Reference == "":
		return nil, types.ErrEmptyReference
	}
	dup, err := v.HasReference(st, req.Reference)
	if err != nil {
		return nil, err
	}
	if dup {
		return nil, fmt.Errorf("%w: %q", types.ErrDuplicateReference, req.Reference)
	}
	existing, err := st.Get([]byte(fmt.Sprintf(keyDonation, req.Donation)))
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, fmt.Errorf("%w: donation %d already open", types.ErrInvalidAction, req.Donation)
	}
	d := &Donation{
		Id:          req.Donation,
		Amount:      req.Amount.Clone(),
		Period:      req.Period,
		Recipient:   req.Recipient,
		Reference:   req.Reference,
		Contributed: types.Zero(),
		Refunded:    types.Zero(),
		OpenedAt:    env.Now(),
		Status:      StatusOpen,
	}
	if err = v.store(st, d); err != nil {
		return nil, err
	}
	st.SetUint64(referenceKey(req.Reference), d.Id)
	n, err := st.GetUint64([]byte(keyDonationN))
	if err != nil {
		return nil, err
	}
	st.SetUint64([]byte(fmt.Sprintf(keyDonationList, n)), d.Id)
	st.SetUint64([]byte(keyDonationN), n+1)
	st.Emit(types.EncodeEventDonation(types.EventDonationOpenedType, &types.EventDonation{
		Donation:  d.Id,
		Requester: env.Sender,
		Amount:    d.Amount,
		Period:    d.Period,
		Recipient: d.Recipient,
		Reference: d.Reference,
		OpenedAt:  d.OpenedAt,
	}))
	v.logger.Info("donation opened", "id", d.Id, "reference", d.Reference, "amount", d.Amount.Dec())
	return d, nil
}

// Execute applies an open-donation action on behalf of governance.
func (v *Vault) Execute(st *state.State, env types.Env, action []byte, description string) error {
	a, err := DecodeOpenAction(action)
	if err != nil {
		return err
	}
	if crypto.Keccak256Hash([]byte(description)) != a.ReferenceHash {
		return fmt.Errorf("%w: reference does not match action", types.ErrInvalidAction)
	}
	_, err = v.Open(st, env, OpenRequest{
		Donation:  a.Donation,
		Amount:    a.Amount,
		Period:    a.Period,
		Recipient: a.Recipient,
		Reference: description,
	})
	return err
}

func (v *Vault) pullIn(st *state.State, env types.Env, from common.Address, amount *uint256.Int) error {
	if err := v.stable.TransferFrom(st, v.self(env), from, types.VaultAddress, amount); err != nil {
		return fmt.Errorf("%w: %w", types.ErrTransferFailed, err)
	}
	return nil
}

func (v *Vault) pushOut(st *state.State, env types.Env, to common.Address, amount *uint256.Int) error {
	if err := v.stable.Transfer(st, v.self(env), to, amount); err != nil {
		return fmt.Errorf("%w: %w", types.ErrTransferFailed, err)
	}
	return nil
}

func (v *Vault) reward(st *state.State, env types.Env, to common.Address, amount *uint256.Int, bp uint64) (*uint256.Int, error) {
	minted, err := types.ScaleBP(amount, bp)
	if err != nil || minted.IsZero() {
		return minted, err
	}
	return minted, v.gp.Mint(st, v.self(env), to, minted)
}

// SponsorGp deposits amount into the general sponsor pool and mints voting
// tokens to the sponsor at the configured rate.
func (v *Vault) SponsorGp(st *state.State, env types.Env, amount *uint256.Int) (*uint256.Int, error) {
	if amount == nil || amount.IsZero() {
		return nil, types.ErrZeroAmount
	}
	if err := v.pullIn(st, env, env.Sender, amount); err != nil {
		return nil, err
	}
	sponsored, err := v.Sponsored(st, env.Sender)
	if err != nil {
		return nil, err
	}
	if sponsored, err = types.AddAmount(sponsored, amount); err != nil {
		return nil, err
	}
	pool, err := v.SponsorPool(st)
	if err != nil {
		return nil, err
	}
	if pool, err = types.AddAmount(pool, amount); err != nil {
		return nil, err
	}
	st.SetAmount([]byte(fmt.Sprintf(keySponsor, env.Sender.Bytes())), sponsored)
	st.SetAmount([]byte(keySponsorPool), pool)
	minted, err := v.reward(st, env, env.Sender, amount, v.params.SponsorRateBP)
	if err != nil {
		return nil, err
	}
	st.Emit(types.EncodeEventTransfer(types.EventSponsoredType, &types.EventTransfer{
		Account: env.Sender,
		Amount:  amount,
		Total:   sponsored,
		Minted:  minted,
	}))
	return minted, nil
}

func (v *Vault) Sponsored(st *state.State, sponsor common.Address) (*uint256.Int, error) {
	return st.GetAmount([]byte(fmt.Sprintf(keySponsor, sponsor.Bytes())))
}

func (v *Vault) SponsorPool(st *state.State) (*uint256.Int, error) {
	return st.GetAmount([]byte(keySponsorPool))
}

// WithdrawSponsorPool moves amount from the sponsor pool to the fund address.
func (v *Vault) WithdrawSponsorPool(st *state.State, env types.Env, amount *uint256.Int) error {
	if err := v.Roles.Require(st, env.Sender); err != nil {
		return err
	}
	if amount == nil || amount.IsZero() {
		return types.ErrZeroAmount
	}
	if v.params.Fund == (common.Address{}) {
		return fmt.Errorf("%w: no fund address configured", types.ErrZeroAddress)
	}
	pool, err := v.SponsorPool(st)
	if err != nil {
		return err
	}
	if pool.Lt(amount) {
		return fmt.Errorf("%w: pool holds %s", types.ErrInsufficientPool, pool.Dec())
	}
	if err = v.pushOut(st, env, v.params.Fund, amount); err != nil {
		return err
	}
	st.SetAmount([]byte(keySponsorPool), new(uint256.Int).Sub(pool, amount))
	return nil
}

// Donate contributes amount to an open record and mints the donor reward.
func (v *Vault) Donate(st *state.State, env types.Env, id uint64, amount *uint256.Int) (*Donation, error) {
	d, err := v.load(st, id)
	if err != nil {
		return nil, err
	}
	if s := d.StatusAt(env.Now()); s != StatusOpen {
		return nil, fmt.Errorf("%w: donation %d is %s", types.ErrNotOpen, id, s)
	}
	if amount == nil || amount.IsZero() {
		return nil, types.ErrZeroAmount
	}
	contributed, err := types.AddAmount(d.Contributed, amount)
	if err != nil {
		return nil, err
	}
	if contributed.Gt(d.Amount) {
		remaining := new(uint256.Int).Sub(d.Amount, d.Contributed)
		return nil, fmt.Errorf("%w: %s remaining", types.ErrTargetExceeded, remaining.Dec())
	}
	if err = v.pullIn(st, env, env.Sender, amount); err != nil {
		return nil, err
	}
	key := []byte(fmt.Sprintf(keyContribution, id, env.Sender.Bytes()))
	own, err := st.GetAmount(key)
	if err != nil {
		return nil, err
	}
	if own, err = types.AddAmount(own, amount); err != nil {
		return nil, err
	}
	st.SetAmount(key, own)
	d.Contributed = contributed
	if err = v.store(st, d); err != nil {
		return nil, err
	}
	minted, err := v.reward(st, env, env.Sender, amount, v.params.DonateRewardBP)
	if err != nil {
		return nil, err
	}
	st.Emit(types.EncodeEventTransfer(types.EventDonatedType, &types.EventTransfer{
		Donation: id,
		Account:  env.Sender,
		Amount:   amount,
		Total:    contributed,
		Minted:   minted,
	}))
	return d, nil
}

func (v *Vault) Contribution(st *state.State, id uint64, donor common.Address) (*uint256.Int, error) {
	return st.GetAmount([]byte(fmt.Sprintf(keyContribution, id, donor.Bytes())))
}

func (v *Vault) GetCurrentStatus(st *state.State, env types.Env, id uint64) (Status, error) {
	d, err := v.load(st, id)
	if err != nil {
		return 0, err
	}
	return d.StatusAt(env.Now()), nil
}

// Claim releases the contributed amount of a funded record to its recipient.
// Anyone may call it.
func (v *Vault) Claim(st *state.State, env types.Env, id uint64) (*Donation, error) {
	d, err := v.load(st, id)
	if err != nil {
		return nil, err
	}
	if d.Claimed {
		return nil, fmt.Errorf("%w: donation %d", types.ErrAlreadyClaimed, id)
	}
	if s := d.StatusAt(env.Now()); s != StatusFunded {
		return nil, fmt.Errorf("%w: donation %d is %s", types.ErrNotFunded, id, s)
	}
	if err = v.pushOut(st, env, d.Recipient, d.Contributed); err != nil {
		return nil, err
	}
	d.Claimed = true
	d.Status = StatusClaimed
	if err = v.store(st, d); err != nil {
		return nil, err
	}
	st.Emit(types.EncodeEventTransfer(types.EventDonationClaimedType, &types.EventTransfer{
		Donation: id,
		Account:  d.Recipient,
		Amount:   d.Contributed,
	}))
	v.logger.Info("donation claimed", "id", id, "recipient", d.Recipient.Hex(), "amount", d.Contributed.Dec())
	return d, nil
}

// Abort stops an open record. Donors recover their contributions with Refund.
func (v *Vault) Abort(st *state.State, env types.Env, id uint64) error {
	if err := v.Roles.Require(st, env.Sender); err != nil {
		return err
	}
	d, err := v.load(st, id)
	if err != nil {
		return err
	}
	if s := d.StatusAt(env.Now()); s != StatusOpen {
		return fmt.Errorf("%w: donation %d is %s", types.ErrNotOpen, id, s)
	}
	d.Status = StatusAborted
	if err = v.store(st, d); err != nil {
		return err
	}
	st.Emit(types.EncodeEventDonationAborted(&types.EventDonationAborted{Donation: id}))
	return nil
}

// Refund returns the sender's unrefunded contribution to an aborted record.
func (v *Vault) Refund(st *state.State, env types.Env, id uint64) (*uint256.Int, error) {
	d, err := v.load(st, id)
	if err != nil {
		return nil, err
	}
	if d.Status != StatusAborted {
		return nil, fmt.Errorf("%w: donation %d is %s", types.ErrNotAborted, id, d.StatusAt(env.Now()))
	}
	own, err := v.Contribution(st, id, env.Sender)
	if err != nil {
		return nil, err
	}
	refundKey := []byte(fmt.Sprintf(keyRefunded, id, env.Sender.Bytes()))
	done, err := st.Get(refundKey)
	if err != nil {
		return nil, err
	}
	if own.IsZero() || done != nil {
		return nil, fmt.Errorf("%w: donation %d", types.ErrNothingToRefund, id)
	}
	if err = v.pushOut(st, env, env.Sender, own); err != nil {
		return nil, err
	}
	st.Set(refundKey, []byte{1})
	if d.Refunded, err = types.AddAmount(d.Refunded, own); err != nil {
		return nil, err
	}
	if err = v.store(st, d); err != nil {
		return nil, err
	}
	st.Emit(types.EncodeEventTransfer(types.EventDonationRefundedType, &types.EventTransfer{
		Donation: id,
		Account:  env.Sender,
		Amount:   own,
	}))
	return own, nil
}

func (v *Vault) GetDonateProposal(st *state.State, id uint64) (*Donation, error) {
	return v.load(st, id)
}

// GetDonationList returns every opened record in opening order.
func (v *Vault) GetDonationList(st *state.State) ([]*Donation, error) {
	n, err := st.GetUint64([]byte(keyDonationN))
	if err != nil {
		return nil, err
	}
	list := make([]*Donation, 0, n)
	for i := uint64(0); i < n; i++ {
		id, err := st.GetUint64([]byte(fmt.Sprintf(keyDonationList, i)))
		if err != nil {
			return nil, err
		}
		d, err := v.load(st, id)
		if err != nil {
			return nil, err
		}
		list = append(list, d)
	}
	return list, nil
}

func (v *Vault) GetDonationByKey(st *state.State, reference string) (*Donation, error) {
	val, err := st.Get(referenceKey(reference))
	if err != nil {
		return nil, err
	}
	if val == nil {
		return nil, fmt.Errorf("%w: %q", types.ErrUnknownReference, reference)
	}
	id, err := st.GetUint64(referenceKey(reference))
	if err != nil {
		return nil, err
	}
	return v.load(st, id)
}

func (v *Vault) AddGovernanceRole(st *state.State, env types.Env, addr common.Address) error {
	if err := v.Roles.Grant(st, env, addr); err != nil {
		return err
	}
	st.Emit(types.EncodeEventRoleGranted(&types.EventRoleGranted{Component: types.ModuleVault, Account: addr}))
	return nil
}
