// Package service turns donation requests into governance proposals and
// hands approved ones to the vault.
package service

import (
	"errors"
	"fmt"

	"github.com/calehh/gp-node/governance"
	"github.com/calehh/gp-node/state"
	"github.com/calehh/gp-node/types"
	"github.com/calehh/gp-node/vault"
	cmtlog "github.com/cometbft/cometbft/libs/log"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/holiman/uint256"
	"github.com/samber/lo"
)

const (
	keyLength    = "sv/n"
	keyRequest   = "sv/q/%d"
	keyReference = "sv/r/%x"
)

// Request is a donation the service has proposed to governance.
type Request struct {
	Id        uint64         `json:"id"`
	Proposal  common.Hash    `json:"proposal"`
	Requester common.Address `json:"requester"`
	Amount    *uint256.Int   `json:"amount"`
	Period    uint64         `json:"period"`
	Recipient common.Address `json:"recipient"`
	Reference string         `json:"reference"`
	Aborted   bool           `json:"aborted"`
}

// DonationView merges a request with its vault record, if one was opened.
type DonationView struct {
	Request
	Status      vault.Status `json:"status"`
	Contributed *uint256.Int `json:"contributed"`
	OpenedAt    uint64       `json:"openedAt"`
	Claimed     bool         `json:"claimed"`
}

type Service struct {
	logger cmtlog.Logger
	gov    *governance.Engine
	vault  *vault.Vault
	tiers  Tiers
}

func New(logger cmtlog.Logger, gov *governance.Engine, v *vault.Vault, tiers Tiers) *Service {
	return &Service{
		logger: logger.With("module", "service"),
		gov:    gov,
		vault:  v,
		tiers:  tiers.clone(),
	}
}

func (s *Service) self(env types.Env) types.Env {
	return env.As(types.ServiceAddress)
}

func (s *Service) GetTargetAmounts() []*uint256.Int {
	return s.tiers.clone().Amounts
}

func (s *Service) GetTargetPeriods() []uint64 {
	return s.tiers.clone().Periods
}

func (s *Service) AddLength(st *state.State) (uint64, error) {
	return st.GetUint64([]byte(keyLength))
}

func (s *Service) GetRequest(st *state.State, id uint64) (*Request, error) {
	r := new(Request)
	ok, err := st.GetObject([]byte(fmt.Sprintf(keyRequest, id)), r)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w: %d", types.ErrUnknownDonation, id)
	}
	return r, nil
}

func referenceKey(reference string) []byte {
	return []byte(fmt.Sprintf(keyReference, crypto.Keccak256([]byte(reference))))
}

// checkReference fails if reference belongs to an opened record or to a
// request whose proposal can still pass.
func (s *Service) checkReference(st *state.State, env types.Env, reference string) error {
	opened, err := s.vault.HasReference(st, reference)
	if err != nil {
		return err
	}
	if opened {
		return fmt.Errorf("%w: %q", types.ErrDuplicateReference, reference)
	}
	val, err := st.Get(referenceKey(reference))
	if err != nil || val == nil {
		return err
	}
	id, err := st.GetUint64(referenceKey(reference))
	if err != nil {
		return err
	}
	r, err := s.GetRequest(st, id)
	if err != nil {
		return err
	}
	ps, err := s.gov.State(st, env, r.Proposal)
	if err != nil {
		return err
	}
	if ps == governance.StateDefeated || ps == governance.StateCanceled {
		return nil
	}
	return fmt.Errorf("%w: %q requested as donation %d", types.ErrDuplicateReference, reference, id)
}

// AddDonationProposal validates the tier and submits an open-donation
// proposal with the service as proposer. It returns the new donation id.
func (s *Service) AddDonationProposal(st *state.State, env types.Env, amount *uint256.Int, period uint64, recipient common.Address, reference string) (*Request, error) {
	if amount == nil {
		return nil, types.ErrZeroAmount
	}
	if _, ok := s.tiers.Match(amount, period); !ok {
		return nil, fmt.Errorf("%w: amount %s period %d", types.ErrInvalidTier, amount.Dec(), period)
	}
	if recipient == (common.Address{}) {
		return nil, types.ErrZeroAddress
	}
	if reference == "" {
		return nil, types.ErrEmptyReference
	}
	if err := s.checkReference(st, env, reference); err != nil {
		return nil, err
	}
	id, err := s.AddLength(st)
	if err != nil {
		return nil, err
	}
	action := vault.EncodeOpenAction(id, amount, period, recipient, reference)
	proposal, err := s.gov.Propose(st, s.self(env), action, reference)
	if err != nil {
		return nil, err
	}
	r := &Request{
		Id:        id,
		Proposal:  proposal,
		Requester: env.Sender,
		Amount:    amount.Clone(),
		Period:    period,
		Recipient: recipient,
		Reference: reference,
	}
	if err = st.SetObject([]byte(fmt.Sprintf(keyRequest, id)), r); err != nil {
		return nil, err
	}
	st.SetUint64(referenceKey(reference), id)
	st.SetUint64([]byte(keyLength), id+1)
	st.Emit(types.EncodeEventDonation(types.EventDonationRequestedType, &types.EventDonation{
		Donation:  id,
		Proposal:  proposal,
		Requester: env.Sender,
		Amount:    r.Amount,
		Period:    period,
		Recipient: recipient,
		Reference: reference,
	}))
	s.logger.Info("donation proposed", "id", id, "proposal", proposal.Hex(), "reference", reference)
	return r, nil
}

func (s *Service) GetAddProposalIds(st *state.State, id uint64) (common.Hash, error) {
	r, err := s.GetRequest(st, id)
	if err != nil {
		return common.Hash{}, err
	}
	return r.Proposal, nil
}

// ExecuteAddDonationProposal executes the governance proposal of donation id,
// which opens its vault record.
func (s *Service) ExecuteAddDonationProposal(st *state.State, env types.Env, id uint64) error {
	r, err := s.GetRequest(st, id)
	if err != nil {
		return err
	}
	return s.gov.Execute(st, env, r.Proposal)
}

// AbortDonationProposal cancels a pending request, which the requester or a
// vault governance-role holder may do. An opened record can only be aborted
// by a vault governance-role holder.
func (s *Service) AbortDonationProposal(st *state.State, env types.Env, id uint64) error {
	r, err := s.GetRequest(st, id)
	if err != nil {
		return err
	}
	_, err = s.vault.GetDonateProposal(st, id)
	if err == nil {
		if err = s.vault.Roles.Require(st, env.Sender); err != nil {
			return err
		}
		return s.vault.Abort(st, s.self(env), id)
	}
	if !errors.Is(err, types.ErrUnknownDonation) {
		return err
	}
	if env.Sender != r.Requester {
		if err = s.vault.Roles.Require(st, env.Sender); err != nil {
			return fmt.Errorf("%w: %w", types.ErrNotRequester, err)
		}
	}
	if err = s.gov.Cancel(st, s.self(env), r.Proposal); err != nil {
		return err
	}
	r.Aborted = true
	if err = st.SetObject([]byte(fmt.Sprintf(keyRequest, id)), r); err != nil {
		return err
	}
	st.Delete(referenceKey(r.Reference))
	st.Emit(types.EncodeEventDonationAborted(&types.EventDonationAborted{Donation: id}))
	return nil
}

func (s *Service) view(st *state.State, env types.Env, r *Request) (*DonationView, error) {
	v := &DonationView{Request: *r, Contributed: types.Zero()}
	d, err := s.vault.GetDonateProposal(st, r.Id)
	switch {
	case err == nil:
		v.Status = d.StatusAt(env.Now())
		v.Contributed = d.Contributed
		v.OpenedAt = d.OpenedAt
		v.Claimed = d.Claimed
	case errors.Is(err, types.ErrUnknownDonation):
		v.Status = vault.StatusPending
		if r.Aborted {
			v.Status = vault.StatusAborted
		}
	default:
		return nil, err
	}
	return v, nil
}

func (s *Service) GetDonation(st *state.State, env types.Env, id uint64) (*DonationView, error) {
	r, err := s.GetRequest(st, id)
	if err != nil {
		return nil, err
	}
	return s.view(st, env, r)
}

// GetDonationList returns every requested donation, opened or not.
func (s *Service) GetDonationList(st *state.State, env types.Env) ([]*DonationView, error) {
	n, err := s.AddLength(st)
	if err != nil {
		return nil, err
	}
	var viewErr error
	views := lo.FilterMap(lo.Range(int(n)), func(i int, _ int) (*DonationView, bool) {
		if viewErr != nil {
			return nil, false
		}
		var v *DonationView
		if v, viewErr = s.GetDonation(st, env, uint64(i)); viewErr != nil {
			return nil, false
		}
		return v, true
	})
	if viewErr != nil {
		return nil, viewErr
	}
	return views, nil
}

// GetDonationByKey looks a donation up by its reference, opened records first.
func (s *Service) GetDonationByKey(st *state.State, env types.Env, reference string) (*DonationView, error) {
	d, err := s.vault.GetDonationByKey(st, reference)
	if err == nil {
		return s.GetDonation(st, env, d.Id)
	}
	if !errors.Is(err, types.ErrUnknownReference) {
		return nil, err
	}
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
	return s.GetDonation(st, env, id)
}
