// Package governance registers proposals, tallies token-weighted votes and
// executes the actions of proposals that pass.
package governance

import (
	"fmt"

	"github.com/calehh/gp-node/state"
	"github.com/calehh/gp-node/token"
	"github.com/calehh/gp-node/types"
	cmtlog "github.com/cometbft/cometbft/libs/log"
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

const (
	keyProposal      = "g/p/%x"
	keyVote          = "g/v/%x%x"
	keyProposalCount = "g/n"
	keyProposalIndex = "g/i/%d"
)

type Params struct {
	VotingDelay     uint64 `json:"votingDelay"`
	VotingPeriod    uint64 `json:"votingPeriod"`
	QuorumNumerator uint64 `json:"quorumNumerator"`
}

// DefaultParams derives a one-day voting period from the block time.
func DefaultParams(blockTimeSeconds uint64) Params {
	if blockTimeSeconds == 0 {
		blockTimeSeconds = 12
	}
	return Params{
		VotingDelay:     0,
		VotingPeriod:    86400 / blockTimeSeconds,
		QuorumNumerator: 4,
	}
}

// Executor applies the action of a passed proposal. The first byte of the
// action selects the executor.
type Executor interface {
	Execute(st *state.State, env types.Env, action []byte, description string) error
}

type Engine struct {
	logger    cmtlog.Logger
	token     *token.Ledger
	params    Params
	executors map[byte]Executor
}

func NewEngine(logger cmtlog.Logger, tk *token.Ledger, params Params) *Engine {
	return &Engine{
		logger:    logger.With("module", "governance"),
		token:     tk,
		params:    params,
		executors: make(map[byte]Executor),
	}
}

func (e *Engine) Params() Params {
	return e.params
}

func (e *Engine) RegisterExecutor(kind byte, ex Executor) {
	e.executors[kind] = ex
}

func (e *Engine) GetProposal(st *state.State, id common.Hash) (*Proposal, error) {
	p := new(Proposal)
	ok, err := st.GetObject([]byte(fmt.Sprintf(keyProposal, id.Bytes())), p)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s", types.ErrUnknownProposal, id.Hex())
	}
	return p, nil
}

func (e *Engine) setProposal(st *state.State, p *Proposal) error {
	return st.SetObject([]byte(fmt.Sprintf(keyProposal, p.Id.Bytes())), p)
}

// Propose registers a proposal from the sender and returns its identifier.
func (e *Engine) Propose(st *state.State, env types.Env, action []byte, description string) (id common.Hash, err error) {
	if len(action) == 0 {
		return id, types.ErrInvalidAction
	}
	if _, ok := e.executors[action[0]]; !ok {
		return id, fmt.Errorf("%w: kind %d", types.ErrInvalidAction, action[0])
	}
	id = ProposalID(env.Sender, action, description)
	key := []byte(fmt.Sprintf(keyProposal, id.Bytes()))
	existing, err := st.Get(key)
	if err != nil {
		return
	}
	if existing != nil {
		return id, fmt.Errorf("%w: %s", types.ErrDuplicateProposal, id.Hex())
	}
	snapshot := env.Height
	if snapshot > 0 {
		snapshot--
	}
	voteStart := env.Height + e.params.VotingDelay
	p := &Proposal{
		Id:            id,
		Proposer:      env.Sender,
		Action:        common.CopyBytes(action),
		Description:   description,
		CreatedHeight: env.Height,
		Snapshot:      snapshot,
		VoteStart:     voteStart,
		VoteEnd:       voteStart + e.params.VotingPeriod,
		AgainstVotes:  types.Zero(),
		ForVotes:      types.Zero(),
		AbstainVotes:  types.Zero(),
	}
	if err = e.setProposal(st, p); err != nil {
		return
	}
	n, err := st.GetUint64([]byte(keyProposalCount))
	if err != nil {
		return
	}
	st.Set([]byte(fmt.Sprintf(keyProposalIndex, n)), id.Bytes())
	st.SetUint64([]byte(keyProposalCount), n+1)
	st.Emit(types.EncodeEventProposalCreated(&types.EventProposalCreated{
		Proposal:    id,
		Proposer:    env.Sender,
		VoteStart:   p.VoteStart,
		VoteEnd:     p.VoteEnd,
		Description: description,
	}))
	e.logger.Debug("proposal created", "id", id.Hex(), "proposer", env.Sender.Hex(), "voteEnd", p.VoteEnd)
	return
}

// State derives the proposal state at the env's block height.
func (e *Engine) State(st *state.State, env types.Env, id common.Hash) (ProposalState, error) {
	p, err := e.GetProposal(st, id)
	if err != nil {
		return 0, err
	}
	return e.state(st, env.Height, p)
}

func (e *Engine) state(st *state.State, height uint64, p *Proposal) (ProposalState, error) {
	switch {
	case p.Executed:
		return StateExecuted, nil
	case p.Canceled:
		return StateCanceled, nil
	case height < p.VoteStart:
		return StatePending, nil
	case height <= p.VoteEnd:
		return StateActive, nil
	}
	quorum, err := e.quorumReached(st, p)
	if err != nil {
		return 0, err
	}
	if quorum && p.ForVotes.Gt(p.AgainstVotes) {
		return StateSucceeded, nil
	}
	return StateDefeated, nil
}

func (e *Engine) Quorum(st *state.State, snapshot uint64) (*uint256.Int, error) {
	supply, err := e.token.GetPastTotalSupply(st, snapshot)
	if err != nil {
		return nil, err
	}
	q, overflow := new(uint256.Int).MulOverflow(supply, uint256.NewInt(e.params.QuorumNumerator))
	if overflow {
		return nil, types.ErrAmountOverflow
	}
	return q.Div(q, uint256.NewInt(100)), nil
}

func (e *Engine) quorumReached(st *state.State, p *Proposal) (bool, error) {
	quorum, err := e.Quorum(st, p.Snapshot)
	if err != nil {
		return false, err
	}
	total, err := types.AddAmount(p.ForVotes, p.AgainstVotes)
	if err != nil {
		return false, err
	}
	if total, err = types.AddAmount(total, p.AbstainVotes); err != nil {
		return false, err
	}
	return !total.Lt(quorum), nil
}

// CastVote records the sender's vote with the weight it held at the proposal snapshot.
func (e *Engine) CastVote(st *state.State, env types.Env, id common.Hash, support Support) (weight *uint256.Int, err error) {
	if !support.Valid() {
		return nil, fmt.Errorf("%w: %d", types.ErrInvalidSupport, support)
	}
	p, err := e.GetProposal(st, id)
	if err != nil {
		return
	}
	ps, err := e.state(st, env.Height, p)
	if err != nil {
		return
	}
	if ps != StateActive {
		return nil, fmt.Errorf("%w: proposal is %s", types.ErrVotingClosed, ps)
	}
	voted, err := e.HasVoted(st, id, env.Sender)
	if err != nil {
		return
	}
	if voted {
		return nil, fmt.Errorf("%w: %s", types.ErrAlreadyVoted, env.Sender.Hex())
	}
	weight, err = e.token.GetPastVotes(st, env.Sender, p.Snapshot)
	if err != nil {
		return
	}
	switch support {
	case SupportAgainst:
		p.AgainstVotes, err = types.AddAmount(p.AgainstVotes, weight)
	case SupportFor:
		p.ForVotes, err = types.AddAmount(p.ForVotes, weight)
	case SupportAbstain:
		p.AbstainVotes, err = types.AddAmount(p.AbstainVotes, weight)
	}
	if err != nil {
		return
	}
	if err = st.SetObject([]byte(fmt.Sprintf(keyVote, id.Bytes(), env.Sender.Bytes())), &VoteRecord{Support: support, Weight: weight}); err != nil {
		return
	}
	if err = e.setProposal(st, p); err != nil {
		return
	}
	st.Emit(types.EncodeEventVoteCast(&types.EventVoteCast{
		Proposal: id,
		Voter:    env.Sender,
		Support:  uint8(support),
		Weight:   weight,
	}))
	return
}

// Execute marks a succeeded proposal executed and applies its action. Either
// both happen or neither does.
func (e *Engine) Execute(st *state.State, env types.Env, id common.Hash) error {
	p, err := e.GetProposal(st, id)
	if err != nil {
		return err
	}
	if p.Executed {
		return fmt.Errorf("%w: %s", types.ErrAlreadyExecuted, id.Hex())
	}
	ps, err := e.state(st, env.Height, p)
	if err != nil {
		return err
	}
	if ps != StateSucceeded {
		return fmt.Errorf("%w: proposal is %s", types.ErrNotSucceeded, ps)
	}
	ex, ok := e.executors[p.Action[0]]
	if !ok {
		return fmt.Errorf("%w: kind %d", types.ErrInvalidAction, p.Action[0])
	}
	branch := st.Branch()
	p.Executed = true
	if err = e.setProposal(branch, p); err != nil {
		return err
	}
	if err = ex.Execute(branch, env.As(types.GovernanceAddress), p.Action, p.Description); err != nil {
		e.logger.Info("proposal action failed", "id", id.Hex(), "err", err)
		return err
	}
	branch.Emit(types.EncodeEventProposal(types.EventProposalExecutedType, &types.EventProposal{Proposal: id}))
	return branch.Write()
}

// Cancel withdraws a proposal that has not been executed. Only its proposer may cancel.
func (e *Engine) Cancel(st *state.State, env types.Env, id common.Hash) error {
	p, err := e.GetProposal(st, id)
	if err != nil {
		return err
	}
	if env.Sender != p.Proposer {
		return fmt.Errorf("%w: %s did not propose %s", types.ErrNotRequester, env.Sender.Hex(), id.Hex())
	}
	if p.Executed {
		return fmt.Errorf("%w: %s", types.ErrAlreadyExecuted, id.Hex())
	}
	if p.Canceled {
		return fmt.Errorf("%w: %s", types.ErrAlreadyCanceled, id.Hex())
	}
	p.Canceled = true
	if err = e.setProposal(st, p); err != nil {
		return err
	}
	st.Emit(types.EncodeEventProposal(types.EventProposalCanceledType, &types.EventProposal{Proposal: id}))
	return nil
}

func (e *Engine) HasVoted(st *state.State, id common.Hash, voter common.Address) (bool, error) {
	val, err := st.Get([]byte(fmt.Sprintf(keyVote, id.Bytes(), voter.Bytes())))
	if err != nil {
		return false, err
	}
	return val != nil, nil
}

func (e *Engine) GetVote(st *state.State, id common.Hash, voter common.Address) (*VoteRecord, error) {
	v := new(VoteRecord)
	ok, err := st.GetObject([]byte(fmt.Sprintf(keyVote, id.Bytes(), voter.Bytes())), v)
	if err != nil || !ok {
		return nil, err
	}
	return v, nil
}

func (e *Engine) ProposalVotes(st *state.State, id common.Hash) (*Tally, error) {
	p, err := e.GetProposal(st, id)
	if err != nil {
		return nil, err
	}
	return &Tally{Against: p.AgainstVotes, For: p.ForVotes, Abstain: p.AbstainVotes}, nil
}

// VotingBalance returns the weight voter can cast on the proposal.
func (e *Engine) VotingBalance(st *state.State, id common.Hash, voter common.Address) (*uint256.Int, error) {
	p, err := e.GetProposal(st, id)
	if err != nil {
		return nil, err
	}
	return e.token.GetPastVotes(st, voter, p.Snapshot)
}

func (e *Engine) ProposalCount(st *state.State) (uint64, error) {
	return st.GetUint64([]byte(keyProposalCount))
}

// ListProposals returns up to limit proposals starting at the given creation index.
func (e *Engine) ListProposals(st *state.State, offset, limit uint64) ([]*Proposal, error) {
	n, err := e.ProposalCount(st)
	if err != nil {
		return nil, err
	}
	var res []*Proposal
	for i := offset; i < n && uint64(len(res)) < limit; i++ {
		val, err := st.Get([]byte(fmt.Sprintf(keyProposalIndex, i)))
		if err != nil {
			return nil, err
		}
		p, err := e.GetProposal(st, common.BytesToHash(val))
		if err != nil {
			return nil, err
		}
		res = append(res, p)
	}
	return res, nil
}
