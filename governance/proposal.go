package governance

import (
	"encoding/json"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/holiman/uint256"
)

type Support uint8

const (
	SupportAgainst Support = 0
	SupportFor     Support = 1
	SupportAbstain Support = 2
)

func (s Support) Valid() bool {
	return s <= SupportAbstain
}

type ProposalState uint8

const (
	StatePending   ProposalState = 0
	StateActive    ProposalState = 1
	StateCanceled  ProposalState = 2
	StateDefeated  ProposalState = 3
	StateSucceeded ProposalState = 4
	StateExecuted  ProposalState = 7
)

func (s ProposalState) String() string {
	switch s {
	case StatePending:
		return "Pending"
	case StateActive:
		return "Active"
	case StateCanceled:
		return "Canceled"
	case StateDefeated:
		return "Defeated"
	case StateSucceeded:
		return "Succeeded"
	case StateExecuted:
		return "Executed"
	}
	return "Unknown"
}

func (s ProposalState) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

func (s *ProposalState) UnmarshalJSON(dat []byte) error {
	var name string
	if err := json.Unmarshal(dat, &name); err != nil {
		return err
	}
	for _, st := range []ProposalState{StatePending, StateActive, StateCanceled, StateDefeated, StateSucceeded, StateExecuted} {
		if st.String() == name {
			*s = st
			return nil
		}
	}
	return fmt.Errorf("unknown proposal state %q", name)
}

type Proposal struct {
	Id            common.Hash    `json:"id"`
	Proposer      common.Address `json:"proposer"`
	Action        []byte         `json:"action"`
	Description   string         `json:"description"`
	CreatedHeight uint64         `json:"createdHeight"`
	Snapshot      uint64         `json:"snapshot"`
	VoteStart     uint64         `json:"voteStart"`
	VoteEnd       uint64         `json:"voteEnd"`
	AgainstVotes  *uint256.Int   `json:"againstVotes"`
	ForVotes      *uint256.Int   `json:"forVotes"`
	AbstainVotes  *uint256.Int   `json:"abstainVotes"`
	Executed      bool           `json:"executed"`
	Canceled      bool           `json:"canceled"`
}

type VoteRecord struct {
	Support Support      `json:"support"`
	Weight  *uint256.Int `json:"weight"`
}

// Tally is the (against, for, abstain) triple of a proposal.
type Tally struct {
	Against *uint256.Int `json:"against"`
	For     *uint256.Int `json:"for"`
	Abstain *uint256.Int `json:"abstain"`
}

// ProposalID hashes proposer, action and description into the proposal
// identifier: keccak256(proposer[20] || action || keccak256(description)).
func ProposalID(proposer common.Address, action []byte, description string) common.Hash {
	return crypto.Keccak256Hash(proposer.Bytes(), action, crypto.Keccak256([]byte(description)))
}
