package tx

import (
	"github.com/calehh/gp-node/types"
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

type GPTxType uint8

const (
	GPTxTypeUnknown             GPTxType = 0
	GPTxTypeTransfer            GPTxType = 1
	GPTxTypeApprove             GPTxType = 2
	GPTxTypeDelegate            GPTxType = 3
	GPTxTypeMint                GPTxType = 4
	GPTxTypeAddGovernanceRole   GPTxType = 5
	GPTxTypeSponsor             GPTxType = 6
	GPTxTypeAddDonationProposal GPTxType = 7
	GPTxTypeCastVote            GPTxType = 8
	GPTxTypeExecute             GPTxType = 9
	GPTxTypeExecuteAddDonation  GPTxType = 10
	GPTxTypeAbortProposal       GPTxType = 11
	GPTxTypeDonate              GPTxType = 12
	GPTxTypeClaim               GPTxType = 13
	GPTxTypeAbortDonation       GPTxType = 14
	GPTxTypeRefund              GPTxType = 15
	GPTxTypeWithdrawSponsorPool GPTxType = 16
)

var txTypeNames = map[GPTxType]string{
	GPTxTypeTransfer:            "transfer",
	GPTxTypeApprove:             "approve",
	GPTxTypeDelegate:            "delegate",
	GPTxTypeMint:                "mint",
	GPTxTypeAddGovernanceRole:   "add_governance_role",
	GPTxTypeSponsor:             "sponsor",
	GPTxTypeAddDonationProposal: "add_donation_proposal",
	GPTxTypeCastVote:            "cast_vote",
	GPTxTypeExecute:             "execute",
	GPTxTypeExecuteAddDonation:  "execute_add_donation",
	GPTxTypeAbortProposal:       "abort_donation_proposal",
	GPTxTypeDonate:              "donate",
	GPTxTypeClaim:               "claim",
	GPTxTypeAbortDonation:       "abort_donation",
	GPTxTypeRefund:              "refund",
	GPTxTypeWithdrawSponsorPool: "withdraw_sponsor_pool",
}

func (t GPTxType) String() string {
	if n, ok := txTypeNames[t]; ok {
		return n
	}
	return "unknown"
}

const (
	GPTxVersion0 uint8 = 0
)

var (
	ErrInvalidTx         = types.ErrInvalidTx
	ErrUnsupportedTxType = types.ErrUnsupportedTx
)

// Asset names one of the two ledgers a token tx can address.
type Asset string

type TransferTx struct {
	Asset  Asset          `json:"asset"`
	To     common.Address `json:"to"`
	Amount *uint256.Int   `json:"amount"`
}

type ApproveTx struct {
	Asset   Asset          `json:"asset"`
	Spender common.Address `json:"spender"`
	Amount  *uint256.Int   `json:"amount"`
}

type DelegateTx struct {
	Delegatee common.Address `json:"delegatee"`
}

type MintTx struct {
	Asset  Asset          `json:"asset"`
	To     common.Address `json:"to"`
	Amount *uint256.Int   `json:"amount"`
}

// AddGovernanceRoleTx grants the governance role of Component ("gp" or "vault").
type AddGovernanceRoleTx struct {
	Component string         `json:"component"`
	Account   common.Address `json:"account"`
}

type AmountTx struct {
	Amount *uint256.Int `json:"amount"`
}

type AddDonationProposalTx struct {
	Amount    *uint256.Int   `json:"amount"`
	Period    uint64         `json:"period"`
	Recipient common.Address `json:"recipient"`
	Reference string         `json:"reference"`
}

type CastVoteTx struct {
	Proposal common.Hash `json:"proposal"`
	Support  uint8       `json:"support"`
}

type ExecuteTx struct {
	Proposal common.Hash `json:"proposal"`
}

// DonationTx addresses a donation by id.
type DonationTx struct {
	Donation uint64 `json:"donation"`
}

type DonateTx struct {
	Donation uint64       `json:"donation"`
	Amount   *uint256.Int `json:"amount"`
}
