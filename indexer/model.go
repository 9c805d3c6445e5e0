package indexer

// sqlite models

type Height struct {
	Id     uint64 `gorm:"primaryKey" json:"id"`
	Height uint64 `json:"height"`
}

type Proposal struct {
	Id           string `gorm:"primaryKey" json:"id"`
	Proposer     string `json:"proposer"`
	Description  string `json:"description"`
	VoteStart    uint64 `json:"vote_start"`
	VoteEnd      uint64 `json:"vote_end"`
	NewHeight    uint64 `json:"new_height"`
	SettleHeight uint64 `json:"settle_height"`
	Status       string `gorm:"index" json:"status"`
	ForVotes     string `json:"for_votes"`
	AgainstVotes string `json:"against_votes"`
	AbstainVotes string `json:"abstain_votes"`
}

type Vote struct {
	Id       uint64 `gorm:"primaryKey;autoIncrement" json:"id"`
	Proposal string `gorm:"index" json:"proposal"`
	Voter    string `gorm:"index" json:"voter"`
	Support  uint8  `json:"support"`
	Weight   string `json:"weight"`
	Height   uint64 `json:"height"`
}

type Donation struct {
	RowId         uint64 `gorm:"primaryKey;autoIncrement" json:"-"`
	Id            uint64 `gorm:"uniqueIndex" json:"id"`
	Proposal      string `gorm:"index" json:"proposal"`
	Requester     string `json:"requester"`
	Amount        string `json:"amount"`
	Period        uint64 `json:"period"`
	Recipient     string `gorm:"index" json:"recipient"`
	Reference     string `gorm:"index" json:"reference"`
	Status        string `gorm:"index" json:"status"`
	Contributed   string `json:"contributed"`
	OpenedAt      uint64 `json:"opened_at"`
	RequestHeight uint64 `json:"request_height"`
	SettleHeight  uint64 `json:"settle_height"`
}

const (
	ContributionDonate  = "donate"
	ContributionRefund  = "refund"
	ContributionSponsor = "sponsor"
)

// Contribution is a stable asset movement by an account: a donation, a
// refund out of an aborted donation, or a sponsor pool deposit.
type Contribution struct {
	Id       uint64 `gorm:"primaryKey;autoIncrement" json:"id"`
	Kind     string `gorm:"index" json:"kind"`
	Donation uint64 `gorm:"index" json:"donation"`
	Account  string `gorm:"index" json:"account"`
	Amount   string `json:"amount"`
	Minted   string `json:"minted"`
	Height   uint64 `json:"height"`
}
