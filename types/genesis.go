package types

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/cometbft/cometbft/crypto"
	cmtjson "github.com/cometbft/cometbft/libs/json"
	cmttypes "github.com/cometbft/cometbft/types"
	"github.com/ethereum/go-ethereum/common"
)

// Params are the chain-wide parameters fixed at genesis.
type Params struct {
	BlockTime       uint64   `json:"block_time" mapstructure:"block_time"`
	VotingDelay     uint64   `json:"voting_delay" mapstructure:"voting_delay"`
	VotingPeriod    uint64   `json:"voting_period" mapstructure:"voting_period"`
	QuorumNumerator uint64   `json:"quorum_numerator" mapstructure:"quorum_numerator"`
	Fund            string   `json:"fund" mapstructure:"fund"`
	SponsorRateBP   uint64   `json:"sponsor_rate_bp" mapstructure:"sponsor_rate_bp"`
	DonateRewardBP  uint64   `json:"donate_reward_bp" mapstructure:"donate_reward_bp"`
	Faucet          bool     `json:"faucet" mapstructure:"faucet"`
	TierAmounts     []string `json:"tier_amounts" mapstructure:"tier_amounts"`
	TierPeriods     []uint64 `json:"tier_periods" mapstructure:"tier_periods"`
}

func DefaultParams() Params {
	return Params{
		BlockTime:       12,
		VotingDelay:     0,
		VotingPeriod:    86400 / 12,
		QuorumNumerator: 4,
		SponsorRateBP:   BasisPoints,
		DonateRewardBP:  0,
		TierAmounts:     []string{"10000000", "100000000", "1000000000"},
		TierPeriods:     []uint64{1209600, 2419200, 7257600},
	}
}

func (p *Params) Validate() error {
	if p.QuorumNumerator > 100 {
		return fmt.Errorf("quorum_numerator %d exceeds 100", p.QuorumNumerator)
	}
	if len(p.TierAmounts) != len(p.TierPeriods) {
		return errors.New("tier_amounts and tier_periods differ in length")
	}
	for _, a := range p.TierAmounts {
		if _, err := ParseAmount(a); err != nil {
			return fmt.Errorf("tier amount %q: %w", a, err)
		}
	}
	if p.Fund != "" && !common.IsHexAddress(p.Fund) {
		return fmt.Errorf("invalid fund address %q", p.Fund)
	}
	return nil
}

type GenesisBalance struct {
	Address string `json:"address"`
	Asset   string `json:"asset"`
	Amount  string `json:"amount"`
	// Delegate self-delegates the voting weight of a governance token balance.
	Delegate bool `json:"delegate"`
}

// GenesisAppState is the app_state section of the genesis document.
type GenesisAppState struct {
	Owner    string           `json:"owner"`
	Params   Params           `json:"params"`
	Balances []GenesisBalance `json:"balances"`
}

func (gs *GenesisAppState) Validate() error {
	if !common.IsHexAddress(gs.Owner) {
		return fmt.Errorf("invalid owner address %q", gs.Owner)
	}
	for _, b := range gs.Balances {
		if !common.IsHexAddress(b.Address) {
			return fmt.Errorf("invalid balance address %q", b.Address)
		}
		if _, err := ParseAmount(b.Amount); err != nil {
			return fmt.Errorf("balance of %s: %w", b.Address, err)
		}
	}
	return gs.Params.Validate()
}

type GenesisValidator struct {
	Address crypto.Address `json:"address"`
	PubKey  crypto.PubKey  `json:"pub_key"`
	Power   int64          `json:"power"`
	Name    string         `json:"name"`
}

// GenesisDoc defines the initial conditions for a CometBFT blockchain, in particular its validator set.
type GenesisDoc struct {
	GenesisTime     time.Time                 `json:"genesis_time"`
	ChainID         string                    `json:"chain_id"`
	InitialHeight   int64                     `json:"initial_height"`
	ConsensusParams *cmttypes.ConsensusParams `json:"consensus_params,omitempty"`
	Validators      []GenesisValidator        `json:"validators"`
	AppHash         []byte                    `json:"app_hash"`
	AppState        json.RawMessage           `json:"app_state"`
}

// SaveAs is a utility method for saving GenensisDoc as a JSON file.
func (genDoc *GenesisDoc) SaveAs(file string) error {
	genDocBytes, err := cmtjson.MarshalIndent(genDoc, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(file, genDocBytes, 0o600)
}

func (ag *GenesisDoc) ValidateAndComplete() error {
	if ag.ChainID == "" {
		return errors.New("genesis doc must include non-empty chain_id")
	}

	if ag.InitialHeight < 0 {
		return fmt.Errorf("initial_height cannot be negative (got %v)", ag.InitialHeight)
	}

	if ag.InitialHeight == 0 {
		ag.InitialHeight = 1
	}

	if ag.GenesisTime.IsZero() {
		ag.GenesisTime = time.Now().Round(0).UTC()
	}

	return nil
}

func ExportGenesisFile(genesis *GenesisDoc, genFile string) error {
	if err := genesis.ValidateAndComplete(); err != nil {
		return err
	}
	return genesis.SaveAs(genFile)
}

const GPModuleName = "gp"
const DefaultPower = 1000
