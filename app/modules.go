package app

import (
	"encoding/json"
	"fmt"

	"github.com/calehh/gp-node/governance"
	"github.com/calehh/gp-node/service"
	"github.com/calehh/gp-node/state"
	"github.com/calehh/gp-node/token"
	"github.com/calehh/gp-node/tx"
	"github.com/calehh/gp-node/tx/handler"
	"github.com/calehh/gp-node/types"
	"github.com/calehh/gp-node/vault"
	cmtlog "github.com/cometbft/cometbft/libs/log"
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

var KeyParams = []byte("params")

// NewModules wires the ledger components for the given chain params.
func NewModules(logger cmtlog.Logger, p types.Params) (*handler.Modules, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	gp := token.NewGovernance()
	stable := token.NewStable(p.Faucet)

	govParams := governance.DefaultParams(p.BlockTime)
	govParams.VotingDelay = p.VotingDelay
	if p.VotingPeriod > 0 {
		govParams.VotingPeriod = p.VotingPeriod
	}
	govParams.QuorumNumerator = p.QuorumNumerator
	gov := governance.NewEngine(logger, gp, govParams)

	v := vault.New(logger, gp, stable, vault.Params{
		Fund:           common.HexToAddress(p.Fund),
		SponsorRateBP:  p.SponsorRateBP,
		DonateRewardBP: p.DonateRewardBP,
	})
	gov.RegisterExecutor(vault.ActionOpenDonation, v)

	tiers := service.Tiers{Periods: p.TierPeriods}
	for _, a := range p.TierAmounts {
		amt, err := types.ParseAmount(a)
		if err != nil {
			return nil, err
		}
		tiers.Amounts = append(tiers.Amounts, amt)
	}
	return &handler.Modules{
		GP:      gp,
		Stable:  stable,
		Gov:     gov,
		Vault:   v,
		Service: service.New(logger, gov, v, tiers),
	}, nil
}

func loadParams(st *state.State) (*types.Params, error) {
	val, err := st.Get(KeyParams)
	if err != nil || val == nil {
		return nil, err
	}
	p := new(types.Params)
	if err = json.Unmarshal(val, p); err != nil {
		return nil, err
	}
	return p, nil
}

// InitGenesis writes params, role grants and initial balances into st.
func InitGenesis(st *state.State, m *handler.Modules, gs *types.GenesisAppState) error {
	if err := gs.Validate(); err != nil {
		return err
	}
	dat, err := json.Marshal(gs.Params)
	if err != nil {
		return err
	}
	st.Set(KeyParams, dat)

	owner := common.HexToAddress(gs.Owner)
	m.GP.Roles.SetOwner(st, owner)
	m.Stable.Roles.SetOwner(st, owner)
	m.Vault.Roles.SetOwner(st, owner)
	grants := []struct {
		roles   state.RoleSet
		members []common.Address
	}{
		{m.GP.Roles, []common.Address{owner, types.VaultAddress}},
		{m.Stable.Roles, []common.Address{owner}},
		{m.Vault.Roles, []common.Address{owner, types.GovernanceAddress, types.ServiceAddress}},
	}
	for _, g := range grants {
		for _, member := range g.members {
			if err = g.roles.GrantGenesis(st, member); err != nil {
				return err
			}
		}
	}

	for _, b := range gs.Balances {
		asset := b.Asset
		if asset == "" {
			asset = token.NameGovernance
		}
		l, err := m.Ledger(tx.Asset(asset))
		if err != nil {
			return err
		}
		addr := common.HexToAddress(b.Address)
		amount, err := uint256.FromDecimal(b.Amount)
		if err != nil {
			return fmt.Errorf("balance of %s: %w", b.Address, err)
		}
		if err = l.MintGenesis(st, addr, amount); err != nil {
			return err
		}
		if b.Delegate && l == m.GP {
			if err = m.GP.Delegate(st, types.Env{Sender: addr}, addr); err != nil {
				return err
			}
		}
	}
	return nil
}
