// Package token keeps fungible balances in ledger state. A ledger created
// with votes enabled also tracks delegated voting weight per block.
package token

import (
	"fmt"

	"github.com/calehh/gp-node/state"
	"github.com/calehh/gp-node/types"
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

const (
	NameGovernance = "gp"
	NameStable     = "usd"
)

type Ledger struct {
	name   string
	votes  bool
	faucet bool

	Roles state.RoleSet
}

// NewGovernance returns the voting token ledger.
func NewGovernance() *Ledger {
	return &Ledger{name: NameGovernance, votes: true, Roles: state.NewRoleSet("t/" + NameGovernance)}
}

// NewStable returns the funding asset ledger. When faucet is set anyone may mint.
func NewStable(faucet bool) *Ledger {
	return &Ledger{name: NameStable, faucet: faucet, Roles: state.NewRoleSet("t/" + NameStable)}
}

func (l *Ledger) Name() string {
	return l.name
}

func (l *Ledger) keyBalance(addr common.Address) []byte {
	return []byte(fmt.Sprintf("t/%s/b/%x", l.name, addr.Bytes()))
}

func (l *Ledger) keyAllowance(owner, spender common.Address) []byte {
	return []byte(fmt.Sprintf("t/%s/a/%x%x", l.name, owner.Bytes(), spender.Bytes()))
}

func (l *Ledger) keySupply() []byte {
	return []byte(fmt.Sprintf("t/%s/supply", l.name))
}

func (l *Ledger) BalanceOf(st *state.State, addr common.Address) (*uint256.Int, error) {
	return st.GetAmount(l.keyBalance(addr))
}

func (l *Ledger) TotalSupply(st *state.State) (*uint256.Int, error) {
	return st.GetAmount(l.keySupply())
}

func (l *Ledger) Allowance(st *state.State, owner, spender common.Address) (*uint256.Int, error) {
	return st.GetAmount(l.keyAllowance(owner, spender))
}

func (l *Ledger) Approve(st *state.State, env types.Env, spender common.Address, amount *uint256.Int) error {
	if spender == (common.Address{}) {
		return types.ErrZeroAddress
	}
	st.SetAmount(l.keyAllowance(env.Sender, spender), amount)
	return nil
}

func (l *Ledger) Transfer(st *state.State, env types.Env, to common.Address, amount *uint256.Int) error {
	return l.move(st, env, env.Sender, to, amount)
}

// TransferFrom moves amount out of from using the allowance granted to the sender.
func (l *Ledger) TransferFrom(st *state.State, env types.Env, from, to common.Address, amount *uint256.Int) error {
	allowance, err := l.Allowance(st, from, env.Sender)
	if err != nil {
		return err
	}
	if allowance.Lt(amount) {
		return fmt.Errorf("%w: %s allows %s, need %s", types.ErrInsufficientAllowance, from.Hex(), allowance, amount)
	}
	if err = l.move(st, env, from, to, amount); err != nil {
		return err
	}
	st.SetAmount(l.keyAllowance(from, env.Sender), new(uint256.Int).Sub(allowance, amount))
	return nil
}

func (l *Ledger) move(st *state.State, env types.Env, from, to common.Address, amount *uint256.Int) error {
	if to == (common.Address{}) {
		return types.ErrZeroAddress
	}
	if amount.IsZero() {
		return types.ErrZeroAmount
	}
	balance, err := l.BalanceOf(st, from)
	if err != nil {
		return err
	}
	if balance.Lt(amount) {
		return fmt.Errorf("%w: %s has %s, need %s", types.ErrInsufficientBalance, from.Hex(), balance, amount)
	}
	st.SetAmount(l.keyBalance(from), new(uint256.Int).Sub(balance, amount))
	received, err := l.BalanceOf(st, to)
	if err != nil {
		return err
	}
	if received, err = types.AddAmount(received, amount); err != nil {
		return err
	}
	st.SetAmount(l.keyBalance(to), received)
	if !l.votes {
		return nil
	}
	fromDelegate, err := l.Delegates(st, from)
	if err != nil {
		return err
	}
	toDelegate, err := l.Delegates(st, to)
	if err != nil {
		return err
	}
	return l.moveVotes(st, env.Height, fromDelegate, toDelegate, amount)
}

// Mint creates amount for to. The sender needs the ledger's governance role
// unless the ledger is a faucet.
func (l *Ledger) Mint(st *state.State, env types.Env, to common.Address, amount *uint256.Int) error {
	if !l.faucet {
		ok, err := l.Roles.Has(st, env.Sender)
		if err != nil {
			return err
		}
		if !ok {
			if !l.votes {
				return types.ErrFaucetDisabled
			}
			return fmt.Errorf("%w: %s", types.ErrMissingGovernanceRole, env.Sender.Hex())
		}
	}
	return l.mint(st, env.Height, to, amount)
}

func (l *Ledger) mint(st *state.State, height uint64, to common.Address, amount *uint256.Int) error {
	if to == (common.Address{}) {
		return types.ErrZeroAddress
	}
	if amount.IsZero() {
		return types.ErrZeroAmount
	}
	supply, err := l.TotalSupply(st)
	if err != nil {
		return err
	}
	if supply, err = types.AddAmount(supply, amount); err != nil {
		return err
	}
	balance, err := l.BalanceOf(st, to)
	if err != nil {
		return err
	}
	if balance, err = types.AddAmount(balance, amount); err != nil {
		return err
	}
	st.SetAmount(l.keySupply(), supply)
	st.SetAmount(l.keyBalance(to), balance)
	if !l.votes {
		return nil
	}
	if err = l.writeCheckpoint(st, l.keySupplyCheckpoints(), height, supply); err != nil {
		return err
	}
	delegate, err := l.Delegates(st, to)
	if err != nil {
		return err
	}
	return l.moveVotes(st, height, common.Address{}, delegate, amount)
}

// MintGenesis credits an initial balance before the first block.
func (l *Ledger) MintGenesis(st *state.State, to common.Address, amount *uint256.Int) error {
	return l.mint(st, 0, to, amount)
}
