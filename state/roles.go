package state

import (
	"fmt"

	"github.com/calehh/gp-node/types"
	"github.com/ethereum/go-ethereum/common"
)

// RoleSet is an owner plus a grow-only set of governance-role holders,
// stored under a per-component prefix.
type RoleSet struct {
	keyOwner   []byte
	keyMembers []byte
	keyMember  string
}

func NewRoleSet(prefix string) RoleSet {
	return RoleSet{
		keyOwner:   []byte(prefix + "/owner"),
		keyMembers: []byte(prefix + "/roles"),
		keyMember:  prefix + "/role/%x",
	}
}

func (r RoleSet) Owner(st *State) (owner common.Address, err error) {
	val, err := st.Get(r.keyOwner)
	if err != nil {
		return
	}
	return common.BytesToAddress(val), nil
}

func (r RoleSet) SetOwner(st *State, owner common.Address) {
	st.Set(r.keyOwner, owner.Bytes())
}

func (r RoleSet) Has(st *State, addr common.Address) (bool, error) {
	val, err := st.Get([]byte(fmt.Sprintf(r.keyMember, addr.Bytes())))
	if err != nil {
		return false, err
	}
	return len(val) > 0, nil
}

func (r RoleSet) Require(st *State, addr common.Address) error {
	ok, err := r.Has(st, addr)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: %s", types.ErrMissingGovernanceRole, addr.Hex())
	}
	return nil
}

func (r RoleSet) Members(st *State) (members []common.Address, err error) {
	_, err = st.GetObject(r.keyMembers, &members)
	return
}

func (r RoleSet) grant(st *State, addr common.Address) error {
	ok, err := r.Has(st, addr)
	if err != nil || ok {
		return err
	}
	members, err := r.Members(st)
	if err != nil {
		return err
	}
	st.Set([]byte(fmt.Sprintf(r.keyMember, addr.Bytes())), []byte{1})
	return st.SetObject(r.keyMembers, append(members, addr))
}

// Grant adds addr to the set on behalf of the owner. Grants are never revoked.
func (r RoleSet) Grant(st *State, env types.Env, addr common.Address) error {
	if addr == (common.Address{}) {
		return types.ErrZeroAddress
	}
	owner, err := r.Owner(st)
	if err != nil {
		return err
	}
	if env.Sender != owner {
		return types.ErrNotOwner
	}
	return r.grant(st, addr)
}

// GrantGenesis adds addr without an owner check; used while building genesis state.
func (r RoleSet) GrantGenesis(st *State, addr common.Address) error {
	return r.grant(st, addr)
}
