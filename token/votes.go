package token

import (
	"fmt"
	"sort"

	"github.com/calehh/gp-node/state"
	"github.com/calehh/gp-node/types"
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

// Checkpoint records a weight that holds from FromBlock until the next checkpoint.
type Checkpoint struct {
	FromBlock uint64
	Votes     *uint256.Int
}

type checkpointKeys struct {
	count string
	item  string
}

func (l *Ledger) keyDelegate(addr common.Address) []byte {
	return []byte(fmt.Sprintf("t/%s/d/%x", l.name, addr.Bytes()))
}

func (l *Ledger) keyVoteCheckpoints(addr common.Address) checkpointKeys {
	return checkpointKeys{
		count: fmt.Sprintf("t/%s/c/%x/n", l.name, addr.Bytes()),
		item:  fmt.Sprintf("t/%s/c/%x/%%d", l.name, addr.Bytes()),
	}
}

func (l *Ledger) keySupplyCheckpoints() checkpointKeys {
	return checkpointKeys{
		count: fmt.Sprintf("t/%s/ts/n", l.name),
		item:  fmt.Sprintf("t/%s/ts/%%d", l.name),
	}
}

// Delegates returns the address addr has delegated its weight to, zero if none.
func (l *Ledger) Delegates(st *state.State, addr common.Address) (common.Address, error) {
	val, err := st.Get(l.keyDelegate(addr))
	if err != nil {
		return common.Address{}, err
	}
	return common.BytesToAddress(val), nil
}

// Delegate points the sender's whole balance of voting weight at delegatee.
func (l *Ledger) Delegate(st *state.State, env types.Env, delegatee common.Address) error {
	if !l.votes {
		return fmt.Errorf("%w: %s has no voting weight", types.ErrUnknownAsset, l.name)
	}
	previous, err := l.Delegates(st, env.Sender)
	if err != nil {
		return err
	}
	if delegatee == (common.Address{}) {
		st.Delete(l.keyDelegate(env.Sender))
	} else {
		st.Set(l.keyDelegate(env.Sender), delegatee.Bytes())
	}
	balance, err := l.BalanceOf(st, env.Sender)
	if err != nil {
		return err
	}
	return l.moveVotes(st, env.Height, previous, delegatee, balance)
}

func (l *Ledger) moveVotes(st *state.State, height uint64, from, to common.Address, amount *uint256.Int) error {
	if from == to || amount.IsZero() {
		return nil
	}
	if from != (common.Address{}) {
		keys := l.keyVoteCheckpoints(from)
		votes, err := l.latest(st, keys)
		if err != nil {
			return err
		}
		if votes.Lt(amount) {
			return fmt.Errorf("%w: delegated weight underflow", types.ErrInsufficientBalance)
		}
		if err = l.writeCheckpoint(st, keys, height, new(uint256.Int).Sub(votes, amount)); err != nil {
			return err
		}
	}
	if to != (common.Address{}) {
		keys := l.keyVoteCheckpoints(to)
		votes, err := l.latest(st, keys)
		if err != nil {
			return err
		}
		if votes, err = types.AddAmount(votes, amount); err != nil {
			return err
		}
		if err = l.writeCheckpoint(st, keys, height, votes); err != nil {
			return err
		}
	}
	return nil
}

func (l *Ledger) checkpoint(st *state.State, keys checkpointKeys, i uint64) (*Checkpoint, error) {
	cp := new(Checkpoint)
	ok, err := st.GetObject([]byte(fmt.Sprintf(keys.item, i)), cp)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, state.ErrNotFound
	}
	return cp, nil
}

func (l *Ledger) latest(st *state.State, keys checkpointKeys) (*uint256.Int, error) {
	n, err := st.GetUint64([]byte(keys.count))
	if err != nil || n == 0 {
		return types.Zero(), err
	}
	cp, err := l.checkpoint(st, keys, n-1)
	if err != nil {
		return nil, err
	}
	return cp.Votes, nil
}

func (l *Ledger) writeCheckpoint(st *state.State, keys checkpointKeys, height uint64, votes *uint256.Int) error {
	n, err := st.GetUint64([]byte(keys.count))
	if err != nil {
		return err
	}
	if n > 0 {
		last, err := l.checkpoint(st, keys, n-1)
		if err != nil {
			return err
		}
		if last.FromBlock == height {
			last.Votes = votes
			return st.SetObject([]byte(fmt.Sprintf(keys.item, n-1)), last)
		}
	}
	if err = st.SetObject([]byte(fmt.Sprintf(keys.item, n)), &Checkpoint{FromBlock: height, Votes: votes}); err != nil {
		return err
	}
	st.SetUint64([]byte(keys.count), n+1)
	return nil
}

func (l *Ledger) lookup(st *state.State, keys checkpointKeys, height uint64) (*uint256.Int, error) {
	n, err := st.GetUint64([]byte(keys.count))
	if err != nil || n == 0 {
		return types.Zero(), err
	}
	var lookupErr error
	// first checkpoint strictly after height
	idx := sort.Search(int(n), func(i int) bool {
		cp, err := l.checkpoint(st, keys, uint64(i))
		if err != nil {
			lookupErr = err
			return true
		}
		return cp.FromBlock > height
	})
	if lookupErr != nil {
		return nil, lookupErr
	}
	if idx == 0 {
		return types.Zero(), nil
	}
	cp, err := l.checkpoint(st, keys, uint64(idx-1))
	if err != nil {
		return nil, err
	}
	return cp.Votes, nil
}

// GetVotes returns the weight currently delegated to addr.
func (l *Ledger) GetVotes(st *state.State, addr common.Address) (*uint256.Int, error) {
	return l.latest(st, l.keyVoteCheckpoints(addr))
}

// GetPastVotes returns the weight delegated to addr as of the end of block height.
func (l *Ledger) GetPastVotes(st *state.State, addr common.Address, height uint64) (*uint256.Int, error) {
	return l.lookup(st, l.keyVoteCheckpoints(addr), height)
}

func (l *Ledger) GetPastTotalSupply(st *state.State, height uint64) (*uint256.Int, error) {
	return l.lookup(st, l.keySupplyCheckpoints(), height)
}
