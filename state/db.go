package state

import (
	"fmt"
	"sync"

	cmtlog "github.com/cometbft/cometbft/libs/log"
	"github.com/cosmos/iavl"
	dbm "github.com/cosmos/iavl/db"
	"github.com/ethereum/go-ethereum/common"
)

const treeCacheSize = 128

// StateDB owns the IAVL tree and the last committed State. Block execution
// works on NewState and publishes it with SetState.
type StateDB struct {
	mtx       sync.RWMutex
	logger    cmtlog.Logger
	tree      *iavl.MutableTree
	committed *State
}

// NewStateDB opens (or creates) the goleveldb backed tree under dir.
func NewStateDB(dir string, logger cmtlog.Logger) (*StateDB, error) {
	ldb, err := dbm.NewDB("gp", "goleveldb", dir)
	if err != nil {
		return nil, fmt.Errorf("open state db %s: %w", dir, err)
	}
	return openStateDB(ldb, logger)
}

func NewMemStateDB(logger cmtlog.Logger) (*StateDB, error) {
	return openStateDB(dbm.NewMemDB(), logger)
}

func openStateDB(ldb dbm.DB, logger cmtlog.Logger) (*StateDB, error) {
	logger = logger.With("module", "state")
	tree := iavl.NewMutableTree(ldb, treeCacheSize, true, newIAVLLogger(logger))
	version, err := tree.Load()
	if err != nil {
		return nil, fmt.Errorf("load tree: %w", err)
	}
	st := newState(tree, logger)
	if err = st.load(); err != nil {
		return nil, fmt.Errorf("load header at version %d: %w", version, err)
	}
	logger.Info("state loaded", "version", version, "height", st.header.Height, "hash", common.Bytes2Hex(st.header.Hash))
	return &StateDB{logger: logger, tree: tree, committed: st}, nil
}

func (db *StateDB) Close() error {
	return db.tree.Close()
}

func (db *StateDB) Header() *StateHeader {
	return db.State().Header()
}

// State returns the last committed state. Callers must treat it as read-only.
func (db *StateDB) State() *State {
	db.mtx.RLock()
	defer db.mtx.RUnlock()
	return db.committed
}

// NewState starts the next block on top of the committed state.
func (db *StateDB) NewState() *State {
	return db.State().nextState()
}

// SetState saves st as a new tree version and makes it the committed state.
func (db *StateDB) SetState(st *State) (common.Hash, error) {
	db.mtx.Lock()
	defer db.mtx.Unlock()
	hash, err := st.save()
	if err != nil {
		return hash, err
	}
	db.committed = st
	return hash, nil
}
