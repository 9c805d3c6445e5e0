package state

import (
	"encoding/binary"
	"errors"
	"sort"

	abci "github.com/cometbft/cometbft/abci/types"
	cmtlog "github.com/cometbft/cometbft/libs/log"
	"github.com/cosmos/iavl"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/rlp"
	"github.com/holiman/uint256"
	"github.com/syndtr/goleveldb/leveldb"
)

var (
	KeyState      = []byte("s")
	KeyValidators = []byte("vals")
)

var (
	ErrNotFound       = errors.New("not found")
	ErrNotRootState   = errors.New("state is a branch")
	ErrBranchReleased = errors.New("branch already written")
)

type StateHeader struct {
	ChainId  string
	Height   uint64
	Time     uint64
	RootHash []byte
	Hash     []byte
}

func (h *StateHeader) clone() *StateHeader {
	n := *h
	n.RootHash = common.CopyBytes(h.RootHash)
	n.Hash = common.CopyBytes(h.Hash)
	return &n
}

type entry struct {
	val []byte
	del bool
}

// State is a write-buffered view over the IAVL tree. Branches stack on top of
// their parent and only reach it through Write.
type State struct {
	logger cmtlog.Logger
	db     *iavl.MutableTree
	dbVer  int64

	parent  *State
	written bool

	header *StateHeader
	writes map[string]entry
	events []abci.Event
}

func newState(db *iavl.MutableTree, logger cmtlog.Logger) *State {
	return &State{
		logger: logger,
		db:     db,
		header: new(StateHeader),
		writes: make(map[string]entry),
	}
}

func (s *State) nextState() *State {
	return &State{
		logger: s.logger,
		db:     s.db,
		dbVer:  s.dbVer,
		header: s.header.clone(),
		writes: make(map[string]entry),
	}
}

// Branch returns a child state whose writes are invisible to s until Write.
func (s *State) Branch() *State {
	return &State{
		logger: s.logger,
		db:     s.db,
		dbVer:  s.dbVer,
		parent: s,
		header: s.header,
		writes: make(map[string]entry),
	}
}

// Write merges the branch into its parent. A branch can be written once.
func (s *State) Write() error {
	if s.parent == nil {
		return ErrNotRootState
	}
	if s.written {
		return ErrBranchReleased
	}
	for k, e := range s.writes {
		s.parent.writes[k] = e
	}
	s.parent.events = append(s.parent.events, s.events...)
	s.written = true
	s.writes = nil
	s.events = nil
	return nil
}

// Emit buffers an event; it reaches the parent only if the branch is written.
func (s *State) Emit(events ...abci.Event) {
	s.events = append(s.events, events...)
}

// TakeEvents returns and clears the buffered events.
func (s *State) TakeEvents() []abci.Event {
	events := s.events
	s.events = nil
	return events
}

func (s *State) load() (err error) {
	val, err := s.db.Get(KeyState)
	if err != nil {
		if errors.Is(err, leveldb.ErrNotFound) {
			return nil
		}
		return err
	}
	if val == nil {
		return nil
	}
	if err = rlp.DecodeBytes(val, s.header); err != nil {
		return
	}
	h := s.db.Hash()
	if h != nil {
		s.calcHash(h, true)
	}
	return
}

func (s *State) calcHash(rootHash []byte, update bool) (h common.Hash) {
	h = crypto.Keccak256Hash(rootHash)
	if update {
		s.header.RootHash = common.CopyBytes(rootHash)
		s.header.Hash = common.CopyBytes(h[:])
	}
	return
}

// Update flushes buffered writes into the working tree and returns the app hash.
func (s *State) Update() (h common.Hash, err error) {
	if s.parent != nil {
		return h, ErrNotRootState
	}
	var hash []byte
	defer func() {
		if hash == nil {
			s.db.Rollback()
		}
	}()
	val, err := rlp.EncodeToBytes(s.header)
	if err != nil {
		return
	}
	if _, err = s.db.Set(KeyState, val); err != nil {
		return
	}
	keys := make([]string, 0, len(s.writes))
	for k := range s.writes {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		e := s.writes[k]
		if e.del {
			if _, _, err = s.db.Remove([]byte(k)); err != nil {
				return
			}
			continue
		}
		if _, err = s.db.Set([]byte(k), e.val); err != nil {
			return
		}
	}
	hash = s.db.WorkingHash()
	h = s.calcHash(hash, false)
	s.writes = make(map[string]entry)
	return
}

func (s *State) save() (h common.Hash, err error) {
	hash, ver, err := s.db.SaveVersion()
	if err != nil {
		return h, err
	}
	s.dbVer = ver
	h = s.calcHash(hash, true)
	return
}

func (s *State) Header() *StateHeader {
	return s.header
}

func (s *State) Hash() (h common.Hash) {
	if s.header.Hash != nil {
		copy(h[:], s.header.Hash)
	}
	return
}

func (s *State) SetChainId(chainId string) {
	s.header.ChainId = chainId
}

// SetBlock positions a root state at the block being executed.
func (s *State) SetBlock(height, unixTime uint64) {
	s.header.Height = height
	s.header.Time = unixTime
}

func (s *State) Get(key []byte) ([]byte, error) {
	for cur := s; cur != nil; cur = cur.parent {
		if e, ok := cur.writes[string(key)]; ok {
			if e.del {
				return nil, nil
			}
			return e.val, nil
		}
	}
	val, err := s.db.Get(key)
	if err != nil {
		if errors.Is(err, leveldb.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return val, nil
}

func (s *State) Set(key, val []byte) {
	s.writes[string(key)] = entry{val: common.CopyBytes(val)}
}

func (s *State) Delete(key []byte) {
	s.writes[string(key)] = entry{del: true}
}

// GetObject decodes the RLP value at key into v and reports whether it existed.
func (s *State) GetObject(key []byte, v any) (bool, error) {
	val, err := s.Get(key)
	if err != nil || val == nil {
		return false, err
	}
	return true, rlp.DecodeBytes(val, v)
}

func (s *State) SetObject(key []byte, v any) error {
	val, err := rlp.EncodeToBytes(v)
	if err != nil {
		return err
	}
	s.Set(key, val)
	return nil
}

func (s *State) GetUint64(key []byte) (uint64, error) {
	val, err := s.Get(key)
	if err != nil || len(val) == 0 {
		return 0, err
	}
	if len(val) != 8 {
		return 0, errors.New("malformed uint64 value")
	}
	return binary.BigEndian.Uint64(val), nil
}

func (s *State) SetUint64(key []byte, v uint64) {
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], v)
	s.Set(key, buf[:])
}

// GetAmount returns the amount stored at key, zero when absent.
func (s *State) GetAmount(key []byte) (*uint256.Int, error) {
	val, err := s.Get(key)
	if err != nil {
		return nil, err
	}
	if len(val) > 32 {
		return nil, errors.New("malformed amount value")
	}
	return new(uint256.Int).SetBytes(val), nil
}

func (s *State) SetAmount(key []byte, v *uint256.Int) {
	if v.IsZero() {
		s.Delete(key)
		return
	}
	b := v.Bytes32()
	s.Set(key, b[:])
}

type Validator struct {
	PubKey []byte `json:"pubKey"`
	Power  uint64 `json:"power"`
}

func (s *State) Validators() (vals []Validator, err error) {
	_, err = s.GetObject(KeyValidators, &vals)
	return
}

func (s *State) AddValidator(pubKey []byte, power uint64) error {
	vals, err := s.Validators()
	if err != nil {
		return err
	}
	vals = append(vals, Validator{PubKey: common.CopyBytes(pubKey), Power: power})
	return s.SetObject(KeyValidators, vals)
}
