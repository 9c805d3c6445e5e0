package vault

import (
	"encoding/json"
	"fmt"

	"github.com/holiman/uint256"
)

type Status uint8

const (
	StatusPending Status = 0
	StatusOpen    Status = 1
	StatusFunded  Status = 2
	StatusClaimed Status = 3
	StatusAborted Status = 4
)

func (s Status) String() string {
	switch s {
	case StatusPending:
		return "Pending"
	case StatusOpen:
		return "Open"
	case StatusFunded:
		return "Funded"
	case StatusClaimed:
		return "Claimed"
	case StatusAborted:
		return "Aborted"
	}
	return "Unknown"
}

func (s Status) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

func (s *Status) UnmarshalJSON(dat []byte) error {
	var name string
	if err := json.Unmarshal(dat, &name); err != nil {
		return err
	}
	for st := StatusPending; st <= StatusAborted; st++ {
		if st.String() == name {
			*s = st
			return nil
		}
	}
	return fmt.Errorf("unknown donation status %q", name)
}

// DeriveStatus computes the status of a record at time now. An open record
// is funded once its target is met and its period has elapsed; neither
// condition alone is enough.
func DeriveStatus(stored Status, contributed, target *uint256.Int, openedAt, period, now uint64) Status {
	if stored != StatusOpen {
		return stored
	}
	if contributed.Lt(target) {
		return StatusOpen
	}
	if now < openedAt || now-openedAt < period {
		return StatusOpen
	}
	return StatusFunded
}
