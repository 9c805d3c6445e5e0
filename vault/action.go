package vault

import (
	"encoding/binary"
	"fmt"

	"github.com/calehh/gp-node/types"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/holiman/uint256"
)

const (
	ActionOpenDonation byte = 0x01

	openActionLen = 1 + 8 + 32 + 8 + common.AddressLength + common.HashLength
)

// OpenAction is the decoded payload of an open-donation proposal.
type OpenAction struct {
	Donation      uint64
	Amount        *uint256.Int
	Period        uint64
	Recipient     common.Address
	ReferenceHash common.Hash
}

// EncodeOpenAction lays out an open-donation action as
// kind[1] || donation[8] || amount[32] || period[8] || recipient[20] || keccak256(reference)[32],
// integers big-endian.
func EncodeOpenAction(donation uint64, amount *uint256.Int, period uint64, recipient common.Address, reference string) []byte {
	buf := make([]byte, 0, openActionLen)
	buf = append(buf, ActionOpenDonation)
	buf = binary.BigEndian.AppendUint64(buf, donation)
	amt := amount.Bytes32()
	buf = append(buf, amt[:]...)
	buf = binary.BigEndian.AppendUint64(buf, period)
	buf = append(buf, recipient.Bytes()...)
	buf = append(buf, crypto.Keccak256([]byte(reference))...)
	return buf
}

func DecodeOpenAction(action []byte) (*OpenAction, error) {
	if len(action) != openActionLen || action[0] != ActionOpenDonation {
		return nil, fmt.Errorf("%w: malformed open donation action", types.ErrInvalidAction)
	}
	b := action[1:]
	a := &OpenAction{}
	a.Donation = binary.BigEndian.Uint64(b[:8])
	b = b[8:]
	a.Amount = new(uint256.Int).SetBytes(b[:32])
	b = b[32:]
	a.Period = binary.BigEndian.Uint64(b[:8])
	b = b[8:]
	a.Recipient = common.BytesToAddress(b[:common.AddressLength])
	b = b[common.AddressLength:]
	a.ReferenceHash = common.BytesToHash(b)
	return a, nil
}
