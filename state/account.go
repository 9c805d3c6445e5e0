package state

import (
	"fmt"

	"github.com/calehh/gp-node/tx"
	"github.com/calehh/gp-node/types"
	"github.com/ethereum/go-ethereum/common"
)

var KeyAccountBody = "a%x"

type Account struct {
	Address common.Address `json:"address"`
	Nonce   uint64         `json:"nonce"`
}

func (s *State) GetAccount(addr common.Address) (acnt *Account, err error) {
	acnt = &Account{Address: addr}
	_, err = s.GetObject([]byte(fmt.Sprintf(KeyAccountBody, addr.Bytes())), acnt)
	if err != nil {
		return nil, err
	}
	return
}

func (s *State) setAccount(acnt *Account) error {
	return s.SetObject([]byte(fmt.Sprintf(KeyAccountBody, acnt.Address.Bytes())), acnt)
}

// Verify checks the signature and nonce of btx and returns its sender.
func (s *State) Verify(btx *tx.GPTx, allowNonceGap bool) (sender common.Address, err error) {
	sender, err = btx.Sender([]byte(s.header.ChainId))
	if err != nil {
		return
	}
	a, err := s.GetAccount(sender)
	if err != nil {
		return
	}
	if !(a.Nonce == btx.Nonce || (allowNonceGap && a.Nonce < btx.Nonce)) {
		err = fmt.Errorf("%w: expected %d got %d", types.ErrTxNonceInvalid, a.Nonce, btx.Nonce)
	}
	return
}

func (s *State) IncrementNonce(addr common.Address) error {
	a, err := s.GetAccount(addr)
	if err != nil {
		return err
	}
	a.Nonce += 1
	return s.setAccount(a)
}
