package types

import (
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// Env carries the caller and the block position a call executes at.
type Env struct {
	Sender common.Address
	Height uint64
	Time   time.Time
}

// As returns a copy of env executing on behalf of sender.
func (e Env) As(sender common.Address) Env {
	e.Sender = sender
	return e
}

func (e Env) Now() uint64 {
	if e.Time.IsZero() {
		return 0
	}
	return uint64(e.Time.Unix())
}

func ModuleAddress(name string) common.Address {
	return common.BytesToAddress(crypto.Keccak256([]byte("gp/module/" + name))[12:])
}

const (
	ModuleGovernance = "governance"
	ModuleVault      = "vault"
	ModuleService    = "service"
)

var (
	GovernanceAddress = ModuleAddress(ModuleGovernance)
	VaultAddress      = ModuleAddress(ModuleVault)
	ServiceAddress    = ModuleAddress(ModuleService)
)
