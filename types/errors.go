package types

import (
	"errors"
	"fmt"
)

const Codespace = "gp"

type ErrorKind uint8

const (
	KindValidation       ErrorKind = 1
	KindAuthorization    ErrorKind = 2
	KindState            ErrorKind = 3
	KindExternalTransfer ErrorKind = 4
	KindInternal         ErrorKind = 5
)

func (k ErrorKind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindAuthorization:
		return "authorization"
	case KindState:
		return "state"
	case KindExternalTransfer:
		return "external_transfer"
	case KindInternal:
		return "internal"
	}
	return "unknown"
}

// Error is a registered failure with a stable ABCI code.
type Error struct {
	Kind ErrorKind
	Code uint32
	Msg  string
}

func (e *Error) Error() string {
	return e.Msg
}

func register(kind ErrorKind, code uint32, msg string) *Error {
	if _, ok := registry[code]; ok {
		panic(fmt.Sprintf("error code %d registered twice", code))
	}
	e := &Error{Kind: kind, Code: code, Msg: msg}
	registry[code] = e
	return e
}

var registry = map[uint32]*Error{}

var (
	// validation
	ErrInvalidTier        = register(KindValidation, 10, "invalid tier")
	ErrTargetExceeded     = register(KindValidation, 11, "target exceeded")
	ErrDuplicateReference = register(KindValidation, 12, "duplicate reference")
	ErrDuplicateProposal  = register(KindValidation, 13, "duplicate proposal")
	ErrZeroAmount         = register(KindValidation, 14, "zero amount")
	ErrZeroAddress        = register(KindValidation, 15, "zero address")
	ErrEmptyReference     = register(KindValidation, 16, "empty reference")
	ErrInvalidSupport     = register(KindValidation, 17, "invalid vote support")
	ErrInvalidAction      = register(KindValidation, 18, "invalid action")
	ErrAmountOverflow     = register(KindValidation, 19, "amount overflow")
	ErrUnknownAsset       = register(KindValidation, 20, "unknown asset")

	// lookups
	ErrUnknownProposal  = register(KindValidation, 30, "unknown proposal")
	ErrUnknownDonation  = register(KindValidation, 31, "unknown donation")
	ErrUnknownReference = register(KindValidation, 32, "unknown reference")

	// authorization
	ErrMissingGovernanceRole = register(KindAuthorization, 40, "missing governance role")
	ErrNotOwner              = register(KindAuthorization, 41, "caller is not the owner")
	ErrNotRequester          = register(KindAuthorization, 42, "caller is neither requester nor governance role holder")
	ErrFaucetDisabled        = register(KindAuthorization, 43, "faucet disabled")

	// state
	ErrVotingClosed    = register(KindState, 50, "voting closed")
	ErrAlreadyVoted    = register(KindState, 51, "already voted")
	ErrNotSucceeded    = register(KindState, 52, "proposal not succeeded")
	ErrAlreadyExecuted = register(KindState, 53, "proposal already executed")
	ErrNotOpen         = register(KindState, 54, "donation not open")
	ErrNotFunded       = register(KindState, 55, "donation not funded")
	ErrAlreadyClaimed  = register(KindState, 56, "donation already claimed")
	ErrNotAborted      = register(KindState, 57, "donation not aborted")
	ErrNothingToRefund = register(KindState, 58, "nothing to refund")
	ErrAlreadyCanceled = register(KindState, 59, "proposal already canceled")

	// external transfer
	ErrTransferFailed        = register(KindExternalTransfer, 70, "transfer failed")
	ErrInsufficientBalance   = register(KindExternalTransfer, 71, "insufficient balance")
	ErrInsufficientAllowance = register(KindExternalTransfer, 72, "insufficient allowance")
	ErrInsufficientPool      = register(KindExternalTransfer, 73, "insufficient sponsor pool")

	// tx plumbing
	ErrInvalidTx      = register(KindInternal, 90, "invalid tx")
	ErrTxNonceInvalid = register(KindInternal, 91, "nonce invalid")
	ErrTxSigInvalid   = register(KindInternal, 92, "signature invalid")
	ErrUnsupportedTx  = register(KindInternal, 93, "unsupported tx type")
)

// ErrorOf finds the registered error in err's chain.
func ErrorOf(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// ABCICode maps err to the code reported in tx results; unregistered errors map to 1.
func ABCICode(err error) uint32 {
	if err == nil {
		return 0
	}
	if e, ok := ErrorOf(err); ok {
		return e.Code
	}
	return 1
}

func KindOf(err error) ErrorKind {
	if e, ok := ErrorOf(err); ok {
		return e.Kind
	}
	return KindInternal
}
