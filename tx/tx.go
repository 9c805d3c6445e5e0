package tx

import (
	"crypto/ecdsa"
	"encoding/json"
	"fmt"

	"github.com/calehh/gp-node/types"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

type GPTx struct {
	Version uint8          `json:"version"`
	Type    GPTxType       `json:"type"`
	Nonce   uint64         `json:"nonce"`
	From    common.Address `json:"from"`
	Tx      any            `json:"tx"`
	Sig     [][]byte       `json:"sig"`
}

type gpTxTmpl[Tx any] struct {
	Version uint8          `json:"version"`
	Type    GPTxType       `json:"type"`
	Nonce   uint64         `json:"nonce"`
	From    common.Address `json:"from"`
	Tx      Tx             `json:"tx"`
	Sig     [][]byte       `json:"sig"`
}

// SigData is the JSON of the tx with its signature list replaced by ext.
func (tx *GPTx) SigData(ext []byte) (dat []byte, err error) {
	ntx := *tx
	ntx.Sig = [][]byte{ext}
	dat, err = json.Marshal(ntx)
	return
}

func (tx *GPTx) SigHash(chainId []byte) (h common.Hash, err error) {
	dat, err := tx.SigData(chainId)
	if err != nil {
		return
	}
	return crypto.Keccak256Hash(dat), nil
}

// Sign sets From and Sig for the key holder.
func (tx *GPTx) Sign(key *ecdsa.PrivateKey, chainId []byte) error {
	tx.From = crypto.PubkeyToAddress(key.PublicKey)
	h, err := tx.SigHash(chainId)
	if err != nil {
		return err
	}
	sig, err := crypto.Sign(h[:], key)
	if err != nil {
		return err
	}
	tx.Sig = [][]byte{sig}
	return nil
}

// Sender recovers the signer and checks it matches From.
func (tx *GPTx) Sender(chainId []byte) (addr common.Address, err error) {
	if len(tx.Sig) != 1 || len(tx.Sig[0]) != crypto.SignatureLength {
		return addr, fmt.Errorf("%w: missing signature", types.ErrTxSigInvalid)
	}
	h, err := tx.SigHash(chainId)
	if err != nil {
		return
	}
	pub, err := crypto.SigToPub(h[:], tx.Sig[0])
	if err != nil {
		return addr, fmt.Errorf("%w: %v", types.ErrTxSigInvalid, err)
	}
	addr = crypto.PubkeyToAddress(*pub)
	if addr != tx.From {
		return common.Address{}, fmt.Errorf("%w: signed by %s", types.ErrTxSigInvalid, addr.Hex())
	}
	return
}

func parseGPTxType(dat []byte) GPTxType {
	var tx struct {
		Type GPTxType `json:"type"`
	}
	err := json.Unmarshal(dat, &tx)
	if err != nil {
		return GPTxTypeUnknown
	}
	return tx.Type
}

func unmarshalGPTx[Tx any](dat []byte) (btx *GPTx, err error) {
	var txt gpTxTmpl[Tx]
	err = json.Unmarshal(dat, &txt)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidTx, err)
	}
	btx = new(GPTx)
	btx.Version = txt.Version
	btx.Type = txt.Type
	btx.Nonce = txt.Nonce
	btx.From = txt.From
	btx.Tx = &txt.Tx
	btx.Sig = txt.Sig
	return
}

func UnmarshalGPTx(dat []byte) (btx *GPTx, err error) {
	tp := parseGPTxType(dat)
	switch tp {
	case GPTxTypeTransfer:
		return unmarshalGPTx[TransferTx](dat)
	case GPTxTypeApprove:
		return unmarshalGPTx[ApproveTx](dat)
	case GPTxTypeDelegate:
		return unmarshalGPTx[DelegateTx](dat)
	case GPTxTypeMint:
		return unmarshalGPTx[MintTx](dat)
	case GPTxTypeAddGovernanceRole:
		return unmarshalGPTx[AddGovernanceRoleTx](dat)
	case GPTxTypeSponsor, GPTxTypeWithdrawSponsorPool:
		return unmarshalGPTx[AmountTx](dat)
	case GPTxTypeAddDonationProposal:
		return unmarshalGPTx[AddDonationProposalTx](dat)
	case GPTxTypeCastVote:
		return unmarshalGPTx[CastVoteTx](dat)
	case GPTxTypeExecute:
		return unmarshalGPTx[ExecuteTx](dat)
	case GPTxTypeExecuteAddDonation, GPTxTypeAbortProposal, GPTxTypeClaim, GPTxTypeAbortDonation, GPTxTypeRefund:
		return unmarshalGPTx[DonationTx](dat)
	case GPTxTypeDonate:
		return unmarshalGPTx[DonateTx](dat)
	default:
		err = fmt.Errorf("%w: %d", ErrUnsupportedTxType, tp)
	}
	return
}

func MarshalGPTx(btx *GPTx) (dat []byte, err error) {
	return json.Marshal(btx)
}
