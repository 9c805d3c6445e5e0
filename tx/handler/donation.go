package handler

import (
	"github.com/calehh/gp-node/state"
	"github.com/calehh/gp-node/tx"
	"github.com/calehh/gp-node/types"
	cmtlog "github.com/cometbft/cometbft/libs/log"
)

func registerDonationHandlers(hdlrs map[tx.GPTxType]TxHandler, logger cmtlog.Logger, m *Modules) {
	hdlrs[tx.GPTxTypeAddDonationProposal] = newTxHandler(logger, "addDonationProposal",
		func(t *tx.AddDonationProposalTx) error {
			if t.Reference == "" {
				return types.ErrEmptyReference
			}
			return requireAmount(t.Amount)
		},
		func(st *state.State, env types.Env, t *tx.AddDonationProposalTx) error {
			_, err := m.Service.AddDonationProposal(st, env, t.Amount, t.Period, t.Recipient, t.Reference)
			return err
		})
	hdlrs[tx.GPTxTypeExecuteAddDonation] = newTxHandler(logger, "executeAddDonation", nil,
		func(st *state.State, env types.Env, t *tx.DonationTx) error {
			return m.Service.ExecuteAddDonationProposal(st, env, t.Donation)
		})
	hdlrs[tx.GPTxTypeAbortProposal] = newTxHandler(logger, "abortDonationProposal", nil,
		func(st *state.State, env types.Env, t *tx.DonationTx) error {
			return m.Service.AbortDonationProposal(st, env, t.Donation)
		})
	hdlrs[tx.GPTxTypeSponsor] = newTxHandler(logger, "sponsor",
		func(t *tx.AmountTx) error { return requireAmount(t.Amount) },
		func(st *state.State, env types.Env, t *tx.AmountTx) error {
			_, err := m.Vault.SponsorGp(st, env, t.Amount)
			return err
		})
	hdlrs[tx.GPTxTypeWithdrawSponsorPool] = newTxHandler(logger, "withdrawSponsorPool",
		func(t *tx.AmountTx) error { return requireAmount(t.Amount) },
		func(st *state.State, env types.Env, t *tx.AmountTx) error {
			return m.Vault.WithdrawSponsorPool(st, env, t.Amount)
		})
	hdlrs[tx.GPTxTypeDonate] = newTxHandler(logger, "donate",
		func(t *tx.DonateTx) error { return requireAmount(t.Amount) },
		func(st *state.State, env types.Env, t *tx.DonateTx) error {
			_, err := m.Vault.Donate(st, env, t.Donation, t.Amount)
			return err
		})
	hdlrs[tx.GPTxTypeClaim] = newTxHandler(logger, "claim", nil,
		func(st *state.State, env types.Env, t *tx.DonationTx) error {
			_, err := m.Vault.Claim(st, env, t.Donation)
			return err
		})
	hdlrs[tx.GPTxTypeAbortDonation] = newTxHandler(logger, "abortDonation", nil,
		func(st *state.State, env types.Env, t *tx.DonationTx) error {
			return m.Vault.Abort(st, env, t.Donation)
		})
	hdlrs[tx.GPTxTypeRefund] = newTxHandler(logger, "refund", nil,
		func(st *state.State, env types.Env, t *tx.DonationTx) error {
			_, err := m.Vault.Refund(st, env, t.Donation)
			return err
		})
}
