package main

import (
	"fmt"
	"strconv"

	"github.com/calehh/gp-node/governance"
	"github.com/calehh/gp-node/token"
	"github.com/calehh/gp-node/tx"
	"github.com/calehh/gp-node/types"
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/spf13/cobra"
)

var txCmd = &cobra.Command{
	Use:   "tx",
	Short: "Sign and broadcast transactions",
}

func parseAddress(s string) (common.Address, error) {
	if !common.IsHexAddress(s) {
		return common.Address{}, fmt.Errorf("invalid address %q", s)
	}
	return common.HexToAddress(s), nil
}

func parseAmount(s string) (*uint256.Int, error) {
	return types.ParseAmount(s)
}

func parseHash(s string) (common.Hash, error) {
	b := common.FromHex(s)
	if len(b) != common.HashLength {
		return common.Hash{}, fmt.Errorf("invalid proposal id %q", s)
	}
	return common.BytesToHash(b), nil
}

func parseSupport(s string) (uint8, error) {
	switch s {
	case "against", "0":
		return uint8(governance.SupportAgainst), nil
	case "for", "1":
		return uint8(governance.SupportFor), nil
	case "abstain", "2":
		return uint8(governance.SupportAbstain), nil
	}
	return 0, fmt.Errorf("invalid support %q, want for, against or abstain", s)
}

func assetFlag(cmd *cobra.Command) {
	cmd.Flags().String("asset", token.NameGovernance, "ledger: gp or usd")
}

func assetOf(cmd *cobra.Command) tx.Asset {
	a, _ := cmd.Flags().GetString("asset")
	return tx.Asset(a)
}

// tokenTx builds the commands taking <address> <amount> arguments.
func tokenTx(use, short string, tp tx.GPTxType, build func(cmd *cobra.Command, to common.Address, amount *uint256.Int) any) *cobra.Command {
	cmd := &cobra.Command{
		Use:   use + " <address> <amount>",
		Short: short,
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			to, err := parseAddress(args[0])
			if err != nil {
				return err
			}
			amount, err := parseAmount(args[1])
			if err != nil {
				return err
			}
			return sendTx(cmd, tp, build(cmd, to, amount))
		},
	}
	assetFlag(cmd)
	return cmd
}

// donationTx builds the commands taking a single <donation-id> argument.
func donationTx(use, short string, tp tx.GPTxType) *cobra.Command {
	return &cobra.Command{
		Use:   use + " <donation-id>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseUint(args[0], 10, 64)
			if err != nil {
				return err
			}
			return sendTx(cmd, tp, &tx.DonationTx{Donation: id})
		},
	}
}

// amountTx builds the commands taking a single <amount> argument.
func amountTx(use, short string, tp tx.GPTxType) *cobra.Command {
	return &cobra.Command{
		Use:   use + " <amount>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			amount, err := parseAmount(args[0])
			if err != nil {
				return err
			}
			return sendTx(cmd, tp, &tx.AmountTx{Amount: amount})
		},
	}
}

var delegateCmd = &cobra.Command{
	Use:   "delegate <address>",
	Short: "Delegate your governance token voting weight",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		to, err := parseAddress(args[0])
		if err != nil {
			return err
		}
		return sendTx(cmd, tx.GPTxTypeDelegate, &tx.DelegateTx{Delegatee: to})
	},
}

var grantRoleCmd = &cobra.Command{
	Use:   "grant-role <gp|usd|vault> <address>",
	Short: "Grant the governance role of a component (owner only)",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		account, err := parseAddress(args[1])
		if err != nil {
			return err
		}
		return sendTx(cmd, tx.GPTxTypeAddGovernanceRole, &tx.AddGovernanceRoleTx{Component: args[0], Account: account})
	},
}

var proposeDonationCmd = &cobra.Command{
	Use:   "propose-donation <amount> <period-seconds> <recipient> <reference>",
	Short: "Request a donation; opens a governance proposal",
	Args:  cobra.ExactArgs(4),
	RunE: func(cmd *cobra.Command, args []string) error {
		amount, err := parseAmount(args[0])
		if err != nil {
			return err
		}
		period, err := strconv.ParseUint(args[1], 10, 64)
		if err != nil {
			return err
		}
		recipient, err := parseAddress(args[2])
		if err != nil {
			return err
		}
		return sendTx(cmd, tx.GPTxTypeAddDonationProposal, &tx.AddDonationProposalTx{
			Amount:    amount,
			Period:    period,
			Recipient: recipient,
			Reference: args[3],
		})
	},
}

var voteCmd = &cobra.Command{
	Use:   "vote <proposal-id> <for|against|abstain>",
	Short: "Cast a vote on a proposal",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseHash(args[0])
		if err != nil {
			return err
		}
		support, err := parseSupport(args[1])
		if err != nil {
			return err
		}
		return sendTx(cmd, tx.GPTxTypeCastVote, &tx.CastVoteTx{Proposal: id, Support: support})
	},
}

var executeCmd = &cobra.Command{
	Use:   "execute <proposal-id>",
	Short: "Execute a succeeded proposal",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseHash(args[0])
		if err != nil {
			return err
		}
		return sendTx(cmd, tx.GPTxTypeExecute, &tx.ExecuteTx{Proposal: id})
	},
}

var donateCmd = &cobra.Command{
	Use:   "donate <donation-id> <amount>",
	Short: "Contribute stable asset to an open donation (approve the vault first)",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := strconv.ParseUint(args[0], 10, 64)
		if err != nil {
			return err
		}
		amount, err := parseAmount(args[1])
		if err != nil {
			return err
		}
		return sendTx(cmd, tx.GPTxTypeDonate, &tx.DonateTx{Donation: id, Amount: amount})
	},
}

func init() {
	urlFlag(txCmd)
	keyFlag(txCmd)
	txCmd.AddCommand(
		tokenTx("transfer", "Transfer tokens", tx.GPTxTypeTransfer, func(cmd *cobra.Command, to common.Address, amount *uint256.Int) any {
			return &tx.TransferTx{Asset: assetOf(cmd), To: to, Amount: amount}
		}),
		tokenTx("approve", "Approve a spender", tx.GPTxTypeApprove, func(cmd *cobra.Command, to common.Address, amount *uint256.Int) any {
			return &tx.ApproveTx{Asset: assetOf(cmd), Spender: to, Amount: amount}
		}),
		tokenTx("mint", "Mint tokens (role holders, or anyone on a faucet ledger)", tx.GPTxTypeMint, func(cmd *cobra.Command, to common.Address, amount *uint256.Int) any {
			return &tx.MintTx{Asset: assetOf(cmd), To: to, Amount: amount}
		}),
		delegateCmd,
		grantRoleCmd,
		amountTx("sponsor", "Deposit stable asset into the sponsor pool for governance tokens", tx.GPTxTypeSponsor),
		amountTx("withdraw-pool", "Move sponsor pool funds to the fund address", tx.GPTxTypeWithdrawSponsorPool),
		proposeDonationCmd,
		voteCmd,
		executeCmd,
		donationTx("execute-donation", "Execute the proposal of a donation request", tx.GPTxTypeExecuteAddDonation),
		donationTx("abort-proposal", "Abort a pending donation request (requester), or its open record (vault role)", tx.GPTxTypeAbortProposal),
		donateCmd,
		donationTx("claim", "Release a funded donation to its recipient", tx.GPTxTypeClaim),
		donationTx("abort-donation", "Abort an open donation (vault role)", tx.GPTxTypeAbortDonation),
		donationTx("refund", "Recover your contribution to an aborted donation", tx.GPTxTypeRefund),
	)
}
