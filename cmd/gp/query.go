package main

import (
	"strconv"

	"github.com/calehh/gp-node/app"
	"github.com/calehh/gp-node/governance"
	"github.com/calehh/gp-node/service"
	"github.com/calehh/gp-node/state"
	"github.com/calehh/gp-node/types"
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/samber/lo"
	"github.com/spf13/cobra"
)

var queryCmd = &cobra.Command{
	Use:     "query",
	Aliases: []string{"q"},
	Short:   "Query ledger state",
}

func dec(a *uint256.Int) string {
	if a == nil {
		return "0"
	}
	return a.Dec()
}

// runQuery performs one ABCI query and prints the decoded result.
func runQuery[T any](cmd *cobra.Command, path string, args app.QueryArgs, header table.Row, rows func(v *T) []table.Row) error {
	c, err := newClient(cmd)
	if err != nil {
		return err
	}
	v := new(T)
	if err = c.query(cmd.Context(), path, args, v); err != nil {
		return err
	}
	return printOutput(cmd, v, header, func() []table.Row { return rows(v) })
}

func donationRows(views []*service.DonationView) []table.Row {
	return lo.Map(views, func(d *service.DonationView, _ int) table.Row {
		return table.Row{d.Id, d.Status, dec(d.Amount), dec(d.Contributed), d.Period, d.Recipient.Hex(), d.Reference, d.Proposal.Hex()}
	})
}

var donationHeader = table.Row{"ID", "STATUS", "TARGET", "CONTRIBUTED", "PERIOD", "RECIPIENT", "REFERENCE", "PROPOSAL"}

func proposalRows(ps []*app.ProposalResult) []table.Row {
	return lo.Map(ps, func(p *app.ProposalResult, _ int) table.Row {
		return table.Row{p.Id.Hex(), p.State, p.VoteStart, p.VoteEnd, dec(p.ForVotes), dec(p.AgainstVotes), dec(p.AbstainVotes), p.Description}
	})
}

var proposalHeader = table.Row{"ID", "STATE", "START", "END", "FOR", "AGAINST", "ABSTAIN", "DESCRIPTION"}

func addressArg(args []string, i int) (common.Address, error) {
	return parseAddress(args[i])
}

var accountQueryCmd = &cobra.Command{
	Use:   "account <address>",
	Short: "Show an account's nonce",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		addr, err := addressArg(args, 0)
		if err != nil {
			return err
		}
		return runQuery(cmd, app.QueryAccounts, app.QueryArgs{Address: addr}, table.Row{"ADDRESS", "NONCE"},
			func(a *state.Account) []table.Row { return []table.Row{{a.Address.Hex(), a.Nonce}} })
	},
}

var balanceQueryCmd = &cobra.Command{
	Use:   "balance <address>",
	Short: "Show a token balance and voting weight",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		addr, err := addressArg(args, 0)
		if err != nil {
			return err
		}
		return runQuery(cmd, app.QueryBalances, app.QueryArgs{Address: addr, Asset: string(assetOf(cmd))},
			table.Row{"ASSET", "ADDRESS", "BALANCE", "VOTES", "DELEGATE"},
			func(b *app.BalanceResult) []table.Row {
				return []table.Row{{b.Asset, b.Address.Hex(), dec(b.Balance), dec(b.Votes), b.Delegate.Hex()}}
			})
	},
}

var proposalQueryCmd = &cobra.Command{
	Use:   "proposal <proposal-id>",
	Short: "Show a proposal and its state",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseHash(args[0])
		if err != nil {
			return err
		}
		return runQuery(cmd, app.QueryProposals, app.QueryArgs{Proposal: id}, proposalHeader,
			func(p *app.ProposalResult) []table.Row { return proposalRows([]*app.ProposalResult{p}) })
	},
}

var proposalsQueryCmd = &cobra.Command{
	Use:   "proposals",
	Short: "List proposals in creation order",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		offset, _ := cmd.Flags().GetUint64("offset")
		limit, _ := cmd.Flags().GetUint64("limit")
		return runQuery(cmd, app.QueryProposals, app.QueryArgs{Offset: offset, Limit: limit}, proposalHeader,
			func(ps *[]*app.ProposalResult) []table.Row { return proposalRows(*ps) })
	},
}

var votesQueryCmd = &cobra.Command{
	Use:   "votes <proposal-id>",
	Short: "Show the vote tally of a proposal",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseHash(args[0])
		if err != nil {
			return err
		}
		return runQuery(cmd, app.QueryProposalVotes, app.QueryArgs{Proposal: id}, table.Row{"AGAINST", "FOR", "ABSTAIN"},
			func(t *governance.Tally) []table.Row { return []table.Row{{dec(t.Against), dec(t.For), dec(t.Abstain)}} })
	},
}

var hasVotedQueryCmd = &cobra.Command{
	Use:   "has-voted <proposal-id> <address>",
	Short: "Show whether an account voted and its voting balance",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseHash(args[0])
		if err != nil {
			return err
		}
		addr, err := addressArg(args, 1)
		if err != nil {
			return err
		}
		return runQuery(cmd, app.QueryHasVoted, app.QueryArgs{Proposal: id, Address: addr}, table.Row{"VOTED", "SUPPORT", "WEIGHT", "VOTING BALANCE"},
			func(r *app.HasVotedResult) []table.Row {
				support, weight := "-", "-"
				if r.Vote != nil {
					support, weight = strconv.Itoa(int(r.Vote.Support)), dec(r.Vote.Weight)
				}
				return []table.Row{{r.Voted, support, weight, dec(r.VotingBalance)}}
			})
	},
}

var donationQueryCmd = &cobra.Command{
	Use:   "donation <donation-id>",
	Short: "Show a donation",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := strconv.ParseUint(args[0], 10, 64)
		if err != nil {
			return err
		}
		return runQuery(cmd, app.QueryDonations, app.QueryArgs{Donation: id}, donationHeader,
			func(d *service.DonationView) []table.Row { return donationRows([]*service.DonationView{d}) })
	},
}

var donationByKeyQueryCmd = &cobra.Command{
	Use:   "donation-by-key <reference>",
	Short: "Show the donation of a reference",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runQuery(cmd, app.QueryDonationByKey, app.QueryArgs{Reference: args[0]}, donationHeader,
			func(d *service.DonationView) []table.Row { return donationRows([]*service.DonationView{d}) })
	},
}

var donationsQueryCmd = &cobra.Command{
	Use:   "donations",
	Short: "List every donation request",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runQuery(cmd, app.QueryDonationList, app.QueryArgs{}, donationHeader,
			func(ds *[]*service.DonationView) []table.Row { return donationRows(*ds) })
	},
}

var statusQueryCmd = &cobra.Command{
	Use:   "status <donation-id>",
	Short: "Show the current status of an opened donation",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := strconv.ParseUint(args[0], 10, 64)
		if err != nil {
			return err
		}
		return runQuery(cmd, app.QueryStatus, app.QueryArgs{Donation: id}, table.Row{"DONATION", "STATUS"},
			func(s *app.StatusResult) []table.Row { return []table.Row{{s.Donation, s.Status}} })
	},
}

var tiersQueryCmd = &cobra.Command{
	Use:   "tiers",
	Short: "Show the allowed donation (amount, period) pairs",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runQuery(cmd, app.QueryTiers, app.QueryArgs{}, table.Row{"TIER", "AMOUNT", "PERIOD"},
			func(t *service.Tiers) []table.Row {
				return lo.Map(t.Amounts, func(a *uint256.Int, i int) table.Row {
					return table.Row{i, dec(a), t.Periods[i]}
				})
			})
	},
}

var sponsorQueryCmd = &cobra.Command{
	Use:   "sponsor <address>",
	Short: "Show an account's sponsorship and the sponsor pool",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		addr, err := addressArg(args, 0)
		if err != nil {
			return err
		}
		return runQuery(cmd, app.QuerySponsor, app.QueryArgs{Address: addr}, table.Row{"ADDRESS", "SPONSORED", "POOL"},
			func(s *app.SponsorResult) []table.Row { return []table.Row{{s.Address.Hex(), dec(s.Sponsored), dec(s.Pool)}} })
	},
}

var paramsQueryCmd = &cobra.Command{
	Use:   "params",
	Short: "Show the chain parameters",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runQuery(cmd, app.QueryParams, app.QueryArgs{},
			table.Row{"BLOCK TIME", "VOTING DELAY", "VOTING PERIOD", "QUORUM %", "SPONSOR BP", "DONATE BP", "FAUCET", "FUND"},
			func(p *types.Params) []table.Row {
				return []table.Row{{p.BlockTime, p.VotingDelay, p.VotingPeriod, p.QuorumNumerator, p.SponsorRateBP, p.DonateRewardBP, p.Faucet, p.Fund}}
			})
	},
}

var validatorsQueryCmd = &cobra.Command{
	Use:   "validators",
	Short: "List the genesis validators",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runQuery(cmd, app.QueryValidators, app.QueryArgs{}, table.Row{"PUBKEY", "POWER"},
			func(vs *[]state.Validator) []table.Row {
				return lo.Map(*vs, func(v state.Validator, _ int) table.Row {
					return table.Row{common.Bytes2Hex(v.PubKey), v.Power}
				})
			})
	},
}

func init() {
	urlFlag(queryCmd)
	outputFlag(queryCmd)
	assetFlag(balanceQueryCmd)
	proposalsQueryCmd.Flags().Uint64("offset", 0, "index of the first proposal")
	proposalsQueryCmd.Flags().Uint64("limit", 100, "maximum number of proposals")
	queryCmd.AddCommand(
		accountQueryCmd,
		balanceQueryCmd,
		proposalQueryCmd,
		proposalsQueryCmd,
		votesQueryCmd,
		hasVotedQueryCmd,
		donationQueryCmd,
		donationByKeyQueryCmd,
		donationsQueryCmd,
		statusQueryCmd,
		tiersQueryCmd,
		sponsorQueryCmd,
		paramsQueryCmd,
		validatorsQueryCmd,
	)
}
