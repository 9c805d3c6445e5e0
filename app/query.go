package app

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/calehh/gp-node/governance"
	"github.com/calehh/gp-node/service"
	"github.com/calehh/gp-node/state"
	"github.com/calehh/gp-node/tx"
	"github.com/calehh/gp-node/types"
	"github.com/calehh/gp-node/vault"
	abcitypes "github.com/cometbft/cometbft/abci/types"
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

const (
	QueryAccounts       = "/accounts/"
	QueryBalances       = "/balances/"
	QueryProposals      = "/proposals/"
	QueryProposalVotes  = "/proposal_votes/"
	QueryHasVoted       = "/has_voted/"
	QueryDonations      = "/donations/"
	QueryDonationList   = "/donation_list/"
	QueryDonationByKey  = "/donation_by_key/"
	QueryStatus         = "/status/"
	QueryTiers          = "/tiers/"
	QuerySponsor        = "/sponsor/"
	QueryParams         = "/params/"
	QueryValidators     = "/validators/"
	defaultProposalPage = 100
)

// QueryArgs is the JSON body of a query; each path reads the fields it needs.
type QueryArgs struct {
	Address   common.Address `json:"address"`
	Asset     string         `json:"asset,omitempty"`
	Proposal  common.Hash    `json:"proposal"`
	Donation  uint64         `json:"donation"`
	Reference string         `json:"reference,omitempty"`
	Offset    uint64         `json:"offset,omitempty"`
	Limit     uint64         `json:"limit,omitempty"`
}

type BalanceResult struct {
	Asset    string         `json:"asset"`
	Address  common.Address `json:"address"`
	Balance  *uint256.Int   `json:"balance"`
	Votes    *uint256.Int   `json:"votes,omitempty"`
	Delegate common.Address `json:"delegate"`
}

type ProposalResult struct {
	*governance.Proposal
	State governance.ProposalState `json:"state"`
}

type HasVotedResult struct {
	Voted         bool                   `json:"voted"`
	Vote          *governance.VoteRecord `json:"vote,omitempty"`
	VotingBalance *uint256.Int           `json:"votingBalance"`
}

type StatusResult struct {
	Donation uint64       `json:"donation"`
	Status   vault.Status `json:"status"`
}

type SponsorResult struct {
	Address   common.Address `json:"address"`
	Sponsored *uint256.Int   `json:"sponsored"`
	Pool      *uint256.Int   `json:"pool"`
}

type Querier interface {
	Query(ctx context.Context, req *abcitypes.RequestQuery) (res *abcitypes.ResponseQuery, err error)
}

// querierFunc answers a query against the last committed state.
type querierFunc func(st *state.State, env types.Env, args *QueryArgs) (any, error)

type moduleQuerier struct {
	app *GPApp
	fn  querierFunc
}

func (q *moduleQuerier) Query(ctx context.Context, req *abcitypes.RequestQuery) (res *abcitypes.ResponseQuery, err error) {
	res = &abcitypes.ResponseQuery{}
	fail := func(err error) (*abcitypes.ResponseQuery, error) {
		res.Code = types.ABCICode(err)
		res.Codespace = types.Codespace
		res.Log = err.Error()
		return res, nil
	}
	if q.app.modules == nil {
		return fail(ErrNotInitialized)
	}
	args := new(QueryArgs)
	if len(req.Data) > 0 {
		if err := json.Unmarshal(req.Data, args); err != nil {
			return fail(fmt.Errorf("%w: query args: %v", types.ErrInvalidTx, err))
		}
	}
	st := q.app.db.State()
	header := st.Header()
	env := types.Env{Height: header.Height, Time: time.Unix(int64(header.Time), 0)}
	val, err := q.fn(st, env, args)
	if err != nil {
		return fail(err)
	}
	res.Value, err = json.Marshal(val)
	if err != nil {
		return fail(err)
	}
	res.Height = int64(header.Height)
	return res, nil
}

func (app *GPApp) Query(ctx context.Context, req *abcitypes.RequestQuery) (res *abcitypes.ResponseQuery, err error) {
	path := req.Path
	if !strings.HasSuffix(path, "/") {
		path += "/"
	}
	q, ok := app.queriers[path]
	if !ok {
		res = &abcitypes.ResponseQuery{}
		res.Code = 404
		res.Log = fmt.Sprintf("unknown query path %s", req.Path)
		return
	}
	res, err = q.Query(ctx, req)
	return
}

func (app *GPApp) registerQuerier() {
	fns := map[string]querierFunc{
		QueryAccounts:      app.queryAccount,
		QueryBalances:      app.queryBalance,
		QueryProposals:     app.queryProposals,
		QueryProposalVotes: app.queryProposalVotes,
		QueryHasVoted:      app.queryHasVoted,
		QueryDonations:     app.queryDonation,
		QueryDonationList:  app.queryDonationList,
		QueryDonationByKey: app.queryDonationByKey,
		QueryStatus:        app.queryStatus,
		QueryTiers:         app.queryTiers,
		QuerySponsor:       app.querySponsor,
		QueryParams:        app.queryParams,
		QueryValidators:    app.queryValidators,
	}
	for path, fn := range fns {
		app.queriers[path] = &moduleQuerier{app: app, fn: fn}
	}
}

func (app *GPApp) queryAccount(st *state.State, _ types.Env, args *QueryArgs) (any, error) {
	return st.GetAccount(args.Address)
}

func (app *GPApp) queryBalance(st *state.State, _ types.Env, args *QueryArgs) (any, error) {
	asset := args.Asset
	if asset == "" {
		asset = app.modules.GP.Name()
	}
	l, err := app.modules.Ledger(tx.Asset(asset))
	if err != nil {
		return nil, err
	}
	res := &BalanceResult{Asset: asset, Address: args.Address}
	if res.Balance, err = l.BalanceOf(st, args.Address); err != nil {
		return nil, err
	}
	if l == app.modules.GP {
		if res.Votes, err = l.GetVotes(st, args.Address); err != nil {
			return nil, err
		}
		if res.Delegate, err = l.Delegates(st, args.Address); err != nil {
			return nil, err
		}
	}
	return res, nil
}

func (app *GPApp) proposalResult(st *state.State, env types.Env, p *governance.Proposal) (*ProposalResult, error) {
	s, err := app.modules.Gov.State(st, env, p.Id)
	if err != nil {
		return nil, err
	}
	return &ProposalResult{Proposal: p, State: s}, nil
}

// queryProposals returns one proposal when args names an id, else a page of all proposals.
func (app *GPApp) queryProposals(st *state.State, env types.Env, args *QueryArgs) (any, error) {
	if args.Proposal != (common.Hash{}) {
		p, err := app.modules.Gov.GetProposal(st, args.Proposal)
		if err != nil {
			return nil, err
		}
		return app.proposalResult(st, env, p)
	}
	limit := args.Limit
	if limit == 0 {
		limit = defaultProposalPage
	}
	ps, err := app.modules.Gov.ListProposals(st, args.Offset, limit)
	if err != nil {
		return nil, err
	}
	res := make([]*ProposalResult, 0, len(ps))
	for _, p := range ps {
		r, err := app.proposalResult(st, env, p)
		if err != nil {
			return nil, err
		}
		res = append(res, r)
	}
	return res, nil
}

func (app *GPApp) queryProposalVotes(st *state.State, _ types.Env, args *QueryArgs) (any, error) {
	return app.modules.Gov.ProposalVotes(st, args.Proposal)
}

func (app *GPApp) queryHasVoted(st *state.State, _ types.Env, args *QueryArgs) (any, error) {
	gov := app.modules.Gov
	var (
		res HasVotedResult
		err error
	)
	if res.VotingBalance, err = gov.VotingBalance(st, args.Proposal, args.Address); err != nil {
		return nil, err
	}
	if res.Vote, err = gov.GetVote(st, args.Proposal, args.Address); err != nil {
		return nil, err
	}
	res.Voted = res.Vote != nil
	return &res, nil
}

func (app *GPApp) queryDonation(st *state.State, env types.Env, args *QueryArgs) (any, error) {
	return app.modules.Service.GetDonation(st, env, args.Donation)
}

func (app *GPApp) queryDonationList(st *state.State, env types.Env, _ *QueryArgs) (any, error) {
	return app.modules.Service.GetDonationList(st, env)
}

func (app *GPApp) queryDonationByKey(st *state.State, env types.Env, args *QueryArgs) (any, error) {
	return app.modules.Service.GetDonationByKey(st, env, args.Reference)
}

func (app *GPApp) queryStatus(st *state.State, env types.Env, args *QueryArgs) (any, error) {
	s, err := app.modules.Vault.GetCurrentStatus(st, env, args.Donation)
	if err != nil {
		return nil, err
	}
	return &StatusResult{Donation: args.Donation, Status: s}, nil
}

func (app *GPApp) queryTiers(*state.State, types.Env, *QueryArgs) (any, error) {
	return &service.Tiers{
		Amounts: app.modules.Service.GetTargetAmounts(),
		Periods: app.modules.Service.GetTargetPeriods(),
	}, nil
}

func (app *GPApp) querySponsor(st *state.State, _ types.Env, args *QueryArgs) (any, error) {
	res := &SponsorResult{Address: args.Address}
	var err error
	if res.Sponsored, err = app.modules.Vault.Sponsored(st, args.Address); err != nil {
		return nil, err
	}
	if res.Pool, err = app.modules.Vault.SponsorPool(st); err != nil {
		return nil, err
	}
	return res, nil
}

func (app *GPApp) queryParams(st *state.State, _ types.Env, _ *QueryArgs) (any, error) {
	return loadParams(st)
}

func (app *GPApp) queryValidators(st *state.State, _ types.Env, _ *QueryArgs) (any, error) {
	return st.Validators()
}
