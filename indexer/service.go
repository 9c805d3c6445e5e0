package indexer

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/samber/lo"
	"gorm.io/gorm"
)

type Service struct {
	engine     *gin.Engine
	indexer    *ChainIndexer
	listenAddr string
}

func NewService(listenAddr string, indexer *ChainIndexer) *Service {
	r := gin.New()
	r.Use(gin.Recovery())
	s := &Service{
		engine:     r,
		indexer:    indexer,
		listenAddr: listenAddr,
	}
	s.engine.POST("/getProposals", s.handleGetProposals)
	s.engine.POST("/getVotes", s.handleGetVotes)
	s.engine.POST("/getDonations", s.handleGetDonations)
	s.engine.POST("/getContributions", s.handleGetContributions)
	return s
}

func (s *Service) Handler() http.Handler {
	return s.engine
}

// Start serves until ctx is done.
func (s *Service) Start(ctx context.Context) error {
	srv := &http.Server{Addr: s.listenAddr, Handler: s.engine, ReadHeaderTimeout: 10 * time.Second}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func fail(c *gin.Context, err error) {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
}

type VoteInfo struct {
	Voter   string `json:"voter"`
	Support uint8  `json:"support"`
	Weight  string `json:"weight"`
	Height  uint64 `json:"height"`
}

func voteInfos(votes []Vote) []VoteInfo {
	return lo.Map(votes, func(v Vote, _ int) VoteInfo {
		return VoteInfo{Voter: v.Voter, Support: v.Support, Weight: v.Weight, Height: v.Height}
	})
}

type ProposalInfo struct {
	Proposal Proposal   `json:"proposal"`
	Votes    []VoteInfo `json:"votes"`
}

type GetProposalsReq struct {
	ProposalId string `json:"proposalId"`
	Status     string `json:"status"`
	Page       int    `json:"page"`
	PageSize   int    `json:"pageSize"`
}

type GetProposalsResponse struct {
	Proposals []ProposalInfo `json:"proposals"`
	Total     int64          `json:"total"`
}

func (s *Service) proposalInfo(p Proposal) (ProposalInfo, error) {
	votes, _, err := s.indexer.getVotes(p.Id, "", 0, 1000)
	if err != nil {
		return ProposalInfo{}, err
	}
	return ProposalInfo{Proposal: p, Votes: voteInfos(votes)}, nil
}

func (s *Service) handleGetProposals(c *gin.Context) {
	var req GetProposalsReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	response := GetProposalsResponse{Proposals: make([]ProposalInfo, 0)}
	var proposals []Proposal
	if req.ProposalId != "" {
		p, err := s.indexer.getProposalById(req.ProposalId)
		if err != nil {
			fail(c, err)
			return
		}
		proposals, response.Total = []Proposal{p}, 1
	} else {
		var err error
		proposals, response.Total, err = s.indexer.getProposals(req.Status, req.Page, req.PageSize)
		if err != nil {
			fail(c, err)
			return
		}
	}
	for _, p := range proposals {
		info, err := s.proposalInfo(p)
		if err != nil {
			fail(c, err)
			return
		}
		response.Proposals = append(response.Proposals, info)
	}
	c.JSON(http.StatusOK, response)
}

type GetVotesReq struct {
	ProposalId string `json:"proposalId"`
	Voter      string `json:"voter"`
	Page       int    `json:"page"`
	PageSize   int    `json:"pageSize"`
}

type GetVotesResponse struct {
	Votes []Vote `json:"votes"`
	Total int64  `json:"total"`
}

func (s *Service) handleGetVotes(c *gin.Context) {
	var req GetVotesReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.ProposalId == "" && req.Voter == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "proposalId or voter is required"})
		return
	}
	votes, total, err := s.indexer.getVotes(req.ProposalId, req.Voter, req.Page, req.PageSize)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, GetVotesResponse{Votes: lo.Ternary(votes == nil, []Vote{}, votes), Total: total})
}

type GetDonationsReq struct {
	DonationId *uint64 `json:"donationId"`
	Reference  string  `json:"reference"`
	Status     string  `json:"status"`
	Recipient  string  `json:"recipient"`
	Page       int     `json:"page"`
	PageSize   int     `json:"pageSize"`
}

type GetDonationsResponse struct {
	Donations []Donation `json:"donations"`
	Total     int64      `json:"total"`
}

func (s *Service) handleGetDonations(c *gin.Context) {
	var req GetDonationsReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	var (
		d   Donation
		err error
	)
	switch {
	case req.DonationId != nil:
		d, err = s.indexer.getDonationById(*req.DonationId)
	case req.Reference != "":
		d, err = s.indexer.getDonationByReference(req.Reference)
	default:
		donations, total, err := s.indexer.getDonations(req.Status, req.Recipient, req.Page, req.PageSize)
		if err != nil {
			fail(c, err)
			return
		}
		c.JSON(http.StatusOK, GetDonationsResponse{Donations: lo.Ternary(donations == nil, []Donation{}, donations), Total: total})
		return
	}
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, GetDonationsResponse{Donations: []Donation{d}, Total: 1})
}

type GetContributionsReq struct {
	Kind       string  `json:"kind"`
	DonationId *uint64 `json:"donationId"`
	Account    string  `json:"account"`
	Page       int     `json:"page"`
	PageSize   int     `json:"pageSize"`
}

type GetContributionsResponse struct {
	Contributions []Contribution `json:"contributions"`
	Total         int64          `json:"total"`
}

func (s *Service) handleGetContributions(c *gin.Context) {
	var req GetContributionsReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	cs, total, err := s.indexer.getContributions(req.Kind, req.DonationId, req.Account, req.Page, req.PageSize)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, GetContributionsResponse{Contributions: lo.Ternary(cs == nil, []Contribution{}, cs), Total: total})
}
