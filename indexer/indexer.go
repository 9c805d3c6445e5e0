package indexer

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/calehh/gp-node/governance"
	"github.com/calehh/gp-node/types"
	"github.com/calehh/gp-node/vault"
	abci "github.com/cometbft/cometbft/abci/types"
	cmtlog "github.com/cometbft/cometbft/libs/log"
	comethttp "github.com/cometbft/cometbft/rpc/client/http"
	ctypes "github.com/cometbft/cometbft/rpc/core/types"
	"github.com/glebarez/sqlite"
	"github.com/holiman/uint256"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// BlockSource is the part of the CometBFT RPC client the indexer reads from.
type BlockSource interface {
	Status(ctx context.Context) (*ctypes.ResultStatus, error)
	BlockResults(ctx context.Context, height *int64) (*ctypes.ResultBlockResults, error)
}

type ChainIndexer struct {
	logger        cmtlog.Logger
	Url           string
	Height        int64
	interval      time.Duration
	db            *gorm.DB
	cli           BlockSource
	eventHandlers map[string]eventHandler
}

// OpenDB opens the sqlite index at path, or an in-memory one when path is empty.
func OpenDB(path string) (*gorm.DB, error) {
	dsn := "file::memory:?cache=shared"
	if path != "" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create index dir: %w", err)
		}
		dsn = fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)", path)
	}
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:                 gormlogger.Discard,
		SkipDefaultTransaction: true,
	})
	if err != nil {
		return nil, err
	}
	if err = db.AutoMigrate(&Height{}, &Proposal{}, &Vote{}, &Donation{}, &Contribution{}); err != nil {
		return nil, err
	}
	return db, nil
}

func NewChainIndexer(logger cmtlog.Logger, dbPath string, chainUrl string, interval time.Duration) (*ChainIndexer, error) {
	logger.Info("NewChainIndexer", "dbPath", dbPath, "url", chainUrl)
	cli, err := comethttp.New(chainUrl, "/websocket")
	if err != nil {
		return nil, err
	}
	db, err := OpenDB(dbPath)
	if err != nil {
		return nil, err
	}
	c, err := NewChainIndexerWithSource(logger, db, cli, interval)
	if err != nil {
		return nil, err
	}
	c.Url = chainUrl
	return c, nil
}

// NewChainIndexerWithSource resumes indexing after the last height stored in db.
func NewChainIndexerWithSource(logger cmtlog.Logger, db *gorm.DB, cli BlockSource, interval time.Duration) (*ChainIndexer, error) {
	h := Height{Id: 1}
	if err := db.First(&h).Error; err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}
	if interval <= 0 {
		interval = time.Second
	}
	c := &ChainIndexer{
		logger:   logger.With("module", "indexer"),
		Height:   int64(h.Height + 1),
		interval: interval,
		db:       db,
		cli:      cli,
	}
	c.eventHandlers = map[string]eventHandler{
		types.EventProposalCreatedType:   c.handleEventProposalCreated,
		types.EventVoteCastType:          c.handleEventVoteCast,
		types.EventProposalExecutedType:  c.handleEventProposalSettled,
		types.EventProposalCanceledType:  c.handleEventProposalSettled,
		types.EventDonationRequestedType: c.handleEventDonation,
		types.EventDonationOpenedType:    c.handleEventDonation,
		types.EventDonatedType:           c.handleEventTransfer,
		types.EventDonationRefundedType:  c.handleEventTransfer,
		types.EventSponsoredType:         c.handleEventTransfer,
		types.EventDonationClaimedType:   c.handleEventDonationSettled,
		types.EventDonationAbortedType:   c.handleEventDonationSettled,
	}
	return c, nil
}

type eventHandler func(tx *gorm.DB, event abci.Event, height int64) error

func (c *ChainIndexer) handleEvent(tx *gorm.DB, event abci.Event, height int64) error {
	if h, ok := c.eventHandlers[event.Type]; ok {
		return h(tx, event, height)
	}
	return nil
}

func errDecode(event abci.Event) error {
	return fmt.Errorf("decode %s event fail", event.Type)
}

func addDecimal(a, b string) (string, error) {
	x, err := uint256.FromDecimal(a)
	if err != nil {
		x = uint256.NewInt(0)
	}
	y, err := uint256.FromDecimal(b)
	if err != nil {
		return "", err
	}
	sum, err := types.AddAmount(x, y)
	if err != nil {
		return "", err
	}
	return sum.Dec(), nil
}

func (c *ChainIndexer) handleEventProposalCreated(tx *gorm.DB, event abci.Event, height int64) error {
	ev := types.DecodeEventProposalCreated(event)
	if ev == nil {
		return errDecode(event)
	}
	return tx.Save(&Proposal{
		Id:           ev.Proposal.Hex(),
		Proposer:     ev.Proposer.Hex(),
		Description:  ev.Description,
		VoteStart:    ev.VoteStart,
		VoteEnd:      ev.VoteEnd,
		NewHeight:    uint64(height),
		Status:       governance.StateActive.String(),
		ForVotes:     "0",
		AgainstVotes: "0",
		AbstainVotes: "0",
	}).Error
}

func (c *ChainIndexer) handleEventVoteCast(tx *gorm.DB, event abci.Event, height int64) error {
	ev := types.DecodeEventVoteCast(event)
	if ev == nil || ev.Weight == nil {
		return errDecode(event)
	}
	var proposal Proposal
	if err := tx.Where("id = ?", ev.Proposal.Hex()).First(&proposal).Error; err != nil {
		return err
	}
	var (
		tally *string
		err   error
	)
	switch governance.Support(ev.Support) {
	case governance.SupportFor:
		tally = &proposal.ForVotes
	case governance.SupportAgainst:
		tally = &proposal.AgainstVotes
	default:
		tally = &proposal.AbstainVotes
	}
	if *tally, err = addDecimal(*tally, ev.Weight.Dec()); err != nil {
		return err
	}
	if err = tx.Save(&proposal).Error; err != nil {
		return err
	}
	return tx.Create(&Vote{
		Proposal: ev.Proposal.Hex(),
		Voter:    ev.Voter.Hex(),
		Support:  ev.Support,
		Weight:   ev.Weight.Dec(),
		Height:   uint64(height),
	}).Error
}

func (c *ChainIndexer) handleEventProposalSettled(tx *gorm.DB, event abci.Event, height int64) error {
	ev := types.DecodeEventProposal(event)
	if ev == nil {
		return errDecode(event)
	}
	status := governance.StateExecuted
	if event.Type == types.EventProposalCanceledType {
		status = governance.StateCanceled
	}
	return tx.Model(&Proposal{}).Where("id = ?", ev.Proposal.Hex()).Updates(map[string]any{
		"status":        status.String(),
		"settle_height": uint64(height),
	}).Error
}

func (c *ChainIndexer) handleEventDonation(tx *gorm.DB, event abci.Event, height int64) error {
	ev := types.DecodeEventDonation(event)
	if ev == nil || ev.Amount == nil {
		return errDecode(event)
	}
	var d Donation
	err := tx.Where("id = ?", ev.Donation).First(&d).Error
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return err
	}
	d.Id = ev.Donation
	d.Amount = ev.Amount.Dec()
	d.Period = ev.Period
	d.Recipient = ev.Recipient.Hex()
	d.Reference = ev.Reference
	if d.Contributed == "" {
		d.Contributed = "0"
	}
	if event.Type == types.EventDonationRequestedType {
		d.Proposal = ev.Proposal.Hex()
		d.Requester = ev.Requester.Hex()
		d.Status = vault.StatusPending.String()
		d.RequestHeight = uint64(height)
	} else {
		d.Status = vault.StatusOpen.String()
		d.OpenedAt = ev.OpenedAt
	}
	return tx.Save(&d).Error
}

func (c *ChainIndexer) handleEventTransfer(tx *gorm.DB, event abci.Event, height int64) error {
	ev := types.DecodeEventTransfer(event)
	if ev == nil || ev.Amount == nil {
		return errDecode(event)
	}
	ct := Contribution{
		Donation: ev.Donation,
		Account:  ev.Account.Hex(),
		Amount:   ev.Amount.Dec(),
		Minted:   "0",
		Height:   uint64(height),
	}
	if ev.Minted != nil {
		ct.Minted = ev.Minted.Dec()
	}
	switch event.Type {
	case types.EventSponsoredType:
		ct.Kind = ContributionSponsor
		ct.Donation = 0
	case types.EventDonationRefundedType:
		ct.Kind = ContributionRefund
	default:
		ct.Kind = ContributionDonate
		if ev.Total != nil {
			err := tx.Model(&Donation{}).Where("id = ?", ev.Donation).Update("contributed", ev.Total.Dec()).Error
			if err != nil {
				return err
			}
		}
	}
	return tx.Create(&ct).Error
}

func (c *ChainIndexer) handleEventDonationSettled(tx *gorm.DB, event abci.Event, height int64) error {
	var id uint64
	status := vault.StatusAborted
	if event.Type == types.EventDonationClaimedType {
		ev := types.DecodeEventTransfer(event)
		if ev == nil {
			return errDecode(event)
		}
		id, status = ev.Donation, vault.StatusClaimed
	} else {
		ev := types.DecodeEventDonationAborted(event)
		if ev == nil {
			return errDecode(event)
		}
		id = ev.Donation
	}
	return tx.Model(&Donation{}).Where("id = ?", id).Updates(map[string]any{
		"status":        status.String(),
		"settle_height": uint64(height),
	}).Error
}

// indexBlock stores the events of every successful tx in the block at height
// together with the new sync height, in one transaction.
func (c *ChainIndexer) indexBlock(ctx context.Context, height int64) error {
	res, err := c.cli.BlockResults(ctx, &height)
	if err != nil {
		return err
	}
	return c.db.Transaction(func(tx *gorm.DB) error {
		for _, r := range res.TxsResults {
			if r.Code != abci.CodeTypeOK {
				continue
			}
			for _, event := range r.Events {
				if err := c.handleEvent(tx, event, height); err != nil {
					return err
				}
			}
		}
		return tx.Save(&Height{Id: 1, Height: uint64(height)}).Error
	})
}

// Sync indexes every block up to the latest height reported by the node.
func (c *ChainIndexer) Sync(ctx context.Context) error {
	b, err := c.cli.Status(ctx)
	if err != nil {
		return err
	}
	for b.SyncInfo.LatestBlockHeight >= c.Height {
		if err = ctx.Err(); err != nil {
			return err
		}
		if err = c.indexBlock(ctx, c.Height); err != nil {
			return fmt.Errorf("index height %d: %w", c.Height, err)
		}
		c.Height++
	}
	return nil
}

func (c *ChainIndexer) Start(ctx context.Context) {
	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := c.Sync(ctx); err != nil && ctx.Err() == nil {
				c.logger.Error("indexer sync fail", "height", c.Height, "err", err)
			}
		}
	}
}
