package types

import (
	"fmt"
	"strconv"

	abci "github.com/cometbft/cometbft/abci/types"
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

const (
	EventProposalCreatedType   = "proposal_created"
	EventVoteCastType          = "vote_cast"
	EventProposalExecutedType  = "proposal_executed"
	EventProposalCanceledType  = "proposal_canceled"
	EventDonationRequestedType = "donation_requested"
	EventDonationOpenedType    = "donation_opened"
	EventDonatedType           = "donation_donated"
	EventDonationClaimedType   = "donation_claimed"
	EventDonationAbortedType   = "donation_aborted"
	EventDonationRefundedType  = "donation_refunded"
	EventSponsoredType         = "sponsored"
	EventRoleGrantedType       = "role_granted"
)

type EventProposalCreated struct {
	Proposal    common.Hash    `json:"proposal"`
	Proposer    common.Address `json:"proposer"`
	VoteStart   uint64         `json:"voteStart"`
	VoteEnd     uint64         `json:"voteEnd"`
	Description string         `json:"description"`
}

func EncodeEventProposalCreated(event *EventProposalCreated) abci.Event {
	return abci.Event{
		Type: EventProposalCreatedType,
		Attributes: []abci.EventAttribute{
			{Key: "proposal", Value: event.Proposal.Hex(), Index: true},
			{Key: "proposer", Value: event.Proposer.Hex(), Index: true},
			{Key: "voteStart", Value: fmt.Sprintf("%v", event.VoteStart), Index: false},
			{Key: "voteEnd", Value: fmt.Sprintf("%v", event.VoteEnd), Index: false},
			{Key: "description", Value: event.Description, Index: false},
		},
	}
}

func DecodeEventProposalCreated(originEvent abci.Event) *EventProposalCreated {
	event := &EventProposalCreated{}
	for _, v := range originEvent.Attributes {
		var err error
		switch v.Key {
		case "proposal":
			event.Proposal, err = parseHash(v.Value)
		case "proposer":
			event.Proposer, err = parseAddress(v.Value)
		case "voteStart":
			event.VoteStart, err = strconv.ParseUint(v.Value, 10, 64)
		case "voteEnd":
			event.VoteEnd, err = strconv.ParseUint(v.Value, 10, 64)
		case "description":
			event.Description = v.Value
		}
		if err != nil {
			return nil
		}
	}
	return event
}

type EventVoteCast struct {
	Proposal common.Hash    `json:"proposal"`
	Voter    common.Address `json:"voter"`
	Support  uint8          `json:"support"`
	Weight   *uint256.Int   `json:"weight"`
}

func EncodeEventVoteCast(event *EventVoteCast) abci.Event {
	return abci.Event{
		Type: EventVoteCastType,
		Attributes: []abci.EventAttribute{
			{Key: "proposal", Value: event.Proposal.Hex(), Index: true},
			{Key: "voter", Value: event.Voter.Hex(), Index: true},
			{Key: "support", Value: fmt.Sprintf("%v", event.Support), Index: false},
			{Key: "weight", Value: event.Weight.Dec(), Index: false},
		},
	}
}

func DecodeEventVoteCast(originEvent abci.Event) *EventVoteCast {
	event := &EventVoteCast{}
	for _, v := range originEvent.Attributes {
		var err error
		switch v.Key {
		case "proposal":
			event.Proposal, err = parseHash(v.Value)
		case "voter":
			event.Voter, err = parseAddress(v.Value)
		case "support":
			var support uint64
			support, err = strconv.ParseUint(v.Value, 10, 8)
			event.Support = uint8(support)
		case "weight":
			event.Weight, err = uint256.FromDecimal(v.Value)
		}
		if err != nil {
			return nil
		}
	}
	return event
}

// EventProposal is shared by the executed and canceled proposal events.
type EventProposal struct {
	Proposal common.Hash `json:"proposal"`
}

func EncodeEventProposal(tp string, event *EventProposal) abci.Event {
	return abci.Event{
		Type: tp,
		Attributes: []abci.EventAttribute{
			{Key: "proposal", Value: event.Proposal.Hex(), Index: true},
		},
	}
}

func DecodeEventProposal(originEvent abci.Event) *EventProposal {
	event := &EventProposal{}
	for _, v := range originEvent.Attributes {
		if v.Key == "proposal" {
			h, err := parseHash(v.Value)
			if err != nil {
				return nil
			}
			event.Proposal = h
		}
	}
	return event
}

// EventDonation describes a donation request or an opened donation record.
type EventDonation struct {
	Donation  uint64         `json:"donation"`
	Proposal  common.Hash    `json:"proposal"`
	Requester common.Address `json:"requester"`
	Amount    *uint256.Int   `json:"amount"`
	Period    uint64         `json:"period"`
	Recipient common.Address `json:"recipient"`
	Reference string         `json:"reference"`
	OpenedAt  uint64         `json:"openedAt"`
}

func EncodeEventDonation(tp string, event *EventDonation) abci.Event {
	return abci.Event{
		Type: tp,
		Attributes: []abci.EventAttribute{
			{Key: "donation", Value: fmt.Sprintf("%v", event.Donation), Index: true},
			{Key: "proposal", Value: event.Proposal.Hex(), Index: true},
			{Key: "requester", Value: event.Requester.Hex(), Index: false},
			{Key: "amount", Value: event.Amount.Dec(), Index: false},
			{Key: "period", Value: fmt.Sprintf("%v", event.Period), Index: false},
			{Key: "recipient", Value: event.Recipient.Hex(), Index: true},
			{Key: "reference", Value: event.Reference, Index: true},
			{Key: "openedAt", Value: fmt.Sprintf("%v", event.OpenedAt), Index: false},
		},
	}
}

func DecodeEventDonation(originEvent abci.Event) *EventDonation {
	event := &EventDonation{}
	for _, v := range originEvent.Attributes {
		var err error
		switch v.Key {
		case "donation":
			event.Donation, err = strconv.ParseUint(v.Value, 10, 64)
		case "proposal":
			event.Proposal, err = parseHash(v.Value)
		case "requester":
			event.Requester, err = parseAddress(v.Value)
		case "amount":
			event.Amount, err = uint256.FromDecimal(v.Value)
		case "period":
			event.Period, err = strconv.ParseUint(v.Value, 10, 64)
		case "recipient":
			event.Recipient, err = parseAddress(v.Value)
		case "reference":
			event.Reference = v.Value
		case "openedAt":
			event.OpenedAt, err = strconv.ParseUint(v.Value, 10, 64)
		}
		if err != nil {
			return nil
		}
	}
	return event
}

// EventTransfer records funds moving in or out of a donation record or the sponsor pool.
type EventTransfer struct {
	Donation uint64         `json:"donation"`
	Account  common.Address `json:"account"`
	Amount   *uint256.Int   `json:"amount"`
	Total    *uint256.Int   `json:"total"`
	Minted   *uint256.Int   `json:"minted"`
}

func EncodeEventTransfer(tp string, event *EventTransfer) abci.Event {
	attrs := []abci.EventAttribute{
		{Key: "donation", Value: fmt.Sprintf("%v", event.Donation), Index: true},
		{Key: "account", Value: event.Account.Hex(), Index: true},
		{Key: "amount", Value: event.Amount.Dec(), Index: false},
	}
	if event.Total != nil {
		attrs = append(attrs, abci.EventAttribute{Key: "total", Value: event.Total.Dec(), Index: false})
	}
	if event.Minted != nil {
		attrs = append(attrs, abci.EventAttribute{Key: "minted", Value: event.Minted.Dec(), Index: false})
	}
	return abci.Event{Type: tp, Attributes: attrs}
}

func DecodeEventTransfer(originEvent abci.Event) *EventTransfer {
	event := &EventTransfer{}
	for _, v := range originEvent.Attributes {
		var err error
		switch v.Key {
		case "donation":
			event.Donation, err = strconv.ParseUint(v.Value, 10, 64)
		case "account":
			event.Account, err = parseAddress(v.Value)
		case "amount":
			event.Amount, err = uint256.FromDecimal(v.Value)
		case "total":
			event.Total, err = uint256.FromDecimal(v.Value)
		case "minted":
			event.Minted, err = uint256.FromDecimal(v.Value)
		}
		if err != nil {
			return nil
		}
	}
	return event
}

type EventDonationAborted struct {
	Donation uint64 `json:"donation"`
}

func EncodeEventDonationAborted(event *EventDonationAborted) abci.Event {
	return abci.Event{
		Type: EventDonationAbortedType,
		Attributes: []abci.EventAttribute{
			{Key: "donation", Value: fmt.Sprintf("%v", event.Donation), Index: true},
		},
	}
}

func DecodeEventDonationAborted(originEvent abci.Event) *EventDonationAborted {
	event := &EventDonationAborted{}
	for _, v := range originEvent.Attributes {
		if v.Key == "donation" {
			id, err := strconv.ParseUint(v.Value, 10, 64)
			if err != nil {
				return nil
			}
			event.Donation = id
		}
	}
	return event
}

type EventRoleGranted struct {
	Component string         `json:"component"`
	Account   common.Address `json:"account"`
}

func EncodeEventRoleGranted(event *EventRoleGranted) abci.Event {
	return abci.Event{
		Type: EventRoleGrantedType,
		Attributes: []abci.EventAttribute{
			{Key: "component", Value: event.Component, Index: true},
			{Key: "account", Value: event.Account.Hex(), Index: true},
		},
	}
}

func parseHash(s string) (common.Hash, error) {
	b, err := hexBytes(s, common.HashLength)
	return common.BytesToHash(b), err
}

func parseAddress(s string) (common.Address, error) {
	if !common.IsHexAddress(s) {
		return common.Address{}, fmt.Errorf("invalid address %q", s)
	}
	return common.HexToAddress(s), nil
}

func hexBytes(s string, size int) ([]byte, error) {
	b := common.FromHex(s)
	if len(b) != size {
		return nil, fmt.Errorf("invalid hex length %d", len(b))
	}
	return b, nil
}
