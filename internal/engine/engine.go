package engine

import (
	"maps"
	"math/rand/v2"
)

const (
	// CountdownStart is the countdown value every bid resets to.
	CountdownStart = 10

	ForcedAssignment   = "force-assigned"
	DisconnectedBidder = "highest bidder disconnected"
)

type State struct {
	IsStarted             bool   `json:"isStarted"`
	IsRaffleRound         bool   `json:"isRaffleRound"`
	CurrentItemIndex      int    `json:"currentItemIndex"`
	CurrentHighestBid     int    `json:"currentHighestBid"`
	HighestBidderID       string `json:"highestBidderId"`
	HighestBidderNickname string `json:"highestBidderNickname"`
}

// Snapshot is everything the persistence gateway stores. Failed items are
// derived from Items on restore.
type Snapshot struct {
	Items []Item `json:"items"`
	Teams []Team `json:"teams"`
	State State  `json:"state"`
}

type CommandType string

const (
	CmdAddTeam           CommandType = "AddTeam"
	CmdAssignCaptain     CommandType = "AssignCaptain"
	CmdShuffleAndPrepare CommandType = "ShuffleAndPrepare"
	CmdStartRaffleRound  CommandType = "StartRaffleRound"
	CmdStartNext         CommandType = "StartNext"
	CmdEndAuction        CommandType = "EndAuction"
	CmdPlaceBid          CommandType = "PlaceBid"
	CmdForceAssign       CommandType = "ForceAssign"
	CmdReset             CommandType = "Reset"
	CmdTimeout           CommandType = "Timeout"
	CmdBidderLeft        CommandType = "BidderLeft"
	CmdAddItem           CommandType = "AddItem"
	CmdClearItems        CommandType = "ClearItems"
	CmdClearTeams        CommandType = "ClearTeams"
)

/*
	CmdPlaceBid       -> EvtBidChanged -> EvtCountdownStarted
	CmdStartNext      -> EvtBidChanged (-> EvtCountdownStarted unless the item was already sold)
	CmdTimeout        -> EvtCountdownStopped -> EvtItemResolved -> EvtTeamsChanged -> EvtItemsChanged -> EvtBidChanged
	CmdForceAssign    -> same as CmdTimeout, then EvtForceAssigned
	CmdStartRaffle    -> EvtBidChanged -> EvtCountdownStarted -> EvtRaffleStarted
	CmdReset          -> EvtCountdownStopped -> EvtItemsChanged -> EvtTeamsChanged -> EvtBidChanged -> EvtReset
*/

// Command is one inbound request. Amount carries the bid for CmdPlaceBid and
// the budget for CmdAddTeam.
type Command struct {
	Type     CommandType
	ClientID string
	Nickname string
	TeamName string
	MainPos  string
	Amount   int
}

type EventType string

const (
	EvtTeamsChanged     EventType = "TeamsChanged"
	EvtItemsChanged     EventType = "ItemsChanged"
	EvtCaptainsChanged  EventType = "CaptainsChanged"
	EvtBidChanged       EventType = "BidChanged"
	EvtCountdownStarted EventType = "CountdownStarted"
	EvtCountdownStopped EventType = "CountdownStopped"
	EvtItemResolved     EventType = "ItemResolved"
	EvtItemAdded        EventType = "ItemAdded"
	EvtPrepared         EventType = "Prepared"
	EvtRaffleStarted    EventType = "RaffleStarted"
	EvtForceAssigned    EventType = "ForceAssigned"
	EvtReset            EventType = "Reset"
)

type Event struct {
	Type   EventType
	Result *SaleResult
	Item   *Item
}

type SaleResult struct {
	ItemID         string
	ItemNickname   string
	WinnerTeam     string
	WinnerNickname string
	FinalBid       int
	Sold           bool
	Forced         bool
}

type Option func(*Auction)

// WithShuffler replaces the random permutation used between rounds.
func WithShuffler(s Shuffler) Option {
	return func(a *Auction) { a.shuffle = s }
}

// Auction is the single owner of auction state, the catalog and the ledger.
// It is not safe for concurrent use; the lobby loop serializes access.
type Auction struct {
	state    State
	catalog  *Catalog
	ledger   *Ledger
	captains map[string]string
	shuffle  Shuffler
}

func New(opts ...Option) *Auction {
	a := &Auction{
		state:    DefaultState(),
		catalog:  NewCatalog(nil),
		ledger:   NewLedger(nil),
		captains: map[string]string{},
		shuffle:  rand.Shuffle,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Restore rebuilds an auction from a persisted snapshot. A countdown that was
// running when the snapshot was taken did not survive, so bidding on that
// item is reopened from scratch.
func Restore(s Snapshot, opts ...Option) *Auction {
	a := New(opts...)
	a.catalog = NewCatalog(s.Items)
	a.ledger = NewLedger(s.Teams)
	a.state = s.State
	if a.state.IsStarted {
		a.state.IsStarted = false
		a.clearBid()
	}
	if _, ok := a.round().At(a.state.CurrentItemIndex); !ok {
		a.state.CurrentItemIndex = -1
		a.state.IsRaffleRound = false
	}
	return a
}

func (a *Auction) State() State { return a.state }

func (a *Auction) Items() []Item { return a.catalog.Items() }

func (a *Auction) Teams() []Team { return a.ledger.Teams() }

func (a *Auction) FailedItems() []Item { return a.catalog.Failed() }

func (a *Auction) Captains() map[string]string { return maps.Clone(a.captains) }

// CurrentItem returns a copy of the item under the hammer, if any.
func (a *Auction) CurrentItem() (Item, bool) {
	it, ok := a.round().At(a.state.CurrentItemIndex)
	if !ok {
		return Item{}, false
	}
	return *it, true
}

func (a *Auction) Snapshot() Snapshot {
	return Snapshot{
		Items: a.catalog.Items(),
		Teams: a.ledger.Teams(),
		State: a.state,
	}
}

func (a *Auction) Apply(cmd Command) ([]Event, error) {
	switch cmd.Type {
	case CmdAddTeam:
		return a.addTeam(cmd)
	case CmdAssignCaptain:
		return a.assignCaptain(cmd)
	case CmdShuffleAndPrepare:
		return a.shuffleAndPrepare()
	case CmdStartRaffleRound:
		return a.startRaffleRound()
	case CmdStartNext:
		return a.startNext()
	case CmdEndAuction, CmdTimeout:
		if !a.state.IsStarted {
			return nil, ErrNotStarted
		}
		return a.resolve(), nil
	case CmdPlaceBid:
		return a.placeBid(cmd)
	case CmdForceAssign:
		return a.forceAssign(cmd)
	case CmdReset:
		return a.reset(), nil
	case CmdBidderLeft:
		return a.bidderLeft(cmd), nil
	case CmdAddItem:
		return a.addItem(cmd)
	case CmdClearItems:
		return a.clearItems(), nil
	case CmdClearTeams:
		a.ledger.Clear()
		clear(a.captains)
		return []Event{{Type: EvtTeamsChanged}, {Type: EvtCaptainsChanged}}, nil
	default:
		return nil, ErrUnsupportedCommand
	}
}
