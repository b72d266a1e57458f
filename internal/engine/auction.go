package engine

import "strings"

func (a *Auction) round() Round { return a.catalog.Round(a.state.IsRaffleRound) }

func (a *Auction) clearBid() {
	a.state.CurrentHighestBid = 0
	a.state.HighestBidderID = ""
	a.state.HighestBidderNickname = ""
}

// advance moves to the next item of the active list. Running off the end
// finishes the round: no active item and back to primary mode.
func (a *Auction) advance(removed bool) {
	next, ok := a.round().Advance(a.state.CurrentItemIndex, removed)
	if !ok {
		a.state.CurrentItemIndex = -1
		a.state.IsRaffleRound = false
		return
	}
	a.state.CurrentItemIndex = next
}

func (a *Auction) addTeam(cmd Command) ([]Event, error) {
	if err := a.ledger.AddTeam(cmd.TeamName, cmd.Amount); err != nil {
		return nil, err
	}
	return []Event{{Type: EvtTeamsChanged}}, nil
}

func (a *Auction) assignCaptain(cmd Command) ([]Event, error) {
	nickname := strings.TrimSpace(cmd.Nickname)
	if nickname == "" {
		return nil, ErrInvalidNickname
	}
	if _, ok := a.ledger.Team(cmd.TeamName); !ok {
		return nil, ErrUnknownTeam
	}
	for capName, team := range a.captains {
		if team == cmd.TeamName {
			delete(a.captains, capName)
		}
	}
	a.captains[nickname] = cmd.TeamName
	return []Event{{Type: EvtCaptainsChanged}}, nil
}

func (a *Auction) shuffleAndPrepare() ([]Event, error) {
	if a.catalog.Len() == 0 {
		return nil, ErrNoItems
	}
	a.catalog.Shuffle(a.shuffle)
	a.catalog.ClearFailed()
	a.state.IsStarted = false
	a.state.IsRaffleRound = false
	a.state.CurrentItemIndex = 0
	a.clearBid()
	return []Event{
		{Type: EvtCountdownStopped},
		{Type: EvtItemsChanged},
		{Type: EvtBidChanged},
		{Type: EvtPrepared},
	}, nil
}

func (a *Auction) startRaffleRound() ([]Event, error) {
	if a.state.IsStarted {
		return nil, ErrAuctionInProgress
	}
	if a.catalog.FailedLen() == 0 {
		return nil, ErrNoFailedItems
	}
	a.catalog.ShuffleFailed(a.shuffle)
	a.state.IsRaffleRound = true
	a.state.CurrentItemIndex = 0
	a.clearBid()
	a.state.IsStarted = true
	return []Event{
		{Type: EvtBidChanged},
		{Type: EvtCountdownStarted},
		{Type: EvtRaffleStarted},
	}, nil
}

func (a *Auction) startNext() ([]Event, error) {
	if a.state.IsStarted {
		return nil, ErrAuctionInProgress
	}
	r := a.round()
	item, ok := r.At(a.state.CurrentItemIndex)
	if !ok {
		return nil, ErrListExhausted
	}
	// Raffle items are never pre-marked, only the primary list can hold
	// items sold earlier (e.g. force-assigned before a reshuffle).
	if !r.Raffle() && item.IsAuctioned {
		a.advance(false)
		return []Event{{Type: EvtBidChanged}}, nil
	}
	a.clearBid()
	a.state.IsStarted = true
	return []Event{{Type: EvtBidChanged}, {Type: EvtCountdownStarted}}, nil
}

func (a *Auction) placeBid(cmd Command) ([]Event, error) {
	if !a.state.IsStarted {
		return nil, ErrNotStarted
	}
	if _, ok := a.round().At(a.state.CurrentItemIndex); !ok {
		return nil, ErrNoBidItem
	}
	if cmd.Amount <= a.state.CurrentHighestBid {
		return nil, ErrBidTooLow
	}
	team, ok := a.captains[cmd.Nickname]
	if cmd.Nickname == "" || !ok {
		return nil, ErrNoCaptain
	}
	if _, ok := a.ledger.Team(team); !ok {
		return nil, ErrNoCaptain
	}
	if !a.ledger.CanAfford(team, cmd.Amount) {
		return nil, ErrCannotAfford
	}
	a.state.CurrentHighestBid = cmd.Amount
	a.state.HighestBidderID = cmd.ClientID
	a.state.HighestBidderNickname = cmd.Nickname
	return []Event{{Type: EvtBidChanged}, {Type: EvtCountdownStarted}}, nil
}

// resolve closes bidding on the current item. The winning team is looked up
// again at close time because budgets, rosters and captains may have changed
// since the bid was accepted.
func (a *Auction) resolve() []Event {
	a.state.IsStarted = false
	r := a.round()
	item, ok := r.At(a.state.CurrentItemIndex)
	if !ok {
		a.clearBid()
		a.state.CurrentItemIndex = -1
		a.state.IsRaffleRound = false
		return []Event{{Type: EvtCountdownStopped}, {Type: EvtBidChanged}}
	}

	res := SaleResult{
		ItemID:         item.ID,
		ItemNickname:   item.Nickname,
		WinnerTeam:     Unsold,
		WinnerNickname: Unsold,
	}
	if a.state.HighestBidderID != "" {
		bid := a.state.CurrentHighestBid
		team, ok := a.captains[a.state.HighestBidderNickname]
		if ok && a.ledger.CanAfford(team, bid) {
			a.ledger.Settle(team, *item, bid)
			item.IsAuctioned = true
			item.Winner = team
			item.FinalBid = bid
			res.WinnerTeam = team
			res.WinnerNickname = a.state.HighestBidderNickname
			res.FinalBid = bid
			res.Sold = true
		}
	}

	removed := false
	switch {
	case !res.Sold:
		item.Winner = Unsold
		item.FinalBid = 0
		if !r.Raffle() {
			a.catalog.MarkFailed(item.ID)
		}
	case r.Raffle():
		removed = a.catalog.RemoveFromFailed(item.ID)
	}

	a.clearBid()
	a.advance(removed)
	return []Event{
		{Type: EvtCountdownStopped},
		{Type: EvtItemResolved, Result: &res},
		{Type: EvtTeamsChanged},
		{Type: EvtItemsChanged},
		{Type: EvtBidChanged},
	}
}

func (a *Auction) forceAssign(cmd Command) ([]Event, error) {
	r := a.round()
	item, ok := r.At(a.state.CurrentItemIndex)
	if !ok {
		return nil, ErrNoActiveItem
	}
	if _, ok := a.ledger.Team(cmd.TeamName); !ok {
		return nil, ErrUnknownTeam
	}
	if !a.ledger.HasRosterRoom(cmd.TeamName) {
		return nil, ErrRosterFull
	}

	a.ledger.Settle(cmd.TeamName, *item, 0)
	item.IsAuctioned = true
	item.Winner = cmd.TeamName
	item.FinalBid = 0
	removed := a.catalog.RemoveFromFailed(item.ID) && r.Raffle()

	res := SaleResult{
		ItemID:         item.ID,
		ItemNickname:   item.Nickname,
		WinnerTeam:     cmd.TeamName,
		WinnerNickname: ForcedAssignment,
		Sold:           true,
		Forced:         true,
	}

	a.state.IsStarted = false
	a.clearBid()
	a.advance(removed)
	return []Event{
		{Type: EvtCountdownStopped},
		{Type: EvtItemResolved, Result: &res},
		{Type: EvtItemsChanged},
		{Type: EvtTeamsChanged},
		{Type: EvtBidChanged},
		{Type: EvtForceAssigned, Result: &res},
	}, nil
}

// clearItems empties the catalog. A running auction has nothing left to sell,
// so it is stopped and the round ends.
func (a *Auction) clearItems() []Event {
	wasRunning := a.state.IsStarted
	a.catalog.Clear()
	a.clearBid()
	a.state.IsStarted = false
	a.state.IsRaffleRound = false
	a.state.CurrentItemIndex = -1

	events := []Event{{Type: EvtItemsChanged}, {Type: EvtBidChanged}}
	if wasRunning {
		events = append([]Event{{Type: EvtCountdownStopped}}, events...)
	}
	return events
}

func (a *Auction) reset() []Event {
	a.state = DefaultState()
	a.catalog.ResetSales()
	a.ledger.ResetAll()
	return []Event{
		{Type: EvtCountdownStopped},
		{Type: EvtItemsChanged},
		{Type: EvtTeamsChanged},
		{Type: EvtBidChanged},
		{Type: EvtReset},
	}
}

// bidderLeft keeps the standing amount but detaches it from the departed
// connection, so the item closes unsold unless someone outbids it.
func (a *Auction) bidderLeft(cmd Command) []Event {
	if cmd.ClientID == "" || a.state.HighestBidderID != cmd.ClientID {
		return nil
	}
	a.state.HighestBidderID = ""
	a.state.HighestBidderNickname = DisconnectedBidder
	return []Event{{Type: EvtBidChanged}}
}

func (a *Auction) addItem(cmd Command) ([]Event, error) {
	it, err := a.catalog.Add(cmd.Nickname, cmd.MainPos)
	if err != nil {
		return nil, err
	}
	return []Event{{Type: EvtItemsChanged}, {Type: EvtItemAdded, Item: &it}}, nil
}
