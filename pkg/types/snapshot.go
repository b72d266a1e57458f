package types

import "github.com/DoyleJ11/auction-backend/internal/engine"

// Server -> Client
const (
	KindUserListUpdate   = "userListUpdate"
	KindItemUpdate       = "itemUpdate"
	KindTeamUpdate       = "teamUpdate"
	KindCaptainMapUpdate = "captainMapUpdate"
	KindUpdateBid        = "updateBid"
	KindUpdateCountdown  = "updateCountdown"
	KindAuctionResult    = "auctionResult"
	KindSystemMessage    = "systemMessage"
)

type UserListUpdate struct {
	Users      []string          `json:"users"`
	CaptainMap map[string]string `json:"captainMap"`
}

type ItemUpdate struct {
	Items []engine.Item `json:"items"`
}

type TeamUpdate struct {
	Teams []engine.Team `json:"teams"`
}

type CaptainMapUpdate struct {
	CaptainMap map[string]string `json:"captainMap"`
}

// BidUpdate describes the item under the hammer. CurrentItem is nil when no
// item is active.
type BidUpdate struct {
	Amount           int          `json:"amount"`
	BidderNickname   string       `json:"bidderNickname"`
	CurrentItem      *engine.Item `json:"currentItem"`
	IsStarted        bool         `json:"isStarted"`
	CurrentItemIndex int          `json:"currentItemIndex"`
	IsRaffleRound    bool         `json:"isRaffleRound"`
}

type CountdownUpdate struct {
	Value int `json:"value"`
}

type AuctionResult struct {
	ItemNickname   string `json:"itemNickname"`
	WinnerTeam     string `json:"winnerTeam"`
	FinalBid       int    `json:"finalBid"`
	WinnerNickname string `json:"winnerNickname"`
}

type SystemMessage struct {
	Text string `json:"text"`
}

func (UserListUpdate) Kind() string   { return KindUserListUpdate }
func (ItemUpdate) Kind() string       { return KindItemUpdate }
func (TeamUpdate) Kind() string       { return KindTeamUpdate }
func (CaptainMapUpdate) Kind() string { return KindCaptainMapUpdate }
func (BidUpdate) Kind() string        { return KindUpdateBid }
func (CountdownUpdate) Kind() string  { return KindUpdateCountdown }
func (AuctionResult) Kind() string    { return KindAuctionResult }
func (SystemMessage) Kind() string    { return KindSystemMessage }

// NewBidUpdate builds the bid frame from engine state and the active item.
func NewBidUpdate(s engine.State, current *engine.Item) BidUpdate {
	return BidUpdate{
		Amount:           s.CurrentHighestBid,
		BidderNickname:   s.HighestBidderNickname,
		CurrentItem:      current,
		IsStarted:        s.IsStarted,
		CurrentItemIndex: s.CurrentItemIndex,
		IsRaffleRound:    s.IsRaffleRound,
	}
}

func NewAuctionResult(r engine.SaleResult) AuctionResult {
	return AuctionResult{
		ItemNickname:   r.ItemNickname,
		WinnerTeam:     r.WinnerTeam,
		FinalBid:       r.FinalBid,
		WinnerNickname: r.WinnerNickname,
	}
}
