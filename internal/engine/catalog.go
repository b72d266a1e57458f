package engine

import (
	"slices"
	"strings"

	"github.com/google/uuid"
)

// Unsold is the winner recorded for an item that closed without a valid buyer.
const Unsold = "unsold"

type Item struct {
	ID          string `json:"id"`
	Nickname    string `json:"nickname"`
	MainPos     string `json:"mainPos"`
	IsAuctioned bool   `json:"isAuctioned"`
	Winner      string `json:"winner"`
	FinalBid    int    `json:"finalBid"`
}

// Shuffler permutes n elements through swap, matching rand.Shuffle.
type Shuffler func(n int, swap func(i, j int))

// Catalog keeps the primary item list and the ids of items waiting for the
// raffle round. The failed list only ever references items in the catalog.
type Catalog struct {
	items  []Item
	failed []string
}

func NewCatalog(items []Item) *Catalog {
	c := &Catalog{items: slices.Clone(items)}
	c.DeriveFailed()
	return c
}

func (c *Catalog) Len() int { return len(c.items) }

// Items returns a copy of the catalog; never nil so it encodes as [].
func (c *Catalog) Items() []Item {
	out := make([]Item, len(c.items))
	copy(out, c.items)
	return out
}

func (c *Catalog) ByID(id string) (*Item, bool) {
	for i := range c.items {
		if c.items[i].ID == id {
			return &c.items[i], true
		}
	}
	return nil, false
}

func (c *Catalog) Add(nickname, mainPos string) (Item, error) {
	nickname = strings.TrimSpace(nickname)
	if nickname == "" {
		return Item{}, ErrInvalidItem
	}
	it := Item{ID: uuid.NewString(), Nickname: nickname, MainPos: strings.TrimSpace(mainPos)}
	c.items = append(c.items, it)
	return it, nil
}

func (c *Catalog) Clear() {
	c.items = nil
	c.failed = nil
}

func (c *Catalog) Shuffle(shuffle Shuffler) {
	shuffle(len(c.items), func(i, j int) { c.items[i], c.items[j] = c.items[j], c.items[i] })
}

func (c *Catalog) ShuffleFailed(shuffle Shuffler) {
	shuffle(len(c.failed), func(i, j int) { c.failed[i], c.failed[j] = c.failed[j], c.failed[i] })
}

// Failed returns the raffle candidates in raffle order.
func (c *Catalog) Failed() []Item {
	out := make([]Item, 0, len(c.failed))
	for _, id := range c.failed {
		if it, ok := c.ByID(id); ok {
			out = append(out, *it)
		}
	}
	return out
}

func (c *Catalog) FailedLen() int { return len(c.failed) }

// MarkFailed appends id to the raffle list unless it is already there.
func (c *Catalog) MarkFailed(id string) bool {
	if slices.Contains(c.failed, id) {
		return false
	}
	c.failed = append(c.failed, id)
	return true
}

// DeriveFailed adds every unsold item not yet in the raffle list, in catalog
// order.
func (c *Catalog) DeriveFailed() {
	for _, it := range c.items {
		if it.Winner == Unsold {
			c.MarkFailed(it.ID)
		}
	}
}

func (c *Catalog) RemoveFromFailed(id string) bool {
	i := slices.Index(c.failed, id)
	if i < 0 {
		return false
	}
	c.failed = slices.Delete(c.failed, i, i+1)
	return true
}

func (c *Catalog) ClearFailed() { c.failed = nil }

// ResetSales unsets the sale fields of every item and empties the raffle list.
func (c *Catalog) ResetSales() {
	for i := range c.items {
		c.items[i].IsAuctioned = false
		c.items[i].Winner = ""
		c.items[i].FinalBid = 0
	}
	c.failed = nil
}

func (c *Catalog) Round(raffle bool) Round { return Round{c: c, raffle: raffle} }
