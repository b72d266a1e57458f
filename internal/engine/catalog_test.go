package engine

import (
	"errors"
	"testing"
)

func seededCatalog(t *testing.T, names ...string) *Catalog {
	t.Helper()
	c := NewCatalog(nil)
	for _, n := range names {
		if _, err := c.Add(n, "top"); err != nil {
			t.Fatalf("add %q: %v", n, err)
		}
	}
	return c
}

func TestCatalogAddRejectsBlank(t *testing.T) {
	c := NewCatalog(nil)
	if _, err := c.Add("  ", "mid"); !errors.Is(err, ErrInvalidItem) {
		t.Fatalf("want ErrInvalidItem, got %v", err)
	}
	a, _ := c.Add("a", "mid")
	b, _ := c.Add("b", "mid")
	if a.ID == "" || a.ID == b.ID {
		t.Fatalf("ids must be unique and non-empty: %q %q", a.ID, b.ID)
	}
}

func TestCatalogFailedList(t *testing.T) {
	c := seededCatalog(t, "a", "b", "c")
	items := c.Items()

	if !c.MarkFailed(items[2].ID) || !c.MarkFailed(items[0].ID) {
		t.Fatalf("first mark must succeed")
	}
	if c.MarkFailed(items[0].ID) {
		t.Fatalf("duplicate mark must be ignored")
	}

	failed := c.Failed()
	if len(failed) != 2 || failed[0].Nickname != "c" || failed[1].Nickname != "a" {
		t.Fatalf("unexpected failed order %+v", failed)
	}

	if !c.RemoveFromFailed(items[2].ID) || c.RemoveFromFailed(items[2].ID) {
		t.Fatalf("remove must succeed exactly once")
	}
	if c.FailedLen() != 1 {
		t.Fatalf("want 1 failed, got %d", c.FailedLen())
	}
}

func TestCatalogDerivesFailedOnLoad(t *testing.T) {
	c := NewCatalog([]Item{
		{ID: "1", Nickname: "a", Winner: Unsold},
		{ID: "2", Nickname: "b", Winner: "Red", IsAuctioned: true, FinalBid: 20},
		{ID: "3", Nickname: "c"},
		{ID: "4", Nickname: "d", Winner: Unsold},
	})
	failed := c.Failed()
	if len(failed) != 2 || failed[0].ID != "1" || failed[1].ID != "4" {
		t.Fatalf("unexpected failed %+v", failed)
	}

	c.ResetSales()
	if c.FailedLen() != 0 {
		t.Fatalf("reset must empty the failed list")
	}
	for _, it := range c.Items() {
		if it.Winner != "" || it.IsAuctioned || it.FinalBid != 0 {
			t.Fatalf("item not reset %+v", it)
		}
	}
}

func TestRoundAdvance(t *testing.T) {
	c := seededCatalog(t, "a", "b", "c")
	primary := c.Round(false)

	cases := []struct {
		name    string
		r       Round
		i       int
		removed bool
		want    int
		wantOK  bool
	}{
		{name: "next", r: primary, i: 0, want: 1, wantOK: true},
		{name: "last", r: primary, i: 2, want: -1, wantOK: false},
		{name: "removed keeps slot", r: primary, i: 1, removed: true, want: 1, wantOK: true},
		{name: "removed last", r: primary, i: 3, removed: true, want: -1, wantOK: false},
		{name: "empty raffle", r: c.Round(true), i: 0, want: -1, wantOK: false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, ok := tc.r.Advance(tc.i, tc.removed)
			if got != tc.want || ok != tc.wantOK {
				t.Fatalf("Advance(%d, %v) = (%d, %v), want (%d, %v)", tc.i, tc.removed, got, ok, tc.want, tc.wantOK)
			}
		})
	}
}

func TestRaffleRoundReadsFailedList(t *testing.T) {
	c := seededCatalog(t, "a", "b", "c")
	items := c.Items()
	c.MarkFailed(items[1].ID)

	r := c.Round(true)
	if !r.Raffle() || r.Len() != 1 {
		t.Fatalf("unexpected raffle round len %d", r.Len())
	}
	it, ok := r.At(0)
	if !ok || it.Nickname != "b" {
		t.Fatalf("unexpected item %+v", it)
	}
	if _, ok := r.At(1); ok {
		t.Fatalf("out of range index must miss")
	}
	if _, ok := r.At(-1); ok {
		t.Fatalf("negative index must miss")
	}
}
