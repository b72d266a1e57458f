package engine

// Round is the list currently being auctioned: the whole catalog in the
// primary round, the unsold items in the raffle round. Indexes handed to a
// Round always refer to that list.
type Round struct {
	c      *Catalog
	raffle bool
}

func (r Round) Raffle() bool { return r.raffle }

func (r Round) Len() int {
	if r.raffle {
		return len(r.c.failed)
	}
	return len(r.c.items)
}

// At returns the item at i, pointing into catalog storage.
func (r Round) At(i int) (*Item, bool) {
	if i < 0 || i >= r.Len() {
		return nil, false
	}
	if r.raffle {
		return r.c.ByID(r.c.failed[i])
	}
	return &r.c.items[i], true
}

func (r Round) List() []Item {
	if r.raffle {
		return r.c.Failed()
	}
	return r.c.Items()
}

// Advance returns the index after i. When the item at i has just been
// removed from this list the next item already sits at i, so the index
// deliberately stays put; stepping to i+1 after the removal would skip the
// item that slid into the freed slot. The bool is false once the list is
// exhausted.
func (r Round) Advance(i int, removed bool) (int, bool) {
	next := i + 1
	if removed {
		next = i
	}
	if next < 0 || next >= r.Len() {
		return -1, false
	}
	return next, true
}
