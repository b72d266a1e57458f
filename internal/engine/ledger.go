package engine

import (
	"slices"
	"strings"
)

const (
	MaxRoster     = 4
	DefaultBudget = 10000
)

type RosterEntry struct {
	Nickname string `json:"nickname"`
	Pos      string `json:"pos"`
}

type Team struct {
	Name          string        `json:"name"`
	Budget        int           `json:"budget"`
	InitialBudget int           `json:"initialBudget"`
	Players       []RosterEntry `json:"players"`
}

// Ledger holds the teams in registration order. Settle performs no checks;
// callers gate it with CanAfford or HasRosterRoom in the same transition.
type Ledger struct {
	teams []Team
}

func NewLedger(teams []Team) *Ledger {
	l := &Ledger{teams: cloneTeams(teams)}
	for i := range l.teams {
		if l.teams[i].Players == nil {
			l.teams[i].Players = []RosterEntry{}
		}
	}
	return l
}

func (l *Ledger) Len() int { return len(l.teams) }

func (l *Ledger) Teams() []Team { return cloneTeams(l.teams) }

func (l *Ledger) Team(name string) (*Team, bool) {
	for i := range l.teams {
		if l.teams[i].Name == name {
			return &l.teams[i], true
		}
	}
	return nil, false
}

func (l *Ledger) AddTeam(name string, budget int) error {
	name = strings.TrimSpace(name)
	if name == "" || budget < 0 {
		return ErrInvalidTeam
	}
	if _, ok := l.Team(name); ok {
		return ErrDuplicateTeam
	}
	l.teams = append(l.teams, Team{
		Name:          name,
		Budget:        budget,
		InitialBudget: budget,
		Players:       []RosterEntry{},
	})
	return nil
}

func (l *Ledger) HasRosterRoom(name string) bool {
	t, ok := l.Team(name)
	return ok && len(t.Players) < MaxRoster
}

func (l *Ledger) CanAfford(name string, amount int) bool {
	t, ok := l.Team(name)
	if !ok {
		return false
	}
	return t.Budget >= amount && len(t.Players) < MaxRoster
}

func (l *Ledger) Settle(name string, item Item, amount int) {
	t, ok := l.Team(name)
	if !ok {
		return
	}
	t.Budget -= amount
	t.Players = append(t.Players, RosterEntry{Nickname: item.Nickname, Pos: item.MainPos})
}

// ResetAll restores every budget to the team's initial budget. A budget of
// zero is a real value here; stored teams that lack one are given
// DefaultBudget when they are decoded.
func (l *Ledger) ResetAll() {
	for i := range l.teams {
		t := &l.teams[i]
		t.Budget = t.InitialBudget
		t.Players = []RosterEntry{}
	}
}

func (l *Ledger) Clear() { l.teams = nil }

func cloneTeams(in []Team) []Team {
	out := make([]Team, len(in))
	for i, t := range in {
		out[i] = t
		out[i].Players = slices.Clone(t.Players)
		if out[i].Players == nil {
			out[i].Players = []RosterEntry{}
		}
	}
	return out
}
