package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/DoyleJ11/auction-backend/internal/engine"
)

// The auction is stored as three documents, each overwritten wholesale on
// every save.
const (
	DocItems = "items"
	DocTeams = "teams"
	DocState = "state"
)

var ErrUnknownBackend = errors.New("unknown store backend")

// Documents maps a document name to its JSON body.
type Documents map[string][]byte

// Gateway is a durable home for the auction documents. Load returns only
// the documents that exist.
type Gateway interface {
	Load(ctx context.Context) (Documents, error)
	Save(ctx context.Context, docs Documents) error
	Close() error
}

func Encode(s engine.Snapshot) (Documents, error) {
	items := s.Items
	if items == nil {
		items = []engine.Item{}
	}
	teams := s.Teams
	if teams == nil {
		teams = []engine.Team{}
	}

	docs := Documents{}
	for name, v := range map[string]any{DocItems: items, DocTeams: teams, DocState: s.State} {
		b, err := json.Marshal(v)
		if err != nil {
			return nil, fmt.Errorf("encode %s: %w", name, err)
		}
		docs[name] = b
	}
	return docs, nil
}

// storedTeam tells a missing initialBudget apart from an explicit zero.
type storedTeam struct {
	engine.Team
	InitialBudget *int `json:"initialBudget"`
}

func (s storedTeam) team() engine.Team {
	t := s.Team
	t.InitialBudget = engine.DefaultBudget
	if s.InitialBudget != nil {
		t.InitialBudget = *s.InitialBudget
	}
	return t
}

// Decode loads items, then teams, then state, each onto its defaults. A
// document that fails to parse keeps its defaults; the failures are
// returned joined alongside whatever did load.
func Decode(docs Documents) (engine.Snapshot, error) {
	s := engine.Snapshot{State: engine.DefaultState()}
	var errs []error

	if b, ok := docs[DocItems]; ok {
		var items []engine.Item
		if err := json.Unmarshal(b, &items); err != nil {
			errs = append(errs, fmt.Errorf("decode %s: %w", DocItems, err))
		} else {
			s.Items = items
		}
	}
	if b, ok := docs[DocTeams]; ok {
		var teams []storedTeam
		if err := json.Unmarshal(b, &teams); err != nil {
			errs = append(errs, fmt.Errorf("decode %s: %w", DocTeams, err))
		} else {
			s.Teams = make([]engine.Team, len(teams))
			for i, t := range teams {
				s.Teams[i] = t.team()
			}
		}
	}
	if b, ok := docs[DocState]; ok {
		st := engine.DefaultState()
		if err := json.Unmarshal(b, &st); err != nil {
			errs = append(errs, fmt.Errorf("decode %s: %w", DocState, err))
		} else {
			s.State = st
		}
	}
	return s, errors.Join(errs...)
}

// LoadSnapshot reads and decodes the stored auction. A decode error still
// comes with the usable part of the snapshot.
func LoadSnapshot(ctx context.Context, gw Gateway) (engine.Snapshot, error) {
	docs, err := gw.Load(ctx)
	if err != nil {
		return engine.Snapshot{State: engine.DefaultState()}, fmt.Errorf("load documents: %w", err)
	}
	return Decode(docs)
}

func SaveSnapshot(ctx context.Context, gw Gateway, s engine.Snapshot) error {
	docs, err := Encode(s)
	if err != nil {
		return err
	}
	if err := gw.Save(ctx, docs); err != nil {
		return fmt.Errorf("save documents: %w", err)
	}
	return nil
}
