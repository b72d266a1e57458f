package lobby

import (
	"errors"
	"fmt"

	"github.com/DoyleJ11/auction-backend/internal/engine"
)

const msgReset = "The auction was reset by the administrator."

// textFor turns a validation failure into the system message shown to the
// sender.
func textFor(cmd engine.Command, err error) string {
	switch {
	case errors.Is(err, engine.ErrInvalidNickname):
		return "Invalid nickname."
	case errors.Is(err, engine.ErrDuplicateTeam):
		return fmt.Sprintf("Team %q already exists.", cmd.TeamName)
	case errors.Is(err, engine.ErrInvalidTeam):
		return "A team needs a name and a non-negative budget."
	case errors.Is(err, engine.ErrInvalidItem):
		return "A player needs a nickname."
	case errors.Is(err, engine.ErrNoItems):
		return "There are no players to auction. Register players first."
	case errors.Is(err, engine.ErrNoFailedItems):
		return "There are no unsold players."
	case errors.Is(err, engine.ErrNoActiveItem):
		return "No player is up for auction. Start the auction or the raffle round first."
	case errors.Is(err, engine.ErrUnknownTeam) && cmd.Type == engine.CmdForceAssign,
		errors.Is(err, engine.ErrRosterFull):
		return "Assignment failed: team not found or roster is full."
	case errors.Is(err, engine.ErrUnknownTeam):
		return fmt.Sprintf("Team %q does not exist.", cmd.TeamName)
	case errors.Is(err, engine.ErrAuctionInProgress):
		return "An auction is already in progress."
	default:
		return err.Error()
	}
}

// confirmationFor returns the private acknowledgement for events that have
// one.
func confirmationFor(ev engine.Event) (string, bool) {
	switch ev.Type {
	case engine.EvtPrepared:
		return "Players shuffled. Ready for the first auction.", true
	case engine.EvtRaffleStarted:
		return "The raffle round has started.", true
	case engine.EvtForceAssigned:
		return fmt.Sprintf("%s was assigned to %s at no cost.", ev.Result.ItemNickname, ev.Result.WinnerTeam), true
	default:
		return "", false
	}
}

func rejectReason(err error) string {
	switch {
	case errors.Is(err, engine.ErrNotStarted):
		return "not_started"
	case errors.Is(err, engine.ErrBidTooLow):
		return "too_low"
	case errors.Is(err, engine.ErrNoCaptain):
		return "no_captain"
	case errors.Is(err, engine.ErrCannotAfford):
		return "cannot_afford"
	case errors.Is(err, engine.ErrNoBidItem):
		return "no_item"
	default:
		return "other"
	}
}
