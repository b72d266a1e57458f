package engine

import (
	"errors"
	"fmt"
)

// ErrValidation and ErrRuleViolation classify every rejection the engine
// produces. Validation failures are reported back to whoever sent the
// command; rule violations are dropped without feedback.
var (
	ErrValidation    = errors.New("validation failed")
	ErrRuleViolation = errors.New("rule violation")
)

var ErrUnsupportedCommand = errors.New("unsupported command")

var (
	ErrInvalidNickname   = fmt.Errorf("%w: invalid nickname", ErrValidation)
	ErrInvalidTeam       = fmt.Errorf("%w: invalid team", ErrValidation)
	ErrInvalidItem       = fmt.Errorf("%w: invalid item", ErrValidation)
	ErrDuplicateTeam     = fmt.Errorf("%w: team already exists", ErrValidation)
	ErrUnknownTeam       = fmt.Errorf("%w: unknown team", ErrValidation)
	ErrNoItems           = fmt.Errorf("%w: no items to auction", ErrValidation)
	ErrNoFailedItems     = fmt.Errorf("%w: no unsold items", ErrValidation)
	ErrNoActiveItem      = fmt.Errorf("%w: no active item", ErrValidation)
	ErrRosterFull        = fmt.Errorf("%w: roster is full", ErrValidation)
	ErrAuctionInProgress = fmt.Errorf("%w: auction in progress", ErrValidation)
)

var (
	ErrNotStarted    = fmt.Errorf("%w: auction not started", ErrRuleViolation)
	ErrBidTooLow     = fmt.Errorf("%w: bid not above current high bid", ErrRuleViolation)
	ErrNoCaptain     = fmt.Errorf("%w: bidder is not a team captain", ErrRuleViolation)
	ErrCannotAfford  = fmt.Errorf("%w: team cannot afford bid", ErrRuleViolation)
	ErrListExhausted = fmt.Errorf("%w: no item at current index", ErrRuleViolation)
	ErrNoBidItem     = fmt.Errorf("%w: no item under the hammer", ErrRuleViolation)
)

// IsValidation reports whether err should be surfaced to the sender.
func IsValidation(err error) bool { return errors.Is(err, ErrValidation) }

// IsRuleViolation reports whether err is a silently ignored rejection.
func IsRuleViolation(err error) bool { return errors.Is(err, ErrRuleViolation) }
