package engine

type Phase string

const (
	PhaseIdle     Phase = "idle"
	PhaseRunning  Phase = "running"
	PhaseFinished Phase = "finished"
)

func DefaultState() State {
	return State{CurrentItemIndex: -1}
}

func DerivePhase(s State) Phase {
	switch {
	case s.IsStarted:
		return PhaseRunning
	case s.CurrentItemIndex < 0:
		return PhaseFinished
	default:
		return PhaseIdle
	}
}

func ContainsEvent(events []Event, eventType EventType) bool {
	for _, event := range events {
		if event.Type == eventType {
			return true
		}
	}
	return false
}

// FindEvent returns the first event of the given type.
func FindEvent(events []Event, eventType EventType) (Event, bool) {
	for _, event := range events {
		if event.Type == eventType {
			return event, true
		}
	}
	return Event{}, false
}
