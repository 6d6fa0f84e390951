package refresh

import "github.com/wonny/debtview/internal/feed"

// State is the producer's position in its cycle.
type State int32

const (
	StateIdle State = iota
	StateAuthenticating
	StateFetching
	StateParsing
	StateEnriching
	StatePublishing
	StateSleeping
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateAuthenticating:
		return "authenticating"
	case StateFetching:
		return "fetching"
	case StateParsing:
		return "parsing"
	case StateEnriching:
		return "enriching"
	case StatePublishing:
		return "publishing"
	case StateSleeping:
		return "sleeping"
	default:
		return "unknown"
	}
}

func stateOf(p feed.Phase) State {
	switch p {
	case feed.PhaseAuthenticating:
		return StateAuthenticating
	case feed.PhaseFetching:
		return StateFetching
	case feed.PhaseParsing:
		return StateParsing
	default:
		return StateIdle
	}
}
