package session

import (
	"fmt"

	"github.com/goliatone/go-errors"
)

// State is the store's login state.
type State int

const (
	StateLoggedOut State = iota
	StateLoggedIn
)

func (s State) String() string {
	switch s {
	case StateLoggedOut:
		return "logged_out"
	case StateLoggedIn:
		return "logged_in"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// Event triggers a state change.
type Event string

const (
	EventLogin           Event = "login"
	EventRehydrate       Event = "rehydrate"
	EventRehydrateFailed Event = "rehydrate_failed"
	EventLogout          Event = "logout"
)

// ErrInvalidTransition is returned for an event the current state does not accept.
var ErrInvalidTransition = errors.New("invalid session state transition", errors.CategoryValidation).
	WithTextCode("INVALID_SESSION_TRANSITION").
	WithCode(errors.CodeBadRequest)

var transitions = map[State]map[Event]State{
	StateLoggedOut: {
		EventLogin:           StateLoggedIn,
		EventRehydrate:       StateLoggedIn,
		EventRehydrateFailed: StateLoggedOut,
		EventLogout:          StateLoggedOut,
	},
	StateLoggedIn: {
		EventLogin:           StateLoggedIn,
		EventRehydrate:       StateLoggedIn,
		EventRehydrateFailed: StateLoggedOut,
		EventLogout:          StateLoggedOut,
	},
}

// Next returns the state reached from "from" on ev.
func Next(from State, ev Event) (State, error) {
	to, ok := transitions[from][ev]
	if !ok {
		return from, ErrInvalidTransition.Clone().WithMetadata(map[string]any{
			"from":  from.String(),
			"event": string(ev),
		})
	}
	return to, nil
}
