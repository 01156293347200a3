package session

import "fmt"

// State is the lifecycle state of a browser session.
type State int

const (
	StateAnonymous State = iota
	StateAuthenticating
	StateAuthenticated
	StateRefreshing
)

func (s State) String() string {
	switch s {
	case StateAnonymous:
		return "anonymous"
	case StateAuthenticating:
		return "authenticating"
	case StateAuthenticated:
		return "authenticated"
	case StateRefreshing:
		return "refreshing"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// Event drives a State transition.
type Event int

const (
	// EventSubmit: credentials, a handoff token or an external identity
	// were presented.
	EventSubmit Event = iota
	EventSucceed
	EventFail
	// EventAccessExpired: the client presented its refresh token.
	EventAccessExpired
	EventLogout
)

func (e Event) String() string {
	switch e {
	case EventSubmit:
		return "submit"
	case EventSucceed:
		return "succeed"
	case EventFail:
		return "fail"
	case EventAccessExpired:
		return "access_expired"
	case EventLogout:
		return "logout"
	}
	return fmt.Sprintf("event(%d)", int(e))
}

// Transition returns the state reached from s on e, or an error if e is not
// accepted in s.
//
//	Anonymous      --submit-->         Authenticating
//	Authenticating --succeed-->        Authenticated
//	Authenticating --fail-->           Anonymous
//	Authenticated  --access_expired--> Refreshing
//	Authenticated  --logout-->         Anonymous
//	Refreshing     --succeed-->        Authenticated
//	Refreshing     --fail-->           Anonymous
func (s State) Transition(e Event) (State, error) {
	switch {
	case s == StateAnonymous && e == EventSubmit:
		return StateAuthenticating, nil
	case s == StateAuthenticating && e == EventSucceed:
		return StateAuthenticated, nil
	case s == StateAuthenticating && e == EventFail:
		return StateAnonymous, nil
	case s == StateAuthenticated && e == EventAccessExpired:
		return StateRefreshing, nil
	case s == StateAuthenticated && e == EventLogout:
		return StateAnonymous, nil
	case s == StateRefreshing && e == EventSucceed:
		return StateAuthenticated, nil
	case s == StateRefreshing && e == EventFail:
		return StateAnonymous, nil
	}
	return s, fmt.Errorf("session: %s not accepted in state %s", e, s)
}
