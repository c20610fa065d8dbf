package auth

import "github.com/cockroachdb/errors"

var (
	// ErrTransport covers network failures, non-2xx device code responses and
	// unparsable bodies. It is never retried.
	ErrTransport = errors.New("github oauth transport error")

	// ErrDenied means the user refused the authorization request.
	ErrDenied = errors.New("authorization denied")

	// ErrExpired means the device code lapsed before the user approved it.
	ErrExpired = errors.New("device code expired")

	// ErrProvider wraps any other error code reported by the token endpoint.
	ErrProvider = errors.New("oauth provider error")
)

// State is a step of the device flow.
type State int

const (
	StateRequesting State = iota
	StateAwaitingUser
	StatePolling
	StateAuthorized
	StateDenied
	StateExpired
	StateProviderError
)

func (s State) String() string {
	switch s {
	case StateRequesting:
		return "requesting"
	case StateAwaitingUser:
		return "awaiting-user"
	case StatePolling:
		return "polling"
	case StateAuthorized:
		return "authorized"
	case StateDenied:
		return "denied"
	case StateExpired:
		return "expired"
	case StateProviderError:
		return "provider-error"
	default:
		return "unknown"
	}
}

// Terminal reports whether no further transition can happen from s.
func (s State) Terminal() bool {
	switch s {
	case StateAuthorized, StateDenied, StateExpired, StateProviderError:
		return true
	default:
		return false
	}
}

// OutcomeKind classifies a single token poll response.
type OutcomeKind int

const (
	OutcomeContinue OutcomeKind = iota
	OutcomeSlowDown
	OutcomeSuccess
	OutcomeDenied
	OutcomeExpired
	OutcomeError
)

func (k OutcomeKind) String() string {
	switch k {
	case OutcomeContinue:
		return "continue"
	case OutcomeSlowDown:
		return "slow-down"
	case OutcomeSuccess:
		return "success"
	case OutcomeDenied:
		return "denied"
	case OutcomeExpired:
		return "expired"
	default:
		return "error"
	}
}

// PollOutcome is the interpreted result of one poll.
type PollOutcome struct {
	Kind  OutcomeKind
	Token string
	Error string
}

// Interpret maps a token endpoint response onto a PollOutcome. An access
// token wins over any error field. A response with neither is treated as
// pending.
func Interpret(accessToken, errCode, errDescription string) PollOutcome {
	if accessToken != "" {
		return PollOutcome{Kind: OutcomeSuccess, Token: accessToken}
	}

	switch errCode {
	case "", "authorization_pending":
		return PollOutcome{Kind: OutcomeContinue}
	case "slow_down":
		return PollOutcome{Kind: OutcomeSlowDown}
	case "access_denied":
		return PollOutcome{Kind: OutcomeDenied, Error: errCode}
	case "expired_token":
		return PollOutcome{Kind: OutcomeExpired, Error: errCode}
	}

	msg := errCode
	if errDescription != "" {
		msg = errCode + " (" + errDescription + ")"
	}
	return PollOutcome{Kind: OutcomeError, Error: msg}
}
