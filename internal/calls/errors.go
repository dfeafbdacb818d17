package calls

import "errors"

// Admission errors. Each one is reported synchronously to the requesting
// endpoint as a reason-tagged event and never mutates session state.
var (
	ErrNotFound      = errors.New("call not found")
	ErrFull          = errors.New("call already has two members")
	ErrBusy          = errors.New("another join is already pending")
	ErrForbidden     = errors.New("only the call creator may do this")
	ErrInvalidTarget = errors.New("participant is not the pending joiner")
	ErrAlreadyMember = errors.New("endpoint is already a member of the call")
)

// reasonTag maps an admission error to the machine-readable reason sent to
// the client. Callers must be able to tell these apart, so every error in
// the taxonomy has its own tag.
func reasonTag(err error) string {
	switch {
	case errors.Is(err, ErrNotFound):
		return "not-found"
	case errors.Is(err, ErrFull):
		return "call-full"
	case errors.Is(err, ErrBusy):
		return "call-busy"
	case errors.Is(err, ErrForbidden):
		return "not-creator"
	case errors.Is(err, ErrInvalidTarget):
		return "no-waiting-participant"
	case errors.Is(err, ErrAlreadyMember):
		return "already-in-call"
	default:
		return "internal"
	}
}
