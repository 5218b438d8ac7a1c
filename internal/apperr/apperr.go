package apperr

import "errors"

// Kind classifies an error so the transport layer can render a specific
// response without knowing which module produced it.
type Kind string

const (
	KindNotFound            Kind = "not_found"
	KindUnauthorized        Kind = "unauthorized"
	KindValidation          Kind = "validation_error"
	KindSlotUnavailable     Kind = "slot_unavailable"
	KindInsufficientCredits Kind = "insufficient_credits"
	KindInvalidState        Kind = "invalid_state"
	KindUpstreamUnavailable Kind = "upstream_unavailable"
)

// Error is a classified error. Sentinels built with New compare equal to
// themselves and to the bare kind values below via errors.Is.
type Error struct {
	Kind Kind
	Msg  string
}

func (e *Error) Error() string {
	if e.Msg == "" {
		return string(e.Kind)
	}
	return e.Msg
}

// Is matches kind-only targets such as ErrNotFound.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Msg == "" && t.Kind == e.Kind
}

func New(kind Kind, msg string) *Error {
	return &Error{Kind: kind, Msg: msg}
}

var (
	ErrNotFound            = &Error{Kind: KindNotFound}
	ErrUnauthorized        = &Error{Kind: KindUnauthorized}
	ErrValidation          = &Error{Kind: KindValidation}
	ErrSlotUnavailable     = &Error{Kind: KindSlotUnavailable}
	ErrInsufficientCredits = &Error{Kind: KindInsufficientCredits}
	ErrInvalidState        = &Error{Kind: KindInvalidState}
	ErrUpstreamUnavailable = &Error{Kind: KindUpstreamUnavailable}
)

// KindOf returns the kind of the first classified error in err's chain.
func KindOf(err error) (Kind, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind, true
	}
	return "", false
}
