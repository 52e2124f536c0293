// Package apperr defines the typed failures returned by the domain services.
// Every failure carries a Kind that the HTTP layer maps to a status code and a
// stable Code that errors.Is matches on, so a message can be specialised
// without breaking comparisons against the sentinel values below.
package apperr

import (
	"errors"
	"fmt"
)

// Kind classifies a failure for propagation to the caller.
type Kind int

const (
	KindInternal Kind = iota
	KindValidation
	KindNotFound
	KindForbidden
	KindConflict
	KindNotWhitelisted
	KindUpstream
	KindInvalidSignature
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindNotFound:
		return "not_found"
	case KindForbidden:
		return "forbidden"
	case KindConflict:
		return "conflict"
	case KindNotWhitelisted:
		return "not_whitelisted"
	case KindUpstream:
		return "upstream"
	case KindInvalidSignature:
		return "invalid_signature"
	default:
		return "internal"
	}
}

// Error is a typed domain failure.
type Error struct {
	Kind    Kind
	Code    string
	Message string
	Err     error
}

// New creates an error of the given kind.
func New(kind Kind, code, message string) *Error {
	return &Error{Kind: kind, Code: code, Message: message}
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

// Is reports whether target is an *Error with the same code.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Code == e.Code
}

// WithMessage returns a copy of e carrying a more specific message.
func (e *Error) WithMessage(message string) *Error {
	cp := *e
	cp.Message = message
	return &cp
}

// Wrap returns a copy of e with err attached as its cause.
func (e *Error) Wrap(err error) *Error {
	cp := *e
	cp.Err = err
	return &cp
}

// KindOf returns the kind of the first *Error in err's chain, or KindInternal.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// Message returns the caller-facing message for err.
func Message(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Message
	}
	return "internal server error"
}

var (
	ErrValidation = New(KindValidation, "validation", "invalid request")

	ErrTeamNotFound          = New(KindNotFound, "team_not_found", "team not found")
	ErrMemberNotFound        = New(KindNotFound, "member_not_found", "spot is not a member of this team")
	ErrWhitelistEntryMissing = New(KindNotFound, "whitelist_entry_not_found", "whitelist entry not found")
	ErrSpotNotFound          = New(KindNotFound, "spot_not_found", "spot not found")
	ErrRegistrationNotFound  = New(KindNotFound, "registration_not_found", "registration not found")
	ErrSponsorNotFound       = New(KindNotFound, "sponsor_not_found", "sponsor not found")
	ErrUserNotFound          = New(KindNotFound, "user_not_found", "user not found")
	ErrGolferNotFound        = New(KindNotFound, "golfer_not_found", "preferred golfer not found")
	ErrSessionNotFound       = New(KindNotFound, "session_not_found", "checkout session not found")

	ErrForbidden    = New(KindForbidden, "forbidden", "operation not allowed for the current user")
	ErrSpotNotOwned = New(KindForbidden, "spot_not_owned", "spot does not belong to a completed registration of this user")

	ErrTeamFull              = New(KindConflict, "team_full", "team is full")
	ErrSpotAlreadyAssigned   = New(KindConflict, "spot_already_assigned", "spot is already on a team")
	ErrInsufficientSpots     = New(KindConflict, "insufficient_spots", "one or more spots are already assigned to a team")
	ErrDuplicateEmail        = New(KindConflict, "duplicate_email", "email is already registered")
	ErrSponsorExists         = New(KindConflict, "sponsor_exists", "user already has a sponsorship")
	ErrRegistrationExists    = New(KindConflict, "registration_exists", "user already has a registration")
	ErrSpotLimitExceeded     = New(KindConflict, "spot_limit_exceeded", "spot limit per payer exceeded")
	ErrEmailTaken            = New(KindConflict, "email_taken", "email already registered")
	ErrEventAlreadyProcessed = New(KindConflict, "event_already_processed", "event already processed")
	ErrEventInFlight         = New(KindConflict, "event_in_flight", "event is being processed")

	ErrNotWhitelisted = New(KindNotWhitelisted, "not_whitelisted", "spot is not on this team's whitelist")

	ErrUpstream = New(KindUpstream, "upstream_failure", "upstream service failed")

	ErrInvalidSignature     = New(KindInvalidSignature, "invalid_signature", "invalid webhook signature")
	ErrMissingUserID        = New(KindValidation, "missing_user_id", "metadata is missing userId")
	ErrInvalidMetadataShape = New(KindValidation, "invalid_metadata_shape", "metadata does not describe a known checkout")
)

// Validation returns a validation failure with the given message.
func Validation(message string) *Error {
	return ErrValidation.WithMessage(message)
}

// Validationf is Validation with formatting.
func Validationf(format string, args ...any) *Error {
	return ErrValidation.WithMessage(fmt.Sprintf(format, args...))
}

// DuplicateEmail names the colliding address.
func DuplicateEmail(email string) *Error {
	return ErrDuplicateEmail.WithMessage(fmt.Sprintf("email %s is already registered", email))
}

// Upstream wraps a collaborator failure (store, payment provider).
func Upstream(message string, err error) *Error {
	return ErrUpstream.WithMessage(message).Wrap(err)
}
