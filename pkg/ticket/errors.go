package ticket

import "fmt"

// Kind classifies a lifecycle failure. The interaction surface uses it to
// decide how to report the failure; nothing in this package panics or lets an
// error escape untagged.
type Kind uint8

const (
	// KindUnknown is an unclassified failure.
	KindUnknown Kind = iota

	// KindConfiguration is a missing role/category/channel in the guild
	// configuration. Surfaced to the user, fixed by an admin.
	KindConfiguration

	// KindPermission is a caller that lacks the privilege for an action.
	KindPermission

	// KindConflict is an action that is valid but not in the ticket's
	// current state, such as opening a duplicate or resolving twice.
	KindConflict

	// KindNotFound is a ticket or channel that has vanished.
	KindNotFound

	// KindExternalAPI is a failed discord API call.
	KindExternalAPI

	// KindStorage is a failed persistence write. Fatal to the operation;
	// in-memory state must not diverge from storage.
	KindStorage
)

func (k Kind) String() string {
	switch k {
	case KindConfiguration:
		return "configuration"
	case KindPermission:
		return "permission"
	case KindConflict:
		return "conflict"
	case KindNotFound:
		return "not_found"
	case KindExternalAPI:
		return "external_api"
	case KindStorage:
		return "storage"
	}
	return "unknown"
}

// Error is a tagged lifecycle failure. Message is safe to show to the user
// that triggered the operation; Err carries the underlying cause for logs.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func newError(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

func wrapError(kind Kind, message string, err error) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

var (
	// ErrMissingCategory is returned when the configured ticket category
	// does not resolve to a channel.
	ErrMissingCategory = newError(KindConfiguration, "The ticket category could not be found. Please contact an administrator.")

	// ErrMissingSupportRole is returned when the configured support role does
	// not exist in the guild.
	ErrMissingSupportRole = newError(KindConfiguration, "The support role could not be found. Please contact an administrator.")

	// ErrNotConfigured is returned when ticketing has never been set up for
	// the guild.
	ErrNotConfigured = newError(KindConfiguration, "Ticketing has not been configured for this server.")

	// ErrNotATicket is returned when a channel has no ticket record.
	ErrNotATicket = newError(KindNotFound, "This channel is not a ticket.")

	// ErrAlreadyResolved is returned when a resolved ticket is resolved
	// again.
	ErrAlreadyResolved = newError(KindConflict, "This ticket is already marked as resolved.")

	// ErrNotRequesterOrSupport is returned when a user that is neither the
	// requester nor support tries to close a ticket.
	ErrNotRequesterOrSupport = newError(KindPermission, "Only the ticket requester or the support team can close this ticket.")

	// ErrTooManyTickets is returned when a user trips the creation rate
	// limit.
	ErrTooManyTickets = newError(KindPermission, "You are opening tickets too quickly. Please wait a moment and try again.")
)

func newDuplicateTicket(channelID string) *Error {
	return newError(KindConflict, fmt.Sprintf("You already have an open ticket: <#%s>", channelID))
}
