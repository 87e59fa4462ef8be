package messages

const (
	// ErrUserErrorProcessing is the generic message sent to a user when a
	// command fails for a reason that is not theirs to fix.
	ErrUserErrorProcessing = "Something went wrong processing that, please try again later."

	// ErrNoPermission is sent to a user that attempts a privileged action.
	ErrNoPermission = "You do not have permission to do that."

	// ErrNotConfigured is sent when ticketing has not been set up for the guild.
	ErrNotConfigured = "Ticketing has not been configured for this server. Please contact an administrator."
)
