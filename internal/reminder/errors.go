package reminder

import "errors"

var (
	// ErrInvalidPreference marks a malformed preference. The sweep skips it.
	ErrInvalidPreference = errors.New("invalid reminder preference")
	// ErrInvalidUser marks a user record missing required fields.
	ErrInvalidUser = errors.New("invalid user")
	// ErrFeedUnavailable marks a failed contest feed fetch. Retried next tick.
	ErrFeedUnavailable = errors.New("contest feed unavailable")
	// ErrTransport marks a failed email or SMS send. Retried next tick.
	ErrTransport = errors.New("notification transport failed")
	// ErrNoContact means the user has no address for the requested method.
	ErrNoContact = errors.New("no contact address")
	// ErrNotFound is returned by stores for unknown users or preferences.
	ErrNotFound = errors.New("not found")
)
