package contentrepo

import "errors"

var (
	// ErrNotFound signals a missing file. Callers treat it as "create new".
	ErrNotFound = errors.New("contentrepo: not found")
	// ErrConflict signals a stale or missing version tag on write.
	ErrConflict = errors.New("contentrepo: version conflict")
	// ErrUnavailable covers missing configuration, rejected credentials and
	// unreachable remotes.
	ErrUnavailable = errors.New("contentrepo: unavailable")
)
