package monday

import "errors"

var (
	ErrUnauthorized  = errors.New("unauthorized")
	ErrNotFound      = errors.New("not found")
	ErrRateLimited   = errors.New("rate limited")
	ErrInvalidConfig = errors.New("invalid config")
	ErrUnknownStream = errors.New("unknown stream")

	// ErrNoParentStream is returned when a substream slicer is built without
	// any parent stream.
	ErrNoParentStream = errors.New("substream slicer needs at least 1 parent stream")

	// ErrNoLegacyState is returned by Migrate when the state does not carry
	// the legacy activity_logs key.
	ErrNoLegacyState = errors.New("state has no legacy activity_logs key")
)
