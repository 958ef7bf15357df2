package cli

import (
	"errors"

	"github.com/duailibe/monday-source/internal/monday"
)

func mapErrorToExitCode(err error) int {
	if err == nil {
		return 0
	}
	if errors.Is(err, monday.ErrUnauthorized) {
		return 3
	}
	if errors.Is(err, monday.ErrNotFound) || errors.Is(err, monday.ErrUnknownStream) {
		return 4
	}
	if errors.Is(err, monday.ErrRateLimited) {
		return 5
	}
	if errors.Is(err, monday.ErrInvalidConfig) {
		return 6
	}
	return 1
}
