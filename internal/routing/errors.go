package routing

import "errors"

var (
	// ErrNotFound is returned when a referenced content item or provider does not exist.
	ErrNotFound = errors.New("not found")

	// ErrNoEffectiveProvider is returned when a content item has no resolvable owning provider.
	ErrNoEffectiveProvider = errors.New("no effective provider")

	// ErrUpstreamUnreachable is returned when a capacity or session query fails or times out.
	ErrUpstreamUnreachable = errors.New("upstream unreachable")

	// ErrCommandFailed is returned when the session registry rejects a command.
	ErrCommandFailed = errors.New("command failed")
)
