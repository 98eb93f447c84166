// Package corepkg holds error types and small helpers shared by every
// package in the capture/compose/persist pipeline.
package corepkg

import "errors"

// Sentinel error kinds. Call sites wrap these with fmt.Errorf("%w: ...", Err...)
// so callers can branch with errors.Is rather than string matching.
var (
	// ErrPrecondition covers target-not-found, target-minimized, and
	// capture-unsupported-on-this-host situations.
	ErrPrecondition = errors.New("precondition unmet")

	// ErrResourceCreate covers device, swap chain, encoder, or frame pool
	// creation refusals.
	ErrResourceCreate = errors.New("resource creation failed")

	// ErrInvalidArgument covers non-positive dimensions, undersized ring
	// buffer limits, and malformed motion-photo inputs.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrTransientIO covers disk write failures that must not kill the
	// capture pipeline.
	ErrTransientIO = errors.New("transient I/O failure")

	// ErrCompositorRefused covers capture-session start failures due to
	// permission or no-foreground-desktop conditions.
	ErrCompositorRefused = errors.New("compositor refused")

	// ErrFeatureConflict covers mutually exclusive feature activation,
	// e.g. starting recording while the replay buffer is active.
	ErrFeatureConflict = errors.New("feature conflict")
)

// Is reports whether err wraps target anywhere in its chain; a thin
// re-export so call sites need only import corepkg.
func Is(err, target error) bool { return errors.Is(err, target) }
