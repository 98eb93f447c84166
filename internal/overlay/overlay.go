// Package overlay renders a full-screen, click-through view of a capture
// session's frames so a player can see "beyond the screen" content that the
// target window's actual on-screen rectangle can't show.
package overlay

import (
	"fmt"

	"github.com/breeze-rmm/spinningmomo-core/internal/capture"
	"github.com/breeze-rmm/spinningmomo-core/internal/corepkg"
)

// Geometry is the overlay's current placement: the target's source
// rectangle, and whether the frame is centered on the monitor (letterbox)
// or placed at its top-left corner. Frames are shown at their captured
// size in either mode.
type Geometry struct {
	Source    corepkg.Rect
	Letterbox bool
}

// View is a full-screen layered window that mirrors a capture session.
// Consumers never touch Win32 directly; they drive View through this
// interface.
type View interface {
	// Show creates (or re-shows) the overlay window and starts consuming
	// frames from session.
	Show(session capture.Session, geom Geometry) error
	// Hide tears down the overlay window and detaches from its session.
	Hide() error
	// Freeze stops advancing the displayed frame (used during a target
	// window resize, so the overlay doesn't show torn in-between frames).
	Freeze()
	// Unfreeze resumes advancing the displayed frame.
	Unfreeze()
	// SetLetterbox toggles centered (letterbox) vs top-left presentation.
	SetLetterbox(enabled bool)
	// SetMouseFollowPan installs or removes a low-level mouse hook. The
	// hook observes the cursor; the displayed frame does not pan with it.
	SetMouseFollowPan(enabled bool)
}

// ErrUnsupported is returned on platforms without a window-compositing backend.
var ErrUnsupported = fmt.Errorf("%w: overlay rendering unsupported on this platform", corepkg.ErrPrecondition)

// New returns the platform View.
func New() View { return newPlatformView() }
