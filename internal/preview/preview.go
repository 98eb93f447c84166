// Package preview shows a small, DPI-aware window mirroring the capture
// session at low cost, with a viewport-indicator overlay showing which
// portion of the captured content the full-screen overlay is currently
// displaying.
package preview

import (
	"fmt"

	"github.com/breeze-rmm/spinningmomo-core/internal/capture"
	"github.com/breeze-rmm/spinningmomo-core/internal/corepkg"
)

// Geometry is the preview window's current placement and the viewport
// rectangle (in source-frame coordinates) it should outline.
type Geometry struct {
	WindowRect corepkg.Rect
	Viewport   corepkg.Rect
}

// View is a small preview window.
type View interface {
	Show(session capture.Session, geom Geometry) error
	Hide() error
	// SetViewport updates only the indicator rectangle without restarting
	// capture consumption.
	SetViewport(viewport corepkg.Rect)
	// ResourceVersion returns a token that increments every time a
	// WM_DPICHANGED forces render resources (fonts, scaled bitmaps) to be
	// rebuilt, mirroring the font-cache invalidation idiom of a DPI-aware
	// renderer.
	ResourceVersion() uint64
}

// ErrUnsupported is returned on platforms without a window-compositing backend.
var ErrUnsupported = fmt.Errorf("%w: preview rendering unsupported on this platform", corepkg.ErrPrecondition)

// New returns the platform View.
func New() View { return newPlatformView() }
