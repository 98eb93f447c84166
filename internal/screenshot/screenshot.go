// Package screenshot takes one-shot captures of a target window and encodes
// them to PNG or JPEG via the Windows Imaging Component.
package screenshot

import (
	"fmt"
	"time"

	"github.com/breeze-rmm/spinningmomo-core/internal/corepkg"
)

// ImageFormat selects the WIC container encoder.
type ImageFormat int

const (
	FormatPNG ImageFormat = iota
	FormatJPEG
)

func (f ImageFormat) extension() string {
	if f == FormatJPEG {
		return "jpg"
	}
	return "png"
}

// Request describes one screenshot capture.
type Request struct {
	TargetHandle uintptr
	Format       ImageFormat
	// JPEGQuality is 0-100. The WIC encoder does not read it; JPEG output
	// uses WIC's default quality.
	JPEGQuality int
	// Directory is where the encoded file is written; an empty string
	// falls back to the executable's own folder (config.Settings applies
	// that fallback before calling here; Encoder treats Directory as
	// already resolved).
	Directory string
}

// Result is the outcome of a successful capture-and-encode.
type Result struct {
	Path          string
	Width, Height int
	TakenAt       time.Time
}

// DoneFunc is invoked once the encode completes or fails.
type DoneFunc func(Result, error)

// Encoder takes a single throwaway capture of a target window, crops it to
// the window's client area, and WIC-encodes it to disk.
type Encoder interface {
	// Capture blocks until the frame is captured and encoded, then invokes
	// onDone (also given the return value, so callers may ignore the
	// callback entirely and just use the return).
	Capture(req Request, onDone DoneFunc) (Result, error)
}

// ErrUnsupported is returned on platforms without a WIC-equivalent encoder.
var ErrUnsupported = fmt.Errorf("%w: screenshot encoding unsupported on this platform", corepkg.ErrPrecondition)

// New returns the platform Encoder.
func New() Encoder { return newPlatformEncoder() }

func timestampedName(format ImageFormat, now time.Time) string {
	return fmt.Sprintf("SpinningMomo_%s.%s", now.Format("20060102_150405"), format.extension())
}
