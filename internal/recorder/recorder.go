// Package recorder drives continuous H.264/H.265 encoding of a capture
// session to an MP4 file, including the "gap fill" technique that keeps the
// output at a constant frame rate even while the source window is idle (no
// new captured content between encoder ticks).
package recorder

import (
	"fmt"

	"github.com/breeze-rmm/spinningmomo-core/internal/corepkg"
)

// Codec selects the encoded video format.
type Codec int

const (
	CodecH264 Codec = iota
	CodecH265
)

func (c Codec) String() string {
	if c == CodecH265 {
		return "h265"
	}
	return "h264"
}

// RateControlMode names an MFT rate-control mode. The encoder does not set
// it, so output uses the MFT's default rate control.
type RateControlMode int

const (
	RateControlCBR RateControlMode = iota
	RateControlVBR
	RateControlQuality
)

// AudioSource names an audio source for a recording. No audio is captured
// or muxed for any value; recordings are video only.
type AudioSource int

const (
	AudioSourceNone AudioSource = iota
	AudioSourceSystem
	AudioSourceMicrophone
)

// Config is the full parameter set for one recording. The MFT encoder reads
// Codec, FPS and BitrateKbps; RateControl, EncoderMode, Quality, QP,
// AudioSource and AudioBitrateKbps are carried but not applied (a hardware
// encoder is always tried first, then a software one).
type Config struct {
	Codec           Codec
	FPS             int
	BitrateKbps     int
	RateControl     RateControlMode
	EncoderMode     string // "hardware", "software", "auto"
	Quality         int    // 0-100, for RateControlQuality
	QP              int    // for constant-QP encoder modes
	AudioSource     AudioSource
	AudioBitrateKbps int
	OutputDir       string
}

// State is VideoRecorder's lifecycle state machine.
type State int

const (
	StateIdle State = iota
	StateRecording
	StateStopping
)

func (s State) String() string {
	switch s {
	case StateRecording:
		return "recording"
	case StateStopping:
		return "stopping"
	default:
		return "idle"
	}
}

// ErrWrongState is returned when an operation doesn't apply to the
// recorder's current State.
var ErrWrongState = fmt.Errorf("%w: invalid recorder state transition", corepkg.ErrPrecondition)

// ErrUnsupported is returned on platforms without an MFT-equivalent encoder.
var ErrUnsupported = fmt.Errorf("%w: video recording unsupported on this platform", corepkg.ErrPrecondition)

// Result is returned once a recording finishes and the MP4 is finalized.
type Result struct {
	Path          string
	Frames        uint64
	DurationMs    int64
}

// VideoRecorder encodes a running capture session to an MP4 file.
type VideoRecorder interface {
	// Start transitions Idle -> Recording, beginning gap-fill-paced
	// encoding of frames the caller posts via PostFrame.
	Start(cfg Config) error
	// PostFrame feeds one captured frame into the encoder. Frames arriving
	// faster than cfg.FPS are dropped; frames arriving slower are covered
	// by gap fill (the last posted frame is re-encoded at the next
	// scheduled presentation time).
	PostFrame(pixels []byte, width, height, stride int)
	// Stop transitions Recording -> Stopping -> Idle, finalizing the MP4
	// and returning its path once muxing completes.
	Stop() (Result, error)
	// State reports the current lifecycle state.
	State() State
}

// New returns the platform VideoRecorder.
func New() VideoRecorder { return newPlatformRecorder() }
