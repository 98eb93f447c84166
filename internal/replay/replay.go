// Package replay implements the instant-replay ring buffer: captured frames
// are continuously encoded and appended to an on-disk file (buffer.dat), an
// in-memory index drops old frames by age and byte budget, and a window of
// recent frames can be exported either as a stand-alone MP4 ("save replay") or as a motion
// photo (a still JPEG with a short clip appended).
package replay

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/breeze-rmm/spinningmomo-core/internal/corepkg"
	"github.com/breeze-rmm/spinningmomo-core/internal/recorder"
)

// FrameMeta indexes one encoded frame's position inside buffer.dat.
type FrameMeta struct {
	Offset     int64
	Length     int64
	PTS100ns   int64
	Keyframe   bool
	CapturedAt time.Time
}

// Config controls the buffer's capacity and the encoding used to fill it.
type Config struct {
	Codec            string // "h264" or "h265", matches recorder.Codec.String()
	FPS              int
	BitrateKbps      int
	AudioSource      string
	AudioBitrateKbps int
	// DurationSeconds bounds how much history the ring retains; frames
	// older than this relative to the newest frame are trimmed.
	DurationSeconds int
	// FileSizeLimitBytes caps the total size of the frames the index
	// retains, independent of DurationSeconds — whichever bound is hit
	// first wins. buffer.dat itself is only appended to: the space of
	// dropped frames is not reused and the file is not truncated while
	// the buffer runs.
	FileSizeLimitBytes int64
	BufferDir          string
}

// MotionPhotoParams controls the short clip captured into a motion photo,
// independent of the main replay buffer's own duration/resolution.
type MotionPhotoParams struct {
	FPS              int
	BitrateKbps      int
	Codec            string
	AudioSource      string
	AudioBitrateKbps int
	DurationSeconds  int
	MaxWidth         int
	MaxHeight        int
}

// ErrUnsupported is returned on platforms without a stream-copy muxer.
var ErrUnsupported = fmt.Errorf("%w: replay buffer unsupported on this platform", corepkg.ErrPrecondition)

// ErrEmpty is returned by SaveReplay/CreateMotionPhoto when the buffer has
// no frames yet.
var ErrEmpty = fmt.Errorf("%w: replay buffer has no frames", corepkg.ErrPrecondition)

// Buffer is the running instant-replay ring buffer.
type Buffer interface {
	// Start begins continuous background encoding of posted frames into
	// buffer.dat.
	Start(cfg Config) error
	// PostFrame feeds one captured frame for encoding and appending.
	PostFrame(pixels []byte, width, height, stride int)
	// Stop halts encoding and closes buffer.dat without deleting it; the
	// next Start truncates the file and begins a new index.
	Stop() error
	// SaveReplay stream-copies the most recent window of encoded frames
	// into a stand-alone MP4 at outputDir, with no re-encode.
	SaveReplay(outputDir string, window time.Duration) (string, error)
	// CreateMotionPhoto captures a short, independently-encoded clip (per
	// params) and bundles it with a JPEG still into a single motion-photo
	// file.
	CreateMotionPhoto(outputDir string, params MotionPhotoParams) (string, error)
}

// New returns the platform Buffer.
func New() Buffer { return newPlatformBuffer() }

// codecFromString maps the string form stored in Config/MotionPhotoParams to
// a recorder.Codec, defaulting to H.264 for anything unrecognized.
func codecFromString(s string) recorder.Codec {
	if s == "h265" {
		return recorder.CodecH265
	}
	return recorder.CodecH264
}

// uniqueFileName builds a timestamped export name with a short random
// suffix, so two saves requested within the same second (a fast double
// press of the replay hotkey, or a motion photo triggered right after a
// manual save) never collide on disk.
func uniqueFileName(prefix, ext string, now time.Time) string {
	suffix := uuid.New().String()[:8]
	return fmt.Sprintf("%s_%s_%s.%s", prefix, now.Format("20060102_150405"), suffix, ext)
}
