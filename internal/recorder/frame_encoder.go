package recorder

// FrameEncoder is the stand-alone encode step VideoRecorder's gap-fill loop
// drives internally, exported so other packages (replay) that need raw
// H.264/H.265 encoding without the rest of the state machine can reuse it.
// Encode reports whether the returned data starts a new keyframe/IDR, so
// callers that retain a rolling window of encoded data (replay) know which
// entries are safe cut points.
type FrameEncoder interface {
	Encode(pixelsBGRA []byte, width, height, stride int) (data []byte, keyframe bool, err error)
	Close()
}

// NewFrameEncoder returns a platform FrameEncoder configured per cfg.
func NewFrameEncoder(cfg Config) FrameEncoder { return newPlatformFrameEncoder(cfg) }
