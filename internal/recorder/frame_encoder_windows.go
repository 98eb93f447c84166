//go:build windows

package recorder

type windowsFrameEncoder struct {
	enc *mftEncoder
}

func newPlatformFrameEncoder(cfg Config) FrameEncoder {
	return &windowsFrameEncoder{enc: newMFTEncoder(cfg)}
}

func (e *windowsFrameEncoder) Encode(pixels []byte, width, height, stride int) ([]byte, bool, error) {
	if !e.enc.inited {
		if err := e.enc.initialize(width, height); err != nil {
			return nil, false, err
		}
	}
	nv12 := bgraToNV12(pixels, width, height, stride)
	out, keyframe, err := e.enc.encode(nv12)
	putNV12Buffer(nv12)
	return out, keyframe, err
}

func (e *windowsFrameEncoder) Close() { e.enc.close() }
