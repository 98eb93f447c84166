//go:build !windows

package recorder

type unsupportedFrameEncoder struct{}

func newPlatformFrameEncoder(cfg Config) FrameEncoder { return unsupportedFrameEncoder{} }

func (unsupportedFrameEncoder) Encode([]byte, int, int, int) ([]byte, bool, error) {
	return nil, false, ErrUnsupported
}
func (unsupportedFrameEncoder) Close() {}
