//go:build !windows

package screenshot

func newPlatformEncoder() Encoder { return unsupportedEncoder{} }

type unsupportedEncoder struct{}

func (unsupportedEncoder) Capture(req Request, onDone DoneFunc) (Result, error) {
	err := ErrUnsupported
	if onDone != nil {
		onDone(Result{}, err)
	}
	return Result{}, err
}
