//go:build !windows

package recorder

type unsupportedRecorder struct{}

func newPlatformRecorder() VideoRecorder { return unsupportedRecorder{} }

func (unsupportedRecorder) Start(Config) error { return ErrUnsupported }
func (unsupportedRecorder) PostFrame([]byte, int, int, int) {}
func (unsupportedRecorder) Stop() (Result, error) { return Result{}, ErrUnsupported }
func (unsupportedRecorder) State() State { return StateIdle }
