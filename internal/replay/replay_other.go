//go:build !windows

package replay

import "time"

type unsupportedBuffer struct{}

func newPlatformBuffer() Buffer { return unsupportedBuffer{} }

func (unsupportedBuffer) Start(Config) error             { return ErrUnsupported }
func (unsupportedBuffer) PostFrame([]byte, int, int, int) {}
func (unsupportedBuffer) Stop() error                     { return nil }
func (unsupportedBuffer) SaveReplay(string, time.Duration) (string, error) {
	return "", ErrUnsupported
}
func (unsupportedBuffer) CreateMotionPhoto(string, MotionPhotoParams) (string, error) {
	return "", ErrUnsupported
}
