//go:build !windows

package windowctl

type unsupportedController struct{}

func newPlatformController() Controller { return unsupportedController{} }

func (unsupportedController) EnumerateVisibleWindows() ([]Target, error) { return nil, ErrNotFound }
func (unsupportedController) FindByTitle(title string) (Target, error)   { return Target{}, ErrNotFound }
func (unsupportedController) ApplyTransform(handle uintptr, width, height int, activate, lowerTaskbar bool) error {
	return ErrNotFound
}
func (unsupportedController) ResetToScreen(handle uintptr) error { return ErrNotFound }
func (unsupportedController) ToggleBorderless(handle uintptr) (StyleClass, error) {
	return Framed, ErrNotFound
}
