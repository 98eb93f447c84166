//go:build !windows

package overlay

import "github.com/breeze-rmm/spinningmomo-core/internal/capture"

type unsupportedView struct{}

func newPlatformView() View { return unsupportedView{} }

func (unsupportedView) Show(capture.Session, Geometry) error { return ErrUnsupported }
func (unsupportedView) Hide() error                           { return nil }
func (unsupportedView) Freeze()                               {}
func (unsupportedView) Unfreeze()                              {}
func (unsupportedView) SetLetterbox(bool)                      {}
func (unsupportedView) SetMouseFollowPan(bool)                 {}
