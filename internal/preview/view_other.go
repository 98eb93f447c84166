//go:build !windows

package preview

import (
	"github.com/breeze-rmm/spinningmomo-core/internal/capture"
	"github.com/breeze-rmm/spinningmomo-core/internal/corepkg"
)

type unsupportedView struct{}

func newPlatformView() View { return unsupportedView{} }

func (unsupportedView) Show(capture.Session, Geometry) error { return ErrUnsupported }
func (unsupportedView) Hide() error                           { return nil }
func (unsupportedView) SetViewport(corepkg.Rect)               {}
func (unsupportedView) ResourceVersion() uint64                { return 0 }
