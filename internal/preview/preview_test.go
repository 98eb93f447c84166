package preview

import (
	"testing"

	"github.com/breeze-rmm/spinningmomo-core/internal/corepkg"
)

func TestGeometryZeroViewportIsEmpty(t *testing.T) {
	var g Geometry
	if !g.Viewport.Empty() {
		t.Fatal("zero-value viewport rect should be empty")
	}
	_ = corepkg.Rect{}
}
