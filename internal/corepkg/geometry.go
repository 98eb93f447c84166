package corepkg

// Point is an integer screen-space coordinate pair.
type Point struct {
	X, Y int32
}

// Rect is an integer screen-space or client-space rectangle, left/top
// inclusive, right/bottom exclusive — matching Win32 RECT semantics
// without depending on golang.org/x/sys/windows from packages that only
// need the shape.
type Rect struct {
	Left, Top, Right, Bottom int32
}

func (r Rect) Width() int32  { return r.Right - r.Left }
func (r Rect) Height() int32 { return r.Bottom - r.Top }

func (r Rect) Empty() bool { return r.Width() <= 0 || r.Height() <= 0 }

// Intersect returns the overlap of r and o, which is Empty() if they
// don't overlap.
func (r Rect) Intersect(o Rect) Rect {
	out := Rect{
		Left:   max32(r.Left, o.Left),
		Top:    max32(r.Top, o.Top),
		Right:  min32(r.Right, o.Right),
		Bottom: min32(r.Bottom, o.Bottom),
	}
	if out.Empty() {
		return Rect{}
	}
	return out
}

// Contains reports whether o lies entirely within r.
func (r Rect) Contains(o Rect) bool {
	return o.Left >= r.Left && o.Top >= r.Top && o.Right <= r.Right && o.Bottom <= r.Bottom
}

func max32(a, b int32) int32 {
	if a > b {
		return a
	}
	return b
}

func min32(a, b int32) int32 {
	if a < b {
		return a
	}
	return b
}

// EvenFloor rounds v down to the nearest even integer, never below 0.
func EvenFloor(v int) int {
	if v < 0 {
		return 0
	}
	return v &^ 1
}
