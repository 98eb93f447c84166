package corepkg

import "testing"

func TestEvenFloor(t *testing.T) {
	cases := map[int]int{
		0: 0, 1: 0, 2: 2, 3: 2, 1079: 1078, 1920: 1920, -4: 0,
	}
	for in, want := range cases {
		if got := EvenFloor(in); got != want {
			t.Errorf("EvenFloor(%d) = %d, want %d", in, got, want)
		}
	}
}

func TestRectIntersect(t *testing.T) {
	screen := Rect{0, 0, 1920, 1080}
	target := Rect{-200, -100, 1800, 900}

	got := target.Intersect(screen)
	want := Rect{0, 0, 1800, 900}
	if got != want {
		t.Fatalf("Intersect = %+v, want %+v", got, want)
	}

	disjoint := Rect{2000, 2000, 2100, 2100}
	if got := screen.Intersect(disjoint); !got.Empty() {
		t.Fatalf("expected empty intersection, got %+v", got)
	}
}

func TestRectContains(t *testing.T) {
	screen := Rect{0, 0, 1920, 1080}
	fullyVisible := Rect{100, 100, 500, 500}
	partial := Rect{-10, 0, 500, 500}

	if !screen.Contains(fullyVisible) {
		t.Fatal("expected screen to contain fully visible rect")
	}
	if screen.Contains(partial) {
		t.Fatal("expected screen not to contain partially off-screen rect")
	}
}
