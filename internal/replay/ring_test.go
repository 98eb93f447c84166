package replay

import (
	"testing"
	"time"
)

func TestRingTrimsByAge(t *testing.T) {
	r := newRing(2*time.Second, 0)
	base := time.Unix(0, 0)
	r.append(FrameMeta{Length: 10, Keyframe: true, CapturedAt: base})
	r.append(FrameMeta{Length: 10, Keyframe: true, CapturedAt: base.Add(1 * time.Second)})
	r.append(FrameMeta{Length: 10, Keyframe: true, CapturedAt: base.Add(3 * time.Second)})
	if len(r.entries) != 2 {
		t.Fatalf("expected 2 entries after trim, got %d", len(r.entries))
	}
}

func TestRingTrimsBySize(t *testing.T) {
	r := newRing(0, 25)
	base := time.Unix(0, 0)
	r.append(FrameMeta{Length: 10, Keyframe: true, CapturedAt: base})
	r.append(FrameMeta{Length: 10, Keyframe: true, CapturedAt: base.Add(time.Second)})
	r.append(FrameMeta{Length: 10, Keyframe: true, CapturedAt: base.Add(2 * time.Second)})
	if r.curBytes > 25 {
		t.Fatalf("expected curBytes <= 25, got %d", r.curBytes)
	}
	if len(r.entries) != 2 {
		t.Fatalf("expected 2 entries after size trim, got %d", len(r.entries))
	}
}

func TestRingRecentWindow(t *testing.T) {
	r := newRing(0, 0)
	base := time.Unix(0, 0)
	for i := 0; i < 5; i++ {
		r.append(FrameMeta{Length: 1, Keyframe: true, CapturedAt: base.Add(time.Duration(i) * time.Second)})
	}
	got := r.recent(2 * time.Second)
	if len(got) != 3 {
		t.Fatalf("expected 3 entries in a 2s window over 5x 1s-spaced frames, got %d", len(got))
	}
}

// TestRingTrimKeepsKeyframeBoundary verifies that trim() never cuts between
// a keyframe and the non-keyframe frames that reference it, even when the
// raw age/size cutoff would otherwise land mid-GOP.
func TestRingTrimKeepsKeyframeBoundary(t *testing.T) {
	r := newRing(2*time.Second, 0)
	base := time.Unix(0, 0)
	r.append(FrameMeta{Length: 10, Keyframe: true, CapturedAt: base})
	r.append(FrameMeta{Length: 10, Keyframe: false, CapturedAt: base.Add(1 * time.Second)})
	r.append(FrameMeta{Length: 10, Keyframe: false, CapturedAt: base.Add(2 * time.Second)})
	// Appending this frame ages the t=0 keyframe past maxAge; a naive trim
	// would cut it, leaving the t=1s/t=2s delta frames with no reference
	// frame to decode against.
	r.append(FrameMeta{Length: 10, Keyframe: false, CapturedAt: base.Add(3 * time.Second)})
	if len(r.entries) != 4 {
		t.Fatalf("expected trim to retain the keyframe and every frame after it, got %d entries", len(r.entries))
	}
	if !r.entries[0].Keyframe {
		t.Fatal("expected oldest retained entry to be a keyframe")
	}
}

// TestRingRecentStartsAtKeyframe verifies that recent() walks its computed
// window start back to the nearest preceding keyframe, so the first frame
// returned is always independently decodable.
func TestRingRecentStartsAtKeyframe(t *testing.T) {
	r := newRing(0, 0)
	base := time.Unix(0, 0)
	r.append(FrameMeta{Length: 1, Keyframe: true, CapturedAt: base})
	r.append(FrameMeta{Length: 1, Keyframe: false, CapturedAt: base.Add(1 * time.Second)})
	r.append(FrameMeta{Length: 1, Keyframe: false, CapturedAt: base.Add(2 * time.Second)})
	r.append(FrameMeta{Length: 1, Keyframe: false, CapturedAt: base.Add(3 * time.Second)})
	r.append(FrameMeta{Length: 1, Keyframe: false, CapturedAt: base.Add(4 * time.Second)})

	// A 1.5s window from the newest frame (t=4s) puts the raw cutoff at
	// t=2.5s, landing on the non-keyframe entry at t=3s with no keyframe of
	// its own between it and the cutoff. recent() must walk all the way
	// back to the t=0 keyframe rather than returning a non-keyframe head.
	got := r.recent(1500 * time.Millisecond)
	if len(got) == 0 {
		t.Fatal("expected non-empty window")
	}
	if !got[0].Keyframe {
		t.Fatalf("expected first returned frame to be a keyframe, got %+v", got[0])
	}
	if !got[0].CapturedAt.Equal(base) {
		t.Fatalf("expected walkback to the t=0 keyframe, got %v", got[0].CapturedAt)
	}
}

func TestRingEmpty(t *testing.T) {
	r := newRing(time.Second, 0)
	if !r.empty() {
		t.Fatal("new ring should be empty")
	}
	if got := r.recent(time.Second); got != nil {
		t.Fatalf("recent() on empty ring should be nil, got %v", got)
	}
}
