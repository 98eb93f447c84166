package replay

import "time"

// ring tracks FrameMeta entries for frames already appended to buffer.dat,
// trimming by both age and total size so callers never need to re-scan the
// file to know what's still live.
type ring struct {
	entries  []FrameMeta
	maxAge   time.Duration
	maxBytes int64
	curBytes int64
}

func newRing(maxAge time.Duration, maxBytes int64) *ring {
	return &ring{maxAge: maxAge, maxBytes: maxBytes}
}

// append records a newly written frame and trims anything that's fallen
// out of the retention window or pushed the ring over its byte budget.
func (r *ring) append(meta FrameMeta) {
	r.entries = append(r.entries, meta)
	r.curBytes += meta.Length
	r.trim(meta.CapturedAt)
}

func (r *ring) trim(now time.Time) {
	i := 0
	for i < len(r.entries) {
		tooOld := r.maxAge > 0 && now.Sub(r.entries[i].CapturedAt) > r.maxAge
		tooBig := r.maxBytes > 0 && r.curBytes > r.maxBytes
		if !tooOld && !tooBig {
			break
		}
		r.curBytes -= r.entries[i].Length
		i++
	}
	// Entries between a keyframe and the next one decode only by reference
	// to it, so cutting the ring there would leave the retained frames
	// undecodable. Walk the cut point back to the nearest preceding
	// keyframe instead, even if that means briefly exceeding maxAge or
	// maxBytes.
	for i > 0 && i < len(r.entries) && !r.entries[i].Keyframe {
		i--
		r.curBytes += r.entries[i].Length
	}
	r.entries = r.entries[i:]
}

// recent returns the entries captured within window of the newest frame,
// walked back to the nearest preceding keyframe so the first entry returned
// is always independently decodable.
func (r *ring) recent(window time.Duration) []FrameMeta {
	if len(r.entries) == 0 {
		return nil
	}
	if window <= 0 {
		return append([]FrameMeta(nil), r.entries...)
	}
	cutoff := r.entries[len(r.entries)-1].CapturedAt.Add(-window)
	start := 0
	for start < len(r.entries) && r.entries[start].CapturedAt.Before(cutoff) {
		start++
	}
	for start > 0 && !r.entries[start].Keyframe {
		start--
	}
	return append([]FrameMeta(nil), r.entries[start:]...)
}

func (r *ring) empty() bool { return len(r.entries) == 0 }
