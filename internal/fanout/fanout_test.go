package fanout

import (
	"errors"
	"testing"
	"time"

	"github.com/breeze-rmm/spinningmomo-core/internal/capture"
	"github.com/breeze-rmm/spinningmomo-core/internal/corepkg"
)

type fakeSession struct {
	handler capture.FrameHandler
}

func (s *fakeSession) Start(h capture.FrameHandler) error { s.handler = h; return nil }
func (s *fakeSession) Stop() error                        { return nil }
func (s *fakeSession) Rect() corepkg.Rect                  { return corepkg.Rect{} }

func newTestFanout() *Fanout {
	session := &fakeSession{}
	f := &Fanout{session: session, workers: make(map[ConsumerID]*worker)}
	session.handler = f.dispatch
	return f
}

func TestRecordingAndReplayAreMutuallyExclusive(t *testing.T) {
	f := newTestFanout()
	if err := f.BeginRecording(); err != nil {
		t.Fatalf("BeginRecording: %v", err)
	}
	if err := f.BeginReplay(); !errors.Is(err, corepkg.ErrFeatureConflict) {
		t.Fatalf("expected ErrFeatureConflict, got %v", err)
	}
	f.EndRecording()
	if err := f.BeginReplay(); err != nil {
		t.Fatalf("BeginReplay after EndRecording: %v", err)
	}
}

func TestAttachDetachRoutesFrames(t *testing.T) {
	f := newTestFanout()
	received := make(chan capture.Frame, 1)
	f.Attach(ConsumerPreview, func(fr capture.Frame) { received <- fr })
	f.dispatch(capture.Frame{Index: 7})
	select {
	case fr := <-received:
		if fr.Index != 7 {
			t.Fatalf("got frame index %d, want 7", fr.Index)
		}
	case <-time.After(time.Second):
		t.Fatal("expected frame to be delivered to attached consumer")
	}
	f.Detach(ConsumerPreview)
}
