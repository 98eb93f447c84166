// Package fanout shares one capture.Session across multiple consumers
// (overlay, preview, recorder, replay buffer), routing each frame to every
// attached consumer's own worker so a slow consumer never stalls another.
// It also enforces the rule that recording and instant-replay capture are
// mutually exclusive: both consume the GPU-adjacent staging texture path
// and the spec treats them as one exclusive "active capture mode".
package fanout

import (
	"fmt"
	"sync"

	"github.com/breeze-rmm/spinningmomo-core/internal/capture"
	"github.com/breeze-rmm/spinningmomo-core/internal/corepkg"
)

// ConsumerID names an attached consumer for Detach/logging purposes.
type ConsumerID string

const (
	ConsumerOverlay   ConsumerID = "overlay"
	ConsumerPreview   ConsumerID = "preview"
	ConsumerRecorder  ConsumerID = "recorder"
	ConsumerReplay    ConsumerID = "replay"
)

// Fanout owns the single capture.Session for a target window and dispatches
// frames to attached consumers, each on its own buffered worker goroutine.
type Fanout struct {
	mu      sync.Mutex
	session capture.Session
	workers map[ConsumerID]*worker

	recordingActive flag
	replayActive    flag
}

// flag is a plain bool wrapped so call sites read as f.recordingActive.v
// under the same mutex as the rest of Fanout's state — no atomic needed
// since every access already holds f.mu.
type flag struct{ v bool }

type worker struct {
	frames chan capture.Frame
	stop   chan struct{}
	done   chan struct{}
}

func newWorker(handler capture.FrameHandler, bufferDepth int) *worker {
	w := &worker{
		frames: make(chan capture.Frame, bufferDepth),
		stop:   make(chan struct{}),
		done:   make(chan struct{}),
	}
	go func() {
		defer close(w.done)
		for {
			select {
			case f := <-w.frames:
				handler(f)
			case <-w.stop:
				return
			}
		}
	}()
	return w
}

func (w *worker) post(f capture.Frame) {
	select {
	case w.frames <- f:
	default:
		// consumer fell behind; drop the frame rather than block the fanout
		// dispatch loop, which every other consumer also depends on.
	}
}

func (w *worker) close() {
	close(w.stop)
	<-w.done
}

// New creates a Fanout bound to a freshly created capture session.
func New(cfg capture.Config) (*Fanout, error) {
	session, err := capture.NewSession(cfg)
	if err != nil {
		return nil, err
	}
	f := &Fanout{session: session, workers: make(map[ConsumerID]*worker)}
	if err := session.Start(f.dispatch); err != nil {
		return nil, err
	}
	return f, nil
}

func (f *Fanout) dispatch(frame capture.Frame) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, w := range f.workers {
		w.post(frame)
	}
}

// Attach registers a consumer's frame handler, running on its own worker
// goroutine with a small frame buffer.
func (f *Fanout) Attach(id ConsumerID, handler capture.FrameHandler) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if existing, ok := f.workers[id]; ok {
		existing.close()
	}
	f.workers[id] = newWorker(handler, 2)
}

// Detach removes a consumer.
func (f *Fanout) Detach(id ConsumerID) {
	f.mu.Lock()
	w, ok := f.workers[id]
	delete(f.workers, id)
	f.mu.Unlock()
	if ok {
		w.close()
	}
}

// ErrFeatureConflict-returning guards: BeginRecording/BeginReplay.

// BeginRecording marks recording active, refusing if instant replay is
// already capturing (the two features share one exclusive capture slot).
func (f *Fanout) BeginRecording() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.replayActive.v {
		return fmt.Errorf("%w: replay buffer capture is active", corepkg.ErrFeatureConflict)
	}
	f.recordingActive.v = true
	return nil
}

// EndRecording clears the recording-active flag.
func (f *Fanout) EndRecording() {
	f.mu.Lock()
	f.recordingActive.v = false
	f.mu.Unlock()
}

// BeginReplay marks the replay buffer active, refusing if video recording
// already owns the capture slot.
func (f *Fanout) BeginReplay() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.recordingActive.v {
		return fmt.Errorf("%w: video recording is active", corepkg.ErrFeatureConflict)
	}
	f.replayActive.v = true
	return nil
}

// EndReplay clears the replay-active flag.
func (f *Fanout) EndReplay() {
	f.mu.Lock()
	f.replayActive.v = false
	f.mu.Unlock()
}

// Session returns the underlying capture session, for callers (e.g. the
// facade) that need its Rect() without going through a consumer attach.
func (f *Fanout) Session() capture.Session { return f.session }

// Close detaches all consumers and stops the underlying capture session.
func (f *Fanout) Close() error {
	f.mu.Lock()
	for id, w := range f.workers {
		w.close()
		delete(f.workers, id)
	}
	f.mu.Unlock()
	return f.session.Stop()
}
