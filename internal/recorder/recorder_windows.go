//go:build windows

package recorder

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"syscall"
	"time"
	"unsafe"

	"github.com/breeze-rmm/spinningmomo-core/internal/corepkg"
	"github.com/breeze-rmm/spinningmomo-core/internal/logging"
	"github.com/breeze-rmm/spinningmomo-core/internal/wincom"
)

var log = logging.L("recorder")

// IMFSinkWriter vtable indices.
const (
	vtblSinkAddStream       = 3
	vtblSinkSetInputMediaType = 4
	vtblSinkBeginWriting    = 5
	vtblSinkWriteSample     = 6
	vtblSinkFinalize        = 9
)

type platformRecorder struct {
	mu      sync.Mutex
	state   State
	cfg     Config
	enc     *mftEncoder
	sink    uintptr
	stream  uint32
	started time.Time

	lastPixels        []byte
	lastWidth, lastHeight, lastStride int
	frames            uint64
	ticker            *time.Ticker
	stopCh            chan struct{}
	doneCh            chan struct{}
	outputPath        string
}

func newPlatformRecorder() VideoRecorder { return &platformRecorder{state: StateIdle} }

func (r *platformRecorder) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

func (r *platformRecorder) Start(cfg Config) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.state != StateIdle {
		return fmt.Errorf("%w: recorder is %s", ErrWrongState, r.state)
	}
	if cfg.FPS <= 0 {
		cfg.FPS = 30
	}

	if err := os.MkdirAll(cfg.OutputDir, 0o755); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}
	r.outputPath = filepath.Join(cfg.OutputDir, fmt.Sprintf("SpinningMomo_%s.mp4", time.Now().Format("20060102_150405")))

	r.cfg = cfg
	r.enc = newMFTEncoder(cfg)
	r.frames = 0
	r.started = time.Now()
	r.state = StateRecording
	r.stopCh = make(chan struct{})
	r.doneCh = make(chan struct{})
	r.ticker = time.NewTicker(time.Second / time.Duration(cfg.FPS))

	go r.gapFillLoop()
	return nil
}

// gapFillLoop re-encodes the last posted frame at every scheduled
// presentation time, so a source window that stops producing new content
// still yields an output stream at a constant frame rate rather than a
// variable one that players handle inconsistently.
func (r *platformRecorder) gapFillLoop() {
	defer close(r.doneCh)
	for {
		select {
		case <-r.stopCh:
			return
		case <-r.ticker.C:
			r.encodeTick()
		}
	}
}

func (r *platformRecorder) encodeTick() {
	r.mu.Lock()
	pixels, w, h, stride := r.lastPixels, r.lastWidth, r.lastHeight, r.lastStride
	enc := r.enc
	r.mu.Unlock()
	if pixels == nil || enc == nil {
		return
	}

	if !enc.inited {
		if err := enc.initialize(w, h); err != nil {
			log.Warn("encoder init failed", "error", err)
			return
		}
		if err := r.initSink(w, h); err != nil {
			log.Warn("sink writer init failed", "error", err)
			return
		}
	}

	nv12 := bgraToNV12(pixels, w, h, stride)
	nal, _, err := enc.encode(nv12)
	putNV12Buffer(nv12)
	if err != nil {
		log.Warn("encode tick failed", "error", err)
		return
	}
	if len(nal) == 0 {
		return
	}
	if err := r.writeSample(nal); err != nil {
		log.Warn("write sample failed", "error", err)
		return
	}
	r.mu.Lock()
	r.frames++
	r.mu.Unlock()
}

func (r *platformRecorder) PostFrame(pixels []byte, width, height, stride int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.state != StateRecording {
		return
	}
	buf := make([]byte, len(pixels))
	copy(buf, pixels)
	r.lastPixels, r.lastWidth, r.lastHeight, r.lastStride = buf, width, height, stride
}

func (r *platformRecorder) initSink(width, height int) error {
	pathPtr, err := syscall.UTF16PtrFromString(r.outputPath)
	if err != nil {
		return err
	}
	var sink uintptr
	if hr, _, _ := procMFCreateSinkWriterFromURL.Call(
		uintptr(unsafe.Pointer(pathPtr)), 0, 0, uintptr(unsafe.Pointer(&sink)),
	); int32(hr) < 0 {
		return fmt.Errorf("MFCreateSinkWriterFromURL: 0x%08X", uint32(hr))
	}

	var outType uintptr
	procMFCreateMediaType.Call(uintptr(unsafe.Pointer(&outType)))
	defer wincom.Release(outType)
	fourCC := uint32(mfVideoFormatH264)
	if r.cfg.Codec == CodecH265 {
		fourCC = mfVideoFormatHEVC
	}
	setFrameAttributes(outType, width, height, fourCC, r.cfg.BitrateKbps, r.cfg.FPS)

	var streamIdx uint32
	if _, err := wincom.Call(sink, vtblSinkAddStream, outType, uintptr(unsafe.Pointer(&streamIdx))); err != nil {
		wincom.Release(sink)
		return fmt.Errorf("AddStream: %w", err)
	}
	if _, err := wincom.Call(sink, vtblSinkSetInputMediaType, uintptr(streamIdx), outType, 0); err != nil {
		wincom.Release(sink)
		return fmt.Errorf("SetInputMediaType: %w", err)
	}
	if _, err := wincom.Call(sink, vtblSinkBeginWriting); err != nil {
		wincom.Release(sink)
		return fmt.Errorf("BeginWriting: %w", err)
	}
	r.sink = sink
	r.stream = streamIdx
	return nil
}

func (r *platformRecorder) writeSample(nal []byte) error {
	var buffer uintptr
	if hr, _, _ := procMFCreateMemoryBuffer.Call(uintptr(uint32(len(nal))), uintptr(unsafe.Pointer(&buffer))); int32(hr) < 0 {
		return fmt.Errorf("MFCreateMemoryBuffer: 0x%08X", uint32(hr))
	}
	var data uintptr
	wincom.Call(buffer, vtblBufLock, uintptr(unsafe.Pointer(&data)), 0, 0)
	copy(unsafe.Slice((*byte)(unsafe.Pointer(data)), len(nal)), nal)
	wincom.Call(buffer, vtblBufUnlock)
	wincom.Call(buffer, vtblBufSetCurrentLength, uintptr(uint32(len(nal))))

	var sample uintptr
	procMFCreateSample.Call(uintptr(unsafe.Pointer(&sample)))
	wincom.Call(sample, vtblAddBuffer, buffer)
	wincom.Release(buffer)

	fps := r.cfg.FPS
	duration := int64(10_000_000 / fps)
	// sampleTime is derived from wall time elapsed since recording started,
	// not from a count of successfully written samples: a single dropped
	// tick (encoder not ready, encode failure, write failure) must not
	// permanently desync every later sample's presentation time from the
	// real-time signal it was captured from.
	sampleTime := time.Since(r.started).Nanoseconds() / 100
	wincom.Call(sample, vtblSetSampleTime, uintptr(sampleTime))
	wincom.Call(sample, vtblSetSampleDuration, uintptr(duration))

	_, err := wincom.Call(r.sink, vtblSinkWriteSample, uintptr(r.stream), sample)
	wincom.Release(sample)
	return err
}

func (r *platformRecorder) Stop() (Result, error) {
	r.mu.Lock()
	if r.state != StateRecording {
		r.mu.Unlock()
		return Result{}, fmt.Errorf("%w: recorder is %s", ErrWrongState, r.state)
	}
	r.state = StateStopping
	r.mu.Unlock()

	r.ticker.Stop()
	close(r.stopCh)
	<-r.doneCh

	r.mu.Lock()
	defer r.mu.Unlock()

	var finalizeErr error
	if r.sink != 0 {
		if _, err := wincom.Call(r.sink, vtblSinkFinalize); err != nil {
			finalizeErr = fmt.Errorf("Finalize: %w", err)
		}
		wincom.Release(r.sink)
		r.sink = 0
	}
	if r.enc != nil {
		r.enc.close()
	}

	result := Result{
		Path:       r.outputPath,
		Frames:     r.frames,
		DurationMs: time.Since(r.started).Milliseconds(),
	}
	r.state = StateIdle
	if finalizeErr != nil {
		return result, fmt.Errorf("%w: %v", corepkg.ErrResourceCreate, finalizeErr)
	}
	log.Info("recording finalized", "path", result.Path, "frames", result.Frames)
	return result, nil
}
