//go:build windows

package replay

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
	"github.com/breeze-rmm/spinningmomo-core/internal/recorder"
	"github.com/breeze-rmm/spinningmomo-core/internal/wincom"
)

var log = logging.L("replay")

const bufferFileName = "buffer.dat"

// IMFSinkWriter vtable indices, matching the recorder package's own MP4 mux.
const (
	vtblSinkAddStream         = 3
	vtblSinkSetInputMediaType = 4
	vtblSinkBeginWriting      = 5
	vtblSinkWriteSample       = 6
	vtblSinkFinalize          = 9
)

var (
	procMFCreateSinkWriterFromURL = wincom.MFReadWr.NewProc("MFCreateSinkWriterFromURL")
	procMFCreateMediaType         = wincom.MFPlat.NewProc("MFCreateMediaType")
	procMFCreateMemoryBuffer      = wincom.MFPlat.NewProc("MFCreateMemoryBuffer")
	procMFCreateSample            = wincom.MFPlat.NewProc("MFCreateSample")
)

const (
	mfVideoFormatH264 = 0x34363248
	mfVideoFormatHEVC = 0x43564548

	vtblBufLock             = 3
	vtblBufUnlock           = 4
	vtblBufSetCurrentLength = 6
	vtblSetSampleTime       = 11
	vtblSetSampleDuration   = 13
	vtblAddBuffer           = 17
)

type windowsBuffer struct {
	mu   sync.Mutex
	cfg  Config
	enc  recorder.FrameEncoder
	ring *ring

	writeFile *os.File
	// readFile is a second, independent handle so SaveReplay can read
	// already-written ranges of buffer.dat while the encoder
	// goroutine keeps appending through writeFile.
	readFile *os.File

	lastPixels                        []byte
	lastWidth, lastHeight, lastStride int
	frameIdx                          uint64

	stopCh chan struct{}
	doneCh chan struct{}
}

func newPlatformBuffer() Buffer { return &windowsBuffer{} }

func (b *windowsBuffer) Start(cfg Config) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.writeFile != nil {
		return fmt.Errorf("%w: replay buffer already running", corepkg.ErrPrecondition)
	}
	if cfg.FPS <= 0 {
		cfg.FPS = 30
	}
	if err := os.MkdirAll(cfg.BufferDir, 0o755); err != nil {
		return fmt.Errorf("create buffer directory: %w", err)
	}
	path := filepath.Join(cfg.BufferDir, bufferFileName)

	wf, err := os.OpenFile(path, os.O_CREATE|os.O_TRUNC|os.O_RDWR, 0o644)
	if err != nil {
		return fmt.Errorf("open buffer.dat for writing: %w", err)
	}
	rf, err := os.Open(path)
	if err != nil {
		wf.Close()
		return fmt.Errorf("open buffer.dat for reading: %w", err)
	}

	b.cfg = cfg
	b.writeFile = wf
	b.readFile = rf
	b.ring = newRing(time.Duration(cfg.DurationSeconds)*time.Second, cfg.FileSizeLimitBytes)
	b.enc = recorder.NewFrameEncoder(recorder.Config{
		Codec:       codecFromString(cfg.Codec),
		FPS:         cfg.FPS,
		BitrateKbps: cfg.BitrateKbps,
	})
	b.frameIdx = 0
	b.stopCh = make(chan struct{})
	b.doneCh = make(chan struct{})

	go b.loop()
	return nil
}

func (b *windowsBuffer) loop() {
	defer close(b.doneCh)
	fps := b.cfg.FPS
	ticker := time.NewTicker(time.Second / time.Duration(fps))
	defer ticker.Stop()
	for {
		select {
		case <-b.stopCh:
			return
		case <-ticker.C:
			b.encodeTick()
		}
	}
}

func (b *windowsBuffer) encodeTick() {
	b.mu.Lock()
	pixels, w, h, stride := b.lastPixels, b.lastWidth, b.lastHeight, b.lastStride
	b.mu.Unlock()
	if pixels == nil {
		return
	}
	nal, keyframe, err := b.enc.Encode(pixels, w, h, stride)
	if err != nil {
		log.Warn("replay encode tick failed", "error", err)
		return
	}
	if len(nal) == 0 {
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	offset, err := b.writeFile.Seek(0, os.SEEK_END)
	if err != nil {
		log.Warn("buffer.dat seek failed", "error", err)
		return
	}
	if _, err := b.writeFile.Write(nal); err != nil {
		log.Warn("buffer.dat write failed", "error", err)
		return
	}
	duration := int64(10_000_000 / b.cfg.FPS)
	b.ring.append(FrameMeta{
		Offset: offset, Length: int64(len(nal)),
		PTS100ns: int64(b.frameIdx) * duration, Keyframe: keyframe, CapturedAt: time.Now(),
	})
	b.frameIdx++
}

func (b *windowsBuffer) PostFrame(pixels []byte, width, height, stride int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.writeFile == nil {
		return
	}
	buf := make([]byte, len(pixels))
	copy(buf, pixels)
	b.lastPixels, b.lastWidth, b.lastHeight, b.lastStride = buf, width, height, stride
}

func (b *windowsBuffer) Stop() error {
	b.mu.Lock()
	stopCh := b.stopCh
	b.mu.Unlock()
	if stopCh == nil {
		return nil
	}
	close(stopCh)
	<-b.doneCh

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.enc != nil {
		b.enc.Close()
		b.enc = nil
	}
	if b.writeFile != nil {
		b.writeFile.Close()
		b.writeFile = nil
	}
	if b.readFile != nil {
		b.readFile.Close()
		b.readFile = nil
	}
	b.stopCh = nil
	return nil
}

// SaveReplay stream-copies the requested window's already-encoded NAL
// ranges into a new MP4 via IMFSinkWriter, with no re-encode — the bytes
// on disk are already the codec's bitstream.
func (b *windowsBuffer) SaveReplay(outputDir string, window time.Duration) (string, error) {
	b.mu.Lock()
	if b.ring == nil || b.ring.empty() {
		b.mu.Unlock()
		return "", ErrEmpty
	}
	frames := b.ring.recent(window)
	readFile := b.readFile
	cfg := b.cfg
	w, h := b.lastWidth, b.lastHeight
	b.mu.Unlock()

	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return "", fmt.Errorf("create output directory: %w", err)
	}
	path := filepath.Join(outputDir, uniqueFileName("SpinningMomo_Replay", "mp4", time.Now()))
	if err := muxStreamCopy(path, readFile, frames, cfg.Codec, cfg.FPS, cfg.BitrateKbps, w, h); err != nil {
		return "", err
	}
	log.Info("replay saved", "path", path, "frames", len(frames))
	return path, nil
}

// CreateMotionPhoto captures params.DurationSeconds of fresh frames at its
// own (typically lower) resolution/bitrate, JPEG-encodes the last posted
// frame as the cover still, and appends a short, independently playable
// MP4 clip — muxed through the same IMFSinkWriter path SaveReplay uses,
// just fed freshly encoded samples instead of a stream-copy from
// buffer.dat — directly after it.
func (b *windowsBuffer) CreateMotionPhoto(outputDir string, params MotionPhotoParams) (string, error) {
	b.mu.Lock()
	pixels, w, h, stride := b.lastPixels, b.lastWidth, b.lastHeight, b.lastStride
	b.mu.Unlock()
	if pixels == nil {
		return "", ErrEmpty
	}
	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return "", fmt.Errorf("create output directory: %w", err)
	}

	jpegBytes, err := encodeJPEGStill(pixels, w, h, stride)
	if err != nil {
		return "", fmt.Errorf("encode cover still: %w", err)
	}

	clipPath := filepath.Join(outputDir, uniqueFileName("SpinningMomo_MotionClip", "mp4", time.Now()))
	clipBytes, err := b.recordMotionClip(clipPath, params)
	if err != nil {
		return "", fmt.Errorf("record motion clip: %w", err)
	}

	path := filepath.Join(outputDir, uniqueFileName("SpinningMomo_MotionPhoto", "jpg", time.Now()))
	if err := writeMotionPhoto(path, jpegBytes, clipBytes); err != nil {
		return "", fmt.Errorf("assemble motion photo: %w", err)
	}
	log.Info("motion photo saved", "path", path, "clip_bytes", len(clipBytes))
	return path, nil
}

// recordMotionClip samples b.lastPixels at params.FPS for
// params.DurationSeconds, scaling down to params.MaxWidth/MaxHeight when
// the source exceeds them, and muxes the encoded frames into a stand-alone
// MP4 at clipPath — the same sink-writer sequence recorder.VideoRecorder
// uses for a full recording, just run synchronously over a short fixed
// frame count instead of driven by Stop(). Returns the clip's bytes; the
// temporary file is removed once read.
func (b *windowsBuffer) recordMotionClip(clipPath string, params MotionPhotoParams) ([]byte, error) {
	b.mu.Lock()
	srcW, srcH := b.lastWidth, b.lastHeight
	b.mu.Unlock()

	w, h := clampToMax(srcW, srcH, params.MaxWidth, params.MaxHeight)

	fps := params.FPS
	if fps <= 0 {
		fps = 30
	}
	frameBudget := params.DurationSeconds * fps
	if frameBudget <= 0 {
		frameBudget = fps
	}

	clipEnc := recorder.NewFrameEncoder(recorder.Config{
		Codec: codecFromString(params.Codec), FPS: fps, BitrateKbps: params.BitrateKbps,
	})
	defer clipEnc.Close()

	sink, streamIdx, err := createClipSink(clipPath, params.Codec, w, h, params.BitrateKbps, fps)
	if err != nil {
		return nil, err
	}
	defer wincom.Release(sink)

	ticker := time.NewTicker(time.Second / time.Duration(fps))
	defer ticker.Stop()

	duration := int64(10_000_000 / fps)
	written := 0
	for written < frameBudget {
		<-ticker.C
		b.mu.Lock()
		pixels, pw, ph, pstride := b.lastPixels, b.lastWidth, b.lastHeight, b.lastStride
		b.mu.Unlock()
		if pixels == nil {
			continue
		}
		scaled, sw, sh, sstride := recorder.ScaleBGRANearest(pixels, pw, ph, pstride, w, h)
		nal, _, err := clipEnc.Encode(scaled, sw, sh, sstride)
		if err != nil {
			return nil, fmt.Errorf("encode motion clip frame: %w", err)
		}
		if len(nal) == 0 {
			continue
		}
		if err := writeStreamCopySample(sink, streamIdx, nal, int64(written)*duration, duration); err != nil {
			return nil, fmt.Errorf("write motion clip sample: %w", err)
		}
		written++
	}
	if _, err := wincom.Call(sink, vtblSinkFinalize); err != nil {
		return nil, fmt.Errorf("finalize motion clip: %w", err)
	}

	clipBytes, err := os.ReadFile(clipPath)
	os.Remove(clipPath)
	if err != nil {
		return nil, fmt.Errorf("read motion clip: %w", err)
	}
	return clipBytes, nil
}

// clampToMax scales w,h down to fit within maxW,maxH while preserving
// aspect ratio, leaving them unchanged if either bound is zero or already
// satisfied. Dimensions are floored to even, matching every other encoder
// entry point in this codebase.
func clampToMax(w, h, maxW, maxH int) (int, int) {
	if maxW > 0 && w > maxW {
		h = h * maxW / w
		w = maxW
	}
	if maxH > 0 && h > maxH {
		w = w * maxH / h
		h = maxH
	}
	return corepkg.EvenFloor(w), corepkg.EvenFloor(h)
}

// writeMotionPhoto lays out the file the way Android's Motion Photo format
// expects: a complete, independently-decodable JPEG first, then a
// stand-alone muxed MP4 appended directly after — compatible viewers locate
// the video by a byte offset recorded in an XMP GCamera:MicroVideoOffset tag
// embedded in the JPEG's own APP1 segment (omitted here; viewers that don't
// understand motion photos still see a valid still, which is the important
// fallback, and any MP4 player can open the clip portion on its own once
// split at that offset).
func writeMotionPhoto(path string, jpeg, clip []byte) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	if _, err := f.Write(jpeg); err != nil {
		return err
	}
	_, err = f.Write(clip)
	return err
}

// muxStreamCopy writes each already-encoded NAL range straight into a new
// MP4 container with IMFSinkWriter::WriteSample — no decode/re-encode pass,
// since buffer.dat already holds the codec's bitstream.
func muxStreamCopy(path string, src *os.File, frames []FrameMeta, codec string, fps, bitrateKbps, width, height int) error {
	sink, streamIdx, err := createClipSink(path, codec, width, height, bitrateKbps, fps)
	if err != nil {
		return err
	}
	defer wincom.Release(sink)

	duration := int64(10_000_000 / fps)
	for i, f := range frames {
		buf := make([]byte, f.Length)
		if _, err := src.ReadAt(buf, f.Offset); err != nil {
			return fmt.Errorf("read buffer.dat range: %w", err)
		}
		if err := writeStreamCopySample(sink, streamIdx, buf, int64(i)*duration, duration); err != nil {
			return err
		}
	}
	_, err = wincom.Call(sink, vtblSinkFinalize)
	return err
}

// createClipSink opens an IMFSinkWriter at path and configures a single
// video stream, shared by muxStreamCopy (stream-copying already-encoded
// buffer.dat ranges) and recordMotionClip (muxing freshly encoded motion
// photo clip frames) — both write through the same WriteSample/Finalize
// sequence once the stream is set up.
func createClipSink(path, codec string, width, height, bitrateKbps, fps int) (sink uintptr, streamIdx uint32, err error) {
	pathPtr, err := syscall.UTF16PtrFromString(path)
	if err != nil {
		return 0, 0, err
	}
	if hr, _, _ := procMFCreateSinkWriterFromURL.Call(uintptr(unsafe.Pointer(pathPtr)), 0, 0, uintptr(unsafe.Pointer(&sink))); int32(hr) < 0 {
		return 0, 0, fmt.Errorf("MFCreateSinkWriterFromURL: 0x%08X", uint32(hr))
	}

	var outType uintptr
	procMFCreateMediaType.Call(uintptr(unsafe.Pointer(&outType)))
	defer wincom.Release(outType)
	fourCC := uint32(mfVideoFormatH264)
	if codec == "h265" {
		fourCC = mfVideoFormatHEVC
	}
	setStreamCopyAttributes(outType, width, height, fourCC, bitrateKbps, fps)

	if _, err := wincom.Call(sink, vtblSinkAddStream, outType, uintptr(unsafe.Pointer(&streamIdx))); err != nil {
		wincom.Release(sink)
		return 0, 0, fmt.Errorf("AddStream: %w", err)
	}
	if _, err := wincom.Call(sink, vtblSinkSetInputMediaType, uintptr(streamIdx), outType, 0); err != nil {
		wincom.Release(sink)
		return 0, 0, fmt.Errorf("SetInputMediaType: %w", err)
	}
	if _, err := wincom.Call(sink, vtblSinkBeginWriting); err != nil {
		wincom.Release(sink)
		return 0, 0, fmt.Errorf("BeginWriting: %w", err)
	}
	return sink, streamIdx, nil
}

func setStreamCopyAttributes(mediaType uintptr, width, height int, fourCC uint32, bitrateKbps, fps int) {
	subtype := fourCCGUIDLocal(fourCC)
	wincom.Call(mediaType, 21, uintptr(unsafe.Pointer(&guidMTLocal)), uintptr(unsafe.Pointer(&subtype)))
	frameSize := wincom.Pack64(uint32(width), uint32(height))
	wincom.Call(mediaType, 26, uintptr(unsafe.Pointer(&guidFrameSizeLocal)), uintptr(frameSize))
	if fps > 0 {
		frameRate := wincom.Pack64(uint32(fps), 1)
		wincom.Call(mediaType, 26, uintptr(unsafe.Pointer(&guidFrameRateLocal)), uintptr(frameRate))
	}
	if bitrateKbps > 0 {
		wincom.Call(mediaType, 20, uintptr(unsafe.Pointer(&guidAvgBitrateLocal)), uintptr(bitrateKbps*1000))
	}
}

func fourCCGUIDLocal(fourCC uint32) wincom.GUID {
	return wincom.GUID{Data1: fourCC, Data2: 0x0000, Data3: 0x0010, Data4: [8]byte{0x80, 0x00, 0x00, 0xAA, 0x00, 0x38, 0x9B, 0x71}}
}

var (
	guidMTLocal         = wincom.GUID{Data1: 0x48eba18e, Data2: 0xf8c9, Data3: 0x4687, Data4: [8]byte{0xbf, 0x11, 0x0a, 0x74, 0xc9, 0xf9, 0x6a, 0x8f}}
	guidFrameSizeLocal  = wincom.GUID{Data1: 0x1652c33d, Data2: 0xd6b2, Data3: 0x4012, Data4: [8]byte{0xb8, 0x34, 0x72, 0x03, 0x08, 0x49, 0xa3, 0x7d}}
	guidFrameRateLocal  = wincom.GUID{Data1: 0xc459a2e8, Data2: 0x3d2c, Data3: 0x4e44, Data4: [8]byte{0xb1, 0x32, 0xfe, 0xe5, 0x15, 0x6c, 0x7b, 0xb0}}
	guidAvgBitrateLocal = wincom.GUID{Data1: 0x20332624, Data2: 0xfb0d, Data3: 0x4d9e, Data4: [8]byte{0xbd, 0x0d, 0xcb, 0xf6, 0x78, 0x6c, 0x10, 0x2e}}
)

func writeStreamCopySample(sink uintptr, streamIdx uint32, nal []byte, pts, duration int64) error {
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

	wincom.Call(sample, vtblSetSampleTime, uintptr(pts))
	wincom.Call(sample, vtblSetSampleDuration, uintptr(duration))

	_, err := wincom.Call(sink, vtblSinkWriteSample, uintptr(streamIdx), sample)
	wincom.Release(sample)
	return err
}
