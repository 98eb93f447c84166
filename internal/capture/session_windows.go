//go:build windows

package capture

import (
	"fmt"
	"sync"
	"sync/atomic"
	"syscall"
	"time"
	"unsafe"

	"github.com/breeze-rmm/spinningmomo-core/internal/corepkg"
	"github.com/breeze-rmm/spinningmomo-core/internal/logging"
	"github.com/breeze-rmm/spinningmomo-core/internal/wincom"
)

var log = logging.L("capture")

const (
	d3d11UsageStaging  = 3
	d3d11CPUAccessRead = 0x20000
	dxgiFormatB8G8R8A8 = 87

	dxgiErrWaitTimeout   = 0x887A0027
	dxgiErrAccessLost    = 0x887A0026
	dxgiErrDeviceRemoved = 0x887A0005

	dxgiDeviceGetAdapter       = 7
	dxgiAdapterEnumOutputs     = 7
	dxgiOutput1DuplicateOutput = 22
	dxgiDuplGetDesc            = 7
	dxgiDuplAcquireNextFrame   = 8
	dxgiDuplReleaseFrame       = 14

	d3d11DeviceCreateTexture2D = 5
	d3d11CtxMap                = 14
	d3d11CtxUnmap              = 15
	d3d11CtxCopyResource       = 47

	pollTimeoutMs = 16 // ~60Hz ceiling; AcquireNextFrame returns early on new content.
)

var (
	iidIDXGIDevice     = wincom.GUID{Data1: 0x54ec77fa, Data2: 0x1377, Data3: 0x44e6, Data4: [8]byte{0x8c, 0x32, 0x88, 0xfd, 0x5f, 0x44, 0xc8, 0x4c}}
	iidIDXGIOutput1    = wincom.GUID{Data1: 0x00cddea8, Data2: 0x939b, Data3: 0x4b83, Data4: [8]byte{0xa3, 0x40, 0xa6, 0x85, 0x22, 0x66, 0x66, 0xcc}}
	iidID3D11Texture2D = wincom.GUID{Data1: 0x6f15aaf2, Data2: 0xd208, Data3: 0x4e89, Data4: [8]byte{0x9a, 0xb4, 0x48, 0x95, 0x35, 0xd3, 0x4f, 0x9c}}
)

var (
	procGetWindowRect = wincom.User32.NewProc("GetWindowRect")
	procIsWindow      = wincom.User32.NewProc("IsWindow")
)

type rawRect struct{ Left, Top, Right, Bottom int32 }

type texture2DDesc struct {
	Width, Height, MipLevels, ArraySize, Format        uint32
	SampleCount, SampleQuality, Usage, BindFlags       uint32
	CPUAccessFlags, MiscFlags                          uint32
}

type mappedSubresource struct {
	PData      uintptr
	RowPitch   uint32
	DepthPitch uint32
}

// windowsSession captures the whole primary output via Desktop Duplication
// and crops each frame to the target window's current screen rectangle,
// re-sampling that rectangle every frame so a moving or resizing source
// window stays in view without restarting the duplication pipeline.
type windowsSession struct {
	cfg    Config
	device *sharedDevice

	mu          sync.Mutex
	duplication uintptr
	staging     uintptr
	width       int
	height      int

	running atomic.Bool
	stopCh  chan struct{}
	doneCh  chan struct{}

	lastRect atomic.Value // corepkg.Rect
}

func newPlatformSession(cfg Config) (Session, error) {
	if cfg.TargetHandle == 0 {
		return nil, fmt.Errorf("%w: nil target handle", corepkg.ErrPrecondition)
	}
	dev, err := getSharedDevice()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", corepkg.ErrResourceCreate, err)
	}
	s := &windowsSession{cfg: cfg, device: dev}
	s.lastRect.Store(corepkg.Rect{})
	return s, nil
}

func (s *windowsSession) initDuplication() error {
	var dxgiDevice uintptr
	if _, err := wincom.Call(s.device.device, 0 /* QueryInterface */, uintptr(unsafe.Pointer(&iidIDXGIDevice)), uintptr(unsafe.Pointer(&dxgiDevice))); err != nil {
		return fmt.Errorf("QueryInterface IDXGIDevice: %w", err)
	}
	defer wincom.Release(dxgiDevice)

	var adapter uintptr
	if _, err := wincom.Call(dxgiDevice, dxgiDeviceGetAdapter, uintptr(unsafe.Pointer(&adapter))); err != nil {
		return fmt.Errorf("IDXGIDevice::GetAdapter: %w", err)
	}
	defer wincom.Release(adapter)

	var output uintptr
	if _, err := wincom.Call(adapter, dxgiAdapterEnumOutputs, 0, uintptr(unsafe.Pointer(&output))); err != nil {
		return fmt.Errorf("IDXGIAdapter::EnumOutputs: %w", err)
	}

	var output1 uintptr
	_, err := wincom.Call(output, 0, uintptr(unsafe.Pointer(&iidIDXGIOutput1)), uintptr(unsafe.Pointer(&output1)))
	wincom.Release(output)
	if err != nil {
		return fmt.Errorf("QueryInterface IDXGIOutput1: %w", err)
	}
	defer wincom.Release(output1)

	var duplication uintptr
	if _, err := wincom.Call(output1, dxgiOutput1DuplicateOutput, s.device.device, uintptr(unsafe.Pointer(&duplication))); err != nil {
		return fmt.Errorf("IDXGIOutput1::DuplicateOutput: %w", err)
	}

	var desc struct {
		ModeWidth, ModeHeight uint32
		rest                  [24]byte
	}
	syscall.SyscallN(wincom.VtblFn(duplication, dxgiDuplGetDesc), duplication, uintptr(unsafe.Pointer(&desc)))
	width, height := int(desc.ModeWidth), int(desc.ModeHeight)
	if width <= 0 || height <= 0 {
		wincom.Release(duplication)
		return fmt.Errorf("%w: invalid duplication dimensions", corepkg.ErrResourceCreate)
	}

	stagingDesc := texture2DDesc{
		Width: uint32(width), Height: uint32(height), MipLevels: 1, ArraySize: 1,
		Format: dxgiFormatB8G8R8A8, SampleCount: 1, Usage: d3d11UsageStaging,
		CPUAccessFlags: d3d11CPUAccessRead,
	}
	var staging uintptr
	if _, err := wincom.Call(s.device.device, d3d11DeviceCreateTexture2D, uintptr(unsafe.Pointer(&stagingDesc)), 0, uintptr(unsafe.Pointer(&staging))); err != nil {
		wincom.Release(duplication)
		return fmt.Errorf("CreateTexture2D staging: %w", err)
	}

	s.duplication = duplication
	s.staging = staging
	s.width = width
	s.height = height
	return nil
}

func (s *windowsSession) targetRect() corepkg.Rect {
	var cr rawRect
	wincom.User32.NewProc("GetClientRect").Call(s.cfg.TargetHandle, uintptr(unsafe.Pointer(&cr)))
	var origin struct{ X, Y int32 }
	wincom.User32.NewProc("ClientToScreen").Call(s.cfg.TargetHandle, uintptr(unsafe.Pointer(&origin)))
	return corepkg.Rect{Left: origin.X, Top: origin.Y, Right: origin.X + cr.Right, Bottom: origin.Y + cr.Bottom}
}

func (s *windowsSession) Rect() corepkg.Rect {
	return s.lastRect.Load().(corepkg.Rect)
}

func (s *windowsSession) Start(handler FrameHandler) error {
	if s.running.Swap(true) {
		return fmt.Errorf("%w: session already started", corepkg.ErrPrecondition)
	}
	s.mu.Lock()
	err := s.initDuplication()
	s.mu.Unlock()
	if err != nil {
		s.running.Store(false)
		return err
	}

	s.stopCh = make(chan struct{})
	s.doneCh = make(chan struct{})
	go s.loop(handler)
	return nil
}

func (s *windowsSession) loop(handler FrameHandler) {
	defer close(s.doneCh)
	var index uint64
	for {
		select {
		case <-s.stopCh:
			return
		default:
		}

		present, _, isWindow := procIsWindow.Call(s.cfg.TargetHandle)
		_ = isWindow
		if present == 0 {
			log.Warn("target window no longer exists, stopping capture")
			return
		}

		frame, err := s.acquireFrame()
		if err != nil {
			log.Warn("capture frame acquisition failed", "error", err)
			time.Sleep(200 * time.Millisecond)
			continue
		}
		if frame == nil {
			continue
		}
		index++
		frame.Index = index
		handler(*frame)
	}
}

func (s *windowsSession) acquireFrame() (*Frame, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rect := s.targetRect()
	if rect.Empty() {
		return nil, nil
	}
	s.lastRect.Store(rect)

	var frameInfo [48]byte
	var resource uintptr
	hr, _, _ := syscall.SyscallN(
		wincom.VtblFn(s.duplication, dxgiDuplAcquireNextFrame),
		s.duplication,
		uintptr(pollTimeoutMs),
		uintptr(unsafe.Pointer(&frameInfo[0])),
		uintptr(unsafe.Pointer(&resource)),
	)
	hresult := uint32(hr)
	if hresult == dxgiErrWaitTimeout {
		return nil, nil
	}
	if hresult == dxgiErrAccessLost || hresult == dxgiErrDeviceRemoved {
		s.releaseDuplicationLocked()
		if err := s.initDuplication(); err != nil {
			return nil, fmt.Errorf("reinit after access loss: %w", err)
		}
		return nil, nil
	}
	if int32(hr) < 0 {
		return nil, fmt.Errorf("AcquireNextFrame: 0x%08X", hresult)
	}

	var texture uintptr
	_, err := wincom.Call(resource, 0, uintptr(unsafe.Pointer(&iidID3D11Texture2D)), uintptr(unsafe.Pointer(&texture)))
	wincom.Release(resource)
	if err != nil {
		syscall.SyscallN(wincom.VtblFn(s.duplication, dxgiDuplReleaseFrame), s.duplication)
		return nil, fmt.Errorf("QueryInterface ID3D11Texture2D: %w", err)
	}

	copyHr, _, _ := syscall.SyscallN(wincom.VtblFn(s.device.context, d3d11CtxCopyResource), s.device.context, s.staging, texture)
	wincom.Release(texture)
	if int32(copyHr) < 0 {
		syscall.SyscallN(wincom.VtblFn(s.duplication, dxgiDuplReleaseFrame), s.duplication)
		return nil, fmt.Errorf("CopyResource: 0x%08X", uint32(copyHr))
	}

	var mapped mappedSubresource
	mapHr, _, _ := syscall.SyscallN(wincom.VtblFn(s.device.context, d3d11CtxMap), s.device.context, s.staging, 0, 1, 0, uintptr(unsafe.Pointer(&mapped)))
	if int32(mapHr) < 0 {
		syscall.SyscallN(wincom.VtblFn(s.duplication, dxgiDuplReleaseFrame), s.duplication)
		return nil, fmt.Errorf("Map staging: 0x%08X", uint32(mapHr))
	}

	cropped := s.cropFrame(rect, mapped)

	syscall.SyscallN(wincom.VtblFn(s.device.context, d3d11CtxUnmap), s.device.context, s.staging, 0)
	syscall.SyscallN(wincom.VtblFn(s.duplication, dxgiDuplReleaseFrame), s.duplication)

	return cropped, nil
}

func (s *windowsSession) cropFrame(rect corepkg.Rect, mapped mappedSubresource) *Frame {
	desktop := corepkg.Rect{Right: int32(s.width), Bottom: int32(s.height)}
	crop := desktop.Intersect(rect)
	if crop.Empty() {
		return nil
	}
	w, h := int(crop.Width()), int(crop.Height())
	stride := w * 4
	pix := make([]byte, stride*h)
	rowPitch := int(mapped.RowPitch)
	for y := 0; y < h; y++ {
		srcOff := uintptr((int(crop.Top)+y)*rowPitch + int(crop.Left)*4)
		src := unsafe.Slice((*byte)(unsafe.Pointer(mapped.PData+srcOff)), stride)
		copy(pix[y*stride:], src)
	}
	return &Frame{
		Width: w, Height: h, Stride: stride,
		Format:     PixelFormatBGRA8,
		Pixels:     pix,
		CapturedAt: time.Now(),
	}
}

func (s *windowsSession) releaseDuplicationLocked() {
	if s.staging != 0 {
		wincom.Release(s.staging)
		s.staging = 0
	}
	if s.duplication != 0 {
		wincom.Release(s.duplication)
		s.duplication = 0
	}
}

func (s *windowsSession) Stop() error {
	if !s.running.Swap(false) {
		return nil
	}
	close(s.stopCh)
	<-s.doneCh
	s.mu.Lock()
	s.releaseDuplicationLocked()
	s.mu.Unlock()
	return nil
}

func queryPlatformCapabilities() HostCapabilities {
	return HostCapabilities{
		CaptureSupported:          true,
		CursorCaptureControllable: false,
		BorderControllable:        false,
	}
}
