//go:build windows

package screenshot

import (
	"fmt"
	"os"
	"path/filepath"
	"syscall"
	"time"
	"unsafe"

	"github.com/go-ole/go-ole"

	"github.com/breeze-rmm/spinningmomo-core/internal/capture"
	"github.com/breeze-rmm/spinningmomo-core/internal/corepkg"
	"github.com/breeze-rmm/spinningmomo-core/internal/logging"
	"github.com/breeze-rmm/spinningmomo-core/internal/wincom"
)

var log = logging.L("screenshot")

// CLSID_WICImagingFactory / IID_IWICImagingFactory.
var (
	clsidWICImagingFactory = ole.NewGUID("{CACAF262-9370-4615-A13B-9F5539DA4C0A}")
	iidIWICImagingFactory  = ole.NewGUID("{EC5EC8A9-C395-4314-9C77-54D7A935FF70}")
)

// WIC container format GUIDs.
var (
	guidContainerFormatPNG  = wincom.GUID{Data1: 0x1b7cfaf4, Data2: 0x713f, Data3: 0x473c, Data4: [8]byte{0xbb, 0xcd, 0x61, 0x37, 0x42, 0x5f, 0xae, 0xaf}}
	guidContainerFormatJPEG = wincom.GUID{Data1: 0x19e4a5aa, Data2: 0x5662, Data3: 0x4fc5, Data4: [8]byte{0xa0, 0xc0, 0x17, 0x58, 0x02, 0x8e, 0x10, 0x57}}
	guidPixelFormat32bppBGRA = wincom.GUID{Data1: 0x6fddc324, Data2: 0x4e03, Data3: 0x4bfe, Data4: [8]byte{0xb1, 0x85, 0x3d, 0x77, 0x76, 0x8d, 0xc9, 0x0c}}
)

// IWICImagingFactory vtable indices (after IUnknown's 0-2).
const (
	wicFactoryCreateStream  = 3
	wicFactoryCreateEncoder = 17
)

// IWICStream vtable indices.
const wicStreamInitializeFromFilename = 20 // IWICStream extends IStream; filename init is WIC-specific tail method

// IWICBitmapEncoder vtable indices.
const (
	wicEncoderInitialize    = 3
	wicEncoderCreateNewFrame = 10
	wicEncoderCommit        = 9
)

// IWICBitmapFrameEncode vtable indices.
const (
	wicFrameInitialize      = 3
	wicFrameSetSize         = 4
	wicFrameSetPixelFormat  = 6
	wicFrameWritePixels     = 10
	wicFrameCommit          = 11
)

const (
	wicBitmapEncoderNoCache  = 0
	genericAccessWrite       = 0x40000000
	wicStreamFileModeCreate  = 0
)

type platformEncoder struct{}

func newPlatformEncoder() Encoder { return &platformEncoder{} }

func (e *platformEncoder) Capture(req Request, onDone DoneFunc) (Result, error) {
	result, err := e.doCapture(req)
	if onDone != nil {
		onDone(result, err)
	}
	return result, err
}

func (e *platformEncoder) doCapture(req Request) (Result, error) {
	session, err := capture.NewSession(capture.Config{TargetHandle: req.TargetHandle, Capacity: 1})
	if err != nil {
		return Result{}, fmt.Errorf("create capture session: %w", err)
	}
	defer session.Stop()

	frameCh := make(chan capture.Frame, 1)
	if err := session.Start(func(f capture.Frame) {
		select {
		case frameCh <- f:
		default:
		}
	}); err != nil {
		return Result{}, fmt.Errorf("start capture session: %w", err)
	}

	var frame capture.Frame
	select {
	case frame = <-frameCh:
	case <-time.After(2 * time.Second):
		return Result{}, fmt.Errorf("%w: timed out waiting for a capture frame", corepkg.ErrTransientIO)
	}

	now := time.Now()
	name := timestampedName(req.Format, now)
	path := filepath.Join(req.Directory, name)
	if err := os.MkdirAll(req.Directory, 0o755); err != nil {
		return Result{}, fmt.Errorf("create screenshot directory: %w", err)
	}

	if err := ole.CoInitializeEx(0, ole.COINIT_APARTMENTTHREADED); err != nil {
		return Result{}, fmt.Errorf("CoInitializeEx: %w", err)
	}
	defer ole.CoUninitialize()

	if err := encodeWIC(path, req.Format, frame); err != nil {
		return Result{}, fmt.Errorf("WIC encode: %w", err)
	}

	log.Info("screenshot saved", "path", path, "width", frame.Width, "height", frame.Height)
	return Result{Path: path, Width: frame.Width, Height: frame.Height, TakenAt: now}, nil
}

func encodeWIC(path string, format ImageFormat, frame capture.Frame) error {
	factoryUnk, err := ole.CreateInstance(clsidWICImagingFactory, iidIWICImagingFactory)
	if err != nil {
		return fmt.Errorf("CreateInstance WICImagingFactory: %w", err)
	}
	defer factoryUnk.Release()
	factory := factoryUnk.RawVTable

	var stream uintptr
	if _, err := wincom.Call(uintptr(unsafe.Pointer(factory)), wicFactoryCreateStream, uintptr(unsafe.Pointer(&stream))); err != nil {
		return fmt.Errorf("CreateStream: %w", err)
	}
	defer wincom.Release(stream)

	pathPtr, err := syscall.UTF16PtrFromString(path)
	if err != nil {
		return err
	}
	if _, err := wincom.Call(stream, wicStreamInitializeFromFilename,
		uintptr(unsafe.Pointer(pathPtr)), uintptr(genericAccessWrite)); err != nil {
		return fmt.Errorf("IWICStream::InitializeFromFilename: %w", err)
	}

	containerFormat := guidContainerFormatPNG
	if format == FormatJPEG {
		containerFormat = guidContainerFormatJPEG
	}
	var encoder uintptr
	if _, err := wincom.Call(uintptr(unsafe.Pointer(factory)), wicFactoryCreateEncoder,
		uintptr(unsafe.Pointer(&containerFormat)), 0, uintptr(unsafe.Pointer(&encoder))); err != nil {
		return fmt.Errorf("CreateEncoder: %w", err)
	}
	defer wincom.Release(encoder)

	if _, err := wincom.Call(encoder, wicEncoderInitialize, stream, uintptr(wicBitmapEncoderNoCache)); err != nil {
		return fmt.Errorf("IWICBitmapEncoder::Initialize: %w", err)
	}

	var frameEncode uintptr
	if _, err := wincom.Call(encoder, wicEncoderCreateNewFrame, uintptr(unsafe.Pointer(&frameEncode)), 0); err != nil {
		return fmt.Errorf("CreateNewFrame: %w", err)
	}
	defer wincom.Release(frameEncode)

	if _, err := wincom.Call(frameEncode, wicFrameInitialize, 0); err != nil {
		return fmt.Errorf("IWICBitmapFrameEncode::Initialize: %w", err)
	}
	if _, err := wincom.Call(frameEncode, wicFrameSetSize, uintptr(frame.Width), uintptr(frame.Height)); err != nil {
		return fmt.Errorf("SetSize: %w", err)
	}
	pixelFormat := guidPixelFormat32bppBGRA
	if _, err := wincom.Call(frameEncode, wicFrameSetPixelFormat, uintptr(unsafe.Pointer(&pixelFormat))); err != nil {
		return fmt.Errorf("SetPixelFormat: %w", err)
	}
	if _, err := wincom.Call(frameEncode, wicFrameWritePixels,
		uintptr(frame.Height), uintptr(frame.Stride), uintptr(len(frame.Pixels)),
		uintptr(unsafe.Pointer(&frame.Pixels[0]))); err != nil {
		return fmt.Errorf("WritePixels: %w", err)
	}
	if _, err := wincom.Call(frameEncode, wicFrameCommit); err != nil {
		return fmt.Errorf("IWICBitmapFrameEncode::Commit: %w", err)
	}
	if _, err := wincom.Call(encoder, wicEncoderCommit); err != nil {
		return fmt.Errorf("IWICBitmapEncoder::Commit: %w", err)
	}
	return nil
}
