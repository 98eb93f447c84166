//go:build windows

package replay

import (
	"fmt"
	"os"
	"syscall"
	"unsafe"

	"github.com/go-ole/go-ole"

	"github.com/breeze-rmm/spinningmomo-core/internal/wincom"
)

var (
	clsidWICImagingFactory = ole.NewGUID("{CACAF262-9370-4615-A13B-9F5539DA4C0A}")
	iidIWICImagingFactory  = ole.NewGUID("{EC5EC8A9-C395-4314-9C77-54D7A935FF70}")

	guidContainerFormatJPEG  = wincom.GUID{Data1: 0x19e4a5aa, Data2: 0x5662, Data3: 0x4fc5, Data4: [8]byte{0xa0, 0xc0, 0x17, 0x58, 0x02, 0x8e, 0x10, 0x57}}
	guidPixelFormat32bppBGRA = wincom.GUID{Data1: 0x6fddc324, Data2: 0x4e03, Data3: 0x4bfe, Data4: [8]byte{0xb1, 0x85, 0x3d, 0x77, 0x76, 0x8d, 0xc9, 0x0c}}
)

const (
	wicFactoryCreateStream                = 3
	wicFactoryCreateEncoder               = 17
	wicStreamInitializeFromFilename       = 20
	wicEncoderInitialize                  = 3
	wicEncoderCreateNewFrame              = 10
	wicEncoderCommit                      = 9
	wicFrameInitialize                    = 3
	wicFrameSetSize                       = 4
	wicFrameSetPixelFormat                = 6
	wicFrameWritePixels                   = 10
	wicFrameCommit                        = 11
	wicBitmapEncoderNoCache                = 0
	genericAccessWrite                    = 0x40000000
)

// encodeJPEGStill WIC-encodes one BGRA frame to JPEG bytes. WIC only
// encodes to a filename or IStream target, so this goes through a
// throwaway temp file the same way the screenshot encoder writes its
// final output — just deleted immediately after the bytes are read back.
func encodeJPEGStill(pixels []byte, width, height, stride int) ([]byte, error) {
	if err := ole.CoInitializeEx(0, ole.COINIT_APARTMENTTHREADED); err != nil {
		return nil, fmt.Errorf("CoInitializeEx: %w", err)
	}
	defer ole.CoUninitialize()

	tmp, err := os.CreateTemp("", "spinningmomo-motionphoto-*.jpg")
	if err != nil {
		return nil, err
	}
	tmpPath := tmp.Name()
	tmp.Close()
	defer os.Remove(tmpPath)

	if err := encodeWICJPEG(tmpPath, pixels, width, height, stride); err != nil {
		return nil, err
	}
	return os.ReadFile(tmpPath)
}

func encodeWICJPEG(path string, pixels []byte, width, height, stride int) error {
	factoryUnk, err := ole.CreateInstance(clsidWICImagingFactory, iidIWICImagingFactory)
	if err != nil {
		return fmt.Errorf("CreateInstance WICImagingFactory: %w", err)
	}
	defer factoryUnk.Release()
	factory := uintptr(unsafe.Pointer(factoryUnk.RawVTable))

	var stream uintptr
	if _, err := wincom.Call(factory, wicFactoryCreateStream, uintptr(unsafe.Pointer(&stream))); err != nil {
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

	var encoder uintptr
	if _, err := wincom.Call(factory, wicFactoryCreateEncoder,
		uintptr(unsafe.Pointer(&guidContainerFormatJPEG)), 0, uintptr(unsafe.Pointer(&encoder))); err != nil {
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
	if _, err := wincom.Call(frameEncode, wicFrameSetSize, uintptr(width), uintptr(height)); err != nil {
		return fmt.Errorf("SetSize: %w", err)
	}
	pixelFormat := guidPixelFormat32bppBGRA
	if _, err := wincom.Call(frameEncode, wicFrameSetPixelFormat, uintptr(unsafe.Pointer(&pixelFormat))); err != nil {
		return fmt.Errorf("SetPixelFormat: %w", err)
	}
	if len(pixels) == 0 {
		return fmt.Errorf("encode JPEG still: empty pixel buffer")
	}
	if _, err := wincom.Call(frameEncode, wicFrameWritePixels,
		uintptr(height), uintptr(stride), uintptr(len(pixels)),
		uintptr(unsafe.Pointer(&pixels[0]))); err != nil {
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
