//go:build windows

package capture

import (
	"fmt"
	"sync"
	"syscall"
	"unsafe"

	"github.com/breeze-rmm/spinningmomo-core/internal/wincom"
)

const (
	d3dDriverTypeHardware = 1
	d3dFeatureLevel11_0   = 0xb000
	d3d11SDKVersion       = 7

	d3d11CreateDeviceBGRASupport  = 0x20
	d3d11CreateDeviceVideoSupport = 0x800

	// ID3D11Multithread vtable indices (IUnknown 0-2, Enter 3, Leave 4).
	d3d11MultithreadSetProtected = 5
)

var iidID3D11Multithread = wincom.GUID{Data1: 0x9b7e4e00, Data2: 0x342c, Data3: 0x4106, Data4: [8]byte{0xa1, 0x9f, 0x4f, 0x27, 0x04, 0xf6, 0x89, 0xf0}}

// sharedDevice is the process-wide D3D11 device every capture session is
// created against; recreating a device per session wastes VRAM. The overlay
// and preview windows draw with GDI and do not use it.
type sharedDevice struct {
	device  uintptr
	context uintptr
}

var (
	sharedDeviceOnce  sync.Once
	sharedDeviceValue *sharedDevice
	sharedDeviceErr   error
)

func getSharedDevice() (*sharedDevice, error) {
	sharedDeviceOnce.Do(func() {
		sharedDeviceValue, sharedDeviceErr = createSharedDevice()
	})
	return sharedDeviceValue, sharedDeviceErr
}

func createSharedDevice() (*sharedDevice, error) {
	var device, context uintptr
	var actualLevel uint32
	featureLevel := uint32(d3dFeatureLevel11_0)

	flags := uintptr(d3d11CreateDeviceBGRASupport | d3d11CreateDeviceVideoSupport)
	hr, _, _ := procD3D11CreateDevice.Call(
		0,
		uintptr(d3dDriverTypeHardware),
		0,
		flags,
		uintptr(unsafe.Pointer(&featureLevel)),
		1,
		uintptr(d3d11SDKVersion),
		uintptr(unsafe.Pointer(&device)),
		uintptr(unsafe.Pointer(&actualLevel)),
		uintptr(unsafe.Pointer(&context)),
	)
	if int32(hr) < 0 {
		hr, _, _ = procD3D11CreateDevice.Call(
			0, uintptr(d3dDriverTypeHardware), 0, 0,
			uintptr(unsafe.Pointer(&featureLevel)), 1, uintptr(d3d11SDKVersion),
			uintptr(unsafe.Pointer(&device)), uintptr(unsafe.Pointer(&actualLevel)), uintptr(unsafe.Pointer(&context)),
		)
	}
	if int32(hr) < 0 {
		return nil, fmt.Errorf("D3D11CreateDevice failed: 0x%08X", uint32(hr))
	}

	// Multiple capture/overlay/preview threads issue calls against the same
	// context; mark it protected so D3D11 serializes them internally rather
	// than corrupting state.
	if mt, err := wincom.QueryInterface(device, &iidID3D11Multithread); err == nil {
		syscall.SyscallN(wincom.VtblFn(mt, d3d11MultithreadSetProtected), mt, 1)
		wincom.Release(mt)
	}

	return &sharedDevice{device: device, context: context}, nil
}

var procD3D11CreateDevice = wincom.D3D11DLL.NewProc("D3D11CreateDevice")
