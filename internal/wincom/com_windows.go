//go:build windows

// Package wincom holds the pure-Go COM/WinRT vtable-calling plumbing shared
// by every package that talks to D3D11/DXGI, WIC, and Media Foundation. There is no CGO here: every call crosses the ABI
// through syscall.SyscallN against a vtable slot, the same approach the
// rest of this codebase uses for its Win32 interop.
package wincom

import (
	"fmt"
	"syscall"
	"unsafe"

	"golang.org/x/sys/windows"
)

// GUID is a COM/WinRT 128-bit interface or class identifier.
type GUID struct {
	Data1 uint32
	Data2 uint16
	Data3 uint16
	Data4 [8]byte
}

// Call invokes a COM vtable method at the given index. obj is a pointer to
// a COM interface (pointer to pointer to vtable). HRESULT < 0 is surfaced
// as an error carrying the failing vtable slot for diagnosability.
func Call(obj uintptr, vtableIdx int, args ...uintptr) (uintptr, error) {
	vtablePtr := *(*uintptr)(unsafe.Pointer(obj))
	fnPtr := *(*uintptr)(unsafe.Pointer(vtablePtr + uintptr(vtableIdx)*unsafe.Sizeof(uintptr(0))))

	var ret uintptr
	switch len(args) {
	case 0:
		ret, _, _ = syscall.SyscallN(fnPtr, obj)
	case 1:
		ret, _, _ = syscall.SyscallN(fnPtr, obj, args[0])
	case 2:
		ret, _, _ = syscall.SyscallN(fnPtr, obj, args[0], args[1])
	case 3:
		ret, _, _ = syscall.SyscallN(fnPtr, obj, args[0], args[1], args[2])
	default:
		allArgs := make([]uintptr, 0, 1+len(args))
		allArgs = append(allArgs, obj)
		allArgs = append(allArgs, args...)
		ret, _, _ = syscall.SyscallN(fnPtr, allArgs...)
	}

	if int32(ret) < 0 {
		return ret, fmt.Errorf("COM vtable[%d] HRESULT 0x%08X", vtableIdx, uint32(ret))
	}
	return ret, nil
}

// VtblFn resolves a vtable function pointer by index without invoking it,
// for call sites that need to pass it to syscall.SyscallN directly (e.g.
// to avoid Call's variadic arg-count dispatch in a hot loop).
func VtblFn(obj uintptr, idx int) uintptr {
	vtablePtr := *(*uintptr)(unsafe.Pointer(obj))
	return *(*uintptr)(unsafe.Pointer(vtablePtr + uintptr(idx)*unsafe.Sizeof(uintptr(0))))
}

// Release calls IUnknown::Release (vtable index 2). Safe to call with obj == 0.
func Release(obj uintptr) {
	if obj == 0 {
		return
	}
	syscall.SyscallN(VtblFn(obj, vtblRelease), obj)
}

// AddRef calls IUnknown::AddRef (vtable index 1).
func AddRef(obj uintptr) {
	if obj == 0 {
		return
	}
	syscall.SyscallN(VtblFn(obj, vtblAddRef), obj)
}

// QueryInterface calls IUnknown::QueryInterface (vtable index 0) for iid
// and returns the resulting interface pointer.
func QueryInterface(obj uintptr, iid *GUID) (uintptr, error) {
	var out uintptr
	_, err := Call(obj, vtblQueryInterface, uintptr(unsafe.Pointer(iid)), uintptr(unsafe.Pointer(&out)))
	if err != nil {
		return 0, err
	}
	return out, nil
}

const (
	vtblQueryInterface = 0
	vtblAddRef         = 1
	vtblRelease        = 2
)

// --- shared DLL handles ---

var (
	Ole32            = windows.NewLazySystemDLL("ole32.dll")
	Combase          = windows.NewLazySystemDLL("combase.dll")
	User32           = windows.NewLazySystemDLL("user32.dll")
	Kernel32         = windows.NewLazySystemDLL("kernel32.dll")
	D3D11DLL         = windows.NewLazySystemDLL("d3d11.dll")
	DXGIDLL          = windows.NewLazySystemDLL("dxgi.dll")
	MFPlat           = windows.NewLazySystemDLL("mfplat.dll")
	MFReadWr         = windows.NewLazySystemDLL("mfreadwrite.dll")
	WindowsCodecsDLL = windows.NewLazySystemDLL("windowscodecs.dll")

	ProcCoInitializeEx = Ole32.NewProc("CoInitializeEx")
	ProcCoUninitialize = Ole32.NewProc("CoUninitialize")
	ProcCoTaskMemFree  = Ole32.NewProc("CoTaskMemFree")
	ProcCoCreateInstance = Ole32.NewProc("CoCreateInstance")

	// WinRT activation entry points. No package in this module calls them;
	// capture uses DXGI desktop duplication, not Windows Graphics Capture.
	ProcRoInitialize           = Combase.NewProc("RoInitialize")
	ProcRoUninitialize         = Combase.NewProc("RoUninitialize")
	ProcRoGetActivationFactory = Combase.NewProc("RoGetActivationFactory")
	ProcWindowsCreateString    = Combase.NewProc("WindowsCreateString")
	ProcWindowsDeleteString    = Combase.NewProc("WindowsDeleteString")
)

const (
	CoinitApartmentThreaded = 0x2
	CoinitMultithreaded     = 0x0
	RoInitMultithreaded     = 1
)

// HString is a WinRT HSTRING handle, freed with WindowsDeleteString.
type HString uintptr

// NewHString creates a WinRT HSTRING from a Go string. Callers must call
// Free when done.
func NewHString(s string) (HString, error) {
	utf16, err := syscall.UTF16FromString(s)
	if err != nil {
		return 0, err
	}
	var h HString
	ret, _, _ := ProcWindowsCreateString.Call(
		uintptr(unsafe.Pointer(&utf16[0])),
		uintptr(len(utf16)-1),
		uintptr(unsafe.Pointer(&h)),
	)
	if int32(ret) < 0 {
		return 0, fmt.Errorf("WindowsCreateString HRESULT 0x%08X", uint32(ret))
	}
	return h, nil
}

// Free releases the HSTRING.
func (h HString) Free() {
	if h != 0 {
		ProcWindowsDeleteString.Call(uintptr(h))
	}
}

// Pack64 packs two uint32 halves into a uint64, high << 32 | low — the
// layout Media Foundation attributes use for paired values (frame size,
// frame rate, pixel aspect ratio).
func Pack64(high, low uint32) uint64 {
	return uint64(high)<<32 | uint64(low)
}
