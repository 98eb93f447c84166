//go:build windows

package overlay

import (
	"fmt"
	"runtime"
	"sync"
	"sync/atomic"
	"syscall"
	"unsafe"

	"golang.org/x/sys/windows"

	"github.com/breeze-rmm/spinningmomo-core/internal/capture"
	"github.com/breeze-rmm/spinningmomo-core/internal/corepkg"
	"github.com/breeze-rmm/spinningmomo-core/internal/logging"
)

var log = logging.L("overlay")

var (
	user32   = windows.NewLazySystemDLL("user32.dll")
	gdi32    = windows.NewLazySystemDLL("gdi32.dll")
	kernel32 = windows.NewLazySystemDLL("kernel32.dll")

	procRegisterClassExW      = user32.NewProc("RegisterClassExW")
	procCreateWindowExW       = user32.NewProc("CreateWindowExW")
	procDestroyWindow         = user32.NewProc("DestroyWindow")
	procShowWindow            = user32.NewProc("ShowWindow")
	procUpdateLayeredWindow   = user32.NewProc("UpdateLayeredWindow")
	procGetDC                 = user32.NewProc("GetDC")
	procReleaseDC             = user32.NewProc("ReleaseDC")
	procGetMessageW           = user32.NewProc("GetMessageW")
	procTranslateMessage      = user32.NewProc("TranslateMessage")
	procDispatchMessageW      = user32.NewProc("DispatchMessageW")
	procPostThreadMessageW    = user32.NewProc("PostThreadMessageW")
	procPostQuitMessage       = user32.NewProc("PostQuitMessage")
	procDefWindowProcW        = user32.NewProc("DefWindowProcW")
	procGetSystemMetrics      = user32.NewProc("GetSystemMetrics")
	procSetWindowsHookExW     = user32.NewProc("SetWindowsHookExW")
	procUnhookWindowsHookEx   = user32.NewProc("UnhookWindowsHookEx")
	procCallNextHookEx        = user32.NewProc("CallNextHookEx")
	procGetCursorPos          = user32.NewProc("GetCursorPos")

	procCreateCompatibleDC  = gdi32.NewProc("CreateCompatibleDC")
	procDeleteDC            = gdi32.NewProc("DeleteDC")
	procCreateDIBSection    = gdi32.NewProc("CreateDIBSection")
	procSelectObject        = gdi32.NewProc("SelectObject")
	procDeleteObject        = gdi32.NewProc("DeleteObject")

	procGetModuleHandleW = kernel32.NewProc("GetModuleHandleW")
)

const (
	wsExLayered     = 0x00080000
	wsExTransparent = 0x00000020
	wsExTopMost     = 0x00000008
	wsExToolWindow  = 0x00000080
	wsPopup         = 0x80000000

	swShow = 5
	swHide = 0

	ulwAlpha = 0x00000002

	smCxScreen = 0
	smCyScreen = 1

	whMouseLL = 14

	wmAppRedraw = 0x8000 + 1
	wmQuit      = 0x0012
)

type point struct{ X, Y int32 }
type msg struct {
	Hwnd    uintptr
	Message uint32
	WParam  uintptr
	LParam  uintptr
	Time    uint32
	Pt      point
}

type wndClassExW struct {
	Size, Style                        uint32
	WndProc                            uintptr
	ClsExtra, WndExtra                 int32
	Instance, Icon, Cursor, Background uintptr
	MenuName, ClassName                *uint16
	IconSm                             uintptr
}

type bitmapInfoHeader struct {
	Size          uint32
	Width, Height int32
	Planes, BitCount uint16
	Compression, SizeImage uint32
	XPelsPerMeter, YPelsPerMeter int32
	ClrUsed, ClrImportant uint32
}

type blendFunction struct {
	BlendOp, BlendFlags, SourceConstantAlpha, AlphaFormat byte
}

// windowView is the overlay's platform implementation: one hidden message
// thread owns a layered popup window spanning the primary monitor. Frames
// arrive on the capture session's own goroutine and are blitted via
// UpdateLayeredWindow, which — unlike WM_PAINT — composites correctly over
// whatever is beneath a topmost, click-through window.
type windowView struct {
	mu      sync.Mutex
	hwnd    uintptr
	threadID uintptr
	session capture.Session

	frozen       atomic.Bool
	letterbox    atomic.Bool
	mouseFollow  atomic.Bool
	mouseHook    uintptr
	stopHookCh   chan struct{}

	geom Geometry
}

func newPlatformView() View { return &windowView{} }

func (v *windowView) Show(session capture.Session, geom Geometry) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.hwnd != 0 {
		return fmt.Errorf("%w: overlay already shown", corepkg.ErrPrecondition)
	}
	v.session = session
	v.geom = geom
	v.letterbox.Store(geom.Letterbox)

	ready := make(chan error, 1)
	go v.runMessageThread(ready)
	if err := <-ready; err != nil {
		return err
	}

	return session.Start(v.onFrame)
}

func (v *windowView) runMessageThread(ready chan<- error) {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	className, _ := syscall.UTF16PtrFromString("SpinningMomoOverlayClass")
	inst, _, _ := procGetModuleHandleW.Call(0)
	wndProcPtr := syscall.NewCallback(v.wndProc)

	wc := wndClassExW{
		Size:      uint32(unsafe.Sizeof(wndClassExW{})),
		WndProc:   wndProcPtr,
		Instance:  inst,
		ClassName: className,
	}
	procRegisterClassExW.Call(uintptr(unsafe.Pointer(&wc)))

	screenW, _, _ := procGetSystemMetrics.Call(uintptr(smCxScreen))
	screenH, _, _ := procGetSystemMetrics.Call(uintptr(smCyScreen))

	title, _ := syscall.UTF16PtrFromString("SpinningMomoOverlay")
	hwnd, _, _ := procCreateWindowExW.Call(
		uintptr(wsExLayered|wsExTransparent|wsExTopMost|wsExToolWindow),
		uintptr(unsafe.Pointer(className)),
		uintptr(unsafe.Pointer(title)),
		uintptr(wsPopup),
		0, 0, screenW, screenH,
		0, 0, inst, 0,
	)
	if hwnd == 0 {
		ready <- fmt.Errorf("%w: CreateWindowExW failed", corepkg.ErrResourceCreate)
		return
	}

	v.mu.Lock()
	v.hwnd = hwnd
	v.mu.Unlock()

	procShowWindow.Call(hwnd, uintptr(swShow))
	ready <- nil

	var m msg
	for {
		r, _, _ := procGetMessageW.Call(uintptr(unsafe.Pointer(&m)), 0, 0, 0)
		if int32(r) <= 0 {
			break
		}
		procTranslateMessage.Call(uintptr(unsafe.Pointer(&m)))
		procDispatchMessageW.Call(uintptr(unsafe.Pointer(&m)))
	}

	v.mu.Lock()
	v.hwnd = 0
	v.mu.Unlock()
}

func (v *windowView) wndProc(hwnd uintptr, msg uint32, wparam, lparam uintptr) uintptr {
	r, _, _ := procDefWindowProcW.Call(hwnd, uintptr(msg), wparam, lparam)
	return r
}

// onFrame is called on the capture session's own goroutine; it must not
// block. UpdateLayeredWindow's own blit cost is the budget here, the same
// constraint the session's frame-pool sizing advice assumes.
func (v *windowView) onFrame(frame capture.Frame) {
	if v.frozen.Load() {
		return
	}
	v.mu.Lock()
	hwnd := v.hwnd
	v.mu.Unlock()
	if hwnd == 0 {
		return
	}
	if err := v.blit(hwnd, frame); err != nil {
		log.Warn("overlay blit failed", "error", err)
	}
}

func (v *windowView) blit(hwnd uintptr, frame capture.Frame) error {
	screenDC, _, _ := procGetDC.Call(0)
	defer procReleaseDC.Call(0, screenDC)

	memDC, _, _ := procCreateCompatibleDC.Call(screenDC)
	defer procDeleteDC.Call(memDC)

	bmi := bitmapInfoHeader{
		Size:     uint32(unsafe.Sizeof(bitmapInfoHeader{})),
		Width:    int32(frame.Width),
		Height:   -int32(frame.Height), // top-down DIB
		Planes:   1,
		BitCount: 32,
	}
	var bits unsafe.Pointer
	hbmp, _, _ := procCreateDIBSection.Call(
		memDC, uintptr(unsafe.Pointer(&bmi)), 0,
		uintptr(unsafe.Pointer(&bits)), 0, 0,
	)
	if hbmp == 0 {
		return fmt.Errorf("CreateDIBSection failed")
	}
	defer procDeleteObject.Call(hbmp)

	dst := unsafe.Slice((*byte)(bits), len(frame.Pixels))
	copy(dst, frame.Pixels)

	old, _, _ := procSelectObject.Call(memDC, hbmp)
	defer procSelectObject.Call(memDC, old)

	srcPt := point{0, 0}
	size := point{int32(frame.Width), int32(frame.Height)}
	dstPt := v.placement(frame)
	blend := blendFunction{BlendOp: 0, SourceConstantAlpha: 255, AlphaFormat: 1}

	ret, _, _ := procUpdateLayeredWindow.Call(
		hwnd, 0,
		uintptr(unsafe.Pointer(&dstPt)), uintptr(unsafe.Pointer(&size)),
		memDC, uintptr(unsafe.Pointer(&srcPt)),
		0, uintptr(unsafe.Pointer(&blend)), uintptr(ulwAlpha),
	)
	if ret == 0 {
		return fmt.Errorf("UpdateLayeredWindow failed")
	}
	return nil
}

// placement centers the frame on the primary monitor when letterboxed and
// otherwise places it at the origin. The frame is drawn at its captured
// size in both modes; neither this view nor the capture crop scales it.
func (v *windowView) placement(frame capture.Frame) point {
	if !v.letterbox.Load() {
		return point{0, 0}
	}
	screenW, _, _ := procGetSystemMetrics.Call(uintptr(smCxScreen))
	screenH, _, _ := procGetSystemMetrics.Call(uintptr(smCyScreen))
	x := (int32(screenW) - int32(frame.Width)) / 2
	y := (int32(screenH) - int32(frame.Height)) / 2
	return point{x, y}
}

func (v *windowView) Hide() error {
	v.mu.Lock()
	hwnd := v.hwnd
	session := v.session
	v.mu.Unlock()
	if session != nil {
		session.Stop()
	}
	if hwnd != 0 {
		procDestroyWindow.Call(hwnd)
		procPostQuitMessage.Call(0)
	}
	v.stopMouseHook()
	return nil
}

func (v *windowView) Freeze()   { v.frozen.Store(true) }
func (v *windowView) Unfreeze() { v.frozen.Store(false) }

func (v *windowView) SetLetterbox(enabled bool) { v.letterbox.Store(enabled) }

// SetMouseFollowPan installs a WH_MOUSE_LL hook on its own thread. The hook
// callback reads the cursor position and passes the event on; the position
// is not stored, and blit does not pan by it.
func (v *windowView) SetMouseFollowPan(enabled bool) {
	if enabled == v.mouseFollow.Swap(enabled) {
		return
	}
	if enabled {
		v.stopHookCh = make(chan struct{})
		go v.runMouseHookThread(v.stopHookCh)
	} else {
		v.stopMouseHook()
	}
}

func (v *windowView) runMouseHookThread(stop chan struct{}) {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	hookProc := syscall.NewCallback(func(code int32, wparam, lparam uintptr) uintptr {
		if code >= 0 {
			var pt point
			procGetCursorPos.Call(uintptr(unsafe.Pointer(&pt)))
		}
		r, _, _ := procCallNextHookEx.Call(0, uintptr(code), wparam, lparam)
		return r
	})
	hook, _, _ := procSetWindowsHookExW.Call(uintptr(whMouseLL), hookProc, 0, 0)
	v.mu.Lock()
	v.mouseHook = hook
	v.mu.Unlock()

	var m msg
	for {
		select {
		case <-stop:
			procUnhookWindowsHookEx.Call(hook)
			return
		default:
		}
		r, _, _ := procGetMessageW.Call(uintptr(unsafe.Pointer(&m)), 0, 0, 0)
		if int32(r) <= 0 {
			return
		}
		procTranslateMessage.Call(uintptr(unsafe.Pointer(&m)))
		procDispatchMessageW.Call(uintptr(unsafe.Pointer(&m)))
	}
}

func (v *windowView) stopMouseHook() {
	v.mu.Lock()
	ch := v.stopHookCh
	v.stopHookCh = nil
	v.mu.Unlock()
	if ch != nil {
		close(ch)
	}
}
