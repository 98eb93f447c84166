//go:build windows

package preview

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

var log = logging.L("preview")

var (
	user32 = windows.NewLazySystemDLL("user32.dll")
	gdi32  = windows.NewLazySystemDLL("gdi32.dll")

	procRegisterClassExW    = user32.NewProc("RegisterClassExW")
	procCreateWindowExW     = user32.NewProc("CreateWindowExW")
	procDestroyWindow       = user32.NewProc("DestroyWindow")
	procShowWindow          = user32.NewProc("ShowWindow")
	procGetMessageW         = user32.NewProc("GetMessageW")
	procTranslateMessage    = user32.NewProc("TranslateMessage")
	procDispatchMessageW    = user32.NewProc("DispatchMessageW")
	procDefWindowProcW      = user32.NewProc("DefWindowProcW")
	procGetDC               = user32.NewProc("GetDC")
	procReleaseDC           = user32.NewProc("ReleaseDC")
	procInvalidateRect      = user32.NewProc("InvalidateRect")
	procGetModuleHandleW    = windows.NewLazySystemDLL("kernel32.dll").NewProc("GetModuleHandleW")

	procStretchDIBits = gdi32.NewProc("StretchDIBits")
	procRectangle     = gdi32.NewProc("Rectangle")
	procSelectObject  = gdi32.NewProc("SelectObject")
	procCreatePen     = gdi32.NewProc("CreatePen")
	procDeleteObject  = gdi32.NewProc("DeleteObject")
)

const (
	wmDPIChanged = 0x02E0
	wmPaint      = 0x000F
	swShow       = 5
	psSolid      = 0
	srcCopy      = 0x00CC0020
)

type bitmapInfoHeader struct {
	Size          uint32
	Width, Height int32
	Planes, BitCount uint16
	Compression, SizeImage uint32
	XPelsPerMeter, YPelsPerMeter int32
	ClrUsed, ClrImportant uint32
}

type wndClassExW struct {
	Size, Style                        uint32
	WndProc                            uintptr
	ClsExtra, WndExtra                 int32
	Instance, Icon, Cursor, Background uintptr
	MenuName, ClassName                *uint16
	IconSm                             uintptr
}

type windowView struct {
	mu      sync.Mutex
	hwnd    uintptr
	session capture.Session
	geom    Geometry
	version atomic.Uint64
	latest  atomic.Pointer[capture.Frame]
}

func newPlatformView() View { return &windowView{} }

func (v *windowView) Show(session capture.Session, geom Geometry) error {
	v.mu.Lock()
	if v.hwnd != 0 {
		v.mu.Unlock()
		return fmt.Errorf("%w: preview already shown", corepkg.ErrPrecondition)
	}
	v.session = session
	v.geom = geom
	v.mu.Unlock()

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

	className, _ := syscall.UTF16PtrFromString("SpinningMomoPreviewClass")
	inst, _, _ := procGetModuleHandleW.Call(0)
	wc := wndClassExW{
		Size:      uint32(unsafe.Sizeof(wndClassExW{})),
		WndProc:   syscall.NewCallback(v.wndProc),
		Instance:  inst,
		ClassName: className,
	}
	procRegisterClassExW.Call(uintptr(unsafe.Pointer(&wc)))

	title, _ := syscall.UTF16PtrFromString("SpinningMomo Preview")
	r := v.geom.WindowRect
	hwnd, _, _ := procCreateWindowExW.Call(
		0, uintptr(unsafe.Pointer(className)), uintptr(unsafe.Pointer(title)),
		0x00CF0000, // WS_OVERLAPPEDWINDOW
		uintptr(r.Left), uintptr(r.Top), uintptr(r.Width()), uintptr(r.Height()),
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

	var m struct {
		Hwnd    uintptr
		Message uint32
		WParam  uintptr
		LParam  uintptr
		Time    uint32
		Pt      struct{ X, Y int32 }
	}
	for {
		res, _, _ := procGetMessageW.Call(uintptr(unsafe.Pointer(&m)), 0, 0, 0)
		if int32(res) <= 0 {
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
	switch msg {
	case wmDPIChanged:
		// DPI changed monitor-to-monitor; any cached scaled resource
		// (fonts, indicator pen) is now stale.
		v.version.Add(1)
	case wmPaint:
		v.paint(hwnd)
		return 0
	}
	r, _, _ := procDefWindowProcW.Call(hwnd, uintptr(msg), wparam, lparam)
	return r
}

func (v *windowView) onFrame(frame capture.Frame) {
	f := frame
	v.latest.Store(&f)
	v.mu.Lock()
	hwnd := v.hwnd
	v.mu.Unlock()
	if hwnd != 0 {
		procInvalidateRect.Call(hwnd, 0, 0)
	}
}

// paint does a two-pass render: the captured bitmap first, then the
// viewport-indicator line outline on top so it's never occluded by the
// frame blit.
func (v *windowView) paint(hwnd uintptr) {
	frame := v.latest.Load()
	if frame == nil {
		return
	}
	dc, _, _ := procGetDC.Call(hwnd)
	defer procReleaseDC.Call(hwnd, dc)

	bmi := bitmapInfoHeader{
		Size: uint32(unsafe.Sizeof(bitmapInfoHeader{})), Width: int32(frame.Width),
		Height: -int32(frame.Height), Planes: 1, BitCount: 32,
	}
	procStretchDIBits.Call(
		dc, 0, 0, uintptr(frame.Width), uintptr(frame.Height),
		0, 0, uintptr(frame.Width), uintptr(frame.Height),
		uintptr(unsafe.Pointer(&frame.Pixels[0])), uintptr(unsafe.Pointer(&bmi)),
		0, uintptr(srcCopy),
	)

	v.mu.Lock()
	viewport := v.geom.Viewport
	v.mu.Unlock()
	if viewport.Empty() {
		return
	}
	pen, _, _ := procCreatePen.Call(uintptr(psSolid), 2, 0x0000FF00)
	old, _, _ := procSelectObject.Call(dc, pen)
	// NULL_BRUSH (stock object 5) so Rectangle draws only the outline.
	nullBrush, _, _ := gdi32.NewProc("GetStockObject").Call(5)
	oldBrush, _, _ := procSelectObject.Call(dc, nullBrush)
	procRectangle.Call(dc, uintptr(viewport.Left), uintptr(viewport.Top), uintptr(viewport.Right), uintptr(viewport.Bottom))
	procSelectObject.Call(dc, oldBrush)
	procSelectObject.Call(dc, old)
	procDeleteObject.Call(pen)
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
	}
	return nil
}

func (v *windowView) SetViewport(viewport corepkg.Rect) {
	v.mu.Lock()
	v.geom.Viewport = viewport
	hwnd := v.hwnd
	v.mu.Unlock()
	if hwnd != 0 {
		procInvalidateRect.Call(hwnd, 0, 0)
	}
}

func (v *windowView) ResourceVersion() uint64 { return v.version.Load() }

var _ = log
