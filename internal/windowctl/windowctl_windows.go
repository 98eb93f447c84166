//go:build windows

package windowctl

import (
	"fmt"
	"syscall"
	"unsafe"

	"golang.org/x/sys/windows"

	"github.com/breeze-rmm/spinningmomo-core/internal/corepkg"
	"github.com/breeze-rmm/spinningmomo-core/internal/logging"
)

var log = logging.L("windowctl")

var (
	user32   = windows.NewLazySystemDLL("user32.dll")
	kernel32 = windows.NewLazySystemDLL("kernel32.dll")

	procEnumWindows          = user32.NewProc("EnumWindows")
	procGetWindowTextW       = user32.NewProc("GetWindowTextW")
	procGetWindowTextLengthW = user32.NewProc("GetWindowTextLengthW")
	procIsWindowVisible      = user32.NewProc("IsWindowVisible")
	procGetWindowLongW       = user32.NewProc("GetWindowLongW")
	procSetWindowLongW       = user32.NewProc("SetWindowLongW")
	procGetWindowRect        = user32.NewProc("GetWindowRect")
	procGetClientRect        = user32.NewProc("GetClientRect")
	procClientToScreen       = user32.NewProc("ClientToScreen")
	procAdjustWindowRectEx   = user32.NewProc("AdjustWindowRectEx")
	procSetWindowPos         = user32.NewProc("SetWindowPos")
	procGetSystemMetrics     = user32.NewProc("GetSystemMetrics")
	procFindWindowW          = user32.NewProc("FindWindowW")
	procIsIconic             = user32.NewProc("IsIconic")

	_ = kernel32
)

const (
	gwlStyle   = -16
	gwlExStyle = -20

	wsCaption    = 0x00C00000
	wsThickFrame = 0x00040000
	wsPopup      = 0x80000000
	wsOverlappedWindow = wsCaption | wsThickFrame | 0x00080000 | 0x00020000 | 0x00010000

	wsExToolWindow = 0x00000080
	wsExAppWindow  = 0x00040000

	smCxScreen = 0
	smCyScreen = 1

	swpNoActivate = 0x0010
	swpNoZOrder   = 0x0004
	swpNoSize     = 0x0001
	swpNoMove     = 0x0002
	swpFrameChanged = 0x0020
	swpShowWindow = 0x0040

	hwndTop       = 0
	hwndBottom    = 1
	hwndTopMost   = ^uintptr(0) // -1
	hwndNoTopMost = ^uintptr(1) // -2
)

type rawRect struct{ Left, Top, Right, Bottom int32 }

type platformController struct{}

func newPlatformController() Controller { return &platformController{} }

func toRect(r rawRect) corepkg.Rect {
	return corepkg.Rect{Left: r.Left, Top: r.Top, Right: r.Right, Bottom: r.Bottom}
}

// EnumerateVisibleWindows walks the top-level window list via EnumWindows,
// keeping windows that are visible, carry a non-empty title, and are not
// WS_EX_TOOLWINDOW. Pure query, no side effects.
func (p *platformController) EnumerateVisibleWindows() ([]Target, error) {
	var out []Target
	cb := syscall.NewCallback(func(hwnd uintptr, _ uintptr) uintptr {
		visible, _, _ := procIsWindowVisible.Call(hwnd)
		if visible == 0 {
			return 1
		}
		exStyle, _, _ := procGetWindowLongW.Call(hwnd, uintptr(gwlExStyle))
		if uint32(exStyle)&wsExToolWindow != 0 {
			return 1
		}
		title := windowTitle(hwnd)
		if title == "" {
			return 1
		}
		style, _, _ := procGetWindowLongW.Call(hwnd, uintptr(gwlStyle))
		var cr rawRect
		procGetClientRect.Call(hwnd, uintptr(unsafe.Pointer(&cr)))
		var origin struct{ X, Y int32 }
		procClientToScreen.Call(hwnd, uintptr(unsafe.Pointer(&origin)))
		wr := rawRect{Left: origin.X, Top: origin.Y, Right: origin.X + cr.Right, Bottom: origin.Y + cr.Bottom}
		out = append(out, Target{
			Handle:  hwnd,
			Title:   title,
			Rect:    toRect(wr),
			Style:   uint32(style),
			ExStyle: uint32(exStyle),
		})
		return 1
	})
	procEnumWindows.Call(cb, 0)
	return out, nil
}

func windowTitle(hwnd uintptr) string {
	n, _, _ := procGetWindowTextLengthW.Call(hwnd)
	if n == 0 {
		return ""
	}
	buf := make([]uint16, n+1)
	procGetWindowTextW.Call(hwnd, uintptr(unsafe.Pointer(&buf[0])), n+1)
	return syscall.UTF16ToString(buf)
}

// FindByTitle does an exact-match lookup over EnumerateVisibleWindows, so
// hidden and tool windows are never matched.
func (p *platformController) FindByTitle(title string) (Target, error) {
	wins, err := p.EnumerateVisibleWindows()
	if err != nil {
		return Target{}, err
	}
	for _, w := range wins {
		if w.Title == title {
			return w, nil
		}
	}
	return Target{}, fmt.Errorf("%w: %q", ErrNotFound, title)
}

func screenExtent() (int32, int32) {
	w, _, _ := procGetSystemMetrics.Call(uintptr(smCxScreen))
	h, _, _ := procGetSystemMetrics.Call(uintptr(smCyScreen))
	return int32(w), int32(h)
}

// ApplyTransform implements spec.md §4.1's oversized-placement algorithm:
// strip/restore the frame based on whether the target size exceeds the
// screen in either dimension, compute the non-client adjustment via
// AdjustWindowRectEx (so borderless styles' invisible frame offsets are
// accounted for), then center the client rectangle on the primary
// monitor even when that places left/top off-screen.
func (p *platformController) ApplyTransform(handle uintptr, width, height int, activate, lowerTaskbar bool) error {
	if handle == 0 {
		return fmt.Errorf("%w: nil window handle", corepkg.ErrPrecondition)
	}
	width = corepkg.EvenFloor(width)
	height = corepkg.EvenFloor(height)
	if width <= 0 || height <= 0 {
		return fmt.Errorf("%w: non-positive target size %dx%d", corepkg.ErrInvalidArgument, width, height)
	}

	screenW, screenH := screenExtent()
	oversized := int32(width) > screenW || int32(height) > screenH

	styleU, _, _ := procGetWindowLongW.Call(handle, uintptr(gwlStyle))
	style := uint32(styleU)
	exStyleU, _, _ := procGetWindowLongW.Call(handle, uintptr(gwlExStyle))
	exStyle := uint32(exStyleU)

	switch {
	case oversized && style&wsOverlappedWindow != 0:
		style = (style &^ wsOverlappedWindow) | wsPopup
		procSetWindowLongW.Call(handle, uintptr(gwlStyle), uintptr(style))
	case !oversized && style&wsPopup != 0:
		style = (style &^ wsPopup) | wsOverlappedWindow
		procSetWindowLongW.Call(handle, uintptr(gwlStyle), uintptr(style))
	}

	// AdjustWindowRectEx turns a desired CLIENT rect into the OUTER rect
	// the style requires; borderless styles contribute zero or negative
	// offsets, framed styles contribute positive ones.
	client := rawRect{Left: 0, Top: 0, Right: int32(width), Bottom: int32(height)}
	procAdjustWindowRectEx.Call(
		uintptr(unsafe.Pointer(&client)),
		uintptr(style),
		0, // bMenu
		uintptr(exStyle),
	)
	outerW := client.Right - client.Left
	outerH := client.Bottom - client.Top

	// Center on the primary monitor; negative left/top are intentional
	// and are the premise the capture pipeline relies on.
	left := (screenW-int32(width))/2 + client.Left
	top := (screenH-int32(height))/2 + client.Top

	flags := uintptr(swpFrameChanged)
	if !activate {
		flags |= swpNoActivate
	}
	insertAfter := uintptr(hwndTop)
	ret, _, _ := procSetWindowPos.Call(
		handle, insertAfter,
		uintptr(int32(left)), uintptr(int32(top)),
		uintptr(outerW), uintptr(outerH),
		flags,
	)
	if ret == 0 {
		return fmt.Errorf("%w: SetWindowPos failed", corepkg.ErrResourceCreate)
	}

	if lowerTaskbar {
		lowerShellTray()
	}

	log.Info("applied transform", "handle", handle, "width", width, "height", height,
		"oversized", oversized, "left", left, "top", top)
	return nil
}

func lowerShellTray() {
	tray, _, _ := procFindWindowW.Call(
		uintptr(unsafe.Pointer(utf16Ptr("Shell_TrayWnd"))), 0,
	)
	if tray == 0 {
		return
	}
	procSetWindowPos.Call(tray, hwndBottom, 0, 0, 0, 0, swpNoMove|swpNoSize|swpNoActivate)
}

func utf16Ptr(s string) *uint16 {
	p, _ := syscall.UTF16PtrFromString(s)
	return p
}

// ResetToScreen computes a client size that fits the primary monitor at
// the screen's native aspect ratio (i.e. simply the full screen) and
// applies it, restoring the taskbar.
func (p *platformController) ResetToScreen(handle uintptr) error {
	w, h := screenExtent()
	if err := p.ApplyTransform(handle, int(w), int(h), true, false); err != nil {
		return err
	}
	restoreShellTray()
	return nil
}

func restoreShellTray() {
	tray, _, _ := procFindWindowW.Call(
		uintptr(unsafe.Pointer(utf16Ptr("Shell_TrayWnd"))), 0,
	)
	if tray == 0 {
		return
	}
	procSetWindowPos.Call(tray, hwndTop, 0, 0, 0, 0, swpNoMove|swpNoSize|swpNoActivate)
}

// ToggleBorderless flips the window between framed and popup style in
// place, keeping its outer position and size.
func (p *platformController) ToggleBorderless(handle uintptr) (StyleClass, error) {
	if handle == 0 {
		return Framed, fmt.Errorf("%w: nil window handle", corepkg.ErrPrecondition)
	}
	var wr rawRect
	if ret, _, _ := procGetClientRect.Call(handle, uintptr(unsafe.Pointer(&wr))); ret == 0 {
		return Framed, fmt.Errorf("%w: GetClientRect failed", corepkg.ErrResourceCreate)
	}
	styleU, _, _ := procGetWindowLongW.Call(handle, uintptr(gwlStyle))
	style := uint32(styleU)

	next := Framed
	if style&wsPopup == 0 {
		next = Borderless
		style = (style &^ wsOverlappedWindow) | wsPopup
	} else {
		style = (style &^ wsPopup) | wsOverlappedWindow
	}
	procSetWindowLongW.Call(handle, uintptr(gwlStyle), uintptr(style))
	if ret, _, _ := procSetWindowPos.Call(handle, 0, 0, 0, 0, 0,
		swpNoMove|swpNoSize|swpNoZOrder|swpNoActivate|swpFrameChanged); ret == 0 {
		return Framed, fmt.Errorf("%w: SetWindowPos failed", corepkg.ErrResourceCreate)
	}
	return next, nil
}

func (t Target) String() string {
	return fmt.Sprintf("Target{%q %dx%d}", t.Title, t.Rect.Width(), t.Rect.Height())
}
