// Package facade is the single external command surface consumed by the
// out-of-scope RPC/UI layer. It owns no transport of its own; it sequences
// the windowctl/capture/overlay/preview/fanout/recorder/replay/screenshot
// components behind the small command set the UI drives, and owns the
// explicit {Idle, PreparingTransform, Transforming, PostTransform} state
// machine that couples "freeze during resize" across those components.
package facade

import (
	"fmt"
	"sync"
	"time"

	"github.com/breeze-rmm/spinningmomo-core/internal/capture"
	"github.com/breeze-rmm/spinningmomo-core/internal/config"
	"github.com/breeze-rmm/spinningmomo-core/internal/corepkg"
	"github.com/breeze-rmm/spinningmomo-core/internal/fanout"
	"github.com/breeze-rmm/spinningmomo-core/internal/logging"
	"github.com/breeze-rmm/spinningmomo-core/internal/overlay"
	"github.com/breeze-rmm/spinningmomo-core/internal/preview"
	"github.com/breeze-rmm/spinningmomo-core/internal/recorder"
	"github.com/breeze-rmm/spinningmomo-core/internal/replay"
	"github.com/breeze-rmm/spinningmomo-core/internal/screenshot"
	"github.com/breeze-rmm/spinningmomo-core/internal/windowctl"
)

var log = logging.L("facade")

// TransformState is the explicit state machine that couples overlay
// freeze/unfreeze/stop to a window transform in progress. Components
// underneath never see this type; they only ever receive Freeze/Unfreeze/
// Stop calls driven by its transitions.
type TransformState int

const (
	Idle TransformState = iota
	PreparingTransform
	Transforming
	PostTransform
)

func (s TransformState) String() string {
	switch s {
	case PreparingTransform:
		return "preparing_transform"
	case Transforming:
		return "transforming"
	case PostTransform:
		return "post_transform"
	default:
		return "idle"
	}
}

// Capabilities mirrors capture.HostCapabilities for consumers that don't
// want to depend on the capture package directly.
type Capabilities struct {
	CaptureSupported          bool
	CursorCaptureControllable bool
	BorderControllable        bool
}

// Commands is the full external command surface, one method per UI
// command. Every command except Capabilities returns an error (nil on ok),
// some alongside a result.
type Commands interface {
	Capabilities() Capabilities

	StartPreview() error
	StopPreview() error
	SetLetterbox(on bool) error

	StartRecording() error
	StopRecording() (recorder.Result, error)

	ToggleMotionPhoto(on bool) error
	ToggleReplayBuffer(on bool) error
	SaveReplay(window time.Duration) (string, error)

	TakeScreenshot() (screenshot.Result, error)

	ApplyRatio(ratioName string) error
	ApplyResolution(tierName string) error
	ResetWindow() error
}

// Facade wires every component behind Commands. Exactly one Facade exists
// per process; its target window is set once at construction and
// re-acquired by title on every transform, mirroring the original tool's
// "never cache a handle across a resize" behavior.
type Facade struct {
	mu       sync.Mutex
	settings *config.Settings
	windows  windowctl.Controller

	target windowctl.Target
	state  TransformState

	fan      *fanout.Fanout
	overlay  overlay.View
	preview  preview.View
	rec      recorder.VideoRecorder
	replayer replay.Buffer
	shots    screenshot.Encoder

	overlayActive     bool
	previewActive     bool
	recordingActive   bool
	replayRunning     bool
	motionPhotoWanted bool
	replayWanted      bool
	letterboxWanted   bool
}

// New constructs a Facade bound to the window named by
// settings.TargetWindowTitle. The window must already exist.
func New(settings *config.Settings) (*Facade, error) {
	wc := windowctl.New()
	target, err := wc.FindByTitle(settings.TargetWindowTitle)
	if err != nil {
		return nil, err
	}
	return &Facade{
		settings: settings,
		windows:  wc,
		target:   target,
		state:    Idle,
		rec:      recorder.New(),
		replayer: replay.New(),
		shots:    screenshot.New(),
	}, nil
}

func (f *Facade) Capabilities() Capabilities {
	c := capture.QueryHostCapabilities()
	return Capabilities{
		CaptureSupported:          c.CaptureSupported,
		CursorCaptureControllable: c.CursorCaptureControllable,
		BorderControllable:        c.BorderControllable,
	}
}

// ensureFanout lazily creates the shared capture session the first time
// any background consumer (overlay, preview, recorder, replay) needs one,
// so a pure take-screenshot session never pays for it.
func (f *Facade) ensureFanout() (*fanout.Fanout, error) {
	if f.fan != nil {
		return f.fan, nil
	}
	fan, err := fanout.New(capture.Config{TargetHandle: f.target.Handle, Capacity: 2})
	if err != nil {
		return nil, fmt.Errorf("create capture fanout: %w", err)
	}
	f.fan = fan
	return fan, nil
}

// showOverlayLocked creates (if needed) and shows the full-screen overlay
// against the current target rectangle. Caller holds f.mu.
func (f *Facade) showOverlayLocked() error {
	fan, err := f.ensureFanout()
	if err != nil {
		return err
	}
	if f.overlay == nil {
		f.overlay = overlay.New()
	}
	geom := overlay.Geometry{Source: f.target.Rect, Letterbox: f.letterboxWanted}
	if err := f.overlay.Show(fan.Session(), geom); err != nil {
		return fmt.Errorf("show overlay: %w", err)
	}
	f.overlayActive = true
	return nil
}

// StartPreview shows the small movable thumbnail window with the
// viewport indicator overlay.
func (f *Facade) StartPreview() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.previewActive {
		return nil
	}
	fan, err := f.ensureFanout()
	if err != nil {
		return err
	}
	f.preview = preview.New()
	geom := preview.Geometry{WindowRect: f.target.Rect, Viewport: fan.Session().Rect()}
	if err := f.preview.Show(fan.Session(), geom); err != nil {
		return fmt.Errorf("start preview: %w", err)
	}
	f.previewActive = true
	log.Info("preview started", "target", f.target.Title)
	return nil
}

func (f *Facade) StopPreview() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.previewActive {
		return nil
	}
	err := f.preview.Hide()
	f.previewActive = false
	return err
}

// SetLetterbox records the desired presentation mode and applies it
// immediately if the overlay is already running; otherwise it takes
// effect the next time the overlay is shown by a transform.
func (f *Facade) SetLetterbox(on bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.letterboxWanted = on
	if f.overlayActive {
		f.overlay.SetLetterbox(on)
	}
	return nil
}

func (f *Facade) StartRecording() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.recordingActive {
		return fmt.Errorf("%w: recording already active", corepkg.ErrFeatureConflict)
	}
	fan, err := f.ensureFanout()
	if err != nil {
		return err
	}
	if err := fan.BeginRecording(); err != nil {
		return err
	}
	cfg := recorder.Config{
		Codec:            codecFromName(f.settings.Recording.Codec),
		FPS:              f.settings.Recording.FPS,
		BitrateKbps:      f.settings.Recording.BitrateKbps,
		RateControl:      rateControlFromName(f.settings.Recording.RateControl),
		Quality:          f.settings.Recording.Quality,
		AudioSource:      audioSourceFromName(f.settings.Recording.AudioSource),
		AudioBitrateKbps: f.settings.Recording.AudioBitrateKbps,
		OutputDir:        f.settings.Recording.OutputDir,
	}
	if err := f.rec.Start(cfg); err != nil {
		fan.EndRecording()
		return fmt.Errorf("start recording: %w", err)
	}
	fan.Attach(fanout.ConsumerRecorder, func(frm capture.Frame) {
		f.rec.PostFrame(frm.Pixels, frm.Width, frm.Height, frm.Stride)
	})
	f.recordingActive = true
	log.Info("recording started")
	return nil
}

func (f *Facade) StopRecording() (recorder.Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.recordingActive {
		return recorder.Result{}, fmt.Errorf("%w: recording is not active", corepkg.ErrPrecondition)
	}
	f.fan.Detach(fanout.ConsumerRecorder)
	result, err := f.rec.Stop()
	f.fan.EndRecording()
	f.recordingActive = false
	return result, err
}

// ToggleMotionPhoto and ToggleReplayBuffer both gate the same underlying
// replay buffer: it runs whenever either feature wants it, and stops only
// once both are off.
func (f *Facade) ToggleMotionPhoto(on bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.motionPhotoWanted = on
	return f.reconcileReplayBufferLocked()
}

func (f *Facade) ToggleReplayBuffer(on bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.replayWanted = on
	return f.reconcileReplayBufferLocked()
}

func (f *Facade) reconcileReplayBufferLocked() error {
	want := f.motionPhotoWanted || f.replayWanted
	if want == f.replayRunning {
		return nil
	}
	if want {
		fan, err := f.ensureFanout()
		if err != nil {
			return err
		}
		if err := fan.BeginReplay(); err != nil {
			return err
		}
		cfg := replay.Config{
			Codec:              f.settings.Replay.Codec,
			FPS:                f.settings.Replay.FPS,
			BitrateKbps:        f.settings.Replay.BitrateKbps,
			AudioSource:        f.settings.Replay.AudioSource,
			AudioBitrateKbps:   f.settings.Replay.AudioBitrateKbps,
			DurationSeconds:    f.settings.Replay.DurationSeconds,
			FileSizeLimitBytes: mustByteSize(f.settings.Replay),
			BufferDir:          f.settings.Replay.BufferDir,
		}
		if err := f.replayer.Start(cfg); err != nil {
			fan.EndReplay()
			return fmt.Errorf("start replay buffer: %w", err)
		}
		fan.Attach(fanout.ConsumerReplay, func(frm capture.Frame) {
			f.replayer.PostFrame(frm.Pixels, frm.Width, frm.Height, frm.Stride)
		})
		f.replayRunning = true
		return nil
	}
	f.fan.Detach(fanout.ConsumerReplay)
	err := f.replayer.Stop()
	f.fan.EndReplay()
	f.replayRunning = false
	return err
}

func mustByteSize(rs config.ReplaySettings) int64 {
	n, err := rs.ByteSizeBytes()
	if err != nil {
		return 2 << 30
	}
	return n
}

func (f *Facade) SaveReplay(window time.Duration) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.replayRunning {
		return "", fmt.Errorf("%w: replay buffer is not active", corepkg.ErrPrecondition)
	}
	dir := f.settings.Replay.BufferDir
	return f.replayer.SaveReplay(dir, window)
}

func (f *Facade) TakeScreenshot() (screenshot.Result, error) {
	f.mu.Lock()
	dir, err := f.settings.ScreenshotDir()
	target := f.target
	f.mu.Unlock()
	if err != nil {
		return screenshot.Result{}, fmt.Errorf("resolve screenshot directory: %w", err)
	}
	req := screenshot.Request{
		TargetHandle: target.Handle,
		Format:       screenshotFormatFromName(f.settings.ScreenshotFormat),
		JPEGQuality:  f.settings.ScreenshotQuality,
		Directory:    dir,
	}
	return f.shots.Capture(req, nil)
}

// ApplyRatio computes the target dimensions for ratioName at the target's
// current total pixel count, then applies them.
func (f *Facade) ApplyRatio(ratioName string) error {
	ratio, ok := findRatio(f.settings.Ratios, ratioName)
	if !ok {
		return fmt.Errorf("%w: unknown ratio %q", corepkg.ErrInvalidArgument, ratioName)
	}
	f.mu.Lock()
	currentPixels := int64(f.target.Rect.Width()) * int64(f.target.Rect.Height())
	f.mu.Unlock()
	tier := config.ResolutionTier{Name: "current", PixelBudget: currentPixels}
	w, h := config.ResolveDimensions(ratio, tier)
	return f.applyTransform(w, h)
}

// ApplyResolution applies the target's own current aspect rendered at
// tierName's pixel budget.
func (f *Facade) ApplyResolution(tierName string) error {
	tier, ok := findTier(f.settings.ResolutionTiers, tierName)
	if !ok {
		return fmt.Errorf("%w: unknown resolution tier %q", corepkg.ErrInvalidArgument, tierName)
	}
	f.mu.Lock()
	rect := f.target.Rect
	f.mu.Unlock()
	ratio := config.RatioPreset{Name: "current", Num: int(rect.Width()), Den: int(rect.Height())}
	w, h := config.ResolveDimensions(ratio, tier)
	return f.applyTransform(w, h)
}

// applyTransform carries the Idle -> PreparingTransform -> Transforming ->
// PostTransform -> Idle sequence: freeze the overlay (if running) before
// the resize, apply it, wait briefly for the compositor to settle, then
// either show the overlay (oversized result), unfreeze it (still
// oversized and already showing), or stop it (fits the screen again).
func (f *Facade) applyTransform(width, height int) error {
	f.mu.Lock()
	f.state = PreparingTransform
	wasOverlayActive := f.overlayActive
	if wasOverlayActive {
		f.overlay.Freeze()
	}
	f.state = Transforming
	handle := f.target.Handle
	lowerTaskbar := f.settings.LowerTaskbarOnResize
	f.mu.Unlock()

	err := f.windows.ApplyTransform(handle, width, height, false, lowerTaskbar)

	f.mu.Lock()
	defer f.mu.Unlock()
	f.state = PostTransform
	if err == nil {
		if updated, findErr := f.windows.FindByTitle(f.target.Title); findErr == nil {
			f.target = updated
		}
	}

	time.Sleep(400 * time.Millisecond)
	oversized := f.target.Style&0x80000000 != 0 // WS_POPUP, set by ApplyTransform for windowctl.Borderless

	switch {
	case oversized && !f.overlayActive:
		if showErr := f.showOverlayLocked(); showErr != nil {
			log.Warn("overlay failed to start after transform", "error", showErr)
		}
	case oversized && wasOverlayActive:
		f.overlay.Unfreeze()
	case !oversized && wasOverlayActive:
		f.overlay.Hide()
		f.overlayActive = false
	}
	f.state = Idle
	return err
}

// ResetWindow restores the target to a size fitting the primary monitor
// at the screen's native aspect ratio, stopping the overlay if it is no
// longer needed.
func (f *Facade) ResetWindow() error {
	f.mu.Lock()
	handle := f.target.Handle
	f.mu.Unlock()
	if err := f.windows.ResetToScreen(handle); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if updated, err := f.windows.FindByTitle(f.target.Title); err == nil {
		f.target = updated
	}
	if f.overlayActive {
		f.overlay.Hide()
		f.overlayActive = false
	}
	return nil
}

func findRatio(ratios []config.RatioPreset, name string) (config.RatioPreset, bool) {
	for _, r := range ratios {
		if r.Name == name {
			return r, true
		}
	}
	return config.RatioPreset{}, false
}

func findTier(tiers []config.ResolutionTier, name string) (config.ResolutionTier, bool) {
	for _, t := range tiers {
		if t.Name == name {
			return t, true
		}
	}
	return config.ResolutionTier{}, false
}

func codecFromName(s string) recorder.Codec {
	if s == "h265" {
		return recorder.CodecH265
	}
	return recorder.CodecH264
}

func rateControlFromName(s string) recorder.RateControlMode {
	switch s {
	case "vbr":
		return recorder.RateControlVBR
	case "quality":
		return recorder.RateControlQuality
	default:
		return recorder.RateControlCBR
	}
}

func audioSourceFromName(s string) recorder.AudioSource {
	switch s {
	case "microphone":
		return recorder.AudioSourceMicrophone
	case "system":
		return recorder.AudioSourceSystem
	default:
		return recorder.AudioSourceNone
	}
}

func screenshotFormatFromName(s string) screenshot.ImageFormat {
	if s == "jpeg" {
		return screenshot.FormatJPEG
	}
	return screenshot.FormatPNG
}
