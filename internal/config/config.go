// Package config loads and validates the settings that drive window
// targeting, capture, recording, instant replay, and screenshot behavior,
// the same viper-backed layered way the teacher loads its agent config:
// defaults, then a YAML file, then environment overrides.
package config

import (
	"fmt"
	"math"
	"os"
	"path/filepath"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/breeze-rmm/spinningmomo-core/internal/corepkg"
	"github.com/breeze-rmm/spinningmomo-core/internal/logging"
)

var log = logging.L("config")

// RatioPreset names one selectable aspect ratio, e.g. "21:9" → {21, 9}.
type RatioPreset struct {
	Name string `mapstructure:"name" yaml:"name"`
	Num  int    `mapstructure:"num" yaml:"num"`
	Den  int    `mapstructure:"den" yaml:"den"`
}

// ResolutionTier is one fixed pixel-count budget a ratio can be rendered
// at — "2K"/"4K"/"5K"/"6K"/"8K" in the original tool. ApplyResolution picks
// the tier whose PixelBudget is requested and fits the chosen ratio's
// aspect to it.
type ResolutionTier struct {
	Name        string `mapstructure:"name" yaml:"name"`
	PixelBudget int64  `mapstructure:"pixel_budget" yaml:"pixel_budget"`
}

// DefaultResolutionTiers mirrors the original tool's fixed pixel-count
// ladder: each tier is the approximate total-pixel budget of the named
// display class, not a single fixed WxH (an entry's actual width/height is
// derived per ratio by ResolveDimensions).
var DefaultResolutionTiers = []ResolutionTier{
	{Name: "2K", PixelBudget: 2_560 * 1_440},
	{Name: "4K", PixelBudget: 3_840 * 2_160},
	{Name: "5K", PixelBudget: 5_120 * 2_880},
	{Name: "6K", PixelBudget: 6_144 * 3_456},
	{Name: "8K", PixelBudget: 7_680 * 4_320},
}

// DefaultRatios mirrors the original tool's preset ratio list.
var DefaultRatios = []RatioPreset{
	{Name: "16:9", Num: 16, Den: 9},
	{Name: "21:9", Num: 21, Den: 9},
	{Name: "32:9", Num: 32, Den: 9},
	{Name: "4:3", Num: 4, Den: 3},
	{Name: "1:1", Num: 1, Den: 1},
}

// RecordingSettings configures VideoRecorder.Start.
type RecordingSettings struct {
	Codec            string `mapstructure:"codec" yaml:"codec"` // "h264" or "h265"
	FPS              int    `mapstructure:"fps" yaml:"fps"`
	BitrateKbps      int    `mapstructure:"bitrate_kbps" yaml:"bitrate_kbps"`
	RateControl      string `mapstructure:"rate_control" yaml:"rate_control"` // "cbr", "vbr", "quality"
	Quality          int    `mapstructure:"quality" yaml:"quality"`
	AudioSource      string `mapstructure:"audio_source" yaml:"audio_source"` // "none", "system", "microphone"
	AudioBitrateKbps int    `mapstructure:"audio_bitrate_kbps" yaml:"audio_bitrate_kbps"`
	OutputDir        string `mapstructure:"output_dir" yaml:"output_dir"`
}

// MotionPhotoSettings configures ReplayBuffer.CreateMotionPhoto, kept
// independent of ReplaySettings since the original tool deliberately runs
// the motion-photo clip at a lower resolution/bitrate than the main replay
// buffer to keep file sizes small.
type MotionPhotoSettings struct {
	FPS             int    `mapstructure:"fps" yaml:"fps"`
	BitrateKbps     int    `mapstructure:"bitrate_kbps" yaml:"bitrate_kbps"`
	Codec           string `mapstructure:"codec" yaml:"codec"`
	DurationSeconds int    `mapstructure:"duration_seconds" yaml:"duration_seconds"`
	MaxWidth        int    `mapstructure:"max_width" yaml:"max_width"`
	MaxHeight       int    `mapstructure:"max_height" yaml:"max_height"`
}

// ReplaySettings configures ReplayBuffer.Start.
type ReplaySettings struct {
	Codec            string              `mapstructure:"codec" yaml:"codec"`
	FPS              int                 `mapstructure:"fps" yaml:"fps"`
	BitrateKbps      int                 `mapstructure:"bitrate_kbps" yaml:"bitrate_kbps"`
	AudioSource      string              `mapstructure:"audio_source" yaml:"audio_source"`
	AudioBitrateKbps int                 `mapstructure:"audio_bitrate_kbps" yaml:"audio_bitrate_kbps"`
	DurationSeconds  int                 `mapstructure:"duration_seconds" yaml:"duration_seconds"`
	FileSizeLimit    string              `mapstructure:"file_size_limit" yaml:"file_size_limit"` // e.g. "2GB", parsed by ParseByteSize
	BufferDir        string              `mapstructure:"buffer_dir" yaml:"buffer_dir"`
	MotionPhoto      MotionPhotoSettings `mapstructure:"motion_photo" yaml:"motion_photo"`
}

// Settings is the full set of knobs the facade reads to drive every
// component. Zero-value Settings is invalid; use Default() or Load().
type Settings struct {
	TargetWindowTitle    string           `mapstructure:"target_window_title" yaml:"target_window_title"`
	Ratios               []RatioPreset    `mapstructure:"ratios" yaml:"ratios"`
	ResolutionTiers      []ResolutionTier `mapstructure:"resolution_tiers" yaml:"resolution_tiers"`
	LowerTaskbarOnResize bool             `mapstructure:"lower_taskbar_on_resize" yaml:"lower_taskbar_on_resize"`
	MouseFollowPan       bool             `mapstructure:"mouse_follow_pan" yaml:"mouse_follow_pan"`

	Recording RecordingSettings `mapstructure:"recording" yaml:"recording"`
	Replay    ReplaySettings    `mapstructure:"replay" yaml:"replay"`

	// ScreenshotDirectory, when empty, falls back to the running
	// executable's own folder — see ScreenshotDir().
	ScreenshotDirectory string `mapstructure:"screenshot_directory" yaml:"screenshot_directory"`
	ScreenshotFormat    string `mapstructure:"screenshot_format" yaml:"screenshot_format"` // "png" or "jpeg"
	ScreenshotQuality   int    `mapstructure:"screenshot_quality" yaml:"screenshot_quality"`

	LogLevel  string `mapstructure:"log_level" yaml:"log_level"`
	LogFormat string `mapstructure:"log_format" yaml:"log_format"`
	// LogFile, when set, tees logging output to a size-rotated file in
	// addition to stdout; empty means stdout only.
	LogFile        string `mapstructure:"log_file" yaml:"log_file"`
	LogMaxSizeMB   int    `mapstructure:"log_max_size_mb" yaml:"log_max_size_mb"`
	LogMaxBackups  int    `mapstructure:"log_max_backups" yaml:"log_max_backups"`
}

// Default returns the settings the original tool ships with out of the box.
func Default() *Settings {
	return &Settings{
		Ratios:               DefaultRatios,
		ResolutionTiers:      DefaultResolutionTiers,
		LowerTaskbarOnResize: true,
		MouseFollowPan:       false,

		Recording: RecordingSettings{
			Codec:            "h264",
			FPS:              60,
			BitrateKbps:      20_000,
			RateControl:      "cbr",
			AudioSource:      "system",
			AudioBitrateKbps: 160,
			OutputDir:        "recordings",
		},
		Replay: ReplaySettings{
			Codec:            "h264",
			FPS:              60,
			BitrateKbps:      20_000,
			AudioSource:      "system",
			AudioBitrateKbps: 160,
			DurationSeconds:  30,
			FileSizeLimit:    "2GB",
			BufferDir:        "replay",
			MotionPhoto: MotionPhotoSettings{
				FPS:             30,
				BitrateKbps:     6_000,
				Codec:           "h264",
				DurationSeconds: 3,
				MaxWidth:        1920,
				MaxHeight:       1080,
			},
		},

		ScreenshotFormat:  "png",
		ScreenshotQuality: 90,
		LogLevel:          "info",
		LogFormat:         "text",
		LogMaxSizeMB:      50,
		LogMaxBackups:     3,
	}
}

// Load reads cfgFile (or "spinningmomo.yaml" in the working directory and
// the executable's folder when cfgFile is empty), overlays environment
// variables prefixed SPINNINGMOMO_, validates the merged result, and
// returns it. Fatal validation errors block startup; warnings are logged
// and the offending field is clamped to a safe value.
func Load(cfgFile string) (*Settings, error) {
	settings := Default()

	v := viper.New()
	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.SetConfigName("spinningmomo")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if dir, err := exeDir(); err == nil {
			v.AddConfigPath(dir)
		}
	}
	v.AutomaticEnv()
	v.SetEnvPrefix("SPINNINGMOMO")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}
	if err := v.Unmarshal(settings); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	result := settings.ValidateTiered()
	for _, w := range result.Warnings {
		log.Warn("config validation", "error", w)
	}
	if result.HasFatals() {
		for _, f := range result.Fatals {
			log.Error("config validation fatal", "error", f)
		}
		return nil, fmt.Errorf("config has fatal validation errors: %v", result.Fatals[0])
	}
	return settings, nil
}

// ScreenshotDir returns ScreenshotDirectory, falling back to the directory
// containing the running executable when unset — the original tool's
// "always somewhere sensible, never a failed write" default.
func (s *Settings) ScreenshotDir() (string, error) {
	if s.ScreenshotDirectory != "" {
		return s.ScreenshotDirectory, nil
	}
	return exeDir()
}

// Save writes settings to path as YAML, for "dump a starting config" tooling
// (viper itself has no write-back path for a struct it didn't read from a
// map, so saving uses yaml.v3 directly, matching how the settings file is
// read back on the next Load).
func Save(settings *Settings, path string) error {
	data, err := yaml.Marshal(settings)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil && filepath.Dir(path) != "." {
		return fmt.Errorf("create config directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write config file: %w", err)
	}
	return nil
}

func exeDir() (string, error) {
	exe, err := os.Executable()
	if err != nil {
		return "", err
	}
	return filepath.Dir(exe), nil
}

// ByteSizeBytes parses ReplaySettings.FileSizeLimit into a byte count.
func (r ReplaySettings) ByteSizeBytes() (int64, error) {
	return ParseByteSize(r.FileSizeLimit)
}

// ResolveDimensions fits ratio's aspect into tier's pixel budget: width is
// solved from width*height == budget and width/height == num/den, then
// both dimensions are floored to even, matching the teacher's
// windowctl.Transform invariant that every placed rectangle has even
// width and height.
func ResolveDimensions(ratio RatioPreset, tier ResolutionTier) (width, height int) {
	if ratio.Den == 0 {
		return 0, 0
	}
	aspect := float64(ratio.Num) / float64(ratio.Den)
	h := int(math.Sqrt(float64(tier.PixelBudget) / aspect))
	w := int(float64(h) * aspect)
	return corepkg.EvenFloor(w), corepkg.EvenFloor(h)
}
