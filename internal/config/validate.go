package config

import (
	"fmt"
	"strconv"
	"strings"
)

// ValidationResult separates fatal misconfiguration (blocks startup) from
// warnings (logged, auto-corrected in place).
type ValidationResult struct {
	Fatals   []error
	Warnings []error
}

func (r ValidationResult) HasFatals() bool { return len(r.Fatals) > 0 }

// AllErrors concatenates fatals and warnings for callers that just want
// everything that was wrong.
func (r ValidationResult) AllErrors() []error {
	all := make([]error, 0, len(r.Fatals)+len(r.Warnings))
	all = append(all, r.Fatals...)
	all = append(all, r.Warnings...)
	return all
}

var validLogLevels = map[string]bool{"debug": true, "info": true, "warn": true, "warning": true, "error": true}
var validLogFormats = map[string]bool{"text": true, "json": true}
var validCodecs = map[string]bool{"h264": true, "h265": true}
var validRateControls = map[string]bool{"cbr": true, "vbr": true, "quality": true}
var validAudioSources = map[string]bool{"none": true, "system": true, "microphone": true}

// ValidateTiered checks Settings for invalid values. Values that would
// produce a nonsensical or zero-division result (recording/replay codec and
// FPS, ratio num/den, tier pixel budgets) are fatal; everything else is
// clamped to a safe default (bitrate, for one) or left as is and recorded
// as a warning, matching the teacher's "fatals block startup, warnings
// continue" split.
func (s *Settings) ValidateTiered() ValidationResult {
	var r ValidationResult

	if len(s.Ratios) == 0 {
		r.Fatals = append(r.Fatals, fmt.Errorf("ratios: at least one preset is required"))
	}
	for _, ratio := range s.Ratios {
		if ratio.Num <= 0 || ratio.Den <= 0 {
			r.Fatals = append(r.Fatals, fmt.Errorf("ratio %q: num/den must be positive, got %d:%d", ratio.Name, ratio.Num, ratio.Den))
		}
	}
	for _, tier := range s.ResolutionTiers {
		if tier.PixelBudget <= 0 {
			r.Fatals = append(r.Fatals, fmt.Errorf("resolution tier %q: pixel_budget must be positive", tier.Name))
		}
	}

	r.validateRecording(&s.Recording)
	r.validateReplay(&s.Replay)

	if s.ScreenshotFormat != "" && s.ScreenshotFormat != "png" && s.ScreenshotFormat != "jpeg" {
		r.Warnings = append(r.Warnings, fmt.Errorf("screenshot_format %q is not valid (use png or jpeg), defaulting to png", s.ScreenshotFormat))
		s.ScreenshotFormat = "png"
	}
	if s.ScreenshotQuality < 1 || s.ScreenshotQuality > 100 {
		r.Warnings = append(r.Warnings, fmt.Errorf("screenshot_quality %d out of range 1-100, clamping to 90", s.ScreenshotQuality))
		s.ScreenshotQuality = 90
	}

	if s.LogLevel != "" && !validLogLevels[strings.ToLower(s.LogLevel)] {
		r.Warnings = append(r.Warnings, fmt.Errorf("log_level %q is not valid (use debug, info, warn, error)", s.LogLevel))
	}
	if s.LogFormat != "" && !validLogFormats[s.LogFormat] {
		r.Warnings = append(r.Warnings, fmt.Errorf("log_format %q is not valid (use text or json)", s.LogFormat))
	}

	return r
}

func (r *ValidationResult) validateRecording(rs *RecordingSettings) {
	if !validCodecs[rs.Codec] {
		r.Fatals = append(r.Fatals, fmt.Errorf("recording.codec %q must be h264 or h265", rs.Codec))
	}
	if rs.FPS < 1 {
		r.Fatals = append(r.Fatals, fmt.Errorf("recording.fps %d must be positive", rs.FPS))
	} else if rs.FPS > 240 {
		r.Warnings = append(r.Warnings, fmt.Errorf("recording.fps %d exceeds 240, clamping", rs.FPS))
		rs.FPS = 240
	}
	if rs.BitrateKbps < 500 {
		r.Warnings = append(r.Warnings, fmt.Errorf("recording.bitrate_kbps %d below minimum 500, clamping", rs.BitrateKbps))
		rs.BitrateKbps = 500
	}
	if rs.RateControl != "" && !validRateControls[rs.RateControl] {
		r.Warnings = append(r.Warnings, fmt.Errorf("recording.rate_control %q is not valid, defaulting to cbr", rs.RateControl))
		rs.RateControl = "cbr"
	}
	if rs.AudioSource != "" && !validAudioSources[rs.AudioSource] {
		r.Warnings = append(r.Warnings, fmt.Errorf("recording.audio_source %q is not valid, defaulting to none", rs.AudioSource))
		rs.AudioSource = "none"
	}
}

func (r *ValidationResult) validateReplay(rs *ReplaySettings) {
	if !validCodecs[rs.Codec] {
		r.Fatals = append(r.Fatals, fmt.Errorf("replay.codec %q must be h264 or h265", rs.Codec))
	}
	if rs.FPS < 1 {
		r.Fatals = append(r.Fatals, fmt.Errorf("replay.fps %d must be positive", rs.FPS))
	}
	if rs.DurationSeconds < 1 {
		r.Warnings = append(r.Warnings, fmt.Errorf("replay.duration_seconds %d below minimum 1, clamping", rs.DurationSeconds))
		rs.DurationSeconds = 1
	}
	if _, err := ParseByteSize(rs.FileSizeLimit); err != nil {
		r.Warnings = append(r.Warnings, fmt.Errorf("replay.file_size_limit %q invalid (%v), defaulting to 2GB", rs.FileSizeLimit, err))
		rs.FileSizeLimit = "2GB"
	}
	if rs.MotionPhoto.Codec != "" && !validCodecs[rs.MotionPhoto.Codec] {
		r.Warnings = append(r.Warnings, fmt.Errorf("replay.motion_photo.codec %q must be h264 or h265, defaulting to h264", rs.MotionPhoto.Codec))
		rs.MotionPhoto.Codec = "h264"
	}
	if rs.MotionPhoto.DurationSeconds < 1 {
		r.Warnings = append(r.Warnings, fmt.Errorf("replay.motion_photo.duration_seconds %d below minimum 1, clamping", rs.MotionPhoto.DurationSeconds))
		rs.MotionPhoto.DurationSeconds = 1
	}
}

// ParseByteSize parses strings like "512MB", "2GB", "1.5GB", or a bare byte
// count, hand-rolled rather than pulling in a dedicated humanize dependency
// for one conversion used in exactly one settings field.
func ParseByteSize(s string) (int64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("empty byte size")
	}
	units := []struct {
		suffix string
		mult   float64
	}{
		{"TB", 1 << 40},
		{"GB", 1 << 30},
		{"MB", 1 << 20},
		{"KB", 1 << 10},
		{"B", 1},
	}
	upper := strings.ToUpper(s)
	for _, u := range units {
		if strings.HasSuffix(upper, u.suffix) {
			numPart := strings.TrimSpace(s[:len(s)-len(u.suffix)])
			val, err := strconv.ParseFloat(numPart, 64)
			if err != nil {
				return 0, fmt.Errorf("parse numeric part of %q: %w", s, err)
			}
			if val < 0 {
				return 0, fmt.Errorf("byte size %q must not be negative", s)
			}
			return int64(val * u.mult), nil
		}
	}
	val, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("unrecognized byte size %q", s)
	}
	return val, nil
}
