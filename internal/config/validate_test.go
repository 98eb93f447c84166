package config

import (
	"fmt"
	"strings"
	"testing"
)

func TestValidateTieredBadCodecIsFatal(t *testing.T) {
	s := Default()
	s.Recording.Codec = "vp9"
	result := s.ValidateTiered()
	if !result.HasFatals() {
		t.Fatal("invalid recording codec should be fatal")
	}
}

func TestValidateTieredBadRatioIsFatal(t *testing.T) {
	s := Default()
	s.Ratios = []RatioPreset{{Name: "broken", Num: 0, Den: 9}}
	result := s.ValidateTiered()
	if !result.HasFatals() {
		t.Fatal("zero numerator ratio should be fatal")
	}
}

func TestValidateTieredZeroFPSIsFatal(t *testing.T) {
	s := Default()
	s.Recording.FPS = 0
	result := s.ValidateTiered()
	if !result.HasFatals() {
		t.Fatal("zero recording fps should be fatal")
	}
}

func TestValidateTieredHighFPSClampingIsWarning(t *testing.T) {
	s := Default()
	s.Recording.FPS = 1000
	result := s.ValidateTiered()
	if result.HasFatals() {
		t.Fatalf("clamped fps should be warning, not fatal: %v", result.Fatals)
	}
	if s.Recording.FPS != 240 {
		t.Fatalf("Recording.FPS = %d, want 240 (clamped)", s.Recording.FPS)
	}
}

func TestValidateTieredLowBitrateClampingIsWarning(t *testing.T) {
	s := Default()
	s.Recording.BitrateKbps = 10
	result := s.ValidateTiered()
	if result.HasFatals() {
		t.Fatalf("clamped bitrate should be warning: %v", result.Fatals)
	}
	if s.Recording.BitrateKbps != 500 {
		t.Fatalf("Recording.BitrateKbps = %d, want 500", s.Recording.BitrateKbps)
	}
}

func TestValidateTieredBadFileSizeLimitIsWarning(t *testing.T) {
	s := Default()
	s.Replay.FileSizeLimit = "not-a-size"
	result := s.ValidateTiered()
	if result.HasFatals() {
		t.Fatal("bad file size limit should not be fatal")
	}
	if s.Replay.FileSizeLimit != "2GB" {
		t.Fatalf("FileSizeLimit = %q, want reset to 2GB", s.Replay.FileSizeLimit)
	}
}

func TestValidateTieredUnknownLogLevelIsWarning(t *testing.T) {
	s := Default()
	s.LogLevel = "verbose"
	result := s.ValidateTiered()
	if result.HasFatals() {
		t.Fatal("unknown log level should not be fatal")
	}
	if len(result.Warnings) == 0 {
		t.Fatal("expected warning for unknown log level")
	}
}

func TestValidateTieredInvalidScreenshotFormatIsWarning(t *testing.T) {
	s := Default()
	s.ScreenshotFormat = "bmp"
	result := s.ValidateTiered()
	if result.HasFatals() {
		t.Fatal("invalid screenshot format should not be fatal")
	}
	if s.ScreenshotFormat != "png" {
		t.Fatalf("ScreenshotFormat = %q, want reset to png", s.ScreenshotFormat)
	}
}

func TestHasFatals(t *testing.T) {
	r := ValidationResult{}
	if r.HasFatals() {
		t.Fatal("HasFatals() on empty result should be false")
	}
	r.Fatals = append(r.Fatals, fmt.Errorf("test error"))
	if !r.HasFatals() {
		t.Fatal("HasFatals() should be true with a fatal error")
	}
}

func TestAllErrorsReturnsBoth(t *testing.T) {
	s := Default()
	s.Recording.Codec = "vp9"        // fatal
	s.LogLevel = "verbose"           // warning
	result := s.ValidateTiered()

	all := result.AllErrors()
	if len(all) < 2 {
		t.Fatalf("AllErrors() returned %d errors, expected at least 2 (fatals + warnings)", len(all))
	}
}

func TestValidSettingsHaveNoErrors(t *testing.T) {
	s := Default()
	result := s.ValidateTiered()
	if result.HasFatals() {
		t.Fatalf("default settings have fatals: %v", result.Fatals)
	}
	if len(result.Warnings) > 0 {
		t.Fatalf("default settings have warnings: %v", result.Warnings)
	}
}

func TestParseByteSize(t *testing.T) {
	cases := []struct {
		in      string
		want    int64
		wantErr bool
	}{
		{"2GB", 2 << 30, false},
		{"512MB", 512 << 20, false},
		{"1KB", 1 << 10, false},
		{"100", 100, false},
		{"1.5GB", int64(1.5 * (1 << 30)), false},
		{"", 0, true},
		{"garbage", 0, true},
	}
	for _, c := range cases {
		got, err := ParseByteSize(c.in)
		if c.wantErr {
			if err == nil {
				t.Errorf("ParseByteSize(%q) expected error, got nil", c.in)
			}
			continue
		}
		if err != nil {
			t.Errorf("ParseByteSize(%q) unexpected error: %v", c.in, err)
			continue
		}
		if got != c.want {
			t.Errorf("ParseByteSize(%q) = %d, want %d", c.in, got, c.want)
		}
	}
}

func TestResolveDimensionsEven(t *testing.T) {
	w, h := ResolveDimensions(RatioPreset{Name: "21:9", Num: 21, Den: 9}, ResolutionTier{Name: "5K", PixelBudget: 5_120 * 2_880})
	if w%2 != 0 || h%2 != 0 {
		t.Fatalf("ResolveDimensions returned odd dimension %dx%d", w, h)
	}
	if w <= 0 || h <= 0 {
		t.Fatalf("ResolveDimensions returned non-positive dimension %dx%d", w, h)
	}
	if !strings.Contains(fmt.Sprintf("%.2f", float64(w)/float64(h)), "2.3") {
		t.Fatalf("ResolveDimensions aspect = %.4f, want close to 21/9", float64(w)/float64(h))
	}
}
