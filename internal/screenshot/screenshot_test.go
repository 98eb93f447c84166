package screenshot

import (
	"strings"
	"testing"
	"time"
)

func TestTimestampedNameExtension(t *testing.T) {
	now := time.Date(2026, 3, 4, 15, 4, 5, 0, time.UTC)
	png := timestampedName(FormatPNG, now)
	if !strings.HasSuffix(png, ".png") {
		t.Errorf("expected .png suffix, got %s", png)
	}
	jpg := timestampedName(FormatJPEG, now)
	if !strings.HasSuffix(jpg, ".jpg") {
		t.Errorf("expected .jpg suffix, got %s", jpg)
	}
	if !strings.Contains(png, "20260304_150405") {
		t.Errorf("expected timestamp in name, got %s", png)
	}
}
