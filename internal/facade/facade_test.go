package facade

import (
	"testing"

	"github.com/breeze-rmm/spinningmomo-core/internal/config"
	"github.com/breeze-rmm/spinningmomo-core/internal/recorder"
)

func TestFindRatio(t *testing.T) {
	ratios := config.DefaultRatios
	r, ok := findRatio(ratios, "21:9")
	if !ok || r.Num != 21 || r.Den != 9 {
		t.Fatalf("findRatio(21:9) = %+v, %v", r, ok)
	}
	if _, ok := findRatio(ratios, "9:21"); ok {
		t.Fatal("findRatio should not match an unknown name")
	}
}

func TestFindTier(t *testing.T) {
	tiers := config.DefaultResolutionTiers
	tier, ok := findTier(tiers, "4K")
	if !ok || tier.PixelBudget != 3_840*2_160 {
		t.Fatalf("findTier(4K) = %+v, %v", tier, ok)
	}
	if _, ok := findTier(tiers, "10K"); ok {
		t.Fatal("findTier should not match an unknown name")
	}
}

func TestCodecFromName(t *testing.T) {
	if codecFromName("h265") != recorder.CodecH265 {
		t.Fatal("codecFromName(h265) should select H.265")
	}
	if codecFromName("h264") != recorder.CodecH264 {
		t.Fatal("codecFromName(h264) should select H.264")
	}
	if codecFromName("") != recorder.CodecH264 {
		t.Fatal("codecFromName(\"\") should default to H.264")
	}
}

func TestRateControlFromName(t *testing.T) {
	cases := map[string]recorder.RateControlMode{
		"vbr":     recorder.RateControlVBR,
		"quality": recorder.RateControlQuality,
		"cbr":     recorder.RateControlCBR,
		"bogus":   recorder.RateControlCBR,
	}
	for in, want := range cases {
		if got := rateControlFromName(in); got != want {
			t.Errorf("rateControlFromName(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestAudioSourceFromName(t *testing.T) {
	cases := map[string]recorder.AudioSource{
		"system":     recorder.AudioSourceSystem,
		"microphone": recorder.AudioSourceMicrophone,
		"none":       recorder.AudioSourceNone,
		"":           recorder.AudioSourceNone,
	}
	for in, want := range cases {
		if got := audioSourceFromName(in); got != want {
			t.Errorf("audioSourceFromName(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestScreenshotFormatFromName(t *testing.T) {
	if screenshotFormatFromName("jpeg") != 1 {
		t.Fatal("screenshotFormatFromName(jpeg) should select FormatJPEG")
	}
	if screenshotFormatFromName("png") != 0 {
		t.Fatal("screenshotFormatFromName(png) should select FormatPNG")
	}
}

func TestTransformStateString(t *testing.T) {
	cases := map[TransformState]string{
		Idle:                "idle",
		PreparingTransform:  "preparing_transform",
		Transforming:        "transforming",
		PostTransform:       "post_transform",
	}
	for state, want := range cases {
		if got := state.String(); got != want {
			t.Errorf("TransformState(%d).String() = %q, want %q", state, got, want)
		}
	}
}
