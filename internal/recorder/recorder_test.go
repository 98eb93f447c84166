package recorder

import "testing"

func TestCodecString(t *testing.T) {
	if CodecH264.String() != "h264" {
		t.Errorf("CodecH264.String() = %q, want h264", CodecH264.String())
	}
	if CodecH265.String() != "h265" {
		t.Errorf("CodecH265.String() = %q, want h265", CodecH265.String())
	}
}

func TestStateString(t *testing.T) {
	cases := map[State]string{
		StateIdle:      "idle",
		StateRecording: "recording",
		StateStopping:  "stopping",
	}
	for state, want := range cases {
		if got := state.String(); got != want {
			t.Errorf("State(%d).String() = %q, want %q", state, got, want)
		}
	}
}

func TestClamp16235(t *testing.T) {
	cases := []struct{ in, want int }{
		{-10, 16},
		{300, 235},
		{100, 100},
	}
	for _, tc := range cases {
		if got := clamp16235(tc.in); got != tc.want {
			t.Errorf("clamp16235(%d) = %d, want %d", tc.in, got, tc.want)
		}
	}
}
