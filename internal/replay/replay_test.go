package replay

import "testing"

func TestCodecFromString(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"h264", "h264"},
		{"h265", "h265"},
		{"", "h264"},
		{"bogus", "h264"},
	}
	for _, c := range cases {
		if got := codecFromString(c.in).String(); got != c.want {
			t.Errorf("codecFromString(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}
