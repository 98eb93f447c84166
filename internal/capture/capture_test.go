package capture

import "testing"

func TestConfigClampedCapacity(t *testing.T) {
	cases := []struct {
		in, want int
	}{
		{0, 1},
		{1, 1},
		{2, 2},
		{3, 3},
		{10, 3},
		{-5, 1},
	}
	for _, tc := range cases {
		got := Config{Capacity: tc.in}.clamped().Capacity
		if got != tc.want {
			t.Errorf("clamped(%d) = %d, want %d", tc.in, got, tc.want)
		}
	}
}
