package util

import "testing"

func TestParseSize(t *testing.T) {
	cases := []struct {
		in   string
		def  int64
		want int64
	}{
		{"10MB", 0, 10 * 1024 * 1024},
		{"512KB", 0, 512 * 1024},
		{"1GB", 0, 1024 * 1024 * 1024},
		{"2048", 0, 2048},
		{"", 42, 42},
		{"garbage", 42, 42},
		{" 5mb ", 0, 5 * 1024 * 1024},
	}
	for _, tc := range cases {
		if got := ParseSize(tc.in, tc.def); got != tc.want {
			t.Errorf("ParseSize(%q) = %d, want %d", tc.in, got, tc.want)
		}
	}
}
