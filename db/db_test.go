package db

import "testing"

func TestPoolSize(t *testing.T) {
	cases := []struct {
		name string
		raw  string
		want int
	}{
		{"unset falls back", "", 20},
		{"explicit value", "40", 40},
		{"not a number falls back", "plenty", 20},
		{"zero falls back", "0", 20},
		{"negative falls back", "-5", 20},
	}

	for _, tc := range cases {
		if got := poolSize(tc.raw, 20); got != tc.want {
			t.Errorf("%s: poolSize(%q, 20) = %d, want %d", tc.name, tc.raw, got, tc.want)
		}
	}
}
