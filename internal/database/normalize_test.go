package database

import "testing"

func TestNormalizeName(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"José García", "jose garcia"},
		{"jose-garcia", "jose garcia"},
		{"  Jan   Novák ", "jan novak"},
		{"KIM Chul-soo", "kim chul soo"},
		{"", ""},
	}
	for _, tt := range tests {
		if got := NormalizeName(tt.in); got != tt.want {
			t.Errorf("NormalizeName(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
