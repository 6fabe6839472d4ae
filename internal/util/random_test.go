package util

import "testing"

func TestGenerateOTPCode(t *testing.T) {
	for i := 0; i < 200; i++ {
		code := GenerateOTPCode()
		if !IsSixDigitCode(code) {
			t.Fatalf("generated code %q is not six digits", code)
		}
		if code[0] == '0' {
			t.Fatalf("generated code %q has a leading zero", code)
		}
	}
}

func TestIsSixDigitCode(t *testing.T) {
	cases := []struct {
		in   string
		want bool
	}{
		{"123456", true},
		{"100000", true},
		{"12345", false},
		{"1234567", false},
		{"12345a", false},
		{" 23456", false},
		{"", false},
	}
	for _, c := range cases {
		if got := IsSixDigitCode(c.in); got != c.want {
			t.Errorf("IsSixDigitCode(%q) = %v, want %v", c.in, got, c.want)
		}
	}
}
