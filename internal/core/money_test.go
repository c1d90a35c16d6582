package core

import "testing"

func TestAmountDue(t *testing.T) {
	cases := []struct {
		amount, progress, want float64
	}{
		{2000, 50, 1000},
		{2000, 0, 0},
		{2000, 100, 2000},
		{1234.56, 33, 407.40},
		{10, 33.333, 3.33},
	}
	for _, tc := range cases {
		if got := AmountDue(tc.amount, tc.progress); got != tc.want {
			t.Fatalf("AmountDue(%v, %v) = %v, want %v", tc.amount, tc.progress, got, tc.want)
		}
	}
}

func TestParseAmount(t *testing.T) {
	cases := []struct {
		in  string
		out float64
		ok  bool
	}{
		{"2000", 2000, true},
		{"1,234.50", 1234.5, true},
		{" 20 ", 20, true},
		{"-800", -800, true},
		{"0", 0, true},
		{"m3", 0, false},
		{"", 0, false},
	}
	for _, tc := range cases {
		got, err := ParseAmount(tc.in)
		if tc.ok {
			if err != nil || got != tc.out {
				t.Fatalf("%q expected %v, got %v (err=%v)", tc.in, tc.out, got, err)
			}
		} else if err == nil {
			t.Fatalf("%q expected error", tc.in)
		}
	}
}

func TestMultiply(t *testing.T) {
	if got := Multiply(3, 19.99); got != 59.97 {
		t.Fatalf("Multiply = %v", got)
	}
}
