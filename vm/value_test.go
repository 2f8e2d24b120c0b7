package vm

import (
	"math"
	"testing"
)

func TestFormatNumber(t *testing.T) {
	tests := []struct {
		in   float64
		want string
	}{
		{1, "1"},
		{-2.5, "-2.5"},
		{100, "100"},
		{1e100, "1e+100"},
		{math.Pi, "3.1415926535898"},
		{math.NaN(), "nan"},
		{math.Inf(1), "inf"},
		{math.Inf(-1), "-inf"},
	}
	for _, tc := range tests {
		if got := FormatNumber(tc.in); got != tc.want {
			t.Errorf("FormatNumber(%v) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestParseNumber(t *testing.T) {
	tests := []struct {
		in   string
		want float64
		ok   bool
	}{
		{"42", 42, true},
		{"  10  ", 10, true},
		{"1e2", 100, true},
		{"0x1F", 31, true},
		{"-0x10", -16, true},
		{"", 0, false},
		{"abc", 0, false},
		{"0xZZ", 0, false},
	}
	for _, tc := range tests {
		got, ok := parseNumber(tc.in)
		if ok != tc.ok || got != tc.want {
			t.Errorf("parseNumber(%q) = %v, %v, want %v, %v", tc.in, got, ok, tc.want, tc.ok)
		}
	}
}

func TestTypeName(t *testing.T) {
	L := NewState()
	tests := []struct {
		v    Value
		want string
	}{
		{nil, "nil"},
		{true, "boolean"},
		{1.0, "number"},
		{L.NewString("s"), "string"},
		{L.NewTable(0, 0), "table"},
		{&GoFunction{Name: "f"}, "function"},
		{L.NewUserdata(1, 0), "userdata"},
		{L.NewThread(), "thread"},
		{L.NewBuffer(1), "buffer"},
		{Vector{1, 2, 3, 0}, "vector"},
	}
	for _, tc := range tests {
		if got := TypeName(tc.v); got != tc.want {
			t.Errorf("TypeName(%T) = %q, want %q", tc.v, got, tc.want)
		}
	}
}

func TestTruthy(t *testing.T) {
	if Truthy(nil) || Truthy(false) {
		t.Error("nil or false is truthy")
	}
	if !Truthy(0.0) || !Truthy(true) {
		t.Error("0 or true is falsy")
	}
}
