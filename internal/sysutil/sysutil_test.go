package sysutil

import (
	"testing"

	"github.com/rs/zerolog"
)

func TestSetLogLevel(t *testing.T) {
	cases := []struct {
		in   string
		want zerolog.Level
	}{
		{"debug", zerolog.DebugLevel},
		{"info", zerolog.InfoLevel},
		{"", zerolog.InfoLevel},
		{"warn", zerolog.WarnLevel},
		{"WARNING", zerolog.WarnLevel},
		{"error", zerolog.ErrorLevel},
		{"fatal", zerolog.FatalLevel},
		{"panic", zerolog.PanicLevel},
		{"bogus", zerolog.InfoLevel},
	}
	for _, tc := range cases {
		SetLogLevel(tc.in)
		if got := zerolog.GlobalLevel(); got != tc.want {
			t.Fatalf("SetLogLevel(%q): want %v got %v", tc.in, tc.want, got)
		}
	}
	// restore
	SetLogLevel("info")
}

func TestIsTruthy(t *testing.T) {
	for _, v := range []string{"1", "true", "TRUE", "yes", "y", "on", " On "} {
		if !IsTruthy(v) {
			t.Fatalf("IsTruthy(%q) should be true", v)
		}
	}
	for _, v := range []string{"", "0", "false", "no", "off", "maybe"} {
		if IsTruthy(v) {
			t.Fatalf("IsTruthy(%q) should be false", v)
		}
	}
}

func TestFirstNonEmpty(t *testing.T) {
	if got := FirstNonEmpty("", "  ", "a", "b"); got != "a" {
		t.Fatalf("expected a, got %q", got)
	}
	if got := FirstNonEmpty("", "  "); got != "" {
		t.Fatalf("expected empty, got %q", got)
	}
}

func TestAtoiDefault(t *testing.T) {
	if got := AtoiDefault("42", 7); got != 42 {
		t.Fatalf("expected 42, got %d", got)
	}
	if got := AtoiDefault("", 7); got != 7 {
		t.Fatalf("expected default for empty, got %d", got)
	}
	if got := AtoiDefault("nan", 7); got != 7 {
		t.Fatalf("expected default for garbage, got %d", got)
	}
}
