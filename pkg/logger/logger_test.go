package logger

import (
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want Level
	}{
		{in: "debug", want: DEBUG},
		{in: "WARN", want: WARN},
		{in: "warning", want: WARN},
		{in: "error", want: ERROR},
		{in: "", want: INFO},
		{in: "verbose", want: INFO},
	}
	for _, tt := range tests {
		if got := ParseLevel(tt.in); got != tt.want {
			t.Fatalf("ParseLevel(%q)=%v want %v", tt.in, got, tt.want)
		}
	}
}

func TestComponentFieldsAreAttached(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	restore := ReplaceForTest(zap.New(core))
	defer restore()

	WarnCF("routing", "oracle fallback", map[string]any{"session": "s1", "error": "timeout"})

	entries := logs.All()
	if len(entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(entries))
	}
	ctx := entries[0].ContextMap()
	if ctx["component"] != "routing" {
		t.Fatalf("component=%v", ctx["component"])
	}
	if ctx["session"] != "s1" || ctx["error"] != "timeout" {
		t.Fatalf("unexpected fields: %v", ctx)
	}
}

func TestSetLevelRoundTrip(t *testing.T) {
	prev := GetLevel()
	defer SetLevel(prev)

	SetLevel(DEBUG)
	if GetLevel() != DEBUG {
		t.Fatalf("expected DEBUG, got %v", GetLevel())
	}
	SetLevel(ERROR)
	if GetLevel() != ERROR {
		t.Fatalf("expected ERROR, got %v", GetLevel())
	}
}
