package logger

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/rs/zerolog"
)

func TestGet_BeforeInitUsesDefaults(t *testing.T) {
	Reset()
	t.Cleanup(Reset)

	l := Get()
	if l.GetLevel() != zerolog.InfoLevel {
		t.Fatalf("expected info level, got %s", l.GetLevel())
	}
}

func TestInit_OnlyFirstCallApplies(t *testing.T) {
	Reset()
	t.Cleanup(Reset)

	var buf bytes.Buffer
	Init(Options{Level: "debug", Output: &buf, Service: "lms-core"})
	Init(Options{Level: "error"})

	l := Get()
	if l.GetLevel() != zerolog.DebugLevel {
		t.Fatalf("expected debug level, got %s", l.GetLevel())
	}

	l.Info().Msg("hello")
	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("invalid json log line: %v", err)
	}
	if entry["service"] != "lms-core" {
		t.Fatalf("expected service field, got %v", entry["service"])
	}
	if entry["message"] != "hello" {
		t.Fatalf("unexpected message: %v", entry["message"])
	}
}

func TestParseLevel(t *testing.T) {
	cases := map[string]zerolog.Level{
		"trace":   zerolog.TraceLevel,
		"DEBUG":   zerolog.DebugLevel,
		" warn ":  zerolog.WarnLevel,
		"warning": zerolog.WarnLevel,
		"error":   zerolog.ErrorLevel,
		"":        zerolog.InfoLevel,
		"verbose": zerolog.InfoLevel,
	}
	for in, want := range cases {
		if got := ParseLevel(in); got != want {
			t.Errorf("ParseLevel(%q) = %s, want %s", in, got, want)
		}
	}
}
