package logger

import (
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestInfo_Success_Warn_Error_NoPanic(t *testing.T) {
	Use(zap.NewNop())
	defer Use(nil)

	Info("TAG", "message")
	Success("TAG", "message")
	Warn("TAG", "message")
	Error("TAG", "message")
	Debug("TAG", "message")
}

func TestBanner_NoPanic(t *testing.T) {
	Use(zap.NewNop())
	defer Use(nil)

	Banner("v1.0.0")
	Banner("")
	Section("Test")
	Stats("key", 42)
}

func TestTaggedLinesReachBackingLogger(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	Use(zap.New(core))
	defer Use(nil)

	Warn("ESI", "page 3 dropped")
	Info("DB", "opened")

	entries := logs.All()
	if len(entries) != 2 {
		t.Fatalf("logged %d entries, want 2", len(entries))
	}
	if entries[0].Message != "[ESI] page 3 dropped" {
		t.Errorf("message = %q", entries[0].Message)
	}
	if entries[0].Level != zap.WarnLevel {
		t.Errorf("level = %v, want warn", entries[0].Level)
	}
}

func TestSetLevel_IgnoresUnknown(t *testing.T) {
	SetLevel("debug")
	if !level.Enabled(zap.DebugLevel) {
		t.Fatal("debug level not enabled after SetLevel(debug)")
	}
	SetLevel("nonsense")
	if !level.Enabled(zap.DebugLevel) {
		t.Fatal("unknown level changed the current level")
	}
	SetLevel("info")
}
