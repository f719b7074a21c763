package logger

import (
	"context"
	"log/slog"
	"testing"

	"github.com/figma-chunkstore/chunkstore/internal/config"
)

func TestHelpersDoNotPanicBeforeInit(t *testing.T) {
	Logger = nil
	Info("unused")
	Error("unused")
	Debug("unused")
	Warn("unused")
}

func TestInitLoggerSetsLoggerForBothModes(t *testing.T) {
	InitLogger(&config.Config{GinMode: "release"})
	if Logger == nil {
		t.Fatalf("expected InitLogger to set Logger for release mode")
	}
	if Logger.Enabled(context.Background(), slog.LevelDebug) {
		t.Errorf("expected debug level to be disabled outside debug mode")
	}

	InitLogger(&config.Config{GinMode: "debug"})
	if Logger == nil {
		t.Fatalf("expected InitLogger to set Logger for debug mode")
	}
	if !Logger.Enabled(context.Background(), slog.LevelDebug) {
		t.Errorf("expected debug level to be enabled in debug mode")
	}

	Info("after init")
	Error("after init")
	Debug("after init")
	Warn("after init")
}
