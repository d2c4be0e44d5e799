package logger

import (
	"testing"

	"go.uber.org/zap/zapcore"
)

func TestNewRespectsLevel(t *testing.T) {
	log, err := New("opex-test", "warn", "json")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if log.Core().Enabled(zapcore.InfoLevel) {
		t.Error("info should be disabled at warn level")
	}
	if !log.Core().Enabled(zapcore.ErrorLevel) {
		t.Error("error should be enabled at warn level")
	}
}

func TestNewFallsBackToInfo(t *testing.T) {
	log, err := New("opex-test", "loud", "console")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if !log.Core().Enabled(zapcore.InfoLevel) {
		t.Error("expected info level fallback")
	}
	if log.Core().Enabled(zapcore.DebugLevel) {
		t.Error("debug should be disabled")
	}
}
