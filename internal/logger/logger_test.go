package logger

import (
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func TestNew(t *testing.T) {
	tests := []struct {
		name      string
		debug     bool
		wantDebug bool
	}{
		{"production", false, false},
		{"development", true, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger, err := New(tt.debug)
			if err != nil {
				t.Fatalf("New(%v) error = %v", tt.debug, err)
			}
			if got := logger.Core().Enabled(zapcore.DebugLevel); got != tt.wantDebug {
				t.Errorf("debug enabled = %v, want %v", got, tt.wantDebug)
			}
			if !logger.Core().Enabled(zapcore.InfoLevel) {
				t.Error("info level disabled, want enabled")
			}
		})
	}
}

func TestInstall(t *testing.T) {
	before := zap.L()

	logger, restore, err := Install(true)
	if err != nil {
		t.Fatalf("Install() error = %v", err)
	}
	if zap.L() != logger {
		t.Error("zap.L() is not the installed logger")
	}

	restore()
	if zap.L() != before {
		t.Error("zap.L() not restored")
	}
}
