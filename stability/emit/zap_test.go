package emit

import (
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestZapEmitter_Levels(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	emitter := NewZapEmitter(zap.New(core))

	emitter.Emit(Event{FetchID: "f1", Strategy: "plain", Attempt: 1, Msg: MsgFetchStart})
	emitter.Emit(Event{
		FetchID:  "f1",
		Strategy: "plain",
		Attempt:  1,
		Msg:      MsgFetchError,
		Meta: map[string]interface{}{
			"status_code": 500,
			"error":       "bad status",
			"elapsed":     150 * time.Millisecond,
		},
	})

	entries := logs.All()
	if len(entries) != 2 {
		t.Fatalf("expected 2 log entries, got %d", len(entries))
	}
	if entries[0].Level != zapcore.DebugLevel {
		t.Errorf("fetch_start level = %v, want debug", entries[0].Level)
	}
	if entries[1].Level != zapcore.WarnLevel {
		t.Errorf("fetch_error level = %v, want warn", entries[1].Level)
	}

	fields := entries[1].ContextMap()
	if fields["fetch_id"] != "f1" {
		t.Errorf("fetch_id = %v, want %q", fields["fetch_id"], "f1")
	}
	if fields["status_code"] != int64(500) {
		t.Errorf("status_code = %v (%T), want 500", fields["status_code"], fields["status_code"])
	}
	if fields["elapsed"] != 150*time.Millisecond {
		t.Errorf("elapsed = %v, want 150ms", fields["elapsed"])
	}
}

func TestZapEmitter_RespectsLevel(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	emitter := NewZapEmitter(zap.New(core))

	emitter.Emit(Event{FetchID: "f1", Msg: MsgFetchSuccess})
	emitter.Emit(Event{FetchID: "f1", Msg: MsgTimeout})

	if logs.Len() != 1 {
		t.Fatalf("expected only the warn entry, got %d entries", logs.Len())
	}
	if got := logs.All()[0].Message; got != MsgTimeout {
		t.Errorf("message = %q, want %q", got, MsgTimeout)
	}
}
