package emit

import (
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// ZapEmitter logs events through a zap logger.
//
// Error-bearing events (fetch_error, timeout, retry_exhausted,
// circuit_open, snapshot_error) are logged at Warn, everything else at Debug,
// so a production logger only surfaces degradations.
type ZapEmitter struct {
	logger *zap.Logger
}

// NewZapEmitter creates a ZapEmitter. A nil logger means zap.L().
func NewZapEmitter(logger *zap.Logger) *ZapEmitter {
	if logger == nil {
		logger = zap.L()
	}
	return &ZapEmitter{logger: logger}
}

// Emit logs the event with its identity and metadata as structured fields.
func (z *ZapEmitter) Emit(event Event) {
	fields := make([]zap.Field, 0, 3+len(event.Meta))
	fields = append(fields,
		zap.String("fetch_id", event.FetchID),
		zap.String("strategy", event.Strategy),
		zap.Int("attempt", event.Attempt),
	)
	for key, value := range event.Meta {
		fields = append(fields, metaField(key, value))
	}

	if ce := z.logger.Check(levelFor(event.Msg), event.Msg); ce != nil {
		ce.Write(fields...)
	}
}

func levelFor(msg string) zapcore.Level {
	switch msg {
	case MsgFetchError, MsgTimeout, MsgRetryExhausted, MsgCircuitOpened, MsgSnapshotError:
		return zapcore.WarnLevel
	default:
		return zapcore.DebugLevel
	}
}

func metaField(key string, value interface{}) zap.Field {
	switch v := value.(type) {
	case string:
		return zap.String(key, v)
	case int:
		return zap.Int(key, v)
	case int64:
		return zap.Int64(key, v)
	case float64:
		return zap.Float64(key, v)
	case bool:
		return zap.Bool(key, v)
	case time.Duration:
		return zap.Duration(key, v)
	case error:
		return zap.NamedError(key, v)
	default:
		return zap.Any(key, v)
	}
}
