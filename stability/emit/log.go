package emit

import (
	"bytes"
	"encoding/json"
	"io"
	"os"
	"strconv"
	"sync"
)

// LogEmitter writes one line per event to a writer, as plain text or as JSON
// lines:
//
//	[retry_scheduled] fetchID=5f0c... strategy=retry attempt=2 meta={"delay_ms":200}
//	{"fetchID":"5f0c...","strategy":"retry","attempt":2,"msg":"retry_scheduled","meta":{"delay_ms":200}}
//
// Each line reaches the writer in a single Write call.
type LogEmitter struct {
	mu       sync.Mutex
	w        io.Writer
	jsonMode bool
	buf      bytes.Buffer
}

// NewLogEmitter creates a LogEmitter. A nil writer means os.Stdout.
func NewLogEmitter(w io.Writer, jsonMode bool) *LogEmitter {
	if w == nil {
		w = os.Stdout
	}
	return &LogEmitter{w: w, jsonMode: jsonMode}
}

type jsonLine struct {
	FetchID  string                 `json:"fetchID"`
	Strategy string                 `json:"strategy"`
	Attempt  int                    `json:"attempt"`
	Msg      string                 `json:"msg"`
	Meta     map[string]interface{} `json:"meta,omitempty"`
}

// Emit writes the event. Write errors are dropped.
func (l *LogEmitter) Emit(event Event) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.buf.Reset()
	if l.jsonMode {
		l.appendJSON(event)
	} else {
		l.appendText(event)
	}
	_, _ = l.w.Write(l.buf.Bytes())
}

func (l *LogEmitter) appendJSON(event Event) {
	err := json.NewEncoder(&l.buf).Encode(jsonLine{
		FetchID:  event.FetchID,
		Strategy: event.Strategy,
		Attempt:  event.Attempt,
		Msg:      event.Msg,
		Meta:     event.Meta,
	})
	if err != nil {
		l.buf.Reset()
		l.buf.WriteString(`{"msg":` + strconv.Quote(event.Msg) + `,"error":` + strconv.Quote("unencodable meta: "+err.Error()) + "}\n")
	}
}

func (l *LogEmitter) appendText(event Event) {
	l.buf.WriteByte('[')
	l.buf.WriteString(event.Msg)
	l.buf.WriteString("] fetchID=")
	l.buf.WriteString(event.FetchID)
	l.buf.WriteString(" strategy=")
	l.buf.WriteString(event.Strategy)
	l.buf.WriteString(" attempt=")
	l.buf.WriteString(strconv.Itoa(event.Attempt))

	if len(event.Meta) > 0 {
		l.buf.WriteString(" meta=")
		if meta, err := json.Marshal(event.Meta); err == nil {
			l.buf.Write(meta)
		} else {
			l.buf.WriteString(`{"error":` + strconv.Quote(err.Error()) + "}")
		}
	}
	l.buf.WriteByte('\n')
}
