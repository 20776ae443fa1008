package emit

// Emitter receives observability events from a Fetcher.
//
// Implementations must be safe for concurrent use and must not block the
// fetch path for long; a slow backend should buffer or drop.
type Emitter interface {
	// Emit records a single event. It must not panic.
	Emit(event Event)
}

// MultiEmitter fans each event out to every wrapped emitter in order.
type MultiEmitter struct {
	emitters []Emitter
}

// NewMultiEmitter returns an emitter that forwards to all non-nil emitters.
func NewMultiEmitter(emitters ...Emitter) *MultiEmitter {
	m := &MultiEmitter{}
	for _, e := range emitters {
		if e != nil {
			m.emitters = append(m.emitters, e)
		}
	}
	return m
}

// Emit forwards event to every wrapped emitter.
func (m *MultiEmitter) Emit(event Event) {
	for _, e := range m.emitters {
		e.Emit(event)
	}
}
