package emit

import "sync"

// BufferedEmitter stores events in memory, grouped by FetchID.
//
// It is meant for tests and diagnostics; events are never evicted, so call
// Clear on long-lived instances.
type BufferedEmitter struct {
	mu     sync.RWMutex
	events map[string][]Event // fetchID -> events
	order  []string           // fetchIDs in first-seen order
}

// HistoryFilter selects events. Empty fields match everything; set fields
// are combined with AND.
type HistoryFilter struct {
	Strategy   string // Filter by strategy (empty = no filter)
	Msg        string // Filter by message (empty = no filter)
	MinAttempt *int   // Minimum attempt number (nil = no filter)
	MaxAttempt *int   // Maximum attempt number (nil = no filter)
}

// NewBufferedEmitter creates an empty BufferedEmitter.
func NewBufferedEmitter() *BufferedEmitter {
	return &BufferedEmitter{
		events: make(map[string][]Event),
	}
}

// Emit stores the event.
func (b *BufferedEmitter) Emit(event Event) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, seen := b.events[event.FetchID]; !seen {
		b.order = append(b.order, event.FetchID)
	}
	b.events[event.FetchID] = append(b.events[event.FetchID], event)
}

// GetHistory returns a copy of the events of one fetch in emission order.
func (b *BufferedEmitter) GetHistory(fetchID string) []Event {
	return b.GetHistoryWithFilter(fetchID, HistoryFilter{})
}

// GetHistoryWithFilter returns the events of one fetch matching filter.
func (b *BufferedEmitter) GetHistoryWithFilter(fetchID string, filter HistoryFilter) []Event {
	b.mu.RLock()
	defer b.mu.RUnlock()

	result := []Event{}
	for _, event := range b.events[fetchID] {
		if matchesFilter(event, filter) {
			result = append(result, event)
		}
	}
	return result
}

// All returns every stored event matching filter, fetch by fetch in the
// order fetches were first seen.
func (b *BufferedEmitter) All(filter HistoryFilter) []Event {
	b.mu.RLock()
	defer b.mu.RUnlock()

	result := []Event{}
	for _, fetchID := range b.order {
		for _, event := range b.events[fetchID] {
			if matchesFilter(event, filter) {
				result = append(result, event)
			}
		}
	}
	return result
}

// Count returns how many stored events carry msg.
func (b *BufferedEmitter) Count(msg string) int {
	return len(b.All(HistoryFilter{Msg: msg}))
}

// FetchIDs returns the fetch IDs seen so far in first-seen order.
func (b *BufferedEmitter) FetchIDs() []string {
	b.mu.RLock()
	defer b.mu.RUnlock()

	return append([]string(nil), b.order...)
}

func matchesFilter(event Event, filter HistoryFilter) bool {
	if filter.Strategy != "" && event.Strategy != filter.Strategy {
		return false
	}
	if filter.Msg != "" && event.Msg != filter.Msg {
		return false
	}
	if filter.MinAttempt != nil && event.Attempt < *filter.MinAttempt {
		return false
	}
	if filter.MaxAttempt != nil && event.Attempt > *filter.MaxAttempt {
		return false
	}
	return true
}

// Clear removes the events of one fetch, or of all fetches when fetchID is
// empty.
func (b *BufferedEmitter) Clear(fetchID string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if fetchID == "" {
		b.events = make(map[string][]Event)
		b.order = nil
		return
	}

	delete(b.events, fetchID)
	for i, id := range b.order {
		if id == fetchID {
			b.order = append(b.order[:i], b.order[i+1:]...)
			break
		}
	}
}
