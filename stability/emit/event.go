// Package emit provides observability events for orders fetches.
package emit

// Event messages emitted by the stability package.
const (
	MsgFetchStart      = "fetch_start"
	MsgFetchSuccess    = "fetch_success"
	MsgFetchError      = "fetch_error"
	MsgRetryScheduled  = "retry_scheduled"
	MsgRetryExhausted  = "retry_exhausted"
	MsgTimeout         = "timeout"
	MsgFallbackUsed    = "fallback_used"
	MsgSnapshotError   = "snapshot_error"
	MsgCircuitRejected = "circuit_rejected"
	MsgCircuitOpened   = "circuit_open"
	MsgCircuitHalfOpen = "circuit_half_open"
	MsgCircuitClosed   = "circuit_closed"
)

// Event represents something observable that happened while fetching orders.
//
// One logical call to a Fetcher method shares a FetchID across all of its
// events, so retries and fallbacks of the same call can be correlated.
type Event struct {
	// FetchID identifies the logical fetch call that emitted this event.
	FetchID string

	// Strategy is the stability pattern in use: "plain", "fallback",
	// "retry", "timeout" or "breaker".
	Strategy string

	// Attempt is the 1-based request attempt within the call.
	// Zero for events not tied to a specific request.
	Attempt int

	// Msg is the event kind, one of the Msg* constants.
	Msg string

	// Meta contains additional structured data. Common keys:
	//   - "url": endpoint URL
	//   - "duration_ms": request duration in milliseconds
	//   - "status_code": HTTP status received
	//   - "error": error text
	//   - "delay_ms": wait before the next retry
	//   - "orders": number of orders returned
	//   - "source": fallback source ("caller" or "snapshot")
	//   - "from", "to": breaker states on transitions
	Meta map[string]interface{}
}
