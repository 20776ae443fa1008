// Package orderstest provides a scriptable orders endpoint for tests.
//
// A Server answers GET /orders according to the most recent Stub* call and
// counts the requests it received, which is enough to exercise every
// stability pattern of the stability package:
//
//	srv := orderstest.NewServer()
//	defer srv.Close()
//	srv.StubErrors(4, 2) // four 500s, then two orders
//	fetcher, _ := stability.NewReliableFetcher(srv.OrdersURL())
package orderstest

import (
	"encoding/json"
	"fmt"
	"math/rand"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dshills/orders-stability/stability"
)

// OrdersPath is the path the stub answers on.
const OrdersPath = "/orders"

type mode int

const (
	modeOrders mode = iota
	modeLatency
	modeErrors
	modeStatus
	modeBody
)

// Handler is an http.Handler serving the scripted orders endpoint.
// It is safe for concurrent use and can be mounted on any server.
type Handler struct {
	mu         sync.Mutex
	mode       mode
	orders     []stability.Order
	delay      time.Duration
	errorsLeft int
	status     int
	body       []byte
	requests   atomic.Int64
	done       chan struct{}
	closeOnce  sync.Once
}

// NewHandler returns a handler that serves an empty order list until a stub
// is installed.
func NewHandler() *Handler {
	return &Handler{
		mode:   modeOrders,
		orders: []stability.Order{},
		done:   make(chan struct{}),
	}
}

// StubOrders answers every request with 200 and count random orders.
func (h *Handler) StubOrders(count int) {
	h.StubOrderList(SomeValidOrders(count))
}

// StubOrderList answers every request with 200 and exactly orders.
func (h *Handler) StubOrderList(orders []stability.Order) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.mode = modeOrders
	h.orders = orders
}

// StubHighLatency answers with five orders after delay. The response is
// abandoned as soon as the client goes away or the handler is shut down.
func (h *Handler) StubHighLatency(delay time.Duration) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.mode = modeLatency
	h.delay = delay
	h.orders = SomeValidOrders(5)
}

// StubErrors answers the next errorsCount requests with 500 and every later
// request with 200 and ordersCount orders.
func (h *Handler) StubErrors(errorsCount, ordersCount int) error {
	if errorsCount < 1 {
		return fmt.Errorf("errors must be >= 1, got %d", errorsCount)
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	h.mode = modeErrors
	h.errorsLeft = errorsCount
	h.orders = SomeValidOrders(ordersCount)
	return nil
}

// StubAlwaysFailing answers every request with 500.
func (h *Handler) StubAlwaysFailing() {
	h.StubStatus(http.StatusInternalServerError)
}

// StubStatus answers every request with code. A 2xx code carries an empty
// JSON list; any other code has no body.
func (h *Handler) StubStatus(code int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.mode = modeStatus
	h.status = code
}

// StubBody answers every request with 200 and the raw body.
func (h *Handler) StubBody(body string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.mode = modeBody
	h.body = []byte(body)
}

// Requests returns how many requests reached OrdersPath.
func (h *Handler) Requests() int {
	return int(h.requests.Load())
}

// Reset restores the initial empty-list stub and zeroes the request count.
func (h *Handler) Reset() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.mode = modeOrders
	h.orders = []stability.Order{}
	h.errorsLeft = 0
	h.requests.Store(0)
}

// Shutdown releases requests blocked in a high latency stub.
func (h *Handler) Shutdown() {
	h.closeOnce.Do(func() { close(h.done) })
}

// ServeHTTP implements http.Handler.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != OrdersPath {
		http.NotFound(w, r)
		return
	}
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", http.MethodGet)
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	h.requests.Add(1)

	h.mu.Lock()
	m := h.mode
	orders := h.orders
	delay := h.delay
	status := h.status
	body := h.body
	if m == modeErrors && h.errorsLeft > 0 {
		h.errorsLeft--
		status = http.StatusInternalServerError
	} else if m == modeErrors {
		m = modeOrders
	}
	h.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")

	switch m {
	case modeLatency:
		timer := time.NewTimer(delay)
		defer timer.Stop()
		select {
		case <-timer.C:
			writeOrders(w, orders)
		case <-r.Context().Done():
		case <-h.done:
		}
	case modeErrors:
		w.WriteHeader(status)
	case modeStatus:
		w.WriteHeader(status)
		if status >= 200 && status <= 299 && status != http.StatusNoContent {
			_, _ = w.Write([]byte("[]"))
		}
	case modeBody:
		_, _ = w.Write(body)
	default:
		writeOrders(w, orders)
	}
}

func writeOrders(w http.ResponseWriter, orders []stability.Order) {
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(orders)
}

// Server is an httptest.Server running a Handler.
type Server struct {
	*httptest.Server
	*Handler
}

// NewServer starts a stub server on a loopback port.
func NewServer() *Server {
	h := NewHandler()
	return &Server{
		Server:  httptest.NewServer(h),
		Handler: h,
	}
}

// OrdersURL returns the absolute URL of the orders endpoint.
func (s *Server) OrdersURL() string {
	return s.URL + OrdersPath
}

// Close releases pending slow responses and shuts the server down.
func (s *Server) Close() {
	s.Handler.Shutdown()
	s.Server.Close()
}

var menu = []string{"burger", "pizza", "sushi", "poke", ""}

// SomeValidOrders returns count orders numbered from 1, each with a single
// randomly chosen item. Item names may be empty, as upstream data can be.
func SomeValidOrders(count int) []stability.Order {
	orders := make([]stability.Order, 0, count)
	for i := 1; i <= count; i++ {
		id := int64(i)
		orders = append(orders, stability.Order{
			ID: id,
			Items: []stability.Item{{
				ID:       id,
				Name:     menu[rand.Intn(len(menu))], // #nosec G404 -- fixture data
				Quantity: 1,
			}},
			UserID: id,
		})
	}
	return orders
}
