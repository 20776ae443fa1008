package orderstest

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/dshills/orders-stability/stability"
)

func get(t *testing.T, h http.Handler, method, path string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(method, path, nil))
	return rec
}

func TestHandlerOrders(t *testing.T) {
	h := NewHandler()
	h.StubOrders(3)

	rec := get(t, h, http.MethodGet, OrdersPath)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %q, want application/json", ct)
	}
	var orders []stability.Order
	if err := json.Unmarshal(rec.Body.Bytes(), &orders); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(orders) != 3 {
		t.Errorf("len(orders) = %d, want 3", len(orders))
	}
	if h.Requests() != 1 {
		t.Errorf("Requests() = %d, want 1", h.Requests())
	}
}

func TestHandlerErrorsThenOrders(t *testing.T) {
	h := NewHandler()
	if err := h.StubErrors(2, 4); err != nil {
		t.Fatal(err)
	}

	for i := 0; i < 2; i++ {
		if rec := get(t, h, http.MethodGet, OrdersPath); rec.Code != http.StatusInternalServerError {
			t.Fatalf("request %d status = %d, want 500", i+1, rec.Code)
		}
	}
	for i := 0; i < 2; i++ {
		rec := get(t, h, http.MethodGet, OrdersPath)
		if rec.Code != http.StatusOK {
			t.Fatalf("request %d status = %d, want 200", i+3, rec.Code)
		}
		var orders []stability.Order
		if err := json.Unmarshal(rec.Body.Bytes(), &orders); err != nil || len(orders) != 4 {
			t.Errorf("orders = %v (err %v), want 4", orders, err)
		}
	}
}

func TestHandlerStubErrorsRejectsZero(t *testing.T) {
	if err := NewHandler().StubErrors(0, 1); err == nil {
		t.Error("StubErrors(0, 1) error = nil, want error")
	}
}

func TestHandlerStatusAndBody(t *testing.T) {
	h := NewHandler()

	h.StubAlwaysFailing()
	if rec := get(t, h, http.MethodGet, OrdersPath); rec.Code != http.StatusInternalServerError {
		t.Errorf("always failing status = %d, want 500", rec.Code)
	}

	h.StubStatus(http.StatusServiceUnavailable)
	if rec := get(t, h, http.MethodGet, OrdersPath); rec.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", rec.Code)
	}

	h.StubBody("not json")
	if rec := get(t, h, http.MethodGet, OrdersPath); rec.Body.String() != "not json" {
		t.Errorf("body = %q, want %q", rec.Body.String(), "not json")
	}
}

func TestHandlerStubStatusBody(t *testing.T) {
	tests := []struct {
		code int
		want string
	}{
		{http.StatusOK, "[]"},
		{http.StatusAccepted, "[]"},
		{http.StatusNoContent, ""},
		{http.StatusNotFound, ""},
		{http.StatusInternalServerError, ""},
	}
	for _, tt := range tests {
		h := NewHandler()
		h.StubStatus(tt.code)

		rec := get(t, h, http.MethodGet, OrdersPath)
		if rec.Code != tt.code {
			t.Errorf("StubStatus(%d) status = %d", tt.code, rec.Code)
		}
		if got := rec.Body.String(); got != tt.want {
			t.Errorf("StubStatus(%d) body = %q, want %q", tt.code, got, tt.want)
		}
	}
}

func TestHandlerRouting(t *testing.T) {
	h := NewHandler()

	if rec := get(t, h, http.MethodGet, "/other"); rec.Code != http.StatusNotFound {
		t.Errorf("other path status = %d, want 404", rec.Code)
	}
	rec := get(t, h, http.MethodPost, OrdersPath)
	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("POST status = %d, want 405", rec.Code)
	}
	if rec.Header().Get("Allow") != http.MethodGet {
		t.Errorf("Allow = %q, want GET", rec.Header().Get("Allow"))
	}
	if h.Requests() != 0 {
		t.Errorf("Requests() = %d, want 0", h.Requests())
	}
}

func TestHandlerReset(t *testing.T) {
	h := NewHandler()
	h.StubAlwaysFailing()
	get(t, h, http.MethodGet, OrdersPath)

	h.Reset()
	if h.Requests() != 0 {
		t.Errorf("Requests() after Reset = %d, want 0", h.Requests())
	}
	rec := get(t, h, http.MethodGet, OrdersPath)
	if rec.Code != http.StatusOK {
		t.Errorf("status after Reset = %d, want 200", rec.Code)
	}
}

func TestServerHighLatencyShutdown(t *testing.T) {
	srv := NewServer()
	srv.StubHighLatency(time.Hour)

	done := make(chan error, 1)
	go func() {
		resp, err := http.Get(srv.OrdersURL())
		if err == nil {
			_ = resp.Body.Close()
		}
		done <- err
	}()

	deadline := time.Now().Add(2 * time.Second)
	for srv.Requests() == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}

	closed := make(chan struct{})
	go func() {
		srv.Close()
		close(closed)
	}()

	select {
	case <-closed:
	case <-time.After(5 * time.Second):
		t.Fatal("Close() blocked on a slow response")
	}
	<-done
}

func TestSomeValidOrders(t *testing.T) {
	orders := SomeValidOrders(4)
	if len(orders) != 4 {
		t.Fatalf("len = %d, want 4", len(orders))
	}
	for i, o := range orders {
		want := int64(i + 1)
		if o.ID != want || o.UserID != want {
			t.Errorf("order %d = %+v, want id and user %d", i, o, want)
		}
		if len(o.Items) != 1 || o.Items[0].Quantity != 1 {
			t.Errorf("order %d items = %+v, want one item of quantity 1", i, o.Items)
		}
	}
	if got := SomeValidOrders(0); len(got) != 0 {
		t.Errorf("SomeValidOrders(0) = %v, want empty", got)
	}
}
