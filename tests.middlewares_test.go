package main

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/julienschmidt/httprouter"
	"github.com/stretchr/testify/assert"
)

// TestMiddlewaresStacks ensures each stack carries the expected layers.
func TestMiddlewaresStacks(t *testing.T) {
	api := newTestAPIHandler(&MockBookService{})
	public, ops := api.MiddlewaresStacks()
	assert.Len(t, *public, 7)
	assert.Len(t, *ops, 6)
}

// TestMiddlewaresChain ensures the chain wraps from the last to the first.
func TestMiddlewaresChain(t *testing.T) {
	var order []string
	tag := func(name string) MiddlewareFunc {
		return func(next httprouter.Handle) httprouter.Handle {
			return func(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
				order = append(order, name)
				next(w, r, ps)
			}
		}
	}

	m := Middlewares{tag("first"), tag("second"), tag("third")}
	h := m.Chain(func(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
		order = append(order, "handler")
	})

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	h(httptest.NewRecorder(), req, httprouter.Params{})
	assert.Equal(t, []string{"first", "second", "third", "handler"}, order)

	empty := Middlewares{}
	called := false
	empty.Chain(func(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
		called = true
	})(httptest.NewRecorder(), req, httprouter.Params{})
	assert.True(t, called)
}

// TestRequestsCounterMiddleware ensures each request bumps the counter and
// exposes its number through the request context.
func TestRequestsCounterMiddleware(t *testing.T) {
	api := newTestAPIHandler(&MockBookService{})
	var seen uint64
	h := api.RequestsCounterMiddleware(func(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
		seen = GetRequestNumberFromContext(r.Context())
	})

	for i := 1; i <= 3; i++ {
		req := httptest.NewRequest(http.MethodGet, "/api/books", nil)
		h(httptest.NewRecorder(), req, httprouter.Params{})
	}
	assert.Equal(t, uint64(3), seen)
	assert.Equal(t, uint64(3), api.stats.called)
}

// TestRequestIDMiddleware ensures each request gets a prefixed id.
func TestRequestIDMiddleware(t *testing.T) {
	api := newTestAPIHandler(&MockBookService{})
	var requestID string
	h := api.RequestIDMiddleware(func(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
		requestID = GetValueFromContext(r.Context(), RequestIDContextKey)
	})

	req := httptest.NewRequest(http.MethodGet, "/api/books", nil)
	h(httptest.NewRecorder(), req, httprouter.Params{})
	assert.Equal(t, RequestIDPrefix+":fixed", requestID)
}

// TestStatusRecorderMiddleware ensures final status codes are counted.
func TestStatusRecorderMiddleware(t *testing.T) {
	api := newTestAPIHandler(&MockBookService{})
	h := api.StatusRecorderMiddleware(func(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
		w.WriteHeader(http.StatusTeapot)
	})

	req := httptest.NewRequest(http.MethodGet, "/api/books", nil)
	h(httptest.NewRecorder(), req, httprouter.Params{})
	h(httptest.NewRecorder(), req, httprouter.Params{})

	api.stats.mu.RLock()
	defer api.stats.mu.RUnlock()
	assert.Equal(t, uint64(2), api.stats.status[http.StatusTeapot])
}

// TestMaintenanceModeMiddleware ensures public traffic is gated while the
// status endpoint stays reachable.
func TestMaintenanceModeMiddleware(t *testing.T) {
	api := newTestAPIHandler(&MockBookService{})
	api.mode.message = "upgrading the storage"
	api.mode.started = api.clock.Now()
	api.mode.enabled.Store(true)

	reached := false
	h := api.MaintenanceModeMiddleware(func(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
		reached = true
		w.WriteHeader(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodGet, "/api/books", nil)
	w := httptest.NewRecorder()
	h(w, req, httprouter.Params{})
	res := w.Result()
	res.Body.Close()
	assert.False(t, reached)
	assert.Equal(t, http.StatusServiceUnavailable, res.StatusCode)

	req = httptest.NewRequest(http.MethodGet, "/status", nil)
	w = httptest.NewRecorder()
	h(w, req, httprouter.Params{})
	res = w.Result()
	res.Body.Close()
	assert.True(t, reached)
	assert.Equal(t, http.StatusOK, res.StatusCode)

	api.mode.enabled.Store(false)
	reached = false
	req = httptest.NewRequest(http.MethodGet, "/api/books", nil)
	h(httptest.NewRecorder(), req, httprouter.Params{})
	assert.True(t, reached)
}

// TestCORSMiddleware ensures cors headers and the preflight short-circuit.
func TestCORSMiddleware(t *testing.T) {
	api := newTestAPIHandler(&MockBookService{})
	api.config.Server.CorsOrigin = "https://books.example.org"
	reached := false
	h := api.CORSMiddleware(func(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
		reached = true
	})

	req := httptest.NewRequest(http.MethodGet, "/api/books", nil)
	w := httptest.NewRecorder()
	h(w, req, httprouter.Params{})
	res := w.Result()
	res.Body.Close()
	assert.True(t, reached)
	assert.Equal(t, "https://books.example.org", res.Header.Get("Access-Control-Allow-Origin"))

	reached = false
	req = httptest.NewRequest(http.MethodOptions, "/api/books", nil)
	w = httptest.NewRecorder()
	h(w, req, httprouter.Params{})
	res = w.Result()
	res.Body.Close()
	assert.False(t, reached)
	assert.Equal(t, http.StatusNoContent, res.StatusCode)
}

// TestPanicRecoveryMiddleware ensures a panicking handler yields a 500.
func TestPanicRecoveryMiddleware(t *testing.T) {
	api := newTestAPIHandler(&MockBookService{})
	h := api.PanicRecoveryMiddleware(func(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
		panic("boom")
	})

	req := httptest.NewRequest(http.MethodGet, "/api/books", nil)
	w := httptest.NewRecorder()
	assert.NotPanics(t, func() {
		h(w, req, httprouter.Params{})
	})
	res := w.Result()
	res.Body.Close()
	assert.Equal(t, http.StatusInternalServerError, res.StatusCode)
}
