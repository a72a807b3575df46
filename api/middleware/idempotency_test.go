package middleware

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/freshmarket/storefront-backend/api/responses"
	pkgerrors "github.com/freshmarket/storefront-backend/pkg/errors"
)

type fakeReplayStore struct {
	data map[string]string
	ttls map[string]time.Duration
}

func newFakeReplayStore() *fakeReplayStore {
	return &fakeReplayStore{data: make(map[string]string), ttls: make(map[string]time.Duration)}
}

func (f *fakeReplayStore) Get(_ context.Context, key string) (string, error) {
	if v, ok := f.data[key]; ok {
		return v, nil
	}
	return "", redis.Nil
}

func (f *fakeReplayStore) SetNX(_ context.Context, key string, value any, ttl time.Duration) (bool, error) {
	if _, ok := f.data[key]; ok {
		return false, nil
	}
	f.data[key] = value.(string)
	f.ttls[key] = ttl
	return true, nil
}

func (f *fakeReplayStore) Set(_ context.Context, key string, value any, ttl time.Duration) error {
	f.data[key] = value.(string)
	f.ttls[key] = ttl
	return nil
}

func (f *fakeReplayStore) Del(_ context.Context, keys ...string) error {
	for _, k := range keys {
		delete(f.data, k)
	}
	return nil
}

func (f *fakeReplayStore) IdempotencyKey(scope, id string) string {
	return fmt.Sprintf("fake:%s:%s", scope, id)
}

func placeOrderRequest(customerID uuid.UUID, key, body string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, "/api/v1/orders", strings.NewReader(body))
	if key != "" {
		req.Header.Set("Idempotency-Key", key)
	}
	return req.WithContext(WithCustomerID(req.Context(), customerID))
}

func errorCode(t *testing.T, resp *httptest.ResponseRecorder) string {
	t.Helper()
	var payload struct {
		Code string `json:"code"`
	}
	if err := json.Unmarshal(resp.Body.Bytes(), &payload); err != nil {
		t.Fatalf("parse error response: %v", err)
	}
	return payload.Code
}

func TestIdempotentRequiresHeader(t *testing.T) {
	handlerCalled := false
	handler := Idempotent(newFakeReplayStore(), OrderReplayTTL, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		handlerCalled = true
	}))

	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, placeOrderRequest(uuid.New(), "", `{"phone":"0812345678"}`))
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", resp.Code)
	}

	resp = httptest.NewRecorder()
	handler.ServeHTTP(resp, placeOrderRequest(uuid.New(), strings.Repeat("k", maxIdempotencyKey+1), `{}`))
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for oversized key got %d", resp.Code)
	}
	if handlerCalled {
		t.Fatalf("handler should not run without a usable key")
	}
}

func TestIdempotentReplaysCompletedResponse(t *testing.T) {
	store := newFakeReplayStore()
	customerID := uuid.New()
	var calls int
	handler := Idempotent(store, OrderReplayTTL, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"id":"o-1"}`))
	}))

	first := httptest.NewRecorder()
	handler.ServeHTTP(first, placeOrderRequest(customerID, "abc", `{"phone":"0812345678"}`))
	if first.Code != http.StatusCreated {
		t.Fatalf("expected first response 201 got %d", first.Code)
	}
	if first.Header().Get(replayedHeader) != "" {
		t.Fatalf("first response must not be marked replayed")
	}

	replay := httptest.NewRecorder()
	handler.ServeHTTP(replay, placeOrderRequest(customerID, "abc", `{"phone":"0812345678"}`))
	if replay.Code != http.StatusCreated {
		t.Fatalf("expected replay status 201 got %d", replay.Code)
	}
	if replay.Header().Get("Content-Type") != "application/json" || replay.Header().Get(replayedHeader) != "true" {
		t.Fatalf("unexpected replay headers %v", replay.Header())
	}
	if replay.Body.String() != `{"id":"o-1"}` {
		t.Fatalf("expected stored body got %s", replay.Body.String())
	}
	if calls != 1 {
		t.Fatalf("handler executed %d times, expected 1", calls)
	}
	for key, ttl := range store.ttls {
		if ttl != OrderReplayTTL {
			t.Fatalf("expected %s stored for %s, got %s", OrderReplayTTL, key, ttl)
		}
	}

	handler.ServeHTTP(httptest.NewRecorder(), placeOrderRequest(uuid.New(), "abc", `{"phone":"0812345678"}`))
	if calls != 2 {
		t.Fatalf("expected key to be scoped per customer, calls=%d", calls)
	}
}

func TestIdempotentRejectsInFlightDuplicate(t *testing.T) {
	store := newFakeReplayStore()
	customerID := uuid.New()
	var inner http.Handler
	outer := Idempotent(store, OrderReplayTTL, nil)
	var nested *httptest.ResponseRecorder
	inner = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// A second submit lands while the first is still being handled.
		nested = httptest.NewRecorder()
		outer(http.NotFoundHandler()).ServeHTTP(nested, placeOrderRequest(customerID, "dup", `{}`))
		w.WriteHeader(http.StatusCreated)
	})

	resp := httptest.NewRecorder()
	outer(inner).ServeHTTP(resp, placeOrderRequest(customerID, "dup", `{}`))
	if resp.Code != http.StatusCreated {
		t.Fatalf("expected first request to complete, got %d", resp.Code)
	}
	if nested == nil || nested.Code != http.StatusConflict {
		t.Fatalf("expected concurrent duplicate to get 409, got %+v", nested)
	}
	if got := errorCode(t, nested); got != string(pkgerrors.CodeConflict) {
		t.Fatalf("expected %s got %s", pkgerrors.CodeConflict, got)
	}
}

func TestIdempotentReleasesKeyOnServerError(t *testing.T) {
	store := newFakeReplayStore()
	customerID := uuid.New()
	var calls int
	handler := Idempotent(store, OrderReplayTTL, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusServiceUnavailable)
	}))

	handler.ServeHTTP(httptest.NewRecorder(), placeOrderRequest(customerID, "k", `{}`))
	handler.ServeHTTP(httptest.NewRecorder(), placeOrderRequest(customerID, "k", `{}`))
	if calls != 2 {
		t.Fatalf("expected retry after server error to execute again, calls=%d", calls)
	}
	if len(store.data) != 0 {
		t.Fatalf("expected key released, store=%v", store.data)
	}
}

func TestIdempotentReleasesKeyOnBusinessRuleRejection(t *testing.T) {
	store := newFakeReplayStore()
	customerID := uuid.New()
	var calls int
	handler := Idempotent(store, OrderReplayTTL, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls == 1 {
			responses.WriteError(r.Context(), nil, w, pkgerrors.New(pkgerrors.CodeBusinessRule, `insufficient stock for "Basil": 2 remaining`))
			return
		}
		w.WriteHeader(http.StatusCreated)
	}))

	first := httptest.NewRecorder()
	handler.ServeHTTP(first, placeOrderRequest(customerID, "fix-cart", `{"phone":"0812345678"}`))
	if first.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", first.Code)
	}
	if len(store.data) != 0 {
		t.Fatalf("expected key released after rejection, store=%v", store.data)
	}

	// The customer trims the cart and resubmits with the same key.
	second := httptest.NewRecorder()
	handler.ServeHTTP(second, placeOrderRequest(customerID, "fix-cart", `{"phone":"0812345678"}`))
	if second.Code != http.StatusCreated || second.Header().Get(replayedHeader) != "" {
		t.Fatalf("expected a fresh 201, got %d replayed=%q", second.Code, second.Header().Get(replayedHeader))
	}
	if calls != 2 {
		t.Fatalf("handler executed %d times, expected 2", calls)
	}
}

func TestIdempotentKeepsClientErrors(t *testing.T) {
	var calls int
	handler := Idempotent(newFakeReplayStore(), OrderReplayTTL, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusBadRequest)
	}))
	customerID := uuid.New()
	handler.ServeHTTP(httptest.NewRecorder(), placeOrderRequest(customerID, "bad", `{}`))
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, placeOrderRequest(customerID, "bad", `{}`))
	if calls != 1 || resp.Code != http.StatusBadRequest {
		t.Fatalf("expected stored 400 replayed, calls=%d code=%d", calls, resp.Code)
	}
}

func TestIdempotentDetectsBodyChange(t *testing.T) {
	handler := Idempotent(newFakeReplayStore(), OrderReplayTTL, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusCreated)
	}))
	customerID := uuid.New()

	handler.ServeHTTP(httptest.NewRecorder(), placeOrderRequest(customerID, "xyz", `{"phone":"0812345678"}`))

	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, placeOrderRequest(customerID, "xyz", `{"phone":"0899999999"}`))
	if resp.Code != http.StatusConflict {
		t.Fatalf("expected 409 got %d", resp.Code)
	}
	if got := errorCode(t, resp); got != string(pkgerrors.CodeIdempotency) {
		t.Fatalf("expected error code %s got %s", pkgerrors.CodeIdempotency, got)
	}
}

func TestIdempotentNilStorePassesThrough(t *testing.T) {
	called := false
	handler := Idempotent(nil, OrderReplayTTL, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, placeOrderRequest(uuid.New(), "", `{}`))
	if !called || resp.Code != http.StatusOK {
		t.Fatalf("expected passthrough, called=%v code=%d", called, resp.Code)
	}
}
