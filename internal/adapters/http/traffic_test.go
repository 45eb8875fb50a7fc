package httpadapter

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/kirillkom/crop-disease-analyzer/internal/config"
)

func TestRouterRateLimit(t *testing.T) {
	handler := newTestDeps().handler(config.Config{RateLimitRPS: 1, RateLimitBurst: 1})

	codes := make([]int, 0, 2)
	var retryAfter string
	for range 2 {
		res := httptest.NewRecorder()
		handler.ServeHTTP(res, httptest.NewRequest(http.MethodGet, "/healthz", nil))
		codes = append(codes, res.Code)
		retryAfter = res.Header().Get("Retry-After")
	}
	if codes[0] != http.StatusOK || codes[1] != http.StatusTooManyRequests {
		t.Fatalf("expected 200 then 429, got %v", codes)
	}
	if retryAfter != "1" {
		t.Fatalf("expected Retry-After 1, got %q", retryAfter)
	}
}

func TestTrafficControlDisabledByZeroLimits(t *testing.T) {
	base := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	handler := rateLimitMiddleware(backpressureMiddleware(base, 0, time.Millisecond), 0, 0)
	for range 5 {
		res := httptest.NewRecorder()
		handler.ServeHTTP(res, httptest.NewRequest(http.MethodGet, "/healthz", nil))
		if res.Code != http.StatusNoContent {
			t.Fatalf("expected passthrough, got %d", res.Code)
		}
	}
}

func TestBackpressureShedsWhenSlotsAreTaken(t *testing.T) {
	inside := make(chan struct{})
	release := make(chan struct{})
	first := make(chan int, 1)

	handler := backpressureMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		close(inside)
		<-release
		w.WriteHeader(http.StatusAccepted)
	}), 1, 10*time.Millisecond)

	go func() {
		res := httptest.NewRecorder()
		handler.ServeHTTP(res, httptest.NewRequest(http.MethodPost, "/v1/analyses", nil))
		first <- res.Code
	}()
	<-inside

	res := httptest.NewRecorder()
	handler.ServeHTTP(res, httptest.NewRequest(http.MethodPost, "/v1/analyses", nil))
	if res.Code != http.StatusServiceUnavailable || res.Header().Get("Retry-After") == "" {
		t.Fatalf("expected shed request with Retry-After, got %d", res.Code)
	}
	var body map[string]string
	if err := json.NewDecoder(res.Body).Decode(&body); err != nil || body["error"] == "" {
		t.Fatalf("expected JSON error body, got %q (%v)", res.Body.String(), err)
	}

	close(release)
	select {
	case code := <-first:
		if code != http.StatusAccepted {
			t.Fatalf("first request expected 202, got %d", code)
		}
	case <-time.After(time.Second):
		t.Fatalf("first request did not complete")
	}
}
