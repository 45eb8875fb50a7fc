package httpadapter

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestRequestIDMiddleware(t *testing.T) {
	var seen string
	handler := requestIDMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = requestIDFromContext(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set(requestIDHeader, "field-42")
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)
	if seen != "field-42" || res.Header().Get(requestIDHeader) != "field-42" {
		t.Fatalf("expected client id to be propagated, got ctx=%q header=%q", seen, res.Header().Get(requestIDHeader))
	}

	for _, bad := range []string{"", "has space", strings.Repeat("x", maxRequestIDLength+1)} {
		req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
		req.Header.Set(requestIDHeader, bad)
		res := httptest.NewRecorder()
		handler.ServeHTTP(res, req)
		if seen == "" || seen == bad || res.Header().Get(requestIDHeader) != seen {
			t.Fatalf("expected generated id for %q, got %q", bad, seen)
		}
	}
}

func TestAccessLogRecordsStatusAndOwner(t *testing.T) {
	var buf bytes.Buffer
	prev := slog.Default()
	slog.SetDefault(slog.New(slog.NewJSONHandler(&buf, nil)))
	t.Cleanup(func() { slog.SetDefault(prev) })

	handler := requestIDMiddleware(accessLogMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusNotFound, "analysis not found")
	})))

	req := httptest.NewRequest(http.MethodGet, "/v1/analyses/a-1", nil)
	req.Header.Set(ownerHeader, "farmer-1")
	handler.ServeHTTP(httptest.NewRecorder(), req)

	var record map[string]any
	if err := json.Unmarshal(buf.Bytes(), &record); err != nil {
		t.Fatalf("decode access log %q: %v", buf.String(), err)
	}
	if record["msg"] != "http_request" || record["level"] != "WARN" {
		t.Fatalf("unexpected record %+v", record)
	}
	if record["status"] != float64(http.StatusNotFound) || record["owner_id"] != "farmer-1" || record["path"] != "/v1/analyses/a-1" {
		t.Fatalf("unexpected attributes %+v", record)
	}
	if record["request_id"] == "" || record["bytes"].(float64) == 0 {
		t.Fatalf("expected request id and body size, got %+v", record)
	}
}
