package control

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestWriteJSONSetsContentType(t *testing.T) {
	rec := httptest.NewRecorder()
	writeJSON(rec, map[string]string{"status": "ok"})

	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Fatalf("Content-Type = %q, want application/json", ct)
	}
	if !strings.Contains(rec.Body.String(), `"status":"ok"`) {
		t.Fatalf("unexpected body: %s", rec.Body.String())
	}
}

func TestDecodeJSONRejectsInvalidBody(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader("not json"))
	rec := httptest.NewRecorder()

	var v map[string]string
	if err := decodeJSON(rec, req, &v); err == nil {
		t.Fatal("expected decodeJSON to return an error for invalid JSON")
	}
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestDecodeJSONAcceptsValidBody(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"remote_peer":"abc"}`))
	rec := httptest.NewRecorder()

	var v struct {
		RemotePeer string `json:"remote_peer"`
	}
	if err := decodeJSON(rec, req, &v); err != nil {
		t.Fatalf("decodeJSON() error = %v", err)
	}
	if v.RemotePeer != "abc" {
		t.Fatalf("RemotePeer = %q, want abc", v.RemotePeer)
	}
}

func TestRequireMethodRejectsWrongMethod(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()

	if requireMethod(rec, req, http.MethodPost) {
		t.Fatal("requireMethod should return false for a mismatched method")
	}
	if rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("status = %d, want 405", rec.Code)
	}
}

func TestRequireMethodAcceptsMatchingMethod(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/", nil)
	rec := httptest.NewRecorder()

	if !requireMethod(rec, req, http.MethodPost) {
		t.Fatal("requireMethod should return true for a matching method")
	}
}

func TestHandlePostDecodesBodyBeforeCalling(t *testing.T) {
	mux := http.NewServeMux()
	type payload struct {
		Name string `json:"name"`
	}
	var got payload
	handlePost(mux, "/thing", func(w http.ResponseWriter, r *http.Request, p payload) {
		got = p
		writeJSON(w, map[string]string{"ok": "true"})
	})

	req := httptest.NewRequest(http.MethodPost, "/thing", strings.NewReader(`{"name":"x"}`))
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	if got.Name != "x" {
		t.Fatalf("handler did not receive decoded payload, got %+v", got)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
}
