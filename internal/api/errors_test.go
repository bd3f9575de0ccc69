package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestWriteJSON(t *testing.T) {
	w := httptest.NewRecorder()
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "ok"})

	if w.Code != http.StatusAccepted {
		t.Errorf("status: got %d, want %d", w.Code, http.StatusAccepted)
	}
	if ct := w.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type: got %q, want %q", ct, "application/json")
	}

	var got map[string]string
	if err := json.NewDecoder(w.Body).Decode(&got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got["status"] != "ok" {
		t.Errorf("body: got %v", got)
	}
}

func TestWriteError(t *testing.T) {
	for _, code := range []int{http.StatusBadRequest, http.StatusNotFound, http.StatusServiceUnavailable} {
		w := httptest.NewRecorder()
		r := httptest.NewRequest(http.MethodGet, "/v1/readyz", nil)
		writeError(w, r, code, "storage unavailable")

		if w.Code != code {
			t.Errorf("status: got %d, want %d", w.Code, code)
		}
		var resp errorResponse
		if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if resp.Error != "storage unavailable" {
			t.Errorf("error: got %q", resp.Error)
		}
		if resp.RequestID != "" {
			t.Errorf("request_id without middleware: got %q", resp.RequestID)
		}
	}
}

func TestWriteError_IncludesRequestID(t *testing.T) {
	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodPost, "/v1/commands", nil)
	r = r.WithContext(context.WithValue(r.Context(), requestIDKey{}, "req-7"))
	writeError(w, r, http.StatusInternalServerError, "internal server error")

	var resp errorResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.RequestID != "req-7" {
		t.Errorf("request_id: got %q, want %q", resp.RequestID, "req-7")
	}
}
