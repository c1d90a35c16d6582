package http

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"boqtrack/internal/core"
	"boqtrack/internal/ingest"
)

func TestResponseBuilder_JSON(t *testing.T) {
	w := httptest.NewRecorder()

	NewResponse().
		Status(http.StatusCreated).
		Header("X-Test", "1").
		JSON(map[string]int{"n": 3}).
		Write(w)

	if w.Code != http.StatusCreated {
		t.Errorf("Status code = %d, want %d", w.Code, http.StatusCreated)
	}
	if ct := w.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %q", ct)
	}
	if w.Header().Get("X-Test") != "1" {
		t.Error("custom header not set")
	}
	if strings.TrimSpace(w.Body.String()) != `{"n":3}` {
		t.Errorf("Body = %q", w.Body.String())
	}
}

func TestResponseBuilder_HTML(t *testing.T) {
	w := httptest.NewRecorder()
	NewResponse().HTML([]byte("<p>ok</p>")).Write(w)

	if ct := w.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/html") {
		t.Errorf("Content-Type = %q", ct)
	}
	if w.Body.String() != "<p>ok</p>" {
		t.Errorf("Body = %q", w.Body.String())
	}
}

func TestResponseBuilder_EncodeFailure(t *testing.T) {
	w := httptest.NewRecorder()
	NewResponse().JSON(func() {}).Write(w)

	if w.Code != http.StatusInternalServerError {
		t.Errorf("Status code = %d, want 500", w.Code)
	}
}

func TestResponseForError(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantBody   string
	}{
		{name: "validation", err: fmt.Errorf("create project: %w", core.ErrEmptyName), wantStatus: 400, wantBody: "empty name"},
		{name: "progress", err: core.ErrInvalidProgress, wantStatus: 400, wantBody: "progress"},
		{name: "unreadable file", err: fmt.Errorf("read x.pdf: %w", ingest.ErrUnreadableFile), wantStatus: 400, wantBody: "unreadable"},
		{name: "bad request", err: fmt.Errorf("%w: missing file field", errBadRequest), wantStatus: 400, wantBody: "missing file"},
		{name: "not found", err: fmt.Errorf("get budget line: %w", core.ErrNotFound), wantStatus: 404, wantBody: "not found"},
		{name: "conflict", err: fmt.Errorf("create category: %w", core.ErrConflict), wantStatus: 409, wantBody: "already exists"},
		{name: "too large", err: &http.MaxBytesError{Limit: 10}, wantStatus: 413, wantBody: "too large"},
		{name: "internal", err: errors.New("connection refused to 10.0.0.1"), wantStatus: 500, wantBody: "internal server error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			ResponseForError(tt.err).Write(w)

			if w.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", w.Code, tt.wantStatus)
			}
			if !strings.Contains(w.Body.String(), tt.wantBody) {
				t.Errorf("body = %q, want it to contain %q", w.Body.String(), tt.wantBody)
			}
		})
	}
}

func TestResponseForError_HidesInternalDetails(t *testing.T) {
	w := httptest.NewRecorder()
	ResponseForError(errors.New("pq: password authentication failed")).Write(w)
	if strings.Contains(w.Body.String(), "password") {
		t.Errorf("internal error leaked: %s", w.Body.String())
	}
}
