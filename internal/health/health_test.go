package health

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestHealthz(t *testing.T) {
	w := httptest.NewRecorder()
	Healthz(w, httptest.NewRequest("GET", "/healthz", nil))
	if w.Code != http.StatusOK || w.Body.String() != "ok\n" {
		t.Errorf("got %d %q", w.Code, w.Body.String())
	}
}

func TestReadyz(t *testing.T) {
	pass := Check{Name: "scenarios", Fn: func() error { return nil }}
	fail := Check{Name: "archive", Fn: func() error { return errors.New("read-only") }}

	tests := []struct {
		name   string
		checks []Check
		want   int
		body   string
	}{
		{"no checks", nil, http.StatusOK, "ready\n"},
		{"all pass", []Check{pass}, http.StatusOK, "ready\n"},
		{"one fails", []Check{pass, fail}, http.StatusServiceUnavailable, "not ready: archive: read-only"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			Readyz(tt.checks...)(w, httptest.NewRequest("GET", "/readyz", nil))
			if w.Code != tt.want {
				t.Errorf("status = %d, want %d", w.Code, tt.want)
			}
			if !strings.HasPrefix(w.Body.String(), tt.body) {
				t.Errorf("body = %q, want prefix %q", w.Body.String(), tt.body)
			}
		})
	}
}
