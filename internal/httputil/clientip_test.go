package httputil

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestClientIPRemoteAddr(t *testing.T) {
	tests := []struct {
		remoteAddr string
		want       string
	}{
		{"192.168.1.1:12345", "192.168.1.1"},
		{"[::1]:12345", "::1"},
		{"[::ffff:10.1.2.3]:80", "10.1.2.3"},
		{"[fe80::1%eth0]:443", "fe80::1"},
		{"192.168.1.1", "192.168.1.1"},
		{"pipe:0", "pipe"},
		{"@", "@"},
	}
	for _, tt := range tests {
		r := &http.Request{RemoteAddr: tt.remoteAddr}
		if got := ClientIP(r, false); got != tt.want {
			t.Errorf("ClientIP(%q, false) = %q, want %q", tt.remoteAddr, got, tt.want)
		}
	}
}

func TestClientIPTrustProxy(t *testing.T) {
	tests := []struct {
		name string
		xff  string
		xri  string
		want string
	}{
		{name: "forwarded single", xff: "1.2.3.4", want: "1.2.3.4"},
		{name: "forwarded chain takes leftmost", xff: "1.2.3.4, 10.0.0.1, 10.0.0.2", want: "1.2.3.4"},
		{name: "garbage entries skipped", xff: "unknown, , 2001:db8::7", want: "2001:db8::7"},
		{name: "forwarded with port", xff: "1.2.3.4:5555", want: "1.2.3.4"},
		{name: "real ip fallback", xri: " 5.6.7.8 ", want: "5.6.7.8"},
		{name: "unparseable headers fall back to peer", xff: "nope", xri: "also-nope", want: "10.0.0.1"},
		{name: "forwarded beats real ip", xff: "1.2.3.4", xri: "5.6.7.8", want: "1.2.3.4"},
		{name: "no headers", want: "10.0.0.1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := &http.Request{RemoteAddr: "10.0.0.1:1234", Header: http.Header{}}
			if tt.xff != "" {
				r.Header.Set("X-Forwarded-For", tt.xff)
			}
			if tt.xri != "" {
				r.Header.Set("X-Real-IP", tt.xri)
			}
			if got := ClientIP(r, true); got != tt.want {
				t.Errorf("ClientIP(trustProxy=true) = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestClientIPIgnoresHeadersWhenNotTrusted(t *testing.T) {
	r := &http.Request{RemoteAddr: "10.0.0.1:1234", Header: http.Header{}}
	r.Header.Set("X-Forwarded-For", "1.2.3.4")
	r.Header.Set("X-Real-IP", "5.6.7.8")

	if got := ClientIP(r, false); got != "10.0.0.1" {
		t.Errorf("ClientIP(trustProxy=false) = %q, want 10.0.0.1", got)
	}
}

func TestWriteError(t *testing.T) {
	w := httptest.NewRecorder()
	WriteError(w, http.StatusConflict, "busy")

	if w.Code != http.StatusConflict {
		t.Errorf("status = %d, want %d", w.Code, http.StatusConflict)
	}
	if ct := w.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %q", ct)
	}
	var body map[string]string
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatal(err)
	}
	if body["error"] != "busy" {
		t.Errorf("body = %v", body)
	}
}
