package scenario

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
)

var testLogger = slog.New(slog.NewJSONHandler(io.Discard, nil))

func TestStoreDefault(t *testing.T) {
	s := NewStore()
	if !reflect.DeepEqual(s.Names(), []string{DefaultName}) {
		t.Errorf("names = %v", s.Names())
	}
	sc, ok := s.Get(DefaultName)
	if !ok {
		t.Fatal("default scenario missing")
	}

	// Callers get copies.
	sc.Wind[0].SpeedKn.Mean = 999
	again, _ := s.Get(DefaultName)
	if again.Wind[0].SpeedKn.Mean == 999 {
		t.Error("mutating a returned scenario changed the store")
	}
}

func TestStorePut(t *testing.T) {
	s := NewStore()
	sc := Default()
	sc.Name = "calm"
	sc.Wind[0].SpeedKn = Uncertain{}
	sc.Wind[1].SpeedKn = Uncertain{}
	if err := s.Put(sc); err != nil {
		t.Fatal(err)
	}
	if s.Len() != 2 {
		t.Errorf("len = %d, want 2", s.Len())
	}
	if got := s.Names(); got[0] != "calm" {
		t.Errorf("names not sorted: %v", got)
	}

	bad := Default()
	bad.Name = "bad"
	bad.TimeStep = -1
	if err := s.Put(bad); err == nil {
		t.Error("expected invalid scenario to be rejected")
	}
	if _, ok := s.Get("bad"); ok {
		t.Error("invalid scenario stored")
	}
}

func TestStoreLoadDir(t *testing.T) {
	dir := t.TempDir()
	write := func(name, body string) {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(body), 0644); err != nil {
			t.Fatal(err)
		}
	}
	write("lowcloud.json", `{"crash_time": {"mean": "19:39:50", "std": 20}}`)
	write("named.json", `{"name": "alt-fix", "fix_range_nm": {"mean": 47, "std": 1}}`)
	write("broken.json", `{"name": `)
	write("invalid.json", `{"time_step_s": 0}`)
	write("notes.txt", `ignored`)

	s := NewStore()
	n, err := s.LoadDir(dir, testLogger)
	if err != nil {
		t.Fatal(err)
	}
	if n != 2 {
		t.Errorf("loaded %d, want 2", n)
	}
	sc, ok := s.Get("lowcloud")
	if !ok {
		t.Fatal("file name not used as scenario name")
	}
	if sc.CrashTime.Mean != "19:39:50" || sc.FixTime != "19:36:00" {
		t.Errorf("overlay on defaults failed: crash=%q fix=%q", sc.CrashTime.Mean, sc.FixTime)
	}
	if _, ok := s.Get("alt-fix"); !ok {
		t.Error("explicit name not used")
	}

	if n, err := s.LoadDir(filepath.Join(dir, "missing"), testLogger); err != nil || n != 0 {
		t.Errorf("missing dir = %d, %v", n, err)
	}
}

func TestFetcherSuccess(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"name": "remote", "heading_deg": {"mean": 150, "std": 5}}`))
	}))
	defer server.Close()

	sc, err := NewFetcher(server.URL).Fetch(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if sc.Name != "remote" || sc.HeadingDeg.Mean != 150 {
		t.Errorf("scenario = %+v", sc)
	}
}

func TestFetcherErrors(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/missing":
			w.WriteHeader(http.StatusNotFound)
		case "/huge":
			w.WriteHeader(http.StatusOK)
			w.Write([]byte(strings.Repeat(" ", maxDocumentBytes+10)))
		}
	}))
	defer server.Close()

	if _, err := NewFetcher(server.URL + "/missing").Fetch(context.Background()); err == nil || !strings.Contains(err.Error(), "404") {
		t.Errorf("404 error = %v", err)
	}
	if _, err := NewFetcher(server.URL + "/huge").Fetch(context.Background()); err == nil || !strings.Contains(err.Error(), "byte limit") {
		t.Errorf("oversize error = %v", err)
	}
}
