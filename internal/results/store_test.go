package results

import (
	"bytes"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/star/impactsim/internal/montecarlo"
	"github.com/star/impactsim/internal/sensitivity"
	"github.com/star/impactsim/internal/trajectory"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelWarn}))
}

func testResult(t *testing.T, finished time.Time) *Result {
	t.Helper()
	g, err := montecarlo.CenteredOn(trajectory.Point2{X: 100, Y: 200}, 4, 4, 50)
	if err != nil {
		t.Fatal(err)
	}
	g.Add(trajectory.Point2{X: 100, Y: 200})
	g.Add(trajectory.Point2{X: 100, Y: 200})
	g.Add(trajectory.Point2{X: 50, Y: 200})

	impact := trajectory.Point3{X: 100, Y: 200}
	return &Result{
		ID:         uuid.NewString(),
		Scenario:   "williamstown",
		State:      "completed",
		Completed:  3,
		Total:      3,
		Workers:    1,
		StartedAt:  finished.Add(-time.Minute),
		FinishedAt: finished,
		Reference: &sensitivity.Result{
			Nominal: trajectory.Track{{X: 0, Y: 0, Z: 1000}, impact},
			Impact:  impact,
			Bands:   []sensitivity.Band{{Name: "heading +1σ", Sigma: 1}},
		},
		Grid: g,
	}
}

func TestEncodeDecode(t *testing.T) {
	want := testResult(t, time.Unix(1700000000, 0))
	var buf bytes.Buffer
	if err := Encode(&buf, want); err != nil {
		t.Fatal(err)
	}
	got, err := Decode(&buf)
	if err != nil {
		t.Fatal(err)
	}
	if got.ID != want.ID || got.Scenario != want.Scenario || got.Completed != 3 {
		t.Errorf("header = %+v", got)
	}
	if !got.FinishedAt.Equal(want.FinishedAt) {
		t.Errorf("finished = %v, want %v", got.FinishedAt, want.FinishedAt)
	}
	if got.Grid == nil || got.Grid.Sum() != 3 || got.Grid.Max() != 2 {
		t.Errorf("grid = %+v", got.Grid)
	}
	if got.Grid.Origin != want.Grid.Origin {
		t.Errorf("origin = %v, want %v", got.Grid.Origin, want.Grid.Origin)
	}
	if got.Reference == nil || len(got.Reference.Nominal) != 2 || got.Reference.Impact != want.Reference.Impact {
		t.Errorf("reference = %+v", got.Reference)
	}
}

func TestDecodeGarbage(t *testing.T) {
	if _, err := Decode(bytes.NewReader([]byte("not zstd"))); err == nil {
		t.Error("expected error")
	}
}

func TestStoreMemoryOnly(t *testing.T) {
	s, err := NewStore(Config{CacheSize: 2}, testLogger())
	if err != nil {
		t.Fatal(err)
	}
	base := time.Unix(1700000000, 0)
	r1 := testResult(t, base)
	r2 := testResult(t, base.Add(time.Second))
	r3 := testResult(t, base.Add(2*time.Second))
	for _, r := range []*Result{r1, r2, r3} {
		if err := s.Put(r); err != nil {
			t.Fatal(err)
		}
	}

	if _, err := s.Get(r1.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("evicted result: err = %v, want ErrNotFound", err)
	}
	got, err := s.Get(r3.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got != r3 {
		t.Error("memory hit returned a different value")
	}

	list, err := s.List()
	if err != nil {
		t.Fatal(err)
	}
	if len(list) != 2 || list[0].ID != r3.ID || list[1].ID != r2.ID {
		t.Errorf("list = %+v", list)
	}
}

func TestStoreRejectsBadID(t *testing.T) {
	s, err := NewStore(Config{Dir: t.TempDir()}, testLogger())
	if err != nil {
		t.Fatal(err)
	}
	r := testResult(t, time.Now())
	r.ID = "../escape"
	if err := s.Put(r); err == nil {
		t.Error("expected error for invalid id")
	}
}

func TestStoreArchive(t *testing.T) {
	dir := t.TempDir()
	s, err := NewStore(Config{Dir: dir, MaxFiles: 2, CacheSize: 1}, testLogger())
	if err != nil {
		t.Fatal(err)
	}

	base := time.Unix(1700000000, 0)
	var ids []string
	for i := range 3 {
		r := testResult(t, base.Add(time.Duration(i)*time.Second))
		ids = append(ids, r.ID)
		if err := s.Put(r); err != nil {
			t.Fatal(err)
		}
	}

	matches, err := filepath.Glob(filepath.Join(dir, "run_*"+fileSuffix))
	if err != nil {
		t.Fatal(err)
	}
	if len(matches) != 2 {
		t.Fatalf("archive files = %d, want 2: %v", len(matches), matches)
	}

	// Oldest was pruned and evicted.
	if _, err := s.Get(ids[0]); !errors.Is(err, ErrNotFound) {
		t.Errorf("pruned result: err = %v", err)
	}

	// Second is only on disk.
	got, err := s.Get(ids[1])
	if err != nil {
		t.Fatalf("disk lookup: %v", err)
	}
	if got.ID != ids[1] || got.Grid.Sum() != 3 {
		t.Errorf("disk result = %+v", got)
	}

	// A fresh store over the same directory sees the archive.
	s2, err := NewStore(Config{Dir: dir, MaxFiles: 2}, testLogger())
	if err != nil {
		t.Fatal(err)
	}
	list, err := s2.List()
	if err != nil {
		t.Fatal(err)
	}
	if len(list) != 2 || list[0].ID != ids[2] || !list[0].Archived {
		t.Errorf("list = %+v", list)
	}
}

func TestStoreIgnoresForeignFiles(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"notes.txt", "run_abc_x.msgpack.zst", "run_1.msgpack.zst"} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte("x"), 0644); err != nil {
			t.Fatal(err)
		}
	}
	s, err := NewStore(Config{Dir: dir}, testLogger())
	if err != nil {
		t.Fatal(err)
	}
	list, err := s.List()
	if err != nil {
		t.Fatal(err)
	}
	if len(list) != 0 {
		t.Errorf("list = %+v, want empty", list)
	}
}
