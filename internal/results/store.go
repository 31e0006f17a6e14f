package results

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/star/impactsim/internal/metrics"
)

// ErrNotFound is returned by Get for unknown ids.
var ErrNotFound = errors.New("result not found")

const (
	filePrefix = "run_"
	fileSuffix = ".msgpack.zst"
)

// Config controls result retention.
type Config struct {
	Dir       string // archive directory; empty disables the archive
	MaxFiles  int    // archived runs kept (default 20)
	CacheSize int    // runs kept in memory (default 8)
}

// Store holds finished runs. It is safe for concurrent use.
type Store struct {
	dir      string
	maxFiles int
	mem      *lru.Cache[string, *Result]
	logger   *slog.Logger

	// mu serializes archive writes and pruning.
	mu sync.Mutex
}

// NewStore creates a Store. The archive directory is created on first Put.
func NewStore(cfg Config, logger *slog.Logger) (*Store, error) {
	if cfg.MaxFiles <= 0 {
		cfg.MaxFiles = 20
	}
	if cfg.CacheSize <= 0 {
		cfg.CacheSize = 8
	}
	mem, err := lru.New[string, *Result](cfg.CacheSize)
	if err != nil {
		return nil, fmt.Errorf("creating result cache: %w", err)
	}
	return &Store{
		dir:      cfg.Dir,
		maxFiles: cfg.MaxFiles,
		mem:      mem,
		logger:   logger,
	}, nil
}

// Put records a finished run in memory and, when enabled, in the archive.
func (s *Store) Put(r *Result) error {
	if err := uuid.Validate(r.ID); err != nil {
		return fmt.Errorf("result id %q: %w", r.ID, err)
	}
	s.mem.Add(r.ID, r)

	if s.dir == "" {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.MkdirAll(s.dir, 0755); err != nil {
		return fmt.Errorf("creating archive dir: %w", err)
	}

	ts := r.FinishedAt
	if ts.IsZero() {
		ts = time.Now()
	}
	name := fmt.Sprintf("%s%d_%s%s", filePrefix, ts.Unix(), r.ID, fileSuffix)
	path := filepath.Join(s.dir, name)

	// Write to a temporary name so a crash never leaves a truncated archive.
	tmp := path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("creating archive file: %w", err)
	}
	if err := Encode(f, r); err != nil {
		f.Close()
		os.Remove(tmp)
		return err
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("closing archive file: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("renaming archive file: %w", err)
	}

	s.logger.Debug("archived run", "id", r.ID, "file", name)
	return s.prune()
}

// Get returns a finished run from memory, falling back to the archive.
func (s *Store) Get(id string) (*Result, error) {
	if r, ok := s.mem.Get(id); ok {
		metrics.IncResultsLookup("memory")
		return r, nil
	}

	if s.dir != "" && uuid.Validate(id) == nil {
		files, err := s.listFiles()
		if err != nil {
			return nil, err
		}
		for _, af := range files {
			if af.id != id {
				continue
			}
			f, err := os.Open(filepath.Join(s.dir, af.name))
			if err != nil {
				return nil, fmt.Errorf("opening archive file: %w", err)
			}
			defer f.Close()
			r, err := Decode(f)
			if err != nil {
				return nil, fmt.Errorf("%s: %w", af.name, err)
			}
			s.mem.Add(id, r)
			metrics.IncResultsLookup("disk")
			return r, nil
		}
	}

	metrics.IncResultsLookup("miss")
	return nil, fmt.Errorf("%s: %w", id, ErrNotFound)
}

// List returns summaries of all known runs, newest first. Runs only present
// in the archive are summarized from their file names.
func (s *Store) List() ([]Summary, error) {
	seen := make(map[string]bool)
	var out []Summary
	for _, id := range s.mem.Keys() {
		if r, ok := s.mem.Peek(id); ok {
			out = append(out, r.Summary())
			seen[id] = true
		}
	}

	if s.dir != "" {
		files, err := s.listFiles()
		if err != nil {
			return nil, err
		}
		for _, f := range files {
			if seen[f.id] {
				continue
			}
			out = append(out, Summary{ID: f.id, FinishedAt: f.ts, Archived: true})
		}
	}

	sort.Slice(out, func(i, j int) bool {
		return out[i].FinishedAt.After(out[j].FinishedAt)
	})
	return out, nil
}

// Len returns the number of runs held in memory.
func (s *Store) Len() int { return s.mem.Len() }

type archiveFile struct {
	name string
	id   string
	ts   time.Time
}

func (s *Store) listFiles() ([]archiveFile, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("listing archive dir: %w", err)
	}

	var files []archiveFile
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		if !strings.HasPrefix(name, filePrefix) || !strings.HasSuffix(name, fileSuffix) {
			continue
		}
		// run_<unix>_<id>.msgpack.zst
		stem := strings.TrimSuffix(strings.TrimPrefix(name, filePrefix), fileSuffix)
		tsStr, id, ok := strings.Cut(stem, "_")
		if !ok {
			continue
		}
		unix, err := strconv.ParseInt(tsStr, 10, 64)
		if err != nil {
			continue
		}
		files = append(files, archiveFile{name: name, id: id, ts: time.Unix(unix, 0)})
	}

	sort.Slice(files, func(i, j int) bool {
		return files[i].ts.Before(files[j].ts)
	})
	return files, nil
}

func (s *Store) prune() error {
	files, err := s.listFiles()
	if err != nil {
		return err
	}
	if len(files) <= s.maxFiles {
		return nil
	}

	for _, f := range files[:len(files)-s.maxFiles] {
		if err := os.Remove(filepath.Join(s.dir, f.name)); err != nil {
			return fmt.Errorf("pruning archive file %s: %w", f.name, err)
		}
		s.logger.Debug("pruned archived run", "id", f.id)
	}
	return nil
}
