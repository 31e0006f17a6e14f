package scenario

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"sync/atomic"
)

// Store provides thread-safe access to the named scenarios. Readers see an
// immutable snapshot; writers replace it.
type Store struct {
	snapshot atomic.Pointer[map[string]*Scenario]
	mu       sync.Mutex // serializes writers
}

// NewStore creates a Store holding the built-in scenario.
func NewStore() *Store {
	s := &Store{}
	m := map[string]*Scenario{DefaultName: Default()}
	s.snapshot.Store(&m)
	return s
}

// Get returns a copy of the named scenario.
func (s *Store) Get(name string) (*Scenario, bool) {
	sc, ok := (*s.snapshot.Load())[name]
	if !ok {
		return nil, false
	}
	return sc.Clone(), true
}

// Names returns the scenario names in sorted order.
func (s *Store) Names() []string {
	m := *s.snapshot.Load()
	names := make([]string, 0, len(m))
	for n := range m {
		names = append(names, n)
	}
	slices.Sort(names)
	return names
}

// Put validates sc and adds or replaces it under sc.Name.
func (s *Store) Put(sc *Scenario) error {
	if err := sc.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	old := *s.snapshot.Load()
	next := make(map[string]*Scenario, len(old)+1)
	for k, v := range old {
		next[k] = v
	}
	next[sc.Name] = sc.Clone()
	s.snapshot.Store(&next)
	return nil
}

// Len returns the number of scenarios.
func (s *Store) Len() int {
	return len(*s.snapshot.Load())
}

// LoadDir adds every *.json scenario in dir. Invalid files are logged and
// skipped. A missing directory is not an error.
func (s *Store) LoadDir(dir string, logger *slog.Logger) (int, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, fmt.Errorf("listing scenario dir: %w", err)
	}

	loaded := 0
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".json") {
			continue
		}
		path := filepath.Join(dir, e.Name())
		sc, err := ReadFile(path)
		if err != nil {
			logger.Warn("skipping scenario file", "path", path, "error", err)
			continue
		}
		if err := s.Put(sc); err != nil {
			logger.Warn("skipping invalid scenario", "path", path, "error", err)
			continue
		}
		loaded++
	}
	return loaded, nil
}

// ReadFile decodes one scenario file. A file without a name takes its base
// name.
func ReadFile(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading scenario: %w", err)
	}
	sc, err := Decode(data)
	if err != nil {
		return nil, err
	}
	if sc.Name == "" {
		sc.Name = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}
	return sc, nil
}

// Decode parses a JSON scenario. Fields missing from data keep the values
// of the built-in scenario.
func Decode(data []byte) (*Scenario, error) {
	sc := Default()
	sc.Name = ""
	sc.Description = ""
	if err := json.Unmarshal(data, sc); err != nil {
		return nil, fmt.Errorf("decoding scenario: %w", err)
	}
	return sc, nil
}

// Clone returns a deep copy.
func (sc *Scenario) Clone() *Scenario {
	c := *sc
	c.Wind = slices.Clone(sc.Wind)
	c.KnownAltitudes = slices.Clone(sc.KnownAltitudes)
	return &c
}
