// Package store persists provider state that outlives one run: paired Hue
// bridges and the addresses of Elgato accessories found by discovery.
package store

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"slices"
	"sync"
)

type State struct {
	HueBridges  []HueBridge `json:"hueBridges,omitempty"`
	ElgatoAddrs []string    `json:"elgatoAddrs,omitempty"`
}

type HueBridge struct {
	ID       string `json:"id"`
	IP       string `json:"ip"`
	Username string `json:"username"`
}

type Store struct {
	mu       sync.Mutex
	state    State
	filePath string
}

// Open loads the state file at path, or the per-user default when path is
// empty. A missing file yields an empty store.
func Open(path string) (*Store, error) {
	if path == "" {
		p, err := DefaultPath()
		if err != nil {
			return nil, err
		}
		path = p
	}

	s := &Store{filePath: path}
	if err := s.load(); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("loading %s: %w", path, err)
	}
	return s, nil
}

func (s *Store) Path() string { return s.filePath }

func (s *Store) HueBridges() []HueBridge {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]HueBridge(nil), s.state.HueBridges...)
}

// UpsertHueBridge stores b, replacing an entry with the same IP.
func (s *Store) UpsertHueBridge(b HueBridge) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, existing := range s.state.HueBridges {
		if existing.IP == b.IP {
			s.state.HueBridges[i] = b
			return s.saveLocked()
		}
	}
	s.state.HueBridges = append(s.state.HueBridges, b)
	return s.saveLocked()
}

func (s *Store) RemoveHueBridge(ip string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.HueBridges = slices.DeleteFunc(s.state.HueBridges, func(b HueBridge) bool { return b.IP == ip })
	return s.saveLocked()
}

func (s *Store) ElgatoAddrs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.state.ElgatoAddrs...)
}

// AddElgatoAddrs remembers new addresses. The file is only rewritten when
// something was added.
func (s *Store) AddElgatoAddrs(addrs ...string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	added := false
	for _, a := range addrs {
		if a == "" || slices.Contains(s.state.ElgatoAddrs, a) {
			continue
		}
		s.state.ElgatoAddrs = append(s.state.ElgatoAddrs, a)
		added = true
	}
	if !added {
		return nil
	}
	return s.saveLocked()
}

func (s *Store) load() error {
	data, err := os.ReadFile(s.filePath)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return json.Unmarshal(data, &s.state)
}

// saveLocked marshals state and writes atomically. Caller must hold s.mu.
func (s *Store) saveLocked() error {
	data, err := json.MarshalIndent(s.state, "", "  ")
	if err != nil {
		return err
	}

	dir := filepath.Dir(s.filePath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	tmp := s.filePath + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return err
	}
	return os.Rename(tmp, s.filePath)
}

// DefaultPath returns the per-user state file location.
func DefaultPath() (string, error) {
	var dir string
	switch runtime.GOOS {
	case "windows":
		dir = os.Getenv("APPDATA")
	case "darwin":
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		dir = filepath.Join(home, "Library", "Application Support")
	default:
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		dir = filepath.Join(home, ".config")
	}
	return filepath.Join(dir, "auraconnect", "state.json"), nil
}
