package credentials

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/bytedance/sonic"
)

const DefaultKey = "openai_api_key"

// FileStore keeps one named secret in a JSON object file. Other entries
// in the file are preserved.
type FileStore struct {
	path string
	key  string
	mu   sync.Mutex
}

func NewFileStore(path, key string) (*FileStore, error) {
	if key == "" {
		key = DefaultKey
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("ensure dir: %w", err)
	}
	return &FileStore{path: path, key: key}, nil
}

// Load returns an empty string when nothing is stored.
func (s *FileStore) Load() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries, err := s.loadUnlocked()
	if err != nil {
		return "", err
	}
	return entries[s.key], nil
}

func (s *FileStore) Save(value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries, err := s.loadUnlocked()
	if err != nil {
		return err
	}
	entries[s.key] = value
	return s.saveUnlocked(entries)
}

func (s *FileStore) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries, err := s.loadUnlocked()
	if err != nil {
		return err
	}
	if _, ok := entries[s.key]; !ok {
		return nil
	}
	delete(entries, s.key)
	return s.saveUnlocked(entries)
}

// Seed stores value only when nothing is stored yet. It reports whether
// the value was written.
func (s *FileStore) Seed(value string) (bool, error) {
	if value == "" {
		return false, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	entries, err := s.loadUnlocked()
	if err != nil {
		return false, err
	}
	if entries[s.key] != "" {
		return false, nil
	}
	entries[s.key] = value
	return true, s.saveUnlocked(entries)
}

func (s *FileStore) loadUnlocked() (map[string]string, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return map[string]string{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading credentials: %w", err)
	}

	entries := map[string]string{}
	if len(data) == 0 {
		return entries, nil
	}
	if err := sonic.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("parsing credentials: %w", err)
	}
	if entries == nil {
		entries = map[string]string{}
	}
	return entries, nil
}

func (s *FileStore) saveUnlocked(entries map[string]string) error {
	data, err := sonic.ConfigStd.MarshalIndent(entries, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding credentials: %w", err)
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("writing credentials: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("replacing credentials: %w", err)
	}
	return nil
}
