package storage

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
)

// ErrNotFound is returned by Get when the key is absent.
var ErrNotFound = errors.New("storage: key not found")

const tmpSuffix = ".tmp"

// Item is one stored value.
type Item struct {
	Key   string
	Value []byte
}

// LocalStore is a durable key-value store on disk. Each store name is a
// directory under the base dir and each key a file, so values survive restarts.
type LocalStore struct {
	baseDir string
	mu      sync.Mutex
}

// NewLocalStore ensures the base directory exists and returns a handle.
func NewLocalStore(baseDir string) (*LocalStore, error) {
	if baseDir == "" {
		baseDir = "./.presence-queue"
	}
	if err := os.MkdirAll(baseDir, 0o700); err != nil {
		return nil, fmt.Errorf("create storage directory: %w", err)
	}
	return &LocalStore{baseDir: baseDir}, nil
}

// Put writes value under store/key, replacing any previous value atomically.
func (s *LocalStore) Put(store, key string, value []byte) error {
	path, err := s.resolve(store, key)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("prepare store directory: %w", err)
	}
	tmp := path + tmpSuffix
	if err := os.WriteFile(tmp, value, 0o600); err != nil {
		return fmt.Errorf("write value: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("commit value: %w", err)
	}
	return nil
}

// Get returns the value stored under store/key.
func (s *LocalStore) Get(store, key string) ([]byte, error) {
	path, err := s.resolve(store, key)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("read value: %w", err)
	}
	return data, nil
}

// Delete removes store/key if present.
func (s *LocalStore) Delete(store, key string) error {
	path, err := s.resolve(store, key)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("delete value: %w", err)
	}
	return nil
}

// ListAll returns every item in store ordered by key.
func (s *LocalStore) ListAll(store string) ([]Item, error) {
	dir, err := s.storeDir(store)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("list store: %w", err)
	}
	items := make([]Item, 0, len(entries))
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || strings.HasSuffix(name, tmpSuffix) {
			continue
		}
		key, err := url.PathUnescape(name)
		if err != nil {
			continue
		}
		data, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", key, err)
		}
		items = append(items, Item{Key: key, Value: data})
	}
	sort.Slice(items, func(i, j int) bool { return items[i].Key < items[j].Key })
	return items, nil
}

func (s *LocalStore) storeDir(store string) (string, error) {
	if store == "" || store == "." || store == ".." || strings.ContainsAny(store, `/\`) {
		return "", fmt.Errorf("invalid store name %q", store)
	}
	return filepath.Join(s.baseDir, store), nil
}

func (s *LocalStore) resolve(store, key string) (string, error) {
	dir, err := s.storeDir(store)
	if err != nil {
		return "", err
	}
	if key == "" {
		return "", fmt.Errorf("empty key")
	}
	name := url.PathEscape(key)
	if name == "." || name == ".." || strings.HasSuffix(name, tmpSuffix) {
		return "", fmt.Errorf("invalid key %q", key)
	}
	return filepath.Join(dir, name), nil
}
