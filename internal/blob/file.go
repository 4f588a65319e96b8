package blob

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"
)

type fileEntry struct {
	Value     []byte    `json:"value"`
	ExpiresAt time.Time `json:"expires_at,omitempty"`
}

// FileStore хранит значения в памяти и синхронизирует их с JSON-файлом на диске.
// Формат файла: JSON-объект map[string]fileEntry. Запись атомарная —
// через временный файл и rename.
type FileStore struct {
	mu      sync.Mutex
	entries map[string]fileEntry
	path    string
}

// NewFileStore создаёт FileStore и загружает данные из указанного файла.
// При ошибке чтения файла логирует предупреждение и стартует с пустой картой.
func NewFileStore(path string) (*FileStore, error) {
	if path == "" {
		return nil, fmt.Errorf("filestore path is empty")
	}

	fs := &FileStore{
		entries: make(map[string]fileEntry),
		path:    path,
	}
	if err := fs.load(); err != nil {
		return nil, err
	}
	return fs, nil
}

func (s *FileStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.entries[key]
	if !ok {
		return nil, false, nil
	}
	if !entry.ExpiresAt.IsZero() && time.Now().After(entry.ExpiresAt) {
		delete(s.entries, key)
		if err := s.persistLocked(); err != nil {
			log.Printf("filestore: persist after expiry failed: %v", err)
		}
		return nil, false, nil
	}

	value := make([]byte, len(entry.Value))
	copy(value, entry.Value)
	return value, true, nil
}

func (s *FileStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry := fileEntry{Value: make([]byte, len(value))}
	copy(entry.Value, value)
	if ttl > 0 {
		entry.ExpiresAt = time.Now().Add(ttl)
	}
	s.entries[key] = entry
	return s.persistLocked()
}

func (s *FileStore) Delete(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.entries, key)
	return s.persistLocked()
}

func (s *FileStore) load() error {
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create store dir: %w", err)
	}

	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		log.Printf("filestore: read file %s: %v", s.path, err)
		return nil
	}
	if len(data) == 0 {
		return nil
	}

	var raw map[string]fileEntry
	if err := json.Unmarshal(data, &raw); err != nil {
		log.Printf("filestore: unmarshal %s: %v", s.path, err)
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = raw
	return nil
}

func (s *FileStore) persistLocked() error {
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create store dir: %w", err)
	}

	data, err := json.MarshalIndent(s.entries, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal entries: %w", err)
	}

	tmpFile, err := os.CreateTemp(dir, filepath.Base(s.path)+".tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}

	tmpName := tmpFile.Name()
	if _, err := tmpFile.Write(data); err != nil {
		tmpFile.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmpFile.Sync(); err != nil {
		tmpFile.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("sync temp file: %w", err)
	}
	if err := tmpFile.Close(); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("close temp file: %w", err)
	}

	if err := os.Rename(tmpName, s.path); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("rename temp file: %w", err)
	}

	return nil
}
