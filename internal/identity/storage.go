package identity

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/pkg/errors"

	"github.com/nocturn-hq/concierge-widget/internal/config"
)

// Storage is a durable key-value area scoped to one embedding origin.
type Storage interface {
	// Get returns the stored value and whether the key exists.
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string) error
	Close() error
}

// MemoryStorage keeps values for the lifetime of the process only.
type MemoryStorage struct {
	mu     sync.RWMutex
	values map[string]string
}

var _ Storage = (*MemoryStorage)(nil)

func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{values: make(map[string]string)}
}

func (m *MemoryStorage) Get(_ context.Context, key string) (string, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.values[key]
	return v, ok, nil
}

func (m *MemoryStorage) Set(_ context.Context, key, value string) error {
	m.mu.Lock()
	m.values[key] = value
	m.mu.Unlock()
	return nil
}

func (m *MemoryStorage) Close() error { return nil }

// OpenStorage builds the backend selected by cfg.Driver.
func OpenStorage(ctx context.Context, cfg config.StorageConfig) (Storage, error) {
	scope := strings.TrimSpace(cfg.Scope)
	if scope == "" {
		scope = "default"
	}

	switch strings.ToLower(strings.TrimSpace(cfg.Driver)) {
	case "", "memory":
		return NewMemoryStorage(), nil
	case "file":
		path := cfg.DSN
		if path == "" {
			var err error
			if path, err = defaultFilePath(); err != nil {
				return nil, err
			}
		}
		return NewFileStorage(path, scope), nil
	case "sqlite", "sqlite3":
		s, err := NewSQLiteStorage(cfg.DSN, scope)
		if err != nil {
			return nil, err
		}
		return s, nil
	case "redis":
		s, err := NewRedisStorage(ctx, cfg.DSN, scope)
		if err != nil {
			return nil, err
		}
		return s, nil
	default:
		return nil, errors.Errorf("unknown storage driver %q", cfg.Driver)
	}
}

func defaultFilePath() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", errors.Wrap(err, "resolve user config dir")
	}
	return filepath.Join(dir, "nocturn", "widget.json"), nil
}
