package storage

import (
	"fmt"
	"log/slog"
)

type factoryOptions struct {
	logger *slog.Logger
}

type Option func(*factoryOptions)

// WithLogger routes backend-internal logging (badger) to logger.
func WithLogger(logger *slog.Logger) Option {
	return func(o *factoryOptions) { o.logger = logger }
}

// DefaultStoreKind is sqlite in builds with the sqlite tag and memory
// otherwise.
func DefaultStoreKind() string {
	return defaultStoreKind
}

// NewStore builds an uninitialized store. path is the sqlite database file
// or the badger directory; an empty badger path keeps data in memory.
func NewStore(kind, path string, opts ...Option) (Store, error) {
	var o factoryOptions
	for _, opt := range opts {
		opt(&o)
	}
	switch kind {
	case "", "memory":
		return NewMemoryStore(), nil
	case "sqlite":
		return newSQLiteStore(path)
	case "badger":
		return NewBadgerStore(path, o.logger), nil
	default:
		return nil, fmt.Errorf("unsupported store backend: %s", kind)
	}
}

func CloseIfSupported(store Store) error {
	closer, ok := store.(interface{ Close() error })
	if !ok {
		return nil
	}
	return closer.Close()
}
