package storage

import "fmt"

// Store backend kinds accepted by NewStore. DefaultStoreKind picks one based
// on whether the build carries the sqlite tag.
const (
	KindMemory = "memory"
	KindSQLite = "sqlite"
)

// NewStore builds a store backend by kind; empty selects the memory backend.
// The sqlite path is ignored by the memory backend.
func NewStore(kind, sqlitePath string) (Store, error) {
	switch kind {
	case "", KindMemory:
		return NewMemoryStore(), nil
	case KindSQLite:
		return newSQLiteStore(sqlitePath)
	default:
		return nil, fmt.Errorf("unsupported store backend: %s", kind)
	}
}

// CloseIfSupported releases backends holding external resources. The memory
// backend has nothing to close.
func CloseIfSupported(store Store) error {
	closer, ok := store.(interface{ Close() error })
	if !ok {
		return nil
	}
	return closer.Close()
}
