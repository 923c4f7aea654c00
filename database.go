package nomt

import (
	"sync"

	"github.com/syndtr/goleveldb/leveldb"
)

// Database is the key-value store backing the reference trie's
// content-addressed node store. Get returns nil data for missing keys.
type Database interface {
	Get(key []byte) ([]byte, error)
	Set(key []byte, value []byte) error
	Delete(key []byte) error
	Has(key []byte) (bool, error)
}

// InMemoryDatabase is a simple in-memory database implementation.
type InMemoryDatabase struct {
	data map[string][]byte
	mu   sync.RWMutex
}

// NewInMemoryDatabase creates a new in-memory database.
func NewInMemoryDatabase() *InMemoryDatabase {
	return &InMemoryDatabase{
		data: make(map[string][]byte),
	}
}

// Get retrieves a value by key.
func (db *InMemoryDatabase) Get(key []byte) ([]byte, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	value, exists := db.data[string(key)]
	if !exists {
		return nil, nil
	}

	// Return a copy to prevent external modifications.
	result := make([]byte, len(value))
	copy(result, value)
	return result, nil
}

// Set stores a key-value pair.
func (db *InMemoryDatabase) Set(key []byte, value []byte) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	stored := make([]byte, len(value))
	copy(stored, value)
	db.data[string(key)] = stored
	return nil
}

// Delete removes a key-value pair.
func (db *InMemoryDatabase) Delete(key []byte) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	delete(db.data, string(key))
	return nil
}

// Has checks if a key exists.
func (db *InMemoryDatabase) Has(key []byte) (bool, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	_, exists := db.data[string(key)]
	return exists, nil
}

// LevelDBDatabase is a LevelDB-backed database implementation.
type LevelDBDatabase struct {
	db *leveldb.DB
}

// NewLevelDBDatabase opens or creates a LevelDB database at the given path.
func NewLevelDBDatabase(path string) (*LevelDBDatabase, error) {
	db, err := leveldb.OpenFile(path, nil)
	if err != nil {
		return nil, err
	}
	return &LevelDBDatabase{db: db}, nil
}

// Get retrieves a value by key.
func (db *LevelDBDatabase) Get(key []byte) ([]byte, error) {
	value, err := db.db.Get(key, nil)
	if err == leveldb.ErrNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return value, nil
}

// Set stores a key-value pair.
func (db *LevelDBDatabase) Set(key []byte, value []byte) error {
	return db.db.Put(key, value, nil)
}

// Delete removes a key-value pair.
func (db *LevelDBDatabase) Delete(key []byte) error {
	return db.db.Delete(key, nil)
}

// Has checks if a key exists.
func (db *LevelDBDatabase) Has(key []byte) (bool, error) {
	return db.db.Has(key, nil)
}

// Close closes the underlying LevelDB handle.
func (db *LevelDBDatabase) Close() error {
	return db.db.Close()
}
