package wallet

import (
	"errors"
	"fmt"
	"sync"

	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/opt"
)

// SessionKey is the fixed storage key of the active account.
const SessionKey = "account"

// ErrNotFound is returned by Store.Load when no session is stored.
var ErrNotFound = errors.New("session not found")

// Store persists the active account on the client.
type Store interface {
	Load() (string, error)
	Save(account string) error
	Delete() error
}

// LevelDBStore keeps the session in a small LevelDB database on disk.
type LevelDBStore struct {
	db *leveldb.DB
}

func OpenLevelDBStore(path string) (*LevelDBStore, error) {
	db, err := leveldb.OpenFile(path, nil)
	if err != nil {
		return nil, fmt.Errorf("open session store %s: %w", path, err)
	}
	return &LevelDBStore{db: db}, nil
}

func (s *LevelDBStore) Load() (string, error) {
	v, err := s.db.Get([]byte(SessionKey), nil)
	if errors.Is(err, leveldb.ErrNotFound) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("read session: %w", err)
	}
	return string(v), nil
}

func (s *LevelDBStore) Save(account string) error {
	if err := s.db.Put([]byte(SessionKey), []byte(account), &opt.WriteOptions{Sync: true}); err != nil {
		return fmt.Errorf("write session: %w", err)
	}
	return nil
}

func (s *LevelDBStore) Delete() error {
	if err := s.db.Delete([]byte(SessionKey), &opt.WriteOptions{Sync: true}); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

func (s *LevelDBStore) Close() error {
	return s.db.Close()
}

// MemoryStore is a process-local Store.
type MemoryStore struct {
	mu      sync.Mutex
	account string
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) Load() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.account == "" {
		return "", ErrNotFound
	}
	return s.account, nil
}

func (s *MemoryStore) Save(account string) error {
	s.mu.Lock()
	s.account = account
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) Delete() error {
	s.mu.Lock()
	s.account = ""
	s.mu.Unlock()
	return nil
}
