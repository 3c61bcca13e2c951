package store

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/i474232898/air-quality-aggregation/internal/airquality"
)

var (
	// ErrNotFound is returned when no fresh record is cached for a key.
	ErrNotFound = errors.New("no air quality record for location")
)

// Cache keeps the latest record per location.
type Cache interface {
	Get(ctx context.Context, key string) (airquality.Record, error)
	Set(ctx context.Context, key string, rec airquality.Record) error
}

type entry struct {
	rec     airquality.Record
	expires time.Time
}

// MemoryStore is a concurrency-safe in-memory Cache. Entries expire after ttl.
type MemoryStore struct {
	mu sync.RWMutex

	// key: query key, value: latest record
	data map[string]entry

	ttl time.Duration
	now func() time.Time
}

// NewMemoryStore creates a MemoryStore. A ttl <= 0 means entries never expire.
func NewMemoryStore(ttl time.Duration) *MemoryStore {
	return &MemoryStore{
		data: make(map[string]entry),
		ttl:  ttl,
		now:  time.Now,
	}
}

// Set replaces the record stored under key.
func (s *MemoryStore) Set(_ context.Context, key string, rec airquality.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	e := entry{rec: rec}
	if s.ttl > 0 {
		e.expires = s.now().Add(s.ttl)
	}
	s.data[key] = e

	s.evictExpiredLocked()
	return nil
}

// Get returns the record stored under key if it has not expired.
func (s *MemoryStore) Get(_ context.Context, key string) (airquality.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.data[key]
	if !ok || s.expired(e) {
		return airquality.Record{}, ErrNotFound
	}
	return e.rec, nil
}

// Len returns the number of entries, expired ones included until the next Set.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.data)
}

func (s *MemoryStore) expired(e entry) bool {
	return !e.expires.IsZero() && s.now().After(e.expires)
}

func (s *MemoryStore) evictExpiredLocked() {
	for k, e := range s.data {
		if s.expired(e) {
			delete(s.data, k)
		}
	}
}
