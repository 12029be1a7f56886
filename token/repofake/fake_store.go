package tokenfakerepo

import (
	"sync"

	"github.com/jrsteele09/go-ctf-client/token"
)

var _ token.Store = (*FakeStore)(nil)

// FakeStore is an in-memory token.Store. It records every mutation so tests can assert on them.
type FakeStore struct {
	values  map[string]string
	sets    int
	deletes int
	lock    sync.RWMutex
}

func NewFakeStore() *FakeStore {
	return &FakeStore{
		values: make(map[string]string),
	}
}

// NewFakeStoreWithToken returns a store that already holds an access token.
func NewFakeStoreWithToken(accessToken string) *FakeStore {
	s := NewFakeStore()
	s.values[token.AccessTokenKey] = accessToken
	return s
}

func (s *FakeStore) Get(key string) (string, bool, error) {
	s.lock.RLock()
	defer s.lock.RUnlock()
	v, ok := s.values[key]
	return v, ok, nil
}

func (s *FakeStore) Set(key, value string) error {
	s.lock.Lock()
	defer s.lock.Unlock()

	s.values[key] = value
	s.sets++
	return nil
}

func (s *FakeStore) Delete(key string) error {
	s.lock.Lock()
	defer s.lock.Unlock()

	delete(s.values, key)
	s.deletes++
	return nil
}

// Sets returns the number of Set calls made.
func (s *FakeStore) Sets() int {
	s.lock.RLock()
	defer s.lock.RUnlock()
	return s.sets
}

// Deletes returns the number of Delete calls made.
func (s *FakeStore) Deletes() int {
	s.lock.RLock()
	defer s.lock.RUnlock()
	return s.deletes
}
