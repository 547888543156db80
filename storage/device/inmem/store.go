package inmemstore

import (
	"sync"

	"github.com/trezcool/masomo-portal/core/device"
)

type store struct {
	mutex sync.RWMutex
	table map[string]string
}

// New returns a device.Store kept in memory, optionally seeded with values.
func New(seed ...map[string]string) device.Store {
	s := &store{table: make(map[string]string)}
	for _, m := range seed {
		for k, v := range m {
			s.table[k] = v
		}
	}
	return s
}

func (s *store) Get(key string) (string, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	if v, ok := s.table[key]; ok {
		return v, nil
	}
	return "", device.ErrNotFound
}

func (s *store) Set(key, value string) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.table[key] = value
	return nil
}

func (s *store) Delete(key string) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	delete(s.table, key)
	return nil
}

func (s *store) Close() error { return nil }
