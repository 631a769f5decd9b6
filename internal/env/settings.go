package env

import (
	"strings"
	"sync"
)

// Settings is the program settings map, shared by every environment of every
// type. Keys are case-insensitive.
type Settings struct {
	mu     sync.RWMutex
	values map[string]string
}

func NewSettings(values map[string]string) *Settings {
	s := &Settings{values: make(map[string]string, len(values))}
	for k, v := range values {
		s.values[strings.ToLower(k)] = v
	}
	return s
}

func (s *Settings) Get(key string) string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.values[strings.ToLower(key)]
}

func (s *Settings) Set(key, value string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values[strings.ToLower(key)] = value
}
