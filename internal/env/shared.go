package env

import (
	"fmt"
	"sync"

	"main/internal/model/enum"
)

// Shared is the cross-goroutine state every fork of an environment observes:
// the per-env-type "historical catch-up complete" flag and the registry that
// guarantees each env type is set up from scratch exactly once.
type Shared struct {
	mu         sync.Mutex
	dataLoaded map[enum.EnvType]bool
	registered map[enum.EnvType]bool
}

func NewShared() *Shared {
	return &Shared{
		dataLoaded: make(map[enum.EnvType]bool),
		registered: make(map[enum.EnvType]bool),
	}
}

// register claims the env type. Setting up the same env type twice is a
// programming error and panics.
func (s *Shared) register(t enum.EnvType) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.registered[t] {
		panic(fmt.Sprintf("tried to set up %s environment twice", t))
	}
	s.registered[t] = true
}

func (s *Shared) isDataLoaded(t enum.EnvType) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dataLoaded[t]
}

func (s *Shared) setDataLoaded(t enum.EnvType, loaded bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.dataLoaded[t] = loaded
}
