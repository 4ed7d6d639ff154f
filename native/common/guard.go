package common

import (
	"errors"
	"sort"
	"strings"
	"sync"
)

var ErrModulePaused = errors.New("module paused")

type PauseView interface {
	IsPaused(module string) bool
}

func Guard(p PauseView, module string) error {
	if p == nil || module == "" {
		return nil
	}
	if p.IsPaused(module) {
		return ErrModulePaused
	}
	return nil
}

// PauseSet is an in-memory PauseView toggled by operators.
type PauseSet struct {
	mu     sync.RWMutex
	paused map[string]struct{}
}

// NewPauseSet returns a set with the given modules paused.
func NewPauseSet(modules ...string) *PauseSet {
	set := &PauseSet{paused: make(map[string]struct{})}
	for _, module := range modules {
		set.Pause(module)
	}
	return set
}

func (s *PauseSet) Pause(module string) {
	module = strings.TrimSpace(module)
	if s == nil || module == "" {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.paused[module] = struct{}{}
}

func (s *PauseSet) Resume(module string) {
	if s == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.paused, strings.TrimSpace(module))
}

func (s *PauseSet) IsPaused(module string) bool {
	if s == nil {
		return false
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.paused[module]
	return ok
}

// Paused lists paused modules in sorted order.
func (s *PauseSet) Paused() []string {
	if s == nil {
		return nil
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, 0, len(s.paused))
	for module := range s.paused {
		out = append(out, module)
	}
	sort.Strings(out)
	return out
}
