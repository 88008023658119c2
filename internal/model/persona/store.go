package persona

import (
	"errors"
	"fmt"
	"strings"
)

var ErrInvalidPersona = errors.New("invalid persona")

// Store exposes widget lookup for handlers and services.
type Store interface {
	List() []Persona
	FindByID(id string) (Persona, bool)
}

// MemoryStore keeps the widgets in declaration order with an id index.
type MemoryStore struct {
	items []Persona
	index map[string]int
}

// NewMemoryStore returns a MemoryStore preloaded with the supplied personas.
// Invalid entries are dropped; use Validate beforehand to report them.
func NewMemoryStore(items []Persona) *MemoryStore {
	s := &MemoryStore{index: make(map[string]int, len(items))}
	for _, item := range items {
		if item.Validate() != nil {
			continue
		}
		if _, dup := s.index[item.ID]; dup {
			continue
		}
		s.index[item.ID] = len(s.items)
		s.items = append(s.items, item)
	}
	return s
}

// List returns the configured widgets.
func (s *MemoryStore) List() []Persona {
	return append([]Persona(nil), s.items...)
}

// FindByID looks up a widget by identifier.
func (s *MemoryStore) FindByID(id string) (Persona, bool) {
	idx, ok := s.index[id]
	if !ok {
		return Persona{}, false
	}
	return s.items[idx], true
}

// Validate 检查挂载组件所需的最小配置。
func (p Persona) Validate() error {
	switch {
	case strings.TrimSpace(p.ID) == "":
		return fmt.Errorf("%w: id is required", ErrInvalidPersona)
	case strings.TrimSpace(p.RulesetID) == "":
		return fmt.Errorf("%w: %s has no ruleset", ErrInvalidPersona, p.ID)
	case p.Delay.Min < 0 || p.Delay.Max < 0:
		return fmt.Errorf("%w: %s has a negative reply delay", ErrInvalidPersona, p.ID)
	case p.Busy != BusyReject && p.Busy != BusyQueue:
		return fmt.Errorf("%w: %s has unknown busy policy %q", ErrInvalidPersona, p.ID, p.Busy)
	}
	return nil
}
