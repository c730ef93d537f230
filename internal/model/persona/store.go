package persona

import "strings"

// Store exposes persona retrieval for HTTP handlers and the chat service.
type Store interface {
	List() []Persona
	FindByID(id string) (Persona, bool)
}

// MemoryStore implements Store with an in-memory slice. It is never mutated
// after construction and is safe for concurrent readers.
type MemoryStore struct {
	items []Persona
}

// NewMemoryStore returns a MemoryStore preloaded with the supplied personas.
func NewMemoryStore(items []Persona) *MemoryStore {
	return &MemoryStore{items: append([]Persona(nil), items...)}
}

// List returns the predefined persona list.
func (s *MemoryStore) List() []Persona {
	return append([]Persona(nil), s.items...)
}

// FindByID looks up a persona by identifier or alias, ignoring case.
func (s *MemoryStore) FindByID(id string) (Persona, bool) {
	key := strings.ToLower(strings.TrimSpace(id))
	if key == "" {
		return Persona{}, false
	}
	for _, item := range s.items {
		if strings.ToLower(item.ID) == key {
			return item, true
		}
	}
	for _, item := range s.items {
		for _, alias := range item.Aliases {
			if strings.ToLower(alias) == key {
				return item, true
			}
		}
	}
	return Persona{}, false
}

// Resolve returns the persona for id, substituting the default persona when
// id is empty or unknown. The second result reports whether id matched.
func Resolve(store Store, id string) (Persona, bool) {
	if p, ok := store.FindByID(id); ok {
		return p, true
	}
	p, _ := store.FindByID(DefaultID)
	return p, false
}
