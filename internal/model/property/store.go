package property

// Store exposes property lookup for the stub handlers.
type Store interface {
	List() []Property
	FindByID(id string) (Property, bool)
}

// MemoryStore implements Store with an in-memory slice.
type MemoryStore struct {
	items []Property
}

// NewMemoryStore returns a MemoryStore preloaded with the supplied properties.
func NewMemoryStore(items []Property) *MemoryStore {
	return &MemoryStore{items: append([]Property(nil), items...)}
}

// List returns a copy of the known properties.
func (s *MemoryStore) List() []Property {
	return append([]Property(nil), s.items...)
}

// FindByID looks up a property by identifier.
func (s *MemoryStore) FindByID(id string) (Property, bool) {
	for _, item := range s.items {
		if item.ID == id {
			return item, true
		}
	}
	return Property{}, false
}
