package catalog

// Store exposes model lookup for HTTP handlers and the chat service.
type Store interface {
	List() []Model
	FindByID(id string) (Model, bool)
}

// MemoryStore implements Store with an in-memory slice.
type MemoryStore struct {
	items []Model
}

// NewMemoryStore returns a MemoryStore preloaded with the supplied models.
func NewMemoryStore(items []Model) *MemoryStore {
	return &MemoryStore{items: append([]Model(nil), items...)}
}

// List returns the configured model list.
func (s *MemoryStore) List() []Model {
	return append([]Model(nil), s.items...)
}

// FindByID looks up a model by identifier.
func (s *MemoryStore) FindByID(id string) (Model, bool) {
	for _, item := range s.items {
		if item.ID == id {
			return item, true
		}
	}
	return Model{}, false
}
