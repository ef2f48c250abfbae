// Package store holds the broker's small keyed collections: a topic CRUD
// store and a peer-address-keyed login store. Both are guarded by a single
// writer/multi-reader lock, matching the access pattern observed across the
// request handlers (brief writes on create/update/delete/login, frequent
// reads on lookup).
package store

import (
	"sync"

	"github.com/lattice-io/pubsub-broker/internal/model"
)

// TopicStore is a keyed map of TopicID to Topic, with a count predicate used
// to enforce name uniqueness on create and rename.
type TopicStore struct {
	mu      sync.RWMutex
	entries map[model.ID]model.Topic
}

// NewTopicStore builds an empty store.
func NewTopicStore() *TopicStore {
	return &TopicStore{entries: make(map[model.ID]model.Topic)}
}

// Get returns the topic for id, if any.
func (s *TopicStore) Get(id model.ID) (model.Topic, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.entries[id]
	return t, ok
}

// GetAll returns a snapshot of every topic currently stored.
func (s *TopicStore) GetAll() []model.Topic {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]model.Topic, 0, len(s.entries))
	for _, t := range s.entries {
		out = append(out, t)
	}
	return out
}

// Create inserts t under its ID. Callers must have already checked name
// uniqueness via CountByName while holding no other lock (Create does not
// re-check; see broker.TopicService for the check-then-insert sequencing).
func (s *TopicStore) Create(t model.Topic) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[t.ID] = t
}

// Update replaces the stored topic for t.ID if it exists, reporting whether
// it did.
func (s *TopicStore) Update(t model.Topic) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.entries[t.ID]; !ok {
		return false
	}
	s.entries[t.ID] = t
	return true
}

// Delete removes the topic with the given id, if present.
func (s *TopicStore) Delete(id model.ID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, id)
}

// CountByName counts topics whose name matches, optionally excluding one id
// (used by Update to allow a topic to keep its own current name).
func (s *TopicStore) CountByName(name string, excluding model.ID) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for id, t := range s.entries {
		if id == excluding {
			continue
		}
		if t.Name == name {
			n++
		}
	}
	return n
}

// Replace atomically swaps the store's entire contents — used only by
// snapshot restore at startup, before any request handler can observe the
// store.
func (s *TopicStore) Replace(topics []model.Topic) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = make(map[model.ID]model.Topic, len(topics))
	for _, t := range topics {
		s.entries[t.ID] = t
	}
}
