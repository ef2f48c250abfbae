package broker

import (
	"time"

	"github.com/lattice-io/pubsub-broker/internal/model"
	"github.com/lattice-io/pubsub-broker/internal/store"
)

// TopicService implements the topic.* RPC methods: create/get/get_all/
// update/delete, each requiring the calling peer to be logged in.
type TopicService struct {
	topics *store.TopicStore
	logins *store.LoginStore
}

// NewTopicService builds a TopicService backed by the given stores.
func NewTopicService(topics *store.TopicStore, logins *store.LoginStore) *TopicService {
	return &TopicService{topics: topics, logins: logins}
}

func (s *TopicService) requireLogin(peerAddr string) (string, error) {
	username, ok := s.logins.Username(peerAddr)
	if !ok {
		return "", ErrNotAuthenticated
	}
	return username, nil
}

// Create makes a new topic with the given name and retention, owned by the
// peer's logged-in username. Fails with AlreadyExists if name is taken.
func (s *TopicService) Create(peerAddr, name string, retention model.Retention) (model.Topic, error) {
	username, err := s.requireLogin(peerAddr)
	if err != nil {
		return model.Topic{}, err
	}
	if s.topics.CountByName(name, model.ID{}) > 0 {
		return model.Topic{}, ErrAlreadyExists
	}

	id, err := model.NewID()
	if err != nil {
		return model.Topic{}, err
	}
	topic := model.Topic{
		ID:        id,
		Name:      name,
		Creator:   username,
		CreatedAt: time.Now().UTC(),
		Retention: retention,
	}
	s.topics.Create(topic)
	return topic, nil
}

// Get returns the topic with the given id.
func (s *TopicService) Get(peerAddr string, id model.ID) (model.Topic, error) {
	if _, err := s.requireLogin(peerAddr); err != nil {
		return model.Topic{}, err
	}
	topic, ok := s.topics.Get(id)
	if !ok {
		return model.Topic{}, ErrNotFound
	}
	return topic, nil
}

// GetAll returns every topic currently stored.
func (s *TopicService) GetAll(peerAddr string) ([]model.Topic, error) {
	if _, err := s.requireLogin(peerAddr); err != nil {
		return nil, err
	}
	return s.topics.GetAll(), nil
}

// Update renames a topic and/or changes its retention. A rename to another
// topic's existing name fails with AlreadyExists; renaming to the topic's
// own current name is always allowed.
func (s *TopicService) Update(peerAddr string, id model.ID, name string, retention model.Retention) (model.Topic, error) {
	if _, err := s.requireLogin(peerAddr); err != nil {
		return model.Topic{}, err
	}
	existing, ok := s.topics.Get(id)
	if !ok {
		return model.Topic{}, ErrNotFound
	}
	if s.topics.CountByName(name, id) > 0 {
		return model.Topic{}, ErrAlreadyExists
	}

	updated := existing.WithUpdate(name, retention)
	s.topics.Update(updated)
	return updated, nil
}

// Delete removes a topic by id.
func (s *TopicService) Delete(peerAddr string, id model.ID) error {
	if _, err := s.requireLogin(peerAddr); err != nil {
		return err
	}
	if _, ok := s.topics.Get(id); !ok {
		return ErrNotFound
	}
	s.topics.Delete(id)
	return nil
}
