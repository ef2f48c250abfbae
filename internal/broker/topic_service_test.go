package broker

import (
	"errors"
	"testing"

	"github.com/lattice-io/pubsub-broker/internal/model"
	"github.com/lattice-io/pubsub-broker/internal/store"
)

func newTestTopicService() (*TopicService, *store.LoginStore) {
	logins := store.NewLoginStore()
	return NewTopicService(store.NewTopicStore(), logins), logins
}

// S3 — duplicate topic.
func TestCreateDuplicateTopicNameFails(t *testing.T) {
	svc, logins := newTestTopicService()
	logins.Login("peer1", "alice")
	logins.Login("peer2", "bob")

	if _, err := svc.Create("peer1", "general", model.Unbounded); err != nil {
		t.Fatalf("first Create: %v", err)
	}
	if _, err := svc.Create("peer2", "general", model.Unbounded); !errors.Is(err, ErrAlreadyExists) {
		t.Fatalf("second Create = %v, want ErrAlreadyExists", err)
	}
}

func TestUpdateToOwnCurrentNameIsAllowed(t *testing.T) {
	svc, logins := newTestTopicService()
	logins.Login("peer1", "alice")

	topic, err := svc.Create("peer1", "general", model.Unbounded)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	if _, err := svc.Update("peer1", topic.ID, "general", model.Unbounded); err != nil {
		t.Fatalf("Update to own current name should succeed, got %v", err)
	}
}

func TestUpdateToAnotherTopicsNameFails(t *testing.T) {
	svc, logins := newTestTopicService()
	logins.Login("peer1", "alice")

	a, err := svc.Create("peer1", "a", model.Unbounded)
	if err != nil {
		t.Fatalf("Create a: %v", err)
	}
	if _, err := svc.Create("peer1", "b", model.Unbounded); err != nil {
		t.Fatalf("Create b: %v", err)
	}

	if _, err := svc.Update("peer1", a.ID, "b", model.Unbounded); !errors.Is(err, ErrAlreadyExists) {
		t.Fatalf("Update a -> b = %v, want ErrAlreadyExists", err)
	}
}

func TestTopicCreateRequiresLogin(t *testing.T) {
	svc, _ := newTestTopicService()
	if _, err := svc.Create("peer1", "general", model.Unbounded); !errors.Is(err, ErrNotAuthenticated) {
		t.Fatalf("Create without login = %v, want ErrNotAuthenticated", err)
	}
}

func TestDeleteMissingTopicFails(t *testing.T) {
	svc, logins := newTestTopicService()
	logins.Login("peer1", "alice")
	if err := svc.Delete("peer1", model.ID{}); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Delete missing topic = %v, want ErrNotFound", err)
	}
}
