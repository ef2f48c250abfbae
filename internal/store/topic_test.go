package store

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/lattice-io/pubsub-broker/internal/model"
)

func mustID(t *testing.T) model.ID {
	t.Helper()
	id, err := model.NewID()
	if err != nil {
		t.Fatalf("NewID: %v", err)
	}
	return id
}

func TestTopicStoreCreateGetAll(t *testing.T) {
	s := NewTopicStore()
	topic := model.Topic{ID: mustID(t), Name: "general", Creator: "alice", CreatedAt: time.Now().UTC()}
	s.Create(topic)

	got, ok := s.Get(topic.ID)
	if !ok {
		t.Fatalf("Get: topic not found after Create")
	}
	if diff := cmp.Diff(topic, got); diff != "" {
		t.Fatalf("Get mismatch (-want +got):\n%s", diff)
	}

	all := s.GetAll()
	if len(all) != 1 {
		t.Fatalf("GetAll returned %d topics, want 1", len(all))
	}
}

func TestTopicStoreCountByNameExcludesSelf(t *testing.T) {
	s := NewTopicStore()
	a := model.Topic{ID: mustID(t), Name: "general"}
	s.Create(a)

	if n := s.CountByName("general", model.ID{}); n != 1 {
		t.Fatalf("CountByName(general, zero) = %d, want 1", n)
	}
	if n := s.CountByName("general", a.ID); n != 0 {
		t.Fatalf("CountByName(general, a.ID) = %d, want 0 (excludes self)", n)
	}
}

func TestTopicStoreUpdateOnMissingReportsFalse(t *testing.T) {
	s := NewTopicStore()
	if ok := s.Update(model.Topic{ID: mustID(t)}); ok {
		t.Fatalf("Update on missing topic should report false")
	}
}

func TestLoginStoreLoginLogout(t *testing.T) {
	s := NewLoginStore()
	if _, ok := s.Username("127.0.0.1:9"); ok {
		t.Fatalf("fresh store should have no entries")
	}

	s.Login("127.0.0.1:9", "alice")
	name, ok := s.Username("127.0.0.1:9")
	if !ok || name != "alice" {
		t.Fatalf("Username = (%q, %v), want (alice, true)", name, ok)
	}

	s.Logout("127.0.0.1:9")
	if _, ok := s.Username("127.0.0.1:9"); ok {
		t.Fatalf("entry should be gone after Logout")
	}
}
