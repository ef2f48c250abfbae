package snapshot

import (
	"os"
	"path/filepath"
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

// Testable property 6 — snapshot round-trip.
func TestSaveThenLoadRoundTrips(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "server.save.bin")

	topicA := model.Topic{ID: mustID(t), Name: "a", Creator: "alice", CreatedAt: time.Now().UTC()}
	topicB := model.Topic{ID: mustID(t), Name: "b", Creator: "bob", CreatedAt: time.Now().UTC()}
	key := "k1"

	state := State{
		Topics: []model.Topic{topicA, topicB},
		Messages: []model.Message{
			{ID: mustID(t), TopicID: topicA.ID, Author: "alice", Content: "1", Timestamp: time.Now().UTC()},
			{ID: mustID(t), TopicID: topicB.ID, Author: "bob", Content: "2", Timestamp: time.Now().UTC(), Key: &key},
			{ID: mustID(t), TopicID: topicA.ID, Author: "alice", Content: "3", Timestamp: time.Now().UTC()},
		},
	}

	if err := Save(path, state); err != nil {
		t.Fatalf("Save: %v", err)
	}

	got, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if diff := cmp.Diff(state, got, cmp.Comparer(func(a, b time.Time) bool {
		return a.UnixNano() == b.UnixNano()
	})); diff != "" {
		t.Fatalf("round-trip mismatch (-want +got):\n%s", diff)
	}
}

func TestLoadOnMissingFileReturnsEmptyState(t *testing.T) {
	dir := t.TempDir()
	got, err := Load(filepath.Join(dir, "does-not-exist.bin"))
	if err != nil {
		t.Fatalf("Load on missing file: %v", err)
	}
	if len(got.Topics) != 0 || len(got.Messages) != 0 {
		t.Fatalf("Load on missing file should return an empty State, got %+v", got)
	}
}

func TestLoadDetectsCorruption(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "server.save.bin")

	if err := Save(path, State{Topics: []model.Topic{{ID: mustID(t), Name: "a"}}}); err != nil {
		t.Fatalf("Save: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	data[0] ^= 0xFF
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	if _, err := Load(path); err != ErrCorrupt {
		t.Fatalf("Load on corrupted file = %v, want ErrCorrupt", err)
	}
}
