package broker

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/lattice-io/pubsub-broker/internal/chunklog"
	"github.com/lattice-io/pubsub-broker/internal/model"
	"github.com/lattice-io/pubsub-broker/internal/store"
)

type recordingReceiver struct {
	received chan model.Message
}

func newRecordingReceiver() *recordingReceiver {
	return &recordingReceiver{received: make(chan model.Message, 16)}
}

func (r *recordingReceiver) Receive(ctx context.Context, msg model.Message) error {
	r.received <- msg
	return nil
}

func newTestMessageService(t *testing.T) (*MessageService, *store.TopicStore, *store.LoginStore) {
	t.Helper()
	logins := store.NewLoginStore()
	topics := store.NewTopicStore()
	log := chunklog.NewWithCapacity[model.Message](4)
	svc := NewMessageService(log, topics, logins, time.Millisecond, nil, discardLogger())
	t.Cleanup(svc.Close)
	return svc, topics, logins
}

func createTopic(t *testing.T, topics *store.TopicStore, name string) model.Topic {
	t.Helper()
	id, err := model.NewID()
	if err != nil {
		t.Fatalf("NewID: %v", err)
	}
	topic := model.Topic{ID: id, Name: name, CreatedAt: time.Now().UTC()}
	topics.Create(topic)
	return topic
}

// S1 — empty sanitized content.
func TestPostEmptySanitizedContentIsInvalid(t *testing.T) {
	svc, topics, logins := newTestMessageService(t)
	logins.Login("peer1", "alice")
	topic := createTopic(t, topics, "general")

	_, err := svc.Post("peer1", topic.ID, "   \t \n", nil)
	if !errors.Is(err, ErrInvalidContent) {
		t.Fatalf("Post with blank content = %v, want ErrInvalidContent", err)
	}

	msgs, err := svc.GetMessagesSync("peer1", topic.ID)
	if err != nil {
		t.Fatalf("GetMessagesSync: %v", err)
	}
	if len(msgs) != 0 {
		t.Fatalf("topic should remain empty, got %d messages", len(msgs))
	}
}

// S2 — create/post/read.
func TestPostTrimsContentAndPreservesOrder(t *testing.T) {
	svc, topics, logins := newTestMessageService(t)
	logins.Login("peer1", "alice")
	topic := createTopic(t, topics, "news")

	if _, err := svc.Post("peer1", topic.ID, "Hello ", nil); err != nil {
		t.Fatalf("Post 1: %v", err)
	}
	if _, err := svc.Post("peer1", topic.ID, "\tworld\t", nil); err != nil {
		t.Fatalf("Post 2: %v", err)
	}

	msgs, err := svc.GetMessagesSync("peer1", topic.ID)
	if err != nil {
		t.Fatalf("GetMessagesSync: %v", err)
	}
	if len(msgs) != 2 {
		t.Fatalf("got %d messages, want 2", len(msgs))
	}
	if msgs[0].Content != "Hello" || msgs[1].Content != "world" {
		t.Fatalf("contents = [%q, %q], want [Hello, world]", msgs[0].Content, msgs[1].Content)
	}
	if msgs[0].Author != "alice" || msgs[1].Author != "alice" {
		t.Fatalf("both messages should be authored by alice")
	}
}

func TestPostRequiresLogin(t *testing.T) {
	svc, topics, _ := newTestMessageService(t)
	topic := createTopic(t, topics, "general")

	if _, err := svc.Post("peer1", topic.ID, "hi", nil); !errors.Is(err, ErrNotAuthenticated) {
		t.Fatalf("Post without login = %v, want ErrNotAuthenticated", err)
	}
}

func TestPostToMissingTopic(t *testing.T) {
	svc, _, logins := newTestMessageService(t)
	logins.Login("peer1", "alice")

	missing := model.ID{}
	if _, err := svc.Post("peer1", missing, "hi", nil); !errors.Is(err, ErrEntityDoesNotExist) {
		t.Fatalf("Post to missing topic = %v, want ErrEntityDoesNotExist", err)
	}
}

// S4 — live subscribe.
func TestSubscribeDeliversOnlyMessagesPostedAfterSubscription(t *testing.T) {
	svc, topics, logins := newTestMessageService(t)
	logins.Login("peerA", "alice")
	logins.Login("peerB", "bob")
	topic := createTopic(t, topics, "general")

	receiver := newRecordingReceiver()
	history, err := svc.Subscribe("peerA", topic.ID, receiver)
	if err != nil {
		t.Fatalf("Subscribe: %v", err)
	}

	historical, err := history.Next(10)
	if err != nil {
		t.Fatalf("history.Next: %v", err)
	}
	if len(historical) != 0 {
		t.Fatalf("history on an empty topic should be empty, got %d", len(historical))
	}

	if _, err := svc.Post("peerB", topic.ID, "m1", nil); err != nil {
		t.Fatalf("Post m1: %v", err)
	}
	if _, err := svc.Post("peerB", topic.ID, "m2", nil); err != nil {
		t.Fatalf("Post m2: %v", err)
	}

	first := waitForReceive(t, receiver)
	second := waitForReceive(t, receiver)
	if first.Content != "m1" || second.Content != "m2" {
		t.Fatalf("delivered [%q, %q], want [m1, m2] in order", first.Content, second.Content)
	}

	select {
	case extra := <-receiver.received:
		t.Fatalf("unexpected extra delivery: %+v", extra)
	case <-time.After(50 * time.Millisecond):
	}
}

// History iterator walks a non-empty topic's prior messages backwards.
func TestSubscribeHistoryIteratorReturnsPriorMessagesInReverse(t *testing.T) {
	svc, topics, logins := newTestMessageService(t)
	logins.Login("peerA", "alice")
	topic := createTopic(t, topics, "general")

	if _, err := svc.Post("peerA", topic.ID, "m1", nil); err != nil {
		t.Fatalf("Post m1: %v", err)
	}
	if _, err := svc.Post("peerA", topic.ID, "m2", nil); err != nil {
		t.Fatalf("Post m2: %v", err)
	}
	if _, err := svc.Post("peerA", topic.ID, "m3", nil); err != nil {
		t.Fatalf("Post m3: %v", err)
	}

	receiver := newRecordingReceiver()
	history, err := svc.Subscribe("peerA", topic.ID, receiver)
	if err != nil {
		t.Fatalf("Subscribe: %v", err)
	}

	got, err := history.Next(10)
	if err != nil {
		t.Fatalf("history.Next: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("history.Next(10) returned %d messages, want 3", len(got))
	}
	if got[0].Content != "m3" || got[1].Content != "m2" || got[2].Content != "m1" {
		t.Fatalf("history order = [%q, %q, %q], want [m3, m2, m1]", got[0].Content, got[1].Content, got[2].Content)
	}
}

// S5 — cross-topic isolation.
func TestSubscriberNeverSeesOtherTopics(t *testing.T) {
	svc, topics, logins := newTestMessageService(t)
	logins.Login("peerA", "alice")
	logins.Login("peerB", "bob")
	t1 := createTopic(t, topics, "t1")
	t2 := createTopic(t, topics, "t2")

	receiver := newRecordingReceiver()
	if _, err := svc.Subscribe("peerA", t1.ID, receiver); err != nil {
		t.Fatalf("Subscribe: %v", err)
	}

	if _, err := svc.Post("peerB", t2.ID, "x", nil); err != nil {
		t.Fatalf("Post: %v", err)
	}

	select {
	case msg := <-receiver.received:
		t.Fatalf("subscriber on t1 should not see t2 message, got %+v", msg)
	case <-time.After(50 * time.Millisecond):
	}
}

// Testable property 8 — subscriber cleanup.
func TestUnsubscribeStopsFurtherDeliveries(t *testing.T) {
	svc, topics, logins := newTestMessageService(t)
	logins.Login("peerA", "alice")
	logins.Login("peerB", "bob")
	topic := createTopic(t, topics, "general")

	receiver := newRecordingReceiver()
	if _, err := svc.Subscribe("peerA", topic.ID, receiver); err != nil {
		t.Fatalf("Subscribe: %v", err)
	}
	if err := svc.Unsubscribe("peerA", topic.ID, receiver); err != nil {
		t.Fatalf("Unsubscribe: %v", err)
	}

	if _, err := svc.Post("peerB", topic.ID, "after unsubscribe", nil); err != nil {
		t.Fatalf("Post: %v", err)
	}

	select {
	case msg := <-receiver.received:
		t.Fatalf("unsubscribed receiver should not be called, got %+v", msg)
	case <-time.After(50 * time.Millisecond):
	}
}

func waitForReceive(t *testing.T, r *recordingReceiver) model.Message {
	t.Helper()
	select {
	case msg := <-r.received:
		return msg
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for delivery")
		return model.Message{}
	}
}
