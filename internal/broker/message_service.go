package broker

import (
	"context"
	"sync"
	"time"
	"weak"

	"github.com/rs/zerolog"

	"github.com/lattice-io/pubsub-broker/internal/chunklog"
	"github.com/lattice-io/pubsub-broker/internal/model"
	"github.com/lattice-io/pubsub-broker/internal/store"
)

// MessageService implements message.post/get_messages_sync/subscribe/
// unsubscribe/delete over a single shared chunked log.
type MessageService struct {
	log    *chunklog.Log[model.Message]
	topics *store.TopicStore
	logins *store.LoginStore

	idleInterval time.Duration
	shouldPause  func() bool
	logger       zerolog.Logger

	ctx    context.Context
	cancel context.CancelFunc

	mu          sync.Mutex
	subscribers map[uint64]*Subscriber
	nextSubID   uint64
}

// NewMessageService builds a MessageService over log, guarded by topics/
// logins, delivering to live subscribers at idleInterval polling cadence
// whenever their cursor has nothing to yet. shouldPause, if non-nil, is
// consulted by every delivery loop each iteration to throttle live delivery
// under CPU pressure (see internal/resource.Guard.ShouldPause); pass nil to
// never pause.
func NewMessageService(log *chunklog.Log[model.Message], topics *store.TopicStore, logins *store.LoginStore, idleInterval time.Duration, shouldPause func() bool, logger zerolog.Logger) *MessageService {
	ctx, cancel := context.WithCancel(context.Background())
	return &MessageService{
		log:          log,
		topics:       topics,
		logins:       logins,
		idleInterval: idleInterval,
		shouldPause:  shouldPause,
		logger:       logger,
		ctx:          ctx,
		cancel:       cancel,
		subscribers:  make(map[uint64]*Subscriber),
	}
}

// Close stops every delivery loop owned by this service instance. Dropping
// the strong references here is also what lets their weak pointers fail to
// upgrade, per the cancellation contract described on Subscriber.
func (s *MessageService) Close() {
	s.cancel()
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, sub := range s.subscribers {
		sub.stopped.Store(true)
		delete(s.subscribers, id)
	}
}

func (s *MessageService) requireLogin(peerAddr string) error {
	if _, ok := s.logins.Username(peerAddr); !ok {
		return ErrNotAuthenticated
	}
	return nil
}

// Post sanitizes content, appends a new Message to topicID's stream, and
// returns the constructed message.
func (s *MessageService) Post(peerAddr string, topicID model.ID, content string, key *string) (model.Message, error) {
	if err := s.requireLogin(peerAddr); err != nil {
		return model.Message{}, err
	}
	username, _ := s.logins.Username(peerAddr)

	if _, ok := s.topics.Get(topicID); !ok {
		return model.Message{}, ErrEntityDoesNotExist
	}

	sanitized := model.SanitizeContent(content)
	if sanitized == "" {
		return model.Message{}, ErrInvalidContent
	}

	id, err := model.NewID()
	if err != nil {
		return model.Message{}, err
	}

	msg := model.Message{
		ID:        id,
		TopicID:   topicID,
		Author:    username,
		Content:   sanitized,
		Timestamp: time.Now().UTC(),
		Key:       key,
	}
	s.log.Push(msg)
	return msg, nil
}

// GetMessagesSync returns every live message posted to topicID, in append
// order.
func (s *MessageService) GetMessagesSync(peerAddr string, topicID model.ID) ([]model.Message, error) {
	if err := s.requireLogin(peerAddr); err != nil {
		return nil, err
	}
	if _, ok := s.topics.Get(topicID); !ok {
		return nil, ErrEntityDoesNotExist
	}

	var out []model.Message
	cursor := s.log.FrontCursor()
	for {
		msg, present, ok := cursor.Next()
		if !ok {
			break
		}
		if !present || msg.TopicID != topicID {
			continue
		}
		out = append(out, msg)
	}
	return out, nil
}

// Subscribe registers receiver for live delivery of topicID's future
// messages and returns a reverse history iterator scoped to the same topic,
// positioned at the subscription frontier.
func (s *MessageService) Subscribe(peerAddr string, topicID model.ID, receiver Receiver) (*HistoryIterator, error) {
	if err := s.requireLogin(peerAddr); err != nil {
		return nil, err
	}
	if _, ok := s.topics.Get(topicID); !ok {
		return nil, ErrEntityDoesNotExist
	}

	sub := &Subscriber{
		TopicID:  topicID,
		Receiver: receiver,
		cursor:   s.log.TailCursor(),
	}
	historyCursor := s.log.HistoryCursor()

	s.mu.Lock()
	id := s.nextSubID
	s.nextSubID++
	s.subscribers[id] = sub
	s.mu.Unlock()

	go deliveryLoop(s.ctx, weak.Make(sub), s.idleInterval, s.shouldPause, s.logger)

	return newHistoryIterator(topicID, historyCursor), nil
}

// Unsubscribe revokes every subscription this service instance holds on
// topicID, regardless of which receiver originally registered it — matching
// the source behavior this broker was modeled on (see design notes).
func (s *MessageService) Unsubscribe(peerAddr string, topicID model.ID, _ Receiver) error {
	if err := s.requireLogin(peerAddr); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for id, sub := range s.subscribers {
		if sub.TopicID == topicID {
			sub.stopped.Store(true)
			delete(s.subscribers, id)
		}
	}
	return nil
}

// Delete is not implemented by the core message log.
func (s *MessageService) Delete(peerAddr string, messageID model.ID) error {
	if err := s.requireLogin(peerAddr); err != nil {
		return err
	}
	return ErrUnimplemented
}
