package broker

import (
	"sync"

	"github.com/lattice-io/pubsub-broker/internal/chunklog"
	"github.com/lattice-io/pubsub-broker/internal/model"
)

// HistoryIterator walks a single topic's log backwards from the position it
// was created at (the subscription frontier), never re-returning an element
// it has already produced. Stop releases its cursor; further Next calls
// fail with ErrIteratorStopped.
type HistoryIterator struct {
	mu      sync.Mutex
	topicID model.ID
	cursor  chunklog.Cursor[model.Message]
	stopped bool
}

func newHistoryIterator(topicID model.ID, cursor chunklog.Cursor[model.Message]) *HistoryIterator {
	return &HistoryIterator{topicID: topicID, cursor: cursor}
}

// Next returns up to count messages on topicID, walking backwards from the
// iterator's current position. Fewer than count (including zero) means the
// front of the log was reached.
func (h *HistoryIterator) Next(count int) ([]model.Message, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.stopped {
		return nil, ErrIteratorStopped
	}
	if count <= 0 {
		return nil, nil
	}

	out := make([]model.Message, 0, count)
	for len(out) < count {
		msg, present, ok := h.cursor.Prev()
		if !ok {
			break
		}
		if !present || msg.TopicID != h.topicID {
			continue
		}
		out = append(out, msg)
	}
	return out, nil
}

// Stop releases the iterator's cursor. Idempotent.
func (h *HistoryIterator) Stop() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.stopped = true
	h.cursor = chunklog.Cursor[model.Message]{}
}
