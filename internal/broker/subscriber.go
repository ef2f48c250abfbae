package broker

import (
	"context"
	"sync/atomic"
	"time"
	"weak"

	"github.com/rs/zerolog"

	"github.com/lattice-io/pubsub-broker/internal/chunklog"
	"github.com/lattice-io/pubsub-broker/internal/model"
)

// Receiver is the client-supplied capability a subscription pushes matching
// messages to. Implementations wrap an outbound RPC call; a returned error
// means the remote peer is gone and the subscription should be torn down.
type Receiver interface {
	Receive(ctx context.Context, msg model.Message) error
}

// Subscriber is the per-subscription record held inside MessageService. The
// delivery loop spawned for it holds only a weak reference, so the record's
// disappearance (whether via Unsubscribe or the whole service being
// dropped) is enough to stop the loop without any explicit cancellation
// wiring beyond the stopped flag below, which exists purely so Unsubscribe
// is immediate rather than waiting on a GC cycle to clear the weak pointer.
type Subscriber struct {
	TopicID  model.ID
	Receiver Receiver

	cursor  chunklog.Cursor[model.Message]
	stopped atomic.Bool
}

// deliveryLoop repeatedly advances sub's cursor and pushes matching,
// non-tombstoned messages to its receiver until the weak reference can no
// longer be upgraded, the subscriber is explicitly stopped, or ctx is done.
// shouldPause, if non-nil, is consulted each iteration: while it reports
// true the loop idles without advancing the cursor, the delivery-loop
// analogue of the teacher's CPU-triggered NATS consumption backpressure.
func deliveryLoop(ctx context.Context, weakSub weak.Pointer[Subscriber], idleInterval time.Duration, shouldPause func() bool, logger zerolog.Logger) {
	for {
		sub := weakSub.Value()
		if sub == nil {
			return
		}
		if sub.stopped.Load() {
			return
		}

		select {
		case <-ctx.Done():
			return
		default:
		}

		if shouldPause != nil && shouldPause() {
			sub = nil
			select {
			case <-ctx.Done():
				return
			case <-time.After(idleInterval):
			}
			continue
		}

		msg, present, ok := sub.cursor.Next()
		if !ok {
			sub = nil
			select {
			case <-ctx.Done():
				return
			case <-time.After(idleInterval):
			}
			continue
		}
		if !present {
			continue
		}
		if msg.TopicID != sub.TopicID {
			continue
		}

		if err := sub.Receiver.Receive(ctx, msg); err != nil {
			logger.Debug().Err(err).Str("topic_id", sub.TopicID.String()).Msg("subscriber receive failed, ending delivery loop")
			return
		}
		sub = nil
	}
}
