package rpc

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/gobwas/ws"
	"github.com/gobwas/ws/wsutil"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/lattice-io/pubsub-broker/internal/broker"
	"github.com/lattice-io/pubsub-broker/internal/chunklog"
	"github.com/lattice-io/pubsub-broker/internal/metrics"
	"github.com/lattice-io/pubsub-broker/internal/model"
)

// connection is one accepted peer: its own message-service instance (so
// subscribe/unsubscribe scope to this connection alone, per the capability
// session model) sharing the broker-wide log and stores, plus the read/
// write pump goroutines that move RPC envelopes over the wire.
type connection struct {
	conn     net.Conn
	peerAddr string

	auth    *broker.AuthService
	topics  *broker.TopicService
	message *broker.MessageService

	send    chan []byte
	limiter *rate.Limiter
	metrics *metrics.Collector
	logger  zerolog.Logger

	mu         sync.Mutex
	iterators  map[string]*broker.HistoryIterator
	nextIterID uint64

	closeOnce sync.Once
}

func newConnection(c net.Conn, peerAddr string, log *chunklog.Log[model.Message], server *Server) *connection {
	conn := &connection{
		conn:      c,
		peerAddr:  peerAddr,
		auth:      broker.NewAuthService(server.logins, server.issuer),
		topics:    broker.NewTopicService(server.topics, server.logins),
		message:   broker.NewMessageService(log, server.topics, server.logins, server.deliveryIdleInterval, server.guard.ShouldPause, server.logger),
		send:      make(chan []byte, 256),
		limiter:   server.guard.NewRequestLimiter(),
		metrics:   server.metrics,
		logger:    server.logger,
		iterators: make(map[string]*broker.HistoryIterator),
	}
	return conn
}

// Receive implements broker.Receiver by pushing a receiver.receive envelope
// over this connection. It blocks until the frame is handed to the write
// pump so a slow receiver only stalls its own subscription's cursor, per
// the delivery loop's backpressure contract; it returns an error once the
// connection has started closing.
func (c *connection) Receive(ctx context.Context, msg model.Message) error {
	body, err := json.Marshal(receivePush{Message: toWireMessage(msg)})
	if err != nil {
		return err
	}
	frame, err := json.Marshal(Request{ID: "", Method: "receiver.receive", Params: body})
	if err != nil {
		return err
	}

	select {
	case c.send <- frame:
		c.metrics.MessagesDelivered.Inc()
		return nil
	case <-ctx.Done():
		c.metrics.DeliveryFailures.Inc()
		return ctx.Err()
	}
}

func (c *connection) run(ctx context.Context) {
	go c.writePump(ctx)
	c.readPump(ctx)
}

func (c *connection) readPump(ctx context.Context) {
	defer c.close()

	for {
		data, op, err := wsutil.ReadClientData(c.conn)
		if err != nil {
			return
		}
		if op == ws.OpClose {
			return
		}
		if op != ws.OpText {
			continue
		}

		var req Request
		if err := json.Unmarshal(data, &req); err != nil {
			continue
		}

		if !c.limiter.Allow() {
			reply := c.writeError(req.ID, req.Method, &broker.Error{Kind: broker.KindTransportFailure, Message: "rate limit exceeded"})
			c.sendReply(ctx, reply)
			return
		}

		reply := c.dispatch(ctx, req)
		if !c.sendReply(ctx, reply) {
			return
		}
		if reply.Error != nil && reply.Error.Kind == string(broker.KindTransportFailure) {
			return
		}
	}
}

// sendReply encodes reply and hands it to the write pump, returning false if
// the connection is shutting down and the caller should stop reading.
func (c *connection) sendReply(ctx context.Context, reply Reply) bool {
	encoded, err := json.Marshal(reply)
	if err != nil {
		return true
	}
	select {
	case c.send <- encoded:
		return true
	case <-ctx.Done():
		return false
	}
}

func (c *connection) writePump(ctx context.Context) {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()
	defer c.close()

	for {
		select {
		case frame, ok := <-c.send:
			if !ok {
				return
			}
			if err := wsutil.WriteServerMessage(c.conn, ws.OpText, frame); err != nil {
				return
			}
		case <-ticker.C:
			if err := wsutil.WriteServerMessage(c.conn, ws.OpPing, nil); err != nil {
				return
			}
		case <-ctx.Done():
			return
		}
	}
}

func (c *connection) close() {
	c.closeOnce.Do(func() {
		c.message.Close()
		_ = c.conn.Close()
	})
}

func (c *connection) writeError(id, method string, err *broker.Error) Reply {
	_ = method
	return Reply{ID: id, Error: &ErrorPayload{Kind: string(err.Kind), Message: err.Message}}
}

func (c *connection) registerIterator(it *broker.HistoryIterator) string {
	c.mu.Lock()
	defer c.mu.Unlock()
	id := fmt.Sprintf("%s-%d", c.peerAddr, c.nextIterID)
	c.nextIterID++
	c.iterators[id] = it
	return id
}

func (c *connection) iterator(id string) (*broker.HistoryIterator, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	it, ok := c.iterators[id]
	return it, ok
}
