// Package rpc is the broker's capability-based transport: one gobwas/ws
// connection per peer, carrying JSON request/reply envelopes for the
// root→{auth,topic,message} capability graph plus outbound receiver.receive
// pushes and history iterator calls.
package rpc

import (
	"encoding/json"
	"time"

	"github.com/lattice-io/pubsub-broker/internal/model"
)

// Request is a client-to-server (or, for receiver.receive, server-to-client)
// call envelope.
type Request struct {
	ID     string          `json:"id"`
	Method string          `json:"method"`
	Params json.RawMessage `json:"params,omitempty"`
}

// Reply carries a method's result or error, correlated to a Request by ID.
type Reply struct {
	ID     string         `json:"id"`
	Result json.RawMessage `json:"result,omitempty"`
	Error  *ErrorPayload  `json:"error,omitempty"`
}

// ErrorPayload is the wire shape of a broker.Error.
type ErrorPayload struct {
	Kind    string `json:"kind"`
	Message string `json:"message,omitempty"`
}

// wireID is the two-64-bit-half encoding spec.md's wire format calls for.
type wireID struct {
	Hi uint64 `json:"hi"`
	Lo uint64 `json:"lo"`
}

func toWireID(id model.ID) wireID {
	var hi, lo uint64
	for i := 0; i < 8; i++ {
		hi = hi<<8 | uint64(id[i])
	}
	for i := 8; i < 16; i++ {
		lo = lo<<8 | uint64(id[i])
	}
	return wireID{Hi: hi, Lo: lo}
}

func fromWireID(w wireID) model.ID {
	var id model.ID
	for i := 7; i >= 0; i-- {
		id[i] = byte(w.Hi)
		w.Hi >>= 8
	}
	for i := 15; i >= 8; i-- {
		id[i] = byte(w.Lo)
		w.Lo >>= 8
	}
	return id
}

// wireRetention is the *none* | *minutes: f64* tagged union spec.md
// describes.
type wireRetention struct {
	Bounded bool    `json:"bounded"`
	Minutes float64 `json:"minutes,omitempty"`
}

func toWireRetention(r model.Retention) wireRetention {
	return wireRetention{Bounded: r.Bounded, Minutes: r.Minutes}
}

func fromWireRetention(w wireRetention) model.Retention {
	return model.Retention{Bounded: w.Bounded, Minutes: w.Minutes}
}

// wireMessage is the wire encoding of model.Message: timestamp as seconds +
// nanoseconds, id/topic_id as two 64-bit halves, per spec.md's wire format.
type wireMessage struct {
	ID        wireID  `json:"id"`
	TopicID   wireID  `json:"topic_id"`
	Author    string  `json:"author"`
	Content   string  `json:"content"`
	Seconds   int64   `json:"seconds"`
	Nanos     int32   `json:"nanos"`
	Key       *string `json:"key,omitempty"`
}

func toWireMessage(m model.Message) wireMessage {
	return wireMessage{
		ID:      toWireID(m.ID),
		TopicID: toWireID(m.TopicID),
		Author:  m.Author,
		Content: m.Content,
		Seconds: m.Timestamp.Unix(),
		Nanos:   int32(m.Timestamp.Nanosecond()),
		Key:     m.Key,
	}
}

func fromWireMessage(w wireMessage) model.Message {
	return model.Message{
		ID:        fromWireID(w.ID),
		TopicID:   fromWireID(w.TopicID),
		Author:    w.Author,
		Content:   w.Content,
		Timestamp: time.Unix(w.Seconds, int64(w.Nanos)).UTC(),
		Key:       w.Key,
	}
}

type wireTopic struct {
	ID        wireID        `json:"id"`
	Name      string        `json:"name"`
	Creator   string        `json:"creator"`
	Seconds   int64         `json:"seconds"`
	Nanos     int32         `json:"nanos"`
	Retention wireRetention `json:"retention"`
}

func toWireTopic(t model.Topic) wireTopic {
	return wireTopic{
		ID:        toWireID(t.ID),
		Name:      t.Name,
		Creator:   t.Creator,
		Seconds:   t.CreatedAt.Unix(),
		Nanos:     int32(t.CreatedAt.Nanosecond()),
		Retention: toWireRetention(t.Retention),
	}
}

func fromWireTopic(w wireTopic) model.Topic {
	return model.Topic{
		ID:        fromWireID(w.ID),
		Name:      w.Name,
		Creator:   w.Creator,
		CreatedAt: time.Unix(w.Seconds, int64(w.Nanos)).UTC(),
		Retention: fromWireRetention(w.Retention),
	}
}
